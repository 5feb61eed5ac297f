package inference

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/tidwall/gjson"
	"go.uber.org/zap"

	"github.com/example/photo-describer/internal/logging"
)

const (
	chatCompletionsPath = "/chat/completions"

	// Upstream bodies are only read for logging and the description, neither
	// of which needs more than this.
	maxResponseBytes = 1 << 20
	maxLoggedBody    = 4 << 10
)

// Options configures a Client.
type Options struct {
	BaseURL string
	APIKey  string
	Model   string

	// Timeout bounds one upstream call. Ignored when HTTPClient is set.
	Timeout time.Duration

	HTTPClient *http.Client // if nil a client with Timeout is used
	Logger     *zap.Logger
}

// Client talks to an OpenAI compatible chat-completions endpoint (Groq by
// default) with a single user message holding the prompt and the image.
type Client struct {
	endpoint string
	apiKey   string
	model    string
	httpc    *http.Client
	logger   *zap.Logger
}

var _ Service = (*Client)(nil)

// NewClient validates opts and returns a ready Client.
func NewClient(opts Options) (*Client, error) {
	if strings.TrimSpace(opts.APIKey) == "" {
		return nil, errors.New("inference: api key is required")
	}
	if strings.TrimSpace(opts.BaseURL) == "" {
		return nil, errors.New("inference: base url is required")
	}
	if strings.TrimSpace(opts.Model) == "" {
		return nil, errors.New("inference: model is required")
	}

	httpc := opts.HTTPClient
	if httpc == nil {
		httpc = &http.Client{Timeout: opts.Timeout}
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Client{
		endpoint: strings.TrimRight(opts.BaseURL, "/") + chatCompletionsPath,
		apiKey:   opts.APIKey,
		model:    opts.Model,
		httpc:    httpc,
		logger:   logger.Named("inference"),
	}, nil
}

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
}

type chatMessage struct {
	Role    string        `json:"role"`
	Content []contentPart `json:"content"`
}

type contentPart struct {
	Type     string    `json:"type"`
	Text     string    `json:"text,omitempty"`
	ImageURL *imageURL `json:"image_url,omitempty"`
}

type imageURL struct {
	URL string `json:"url"`
}

func (c *Client) newChatRequest(image []byte, mimeType string) chatRequest {
	return chatRequest{
		Model: c.model,
		Messages: []chatMessage{{
			Role: "user",
			Content: []contentPart{
				{Type: "text", Text: Prompt},
				{Type: "image_url", ImageURL: &imageURL{URL: DataURI(mimeType, image)}},
			},
		}},
	}
}

// Describe sends the image upstream and returns the first choice's message
// content. A 2xx answer without usable content yields FallbackDescription; a
// non-2xx answer yields *Error.
func (c *Client) Describe(ctx context.Context, image []byte, mimeType string) (string, error) {
	if len(image) == 0 {
		return "", ErrEmptyImage
	}

	payload, err := json.Marshal(c.newChatRequest(image, mimeType))
	if err != nil {
		return "", logging.NewOperationError("inference.encode_request", "", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(payload))
	if err != nil {
		return "", logging.NewOperationError("inference.build_request", "", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	start := time.Now()
	resp, err := c.httpc.Do(req)
	if err != nil {
		return "", logging.NewOperationError("inference.send", "", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return "", logging.NewOperationError("inference.read_response", "", err)
	}

	c.logger.Debug("inference call finished",
		zap.Int("status", resp.StatusCode),
		zap.Duration("latency", time.Since(start)),
		zap.Int("image_bytes", len(image)),
	)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", &Error{StatusCode: resp.StatusCode, Body: truncate(strings.TrimSpace(string(body)), maxLoggedBody)}
	}

	return c.extractDescription(body), nil
}

func (c *Client) extractDescription(body []byte) string {
	content := gjson.GetBytes(body, "choices.0.message.content")
	if content.Type != gjson.String || strings.TrimSpace(content.Str) == "" {
		c.logger.Warn("inference response carried no description",
			zap.Bool("valid_json", gjson.ValidBytes(body)),
			zap.Bool("content_present", content.Exists()),
		)
		return FallbackDescription
	}
	return content.Str
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + fmt.Sprintf("...(%d bytes truncated)", len(s)-n)
}
