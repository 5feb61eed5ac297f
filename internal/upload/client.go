package upload

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

const unknownError = "Unknown error"

// Result is what the gateway reported for one upload. Exactly one of
// Description and Error is set.
type Result struct {
	Description string
	Error       string
	StatusCode  int
}

// OK reports whether the gateway produced a description.
func (r Result) OK() bool {
	return r.Error == ""
}

type responseBody struct {
	Description string `json:"description"`
	Error       string `json:"error"`
}

// Client posts encoded photos to the gateway.
type Client struct {
	endpoint string
	token    string
	httpc    *http.Client
}

// NewClient returns a Client for the gateway upload endpoint. httpc may be
// nil; token may be empty.
func NewClient(endpoint, token string, httpc *http.Client) *Client {
	if httpc == nil {
		httpc = http.DefaultClient
	}
	return &Client{endpoint: endpoint, token: strings.TrimSpace(token), httpc: httpc}
}

// Send performs one upload. A returned error means the exchange itself
// failed; gateway side failures come back as a Result with Error set.
func (c *Client) Send(ctx context.Context, req *Request) (Result, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(req.Body))
	if err != nil {
		return Result{}, fmt.Errorf("build upload request: %w", err)
	}
	httpReq.Header.Set("Content-Type", req.ContentType)
	if c.token != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpc.Do(httpReq)
	if err != nil {
		return Result{}, fmt.Errorf("upload: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return Result{}, fmt.Errorf("read upload response: %w", err)
	}

	var body responseBody
	decodeErr := json.Unmarshal(raw, &body)

	if resp.StatusCode >= 200 && resp.StatusCode <= 299 {
		if decodeErr != nil {
			return Result{}, fmt.Errorf("decode upload response: %w", decodeErr)
		}
		return Result{Description: body.Description, StatusCode: resp.StatusCode}, nil
	}

	msg := strings.TrimSpace(body.Error)
	if decodeErr != nil || msg == "" {
		msg = unknownError
	}
	return Result{Error: msg, StatusCode: resp.StatusCode}, nil
}
