package config

import (
	"errors"
	"flag"
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v6"
	"github.com/joho/godotenv"
)

// ErrMissingAPIKey is returned when the upstream credential is absent. The
// gateway must not start serving without it.
var ErrMissingAPIKey = errors.New("GROQ_API_KEY is required")

// Gateway holds the startup configuration of the upload gateway.
type Gateway struct {
	ListenAddr      string        `env:"LISTEN_ADDR" envDefault:":3000"`
	APIKey          string        `env:"GROQ_API_KEY"`
	BaseURL         string        `env:"INFERENCE_BASE_URL" envDefault:"https://api.groq.com/openai/v1"`
	Model           string        `env:"INFERENCE_MODEL" envDefault:"meta-llama/llama-4-scout-17b-16e-instruct"`
	Timeout         time.Duration `env:"INFERENCE_TIMEOUT" envDefault:"30s"`
	MaxUploadBytes  int64         `env:"MAX_UPLOAD_BYTES" envDefault:"10485760"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"15s"`
	JWTSecret       string        `env:"JWT_SECRET"`
	JWTAudience     string        `env:"JWT_AUDIENCE"`
	Debug           bool          `env:"DEBUG"`
}

// Client holds the configuration of the console capture client.
type Client struct {
	GatewayURL string `env:"GATEWAY_URL" envDefault:"http://localhost:3000/upload"`
	Token      string `env:"GATEWAY_TOKEN"`
	Source     string `env:"PHOTO_SOURCE" envDefault:"screen"`
	Debug      bool   `env:"DEBUG"`
}

// LoadGateway reads .env (if present) and the process environment.
func LoadGateway() (*Gateway, error) {
	_ = godotenv.Load()
	return ParseGateway(env.Options{})
}

// ParseGateway decodes the gateway configuration using opts. Tests pass an
// explicit Environment map.
func ParseGateway(opts env.Options) (*Gateway, error) {
	cfg := &Gateway{}
	if err := env.Parse(cfg, opts); err != nil {
		return nil, fmt.Errorf("parse gateway config: %w", err)
	}
	cfg.APIKey = strings.TrimSpace(cfg.APIKey)
	if cfg.APIKey == "" {
		return nil, ErrMissingAPIKey
	}
	if cfg.Timeout <= 0 {
		return nil, fmt.Errorf("INFERENCE_TIMEOUT must be positive, got %s", cfg.Timeout)
	}
	if cfg.MaxUploadBytes <= 0 {
		return nil, fmt.Errorf("MAX_UPLOAD_BYTES must be positive, got %d", cfg.MaxUploadBytes)
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	return cfg, nil
}

// LoadClient reads .env, the environment and then command line flags, in
// increasing order of precedence.
func LoadClient(fs *flag.FlagSet, args []string) (*Client, error) {
	_ = godotenv.Load()
	return ParseClient(env.Options{}, fs, args)
}

// ParseClient is LoadClient without the .env lookup.
func ParseClient(opts env.Options, fs *flag.FlagSet, args []string) (*Client, error) {
	cfg := &Client{}
	if err := env.Parse(cfg, opts); err != nil {
		return nil, fmt.Errorf("parse client config: %w", err)
	}

	fs.StringVar(&cfg.GatewayURL, "gateway", cfg.GatewayURL, "upload endpoint of the gateway")
	fs.StringVar(&cfg.Token, "token", cfg.Token, "bearer token sent with uploads")
	fs.StringVar(&cfg.Source, "source", cfg.Source, `photo source: an image file path or "screen"`)
	fs.BoolVar(&cfg.Debug, "debug", cfg.Debug, "verbose logging")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	if strings.TrimSpace(cfg.GatewayURL) == "" {
		return nil, errors.New("gateway url is required")
	}
	if strings.TrimSpace(cfg.Source) == "" {
		return nil, errors.New("photo source is required")
	}
	return cfg, nil
}
