package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/aretw0/teller/internal/logging"
	"github.com/hashicorp/go-retryablehttp"
)

// Ollama defaults.
const (
	DefaultOllamaHost  = "http://localhost:11434"
	DefaultOllamaModel = "qwen2.5vl:7b"
)

// OllamaConfig configures an Ollama client.
type OllamaConfig struct {
	Host        string        `mapstructure:"host" yaml:"host"`
	Model       string        `mapstructure:"model" yaml:"model"`
	Temperature float64       `mapstructure:"temperature" yaml:"temperature"`
	Timeout     time.Duration `mapstructure:"timeout" yaml:"timeout"`
	MaxRetries  int           `mapstructure:"max_retries" yaml:"max_retries"`
}

// Ollama talks to a local Ollama server through /api/generate.
type Ollama struct {
	cfg    OllamaConfig
	client *retryablehttp.Client
	logger *slog.Logger
}

// OllamaOption configures an Ollama client.
type OllamaOption func(*Ollama)

// WithLogger routes retry diagnostics to logger.
func WithLogger(logger *slog.Logger) OllamaOption {
	return func(o *Ollama) { o.logger = logger }
}

// WithHTTPClient replaces the underlying transport client.
func WithHTTPClient(c *http.Client) OllamaOption {
	return func(o *Ollama) { o.client.HTTPClient = c }
}

// NewOllama creates a client. Zero values in cfg fall back to the defaults.
func NewOllama(cfg OllamaConfig, opts ...OllamaOption) *Ollama {
	if cfg.Host == "" {
		cfg.Host = DefaultOllamaHost
	}
	if cfg.Model == "" {
		cfg.Model = DefaultOllamaModel
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 2 * time.Minute
	}
	if cfg.MaxRetries == 0 {
		cfg.MaxRetries = 2
	}

	client := retryablehttp.NewClient()
	client.RetryMax = cfg.MaxRetries
	client.RetryWaitMin = 200 * time.Millisecond
	client.RetryWaitMax = 2 * time.Second
	client.HTTPClient.Timeout = cfg.Timeout

	o := &Ollama{cfg: cfg, client: client, logger: logging.NewNop()}
	for _, opt := range opts {
		opt(o)
	}
	o.client.Logger = o.logger
	return o
}

// Model returns the configured model tag.
func (o *Ollama) Model() string { return o.cfg.Model }

type generateRequest struct {
	Model   string         `json:"model"`
	Prompt  string         `json:"prompt"`
	Stream  bool           `json:"stream"`
	Options map[string]any `json:"options,omitempty"`
}

type generateResponse struct {
	Response string `json:"response"`
	Done     bool   `json:"done"`
	Error    string `json:"error,omitempty"`
}

// Invoke sends prompt and returns the full completion.
func (o *Ollama) Invoke(ctx context.Context, prompt string) (string, error) {
	body, err := json.Marshal(generateRequest{
		Model:   o.cfg.Model,
		Prompt:  prompt,
		Stream:  false,
		Options: map[string]any{"temperature": o.cfg.Temperature},
	})
	if err != nil {
		return "", fmt.Errorf("ollama: encode request: %w", err)
	}

	url := strings.TrimRight(o.cfg.Host, "/") + "/api/generate"
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("ollama: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := o.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("ollama generate: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", fmt.Errorf("ollama generate: status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	var out generateResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("ollama generate: decode: %w", err)
	}
	if out.Error != "" {
		return "", fmt.Errorf("ollama generate: %s", out.Error)
	}
	return out.Response, nil
}
