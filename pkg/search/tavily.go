package search

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/aretw0/teller/internal/logging"
	"github.com/aretw0/teller/pkg/ports"
	"github.com/hashicorp/go-retryablehttp"
	"github.com/sony/gobreaker"
)

// Searcher looks up policy documents.
type Searcher = ports.PolicySearcher

// DefaultTavilyEndpoint is the Tavily search API.
const DefaultTavilyEndpoint = "https://api.tavily.com/search"

// ErrMissingAPIKey is returned when no Tavily key is configured.
var ErrMissingAPIKey = errors.New("tavily: api key not configured")

// ErrUnavailable is returned while the circuit breaker is open.
var ErrUnavailable = errors.New("tavily: temporarily unavailable")

// TavilyConfig configures the Tavily client.
type TavilyConfig struct {
	APIKey     string        `mapstructure:"api_key" yaml:"api_key"`
	Endpoint   string        `mapstructure:"endpoint" yaml:"endpoint"`
	MaxResults int           `mapstructure:"max_results" yaml:"max_results"`
	Depth      string        `mapstructure:"depth" yaml:"depth"`
	Timeout    time.Duration `mapstructure:"timeout" yaml:"timeout"`

	// Breaker settings. Zero values pick the defaults.
	BreakerTimeout   time.Duration `mapstructure:"breaker_timeout" yaml:"breaker_timeout"`
	FailureThreshold float64       `mapstructure:"failure_threshold" yaml:"failure_threshold"`
	MinRequests      uint32        `mapstructure:"min_requests" yaml:"min_requests"`
}

// Tavily is a PolicySearcher backed by the Tavily API.
type Tavily struct {
	cfg     TavilyConfig
	client  *retryablehttp.Client
	breaker *gobreaker.CircuitBreaker
	logger  *slog.Logger
}

// TavilyOption configures a Tavily client.
type TavilyOption func(*Tavily)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) TavilyOption {
	return func(t *Tavily) { t.logger = logger }
}

// NewTavily creates a client guarded by a circuit breaker.
func NewTavily(cfg TavilyConfig, opts ...TavilyOption) *Tavily {
	if cfg.Endpoint == "" {
		cfg.Endpoint = DefaultTavilyEndpoint
	}
	if cfg.MaxResults == 0 {
		cfg.MaxResults = 3
	}
	if cfg.Depth == "" {
		cfg.Depth = "advanced"
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.BreakerTimeout == 0 {
		cfg.BreakerTimeout = 60 * time.Second
	}
	if cfg.FailureThreshold == 0 {
		cfg.FailureThreshold = 0.6
	}
	if cfg.MinRequests == 0 {
		cfg.MinRequests = 3
	}

	t := &Tavily{cfg: cfg, logger: logging.NewNop()}
	for _, opt := range opts {
		opt(t)
	}

	t.client = retryablehttp.NewClient()
	t.client.RetryMax = 1
	t.client.HTTPClient.Timeout = cfg.Timeout
	t.client.Logger = t.logger

	t.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "tavily",
		MaxRequests: 1,
		Timeout:     cfg.BreakerTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < cfg.MinRequests {
				return false
			}
			return float64(counts.TotalFailures)/float64(counts.Requests) >= cfg.FailureThreshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			t.logger.Warn("circuit breaker state changed", "breaker", name, "from", from.String(), "to", to.String())
		},
	})
	return t
}

// State reports the circuit breaker state.
func (t *Tavily) State() gobreaker.State { return t.breaker.State() }

type tavilyRequest struct {
	Query             string `json:"query"`
	SearchDepth       string `json:"search_depth"`
	IncludeAnswer     bool   `json:"include_answer"`
	IncludeRawContent bool   `json:"include_raw_content"`
	MaxResults        int    `json:"max_results"`
}

// Search runs query against Tavily.
func (t *Tavily) Search(ctx context.Context, query string) (*ports.SearchResponse, error) {
	if t.cfg.APIKey == "" {
		return nil, ErrMissingAPIKey
	}

	out, err := t.breaker.Execute(func() (any, error) {
		return t.do(ctx, query)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if err != nil {
		return nil, err
	}
	return out.(*ports.SearchResponse), nil
}

func (t *Tavily) do(ctx context.Context, query string) (*ports.SearchResponse, error) {
	body, err := json.Marshal(tavilyRequest{
		Query:             query,
		SearchDepth:       t.cfg.Depth,
		IncludeAnswer:     true,
		IncludeRawContent: true,
		MaxResults:        t.cfg.MaxResults,
	})
	if err != nil {
		return nil, fmt.Errorf("tavily: encode request: %w", err)
	}

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodPost, t.cfg.Endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("tavily: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+t.cfg.APIKey)

	resp, err := t.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("tavily search: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("tavily search: status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	var out ports.SearchResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("tavily search: decode: %w", err)
	}
	return &out, nil
}

// PolicyQuery builds the site-restricted query used for CRA policy lookups.
func PolicyQuery(year int, topic string) string {
	return fmt.Sprintf("site:canada.ca TFSA %d %s", year, topic)
}
