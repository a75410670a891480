package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/aretw0/teller"
	"github.com/aretw0/teller/internal/logging"
	"github.com/aretw0/teller/pkg/domain"
	"github.com/aretw0/teller/pkg/graph"
	"github.com/aretw0/teller/pkg/router"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-playground/validator/v10"
	"github.com/getkin/kin-openapi/routers"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/time/rate"
)

// Workflow is a runnable assistant.
type Workflow interface {
	Name() string
	Graph() *graph.Graph
	Stream(ctx context.Context, input, userID string) *teller.Execution
}

// ChatRouter answers free-text messages.
type ChatRouter interface {
	Handle(ctx context.Context, message, userID string) (router.Reply, error)
}

// Endpoint pairs a workflow with the function that turns its final state
// into the response body.
type Endpoint struct {
	Workflow Workflow
	Result   func(*domain.State) any
}

// Config wires the HTTP API.
type Config struct {
	TFSA     Endpoint
	Transfer Endpoint
	Chat     ChatRouter

	// Gatherer backs /metrics. Defaults to prometheus.DefaultGatherer.
	Gatherer prometheus.Gatherer
	// Registerer receives the HTTP request metrics. Nil disables them.
	Registerer prometheus.Registerer

	Logger *slog.Logger
	// Clock stamps error responses. Defaults to time.Now.
	Clock          func() time.Time
	AllowedOrigins []string
	MaxInputSize   int
	// ContributionRate limits contribution requests per client.
	// Defaults to 5 per minute.
	ContributionRate  rate.Limit
	ContributionBurst int
}

// Server is the HTTP API.
type Server struct {
	cfg      Config
	logger   *slog.Logger
	validate *validator.Validate
	spec     routers.Router
	limiter  *clientLimiter
	requests *prometheus.CounterVec
}

// NewHandler builds the API router.
func NewHandler(cfg Config) http.Handler {
	if cfg.Logger == nil {
		cfg.Logger = logging.NewNop()
	}
	if cfg.Gatherer == nil {
		cfg.Gatherer = prometheus.DefaultGatherer
	}
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}
	if len(cfg.AllowedOrigins) == 0 {
		cfg.AllowedOrigins = []string{"*"}
	}
	if cfg.ContributionRate == 0 {
		cfg.ContributionRate = rate.Every(time.Minute / 5)
	}
	if cfg.ContributionBurst == 0 {
		cfg.ContributionBurst = 5
	}

	spec, err := newSpecRouter(context.Background())
	if err != nil {
		panic(fmt.Sprintf("http: embedded OpenAPI document: %v", err))
	}
	s := &Server{
		cfg:      cfg,
		logger:   cfg.Logger,
		validate: newValidator(),
		spec:     spec,
		limiter:  newClientLimiter(cfg.ContributionRate, cfg.ContributionBurst),
	}
	if cfg.Registerer != nil {
		s.requests = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "teller",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "HTTP requests by route pattern and status code.",
		}, []string{"route", "code"})
		if err := cfg.Registerer.Register(s.requests); err != nil {
			var already prometheus.AlreadyRegisteredError
			if errors.As(err, &already) {
				s.requests = already.ExistingCollector.(*prometheus.CounterVec)
			} else {
				s.logger.Warn("http metrics disabled", "err", err)
				s.requests = nil
			}
		}
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(s.logRequests)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: cfg.AllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		ExposedHeaders: []string{"X-Request-ID"},
		MaxAge:         300,
	}))

	r.Get("/health", s.health)
	r.Handle("/metrics", promhttp.HandlerFor(cfg.Gatherer, promhttp.HandlerOpts{}))
	r.Get("/openapi.yaml", s.openapiSpec)
	r.Get("/swagger", s.swagger)

	r.Route("/v1", func(r chi.Router) {
		// Invalid contribution requests still spend a token.
		limited := r.With(s.rateLimit, s.validateRequest)
		validated := r.With(s.validateRequest)
		if cfg.TFSA.Workflow != nil {
			limited.Post("/tfsa/contribution", s.workflowHandler(cfg.TFSA))
		}
		if cfg.Transfer.Workflow != nil {
			validated.Post("/etransfer/limit", s.workflowHandler(cfg.Transfer))
		}
		if cfg.Chat != nil {
			validated.Post("/chat", s.chat)
		}
		validated.Get("/workflows/{name}/graph", s.graph)
	})
	// Path kept for clients of the first API revision.
	if cfg.TFSA.Workflow != nil {
		r.With(s.rateLimit, s.validateRequest).Post("/tfsa-contribution", s.workflowHandler(cfg.TFSA))
	}

	return r
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := chi.RouteContext(r.Context()).RoutePattern()
		if route == "" {
			route = "unmatched"
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		if s.requests != nil {
			s.requests.WithLabelValues(route, strconv.Itoa(status)).Inc()
		}
		s.logger.InfoContext(r.Context(), "http request",
			"method", r.Method,
			"route", route,
			"status", status,
			"duration", time.Since(start),
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}

type errorResponse struct {
	Error   string   `json:"error"`
	Details []string `json:"details,omitempty"`

	// Set when a workflow run failed.
	Service   string    `json:"service,omitempty"`
	UserID    string    `json:"user_id,omitempty"`
	RunID     string    `json:"run_id,omitempty"`
	Timestamp time.Time `json:"timestamp,omitzero"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string, details ...string) {
	writeJSON(w, status, errorResponse{Error: msg, Details: details})
}
