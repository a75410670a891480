package router

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/aretw0/teller/internal/logging"
	"github.com/aretw0/teller/pkg/assistant"
)

// Invocation names a component that took part in answering a message.
type Invocation struct {
	Type string `json:"type"`
	Name string `json:"name"`
}

// Reply is the answer to a routed message.
type Reply struct {
	Service        string            `json:"service"`
	Classification Classification    `json:"classification"`
	Response       string            `json:"response"`
	Components     []Invocation      `json:"components"`
	Outcome        assistant.Outcome `json:"outcome"`
}

// Router dispatches messages to services.
type Router struct {
	classifier *Classifier
	services   map[string]assistant.Service
	logger     *slog.Logger
}

// Option configures a Router.
type Option func(*Router)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Router) { r.logger = logger }
}

// New creates a Router. Every route of the classifier needs a service.
func New(classifier *Classifier, services []assistant.Service, opts ...Option) (*Router, error) {
	r := &Router{
		classifier: classifier,
		services:   make(map[string]assistant.Service, len(services)),
		logger:     logging.NewNop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	for _, s := range services {
		r.services[s.Name()] = s
	}
	for _, name := range classifier.Services() {
		if _, ok := r.services[name]; !ok {
			return nil, fmt.Errorf("router: no service registered for route %q", name)
		}
	}
	return r, nil
}

// Handle classifies message and runs the selected service.
func (r *Router) Handle(ctx context.Context, message, userID string) (Reply, error) {
	cls := r.classifier.Classify(ctx, message)
	r.logger.InfoContext(ctx, "routing message", "service", cls.Service, "method", cls.Method)

	svc := r.services[cls.Service]
	out, err := svc.Handle(ctx, message, userID)
	if err != nil {
		return Reply{Service: cls.Service, Classification: cls, Outcome: out}, fmt.Errorf("%s: %w", cls.Service, err)
	}

	components := []Invocation{{Type: "workflow", Name: svc.Name()}}
	for _, node := range out.Steps {
		components = append(components, Invocation{Type: "node", Name: node})
	}
	return Reply{
		Service:        cls.Service,
		Classification: cls,
		Response:       out.Response,
		Components:     components,
		Outcome:        out,
	}, nil
}
