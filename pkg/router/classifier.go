package router

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/aretw0/teller/internal/logging"
	"github.com/aretw0/teller/pkg/llm"
)

// Method records how a classification was reached.
type Method string

const (
	MethodModel   Method = "model"
	MethodKeyword Method = "keyword"
	MethodDefault Method = "default"
)

// Classification is the routing decision for a message.
type Classification struct {
	Service string `json:"service"`
	Method  Method `json:"method"`
}

// Route describes one service to the classifier.
type Route struct {
	// Service is the routing key, matching assistant.Service.Name.
	Service string
	// Label is the name the language model is asked to answer with.
	Label string
	// Description is shown to the model next to the label.
	Description string
	// Keywords are matched case-insensitively as substrings. Routes are
	// tried in order, so earlier routes win ties.
	Keywords []string
}

// DefaultRoutes returns the TFSA and e-Transfer routes.
func DefaultRoutes() []Route {
	return []Route{
		{
			Service:     "tfsa",
			Label:       "TFSA",
			Description: "Tax-Free Savings Account questions, contribution room, withdrawals",
			Keywords:    []string{"tfsa", "contribution", "room", "tax-free", "tsfa", "savings account"},
		},
		{
			Service:     "etransfer",
			Label:       "e-Transfer",
			Description: "Electronic transfers, sending money, transfer limits",
			Keywords:    []string{"e-transfer", "transfer", "limit", "increase", "send money", "interac"},
		},
	}
}

// Classifier maps messages to services.
type Classifier struct {
	model    llm.Model
	routes   []Route
	fallback string
	logger   *slog.Logger
}

// ClassifierOption configures a Classifier.
type ClassifierOption func(*Classifier)

// WithModel enables model-based classification.
func WithModel(m llm.Model) ClassifierOption {
	return func(c *Classifier) { c.model = m }
}

// WithRoutes replaces DefaultRoutes.
func WithRoutes(routes ...Route) ClassifierOption {
	return func(c *Classifier) { c.routes = routes }
}

// WithDefault sets the service used when nothing else matches.
// It defaults to the first route.
func WithDefault(service string) ClassifierOption {
	return func(c *Classifier) { c.fallback = service }
}

// WithClassifierLogger sets the logger.
func WithClassifierLogger(logger *slog.Logger) ClassifierOption {
	return func(c *Classifier) { c.logger = logger }
}

// NewClassifier builds a classifier. The default service must be one of
// the routes.
func NewClassifier(opts ...ClassifierOption) (*Classifier, error) {
	c := &Classifier{routes: DefaultRoutes(), logger: logging.NewNop()}
	for _, opt := range opts {
		opt(c)
	}
	if len(c.routes) == 0 {
		return nil, fmt.Errorf("router: no routes configured")
	}
	if c.fallback == "" {
		c.fallback = c.routes[0].Service
	}
	if _, ok := c.route(c.fallback); !ok {
		return nil, fmt.Errorf("router: default service %q has no route", c.fallback)
	}
	return c, nil
}

// Services lists the routed service names in order.
func (c *Classifier) Services() []string {
	out := make([]string, len(c.routes))
	for i, r := range c.routes {
		out[i] = r.Service
	}
	return out
}

func (c *Classifier) route(service string) (Route, bool) {
	for _, r := range c.routes {
		if r.Service == service {
			return r, true
		}
	}
	return Route{}, false
}

// Classify picks the service for input.
func (c *Classifier) Classify(ctx context.Context, input string) Classification {
	if c.model != nil {
		if service, ok := c.ask(ctx, input); ok {
			return Classification{Service: service, Method: MethodModel}
		}
	}

	lower := strings.ToLower(input)
	for _, r := range c.routes {
		for _, kw := range r.Keywords {
			if strings.Contains(lower, kw) {
				return Classification{Service: r.Service, Method: MethodKeyword}
			}
		}
	}
	return Classification{Service: c.fallback, Method: MethodDefault}
}

func (c *Classifier) ask(ctx context.Context, input string) (string, bool) {
	var b strings.Builder
	b.WriteString("Classify this banking query into one of these categories:\n")
	labels := make([]string, 0, len(c.routes))
	for _, r := range c.routes {
		fmt.Fprintf(&b, "- %s: %s\n", r.Label, r.Description)
		labels = append(labels, fmt.Sprintf("%q", r.Label))
	}
	fmt.Fprintf(&b, "\nQuery: %q\n\nRespond ONLY with %s (no other text)", input, strings.Join(labels, " or "))

	out, err := c.model.Invoke(ctx, b.String())
	if err != nil {
		c.logger.WarnContext(ctx, "classification model failed, using keywords", "err", err)
		return "", false
	}

	answer := strings.Trim(strings.TrimSpace(out), `"'`+"`")
	for _, r := range c.routes {
		if strings.EqualFold(answer, r.Label) {
			return r.Service, true
		}
	}
	c.logger.DebugContext(ctx, "unrecognized classification", "answer", answer)
	return "", false
}
