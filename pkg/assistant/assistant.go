package assistant

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/aretw0/teller"
	"github.com/aretw0/teller/internal/logging"
	"github.com/aretw0/teller/pkg/domain"
	"github.com/aretw0/teller/pkg/graph"
)

// Runtime carries the engine settings common to every workflow.
type Runtime struct {
	Logger   *slog.Logger
	Hooks    domain.LifecycleHooks
	MaxSteps int
	// Clock drives lifecycle event timestamps. Defaults to time.Now.
	Clock func() time.Time
	// RunID overrides the run id generator.
	RunID func() string
}

// Log returns the configured logger or a no-op one.
func (r Runtime) Log() *slog.Logger {
	if r.Logger == nil {
		return logging.NewNop()
	}
	return r.Logger
}

// Engine builds an engine for g with the runtime settings applied.
func (r Runtime) Engine(g *graph.Graph) *teller.Engine {
	opts := []teller.Option{
		teller.WithLogger(r.Log()),
		teller.WithLifecycleHooks(r.Hooks),
	}
	if r.MaxSteps != 0 {
		opts = append(opts, teller.WithMaxSteps(r.MaxSteps))
	}
	if r.Clock != nil {
		opts = append(opts, teller.WithClock(r.Clock))
	}
	if r.RunID != nil {
		opts = append(opts, teller.WithRunIDGenerator(r.RunID))
	}
	return teller.New(g, opts...)
}

// Input seeds a workflow state with the user request.
func Input(input, userID string, extra map[string]any) *domain.State {
	fields := map[string]any{"user_input": input, "user_id": userID}
	for k, v := range extra {
		fields[k] = v
	}
	s := domain.NewState(fields)
	s.Messages = []domain.Message{{Role: domain.RoleUser, Content: input}}
	return s
}

// Reply returns the last assistant message of s, falling back to the last
// non-user message when the workflow stopped before answering.
func Reply(s *domain.State) string {
	if m, ok := s.LastMessageByRole(domain.RoleAssistant); ok {
		return m.Content
	}
	if m, ok := s.LastMessage(func(m domain.Message) bool { return m.Role != domain.RoleUser }); ok {
		return m.Content
	}
	return ""
}

// Money formats a dollar amount with two decimals.
func Money(v float64) string {
	return fmt.Sprintf("$%.2f", v)
}

// Service is a workflow the chat router can dispatch a request to.
type Service interface {
	// Name is the routing key, e.g. "tfsa".
	Name() string
	// Handle runs the workflow for input and returns the user-facing reply.
	// On failure the Outcome still identifies the run.
	Handle(ctx context.Context, input, userID string) (Outcome, error)
}

// Outcome is the transport-neutral result of a Service call.
type Outcome struct {
	Service       string         `json:"service"`
	UserID        string         `json:"user_id"`
	RunID         string         `json:"run_id,omitempty"`
	Response      string         `json:"response"`
	TransactionID string         `json:"transaction_id,omitempty"`
	Details       map[string]any `json:"details,omitempty"`
	// Steps lists the nodes that ran, in order.
	Steps     []string  `json:"steps,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}
