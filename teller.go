package teller

import (
	"context"
	"log/slog"
	"time"

	"github.com/aretw0/teller/internal/runtime"
	"github.com/aretw0/teller/pkg/domain"
	"github.com/aretw0/teller/pkg/graph"
)

// Engine is the high-level entry point for running a workflow graph.
// It wraps the internal runtime and is safe for concurrent use.
type Engine struct {
	runtime     *runtime.Engine
	hooks       domain.LifecycleHooks
	logger      *slog.Logger
	runtimeOpts []runtime.EngineOption
}

// Execution is a single run of a workflow.
type Execution = runtime.Execution

// Option defines a functional option for configuring the Engine.
type Option func(*Engine)

// WithLifecycleHooks registers observability hooks.
func WithLifecycleHooks(hooks domain.LifecycleHooks) Option {
	return func(e *Engine) {
		e.hooks = hooks
	}
}

// WithLogger sets a custom structured logger for the engine.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

// WithMaxSteps caps node executions per run (0 disables the cap).
func WithMaxSteps(n int) Option {
	return func(e *Engine) {
		e.runtimeOpts = append(e.runtimeOpts, runtime.WithMaxSteps(n))
	}
}

// WithClock injects the time source used by lifecycle events.
func WithClock(clock func() time.Time) Option {
	return func(e *Engine) {
		e.runtimeOpts = append(e.runtimeOpts, runtime.WithClock(clock))
	}
}

// WithRunIDGenerator injects the generator for run correlation ids.
func WithRunIDGenerator(gen func() string) Option {
	return func(e *Engine) {
		e.runtimeOpts = append(e.runtimeOpts, runtime.WithRunIDGenerator(gen))
	}
}

// New initializes an Engine for a compiled graph.
func New(g *graph.Graph, opts ...Option) *Engine {
	eng := &Engine{}
	for _, opt := range opts {
		opt(eng)
	}

	runtimeOpts := []runtime.EngineOption{
		runtime.WithLifecycleHooks(eng.hooks),
		runtime.WithLogger(eng.logger),
	}
	runtimeOpts = append(runtimeOpts, eng.runtimeOpts...)

	eng.runtime = runtime.NewEngine(g, runtimeOpts...)
	return eng
}

// Graph returns the workflow definition executed by the engine.
func (e *Engine) Graph() *graph.Graph {
	return e.runtime.Graph()
}

// Start prepares a lazy execution seeded with initial.
func (e *Engine) Start(ctx context.Context, initial *domain.State) *Execution {
	return e.runtime.Start(ctx, initial)
}

// Run executes the workflow to completion, calling observer after every step.
func (e *Engine) Run(ctx context.Context, initial *domain.State, observer func(domain.Step)) (*domain.State, error) {
	return e.runtime.Run(ctx, initial, observer)
}
