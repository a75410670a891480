package runtime

import (
	"context"
	"fmt"
	"io"
	"iter"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/aretw0/teller/pkg/domain"
	"github.com/aretw0/teller/pkg/graph"
	"github.com/google/uuid"
)

// DefaultMaxSteps bounds an execution when no explicit limit is configured.
const DefaultMaxSteps = 64

// Engine walks a compiled graph. It holds no per-run state and can serve
// any number of concurrent executions.
type Engine struct {
	graph    *graph.Graph
	logger   *slog.Logger
	hooks    domain.LifecycleHooks
	maxSteps int
	clock    func() time.Time
	newRunID func() string
}

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithLogger sets the structured logger used for step tracing.
func WithLogger(logger *slog.Logger) EngineOption {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithLifecycleHooks registers observability hooks.
func WithLifecycleHooks(hooks domain.LifecycleHooks) EngineOption {
	return func(e *Engine) {
		e.hooks = hooks
	}
}

// WithMaxSteps caps the number of node executions per run. Zero disables the cap.
func WithMaxSteps(n int) EngineOption {
	return func(e *Engine) {
		e.maxSteps = n
	}
}

// WithClock injects the time source used for event timestamps and durations.
func WithClock(clock func() time.Time) EngineOption {
	return func(e *Engine) {
		e.clock = clock
	}
}

// WithRunIDGenerator injects the generator for per-run correlation ids.
func WithRunIDGenerator(gen func() string) EngineOption {
	return func(e *Engine) {
		e.newRunID = gen
	}
}

// NewEngine creates an engine for g.
func NewEngine(g *graph.Graph, opts ...EngineOption) *Engine {
	e := &Engine{
		graph:    g,
		logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
		maxSteps: DefaultMaxSteps,
		clock:    time.Now,
		newRunID: func() string { return uuid.NewString() },
	}
	for _, opt := range opts {
		opt(e)
	}
	e.logger = e.logger.With("workflow", g.Name())
	return e
}

// Graph returns the workflow walked by the engine.
func (e *Engine) Graph() *graph.Graph { return e.graph }

// Execution is a single walk of the graph. Its steps are produced lazily
// by Steps and can only be consumed once.
type Execution struct {
	engine  *Engine
	ctx     context.Context
	runID   string
	state   *domain.State
	err     error
	steps   int
	stopped bool
	claimed atomic.Bool
}

// Start prepares an execution seeded with a private copy of initial.
// No node runs until Steps is iterated.
func (e *Engine) Start(ctx context.Context, initial *domain.State) *Execution {
	return &Execution{
		engine: e,
		ctx:    ctx,
		runID:  e.newRunID(),
		state:  initial.Clone(),
	}
}

// Run executes the whole workflow, calling observer after each step, and
// returns the final accumulated state. On failure the state reached so far
// is returned alongside the error.
func (e *Engine) Run(ctx context.Context, initial *domain.State, observer func(domain.Step)) (*domain.State, error) {
	x := e.Start(ctx, initial)
	for step := range x.Steps() {
		if observer != nil {
			observer(step)
		}
	}
	return x.State(), x.Err()
}

// RunID returns the correlation id of the execution.
func (x *Execution) RunID() string { return x.runID }

// State returns the accumulated state. After Steps is exhausted it is the final state.
func (x *Execution) State() *domain.State { return x.state }

// Err returns the error that halted the execution, if any.
func (x *Execution) Err() error { return x.err }

// Stopped reports whether the consumer abandoned the sequence before the end.
func (x *Execution) Stopped() bool { return x.stopped }

// Steps yields one (node, update) pair per completed node.
// A second call returns an empty sequence.
func (x *Execution) Steps() iter.Seq[domain.Step] {
	return func(yield func(domain.Step) bool) {
		if !x.claimed.CompareAndSwap(false, true) {
			return
		}
		x.walk(yield)
	}
}

func (x *Execution) walk(yield func(domain.Step) bool) {
	e := x.engine
	ctx := x.ctx
	e.fireWorkflow(ctx, domain.EventWorkflowStart, x)
	defer func() {
		e.fireWorkflow(ctx, domain.EventWorkflowEnd, x)
		if x.err != nil {
			e.logger.WarnContext(ctx, "workflow halted", "run_id", x.runID, "steps", x.steps, "error", x.err)
			return
		}
		e.logger.DebugContext(ctx, "workflow finished", "run_id", x.runID, "steps", x.steps, "stopped", x.stopped)
	}()

	current := e.graph.Entry()
	for current != graph.End {
		if err := ctx.Err(); err != nil {
			x.err = err
			return
		}
		if e.maxSteps > 0 && x.steps >= e.maxSteps {
			x.err = &domain.StepLimitExceededError{Limit: e.maxSteps}
			return
		}

		update, err := x.runNode(current)
		if err != nil {
			x.err = &domain.NodeExecutionError{Node: current, Cause: err}
			return
		}
		x.state = x.state.Merge(update)
		x.steps++

		if !yield(domain.Step{Node: current, Update: update}) {
			x.stopped = true
			return
		}

		next, err := e.graph.Next(current, x.state)
		if err != nil {
			x.err = err
			return
		}
		e.logger.DebugContext(ctx, "transition", "run_id", x.runID, "from", current, "to", next)
		current = next
	}
}

func (x *Execution) runNode(name string) (update domain.Update, err error) {
	e := x.engine
	fn, ok := e.graph.Node(name)
	if !ok {
		return domain.Update{}, &domain.UnknownNodeError{Node: name}
	}

	started := e.clock()
	if e.hooks.OnNodeEnter != nil {
		e.hooks.OnNodeEnter(x.ctx, &domain.NodeEvent{
			EventBase: x.base(domain.EventNodeEnter, started),
			Node:      name,
		})
	}
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
		finished := e.clock()
		if e.hooks.OnNodeLeave != nil {
			e.hooks.OnNodeLeave(x.ctx, &domain.NodeEvent{
				EventBase: x.base(domain.EventNodeLeave, finished),
				Node:      name,
				Duration:  finished.Sub(started),
				Err:       err,
			})
		}
	}()

	e.logger.DebugContext(x.ctx, "enter node", "run_id", x.runID, "node", name)
	return fn(x.ctx, x.state.Clone())
}

func (x *Execution) base(t domain.EventType, at time.Time) domain.EventBase {
	return domain.EventBase{
		Timestamp: at,
		Type:      t,
		Workflow:  x.engine.graph.Name(),
		RunID:     x.runID,
	}
}

func (e *Engine) fireWorkflow(ctx context.Context, t domain.EventType, x *Execution) {
	hook := e.hooks.OnWorkflowStart
	if t == domain.EventWorkflowEnd {
		hook = e.hooks.OnWorkflowEnd
	}
	if hook == nil {
		return
	}
	hook(ctx, &domain.WorkflowEvent{
		EventBase: x.base(t, e.clock()),
		Steps:     x.steps,
		Err:       x.err,
	})
}
