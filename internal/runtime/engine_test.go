package runtime_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/aretw0/teller/internal/runtime"
	"github.com/aretw0/teller/pkg/domain"
	"github.com/aretw0/teller/pkg/graph"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func say(field string, value any, msg string) domain.NodeFunc {
	return func(context.Context, *domain.State) (domain.Update, error) {
		return domain.Update{
			Fields:   map[string]any{field: value},
			Messages: []domain.Message{{Role: domain.RoleAssistant, Content: msg}},
		}, nil
	}
}

func linearGraph(t *testing.T) *graph.Graph {
	t.Helper()
	b := graph.New("linear")
	require.NoError(t, b.AddNode("a", say("x", 1, "m1")))
	require.NoError(t, b.AddNode("b", say("y", 2, "m2")))
	require.NoError(t, b.SetEntry("a"))
	require.NoError(t, b.AddEdge("a", "b"))
	require.NoError(t, b.AddEdge("b", graph.End))
	g, err := b.Compile()
	require.NoError(t, err)
	return g
}

func diamondGraph(t *testing.T, visits *[]string) *graph.Graph {
	t.Helper()
	record := func(name string) domain.NodeFunc {
		return func(context.Context, *domain.State) (domain.Update, error) {
			*visits = append(*visits, name)
			return domain.Update{Messages: []domain.Message{{Role: domain.RoleAssistant, Content: name}}}, nil
		}
	}
	b := graph.New("diamond")
	require.NoError(t, b.AddNode("A", func(_ context.Context, s *domain.State) (domain.Update, error) {
		*visits = append(*visits, "A")
		return domain.Update{Signals: map[string]any{"flag": s.Bool("flag")}}, nil
	}))
	require.NoError(t, b.AddNode("B", record("B")))
	require.NoError(t, b.AddNode("C", record("C")))
	require.NoError(t, b.AddNode("D", record("D")))
	require.NoError(t, b.SetEntry("A"))
	require.NoError(t, b.AddConditionalEdge("A", graph.Selector{
		Labels: []string{"yes", "no"},
		Choose: func(s *domain.State) string {
			if s.BoolSignal("flag") {
				return "yes"
			}
			return "no"
		},
	}, map[string]string{"yes": "B", "no": "C"}))
	require.NoError(t, b.AddEdge("B", "D"))
	require.NoError(t, b.AddEdge("C", "D"))
	require.NoError(t, b.AddEdge("D", graph.End))
	g, err := b.Compile()
	require.NoError(t, err)
	return g
}

func TestEngine_LinearRun(t *testing.T) {
	engine := runtime.NewEngine(linearGraph(t))

	x := engine.Start(context.Background(), domain.NewState(nil))
	var nodes []string
	for step := range x.Steps() {
		nodes = append(nodes, step.Node)
	}

	require.NoError(t, x.Err())
	assert.Equal(t, []string{"a", "b"}, nodes)

	final := x.State()
	assert.Equal(t, 1, final.Fields["x"])
	assert.Equal(t, 2, final.Fields["y"])
	require.Len(t, final.Messages, 2)
	assert.Equal(t, "m1", final.Messages[0].Content)
	assert.Equal(t, "m2", final.Messages[1].Content)
}

func TestEngine_StepsIsSingleUse(t *testing.T) {
	engine := runtime.NewEngine(linearGraph(t))
	x := engine.Start(context.Background(), nil)

	first := 0
	for range x.Steps() {
		first++
	}
	second := 0
	for range x.Steps() {
		second++
	}

	assert.Equal(t, 2, first)
	assert.Zero(t, second)
}

func TestEngine_ConsumerStopsEarly(t *testing.T) {
	engine := runtime.NewEngine(linearGraph(t))
	x := engine.Start(context.Background(), nil)

	for range x.Steps() {
		break
	}

	assert.True(t, x.Stopped())
	assert.NoError(t, x.Err())
	assert.Len(t, x.State().Messages, 1)
}

func TestEngine_DiamondTakesOneBranch(t *testing.T) {
	tests := []struct {
		flag bool
		want []string
	}{
		{true, []string{"A", "B", "D"}},
		{false, []string{"A", "C", "D"}},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("flag=%v", tt.flag), func(t *testing.T) {
			var visits []string
			engine := runtime.NewEngine(diamondGraph(t, &visits))

			var steps []string
			_, err := engine.Run(context.Background(), domain.NewState(map[string]any{"flag": tt.flag}), func(s domain.Step) {
				steps = append(steps, s.Node)
			})

			require.NoError(t, err)
			assert.Equal(t, tt.want, steps)
			assert.Equal(t, tt.want, visits)
		})
	}
}

func TestEngine_BranchMappingErrorAfterStep(t *testing.T) {
	b := graph.New("bad-branch")
	require.NoError(t, b.AddNode("a", say("x", 1, "hi")))
	require.NoError(t, b.SetEntry("a"))
	require.NoError(t, b.AddConditionalEdge("a", graph.Selector{
		Choose: func(*domain.State) string { return "surprise" },
	}, map[string]string{"known": graph.End}))
	g, err := b.Compile()
	require.NoError(t, err)

	var steps []string
	_, err = runtime.NewEngine(g).Run(context.Background(), nil, func(s domain.Step) {
		steps = append(steps, s.Node)
	})

	assert.Equal(t, []string{"a"}, steps)
	var mapping *domain.BranchMappingError
	require.ErrorAs(t, err, &mapping)
	assert.Equal(t, "surprise", mapping.Label)
}

func TestEngine_SelectorPanicHalts(t *testing.T) {
	b := graph.New("panicky-branch")
	require.NoError(t, b.AddNode("a", say("x", 1, "hi")))
	require.NoError(t, b.SetEntry("a"))
	require.NoError(t, b.AddConditionalEdge("a", graph.Selector{
		Choose: func(*domain.State) string { panic("selector bug") },
	}, map[string]string{"known": graph.End}))
	g, err := b.Compile()
	require.NoError(t, err)

	final, err := runtime.NewEngine(g).Run(context.Background(), nil, nil)

	var mapping *domain.BranchMappingError
	require.ErrorAs(t, err, &mapping)
	assert.Contains(t, err.Error(), "selector bug")
	x, ok := final.Get("x")
	require.True(t, ok, "updates merged before the failure are kept")
	assert.Equal(t, 1, x)
}

func TestEngine_NodeFailureHalts(t *testing.T) {
	boom := errors.New("collaborator down")
	b := graph.New("failing")
	require.NoError(t, b.AddNode("a", say("x", 1, "ok")))
	require.NoError(t, b.AddNode("b", func(context.Context, *domain.State) (domain.Update, error) {
		return domain.Update{}, boom
	}))
	require.NoError(t, b.AddNode("c", say("z", 3, "never")))
	require.NoError(t, b.SetEntry("a"))
	require.NoError(t, b.AddEdge("a", "b"))
	require.NoError(t, b.AddEdge("b", "c"))
	require.NoError(t, b.AddEdge("c", graph.End))
	g, err := b.Compile()
	require.NoError(t, err)

	var steps []string
	final, err := runtime.NewEngine(g).Run(context.Background(), nil, func(s domain.Step) {
		steps = append(steps, s.Node)
	})

	assert.Equal(t, []string{"a"}, steps)
	var nodeErr *domain.NodeExecutionError
	require.ErrorAs(t, err, &nodeErr)
	assert.Equal(t, "b", nodeErr.Node)
	assert.ErrorIs(t, err, boom)
	_, reached := final.Get("z")
	assert.False(t, reached)
}

func TestEngine_PanicBecomesNodeError(t *testing.T) {
	b := graph.New("panicky")
	require.NoError(t, b.AddNode("a", func(context.Context, *domain.State) (domain.Update, error) {
		panic("unexpected")
	}))
	require.NoError(t, b.SetEntry("a"))
	require.NoError(t, b.AddEdge("a", graph.End))

	_, err := runtime.NewEngine(b.MustCompile()).Run(context.Background(), nil, nil)

	var nodeErr *domain.NodeExecutionError
	require.ErrorAs(t, err, &nodeErr)
	assert.Contains(t, err.Error(), "unexpected")
}

func TestEngine_MissingEdge(t *testing.T) {
	b := graph.New("stub")
	require.NoError(t, b.AddNode("a", say("x", 1, "hi")))
	require.NoError(t, b.SetEntry("a"))

	_, err := runtime.NewEngine(b.MustCompile()).Run(context.Background(), nil, nil)

	var missing *domain.MissingEdgeError
	assert.ErrorAs(t, err, &missing)
}

func TestEngine_StepLimit(t *testing.T) {
	b := graph.New("loop")
	require.NoError(t, b.AddNode("spin", say("x", 1, "again")))
	require.NoError(t, b.SetEntry("spin"))
	require.NoError(t, b.AddEdge("spin", "spin"))
	g := b.MustCompile()

	final, err := runtime.NewEngine(g, runtime.WithMaxSteps(3)).Run(context.Background(), nil, nil)

	var limit *domain.StepLimitExceededError
	require.ErrorAs(t, err, &limit)
	assert.Equal(t, 3, limit.Limit)
	assert.Len(t, final.Messages, 3)
}

func TestEngine_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	b := graph.New("cancel")
	require.NoError(t, b.AddNode("a", func(context.Context, *domain.State) (domain.Update, error) {
		cancel()
		return domain.Update{}, nil
	}))
	require.NoError(t, b.AddNode("b", say("x", 1, "never")))
	require.NoError(t, b.SetEntry("a"))
	require.NoError(t, b.AddEdge("a", "b"))
	require.NoError(t, b.AddEdge("b", graph.End))

	var steps []string
	_, err := runtime.NewEngine(b.MustCompile()).Run(ctx, nil, func(s domain.Step) {
		steps = append(steps, s.Node)
	})

	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, []string{"a"}, steps)
}

func TestEngine_NodesReceiveCopies(t *testing.T) {
	b := graph.New("mutator")
	require.NoError(t, b.AddNode("a", func(_ context.Context, s *domain.State) (domain.Update, error) {
		s.Fields["secret"] = "leaked"
		return domain.Update{}, nil
	}))
	require.NoError(t, b.SetEntry("a"))
	require.NoError(t, b.AddEdge("a", graph.End))

	initial := domain.NewState(nil)
	final, err := runtime.NewEngine(b.MustCompile()).Run(context.Background(), initial, nil)

	require.NoError(t, err)
	_, leaked := final.Get("secret")
	assert.False(t, leaked)
	assert.Empty(t, initial.Fields)
}

func TestEngine_ConcurrentRunsAreIsolated(t *testing.T) {
	b := graph.New("echo")
	require.NoError(t, b.AddNode("echo", func(_ context.Context, s *domain.State) (domain.Update, error) {
		time.Sleep(time.Millisecond)
		return domain.Update{Messages: []domain.Message{{Role: domain.RoleAssistant, Content: s.String("input")}}}, nil
	}))
	require.NoError(t, b.SetEntry("echo"))
	require.NoError(t, b.AddEdge("echo", graph.End))
	engine := runtime.NewEngine(b.MustCompile())

	var wg sync.WaitGroup
	results := make([]*domain.State, 20)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], _ = engine.Run(context.Background(), domain.NewState(map[string]any{"input": fmt.Sprint(i)}), nil)
		}(i)
	}
	wg.Wait()

	for i, s := range results {
		require.Len(t, s.Messages, 1)
		assert.Equal(t, fmt.Sprint(i), s.Messages[0].Content)
	}
}

func TestEngine_LifecycleHooks(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	clock := func() time.Time {
		now = now.Add(time.Second)
		return now
	}

	var entered, left []string
	var durations []time.Duration
	var ended *domain.WorkflowEvent
	hooks := domain.LifecycleHooks{
		OnNodeEnter: func(_ context.Context, e *domain.NodeEvent) { entered = append(entered, e.Node) },
		OnNodeLeave: func(_ context.Context, e *domain.NodeEvent) {
			left = append(left, e.Node)
			durations = append(durations, e.Duration)
		},
		OnWorkflowEnd: func(_ context.Context, e *domain.WorkflowEvent) { ended = e },
	}

	engine := runtime.NewEngine(linearGraph(t),
		runtime.WithLifecycleHooks(hooks),
		runtime.WithClock(clock),
		runtime.WithRunIDGenerator(func() string { return "run-1" }),
	)
	_, err := engine.Run(context.Background(), nil, nil)
	require.NoError(t, err)

	assert.Equal(t, []string{"a", "b"}, entered)
	assert.Equal(t, []string{"a", "b"}, left)
	assert.Equal(t, []time.Duration{time.Second, time.Second}, durations)
	require.NotNil(t, ended)
	assert.Equal(t, "run-1", ended.RunID)
	assert.Equal(t, 2, ended.Steps)
	assert.Equal(t, "success", ended.Outcome())
}

func TestEngine_Deterministic(t *testing.T) {
	type trace struct {
		steps  []domain.Step
		final  *domain.State
		events []domain.NodeEvent
		runID  string
	}
	run := func() trace {
		now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
		var tr trace
		hooks := domain.LifecycleHooks{
			OnNodeEnter: func(_ context.Context, e *domain.NodeEvent) { tr.events = append(tr.events, *e) },
			OnNodeLeave: func(_ context.Context, e *domain.NodeEvent) { tr.events = append(tr.events, *e) },
		}
		var visits []string
		engine := runtime.NewEngine(diamondGraph(t, &visits),
			runtime.WithLifecycleHooks(hooks),
			runtime.WithClock(func() time.Time {
				now = now.Add(time.Millisecond)
				return now
			}),
			runtime.WithRunIDGenerator(func() string { return "run-fixed" }),
		)
		x := engine.Start(context.Background(), domain.NewState(map[string]any{"flag": true}))
		for step := range x.Steps() {
			tr.steps = append(tr.steps, step)
		}
		require.NoError(t, x.Err())
		tr.final = x.State()
		tr.runID = x.RunID()
		return tr
	}

	first, second := run(), run()

	assert.Equal(t, first.steps, second.steps)
	assert.Equal(t, first.final, second.final)
	assert.Equal(t, first.events, second.events)
	assert.Equal(t, "run-fixed", second.runID)
	require.Len(t, first.steps, 3)
	assert.Equal(t, []string{"A", "B", "D"}, []string{first.steps[0].Node, first.steps[1].Node, first.steps[2].Node})
}
