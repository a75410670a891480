package observability_test

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/aretw0/teller"
	"github.com/aretw0/teller/pkg/domain"
	"github.com/aretw0/teller/pkg/graph"
	"github.com/aretw0/teller/pkg/observability"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func buildGraph(t *testing.T, fail bool) *graph.Graph {
	t.Helper()
	b := graph.New("metered")
	require.NoError(t, b.AddNode("a", func(context.Context, *domain.State) (domain.Update, error) {
		return domain.Update{}, nil
	}))
	require.NoError(t, b.AddNode("b", func(context.Context, *domain.State) (domain.Update, error) {
		if fail {
			return domain.Update{}, errors.New("down")
		}
		return domain.Update{}, nil
	}))
	require.NoError(t, b.SetEntry("a"))
	require.NoError(t, b.AddEdge("a", "b"))
	require.NoError(t, b.AddEdge("b", graph.End))
	g, err := b.Compile()
	require.NoError(t, err)
	return g
}

func TestMetrics_Hooks(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := observability.NewMetrics(reg)

	ok := teller.New(buildGraph(t, false), teller.WithLifecycleHooks(m.Hooks()))
	_, err := ok.Run(context.Background(), nil, nil)
	require.NoError(t, err)

	failing := teller.New(buildGraph(t, true), teller.WithLifecycleHooks(m.Hooks()))
	_, err = failing.Run(context.Background(), nil, nil)
	require.Error(t, err)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.NodeVisits.WithLabelValues("metered", "a")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.NodeErrors.WithLabelValues("metered", "b")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Runs.WithLabelValues("metered", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Runs.WithLabelValues("metered", "error")))
	assert.Equal(t, 2, testutil.CollectAndCount(m.NodeDuration))
}

func TestChain_FansOut(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	var entered []string
	counter := domain.LifecycleHooks{
		OnNodeEnter: func(_ context.Context, e *domain.NodeEvent) { entered = append(entered, e.Node) },
	}

	hooks := observability.Chain(counter, observability.LogHooks(logger), domain.LifecycleHooks{})
	_, err := teller.New(buildGraph(t, false), teller.WithLifecycleHooks(hooks)).Run(context.Background(), nil, nil)
	require.NoError(t, err)

	assert.Equal(t, []string{"a", "b"}, entered)
	assert.Contains(t, buf.String(), "node enter")
	assert.Contains(t, buf.String(), "workflow end")
}
