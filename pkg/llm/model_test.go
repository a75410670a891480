package llm_test

import (
	"context"
	"testing"

	"github.com/aretw0/teller/pkg/llm"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractJSON(t *testing.T) {
	type summary struct {
		PolicySummary      string `json:"policy_summary"`
		NeedsCurrentSearch bool   `json:"needs_current_search"`
	}

	t.Run("plain object", func(t *testing.T) {
		var s summary
		require.NoError(t, llm.ExtractJSON(`{"policy_summary":"ok","needs_current_search":true}`, &s))
		assert.Equal(t, "ok", s.PolicySummary)
		assert.True(t, s.NeedsCurrentSearch)
	})

	t.Run("wrapped in prose", func(t *testing.T) {
		var s summary
		text := "Sure! Here it is:\n```json\n{\"policy_summary\": \"rules\", \"needs_current_search\": false}\n```"
		require.NoError(t, llm.ExtractJSON(text, &s))
		assert.Equal(t, "rules", s.PolicySummary)
	})

	t.Run("no object", func(t *testing.T) {
		var s summary
		assert.ErrorIs(t, llm.ExtractJSON("I cannot help with that", &s), llm.ErrNoJSON)
	})

	t.Run("broken object", func(t *testing.T) {
		var s summary
		assert.ErrorIs(t, llm.ExtractJSON("{not json}", &s), llm.ErrNoJSON)
	})
}

func TestFunc(t *testing.T) {
	var m llm.Model = llm.Func(func(_ context.Context, p string) (string, error) { return "echo: " + p, nil })
	out, err := m.Invoke(context.Background(), "hi")
	require.NoError(t, err)
	assert.Equal(t, "echo: hi", out)

	out, err = llm.Static("fixed").Invoke(context.Background(), "anything")
	require.NoError(t, err)
	assert.Equal(t, "fixed", out)
}
