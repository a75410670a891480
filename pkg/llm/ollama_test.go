package llm_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/aretw0/teller/pkg/llm"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOllama_Invoke(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/generate", r.URL.Path)
		assert.Equal(t, http.MethodPost, r.Method)

		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "test-model", body["model"])
		assert.Equal(t, "hello", body["prompt"])
		assert.Equal(t, false, body["stream"])
		assert.Equal(t, map[string]any{"temperature": 0.0}, body["options"])

		_ = json.NewEncoder(w).Encode(map[string]any{"response": "hi there", "done": true})
	}))
	defer srv.Close()

	m := llm.NewOllama(llm.OllamaConfig{Host: srv.URL, Model: "test-model"})
	out, err := m.Invoke(context.Background(), "hello")
	require.NoError(t, err)
	assert.Equal(t, "hi there", out)
}

func TestOllama_RetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"response": "recovered", "done": true})
	}))
	defer srv.Close()

	m := llm.NewOllama(llm.OllamaConfig{Host: srv.URL, MaxRetries: 2, Timeout: 5 * time.Second})
	out, err := m.Invoke(context.Background(), "x")
	require.NoError(t, err)
	assert.Equal(t, "recovered", out)
	assert.Equal(t, int32(2), calls.Load())
}

func TestOllama_ClientError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"model not found"}`, http.StatusNotFound)
	}))
	defer srv.Close()

	m := llm.NewOllama(llm.OllamaConfig{Host: srv.URL})
	_, err := m.Invoke(context.Background(), "x")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 404")
}

func TestOllama_Defaults(t *testing.T) {
	m := llm.NewOllama(llm.OllamaConfig{})
	assert.Equal(t, llm.DefaultOllamaModel, m.Model())
}
