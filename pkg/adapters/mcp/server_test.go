package mcp_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	tellermcp "github.com/aretw0/teller/pkg/adapters/mcp"
	"github.com/aretw0/teller/pkg/assistant/etransfer"
	"github.com/aretw0/teller/pkg/assistant/tfsa"
	"github.com/aretw0/teller/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2025, 6, 15, 9, 0, 0, 0, time.UTC)

type call struct{ input, userID string }

type fakeTFSA struct {
	calls  []call
	result *tfsa.Result
	err    error
}

func (f *fakeTFSA) Run(_ context.Context, input, userID string, _ func(domain.Step)) (*tfsa.Result, error) {
	f.calls = append(f.calls, call{input, userID})
	return f.result, f.err
}

type fakeTransfer struct {
	calls  []call
	result *etransfer.Result
	err    error
}

func (f *fakeTransfer) Run(_ context.Context, input, userID string, _ func(domain.Step)) (*etransfer.Result, error) {
	f.calls = append(f.calls, call{input, userID})
	return f.result, f.err
}

// rpc sends a JSON-RPC request through the server and returns the decoded result.
func rpc(t *testing.T, s *tellermcp.Server, method string, params any) map[string]any {
	t.Helper()
	req, err := json.Marshal(map[string]any{"jsonrpc": "2.0", "id": 1, "method": method, "params": params})
	require.NoError(t, err)

	resp := s.MCP().HandleMessage(context.Background(), req)
	raw, err := json.Marshal(resp)
	require.NoError(t, err)

	var envelope struct {
		Result map[string]any `json:"result"`
		Error  any            `json:"error"`
	}
	require.NoError(t, json.Unmarshal(raw, &envelope))
	require.Nil(t, envelope.Error, "unexpected JSON-RPC error: %s", raw)
	return envelope.Result
}

// toolResult decodes the JSON payload of a tool call.
func toolResult(t *testing.T, s *tellermcp.Server, name string, args map[string]any) map[string]any {
	t.Helper()
	result := rpc(t, s, "tools/call", map[string]any{"name": name, "arguments": args})
	content := result["content"].([]any)
	require.NotEmpty(t, content)
	text := content[0].(map[string]any)["text"].(string)

	var out map[string]any
	require.NoError(t, json.Unmarshal([]byte(text), &out), text)
	return out
}

// resourceText reads a resource and returns its text.
func resourceText(t *testing.T, s *tellermcp.Server, uri string) string {
	t.Helper()
	result := rpc(t, s, "resources/read", map[string]any{"uri": uri})
	contents := result["contents"].([]any)
	require.Len(t, contents, 1)
	return contents[0].(map[string]any)["text"].(string)
}

func clock() tellermcp.Option {
	return tellermcp.WithClock(func() time.Time { return fixedNow })
}

func TestTFSAServer_Tools(t *testing.T) {
	wf := &fakeTFSA{result: &tfsa.Result{
		ContributionRoom: 14500,
		RemainingRoom:    14000,
		TransactionID:    "TFSA-2025-ABC123",
		Response:         "✅ Success!",
	}}
	s := tellermcp.NewTFSAServer(wf, clock())

	tools := rpc(t, s, "tools/list", map[string]any{})["tools"].([]any)
	var names []string
	for _, tool := range tools {
		names = append(names, tool.(map[string]any)["name"].(string))
	}
	assert.ElementsMatch(t, []string{"check_contribution_room", "execute_contribution"}, names)

	room := toolResult(t, s, "check_contribution_room", map[string]any{"user_id": "user_123"})
	assert.Equal(t, 14500.0, room["contribution_room"])
	assert.Equal(t, "user_123", room["user_id"])
	assert.Equal(t, "2025-06-15T09:00:00Z", room["timestamp"])

	out := toolResult(t, s, "execute_contribution", map[string]any{"user_input": "  Contribute $500\x1b ", "user_id": "user_123"})
	assert.Equal(t, true, out["success"])
	assert.Equal(t, "TFSA-2025-ABC123", out["transaction_id"])
	assert.Equal(t, 14000.0, out["new_contribution_room"])
	assert.Equal(t, "✅ Success!", out["response"])

	require.Len(t, wf.calls, 2)
	assert.Equal(t, call{"Contribute $500", "user_123"}, wf.calls[1], "input is sanitized before the workflow sees it")
}

func TestTFSAServer_WorkflowErrorsBecomeResponses(t *testing.T) {
	wf := &fakeTFSA{err: errors.New("account not found")}
	s := tellermcp.NewTFSAServer(wf, clock())

	out := toolResult(t, s, "execute_contribution", map[string]any{"user_input": "Contribute $500", "user_id": "ghost"})
	assert.Equal(t, "Contribution failed: account not found", out["error"])
	assert.Equal(t, "ghost", out["user_id"])
	assert.Equal(t, false, out["success"])
	assert.NotContains(t, out, "transaction_id")
}

func TestTFSAServer_Resources(t *testing.T) {
	wf := &fakeTFSA{result: &tfsa.Result{ContributionRoom: 14500, ContributionAmount: 500, TransactionID: "TFSA-2025-X", Response: "done"}}
	s := tellermcp.NewTFSAServer(wf, clock())

	limits := resourceText(t, s, "tfsa-annual://limit")
	assert.Contains(t, limits, "Annual limit for 2009-2012: $5000")
	assert.Contains(t, limits, "Annual limit for 2024-2025: $7000")

	var advice map[string]any
	require.NoError(t, json.Unmarshal([]byte(resourceText(t, s, "tfsa-advice://Contribute%20%24500/user_123")), &advice))
	assert.Equal(t, "done", advice["response"])
	assert.Equal(t, "TFSA-2025-X", advice["transaction_id"])
	assert.Equal(t, 500.0, advice["contribution_amount"])
	require.Len(t, wf.calls, 1)
	assert.Equal(t, call{"Contribute $500", "user_123"}, wf.calls[0])
}

func TestTFSAServer_Prompt(t *testing.T) {
	s := tellermcp.NewTFSAServer(&fakeTFSA{}, clock())
	result := rpc(t, s, "prompts/get", map[string]any{
		"name":      "explain_tfsa_rules",
		"arguments": map[string]any{"query": "Can I recontribute?"},
	})
	messages := result["messages"].([]any)
	require.Len(t, messages, 1)
	content := messages[0].(map[string]any)["content"].(map[string]any)
	assert.Contains(t, content["text"], "Specific query: Can I recontribute?")
}

func TestTransferServer_Tools(t *testing.T) {
	wf := &fakeTransfer{result: &etransfer.Result{
		CurrentLimit: 3000,
		Eligible:     true,
		NewLimit:     5010,
		ReferenceID:  "LIMIT-20250615-090000",
		Response:     "🎉",
	}}
	s := tellermcp.NewTransferServer(wf, clock())

	limit := toolResult(t, s, "check_e_transfer_limit", map[string]any{"user_id": "user_456"})
	assert.Equal(t, 3000.0, limit["current_limit"])

	out := toolResult(t, s, "increase_limit", map[string]any{"user_input": "increase my limit", "user_id": "user_456"})
	assert.Equal(t, true, out["success"])
	assert.Equal(t, 5010.0, out["new_limit"])
	assert.Equal(t, "LIMIT-20250615-090000", out["transaction_id"])
}

func TestTransferServer_Ineligible(t *testing.T) {
	wf := &fakeTransfer{result: &etransfer.Result{Explanation: "KYC verification required", Response: "⚠️ Unable to increase limit"}}
	s := tellermcp.NewTransferServer(wf, clock())

	var out map[string]any
	require.NoError(t, json.Unmarshal([]byte(resourceText(t, s, "etransfer-service://raise%20it/user_456")), &out))
	assert.Equal(t, false, out["success"])
	assert.Equal(t, "KYC verification required", out["reason"])
	assert.Equal(t, call{"raise it", "user_456"}, wf.calls[0])
}
