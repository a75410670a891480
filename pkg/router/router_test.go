package router_test

import (
	"context"
	"errors"
	"testing"

	"github.com/aretw0/teller/pkg/assistant"
	"github.com/aretw0/teller/pkg/llm"
	"github.com/aretw0/teller/pkg/router"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubService struct {
	name  string
	err   error
	calls []string
}

func (s *stubService) Name() string { return s.name }

func (s *stubService) Handle(_ context.Context, input, userID string) (assistant.Outcome, error) {
	s.calls = append(s.calls, input)
	if s.err != nil {
		return assistant.Outcome{}, s.err
	}
	return assistant.Outcome{
		Service:  s.name,
		UserID:   userID,
		Response: s.name + " says hi",
		Steps:    []string{"profile_agent", "answer"},
	}, nil
}

func TestClassifier_Keywords(t *testing.T) {
	c, err := router.NewClassifier()
	require.NoError(t, err)

	tests := []struct {
		input string
		want  router.Classification
	}{
		{"How much TFSA room do I have?", router.Classification{Service: "tfsa", Method: router.MethodKeyword}},
		{"Please increase my Interac e-Transfer limit", router.Classification{Service: "etransfer", Method: router.MethodKeyword}},
		{"I want to send money to my sister", router.Classification{Service: "etransfer", Method: router.MethodKeyword}},
		{"What's the contribution limit this year?", router.Classification{Service: "tfsa", Method: router.MethodKeyword}},
		{"Hello there", router.Classification{Service: "tfsa", Method: router.MethodDefault}},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.want, c.Classify(context.Background(), tt.input))
		})
	}
}

func TestClassifier_Model(t *testing.T) {
	var prompt string
	model := llm.Func(func(_ context.Context, p string) (string, error) {
		prompt = p
		return ` "e-Transfer"` + "\n", nil
	})
	c, err := router.NewClassifier(router.WithModel(model))
	require.NoError(t, err)

	got := c.Classify(context.Background(), "tfsa words but the model knows better")
	assert.Equal(t, router.Classification{Service: "etransfer", Method: router.MethodModel}, got)
	assert.Contains(t, prompt, `- TFSA: Tax-Free Savings Account questions`)
	assert.Contains(t, prompt, `Respond ONLY with "TFSA" or "e-Transfer"`)
}

func TestClassifier_ModelFallbacks(t *testing.T) {
	failing := llm.Func(func(context.Context, string) (string, error) { return "", errors.New("offline") })
	c, err := router.NewClassifier(router.WithModel(failing))
	require.NoError(t, err)
	assert.Equal(t, router.MethodKeyword, c.Classify(context.Background(), "raise my transfer limit").Method)

	confused, err := router.NewClassifier(router.WithModel(llm.Static("I'm not sure")), router.WithDefault("etransfer"))
	require.NoError(t, err)
	assert.Equal(t, router.Classification{Service: "etransfer", Method: router.MethodDefault}, confused.Classify(context.Background(), "good morning"))
}

func TestNewClassifier_InvalidDefault(t *testing.T) {
	_, err := router.NewClassifier(router.WithDefault("mortgage"))
	assert.Error(t, err)

	_, err = router.NewClassifier(router.WithRoutes())
	assert.Error(t, err)
}

func TestRouter_Handle(t *testing.T) {
	tfsaSvc := &stubService{name: "tfsa"}
	transferSvc := &stubService{name: "etransfer"}
	c, err := router.NewClassifier()
	require.NoError(t, err)
	r, err := router.New(c, []assistant.Service{tfsaSvc, transferSvc})
	require.NoError(t, err)

	reply, err := r.Handle(context.Background(), "increase my e-transfer limit", "user_456")
	require.NoError(t, err)
	assert.Equal(t, "etransfer", reply.Service)
	assert.Equal(t, "etransfer says hi", reply.Response)
	assert.Equal(t, "user_456", reply.Outcome.UserID)
	assert.Equal(t, []router.Invocation{
		{Type: "workflow", Name: "etransfer"},
		{Type: "node", Name: "profile_agent"},
		{Type: "node", Name: "answer"},
	}, reply.Components)
	assert.Empty(t, tfsaSvc.calls)
	assert.Equal(t, []string{"increase my e-transfer limit"}, transferSvc.calls)
}

func TestRouter_ServiceError(t *testing.T) {
	boom := errors.New("boom")
	c, err := router.NewClassifier()
	require.NoError(t, err)
	r, err := router.New(c, []assistant.Service{&stubService{name: "tfsa", err: boom}, &stubService{name: "etransfer"}})
	require.NoError(t, err)

	reply, err := r.Handle(context.Background(), "tfsa room", "")
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, "tfsa", reply.Service)
}

func TestRouter_MissingService(t *testing.T) {
	c, err := router.NewClassifier()
	require.NoError(t, err)
	_, err = router.New(c, []assistant.Service{&stubService{name: "tfsa"}})
	assert.Error(t, err)
}
