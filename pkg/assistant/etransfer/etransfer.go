package etransfer

import (
	"context"
	"errors"
	"log/slog"
	"regexp"

	"github.com/aretw0/teller"
	"github.com/aretw0/teller/pkg/assistant"
	"github.com/aretw0/teller/pkg/banking"
	"github.com/aretw0/teller/pkg/domain"
	"github.com/aretw0/teller/pkg/graph"
	"github.com/aretw0/teller/pkg/llm"
)

// WorkflowName identifies the workflow in logs, metrics and routing.
const WorkflowName = "etransfer"

// Node names.
const (
	NodeProfile         = "profile_agent"
	NodeEligibility     = "eligibility_agent"
	NodeLimitAdjustment = "limit_adjustment_agent"
)

// State fields written by the workflow.
const (
	FieldUserInput         = "user_input"
	FieldUserID            = "user_id"
	FieldProfile           = "user_profile"
	FieldCurrentLimit      = "current_limit"
	FieldRequestedLimit    = "requested_limit"
	FieldEligibilityStatus = "eligibility_status"
	FieldEligibilityReason = "eligibility_reason"
	FieldMaxPossibleLimit  = "max_possible_limit"
	FieldNewLimit          = "new_limit"
	FieldReferenceID       = "reference_id"
)

// SignalWantsIncrease routes to the adjustment step.
const SignalWantsIncrease = "wants_increase"

// IncreaseFactor is the standard step applied to the current limit.
const IncreaseFactor = 1.67

var increasePattern = regexp.MustCompile(`(?i)\b(increase|raise|higher|boost|bump|lift|extend)\b`)

// WantsIncrease reports whether input asks for a higher limit.
func WantsIncrease(input string) bool {
	return increasePattern.MatchString(input)
}

// Config wires the assistant to its collaborators.
type Config struct {
	Banking *banking.Service
	Model   llm.Model
	// DefaultUserID is used when a request carries no user id.
	DefaultUserID string

	assistant.Runtime
}

// Assistant runs the e-Transfer workflow.
type Assistant struct {
	cfg    Config
	engine *teller.Engine
	logger *slog.Logger
}

// New validates cfg and compiles the workflow.
func New(cfg Config) (*Assistant, error) {
	if cfg.Banking == nil {
		return nil, errors.New("etransfer: banking service is required")
	}
	if cfg.Model == nil {
		return nil, errors.New("etransfer: language model is required")
	}
	if cfg.DefaultUserID == "" {
		cfg.DefaultUserID = banking.DemoTransferUser
	}

	a := &Assistant{cfg: cfg, logger: cfg.Log().With("workflow", WorkflowName)}
	b := graph.New(WorkflowName)
	_ = b.AddNode(NodeProfile, a.profile)
	_ = b.AddNode(NodeEligibility, a.eligibility)
	_ = b.AddNode(NodeLimitAdjustment, a.adjust)
	_ = b.SetEntry(NodeProfile)
	_ = b.AddEdge(NodeProfile, NodeEligibility)
	_ = b.AddConditionalEdge(NodeEligibility, graph.Selector{
		Labels: []string{"increase", "inquiry"},
		Choose: func(s *domain.State) string {
			if s.BoolSignal(SignalWantsIncrease) {
				return "increase"
			}
			return "inquiry"
		},
	}, map[string]string{"increase": NodeLimitAdjustment, "inquiry": graph.End})
	_ = b.AddEdge(NodeLimitAdjustment, graph.End)

	g, err := b.Compile()
	if err != nil {
		return nil, err
	}
	a.engine = cfg.Engine(g)
	return a, nil
}

// Name implements assistant.Service.
func (a *Assistant) Name() string { return WorkflowName }

// Graph returns the compiled workflow.
func (a *Assistant) Graph() *graph.Graph { return a.engine.Graph() }

// Stream starts a lazy run.
func (a *Assistant) Stream(ctx context.Context, input, userID string) *teller.Execution {
	if userID == "" {
		userID = a.cfg.DefaultUserID
	}
	return a.engine.Start(ctx, assistant.Input(input, userID, nil))
}

// Result summarizes a finished run.
type Result struct {
	UserID           string           `json:"user_id"`
	Response         string           `json:"response"`
	CurrentLimit     float64          `json:"current_limit"`
	Eligible         bool             `json:"eligible"`
	Explanation      string           `json:"eligibility_reason"`
	MaxPossibleLimit float64          `json:"max_possible_limit"`
	NewLimit         float64          `json:"new_limit,omitempty"`
	ReferenceID      string           `json:"reference_id,omitempty"`
	Messages         []domain.Message `json:"messages"`
}

// Run executes the workflow to completion. observer may be nil.
func (a *Assistant) Run(ctx context.Context, input, userID string, observer func(domain.Step)) (*Result, error) {
	run := a.Stream(ctx, input, userID)
	for step := range run.Steps() {
		if observer != nil {
			observer(step)
		}
	}
	if err := run.Err(); err != nil {
		return nil, err
	}
	return ResultFrom(run.State()), nil
}

// ResultFrom extracts a Result from a final state.
func ResultFrom(s *domain.State) *Result {
	return &Result{
		UserID:           s.String(FieldUserID),
		Response:         assistant.Reply(s),
		CurrentLimit:     s.Float(FieldCurrentLimit),
		Eligible:         s.Bool(FieldEligibilityStatus),
		Explanation:      s.String(FieldEligibilityReason),
		MaxPossibleLimit: s.Float(FieldMaxPossibleLimit),
		NewLimit:         s.Float(FieldNewLimit),
		ReferenceID:      s.String(FieldReferenceID),
		Messages:         s.Messages,
	}
}

// Handle implements assistant.Service.
func (a *Assistant) Handle(ctx context.Context, input, userID string) (assistant.Outcome, error) {
	run := a.Stream(ctx, input, userID)
	out := assistant.Outcome{Service: WorkflowName, UserID: run.State().String(FieldUserID), RunID: run.RunID()}
	for step := range run.Steps() {
		out.Steps = append(out.Steps, step.Node)
	}
	out.Timestamp = a.cfg.Banking.Now()
	if err := run.Err(); err != nil {
		return out, err
	}

	res := ResultFrom(run.State())
	out.Response = res.Response
	out.TransactionID = res.ReferenceID
	out.Details = map[string]any{
		"current_limit": res.CurrentLimit,
		"eligible":      res.Eligible,
	}
	if res.NewLimit > 0 {
		out.Details["new_limit"] = res.NewLimit
	}
	return out, nil
}
