package tfsa

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/aretw0/teller"
	"github.com/aretw0/teller/pkg/assistant"
	"github.com/aretw0/teller/pkg/banking"
	"github.com/aretw0/teller/pkg/domain"
	"github.com/aretw0/teller/pkg/graph"
	"github.com/aretw0/teller/pkg/llm"
	"github.com/aretw0/teller/pkg/search"
)

// WorkflowName identifies the workflow in logs, metrics and routing.
const WorkflowName = "tfsa"

// Node names.
const (
	NodeProfile     = "profile_agent"
	NodeDocument    = "document_agent"
	NodeSearch      = "search_agent"
	NodeCalculation = "calculation_agent"
	NodeTransaction = "transaction_agent"
)

// State fields written by the workflow.
const (
	FieldUserInput          = "user_input"
	FieldUserID             = "user_id"
	FieldProfile            = "user_profile"
	FieldPolicySummary      = "policy_summary"
	FieldSearchResults      = "search_results"
	FieldPolicy             = "policy"
	FieldCurrentLimit       = "current_limit"
	FieldContributionRoom   = "contribution_room"
	FieldContributionAmount = "contribution_amount"
	FieldRemainingRoom      = "remaining_room"
	FieldTransactionID      = "transaction_id"
	FieldNewBalance         = "new_balance"
)

// SignalNeedsSearch selects the search branch after the document agent.
const SignalNeedsSearch = "needs_search"

// Config wires the assistant to its collaborators.
type Config struct {
	Banking *banking.Service
	Model   llm.Model
	// Searcher is optional. Without one the search step reports the
	// failure and the calculation falls back to the default limit.
	Searcher search.Searcher
	// DefaultUserID is used when a request carries no user id.
	DefaultUserID string

	assistant.Runtime
}

// Policy is the current-year policy extracted from search results.
type Policy struct {
	CurrentLimit    string `json:"current_limit"`
	PenaltyInfo     string `json:"penalty_info"`
	WithdrawalRules string `json:"withdrawal_rules"`
}

// Assistant runs the TFSA workflow.
type Assistant struct {
	cfg    Config
	engine *teller.Engine
	logger *slog.Logger
}

// New validates cfg and compiles the workflow.
func New(cfg Config) (*Assistant, error) {
	if cfg.Banking == nil {
		return nil, errors.New("tfsa: banking service is required")
	}
	if cfg.Model == nil {
		return nil, errors.New("tfsa: language model is required")
	}
	if cfg.DefaultUserID == "" {
		cfg.DefaultUserID = banking.DemoTFSAUser
	}

	a := &Assistant{cfg: cfg, logger: cfg.Log().With("workflow", WorkflowName)}
	g, err := a.build()
	if err != nil {
		return nil, err
	}
	a.engine = cfg.Engine(g)
	return a, nil
}

func (a *Assistant) build() (*graph.Graph, error) {
	b := graph.New(WorkflowName)
	_ = b.AddNode(NodeProfile, a.profile)
	_ = b.AddNode(NodeDocument, a.document)
	_ = b.AddNode(NodeSearch, a.search)
	_ = b.AddNode(NodeCalculation, a.calculate)
	_ = b.AddNode(NodeTransaction, a.transact)
	_ = b.SetEntry(NodeProfile)
	_ = b.AddEdge(NodeProfile, NodeDocument)
	_ = b.AddConditionalEdge(NodeDocument, graph.Selector{
		Labels: []string{NodeSearch, NodeCalculation},
		Choose: func(s *domain.State) string {
			if s.BoolSignal(SignalNeedsSearch) {
				return NodeSearch
			}
			return NodeCalculation
		},
	}, map[string]string{NodeSearch: NodeSearch, NodeCalculation: NodeCalculation})
	_ = b.AddEdge(NodeSearch, NodeCalculation)
	_ = b.AddEdge(NodeCalculation, NodeTransaction)
	_ = b.AddEdge(NodeTransaction, graph.End)
	return b.Compile()
}

// Name implements assistant.Service.
func (a *Assistant) Name() string { return WorkflowName }

// Graph returns the compiled workflow.
func (a *Assistant) Graph() *graph.Graph { return a.engine.Graph() }

// Stream starts a lazy run. Range over Steps to drive it.
func (a *Assistant) Stream(ctx context.Context, input, userID string) *teller.Execution {
	if userID == "" {
		userID = a.cfg.DefaultUserID
	}
	return a.engine.Start(ctx, assistant.Input(input, userID, nil))
}

// Result summarizes a finished run.
type Result struct {
	UserID             string           `json:"user_id"`
	Response           string           `json:"response"`
	ContributionRoom   float64          `json:"contribution_room"`
	ContributionAmount float64          `json:"contribution_amount,omitempty"`
	RemainingRoom      float64          `json:"remaining_room,omitempty"`
	NewBalance         float64          `json:"new_balance,omitempty"`
	TransactionID      string           `json:"transaction_id,omitempty"`
	Policy             *Policy          `json:"policy,omitempty"`
	Messages           []domain.Message `json:"messages"`
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
	r := &Result{
		UserID:             s.String(FieldUserID),
		Response:           assistant.Reply(s),
		ContributionRoom:   s.Float(FieldContributionRoom),
		ContributionAmount: s.Float(FieldContributionAmount),
		RemainingRoom:      s.Float(FieldRemainingRoom),
		NewBalance:         s.Float(FieldNewBalance),
		TransactionID:      s.String(FieldTransactionID),
		Messages:           s.Messages,
	}
	if v, ok := s.Get(FieldPolicy); ok {
		if p, ok := v.(Policy); ok {
			r.Policy = &p
		}
	}
	return r
}

// Handle implements assistant.Service.
func (a *Assistant) Handle(ctx context.Context, input, userID string) (assistant.Outcome, error) {
	run := a.Stream(ctx, input, userID)
	out := assistant.Outcome{Service: WorkflowName, UserID: run.State().String(FieldUserID), RunID: run.RunID()}
	for step := range run.Steps() {
		out.Steps = append(out.Steps, step.Node)
	}
	out.Timestamp = a.now()
	if err := run.Err(); err != nil {
		return out, err
	}

	res := ResultFrom(run.State())
	out.Response = res.Response
	out.TransactionID = res.TransactionID
	out.Details = map[string]any{
		"contribution_room":   res.ContributionRoom,
		"contribution_amount": res.ContributionAmount,
		"remaining_room":      res.RemainingRoom,
	}
	return out, nil
}

func (a *Assistant) now() time.Time { return a.cfg.Banking.Now() }

func profileOf(s *domain.State) (domain.Account, error) {
	v, _ := s.Get(FieldProfile)
	p, ok := v.(domain.Account)
	if !ok {
		return domain.Account{}, fmt.Errorf("state field %q is %T, want domain.Account", FieldProfile, v)
	}
	return p, nil
}
