package tfsa

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/aretw0/teller/pkg/assistant"
	"github.com/aretw0/teller/pkg/banking"
	"github.com/aretw0/teller/pkg/domain"
	"github.com/aretw0/teller/pkg/llm"
	"github.com/aretw0/teller/pkg/search"
)

const documentPrompt = `You are a TFSA policy expert. Current year: %d
User: %s, Age: %d

Known historical rules:
%s- Withdrawals re-added to room NEXT calendar year
- Overcontribution penalty: 1%% per month

Respond with JSON ONLY containing:
{
  "policy_summary": "2-3 sentence summary",
  "needs_current_search": true/false
}`

const searchPrompt = `Analyze these CRA TFSA policy search results for %d:
%s

Extract the following in JSON format:
{
  "current_limit": "current year contribution limit",
  "penalty_info": "1-2 sentence summary of penalties",
  "withdrawal_rules": "1-2 sentence summary of withdrawal rules"
}`

func (a *Assistant) profile(ctx context.Context, s *domain.State) (domain.Update, error) {
	account, err := a.cfg.Banking.Profile(ctx, s.String(FieldUserID))
	if err != nil {
		return domain.Update{}, err
	}
	return domain.Update{
		Fields: map[string]any{FieldProfile: banking.Redacted(account)},
		Messages: []domain.Message{{
			Role:    domain.RoleSystem,
			Content: fmt.Sprintf("Retrieved profile for %s (Age: %d)", account.Name, account.Age),
		}},
	}, nil
}

type documentSummary struct {
	PolicySummary      string `json:"policy_summary"`
	NeedsCurrentSearch bool   `json:"needs_current_search"`
}

func (a *Assistant) document(ctx context.Context, s *domain.State) (domain.Update, error) {
	p, err := profileOf(s)
	if err != nil {
		return domain.Update{}, err
	}

	prompt := fmt.Sprintf(documentPrompt, a.now().Year(), p.Name, p.Age, bulletList(banking.LimitsSummary()))
	summary := documentSummary{PolicySummary: "Historical rules available", NeedsCurrentSearch: true}

	out, err := a.cfg.Model.Invoke(ctx, prompt)
	switch {
	case err != nil:
		a.logger.WarnContext(ctx, "policy model unavailable, searching for current rules", "err", err)
	default:
		var parsed documentSummary
		if err := json.Unmarshal([]byte(strings.TrimSpace(out)), &parsed); err == nil {
			summary = parsed
		}
	}

	return domain.Update{
		Fields:   map[string]any{FieldPolicySummary: summary.PolicySummary},
		Signals:  map[string]any{SignalNeedsSearch: summary.NeedsCurrentSearch},
		Messages: []domain.Message{{Role: NodeDocument, Content: summary.PolicySummary}},
	}, nil
}

// search never fails the run: any error becomes a warning message and the
// calculation proceeds with the default limit.
func (a *Assistant) search(ctx context.Context, s *domain.State) (domain.Update, error) {
	failed := func(err error) (domain.Update, error) {
		a.logger.WarnContext(ctx, "policy search failed", "err", err)
		return domain.Update{
			Messages: []domain.Message{{Role: NodeSearch, Content: "⚠️ Search failed: " + err.Error()}},
		}, nil
	}
	if a.cfg.Searcher == nil {
		return failed(fmt.Errorf("no search backend configured"))
	}

	year := a.now().Year()
	results, err := a.cfg.Searcher.Search(ctx, search.PolicyQuery(year, "contribution limit"))
	if err != nil {
		return failed(err)
	}

	raw, err := json.MarshalIndent(results, "", "  ")
	if err != nil {
		return failed(err)
	}
	out, err := a.cfg.Model.Invoke(ctx, fmt.Sprintf(searchPrompt, year, raw))
	if err != nil {
		return failed(err)
	}

	policy, ok := parsePolicy(out)
	if !ok {
		// The search answer usually states the limit verbatim.
		policy = Policy{CurrentLimit: results.Answer}
	}

	return domain.Update{
		Fields: map[string]any{
			FieldSearchResults: results,
			FieldPolicy:        policy,
		},
		Messages: []domain.Message{{
			Role: NodeSearch,
			Content: fmt.Sprintf("Current TFSA Policy: limit %s. Penalties: %s Withdrawals: %s",
				orUnknown(policy.CurrentLimit), orUnknown(policy.PenaltyInfo), orUnknown(policy.WithdrawalRules)),
		}},
	}, nil
}

// parsePolicy accepts numbers or strings for every field since models are
// inconsistent about quoting the limit.
func parsePolicy(out string) (Policy, bool) {
	var m map[string]any
	if err := llm.ExtractJSON(out, &m); err != nil {
		return Policy{}, false
	}
	str := func(k string) string {
		v, ok := m[k]
		if !ok || v == nil {
			return ""
		}
		if f, ok := v.(float64); ok {
			return fmt.Sprintf("$%.0f", f)
		}
		return fmt.Sprint(v)
	}
	p := Policy{
		CurrentLimit:    str("current_limit"),
		PenaltyInfo:     str("penalty_info"),
		WithdrawalRules: str("withdrawal_rules"),
	}
	return p, p != Policy{}
}

func (a *Assistant) calculate(ctx context.Context, s *domain.State) (domain.Update, error) {
	p, err := profileOf(s)
	if err != nil {
		return domain.Update{}, err
	}

	limit := banking.DefaultCurrentLimit
	if v, ok := s.Get(FieldPolicy); ok {
		if policy, ok := v.(Policy); ok {
			if parsed, ok := banking.ParseLimit(policy.CurrentLimit); ok {
				limit = parsed
			}
		}
	}

	room := banking.RoomFor(p.TFSA, p.Age, a.now().Year(), limit)

	return domain.Update{
		Fields: map[string]any{
			FieldCurrentLimit:     limit,
			FieldContributionRoom: room,
		},
		Messages: []domain.Message{{
			Role:    NodeCalculation,
			Content: "Available contribution room: " + assistant.Money(room),
		}},
	}, nil
}

func (a *Assistant) transact(ctx context.Context, s *domain.State) (domain.Update, error) {
	reply := func(content string) domain.Update {
		return domain.Update{Messages: []domain.Message{{Role: domain.RoleAssistant, Content: content}}}
	}

	amount := banking.ParseAmount(s.String(FieldUserInput))
	if amount <= 0 {
		return reply("Please specify a valid contribution amount (e.g., '$500')"), nil
	}

	room := s.Float(FieldContributionRoom)
	if amount > room {
		return reply("⚠️ Amount exceeds contribution room by " + assistant.Money(amount-room)), nil
	}

	// The room above comes from the profile read at the start of the run;
	// the banking service checks it again under the account lock.
	receipt, err := a.cfg.Banking.ContributeTFSA(ctx, s.String(FieldUserID), amount, s.Float(FieldCurrentLimit))
	if err != nil {
		return domain.Update{}, err
	}
	switch {
	case receipt.Excess > 0:
		return reply("⚠️ Amount exceeds contribution room by " + assistant.Money(receipt.Excess)), nil
	case receipt.Status != banking.StatusSuccess:
		return reply("❌ Transaction failed: " + receipt.Reason), nil
	}

	remaining := receipt.RemainingRoom
	u := reply(fmt.Sprintf("✅ Success! Transferred %s to your TFSA\n• New TFSA balance: %s\n• Remaining contribution room: %s\n• Transaction ID: %s",
		assistant.Money(amount), assistant.Money(receipt.NewBalance), assistant.Money(remaining), receipt.TransactionID))
	u.Fields = map[string]any{
		FieldContributionAmount: amount,
		FieldRemainingRoom:      remaining,
		FieldTransactionID:      receipt.TransactionID,
		FieldNewBalance:         receipt.NewBalance,
	}
	return u, nil
}

func bulletList(lines string) string {
	var b strings.Builder
	for _, line := range strings.Split(strings.TrimSpace(lines), "\n") {
		b.WriteString("- " + line + "\n")
	}
	return b.String()
}

func orUnknown(s string) string {
	if strings.TrimSpace(s) == "" {
		return "unknown"
	}
	return s
}
