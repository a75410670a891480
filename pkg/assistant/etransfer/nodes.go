package etransfer

import (
	"context"
	"fmt"
	"math"
	"strings"

	"github.com/aretw0/teller/pkg/assistant"
	"github.com/aretw0/teller/pkg/banking"
	"github.com/aretw0/teller/pkg/domain"
)

const eligibilityPrompt = `You are a banking assistant explaining eligibility for e-Transfer limit increases.
Eligibility result: %t
Reasons: %s
Current limit: %s
Max possible limit: %s

Provide a concise 1-2 sentence explanation for the user.`

const confirmationPrompt = `You are a banking assistant confirming a successful e-Transfer limit increase.
Details:
- Previous limit: %s
- New limit: %s
- Effective immediately
- Reference ID: %s

Create a friendly confirmation message with emojis.`

func (a *Assistant) profile(ctx context.Context, s *domain.State) (domain.Update, error) {
	account, err := a.cfg.Banking.Profile(ctx, s.String(FieldUserID))
	if err != nil {
		return domain.Update{}, err
	}

	input := s.String(FieldUserInput)
	fields := map[string]any{
		FieldProfile:      banking.Redacted(account),
		FieldCurrentLimit: account.Transfer.DailyLimit,
	}
	if requested := banking.ParseAmount(input); requested > 0 {
		fields[FieldRequestedLimit] = requested
	}

	return domain.Update{
		Fields:  fields,
		Signals: map[string]any{SignalWantsIncrease: WantsIncrease(input)},
		Messages: []domain.Message{{
			Role: domain.RoleSystem,
			Content: fmt.Sprintf("Retrieved profile for %s (Current limit: %s)",
				account.Name, assistant.Money(account.Transfer.DailyLimit)),
		}},
	}, nil
}

func (a *Assistant) eligibility(ctx context.Context, s *domain.State) (domain.Update, error) {
	result, err := a.cfg.Banking.CheckEligibility(ctx, s.String(FieldUserID))
	if err != nil {
		return domain.Update{}, err
	}

	reasons := "All requirements met"
	if len(result.Reasons) > 0 {
		reasons = strings.Join(result.Reasons, ", ")
	}

	explanation, err := a.cfg.Model.Invoke(ctx, fmt.Sprintf(eligibilityPrompt,
		result.Eligible, reasons, assistant.Money(s.Float(FieldCurrentLimit)), assistant.Money(result.MaxPossibleLimit)))
	explanation = strings.TrimSpace(explanation)
	if err != nil || explanation == "" {
		if err != nil {
			a.logger.WarnContext(ctx, "eligibility explanation unavailable", "err", err)
		}
		explanation = plainEligibility(result.Eligible, reasons)
	}

	return domain.Update{
		Fields: map[string]any{
			FieldEligibilityStatus: result.Eligible,
			FieldEligibilityReason: explanation,
			FieldMaxPossibleLimit:  result.MaxPossibleLimit,
		},
		Messages: []domain.Message{{Role: NodeEligibility, Content: explanation}},
	}, nil
}

func plainEligibility(eligible bool, reasons string) string {
	if eligible {
		return "You are eligible for an e-Transfer limit increase. " + reasons + "."
	}
	return "You are not eligible for an e-Transfer limit increase: " + reasons + "."
}

func (a *Assistant) adjust(ctx context.Context, s *domain.State) (domain.Update, error) {
	reply := func(content string) []domain.Message {
		return []domain.Message{{Role: domain.RoleAssistant, Content: content}}
	}

	if !s.Bool(FieldEligibilityStatus) {
		return domain.Update{
			Messages: reply("⚠️ Unable to increase limit: " + s.String(FieldEligibilityReason)),
		}, nil
	}

	current := s.Float(FieldCurrentLimit)
	newLimit := TargetLimit(current, s.Float(FieldRequestedLimit), s.Float(FieldMaxPossibleLimit))
	if newLimit <= current {
		return domain.Update{
			Messages: reply(fmt.Sprintf("Your limit of %s is already at the maximum available.", assistant.Money(current))),
		}, nil
	}

	change, err := a.cfg.Banking.IncreaseTransferLimit(ctx, s.String(FieldUserID), newLimit)
	if err != nil {
		return domain.Update{}, err
	}

	confirmation, err := a.cfg.Model.Invoke(ctx, fmt.Sprintf(confirmationPrompt,
		assistant.Money(change.PreviousLimit), assistant.Money(change.NewLimit), change.ReferenceID))
	confirmation = strings.TrimSpace(confirmation)
	if err != nil || confirmation == "" {
		if err != nil {
			a.logger.WarnContext(ctx, "confirmation text unavailable", "err", err)
		}
		confirmation = fmt.Sprintf("✅ Your e-Transfer limit is now %s (was %s). Reference ID: %s",
			assistant.Money(change.NewLimit), assistant.Money(change.PreviousLimit), change.ReferenceID)
	}

	return domain.Update{
		Fields: map[string]any{
			FieldNewLimit:    change.NewLimit,
			FieldReferenceID: change.ReferenceID,
		},
		Messages: reply(confirmation),
	}, nil
}

// TargetLimit picks the new limit: the requested amount when it exceeds the
// current limit, otherwise the standard step. The result never exceeds
// ceiling and is rounded to cents.
func TargetLimit(current, requested, ceiling float64) float64 {
	target := current * IncreaseFactor
	if requested > current {
		target = requested
	}
	if ceiling > 0 {
		target = math.Min(target, ceiling)
	}
	return math.Round(target*100) / 100
}
