package middleware

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"

	"github.com/aretw0/teller/pkg/domain"
	"github.com/aretw0/teller/pkg/ports"
)

type piiMiddleware struct {
	next     ports.AccountStore
	patterns []*regexp.Regexp
}

// NewPIIMiddleware creates a middleware that masks string values whose JSON
// key matches one of the patterns before the account reaches the store.
// Only the last three characters of a masked value are kept.
func NewPIIMiddleware(patternStrings []string) Middleware {
	patterns := make([]*regexp.Regexp, len(patternStrings))
	for i, p := range patternStrings {
		patterns[i] = regexp.MustCompile(p)
	}
	return func(next ports.AccountStore) ports.AccountStore {
		return &piiMiddleware{next: next, patterns: patterns}
	}
}

func (m *piiMiddleware) Save(ctx context.Context, account *domain.Account) error {
	raw, err := json.Marshal(account)
	if err != nil {
		return fmt.Errorf("failed to marshal account: %w", err)
	}
	var fields map[string]any
	if err := json.Unmarshal(raw, &fields); err != nil {
		return fmt.Errorf("failed to inspect account: %w", err)
	}

	maskMap(fields, m.patterns)

	raw, err = json.Marshal(fields)
	if err != nil {
		return fmt.Errorf("failed to marshal masked account: %w", err)
	}
	var masked domain.Account
	if err := json.Unmarshal(raw, &masked); err != nil {
		return fmt.Errorf("failed to rebuild masked account: %w", err)
	}
	return m.next.Save(ctx, &masked)
}

func (m *piiMiddleware) Load(ctx context.Context, id string) (*domain.Account, error) {
	return m.next.Load(ctx, id)
}

func (m *piiMiddleware) Delete(ctx context.Context, id string) error {
	return m.next.Delete(ctx, id)
}

func (m *piiMiddleware) List(ctx context.Context) ([]string, error) {
	return m.next.List(ctx)
}

func maskMap(m map[string]any, patterns []*regexp.Regexp) {
	for k, v := range m {
		switch val := v.(type) {
		case string:
			for _, p := range patterns {
				if p.MatchString(k) {
					m[k] = Mask(val)
					break
				}
			}
		case map[string]any:
			maskMap(val, patterns)
		case []any:
			for _, item := range val {
				if sub, ok := item.(map[string]any); ok {
					maskMap(sub, patterns)
				}
			}
		}
	}
}

// Mask hides every character but the last three, keeping separators.
func Mask(s string) string {
	runes := []rune(s)
	for i := 0; i < len(runes)-3; i++ {
		if runes[i] != '-' && runes[i] != ' ' {
			runes[i] = '*'
		}
	}
	return string(runes)
}
