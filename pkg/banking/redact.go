package banking

import (
	"github.com/aretw0/teller/pkg/domain"
	"github.com/aretw0/teller/pkg/persistence/middleware"
)

// MaskSIN hides all but the last three digits of a social insurance number.
func MaskSIN(sin string) string {
	return middleware.Mask(sin)
}

// Redacted returns a copy of a safe to place in workflow state: the SIN is
// masked and the ledger dropped.
func Redacted(a *domain.Account) domain.Account {
	out := *a
	out.SIN = MaskSIN(a.SIN)
	out.Ledger = nil
	out.Sealed = ""
	return out
}
