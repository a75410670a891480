package ports

import (
	"context"

	"github.com/aretw0/teller/pkg/domain"
)

// AccountStore defines the interface for persisting customer accounts.
type AccountStore interface {
	// Save persists the account under account.ID.
	Save(ctx context.Context, account *domain.Account) error

	// Load retrieves an account.
	// Returns domain.ErrAccountNotFound if the account does not exist.
	Load(ctx context.Context, id string) (*domain.Account, error)

	// Delete removes an account. Deleting a missing account is not an error.
	Delete(ctx context.Context, id string) error

	// List returns the ids of every stored account.
	List(ctx context.Context) ([]string, error)
}
