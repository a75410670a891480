package memory

import (
	"context"
	"slices"
	"sync"

	"github.com/aretw0/teller/pkg/domain"
)

// Store implements ports.AccountStore in memory.
// Safe for concurrent use.
type Store struct {
	data map[string]*domain.Account
	mu   sync.RWMutex
}

// NewStore creates a new in-memory store, optionally seeded with accounts.
func NewStore(seed ...*domain.Account) *Store {
	s := &Store{
		data: make(map[string]*domain.Account, len(seed)),
	}
	for _, a := range seed {
		s.data[a.ID] = a.Clone()
	}
	return s
}

// Save persists a copy of the account.
func (s *Store) Save(ctx context.Context, account *domain.Account) error {
	copied := account.Clone()

	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[account.ID] = copied
	return nil
}

// Load returns a copy so callers can't mutate the stored record by pointer.
func (s *Store) Load(ctx context.Context, id string) (*domain.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	account, ok := s.data[id]
	if !ok {
		return nil, domain.ErrAccountNotFound
	}
	return account.Clone(), nil
}

// Delete removes the account.
func (s *Store) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data, id)
	return nil
}

// List returns stored account ids in lexical order.
func (s *Store) List(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]string, 0, len(s.data))
	for id := range s.data {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids, nil
}
