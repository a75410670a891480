package middleware_test

import (
	"context"
	"sync"

	"github.com/aretw0/teller/pkg/domain"
	"github.com/aretw0/teller/pkg/ports"
)

// MockStore is a simple map-based store for testing middleware.
type MockStore struct {
	mu   sync.Mutex
	data map[string]*domain.Account
}

func NewMockStore() *MockStore {
	return &MockStore{
		data: make(map[string]*domain.Account),
	}
}

func (s *MockStore) Save(ctx context.Context, account *domain.Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[account.ID] = account.Clone()
	return nil
}

func (s *MockStore) Load(ctx context.Context, id string) (*domain.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	account, ok := s.data[id]
	if !ok {
		return nil, domain.ErrAccountNotFound
	}
	return account.Clone(), nil
}

func (s *MockStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data, id)
	return nil
}

func (s *MockStore) List(ctx context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	keys := make([]string, 0, len(s.data))
	for k := range s.data {
		keys = append(keys, k)
	}
	return keys, nil
}

var _ ports.AccountStore = (*MockStore)(nil)
