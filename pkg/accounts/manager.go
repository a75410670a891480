package accounts

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/aretw0/teller/internal/logging"
	"github.com/aretw0/teller/pkg/domain"
	"github.com/aretw0/teller/pkg/ports"
)

// DefaultLockTTL bounds how long a distributed lock survives a crashed holder.
const DefaultLockTTL = 30 * time.Second

// lockEntry holds the mutex and the reference count.
type lockEntry struct {
	mu   sync.Mutex
	refs int
}

// Manager orchestrates account access, ensuring safe concurrent operations.
// It uses reference counting to garbage collect unused locks.
type Manager struct {
	store ports.AccountStore

	mu    sync.Mutex
	locks map[string]*lockEntry

	locker  ports.DistributedLocker
	lockTTL time.Duration
	logger  *slog.Logger
}

// Option configures the Manager.
type Option func(*Manager)

// WithLocker enables distributed locking.
func WithLocker(locker ports.DistributedLocker) Option {
	return func(m *Manager) {
		m.locker = locker
	}
}

// WithLockTTL overrides DefaultLockTTL.
func WithLockTTL(ttl time.Duration) Option {
	return func(m *Manager) {
		m.lockTTL = ttl
	}
}

// WithLogger configures a logger for the Manager.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) {
		m.logger = logger
	}
}

// NewManager creates a Manager over the given store.
func NewManager(store ports.AccountStore, opts ...Option) *Manager {
	m := &Manager{
		store:   store,
		locks:   make(map[string]*lockEntry),
		lockTTL: DefaultLockTTL,
		logger:  logging.NewNop(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// acquire gets or creates a lock entry and increments its reference count.
// The caller MUST Lock the entry.mu, and then call release(id) after unlocking.
func (m *Manager) acquire(id string) *lockEntry {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, exists := m.locks[id]
	if !exists {
		entry = &lockEntry{}
		m.locks[id] = entry
	}
	entry.refs++
	return entry
}

// release decrements the reference count and deletes the entry if it reaches zero.
func (m *Manager) release(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, exists := m.locks[id]
	if !exists {
		return
	}
	entry.refs--
	if entry.refs <= 0 {
		delete(m.locks, id)
	}
}

// Load retrieves an existing account.
func (m *Manager) Load(ctx context.Context, id string) (*domain.Account, error) {
	var account *domain.Account
	err := m.WithLock(ctx, id, func(ctx context.Context) error {
		var err error
		account, err = m.store.Load(ctx, id)
		return err
	})
	return account, err
}

// LoadOrCreate loads an account, creating and persisting it with create
// when it does not exist yet.
func (m *Manager) LoadOrCreate(ctx context.Context, id string, create func(id string) *domain.Account) (*domain.Account, error) {
	var account *domain.Account
	err := m.WithLock(ctx, id, func(ctx context.Context) error {
		var err error
		account, err = m.loadOrCreate(ctx, id, create)
		return err
	})
	return account, err
}

func (m *Manager) loadOrCreate(ctx context.Context, id string, create func(id string) *domain.Account) (*domain.Account, error) {
	account, err := m.store.Load(ctx, id)
	if err == nil {
		return account, nil
	}
	if !errors.Is(err, domain.ErrAccountNotFound) || create == nil {
		return nil, err
	}

	account = create(id)
	if err := m.store.Save(ctx, account); err != nil {
		return nil, fmt.Errorf("failed to enroll account: %w", err)
	}
	m.logger.InfoContext(ctx, "account enrolled", "account_id", id)
	return account, nil
}

// Update runs a read-modify-write cycle under the account lock. The account
// is persisted only when fn returns nil. create may be nil, in which case a
// missing account yields domain.ErrAccountNotFound.
func (m *Manager) Update(ctx context.Context, id string, create func(id string) *domain.Account, fn func(*domain.Account) error) (*domain.Account, error) {
	var account *domain.Account
	err := m.WithLock(ctx, id, func(ctx context.Context) error {
		current, err := m.loadOrCreate(ctx, id, create)
		if err != nil {
			return err
		}
		if err := fn(current); err != nil {
			return err
		}
		if err := m.store.Save(ctx, current); err != nil {
			return fmt.Errorf("failed to save account: %w", err)
		}
		account = current
		return nil
	})
	return account, err
}

// Save persists the account.
func (m *Manager) Save(ctx context.Context, account *domain.Account) error {
	return m.WithLock(ctx, account.ID, func(ctx context.Context) error {
		return m.store.Save(ctx, account)
	})
}

// Delete removes the account from the store.
func (m *Manager) Delete(ctx context.Context, id string) error {
	return m.WithLock(ctx, id, func(ctx context.Context) error {
		return m.store.Delete(ctx, id)
	})
}

// List delegates to the store.
func (m *Manager) List(ctx context.Context) ([]string, error) {
	return m.store.List(ctx)
}

// Store returns the underlying account store.
func (m *Manager) Store() ports.AccountStore {
	return m.store
}

// WithLock executes fn while holding the lock for the account.
func (m *Manager) WithLock(ctx context.Context, id string, fn func(context.Context) error) error {
	entry := m.acquire(id)
	entry.mu.Lock()
	defer func() {
		entry.mu.Unlock()
		m.release(id)
	}()

	if m.locker != nil {
		unlock, err := m.locker.Lock(ctx, id, m.lockTTL)
		if err != nil {
			return fmt.Errorf("failed to acquire distributed lock: %w", err)
		}
		defer func() {
			if err := unlock(context.WithoutCancel(ctx)); err != nil {
				m.logger.Warn("Failed to release distributed lock (will expire via TTL)",
					"account_id", id,
					"err", err,
				)
			}
		}()
	}

	return fn(ctx)
}
