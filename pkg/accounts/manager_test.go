package accounts_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/aretw0/teller/pkg/accounts"
	"github.com/aretw0/teller/pkg/adapters/memory"
	"github.com/aretw0/teller/pkg/adapters/redis"
	"github.com/aretw0/teller/pkg/domain"
	backend "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// SlowStore simulates latency to provoke race conditions if locking is missing.
type SlowStore struct {
	*memory.Store
}

func (s SlowStore) Load(ctx context.Context, id string) (*domain.Account, error) {
	time.Sleep(2 * time.Millisecond)
	return s.Store.Load(ctx, id)
}

func (s SlowStore) Save(ctx context.Context, a *domain.Account) error {
	time.Sleep(2 * time.Millisecond)
	return s.Store.Save(ctx, a)
}

func enroll(id string) *domain.Account {
	return &domain.Account{ID: id, CheckingBalance: 0}
}

func TestManager_UpdateSerializesWrites(t *testing.T) {
	manager := accounts.NewManager(SlowStore{memory.NewStore()})
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := manager.Update(ctx, "user_1", enroll, func(a *domain.Account) error {
				a.CheckingBalance += 10
				return nil
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	account, err := manager.Load(ctx, "user_1")
	require.NoError(t, err)
	assert.Equal(t, 200.0, account.CheckingBalance, "no update may be lost")
}

func TestManager_UpdateFailureDoesNotPersist(t *testing.T) {
	store := memory.NewStore(&domain.Account{ID: "u", CheckingBalance: 5})
	manager := accounts.NewManager(store)
	ctx := context.Background()

	boom := errors.New("rejected")
	_, err := manager.Update(ctx, "u", nil, func(a *domain.Account) error {
		a.CheckingBalance = 0
		return boom
	})
	assert.ErrorIs(t, err, boom)

	account, err := store.Load(ctx, "u")
	require.NoError(t, err)
	assert.Equal(t, 5.0, account.CheckingBalance)
}

func TestManager_UpdateMissingWithoutCreate(t *testing.T) {
	manager := accounts.NewManager(memory.NewStore())
	_, err := manager.Update(context.Background(), "ghost", nil, func(*domain.Account) error { return nil })
	assert.ErrorIs(t, err, domain.ErrAccountNotFound)
}

func TestManager_LoadOrCreateIsAtomic(t *testing.T) {
	store := memory.NewStore()
	manager := accounts.NewManager(SlowStore{store})
	ctx := context.Background()

	var created int
	var mu sync.Mutex
	create := func(id string) *domain.Account {
		mu.Lock()
		created++
		mu.Unlock()
		return enroll(id)
	}

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			account, err := manager.LoadOrCreate(ctx, "fresh", create)
			assert.NoError(t, err)
			assert.Equal(t, "fresh", account.ID)
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, created)
}

func TestManager_WithDistributedLocker(t *testing.T) {
	mr := miniredis.RunT(t)
	client := backend.NewClient(&backend.Options{Addr: mr.Addr()})
	defer client.Close()

	manager := accounts.NewManager(memory.NewStore(),
		accounts.WithLocker(redis.NewLocker(client, "test:")),
		accounts.WithLockTTL(time.Second),
	)
	ctx := context.Background()

	err := manager.WithLock(ctx, "user_9", func(context.Context) error {
		assert.True(t, mr.Exists("test:lock:user_9"))
		return nil
	})
	require.NoError(t, err)
	assert.False(t, mr.Exists("test:lock:user_9"))
}
