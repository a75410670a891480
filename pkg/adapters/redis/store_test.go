package redis_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/aretw0/teller/pkg/adapters/redis"
	"github.com/aretw0/teller/pkg/domain"
	"github.com/aretw0/teller/pkg/ports"
	backend "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newClient(t *testing.T) (*miniredis.Miniredis, *backend.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := backend.NewClient(&backend.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

func TestRedisStore_Contract(t *testing.T) {
	_, client := newClient(t)
	ports.RunAccountStoreContract(t, redis.NewFromClient(client))
}

func TestRedisStore_PrefixAndTTL(t *testing.T) {
	mr, client := newClient(t)
	store := redis.NewFromClient(client, redis.WithPrefix("test:"), redis.WithTTL(time.Minute))
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, &domain.Account{ID: "user_123", Name: "Melanie"}))

	assert.True(t, mr.Exists("test:user_123"))
	assert.Equal(t, time.Minute, mr.TTL("test:user_123"))

	mr.FastForward(2 * time.Minute)
	_, err := store.Load(ctx, "user_123")
	assert.ErrorIs(t, err, domain.ErrAccountNotFound)
}
