package middleware_test

import (
	"context"
	"testing"

	"github.com/aretw0/teller/pkg/domain"
	"github.com/aretw0/teller/pkg/persistence/middleware"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPIIMiddleware_Masking(t *testing.T) {
	underlying := NewMockStore()
	store := middleware.NewPIIMiddleware([]string{"^sin$"})(underlying)
	ctx := context.Background()

	account := &domain.Account{ID: "user_123", Name: "Melanie", SIN: "123-456-789", CheckingBalance: 8500}
	require.NoError(t, store.Save(ctx, account))

	assert.Equal(t, "123-456-789", account.SIN, "caller's account must not be modified")

	stored, err := underlying.Load(ctx, "user_123")
	require.NoError(t, err)
	assert.Equal(t, "***-***-789", stored.SIN)
	assert.Equal(t, "Melanie", stored.Name)
	assert.Equal(t, 8500.0, stored.CheckingBalance)
}

func TestChain_OrderIsOutermostFirst(t *testing.T) {
	underlying := NewMockStore()
	key := generateKey(t)
	store := middleware.Chain(underlying,
		middleware.NewPIIMiddleware([]string{"^sin$"}),
		middleware.NewEncryptionMiddleware(middleware.EncryptionConfig{ActiveKey: key}),
	)
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, &domain.Account{ID: "a", SIN: "123-456-789"}))

	loaded, err := store.Load(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, "***-***-789", loaded.SIN, "masking happens before sealing")

	raw, err := underlying.Load(ctx, "a")
	require.NoError(t, err)
	assert.NotEmpty(t, raw.Sealed)
}

func TestMask(t *testing.T) {
	assert.Equal(t, "***-***-789", middleware.Mask("123-456-789"))
	assert.Equal(t, "ab", middleware.Mask("ab"))
}
