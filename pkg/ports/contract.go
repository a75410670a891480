package ports

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/aretw0/teller/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// RunAccountStoreContract runs a suite of tests to verify that an AccountStore
// implementation adheres to the defined interface contract.
func RunAccountStoreContract(t *testing.T, store AccountStore) {
	ctx := context.Background()
	accountID := "contract-" + time.Now().Format("20060102150405.000000000")

	sample := func(id string) *domain.Account {
		return &domain.Account{
			ID:              id,
			Name:            "Contract Tester",
			Age:             30,
			Residency:       "Canadian Resident",
			CheckingBalance: 1200.5,
			TFSA:            domain.TFSAProfile{FirstYear: 2020, PastContributions: 6000},
			Transfer:        domain.TransferProfile{Status: "active", DailyLimit: 3000},
			Ledger: []domain.Transaction{
				{ID: "tx-1", Kind: "tfsa_contribution", Amount: 100, Status: "completed", At: time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)},
			},
		}
	}

	t.Run("Save and Load", func(t *testing.T) {
		account := sample(accountID)
		require.NoError(t, store.Save(ctx, account), "Save should not return error")

		loaded, err := store.Load(ctx, accountID)
		require.NoError(t, err, "Load should not return error")
		assert.Equal(t, account.Name, loaded.Name)
		assert.Equal(t, account.CheckingBalance, loaded.CheckingBalance)
		assert.Equal(t, account.TFSA, loaded.TFSA)
		require.Len(t, loaded.Ledger, 1)
		assert.Equal(t, "tx-1", loaded.Ledger[0].ID)
		assert.True(t, account.Ledger[0].At.Equal(loaded.Ledger[0].At))
	})

	t.Run("Loaded copies are independent", func(t *testing.T) {
		loaded, err := store.Load(ctx, accountID)
		require.NoError(t, err)
		loaded.CheckingBalance = -1

		again, err := store.Load(ctx, accountID)
		require.NoError(t, err)
		assert.NotEqual(t, -1.0, again.CheckingBalance)
	})

	t.Run("Load Non-Existent", func(t *testing.T) {
		_, err := store.Load(ctx, "non-existent-"+accountID)
		assert.ErrorIs(t, err, domain.ErrAccountNotFound)
	})

	t.Run("List", func(t *testing.T) {
		id1 := accountID + "-1"
		id2 := accountID + "-2"
		require.NoError(t, store.Save(ctx, sample(id1)))
		require.NoError(t, store.Save(ctx, sample(id2)))
		defer func() {
			_ = store.Delete(ctx, id1)
			_ = store.Delete(ctx, id2)
		}()

		ids, err := store.List(ctx)
		require.NoError(t, err)
		assert.Contains(t, ids, id1)
		assert.Contains(t, ids, id2)
	})

	t.Run("Concurrent saves", func(t *testing.T) {
		var wg sync.WaitGroup
		for i := 0; i < 10; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				a := sample(accountID)
				a.CheckingBalance = float64(i)
				assert.NoError(t, store.Save(ctx, a))
			}(i)
		}
		wg.Wait()

		_, err := store.Load(ctx, accountID)
		assert.NoError(t, err)
	})

	t.Run("Delete", func(t *testing.T) {
		require.NoError(t, store.Delete(ctx, accountID), "Delete should not return error")

		_, err := store.Load(ctx, accountID)
		assert.ErrorIs(t, err, domain.ErrAccountNotFound, "Load after Delete should return ErrAccountNotFound")

		assert.NoError(t, store.Delete(ctx, accountID), "Deleting twice should be a no-op")
	})
}
