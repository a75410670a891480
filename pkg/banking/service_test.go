package banking_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/aretw0/teller/pkg/accounts"
	"github.com/aretw0/teller/pkg/adapters/memory"
	"github.com/aretw0/teller/pkg/banking"
	"github.com/aretw0/teller/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2025, 6, 15, 14, 30, 5, 0, time.UTC)

func newService(t *testing.T, opts ...banking.Option) (*banking.Service, *memory.Store) {
	t.Helper()
	store := memory.NewStore(banking.DemoAccounts()...)
	opts = append([]banking.Option{
		banking.WithClock(func() time.Time { return fixedNow }),
		banking.WithIDGenerator(func() (string, error) { return "ABC123", nil }),
	}, opts...)
	return banking.NewService(accounts.NewManager(store), opts...), store
}

func TestService_ContributeTFSA(t *testing.T) {
	svc, store := newService(t)
	ctx := context.Background()

	receipt, err := svc.ContributeTFSA(ctx, banking.DemoTFSAUser, 500, 0)
	require.NoError(t, err)

	assert.Equal(t, banking.StatusSuccess, receipt.Status)
	assert.Equal(t, "TFSA-2025-ABC123", receipt.TransactionID)
	assert.Equal(t, 8500.0, receipt.NewBalance)
	assert.Equal(t, 2000.0, receipt.NewContributions)
	assert.Equal(t, 8000.0, receipt.CheckingBalance)
	assert.Equal(t, 14000.0, receipt.RemainingRoom)

	stored, err := store.Load(ctx, banking.DemoTFSAUser)
	require.NoError(t, err)
	assert.Equal(t, 8000.0, stored.CheckingBalance)
	require.Len(t, stored.Ledger, 1)
	assert.Equal(t, "TFSA-2025-ABC123", stored.Ledger[0].ID)
}

func TestService_ContributeTFSA_InsufficientFunds(t *testing.T) {
	svc, store := newService(t)
	ctx := context.Background()

	receipt, err := svc.ContributeTFSA(ctx, banking.DemoTFSAUser, 9000, 0)
	require.NoError(t, err)
	assert.Equal(t, banking.StatusFailed, receipt.Status)
	assert.Equal(t, "Insufficient funds", receipt.Reason)

	stored, err := store.Load(ctx, banking.DemoTFSAUser)
	require.NoError(t, err)
	assert.Equal(t, 8500.0, stored.CheckingBalance, "declined contributions leave the account untouched")
	assert.Empty(t, stored.Ledger)
}

func TestService_ContributeTFSA_InvalidAmount(t *testing.T) {
	svc, _ := newService(t)
	_, err := svc.ContributeTFSA(context.Background(), banking.DemoTFSAUser, 0, 0)
	assert.ErrorIs(t, err, banking.ErrInvalidAmount)
}

func TestService_ConcurrentContributions(t *testing.T) {
	svc, store := newService(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.ContributeTFSA(ctx, banking.DemoTFSAUser, 100, 0)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	stored, err := store.Load(ctx, banking.DemoTFSAUser)
	require.NoError(t, err)
	assert.Equal(t, 7500.0, stored.CheckingBalance)
	assert.Len(t, stored.Ledger, 10)
}

func TestService_ContributeTFSA_ExceedsRoom(t *testing.T) {
	svc, store := newService(t)
	ctx := context.Background()

	receipt, err := svc.ContributeTFSA(ctx, banking.DemoTFSAUser, 15000, 7500)
	require.NoError(t, err)
	assert.Equal(t, banking.StatusFailed, receipt.Status)
	assert.Equal(t, "Insufficient funds", receipt.Reason, "a higher current limit adds room")
	assert.Zero(t, receipt.Excess)

	receipt, err = svc.ContributeTFSA(ctx, banking.DemoTFSAUser, 15000, 0)
	require.NoError(t, err)
	assert.Equal(t, banking.StatusFailed, receipt.Status)
	assert.Equal(t, "Exceeds contribution room", receipt.Reason)
	assert.Equal(t, 500.0, receipt.Excess)

	stored, err := store.Load(ctx, banking.DemoTFSAUser)
	require.NoError(t, err)
	assert.Equal(t, 1500.0, stored.TFSA.CurrentYearContributions)
	assert.Empty(t, stored.Ledger)
}

func TestService_ConcurrentContributionsRespectRoom(t *testing.T) {
	svc, store := newService(t)
	ctx := context.Background()

	rich, err := store.Load(ctx, banking.DemoTFSAUser)
	require.NoError(t, err)
	rich.CheckingBalance = 100000
	require.NoError(t, store.Save(ctx, rich))

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int
	)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			receipt, err := svc.ContributeTFSA(ctx, banking.DemoTFSAUser, 2000, 0)
			if !assert.NoError(t, err) {
				return
			}
			if receipt.Status == banking.StatusSuccess {
				mu.Lock()
				succeeded++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	// 14500 of room fits seven contributions of 2000.
	assert.Equal(t, 7, succeeded)
	stored, err := store.Load(ctx, banking.DemoTFSAUser)
	require.NoError(t, err)
	assert.Equal(t, 15500.0, stored.TFSA.CurrentYearContributions)
	assert.Equal(t, 500.0, banking.RoomFor(stored.TFSA, stored.Age, fixedNow.Year(), 0))
}

func TestService_EnrollmentPolicy(t *testing.T) {
	svc, _ := newService(t)
	a, err := svc.Profile(context.Background(), "new_customer")
	require.NoError(t, err)
	assert.Equal(t, "new_customer", a.ID)
	assert.Equal(t, "Melanie", a.Name)

	strict, _ := newService(t, banking.WithEnrollment(nil))
	_, err = strict.Profile(context.Background(), "new_customer")
	assert.ErrorIs(t, err, domain.ErrAccountNotFound)
}

func TestEvaluate(t *testing.T) {
	ok := domain.TransferProfile{AccountAgeMonths: 18, Status: "active", KYCStatus: "verified"}
	e := banking.Evaluate(ok)
	assert.True(t, e.Eligible)
	assert.Empty(t, e.Reasons)
	assert.Equal(t, banking.MaxTransferLimit, e.MaxPossibleLimit)

	bad := domain.TransferProfile{AccountAgeMonths: 2, Status: "frozen", KYCStatus: "pending", FraudFlags: 1}
	e = banking.Evaluate(bad)
	assert.False(t, e.Eligible)
	assert.Equal(t, []string{
		"Account must be at least 6 months old",
		"Account must be in active status",
		"KYC verification required",
		"Account has fraud flags",
	}, e.Reasons)
}

func TestService_IncreaseTransferLimit(t *testing.T) {
	svc, store := newService(t)
	ctx := context.Background()

	change, err := svc.IncreaseTransferLimit(ctx, banking.DemoTransferUser, 5010)
	require.NoError(t, err)
	assert.True(t, change.Success)
	assert.Equal(t, 3000.0, change.PreviousLimit)
	assert.Equal(t, 5010.0, change.NewLimit)
	assert.Equal(t, "LIMIT-20250615-143005", change.ReferenceID)

	stored, err := store.Load(ctx, banking.DemoTransferUser)
	require.NoError(t, err)
	assert.Equal(t, 5010.0, stored.Transfer.DailyLimit)

	_, err = svc.IncreaseTransferLimit(ctx, banking.DemoTransferUser, 20000)
	assert.ErrorIs(t, err, banking.ErrLimitTooHigh)
}
