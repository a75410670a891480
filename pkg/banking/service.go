package banking

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/aretw0/teller/internal/logging"
	"github.com/aretw0/teller/pkg/accounts"
	"github.com/aretw0/teller/pkg/domain"
	nanoid "github.com/matoous/go-nanoid/v2"
)

// MaxTransferLimit is the ceiling for e-Transfer limits.
const MaxTransferLimit = 10000.0

// MinAccountAgeMonths is the minimum account age for a limit increase.
const MinAccountAgeMonths = 6

// Receipt statuses.
const (
	StatusSuccess = "success"
	StatusFailed  = "failed"
)

var (
	// ErrInvalidAmount is returned for non-positive amounts.
	ErrInvalidAmount = errors.New("amount must be positive")
	// ErrLimitTooHigh is returned when a requested limit exceeds the allowed maximum.
	ErrLimitTooHigh = errors.New("requested limit exceeds maximum")

	errInsufficientFunds = errors.New("insufficient funds")
	errExceedsRoom       = errors.New("exceeds contribution room")
)

// Service is the mocked core-banking API.
type Service struct {
	accounts *accounts.Manager
	enroll   func(id string) *domain.Account
	clock    func() time.Time
	newID    func() (string, error)
	logger   *slog.Logger
}

// Option configures a Service.
type Option func(*Service)

// WithClock injects the time source.
func WithClock(clock func() time.Time) Option {
	return func(s *Service) { s.clock = clock }
}

// WithIDGenerator injects the transaction id generator.
func WithIDGenerator(gen func() (string, error)) Option {
	return func(s *Service) { s.newID = gen }
}

// WithEnrollment sets the policy for customers missing from the store.
// A nil policy makes unknown customers fail with domain.ErrAccountNotFound.
func WithEnrollment(enroll func(id string) *domain.Account) Option {
	return func(s *Service) { s.enroll = enroll }
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

// NewService creates a Service on top of an account manager.
func NewService(m *accounts.Manager, opts ...Option) *Service {
	s := &Service{
		accounts: m,
		enroll:   EnrollFromDemo,
		clock:    time.Now,
		newID: func() (string, error) {
			return nanoid.Generate("0123456789ABCDEFGHJKLMNPQRSTUVWXYZ", 10)
		},
		logger: logging.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Now returns the service clock's current time.
func (s *Service) Now() time.Time { return s.clock() }

// Profile returns the customer's account.
func (s *Service) Profile(ctx context.Context, userID string) (*domain.Account, error) {
	return s.accounts.LoadOrCreate(ctx, userID, s.enroll)
}

// ContributionReceipt is the outcome of a TFSA contribution.
type ContributionReceipt struct {
	Status           string  `json:"status"`
	Reason           string  `json:"reason,omitempty"`
	Amount           float64 `json:"amount"`
	NewBalance       float64 `json:"new_balance,omitempty"`
	NewContributions float64 `json:"new_contributions,omitempty"`
	CheckingBalance  float64 `json:"checking_balance,omitempty"`
	RemainingRoom    float64 `json:"remaining_room,omitempty"`
	Excess           float64 `json:"excess,omitempty"`
	TransactionID    string  `json:"transaction_id,omitempty"`
}

// ContributeTFSA moves amount from checking into the TFSA. Room is computed
// from the locked account with currentLimit as this year's limit, so
// concurrent contributions can never exceed it together.
// Insufficient funds or room produce a failed receipt, not an error.
func (s *Service) ContributeTFSA(ctx context.Context, userID string, amount, currentLimit float64) (*ContributionReceipt, error) {
	if amount <= 0 || math.IsNaN(amount) || math.IsInf(amount, 0) {
		return nil, ErrInvalidAmount
	}

	now := s.clock()
	txID, err := s.newID()
	if err != nil {
		return nil, fmt.Errorf("generate transaction id: %w", err)
	}
	txID = fmt.Sprintf("TFSA-%d-%s", now.Year(), txID)

	receipt := &ContributionReceipt{Amount: amount}
	var room float64
	_, err = s.accounts.Update(ctx, userID, s.enroll, func(a *domain.Account) error {
		room = RoomFor(a.TFSA, a.Age, now.Year(), currentLimit)
		if amount > room {
			return errExceedsRoom
		}
		if amount > a.CheckingBalance {
			return errInsufficientFunds
		}
		a.CheckingBalance -= amount
		a.TFSA.CurrentYearContributions += amount
		a.TFSA.Balance += amount
		a.Ledger = append(a.Ledger, domain.Transaction{
			ID:     txID,
			Kind:   "tfsa_contribution",
			Amount: amount,
			Status: "completed",
			At:     now,
		})
		a.UpdatedAt = now

		receipt.Status = StatusSuccess
		receipt.NewBalance = a.TFSA.Balance
		receipt.NewContributions = a.TFSA.CurrentYearContributions
		receipt.CheckingBalance = a.CheckingBalance
		receipt.RemainingRoom = room - amount
		receipt.TransactionID = txID
		return nil
	})
	if errors.Is(err, errExceedsRoom) {
		s.logger.InfoContext(ctx, "contribution declined", "account_id", userID, "amount", amount, "room", room)
		return &ContributionReceipt{Status: StatusFailed, Reason: "Exceeds contribution room", Amount: amount, Excess: amount - room}, nil
	}
	if errors.Is(err, errInsufficientFunds) {
		s.logger.InfoContext(ctx, "contribution declined", "account_id", userID, "amount", amount)
		return &ContributionReceipt{Status: StatusFailed, Reason: "Insufficient funds", Amount: amount}, nil
	}
	if err != nil {
		return nil, err
	}
	s.logger.InfoContext(ctx, "contribution executed", "account_id", userID, "amount", amount, "transaction_id", txID)
	return receipt, nil
}

// Eligibility is the outcome of an e-Transfer limit eligibility check.
type Eligibility struct {
	Eligible         bool     `json:"eligible"`
	Reasons          []string `json:"reasons"`
	MaxPossibleLimit float64  `json:"max_possible_limit"`
}

// CheckEligibility applies the limit increase rules to the customer.
func (s *Service) CheckEligibility(ctx context.Context, userID string) (*Eligibility, error) {
	a, err := s.Profile(ctx, userID)
	if err != nil {
		return nil, err
	}
	return Evaluate(a.Transfer), nil
}

// Evaluate applies the eligibility rules to a transfer profile.
func Evaluate(p domain.TransferProfile) *Eligibility {
	e := &Eligibility{Eligible: true, Reasons: []string{}, MaxPossibleLimit: MaxTransferLimit}
	fail := func(reason string) {
		e.Eligible = false
		e.Reasons = append(e.Reasons, reason)
	}
	if p.AccountAgeMonths < MinAccountAgeMonths {
		fail("Account must be at least 6 months old")
	}
	if p.Status != "active" {
		fail("Account must be in active status")
	}
	if p.KYCStatus != "verified" {
		fail("KYC verification required")
	}
	if p.FraudFlags > 0 {
		fail("Account has fraud flags")
	}
	return e
}

// LimitChange is the outcome of an e-Transfer limit increase.
type LimitChange struct {
	Success       bool      `json:"success"`
	PreviousLimit float64   `json:"previous_limit"`
	NewLimit      float64   `json:"new_limit"`
	EffectiveDate time.Time `json:"effective_date"`
	ReferenceID   string    `json:"reference_id"`
}

// IncreaseTransferLimit sets the customer's e-Transfer limit.
func (s *Service) IncreaseTransferLimit(ctx context.Context, userID string, newLimit float64) (*LimitChange, error) {
	if newLimit <= 0 || math.IsNaN(newLimit) {
		return nil, ErrInvalidAmount
	}
	if newLimit > MaxTransferLimit {
		return nil, fmt.Errorf("%w: %.2f > %.2f", ErrLimitTooHigh, newLimit, MaxTransferLimit)
	}

	now := s.clock()
	change := &LimitChange{
		Success:       true,
		NewLimit:      newLimit,
		EffectiveDate: now,
		ReferenceID:   "LIMIT-" + now.Format("20060102-150405"),
	}
	_, err := s.accounts.Update(ctx, userID, s.enroll, func(a *domain.Account) error {
		change.PreviousLimit = a.Transfer.DailyLimit
		a.Transfer.DailyLimit = newLimit
		a.Ledger = append(a.Ledger, domain.Transaction{
			ID:     change.ReferenceID,
			Kind:   "etransfer_limit_change",
			Amount: newLimit,
			Status: "completed",
			At:     now,
		})
		a.UpdatedAt = now
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.logger.InfoContext(ctx, "e-Transfer limit changed", "account_id", userID, "previous", change.PreviousLimit, "new", newLimit)
	return change, nil
}
