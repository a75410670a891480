package domain

import "time"

// Account is a customer record as kept by the banking collaborator.
type Account struct {
	ID              string          `json:"id"`
	Name            string          `json:"name"`
	Age             int             `json:"age"`
	Residency       string          `json:"residency"`
	SIN             string          `json:"sin,omitempty"`
	CheckingBalance float64         `json:"checking_balance"`
	TFSA            TFSAProfile     `json:"tfsa"`
	Transfer        TransferProfile `json:"e_transfer"`
	Ledger          []Transaction   `json:"ledger,omitempty"`
	UpdatedAt       time.Time       `json:"updated_at"`

	// Sealed carries an encrypted copy of the record when the store is
	// wrapped by an encryption middleware. All other fields are then empty.
	Sealed string `json:"sealed,omitempty"`
}

// TFSAProfile holds the Tax-Free Savings Account history of a customer.
type TFSAProfile struct {
	FirstYear                int     `json:"first_tfsa_year"`
	PastContributions        float64 `json:"past_contributions"`
	WithdrawalsLastYear      float64 `json:"withdrawals_last_year"`
	CurrentYearContributions float64 `json:"current_year_contributions"`
	Balance                  float64 `json:"balance"`
}

// TransferProfile holds the e-Transfer standing of a customer.
type TransferProfile struct {
	AccountAgeMonths int     `json:"account_age_months"`
	Status           string  `json:"account_status"`
	KYCStatus        string  `json:"kyc_status"`
	FraudFlags       int     `json:"fraud_flags"`
	AverageBalance   float64 `json:"avg_balance"`
	DailyLimit       float64 `json:"current_limit"`
}

// Transaction is a ledger entry on an account.
type Transaction struct {
	ID     string    `json:"id"`
	Kind   string    `json:"kind"`
	Amount float64   `json:"amount"`
	Status string    `json:"status"`
	At     time.Time `json:"at"`
}

// Clone returns a copy with its own ledger slice.
func (a *Account) Clone() *Account {
	if a == nil {
		return nil
	}
	out := *a
	out.Ledger = append([]Transaction(nil), a.Ledger...)
	return &out
}
