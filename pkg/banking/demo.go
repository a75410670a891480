package banking

import "github.com/aretw0/teller/pkg/domain"

// Demo customer ids.
const (
	DemoTFSAUser     = "user_123"
	DemoTransferUser = "user_456"
)

// DemoAccounts returns the seeded customers.
func DemoAccounts() []*domain.Account {
	return []*domain.Account{
		{
			ID:              DemoTFSAUser,
			Name:            "Melanie",
			Age:             25,
			Residency:       "Canadian Resident",
			SIN:             "123-456-789",
			CheckingBalance: 8500,
			TFSA: domain.TFSAProfile{
				FirstYear:                2023,
				PastContributions:        6500,
				WithdrawalsLastYear:      2000,
				CurrentYearContributions: 1500,
				Balance:                  8000,
			},
			Transfer: domain.TransferProfile{
				AccountAgeMonths: 30,
				Status:           "active",
				KYCStatus:        "verified",
				AverageBalance:   8500,
				DailyLimit:       3000,
			},
		},
		{
			ID:              DemoTransferUser,
			Name:            "Brian",
			Age:             41,
			Residency:       "Canadian Resident",
			SIN:             "987-654-321",
			CheckingBalance: 15000,
			TFSA: domain.TFSAProfile{
				FirstYear:         2009,
				PastContributions: 60000,
				Balance:           74000,
			},
			Transfer: domain.TransferProfile{
				AccountAgeMonths: 18,
				Status:           "active",
				KYCStatus:        "verified",
				FraudFlags:       0,
				AverageBalance:   15000,
				DailyLimit:       3000,
			},
		},
	}
}

// EnrollFromDemo is the default enrollment policy: an unknown customer gets
// a copy of the demo TFSA customer under its own id.
func EnrollFromDemo(id string) *domain.Account {
	a := DemoAccounts()[0]
	a.ID = id
	return a
}
