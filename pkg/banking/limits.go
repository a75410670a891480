package banking

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/aretw0/teller/pkg/domain"
)

// FirstTFSAYear is the year the TFSA program started.
const FirstTFSAYear = 2009

// DefaultCurrentLimit is used when no current-year limit can be determined.
const DefaultCurrentLimit = 7000.0

// AnnualLimits holds the TFSA dollar limit per calendar year.
var AnnualLimits = map[int]float64{
	2009: 5000, 2010: 5000, 2011: 5000, 2012: 5000,
	2013: 5500, 2014: 5500,
	2015: 10000,
	2016: 5500, 2017: 5500, 2018: 5500,
	2019: 6000, 2020: 6000, 2021: 6000, 2022: 6000,
	2023: 6500,
	2024: 7000, 2025: 7000,
}

// LatestKnownYear is the most recent year present in AnnualLimits.
const LatestKnownYear = 2025

// AnnualLimit returns the limit for year. Years before the program yield 0;
// years after the table repeat the latest known limit.
func AnnualLimit(year int) float64 {
	if year < FirstTFSAYear {
		return 0
	}
	if year > LatestKnownYear {
		return AnnualLimits[LatestKnownYear]
	}
	return AnnualLimits[year]
}

// RoomInput is everything needed to compute available contribution room.
type RoomInput struct {
	Year                     int
	Age                      int
	FirstTFSAYear            int
	PastContributions        float64
	CurrentYearContributions float64
	WithdrawalsLastYear      float64
	CurrentLimit             float64
}

// ContributionRoom computes the room available in in.Year.
// Room accrues from the later of the first TFSA year and the year the
// customer turned 18. Withdrawals from last year are added back.
func ContributionRoom(in RoomInput) float64 {
	birthYear := in.Year - in.Age
	first := max(in.FirstTFSAYear, birthYear+18, FirstTFSAYear)

	currentLimit := in.CurrentLimit
	if currentLimit <= 0 {
		currentLimit = DefaultCurrentLimit
	}

	total := 0.0
	for year := first; year < in.Year; year++ {
		total += AnnualLimit(year)
	}
	if first <= in.Year {
		total += currentLimit
	}

	used := in.PastContributions + in.CurrentYearContributions
	return total - used + in.WithdrawalsLastYear
}

// RoomFor computes the room left for a customer of the given age holding p.
func RoomFor(p domain.TFSAProfile, age, year int, currentLimit float64) float64 {
	return ContributionRoom(RoomInput{
		Year:                     year,
		Age:                      age,
		FirstTFSAYear:            p.FirstYear,
		PastContributions:        p.PastContributions,
		CurrentYearContributions: p.CurrentYearContributions,
		WithdrawalsLastYear:      p.WithdrawalsLastYear,
		CurrentLimit:             currentLimit,
	})
}

var (
	dollarPattern = regexp.MustCompile(`\$\s*(\d[\d,]*(?:\.\d+)?)`)
	numberPattern = regexp.MustCompile(`(\d[\d,]*(?:\.\d+)?)`)
	amountPattern = regexp.MustCompile(`\$?(\d{1,3}(?:,\d{3})*\d*(?:\.\d+)?)`)
)

// ParseLimit extracts a dollar figure from free text such as
// "The 2025 limit is $7,000". A $-prefixed figure wins over bare numbers.
func ParseLimit(text string) (float64, bool) {
	m := dollarPattern.FindStringSubmatch(text)
	if m == nil {
		m = numberPattern.FindStringSubmatch(text)
	}
	if m == nil {
		return 0, false
	}
	v, err := strconv.ParseFloat(strings.ReplaceAll(m[1], ",", ""), 64)
	return v, err == nil && v > 0
}

// ParseAmount extracts the contribution amount from a user request like
// "Contribute $1,500.50". It returns 0 when no amount is present.
func ParseAmount(text string) float64 {
	m := amountPattern.FindStringSubmatch(text)
	if m == nil {
		return 0
	}
	v, err := strconv.ParseFloat(strings.ReplaceAll(m[1], ",", ""), 64)
	if err != nil {
		return 0
	}
	return v
}

// LimitsSummary renders the annual limit table as grouped lines.
func LimitsSummary() string {
	var b strings.Builder
	start := FirstTFSAYear
	for year := FirstTFSAYear + 1; year <= LatestKnownYear+1; year++ {
		if year <= LatestKnownYear && AnnualLimits[year] == AnnualLimits[start] {
			continue
		}
		end := year - 1
		span := strconv.Itoa(start)
		if end != start {
			span += "-" + strconv.Itoa(end)
		}
		b.WriteString("Annual limit for " + span + ": $" + strconv.FormatFloat(AnnualLimits[start], 'f', 0, 64) + "\n")
		start = year
	}
	return b.String()
}
