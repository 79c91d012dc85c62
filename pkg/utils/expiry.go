// Package utils provides shared calendar and maturity helpers.
package utils

import (
	"strconv"
	"strings"
	"time"

	"option-pricer/internal/errors"
)

// DaysPerYear is the ACT/365 day count convention used throughout.
const DaysPerYear = 365.0

// TradingDaysPerYear annualizes daily return statistics. The synthetic
// candle generator and the volatility indicators step with the same
// convention.
const TradingDaysPerYear = 252.0

// ParseMaturity parses a maturity expression into year fractions.
//
// Accepted forms:
//
//	"0.5"          plain year fraction
//	"30d" "2w"     days and weeks, ACT/365
//	"6m" "1y"      months as twelfths, years as is
//	"2026-12-18"   calendar date, years until that date
//
// The result must be strictly positive; a date in the past is an error.
func ParseMaturity(s string) (float64, error) {
	return parseMaturityAt(s, time.Now().UTC())
}

func parseMaturityAt(s string, now time.Time) (float64, error) {
	raw := strings.TrimSpace(strings.ToLower(s))
	if raw == "" {
		return 0, errors.NewParameterError("maturity", s, "must not be empty")
	}

	if date, err := time.Parse("2006-01-02", raw); err == nil {
		years := YearsBetween(now, date)
		if years <= 0 {
			return 0, errors.NewParameterError("maturity", s, "date must be in the future")
		}
		return years, nil
	}

	unit := 1.0
	num := raw
	switch {
	case strings.HasSuffix(raw, "d"):
		unit, num = 1/DaysPerYear, raw[:len(raw)-1]
	case strings.HasSuffix(raw, "w"):
		unit, num = 7/DaysPerYear, raw[:len(raw)-1]
	case strings.HasSuffix(raw, "m"):
		unit, num = 1.0/12, raw[:len(raw)-1]
	case strings.HasSuffix(raw, "y"):
		num = raw[:len(raw)-1]
	}

	value, err := strconv.ParseFloat(num, 64)
	if err != nil {
		return 0, errors.NewParameterError("maturity", s, "must be a year fraction, a duration like 30d or 6m, or a YYYY-MM-DD date")
	}

	years := value * unit
	if years <= 0 {
		return 0, errors.NewParameterError("maturity", s, "must be positive")
	}
	return years, nil
}

// YearsBetween returns the ACT/365 year fraction from one instant to another.
func YearsBetween(from, to time.Time) float64 {
	return to.Sub(from).Hours() / 24 / DaysPerYear
}

// YearsUntil returns the ACT/365 year fraction from now until t.
func YearsUntil(t time.Time) float64 {
	return YearsBetween(time.Now().UTC(), t)
}

// ThirdFriday returns the third Friday of the given month, at midnight UTC.
func ThirdFriday(year int, month time.Month) time.Time {
	first := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	offset := (int(time.Friday) - int(first.Weekday()) + 7) % 7
	return first.AddDate(0, 0, offset+14)
}

// NextMonthlyExpiry returns the first monthly listed expiry, the third
// Friday of a month, strictly after t.
func NextMonthlyExpiry(t time.Time) time.Time {
	expiry := ThirdFriday(t.Year(), t.Month())
	if !expiry.After(t) {
		next := time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC).AddDate(0, 1, 0)
		expiry = ThirdFriday(next.Year(), next.Month())
	}
	return expiry
}
