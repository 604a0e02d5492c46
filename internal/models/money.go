package models

import (
	"errors"
	"fmt"
	"math"
	"regexp"
	"strconv"
)

// ErrBadAmount is returned when a client-supplied amount string cannot be
// parsed into a monetary value.
var ErrBadAmount = errors.New("invalid amount")

var amountFilter = regexp.MustCompile(`[^0-9.]`)

// SanitizeAmount strips every character that is not a digit or decimal point,
// so inputs like "$1,500.00" or "50 dollars" survive parsing.
func SanitizeAmount(s string) string {
	return amountFilter.ReplaceAllString(s, "")
}

// ParseAmount converts a decimal dollar string into minor units (cents).
// The input is expected to be pre-sanitized; anything unparseable yields
// ErrBadAmount.
func ParseAmount(s string) (int64, error) {
	if s == "" {
		return 0, ErrBadAmount
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, ErrBadAmount
	}
	return DollarsToCents(f), nil
}

// DollarsToCents converts a float dollar amount to minor units, rounding to
// the nearest cent.
func DollarsToCents(f float64) int64 {
	return int64(math.Round(f * 100))
}

// FormatAmount renders minor units as a two-decimal dollar string without a
// currency symbol, e.g. 15000 -> "150.00".
func FormatAmount(cents int64) string {
	sign := ""
	if cents < 0 {
		sign = "-"
		cents = -cents
	}
	return fmt.Sprintf("%s%d.%02d", sign, cents/100, cents%100)
}
