// Package core holds the trip domain: money, currencies, trips and expenses.
package core

import (
	"fmt"
	"math"
	"strings"

	"github.com/shopspring/decimal"
)

// MaxAmountCents caps a single amount at one hundred billion major units.
const MaxAmountCents int64 = 10_000_000_000_000

var maxAmount = decimal.NewFromInt(MaxAmountCents)

// ParseDecimalToCents reads a positive amount such as "12.34" or "12,34".
// Digits past the second decimal round half up ("0.125" is 13 cents).
// Signs, exponents, grouping and zero are rejected with ErrInvalidAmount;
// amounts above MaxAmountCents with ErrAmountTooLarge.
func ParseDecimalToCents(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if s == "" || strings.ContainsAny(s, "+-eE") {
		return 0, ErrInvalidAmount
	}
	s = strings.Replace(s, ",", ".", 1)
	if strings.HasPrefix(s, ".") {
		s = "0" + s
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, ErrInvalidAmount
	}
	cents := d.Shift(2).Round(0)
	if !cents.IsPositive() {
		return 0, ErrInvalidAmount
	}
	if cents.GreaterThan(maxAmount) {
		return 0, ErrAmountTooLarge
	}
	return cents.IntPart(), nil
}

// CentsFromFloat converts a floating point major-unit amount (as found in
// JSON payloads) to integer cents, rounding half away from zero. The input
// must be finite and within MaxAmountCents; use AmountFromFloat for
// untrusted values.
func CentsFromFloat(v float64) int64 {
	return decimal.NewFromFloat(v).Shift(2).Round(0).IntPart()
}

// AmountFromFloat is CentsFromFloat for untrusted input. NaN and infinities
// give ErrInvalidAmount, magnitudes above MaxAmountCents ErrAmountTooLarge.
func AmountFromFloat(v float64) (int64, error) {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("%w: %v", ErrInvalidAmount, v)
	}
	cents := decimal.NewFromFloat(v).Shift(2).Round(0)
	if cents.Abs().GreaterThan(maxAmount) {
		return 0, fmt.Errorf("%w: %v", ErrAmountTooLarge, v)
	}
	return cents.IntPart(), nil
}

// Decimal returns the amount in major units as an exact decimal.
func (m Money) Decimal() decimal.Decimal {
	return decimal.New(m.Cents, -2)
}

// Float returns the amount in major units as a float64 for JSON and display.
// Use cents for calculations to avoid floating-point precision issues.
func (m Money) Float() float64 {
	f, _ := m.Decimal().Float64()
	return f
}

// String formats the amount with exactly two decimals and a dot separator.
func (m Money) String() string {
	return m.Decimal().StringFixed(2)
}

// Add returns m + o.
func (m Money) Add(o Money) Money { return Money{Cents: m.Cents + o.Cents} }

// Sub returns m - o.
func (m Money) Sub(o Money) Money { return Money{Cents: m.Cents - o.Cents} }

// Abs returns the absolute value of m.
func (m Money) Abs() Money {
	if m.Cents < 0 {
		return Money{Cents: -m.Cents}
	}
	return m
}
