// Package amount implements the fixed-point monetary quantity the matcher
// compares, plus the conversions to and from decimal text at the boundary.
package amount

import (
	"fmt"
	"math"

	"github.com/shopspring/decimal"
)

// Scale is the number of minor units (cents) per major unit. Every amount in
// a search is expressed on this scale before any sum is compared.
const Scale = 100

// scaleExp is log10(Scale), used for decimal shifts.
const scaleExp = 2

// Amount is a monetary quantity in minor units.
type Amount int64

// FromDecimal scales d to minor units, rounding half away from zero.
func FromDecimal(d decimal.Decimal) (Amount, error) {
	scaled := d.Shift(scaleExp).Round(0)
	if !scaled.BigInt().IsInt64() {
		return 0, fmt.Errorf("amount %s overflows int64 minor units", d.String())
	}
	return Amount(scaled.IntPart()), nil
}

// FromFloat converts a float major-unit value. NaN and ±Inf are rejected.
func FromFloat(f float64) (Amount, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, fmt.Errorf("amount %v is not finite", f)
	}
	return FromDecimal(decimal.NewFromFloat(f))
}

// MustParse parses a decimal string and panics on failure. Intended for
// tests and constants.
func MustParse(s string) Amount {
	a, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return a
}

// Parse parses a single decimal string in point notation ("1234.56").
func Parse(s string) (Amount, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, err
	}
	return FromDecimal(d)
}

// Decimal returns the amount in major units.
func (a Amount) Decimal() decimal.Decimal {
	return decimal.New(int64(a), -scaleExp)
}

// String renders the amount with exactly two decimals, e.g. "1234.50".
func (a Amount) String() string {
	return a.Decimal().StringFixed(scaleExp)
}

// Sum returns the exact sum of amounts.
func Sum(amounts []Amount) Amount {
	var total Amount
	for _, a := range amounts {
		total += a
	}
	return total
}
