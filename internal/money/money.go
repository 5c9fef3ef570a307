// Package money holds the minor-unit amount and percentage primitives shared
// by the pricing, cart and stay calculators.
package money

import (
	"errors"
	"fmt"
	"math"

	"github.com/shopspring/decimal"
)

// Money represents a monetary value stored in minor units.
type Money = int64

// MaxAmount bounds every input amount and every computed total: 10^15 minor
// units. Intermediate values up to a few multiples of it still fit in int64.
const MaxAmount Money = 1_000_000_000_000_000

// ErrOutOfRange is returned when a computed amount exceeds MaxAmount.
var ErrOutOfRange = errors.New("money: amount out of range")

// Percent is a percentage in the closed range [0, 100].
type Percent float64

// Valid reports whether the percentage lies within [0, 100].
func (p Percent) Valid() bool {
	f := float64(p)
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return false
	}
	return f >= 0 && f <= 100
}

// Decimal returns the exact decimal form of the percentage.
func (p Percent) Decimal() decimal.Decimal {
	return decimal.NewFromFloat(float64(p))
}

// Of returns amount × pct / 100 at full precision.
func Of(amount decimal.Decimal, pct Percent) decimal.Decimal {
	return amount.Mul(pct.Decimal()).Shift(-2)
}

// Round converts a decimal amount into whole minor units. Halves round away
// from zero, which is round-half-up for the non-negative amounts used here.
func Round(d decimal.Decimal) Money {
	return d.Round(0).IntPart()
}

// PercentOf returns round(amount × pct / 100).
func PercentOf(amount Money, pct Percent) Money {
	return Round(Of(decimal.NewFromInt(amount), pct))
}

// Scale returns round(amount × factor).
func Scale(amount Money, factor decimal.Decimal) Money {
	return Round(decimal.NewFromInt(amount).Mul(factor))
}

// Fit rounds d to whole minor units and rejects results whose magnitude
// exceeds MaxAmount.
func Fit(d decimal.Decimal) (Money, error) {
	r := d.Round(0)
	if r.Abs().GreaterThan(decimal.NewFromInt(MaxAmount)) {
		return 0, fmt.Errorf("%w: %s exceeds %d", ErrOutOfRange, r.String(), MaxAmount)
	}
	return r.IntPart(), nil
}
