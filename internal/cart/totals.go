package cart

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/noah-isme/hospital-billing/internal/money"
)

// Totals aggregates the computed cart components.
type Totals struct {
	Subtotal      Money `json:"subtotal"`
	DiscountTotal Money `json:"discountTotal"`
	TaxTotal      Money `json:"taxTotal"`
	NetPayable    Money `json:"netPayable"`
}

// Aggregate computes cart totals for items plus a flat base charge.
//
// Every line is carried at full precision and all four fields are rounded
// half-up exactly once, from the exact aggregates. Because Subtotal and
// DiscountTotal are rounded independently, Subtotal can differ by one minor
// unit from gross + baseCharge - DiscountTotal when the discount sum ends in
// exactly .5.
func Aggregate(items []LineItem, baseCharge Money) (Totals, error) {
	if baseCharge < 0 || baseCharge > money.MaxAmount {
		return Totals{}, fmt.Errorf("%w: baseCharge must be within [0, %d]", ErrInvalidInput, money.MaxAmount)
	}
	var (
		gross    = decimal.Zero
		discount = decimal.Zero
		tax      = decimal.Zero
	)
	for _, it := range items {
		if err := it.Validate(); err != nil {
			return Totals{}, err
		}
		lineGross := decimal.NewFromInt(it.UnitPrice).Mul(decimal.NewFromInt(int64(it.Qty)))
		lineDiscount := money.Of(lineGross, it.DiscountPct)
		lineNet := lineGross.Sub(lineDiscount)

		gross = gross.Add(lineGross)
		discount = discount.Add(lineDiscount)
		tax = tax.Add(money.Of(lineNet, it.TaxPct))
	}

	subtotal := gross.Add(decimal.NewFromInt(baseCharge)).Sub(discount)
	var firstErr error
	fit := func(d decimal.Decimal) Money {
		m, err := money.Fit(d)
		if err != nil && firstErr == nil {
			firstErr = err
		}
		return m
	}
	out := Totals{
		Subtotal:      fit(subtotal),
		DiscountTotal: fit(discount),
		TaxTotal:      fit(tax),
		NetPayable:    fit(subtotal.Add(tax)),
	}
	if firstErr != nil {
		return Totals{}, fmt.Errorf("%w: %v", ErrInvalidInput, firstErr)
	}
	return out, nil
}
