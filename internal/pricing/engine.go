package pricing

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/noah-isme/hospital-billing/internal/money"
	"github.com/noah-isme/hospital-billing/internal/validation"
)

// ErrInvalidInput is returned when price inputs fail validation.
var ErrInvalidInput = errors.New("pricing: invalid input")

// Money represents a monetary value stored in minor units.
type Money = money.Money

// Spec describes a catalog item's base price and percentage adjustments.
type Spec struct {
	BasePrice   Money         `json:"basePrice" validate:"gte=0,lte=1000000000000000"`
	MarkupPct   money.Percent `json:"markupPct" validate:"gte=0,lte=100"`
	DiscountPct money.Percent `json:"discountPct" validate:"gte=0,lte=100"`
	TaxPct      money.Percent `json:"taxPct" validate:"gte=0,lte=100"`
}

// BreakdownLine is one labelled step of the price cascade.
type BreakdownLine struct {
	Label  string `json:"label"`
	Amount Money  `json:"amount"`
}

// Result is the derived net price and each intermediate amount.
type Result struct {
	BasePrice      Money           `json:"basePrice"`
	MarkupAmount   Money           `json:"markupAmount"`
	DiscountAmount Money           `json:"discountAmount"`
	Subtotal       Money           `json:"subtotal"`
	TaxAmount      Money           `json:"taxAmount"`
	NetPrice       Money           `json:"netPrice"`
	Breakdown      []BreakdownLine `json:"breakdown"`
}

// Validate checks the inputs without computing anything.
func (s Spec) Validate() error {
	if err := validation.Struct(s); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	return nil
}

// Calculate applies markup, then discount on the marked-up amount, then tax on
// the discounted subtotal. Every step is rounded half-up to whole minor units
// before the next one reads it.
func Calculate(s Spec) (Result, error) {
	if err := s.Validate(); err != nil {
		return Result{}, err
	}
	markup := money.PercentOf(s.BasePrice, s.MarkupPct)
	discount := money.PercentOf(s.BasePrice+markup, s.DiscountPct)
	subtotal := s.BasePrice + markup - discount
	tax := money.PercentOf(subtotal, s.TaxPct)
	net := subtotal + tax
	if net > money.MaxAmount {
		return Result{}, fmt.Errorf("%w: net price %d: %v", ErrInvalidInput, net, money.ErrOutOfRange)
	}

	return Result{
		BasePrice:      s.BasePrice,
		MarkupAmount:   markup,
		DiscountAmount: discount,
		Subtotal:       subtotal,
		TaxAmount:      tax,
		NetPrice:       net,
		Breakdown: []BreakdownLine{
			{Label: "base price", Amount: s.BasePrice},
			{Label: fmt.Sprintf("markup %s%%", pct(s.MarkupPct)), Amount: markup},
			{Label: fmt.Sprintf("discount %s%%", pct(s.DiscountPct)), Amount: -discount},
			{Label: "subtotal", Amount: subtotal},
			{Label: fmt.Sprintf("tax %s%%", pct(s.TaxPct)), Amount: tax},
			{Label: "net price", Amount: net},
		},
	}, nil
}

func pct(p money.Percent) string {
	return decimal.NewFromFloat(float64(p)).String()
}
