package pricing

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/noah-isme/hospital-billing/internal/money"
)

var (
	insuranceRate = decimal.RequireFromString("0.92")
	corporateRate = decimal.RequireFromString("0.96")
)

// Tiers holds the suggested price for each payer class.
type Tiers struct {
	Cash      Money `json:"cash"`
	Insurance Money `json:"insurance"`
	Corporate Money `json:"corporate"`
}

// SuggestTiers derives insurance and corporate prices from a net price.
func SuggestTiers(netPrice Money) (Tiers, error) {
	if netPrice < 0 {
		return Tiers{}, fmt.Errorf("%w: netPrice must be gte 0", ErrInvalidInput)
	}
	return Tiers{
		Cash:      netPrice,
		Insurance: money.Scale(netPrice, insuranceRate),
		Corporate: money.Scale(netPrice, corporateRate),
	}, nil
}
