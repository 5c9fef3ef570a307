package cart

import (
	"fmt"
	"strings"
)

// DiscountMode selects how a global discount reduces the payable amount.
type DiscountMode string

const (
	// DiscountModeCorrected subtracts the clamped discount from the
	// tax-inclusive payable amount.
	DiscountModeCorrected DiscountMode = "corrected"
	// DiscountModeLegacy reproduces the historical override
	// subtotal - discountTotal - discount, which subtracts line discounts a
	// second time and drops tax. Use only to reconcile old invoices.
	DiscountModeLegacy DiscountMode = "legacy"
)

// ParseDiscountMode maps a configuration value onto a DiscountMode.
// An empty value selects DiscountModeCorrected.
func ParseDiscountMode(raw string) (DiscountMode, error) {
	switch DiscountMode(strings.ToLower(strings.TrimSpace(raw))) {
	case "", DiscountModeCorrected:
		return DiscountModeCorrected, nil
	case DiscountModeLegacy:
		return DiscountModeLegacy, nil
	default:
		return "", fmt.Errorf("%w: unknown discount mode %q", ErrInvalidInput, raw)
	}
}

// ApplyGlobalDiscount applies one additional flat discount on top of
// aggregated totals. The discount is clamped to the subtotal; callers that
// need to know whether a clamp happened compare the requested amount with
// the returned DiscountTotal delta.
func ApplyGlobalDiscount(t Totals, amount Money, mode DiscountMode) (Totals, error) {
	if amount < 0 {
		return Totals{}, fmt.Errorf("%w: global discount must be gte 0", ErrInvalidInput)
	}
	clamped := min(amount, t.Subtotal)
	if clamped < 0 {
		clamped = 0
	}

	out := t
	out.DiscountTotal = t.DiscountTotal + clamped
	switch mode {
	case DiscountModeCorrected, "":
		out.NetPayable = t.NetPayable - clamped
	case DiscountModeLegacy:
		out.NetPayable = max(t.Subtotal-t.DiscountTotal-clamped, 0)
	default:
		return Totals{}, fmt.Errorf("%w: unknown discount mode %q", ErrInvalidInput, mode)
	}
	return out, nil
}

// AppliedDiscount returns the portion of a requested global discount that
// ApplyGlobalDiscount actually takes off t.
func AppliedDiscount(t Totals, requested Money) Money {
	if requested <= 0 || t.Subtotal <= 0 {
		return 0
	}
	return min(requested, t.Subtotal)
}
