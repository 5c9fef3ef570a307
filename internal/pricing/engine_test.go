package pricing

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/hospital-billing/internal/money"
)

func TestCalculateCascade(t *testing.T) {
	res, err := Calculate(Spec{BasePrice: 100_000, MarkupPct: 10, DiscountPct: 5, TaxPct: 18})
	require.NoError(t, err)
	require.Equal(t, Money(10_000), res.MarkupAmount)
	require.Equal(t, Money(5_500), res.DiscountAmount)
	require.Equal(t, Money(104_500), res.Subtotal)
	require.Equal(t, Money(18_810), res.TaxAmount)
	require.Equal(t, Money(123_310), res.NetPrice)

	require.Len(t, res.Breakdown, 6)
	require.Equal(t, "base price", res.Breakdown[0].Label)
	require.Equal(t, "markup 10%", res.Breakdown[1].Label)
	require.Equal(t, Money(-5_500), res.Breakdown[2].Amount)
	require.Equal(t, "net price", res.Breakdown[5].Label)
	require.Equal(t, res.NetPrice, res.Breakdown[5].Amount)
}

func TestCalculateZeroPercentsIsIdentity(t *testing.T) {
	for _, base := range []Money{0, 1, 99, 12_345, 9_999_999} {
		res, err := Calculate(Spec{BasePrice: base})
		require.NoError(t, err)
		require.Equal(t, base, res.NetPrice)
	}
}

func TestCalculateRoundsEachStep(t *testing.T) {
	// markup 33 × 15% = 4.95 -> 5; discount 38 × 12.5% = 4.75 -> 5;
	// subtotal 33; tax 33 × 7% = 2.31 -> 2.
	res, err := Calculate(Spec{BasePrice: 33, MarkupPct: 15, DiscountPct: 12.5, TaxPct: 7})
	require.NoError(t, err)
	require.Equal(t, Money(5), res.MarkupAmount)
	require.Equal(t, Money(5), res.DiscountAmount)
	require.Equal(t, Money(33), res.Subtotal)
	require.Equal(t, Money(2), res.TaxAmount)
	require.Equal(t, Money(35), res.NetPrice)
	require.Equal(t, "discount 12.5%", res.Breakdown[2].Label)
}

func TestCalculateMonotonic(t *testing.T) {
	base := Spec{BasePrice: 77_777, MarkupPct: 20, DiscountPct: 20, TaxPct: 12}
	net := func(s Spec) Money {
		res, err := Calculate(s)
		require.NoError(t, err)
		return res.NetPrice
	}
	prevMarkup, prevTax, prevDiscount := net(Spec{BasePrice: base.BasePrice, DiscountPct: base.DiscountPct, TaxPct: base.TaxPct}), Money(0), Money(1<<62)
	for p := money.Percent(0); p <= 100; p += 0.5 {
		s := base
		s.MarkupPct = p
		got := net(s)
		require.GreaterOrEqual(t, got, prevMarkup, "markup %v", p)
		prevMarkup = got

		s = base
		s.TaxPct = p
		got = net(s)
		require.GreaterOrEqual(t, got, prevTax, "tax %v", p)
		prevTax = got

		s = base
		s.DiscountPct = p
		got = net(s)
		require.LessOrEqual(t, got, prevDiscount, "discount %v", p)
		prevDiscount = got
	}
}

func TestCalculateValidation(t *testing.T) {
	cases := map[string]Spec{
		"negative base":     {BasePrice: -1},
		"markup too high":   {BasePrice: 10, MarkupPct: 100.01},
		"negative discount": {BasePrice: 10, DiscountPct: -5},
		"tax too high":      {BasePrice: 10, TaxPct: 250},
	}
	for name, spec := range cases {
		t.Run(name, func(t *testing.T) {
			res, err := Calculate(spec)
			require.ErrorIs(t, err, ErrInvalidInput)
			require.Equal(t, Result{}, res)
		})
	}
}

func TestCalculateRejectsAmountsBeyondRange(t *testing.T) {
	_, err := Calculate(Spec{BasePrice: math.MaxInt64 - 10, MarkupPct: 50})
	require.ErrorIs(t, err, ErrInvalidInput)

	// in range on input, out of range once marked up and taxed
	_, err = Calculate(Spec{BasePrice: money.MaxAmount, MarkupPct: 50, TaxPct: 10})
	require.ErrorIs(t, err, ErrInvalidInput)

	res, err := Calculate(Spec{BasePrice: money.MaxAmount})
	require.NoError(t, err)
	require.Equal(t, money.MaxAmount, res.NetPrice)
}

func TestSuggestTiers(t *testing.T) {
	tiers, err := SuggestTiers(123_310)
	require.NoError(t, err)
	require.Equal(t, Money(123_310), tiers.Cash)
	require.Equal(t, Money(113_445), tiers.Insurance)
	require.Equal(t, Money(118_378), tiers.Corporate)

	for _, net := range []Money{1, 7, 50, 999, 1_000_001} {
		tiers, err := SuggestTiers(net)
		require.NoError(t, err)
		require.Equal(t, net, tiers.Cash)
		require.LessOrEqual(t, tiers.Insurance, tiers.Corporate)
		require.LessOrEqual(t, tiers.Corporate, tiers.Cash)
	}

	_, err = SuggestTiers(-1)
	require.ErrorIs(t, err, ErrInvalidInput)
}
