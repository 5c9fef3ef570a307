package money

import (
	"math"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func TestPercentValid(t *testing.T) {
	require.True(t, Percent(0).Valid())
	require.True(t, Percent(100).Valid())
	require.True(t, Percent(12.5).Valid())
	require.False(t, Percent(-0.01).Valid())
	require.False(t, Percent(100.5).Valid())
	require.False(t, Percent(math.NaN()).Valid())
	require.False(t, Percent(math.Inf(1)).Valid())
}

func TestPercentOfRoundsHalfUp(t *testing.T) {
	require.Equal(t, Money(10000), PercentOf(100_000, 10))
	// 105 × 10% = 10.5 -> 11
	require.Equal(t, Money(11), PercentOf(105, 10))
	// 104 × 10% = 10.4 -> 10
	require.Equal(t, Money(10), PercentOf(104, 10))
	require.Equal(t, Money(0), PercentOf(0, 18))
}

func TestOfKeepsFractionalPercentExact(t *testing.T) {
	got := Of(decimal.NewFromInt(1000), 12.5)
	require.True(t, got.Equal(decimal.NewFromInt(125)), "got %s", got)
}

func TestScale(t *testing.T) {
	require.Equal(t, Money(92), Scale(100, decimal.RequireFromString("0.92")))
	// 123310 × 0.96 = 118377.6 -> 118378
	require.Equal(t, Money(118378), Scale(123_310, decimal.RequireFromString("0.96")))
}

func TestRoundNegativeIsSymmetric(t *testing.T) {
	require.Equal(t, Money(-3), Round(decimal.RequireFromString("-2.5")))
	require.Equal(t, Money(3), Round(decimal.RequireFromString("2.5")))
}

func TestFitBoundsAmount(t *testing.T) {
	got, err := Fit(decimal.RequireFromString("12.5"))
	require.NoError(t, err)
	require.Equal(t, Money(13), got)

	got, err = Fit(decimal.NewFromInt(MaxAmount))
	require.NoError(t, err)
	require.Equal(t, MaxAmount, got)

	_, err = Fit(decimal.NewFromInt(MaxAmount).Add(decimal.NewFromInt(1)))
	require.ErrorIs(t, err, ErrOutOfRange)

	// would wrap if multiplied in int64
	_, err = Fit(decimal.NewFromInt(math.MaxInt64 / 2).Mul(decimal.NewFromInt(3)))
	require.ErrorIs(t, err, ErrOutOfRange)
}
