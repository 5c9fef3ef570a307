package ident

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFormat(t *testing.T) {
	require.Equal(t, "INV045", Format(PrefixInvoice, 45))
	require.Equal(t, "RX000", Format(PrefixPrescription, 0))
	require.Equal(t, "CLM234", Format(PrefixClaim, 1234))
	require.Equal(t, "TXN007", Format(PrefixTransaction, -7))
	require.Equal(t, "ADM001", Format(PrefixAdmission, -1001))
}

func TestParseRoundTripAllPrefixes(t *testing.T) {
	for _, p := range Prefixes() {
		for seq := 0; seq <= MaxSequence; seq++ {
			got, ok := Parse(Format(p, seq))
			if !ok {
				t.Fatalf("parse(%s) failed", Format(p, seq))
			}
			if got.Prefix != p || got.Sequence != seq {
				t.Fatalf("round trip mismatch for %s: %+v", Format(p, seq), got)
			}
		}
	}
}

func TestParseRejectsMalformed(t *testing.T) {
	for _, text := range []string{"XY12", "", "INV45", "INV0450", "inv045", "ABCD123", "ZZ123", " INV045"} {
		_, ok := Parse(text)
		require.False(t, ok, "expected no match for %q", text)
	}
}

func TestParseAsFiltersPrefix(t *testing.T) {
	_, ok := ParseAs("INV045", PrefixReceipt)
	require.False(t, ok)

	id, ok := ParseAs("INV045", PrefixInvoice)
	require.True(t, ok)
	require.Equal(t, Identifier{Prefix: PrefixInvoice, Sequence: 45}, id)
}

func TestGenerateRange(t *testing.T) {
	low := Generator{IntN: func(int) int { return 0 }}.Generate(PrefixBill)
	require.Equal(t, 1, low.Sequence)
	high := Generator{IntN: func(n int) int { return n - 1 }}.Generate(PrefixBill)
	require.Equal(t, MaxSequence, high.Sequence)

	for i := 0; i < 500; i++ {
		id := Generate(PrefixOrder)
		require.GreaterOrEqual(t, id.Sequence, 1)
		require.LessOrEqual(t, id.Sequence, MaxSequence)
		_, ok := ParseAs(id.String(), PrefixOrder)
		require.True(t, ok)
	}
}

func TestParsePrefix(t *testing.T) {
	p, err := ParsePrefix(" rx ")
	require.NoError(t, err)
	require.Equal(t, PrefixPrescription, p)

	_, err = ParsePrefix("ZZZ")
	require.ErrorIs(t, err, ErrUnknownPrefix)
}
