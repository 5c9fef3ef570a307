// Package ident formats, parses and generates short business identifiers
// such as INV045 or RX007.
package ident

import (
	"errors"
	"fmt"
	"math/rand/v2"
	"regexp"
	"strconv"
	"strings"
)

// ErrUnknownPrefix is returned when a prefix outside the closed enumeration is used.
var ErrUnknownPrefix = errors.New("ident: unknown prefix")

// Prefix identifies the kind of business record an identifier refers to.
type Prefix string

const (
	PrefixInvoice      Prefix = "INV"
	PrefixReceipt      Prefix = "RCP"
	PrefixBill         Prefix = "BIL"
	PrefixDocument     Prefix = "DOC"
	PrefixClaim        Prefix = "CLM"
	PrefixOrder        Prefix = "ORD"
	PrefixLabOrder     Prefix = "LAB"
	PrefixPrescription Prefix = "RX"
	PrefixAdmission    Prefix = "ADM"
	PrefixTransaction  Prefix = "TXN"
)

// MaxSequence is the largest sequence representable in three digits.
const MaxSequence = 999

var knownPrefixes = map[Prefix]struct{}{
	PrefixInvoice:      {},
	PrefixReceipt:      {},
	PrefixBill:         {},
	PrefixDocument:     {},
	PrefixClaim:        {},
	PrefixOrder:        {},
	PrefixLabOrder:     {},
	PrefixPrescription: {},
	PrefixAdmission:    {},
	PrefixTransaction:  {},
}

var pattern = regexp.MustCompile(`^([A-Z]{2,3})(\d{3})$`)

// Prefixes lists every known prefix in a stable order.
func Prefixes() []Prefix {
	return []Prefix{
		PrefixInvoice, PrefixReceipt, PrefixBill, PrefixDocument, PrefixClaim,
		PrefixOrder, PrefixLabOrder, PrefixPrescription, PrefixAdmission, PrefixTransaction,
	}
}

// Valid reports whether p belongs to the closed prefix enumeration.
func (p Prefix) Valid() bool {
	_, ok := knownPrefixes[p]
	return ok
}

// ParsePrefix normalises raw input into a known prefix.
func ParsePrefix(raw string) (Prefix, error) {
	p := Prefix(strings.ToUpper(strings.TrimSpace(raw)))
	if !p.Valid() {
		return "", fmt.Errorf("%w: %q", ErrUnknownPrefix, raw)
	}
	return p, nil
}

// Identifier is a prefix plus a three digit sequence.
type Identifier struct {
	Prefix   Prefix `json:"prefix"`
	Sequence int    `json:"sequence"`
}

// String renders the canonical form, e.g. INV045.
func (id Identifier) String() string {
	return Format(id.Prefix, id.Sequence)
}

// Format renders prefix followed by |sequence| mod 1000 zero-padded to three digits.
func Format(prefix Prefix, sequence int) string {
	seq := sequence % (MaxSequence + 1)
	if seq < 0 {
		seq = -seq
	}
	return fmt.Sprintf("%s%03d", prefix, seq)
}

// Parse recognises canonical identifiers. The boolean is false when text is
// not an identifier this package issues; that is a normal outcome, not an error.
func Parse(text string) (Identifier, bool) {
	m := pattern.FindStringSubmatch(text)
	if m == nil {
		return Identifier{}, false
	}
	prefix := Prefix(m[1])
	if !prefix.Valid() {
		return Identifier{}, false
	}
	seq, err := strconv.Atoi(m[2])
	if err != nil {
		return Identifier{}, false
	}
	return Identifier{Prefix: prefix, Sequence: seq}, true
}

// ParseAs is Parse restricted to a single expected prefix.
func ParseAs(text string, want Prefix) (Identifier, bool) {
	id, ok := Parse(text)
	if !ok || id.Prefix != want {
		return Identifier{}, false
	}
	return id, true
}

// Generator produces random identifiers. Uniqueness is not guaranteed; see Allocator.
type Generator struct {
	// IntN returns a value in [0, n). Defaults to math/rand/v2.
	IntN func(n int) int
}

// Generate returns an identifier with a random sequence in [1, 999].
func (g Generator) Generate(prefix Prefix) Identifier {
	intn := g.IntN
	if intn == nil {
		intn = rand.IntN
	}
	return Identifier{Prefix: prefix, Sequence: 1 + intn(MaxSequence)}
}

// Generate is Generator{}.Generate.
func Generate(prefix Prefix) Identifier {
	return Generator{}.Generate(prefix)
}
