package models

import (
	"github.com/shopspring/decimal"
)

// DefaultAmountTolerance is the largest absolute difference still treated
// as agreement, in the currency unit of the amounts.
var DefaultAmountTolerance = decimal.NewFromInt(1)

// AmountPair holds one monetary field from both sides of a joined row.
type AmountPair struct {
	Field    string
	Internal decimal.NullDecimal
	External decimal.NullDecimal
}

// Difference is internal minus external, with null read as zero
// (a missing amount is no charge).
func (p AmountPair) Difference() decimal.Decimal {
	return valueOrZero(p.Internal).Sub(valueOrZero(p.External))
}

type AmountMismatch struct {
	Field      string
	Difference decimal.Decimal
}

// Verdict is the amount comparison outcome of a both-row.
type Verdict struct {
	Match      bool
	Mismatches []AmountMismatch
}

// AmountPairs returns the four compared fields of a both-row.
func (r JoinedRow) AmountPairs() ([]AmountPair, error) {
	if r.Membership != MembershipBoth || r.Internal == nil || r.External == nil {
		return nil, ErrUnpairedRow
	}
	pairs := make([]AmountPair, 0, len(AmountColumns))
	for _, c := range AmountColumns {
		pairs = append(pairs, AmountPair{
			Field:    c,
			Internal: r.Internal.Amount(c),
			External: r.External.Amount(c),
		})
	}
	return pairs, nil
}

// ComparePairs reports whether every pair agrees within tolerance.
// A negative tolerance cannot be evaluated and yields *ComparisonError.
func ComparePairs(pairs []AmountPair, tolerance decimal.Decimal) (Verdict, error) {
	if tolerance.IsNegative() {
		field := ""
		if len(pairs) > 0 {
			field = pairs[0].Field
		}
		return Verdict{}, &ComparisonError{Field: field, Msg: "tolerance " + tolerance.String() + " is negative"}
	}

	v := Verdict{Match: true}
	for _, p := range pairs {
		diff := p.Difference()
		if diff.Abs().GreaterThan(tolerance) {
			v.Match = false
			v.Mismatches = append(v.Mismatches, AmountMismatch{Field: p.Field, Difference: diff})
		}
	}
	return v, nil
}

// CompareAmounts compares the four monetary fields of a both-row.
func CompareAmounts(row JoinedRow, tolerance decimal.Decimal) (Verdict, error) {
	pairs, err := row.AmountPairs()
	if err != nil {
		return Verdict{}, err
	}
	return ComparePairs(pairs, tolerance)
}

func valueOrZero(v decimal.NullDecimal) decimal.Decimal {
	if !v.Valid {
		return decimal.Zero
	}
	return v.Decimal
}
