package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Canonical column names of an invoice dataset.
const (
	ColumnInvoiceNumber = "Invoice Number"
	ColumnGSTIN         = "GSTIN"
	ColumnInvoiceDate   = "Invoice Date"
	ColumnTaxableValue  = "Taxable Value"
	ColumnIGSTAmount    = "IGST Amount"
	ColumnCGSTAmount    = "CGST Amount"
	ColumnSGSTAmount    = "SGST Amount"
)

// RequiredColumns must be present in every dataset after synonym renaming.
var RequiredColumns = []string{
	ColumnInvoiceNumber,
	ColumnGSTIN,
	ColumnInvoiceDate,
	ColumnTaxableValue,
	ColumnIGSTAmount,
	ColumnCGSTAmount,
	ColumnSGSTAmount,
}

// AmountColumns are compared pairwise under the amount tolerance.
var AmountColumns = []string{
	ColumnTaxableValue,
	ColumnIGSTAmount,
	ColumnCGSTAmount,
	ColumnSGSTAmount,
}

type Side string

const (
	SideInternal Side = "internal"
	SideExternal Side = "external"
)

// Suffix is appended to side-specific column names in joined output.
func (s Side) Suffix() string {
	if s == SideExternal {
		return "_ext"
	}
	return "_int"
}

// RawDataset is a sheet as handed over by the upload shell: a header row and
// string cells, in file order.
type RawDataset struct {
	Columns []string
	Rows    [][]string
}

// InvoiceRecord is one normalized row. Records are never mutated after
// NormalizeDataset returns them.
type InvoiceRecord struct {
	InvoiceNumber *string
	GSTIN         *string
	InvoiceDate   *time.Time
	TaxableValue  decimal.NullDecimal
	IGSTAmount    decimal.NullDecimal
	CGSTAmount    decimal.NullDecimal
	SGSTAmount    decimal.NullDecimal

	// Extra holds unrecognized columns by header name.
	Extra map[string]string
}

// CompositeKey joins internal and external records.
type CompositeKey struct {
	InvoiceNumber string
	GSTIN         string
}

// Key returns the composite key; ok is false when either part is null,
// in which case the record can never be paired.
func (r *InvoiceRecord) Key() (key CompositeKey, ok bool) {
	if r.InvoiceNumber == nil || r.GSTIN == nil {
		return CompositeKey{}, false
	}
	return CompositeKey{InvoiceNumber: *r.InvoiceNumber, GSTIN: *r.GSTIN}, true
}

// Amount returns the monetary value stored under one of AmountColumns.
func (r *InvoiceRecord) Amount(column string) decimal.NullDecimal {
	switch column {
	case ColumnTaxableValue:
		return r.TaxableValue
	case ColumnIGSTAmount:
		return r.IGSTAmount
	case ColumnCGSTAmount:
		return r.CGSTAmount
	case ColumnSGSTAmount:
		return r.SGSTAmount
	}
	return decimal.NullDecimal{}
}

// InvoiceDataset is the normalized form of one side's RawDataset.
type InvoiceDataset struct {
	Side         Side
	Records      []InvoiceRecord
	ExtraColumns []string
}

type Membership string

const (
	MembershipBoth         Membership = "both"
	MembershipInternalOnly Membership = "internal-only"
	MembershipExternalOnly Membership = "external-only"
)

// JoinedRow is one row of the outer join. Internal is nil for
// external-only rows and External is nil for internal-only rows.
type JoinedRow struct {
	InvoiceNumber *string
	GSTIN         *string
	Internal      *InvoiceRecord
	External      *InvoiceRecord
	Membership    Membership

	// Verdict is set on both-rows once amounts are compared.
	Verdict *Verdict
}
