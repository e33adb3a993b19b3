package models

import (
	"fmt"
	"strings"

	"github.com/mmdatafocus/gst_reconciliation/utils"
	"github.com/shopspring/decimal"
)

// columnSynonyms maps header spellings seen in purchase books and supplier
// statements to canonical column names.
var columnSynonyms = map[string]string{
	"Invoice No":     ColumnInvoiceNumber,
	"Supplier GSTIN": ColumnGSTIN,
	"IGST":           ColumnIGSTAmount,
	"CGST":           ColumnCGSTAmount,
	"SGST":           ColumnSGSTAmount,
}

// NormalizeDataset maps a raw sheet onto the canonical invoice schema.
// Cells that fail to parse become null; no row is dropped. A *SchemaError is
// returned when a required column is still missing after renaming.
func NormalizeDataset(side Side, raw RawDataset) (*InvoiceDataset, error) {
	columns := canonicalColumns(raw.Columns)

	index := make(map[string]int, len(columns))
	for i, c := range columns {
		if _, seen := index[c]; !seen {
			index[c] = i
		}
	}

	var missing []string
	for _, c := range RequiredColumns {
		if _, ok := index[c]; !ok {
			missing = append(missing, c)
		}
	}
	if len(missing) > 0 {
		return nil, &SchemaError{Side: side, Columns: missing}
	}

	required := make(map[string]bool, len(RequiredColumns))
	for _, c := range RequiredColumns {
		required[c] = true
	}
	var extras []string
	for _, c := range columns {
		if !required[c] {
			extras = append(extras, c)
		}
	}

	records := make([]InvoiceRecord, 0, len(raw.Rows))
	for _, row := range raw.Rows {
		cell := func(column string) string {
			i := index[column]
			if i < len(row) {
				return row[i]
			}
			return ""
		}

		rec := InvoiceRecord{
			InvoiceNumber: normalizeKeyText(cell(ColumnInvoiceNumber)),
			GSTIN:         normalizeKeyText(cell(ColumnGSTIN)),
			TaxableValue:  parseAmount(cell(ColumnTaxableValue)),
			IGSTAmount:    parseAmount(cell(ColumnIGSTAmount)),
			CGSTAmount:    parseAmount(cell(ColumnCGSTAmount)),
			SGSTAmount:    parseAmount(cell(ColumnSGSTAmount)),
		}
		if d, err := utils.ParseDate(cell(ColumnInvoiceDate)); err == nil {
			rec.InvoiceDate = &d
		}
		if len(extras) > 0 {
			rec.Extra = make(map[string]string, len(extras))
			for _, c := range extras {
				rec.Extra[c] = cell(c)
			}
		}
		records = append(records, rec)
	}

	return &InvoiceDataset{
		Side:         side,
		Records:      records,
		ExtraColumns: extras,
	}, nil
}

// Raw renders the dataset back into canonical raw form: required columns
// first, then extras. Null cells render empty.
func (ds *InvoiceDataset) Raw() RawDataset {
	columns := make([]string, 0, len(RequiredColumns)+len(ds.ExtraColumns))
	columns = append(columns, RequiredColumns...)
	columns = append(columns, ds.ExtraColumns...)

	rows := make([][]string, 0, len(ds.Records))
	for i := range ds.Records {
		rec := &ds.Records[i]
		row := []string{
			utils.DereferencePtr(rec.InvoiceNumber),
			utils.DereferencePtr(rec.GSTIN),
			"",
			formatAmount(rec.TaxableValue),
			formatAmount(rec.IGSTAmount),
			formatAmount(rec.CGSTAmount),
			formatAmount(rec.SGSTAmount),
		}
		if rec.InvoiceDate != nil {
			row[2] = rec.InvoiceDate.Format("2006-01-02")
		}
		for _, c := range ds.ExtraColumns {
			row = append(row, rec.Extra[c])
		}
		rows = append(rows, row)
	}
	return RawDataset{Columns: columns, Rows: rows}
}

// canonicalColumns trims headers, names blank ones, de-duplicates repeats
// and renames synonyms. A synonym is left as-is when its canonical column
// is already present.
func canonicalColumns(headers []string) []string {
	named := make([]string, len(headers))
	taken := make(map[string]bool, len(headers))
	for i, h := range headers {
		h = strings.TrimSpace(h)
		if h == "" {
			h = fmt.Sprintf("Unnamed: %d", i)
		}
		named[i] = h
		taken[h] = true
	}

	// Repeats become X.1, X.2, ... skipping any name another header holds.
	trimmed := make([]string, len(named))
	seen := make(map[string]int, len(named))
	present := make(map[string]bool, len(named))
	for i, h := range named {
		if n := seen[h]; n > 0 {
			candidate := fmt.Sprintf("%s.%d", h, n)
			for taken[candidate] {
				n++
				candidate = fmt.Sprintf("%s.%d", h, n)
			}
			seen[h] = n + 1
			taken[candidate] = true
			h = candidate
		} else {
			seen[h] = 1
		}
		trimmed[i] = h
		present[h] = true
	}

	out := make([]string, len(trimmed))
	for i, h := range trimmed {
		if canonical, ok := columnSynonyms[h]; ok && !present[canonical] {
			// claim it so a second synonym for the same column stays put
			present[canonical] = true
			h = canonical
		}
		out[i] = h
	}
	return out
}

func normalizeKeyText(v string) *string {
	return utils.NilIfEmpty(strings.ToUpper(strings.TrimSpace(v)))
}

func parseAmount(v string) decimal.NullDecimal {
	d, err := utils.ParseDecimal(v)
	if err != nil {
		return decimal.NullDecimal{}
	}
	return decimal.NullDecimal{Decimal: d, Valid: true}
}

func formatAmount(v decimal.NullDecimal) string {
	if !v.Valid {
		return ""
	}
	return v.Decimal.String()
}
