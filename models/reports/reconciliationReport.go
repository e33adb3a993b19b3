package reports

import (
	"github.com/mmdatafocus/gst_reconciliation/models"
	"github.com/shopspring/decimal"
)

type ReportCategory string

const (
	CategoryMatchedInvoices   ReportCategory = "MatchedInvoices"
	CategoryMismatchInAmounts ReportCategory = "MismatchInAmounts"
	CategoryOnlyInInternal    ReportCategory = "OnlyInInternal"
	CategoryOnlyInExternal    ReportCategory = "OnlyInExternal"
)

// ReportCategories is the fixed section order of every report.
var ReportCategories = []ReportCategory{
	CategoryMatchedInvoices,
	CategoryMismatchInAmounts,
	CategoryOnlyInInternal,
	CategoryOnlyInExternal,
}

func (c ReportCategory) SheetName() string {
	switch c {
	case CategoryMatchedInvoices:
		return "Matched Invoices"
	case CategoryMismatchInAmounts:
		return "Mismatch in Amounts"
	case CategoryOnlyInInternal:
		return "Only in Internal"
	case CategoryOnlyInExternal:
		return "Only in External"
	}
	return string(c)
}

// CategoryOf places a joined row in exactly one category. Both-rows without
// a verdict count as mismatched.
func CategoryOf(row models.JoinedRow) ReportCategory {
	switch row.Membership {
	case models.MembershipInternalOnly:
		return CategoryOnlyInInternal
	case models.MembershipExternalOnly:
		return CategoryOnlyInExternal
	}
	if row.Verdict != nil && row.Verdict.Match {
		return CategoryMatchedInvoices
	}
	return CategoryMismatchInAmounts
}

type CategoryReport struct {
	Category          ReportCategory
	Rows              []models.JoinedRow
	TotalRecords      int
	TotalTaxableValue decimal.Decimal
}

type ReconciliationReport struct {
	RunId      string
	Tolerance  decimal.Decimal
	Categories []CategoryReport

	InternalExtraColumns []string
	ExternalExtraColumns []string
}

// BuildReconciliationReport partitions the joined rows into the four
// categories and totals each one. The taxable value total adds both the
// internal and external taxable value of every row, skipping nulls.
func BuildReconciliationReport(result *models.ReconciliationResult) *ReconciliationReport {
	byCategory := make(map[ReportCategory][]models.JoinedRow, len(ReportCategories))
	for _, row := range result.Rows {
		c := CategoryOf(row)
		byCategory[c] = append(byCategory[c], row)
	}

	report := &ReconciliationReport{
		RunId:      result.RunId,
		Tolerance:  result.Tolerance,
		Categories: make([]CategoryReport, 0, len(ReportCategories)),
	}
	if result.Internal != nil {
		report.InternalExtraColumns = result.Internal.ExtraColumns
	}
	if result.External != nil {
		report.ExternalExtraColumns = result.External.ExtraColumns
	}

	for _, c := range ReportCategories {
		rows := byCategory[c]
		total := decimal.Zero
		for _, row := range rows {
			if row.Internal != nil && row.Internal.TaxableValue.Valid {
				total = total.Add(row.Internal.TaxableValue.Decimal)
			}
			if row.External != nil && row.External.TaxableValue.Valid {
				total = total.Add(row.External.TaxableValue.Decimal)
			}
		}
		report.Categories = append(report.Categories, CategoryReport{
			Category:          c,
			Rows:              rows,
			TotalRecords:      len(rows),
			TotalTaxableValue: total,
		})
	}
	return report
}

func (r *ReconciliationReport) Category(c ReportCategory) *CategoryReport {
	for i := range r.Categories {
		if r.Categories[i].Category == c {
			return &r.Categories[i]
		}
	}
	return nil
}

type CategorySummary struct {
	Category          ReportCategory `json:"category"`
	SheetName         string         `json:"sheet_name"`
	TotalRecords      int            `json:"total_records"`
	TotalTaxableValue string         `json:"total_taxable_value"`
}

type ReconciliationSummary struct {
	RunId      string            `json:"run_id"`
	Tolerance  string            `json:"tolerance"`
	Categories []CategorySummary `json:"categories"`
}

func (r *ReconciliationReport) Summary() ReconciliationSummary {
	s := ReconciliationSummary{
		RunId:      r.RunId,
		Tolerance:  r.Tolerance.String(),
		Categories: make([]CategorySummary, 0, len(r.Categories)),
	}
	for _, c := range r.Categories {
		s.Categories = append(s.Categories, CategorySummary{
			Category:          c.Category,
			SheetName:         c.Category.SheetName(),
			TotalRecords:      c.TotalRecords,
			TotalTaxableValue: c.TotalTaxableValue.StringFixed(2),
		})
	}
	return s
}
