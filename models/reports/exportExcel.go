package reports

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/mmdatafocus/gst_reconciliation/models"
	"github.com/xuri/excelize/v2"
)

const (
	ColumnMembership      = "Membership"
	ColumnAmountsMatch    = "Amounts Match"
	ColumnMismatchedField = "Mismatched Fields"

	// ExportFileName is the download name of the reconciliation workbook.
	ExportFileName = "GST_Reconciliation_Result.xlsx"
	ExportMimeType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

var dateNumFmt = "yyyy-mm-dd"

// Section is one worksheet: a summary row, a header row and data rows.
// DateColumns lists 1-based columns holding dates.
type Section struct {
	SheetName   string
	Summary     []interface{}
	Header      []string
	Rows        [][]interface{}
	DateColumns []int
}

// WorkbookBuilder accumulates sections without touching any workbook until
// Build serializes them all at once. WithSection returns a new builder.
type WorkbookBuilder struct {
	sections []Section
}

func NewWorkbookBuilder() WorkbookBuilder {
	return WorkbookBuilder{}
}

func (b WorkbookBuilder) WithSection(s Section) WorkbookBuilder {
	sections := make([]Section, len(b.sections), len(b.sections)+1)
	copy(sections, b.sections)
	return WorkbookBuilder{sections: append(sections, s)}
}

func (b WorkbookBuilder) Sections() []Section {
	out := make([]Section, len(b.sections))
	copy(out, b.sections)
	return out
}

// Build writes every section to its own sheet, in order, and returns the
// xlsx bytes.
func (b WorkbookBuilder) Build() ([]byte, error) {
	if len(b.sections) == 0 {
		return nil, errors.New("workbook has no sections")
	}

	f := excelize.NewFile()
	defer f.Close()

	dateStyle, err := f.NewStyle(&excelize.Style{CustomNumFmt: &dateNumFmt})
	if err != nil {
		return nil, err
	}

	defaultSheet := f.GetSheetList()[0]
	for i, s := range b.sections {
		if i == 0 {
			if err := f.SetSheetName(defaultSheet, s.SheetName); err != nil {
				return nil, err
			}
		} else if _, err := f.NewSheet(s.SheetName); err != nil {
			return nil, err
		}
		if err := writeSection(f, s, dateStyle); err != nil {
			return nil, fmt.Errorf("sheet %q: %w", s.SheetName, err)
		}
	}
	f.SetActiveSheet(0)

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func writeSection(f *excelize.File, s Section, dateStyle int) error {
	summary := s.Summary
	if err := f.SetSheetRow(s.SheetName, "A1", &summary); err != nil {
		return err
	}
	header := make([]interface{}, len(s.Header))
	for i, h := range s.Header {
		header[i] = h
	}
	if err := f.SetSheetRow(s.SheetName, "A2", &header); err != nil {
		return err
	}
	for i, row := range s.Rows {
		cell, err := excelize.CoordinatesToCellName(1, i+3)
		if err != nil {
			return err
		}
		values := row
		if err := f.SetSheetRow(s.SheetName, cell, &values); err != nil {
			return err
		}
	}
	if len(s.Rows) == 0 {
		return nil
	}
	for _, col := range s.DateColumns {
		top, err := excelize.CoordinatesToCellName(col, 3)
		if err != nil {
			return err
		}
		bottom, err := excelize.CoordinatesToCellName(col, len(s.Rows)+2)
		if err != nil {
			return err
		}
		if err := f.SetCellStyle(s.SheetName, top, bottom, dateStyle); err != nil {
			return err
		}
	}
	return nil
}

// ExportReconciliationExcel renders the four categories as sheets in fixed
// order.
func ExportReconciliationExcel(report *ReconciliationReport) ([]byte, error) {
	layout := newColumnLayout(report.InternalExtraColumns, report.ExternalExtraColumns)
	builder := NewWorkbookBuilder()
	for _, c := range report.Categories {
		builder = builder.WithSection(layout.section(c))
	}
	return builder.Build()
}

// ReconcileToExcel runs a reconciliation and renders its workbook. No bytes
// are returned when any step fails.
func ReconcileToExcel(ctx context.Context, reconciler *models.Reconciler, internal, external models.RawDataset) (*ReconciliationReport, []byte, error) {
	result, err := reconciler.Reconcile(ctx, internal, external)
	if err != nil {
		return nil, nil, err
	}
	report := BuildReconciliationReport(result)
	data, err := ExportReconciliationExcel(report)
	if err != nil {
		return nil, nil, err
	}
	return report, data, nil
}

// columnLayout mirrors an outer join's column naming: shared key columns
// once, side columns suffixed _int/_ext. Extra columns get a suffix only
// when both sides carry the same name, and are renamed further when they
// would repeat another output header.
type columnLayout struct {
	internalExtras []string
	externalExtras []string
	internalNames  []string
	externalNames  []string
}

var sideColumns = []string{
	models.ColumnInvoiceDate,
	models.ColumnTaxableValue,
	models.ColumnIGSTAmount,
	models.ColumnCGSTAmount,
	models.ColumnSGSTAmount,
}

func newColumnLayout(internalExtras, externalExtras []string) columnLayout {
	shared := make(map[string]bool)
	inInternal := make(map[string]bool, len(internalExtras))
	for _, c := range internalExtras {
		inInternal[c] = true
	}
	for _, c := range externalExtras {
		if inInternal[c] {
			shared[c] = true
		}
	}

	taken := map[string]bool{
		models.ColumnInvoiceNumber: true,
		models.ColumnGSTIN:         true,
		ColumnMembership:           true,
		ColumnAmountsMatch:         true,
		ColumnMismatchedField:      true,
	}
	for _, side := range []models.Side{models.SideInternal, models.SideExternal} {
		for _, col := range sideColumns {
			taken[col+side.Suffix()] = true
		}
	}

	name := func(side models.Side, col string) string {
		if shared[col] {
			col += side.Suffix()
		}
		if taken[col] {
			base := col + side.Suffix()
			col = base
			for n := 1; taken[col]; n++ {
				col = fmt.Sprintf("%s.%d", base, n)
			}
		}
		taken[col] = true
		return col
	}
	l := columnLayout{internalExtras: internalExtras, externalExtras: externalExtras}
	for _, col := range internalExtras {
		l.internalNames = append(l.internalNames, name(models.SideInternal, col))
	}
	for _, col := range externalExtras {
		l.externalNames = append(l.externalNames, name(models.SideExternal, col))
	}
	return l
}

func (l columnLayout) header(c ReportCategory) []string {
	h := []string{models.ColumnInvoiceNumber, models.ColumnGSTIN}
	for _, side := range []models.Side{models.SideInternal, models.SideExternal} {
		for _, col := range sideColumns {
			h = append(h, col+side.Suffix())
		}
		h = append(h, l.extraNames(side)...)
	}
	h = append(h, ColumnMembership)
	switch c {
	case CategoryMatchedInvoices:
		h = append(h, ColumnAmountsMatch)
	case CategoryMismatchInAmounts:
		h = append(h, ColumnAmountsMatch, ColumnMismatchedField)
	}
	return h
}

func (l columnLayout) extraNames(side models.Side) []string {
	if side == models.SideExternal {
		return l.externalNames
	}
	return l.internalNames
}

func (l columnLayout) extras(side models.Side) []string {
	if side == models.SideExternal {
		return l.externalExtras
	}
	return l.internalExtras
}

// dateColumns returns the 1-based positions of Invoice Date_int/_ext.
func (l columnLayout) dateColumns() []int {
	internalDate := 3
	externalDate := internalDate + len(sideColumns) + len(l.internalExtras)
	return []int{internalDate, externalDate}
}

func (l columnLayout) section(c CategoryReport) Section {
	rows := make([][]interface{}, 0, len(c.Rows))
	for _, row := range c.Rows {
		rows = append(rows, l.row(c.Category, row))
	}
	return Section{
		SheetName: c.Category.SheetName(),
		Summary: []interface{}{
			fmt.Sprintf("Total Records: %d", c.TotalRecords),
			fmt.Sprintf("Total Taxable Value: %s", c.TotalTaxableValue.StringFixed(2)),
		},
		Header:      l.header(c.Category),
		Rows:        rows,
		DateColumns: l.dateColumns(),
	}
}

func (l columnLayout) row(c ReportCategory, row models.JoinedRow) []interface{} {
	values := []interface{}{textCell(row.InvoiceNumber), textCell(row.GSTIN)}
	values = append(values, l.sideCells(models.SideInternal, row.Internal)...)
	values = append(values, l.sideCells(models.SideExternal, row.External)...)
	values = append(values, string(row.Membership))

	if c == CategoryMatchedInvoices || c == CategoryMismatchInAmounts {
		match := row.Verdict != nil && row.Verdict.Match
		values = append(values, match)
	}
	if c == CategoryMismatchInAmounts {
		values = append(values, mismatchText(row.Verdict))
	}
	return values
}

func (l columnLayout) sideCells(side models.Side, rec *models.InvoiceRecord) []interface{} {
	extras := l.extras(side)
	cells := make([]interface{}, 0, len(sideColumns)+len(extras))
	if rec == nil {
		for i := 0; i < len(sideColumns)+len(extras); i++ {
			cells = append(cells, nil)
		}
		return cells
	}

	if rec.InvoiceDate != nil {
		cells = append(cells, *rec.InvoiceDate)
	} else {
		cells = append(cells, nil)
	}
	for _, col := range models.AmountColumns {
		amount := rec.Amount(col)
		if amount.Valid {
			cells = append(cells, amount.Decimal.InexactFloat64())
		} else {
			cells = append(cells, nil)
		}
	}
	for _, col := range extras {
		if v := rec.Extra[col]; v != "" {
			cells = append(cells, v)
		} else {
			cells = append(cells, nil)
		}
	}
	return cells
}

func textCell(v *string) interface{} {
	if v == nil {
		return nil
	}
	return *v
}

func mismatchText(v *models.Verdict) string {
	if v == nil || len(v.Mismatches) == 0 {
		return ""
	}
	parts := make([]string, 0, len(v.Mismatches))
	for _, m := range v.Mismatches {
		parts = append(parts, fmt.Sprintf("%s (%s)", m.Field, m.Difference.StringFixed(2)))
	}
	return strings.Join(parts, ", ")
}
