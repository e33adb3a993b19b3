package models

import (
	"fmt"
	"io"
	"strings"

	"github.com/mmdatafocus/gst_reconciliation/utils"
	"github.com/xuri/excelize/v2"
)

// ReadRawDatasetFromXlsx reads the first sheet of a workbook. The first row
// is the header; raw cell values are kept so dates arrive as Excel serials
// and numbers without display formatting. Fully blank rows are skipped.
// Data cells past the last header cell get a blank header slot.
func ReadRawDatasetFromXlsx(r io.Reader) (RawDataset, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return RawDataset{}, fmt.Errorf("failed to open Excel file: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return RawDataset{}, utils.ErrorEmptyWorkbook
	}

	rows, err := f.GetRows(sheets[0], excelize.Options{RawCellValue: true})
	if err != nil {
		return RawDataset{}, fmt.Errorf("unable to read sheet %q: %w", sheets[0], err)
	}

	header := -1
	for i, row := range rows {
		if !isBlankRow(row) {
			header = i
			break
		}
	}
	if header < 0 {
		return RawDataset{}, utils.ErrorEmptyWorkbook
	}

	width := len(rows[header])
	for _, row := range rows[header+1:] {
		if !isBlankRow(row) && len(row) > width {
			width = len(row)
		}
	}

	columns := make([]string, width)
	copy(columns, rows[header])
	ds := RawDataset{
		Columns: columns,
		Rows:    make([][]string, 0, len(rows)-header-1),
	}
	for _, row := range rows[header+1:] {
		if isBlankRow(row) {
			continue
		}
		cells := make([]string, width)
		copy(cells, row)
		ds.Rows = append(ds.Rows, cells)
	}
	return ds, nil
}

func isBlankRow(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}
