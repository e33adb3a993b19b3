package models

import (
	"bytes"
	"errors"
	"testing"
	"time"

	"github.com/mmdatafocus/gst_reconciliation/utils"
	"github.com/xuri/excelize/v2"
)

func workbookBytes(t *testing.T, rows [][]interface{}) []byte {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			t.Fatalf("CoordinatesToCellName: %v", err)
		}
		values := row
		if err := f.SetSheetRow("Sheet1", cell, &values); err != nil {
			t.Fatalf("SetSheetRow: %v", err)
		}
	}
	buf, err := f.WriteToBuffer()
	if err != nil {
		t.Fatalf("WriteToBuffer: %v", err)
	}
	return buf.Bytes()
}

func TestReadRawDatasetFromXlsx_ReadsFirstSheet(t *testing.T) {
	data := workbookBytes(t, [][]interface{}{
		{"Invoice No", "Supplier GSTIN", "Invoice Date", "Taxable Value", "IGST", "CGST", "SGST"},
		{"INV-001", "29ABCDE1234F1Z5", time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC), 1000, 180, 0, 0},
		{nil, nil, nil, nil, nil, nil, nil},
		{"INV-002", "29XXXXX0000X1Z1", "2024-01-16", 500.5},
	})

	raw, err := ReadRawDatasetFromXlsx(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("ReadRawDatasetFromXlsx error: %v", err)
	}
	if len(raw.Columns) != 7 || raw.Columns[0] != "Invoice No" {
		t.Fatalf("unexpected header %v", raw.Columns)
	}
	if len(raw.Rows) != 2 {
		t.Fatalf("expected blank row to be skipped, got %d rows", len(raw.Rows))
	}
	if len(raw.Rows[1]) != 7 {
		t.Fatalf("short rows must be padded to header width, got %d cells", len(raw.Rows[1]))
	}

	ds, err := NormalizeDataset(SideInternal, raw)
	if err != nil {
		t.Fatalf("NormalizeDataset error: %v", err)
	}
	first := ds.Records[0]
	if first.InvoiceDate == nil || first.InvoiceDate.Format("2006-01-02") != "2024-01-15" {
		t.Fatalf("expected serial date to parse, got %v", first.InvoiceDate)
	}
	if first.TaxableValue.Decimal.String() != "1000" {
		t.Fatalf("expected taxable value 1000, got %s", first.TaxableValue.Decimal)
	}
	second := ds.Records[1]
	if second.TaxableValue.Decimal.String() != "500.5" || second.IGSTAmount.Valid {
		t.Fatalf("unexpected second record amounts %+v", second)
	}
}

func TestReadRawDatasetFromXlsx_KeepsCellsBeyondHeader(t *testing.T) {
	data := workbookBytes(t, [][]interface{}{
		{"Invoice Number", "GSTIN", "Invoice Date", "Taxable Value", "IGST Amount", "CGST Amount", "SGST Amount"},
		{"A", "G", "2024-01-01", 1, 0, 0, 0, "remark-in-unheaded-col"},
		{"B", "G", "2024-01-02", 2, 0, 0, 0},
	})

	raw, err := ReadRawDatasetFromXlsx(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("ReadRawDatasetFromXlsx error: %v", err)
	}
	if len(raw.Columns) != 8 || raw.Columns[7] != "" {
		t.Fatalf("expected header widened with a blank slot, got %q", raw.Columns)
	}
	if len(raw.Rows[0]) != 8 || raw.Rows[0][7] != "remark-in-unheaded-col" {
		t.Fatalf("expected trailing cell kept, got %q", raw.Rows[0])
	}
	if len(raw.Rows[1]) != 8 || raw.Rows[1][7] != "" {
		t.Fatalf("expected short row padded to widened header, got %q", raw.Rows[1])
	}

	ds, err := NormalizeDataset(SideInternal, raw)
	if err != nil {
		t.Fatalf("NormalizeDataset error: %v", err)
	}
	if len(ds.ExtraColumns) != 1 || ds.ExtraColumns[0] != "Unnamed: 7" {
		t.Fatalf("expected Unnamed: 7 extra column, got %v", ds.ExtraColumns)
	}
	if got := ds.Records[0].Extra["Unnamed: 7"]; got != "remark-in-unheaded-col" {
		t.Fatalf("expected trailing cell value preserved, got %q", got)
	}
}

func TestReadRawDatasetFromXlsx_EmptyWorkbook(t *testing.T) {
	data := workbookBytes(t, nil)

	_, err := ReadRawDatasetFromXlsx(bytes.NewReader(data))
	if !errors.Is(err, utils.ErrorEmptyWorkbook) {
		t.Fatalf("expected ErrorEmptyWorkbook, got %v", err)
	}
}

func TestReadRawDatasetFromXlsx_NotAWorkbook(t *testing.T) {
	_, err := ReadRawDatasetFromXlsx(bytes.NewReader([]byte("Invoice No,GSTIN\n1,2\n")))
	if err == nil {
		t.Fatalf("expected error for non-xlsx input")
	}
}
