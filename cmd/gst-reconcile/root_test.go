package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/mmdatafocus/gst_reconciliation/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

var invoiceHeader = []interface{}{"Invoice No", "GSTIN", "Invoice Date", "Taxable Value", "IGST", "CGST", "SGST"}

func writeWorkbook(t *testing.T, dir, name string, rows ...[]interface{}) string {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, err)
		values := row
		require.NoError(t, f.SetSheetRow("Sheet1", cell, &values))
	}
	path := filepath.Join(dir, name)
	require.NoError(t, f.SaveAs(path))
	return path
}

func execute(args ...string) (string, error) {
	root := newRootCmd()
	buf := new(bytes.Buffer)
	root.SetOut(buf)
	root.SetErr(buf)
	root.SetArgs(args)
	err := root.Execute()
	return buf.String(), err
}

func TestRootCmd_Use(t *testing.T) {
	cmd := newRootCmd()
	assert.Equal(t, "gst-reconcile", cmd.Use)
	assert.Contains(t, cmd.Long, "four sheet")
	assert.Equal(t, "GST_Reconciliation_Result.xlsx", cmd.Flags().Lookup("out").DefValue)
}

func TestRootCmd_RequiresInputs(t *testing.T) {
	_, err := execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "internal")
}

func TestRootCmd_WritesWorkbook(t *testing.T) {
	dir := t.TempDir()
	internal := writeWorkbook(t, dir, "books.xlsx",
		invoiceHeader,
		[]interface{}{"INV-001", "29ABCDE1234F1Z5", "2024-01-15", 1000, 180, 0, 0},
		[]interface{}{"INV-002", "29XXXXX0000X1Z1", "2024-01-16", 750, 0, 0, 0},
	)
	external := writeWorkbook(t, dir, "portal.xlsx",
		invoiceHeader,
		[]interface{}{"INV-001", "29ABCDE1234F1Z5", "2024-01-15", 1000, 180, 0, 0},
	)
	out := filepath.Join(dir, "result.xlsx")

	output, err := execute("--internal", internal, "--external", external, "--out", out)
	require.NoError(t, err)
	assert.Contains(t, output, "Matched Invoices")
	assert.Contains(t, output, "2000.00")
	assert.Contains(t, output, "Saved "+out)

	f, err := os.Open(out)
	require.NoError(t, err)
	defer f.Close()
	ds, err := models.ReadRawDatasetFromXlsx(f)
	require.NoError(t, err)
	assert.Equal(t, "Total Records: 1", ds.Columns[0])
}

func TestRootCmd_ToleranceFlag(t *testing.T) {
	dir := t.TempDir()
	internal := writeWorkbook(t, dir, "books.xlsx",
		invoiceHeader,
		[]interface{}{"INV-003", "29ABCDE1234F1Z5", "", 1000, 0, 0, 0},
	)
	external := writeWorkbook(t, dir, "portal.xlsx",
		invoiceHeader,
		[]interface{}{"INV-003", "29ABCDE1234F1Z5", "", 1005, 0, 0, 0},
	)

	output, err := execute("--internal", internal, "--external", external, "--out", filepath.Join(dir, "r.xlsx"), "--tolerance", "5")
	require.NoError(t, err)
	assert.Contains(t, output, "tolerance 5")
	assert.Regexp(t, `Matched Invoices\s+1 records`, output)

	_, err = execute("--internal", internal, "--external", external, "--tolerance", "-1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--tolerance")
}

func TestRootCmd_SchemaErrorWritesNothing(t *testing.T) {
	dir := t.TempDir()
	internal := writeWorkbook(t, dir, "books.xlsx", invoiceHeader)
	external := writeWorkbook(t, dir, "portal.xlsx", []interface{}{"Invoice No", "GSTIN"})
	out := filepath.Join(dir, "result.xlsx")

	_, err := execute("--internal", internal, "--external", external, "--out", out)
	require.Error(t, err)
	var schemaErr *models.SchemaError
	assert.ErrorAs(t, err, &schemaErr)

	_, statErr := os.Stat(out)
	assert.True(t, os.IsNotExist(statErr))
}

func TestRootCmd_RejectsNonXlsx(t *testing.T) {
	_, err := execute("--internal", "books.csv", "--external", "portal.xlsx")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "only .xlsx")
}
