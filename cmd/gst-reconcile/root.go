package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/mmdatafocus/gst_reconciliation/config"
	"github.com/mmdatafocus/gst_reconciliation/models"
	"github.com/mmdatafocus/gst_reconciliation/models/reports"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
)

type reconcileOptions struct {
	internal  string
	external  string
	out       string
	tolerance string
}

func newRootCmd() *cobra.Command {
	opts := &reconcileOptions{}
	cmd := &cobra.Command{
		Use:   "gst-reconcile",
		Short: "Reconcile internal GST invoices against an external GST export",
		Long: `Reads two .xlsx invoice registers (internal books and the external GST
portal export), matches them on invoice number and GSTIN, compares the
taxable and tax amounts within a tolerance and writes a four sheet
reconciliation workbook.`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runReconcile(cmd, opts)
		},
	}
	cmd.Flags().StringVar(&opts.internal, "internal", "", "internal invoice register (.xlsx)")
	cmd.Flags().StringVar(&opts.external, "external", "", "external GST export (.xlsx)")
	cmd.Flags().StringVar(&opts.out, "out", reports.ExportFileName, "output workbook path")
	cmd.Flags().StringVar(&opts.tolerance, "tolerance", "", "amount tolerance (defaults to RECON_AMOUNT_TOLERANCE or 1)")
	_ = cmd.MarkFlagRequired("internal")
	_ = cmd.MarkFlagRequired("external")

	cmd.AddCommand(newVersionCmd())
	return cmd
}

func runReconcile(cmd *cobra.Command, opts *reconcileOptions) error {
	tolerance, err := resolveTolerance(opts.tolerance)
	if err != nil {
		return err
	}

	internal, err := readDatasetFile(opts.internal)
	if err != nil {
		return fmt.Errorf("internal file: %w", err)
	}
	external, err := readDatasetFile(opts.external)
	if err != nil {
		return fmt.Errorf("external file: %w", err)
	}

	reconciler := models.NewReconciler(tolerance, config.GetLogger())
	report, data, err := reports.ReconcileToExcel(context.Background(), reconciler, internal, external)
	if err != nil {
		return fmt.Errorf("reconcile failed: %w", err)
	}
	if err := os.WriteFile(opts.out, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", opts.out, err)
	}

	summary := report.Summary()
	cmd.Printf("Run %s (tolerance %s)\n", summary.RunId, summary.Tolerance)
	for _, c := range summary.Categories {
		cmd.Printf("  %-20s %6d records  taxable %s\n", c.SheetName, c.TotalRecords, c.TotalTaxableValue)
	}
	cmd.Printf("Saved %s\n", opts.out)
	return nil
}

func resolveTolerance(flag string) (decimal.Decimal, error) {
	flag = strings.TrimSpace(flag)
	if flag == "" {
		settings, err := config.LoadSettings()
		if err != nil {
			return decimal.Decimal{}, err
		}
		return settings.Tolerance(), nil
	}
	tol, err := decimal.NewFromString(flag)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("invalid --tolerance %q", flag)
	}
	if tol.IsNegative() {
		return decimal.Decimal{}, fmt.Errorf("--tolerance must be >= 0, got %s", tol)
	}
	return tol, nil
}

func readDatasetFile(path string) (models.RawDataset, error) {
	if ext := strings.ToLower(filepath.Ext(path)); ext != ".xlsx" {
		return models.RawDataset{}, fmt.Errorf("%s: only .xlsx files are supported", path)
	}
	f, err := os.Open(path)
	if err != nil {
		return models.RawDataset{}, err
	}
	defer f.Close()
	return models.ReadRawDatasetFromXlsx(f)
}
