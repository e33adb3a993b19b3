package models

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/mmdatafocus/gst_reconciliation/config"
	"github.com/mmdatafocus/gst_reconciliation/utils"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("gst-reconciliation")

// Reconciler runs the normalize → match → compare pipeline for one dataset
// pair. It holds no per-run state and is safe for concurrent use.
type Reconciler struct {
	tolerance decimal.Decimal
	logger    *logrus.Logger
}

func NewReconciler(tolerance decimal.Decimal, logger *logrus.Logger) *Reconciler {
	if logger == nil {
		logger = config.GetLogger()
	}
	return &Reconciler{tolerance: tolerance, logger: logger}
}

func (r *Reconciler) Tolerance() decimal.Decimal {
	return r.tolerance
}

// ReconciliationResult is everything one run derives from its inputs.
type ReconciliationResult struct {
	RunId     string
	Tolerance decimal.Decimal
	Internal  *InvoiceDataset
	External  *InvoiceDataset

	// Rows holds the outer join with verdicts set on every both-row.
	Rows []JoinedRow
}

// Reconcile normalizes both datasets, joins them and compares amounts.
// A *SchemaError aborts the run before any row is produced.
func (r *Reconciler) Reconcile(ctx context.Context, internalRaw, externalRaw RawDataset) (*ReconciliationResult, error) {
	runId, ok := utils.GetRunIdFromContext(ctx)
	if !ok || runId == "" {
		runId = uuid.NewString()
		ctx = utils.SetRunIdInContext(ctx, runId)
	}
	started := time.Now()

	ctx, span := tracer.Start(ctx, "Reconcile", trace.WithAttributes(
		attribute.String("run_id", runId),
		attribute.String("tolerance", r.tolerance.String()),
	))
	defer span.End()

	internal, err := r.normalize(ctx, SideInternal, internalRaw)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	external, err := r.normalize(ctx, SideExternal, externalRaw)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	_, matchSpan := tracer.Start(ctx, "MatchDatasets")
	rows := MatchDatasets(internal, external)
	matchSpan.SetAttributes(attribute.Int("rows", len(rows)))
	matchSpan.End()

	if err := r.compare(ctx, runId, rows); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	result := &ReconciliationResult{
		RunId:     runId,
		Tolerance: r.tolerance,
		Internal:  internal,
		External:  external,
		Rows:      rows,
	}

	counts := result.MembershipCounts()
	r.logger.WithFields(logrus.Fields{
		"module":           "reconciliation.go",
		"run_id":           runId,
		"internal_records": len(internal.Records),
		"external_records": len(external.Records),
		"both":             counts[MembershipBoth],
		"internal_only":    counts[MembershipInternalOnly],
		"external_only":    counts[MembershipExternalOnly],
		"duration_ms":      time.Since(started).Milliseconds(),
	}).Info("reconciliation completed")

	return result, nil
}

func (r *Reconciler) normalize(ctx context.Context, side Side, raw RawDataset) (*InvoiceDataset, error) {
	_, span := tracer.Start(ctx, "NormalizeDataset", trace.WithAttributes(
		attribute.String("side", string(side)),
		attribute.Int("rows", len(raw.Rows)),
	))
	defer span.End()

	ds, err := NormalizeDataset(side, raw)
	if err != nil {
		config.LogError(r.logger, "reconciliation.go", "normalize", "NormalizeDataset", raw.Columns, err)
		return nil, err
	}
	return ds, nil
}

// compare sets a verdict on every both-row. Only *ComparisonError is
// downgraded to a mismatch; anything else aborts the run.
func (r *Reconciler) compare(ctx context.Context, runId string, rows []JoinedRow) error {
	_, span := tracer.Start(ctx, "CompareAmounts")
	defer span.End()

	for i := range rows {
		if rows[i].Membership != MembershipBoth {
			continue
		}
		verdict, err := CompareAmounts(rows[i], r.tolerance)
		var cmpErr *ComparisonError
		if errors.As(err, &cmpErr) {
			r.logger.WithFields(logrus.Fields{
				"module":         "reconciliation.go",
				"run_id":         runId,
				"invoice_number": utils.DereferencePtr(rows[i].InvoiceNumber),
				"gstin":          utils.DereferencePtr(rows[i].GSTIN),
			}).Warn("amount comparison failed; classifying as mismatch: " + cmpErr.Error())
			verdict = Verdict{Match: false}
		} else if err != nil {
			return err
		}
		rows[i].Verdict = &verdict
	}
	return nil
}

func (res *ReconciliationResult) MembershipCounts() map[Membership]int {
	counts := make(map[Membership]int, 3)
	for i := range res.Rows {
		counts[res.Rows[i].Membership]++
	}
	return counts
}
