// Package publisher implements the weekly snapshot publish pipeline:
// normalization into the canonical detail shape and the at-most-once write
// of header plus bulk detail rows.
package publisher

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/chainlink-analytics/shelfgap/internal/materializer"
	"github.com/chainlink-analytics/shelfgap/internal/metrics"
	"github.com/chainlink-analytics/shelfgap/internal/normalize"
	"github.com/chainlink-analytics/shelfgap/internal/warehouse"
	"github.com/chainlink-analytics/shelfgap/pkg/types"
)

// DefaultTriggeredBy is recorded on header rows when no actor is supplied.
const DefaultTriggeredBy = "gap-snapshot-pipeline"

// SnapshotStore is the warehouse surface the publisher needs.
type SnapshotStore interface {
	FindRun(ctx context.Context, tenantID int64, weekStart time.Time) (*types.SnapshotRun, error)
	CountDetails(ctx context.Context, tenantID int64, weekStart time.Time) (int, error)
	PublishSnapshot(ctx context.Context, run types.SnapshotRun, details []types.SnapshotDetail) (*types.SnapshotRun, error)
}

// Source materializes the unfiltered gap dataset for a tenant.
type Source interface {
	Materialize(ctx context.Context, tenantID int64) (*materializer.Dataset, error)
}

// Request describes one publish attempt.
type Request struct {
	TenantID    int64
	TriggeredBy string
	// Week overrides the current-week default; used by backfills and tests.
	// It is canonicalized to its Monday regardless of the supplied day.
	Week time.Time
	// Now allows tests to pin the clock. Zero means time.Now.
	Now time.Time
}

// Publisher publishes weekly gap snapshots, at most once per tenant-week.
type Publisher struct {
	store   SnapshotStore
	source  Source
	alertFn func(types.Alert)
	logger  *slog.Logger
}

// New creates a Publisher. alertFn may be nil.
func New(store SnapshotStore, source Source, alertFn func(types.Alert)) *Publisher {
	if alertFn == nil {
		alertFn = func(types.Alert) {}
	}
	return &Publisher{
		store:   store,
		source:  source,
		alertFn: alertFn,
		logger:  slog.Default(),
	}
}

// SetLogger overrides the default logger.
func (p *Publisher) SetLogger(l *slog.Logger) {
	if l != nil {
		p.logger = l
	}
}

// Publish runs the full pipeline for one tenant: materialize, normalize,
// persist. It never panics or returns a raw error to its caller; every
// outcome is carried in the Result, and only OutcomeFailed is an alarm.
func (p *Publisher) Publish(ctx context.Context, req Request) types.PublishResult {
	metrics.PublishAttempts.Add(1)

	now := req.Now
	if now.IsZero() {
		now = time.Now()
	}
	week := req.Week
	if week.IsZero() {
		week = now
	}
	week = normalize.WeekStart(week)

	triggeredBy := req.TriggeredBy
	if triggeredBy == "" {
		triggeredBy = DefaultTriggeredBy
	}

	result := types.PublishResult{TenantID: req.TenantID, Week: week}

	// Fast-path idempotence check before paying for aggregation. A header
	// with zero details is a ghost from a legacy partial write and must not
	// short-circuit; the storage layer repairs it during publish.
	existing, err := p.store.FindRun(ctx, req.TenantID, week)
	if err != nil {
		return p.fail(result, "Publish failed: checking snapshot status", err)
	}
	if existing != nil {
		n, err := p.store.CountDetails(ctx, req.TenantID, week)
		if err != nil {
			return p.fail(result, "Publish failed: checking snapshot status", err)
		}
		if n > 0 {
			return p.skipAlready(result, existing)
		}
		p.logger.Warn("ghost snapshot header detected, republishing",
			"tenant", req.TenantID, "week", week.Format("2006-01-02"), "run", existing.RunID)
	}

	dataset, err := p.source.Materialize(ctx, req.TenantID)
	if err != nil {
		if errors.Is(err, materializer.ErrAggregation) {
			return p.fail(result, "Report generation failed.", err)
		}
		return p.fail(result, "Publish failed: materializing gap report", err)
	}

	if len(dataset.Rows) == 0 {
		metrics.PublishesSkipped.Add(1)
		result.Outcome = types.OutcomeNothingToPublish
		result.Message = "Generated report was empty; nothing to snapshot."
		p.logger.Info("nothing to snapshot", "tenant", req.TenantID, "week", week.Format("2006-01-02"))
		return result
	}

	details, degraded := normalizeRows(req.TenantID, week, dataset.Rows)
	result.DegradedRows = degraded
	if degraded > 0 {
		metrics.NormalizationFailures.Add(int64(degraded))
		p.alertFn(types.Alert{
			Level:    types.AlertLevelWarning,
			TenantID: req.TenantID,
			Week:     week.Format("2006-01-02"),
			Message: fmt.Sprintf("%d snapshot rows had unnormalizable sales UPCs; their gap flags may be ambiguous",
				degraded),
			Details:   map[string]any{"degradedRows": degraded, "totalRows": len(details)},
			Timestamp: now,
		})
	}

	run, err := p.store.PublishSnapshot(ctx, types.SnapshotRun{
		TenantID:          req.TenantID,
		SnapshotWeekStart: week,
		TriggeredBy:       triggeredBy,
	}, details)
	if err != nil {
		if errors.Is(err, warehouse.ErrAlreadyPublished) {
			return p.skipAlready(result, nil)
		}
		return p.fail(result, "Publish failed: writing snapshot", err)
	}

	metrics.PublishesCompleted.Add(1)
	metrics.RowsPublished.Add(int64(run.RowCount))

	result.Outcome = types.OutcomePublished
	result.RunID = run.RunID
	result.RowCount = run.RowCount
	result.Message = fmt.Sprintf("Published weekly gap snapshot (%d rows, tenant-wide).", run.RowCount)
	p.logger.Info("snapshot published",
		"tenant", req.TenantID, "week", week.Format("2006-01-02"),
		"run", run.RunID, "rows", run.RowCount)
	return result
}

func (p *Publisher) skipAlready(result types.PublishResult, run *types.SnapshotRun) types.PublishResult {
	metrics.PublishesSkipped.Add(1)
	result.Outcome = types.OutcomeAlreadyPublished
	result.Message = "Snapshot already exists for this week (skipped)."
	if run != nil {
		result.RunID = run.RunID
		result.RowCount = run.RowCount
	}
	p.logger.Info("snapshot already published",
		"tenant", result.TenantID, "week", result.Week.Format("2006-01-02"))
	return result
}

func (p *Publisher) fail(result types.PublishResult, msg string, err error) types.PublishResult {
	metrics.PublishFailures.Add(1)
	result.Outcome = types.OutcomeFailed
	result.Message = msg
	p.logger.Error("publish failed",
		"tenant", result.TenantID, "week", result.Week.Format("2006-01-02"), "error", err)
	p.alertFn(types.Alert{
		Level:     types.AlertLevelError,
		TenantID:  result.TenantID,
		Week:      result.Week.Format("2006-01-02"),
		Message:   fmt.Sprintf("%s: %v", msg, err),
		Timestamp: time.Now(),
	})
	return result
}

// normalizeRows maps materialized gap rows into the canonical snapshot
// detail shape. UPC fields are canonicalized to digit-only strings; values
// that cannot be normalized degrade to NULL instead of aborting the batch.
// The returned count is the number of rows whose gap derivation became
// ambiguous because a present sales UPC failed normalization.
func normalizeRows(tenantID int64, week time.Time, rows []types.GapRow) ([]types.SnapshotDetail, int) {
	details := make([]types.SnapshotDetail, 0, len(rows))
	degraded := 0

	for _, r := range rows {
		d := types.SnapshotDetail{
			TenantID:          tenantID,
			SnapshotWeekStart: week,
			SalespersonID:     r.SalespersonID,
			SalespersonName:   r.SalespersonName,
			ManagerID:         r.ManagerID,
			ManagerName:       r.ManagerName,
			ChainName:         r.ChainName,
			StoreNumber:       r.StoreNumber,
			StoreName:         r.StoreName,
			ProductID:         r.ProductID,
			ProductName:       r.ProductName,
			SupplierName:      r.SupplierName,
			Category:          r.Category,
			Subcategory:       r.Subcategory,
			GapCases:          r.GapCases,
			LastPurchaseDate:  r.LastPurchaseDate,
		}

		if upc, ok := normalize.UPC(r.DGUPC); ok {
			d.UPC = &upc
		}
		srUPC, srOK := normalize.UPC(r.SRUPC)
		if srOK {
			d.SRUPC = &srUPC
		} else if rawPresent(r.SRUPC) {
			degraded++
		}

		// IS_GAP is a pure function of the normalized sales UPC: no sale
		// key, no sale observed.
		d.IsGap = !srOK

		if b, ok := normalize.Bool(r.InSchematic); ok {
			d.InSchematic = b
		} else {
			// Best effort: placements reaching the gap view are expected.
			d.InSchematic = true
		}

		details = append(details, d)
	}
	return details, degraded
}

// rawPresent reports whether a raw UPC value carried anything at all, so a
// failed normalization can be distinguished from a genuinely absent sale.
// The textual null sentinels some upstream loaders emit count as absent.
func rawPresent(v any) bool {
	switch x := v.(type) {
	case nil:
		return false
	case string:
		return !absentSentinel(x)
	case *string:
		return x != nil && !absentSentinel(*x)
	default:
		return true
	}
}

func absentSentinel(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "nan", "none", "null":
		return true
	}
	return false
}
