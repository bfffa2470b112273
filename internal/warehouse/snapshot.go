package warehouse

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/oklog/ulid/v2"

	"github.com/chainlink-analytics/shelfgap/pkg/types"
)

const uniqueViolation = "23505"

// PublishSnapshot persists a snapshot header plus its detail rows in a
// single transaction. At most one run can ever exist per
// (tenant_id, snapshot_week_start); the unique constraint turns the
// check-then-act race into ErrAlreadyPublished. A pre-existing header with
// zero detail rows is a ghost from a legacy partial write and is deleted and
// republished rather than treated as published.
func (s *Store) PublishSnapshot(ctx context.Context, run types.SnapshotRun, details []types.SnapshotDetail) (*types.SnapshotRun, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin publish tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	// Row-lock any existing header so a concurrent repair cannot interleave.
	var existingID string
	var existingCount int
	err = tx.QueryRow(ctx, `
		SELECT r.run_id,
			(SELECT COUNT(*) FROM gap_report_snapshot d WHERE d.run_id = r.run_id)
		FROM gap_report_runs r
		WHERE r.tenant_id = $1 AND r.snapshot_week_start = $2
		FOR UPDATE
	`, run.TenantID, run.SnapshotWeekStart).Scan(&existingID, &existingCount)
	switch {
	case err == nil:
		if existingCount > 0 {
			return nil, ErrAlreadyPublished
		}
		// Ghost header: header committed but details never landed.
		if _, err := tx.Exec(ctx,
			`DELETE FROM gap_report_runs WHERE run_id = $1`, existingID); err != nil {
			return nil, fmt.Errorf("repair ghost header: %w", err)
		}
	case errors.Is(err, pgx.ErrNoRows):
		// First publish for the week.
	default:
		return nil, fmt.Errorf("check existing run: %w", err)
	}

	run.RunID = ulid.Make().String()
	run.RowCount = len(details)
	run.RunAt = time.Now().UTC()

	_, err = tx.Exec(ctx, `
		INSERT INTO gap_report_runs (run_id, tenant_id, snapshot_week_start, triggered_by, row_count, run_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, run.RunID, run.TenantID, run.SnapshotWeekStart, nullable(run.TriggeredBy), run.RowCount, run.RunAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return nil, ErrAlreadyPublished
		}
		return nil, fmt.Errorf("insert run header: %w", err)
	}

	// Query-back by the natural key: the constraint guarantees the row we
	// read is the one assigned to this tenant-week.
	var assigned types.SnapshotRun
	err = tx.QueryRow(ctx, `
		SELECT run_id, tenant_id, snapshot_week_start, COALESCE(triggered_by, ''), row_count, run_at
		FROM gap_report_runs
		WHERE tenant_id = $1 AND snapshot_week_start = $2
	`, run.TenantID, run.SnapshotWeekStart).Scan(
		&assigned.RunID, &assigned.TenantID, &assigned.SnapshotWeekStart,
		&assigned.TriggeredBy, &assigned.RowCount, &assigned.RunAt)
	if err != nil {
		return nil, fmt.Errorf("read back run header: %w", err)
	}

	copyRows := make([][]any, 0, len(details))
	for _, d := range details {
		copyRows = append(copyRows, []any{
			assigned.TenantID, assigned.SnapshotWeekStart, assigned.RunID,
			nullable(d.SalespersonID), nullable(d.SalespersonName),
			nullable(d.ManagerID), nullable(d.ManagerName),
			nullable(d.ChainName), nullable(d.StoreNumber), nullable(d.StoreName),
			nullable(d.ProductID), d.UPC, d.SRUPC,
			nullable(d.ProductName), nullable(d.SupplierName),
			nullable(d.Category), nullable(d.Subcategory),
			d.GapCases, d.InSchematic, d.IsGap, d.LastPurchaseDate,
		})
	}

	_, err = tx.CopyFrom(ctx,
		pgx.Identifier{"gap_report_snapshot"},
		[]string{
			"tenant_id", "snapshot_week_start", "run_id",
			"salesperson_id", "salesperson_name", "manager_id", "manager_name",
			"chain_name", "store_number", "store_name",
			"product_id", "upc", "sr_upc",
			"product_name", "supplier_name", "category", "subcategory",
			"gap_cases", "in_schematic", "is_gap", "last_purchase_date",
		},
		pgx.CopyFromRows(copyRows))
	if err != nil {
		return nil, fmt.Errorf("bulk insert snapshot details: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit publish tx: %w", err)
	}
	return &assigned, nil
}

// FindRun returns the snapshot run for a tenant-week, or nil when absent.
func (s *Store) FindRun(ctx context.Context, tenantID int64, weekStart time.Time) (*types.SnapshotRun, error) {
	var run types.SnapshotRun
	err := s.pool.QueryRow(ctx, `
		SELECT run_id, tenant_id, snapshot_week_start, COALESCE(triggered_by, ''), row_count, run_at
		FROM gap_report_runs
		WHERE tenant_id = $1 AND snapshot_week_start = $2
	`, tenantID, weekStart).Scan(
		&run.RunID, &run.TenantID, &run.SnapshotWeekStart,
		&run.TriggeredBy, &run.RowCount, &run.RunAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find run: %w", err)
	}
	return &run, nil
}

// ListRuns returns recent snapshot runs for a tenant, most recent week first.
func (s *Store) ListRuns(ctx context.Context, tenantID int64, limit int) ([]types.SnapshotRun, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.pool.Query(ctx, `
		SELECT run_id, tenant_id, snapshot_week_start, COALESCE(triggered_by, ''), row_count, run_at
		FROM gap_report_runs
		WHERE tenant_id = $1
		ORDER BY snapshot_week_start DESC, run_at DESC
		LIMIT $2
	`, tenantID, limit)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var runs []types.SnapshotRun
	for rows.Next() {
		var run types.SnapshotRun
		if err := rows.Scan(&run.RunID, &run.TenantID, &run.SnapshotWeekStart,
			&run.TriggeredBy, &run.RowCount, &run.RunAt); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// CountDetails returns the number of persisted detail rows for a tenant-week.
func (s *Store) CountDetails(ctx context.Context, tenantID int64, weekStart time.Time) (int, error) {
	var n int
	err := s.pool.QueryRow(ctx, `
		SELECT COUNT(*) FROM gap_report_snapshot
		WHERE tenant_id = $1 AND snapshot_week_start = $2
	`, tenantID, weekStart).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count details: %w", err)
	}
	return n, nil
}

// ReadRunDetails returns the detail rows of a published run, in a stable
// order suitable for export.
func (s *Store) ReadRunDetails(ctx context.Context, tenantID int64, weekStart time.Time) ([]types.SnapshotDetail, error) {
	run, err := s.FindRun(ctx, tenantID, weekStart)
	if err != nil {
		return nil, err
	}
	if run == nil {
		return nil, ErrNoRun
	}

	rows, err := s.pool.Query(ctx, `
		SELECT tenant_id, snapshot_week_start, run_id,
			COALESCE(salesperson_id, ''), COALESCE(salesperson_name, ''),
			COALESCE(manager_id, ''), COALESCE(manager_name, ''),
			COALESCE(chain_name, ''), COALESCE(store_number, ''), COALESCE(store_name, ''),
			COALESCE(product_id, ''), upc, sr_upc,
			COALESCE(product_name, ''), COALESCE(supplier_name, ''),
			COALESCE(category, ''), COALESCE(subcategory, ''),
			gap_cases, in_schematic, is_gap, last_purchase_date
		FROM gap_report_snapshot
		WHERE run_id = $1
		ORDER BY chain_name, store_number, product_name, upc
	`, run.RunID)
	if err != nil {
		return nil, fmt.Errorf("read run details: %w", err)
	}
	defer rows.Close()

	var details []types.SnapshotDetail
	for rows.Next() {
		var d types.SnapshotDetail
		if err := rows.Scan(&d.TenantID, &d.SnapshotWeekStart, &d.RunID,
			&d.SalespersonID, &d.SalespersonName, &d.ManagerID, &d.ManagerName,
			&d.ChainName, &d.StoreNumber, &d.StoreName,
			&d.ProductID, &d.UPC, &d.SRUPC,
			&d.ProductName, &d.SupplierName, &d.Category, &d.Subcategory,
			&d.GapCases, &d.InSchematic, &d.IsGap, &d.LastPurchaseDate); err != nil {
			return nil, fmt.Errorf("scan detail: %w", err)
		}
		details = append(details, d)
	}
	return details, rows.Err()
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
