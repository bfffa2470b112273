package warehouse

import (
	"context"
	"fmt"

	"github.com/chainlink-analytics/shelfgap/pkg/types"
)

// QueryCurrentStreaks returns active gap streaks for a tenant from the
// gap_current_streaks view. The view is built over published runs only, so
// an in-flight materialization can never appear in a streak.
func (s *Store) QueryCurrentStreaks(ctx context.Context, tenantID int64, filter types.StreakFilter) ([]types.StreakRow, error) {
	minStreak := filter.MinStreakWeeks
	if minStreak < 1 {
		minStreak = 1
	}

	sql := `
		SELECT tenant_id, snapshot_week_start, first_gap_week, last_gap_week,
			COALESCE(salesperson_name, ''), COALESCE(chain_name, ''),
			COALESCE(store_number, ''), COALESCE(store_name, ''),
			upc, COALESCE(product_name, ''), COALESCE(supplier_name, ''),
			streak_weeks
		FROM gap_current_streaks
		WHERE tenant_id = $1 AND streak_weeks >= $2`
	args := []any{tenantID, minStreak}

	if len(filter.Chains) > 0 {
		args = append(args, filter.Chains)
		sql += fmt.Sprintf(" AND chain_name = ANY($%d)", len(args))
	}
	if len(filter.Suppliers) > 0 {
		args = append(args, filter.Suppliers)
		sql += fmt.Sprintf(" AND supplier_name = ANY($%d)", len(args))
	}
	if len(filter.Salespeople) > 0 {
		args = append(args, filter.Salespeople)
		sql += fmt.Sprintf(" AND salesperson_name = ANY($%d)", len(args))
	}
	sql += " ORDER BY salesperson_name, streak_weeks DESC, chain_name, store_number, product_name"

	rows, err := s.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("query current streaks: %w", err)
	}
	defer rows.Close()

	var out []types.StreakRow
	for rows.Next() {
		var r types.StreakRow
		if err := rows.Scan(&r.TenantID, &r.SnapshotWeekStart, &r.FirstGapWeek,
			&r.LastGapWeek, &r.SalespersonName, &r.ChainName, &r.StoreNumber,
			&r.StoreName, &r.UPC, &r.ProductName, &r.SupplierName,
			&r.StreakWeeks); err != nil {
			return nil, fmt.Errorf("scan streak row: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// LookupAddresses returns the store address per (chain, store) key from the
// customer registry. When a key has duplicate registry rows, the most
// recently updated one wins.
func (s *Store) LookupAddresses(ctx context.Context, tenantID int64) (map[types.StoreKey]string, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT DISTINCT ON (chain_name, store_number)
			chain_name, store_number, COALESCE(address, '')
		FROM customers
		WHERE tenant_id = $1
		ORDER BY chain_name, store_number, updated_at DESC
	`, tenantID)
	if err != nil {
		return nil, fmt.Errorf("lookup addresses: %w", err)
	}
	defer rows.Close()

	addrs := make(map[types.StoreKey]string)
	for rows.Next() {
		var key types.StoreKey
		var addr string
		if err := rows.Scan(&key.ChainName, &key.StoreNumber, &addr); err != nil {
			return nil, fmt.Errorf("scan address: %w", err)
		}
		addrs[key] = addr
	}
	return addrs, rows.Err()
}
