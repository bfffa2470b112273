package warehouse

import (
	"context"
	"fmt"
	"time"

	"github.com/chainlink-analytics/shelfgap/pkg/types"
)

// RefreshGapReport recomputes the gap report view and returns the new
// refresh token. The token is re-checked by readers so a publish never
// consumes a dataset torn across two recomputes.
func (s *Store) RefreshGapReport(ctx context.Context) (time.Time, error) {
	if _, err := s.pool.Exec(ctx, `REFRESH MATERIALIZED VIEW gap_report`); err != nil {
		return time.Time{}, fmt.Errorf("refresh gap report: %w", err)
	}

	var token time.Time
	err := s.pool.QueryRow(ctx, `
		UPDATE gap_report_refresh SET refreshed_at = NOW()
		WHERE id = 1
		RETURNING refreshed_at
	`).Scan(&token)
	if err != nil {
		return time.Time{}, fmt.Errorf("update refresh token: %w", err)
	}
	return token, nil
}

// RefreshToken returns the current refresh token without recomputing.
func (s *Store) RefreshToken(ctx context.Context) (time.Time, error) {
	var token time.Time
	err := s.pool.QueryRow(ctx,
		`SELECT refreshed_at FROM gap_report_refresh WHERE id = 1`).Scan(&token)
	if err != nil {
		return time.Time{}, fmt.Errorf("read refresh token: %w", err)
	}
	return token, nil
}

// ReadGapReport returns gap report rows for a tenant plus the refresh token
// observed during the read. The publish path always passes the zero filter;
// filtered reads exist for on-screen reporting only.
func (s *Store) ReadGapReport(ctx context.Context, tenantID int64, filter types.GapFilter) ([]types.GapRow, time.Time, error) {
	token, err := s.RefreshToken(ctx)
	if err != nil {
		return nil, time.Time{}, err
	}

	sql := `
		SELECT salesperson_id, salesperson_name, manager_id, manager_name,
			chain_name, store_number, store_name, product_id, product_name,
			supplier_name, category, subcategory,
			dg_upc, sr_upc, in_schematic, gap_cases, last_purchase_date
		FROM gap_report
		WHERE tenant_id = $1`
	args := []any{tenantID}

	if filter.Salesperson != "" {
		args = append(args, filter.Salesperson)
		sql += fmt.Sprintf(" AND salesperson_name = $%d", len(args))
	}
	if filter.Chain != "" {
		args = append(args, filter.Chain)
		sql += fmt.Sprintf(" AND chain_name = $%d", len(args))
	}
	if filter.Supplier != "" {
		args = append(args, filter.Supplier)
		sql += fmt.Sprintf(" AND supplier_name = $%d", len(args))
	}

	rows, err := s.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, time.Time{}, fmt.Errorf("read gap report: %w", err)
	}
	defer rows.Close()

	var out []types.GapRow
	for rows.Next() {
		var (
			r                                     types.GapRow
			salespersonID, salespersonName        *string
			managerID, managerName                *string
			chainName, storeNumber, storeName     *string
			productID, productName, supplierName  *string
			category, subcategory                 *string
			dgUPC, srUPC                          *string
			inSchematic                           *int32
		)
		if err := rows.Scan(&salespersonID, &salespersonName, &managerID, &managerName,
			&chainName, &storeNumber, &storeName, &productID, &productName,
			&supplierName, &category, &subcategory,
			&dgUPC, &srUPC, &inSchematic, &r.GapCases, &r.LastPurchaseDate); err != nil {
			return nil, time.Time{}, fmt.Errorf("scan gap report row: %w", err)
		}

		r.SalespersonID = deref(salespersonID)
		r.SalespersonName = deref(salespersonName)
		r.ManagerID = deref(managerID)
		r.ManagerName = deref(managerName)
		r.ChainName = deref(chainName)
		r.StoreNumber = deref(storeNumber)
		r.StoreName = deref(storeName)
		r.ProductID = deref(productID)
		r.ProductName = deref(productName)
		r.SupplierName = deref(supplierName)
		r.Category = deref(category)
		r.Subcategory = deref(subcategory)
		if dgUPC != nil {
			r.DGUPC = *dgUPC
		}
		if srUPC != nil {
			r.SRUPC = *srUPC
		}
		if inSchematic != nil {
			r.InSchematic = int(*inSchematic)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, time.Time{}, fmt.Errorf("read gap report: %w", err)
	}
	return out, token, nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
