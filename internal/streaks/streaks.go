// Package streaks reads current consecutive-week gap streaks for display
// and export surfaces.
package streaks

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/chainlink-analytics/shelfgap/internal/metrics"
	"github.com/chainlink-analytics/shelfgap/pkg/types"
)

// StreakSource is the warehouse surface the reader needs.
type StreakSource interface {
	QueryCurrentStreaks(ctx context.Context, tenantID int64, filter types.StreakFilter) ([]types.StreakRow, error)
	LookupAddresses(ctx context.Context, tenantID int64) (map[types.StoreKey]string, error)
}

// Reader serves streak queries, optionally enriched with store addresses
// from the customer registry.
type Reader struct {
	source StreakSource
	logger *slog.Logger
}

// NewReader creates a Reader over the given source.
func NewReader(source StreakSource) *Reader {
	return &Reader{source: source, logger: slog.Default()}
}

// SetLogger overrides the default logger.
func (r *Reader) SetLogger(l *slog.Logger) {
	if l != nil {
		r.logger = l
	}
}

// Fetch returns the tenant's current gap streaks. Streaks are computed from
// published snapshot runs only; a week with no published run simply does not
// exist in the streak timeline. When the filter asks for addresses, stores
// missing from the customer registry keep an empty Address rather than
// dropping the streak row.
func (r *Reader) Fetch(ctx context.Context, tenantID int64, filter types.StreakFilter) ([]types.StreakRow, error) {
	metrics.StreakQueries.Add(1)

	rows, err := r.source.QueryCurrentStreaks(ctx, tenantID, filter)
	if err != nil {
		return nil, fmt.Errorf("fetch streaks: %w", err)
	}

	if filter.IncludeAddress && len(rows) > 0 {
		addrs, err := r.source.LookupAddresses(ctx, tenantID)
		if err != nil {
			// Addresses are decoration; the streaks themselves are the answer.
			r.logger.Warn("address lookup failed, returning streaks unenriched",
				"tenant", tenantID, "error", err)
		} else {
			for i := range rows {
				key := types.StoreKey{ChainName: rows[i].ChainName, StoreNumber: rows[i].StoreNumber}
				rows[i].Address = addrs[key]
			}
		}
	}

	r.logger.Info("streaks fetched", "tenant", tenantID, "rows", len(rows))
	return rows, nil
}
