// Package materializer produces the current tenant-wide gap dataset by
// triggering the warehouse-side aggregation and reading back its output.
package materializer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/sony/gobreaker"

	"github.com/chainlink-analytics/shelfgap/pkg/types"
)

// ErrAggregation marks a failed or inconsistent warehouse aggregation.
// Distinct from an empty dataset, which is a valid outcome.
var ErrAggregation = errors.New("gap report aggregation failed")

// GapSource is the warehouse surface the materializer needs.
type GapSource interface {
	RefreshGapReport(ctx context.Context) (time.Time, error)
	ReadGapReport(ctx context.Context, tenantID int64, filter types.GapFilter) ([]types.GapRow, time.Time, error)
}

// Dataset is a materialized, unfiltered gap dataset for one tenant.
type Dataset struct {
	TenantID int64
	Rows     []types.GapRow
	// Token identifies the aggregation the rows were read from.
	Token time.Time
}

// Materializer triggers gap report recomputation and reads the result.
// The recompute call is wrapped in a circuit breaker: when the warehouse
// aggregation is down, repeated publish attempts fail fast instead of
// stacking refresh calls onto a struggling warehouse.
type Materializer struct {
	source  GapSource
	breaker *gobreaker.CircuitBreaker
	timeout time.Duration
	logger  *slog.Logger
}

// Option configures a Materializer.
type Option func(*Materializer)

// WithTimeout bounds the refresh call. Zero means no explicit bound.
func WithTimeout(d time.Duration) Option {
	return func(m *Materializer) { m.timeout = d }
}

// WithLogger overrides the default logger.
func WithLogger(l *slog.Logger) Option {
	return func(m *Materializer) {
		if l != nil {
			m.logger = l
		}
	}
}

// New creates a Materializer over the given source.
func New(source GapSource, opts ...Option) *Materializer {
	m := &Materializer{
		source: source,
		logger: slog.Default(),
	}
	m.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    "gap-report-refresh",
		Timeout: 2 * time.Minute,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 3
		},
	})
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Materialize recomputes the gap view and returns the full unfiltered
// dataset for the tenant. An empty dataset is returned as-is, not as an
// error; any refresh or consistency failure wraps ErrAggregation.
func (m *Materializer) Materialize(ctx context.Context, tenantID int64) (*Dataset, error) {
	refreshCtx := ctx
	if m.timeout > 0 {
		var cancel context.CancelFunc
		refreshCtx, cancel = context.WithTimeout(ctx, m.timeout)
		defer cancel()
	}

	tokenAny, err := m.breaker.Execute(func() (any, error) {
		return m.source.RefreshGapReport(refreshCtx)
	})
	if err != nil {
		m.logger.Error("gap report refresh failed", "tenant", tenantID, "error", err)
		return nil, fmt.Errorf("%w: %v", ErrAggregation, err)
	}
	token := tokenAny.(time.Time)

	rows, readToken, err := m.source.ReadGapReport(ctx, tenantID, types.GapFilter{})
	if err != nil {
		return nil, fmt.Errorf("%w: reading gap report: %v", ErrAggregation, err)
	}

	// A token mismatch means another recompute landed between our refresh
	// and our read; the rows may span two aggregations.
	if !readToken.Equal(token) {
		m.logger.Warn("gap report token mismatch",
			"tenant", tenantID, "refreshed", token, "read", readToken)
		return nil, fmt.Errorf("%w: concurrent recompute detected", ErrAggregation)
	}

	m.logger.Info("gap report materialized", "tenant", tenantID, "rows", len(rows))
	return &Dataset{TenantID: tenantID, Rows: rows, Token: token}, nil
}
