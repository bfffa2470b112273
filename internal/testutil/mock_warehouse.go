// Package testutil provides shared test utilities for Shelfgap.
package testutil

import (
	"context"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/chainlink-analytics/shelfgap/internal/warehouse"
	"github.com/chainlink-analytics/shelfgap/pkg/types"
)

type runKey struct {
	tenantID int64
	week     time.Time
}

// MockWarehouse is an in-memory stand-in for the Postgres store. It enforces
// the same at-most-once publish semantics as the real schema, so callers can
// exercise idempotence and race behavior without a database.
type MockWarehouse struct {
	mu      sync.Mutex
	runs    map[runKey]types.SnapshotRun
	details map[runKey][]types.SnapshotDetail
	gapRows map[int64][]types.GapRow
	streaks map[int64][]types.StreakRow
	addrs   map[int64]map[types.StoreKey]string
	token   time.Time

	// Error injection knobs. Set before use; not synchronized with reads.
	RefreshErr error
	ReadErr    error
	PublishErr error
	StreakErr  error
	PingErr    error
}

// Ping reports the injected connectivity state.
func (m *MockWarehouse) Ping(_ context.Context) error { return m.PingErr }

// NewMockWarehouse creates an empty in-memory warehouse.
func NewMockWarehouse() *MockWarehouse {
	return &MockWarehouse{
		runs:    make(map[runKey]types.SnapshotRun),
		details: make(map[runKey][]types.SnapshotDetail),
		gapRows: make(map[int64][]types.GapRow),
		streaks: make(map[int64][]types.StreakRow),
		addrs:   make(map[int64]map[types.StoreKey]string),
		token:   time.Now(),
	}
}

// SeedGapRows sets the materialized gap dataset returned for a tenant.
func (m *MockWarehouse) SeedGapRows(tenantID int64, rows []types.GapRow) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.gapRows[tenantID] = rows
}

// SeedStreaks sets the streak rows returned for a tenant.
func (m *MockWarehouse) SeedStreaks(tenantID int64, rows []types.StreakRow) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.streaks[tenantID] = rows
}

// SeedAddress registers a store address for a tenant.
func (m *MockWarehouse) SeedAddress(tenantID int64, key types.StoreKey, addr string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.addrs[tenantID] == nil {
		m.addrs[tenantID] = make(map[types.StoreKey]string)
	}
	m.addrs[tenantID][key] = addr
}

func (m *MockWarehouse) RefreshGapReport(_ context.Context) (time.Time, error) {
	if m.RefreshErr != nil {
		return time.Time{}, m.RefreshErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.token = m.token.Add(time.Second)
	return m.token, nil
}

func (m *MockWarehouse) ReadGapReport(_ context.Context, tenantID int64, _ types.GapFilter) ([]types.GapRow, time.Time, error) {
	if m.ReadErr != nil {
		return nil, time.Time{}, m.ReadErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.gapRows[tenantID], m.token, nil
}

func (m *MockWarehouse) PublishSnapshot(_ context.Context, run types.SnapshotRun, details []types.SnapshotDetail) (*types.SnapshotRun, error) {
	if m.PublishErr != nil {
		return nil, m.PublishErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	// A header with details is final; a ghost header is replaced.
	key := runKey{run.TenantID, run.SnapshotWeekStart}
	if _, ok := m.runs[key]; ok && len(m.details[key]) > 0 {
		return nil, warehouse.ErrAlreadyPublished
	}

	run.RunID = ulid.Make().String()
	run.RowCount = len(details)
	run.RunAt = time.Now()
	m.runs[key] = run
	m.details[key] = details
	return &run, nil
}

func (m *MockWarehouse) FindRun(_ context.Context, tenantID int64, weekStart time.Time) (*types.SnapshotRun, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	run, ok := m.runs[runKey{tenantID, weekStart}]
	if !ok {
		return nil, nil
	}
	return &run, nil
}

func (m *MockWarehouse) ListRuns(_ context.Context, tenantID int64, limit int) ([]types.SnapshotRun, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if limit <= 0 {
		limit = 20
	}
	var out []types.SnapshotRun
	for key, run := range m.runs {
		if key.tenantID == tenantID {
			out = append(out, run)
		}
	}
	for i := 0; i < len(out); i++ {
		for j := i + 1; j < len(out); j++ {
			if out[j].SnapshotWeekStart.After(out[i].SnapshotWeekStart) {
				out[i], out[j] = out[j], out[i]
			}
		}
	}
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *MockWarehouse) CountDetails(_ context.Context, tenantID int64, weekStart time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.details[runKey{tenantID, weekStart}]), nil
}

func (m *MockWarehouse) ReadRunDetails(_ context.Context, tenantID int64, weekStart time.Time) ([]types.SnapshotDetail, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := runKey{tenantID, weekStart}
	if _, ok := m.runs[key]; !ok {
		return nil, warehouse.ErrNoRun
	}
	return m.details[key], nil
}

func (m *MockWarehouse) QueryCurrentStreaks(_ context.Context, tenantID int64, filter types.StreakFilter) ([]types.StreakRow, error) {
	if m.StreakErr != nil {
		return nil, m.StreakErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []types.StreakRow
	for _, r := range m.streaks[tenantID] {
		if filter.MinStreakWeeks > 0 && r.StreakWeeks < filter.MinStreakWeeks {
			continue
		}
		out = append(out, r)
	}
	return out, nil
}

func (m *MockWarehouse) LookupAddresses(_ context.Context, tenantID int64) (map[types.StoreKey]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[types.StoreKey]string, len(m.addrs[tenantID]))
	for k, v := range m.addrs[tenantID] {
		out[k] = v
	}
	return out, nil
}
