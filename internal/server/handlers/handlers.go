// Package handlers implements HTTP request handlers for the Shelfgap API.
package handlers

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/chainlink-analytics/shelfgap/internal/publisher"
	"github.com/chainlink-analytics/shelfgap/pkg/types"
)

// Publisher runs the snapshot publish pipeline for one tenant.
type Publisher interface {
	Publish(ctx context.Context, req publisher.Request) types.PublishResult
}

// StreakReader serves current gap streak queries.
type StreakReader interface {
	Fetch(ctx context.Context, tenantID int64, filter types.StreakFilter) ([]types.StreakRow, error)
}

// Exporter uploads published snapshot runs to object storage.
type Exporter interface {
	Export(ctx context.Context, tenantID int64, weekStart time.Time) (*types.ExportReceipt, error)
}

// RunLister lists published snapshot runs.
type RunLister interface {
	ListRuns(ctx context.Context, tenantID int64, limit int) ([]types.SnapshotRun, error)
}

// Pinger checks warehouse connectivity.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Deps contains all HTTP handler dependencies. Exporter is nil when export
// is not configured.
type Deps struct {
	Publisher Publisher
	Streaks   StreakReader
	Exporter  Exporter
	Runs      RunLister
	Pinger    Pinger
	Config    *types.ProjectConfig
}

// Handlers contains all HTTP handlers.
type Handlers struct {
	deps   Deps
	logger *slog.Logger
}

// New creates a new Handlers instance.
func New(deps Deps) *Handlers {
	return &Handlers{deps: deps, logger: slog.Default()}
}

// SetLogger overrides the default logger.
func (h *Handlers) SetLogger(l *slog.Logger) {
	if l != nil {
		h.logger = l
	}
}

// writeError logs the internal error and returns a sanitized JSON error to the client.
func (h *Handlers) writeError(w http.ResponseWriter, status int, msg string, err error) {
	if err != nil {
		h.logger.Error(msg, "error", err, "status", status)
	}
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": msg})
}

// tenantID parses and validates the tenantID URL parameter against the
// configured tenants. On failure it writes the error response and reports ok
// as false.
func (h *Handlers) tenantID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	raw := chi.URLParam(r, "tenantID")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		h.writeError(w, http.StatusBadRequest, "invalid tenant id", nil)
		return 0, false
	}
	if h.deps.Config != nil && h.deps.Config.Tenant(id) == nil {
		h.writeError(w, http.StatusNotFound, "unknown tenant", nil)
		return 0, false
	}
	return id, true
}
