package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/chainlink-analytics/shelfgap/pkg/types"
)

// ListRuns returns the tenant's most recent snapshot runs, newest week first.
func (h *Handlers) ListRuns(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := h.tenantID(w, r)
	if !ok {
		return
	}

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			h.writeError(w, http.StatusBadRequest, "invalid limit", nil)
			return
		}
		limit = n
	}

	runs, err := h.deps.Runs.ListRuns(r.Context(), tenantID, limit)
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, "failed to list runs", err)
		return
	}
	if runs == nil {
		runs = []types.SnapshotRun{}
	}

	_ = json.NewEncoder(w).Encode(map[string]any{
		"runs":  runs,
		"count": len(runs),
	})
}
