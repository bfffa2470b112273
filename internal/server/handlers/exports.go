package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/chainlink-analytics/shelfgap/internal/normalize"
	"github.com/chainlink-analytics/shelfgap/internal/warehouse"
)

// Export uploads the published snapshot for the given week as CSV. The week
// URL parameter accepts any day of the target week.
func (h *Handlers) Export(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := h.tenantID(w, r)
	if !ok {
		return
	}
	if h.deps.Exporter == nil {
		h.writeError(w, http.StatusServiceUnavailable, "export not configured", nil)
		return
	}

	week, err := time.Parse("2006-01-02", chi.URLParam(r, "week"))
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid week, want YYYY-MM-DD", err)
		return
	}

	receipt, err := h.deps.Exporter.Export(r.Context(), tenantID, normalize.WeekStart(week))
	if err != nil {
		if errors.Is(err, warehouse.ErrNoRun) {
			h.writeError(w, http.StatusNotFound, "no snapshot published for week", err)
			return
		}
		h.writeError(w, http.StatusInternalServerError, "export failed", err)
		return
	}

	_ = json.NewEncoder(w).Encode(receipt)
}
