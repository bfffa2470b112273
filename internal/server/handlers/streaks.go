package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/chainlink-analytics/shelfgap/pkg/types"
)

// Streaks returns the tenant's current consecutive-week gap streaks.
// Repeatable query params chain, supplier, and salesperson narrow the result;
// minStreakWeeks and includeAddress tune it.
func (h *Handlers) Streaks(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := h.tenantID(w, r)
	if !ok {
		return
	}

	q := r.URL.Query()
	filter := types.StreakFilter{
		Chains:      q["chain"],
		Suppliers:   q["supplier"],
		Salespeople: q["salesperson"],
	}
	if raw := q.Get("minStreakWeeks"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			h.writeError(w, http.StatusBadRequest, "invalid minStreakWeeks", nil)
			return
		}
		filter.MinStreakWeeks = n
	}
	if raw := q.Get("includeAddress"); raw != "" {
		b, err := strconv.ParseBool(raw)
		if err != nil {
			h.writeError(w, http.StatusBadRequest, "invalid includeAddress", nil)
			return
		}
		filter.IncludeAddress = b
	}

	rows, err := h.deps.Streaks.Fetch(r.Context(), tenantID, filter)
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, "failed to fetch streaks", err)
		return
	}
	if rows == nil {
		rows = []types.StreakRow{}
	}

	_ = json.NewEncoder(w).Encode(map[string]any{
		"streaks": rows,
		"count":   len(rows),
	})
}
