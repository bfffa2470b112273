package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/chainlink-analytics/shelfgap/internal/publisher"
	"github.com/chainlink-analytics/shelfgap/pkg/types"
)

// publishRequest is the optional JSON body of a publish call.
type publishRequest struct {
	// Week selects the snapshot week (YYYY-MM-DD, any day of the week).
	// Empty means the current week.
	Week        string `json:"week,omitempty"`
	TriggeredBy string `json:"triggeredBy,omitempty"`
}

// Publish triggers a snapshot publish for the tenant. The call is idempotent
// per tenant-week: repeats return the ALREADY_PUBLISHED outcome with 200.
func (h *Handlers) Publish(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := h.tenantID(w, r)
	if !ok {
		return
	}

	var body publishRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil && !errors.Is(err, io.EOF) {
		h.writeError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}

	req := publisher.Request{TenantID: tenantID, TriggeredBy: body.TriggeredBy}
	if body.Week != "" {
		week, err := time.Parse("2006-01-02", body.Week)
		if err != nil {
			h.writeError(w, http.StatusBadRequest, "invalid week, want YYYY-MM-DD", err)
			return
		}
		req.Week = week
	}

	result := h.deps.Publisher.Publish(r.Context(), req)

	switch result.Outcome {
	case types.OutcomeFailed:
		w.WriteHeader(http.StatusInternalServerError)
	case types.OutcomePublished:
		w.WriteHeader(http.StatusCreated)
	default:
		w.WriteHeader(http.StatusOK)
	}
	_ = json.NewEncoder(w).Encode(result)
}
