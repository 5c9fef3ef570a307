package audit

import (
	"net/http"
	"strconv"

	"github.com/noah-isme/hospital-billing/internal/common"
)

// Handler exposes the audit trail.
type Handler struct {
	Sink Sink
}

// List returns the most recent entries, newest first.
func (h Handler) List(w http.ResponseWriter, r *http.Request) {
	if h.Sink == nil {
		common.JSONError(w, http.StatusInternalServerError, "AUDIT_NOT_CONFIGURED", "audit sink not configured", nil)
		return
	}
	limit, err := strconv.Atoi(r.URL.Query().Get("limit"))
	if err != nil || limit <= 0 || limit > 200 {
		limit = 50
	}
	entries, err := h.Sink.Recent(r.Context(), limit)
	if err != nil {
		common.JSONError(w, http.StatusServiceUnavailable, "AUDIT_QUERY_FAILED", "unable to fetch audit entries", nil)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": entries})
}
