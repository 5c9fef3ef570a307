package stay

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/noah-isme/hospital-billing/internal/common"
)

// Handler exposes stay charges over HTTP.
type Handler struct {
	Service *Service
}

// RecordTransfer creates a pending charge for the bed being vacated.
func (h *Handler) RecordTransfer(w http.ResponseWriter, r *http.Request) {
	var in ChargeInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid payload", nil)
		return
	}
	c, err := h.Service.RecordTransfer(r.Context(), in)
	if err != nil {
		writeError(w, err)
		return
	}
	w.Header().Set(common.ResourceIDHeader, c.ID())
	common.JSON(w, http.StatusCreated, map[string]any{"data": c.Record()})
}

// Pending lists unbilled charges for the subjectId query parameter.
func (h *Handler) Pending(w http.ResponseWriter, r *http.Request) {
	charges, err := h.Service.Pending(r.Context(), r.URL.Query().Get("subjectId"))
	if err != nil {
		writeError(w, err)
		return
	}
	out := make([]Record, 0, len(charges))
	for _, c := range charges {
		out = append(out, c.Record())
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": out})
}

// Get returns one charge by id.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	c, err := h.Service.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": c.Record()})
}

func writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrInvalidInput):
		common.JSONError(w, http.StatusBadRequest, "VALIDATION_ERROR", err.Error(), nil)
	case errors.Is(err, ErrNotFound):
		common.JSONError(w, http.StatusNotFound, "NOT_FOUND", "stay charge not found", nil)
	case errors.Is(err, ErrStoreUnavailable):
		common.JSONError(w, http.StatusServiceUnavailable, "STORE_UNAVAILABLE", "stay store unavailable", nil)
	default:
		common.WriteError(w, err)
	}
}
