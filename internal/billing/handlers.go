package billing

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/noah-isme/hospital-billing/internal/common"
	"github.com/noah-isme/hospital-billing/internal/ident"
	"github.com/noah-isme/hospital-billing/internal/stay"
)

// Handler exposes invoice preview and issue over HTTP.
type Handler struct {
	Service *Service
}

// Preview prices an invoice without side effects.
func (h *Handler) Preview(w http.ResponseWriter, r *http.Request) {
	var req InvoiceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid payload", nil)
		return
	}
	inv, err := h.Service.Preview(r.Context(), req)
	if err != nil {
		writeError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": inv})
}

// Issue numbers an invoice and bills the included stay charges.
func (h *Handler) Issue(w http.ResponseWriter, r *http.Request) {
	var req InvoiceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid payload", nil)
		return
	}
	inv, err := h.Service.Issue(r.Context(), req)
	if err != nil {
		writeError(w, err)
		return
	}
	w.Header().Set(common.ResourceIDHeader, inv.Number)
	common.JSON(w, http.StatusCreated, map[string]any{"data": inv})
}

func writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrInvalidInput):
		common.JSONError(w, http.StatusBadRequest, "VALIDATION_ERROR", err.Error(), nil)
	case errors.Is(err, ident.ErrExhausted):
		common.JSONError(w, http.StatusServiceUnavailable, "IDENTIFIER_EXHAUSTED", "could not allocate invoice number", nil)
	case errors.Is(err, stay.ErrStoreUnavailable):
		common.JSONError(w, http.StatusServiceUnavailable, "STORE_UNAVAILABLE", "stay store unavailable", nil)
	default:
		common.WriteError(w, err)
	}
}
