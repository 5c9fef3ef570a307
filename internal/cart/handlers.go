package cart

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/noah-isme/hospital-billing/internal/common"
	"github.com/noah-isme/hospital-billing/internal/obs"
)

// Handler exposes the cart calculators over HTTP.
type Handler struct {
	Mode DiscountMode
}

type totalsRequest struct {
	Items          []LineItem `json:"items"`
	BaseCharge     Money      `json:"baseCharge"`
	GlobalDiscount Money      `json:"globalDiscount"`
}

// Totals aggregates the posted line items and applies the optional global discount.
func (h *Handler) Totals(w http.ResponseWriter, r *http.Request) {
	var payload totalsRequest
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid payload", nil)
		return
	}
	totals, err := Aggregate(payload.Items, payload.BaseCharge)
	if err != nil {
		h.writeError(w, err)
		return
	}
	adjusted, err := ApplyGlobalDiscount(totals, payload.GlobalDiscount, h.Mode)
	if err != nil {
		h.writeError(w, err)
		return
	}
	applied := AppliedDiscount(totals, payload.GlobalDiscount)
	if applied < payload.GlobalDiscount && obs.GlobalDiscountClampedTotal != nil {
		obs.GlobalDiscountClampedTotal.Inc()
	}
	common.JSON(w, http.StatusOK, map[string]any{
		"data": map[string]any{
			"totals":                  totals,
			"adjusted":                adjusted,
			"requestedGlobalDiscount": payload.GlobalDiscount,
			"appliedGlobalDiscount":   applied,
		},
	})
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrInvalidInput):
		common.JSONError(w, http.StatusBadRequest, "VALIDATION_ERROR", err.Error(), nil)
	case errors.Is(err, ErrNotFound):
		common.JSONError(w, http.StatusNotFound, "NOT_FOUND", err.Error(), nil)
	default:
		common.WriteError(w, err)
	}
}
