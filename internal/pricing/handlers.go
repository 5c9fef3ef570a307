package pricing

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/noah-isme/hospital-billing/internal/common"
	"github.com/noah-isme/hospital-billing/internal/obs"
)

// Handler exposes the price calculator and tier suggester over HTTP.
type Handler struct{}

// Quote runs the markup, discount and tax cascade for one item.
func (h *Handler) Quote(w http.ResponseWriter, r *http.Request) {
	var spec Spec
	if err := json.NewDecoder(r.Body).Decode(&spec); err != nil {
		countQuote("bad_request")
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid payload", nil)
		return
	}
	res, err := Calculate(spec)
	if err != nil {
		countQuote("invalid")
		writeError(w, err)
		return
	}
	countQuote("ok")
	common.JSON(w, http.StatusOK, map[string]any{"data": res})
}

type tiersRequest struct {
	NetPrice Money `json:"netPrice"`
}

// Tiers suggests cash, insurance and corporate prices for a net price.
func (h *Handler) Tiers(w http.ResponseWriter, r *http.Request) {
	var payload tiersRequest
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid payload", nil)
		return
	}
	tiers, err := SuggestTiers(payload.NetPrice)
	if err != nil {
		writeError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": tiers})
}

func countQuote(result string) {
	if obs.PriceQuotesTotal != nil {
		obs.PriceQuotesTotal.WithLabelValues(result).Inc()
	}
}

func writeError(w http.ResponseWriter, err error) {
	if errors.Is(err, ErrInvalidInput) {
		common.JSONError(w, http.StatusBadRequest, "VALIDATION_ERROR", err.Error(), nil)
		return
	}
	common.WriteError(w, err)
}
