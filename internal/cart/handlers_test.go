package cart_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/hospital-billing/internal/cart"
)

func TestTotalsHandler(t *testing.T) {
	h := &cart.Handler{Mode: cart.DiscountModeCorrected}
	body := `{"items":[{"unitPrice":500,"qty":2,"discountPct":10,"taxPct":5}],"globalDiscount":5000}`
	rec := httptest.NewRecorder()
	h.Totals(rec, httptest.NewRequest(http.MethodPost, "/api/v1/carts/totals", strings.NewReader(body)))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Data struct {
			Totals   cart.Totals `json:"totals"`
			Adjusted cart.Totals `json:"adjusted"`
			Applied  int64       `json:"appliedGlobalDiscount"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, cart.Totals{Subtotal: 900, DiscountTotal: 100, TaxTotal: 45, NetPayable: 945}, resp.Data.Totals)
	require.Equal(t, int64(900), resp.Data.Applied)
	require.Equal(t, cart.Money(45), resp.Data.Adjusted.NetPayable)
}

func TestTotalsHandlerValidation(t *testing.T) {
	h := &cart.Handler{}
	rec := httptest.NewRecorder()
	h.Totals(rec, httptest.NewRequest(http.MethodPost, "/api/v1/carts/totals", strings.NewReader(`{"items":[{"unitPrice":500,"qty":0}]}`)))
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Contains(t, rec.Body.String(), "VALIDATION_ERROR")

	rec = httptest.NewRecorder()
	h.Totals(rec, httptest.NewRequest(http.MethodPost, "/api/v1/carts/totals", strings.NewReader(`{`)))
	require.Equal(t, http.StatusBadRequest, rec.Code)
}
