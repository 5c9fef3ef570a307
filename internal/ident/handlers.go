package ident

import (
	"context"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/noah-isme/hospital-billing/internal/common"
)

// Issuer hands out claimed identifiers.
type Issuer interface {
	Allocate(ctx context.Context, prefix Prefix) (Identifier, error)
}

var _ Issuer = Allocator{}

// Handler exposes identifier allocation and parsing over HTTP.
type Handler struct {
	Issuer Issuer
}

type identifierResponse struct {
	Identifier string `json:"identifier"`
	Prefix     Prefix `json:"prefix"`
	Sequence   int    `json:"sequence"`
}

func toResponse(id Identifier) identifierResponse {
	return identifierResponse{Identifier: id.String(), Prefix: id.Prefix, Sequence: id.Sequence}
}

// Allocate claims a fresh identifier for the {prefix} path parameter.
func (h *Handler) Allocate(w http.ResponseWriter, r *http.Request) {
	prefix, err := ParsePrefix(chi.URLParam(r, "prefix"))
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "VALIDATION_ERROR", err.Error(), map[string]any{"prefixes": Prefixes()})
		return
	}
	id, err := h.Issuer.Allocate(r.Context(), prefix)
	switch {
	case errors.Is(err, ErrExhausted):
		common.JSONError(w, http.StatusServiceUnavailable, "IDENTIFIER_EXHAUSTED", err.Error(), nil)
		return
	case err != nil:
		common.WriteError(w, err)
		return
	}
	w.Header().Set(common.ResourceIDHeader, id.String())
	common.JSON(w, http.StatusCreated, map[string]any{"data": toResponse(id)})
}

// Parse recognises the {text} path parameter, optionally restricted by the
// prefix query parameter. Unrecognised text is a 404, not a validation error.
func (h *Handler) Parse(w http.ResponseWriter, r *http.Request) {
	text := chi.URLParam(r, "text")
	var (
		id Identifier
		ok bool
	)
	if raw := r.URL.Query().Get("prefix"); raw != "" {
		prefix, err := ParsePrefix(raw)
		if err != nil {
			common.JSONError(w, http.StatusBadRequest, "VALIDATION_ERROR", err.Error(), nil)
			return
		}
		id, ok = ParseAs(text, prefix)
	} else {
		id, ok = Parse(text)
	}
	if !ok {
		common.JSONError(w, http.StatusNotFound, "NO_MATCH", "not a recognized identifier", nil)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": toResponse(id)})
}
