package handlers

import (
	"net/http"

	"github.com/shopspring/decimal"

	"github.com/ankarahouse/storefront/internal/shipping"
)

// CalculateShipping quotes delivery for a cart summary.
func (h *Handlers) CalculateShipping(w http.ResponseWriter, r *http.Request) {
	var req shipping.Request
	if err := decodeJSON(w, r, &req); err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	quote, err := h.shipping.Quote(r.Context(), req)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, quote)
}

type surgeRequest struct {
	SurgeMultiplier decimal.Decimal `json:"surge_multiplier" validate:"-"`
	SurgeActive     *bool           `json:"surge_active" validate:"required"`
}

func (h *Handlers) AdminUpdateSurge(w http.ResponseWriter, r *http.Request) {
	rateID, err := pathUUID(r, "id")
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	var req surgeRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	rate, err := h.shipping.UpdateSurge(r.Context(), rateID, req.SurgeMultiplier, *req.SurgeActive)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"rate": rate})
}
