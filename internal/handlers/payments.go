package handlers

import (
	"net/http"
)

// InitiatePayment opens a hosted checkout for an order and returns the URL
// the customer should be sent to.
func (h *Handlers) InitiatePayment(w http.ResponseWriter, r *http.Request) {
	orderID, err := pathUUID(r, "id")
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	initiation, err := h.payments.Initiate(r.Context(), orderID, callerFromRequest(r))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, initiation)
}

func (h *Handlers) VerifyPayment(w http.ResponseWriter, r *http.Request) {
	order, err := h.payments.Verify(r.Context(), r.URL.Query().Get("reference"))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"order_id":       order.ID,
		"order_number":   order.OrderNumber,
		"payment_status": order.PaymentStatus,
		"status":         order.Status,
	})
}
