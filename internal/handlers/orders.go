package handlers

import (
	"net/http"
	"strings"

	"github.com/ankarahouse/storefront/internal/auth"
	"github.com/ankarahouse/storefront/internal/db"
	"github.com/ankarahouse/storefront/internal/models"
	"github.com/ankarahouse/storefront/internal/services"
)

type shippingSelection struct {
	MethodCode string `json:"method_code"`
}

type createOrderRequest struct {
	CartItems       []models.CartLine `json:"cart_items" validate:"omitempty,max=100,dive"`
	Email           string            `json:"email" validate:"omitempty,email"`
	ShippingAddress models.Address    `json:"shipping_address"`
	BillingAddress  *models.Address   `json:"billing_address" validate:"omitempty"`
	DiscountCode    string            `json:"discount_code" validate:"omitempty,max=64"`
	ShippingMethod  string            `json:"shipping_method" validate:"omitempty,max=64"`
	// The client's quote only selects the method; the amount is always
	// recalculated.
	ShippingCalculation *shippingSelection `json:"shipping_calculation"`
}

func (r createOrderRequest) methodCode() string {
	if method := strings.TrimSpace(r.ShippingMethod); method != "" {
		return method
	}
	if r.ShippingCalculation != nil {
		return strings.TrimSpace(r.ShippingCalculation.MethodCode)
	}
	return ""
}

func (h *Handlers) CreateOrder(w http.ResponseWriter, r *http.Request) {
	var req createOrderRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	input := services.CreateOrderInput{
		Email:           req.Email,
		Items:           req.CartItems,
		ShippingAddress: req.ShippingAddress,
		BillingAddress:  req.BillingAddress,
		MethodCode:      req.methodCode(),
		DiscountCode:    req.DiscountCode,
	}
	if principal := auth.PrincipalFromContext(r.Context()); principal != nil {
		ownerID := principal.UserID
		input.OwnerID = &ownerID
		if input.Email == "" {
			input.Email = principal.Email
		}
	}
	if input.Email == "" {
		input.Email = req.ShippingAddress.Email
	}

	result, err := h.checkout.CreateOrder(r.Context(), input)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{
		"order":         result.Order,
		"shipping":      result.Shipping,
		"skipped_lines": result.SkippedLines,
	})
}

// GetOrder returns an order to its owner or an admin. Guest orders are
// addressed by their unguessable id alone.
func (h *Handlers) GetOrder(w http.ResponseWriter, r *http.Request) {
	orderID, err := pathUUID(r, "id")
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	order, err := h.fulfillment.GetOrder(r.Context(), orderID)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	caller := callerFromRequest(r)
	if order.OwnerID != nil && !caller.IsAdmin && (caller.UserID == nil || !order.OwnedBy(*caller.UserID)) {
		// Hide other customers' orders entirely.
		h.writeServiceError(w, r, services.ErrOrderNotFound)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"order": order})
}

// ListMyOrders pages through the caller's own orders.
func (h *Handlers) ListMyOrders(w http.ResponseWriter, r *http.Request) {
	principal := auth.PrincipalFromContext(r.Context())
	if principal == nil {
		h.writeServiceError(w, r, services.ErrAuthRequired)
		return
	}

	filter, err := orderFilterFromQuery(r.URL.Query())
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	ownerID := principal.UserID
	filter.OwnerID = &ownerID
	filter.Search = ""

	h.writeOrderList(w, r, filter)
}

func (h *Handlers) writeOrderList(w http.ResponseWriter, r *http.Request, filter db.OrderFilter) {
	orders, total, err := h.fulfillment.ListOrders(r.Context(), filter)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	if orders == nil {
		orders = []*models.Order{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"orders": orders,
		"total":  total,
	})
}
