package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/ankarahouse/storefront/internal/auth"
	"github.com/ankarahouse/storefront/internal/models"
)

const validOrderBody = `{
	"cart_items": [{"product_id": "7b0c4f46-7a43-4a8c-9d1e-1f6a7e0c2b11", "quantity": 2}],
	"shipping_address": {
		"first_name": "Ada",
		"last_name": "Obi",
		"email": "ada@example.com",
		"phone": "+2348012345678",
		"address_line_1": "12 Admiralty Way",
		"city": "Lekki",
		"state": "Lagos",
		"country": "NG"
	},
	"shipping_calculation": {"method_code": "express"}
}`

func withPrincipal(r *http.Request, principal *auth.Principal) *http.Request {
	return r.WithContext(auth.WithPrincipal(r.Context(), principal))
}

func TestCreateOrder_UsesPrincipalAndShippingSelection(t *testing.T) {
	t.Parallel()

	checkout := &stubCheckout{}
	h := newTestHandlers()
	h.checkout = checkout

	userID := uuid.New()
	req := httptest.NewRequest(http.MethodPost, "/api/orders", strings.NewReader(validOrderBody))
	req = withPrincipal(req, &auth.Principal{UserID: userID, Email: "account@example.com"})
	rec := httptest.NewRecorder()

	h.CreateOrder(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected status %d, got %d: %s", http.StatusCreated, rec.Code, rec.Body.String())
	}
	if checkout.input.OwnerID == nil || *checkout.input.OwnerID != userID {
		t.Fatalf("expected owner %s, got %v", userID, checkout.input.OwnerID)
	}
	if checkout.input.Email != "account@example.com" {
		t.Fatalf("expected account email, got %q", checkout.input.Email)
	}
	if checkout.input.MethodCode != "express" {
		t.Fatalf("expected method express, got %q", checkout.input.MethodCode)
	}
}

func TestCreateOrder_GuestFallsBackToAddressEmail(t *testing.T) {
	t.Parallel()

	checkout := &stubCheckout{}
	h := newTestHandlers()
	h.checkout = checkout

	req := httptest.NewRequest(http.MethodPost, "/api/orders", strings.NewReader(validOrderBody))
	rec := httptest.NewRecorder()

	h.CreateOrder(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected status %d, got %d: %s", http.StatusCreated, rec.Code, rec.Body.String())
	}
	if checkout.input.OwnerID != nil {
		t.Fatalf("expected guest order, got owner %v", checkout.input.OwnerID)
	}
	if checkout.input.Email != "ada@example.com" {
		t.Fatalf("expected address email, got %q", checkout.input.Email)
	}
}

func TestCreateOrderRequest_MethodCodePrefersExplicitMethod(t *testing.T) {
	t.Parallel()

	req := createOrderRequest{
		ShippingMethod:      " standard ",
		ShippingCalculation: &shippingSelection{MethodCode: "express"},
	}
	if got := req.methodCode(); got != "standard" {
		t.Fatalf("expected standard, got %q", got)
	}
	if got := (createOrderRequest{}).methodCode(); got != "" {
		t.Fatalf("expected empty method, got %q", got)
	}
}

func TestGetOrder_Visibility(t *testing.T) {
	t.Parallel()

	ownerID := uuid.New()
	owned := &models.Order{ID: uuid.New(), OwnerID: &ownerID}
	guest := &models.Order{ID: uuid.New()}
	fulfillment := &stubFulfillment{orders: map[uuid.UUID]*models.Order{
		owned.ID: owned,
		guest.ID: guest,
	}}

	tests := []struct {
		name      string
		orderID   uuid.UUID
		principal *auth.Principal
		status    int
	}{
		{name: "owner", orderID: owned.ID, principal: &auth.Principal{UserID: ownerID}, status: http.StatusOK},
		{name: "admin", orderID: owned.ID, principal: &auth.Principal{UserID: uuid.New(), IsAdmin: true}, status: http.StatusOK},
		{name: "other customer", orderID: owned.ID, principal: &auth.Principal{UserID: uuid.New()}, status: http.StatusNotFound},
		{name: "anonymous on owned order", orderID: owned.ID, status: http.StatusNotFound},
		{name: "anonymous on guest order", orderID: guest.ID, status: http.StatusOK},
		{name: "missing", orderID: uuid.New(), status: http.StatusNotFound},
	}

	h := newTestHandlers()
	h.fulfillment = fulfillment

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			req := httptest.NewRequest(http.MethodGet, "/api/orders/"+tc.orderID.String(), nil)
			req = mux.SetURLVars(req, map[string]string{"id": tc.orderID.String()})
			if tc.principal != nil {
				req = withPrincipal(req, tc.principal)
			}
			rec := httptest.NewRecorder()

			h.GetOrder(rec, req)

			if rec.Code != tc.status {
				t.Fatalf("expected status %d, got %d", tc.status, rec.Code)
			}
		})
	}
}

func TestListMyOrders_ScopesToCaller(t *testing.T) {
	t.Parallel()

	fulfillment := &stubFulfillment{orders: map[uuid.UUID]*models.Order{}}
	h := newTestHandlers()
	h.fulfillment = fulfillment

	userID := uuid.New()
	req := httptest.NewRequest(http.MethodGet, "/api/orders?q=someone&limit=10", nil)
	req = withPrincipal(req, &auth.Principal{UserID: userID})
	rec := httptest.NewRecorder()

	h.ListMyOrders(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, rec.Code)
	}
	filter := fulfillment.lastFilter
	if filter.OwnerID == nil || *filter.OwnerID != userID {
		t.Fatalf("expected owner filter %s, got %v", userID, filter.OwnerID)
	}
	if filter.Search != "" || filter.Limit != 10 {
		t.Fatalf("unexpected filter: %+v", filter)
	}

	var body struct {
		Orders []json.RawMessage `json:"orders"`
		Total  int               `json:"total"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode body: %v", err)
	}
	if body.Orders == nil || body.Total != 0 {
		t.Fatalf("expected an empty orders array, got %+v", body)
	}
}
