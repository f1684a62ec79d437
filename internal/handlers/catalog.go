package handlers

import (
	"net/http"
	"strings"

	"github.com/gorilla/mux"

	"github.com/ankarahouse/storefront/internal/auth"
	"github.com/ankarahouse/storefront/internal/db"
	"github.com/ankarahouse/storefront/internal/models"
	"github.com/ankarahouse/storefront/internal/services"
)

func (h *Handlers) ListProducts(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	filter := db.ProductFilter{Search: strings.TrimSpace(query.Get("q"))}

	var err error
	if filter.Limit, err = queryInt(query, "limit", 0, 100); err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	if filter.Offset, err = queryInt(query, "offset", 0, 1<<30); err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	products, err := h.catalog.ListProducts(r.Context(), filter)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	if products == nil {
		products = []*models.Product{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"products": products})
}

func (h *Handlers) GetProduct(w http.ResponseWriter, r *http.Request) {
	product, err := h.catalog.GetProduct(r.Context(), mux.Vars(r)["slug"])
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"product": product})
}

func (h *Handlers) GetCart(w http.ResponseWriter, r *http.Request) {
	principal := auth.PrincipalFromContext(r.Context())
	if principal == nil {
		h.writeServiceError(w, r, services.ErrAuthRequired)
		return
	}

	cart, err := h.carts.Get(r.Context(), principal.UserID)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, cart)
}

func (h *Handlers) SetCartItem(w http.ResponseWriter, r *http.Request) {
	principal := auth.PrincipalFromContext(r.Context())
	if principal == nil {
		h.writeServiceError(w, r, services.ErrAuthRequired)
		return
	}
	var line models.CartLine
	if err := decodeJSON(w, r, &line); err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	item, err := h.carts.SetItem(r.Context(), principal.UserID, line)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"item": item})
}

func (h *Handlers) RemoveCartItem(w http.ResponseWriter, r *http.Request) {
	principal := auth.PrincipalFromContext(r.Context())
	if principal == nil {
		h.writeServiceError(w, r, services.ErrAuthRequired)
		return
	}
	itemID, err := pathUUID(r, "id")
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	if err := h.carts.RemoveItem(r.Context(), principal.UserID, itemID); err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
