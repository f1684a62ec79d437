package handlers

import (
	"net/http"

	"github.com/ankarahouse/storefront/internal/auth"
	"github.com/ankarahouse/storefront/internal/services"
)

type meResponse struct {
	UserID  string `json:"user_id"`
	Email   string `json:"email"`
	Role    string `json:"role"`
	IsAdmin bool   `json:"is_admin"`
}

// Me echoes the verified caller so clients can check their token and role.
func (h *Handlers) Me(w http.ResponseWriter, r *http.Request) {
	principal := auth.PrincipalFromContext(r.Context())
	if principal == nil {
		h.writeServiceError(w, r, services.ErrAuthRequired)
		return
	}

	writeJSON(w, http.StatusOK, meResponse{
		UserID:  principal.UserID.String(),
		Email:   principal.Email,
		Role:    principal.Role,
		IsAdmin: principal.IsAdmin,
	})
}
