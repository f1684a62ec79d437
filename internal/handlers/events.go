package handlers

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/ankarahouse/storefront/internal/auth"
	"github.com/ankarahouse/storefront/internal/models"
	"github.com/ankarahouse/storefront/internal/services"
)

type registerRequest struct {
	EventID      uuid.UUID           `json:"event_id" validate:"required"`
	Quantity     int                 `json:"quantity" validate:"required,min=1,max=10"`
	AttendeeInfo models.AttendeeInfo `json:"attendee_info"`
	IsFree       bool                `json:"is_free"`
}

type registerResponse struct {
	Success       bool                 `json:"success"`
	AttendeeIDs   []uuid.UUID          `json:"attendee_ids"`
	TicketCodes   []string             `json:"ticket_codes"`
	PaymentStatus models.PaymentStatus `json:"payment_status"`
	Message       string               `json:"message"`
}

func (h *Handlers) RegisterForEvent(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	input := services.RegisterInput{
		EventID:  req.EventID,
		Quantity: req.Quantity,
		Attendee: req.AttendeeInfo,
		IsFree:   req.IsFree,
	}
	if principal := auth.PrincipalFromContext(r.Context()); principal != nil {
		ownerID := principal.UserID
		input.OwnerID = &ownerID
	}

	registration, err := h.events.Register(r.Context(), input)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, registerResponse{
		Success:       true,
		AttendeeIDs:   registration.AttendeeIDs,
		TicketCodes:   registration.TicketCodes,
		PaymentStatus: registration.PaymentStatus,
		Message:       registration.Message,
	})
}
