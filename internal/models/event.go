package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type Event struct {
	ID               uuid.UUID       `json:"id"`
	Title            string          `json:"title"`
	Slug             string          `json:"slug"`
	Venue            string          `json:"venue,omitempty"`
	Price            decimal.Decimal `json:"price"`
	StartsAt         time.Time       `json:"starts_at"`
	EndsAt           *time.Time      `json:"ends_at"`
	MaxAttendees     *int            `json:"max_attendees"`
	CurrentAttendees int             `json:"current_attendees"`
	IsActive         bool            `json:"is_active"`
	CreatedAt        time.Time       `json:"created_at"`
	UpdatedAt        time.Time       `json:"updated_at"`
}

// HasEnded reports whether the event is over at now. Events without an end
// time are considered over once they start.
func (e *Event) HasEnded(now time.Time) bool {
	if e.EndsAt != nil {
		return now.After(*e.EndsAt)
	}
	return now.After(e.StartsAt)
}

// HasCapacityFor reports whether quantity more attendees fit. Events without
// a declared maximum are unlimited.
func (e *Event) HasCapacityFor(quantity int) bool {
	if e.MaxAttendees == nil {
		return true
	}
	return e.CurrentAttendees+quantity <= *e.MaxAttendees
}

func (e *Event) IsFree() bool {
	return !e.Price.IsPositive()
}

type AttendeeInfo struct {
	FirstName string `json:"first_name" validate:"required"`
	LastName  string `json:"last_name" validate:"required"`
	Email     string `json:"email" validate:"required,email"`
	Phone     string `json:"phone"`
}

type EventAttendee struct {
	ID            uuid.UUID     `json:"id"`
	EventID       uuid.UUID     `json:"event_id"`
	OwnerID       *uuid.UUID    `json:"owner_id"`
	FirstName     string        `json:"first_name"`
	LastName      string        `json:"last_name"`
	Email         string        `json:"email"`
	Phone         string        `json:"phone,omitempty"`
	TicketCode    string        `json:"ticket_code"`
	PaymentStatus PaymentStatus `json:"payment_status"`
	Attended      bool          `json:"attended"`
	CreatedAt     time.Time     `json:"created_at"`
}
