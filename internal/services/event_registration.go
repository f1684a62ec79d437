package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/getsentry/sentry-go/attribute"
	"github.com/google/uuid"

	"github.com/ankarahouse/storefront/internal/db"
	"github.com/ankarahouse/storefront/internal/events"
	"github.com/ankarahouse/storefront/internal/logging"
	"github.com/ankarahouse/storefront/internal/models"
	"github.com/ankarahouse/storefront/internal/observability"
)

const maxTicketsPerRegistration = 10

type EventService struct {
	events      eventStore
	publisher   events.Publisher
	emailSender OrderEmailSender
	now         func() time.Time
	logger      *slog.Logger
}

func NewEventService(store eventStore, publisher events.Publisher, emailSender OrderEmailSender, logger *slog.Logger) *EventService {
	if emailSender == nil {
		emailSender = noopOrderEmailSender{}
	}
	if publisher == nil {
		publisher = noopPublisher{}
	}

	return &EventService{
		events:      store,
		publisher:   publisher,
		emailSender: emailSender,
		now:         time.Now,
		logger:      logger,
	}
}

func (s *EventService) loggerFromContext(ctx context.Context) *slog.Logger {
	return logging.FromContext(ctx, s.logger)
}

type RegisterInput struct {
	EventID  uuid.UUID
	Quantity int
	Attendee models.AttendeeInfo
	// IsFree is the caller's claim; it only counts when the event price is zero.
	IsFree  bool
	OwnerID *uuid.UUID
}

type Registration struct {
	AttendeeIDs   []uuid.UUID          `json:"attendee_ids"`
	TicketCodes   []string             `json:"ticket_codes"`
	PaymentStatus models.PaymentStatus `json:"payment_status"`
	Message       string               `json:"message"`
}

type eventRegistered struct {
	EventID     string   `json:"event_id"`
	EventSlug   string   `json:"event_slug"`
	Quantity    int      `json:"quantity"`
	AttendeeIDs []string `json:"attendee_ids"`
	Email       string   `json:"email"`
	Free        bool     `json:"free"`
}

// Register reserves Quantity seats and issues one ticket per seat. Capacity
// is checked up front for a clear error and enforced again by the store's
// conditional update, so concurrent registrations cannot oversell.
func (s *EventService) Register(ctx context.Context, input RegisterInput) (*Registration, error) {
	span := sentry.StartSpan(
		ctx,
		"service.event.register",
		sentry.WithOpName("service.event"),
		sentry.WithDescription("Register"),
		sentry.WithSpanOrigin(sentry.SpanOriginManual),
	)
	defer span.Finish()
	ctx = span.Context()

	logger := s.loggerFromContext(ctx)
	meter := observability.MeterFromContext(ctx)
	recordFailed := func(reason string) {
		meter.Count("event.register.failed", 1, sentry.WithAttributes(
			attribute.String("reason", reason),
		))
	}

	if input.Quantity < 1 || input.Quantity > maxTicketsPerRegistration {
		recordFailed("invalid_quantity")
		return nil, UserError{Message: fmt.Sprintf("Quantity must be between 1 and %d", maxTicketsPerRegistration)}
	}
	attendee := input.Attendee
	attendee.FirstName = strings.TrimSpace(attendee.FirstName)
	attendee.LastName = strings.TrimSpace(attendee.LastName)
	attendee.Email = strings.TrimSpace(attendee.Email)
	attendee.Phone = strings.TrimSpace(attendee.Phone)
	if attendee.FirstName == "" || attendee.Email == "" {
		recordFailed("missing_attendee")
		return nil, UserError{Message: "Attendee name and email are required"}
	}

	event, err := s.events.GetByID(ctx, input.EventID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			recordFailed("event_not_found")
			return nil, ErrEventNotFound
		}
		recordFailed("event_lookup_failed")
		return nil, fmt.Errorf("failed to load event: %w", err)
	}

	now := s.now()
	if !event.IsActive {
		recordFailed("event_inactive")
		return nil, ErrEventInactive
	}
	if event.HasEnded(now) {
		recordFailed("event_ended")
		return nil, ErrEventEnded
	}
	if !event.HasCapacityFor(input.Quantity) {
		recordFailed("insufficient_capacity")
		return nil, ErrInsufficientCapacity
	}

	free := event.IsFree()
	if input.IsFree && !free {
		logger.Warn("ignoring free registration claim for paid event", "event_id", event.ID, "price", event.Price.String())
	}
	paymentStatus := models.PaymentPending
	if free {
		paymentStatus = models.PaymentPaid
	}

	var attendees []models.EventAttendee
	for attempt := 1; attempt <= maxReferenceAttempts; attempt++ {
		attendees = make([]models.EventAttendee, input.Quantity)
		for i := range attendees {
			attendees[i] = models.EventAttendee{
				EventID:       event.ID,
				OwnerID:       input.OwnerID,
				FirstName:     attendee.FirstName,
				LastName:      attendee.LastName,
				Email:         attendee.Email,
				Phone:         attendee.Phone,
				TicketCode:    NewTicketCode(event.Slug, now),
				PaymentStatus: paymentStatus,
			}
		}

		err = s.events.Register(ctx, event.ID, attendees)
		if !errors.Is(err, db.ErrDuplicateTicketCode) {
			break
		}
		logger.Warn("ticket code collision, retrying", "event_id", event.ID, "attempt", attempt)
	}
	if err != nil {
		if errors.Is(err, db.ErrEventFull) {
			recordFailed("insufficient_capacity")
			return nil, ErrInsufficientCapacity
		}
		recordFailed("register_failed")
		return nil, fmt.Errorf("failed to register attendees: %w", err)
	}

	registration := &Registration{
		PaymentStatus: paymentStatus,
		Message:       registrationMessage(input.Quantity, event.Title),
	}
	attendeeIDs := make([]string, 0, len(attendees))
	for _, a := range attendees {
		registration.AttendeeIDs = append(registration.AttendeeIDs, a.ID)
		registration.TicketCodes = append(registration.TicketCodes, a.TicketCode)
		attendeeIDs = append(attendeeIDs, a.ID.String())
	}

	meter.Count("event.register.succeeded", 1, sentry.WithAttributes(attribute.Int("quantity", input.Quantity)))
	observability.EventSeatsReserved.Add(float64(input.Quantity))
	logger.Info("event registration created", "event_id", event.ID, "quantity", input.Quantity, "free", free)

	if envelope, err := events.NewEnvelope(events.EventRegistered, event.ID.String(), eventRegistered{
		EventID:     event.ID.String(),
		EventSlug:   event.Slug,
		Quantity:    input.Quantity,
		AttendeeIDs: attendeeIDs,
		Email:       attendee.Email,
		Free:        free,
	}); err != nil {
		logger.Error("failed to build registration event", "error", err, "event_id", event.ID)
	} else {
		publishEvents(ctx, s.publisher, logger, envelope)
	}

	if err := s.emailSender.SendEventTicket(ctx, event, attendees); err != nil {
		meter.Count("event.ticket_email.side_effect_failed", 1)
		logger.Error("failed to send ticket email", "error", err, "event_id", event.ID)
	}

	return registration, nil
}

func registrationMessage(quantity int, title string) string {
	if quantity == 1 {
		return fmt.Sprintf("Registered 1 attendee for %s", title)
	}
	return fmt.Sprintf("Registered %d attendees for %s", quantity, title)
}

func (s *EventService) ListAttendees(ctx context.Context, eventID uuid.UUID) ([]models.EventAttendee, error) {
	if _, err := s.events.GetByID(ctx, eventID); err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, ErrEventNotFound
		}
		return nil, fmt.Errorf("failed to load event: %w", err)
	}
	attendees, err := s.events.ListAttendees(ctx, eventID)
	if err != nil {
		return nil, fmt.Errorf("failed to list attendees: %w", err)
	}
	return attendees, nil
}

// CheckIn marks the ticket holder as attended. Checking in twice is allowed.
func (s *EventService) CheckIn(ctx context.Context, ticketCode string) (*models.EventAttendee, error) {
	ticketCode = strings.TrimSpace(ticketCode)
	if ticketCode == "" {
		return nil, UserError{Message: "Ticket code is required"}
	}
	attendee, err := s.events.CheckIn(ctx, ticketCode)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, UserError{Message: "Ticket not found"}
		}
		return nil, fmt.Errorf("failed to check in: %w", err)
	}
	s.loggerFromContext(ctx).Info("attendee checked in", "event_id", attendee.EventID, "attendee_id", attendee.ID)
	return attendee, nil
}
