package db

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrEventFull is returned when the conditional attendee increment matches no row.
var ErrEventFull = errors.New("event has insufficient capacity")

var ErrDuplicateTicketCode = errors.New("ticket code already exists")

const eventColumns = `id, title, slug, venue, price, starts_at, ends_at, max_attendees, current_attendees, is_active, created_at, updated_at`

const attendeeColumns = `id, event_id, owner_id, first_name, last_name, email, phone, ticket_code, payment_status, attended, created_at`

type EventStore struct {
	pool *pgxpool.Pool
}

func NewEventStore(pool *pgxpool.Pool) *EventStore {
	return &EventStore{pool: pool}
}

func (s *EventStore) GetByID(ctx context.Context, eventID uuid.UUID) (*Event, error) {
	var (
		e            Event
		venue        pgtype.Text
		endsAt       pgtype.Timestamptz
		maxAttendees pgtype.Int4
	)
	err := s.pool.QueryRow(ctx, `SELECT `+eventColumns+` FROM events WHERE id = $1`, eventID).Scan(
		&e.ID, &e.Title, &e.Slug, &venue, &e.Price, &e.StartsAt, &endsAt, &maxAttendees, &e.CurrentAttendees, &e.IsActive, &e.CreatedAt, &e.UpdatedAt,
	)
	if err != nil {
		return nil, notFound(err)
	}
	e.Venue = venue.String
	e.EndsAt = timeFromPg(endsAt)
	if maxAttendees.Valid {
		limit := int(maxAttendees.Int32)
		e.MaxAttendees = &limit
	}
	return &e, nil
}

// Register reserves len(attendees) seats and inserts the attendee rows in one
// transaction. The seat counter only moves when the event is active and the
// new total stays within max_attendees; otherwise nothing is written and
// ErrEventFull is returned.
func (s *EventStore) Register(ctx context.Context, eventID uuid.UUID, attendees []EventAttendee) error {
	if len(attendees) == 0 {
		return fmt.Errorf("at least one attendee is required")
	}

	return withTx(ctx, s.pool, func(tx pgx.Tx) error {
		cmdTag, err := tx.Exec(ctx, `
			UPDATE events
			SET current_attendees = current_attendees + $2, updated_at = NOW()
			WHERE id = $1
			  AND is_active
			  AND (max_attendees IS NULL OR current_attendees + $2 <= max_attendees)`,
			eventID, len(attendees))
		if err != nil {
			return fmt.Errorf("failed to reserve seats: %w", err)
		}
		if cmdTag.RowsAffected() == 0 {
			return ErrEventFull
		}

		for i := range attendees {
			attendee := &attendees[i]
			attendee.EventID = eventID
			err := tx.QueryRow(ctx, `
				INSERT INTO event_attendees (event_id, owner_id, first_name, last_name, email, phone, ticket_code, payment_status)
				VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
				RETURNING id, created_at`,
				eventID,
				uuidParam(attendee.OwnerID),
				attendee.FirstName,
				attendee.LastName,
				attendee.Email,
				textParam(attendee.Phone),
				attendee.TicketCode,
				string(attendee.PaymentStatus),
			).Scan(&attendee.ID, &attendee.CreatedAt)
			if err != nil {
				if isUniqueViolation(err, "event_attendees_ticket_code_key") {
					return fmt.Errorf("%w: %s", ErrDuplicateTicketCode, attendee.TicketCode)
				}
				return fmt.Errorf("failed to insert attendee %d: %w", i, err)
			}
		}
		return nil
	})
}

func (s *EventStore) ListAttendees(ctx context.Context, eventID uuid.UUID) ([]EventAttendee, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+attendeeColumns+` FROM event_attendees WHERE event_id = $1 ORDER BY created_at, id`, eventID)
	if err != nil {
		return nil, fmt.Errorf("failed to list attendees: %w", err)
	}
	defer rows.Close()

	var attendees []EventAttendee
	for rows.Next() {
		attendee, err := scanAttendee(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan attendee: %w", err)
		}
		attendees = append(attendees, *attendee)
	}
	return attendees, rows.Err()
}

// CheckIn marks an attendee as attended and returns the updated row.
func (s *EventStore) CheckIn(ctx context.Context, ticketCode string) (*EventAttendee, error) {
	attendee, err := scanAttendee(s.pool.QueryRow(ctx, `
		UPDATE event_attendees
		SET attended = TRUE
		WHERE ticket_code = $1
		RETURNING `+attendeeColumns, ticketCode))
	if err != nil {
		return nil, notFound(err)
	}
	return attendee, nil
}

func scanAttendee(row pgx.Row) (*EventAttendee, error) {
	var (
		a             EventAttendee
		ownerID       pgtype.UUID
		phone         pgtype.Text
		paymentStatus string
	)
	if err := row.Scan(&a.ID, &a.EventID, &ownerID, &a.FirstName, &a.LastName, &a.Email, &phone, &a.TicketCode, &paymentStatus, &a.Attended, &a.CreatedAt); err != nil {
		return nil, err
	}
	a.OwnerID = uuidFromPg(ownerID)
	a.Phone = phone.String
	a.PaymentStatus = PaymentStatus(paymentStatus)
	return &a, nil
}
