package services

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/ankarahouse/storefront/internal/catalog"
	"github.com/ankarahouse/storefront/internal/db"
	"github.com/ankarahouse/storefront/internal/models"
	"github.com/ankarahouse/storefront/internal/shipping"
	"github.com/ankarahouse/storefront/internal/stripe"
)

// The interfaces below are satisfied by the pgx stores in internal/db.

type orderStore interface {
	Create(ctx context.Context, order *models.Order) error
	GetByID(ctx context.Context, orderID uuid.UUID) (*models.Order, error)
	GetByPaymentReference(ctx context.Context, reference string) (*models.Order, error)
	List(ctx context.Context, filter db.OrderFilter) ([]*models.Order, int, error)
	SetPaymentReference(ctx context.Context, orderID uuid.UUID, reference string) error
	UpdateStatus(ctx context.Context, orderID uuid.UUID, status models.OrderStatus) (*models.Order, error)
	BulkUpdateStatus(ctx context.Context, ids []uuid.UUID, status models.OrderStatus) ([]*models.Order, error)
	UpdatePaymentStatus(ctx context.Context, orderID uuid.UUID, status models.PaymentStatus, allowedFrom ...models.PaymentStatus) (*models.Order, error)
	UpdateTracking(ctx context.Context, orderID uuid.UUID, trackingNumber, carrier string) (*models.Order, error)
	UpdateNotes(ctx context.Context, orderID uuid.UUID, notes string) (*models.Order, error)
}

type productStore interface {
	catalog.ProductReader
	GetBySlug(ctx context.Context, slug string) (*models.Product, error)
	ListActive(ctx context.Context, filter db.ProductFilter) ([]*models.Product, error)
}

type cartStore interface {
	List(ctx context.Context, ownerID uuid.UUID) ([]models.CartItem, error)
	Upsert(ctx context.Context, ownerID, productID uuid.UUID, variantID *uuid.UUID, quantity int) (*models.CartItem, error)
	Remove(ctx context.Context, ownerID, itemID uuid.UUID) error
	Clear(ctx context.Context, ownerID uuid.UUID) error
}

type eventStore interface {
	GetByID(ctx context.Context, eventID uuid.UUID) (*models.Event, error)
	Register(ctx context.Context, eventID uuid.UUID, attendees []models.EventAttendee) error
	ListAttendees(ctx context.Context, eventID uuid.UUID) ([]models.EventAttendee, error)
	CheckIn(ctx context.Context, ticketCode string) (*models.EventAttendee, error)
}

type surgeStore interface {
	UpdateSurge(ctx context.Context, rateID uuid.UUID, multiplier decimal.Decimal, active bool) (*models.ShippingRate, error)
}

type linePricer interface {
	PriceLine(ctx context.Context, line models.CartLine) (catalog.PricedLine, error)
	PriceLines(ctx context.Context, lines []models.CartLine) (*catalog.Quote, error)
}

type shippingQuoter interface {
	Quote(ctx context.Context, req shipping.Request) (models.ShippingQuote, bool, error)
	Fallback(subtotal decimal.Decimal) models.ShippingQuote
}

type paymentGateway interface {
	CreateCheckoutSession(ctx context.Context, params stripe.CheckoutParams) (*stripe.Session, error)
	RetrieveSession(ctx context.Context, sessionID string) (*stripe.Session, error)
}

// tableInvalidator drops a cached rate table snapshot.
type tableInvalidator interface {
	Invalidate()
}
