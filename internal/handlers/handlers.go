package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/ankarahouse/storefront/internal/auth"
	"github.com/ankarahouse/storefront/internal/cache"
	"github.com/ankarahouse/storefront/internal/config"
	"github.com/ankarahouse/storefront/internal/db"
	"github.com/ankarahouse/storefront/internal/logging"
	"github.com/ankarahouse/storefront/internal/models"
	"github.com/ankarahouse/storefront/internal/services"
	"github.com/ankarahouse/storefront/internal/shipping"
	"github.com/ankarahouse/storefront/internal/stripe"
)

const maxWebhookBodyBytes = 1 << 20 // 1 MB

type checkoutService interface {
	CreateOrder(ctx context.Context, input services.CreateOrderInput) (*services.CheckoutResult, error)
}

type shippingService interface {
	Quote(ctx context.Context, req shipping.Request) (*services.QuoteResult, error)
	UpdateSurge(ctx context.Context, rateID uuid.UUID, multiplier decimal.Decimal, active bool) (*models.ShippingRate, error)
}

type fulfillmentService interface {
	ListOrders(ctx context.Context, filter db.OrderFilter) ([]*models.Order, int, error)
	GetOrder(ctx context.Context, orderID uuid.UUID) (*models.Order, error)
	UpdateStatus(ctx context.Context, orderID uuid.UUID, status models.OrderStatus) (*models.Order, error)
	BulkUpdateStatus(ctx context.Context, ids []uuid.UUID, status models.OrderStatus) ([]*models.Order, error)
	UpdateTracking(ctx context.Context, orderID uuid.UUID, trackingNumber, carrier string) (*services.TrackingUpdate, error)
	UpdateNotes(ctx context.Context, orderID uuid.UUID, notes string) (*models.Order, error)
	Refund(ctx context.Context, orderID uuid.UUID) (*models.Order, error)
}

type paymentService interface {
	Initiate(ctx context.Context, orderID uuid.UUID, caller services.Caller) (*services.PaymentInitiation, error)
	Verify(ctx context.Context, reference string) (*models.Order, error)
	MarkPaid(ctx context.Context, session *stripe.Session) (*models.Order, error)
	MarkFailed(ctx context.Context, session *stripe.Session) (*models.Order, error)
}

type eventService interface {
	Register(ctx context.Context, input services.RegisterInput) (*services.Registration, error)
	ListAttendees(ctx context.Context, eventID uuid.UUID) ([]models.EventAttendee, error)
	CheckIn(ctx context.Context, ticketCode string) (*models.EventAttendee, error)
}

type catalogService interface {
	ListProducts(ctx context.Context, filter db.ProductFilter) ([]*models.Product, error)
	GetProduct(ctx context.Context, slug string) (*models.Product, error)
}

type cartService interface {
	Get(ctx context.Context, ownerID uuid.UUID) (*services.Cart, error)
	SetItem(ctx context.Context, ownerID uuid.UUID, line models.CartLine) (*models.CartItem, error)
	RemoveItem(ctx context.Context, ownerID, itemID uuid.UUID) error
}

type pinger interface {
	Ping(ctx context.Context) error
}

// Handlers provides the storefront and back-office JSON endpoints.
type Handlers struct {
	config        *config.Config
	db            pinger
	cacheProvider cache.Provider
	verifier      *auth.Verifier
	stripeRouter  *StripeEventRouter
	checkout      checkoutService
	shipping      shippingService
	fulfillment   fulfillmentService
	payments      paymentService
	events        eventService
	catalog       catalogService
	carts         cartService
	logger        *slog.Logger
}

type Dependencies struct {
	Config             *config.Config
	DB                 pinger
	CacheProvider      cache.Provider
	Verifier           *auth.Verifier
	StripeRouter       *StripeEventRouter
	CheckoutService    *services.CheckoutService
	ShippingService    *services.ShippingService
	FulfillmentService *services.FulfillmentService
	PaymentService     *services.PaymentService
	EventService       *services.EventService
	CatalogService     *services.CatalogService
	CartService        *services.CartService
	Logger             *slog.Logger
}

func New(deps Dependencies) (*Handlers, error) {
	logger := deps.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	if deps.Config == nil {
		return nil, fmt.Errorf("handlers dependencies: config is required")
	}
	if deps.DB == nil {
		return nil, fmt.Errorf("handlers dependencies: db is required")
	}
	if deps.CacheProvider == nil {
		return nil, fmt.Errorf("handlers dependencies: cacheProvider is required")
	}
	if deps.Verifier == nil {
		return nil, fmt.Errorf("handlers dependencies: verifier is required")
	}
	if deps.StripeRouter == nil {
		return nil, fmt.Errorf("handlers dependencies: stripeRouter is required")
	}
	if deps.CheckoutService == nil {
		return nil, fmt.Errorf("handlers dependencies: checkoutService is required")
	}
	if deps.ShippingService == nil {
		return nil, fmt.Errorf("handlers dependencies: shippingService is required")
	}
	if deps.FulfillmentService == nil {
		return nil, fmt.Errorf("handlers dependencies: fulfillmentService is required")
	}
	if deps.PaymentService == nil {
		return nil, fmt.Errorf("handlers dependencies: paymentService is required")
	}
	if deps.EventService == nil {
		return nil, fmt.Errorf("handlers dependencies: eventService is required")
	}
	if deps.CatalogService == nil {
		return nil, fmt.Errorf("handlers dependencies: catalogService is required")
	}
	if deps.CartService == nil {
		return nil, fmt.Errorf("handlers dependencies: cartService is required")
	}

	return &Handlers{
		config:        deps.Config,
		db:            deps.DB,
		cacheProvider: deps.CacheProvider,
		verifier:      deps.Verifier,
		stripeRouter:  deps.StripeRouter,
		checkout:      deps.CheckoutService,
		shipping:      deps.ShippingService,
		fulfillment:   deps.FulfillmentService,
		payments:      deps.PaymentService,
		events:        deps.EventService,
		catalog:       deps.CatalogService,
		carts:         deps.CartService,
		logger:        logger.With("component", "handlers"),
	}, nil
}

func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := h.loggerFromContext(ctx)

	// Test database connection
	if err := h.db.Ping(ctx); err != nil {
		logger.Error("database health check failed", "error", err)
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unhealthy"})
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(map[string]string{
		"status": "healthy",
	}); err != nil {
		logger.Error("failed to encode health response", "error", err)
	}
}

// OptionalAuth attaches the caller when a bearer token is present.
func (h *Handlers) OptionalAuth(next http.Handler) http.Handler {
	return h.verifier.Optional(next)
}

func (h *Handlers) RequireAuth(next http.Handler) http.Handler {
	return h.verifier.RequireUser(next)
}

func (h *Handlers) RequireAdmin(next http.Handler) http.Handler {
	return h.verifier.RequireAdmin(next)
}

// NotFound answers unknown routes with the JSON error shape.
func (h *Handlers) NotFound(w http.ResponseWriter, _ *http.Request) {
	writeError(w, http.StatusNotFound, "Not Found")
}

func (h *Handlers) loggerFromContext(ctx context.Context) *slog.Logger {
	return logging.FromContext(ctx, h.logger)
}
