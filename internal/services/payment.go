package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/getsentry/sentry-go"
	"github.com/getsentry/sentry-go/attribute"
	"github.com/google/uuid"

	"github.com/ankarahouse/storefront/internal/events"
	"github.com/ankarahouse/storefront/internal/logging"
	"github.com/ankarahouse/storefront/internal/models"
	"github.com/ankarahouse/storefront/internal/observability"
	"github.com/ankarahouse/storefront/internal/stripe"
)

// PaymentService moves orders along the payment axis using Checkout sessions.
type PaymentService struct {
	orders    orderStore
	gateway   paymentGateway
	publisher events.Publisher
	currency  string
	logger    *slog.Logger
}

// NewPaymentService accepts a nil gateway; every call then returns
// ErrPaymentsDisabled.
func NewPaymentService(orders orderStore, gateway paymentGateway, publisher events.Publisher, currency string, logger *slog.Logger) *PaymentService {
	if publisher == nil {
		publisher = noopPublisher{}
	}
	return &PaymentService{
		orders:    orders,
		gateway:   gateway,
		publisher: publisher,
		currency:  strings.ToLower(currency),
		logger:    logger,
	}
}

func (s *PaymentService) loggerFromContext(ctx context.Context) *slog.Logger {
	return logging.FromContext(ctx, s.logger)
}

// Caller identifies who is asking for an order's payment.
type Caller struct {
	UserID  *uuid.UUID
	IsAdmin bool
}

type PaymentInitiation struct {
	OrderID          uuid.UUID `json:"order_id"`
	Reference        string    `json:"reference"`
	AuthorizationURL string    `json:"authorization_url"`
}

// Initiate opens a Checkout session for the order total and stores the
// session id as the order's payment reference.
func (s *PaymentService) Initiate(ctx context.Context, orderID uuid.UUID, caller Caller) (*PaymentInitiation, error) {
	span := sentry.StartSpan(
		ctx,
		"service.payment.initiate",
		sentry.WithOpName("service.payment"),
		sentry.WithDescription("Initiate"),
		sentry.WithSpanOrigin(sentry.SpanOriginManual),
	)
	defer span.Finish()
	ctx = span.Context()

	logger := s.loggerFromContext(ctx)
	meter := observability.MeterFromContext(ctx)
	recordFailed := func(reason string) {
		meter.Count("payment.initiate.failed", 1, sentry.WithAttributes(
			attribute.String("reason", reason),
		))
	}

	if s.gateway == nil {
		recordFailed("payments_disabled")
		return nil, ErrPaymentsDisabled
	}

	order, err := s.orders.GetByID(ctx, orderID)
	if err != nil {
		recordFailed("order_lookup_failed")
		return nil, orderLookupError(err)
	}
	if order.OwnerID != nil && !caller.IsAdmin && (caller.UserID == nil || *caller.UserID != *order.OwnerID) {
		recordFailed("forbidden")
		return nil, ErrForbidden
	}

	switch order.PaymentStatus {
	case models.PaymentPaid:
		recordFailed("already_paid")
		return nil, ErrAlreadyPaid
	case models.PaymentRefunded:
		recordFailed("refunded")
		return nil, UserError{Message: "This order has been refunded"}
	}
	if order.Status == models.StatusCancelled {
		recordFailed("cancelled")
		return nil, UserError{Message: "This order has been cancelled"}
	}

	amount := models.MinorUnits(order.TotalAmount)
	if amount <= 0 {
		recordFailed("zero_amount")
		return nil, UserError{Message: "This order has nothing to pay"}
	}

	session, err := s.gateway.CreateCheckoutSession(ctx, stripe.CheckoutParams{
		OrderID:       order.ID,
		OrderNumber:   order.OrderNumber,
		AmountMinor:   amount,
		CustomerEmail: order.Email,
	})
	if err != nil {
		recordFailed("gateway_failed")
		return nil, fmt.Errorf("failed to create checkout session: %w", err)
	}

	if err := s.orders.SetPaymentReference(ctx, order.ID, session.ID); err != nil {
		recordFailed("reference_store_failed")
		return nil, fmt.Errorf("failed to store payment reference: %w", err)
	}

	meter.Count("payment.initiate.created", 1)
	logger.Info("payment initiated", "order_id", order.ID, "session_id", session.ID, "amount_minor", amount)

	return &PaymentInitiation{
		OrderID:          order.ID,
		Reference:        session.ID,
		AuthorizationURL: session.URL,
	}, nil
}

// Verify asks the gateway for the session state and applies it. Sessions
// that are still open leave the order unchanged.
func (s *PaymentService) Verify(ctx context.Context, reference string) (*models.Order, error) {
	span := sentry.StartSpan(
		ctx,
		"service.payment.verify",
		sentry.WithOpName("service.payment"),
		sentry.WithDescription("Verify"),
		sentry.WithSpanOrigin(sentry.SpanOriginManual),
	)
	defer span.Finish()
	ctx = span.Context()

	if s.gateway == nil {
		return nil, ErrPaymentsDisabled
	}
	reference = strings.TrimSpace(reference)
	if reference == "" {
		return nil, UserError{Message: "Payment reference is required"}
	}

	session, err := s.gateway.RetrieveSession(ctx, reference)
	if err != nil {
		observability.MeterFromContext(ctx).Count("payment.verify.failed", 1)
		return nil, fmt.Errorf("failed to verify payment: %w", err)
	}

	switch {
	case session.Settled():
		return s.MarkPaid(ctx, session)
	case session.Expired():
		return s.MarkFailed(ctx, session)
	default:
		return s.orderForSession(ctx, session)
	}
}

// MarkPaid records a settled session. The amount and currency must match the
// order; a replay against an already paid order is a no-op.
func (s *PaymentService) MarkPaid(ctx context.Context, session *stripe.Session) (*models.Order, error) {
	logger := s.loggerFromContext(ctx)
	meter := observability.MeterFromContext(ctx)

	order, err := s.orderForSession(ctx, session)
	if err != nil {
		return nil, err
	}
	if order.PaymentStatus == models.PaymentPaid {
		return order, nil
	}

	expected := models.MinorUnits(order.TotalAmount)
	if session.AmountMinor != expected || (session.Currency != "" && !strings.EqualFold(session.Currency, s.currency)) {
		meter.Count("payment.mark_paid.failed", 1, sentry.WithAttributes(attribute.String("reason", "amount_mismatch")))
		logger.Error("payment amount does not match order",
			"order_id", order.ID,
			"session_id", session.ID,
			"expected_minor", expected,
			"received_minor", session.AmountMinor,
			"currency", session.Currency)
		return nil, ErrPaymentMismatch
	}

	updated, err := s.orders.UpdatePaymentStatus(ctx, order.ID, models.PaymentPaid, models.PaymentPending, models.PaymentFailed)
	if err != nil {
		if errors.Is(err, models.ErrInvalidStatusTransition) {
			logger.Info("ignoring paid session due to payment state", "order_id", order.ID, "session_id", session.ID, "error", err)
			return order, nil
		}
		return nil, orderLookupError(err)
	}

	meter.Count("payment.mark_paid.succeeded", 1)
	logger.Info("order paid", "order_id", updated.ID, "session_id", session.ID)
	publishEvents(ctx, s.publisher, logger, paymentUpdatedEnvelope(updated, logger)...)
	return updated, nil
}

// MarkFailed records an expired or failed session. Only pending payments move.
func (s *PaymentService) MarkFailed(ctx context.Context, session *stripe.Session) (*models.Order, error) {
	logger := s.loggerFromContext(ctx)

	order, err := s.orderForSession(ctx, session)
	if err != nil {
		return nil, err
	}
	if order.PaymentStatus != models.PaymentPending {
		return order, nil
	}

	updated, err := s.orders.UpdatePaymentStatus(ctx, order.ID, models.PaymentFailed, models.PaymentPending)
	if err != nil {
		if errors.Is(err, models.ErrInvalidStatusTransition) {
			logger.Info("ignoring failed session due to payment state", "order_id", order.ID, "session_id", session.ID)
			return order, nil
		}
		return nil, orderLookupError(err)
	}

	observability.MeterFromContext(ctx).Count("payment.mark_failed", 1)
	logger.Info("order payment failed", "order_id", updated.ID, "session_id", session.ID)
	publishEvents(ctx, s.publisher, logger, paymentUpdatedEnvelope(updated, logger)...)
	return updated, nil
}

func (s *PaymentService) orderForSession(ctx context.Context, session *stripe.Session) (*models.Order, error) {
	if session == nil || session.ID == "" {
		return nil, fmt.Errorf("checkout session is required")
	}

	order, err := s.orders.GetByPaymentReference(ctx, session.ID)
	if err == nil {
		return order, nil
	}
	if !errors.Is(err, models.ErrNotFound) {
		return nil, fmt.Errorf("failed to load order for session: %w", err)
	}
	if session.OrderID == uuid.Nil {
		return nil, ErrOrderNotFound
	}

	order, err = s.orders.GetByID(ctx, session.OrderID)
	if err != nil {
		return nil, orderLookupError(err)
	}
	if order.PaymentReference != "" && order.PaymentReference != session.ID {
		return nil, fmt.Errorf("%w: session %s is not the order's current session", ErrPaymentMismatch, session.ID)
	}
	return order, nil
}
