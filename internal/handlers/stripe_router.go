package handlers

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/getsentry/sentry-go"
	"github.com/getsentry/sentry-go/attribute"
	stripeapi "github.com/stripe/stripe-go/v84"

	"github.com/ankarahouse/storefront/internal/logging"
	"github.com/ankarahouse/storefront/internal/models"
	"github.com/ankarahouse/storefront/internal/observability"
	"github.com/ankarahouse/storefront/internal/services"
	"github.com/ankarahouse/storefront/internal/stripe"
)

type sessionSettler interface {
	MarkPaid(ctx context.Context, session *stripe.Session) (*models.Order, error)
	MarkFailed(ctx context.Context, session *stripe.Session) (*models.Order, error)
}

// StripeEventRouter applies Checkout session events to orders.
type StripeEventRouter struct {
	payments sessionSettler
	logger   *slog.Logger
}

func NewStripeEventRouter(payments *services.PaymentService, logger *slog.Logger) *StripeEventRouter {
	return &StripeEventRouter{
		payments: payments,
		logger:   logger,
	}
}

// Handle returns an error only when the event should be retried. Events for
// unknown orders or with mismatched amounts are logged and acknowledged.
func (r *StripeEventRouter) Handle(ctx context.Context, event *stripeapi.Event) error {
	span := sentry.StartSpan(
		ctx,
		"handler.stripe_router.handle",
		sentry.WithOpName("handler.stripe_router"),
		sentry.WithDescription("StripeEventRouter.Handle"),
		sentry.WithSpanOrigin(sentry.SpanOriginManual),
	)
	defer span.Finish()
	ctx = span.Context()

	meter := observability.MeterFromContext(ctx)
	meter.SetAttributes(attribute.String("webhook.provider", "stripe"))
	meter.Count("webhook.router.received", 1)
	recordFailed := func(reason string) {
		meter.Count("webhook.router.failed", 1, sentry.WithAttributes(attribute.String("reason", reason)))
	}

	if event == nil {
		recordFailed("missing_event")
		return fmt.Errorf("missing stripe event")
	}
	if event.Data == nil {
		recordFailed("missing_event_data")
		return fmt.Errorf("missing stripe event data")
	}
	meter.SetAttributes(attribute.String("webhook.event_type", string(event.Type)))

	logger := logging.FromContext(ctx, r.logger).With("event_id", event.ID, "type", event.Type)

	var settle func(context.Context, *stripe.Session) (*models.Order, error)
	switch event.Type {
	case "checkout.session.completed", "checkout.session.async_payment_succeeded":
		settle = r.payments.MarkPaid
	case "checkout.session.async_payment_failed", "checkout.session.expired":
		settle = r.payments.MarkFailed
	default:
		logger.Info("unhandled Stripe event type")
		meter.Count("webhook.router.unhandled", 1)
		span.Status = sentry.SpanStatusOK
		return nil
	}

	session, err := stripe.SessionFromEvent(event)
	if err != nil {
		recordFailed("invalid_session")
		logger.Error("failed to decode checkout session", "error", err)
		return nil
	}

	// Delayed payment methods complete the session before the money settles.
	if event.Type == "checkout.session.completed" && !session.Settled() {
		logger.Info("checkout completed without settled payment", "session_id", session.ID, "payment_status", session.PaymentStatus)
		meter.Count("webhook.router.deferred", 1)
		span.Status = sentry.SpanStatusOK
		return nil
	}

	order, err := settle(ctx, session)
	switch {
	case err == nil:
		logger.Info("checkout session applied", "session_id", session.ID, "order_id", order.ID, "payment_status", order.PaymentStatus)
	case errors.Is(err, services.ErrOrderNotFound):
		recordFailed("order_not_found")
		logger.Warn("checkout session has no matching order", "session_id", session.ID)
	case errors.Is(err, services.ErrPaymentMismatch):
		recordFailed("payment_mismatch")
		logger.Error("checkout session does not match order", "session_id", session.ID, "error", err)
	default:
		recordFailed("settle_failed")
		return err
	}

	meter.Count("webhook.router.processed", 1)
	span.Status = sentry.SpanStatusOK
	return nil
}
