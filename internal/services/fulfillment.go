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

	"github.com/ankarahouse/storefront/internal/db"
	"github.com/ankarahouse/storefront/internal/events"
	"github.com/ankarahouse/storefront/internal/logging"
	"github.com/ankarahouse/storefront/internal/models"
	"github.com/ankarahouse/storefront/internal/observability"
	"github.com/ankarahouse/storefront/internal/shipping"
)

const maxBulkOrders = 200

// FulfillmentService backs the admin order screens.
type FulfillmentService struct {
	orders      orderStore
	publisher   events.Publisher
	emailSender OrderEmailSender
	logger      *slog.Logger
}

func NewFulfillmentService(orders orderStore, publisher events.Publisher, emailSender OrderEmailSender, logger *slog.Logger) *FulfillmentService {
	if emailSender == nil {
		emailSender = noopOrderEmailSender{}
	}
	if publisher == nil {
		publisher = noopPublisher{}
	}

	return &FulfillmentService{
		orders:      orders,
		publisher:   publisher,
		emailSender: emailSender,
		logger:      logger,
	}
}

func (s *FulfillmentService) loggerFromContext(ctx context.Context) *slog.Logger {
	return logging.FromContext(ctx, s.logger)
}

func (s *FulfillmentService) ListOrders(ctx context.Context, filter db.OrderFilter) ([]*models.Order, int, error) {
	span := sentry.StartSpan(
		ctx,
		"service.fulfillment.list_orders",
		sentry.WithOpName("service.fulfillment"),
		sentry.WithDescription("ListOrders"),
		sentry.WithSpanOrigin(sentry.SpanOriginManual),
	)
	defer span.Finish()
	ctx = span.Context()

	if filter.Status != "" && !filter.Status.Valid() {
		return nil, 0, UserError{Message: fmt.Sprintf("Unknown order status %q", filter.Status)}
	}
	if filter.PaymentStatus != "" && !filter.PaymentStatus.Valid() {
		return nil, 0, UserError{Message: fmt.Sprintf("Unknown payment status %q", filter.PaymentStatus)}
	}
	if !filter.CreatedFrom.IsZero() && !filter.CreatedTo.IsZero() && filter.CreatedTo.Before(filter.CreatedFrom) {
		return nil, 0, UserError{Message: "The end date must not be before the start date"}
	}

	orders, total, err := s.orders.List(ctx, filter)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list orders: %w", err)
	}
	return orders, total, nil
}

func (s *FulfillmentService) GetOrder(ctx context.Context, orderID uuid.UUID) (*models.Order, error) {
	order, err := s.orders.GetByID(ctx, orderID)
	if err != nil {
		return nil, orderLookupError(err)
	}
	return order, nil
}

func (s *FulfillmentService) UpdateStatus(ctx context.Context, orderID uuid.UUID, status models.OrderStatus) (*models.Order, error) {
	span := sentry.StartSpan(
		ctx,
		"service.fulfillment.update_status",
		sentry.WithOpName("service.fulfillment"),
		sentry.WithDescription("UpdateStatus"),
		sentry.WithSpanOrigin(sentry.SpanOriginManual),
	)
	defer span.Finish()
	ctx = span.Context()

	logger := s.loggerFromContext(ctx)
	meter := observability.MeterFromContext(ctx)
	recordFailed := func(reason string) {
		meter.Count("fulfillment.update_status.failed", 1, sentry.WithAttributes(
			attribute.String("reason", reason),
		))
	}

	if !status.Valid() {
		recordFailed("unknown_status")
		return nil, UserError{Message: fmt.Sprintf("Unknown order status %q", status)}
	}

	order, err := s.orders.UpdateStatus(ctx, orderID, status)
	if err != nil {
		switch {
		case errors.Is(err, models.ErrNotFound):
			recordFailed("order_not_found")
			return nil, ErrOrderNotFound
		case errors.Is(err, models.ErrInvalidStatusTransition):
			recordFailed("invalid_transition")
			return nil, err
		default:
			recordFailed("update_failed")
			return nil, fmt.Errorf("failed to update order status: %w", err)
		}
	}

	logger.Info("order status updated", "order_id", order.ID, "order_number", order.OrderNumber, "status", order.Status)
	s.afterTransition(ctx, logger, []*models.Order{order})
	return order, nil
}

// BulkUpdateStatus moves every listed order to status in one transaction. If
// any id is unknown or any transition is rejected, no order changes.
func (s *FulfillmentService) BulkUpdateStatus(ctx context.Context, ids []uuid.UUID, status models.OrderStatus) ([]*models.Order, error) {
	span := sentry.StartSpan(
		ctx,
		"service.fulfillment.bulk_update_status",
		sentry.WithOpName("service.fulfillment"),
		sentry.WithDescription("BulkUpdateStatus"),
		sentry.WithSpanOrigin(sentry.SpanOriginManual),
	)
	defer span.Finish()
	ctx = span.Context()

	logger := s.loggerFromContext(ctx)
	meter := observability.MeterFromContext(ctx)
	recordFailed := func(reason string) {
		meter.Count("fulfillment.bulk_update_status.failed", 1, sentry.WithAttributes(
			attribute.String("reason", reason),
		))
	}

	if len(ids) == 0 {
		recordFailed("empty_selection")
		return nil, UserError{Message: "Select at least one order"}
	}
	if len(ids) > maxBulkOrders {
		recordFailed("too_many_orders")
		return nil, UserError{Message: fmt.Sprintf("At most %d orders can be updated at once", maxBulkOrders)}
	}
	if !status.Valid() {
		recordFailed("unknown_status")
		return nil, UserError{Message: fmt.Sprintf("Unknown order status %q", status)}
	}

	orders, err := s.orders.BulkUpdateStatus(ctx, ids, status)
	if err != nil {
		switch {
		case errors.Is(err, models.ErrNotFound):
			recordFailed("order_not_found")
			return nil, fmt.Errorf("%w: %w", ErrOrderNotFound, err)
		case errors.Is(err, models.ErrInvalidStatusTransition):
			recordFailed("invalid_transition")
			return nil, err
		default:
			recordFailed("update_failed")
			return nil, fmt.Errorf("failed to bulk update order status: %w", err)
		}
	}

	logger.Info("bulk order status updated", "count", len(orders), "status", status)
	s.afterTransition(ctx, logger, orders)
	return orders, nil
}

// afterTransition publishes status events and sends shipped/delivered mail
// to orders that entered those states in this update.
func (s *FulfillmentService) afterTransition(ctx context.Context, logger *slog.Logger, orders []*models.Order) {
	meter := observability.MeterFromContext(ctx)

	for _, order := range orders {
		observability.OrderTransitions.WithLabelValues(string(order.Status)).Inc()
	}
	publishEvents(ctx, s.publisher, logger, statusChangedEnvelopes(orders, logger)...)

	for _, order := range orders {
		var err error
		switch {
		case justEntered(order, models.StatusShipped):
			err = s.emailSender.SendOrderShipped(ctx, order)
		case justEntered(order, models.StatusDelivered):
			err = s.emailSender.SendOrderDelivered(ctx, order)
		default:
			continue
		}
		if err != nil {
			meter.Count("fulfillment.status_email.side_effect_failed", 1, sentry.WithAttributes(
				attribute.String("status", string(order.Status)),
			))
			logger.Error("failed to send status email", "error", err, "order_id", order.ID, "status", order.Status)
		}
	}
}

// justEntered reports whether the last transition stamped the lifecycle
// timestamp for status. Re-applying a status leaves the stamp untouched.
func justEntered(order *models.Order, status models.OrderStatus) bool {
	if order.Status != status {
		return false
	}
	switch status {
	case models.StatusShipped:
		return order.ShippedAt != nil && order.ShippedAt.Equal(order.UpdatedAt)
	case models.StatusDelivered:
		return order.DeliveredAt != nil && order.DeliveredAt.Equal(order.UpdatedAt)
	default:
		return false
	}
}

type TrackingUpdate struct {
	Order       *models.Order
	TrackingURL string
}

func (s *FulfillmentService) UpdateTracking(ctx context.Context, orderID uuid.UUID, trackingNumber, carrier string) (*TrackingUpdate, error) {
	logger := s.loggerFromContext(ctx)

	trackingNumber = strings.TrimSpace(trackingNumber)
	if trackingNumber == "" {
		return nil, UserError{Message: "Tracking number is required"}
	}
	carrier = shipping.CarrierDisplayName(carrier)

	order, err := s.orders.UpdateTracking(ctx, orderID, trackingNumber, carrier)
	if err != nil {
		return nil, orderLookupError(err)
	}

	logger.Info("order tracking updated", "order_id", order.ID, "carrier", carrier)
	return &TrackingUpdate{
		Order:       order,
		TrackingURL: shipping.TrackingURL(carrier, trackingNumber),
	}, nil
}

func (s *FulfillmentService) UpdateNotes(ctx context.Context, orderID uuid.UUID, notes string) (*models.Order, error) {
	order, err := s.orders.UpdateNotes(ctx, orderID, strings.TrimSpace(notes))
	if err != nil {
		return nil, orderLookupError(err)
	}
	return order, nil
}

// Refund records that the payment was returned. The gateway refund itself is
// issued from the gateway dashboard.
func (s *FulfillmentService) Refund(ctx context.Context, orderID uuid.UUID) (*models.Order, error) {
	logger := s.loggerFromContext(ctx)
	meter := observability.MeterFromContext(ctx)

	order, err := s.orders.UpdatePaymentStatus(ctx, orderID, models.PaymentRefunded)
	if err != nil {
		meter.Count("fulfillment.refund.failed", 1)
		return nil, orderLookupError(err)
	}

	meter.Count("fulfillment.refund.recorded", 1)
	logger.Info("order refunded", "order_id", order.ID, "order_number", order.OrderNumber)
	publishEvents(ctx, s.publisher, logger, paymentUpdatedEnvelope(order, logger)...)
	return order, nil
}

func orderLookupError(err error) error {
	switch {
	case errors.Is(err, models.ErrNotFound):
		return ErrOrderNotFound
	case errors.Is(err, models.ErrInvalidStatusTransition):
		return err
	default:
		return fmt.Errorf("order store: %w", err)
	}
}
