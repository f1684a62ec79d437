package services

import (
	"context"
	"log/slog"

	"github.com/getsentry/sentry-go"
	"github.com/getsentry/sentry-go/attribute"

	"github.com/ankarahouse/storefront/internal/events"
	"github.com/ankarahouse/storefront/internal/models"
	"github.com/ankarahouse/storefront/internal/observability"
)

type noopPublisher struct{}

func (noopPublisher) Publish(context.Context, ...events.Envelope) error { return nil }
func (noopPublisher) Close() error                                      { return nil }

type orderStatusChanged struct {
	OrderID     string             `json:"order_id"`
	OrderNumber string             `json:"order_number"`
	Status      models.OrderStatus `json:"status"`
}

type orderPaymentUpdated struct {
	OrderID       string               `json:"order_id"`
	OrderNumber   string               `json:"order_number"`
	PaymentStatus models.PaymentStatus `json:"payment_status"`
	Reference     string               `json:"reference,omitempty"`
}

// publishEvents is best effort: the database write already happened, so a
// broker failure is logged and counted but never returned.
func publishEvents(ctx context.Context, publisher events.Publisher, logger *slog.Logger, envelopes ...events.Envelope) {
	if len(envelopes) == 0 {
		return
	}
	if err := publisher.Publish(ctx, envelopes...); err != nil {
		observability.MeterFromContext(ctx).Count("events.publish.side_effect_failed", 1, sentry.WithAttributes(
			attribute.String("type", envelopes[0].Type),
		))
		logger.Error("failed to publish domain events", "error", err, "type", envelopes[0].Type, "count", len(envelopes))
	}
}

func statusChangedEnvelopes(orders []*models.Order, logger *slog.Logger) []events.Envelope {
	envelopes := make([]events.Envelope, 0, len(orders))
	for _, order := range orders {
		envelope, err := events.NewEnvelope(events.OrderStatusChanged, order.ID.String(), orderStatusChanged{
			OrderID:     order.ID.String(),
			OrderNumber: order.OrderNumber,
			Status:      order.Status,
		})
		if err != nil {
			logger.Error("failed to build status event", "error", err, "order_id", order.ID)
			continue
		}
		envelopes = append(envelopes, envelope)
	}
	return envelopes
}

func paymentUpdatedEnvelope(order *models.Order, logger *slog.Logger) []events.Envelope {
	envelope, err := events.NewEnvelope(events.OrderPaymentUpdated, order.ID.String(), orderPaymentUpdated{
		OrderID:       order.ID.String(),
		OrderNumber:   order.OrderNumber,
		PaymentStatus: order.PaymentStatus,
		Reference:     order.PaymentReference,
	})
	if err != nil {
		logger.Error("failed to build payment event", "error", err, "order_id", order.ID)
		return nil
	}
	return []events.Envelope{envelope}
}
