package handlers

import (
	"context"

	"github.com/google/uuid"

	"github.com/ankarahouse/storefront/internal/db"
	"github.com/ankarahouse/storefront/internal/models"
	"github.com/ankarahouse/storefront/internal/services"
	"github.com/ankarahouse/storefront/internal/stripe"
)

type stubFulfillment struct {
	orders     map[uuid.UUID]*models.Order
	lastFilter db.OrderFilter
}

func (s *stubFulfillment) ListOrders(_ context.Context, filter db.OrderFilter) ([]*models.Order, int, error) {
	s.lastFilter = filter
	out := make([]*models.Order, 0, len(s.orders))
	for _, order := range s.orders {
		out = append(out, order)
	}
	return out, len(out), nil
}

func (s *stubFulfillment) GetOrder(_ context.Context, orderID uuid.UUID) (*models.Order, error) {
	order, ok := s.orders[orderID]
	if !ok {
		return nil, services.ErrOrderNotFound
	}
	return order, nil
}

func (s *stubFulfillment) UpdateStatus(ctx context.Context, orderID uuid.UUID, status models.OrderStatus) (*models.Order, error) {
	order, err := s.GetOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	order.Status = status
	return order, nil
}

func (s *stubFulfillment) BulkUpdateStatus(ctx context.Context, ids []uuid.UUID, status models.OrderStatus) ([]*models.Order, error) {
	out := make([]*models.Order, 0, len(ids))
	for _, id := range ids {
		order, err := s.UpdateStatus(ctx, id, status)
		if err != nil {
			return nil, err
		}
		out = append(out, order)
	}
	return out, nil
}

func (s *stubFulfillment) UpdateTracking(ctx context.Context, orderID uuid.UUID, trackingNumber, carrier string) (*services.TrackingUpdate, error) {
	order, err := s.GetOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	order.TrackingNumber = trackingNumber
	order.Carrier = carrier
	return &services.TrackingUpdate{Order: order}, nil
}

func (s *stubFulfillment) UpdateNotes(ctx context.Context, orderID uuid.UUID, notes string) (*models.Order, error) {
	order, err := s.GetOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	order.Notes = notes
	return order, nil
}

func (s *stubFulfillment) Refund(ctx context.Context, orderID uuid.UUID) (*models.Order, error) {
	order, err := s.GetOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	order.PaymentStatus = models.PaymentRefunded
	return order, nil
}

type stubCheckout struct {
	input services.CreateOrderInput
}

func (s *stubCheckout) CreateOrder(_ context.Context, input services.CreateOrderInput) (*services.CheckoutResult, error) {
	s.input = input
	return &services.CheckoutResult{
		Order: &models.Order{
			ID:          uuid.New(),
			OrderNumber: "AH-1741946400000-ABCDEF",
			OwnerID:     input.OwnerID,
			Email:       input.Email,
			Status:      models.StatusPending,
		},
	}, nil
}

type stubSettler struct {
	paid   []*stripe.Session
	failed []*stripe.Session
	err    error
}

func (s *stubSettler) MarkPaid(_ context.Context, session *stripe.Session) (*models.Order, error) {
	if s.err != nil {
		return nil, s.err
	}
	s.paid = append(s.paid, session)
	return &models.Order{ID: session.OrderID, PaymentStatus: models.PaymentPaid}, nil
}

func (s *stubSettler) MarkFailed(_ context.Context, session *stripe.Session) (*models.Order, error) {
	if s.err != nil {
		return nil, s.err
	}
	s.failed = append(s.failed, session)
	return &models.Order{ID: session.OrderID, PaymentStatus: models.PaymentFailed}, nil
}
