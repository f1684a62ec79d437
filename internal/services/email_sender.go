package services

import (
	"context"
	"fmt"

	"github.com/ankarahouse/storefront/internal/email"
	"github.com/ankarahouse/storefront/internal/models"
)

type OrderEmailSender interface {
	SendOrderConfirmation(ctx context.Context, order *models.Order, quote models.ShippingQuote) error
	SendOrderShipped(ctx context.Context, order *models.Order) error
	SendOrderDelivered(ctx context.Context, order *models.Order) error
	SendEventTicket(ctx context.Context, event *models.Event, attendees []models.EventAttendee) error
}

type MailOrderEmailSender struct {
	mailer *email.Mailer
	store  StoreInfo
}

func NewMailOrderEmailSender(mailer *email.Mailer, store StoreInfo) *MailOrderEmailSender {
	return &MailOrderEmailSender{
		mailer: mailer,
		store:  store,
	}
}

func (s *MailOrderEmailSender) SendOrderConfirmation(ctx context.Context, order *models.Order, quote models.ShippingQuote) error {
	if err := s.ready(); err != nil {
		return err
	}
	orderInfo := BuildOrderInfo(s.store, order, OrderInfoOverrides{DeliveryTime: quote.DeliveryTime})
	return s.mailer.SendOrderConfirmation(ctx, orderInfo)
}

func (s *MailOrderEmailSender) SendOrderShipped(ctx context.Context, order *models.Order) error {
	if err := s.ready(); err != nil {
		return err
	}
	return s.mailer.SendOrderShipped(ctx, BuildOrderInfo(s.store, order, OrderInfoOverrides{}))
}

func (s *MailOrderEmailSender) SendOrderDelivered(ctx context.Context, order *models.Order) error {
	if err := s.ready(); err != nil {
		return err
	}
	return s.mailer.SendOrderDelivered(ctx, BuildOrderInfo(s.store, order, OrderInfoOverrides{}))
}

func (s *MailOrderEmailSender) SendEventTicket(ctx context.Context, event *models.Event, attendees []models.EventAttendee) error {
	if err := s.ready(); err != nil {
		return err
	}
	return s.mailer.SendEventTicket(ctx, BuildTicketInfo(s.store, event, attendees))
}

func (s *MailOrderEmailSender) ready() error {
	if s == nil || s.mailer == nil {
		return fmt.Errorf("mailer is not configured")
	}
	return nil
}

type noopOrderEmailSender struct{}

func (noopOrderEmailSender) SendOrderConfirmation(context.Context, *models.Order, models.ShippingQuote) error {
	return nil
}

func (noopOrderEmailSender) SendOrderShipped(context.Context, *models.Order) error {
	return nil
}

func (noopOrderEmailSender) SendOrderDelivered(context.Context, *models.Order) error {
	return nil
}

func (noopOrderEmailSender) SendEventTicket(context.Context, *models.Event, []models.EventAttendee) error {
	return nil
}
