package models

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

type OrderStatus string

const (
	StatusPending    OrderStatus = "pending"
	StatusConfirmed  OrderStatus = "confirmed"
	StatusProcessing OrderStatus = "processing"
	StatusShipped    OrderStatus = "shipped"
	StatusDelivered  OrderStatus = "delivered"
	StatusCancelled  OrderStatus = "cancelled"
)

var orderStatuses = []OrderStatus{
	StatusPending,
	StatusConfirmed,
	StatusProcessing,
	StatusShipped,
	StatusDelivered,
	StatusCancelled,
}

type PaymentStatus string

const (
	PaymentPending  PaymentStatus = "pending"
	PaymentPaid     PaymentStatus = "paid"
	PaymentFailed   PaymentStatus = "failed"
	PaymentRefunded PaymentStatus = "refunded"
)

var paymentStatuses = []PaymentStatus{
	PaymentPending,
	PaymentPaid,
	PaymentFailed,
	PaymentRefunded,
}

var (
	ErrInvalidStatusTransition = errors.New("invalid order status transition")
	ErrUnknownStatus           = errors.New("unknown status")
)

func OrderStatuses() []OrderStatus {
	out := make([]OrderStatus, len(orderStatuses))
	copy(out, orderStatuses)
	return out
}

func ParseOrderStatus(value string) (OrderStatus, error) {
	status := OrderStatus(strings.ToLower(strings.TrimSpace(value)))
	if !status.Valid() {
		return "", fmt.Errorf("%w: order status %q", ErrUnknownStatus, value)
	}
	return status, nil
}

func (s OrderStatus) Valid() bool {
	for _, known := range orderStatuses {
		if s == known {
			return true
		}
	}
	return false
}

func ParsePaymentStatus(value string) (PaymentStatus, error) {
	status := PaymentStatus(strings.ToLower(strings.TrimSpace(value)))
	if !status.Valid() {
		return "", fmt.Errorf("%w: payment status %q", ErrUnknownStatus, value)
	}
	return status, nil
}

func (s PaymentStatus) Valid() bool {
	for _, known := range paymentStatuses {
		if s == known {
			return true
		}
	}
	return false
}

// TransitionTo moves the order to next and stamps lifecycle timestamps.
//
// Admins may move an order forward, backward or re-apply the current status.
// The only rejected move is cancelling an order that has already been
// delivered. shipped_at and delivered_at are set the first time the order
// enters those states and are never overwritten.
func (o *Order) TransitionTo(next OrderStatus, now time.Time) error {
	if !next.Valid() {
		return fmt.Errorf("%w: order status %q", ErrUnknownStatus, next)
	}
	if next == StatusCancelled && o.Status == StatusDelivered {
		return fmt.Errorf("%w: delivered orders cannot be cancelled", ErrInvalidStatusTransition)
	}

	now = now.UTC()
	switch next {
	case StatusShipped:
		if o.ShippedAt == nil {
			o.ShippedAt = &now
		}
	case StatusDelivered:
		if o.DeliveredAt == nil {
			o.DeliveredAt = &now
		}
	}

	o.Status = next
	o.UpdatedAt = now
	return nil
}

// SetPaymentStatus applies a payment-axis change. refunded is terminal.
func (o *Order) SetPaymentStatus(next PaymentStatus, now time.Time) error {
	if !next.Valid() {
		return fmt.Errorf("%w: payment status %q", ErrUnknownStatus, next)
	}
	if o.PaymentStatus == PaymentRefunded && next != PaymentRefunded {
		return fmt.Errorf("%w: refunded payments cannot change", ErrInvalidStatusTransition)
	}
	o.PaymentStatus = next
	o.UpdatedAt = now.UTC()
	return nil
}
