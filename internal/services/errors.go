package services

import (
	"errors"

	"github.com/ankarahouse/storefront/internal/models"
)

// UserError carries a message that is safe to show to the caller.
type UserError struct {
	Message string
}

func (e UserError) Error() string {
	return e.Message
}

var (
	ErrOrderNotFound    = errors.New("order not found")
	ErrProductNotFound  = errors.New("product not found")
	ErrCartItemNotFound = errors.New("cart item not found")
	ErrEventNotFound    = errors.New("event not found")
	ErrRateNotFound     = errors.New("shipping rate not found")

	ErrAuthRequired       = errors.New("sign in to continue")
	ErrForbidden          = errors.New("not allowed to access this resource")
	ErrNoPurchasableItems = errors.New("no purchasable items in cart")

	ErrEventInactive        = errors.New("event is not open for registration")
	ErrEventEnded           = errors.New("event has ended")
	ErrInsufficientCapacity = errors.New("not enough seats remaining")

	ErrPaymentsDisabled = errors.New("payments are not configured")
	ErrAlreadyPaid      = errors.New("order is already paid")
	ErrPaymentMismatch  = errors.New("payment does not match order")

	ErrInvalidTransition = models.ErrInvalidStatusTransition
)
