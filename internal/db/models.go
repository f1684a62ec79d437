package db

import "github.com/ankarahouse/storefront/internal/models"

type Order = models.Order
type OrderItem = models.OrderItem
type OrderStatus = models.OrderStatus
type PaymentStatus = models.PaymentStatus
type Product = models.Product
type Variant = models.Variant
type CartItem = models.CartItem
type Event = models.Event
type EventAttendee = models.EventAttendee

var (
	ErrNotFound                = models.ErrNotFound
	ErrInvalidStatusTransition = models.ErrInvalidStatusTransition
)
