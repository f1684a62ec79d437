package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Address is the postal snapshot stored on an order. It is copied at checkout
// and never follows later edits to the customer's saved addresses.
type Address struct {
	FirstName  string `json:"first_name" validate:"required"`
	LastName   string `json:"last_name" validate:"required"`
	Email      string `json:"email,omitempty" validate:"omitempty,email"`
	Phone      string `json:"phone" validate:"required"`
	Line1      string `json:"address_line_1" validate:"required"`
	Line2      string `json:"address_line_2,omitempty"`
	City       string `json:"city" validate:"required"`
	State      string `json:"state" validate:"required"`
	PostalCode string `json:"postal_code,omitempty"`
	Country    string `json:"country" validate:"required"`
}

func (a Address) FullName() string {
	if a.LastName == "" {
		return a.FirstName
	}
	return a.FirstName + " " + a.LastName
}

type Order struct {
	ID               uuid.UUID       `json:"id"`
	OrderNumber      string          `json:"order_number"`
	OwnerID          *uuid.UUID      `json:"owner_id"`
	Email            string          `json:"email"`
	Subtotal         decimal.Decimal `json:"subtotal"`
	TaxAmount        decimal.Decimal `json:"tax_amount"`
	ShippingAmount   decimal.Decimal `json:"shipping_amount"`
	DiscountAmount   decimal.Decimal `json:"discount_amount"`
	TotalAmount      decimal.Decimal `json:"total_amount"`
	ShippingAddress  Address         `json:"shipping_address"`
	BillingAddress   Address         `json:"billing_address"`
	ShippingZone     string          `json:"shipping_zone,omitempty"`
	ShippingMethod   string          `json:"shipping_method,omitempty"`
	Status           OrderStatus     `json:"status"`
	PaymentStatus    PaymentStatus   `json:"payment_status"`
	PaymentReference string          `json:"payment_reference,omitempty"`
	TrackingNumber   string          `json:"tracking_number,omitempty"`
	Carrier          string          `json:"carrier,omitempty"`
	Notes            string          `json:"notes,omitempty"`
	ShippedAt        *time.Time      `json:"shipped_at"`
	DeliveredAt      *time.Time      `json:"delivered_at"`
	CreatedAt        time.Time       `json:"created_at"`
	UpdatedAt        time.Time       `json:"updated_at"`
	Items            []OrderItem     `json:"items,omitempty"`
}

// OrderItem is an immutable line snapshot taken when the order is placed.
type OrderItem struct {
	ID          uuid.UUID       `json:"id"`
	OrderID     uuid.UUID       `json:"order_id"`
	ProductID   uuid.UUID       `json:"product_id"`
	VariantID   *uuid.UUID      `json:"variant_id"`
	ProductName string          `json:"product_name"`
	VariantName string          `json:"variant_name,omitempty"`
	SKU         string          `json:"sku,omitempty"`
	Price       decimal.Decimal `json:"price"`
	Quantity    int             `json:"quantity"`
	Total       decimal.Decimal `json:"total"`
}

// OrderTotals groups the money fields whose relation is fixed:
// total = subtotal + shipping + tax - discount.
type OrderTotals struct {
	Subtotal decimal.Decimal
	Shipping decimal.Decimal
	Tax      decimal.Decimal
	Discount decimal.Decimal
}

func (t OrderTotals) Total() decimal.Decimal {
	return t.Subtotal.Add(t.Shipping).Add(t.Tax).Sub(t.Discount)
}

// ApplyTotals copies the rounded totals onto the order and derives
// total_amount from the rounded components so the stored columns always add up.
func (o *Order) ApplyTotals(t OrderTotals) {
	rounded := OrderTotals{
		Subtotal: RoundMoney(t.Subtotal),
		Shipping: RoundMoney(t.Shipping),
		Tax:      RoundMoney(t.Tax),
		Discount: RoundMoney(t.Discount),
	}
	o.Subtotal = rounded.Subtotal
	o.ShippingAmount = rounded.Shipping
	o.TaxAmount = rounded.Tax
	o.DiscountAmount = rounded.Discount
	o.TotalAmount = rounded.Total()
}

func (o *Order) Totals() OrderTotals {
	return OrderTotals{
		Subtotal: o.Subtotal,
		Shipping: o.ShippingAmount,
		Tax:      o.TaxAmount,
		Discount: o.DiscountAmount,
	}
}

func (o *Order) OwnedBy(ownerID uuid.UUID) bool {
	return o.OwnerID != nil && *o.OwnerID == ownerID
}
