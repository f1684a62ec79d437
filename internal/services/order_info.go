package services

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/ankarahouse/storefront/internal/email"
	"github.com/ankarahouse/storefront/internal/models"
	"github.com/ankarahouse/storefront/internal/shipping"
)

// StoreInfo identifies the storefront in customer-facing messages.
type StoreInfo struct {
	Name     string
	URL      string
	Currency string
}

// OrderInfoOverrides provides optional overrides when building order email data.
type OrderInfoOverrides struct {
	DeliveryTime string
	OrderDate    time.Time
}

// BuildOrderInfo builds a consistent OrderInfo payload for email templates.
func BuildOrderInfo(store StoreInfo, order *models.Order, overrides OrderInfoOverrides) *email.OrderInfo {
	info := &email.OrderInfo{
		StoreName:    store.Name,
		StoreURL:     store.URL,
		DeliveryTime: overrides.DeliveryTime,
	}
	if order == nil {
		return info
	}

	money := func(d decimal.Decimal) string {
		return email.FormatMoney(d, store.Currency)
	}

	orderDate := overrides.OrderDate
	if orderDate.IsZero() {
		orderDate = order.CreatedAt
	}
	if orderDate.IsZero() {
		orderDate = time.Now()
	}

	info.OrderNumber = order.OrderNumber
	info.OrderURL = fmt.Sprintf("%s/orders/%s", strings.TrimRight(store.URL, "/"), order.ID)
	info.CustomerName = order.ShippingAddress.FullName()
	info.CustomerEmail = order.Email
	info.ShippingAddress = formatAddress(order.ShippingAddress)
	info.ShippingMethod = order.ShippingMethod
	info.TrackingNumber = order.TrackingNumber
	info.TrackingCarrier = shipping.CarrierDisplayName(order.Carrier)
	info.TrackingURL = shipping.TrackingURL(order.Carrier, order.TrackingNumber)
	info.OrderDate = orderDate.Format("January 2, 2006")
	info.Subtotal = money(order.Subtotal)
	info.Shipping = money(order.ShippingAmount)
	info.Tax = money(order.TaxAmount)
	info.Discount = money(order.DiscountAmount)
	info.Total = money(order.TotalAmount)

	for _, item := range order.Items {
		info.Items = append(info.Items, email.OrderItem{
			Name:       item.ProductName,
			Variant:    item.VariantName,
			SKU:        item.SKU,
			Quantity:   item.Quantity,
			UnitPrice:  money(item.Price),
			TotalPrice: money(item.Total),
		})
	}

	return info
}

// BuildTicketInfo lists every ticket from one registration in a single message.
func BuildTicketInfo(store StoreInfo, event *models.Event, attendees []models.EventAttendee) *email.TicketInfo {
	info := &email.TicketInfo{
		StoreName: store.Name,
		StoreURL:  store.URL,
	}
	if event != nil {
		info.EventTitle = event.Title
		info.Venue = event.Venue
		info.StartsAt = event.StartsAt.Format("Monday, January 2, 2006 at 3:04 PM")
		amount := event.Price.Mul(decimal.NewFromInt(int64(len(attendees))))
		info.Amount = email.FormatMoney(amount, store.Currency)
	}
	if len(attendees) > 0 {
		first := attendees[0]
		info.AttendeeName = strings.TrimSpace(first.FirstName + " " + first.LastName)
		info.AttendeeEmail = first.Email
	}
	for _, attendee := range attendees {
		info.TicketCodes = append(info.TicketCodes, attendee.TicketCode)
	}
	return info
}

func formatAddress(address models.Address) string {
	var lines []string
	add := func(value string) {
		if value = strings.TrimSpace(value); value != "" {
			lines = append(lines, value)
		}
	}

	add(address.FullName())
	add(address.Line1)
	add(address.Line2)

	cityLine := strings.TrimSpace(address.City)
	if state := strings.TrimSpace(address.State); state != "" {
		if cityLine != "" {
			cityLine += ", "
		}
		cityLine += state
	}
	if postal := strings.TrimSpace(address.PostalCode); postal != "" {
		cityLine = strings.TrimSpace(cityLine + " " + postal)
	}
	add(cityLine)
	add(address.Country)
	add(address.Phone)

	return strings.Join(lines, "\n")
}
