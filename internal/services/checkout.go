package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/getsentry/sentry-go/attribute"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/ankarahouse/storefront/internal/db"
	"github.com/ankarahouse/storefront/internal/events"
	"github.com/ankarahouse/storefront/internal/logging"
	"github.com/ankarahouse/storefront/internal/models"
	"github.com/ankarahouse/storefront/internal/observability"
	"github.com/ankarahouse/storefront/internal/shipping"
)

type CheckoutConfig struct {
	OrderNumberPrefix  string
	AllowGuestCheckout bool
}

type CheckoutService struct {
	orders      orderStore
	carts       cartStore
	pricer      linePricer
	shipping    shippingQuoter
	publisher   events.Publisher
	emailSender OrderEmailSender
	config      CheckoutConfig
	now         func() time.Time
	logger      *slog.Logger
}

func NewCheckoutService(orders orderStore, carts cartStore, pricer linePricer, quoter shippingQuoter, publisher events.Publisher, emailSender OrderEmailSender, config CheckoutConfig, logger *slog.Logger) *CheckoutService {
	if emailSender == nil {
		emailSender = noopOrderEmailSender{}
	}
	if publisher == nil {
		publisher = noopPublisher{}
	}

	return &CheckoutService{
		orders:      orders,
		carts:       carts,
		pricer:      pricer,
		shipping:    quoter,
		publisher:   publisher,
		emailSender: emailSender,
		config:      config,
		now:         time.Now,
		logger:      logger,
	}
}

func (s *CheckoutService) loggerFromContext(ctx context.Context) *slog.Logger {
	return logging.FromContext(ctx, s.logger)
}

type CreateOrderInput struct {
	OwnerID         *uuid.UUID
	Email           string
	Items           []models.CartLine
	ShippingAddress models.Address
	BillingAddress  *models.Address
	// MethodCode selects the delivery method to quote. Empty uses the
	// fallback rate.
	MethodCode   string
	DiscountCode string
}

type CheckoutResult struct {
	Order        *models.Order
	Shipping     models.ShippingQuote
	SkippedLines int
}

type orderCreated struct {
	OrderID     string          `json:"order_id"`
	OrderNumber string          `json:"order_number"`
	OwnerID     *uuid.UUID      `json:"owner_id,omitempty"`
	Email       string          `json:"email"`
	Total       decimal.Decimal `json:"total_amount"`
	ItemCount   int             `json:"item_count"`
}

// CreateOrder prices the requested lines from the catalog, quotes shipping,
// and stores a pending order with its items. Lines whose product is gone or
// inactive are dropped; if nothing is left ErrNoPurchasableItems is returned.
func (s *CheckoutService) CreateOrder(ctx context.Context, input CreateOrderInput) (*CheckoutResult, error) {
	span := sentry.StartSpan(
		ctx,
		"service.checkout.create_order",
		sentry.WithOpName("service.checkout"),
		sentry.WithDescription("CreateOrder"),
		sentry.WithSpanOrigin(sentry.SpanOriginManual),
	)
	defer span.Finish()
	ctx = span.Context()

	logger := s.loggerFromContext(ctx)
	meter := observability.MeterFromContext(ctx)
	recordFailed := func(reason string) {
		meter.Count("checkout.create_order.failed", 1, sentry.WithAttributes(
			attribute.String("reason", reason),
		))
	}

	if input.OwnerID == nil && !s.config.AllowGuestCheckout {
		recordFailed("auth_required")
		return nil, ErrAuthRequired
	}

	lines := input.Items
	if len(lines) == 0 && input.OwnerID != nil {
		stored, err := s.carts.List(ctx, *input.OwnerID)
		if err != nil {
			recordFailed("cart_lookup_failed")
			return nil, fmt.Errorf("failed to load cart: %w", err)
		}
		for _, item := range stored {
			lines = append(lines, item.Line())
		}
	}
	if len(lines) == 0 {
		recordFailed("empty_cart")
		return nil, UserError{Message: "Cart is empty"}
	}

	customerEmail := strings.TrimSpace(input.Email)
	if customerEmail == "" {
		customerEmail = strings.TrimSpace(input.ShippingAddress.Email)
	}
	if customerEmail == "" {
		recordFailed("missing_email")
		return nil, UserError{Message: "An email address is required"}
	}

	priced, err := s.pricer.PriceLines(ctx, lines)
	if err != nil {
		recordFailed("pricing_failed")
		return nil, fmt.Errorf("failed to price cart: %w", err)
	}
	for _, skipped := range priced.Skipped {
		logger.Warn("skipping unavailable cart line", "product_id", skipped.ProductID, "variant_id", skipped.VariantID)
	}
	if len(priced.Items) == 0 {
		recordFailed("no_purchasable_items")
		return nil, ErrNoPurchasableItems
	}

	quote := s.quoteShipping(ctx, logger, input, priced.Subtotal, priced.WeightKg)

	if code := strings.TrimSpace(input.DiscountCode); code != "" {
		logger.Info("discount code received but discounts are not applied", "discount_code", code)
	}

	billing := input.ShippingAddress
	if input.BillingAddress != nil {
		billing = *input.BillingAddress
	}

	order := &models.Order{
		OwnerID:         input.OwnerID,
		Email:           customerEmail,
		ShippingAddress: input.ShippingAddress,
		BillingAddress:  billing,
		ShippingZone:    quote.ZoneName,
		ShippingMethod:  quote.MethodName,
		Status:          models.StatusPending,
		PaymentStatus:   models.PaymentPending,
		Items:           priced.Items,
	}
	order.ApplyTotals(models.OrderTotals{
		Subtotal: priced.Subtotal,
		Shipping: quote.CalculatedRate,
		Tax:      decimal.Zero,
		Discount: decimal.Zero,
	})

	if err := s.insertOrder(ctx, logger, order); err != nil {
		recordFailed("insert_failed")
		return nil, err
	}

	meter.Count("checkout.order.created", 1)
	observability.OrdersCreated.Inc()
	logger.Info("order created",
		"order_id", order.ID,
		"order_number", order.OrderNumber,
		"total", order.TotalAmount.String(),
		"items", len(order.Items),
		"skipped", len(priced.Skipped))

	if input.OwnerID != nil {
		if err := s.carts.Clear(ctx, *input.OwnerID); err != nil {
			meter.Count("checkout.cart_clear.side_effect_failed", 1)
			logger.Error("failed to clear cart after checkout", "error", err, "order_id", order.ID)
		}
	}

	if envelope, err := events.NewEnvelope(events.OrderCreated, order.ID.String(), orderCreated{
		OrderID:     order.ID.String(),
		OrderNumber: order.OrderNumber,
		OwnerID:     order.OwnerID,
		Email:       order.Email,
		Total:       order.TotalAmount,
		ItemCount:   len(order.Items),
	}); err != nil {
		logger.Error("failed to build order event", "error", err, "order_id", order.ID)
	} else {
		publishEvents(ctx, s.publisher, logger, envelope)
	}

	if err := s.emailSender.SendOrderConfirmation(ctx, order, quote); err != nil {
		meter.Count("checkout.confirmation_email.side_effect_failed", 1)
		logger.Error("failed to send order confirmation email", "error", err, "order_id", order.ID)
	}

	return &CheckoutResult{
		Order:        order,
		Shipping:     quote,
		SkippedLines: len(priced.Skipped),
	}, nil
}

// quoteShipping never fails checkout: any problem with the rate table drops
// to the fallback policy.
func (s *CheckoutService) quoteShipping(ctx context.Context, logger *slog.Logger, input CreateOrderInput, subtotal, weightKg decimal.Decimal) models.ShippingQuote {
	meter := observability.MeterFromContext(ctx)

	methodCode := strings.TrimSpace(input.MethodCode)
	if methodCode == "" {
		observability.ShippingQuotes.WithLabelValues("fallback").Inc()
		return s.shipping.Fallback(subtotal)
	}

	quote, fellBack, err := s.shipping.Quote(ctx, shipping.Request{
		Subtotal:         subtotal,
		TotalWeightKg:    weightKg,
		DestinationState: input.ShippingAddress.State,
		DestinationCity:  input.ShippingAddress.City,
		MethodCode:       methodCode,
	})
	if err != nil {
		meter.Count("checkout.shipping_quote.failed", 1)
		logger.Error("failed to quote shipping, using fallback", "error", err, "method", methodCode)
		observability.ShippingQuotes.WithLabelValues("fallback").Inc()
		return s.shipping.Fallback(subtotal)
	}
	if fellBack {
		meter.Count("checkout.shipping_quote.fallback", 1)
		logger.Warn("no shipping rate for destination, using fallback",
			"state", input.ShippingAddress.State,
			"city", input.ShippingAddress.City,
			"method", methodCode)
		observability.ShippingQuotes.WithLabelValues("fallback").Inc()
		return quote
	}
	observability.ShippingQuotes.WithLabelValues("table").Inc()
	return quote
}

func (s *CheckoutService) insertOrder(ctx context.Context, logger *slog.Logger, order *models.Order) error {
	var err error
	for attempt := 1; attempt <= maxReferenceAttempts; attempt++ {
		order.OrderNumber = NewOrderNumber(s.config.OrderNumberPrefix, s.now())
		err = s.orders.Create(ctx, order)
		if err == nil {
			return nil
		}
		if !errors.Is(err, db.ErrDuplicateOrderNumber) {
			return fmt.Errorf("failed to create order: %w", err)
		}
		logger.Warn("order number collision, retrying", "order_number", order.OrderNumber, "attempt", attempt)
	}
	return fmt.Errorf("failed to allocate order number after %d attempts: %w", maxReferenceAttempts, err)
}
