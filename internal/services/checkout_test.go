package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ankarahouse/storefront/internal/catalog"
	"github.com/ankarahouse/storefront/internal/db"
	"github.com/ankarahouse/storefront/internal/events"
	"github.com/ankarahouse/storefront/internal/models"
)

type checkoutFixture struct {
	service   *CheckoutService
	orders    *fakeOrderStore
	carts     *fakeCartStore
	publisher *recordingPublisher
	emails    *recordingEmailSender
}

func newCheckoutFixture(t *testing.T, allowGuest bool, products ...*models.Product) *checkoutFixture {
	t.Helper()

	f := &checkoutFixture{
		orders:    newFakeOrderStore(),
		carts:     newFakeCartStore(),
		publisher: &recordingPublisher{},
		emails:    &recordingEmailSender{},
	}
	f.service = NewCheckoutService(
		f.orders,
		f.carts,
		catalog.NewPricer(newFakeProductStore(products...)),
		testCalculator(t),
		f.publisher,
		f.emails,
		CheckoutConfig{OrderNumberPrefix: "AH", AllowGuestCheckout: allowGuest},
		slog.New(slog.DiscardHandler),
	)
	f.service.now = func() time.Time { return fixedNow }
	return f
}

func lagosAddress() models.Address {
	return models.Address{
		FirstName: "Adaeze",
		LastName:  "Okafor",
		Phone:     "+2348012345678",
		Line1:     "12 Admiralty Way",
		City:      "Lekki",
		State:     "Lagos",
		Country:   "NG",
	}
}

func TestCreateOrderShippingThreshold(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name         string
		price        int64
		quantity     int
		wantShipping string
		wantFree     bool
		wantTotal    string
	}{
		{name: "below free threshold pays base rate", price: 9000, quantity: 2, wantShipping: "2000", wantFree: false, wantTotal: "20000"},
		{name: "at or above free threshold ships free", price: 20500, quantity: 1, wantShipping: "0", wantFree: true, wantTotal: "20500"},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			dress := product("Ankara Wrap Dress", tt.price)
			f := newCheckoutFixture(t, true, dress)

			result, err := f.service.CreateOrder(context.Background(), CreateOrderInput{
				Email:           "ada@example.com",
				Items:           []models.CartLine{{ProductID: dress.ID, Quantity: tt.quantity}},
				ShippingAddress: lagosAddress(),
				MethodCode:      "standard",
			})
			require.NoError(t, err)

			order := result.Order
			assert.Equal(t, tt.wantShipping, order.ShippingAmount.String())
			assert.Equal(t, tt.wantFree, result.Shipping.IsFreeShipping)
			assert.Equal(t, tt.wantTotal, order.TotalAmount.String())
			assert.Equal(t, "Lagos State", order.ShippingZone)
			assert.Equal(t, "Standard Delivery", order.ShippingMethod)
			assert.Equal(t, models.StatusPending, order.Status)
			assert.Equal(t, models.PaymentPending, order.PaymentStatus)
		})
	}
}

func TestCreateOrderTotalsAddUp(t *testing.T) {
	t.Parallel()

	top := product("Adire Top", 7499)
	top.Price = decimal.RequireFromString("7499.99")
	bag := product("Aso Oke Bag", 3250)
	f := newCheckoutFixture(t, true, top, bag)

	result, err := f.service.CreateOrder(context.Background(), CreateOrderInput{
		Email: "ada@example.com",
		Items: []models.CartLine{
			{ProductID: top.ID, Quantity: 3},
			{ProductID: bag.ID, Quantity: 1},
		},
		ShippingAddress: lagosAddress(),
		MethodCode:      "standard",
	})
	require.NoError(t, err)

	order := result.Order
	want := order.Subtotal.Add(order.ShippingAmount).Add(order.TaxAmount).Sub(order.DiscountAmount)
	assert.True(t, order.TotalAmount.Equal(want), "total %s != %s", order.TotalAmount, want)
	assert.Equal(t, "25749.97", order.Subtotal.String())
	assert.True(t, order.TaxAmount.IsZero())
	assert.True(t, order.DiscountAmount.IsZero())

	var lineSum decimal.Decimal
	for _, item := range order.Items {
		lineSum = lineSum.Add(item.Total)
	}
	assert.True(t, lineSum.Equal(order.Subtotal))
}

func TestCreateOrderSkipsUnavailableProducts(t *testing.T) {
	t.Parallel()

	dress := product("Ankara Wrap Dress", 15000)
	retired := product("Retired Kaftan", 8000)
	retired.IsActive = false
	f := newCheckoutFixture(t, true, dress, retired)

	result, err := f.service.CreateOrder(context.Background(), CreateOrderInput{
		Email: "ada@example.com",
		Items: []models.CartLine{
			{ProductID: dress.ID, Quantity: 1},
			{ProductID: uuid.New(), Quantity: 2},
			{ProductID: retired.ID, Quantity: 1},
		},
		ShippingAddress: lagosAddress(),
		MethodCode:      "standard",
	})
	require.NoError(t, err)

	require.Len(t, result.Order.Items, 1)
	assert.Equal(t, dress.ID, result.Order.Items[0].ProductID)
	assert.Equal(t, 2, result.SkippedLines)
	assert.Equal(t, "15000", result.Order.Subtotal.String())
}

func TestCreateOrderNoPurchasableItems(t *testing.T) {
	t.Parallel()

	f := newCheckoutFixture(t, true)

	_, err := f.service.CreateOrder(context.Background(), CreateOrderInput{
		Email:           "ada@example.com",
		Items:           []models.CartLine{{ProductID: uuid.New(), Quantity: 1}},
		ShippingAddress: lagosAddress(),
	})
	require.ErrorIs(t, err, ErrNoPurchasableItems)
	assert.Empty(t, f.orders.createAttempts)
}

func TestCreateOrderRequiresSignInWithoutGuestCheckout(t *testing.T) {
	t.Parallel()

	dress := product("Ankara Wrap Dress", 15000)
	f := newCheckoutFixture(t, false, dress)

	_, err := f.service.CreateOrder(context.Background(), CreateOrderInput{
		Email:           "ada@example.com",
		Items:           []models.CartLine{{ProductID: dress.ID, Quantity: 1}},
		ShippingAddress: lagosAddress(),
	})
	require.ErrorIs(t, err, ErrAuthRequired)
}

func TestCreateOrderFallsBackWhenNoRate(t *testing.T) {
	t.Parallel()

	dress := product("Ankara Wrap Dress", 15000)
	f := newCheckoutFixture(t, true, dress)

	address := lagosAddress()
	address.State = "Kano"
	address.City = "Nassarawa"

	result, err := f.service.CreateOrder(context.Background(), CreateOrderInput{
		Email:           "ada@example.com",
		Items:           []models.CartLine{{ProductID: dress.ID, Quantity: 1}},
		ShippingAddress: address,
		MethodCode:      "standard",
	})
	require.NoError(t, err)
	assert.Equal(t, "2500", result.Order.ShippingAmount.String())
	assert.Equal(t, "17500", result.Order.TotalAmount.String())
}

func TestCreateOrderWithoutMethodUsesFallbackFreeCutoff(t *testing.T) {
	t.Parallel()

	gown := product("Bridal Gown", 60000)
	f := newCheckoutFixture(t, true, gown)

	result, err := f.service.CreateOrder(context.Background(), CreateOrderInput{
		Email:           "ada@example.com",
		Items:           []models.CartLine{{ProductID: gown.ID, Quantity: 1}},
		ShippingAddress: lagosAddress(),
	})
	require.NoError(t, err)
	assert.True(t, result.Shipping.IsFreeShipping)
	assert.True(t, result.Order.ShippingAmount.IsZero())
}

func TestCreateOrderUsesVariantPrice(t *testing.T) {
	t.Parallel()

	dress := product("Ankara Wrap Dress", 15000)
	variantID := uuid.New()
	dress.Variants = []models.Variant{{
		ID:        variantID,
		ProductID: dress.ID,
		Name:      "XL",
		SKU:       "AWD-XL",
		Price:     decimal.NewNullDecimal(decimal.NewFromInt(16500)),
		IsActive:  true,
	}}
	f := newCheckoutFixture(t, true, dress)

	result, err := f.service.CreateOrder(context.Background(), CreateOrderInput{
		Email:           "ada@example.com",
		Items:           []models.CartLine{{ProductID: dress.ID, VariantID: &variantID, Quantity: 1}},
		ShippingAddress: lagosAddress(),
	})
	require.NoError(t, err)

	item := result.Order.Items[0]
	assert.Equal(t, "16500", item.Price.String())
	assert.Equal(t, "AWD-XL", item.SKU)
	assert.Equal(t, "XL", item.VariantName)
}

func TestCreateOrderRetriesOrderNumberCollision(t *testing.T) {
	t.Parallel()

	dress := product("Ankara Wrap Dress", 15000)
	duplicate := fmt.Errorf("%w: AH-1", db.ErrDuplicateOrderNumber)

	t.Run("succeeds on third attempt", func(t *testing.T) {
		t.Parallel()

		f := newCheckoutFixture(t, true, dress)
		f.orders.createErrs = []error{duplicate, duplicate, nil}

		result, err := f.service.CreateOrder(context.Background(), CreateOrderInput{
			Email:           "ada@example.com",
			Items:           []models.CartLine{{ProductID: dress.ID, Quantity: 1}},
			ShippingAddress: lagosAddress(),
		})
		require.NoError(t, err)
		assert.Len(t, f.orders.createAttempts, 3)
		assert.Regexp(t, regexp.MustCompile(`^AH-\d{13}-[A-Z2-7]{6}$`), result.Order.OrderNumber)
	})

	t.Run("gives up after three attempts", func(t *testing.T) {
		t.Parallel()

		f := newCheckoutFixture(t, true, dress)
		f.orders.createErrs = []error{duplicate, duplicate, duplicate}

		_, err := f.service.CreateOrder(context.Background(), CreateOrderInput{
			Email:           "ada@example.com",
			Items:           []models.CartLine{{ProductID: dress.ID, Quantity: 1}},
			ShippingAddress: lagosAddress(),
		})
		require.ErrorIs(t, err, db.ErrDuplicateOrderNumber)
		assert.Len(t, f.orders.createAttempts, 3)
	})
}

func TestCreateOrderFromStoredCart(t *testing.T) {
	t.Parallel()

	dress := product("Ankara Wrap Dress", 15000)
	f := newCheckoutFixture(t, false, dress)
	owner := uuid.New()
	f.carts.items[owner] = []models.CartItem{{ID: uuid.New(), OwnerID: owner, ProductID: dress.ID, Quantity: 2}}
	f.carts.clearErr = errors.New("connection reset")

	result, err := f.service.CreateOrder(context.Background(), CreateOrderInput{
		OwnerID:         &owner,
		Email:           "ada@example.com",
		ShippingAddress: lagosAddress(),
		DiscountCode:    "WELCOME10",
	})
	require.NoError(t, err, "cart clear failures must not fail checkout")

	order := result.Order
	assert.Equal(t, "30000", order.Subtotal.String())
	assert.True(t, order.DiscountAmount.IsZero())
	assert.Equal(t, order.ShippingAddress, order.BillingAddress)
	assert.Equal(t, []uuid.UUID{owner}, f.carts.cleared)
	assert.Equal(t, []string{events.OrderCreated}, f.publisher.types())
	assert.Equal(t, []string{order.OrderNumber}, f.emails.confirmations)
}

func TestCreateOrderSideEffectFailuresAreSwallowed(t *testing.T) {
	t.Parallel()

	dress := product("Ankara Wrap Dress", 15000)
	f := newCheckoutFixture(t, true, dress)
	f.publisher.err = errors.New("broker down")
	f.emails.err = errors.New("mail down")

	result, err := f.service.CreateOrder(context.Background(), CreateOrderInput{
		Email:           "ada@example.com",
		Items:           []models.CartLine{{ProductID: dress.ID, Quantity: 1}},
		ShippingAddress: lagosAddress(),
	})
	require.NoError(t, err)
	assert.NotEqual(t, uuid.Nil, result.Order.ID)
}
