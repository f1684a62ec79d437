package db

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ankarahouse/storefront/internal/models"
)

// These tests run against a disposable database named by TEST_DATABASE_URL.
func testPool(t *testing.T) *pgxpool.Pool {
	t.Helper()

	url := os.Getenv("TEST_DATABASE_URL")
	if url == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	pool, err := Connect(ctx, url)
	require.NoError(t, err)
	require.NoError(t, Migrate(ctx, pool))
	t.Cleanup(pool.Close)
	return pool
}

func seedProduct(t *testing.T, pool *pgxpool.Pool, price string, stock int) (uuid.UUID, uuid.UUID) {
	t.Helper()

	ctx := context.Background()
	var productID, variantID uuid.UUID
	slug := "adire-kaftan-" + uuid.NewString()[:8]
	require.NoError(t, pool.QueryRow(ctx,
		`INSERT INTO products (name, slug, price, weight_kg) VALUES ($1, $2, $3, 0.8) RETURNING id`,
		"Adire Kaftan", slug, decimal.RequireFromString(price),
	).Scan(&productID))
	require.NoError(t, pool.QueryRow(ctx,
		`INSERT INTO product_variants (product_id, name, stock_quantity) VALUES ($1, 'M', $2) RETURNING id`,
		productID, stock,
	).Scan(&variantID))
	return productID, variantID
}

func newTestOrder(productID, variantID uuid.UUID, quantity int) *Order {
	price := decimal.RequireFromString("9000")
	order := &Order{
		OrderNumber:     fmt.Sprintf("TEST-%d-%s", time.Now().UnixNano(), uuid.NewString()[:6]),
		Email:           "ada@example.com",
		ShippingAddress: models.Address{FirstName: "Ada", LastName: "Obi", Phone: "0800", Line1: "1 Allen Ave", City: "Ikeja", State: "Lagos", Country: "NG"},
		Status:          models.StatusPending,
		PaymentStatus:   models.PaymentPending,
		Items: []OrderItem{{
			ProductID:   productID,
			VariantID:   &variantID,
			ProductName: "Adire Kaftan",
			VariantName: "M",
			Price:       price,
			Quantity:    quantity,
			Total:       price.Mul(decimal.NewFromInt(int64(quantity))),
		}},
	}
	order.BillingAddress = order.ShippingAddress
	order.ApplyTotals(models.OrderTotals{Subtotal: order.Items[0].Total, Shipping: decimal.RequireFromString("2000")})
	return order
}

func TestOrderStoreCreateAndTransition(t *testing.T) {
	pool := testPool(t)
	store := NewOrderStore(pool)
	ctx := context.Background()

	productID, variantID := seedProduct(t, pool, "9000", 1)
	order := newTestOrder(productID, variantID, 2)
	require.NoError(t, store.Create(ctx, order))
	require.NotEqual(t, uuid.Nil, order.ID)

	var stock int
	require.NoError(t, pool.QueryRow(ctx, `SELECT stock_quantity FROM product_variants WHERE id = $1`, variantID).Scan(&stock))
	assert.Equal(t, 0, stock, "stock is floored at zero")

	loaded, err := store.GetByID(ctx, order.ID)
	require.NoError(t, err)
	require.Len(t, loaded.Items, 1)
	assert.True(t, loaded.TotalAmount.Equal(decimal.RequireFromString("20000")))
	assert.Equal(t, "Ikeja", loaded.ShippingAddress.City)

	shipped, err := store.UpdateStatus(ctx, order.ID, models.StatusShipped)
	require.NoError(t, err)
	require.NotNil(t, shipped.ShippedAt)

	delivered, err := store.UpdateStatus(ctx, order.ID, models.StatusDelivered)
	require.NoError(t, err)
	require.NotNil(t, delivered.DeliveredAt)
	assert.False(t, delivered.ShippedAt.After(*delivered.DeliveredAt))

	_, err = store.UpdateStatus(ctx, order.ID, models.StatusCancelled)
	require.ErrorIs(t, err, ErrInvalidStatusTransition)

	duplicate := newTestOrder(productID, variantID, 1)
	duplicate.OrderNumber = order.OrderNumber
	require.ErrorIs(t, store.Create(ctx, duplicate), ErrDuplicateOrderNumber)
}

func TestOrderStoreBulkUpdateIsAtomic(t *testing.T) {
	pool := testPool(t)
	store := NewOrderStore(pool)
	ctx := context.Background()

	productID, variantID := seedProduct(t, pool, "9000", 10)
	first := newTestOrder(productID, variantID, 1)
	second := newTestOrder(productID, variantID, 1)
	require.NoError(t, store.Create(ctx, first))
	require.NoError(t, store.Create(ctx, second))

	_, err := store.BulkUpdateStatus(ctx, []uuid.UUID{first.ID, uuid.New()}, models.StatusProcessing)
	require.ErrorIs(t, err, ErrNotFound)

	reloaded, err := store.GetByID(ctx, first.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusPending, reloaded.Status, "failed batch leaves orders untouched")

	updated, err := store.BulkUpdateStatus(ctx, []uuid.UUID{first.ID, second.ID, first.ID}, models.StatusProcessing)
	require.NoError(t, err)
	assert.Len(t, updated, 2)

	page, total, err := store.List(ctx, OrderFilter{Status: models.StatusProcessing, Search: first.OrderNumber})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	require.Len(t, page, 1)
	assert.Equal(t, first.ID, page[0].ID)
}

func TestEventStoreRegisterRespectsCapacity(t *testing.T) {
	pool := testPool(t)
	store := NewEventStore(pool)
	ctx := context.Background()

	var eventID uuid.UUID
	require.NoError(t, pool.QueryRow(ctx, `
		INSERT INTO events (title, slug, starts_at, max_attendees, current_attendees)
		VALUES ('Lagos Pop-up', $1, NOW() + INTERVAL '7 days', 10, 9) RETURNING id`,
		"popup-"+uuid.NewString()[:8],
	).Scan(&eventID))

	attendees := func(n int) []EventAttendee {
		out := make([]EventAttendee, n)
		for i := range out {
			out[i] = EventAttendee{FirstName: "Ada", LastName: "Obi", Email: "ada@example.com", TicketCode: "T-" + uuid.NewString(), PaymentStatus: models.PaymentPaid}
		}
		return out
	}

	require.ErrorIs(t, store.Register(ctx, eventID, attendees(2)), ErrEventFull)

	listed, err := store.ListAttendees(ctx, eventID)
	require.NoError(t, err)
	assert.Empty(t, listed)

	require.NoError(t, store.Register(ctx, eventID, attendees(1)))
	event, err := store.GetByID(ctx, eventID)
	require.NoError(t, err)
	assert.Equal(t, 10, event.CurrentAttendees)
}
