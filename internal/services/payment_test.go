package services

import (
	"context"
	"log/slog"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ankarahouse/storefront/internal/events"
	"github.com/ankarahouse/storefront/internal/models"
	"github.com/ankarahouse/storefront/internal/stripe"
)

func newPaymentFixture() (*PaymentService, *fakeOrderStore, *fakeGateway, *recordingPublisher) {
	orders := newFakeOrderStore()
	gateway := newFakeGateway()
	publisher := &recordingPublisher{}
	service := NewPaymentService(orders, gateway, publisher, "NGN", slog.New(slog.DiscardHandler))
	return service, orders, gateway, publisher
}

func pendingOrder(store *fakeOrderStore, owner *uuid.UUID, total string) *models.Order {
	return store.add(&models.Order{
		OrderNumber:   "AH-1741946400000-ABCDEF",
		OwnerID:       owner,
		Email:         "ada@example.com",
		TotalAmount:   decimal.RequireFromString(total),
		Status:        models.StatusPending,
		PaymentStatus: models.PaymentPending,
	})
}

func TestInitiateAndVerifyPayment(t *testing.T) {
	t.Parallel()

	service, orders, gateway, publisher := newPaymentFixture()
	owner := uuid.New()
	order := pendingOrder(orders, &owner, "20000.50")

	initiation, err := service.Initiate(context.Background(), order.ID, Caller{UserID: &owner})
	require.NoError(t, err)
	require.Len(t, gateway.created, 1)
	assert.Equal(t, int64(2000050), gateway.created[0].AmountMinor)
	assert.Equal(t, initiation.Reference, order.PaymentReference)
	assert.NotEmpty(t, initiation.AuthorizationURL)

	// Still open: nothing changes.
	verified, err := service.Verify(context.Background(), initiation.Reference)
	require.NoError(t, err)
	assert.Equal(t, models.PaymentPending, verified.PaymentStatus)

	gateway.sessions[initiation.Reference].PaymentStatus = stripe.SessionPaid
	gateway.sessions[initiation.Reference].Status = "complete"

	verified, err = service.Verify(context.Background(), initiation.Reference)
	require.NoError(t, err)
	assert.Equal(t, models.PaymentPaid, verified.PaymentStatus)
	assert.Equal(t, []string{events.OrderPaymentUpdated}, publisher.types())

	// Replays are no-ops.
	_, err = service.Verify(context.Background(), initiation.Reference)
	require.NoError(t, err)
	assert.Len(t, publisher.types(), 1)

	_, err = service.Initiate(context.Background(), order.ID, Caller{UserID: &owner})
	require.ErrorIs(t, err, ErrAlreadyPaid)
}

func TestInitiateRejectsOtherCustomers(t *testing.T) {
	t.Parallel()

	service, orders, _, _ := newPaymentFixture()
	owner := uuid.New()
	stranger := uuid.New()
	order := pendingOrder(orders, &owner, "15000")

	_, err := service.Initiate(context.Background(), order.ID, Caller{UserID: &stranger})
	require.ErrorIs(t, err, ErrForbidden)

	_, err = service.Initiate(context.Background(), order.ID, Caller{IsAdmin: true})
	require.NoError(t, err)
}

func TestInitiateWithoutGateway(t *testing.T) {
	t.Parallel()

	orders := newFakeOrderStore()
	service := NewPaymentService(orders, nil, nil, "ngn", slog.New(slog.DiscardHandler))
	order := pendingOrder(orders, nil, "15000")

	_, err := service.Initiate(context.Background(), order.ID, Caller{})
	require.ErrorIs(t, err, ErrPaymentsDisabled)
}

func TestMarkPaidRejectsAmountMismatch(t *testing.T) {
	t.Parallel()

	service, orders, _, _ := newPaymentFixture()
	order := pendingOrder(orders, nil, "15000")
	order.PaymentReference = "cs_test_1"

	_, err := service.MarkPaid(context.Background(), &stripe.Session{
		ID:            "cs_test_1",
		AmountMinor:   100,
		Currency:      "ngn",
		PaymentStatus: stripe.SessionPaid,
	})
	require.ErrorIs(t, err, ErrPaymentMismatch)
	assert.Equal(t, models.PaymentPending, order.PaymentStatus)
}

func TestMarkFailedAndRecover(t *testing.T) {
	t.Parallel()

	service, orders, _, _ := newPaymentFixture()
	order := pendingOrder(orders, nil, "15000")

	session := &stripe.Session{ID: "cs_test_2", OrderID: order.ID, AmountMinor: 1500000, Currency: "ngn", Status: stripe.SessionExpired}
	failed, err := service.MarkFailed(context.Background(), session)
	require.NoError(t, err)
	assert.Equal(t, models.PaymentFailed, failed.PaymentStatus)

	session.PaymentStatus = stripe.SessionPaid
	paid, err := service.MarkPaid(context.Background(), session)
	require.NoError(t, err)
	assert.Equal(t, models.PaymentPaid, paid.PaymentStatus)

	// A late expiry cannot undo a payment.
	after, err := service.MarkFailed(context.Background(), session)
	require.NoError(t, err)
	assert.Equal(t, models.PaymentPaid, after.PaymentStatus)
}

func TestMarkPaidLeavesRefundedAlone(t *testing.T) {
	t.Parallel()

	service, orders, _, _ := newPaymentFixture()
	order := pendingOrder(orders, nil, "15000")
	order.PaymentStatus = models.PaymentRefunded
	order.PaymentReference = "cs_test_3"

	got, err := service.MarkPaid(context.Background(), &stripe.Session{ID: "cs_test_3", AmountMinor: 1500000, Currency: "ngn"})
	require.NoError(t, err)
	assert.Equal(t, models.PaymentRefunded, got.PaymentStatus)
}
