package services

import (
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ankarahouse/storefront/internal/db"
	"github.com/ankarahouse/storefront/internal/models"
	"github.com/ankarahouse/storefront/internal/shipping"
)

type fakeSurgeStore struct {
	rates map[uuid.UUID]*models.ShippingRate
}

func (f *fakeSurgeStore) UpdateSurge(_ context.Context, rateID uuid.UUID, multiplier decimal.Decimal, active bool) (*models.ShippingRate, error) {
	rate, ok := f.rates[rateID]
	if !ok {
		return nil, db.ErrNotFound
	}
	rate.SurgeMultiplier = multiplier
	rate.SurgeActive = active
	return rate, nil
}

type countingInvalidator struct {
	calls int
}

func (c *countingInvalidator) Invalidate() { c.calls++ }

type failingQuoter struct{}

func (failingQuoter) Quote(context.Context, shipping.Request) (models.ShippingQuote, bool, error) {
	return models.ShippingQuote{}, false, errors.New("table unavailable")
}

func (failingQuoter) Fallback(decimal.Decimal) models.ShippingQuote {
	return models.ShippingQuote{}
}

func TestShippingQuote(t *testing.T) {
	t.Parallel()

	service := NewShippingService(testCalculator(t), nil, nil, slog.New(slog.DiscardHandler))

	tests := []struct {
		name         string
		req          shipping.Request
		wantRate     string
		wantFree     bool
		wantFallback bool
	}{
		{
			name: "within weight threshold",
			req: shipping.Request{
				Subtotal:         decimal.NewFromInt(18000),
				TotalWeightKg:    decimal.NewFromInt(1),
				DestinationState: "Lagos",
				MethodCode:       "standard",
			},
			wantRate: "2000",
		},
		{
			name: "excess weight",
			req: shipping.Request{
				Subtotal:         decimal.NewFromInt(5000),
				TotalWeightKg:    decimal.RequireFromString("3.5"),
				DestinationState: "lagos",
				MethodCode:       "standard",
			},
			wantRate: "2750",
		},
		{
			name: "free above threshold",
			req: shipping.Request{
				Subtotal:         decimal.NewFromInt(20000),
				TotalWeightKg:    decimal.NewFromInt(9),
				DestinationState: "Lagos",
				MethodCode:       "standard",
			},
			wantRate: "0",
			wantFree: true,
		},
		{
			name: "uncovered state falls back",
			req: shipping.Request{
				Subtotal:         decimal.NewFromInt(10000),
				DestinationState: "Kano",
				MethodCode:       "standard",
			},
			wantRate:     "2500",
			wantFallback: true,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, err := service.Quote(context.Background(), tt.req)
			require.NoError(t, err)
			assert.True(t, decimal.RequireFromString(tt.wantRate).Equal(got.CalculatedRate), "rate = %s", got.CalculatedRate)
			assert.Equal(t, tt.wantFree, got.IsFreeShipping)
			assert.Equal(t, tt.wantFallback, got.Fallback)
		})
	}
}

func TestShippingQuoteValidatesRequest(t *testing.T) {
	t.Parallel()

	service := NewShippingService(testCalculator(t), nil, nil, slog.New(slog.DiscardHandler))

	valid := shipping.Request{
		Subtotal:         decimal.NewFromInt(1000),
		TotalWeightKg:    decimal.NewFromInt(1),
		DestinationState: "Lagos",
		MethodCode:       "standard",
	}

	tests := []struct {
		name   string
		mutate func(*shipping.Request)
	}{
		{name: "negative subtotal", mutate: func(r *shipping.Request) { r.Subtotal = decimal.NewFromInt(-1) }},
		{name: "negative weight", mutate: func(r *shipping.Request) { r.TotalWeightKg = decimal.NewFromInt(-1) }},
		{name: "missing state", mutate: func(r *shipping.Request) { r.DestinationState = " " }},
		{name: "missing method", mutate: func(r *shipping.Request) { r.MethodCode = "" }},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			req := valid
			tt.mutate(&req)
			_, err := service.Quote(context.Background(), req)
			var userErr UserError
			require.ErrorAs(t, err, &userErr)
		})
	}
}

func TestShippingQuotePropagatesTableFailure(t *testing.T) {
	t.Parallel()

	service := NewShippingService(failingQuoter{}, nil, nil, slog.New(slog.DiscardHandler))
	_, err := service.Quote(context.Background(), shipping.Request{DestinationState: "Lagos", MethodCode: "standard"})
	require.Error(t, err)
}

func TestUpdateSurgeInvalidatesTable(t *testing.T) {
	t.Parallel()

	rateID := uuid.New()
	store := &fakeSurgeStore{rates: map[uuid.UUID]*models.ShippingRate{
		rateID: {ID: rateID, BaseRate: decimal.NewFromInt(2000)},
	}}
	invalidator := &countingInvalidator{}
	service := NewShippingService(testCalculator(t), store, invalidator, slog.New(slog.DiscardHandler))

	rate, err := service.UpdateSurge(context.Background(), rateID, decimal.RequireFromString("1.5"), true)
	require.NoError(t, err)
	assert.True(t, rate.SurgeActive)
	assert.Equal(t, "1.5", rate.SurgeMultiplier.String())
	assert.Equal(t, 1, invalidator.calls)

	_, err = service.UpdateSurge(context.Background(), uuid.New(), decimal.NewFromInt(2), true)
	require.ErrorIs(t, err, ErrRateNotFound)

	_, err = service.UpdateSurge(context.Background(), rateID, decimal.Zero, true)
	var userErr UserError
	require.ErrorAs(t, err, &userErr)
	assert.Equal(t, 1, invalidator.calls)
}

func TestUpdateSurgeWithoutRateStore(t *testing.T) {
	t.Parallel()

	service := NewShippingService(testCalculator(t), nil, nil, slog.New(slog.DiscardHandler))
	_, err := service.UpdateSurge(context.Background(), uuid.New(), decimal.NewFromInt(2), true)
	var userErr UserError
	require.ErrorAs(t, err, &userErr)
}
