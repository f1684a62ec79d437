package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/getsentry/sentry-go"
	"github.com/getsentry/sentry-go/attribute"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/ankarahouse/storefront/internal/logging"
	"github.com/ankarahouse/storefront/internal/models"
	"github.com/ankarahouse/storefront/internal/observability"
	"github.com/ankarahouse/storefront/internal/shipping"
)

type ShippingService struct {
	quoter shippingQuoter
	rates  surgeStore
	cache  tableInvalidator
	logger *slog.Logger
}

// NewShippingService wires the calculator. rates may be nil when the table
// comes from a file; surge overrides are then unavailable.
func NewShippingService(quoter shippingQuoter, rates surgeStore, cache tableInvalidator, logger *slog.Logger) *ShippingService {
	return &ShippingService{
		quoter: quoter,
		rates:  rates,
		cache:  cache,
		logger: logger,
	}
}

func (s *ShippingService) loggerFromContext(ctx context.Context) *slog.Logger {
	return logging.FromContext(ctx, s.logger)
}

// QuoteResult is a quote plus whether it came from the fallback policy.
type QuoteResult struct {
	models.ShippingQuote
	Fallback bool `json:"fallback"`
}

func (s *ShippingService) Quote(ctx context.Context, req shipping.Request) (*QuoteResult, error) {
	span := sentry.StartSpan(
		ctx,
		"service.shipping.quote",
		sentry.WithOpName("service.shipping"),
		sentry.WithDescription("Quote"),
		sentry.WithSpanOrigin(sentry.SpanOriginManual),
	)
	defer span.Finish()
	ctx = span.Context()

	logger := s.loggerFromContext(ctx)
	meter := observability.MeterFromContext(ctx)

	if req.Subtotal.IsNegative() {
		return nil, UserError{Message: "Subtotal must not be negative"}
	}
	if req.TotalWeightKg.IsNegative() {
		return nil, UserError{Message: "Total weight must not be negative"}
	}
	if strings.TrimSpace(req.DestinationState) == "" {
		return nil, UserError{Message: "Destination state is required"}
	}
	if strings.TrimSpace(req.MethodCode) == "" {
		return nil, UserError{Message: "Shipping method is required"}
	}

	quote, fellBack, err := s.quoter.Quote(ctx, req)
	if err != nil {
		meter.Count("shipping.quote.failed", 1)
		return nil, err
	}

	source := "table"
	if fellBack {
		source = "fallback"
		logger.Warn("no shipping rate for destination, quoting fallback",
			"state", req.DestinationState,
			"city", req.DestinationCity,
			"method", req.MethodCode)
	}
	meter.Count("shipping.quote.served", 1, sentry.WithAttributes(attribute.String("source", source)))
	observability.ShippingQuotes.WithLabelValues(source).Inc()

	return &QuoteResult{ShippingQuote: quote, Fallback: fellBack}, nil
}

// UpdateSurge overrides the surge multiplier on one rate and drops the cached
// table so the next quote sees it.
func (s *ShippingService) UpdateSurge(ctx context.Context, rateID uuid.UUID, multiplier decimal.Decimal, active bool) (*models.ShippingRate, error) {
	logger := s.loggerFromContext(ctx)

	if s.rates == nil {
		return nil, UserError{Message: "Shipping rates are loaded from a file and cannot be edited"}
	}
	if !multiplier.IsPositive() {
		return nil, UserError{Message: "Surge multiplier must be greater than zero"}
	}

	rate, err := s.rates.UpdateSurge(ctx, rateID, multiplier, active)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, ErrRateNotFound
		}
		return nil, fmt.Errorf("failed to update surge: %w", err)
	}

	if s.cache != nil {
		s.cache.Invalidate()
	}
	logger.Info("shipping surge updated", "rate_id", rateID, "multiplier", multiplier.String(), "active", active)
	return rate, nil
}
