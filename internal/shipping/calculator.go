package shipping

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/ankarahouse/storefront/internal/models"
)

// ErrRateUnavailable is wrapped by every lookup failure. Callers fall back
// to FallbackPolicy when errors.Is(err, ErrRateUnavailable).
var ErrRateUnavailable = errors.New("shipping rate unavailable")

var (
	ErrNoZone        = fmt.Errorf("%w: no zone covers destination", ErrRateUnavailable)
	ErrUnknownMethod = fmt.Errorf("%w: unknown shipping method", ErrRateUnavailable)
	ErrNoRate        = fmt.Errorf("%w: no active rate for zone and method", ErrRateUnavailable)
)

type Request struct {
	Subtotal         decimal.Decimal `json:"subtotal" validate:"-"`
	TotalWeightKg    decimal.Decimal `json:"total_weight" validate:"-"`
	DestinationState string          `json:"destination_state" validate:"required"`
	DestinationCity  string          `json:"destination_city"`
	MethodCode       string          `json:"method_code" validate:"required"`
}

// Calculate prices a delivery against a table snapshot. It has no side
// effects and returns the same quote for the same table and request.
func Calculate(table *Table, req Request) (models.ShippingQuote, error) {
	zone, ok := table.ResolveZone(req.DestinationState, req.DestinationCity)
	if !ok {
		return models.ShippingQuote{}, fmt.Errorf("%w (state=%q city=%q)", ErrNoZone, req.DestinationState, req.DestinationCity)
	}

	method, ok := table.Method(req.MethodCode)
	if !ok {
		return models.ShippingQuote{}, fmt.Errorf("%w (code=%q)", ErrUnknownMethod, req.MethodCode)
	}

	rate, ok := table.Rate(zone.ID, method.ID)
	if !ok {
		return models.ShippingQuote{}, fmt.Errorf("%w (zone=%q method=%q)", ErrNoRate, zone.Name, method.Code)
	}

	quote := models.ShippingQuote{
		ZoneName:     zone.Name,
		MethodName:   method.Name,
		DeliveryTime: DeliveryTime(method.MinDeliveryDays, method.MaxDeliveryDays),
	}

	if rate.FreeShippingThreshold.IsPositive() && req.Subtotal.GreaterThanOrEqual(rate.FreeShippingThreshold) {
		quote.CalculatedRate = decimal.Zero
		quote.IsFreeShipping = true
		return quote, nil
	}

	quote.CalculatedRate = models.RoundMoney(rawRate(rate, req.TotalWeightKg))
	return quote, nil
}

func rawRate(rate *models.ShippingRate, weightKg decimal.Decimal) decimal.Decimal {
	excess := decimal.Max(decimal.Zero, weightKg.Sub(rate.WeightThreshold))
	amount := rate.BaseRate.Add(excess.Mul(rate.WeightRate))
	if rate.SurgeActive && rate.SurgeMultiplier.IsPositive() {
		amount = amount.Mul(rate.SurgeMultiplier)
	}
	return amount
}

// DeliveryTime renders the method's delivery window.
func DeliveryTime(minDays, maxDays int) string {
	switch {
	case maxDays <= 0:
		return "Same day"
	case minDays == maxDays && maxDays == 1:
		return "1 business day"
	case minDays == maxDays:
		return fmt.Sprintf("%d business days", maxDays)
	default:
		return fmt.Sprintf("%d-%d business days", minDays, maxDays)
	}
}

// FallbackPolicy quotes a flat rate when the table cannot price a request.
// Orders at or above FreeAbove ship free; a zero FreeAbove disables that.
type FallbackPolicy struct {
	FlatRate  decimal.Decimal
	FreeAbove decimal.Decimal
}

func (p FallbackPolicy) Quote(subtotal decimal.Decimal) models.ShippingQuote {
	quote := models.ShippingQuote{
		ZoneName:     "Standard",
		MethodName:   "Standard Delivery",
		DeliveryTime: DeliveryTime(3, 7),
	}
	if p.FreeAbove.IsPositive() && subtotal.GreaterThanOrEqual(p.FreeAbove) {
		quote.CalculatedRate = decimal.Zero
		quote.IsFreeShipping = true
		return quote
	}
	quote.CalculatedRate = models.RoundMoney(p.FlatRate)
	return quote
}

// Source provides rate table snapshots.
type Source interface {
	Table(ctx context.Context) (*Table, error)
}

// Calculator quotes against the current snapshot from a Source.
type Calculator struct {
	source   Source
	fallback FallbackPolicy
}

func NewCalculator(source Source, fallback FallbackPolicy) *Calculator {
	return &Calculator{source: source, fallback: fallback}
}

// Quote returns a table quote, or the fallback quote with fellBack set when
// the table has no rate for the request. Source errors are returned as is.
func (c *Calculator) Quote(ctx context.Context, req Request) (quote models.ShippingQuote, fellBack bool, err error) {
	table, err := c.source.Table(ctx)
	if err != nil {
		return models.ShippingQuote{}, false, fmt.Errorf("failed to load rate table: %w", err)
	}

	quote, err = Calculate(table, req)
	if errors.Is(err, ErrRateUnavailable) {
		return c.fallback.Quote(req.Subtotal), true, nil
	}
	if err != nil {
		return models.ShippingQuote{}, false, err
	}
	return quote, false, nil
}

func (c *Calculator) Fallback(subtotal decimal.Decimal) models.ShippingQuote {
	return c.fallback.Quote(subtotal)
}
