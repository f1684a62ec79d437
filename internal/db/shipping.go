package db

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/ankarahouse/storefront/internal/models"
	"github.com/ankarahouse/storefront/internal/shipping"
)

// ShippingStore reads the administered rate table.
type ShippingStore struct {
	pool *pgxpool.Pool
}

func NewShippingStore(pool *pgxpool.Pool) *ShippingStore {
	return &ShippingStore{pool: pool}
}

// Table loads a consistent snapshot of zones, methods and rates.
func (s *ShippingStore) Table(ctx context.Context) (*shipping.Table, error) {
	tx, err := s.pool.BeginTx(ctx, pgxReadOnlySnapshot)
	if err != nil {
		return nil, fmt.Errorf("failed to begin snapshot: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	table := &shipping.Table{}

	zoneRows, err := tx.Query(ctx, `SELECT id, name, type, state, cities, is_active FROM shipping_zones ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("failed to load zones: %w", err)
	}
	for zoneRows.Next() {
		var (
			zone     models.ShippingZone
			zoneType string
			state    pgtype.Text
		)
		if err := zoneRows.Scan(&zone.ID, &zone.Name, &zoneType, &state, &zone.Cities, &zone.IsActive); err != nil {
			zoneRows.Close()
			return nil, fmt.Errorf("failed to scan zone: %w", err)
		}
		zone.Type = models.ZoneType(zoneType)
		zone.State = state.String
		table.Zones = append(table.Zones, zone)
	}
	zoneRows.Close()
	if err := zoneRows.Err(); err != nil {
		return nil, err
	}

	methodRows, err := tx.Query(ctx, `SELECT id, code, name, description, min_delivery_days, max_delivery_days, is_active FROM shipping_methods ORDER BY code`)
	if err != nil {
		return nil, fmt.Errorf("failed to load methods: %w", err)
	}
	for methodRows.Next() {
		var (
			method      models.ShippingMethod
			description pgtype.Text
		)
		if err := methodRows.Scan(&method.ID, &method.Code, &method.Name, &description, &method.MinDeliveryDays, &method.MaxDeliveryDays, &method.IsActive); err != nil {
			methodRows.Close()
			return nil, fmt.Errorf("failed to scan method: %w", err)
		}
		method.Description = description.String
		table.Methods = append(table.Methods, method)
	}
	methodRows.Close()
	if err := methodRows.Err(); err != nil {
		return nil, err
	}

	rateRows, err := tx.Query(ctx, `
		SELECT id, zone_id, method_id, base_rate, weight_rate, weight_threshold, free_shipping_threshold,
		       surge_multiplier, surge_active, is_active, updated_at
		FROM shipping_rates`)
	if err != nil {
		return nil, fmt.Errorf("failed to load rates: %w", err)
	}
	defer rateRows.Close()
	for rateRows.Next() {
		var rate models.ShippingRate
		if err := rateRows.Scan(&rate.ID, &rate.ZoneID, &rate.MethodID, &rate.BaseRate, &rate.WeightRate, &rate.WeightThreshold,
			&rate.FreeShippingThreshold, &rate.SurgeMultiplier, &rate.SurgeActive, &rate.IsActive, &rate.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan rate: %w", err)
		}
		table.Rates = append(table.Rates, rate)
	}
	if err := rateRows.Err(); err != nil {
		return nil, err
	}

	return table, nil
}

// UpdateSurge sets the surge override on one rate row.
func (s *ShippingStore) UpdateSurge(ctx context.Context, rateID uuid.UUID, multiplier decimal.Decimal, active bool) (*models.ShippingRate, error) {
	var rate models.ShippingRate
	err := s.pool.QueryRow(ctx, `
		UPDATE shipping_rates
		SET surge_multiplier = $2, surge_active = $3, updated_at = NOW()
		WHERE id = $1
		RETURNING id, zone_id, method_id, base_rate, weight_rate, weight_threshold, free_shipping_threshold,
		          surge_multiplier, surge_active, is_active, updated_at`,
		rateID, multiplier, active,
	).Scan(&rate.ID, &rate.ZoneID, &rate.MethodID, &rate.BaseRate, &rate.WeightRate, &rate.WeightThreshold,
		&rate.FreeShippingThreshold, &rate.SurgeMultiplier, &rate.SurgeActive, &rate.IsActive, &rate.UpdatedAt)
	if err != nil {
		return nil, notFound(err)
	}
	return &rate, nil
}
