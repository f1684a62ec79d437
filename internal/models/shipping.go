package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type ZoneType string

const (
	ZoneLocal    ZoneType = "local"
	ZoneState    ZoneType = "state"
	ZoneNational ZoneType = "national"
)

func ParseZoneType(value string) (ZoneType, error) {
	switch zt := ZoneType(strings.ToLower(strings.TrimSpace(value))); zt {
	case ZoneLocal, ZoneState, ZoneNational:
		return zt, nil
	default:
		return "", fmt.Errorf("%w: zone type %q", ErrUnknownStatus, value)
	}
}

// ShippingZone is a delivery area. Local zones list the cities or LGAs they
// cover inside State; state zones cover a whole state; national zones apply
// everywhere else.
type ShippingZone struct {
	ID       uuid.UUID `json:"id" yaml:"-"`
	Name     string    `json:"name" yaml:"name"`
	Type     ZoneType  `json:"type" yaml:"type"`
	State    string    `json:"state,omitempty" yaml:"state"`
	Cities   []string  `json:"cities,omitempty" yaml:"cities"`
	IsActive bool      `json:"is_active" yaml:"active"`
}

type ShippingMethod struct {
	ID              uuid.UUID `json:"id" yaml:"-"`
	Code            string    `json:"code" yaml:"code"`
	Name            string    `json:"name" yaml:"name"`
	Description     string    `json:"description,omitempty" yaml:"description"`
	MinDeliveryDays int       `json:"min_delivery_days" yaml:"min_days"`
	MaxDeliveryDays int       `json:"max_delivery_days" yaml:"max_days"`
	IsActive        bool      `json:"is_active" yaml:"active"`
}

// ShippingRate prices one method inside one zone.
type ShippingRate struct {
	ID                    uuid.UUID       `json:"id"`
	ZoneID                uuid.UUID       `json:"zone_id"`
	MethodID              uuid.UUID       `json:"method_id"`
	BaseRate              decimal.Decimal `json:"base_rate"`
	WeightRate            decimal.Decimal `json:"weight_rate"`
	WeightThreshold       decimal.Decimal `json:"weight_threshold"`
	FreeShippingThreshold decimal.Decimal `json:"free_shipping_threshold"`
	SurgeMultiplier       decimal.Decimal `json:"surge_multiplier"`
	SurgeActive           bool            `json:"surge_active"`
	IsActive              bool            `json:"is_active"`
	UpdatedAt             time.Time       `json:"updated_at"`
}

type ShippingQuote struct {
	ZoneName       string          `json:"zone_name"`
	MethodName     string          `json:"method_name"`
	CalculatedRate decimal.Decimal `json:"calculated_rate"`
	IsFreeShipping bool            `json:"is_free_shipping"`
	DeliveryTime   string          `json:"delivery_time"`
}
