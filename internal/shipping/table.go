// Package shipping prices deliveries from an administered rate table.
package shipping

import (
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/ankarahouse/storefront/internal/models"
)

// Table is an immutable snapshot of zones, methods and rates.
type Table struct {
	Zones   []models.ShippingZone   `json:"zones"`
	Methods []models.ShippingMethod `json:"methods"`
	Rates   []models.ShippingRate   `json:"rates"`
}

// NormalizeRegion lowercases, trims and drops a trailing "state" so that
// "Lagos State", "lagos" and " LAGOS " compare equal.
func NormalizeRegion(value string) string {
	normalized := strings.Join(strings.Fields(strings.ToLower(value)), " ")
	normalized = strings.TrimSuffix(normalized, " state")
	return strings.TrimSpace(normalized)
}

// ResolveZone picks the most specific active zone for the destination:
// a local zone listing the city inside the state, then a state zone, then a
// national zone. Zones of the same tier are tried in name order.
func (t *Table) ResolveZone(state, city string) (*models.ShippingZone, bool) {
	if t == nil {
		return nil, false
	}

	wantState := NormalizeRegion(state)
	wantCity := NormalizeRegion(city)

	var local, regional, national []*models.ShippingZone
	for i := range t.Zones {
		zone := &t.Zones[i]
		if !zone.IsActive {
			continue
		}
		switch zone.Type {
		case models.ZoneLocal:
			if wantCity != "" && wantState != "" && NormalizeRegion(zone.State) == wantState && zoneCoversCity(zone, wantCity) {
				local = append(local, zone)
			}
		case models.ZoneState:
			if wantState != "" && NormalizeRegion(zone.State) == wantState {
				regional = append(regional, zone)
			}
		case models.ZoneNational:
			national = append(national, zone)
		}
	}

	for _, tier := range [][]*models.ShippingZone{local, regional, national} {
		if len(tier) == 0 {
			continue
		}
		sort.Slice(tier, func(i, j int) bool { return tier[i].Name < tier[j].Name })
		return tier[0], true
	}
	return nil, false
}

func zoneCoversCity(zone *models.ShippingZone, city string) bool {
	for _, candidate := range zone.Cities {
		if NormalizeRegion(candidate) == city {
			return true
		}
	}
	return false
}

// Method returns the active method with the given code.
func (t *Table) Method(code string) (*models.ShippingMethod, bool) {
	if t == nil {
		return nil, false
	}
	want := strings.ToLower(strings.TrimSpace(code))
	for i := range t.Methods {
		method := &t.Methods[i]
		if method.IsActive && strings.ToLower(method.Code) == want {
			return method, true
		}
	}
	return nil, false
}

// Rate returns the active rate for the zone and method. When several active
// rows exist for the pair the most recently updated wins, ties going to the
// lowest id.
func (t *Table) Rate(zoneID, methodID uuid.UUID) (*models.ShippingRate, bool) {
	if t == nil {
		return nil, false
	}
	var best *models.ShippingRate
	for i := range t.Rates {
		rate := &t.Rates[i]
		if !rate.IsActive || rate.ZoneID != zoneID || rate.MethodID != methodID {
			continue
		}
		if best == nil || rate.UpdatedAt.After(best.UpdatedAt) ||
			(rate.UpdatedAt.Equal(best.UpdatedAt) && rate.ID.String() < best.ID.String()) {
			best = rate
		}
	}
	return best, best != nil
}
