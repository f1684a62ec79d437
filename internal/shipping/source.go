package shipping

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"github.com/ankarahouse/storefront/internal/models"
)

var tableNamespace = uuid.MustParse("0c7a3f5e-1d1b-4f55-9a63-5f4f3c1f2b8e")

type fileTable struct {
	Zones   []models.ShippingZone   `yaml:"zones"`
	Methods []models.ShippingMethod `yaml:"methods"`
	Rates   []fileRate              `yaml:"rates"`
}

type fileRate struct {
	Zone                  string `yaml:"zone"`
	Method                string `yaml:"method"`
	BaseRate              string `yaml:"base_rate"`
	WeightRate            string `yaml:"weight_rate"`
	WeightThreshold       string `yaml:"weight_threshold"`
	FreeShippingThreshold string `yaml:"free_shipping_threshold"`
	SurgeMultiplier       string `yaml:"surge_multiplier"`
	SurgeActive           bool   `yaml:"surge_active"`
	Active                *bool  `yaml:"active"`
}

// ParseTable decodes a YAML rate table. Rates reference zones by name and
// methods by code; ids are derived from those names so they stay stable
// across reloads.
func ParseTable(content []byte) (*Table, error) {
	var raw fileTable
	if err := yaml.Unmarshal(content, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse rate table: %w", err)
	}

	table := &Table{
		Zones:   raw.Zones,
		Methods: raw.Methods,
		Rates:   make([]models.ShippingRate, 0, len(raw.Rates)),
	}

	zoneIDs := make(map[string]uuid.UUID, len(table.Zones))
	for i := range table.Zones {
		zone := &table.Zones[i]
		if strings.TrimSpace(zone.Name) == "" {
			return nil, fmt.Errorf("zone %d: name is required", i)
		}
		zoneType, err := models.ParseZoneType(string(zone.Type))
		if err != nil {
			return nil, fmt.Errorf("zone %q: %w", zone.Name, err)
		}
		if zoneType != models.ZoneNational && strings.TrimSpace(zone.State) == "" {
			return nil, fmt.Errorf("zone %q: state is required for %s zones", zone.Name, zoneType)
		}
		if _, dup := zoneIDs[zone.Name]; dup {
			return nil, fmt.Errorf("zone %q is declared twice", zone.Name)
		}
		zone.Type = zoneType
		zone.ID = uuid.NewSHA1(tableNamespace, []byte("zone:"+zone.Name))
		zoneIDs[zone.Name] = zone.ID
	}

	methodIDs := make(map[string]uuid.UUID, len(table.Methods))
	for i := range table.Methods {
		method := &table.Methods[i]
		code := strings.ToLower(strings.TrimSpace(method.Code))
		if code == "" {
			return nil, fmt.Errorf("method %d: code is required", i)
		}
		if method.MinDeliveryDays < 0 || method.MaxDeliveryDays < method.MinDeliveryDays {
			return nil, fmt.Errorf("method %q: invalid delivery window %d-%d", code, method.MinDeliveryDays, method.MaxDeliveryDays)
		}
		method.Code = code
		method.ID = uuid.NewSHA1(tableNamespace, []byte("method:"+code))
		methodIDs[code] = method.ID
	}

	for i, r := range raw.Rates {
		zoneID, ok := zoneIDs[r.Zone]
		if !ok {
			return nil, fmt.Errorf("rate %d: unknown zone %q", i, r.Zone)
		}
		methodCode := strings.ToLower(strings.TrimSpace(r.Method))
		methodID, ok := methodIDs[methodCode]
		if !ok {
			return nil, fmt.Errorf("rate %d: unknown method %q", i, r.Method)
		}

		rate := models.ShippingRate{
			ID:          uuid.NewSHA1(tableNamespace, []byte(fmt.Sprintf("rate:%s:%s:%d", r.Zone, methodCode, i))),
			ZoneID:      zoneID,
			MethodID:    methodID,
			SurgeActive: r.SurgeActive,
			IsActive:    r.Active == nil || *r.Active,
		}
		fields := []struct {
			name  string
			value string
			dest  *decimal.Decimal
			def   decimal.Decimal
		}{
			{"base_rate", r.BaseRate, &rate.BaseRate, decimal.Zero},
			{"weight_rate", r.WeightRate, &rate.WeightRate, decimal.Zero},
			{"weight_threshold", r.WeightThreshold, &rate.WeightThreshold, decimal.Zero},
			{"free_shipping_threshold", r.FreeShippingThreshold, &rate.FreeShippingThreshold, decimal.Zero},
			{"surge_multiplier", r.SurgeMultiplier, &rate.SurgeMultiplier, decimal.NewFromInt(1)},
		}
		for _, f := range fields {
			if strings.TrimSpace(f.value) == "" {
				*f.dest = f.def
				continue
			}
			parsed, err := decimal.NewFromString(strings.TrimSpace(f.value))
			if err != nil {
				return nil, fmt.Errorf("rate %d: invalid %s %q: %w", i, f.name, f.value, err)
			}
			if parsed.IsNegative() {
				return nil, fmt.Errorf("rate %d: %s must not be negative", i, f.name)
			}
			*f.dest = parsed
		}
		table.Rates = append(table.Rates, rate)
	}

	return table, nil
}

// FileSource serves a rate table read from a YAML file.
type FileSource struct {
	path string
}

func NewFileSource(path string) *FileSource {
	return &FileSource{path: path}
}

func (s *FileSource) Table(_ context.Context) (*Table, error) {
	content, err := os.ReadFile(s.path)
	if err != nil {
		return nil, fmt.Errorf("failed to read rate table %s: %w", s.path, err)
	}
	return ParseTable(content)
}

const snapshotKey = "rate-table"

// CachedSource keeps the latest snapshot of another Source for ttl.
type CachedSource struct {
	next  Source
	cache *expirable.LRU[string, *Table]
}

func NewCachedSource(next Source, ttl time.Duration) *CachedSource {
	return &CachedSource{
		next:  next,
		cache: expirable.NewLRU[string, *Table](1, nil, ttl),
	}
}

func (s *CachedSource) Table(ctx context.Context) (*Table, error) {
	if table, ok := s.cache.Get(snapshotKey); ok {
		return table, nil
	}
	table, err := s.next.Table(ctx)
	if err != nil {
		return nil, err
	}
	s.cache.Add(snapshotKey, table)
	return table, nil
}

// Invalidate drops the cached snapshot so the next read reloads it.
func (s *CachedSource) Invalidate() {
	s.cache.Remove(snapshotKey)
}
