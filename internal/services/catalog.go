package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/ankarahouse/storefront/internal/catalog"
	"github.com/ankarahouse/storefront/internal/db"
	"github.com/ankarahouse/storefront/internal/logging"
	"github.com/ankarahouse/storefront/internal/models"
)

type CatalogService struct {
	products productStore
}

func NewCatalogService(products productStore) *CatalogService {
	return &CatalogService{products: products}
}

func (s *CatalogService) ListProducts(ctx context.Context, filter db.ProductFilter) ([]*models.Product, error) {
	products, err := s.products.ListActive(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to list products: %w", err)
	}
	return products, nil
}

// GetProduct returns an active product by slug with its active variants.
func (s *CatalogService) GetProduct(ctx context.Context, slug string) (*models.Product, error) {
	slug = strings.ToLower(strings.TrimSpace(slug))
	if slug == "" {
		return nil, ErrProductNotFound
	}
	product, err := s.products.GetBySlug(ctx, slug)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, ErrProductNotFound
		}
		return nil, fmt.Errorf("failed to load product: %w", err)
	}
	if !product.IsActive {
		return nil, ErrProductNotFound
	}

	active := product.Variants[:0:0]
	for _, v := range product.Variants {
		if v.IsActive {
			active = append(active, v)
		}
	}
	product.Variants = active
	return product, nil
}

type CartService struct {
	carts  cartStore
	pricer linePricer
	logger *slog.Logger
}

func NewCartService(carts cartStore, pricer linePricer, logger *slog.Logger) *CartService {
	return &CartService{
		carts:  carts,
		pricer: pricer,
		logger: logger,
	}
}

// Cart is the owner's stored cart priced at current catalog prices.
type Cart struct {
	Items       []models.CartItem  `json:"items"`
	Lines       []models.OrderItem `json:"lines"`
	Subtotal    decimal.Decimal    `json:"subtotal"`
	WeightKg    decimal.Decimal    `json:"total_weight"`
	Unavailable int                `json:"unavailable"`
}

func (s *CartService) Get(ctx context.Context, ownerID uuid.UUID) (*Cart, error) {
	items, err := s.carts.List(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to load cart: %w", err)
	}

	lines := make([]models.CartLine, 0, len(items))
	for _, item := range items {
		lines = append(lines, item.Line())
	}
	quote, err := s.pricer.PriceLines(ctx, lines)
	if err != nil {
		return nil, fmt.Errorf("failed to price cart: %w", err)
	}

	if items == nil {
		items = []models.CartItem{}
	}
	return &Cart{
		Items:       items,
		Lines:       quote.Items,
		Subtotal:    quote.Subtotal,
		WeightKg:    quote.WeightKg,
		Unavailable: len(quote.Skipped),
	}, nil
}

// SetItem stores the quantity for a product/variant pair in the cart.
func (s *CartService) SetItem(ctx context.Context, ownerID uuid.UUID, line models.CartLine) (*models.CartItem, error) {
	if line.Quantity < 1 || line.Quantity > 100 {
		return nil, UserError{Message: "Quantity must be between 1 and 100"}
	}
	if _, err := s.pricer.PriceLine(ctx, line); err != nil {
		if errors.Is(err, catalog.ErrProductUnavailable) {
			return nil, ErrProductNotFound
		}
		return nil, fmt.Errorf("failed to check product: %w", err)
	}

	item, err := s.carts.Upsert(ctx, ownerID, line.ProductID, line.VariantID, line.Quantity)
	if err != nil {
		return nil, err
	}
	logging.FromContext(ctx, s.logger).Debug("cart item stored", "owner_id", ownerID, "product_id", line.ProductID, "quantity", line.Quantity)
	return item, nil
}

func (s *CartService) RemoveItem(ctx context.Context, ownerID, itemID uuid.UUID) error {
	if err := s.carts.Remove(ctx, ownerID, itemID); err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return ErrCartItemNotFound
		}
		return err
	}
	return nil
}
