// Package catalog prices requested cart lines against the live product catalog.
package catalog

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/ankarahouse/storefront/internal/models"
)

// ErrProductUnavailable marks a line whose product or variant is missing,
// inactive, or does not belong together.
var ErrProductUnavailable = errors.New("product unavailable")

type ProductReader interface {
	GetProduct(ctx context.Context, productID uuid.UUID) (*models.Product, error)
	GetVariant(ctx context.Context, variantID uuid.UUID) (*models.Variant, error)
}

type Pricer struct {
	products ProductReader
}

func NewPricer(products ProductReader) *Pricer {
	return &Pricer{products: products}
}

// PricedLine is an order item snapshot plus the shipping weight it contributes.
type PricedLine struct {
	Item     models.OrderItem
	WeightKg decimal.Decimal
}

// PriceLine re-reads the product (and variant) and snapshots the current
// price. Client supplied prices never reach this point.
func (p *Pricer) PriceLine(ctx context.Context, line models.CartLine) (PricedLine, error) {
	if line.Quantity < 1 {
		return PricedLine{}, fmt.Errorf("%w: quantity must be at least 1", ErrProductUnavailable)
	}

	product, err := p.products.GetProduct(ctx, line.ProductID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return PricedLine{}, fmt.Errorf("%w: product %s not found", ErrProductUnavailable, line.ProductID)
		}
		return PricedLine{}, fmt.Errorf("failed to load product %s: %w", line.ProductID, err)
	}
	if !product.IsActive {
		return PricedLine{}, fmt.Errorf("%w: product %s is not active", ErrProductUnavailable, line.ProductID)
	}

	var variant *models.Variant
	if line.VariantID != nil {
		variant, err = p.products.GetVariant(ctx, *line.VariantID)
		if err != nil {
			if errors.Is(err, models.ErrNotFound) {
				return PricedLine{}, fmt.Errorf("%w: variant %s not found", ErrProductUnavailable, *line.VariantID)
			}
			return PricedLine{}, fmt.Errorf("failed to load variant %s: %w", *line.VariantID, err)
		}
		if variant.ProductID != product.ID {
			return PricedLine{}, fmt.Errorf("%w: variant %s does not belong to product %s", ErrProductUnavailable, variant.ID, product.ID)
		}
		if !variant.IsActive {
			return PricedLine{}, fmt.Errorf("%w: variant %s is not active", ErrProductUnavailable, variant.ID)
		}
	}

	price := product.UnitPrice(variant)
	quantity := decimal.NewFromInt(int64(line.Quantity))
	item := models.OrderItem{
		ProductID:   product.ID,
		ProductName: product.Name,
		SKU:         product.SKU,
		Price:       price,
		Quantity:    line.Quantity,
		Total:       models.RoundMoney(price.Mul(quantity)),
	}
	if variant != nil {
		item.VariantID = &variant.ID
		item.VariantName = variant.Name
		if variant.SKU != "" {
			item.SKU = variant.SKU
		}
	}

	return PricedLine{Item: item, WeightKg: product.WeightKg.Mul(quantity)}, nil
}

// Quote is the result of pricing a whole cart.
type Quote struct {
	Items    []models.OrderItem
	Subtotal decimal.Decimal
	WeightKg decimal.Decimal
	Skipped  []models.CartLine
}

// PriceLines prices every line, skipping unavailable ones. Lookup failures
// other than unavailability abort the whole quote.
func (p *Pricer) PriceLines(ctx context.Context, lines []models.CartLine) (*Quote, error) {
	quote := &Quote{Subtotal: decimal.Zero, WeightKg: decimal.Zero}
	for _, line := range lines {
		priced, err := p.PriceLine(ctx, line)
		if err != nil {
			if errors.Is(err, ErrProductUnavailable) {
				quote.Skipped = append(quote.Skipped, line)
				continue
			}
			return nil, err
		}
		quote.Items = append(quote.Items, priced.Item)
		quote.Subtotal = quote.Subtotal.Add(priced.Item.Total)
		quote.WeightKg = quote.WeightKg.Add(priced.WeightKg)
	}
	return quote, nil
}
