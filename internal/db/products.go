package db

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
)

const productColumns = `id, name, slug, description, sku, price, weight_kg, is_active, created_at, updated_at`

const variantColumns = `id, product_id, name, sku, price, stock_quantity, is_active`

type ProductStore struct {
	pool *pgxpool.Pool
}

func NewProductStore(pool *pgxpool.Pool) *ProductStore {
	return &ProductStore{pool: pool}
}

func (s *ProductStore) GetProduct(ctx context.Context, productID uuid.UUID) (*Product, error) {
	product, err := scanProduct(s.pool.QueryRow(ctx, `SELECT `+productColumns+` FROM products WHERE id = $1`, productID))
	if err != nil {
		return nil, notFound(err)
	}
	return product, nil
}

func (s *ProductStore) GetVariant(ctx context.Context, variantID uuid.UUID) (*Variant, error) {
	variant, err := scanVariant(s.pool.QueryRow(ctx, `SELECT `+variantColumns+` FROM product_variants WHERE id = $1`, variantID))
	if err != nil {
		return nil, notFound(err)
	}
	return variant, nil
}

// GetBySlug returns an active product with its active variants.
func (s *ProductStore) GetBySlug(ctx context.Context, slug string) (*Product, error) {
	product, err := scanProduct(s.pool.QueryRow(ctx, `SELECT `+productColumns+` FROM products WHERE slug = $1 AND is_active`, strings.ToLower(slug)))
	if err != nil {
		return nil, notFound(err)
	}

	rows, err := s.pool.Query(ctx, `SELECT `+variantColumns+` FROM product_variants WHERE product_id = $1 AND is_active ORDER BY name`, product.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to load variants: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		variant, err := scanVariant(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan variant: %w", err)
		}
		product.Variants = append(product.Variants, *variant)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return product, nil
}

type ProductFilter struct {
	Search string
	Limit  int
	Offset int
}

// ListActive pages through active products by name.
func (s *ProductStore) ListActive(ctx context.Context, filter ProductFilter) ([]*Product, error) {
	limit := filter.Limit
	if limit <= 0 || limit > 100 {
		limit = 24
	}
	q := psql.Select(productColumns).From("products").Where("is_active")
	if search := strings.TrimSpace(filter.Search); search != "" {
		q = q.Where(`name ILIKE ?`, "%"+escapeLike(search)+"%")
	}
	query, args, err := q.OrderBy("name", "id").Limit(uint64(limit)).Offset(uint64(max(filter.Offset, 0))).ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build product query: %w", err)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list products: %w", err)
	}
	defer rows.Close()

	var products []*Product
	for rows.Next() {
		product, err := scanProduct(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan product: %w", err)
		}
		products = append(products, product)
	}
	return products, rows.Err()
}

func scanProduct(row pgx.Row) (*Product, error) {
	var (
		p           Product
		description pgtype.Text
		sku         pgtype.Text
	)
	if err := row.Scan(&p.ID, &p.Name, &p.Slug, &description, &sku, &p.Price, &p.WeightKg, &p.IsActive, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return nil, err
	}
	p.Description = description.String
	p.SKU = sku.String
	return &p, nil
}

func scanVariant(row pgx.Row) (*Variant, error) {
	var (
		v   Variant
		sku pgtype.Text
	)
	if err := row.Scan(&v.ID, &v.ProductID, &v.Name, &sku, &v.Price, &v.StockQuantity, &v.IsActive); err != nil {
		return nil, err
	}
	v.SKU = sku.String
	return &v, nil
}
