package db

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
)

type CartStore struct {
	pool *pgxpool.Pool
}

func NewCartStore(pool *pgxpool.Pool) *CartStore {
	return &CartStore{pool: pool}
}

func (s *CartStore) List(ctx context.Context, ownerID uuid.UUID) ([]CartItem, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, owner_id, product_id, variant_id, quantity, created_at, updated_at
		FROM cart_items
		WHERE owner_id = $1
		ORDER BY created_at, id`, ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to list cart: %w", err)
	}
	defer rows.Close()

	var items []CartItem
	for rows.Next() {
		var (
			item      CartItem
			variantID pgtype.UUID
		)
		if err := rows.Scan(&item.ID, &item.OwnerID, &item.ProductID, &variantID, &item.Quantity, &item.CreatedAt, &item.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan cart item: %w", err)
		}
		item.VariantID = uuidFromPg(variantID)
		items = append(items, item)
	}
	return items, rows.Err()
}

// Upsert sets the quantity of a cart line, creating it when missing.
func (s *CartStore) Upsert(ctx context.Context, ownerID uuid.UUID, productID uuid.UUID, variantID *uuid.UUID, quantity int) (*CartItem, error) {
	item := CartItem{OwnerID: ownerID, ProductID: productID, VariantID: variantID, Quantity: quantity}
	err := s.pool.QueryRow(ctx, `
		INSERT INTO cart_items (owner_id, product_id, variant_id, quantity)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (owner_id, product_id, COALESCE(variant_id, '00000000-0000-0000-0000-000000000000'::uuid))
		DO UPDATE SET quantity = EXCLUDED.quantity, updated_at = NOW()
		RETURNING id, created_at, updated_at`,
		ownerID, productID, uuidParam(variantID), quantity,
	).Scan(&item.ID, &item.CreatedAt, &item.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to upsert cart item: %w", err)
	}
	return &item, nil
}

func (s *CartStore) Remove(ctx context.Context, ownerID, itemID uuid.UUID) error {
	cmdTag, err := s.pool.Exec(ctx, `DELETE FROM cart_items WHERE id = $1 AND owner_id = $2`, itemID, ownerID)
	if err != nil {
		return fmt.Errorf("failed to remove cart item: %w", err)
	}
	if cmdTag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// Clear empties the owner's cart.
func (s *CartStore) Clear(ctx context.Context, ownerID uuid.UUID) error {
	if _, err := s.pool.Exec(ctx, `DELETE FROM cart_items WHERE owner_id = $1`, ownerID); err != nil {
		return fmt.Errorf("failed to clear cart: %w", err)
	}
	return nil
}
