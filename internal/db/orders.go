package db

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/ankarahouse/storefront/internal/models"
)

var ErrDuplicateOrderNumber = errors.New("order number already exists")

const orderColumns = `id, order_number, owner_id, email, subtotal, tax_amount, shipping_amount,
	discount_amount, total_amount, shipping_address, billing_address, shipping_zone, shipping_method,
	status, payment_status, payment_reference, tracking_number, carrier, notes, shipped_at,
	delivered_at, created_at, updated_at`

const orderItemColumns = `id, order_id, product_id, variant_id, product_name, variant_name, sku, price, quantity, total`

const maxOrderPageSize = 200

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

type OrderStore struct {
	pool *pgxpool.Pool
	now  func() time.Time
}

func NewOrderStore(pool *pgxpool.Pool) *OrderStore {
	return &OrderStore{pool: pool, now: time.Now}
}

// Create inserts the order and its items in one transaction and decrements
// variant stock, floored at zero. The order's id and timestamps are filled in.
func (s *OrderStore) Create(ctx context.Context, order *Order) error {
	if order == nil {
		return fmt.Errorf("order is required")
	}
	if len(order.Items) == 0 {
		return fmt.Errorf("order has no items")
	}

	shippingJSON, err := json.Marshal(order.ShippingAddress)
	if err != nil {
		return fmt.Errorf("failed to encode shipping address: %w", err)
	}
	billingJSON, err := json.Marshal(order.BillingAddress)
	if err != nil {
		return fmt.Errorf("failed to encode billing address: %w", err)
	}

	return withTx(ctx, s.pool, func(tx pgx.Tx) error {
		err := tx.QueryRow(ctx, `
			INSERT INTO orders (
				order_number, owner_id, email, subtotal, tax_amount, shipping_amount, discount_amount,
				total_amount, shipping_address, billing_address, shipping_zone, shipping_method,
				status, payment_status, notes
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
			RETURNING id, created_at, updated_at`,
			order.OrderNumber,
			uuidParam(order.OwnerID),
			order.Email,
			order.Subtotal,
			order.TaxAmount,
			order.ShippingAmount,
			order.DiscountAmount,
			order.TotalAmount,
			shippingJSON,
			billingJSON,
			textParam(order.ShippingZone),
			textParam(order.ShippingMethod),
			string(order.Status),
			string(order.PaymentStatus),
			textParam(order.Notes),
		).Scan(&order.ID, &order.CreatedAt, &order.UpdatedAt)
		if err != nil {
			if isUniqueViolation(err, "orders_order_number_key") {
				return fmt.Errorf("%w: %s", ErrDuplicateOrderNumber, order.OrderNumber)
			}
			return fmt.Errorf("failed to insert order: %w", err)
		}

		for i := range order.Items {
			item := &order.Items[i]
			item.OrderID = order.ID
			err := tx.QueryRow(ctx, `
				INSERT INTO order_items (order_id, product_id, variant_id, product_name, variant_name, sku, price, quantity, total)
				VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
				RETURNING id`,
				order.ID,
				item.ProductID,
				uuidParam(item.VariantID),
				item.ProductName,
				textParam(item.VariantName),
				textParam(item.SKU),
				item.Price,
				item.Quantity,
				item.Total,
			).Scan(&item.ID)
			if err != nil {
				return fmt.Errorf("failed to insert order item %d: %w", i, err)
			}

			if item.VariantID != nil {
				if _, err := tx.Exec(ctx, `
					UPDATE product_variants
					SET stock_quantity = GREATEST(stock_quantity - $2, 0)
					WHERE id = $1`, *item.VariantID, item.Quantity); err != nil {
					return fmt.Errorf("failed to decrement stock: %w", err)
				}
			}
		}
		return nil
	})
}

func (s *OrderStore) GetByID(ctx context.Context, orderID uuid.UUID) (*Order, error) {
	order, err := scanOrder(s.pool.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1`, orderID))
	if err != nil {
		return nil, notFound(err)
	}
	if err := s.loadItems(ctx, s.pool, []*Order{order}); err != nil {
		return nil, err
	}
	return order, nil
}

func (s *OrderStore) GetByPaymentReference(ctx context.Context, reference string) (*Order, error) {
	order, err := scanOrder(s.pool.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE payment_reference = $1`, reference))
	if err != nil {
		return nil, notFound(err)
	}
	if err := s.loadItems(ctx, s.pool, []*Order{order}); err != nil {
		return nil, err
	}
	return order, nil
}

// OrderFilter narrows the fulfillment order list. Zero values are ignored.
type OrderFilter struct {
	OwnerID       *uuid.UUID
	Status        OrderStatus
	PaymentStatus PaymentStatus
	CreatedFrom   time.Time
	CreatedTo     time.Time
	Search        string
	Limit         int
	Offset        int
}

func (f OrderFilter) apply(q sq.SelectBuilder) sq.SelectBuilder {
	if f.OwnerID != nil {
		q = q.Where(sq.Eq{"owner_id": *f.OwnerID})
	}
	if f.Status != "" {
		q = q.Where(sq.Eq{"status": string(f.Status)})
	}
	if f.PaymentStatus != "" {
		q = q.Where(sq.Eq{"payment_status": string(f.PaymentStatus)})
	}
	if !f.CreatedFrom.IsZero() {
		q = q.Where(sq.GtOrEq{"created_at": f.CreatedFrom})
	}
	if !f.CreatedTo.IsZero() {
		q = q.Where(sq.Lt{"created_at": f.CreatedTo})
	}
	if search := strings.TrimSpace(f.Search); search != "" {
		pattern := "%" + escapeLike(search) + "%"
		q = q.Where(sq.Or{
			sq.ILike{"order_number": pattern},
			sq.ILike{"email": pattern},
		})
	}
	return q
}

// List returns one page of orders, newest first, with the total match count.
func (s *OrderStore) List(ctx context.Context, filter OrderFilter) ([]*Order, int, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}
	if limit > maxOrderPageSize {
		limit = maxOrderPageSize
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}

	countSQL, countArgs, err := filter.apply(psql.Select("COUNT(*)").From("orders")).ToSql()
	if err != nil {
		return nil, 0, fmt.Errorf("failed to build count query: %w", err)
	}
	var total int
	if err := s.pool.QueryRow(ctx, countSQL, countArgs...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count orders: %w", err)
	}

	listSQL, listArgs, err := filter.apply(psql.Select(orderColumns).From("orders")).
		OrderBy("created_at DESC", "id").
		Limit(uint64(limit)).
		Offset(uint64(offset)).
		ToSql()
	if err != nil {
		return nil, 0, fmt.Errorf("failed to build list query: %w", err)
	}

	rows, err := s.pool.Query(ctx, listSQL, listArgs...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list orders: %w", err)
	}
	orders, err := collectOrders(rows)
	if err != nil {
		return nil, 0, err
	}
	if err := s.loadItems(ctx, s.pool, orders); err != nil {
		return nil, 0, err
	}
	return orders, total, nil
}

func (s *OrderStore) SetPaymentReference(ctx context.Context, orderID uuid.UUID, reference string) error {
	cmdTag, err := s.pool.Exec(ctx, `
		UPDATE orders
		SET payment_reference = $2, updated_at = NOW()
		WHERE id = $1 AND payment_status IN ('pending', 'failed')`, orderID, reference)
	if err != nil {
		return err
	}
	if cmdTag.RowsAffected() == 0 {
		return fmt.Errorf("%w: expected pending/failed payment", ErrInvalidStatusTransition)
	}
	return nil
}

// UpdateStatus applies the status machine to one order under a row lock.
func (s *OrderStore) UpdateStatus(ctx context.Context, orderID uuid.UUID, status OrderStatus) (*Order, error) {
	return s.mutate(ctx, orderID, func(order *Order, now time.Time) error {
		return order.TransitionTo(status, now)
	})
}

// BulkUpdateStatus transitions every order in ids inside one transaction.
// A missing id or a rejected transition rolls the whole batch back.
func (s *OrderStore) BulkUpdateStatus(ctx context.Context, ids []uuid.UUID, status OrderStatus) ([]*Order, error) {
	unique := dedupeIDs(ids)
	if len(unique) == 0 {
		return nil, nil
	}

	var updated []*Order
	err := withTx(ctx, s.pool, func(tx pgx.Tx) error {
		params := make([]string, len(unique))
		for i, id := range unique {
			params[i] = id.String()
		}
		rows, err := tx.Query(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = ANY($1::uuid[]) ORDER BY id FOR UPDATE`, params)
		if err != nil {
			return fmt.Errorf("failed to lock orders: %w", err)
		}
		orders, err := collectOrders(rows)
		if err != nil {
			return err
		}
		if len(orders) != len(unique) {
			return fmt.Errorf("%w: %s", ErrNotFound, missingIDs(unique, orders))
		}

		now := s.now()
		for _, order := range orders {
			if err := order.TransitionTo(status, now); err != nil {
				return fmt.Errorf("order %s: %w", order.OrderNumber, err)
			}
			if err := writeOrderState(ctx, tx, order); err != nil {
				return err
			}
		}
		updated = orders
		return nil
	})
	if err != nil {
		return nil, err
	}
	if err := s.loadItems(ctx, s.pool, updated); err != nil {
		return nil, err
	}
	return updated, nil
}

// UpdatePaymentStatus moves the payment axis. When allowedFrom is not empty
// the current payment status must be one of them.
func (s *OrderStore) UpdatePaymentStatus(ctx context.Context, orderID uuid.UUID, status PaymentStatus, allowedFrom ...PaymentStatus) (*Order, error) {
	return s.mutate(ctx, orderID, func(order *Order, now time.Time) error {
		if len(allowedFrom) > 0 && !containsPaymentStatus(allowedFrom, order.PaymentStatus) {
			return fmt.Errorf("%w: payment is %s", ErrInvalidStatusTransition, order.PaymentStatus)
		}
		return order.SetPaymentStatus(status, now)
	})
}

func (s *OrderStore) UpdateTracking(ctx context.Context, orderID uuid.UUID, trackingNumber, carrier string) (*Order, error) {
	return s.mutate(ctx, orderID, func(order *Order, now time.Time) error {
		order.TrackingNumber = trackingNumber
		order.Carrier = carrier
		order.UpdatedAt = now.UTC()
		return nil
	})
}

func (s *OrderStore) UpdateNotes(ctx context.Context, orderID uuid.UUID, notes string) (*Order, error) {
	return s.mutate(ctx, orderID, func(order *Order, now time.Time) error {
		order.Notes = notes
		order.UpdatedAt = now.UTC()
		return nil
	})
}

func (s *OrderStore) mutate(ctx context.Context, orderID uuid.UUID, fn func(order *Order, now time.Time) error) (*Order, error) {
	var order *Order
	err := withTx(ctx, s.pool, func(tx pgx.Tx) error {
		locked, err := scanOrder(tx.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1 FOR UPDATE`, orderID))
		if err != nil {
			return notFound(err)
		}
		if err := fn(locked, s.now()); err != nil {
			return err
		}
		if err := writeOrderState(ctx, tx, locked); err != nil {
			return err
		}
		order = locked
		return nil
	})
	if err != nil {
		return nil, err
	}
	if err := s.loadItems(ctx, s.pool, []*Order{order}); err != nil {
		return nil, err
	}
	return order, nil
}

func writeOrderState(ctx context.Context, tx pgx.Tx, order *Order) error {
	_, err := tx.Exec(ctx, `
		UPDATE orders
		SET status = $2, payment_status = $3, payment_reference = $4, tracking_number = $5,
		    carrier = $6, notes = $7, shipped_at = $8, delivered_at = $9, updated_at = $10
		WHERE id = $1`,
		order.ID,
		string(order.Status),
		string(order.PaymentStatus),
		textParam(order.PaymentReference),
		textParam(order.TrackingNumber),
		textParam(order.Carrier),
		textParam(order.Notes),
		timeParam(order.ShippedAt),
		timeParam(order.DeliveredAt),
		order.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to update order %s: %w", order.ID, err)
	}
	return nil
}

type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

func (s *OrderStore) loadItems(ctx context.Context, q querier, orders []*Order) error {
	if len(orders) == 0 {
		return nil
	}
	byID := make(map[uuid.UUID]*Order, len(orders))
	ids := make([]string, 0, len(orders))
	for _, order := range orders {
		byID[order.ID] = order
		order.Items = nil
		ids = append(ids, order.ID.String())
	}

	rows, err := q.Query(ctx, `SELECT `+orderItemColumns+` FROM order_items WHERE order_id = ANY($1::uuid[]) ORDER BY product_name, id`, ids)
	if err != nil {
		return fmt.Errorf("failed to load order items: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			item        OrderItem
			variantID   pgtype.UUID
			variantName pgtype.Text
			sku         pgtype.Text
		)
		if err := rows.Scan(&item.ID, &item.OrderID, &item.ProductID, &variantID, &item.ProductName, &variantName, &sku, &item.Price, &item.Quantity, &item.Total); err != nil {
			return fmt.Errorf("failed to scan order item: %w", err)
		}
		item.VariantID = uuidFromPg(variantID)
		item.VariantName = variantName.String
		item.SKU = sku.String
		if order, ok := byID[item.OrderID]; ok {
			order.Items = append(order.Items, item)
		}
	}
	return rows.Err()
}

type orderRow struct {
	ID               uuid.UUID
	OrderNumber      string
	OwnerID          pgtype.UUID
	Email            string
	Subtotal         decimal.Decimal
	TaxAmount        decimal.Decimal
	ShippingAmount   decimal.Decimal
	DiscountAmount   decimal.Decimal
	TotalAmount      decimal.Decimal
	ShippingAddress  []byte
	BillingAddress   []byte
	ShippingZone     pgtype.Text
	ShippingMethod   pgtype.Text
	Status           string
	PaymentStatus    string
	PaymentReference pgtype.Text
	TrackingNumber   pgtype.Text
	Carrier          pgtype.Text
	Notes            pgtype.Text
	ShippedAt        pgtype.Timestamptz
	DeliveredAt      pgtype.Timestamptz
	CreatedAt        pgtype.Timestamptz
	UpdatedAt        pgtype.Timestamptz
}

func scanOrder(row pgx.Row) (*Order, error) {
	var r orderRow
	err := row.Scan(
		&r.ID, &r.OrderNumber, &r.OwnerID, &r.Email, &r.Subtotal, &r.TaxAmount, &r.ShippingAmount,
		&r.DiscountAmount, &r.TotalAmount, &r.ShippingAddress, &r.BillingAddress, &r.ShippingZone, &r.ShippingMethod,
		&r.Status, &r.PaymentStatus, &r.PaymentReference, &r.TrackingNumber, &r.Carrier, &r.Notes, &r.ShippedAt,
		&r.DeliveredAt, &r.CreatedAt, &r.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return r.toOrder()
}

func collectOrders(rows pgx.Rows) ([]*Order, error) {
	defer rows.Close()
	var orders []*Order
	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan order: %w", err)
		}
		orders = append(orders, order)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return orders, nil
}

func (r orderRow) toOrder() (*Order, error) {
	order := &Order{
		ID:               r.ID,
		OrderNumber:      r.OrderNumber,
		OwnerID:          uuidFromPg(r.OwnerID),
		Email:            r.Email,
		Subtotal:         r.Subtotal,
		TaxAmount:        r.TaxAmount,
		ShippingAmount:   r.ShippingAmount,
		DiscountAmount:   r.DiscountAmount,
		TotalAmount:      r.TotalAmount,
		ShippingZone:     r.ShippingZone.String,
		ShippingMethod:   r.ShippingMethod.String,
		Status:           models.OrderStatus(r.Status),
		PaymentStatus:    models.PaymentStatus(r.PaymentStatus),
		PaymentReference: r.PaymentReference.String,
		TrackingNumber:   r.TrackingNumber.String,
		Carrier:          r.Carrier.String,
		Notes:            r.Notes.String,
		ShippedAt:        timeFromPg(r.ShippedAt),
		DeliveredAt:      timeFromPg(r.DeliveredAt),
		CreatedAt:        r.CreatedAt.Time,
		UpdatedAt:        r.UpdatedAt.Time,
	}

	if len(r.ShippingAddress) > 0 {
		if err := json.Unmarshal(r.ShippingAddress, &order.ShippingAddress); err != nil {
			return nil, fmt.Errorf("failed to decode shipping address: %w", err)
		}
	}
	if len(r.BillingAddress) > 0 {
		if err := json.Unmarshal(r.BillingAddress, &order.BillingAddress); err != nil {
			return nil, fmt.Errorf("failed to decode billing address: %w", err)
		}
	}
	return order, nil
}

func dedupeIDs(ids []uuid.UUID) []uuid.UUID {
	seen := make(map[uuid.UUID]struct{}, len(ids))
	out := make([]uuid.UUID, 0, len(ids))
	for _, id := range ids {
		if id == uuid.Nil {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

func missingIDs(want []uuid.UUID, found []*Order) string {
	present := make(map[uuid.UUID]struct{}, len(found))
	for _, order := range found {
		present[order.ID] = struct{}{}
	}
	var missing []string
	for _, id := range want {
		if _, ok := present[id]; !ok {
			missing = append(missing, id.String())
		}
	}
	return strings.Join(missing, ", ")
}

func containsPaymentStatus(list []PaymentStatus, status PaymentStatus) bool {
	for _, candidate := range list {
		if candidate == status {
			return true
		}
	}
	return false
}

func escapeLike(value string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(value)
}
