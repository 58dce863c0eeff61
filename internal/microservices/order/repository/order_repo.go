package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"qr-ordering/internal/domain"
)

type OrderRepositoryInterface interface {
	AddOrder(ctx context.Context, order *domain.Order) error
	ListOrders(ctx context.Context, restaurantID string, status domain.OrderStatus) ([]domain.Order, error)
}

type OrderRepository struct {
	db *pgxpool.Pool
}

func NewOrderRepository(db *pgxpool.Pool) *OrderRepository {
	return &OrderRepository{db: db}
}

// LastToken returns the highest token among the restaurant's orders, or nil
// when it has none.
func (or *OrderRepository) LastToken(ctx context.Context, restaurantID string) (any, error) {
	var token int64
	err := or.db.QueryRow(ctx, `
		SELECT token FROM orders
		WHERE restaurant_id = $1
		ORDER BY token DESC
		LIMIT 1
	`, restaurantID).Scan(&token)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read last token: %w", err)
	}
	return token, nil
}

// ReserveToken bumps the restaurant's counter in one statement, so concurrent
// callers always get distinct tokens.
func (or *OrderRepository) ReserveToken(ctx context.Context, restaurantID string, floor int64) (int64, error) {
	var token int64
	err := or.db.QueryRow(ctx, `
		INSERT INTO order_token_counters (restaurant_id, last_token)
		VALUES ($1, $2)
		ON CONFLICT (restaurant_id) DO UPDATE
		SET last_token = GREATEST(order_token_counters.last_token + 1, EXCLUDED.last_token)
		RETURNING last_token
	`, restaurantID, floor).Scan(&token)
	if err != nil {
		return 0, fmt.Errorf("failed to reserve token: %w", err)
	}
	return token, nil
}

func (or *OrderRepository) AddOrder(ctx context.Context, order *domain.Order) error {
	tx, err := or.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	err = tx.QueryRow(ctx, `
		INSERT INTO orders
		    (restaurant_id, token, table_number, customer_name, total_amount, status, notes, created_at, updated_at)
		VALUES
		    ($1, $2, $3, $4, $5, $6, $7, NOW(), NOW())
		RETURNING id, created_at, updated_at
	`,
		order.RestaurantID,
		order.Token,
		order.TableNumber,
		order.CustomerName,
		order.TotalAmount,
		order.Status,
		order.Notes,
	).Scan(&order.ID, &order.CreatedAt, &order.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert order: %w", err)
	}

	batch := &pgx.Batch{}
	for _, item := range order.Items {
		batch.Queue(`
			INSERT INTO order_items (order_id, name, quantity, price, created_at)
			VALUES ($1, $2, $3, $4, NOW())
		`, order.ID, item.Name, item.Quantity, item.Price)
	}
	batch.Queue(`
		INSERT INTO order_status_log (order_id, status, changed_by, changed_at)
		VALUES ($1, $2, 'order-service', NOW())
	`, order.ID, order.Status)
	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("failed to insert order items: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// ListOrders returns the restaurant's orders newest first. An empty status
// means all of them.
func (or *OrderRepository) ListOrders(ctx context.Context, restaurantID string, status domain.OrderStatus) ([]domain.Order, error) {
	rows, err := or.db.Query(ctx, `
		SELECT id, restaurant_id, token, table_number, customer_name, total_amount::float8,
		       status, notes, created_at, updated_at
		FROM orders
		WHERE restaurant_id = $1 AND ($2 = '' OR status = $2)
		ORDER BY created_at DESC
		LIMIT 200
	`, restaurantID, string(status))
	if err != nil {
		return nil, fmt.Errorf("failed to list orders: %w", err)
	}
	orders, err := ScanOrders(rows)
	if err != nil {
		return nil, err
	}
	if err := LoadItems(ctx, or.db, orders); err != nil {
		return nil, err
	}
	return orders, nil
}

// ScanOrders reads rows selected with the column list used by ListOrders.
func ScanOrders(rows pgx.Rows) ([]domain.Order, error) {
	defer rows.Close()
	var out []domain.Order
	for rows.Next() {
		var o domain.Order
		if err := rows.Scan(&o.ID, &o.RestaurantID, &o.Token, &o.TableNumber, &o.CustomerName,
			&o.TotalAmount, &o.Status, &o.Notes, &o.CreatedAt, &o.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan order: %w", err)
		}
		o.Items = []domain.OrderItem{}
		out = append(out, o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read orders: %w", err)
	}
	return out, nil
}

// LoadItems fills in the items of orders with one query.
func LoadItems(ctx context.Context, db *pgxpool.Pool, orders []domain.Order) error {
	if len(orders) == 0 {
		return nil
	}
	ids := make([]int64, len(orders))
	idx := make(map[int64]int, len(orders))
	for i, o := range orders {
		ids[i] = o.ID
		idx[o.ID] = i
	}

	rows, err := db.Query(ctx, `
		SELECT order_id, name, quantity, price::float8
		FROM order_items
		WHERE order_id = ANY($1)
		ORDER BY id
	`, ids)
	if err != nil {
		return fmt.Errorf("failed to load order items: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var (
			orderID int64
			item    domain.OrderItem
		)
		if err := rows.Scan(&orderID, &item.Name, &item.Quantity, &item.Price); err != nil {
			return fmt.Errorf("failed to scan order item: %w", err)
		}
		i := idx[orderID]
		orders[i].Items = append(orders[i].Items, item)
	}
	return rows.Err()
}
