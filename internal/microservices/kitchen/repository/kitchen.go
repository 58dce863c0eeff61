package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"qr-ordering/internal/domain"
	orderrepo "qr-ordering/internal/microservices/order/repository"
)

var ErrNotFound = errors.New("order not found")

// Transition is the outcome of a status change.
type Transition struct {
	Order     domain.Order
	OldStatus domain.OrderStatus
	Changed   bool
}

type KitchenRepositoryInterface interface {
	UpdateStatusTx(ctx context.Context, restaurantID string, orderID int64, next domain.OrderStatus, changedBy, notes string) (Transition, error)
	ActiveOrders(ctx context.Context, restaurantID string) ([]domain.Order, error)
}

type KitchenRepository struct {
	db *pgxpool.Pool
}

func NewKitchenRepository(db *pgxpool.Pool) *KitchenRepository {
	return &KitchenRepository{db: db}
}

// UpdateStatusTx locks the order row, checks the transition and appends to the
// status log. Setting the current status again is a no-op.
func (r *KitchenRepository) UpdateStatusTx(ctx context.Context, restaurantID string, orderID int64, next domain.OrderStatus, changedBy, notes string) (Transition, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return Transition{}, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var o domain.Order
	err = tx.QueryRow(ctx, `
		SELECT id, restaurant_id, token, table_number, status
		FROM orders
		WHERE id = $1 AND restaurant_id = $2
		FOR UPDATE
	`, orderID, restaurantID).Scan(&o.ID, &o.RestaurantID, &o.Token, &o.TableNumber, &o.Status)
	if errors.Is(err, pgx.ErrNoRows) {
		return Transition{}, ErrNotFound
	}
	if err != nil {
		return Transition{}, fmt.Errorf("failed to lock order: %w", err)
	}

	t := Transition{Order: o, OldStatus: o.Status}
	if !o.Status.CanTransition(next) {
		return t, fmt.Errorf("%w: %s -> %s", domain.ErrInvalidTransition, o.Status, next)
	}
	if o.Status == next {
		return t, tx.Commit(ctx)
	}

	if err := tx.QueryRow(ctx, `
		UPDATE orders SET status = $2, updated_at = now()
		WHERE id = $1
		RETURNING updated_at
	`, orderID, next).Scan(&t.Order.UpdatedAt); err != nil {
		return Transition{}, fmt.Errorf("failed to update order: %w", err)
	}
	if _, err := tx.Exec(ctx, `
		INSERT INTO order_status_log (order_id, status, changed_by, changed_at, notes)
		VALUES ($1, $2, $3, now(), $4)
	`, orderID, next, changedBy, notes); err != nil {
		return Transition{}, fmt.Errorf("failed to write status log: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return Transition{}, fmt.Errorf("failed to commit transaction: %w", err)
	}

	t.Order.Status = next
	t.Changed = true
	return t, nil
}

// ActiveOrders returns what the kitchen board shows, oldest first.
func (r *KitchenRepository) ActiveOrders(ctx context.Context, restaurantID string) ([]domain.Order, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, restaurant_id, token, table_number, customer_name, total_amount::float8,
		       status, notes, created_at, updated_at
		FROM orders
		WHERE restaurant_id = $1 AND status IN ('pending', 'preparing', 'ready')
		ORDER BY created_at ASC
	`, restaurantID)
	if err != nil {
		return nil, fmt.Errorf("failed to list active orders: %w", err)
	}
	orders, err := orderrepo.ScanOrders(rows)
	if err != nil {
		return nil, err
	}
	if err := orderrepo.LoadItems(ctx, r.db, orders); err != nil {
		return nil, err
	}
	return orders, nil
}
