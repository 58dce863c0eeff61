package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"qr-ordering/internal/microservices/tracker/models"
)

var ErrNotFound = errors.New("order not found")

type TrackerRepoInterface interface {
	GetOrderView(ctx context.Context, restaurantID string, orderID int64) (models.OrderView, error)
	GetOrderTimeline(ctx context.Context, restaurantID string, orderID int64, limit, offset int) ([]models.TimelineEvent, error)
}

type TrackerRepo struct {
	db *pgxpool.Pool
}

func NewTrackerRepo(db *pgxpool.Pool) *TrackerRepo { return &TrackerRepo{db: db} }

func (r *TrackerRepo) GetOrderView(ctx context.Context, restaurantID string, orderID int64) (models.OrderView, error) {
	var v models.OrderView
	err := r.db.QueryRow(ctx, `
SELECT id, token, table_number, status, updated_at
FROM orders WHERE id=$1 AND restaurant_id=$2
`, orderID, restaurantID).Scan(&v.OrderID, &v.Token, &v.TableNumber, &v.Status, &v.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return models.OrderView{}, ErrNotFound
	}
	if err != nil {
		return models.OrderView{}, fmt.Errorf("failed to read order: %w", err)
	}
	return v, nil
}

func (r *TrackerRepo) GetOrderTimeline(ctx context.Context, restaurantID string, orderID int64, limit, offset int) ([]models.TimelineEvent, error) {
	rows, err := r.db.Query(ctx, `
SELECT l.status, l.changed_by, l.changed_at, l.notes
FROM order_status_log l
JOIN orders o ON o.id = l.order_id
WHERE l.order_id=$1 AND o.restaurant_id=$2
ORDER BY l.changed_at ASC, l.id ASC
LIMIT $3 OFFSET $4
`, orderID, restaurantID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to read timeline: %w", err)
	}
	defer rows.Close()

	out := []models.TimelineEvent{}
	for rows.Next() {
		var e models.TimelineEvent
		if err := rows.Scan(&e.Status, &e.ChangedBy, &e.ChangedAt, &e.Notes); err != nil {
			return nil, fmt.Errorf("failed to scan timeline: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
