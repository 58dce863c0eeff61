package models

import (
	"time"

	"qr-ordering/internal/domain"
)

// OrderView is what a customer sees when tracking an order.
type OrderView struct {
	OrderID     int64              `json:"orderId"`
	Token       int64              `json:"token"`
	TableNumber int                `json:"tableNumber"`
	Status      domain.OrderStatus `json:"status"`
	UpdatedAt   time.Time          `json:"updatedAt"`
}

// TimelineEvent is one row of the order's status history.
type TimelineEvent struct {
	Status    domain.OrderStatus `json:"status"`
	ChangedBy string             `json:"changedBy"`
	ChangedAt time.Time          `json:"changedAt"`
	Notes     string             `json:"notes,omitempty"`
}
