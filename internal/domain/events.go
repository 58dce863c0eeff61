package domain

import (
	"encoding/json"
	"time"
)

// EventKind is the lifecycle event carried by the relay.
type EventKind string

const (
	EventNewOrder     EventKind = "new-order"
	EventStatusUpdate EventKind = "status-update"
)

// Wire names of the client-facing events.
const (
	ClientJoinRestaurant    = "joinRestaurant"
	ClientJoinKitchen       = "joinKitchen"
	ClientOrderStatusUpdate = "orderStatusUpdate"
	ClientNewOrder          = "newOrder"

	ServerOrderStatusUpdated = "orderStatusUpdated"
	ServerNewOrderReceived   = "newOrderReceived"
	ServerError              = "error"
)

// ServerEventName maps a kind to what subscribers receive.
func (k EventKind) ServerEventName() string {
	switch k {
	case EventNewOrder:
		return ServerNewOrderReceived
	case EventStatusUpdate:
		return ServerOrderStatusUpdated
	}
	return string(k)
}

func (k EventKind) Valid() bool { return k == EventNewOrder || k == EventStatusUpdate }

// Envelope is one frame on the realtime socket.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// OrderEvent is the ephemeral message fanned out to a tenant's rooms.
type OrderEvent struct {
	Kind     EventKind       `json:"kind"`
	TenantID string          `json:"tenant_id"`
	Payload  json.RawMessage `json:"payload"`
}

// NewOrderPayload is what the order service publishes for a fresh order.
type NewOrderPayload struct {
	RestaurantID string      `json:"restaurantId"`
	OrderID      int64       `json:"orderId"`
	Token        int64       `json:"token"`
	TableNumber  int         `json:"tableNumber"`
	Items        []OrderItem `json:"items"`
	TotalAmount  float64     `json:"totalAmount"`
	Status       OrderStatus `json:"status"`
	CreatedAt    time.Time   `json:"createdAt"`
}

// StatusUpdatePayload is published on every kitchen status transition.
type StatusUpdatePayload struct {
	RestaurantID string      `json:"restaurantId"`
	OrderID      int64       `json:"orderId"`
	Token        int64       `json:"token"`
	OldStatus    OrderStatus `json:"oldStatus"`
	Status       OrderStatus `json:"status"`
	ChangedBy    string      `json:"changedBy"`
	Timestamp    time.Time   `json:"timestamp"`
}
