// Package hub is the in-process tenant event bus. Connections join per-tenant
// rooms and receive the order events published for that tenant.
//
// The hub never checks who a connection is. Callers must authenticate and
// resolve the tenant before calling Join or Publish.
package hub

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"qr-ordering/internal/common/logger"
	"qr-ordering/internal/common/metrics"
	"qr-ordering/internal/domain"
)

type Role string

const (
	RoleCustomer Role = "customer"
	RoleKitchen  Role = "kitchen"
)

var (
	ErrInvalidRole   = errors.New("invalid room role")
	ErrEmptyTenant   = errors.New("tenant id is empty")
	ErrSendQueueFull = errors.New("send queue full")
	ErrConnClosed    = errors.New("connection closed")
)

// Conn is one subscriber. Send must not block: it either queues the frame or
// reports why it could not.
type Conn interface {
	ID() string
	Send(domain.Envelope) error
	Close()
}

// Publisher is what handlers use to emit events. The hub implements it, and so
// does the broker bridge that also forwards to other instances.
type Publisher interface {
	Publish(tenantID string, kind domain.EventKind, payload json.RawMessage, origin Conn) int
}

// RoomName returns restaurant_<tenant> for customers and kitchen_<tenant> for
// kitchen staff.
func RoomName(tenantID string, role Role) (string, error) {
	switch role {
	case RoleCustomer:
		return "restaurant_" + tenantID, nil
	case RoleKitchen:
		return "kitchen_" + tenantID, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidRole, role)
}

type Hub struct {
	mu      sync.Mutex
	rooms   map[string]map[Conn]struct{}
	members map[Conn]map[string]struct{}

	lg *logger.Logger
	m  *metrics.Metrics
}

// New builds an empty hub. m may be nil.
func New(lg *logger.Logger, m *metrics.Metrics) *Hub {
	return &Hub{
		rooms:   make(map[string]map[Conn]struct{}),
		members: make(map[Conn]map[string]struct{}),
		lg:      lg,
		m:       m,
	}
}

// Join adds c to the tenant room for role. Joining twice is a no-op.
func (h *Hub) Join(c Conn, tenantID string, role Role) error {
	if tenantID == "" {
		return ErrEmptyTenant
	}
	room, err := RoomName(tenantID, role)
	if err != nil {
		return err
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	set, ok := h.rooms[room]
	if !ok {
		set = make(map[Conn]struct{})
		h.rooms[room] = set
	}
	if _, joined := set[c]; joined {
		return nil
	}
	set[c] = struct{}{}

	rs, ok := h.members[c]
	if !ok {
		rs = make(map[string]struct{})
		h.members[c] = rs
		if h.m != nil {
			h.m.Connections.Inc()
		}
	}
	rs[room] = struct{}{}

	h.lg.Debug("room_joined", map[string]any{"conn_id": c.ID(), "room": room, "room_size": len(set)})
	return nil
}

// Publish delivers payload to every connection in the tenant's customer and
// kitchen rooms except origin, and returns how many connections got it. A
// connection in both rooms gets one copy.
//
// Delivery happens under the hub lock, so every subscriber sees one tenant's
// events in publish order. Connections whose queue is full are evicted and
// closed.
func (h *Hub) Publish(tenantID string, kind domain.EventKind, payload json.RawMessage, origin Conn) int {
	env := domain.Envelope{Event: kind.ServerEventName(), Data: payload}
	customer, _ := RoomName(tenantID, RoleCustomer)
	kitchen, _ := RoomName(tenantID, RoleKitchen)

	var (
		delivered int
		evicted   []Conn
	)

	h.mu.Lock()
	seen := make(map[Conn]struct{})
	for _, room := range [...]string{customer, kitchen} {
		for c := range h.rooms[room] {
			if c == origin {
				continue
			}
			if _, dup := seen[c]; dup {
				continue
			}
			seen[c] = struct{}{}
			if err := c.Send(env); err != nil {
				if errors.Is(err, ErrSendQueueFull) {
					h.lg.Warn("slow_consumer_evicted", map[string]any{"conn_id": c.ID(), "tenant_id": tenantID})
					if h.m != nil {
						h.m.SlowConsumers.Inc()
					}
				}
				evicted = append(evicted, c)
				continue
			}
			delivered++
		}
	}
	for _, c := range evicted {
		h.leaveLocked(c)
	}
	h.mu.Unlock()

	for _, c := range evicted {
		c.Close()
	}

	if h.m != nil {
		h.m.EventsPublished.WithLabelValues(string(kind)).Inc()
		h.m.EventsDelivered.Add(float64(delivered))
	}
	h.lg.Debug("event_published", map[string]any{"tenant_id": tenantID, "kind": string(kind), "delivered": delivered})
	return delivered
}

// Leave removes c from every room. Safe to call more than once.
func (h *Hub) Leave(c Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.leaveLocked(c)
}

func (h *Hub) leaveLocked(c Conn) {
	rs, ok := h.members[c]
	if !ok {
		return
	}
	for room := range rs {
		set := h.rooms[room]
		delete(set, c)
		if len(set) == 0 {
			delete(h.rooms, room)
		}
	}
	delete(h.members, c)
	if h.m != nil {
		h.m.Connections.Dec()
	}
	h.lg.Debug("rooms_left", map[string]any{"conn_id": c.ID(), "rooms": len(rs)})
}

// Joined reports whether c is in either of the tenant's rooms.
func (h *Hub) Joined(c Conn, tenantID string) bool {
	customer, _ := RoomName(tenantID, RoleCustomer)
	kitchen, _ := RoomName(tenantID, RoleKitchen)

	h.mu.Lock()
	defer h.mu.Unlock()
	rs := h.members[c]
	_, inCustomer := rs[customer]
	_, inKitchen := rs[kitchen]
	return inCustomer || inKitchen
}

// RoomSize returns the number of connections in room.
func (h *Hub) RoomSize(room string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.rooms[room])
}
