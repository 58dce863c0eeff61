package handler

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"qr-ordering/internal/common/config"
	"qr-ordering/internal/common/httpx"
	"qr-ordering/internal/common/logger"
	"qr-ordering/internal/domain"
	"qr-ordering/internal/microservices/realtime/hub"
)

// TenantAuthenticator resolves the tenant an authenticated owner belongs to.
// It returns an error when the request carries no valid credentials.
type TenantAuthenticator interface {
	AuthenticatedTenant(r *http.Request) (string, error)
}

var (
	errNotAuthorized   = errors.New("not authorized for this restaurant")
	errTenantNotNumber = errors.New("tenant id must be a string or whole number")
)

type Handler struct {
	hub      *hub.Hub
	pub      hub.Publisher
	auth     TenantAuthenticator
	cfg      config.Realtime
	origins  []string
	upgrader websocket.Upgrader
	lg       *logger.Logger
}

// New wires the socket endpoint. pub is usually the hub itself or the broker
// bridge wrapping it; auth may be nil when kitchen auth is disabled.
func New(h *hub.Hub, pub hub.Publisher, auth TenantAuthenticator, cfg config.Realtime, origins []string) *Handler {
	hd := &Handler{
		hub:     h,
		pub:     pub,
		auth:    auth,
		cfg:     cfg,
		origins: origins,
		lg:      logger.New("realtime"),
	}
	hd.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			return httpx.OriginAllowed(hd.origins, r.Header.Get("Origin"))
		},
	}
	return hd
}

func (h *Handler) ServeWs(w http.ResponseWriter, r *http.Request) {
	if !httpx.OriginAllowed(h.origins, r.Header.Get("Origin")) {
		h.lg.Warn("origin_rejected", map[string]any{"origin": r.Header.Get("Origin")})
		httpx.WriteProblem(w, http.StatusForbidden, "cors", "origin not allowed")
		return
	}

	var tenant string
	if h.auth != nil {
		if t, err := h.auth.AuthenticatedTenant(r); err == nil {
			tenant = t
		}
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.lg.Error("upgrade_failed", err, nil)
		return
	}

	c := newClient(uuid.NewString(), conn, h.cfg.SendBuffer, tenant)
	h.lg.Info("client_connected", map[string]any{"conn_id": c.id, "owner_tenant": tenant})

	go c.writePump(h.cfg)
	go h.readPump(c)
}

func (h *Handler) readPump(c *client) {
	defer func() {
		h.hub.Leave(c)
		c.Close()
		h.lg.Info("client_disconnected", map[string]any{"conn_id": c.id})
	}()

	c.conn.SetReadLimit(64 << 10)
	_ = c.conn.SetReadDeadline(time.Now().Add(h.cfg.ReadTimeout))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(h.cfg.ReadTimeout))
	})

	for {
		_, frame, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.lg.Warn("read_failed", map[string]any{"conn_id": c.id, "error": err.Error()})
			}
			return
		}
		_ = c.conn.SetReadDeadline(time.Now().Add(h.cfg.ReadTimeout))

		// A frame that does not decode gets an error reply; the connection stays.
		var env domain.Envelope
		if err := json.Unmarshal(frame, &env); err != nil {
			h.sendError(c, "malformed frame")
			continue
		}
		if err := h.dispatch(c, env); err != nil {
			h.sendError(c, err.Error())
		}
	}
}

func (h *Handler) dispatch(c *client, env domain.Envelope) error {
	switch env.Event {
	case domain.ClientJoinRestaurant:
		tenant, err := ParseTenantID(env.Data)
		if err != nil {
			return err
		}
		h.lg.Info("joined_restaurant", map[string]any{"conn_id": c.id, "tenant_id": tenant})
		return h.hub.Join(c, tenant, hub.RoleCustomer)

	case domain.ClientJoinKitchen:
		tenant, err := ParseTenantID(env.Data)
		if err != nil {
			return err
		}
		if h.cfg.RequireKitchenAuth && c.tenant != tenant {
			h.lg.Warn("kitchen_join_denied", map[string]any{"conn_id": c.id, "tenant_id": tenant})
			return fmt.Errorf("joinKitchen: %w", errNotAuthorized)
		}
		h.lg.Info("joined_kitchen", map[string]any{"conn_id": c.id, "tenant_id": tenant})
		return h.hub.Join(c, tenant, hub.RoleKitchen)

	case domain.ClientOrderStatusUpdate:
		return h.relay(c, domain.EventStatusUpdate, env)

	case domain.ClientNewOrder:
		return h.relay(c, domain.EventNewOrder, env)
	}
	return fmt.Errorf("unknown event %q", env.Event)
}

func (h *Handler) relay(c *client, kind domain.EventKind, env domain.Envelope) error {
	tenant, err := payloadTenantID(env.Data)
	if err != nil {
		return fmt.Errorf("%s: %w", env.Event, err)
	}
	if h.cfg.RequireKitchenAuth && !h.hub.Joined(c, tenant) {
		return fmt.Errorf("%s: %w", env.Event, errNotAuthorized)
	}
	h.pub.Publish(tenant, kind, env.Data, c)
	return nil
}

func (h *Handler) sendError(c *client, msg string) {
	data, _ := json.Marshal(map[string]string{"message": msg})
	_ = c.Send(domain.Envelope{Event: domain.ServerError, Data: data})
}

// ParseTenantID accepts a tenant id sent as a JSON string or number.
func ParseTenantID(raw json.RawMessage) (string, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return "", hub.ErrEmptyTenant
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		if s == "" {
			return "", hub.ErrEmptyTenant
		}
		return s, nil
	}
	var n json.Number
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(&n); err != nil {
		return "", errTenantNotNumber
	}
	// 42, 42.0 and 4.2e1 name the same room.
	if i, err := n.Int64(); err == nil {
		return strconv.FormatInt(i, 10), nil
	}
	f, err := n.Float64()
	if err != nil || f != math.Trunc(f) || math.Abs(f) >= math.MaxInt64 {
		return "", errTenantNotNumber
	}
	return strconv.FormatInt(int64(f), 10), nil
}

func payloadTenantID(raw json.RawMessage) (string, error) {
	var body struct {
		RestaurantID json.RawMessage `json:"restaurantId"`
		TenantID     json.RawMessage `json:"tenantId"`
	}
	if err := json.Unmarshal(raw, &body); err != nil {
		return "", fmt.Errorf("payload must be an object")
	}
	if len(body.RestaurantID) > 0 {
		return ParseTenantID(body.RestaurantID)
	}
	return ParseTenantID(body.TenantID)
}
