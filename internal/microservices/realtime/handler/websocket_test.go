package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"

	"qr-ordering/internal/common/config"
	"qr-ordering/internal/common/logger"
	"qr-ordering/internal/domain"
	"qr-ordering/internal/microservices/realtime/hub"
)

// cookieAuth treats the value of the "tenant" cookie as the owner's tenant.
type cookieAuth struct{}

func (cookieAuth) AuthenticatedTenant(r *http.Request) (string, error) {
	c, err := r.Cookie("tenant")
	if err != nil {
		return "", errors.New("no credentials")
	}
	return c.Value, nil
}

type env struct {
	hub *hub.Hub
	srv *httptest.Server
	url string
}

func setup(t *testing.T, requireAuth bool) *env {
	t.Helper()
	h := hub.New(logger.NewWithCore("relay", zapcore.NewNopCore()), nil)
	cfg := config.Default().Realtime
	cfg.RequireKitchenAuth = requireAuth
	hd := New(h, h, cookieAuth{}, cfg, []string{"https://menu.example.com"})
	srv := httptest.NewServer(http.HandlerFunc(hd.ServeWs))
	t.Cleanup(srv.Close)
	return &env{hub: h, srv: srv, url: "ws" + strings.TrimPrefix(srv.URL, "http")}
}

func (e *env) dial(t *testing.T, header http.Header) *websocket.Conn {
	t.Helper()
	conn, resp, err := websocket.DefaultDialer.Dial(e.url, header)
	require.NoError(t, err)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func send(t *testing.T, conn *websocket.Conn, event string, data any) {
	t.Helper()
	raw, err := json.Marshal(data)
	require.NoError(t, err)
	require.NoError(t, conn.WriteJSON(domain.Envelope{Event: event, Data: raw}))
}

func read(t *testing.T, conn *websocket.Conn) domain.Envelope {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var got domain.Envelope
	require.NoError(t, conn.ReadJSON(&got))
	return got
}

func expectSilence(t *testing.T, conn *websocket.Conn) {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(150*time.Millisecond)))
	var got domain.Envelope
	err := conn.ReadJSON(&got)
	require.Error(t, err, "unexpected frame %+v", got)
}

func ownerHeader(tenant string) http.Header {
	return http.Header{"Cookie": []string{"tenant=" + tenant}}
}

func (e *env) waitRoom(t *testing.T, room string, size int) {
	t.Helper()
	require.Eventually(t, func() bool { return e.hub.RoomSize(room) == size }, 2*time.Second, 10*time.Millisecond)
}

func TestTenantIsolationEndToEnd(t *testing.T) {
	e := setup(t, true)
	a := e.dial(t, nil)
	b := e.dial(t, ownerHeader("42"))
	c := e.dial(t, nil)

	send(t, a, domain.ClientJoinRestaurant, "42")
	send(t, b, domain.ClientJoinKitchen, 42)
	send(t, c, domain.ClientJoinRestaurant, "99")
	e.waitRoom(t, "restaurant_42", 1)
	e.waitRoom(t, "kitchen_42", 1)
	e.waitRoom(t, "restaurant_99", 1)

	n := e.hub.Publish("42", domain.EventNewOrder, json.RawMessage(`{"restaurantId":"42","token":1}`), nil)
	assert.Equal(t, 2, n)

	for _, conn := range []*websocket.Conn{a, b} {
		got := read(t, conn)
		assert.Equal(t, domain.ServerNewOrderReceived, got.Event)
		assert.JSONEq(t, `{"restaurantId":"42","token":1}`, string(got.Data))
	}
	expectSilence(t, c)
}

func TestClientPublishSkipsSender(t *testing.T) {
	e := setup(t, true)
	kitchen := e.dial(t, ownerHeader("42"))
	customer := e.dial(t, nil)

	send(t, kitchen, domain.ClientJoinKitchen, "42")
	send(t, customer, domain.ClientJoinRestaurant, "42")
	e.waitRoom(t, "kitchen_42", 1)
	e.waitRoom(t, "restaurant_42", 1)

	send(t, kitchen, domain.ClientOrderStatusUpdate, map[string]any{"restaurantId": 42, "orderId": 9, "status": "ready"})

	got := read(t, customer)
	assert.Equal(t, domain.ServerOrderStatusUpdated, got.Event)
	assert.JSONEq(t, `{"restaurantId":42,"orderId":9,"status":"ready"}`, string(got.Data))
	expectSilence(t, kitchen)
}

func TestKitchenJoinRequiresMatchingOwner(t *testing.T) {
	e := setup(t, true)
	anon := e.dial(t, nil)
	other := e.dial(t, ownerHeader("7"))

	send(t, anon, domain.ClientJoinKitchen, "42")
	send(t, other, domain.ClientJoinKitchen, "42")

	for _, conn := range []*websocket.Conn{anon, other} {
		got := read(t, conn)
		assert.Equal(t, domain.ServerError, got.Event)
		assert.Contains(t, string(got.Data), "not authorized")
	}
	assert.Zero(t, e.hub.RoomSize("kitchen_42"))
}

func TestGuardDisabledTrustsCaller(t *testing.T) {
	e := setup(t, false)
	kitchen := e.dial(t, nil)
	outsider := e.dial(t, nil)

	send(t, kitchen, domain.ClientJoinKitchen, "42")
	e.waitRoom(t, "kitchen_42", 1)

	send(t, outsider, domain.ClientNewOrder, map[string]any{"restaurantId": "42", "token": 3})
	got := read(t, kitchen)
	assert.Equal(t, domain.ServerNewOrderReceived, got.Event)
}

func TestPublishWithoutMembershipRejectedWhenGuarded(t *testing.T) {
	e := setup(t, true)
	outsider := e.dial(t, nil)

	send(t, outsider, domain.ClientNewOrder, map[string]any{"restaurantId": "42"})
	got := read(t, outsider)
	assert.Equal(t, domain.ServerError, got.Event)
}

func TestDisconnectLeavesRooms(t *testing.T) {
	e := setup(t, true)
	a := e.dial(t, nil)
	send(t, a, domain.ClientJoinRestaurant, "42")
	e.waitRoom(t, "restaurant_42", 1)

	require.NoError(t, a.Close())
	e.waitRoom(t, "restaurant_42", 0)
	assert.Zero(t, e.hub.Publish("42", domain.EventNewOrder, json.RawMessage(`{}`), nil))
}

func TestUnknownEventAndBadFrames(t *testing.T) {
	e := setup(t, true)
	a := e.dial(t, nil)

	send(t, a, "dance", nil)
	got := read(t, a)
	assert.Equal(t, domain.ServerError, got.Event)
	assert.Contains(t, string(got.Data), "unknown event")

	send(t, a, domain.ClientJoinRestaurant, map[string]any{"nested": true})
	got = read(t, a)
	assert.Equal(t, domain.ServerError, got.Event)

	for _, frame := range []string{
		`{"event":"joinRestaurant","data":`,
		`{"event":5}`,
		``,
		`not json`,
	} {
		require.NoError(t, a.WriteMessage(websocket.TextMessage, []byte(frame)))
		got = read(t, a)
		assert.Equal(t, domain.ServerError, got.Event, "frame %q", frame)
		assert.Contains(t, string(got.Data), "malformed frame")
	}

	// still connected after the bad frames
	send(t, a, domain.ClientJoinRestaurant, "42")
	e.waitRoom(t, "restaurant_42", 1)
}

func TestWholeNumberTenantSharesRoom(t *testing.T) {
	e := setup(t, false)
	a := e.dial(t, nil)
	b := e.dial(t, nil)

	send(t, a, domain.ClientJoinRestaurant, 42)
	require.NoError(t, b.WriteMessage(websocket.TextMessage, []byte(`{"event":"joinRestaurant","data":42.0}`)))
	e.waitRoom(t, "restaurant_42", 2)
}

func TestDisallowedOriginRejectedAtHandshake(t *testing.T) {
	e := setup(t, true)
	_, resp, err := websocket.DefaultDialer.Dial(e.url, http.Header{"Origin": []string{"https://evil.example.com"}})
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	conn, _, err := websocket.DefaultDialer.Dial(e.url, http.Header{"Origin": []string{"https://menu.example.com"}})
	require.NoError(t, err)
	_ = conn.Close()
}

func TestParseTenantID(t *testing.T) {
	tests := []struct {
		raw     string
		want    string
		wantErr bool
	}{
		{`"42"`, "42", false},
		{`42`, "42", false},
		{` "abc-slug" `, "abc-slug", false},
		{`""`, "", true},
		{`null`, "", true},
		{``, "", true},
		{`{"a":1}`, "", true},
		{`[1]`, "", true},
		{`42.0`, "42", false},
		{`4.2e1`, "42", false},
		{`42.5`, "", true},
		{`1e400`, "", true},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			got, err := ParseTenantID(json.RawMessage(tt.raw))
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
