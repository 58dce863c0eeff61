package hub

import (
	"encoding/json"
	"fmt"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"

	"qr-ordering/internal/common/logger"
	"qr-ordering/internal/common/metrics"
	"qr-ordering/internal/domain"
)

type fakeConn struct {
	id     string
	mu     sync.Mutex
	got    []domain.Envelope
	limit  int // 0 means unbounded
	closed bool
}

func newConn(id string) *fakeConn { return &fakeConn{id: id} }

func (f *fakeConn) ID() string { return f.id }

func (f *fakeConn) Send(e domain.Envelope) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return ErrConnClosed
	}
	if f.limit > 0 && len(f.got) >= f.limit {
		return ErrSendQueueFull
	}
	f.got = append(f.got, e)
	return nil
}

func (f *fakeConn) Close() {
	f.mu.Lock()
	f.closed = true
	f.mu.Unlock()
}

func (f *fakeConn) received() []domain.Envelope {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]domain.Envelope(nil), f.got...)
}

func newHub() (*Hub, *metrics.Metrics) {
	m := metrics.New()
	return New(logger.NewWithCore("relay", zapcore.NewNopCore()), m), m
}

var payload = json.RawMessage(`{"restaurantId":"42","orderId":1}`)

func TestPublishReachesOnlyTenantRooms(t *testing.T) {
	h, _ := newHub()
	a, b, c := newConn("A"), newConn("B"), newConn("C")

	require.NoError(t, h.Join(a, "42", RoleCustomer))
	require.NoError(t, h.Join(b, "42", RoleKitchen))
	require.NoError(t, h.Join(c, "99", RoleCustomer))

	n := h.Publish("42", domain.EventNewOrder, payload, nil)

	assert.Equal(t, 2, n)
	require.Len(t, a.received(), 1)
	require.Len(t, b.received(), 1)
	assert.Empty(t, c.received())
	assert.Equal(t, domain.ServerNewOrderReceived, a.received()[0].Event)
	assert.JSONEq(t, string(payload), string(b.received()[0].Data))
}

func TestPublisherDoesNotReceiveOwnEvent(t *testing.T) {
	h, _ := newHub()
	kitchen, customer := newConn("kitchen"), newConn("customer")
	require.NoError(t, h.Join(kitchen, "42", RoleKitchen))
	require.NoError(t, h.Join(customer, "42", RoleCustomer))

	n := h.Publish("42", domain.EventStatusUpdate, payload, kitchen)

	assert.Equal(t, 1, n)
	assert.Empty(t, kitchen.received())
	require.Len(t, customer.received(), 1)
	assert.Equal(t, domain.ServerOrderStatusUpdated, customer.received()[0].Event)
}

func TestLeaveStopsDelivery(t *testing.T) {
	h, m := newHub()
	a := newConn("A")
	require.NoError(t, h.Join(a, "42", RoleCustomer))
	require.NoError(t, h.Join(a, "7", RoleKitchen))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Connections))

	h.Leave(a)
	h.Leave(a)

	assert.Zero(t, h.Publish("42", domain.EventNewOrder, payload, nil))
	assert.Zero(t, h.Publish("7", domain.EventNewOrder, payload, nil))
	assert.Empty(t, a.received())
	assert.Zero(t, h.RoomSize("restaurant_42"))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.Connections))
}

func TestJoinIsIdempotentAndDeduplicatesAcrossRooms(t *testing.T) {
	h, _ := newHub()
	a := newConn("A")
	require.NoError(t, h.Join(a, "42", RoleCustomer))
	require.NoError(t, h.Join(a, "42", RoleCustomer))
	require.NoError(t, h.Join(a, "42", RoleKitchen))

	assert.Equal(t, 1, h.RoomSize("restaurant_42"))
	assert.Equal(t, 1, h.Publish("42", domain.EventNewOrder, payload, nil))
	assert.Len(t, a.received(), 1)
}

func TestPublishWithoutSubscribersIsNoop(t *testing.T) {
	h, m := newHub()
	assert.Zero(t, h.Publish("unknown-tenant", domain.EventNewOrder, payload, nil))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.EventsPublished.WithLabelValues(string(domain.EventNewOrder))))
}

func TestJoinRejectsBadInput(t *testing.T) {
	h, _ := newHub()
	assert.ErrorIs(t, h.Join(newConn("A"), "", RoleCustomer), ErrEmptyTenant)
	assert.ErrorIs(t, h.Join(newConn("A"), "42", Role("waiter")), ErrInvalidRole)
}

func TestSlowConsumerIsEvicted(t *testing.T) {
	h, m := newHub()
	slow, fast := newConn("slow"), newConn("fast")
	slow.limit = 1
	require.NoError(t, h.Join(slow, "42", RoleKitchen))
	require.NoError(t, h.Join(fast, "42", RoleKitchen))

	assert.Equal(t, 2, h.Publish("42", domain.EventNewOrder, payload, nil))
	assert.Equal(t, 1, h.Publish("42", domain.EventNewOrder, payload, nil))
	assert.Equal(t, 1, h.Publish("42", domain.EventNewOrder, payload, nil))

	assert.True(t, slow.closed)
	assert.Len(t, slow.received(), 1)
	assert.Len(t, fast.received(), 3)
	assert.False(t, h.Joined(slow, "42"))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.SlowConsumers))
}

func TestEventsArriveInPublishOrder(t *testing.T) {
	h, _ := newHub()
	sub := newConn("sub")
	require.NoError(t, h.Join(sub, "42", RoleKitchen))

	for i := 0; i < 50; i++ {
		h.Publish("42", domain.EventStatusUpdate, json.RawMessage(fmt.Sprintf(`{"seq":%d}`, i)), nil)
	}

	got := sub.received()
	require.Len(t, got, 50)
	for i, e := range got {
		assert.JSONEq(t, fmt.Sprintf(`{"seq":%d}`, i), string(e.Data))
	}
}

func TestConcurrentJoinPublishLeave(t *testing.T) {
	h, _ := newHub()
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			c := newConn(fmt.Sprint(i))
			tenant := fmt.Sprint(i % 3)
			_ = h.Join(c, tenant, RoleCustomer)
			h.Publish(tenant, domain.EventNewOrder, payload, c)
			h.Leave(c)
		}(i)
	}
	wg.Wait()
	for i := 0; i < 3; i++ {
		assert.Zero(t, h.RoomSize(fmt.Sprintf("restaurant_%d", i)))
	}
}

func TestJoinedChecksTenant(t *testing.T) {
	h, _ := newHub()
	a := newConn("A")
	require.NoError(t, h.Join(a, "42", RoleCustomer))
	assert.True(t, h.Joined(a, "42"))
	assert.False(t, h.Joined(a, "99"))
}
