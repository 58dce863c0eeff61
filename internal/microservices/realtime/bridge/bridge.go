// Package bridge links the relays of several api-server instances through a
// RabbitMQ fanout exchange, so an event published on one instance reaches
// subscribers connected to any other.
package bridge

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"

	"qr-ordering/internal/common/logger"
	"qr-ordering/internal/common/metrics"
	"qr-ordering/internal/domain"
	"qr-ordering/internal/microservices/realtime/hub"
)

const (
	instanceHeader = "x-instance"
	outboxSize     = 1024
	publishTimeout = 5 * time.Second
)

var ErrConsumerClosed = errors.New("broker consumer closed")

// Broker is the part of the RabbitMQ client the bridge needs.
type Broker interface {
	Publish(ctx context.Context, exchange, key string, body []byte, headers amqp.Table, contentType string, persistent bool) error
	ConsumeFanout(ctx context.Context, exchange, consumer string) (<-chan amqp.Delivery, error)
}

// Bridge implements hub.Publisher. Every event is delivered locally first and
// then forwarded to the other instances.
type Bridge struct {
	local    hub.Publisher
	broker   Broker
	exchange string
	instance string
	outbox   chan domain.OrderEvent

	lg *logger.Logger
	m  *metrics.Metrics
}

func New(local hub.Publisher, broker Broker, exchange string, m *metrics.Metrics) *Bridge {
	return &Bridge{
		local:    local,
		broker:   broker,
		exchange: exchange,
		instance: uuid.NewString(),
		outbox:   make(chan domain.OrderEvent, outboxSize),
		lg:       logger.New("relay-bridge"),
		m:        m,
	}
}

func (b *Bridge) Instance() string { return b.instance }

// Publish never blocks on the broker. If the outbox is full the event still
// reaches local subscribers and the forward is dropped.
func (b *Bridge) Publish(tenantID string, kind domain.EventKind, payload json.RawMessage, origin hub.Conn) int {
	n := b.local.Publish(tenantID, kind, payload, origin)
	select {
	case b.outbox <- domain.OrderEvent{Kind: kind, TenantID: tenantID, Payload: payload}:
	default:
		b.lg.Warn("bridge_outbox_full", map[string]any{"tenant_id": tenantID, "kind": string(kind)})
	}
	return n
}

// Run forwards queued events and applies events from other instances until
// ctx is done.
func (b *Bridge) Run(ctx context.Context) error {
	msgs, err := b.broker.ConsumeFanout(ctx, b.exchange, "relay-"+b.instance)
	if err != nil {
		return err
	}
	b.lg.Info("bridge_started", map[string]any{"exchange": b.exchange, "instance": b.instance})

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev := <-b.outbox:
			b.forward(ctx, ev)
		case d, ok := <-msgs:
			if !ok {
				if ctx.Err() != nil {
					return nil
				}
				return ErrConsumerClosed
			}
			b.receive(d)
		}
	}
}

func (b *Bridge) forward(ctx context.Context, ev domain.OrderEvent) {
	body, err := json.Marshal(ev)
	if err != nil {
		b.lg.Error("bridge_encode_failed", err, map[string]any{"tenant_id": ev.TenantID})
		return
	}
	pctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()
	err = b.broker.Publish(pctx, b.exchange, "", body, amqp.Table{instanceHeader: b.instance}, "application/json", false)
	if err != nil {
		b.lg.Error("bridge_publish_failed", err, map[string]any{"tenant_id": ev.TenantID, "kind": string(ev.Kind)})
		return
	}
	if b.m != nil {
		b.m.BridgeForwarded.Inc()
	}
}

func (b *Bridge) receive(d amqp.Delivery) {
	if from, _ := d.Headers[instanceHeader].(string); from == b.instance {
		return
	}
	var ev domain.OrderEvent
	if err := json.Unmarshal(d.Body, &ev); err != nil {
		b.lg.Warn("bridge_message_malformed", map[string]any{"error": err.Error()})
		return
	}
	if ev.TenantID == "" || !ev.Kind.Valid() {
		b.lg.Warn("bridge_message_rejected", map[string]any{"tenant_id": ev.TenantID, "kind": string(ev.Kind)})
		return
	}
	b.local.Publish(ev.TenantID, ev.Kind, ev.Payload, nil)
	if b.m != nil {
		b.m.BridgeReceived.Inc()
	}
}
