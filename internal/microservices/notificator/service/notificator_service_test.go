package service

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"qr-ordering/internal/common/logger"
	"qr-ordering/internal/domain"
)

type chanConsumer chan amqp.Delivery

func (c chanConsumer) ConsumeFanout(context.Context, string, string) (<-chan amqp.Delivery, error) {
	return c, nil
}

func TestNotifyLogsOrderEvents(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	in := make(chanConsumer, 4)
	ns := NewNotificatorService(in, "order_events_fanout", logger.NewWithCore("notification-subscriber", core))

	payload, err := json.Marshal(domain.StatusUpdatePayload{RestaurantID: "42", OrderID: 3, Token: 8, OldStatus: domain.StatusPreparing, Status: domain.StatusReady})
	require.NoError(t, err)
	body, err := json.Marshal(domain.OrderEvent{Kind: domain.EventStatusUpdate, TenantID: "42", Payload: payload})
	require.NoError(t, err)

	in <- amqp.Delivery{Body: []byte(`{]`)}
	in <- amqp.Delivery{Body: body}
	close(in)

	err = ns.Notify(context.Background())
	assert.ErrorIs(t, err, ErrConsumerClosed)

	assert.Equal(t, 1, logs.FilterMessage("notification_skipped").Len())
	got := logs.FilterMessage("notification_received").All()
	require.Len(t, got, 1)
	fields := got[0].ContextMap()
	assert.Equal(t, "42", fields["tenant_id"])
	assert.Equal(t, "ready", fields["new_status"])
	assert.EqualValues(t, 8, fields["token"])
}

func TestNotifyReturnsOnCancel(t *testing.T) {
	ns := NewNotificatorService(make(chanConsumer), "x", logger.NewWithCore("n", zapcore.NewNopCore()))
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.NoError(t, ns.Notify(ctx))
}
