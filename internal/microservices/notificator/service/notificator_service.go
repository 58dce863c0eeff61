package service

import (
	"context"
	"encoding/json"
	"errors"

	amqp "github.com/rabbitmq/amqp091-go"

	"qr-ordering/internal/common/logger"
	"qr-ordering/internal/domain"
)

var ErrConsumerClosed = errors.New("notification consumer closed")

type Consumer interface {
	ConsumeFanout(ctx context.Context, exchange, consumer string) (<-chan amqp.Delivery, error)
}

// NotificatorService listens to the relay exchange and writes one log line per
// order event, which is what downstream notification hooks tail.
type NotificatorService struct {
	consumer Consumer
	exchange string
	lg       *logger.Logger
}

func NewNotificatorService(consumer Consumer, exchange string, lg *logger.Logger) *NotificatorService {
	return &NotificatorService{consumer: consumer, exchange: exchange, lg: lg}
}

func (ns *NotificatorService) Notify(ctx context.Context) error {
	msgs, err := ns.consumer.ConsumeFanout(ctx, ns.exchange, "notificator")
	if err != nil {
		return err
	}
	ns.lg.Info("notificator_started", map[string]any{"exchange": ns.exchange})

	for {
		select {
		case <-ctx.Done():
			return nil
		case d, ok := <-msgs:
			if !ok {
				if ctx.Err() != nil {
					return nil
				}
				return ErrConsumerClosed
			}
			ns.handle(d.Body)
		}
	}
}

func (ns *NotificatorService) handle(body []byte) {
	var ev domain.OrderEvent
	if err := json.Unmarshal(body, &ev); err != nil || !ev.Kind.Valid() {
		ns.lg.Warn("notification_skipped", map[string]any{"bytes": len(body)})
		return
	}

	fields := map[string]any{"tenant_id": ev.TenantID, "kind": string(ev.Kind)}
	switch ev.Kind {
	case domain.EventNewOrder:
		var p domain.NewOrderPayload
		if json.Unmarshal(ev.Payload, &p) == nil {
			fields["order_id"] = p.OrderID
			fields["token"] = p.Token
			fields["table"] = p.TableNumber
		}
	case domain.EventStatusUpdate:
		var p domain.StatusUpdatePayload
		if json.Unmarshal(ev.Payload, &p) == nil {
			fields["order_id"] = p.OrderID
			fields["token"] = p.Token
			fields["old_status"] = string(p.OldStatus)
			fields["new_status"] = string(p.Status)
		}
	}
	ns.lg.Info("notification_received", fields)
}
