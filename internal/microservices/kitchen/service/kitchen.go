package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"qr-ordering/internal/common/logger"
	"qr-ordering/internal/domain"
	"qr-ordering/internal/microservices/kitchen/repository"
	"qr-ordering/internal/microservices/realtime/hub"
)

var ErrValidation = errors.New("validation failed")

type KitchenServiceInterface interface {
	UpdateStatus(ctx context.Context, restaurantID string, orderID int64, req domain.UpdateStatusRequest, changedBy string) (domain.Order, error)
	ActiveOrders(ctx context.Context, restaurantID string) ([]domain.Order, error)
}

type KitchenService struct {
	db  repository.KitchenRepositoryInterface
	pub hub.Publisher
	lg  *logger.Logger
}

func NewKitchenService(db repository.KitchenRepositoryInterface, pub hub.Publisher, lg *logger.Logger) *KitchenService {
	return &KitchenService{db: db, pub: pub, lg: lg}
}

// UpdateStatus moves an order along its lifecycle and tells the restaurant's
// rooms about it. Repeating the current status changes nothing and publishes
// nothing.
func (ks *KitchenService) UpdateStatus(ctx context.Context, restaurantID string, orderID int64, req domain.UpdateStatusRequest, changedBy string) (domain.Order, error) {
	if !req.Status.Valid() {
		return domain.Order{}, fmt.Errorf("%w: unknown status %q", ErrValidation, req.Status)
	}

	t, err := ks.db.UpdateStatusTx(ctx, restaurantID, orderID, req.Status, changedBy, req.Notes)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidTransition) {
			ks.lg.Warn("status_transition_rejected", map[string]any{
				"tenant_id": restaurantID, "order_id": orderID, "from": string(t.OldStatus), "to": string(req.Status),
			})
		}
		return domain.Order{}, err
	}
	if !t.Changed {
		return t.Order, nil
	}

	ks.lg.Info("order_status_changed", map[string]any{
		"tenant_id":  restaurantID,
		"order_id":   orderID,
		"old_status": string(t.OldStatus),
		"new_status": string(t.Order.Status),
		"changed_by": changedBy,
	})

	payload, err := json.Marshal(domain.StatusUpdatePayload{
		RestaurantID: restaurantID,
		OrderID:      t.Order.ID,
		Token:        t.Order.Token,
		OldStatus:    t.OldStatus,
		Status:       t.Order.Status,
		ChangedBy:    changedBy,
		Timestamp:    t.Order.UpdatedAt,
	})
	if err != nil {
		ks.lg.Error("status_event_encode_failed", err, map[string]any{"order_id": orderID})
		return t.Order, nil
	}
	ks.pub.Publish(restaurantID, domain.EventStatusUpdate, payload, nil)
	return t.Order, nil
}

func (ks *KitchenService) ActiveOrders(ctx context.Context, restaurantID string) ([]domain.Order, error) {
	orders, err := ks.db.ActiveOrders(ctx, restaurantID)
	if err != nil {
		return nil, err
	}
	if orders == nil {
		orders = []domain.Order{}
	}
	return orders, nil
}
