package service

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"

	"qr-ordering/internal/common/logger"
	"qr-ordering/internal/domain"
	"qr-ordering/internal/microservices/kitchen/repository"
	"qr-ordering/internal/microservices/realtime/hub"
)

type memKitchen struct {
	orders map[int64]*domain.Order
	log    []domain.OrderStatus
}

func (m *memKitchen) UpdateStatusTx(_ context.Context, restaurantID string, orderID int64, next domain.OrderStatus, _, _ string) (repository.Transition, error) {
	o, ok := m.orders[orderID]
	if !ok || o.RestaurantID != restaurantID {
		return repository.Transition{}, repository.ErrNotFound
	}
	t := repository.Transition{Order: *o, OldStatus: o.Status}
	if !o.Status.CanTransition(next) {
		return t, fmt.Errorf("%w: %s -> %s", domain.ErrInvalidTransition, o.Status, next)
	}
	if o.Status == next {
		return t, nil
	}
	o.Status = next
	o.UpdatedAt = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	m.log = append(m.log, next)
	t.Order = *o
	t.Changed = true
	return t, nil
}

func (m *memKitchen) ActiveOrders(_ context.Context, restaurantID string) ([]domain.Order, error) {
	var out []domain.Order
	for _, o := range m.orders {
		if o.RestaurantID == restaurantID && o.Status.Active() {
			out = append(out, *o)
		}
	}
	return out, nil
}

type recorder struct {
	kinds    []domain.EventKind
	payloads []json.RawMessage
	tenants  []string
}

func (r *recorder) Publish(tenantID string, kind domain.EventKind, payload json.RawMessage, _ hub.Conn) int {
	r.tenants = append(r.tenants, tenantID)
	r.kinds = append(r.kinds, kind)
	r.payloads = append(r.payloads, payload)
	return 1
}

func newKitchen() (*KitchenService, *memKitchen, *recorder) {
	repo := &memKitchen{orders: map[int64]*domain.Order{
		1: {ID: 1, RestaurantID: "42", Token: 5, Status: domain.StatusPending},
		2: {ID: 2, RestaurantID: "99", Token: 1, Status: domain.StatusPending},
	}}
	pub := &recorder{}
	return NewKitchenService(repo, pub, logger.NewWithCore("kitchen-service", zapcore.NewNopCore())), repo, pub
}

func TestUpdateStatusPublishesTransition(t *testing.T) {
	ks, repo, pub := newKitchen()

	order, err := ks.UpdateStatus(context.Background(), "42", 1, domain.UpdateStatusRequest{Status: domain.StatusPreparing}, "owner@dosa")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusPreparing, order.Status)
	assert.Equal(t, []domain.OrderStatus{domain.StatusPreparing}, repo.log)

	require.Len(t, pub.kinds, 1)
	assert.Equal(t, domain.EventStatusUpdate, pub.kinds[0])
	assert.Equal(t, "42", pub.tenants[0])
	var body domain.StatusUpdatePayload
	require.NoError(t, json.Unmarshal(pub.payloads[0], &body))
	assert.Equal(t, domain.StatusPending, body.OldStatus)
	assert.Equal(t, domain.StatusPreparing, body.Status)
	assert.Equal(t, int64(5), body.Token)
	assert.Equal(t, "owner@dosa", body.ChangedBy)
}

func TestUpdateStatusRepeatIsSilent(t *testing.T) {
	ks, _, pub := newKitchen()
	_, err := ks.UpdateStatus(context.Background(), "42", 1, domain.UpdateStatusRequest{Status: domain.StatusPending}, "k")
	require.NoError(t, err)
	assert.Empty(t, pub.kinds)
}

func TestUpdateStatusRejections(t *testing.T) {
	ks, _, pub := newKitchen()

	_, err := ks.UpdateStatus(context.Background(), "42", 1, domain.UpdateStatusRequest{Status: domain.StatusServed}, "k")
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)

	_, err = ks.UpdateStatus(context.Background(), "42", 1, domain.UpdateStatusRequest{Status: "eaten"}, "k")
	assert.ErrorIs(t, err, ErrValidation)

	_, err = ks.UpdateStatus(context.Background(), "42", 2, domain.UpdateStatusRequest{Status: domain.StatusPreparing}, "k")
	assert.ErrorIs(t, err, repository.ErrNotFound)

	assert.Empty(t, pub.kinds)
}

func TestActiveOrdersScopedToTenant(t *testing.T) {
	ks, _, _ := newKitchen()
	orders, err := ks.ActiveOrders(context.Background(), "42")
	require.NoError(t, err)
	require.Len(t, orders, 1)
	assert.Equal(t, int64(1), orders[0].ID)

	orders, err = ks.ActiveOrders(context.Background(), "nobody")
	require.NoError(t, err)
	assert.NotNil(t, orders)
	assert.Empty(t, orders)
}
