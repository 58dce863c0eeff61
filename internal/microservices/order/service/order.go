package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"

	"qr-ordering/internal/common/logger"
	"qr-ordering/internal/domain"
	"qr-ordering/internal/microservices/order/repository"
	"qr-ordering/internal/microservices/realtime/hub"
)

var ErrValidation = errors.New("validation failed")

type OrderServiceInterface interface {
	AddOrder(ctx context.Context, restaurantID string, req domain.CreateOrderRequest) (domain.CreateOrderResponse, error)
	ListOrders(ctx context.Context, restaurantID string, status domain.OrderStatus) ([]domain.Order, error)
}

type OrderService struct {
	db     repository.OrderRepositoryInterface
	tokens TokenAllocatorInterface
	pub    hub.Publisher
	lg     *logger.Logger
}

func NewOrderService(db repository.OrderRepositoryInterface, tokens TokenAllocatorInterface, pub hub.Publisher, lg *logger.Logger) *OrderService {
	return &OrderService{db: db, tokens: tokens, pub: pub, lg: lg}
}

func (svc *OrderService) AddOrder(ctx context.Context, restaurantID string, req domain.CreateOrderRequest) (domain.CreateOrderResponse, error) {
	total, err := validateOrder(req)
	if err != nil {
		return domain.CreateOrderResponse{}, err
	}

	items := make([]domain.OrderItem, len(req.Items))
	for i, it := range req.Items {
		items[i] = domain.OrderItem{Name: strings.TrimSpace(it.Name), Quantity: it.Quantity, Price: it.Price}
	}

	order := domain.Order{
		RestaurantID: restaurantID,
		Token:        svc.tokens.NextToken(ctx, restaurantID),
		TableNumber:  req.TableNumber,
		CustomerName: strings.TrimSpace(req.CustomerName),
		Items:        items,
		TotalAmount:  total,
		Status:       domain.StatusPending,
		Notes:        req.Notes,
	}
	if err := svc.db.AddOrder(ctx, &order); err != nil {
		return domain.CreateOrderResponse{}, fmt.Errorf("failed to save order: %w", err)
	}

	svc.lg.Info("order_created", map[string]any{
		"tenant_id": restaurantID,
		"order_id":  order.ID,
		"token":     order.Token,
		"table":     order.TableNumber,
	})

	payload, err := json.Marshal(domain.NewOrderPayload{
		RestaurantID: restaurantID,
		OrderID:      order.ID,
		Token:        order.Token,
		TableNumber:  order.TableNumber,
		Items:        order.Items,
		TotalAmount:  order.TotalAmount,
		Status:       order.Status,
		CreatedAt:    order.CreatedAt,
	})
	if err != nil {
		svc.lg.Error("order_event_encode_failed", err, map[string]any{"order_id": order.ID})
	} else {
		svc.pub.Publish(restaurantID, domain.EventNewOrder, payload, nil)
	}

	return domain.CreateOrderResponse{
		OrderID:     order.ID,
		Token:       order.Token,
		Status:      order.Status,
		TotalAmount: order.TotalAmount,
	}, nil
}

func (svc *OrderService) ListOrders(ctx context.Context, restaurantID string, status domain.OrderStatus) ([]domain.Order, error) {
	if status != "" && !status.Valid() {
		return nil, fmt.Errorf("%w: unknown status %q", ErrValidation, status)
	}
	orders, err := svc.db.ListOrders(ctx, restaurantID, status)
	if err != nil {
		return nil, err
	}
	if orders == nil {
		orders = []domain.Order{}
	}
	return orders, nil
}

func validateOrder(req domain.CreateOrderRequest) (float64, error) {
	if req.TableNumber < 1 {
		return 0, fmt.Errorf("%w: table number must be positive", ErrValidation)
	}
	if len(req.Items) == 0 {
		return 0, fmt.Errorf("%w: at least one item is required", ErrValidation)
	}
	total := 0.0
	for _, item := range req.Items {
		if strings.TrimSpace(item.Name) == "" {
			return 0, fmt.Errorf("%w: item name is required", ErrValidation)
		}
		if item.Quantity <= 0 {
			return 0, fmt.Errorf("%w: invalid quantity for item %s", ErrValidation, item.Name)
		}
		if item.Price < 0 || math.IsNaN(item.Price) {
			return 0, fmt.Errorf("%w: invalid price for item %s", ErrValidation, item.Name)
		}
		total += float64(item.Quantity) * item.Price
	}
	return math.Round(total*100) / 100, nil
}
