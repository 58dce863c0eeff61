package service

import (
	"qr-ordering/internal/common/logger"
	"qr-ordering/internal/common/metrics"
	"qr-ordering/internal/microservices/order/repository"
	"qr-ordering/internal/microservices/realtime/hub"
)

type Service struct {
	OrderService OrderServiceInterface
	Tokens       *TokenAllocator
}

// New wires the order flow. tokens picks where sequence numbers come from;
// orders themselves always live in Postgres.
func New(db *repository.Repository, tokens TokenStore, pub hub.Publisher, m *metrics.Metrics) *Service {
	lg := logger.New("order-service")
	alloc := NewTokenAllocator(tokens, lg, m)
	return &Service{
		OrderService: NewOrderService(db.OrderRepo, alloc, pub, lg),
		Tokens:       alloc,
	}
}
