package service

import (
	"qr-ordering/internal/common/logger"
	"qr-ordering/internal/microservices/kitchen/repository"
	"qr-ordering/internal/microservices/realtime/hub"
)

type Service struct {
	KitchenService KitchenServiceInterface
}

func New(db *repository.Repository, pub hub.Publisher) *Service {
	return &Service{
		KitchenService: NewKitchenService(db.KitchenRepo, pub, logger.New("kitchen-service")),
	}
}
