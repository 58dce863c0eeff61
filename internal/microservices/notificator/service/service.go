package service

import "qr-ordering/internal/common/logger"

type Service struct {
	NotificatorService *NotificatorService
}

func New(consumer Consumer, exchange string) *Service {
	return &Service{NotificatorService: NewNotificatorService(consumer, exchange, logger.New("notification-subscriber"))}
}
