package handlers

import "qr-ordering/internal/microservices/kitchen/service"

type Handler struct {
	KitchenHandler *KitchenHandler
}

func New(s *service.Service, actor Actor) *Handler {
	return &Handler{
		KitchenHandler: NewKitchenHandler(s.KitchenService, actor),
	}
}
