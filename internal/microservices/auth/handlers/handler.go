package handlers

import "qr-ordering/internal/microservices/auth/service"

type Handler struct {
	AuthHandler *AuthHandler
}

func New(s *service.Service, production bool) *Handler {
	return &Handler{
		AuthHandler: NewAuthHandler(s.AuthService, production),
	}
}
