package service

import (
	"qr-ordering/internal/common/config"
	"qr-ordering/internal/microservices/auth/repository"
)

type Service struct {
	AuthService *AuthService
}

func New(db *repository.Repository, cfg config.Auth) *Service {
	return &Service{
		AuthService: NewAuthService(db.AuthRepo, cfg),
	}
}
