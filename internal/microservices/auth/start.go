package auth

import (
	"net/http"

	"qr-ordering/internal/microservices/auth/handlers"
)

func Register(mux *http.ServeMux, h *handlers.Handler) {
	mux.HandleFunc("POST /api/auth/register", h.AuthHandler.Register)
	mux.HandleFunc("POST /api/auth/login", h.AuthHandler.Login)
	mux.HandleFunc("POST /api/auth/logout", h.AuthHandler.Logout)
	mux.HandleFunc("GET /api/auth/me", h.AuthHandler.Me)
}
