package handlers

import (
	"errors"
	"net/http"
	"time"

	"qr-ordering/internal/common/httpx"
	"qr-ordering/internal/common/logger"
	"qr-ordering/internal/domain"
	"qr-ordering/internal/microservices/auth/repository"
	"qr-ordering/internal/microservices/auth/service"
)

type AuthHandler struct {
	service    service.AuthServiceInterface
	production bool
	lg         *logger.Logger
}

func NewAuthHandler(s service.AuthServiceInterface, production bool) *AuthHandler {
	return &AuthHandler{service: s, production: production, lg: logger.New("auth-service")}
}

func (ah *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req domain.RegisterRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.WriteProblem(w, http.StatusBadRequest, "validation", "invalid JSON body")
		return
	}
	u, err := ah.service.Register(r.Context(), req)
	switch {
	case errors.Is(err, service.ErrValidation):
		httpx.WriteProblem(w, http.StatusBadRequest, "validation", err.Error())
		return
	case errors.Is(err, repository.ErrEmailTaken):
		httpx.WriteProblem(w, http.StatusBadRequest, "conflict", "user already exists")
		return
	case err != nil:
		ah.lg.Error("register_failed", err, map[string]any{"request_id": httpx.RequestID(r.Context())})
		httpx.WriteProblem(w, http.StatusInternalServerError, "internal", "could not register")
		return
	}
	httpx.WriteJSON(w, http.StatusCreated, map[string]any{
		"message":        "user registered",
		"restaurantSlug": u.RestaurantSlug,
		"restaurantId":   u.RestaurantID,
	})
}

func (ah *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req domain.LoginRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.WriteProblem(w, http.StatusBadRequest, "validation", "invalid JSON body")
		return
	}
	token, claims, err := ah.service.Login(r.Context(), req)
	if errors.Is(err, service.ErrInvalidCredentials) {
		httpx.WriteProblem(w, http.StatusBadRequest, "credentials", err.Error())
		return
	}
	if err != nil {
		ah.lg.Error("login_failed", err, map[string]any{"request_id": httpx.RequestID(r.Context())})
		httpx.WriteProblem(w, http.StatusInternalServerError, "internal", "could not log in")
		return
	}

	http.SetCookie(w, ah.cookie(token, claims.ExpiresAt.Time))
	httpx.WriteJSON(w, http.StatusOK, domain.LoginResponse{
		RestaurantSlug: claims.RestaurantSlug,
		RestaurantID:   claims.RestaurantID,
	})
}

func (ah *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	c := ah.cookie("", time.Unix(0, 0))
	c.MaxAge = -1
	http.SetCookie(w, c)
	httpx.WriteJSON(w, http.StatusOK, map[string]string{"message": "logged out"})
}

func (ah *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	claims, err := ah.service.FromRequest(r)
	if err != nil {
		httpx.WriteProblem(w, http.StatusUnauthorized, "auth", "not logged in")
		return
	}
	httpx.WriteJSON(w, http.StatusOK, claims)
}

// cookie is cross-site in production, where the UI is served from another
// origin, and lax otherwise so plain http works locally.
func (ah *AuthHandler) cookie(value string, expires time.Time) *http.Cookie {
	c := &http.Cookie{
		Name:     service.CookieName,
		Value:    value,
		Path:     "/",
		Expires:  expires,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	}
	if ah.production {
		c.SameSite = http.SameSiteNoneMode
		c.Secure = true
	}
	return c
}
