package service

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"golang.org/x/crypto/bcrypt"

	"qr-ordering/internal/common/config"
	"qr-ordering/internal/common/logger"
	"qr-ordering/internal/domain"
	"qr-ordering/internal/microservices/auth/repository"
)

// CookieName is the cookie that carries the owner's JWT.
const CookieName = "token"

var (
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrUnauthenticated    = errors.New("missing or invalid token")
	ErrValidation         = errors.New("validation failed")
)

var slugPattern = regexp.MustCompile(`^[a-z0-9][a-z0-9-]{1,62}$`)

// Claims is the payload of an owner session token.
type Claims struct {
	UserID         int64  `json:"userId"`
	Email          string `json:"email"`
	RestaurantSlug string `json:"restaurantSlug"`
	RestaurantID   string `json:"restaurantId"`
	jwt.RegisteredClaims
}

type AuthServiceInterface interface {
	Register(ctx context.Context, req domain.RegisterRequest) (domain.User, error)
	Login(ctx context.Context, req domain.LoginRequest) (string, *Claims, error)
	Verify(token string) (*Claims, error)
	FromRequest(r *http.Request) (*Claims, error)
	AuthenticatedTenant(r *http.Request) (string, error)
}

type AuthService struct {
	db  repository.AuthRepositoryInterface
	cfg config.Auth
	now func() time.Time
	lg  *logger.Logger
}

func NewAuthService(db repository.AuthRepositoryInterface, cfg config.Auth) *AuthService {
	if cfg.BcryptCost == 0 {
		cfg.BcryptCost = bcrypt.DefaultCost
	}
	if cfg.TokenTTL == 0 {
		cfg.TokenTTL = 24 * time.Hour
	}
	return &AuthService{db: db, cfg: cfg, now: time.Now, lg: logger.New("auth-service")}
}

func (s *AuthService) Register(ctx context.Context, req domain.RegisterRequest) (domain.User, error) {
	email := strings.ToLower(strings.TrimSpace(req.Email))
	slug := strings.ToLower(strings.TrimSpace(req.RestaurantSlug))
	switch {
	case !strings.Contains(email, "@"):
		return domain.User{}, fmt.Errorf("%w: email is invalid", ErrValidation)
	case len(req.Password) < 6:
		return domain.User{}, fmt.Errorf("%w: password must be at least 6 characters", ErrValidation)
	case !slugPattern.MatchString(slug):
		return domain.User{}, fmt.Errorf("%w: restaurant slug must be lowercase letters, digits or dashes", ErrValidation)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), s.cfg.BcryptCost)
	if err != nil {
		return domain.User{}, fmt.Errorf("failed to hash password: %w", err)
	}
	u, err := s.db.CreateOwner(ctx, email, string(hash), slug, strings.TrimSpace(req.RestaurantName))
	if err != nil {
		return domain.User{}, err
	}
	s.lg.Info("owner_registered", map[string]any{"user_id": u.ID, "restaurant_id": u.RestaurantID})
	return u, nil
}

// Login checks the password and returns a signed session token.
func (s *AuthService) Login(ctx context.Context, req domain.LoginRequest) (string, *Claims, error) {
	u, err := s.db.FindUserByEmail(ctx, strings.ToLower(strings.TrimSpace(req.Email)))
	if errors.Is(err, repository.ErrNotFound) {
		return "", nil, ErrInvalidCredentials
	}
	if err != nil {
		return "", nil, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(req.Password)); err != nil {
		s.lg.Warn("login_failed", map[string]any{"user_id": u.ID})
		return "", nil, ErrInvalidCredentials
	}

	now := s.now()
	claims := &Claims{
		UserID:         u.ID,
		Email:          u.Email,
		RestaurantSlug: u.RestaurantSlug,
		RestaurantID:   strconv.FormatInt(u.RestaurantID, 10),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatInt(u.ID, 10),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.cfg.TokenTTL)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(s.cfg.JWTSecret))
	if err != nil {
		return "", nil, fmt.Errorf("failed to sign token: %w", err)
	}
	return token, claims, nil
}

func (s *AuthService) Verify(token string) (*Claims, error) {
	parser := jwt.NewParser(jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	claims := &Claims{}
	_, err := parser.ParseWithClaims(token, claims, func(*jwt.Token) (interface{}, error) {
		return []byte(s.cfg.JWTSecret), nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnauthenticated, err)
	}
	if claims.RestaurantID == "" {
		return nil, fmt.Errorf("%w: token has no restaurant", ErrUnauthenticated)
	}
	return claims, nil
}

// FromRequest reads the token from the session cookie or a bearer header.
func (s *AuthService) FromRequest(r *http.Request) (*Claims, error) {
	var token string
	if c, err := r.Cookie(CookieName); err == nil {
		token = c.Value
	}
	if token == "" {
		if h := r.Header.Get("Authorization"); strings.HasPrefix(h, "Bearer ") {
			token = strings.TrimSpace(strings.TrimPrefix(h, "Bearer "))
		}
	}
	if token == "" {
		return nil, ErrUnauthenticated
	}
	return s.Verify(token)
}

func (s *AuthService) AuthenticatedTenant(r *http.Request) (string, error) {
	c, err := s.FromRequest(r)
	if err != nil {
		return "", err
	}
	return c.RestaurantID, nil
}
