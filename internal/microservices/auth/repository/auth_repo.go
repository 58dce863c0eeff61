package repository

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"qr-ordering/internal/domain"
)

var (
	ErrNotFound   = errors.New("not found")
	ErrEmailTaken = errors.New("email already registered")
)

const uniqueViolation = "23505"

type AuthRepositoryInterface interface {
	CreateOwner(ctx context.Context, email, passwordHash, slug, restaurantName string) (domain.User, error)
	FindUserByEmail(ctx context.Context, email string) (domain.User, error)
}

// RestaurantResolver finds a restaurant by numeric id or by slug.
type RestaurantResolver interface {
	ResolveRestaurant(ctx context.Context, idOrSlug string) (domain.Restaurant, error)
}

type AuthRepository struct {
	db *pgxpool.Pool
}

func NewAuthRepository(db *pgxpool.Pool) *AuthRepository {
	return &AuthRepository{db: db}
}

// CreateOwner registers an owner account, creating the restaurant when the
// slug is new.
func (r *AuthRepository) CreateOwner(ctx context.Context, email, passwordHash, slug, restaurantName string) (domain.User, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return domain.User{}, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if restaurantName == "" {
		restaurantName = slug
	}
	var restaurantID int64
	err = tx.QueryRow(ctx, `
		INSERT INTO restaurants (name, slug) VALUES ($1, $2)
		ON CONFLICT (slug) DO UPDATE SET slug = EXCLUDED.slug
		RETURNING id
	`, restaurantName, slug).Scan(&restaurantID)
	if err != nil {
		return domain.User{}, fmt.Errorf("failed to upsert restaurant: %w", err)
	}

	u := domain.User{
		Email:          email,
		PasswordHash:   passwordHash,
		RestaurantID:   restaurantID,
		RestaurantSlug: slug,
	}
	err = tx.QueryRow(ctx, `
		INSERT INTO users (email, password_hash, restaurant_id, restaurant_slug)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at
	`, email, passwordHash, restaurantID, slug).Scan(&u.ID, &u.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return domain.User{}, ErrEmailTaken
		}
		return domain.User{}, fmt.Errorf("failed to insert user: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return domain.User{}, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return u, nil
}

func (r *AuthRepository) FindUserByEmail(ctx context.Context, email string) (domain.User, error) {
	var u domain.User
	err := r.db.QueryRow(ctx, `
		SELECT id, email, password_hash, restaurant_id, restaurant_slug, created_at
		FROM users WHERE email = $1
	`, email).Scan(&u.ID, &u.Email, &u.PasswordHash, &u.RestaurantID, &u.RestaurantSlug, &u.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.User{}, ErrNotFound
	}
	if err != nil {
		return domain.User{}, fmt.Errorf("failed to find user: %w", err)
	}
	return u, nil
}

func (r *AuthRepository) ResolveRestaurant(ctx context.Context, idOrSlug string) (domain.Restaurant, error) {
	query := `SELECT id, name, slug, created_at FROM restaurants WHERE slug = $1`
	var arg any = idOrSlug
	if id, err := strconv.ParseInt(idOrSlug, 10, 64); err == nil {
		query = `SELECT id, name, slug, created_at FROM restaurants WHERE id = $1`
		arg = id
	}

	var rest domain.Restaurant
	err := r.db.QueryRow(ctx, query, arg).Scan(&rest.ID, &rest.Name, &rest.Slug, &rest.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Restaurant{}, ErrNotFound
	}
	if err != nil {
		return domain.Restaurant{}, fmt.Errorf("failed to resolve restaurant: %w", err)
	}
	return rest, nil
}
