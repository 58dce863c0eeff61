package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"qr-ordering/internal/common/httpx"
	"qr-ordering/internal/microservices/auth/repository"
	"qr-ordering/internal/microservices/auth/service"
)

type claimsKey struct{}

// ClaimsFrom returns the owner claims stored by RequireOwner.
func ClaimsFrom(ctx context.Context) (*service.Claims, bool) {
	c, ok := ctx.Value(claimsKey{}).(*service.Claims)
	return c, ok
}

// ResolveTenant turns the {restaurantId} path segment, an id or a slug, into
// the restaurant id. Unknown restaurants get 404.
func ResolveTenant(res repository.RestaurantResolver) httpx.Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw := r.PathValue("restaurantId")
			if raw == "" {
				httpx.WriteProblem(w, http.StatusBadRequest, "validation", "restaurant id is required")
				return
			}
			rest, err := res.ResolveRestaurant(r.Context(), raw)
			if errors.Is(err, repository.ErrNotFound) {
				httpx.WriteProblem(w, http.StatusNotFound, "not_found", "restaurant not found")
				return
			}
			if err != nil {
				httpx.WriteProblem(w, http.StatusInternalServerError, "internal", "could not resolve restaurant")
				return
			}
			ctx := httpx.WithTenant(r.Context(), strconv.FormatInt(rest.ID, 10))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireOwner admits only owners whose token belongs to the resolved tenant.
func RequireOwner(auth service.AuthServiceInterface) httpx.Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims, err := auth.FromRequest(r)
			if err != nil {
				httpx.WriteProblem(w, http.StatusUnauthorized, "auth", "authentication required")
				return
			}
			if claims.RestaurantID != httpx.Tenant(r) {
				httpx.WriteProblem(w, http.StatusForbidden, "auth", "not authorized for this restaurant")
				return
			}
			next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), claimsKey{}, claims)))
		})
	}
}
