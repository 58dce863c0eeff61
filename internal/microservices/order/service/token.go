package service

import (
	"context"
	"encoding/json"
	"math"
	"strconv"
	"strings"
	"time"

	"qr-ordering/internal/common/logger"
	"qr-ordering/internal/common/metrics"
)

// TokenStore reads the highest token stored for a tenant. It returns the raw
// stored value (nil when the tenant has none) because older records may hold
// anything in that field.
type TokenStore interface {
	LastToken(ctx context.Context, tenantID string) (any, error)
}

// TokenReserver is implemented by stores that can hand out a token atomically.
// The returned token is never below floor and never repeats for a tenant.
type TokenReserver interface {
	ReserveToken(ctx context.Context, tenantID string, floor int64) (int64, error)
}

type TokenAllocatorInterface interface {
	NextToken(ctx context.Context, tenantID string) int64
}

// TokenAllocator hands out per-tenant order tokens. It never fails: when the
// store cannot answer it returns the current unix time instead and records the
// degradation.
type TokenAllocator struct {
	store TokenStore
	clock func() time.Time
	lg    *logger.Logger
	m     *metrics.Metrics
}

// NewTokenAllocator builds an allocator over store. m may be nil.
func NewTokenAllocator(store TokenStore, lg *logger.Logger, m *metrics.Metrics) *TokenAllocator {
	return &TokenAllocator{store: store, clock: time.Now, lg: lg, m: m}
}

func (a *TokenAllocator) NextToken(ctx context.Context, tenantID string) int64 {
	raw, err := a.store.LastToken(ctx, tenantID)
	if err != nil {
		return a.fallback(tenantID, "lookup", err)
	}

	next := int64(1)
	if last, ok := ParseToken(raw); ok {
		next = last + 1
	} else if raw != nil {
		a.lg.Warn("order_token_unreadable", map[string]any{"tenant_id": tenantID, "raw": raw})
	}

	if r, ok := a.store.(TokenReserver); ok {
		reserved, err := r.ReserveToken(ctx, tenantID, next)
		if err != nil {
			return a.fallback(tenantID, "reserve", err)
		}
		next = reserved
	}

	if a.m != nil {
		a.m.TokensAllocated.Inc()
	}
	a.lg.Debug("order_token_allocated", map[string]any{"tenant_id": tenantID, "token": next})
	return next
}

func (a *TokenAllocator) fallback(tenantID, reason string, err error) int64 {
	token := a.clock().Unix()
	a.lg.Warn("order_token_fallback", map[string]any{
		"tenant_id": tenantID,
		"reason":    reason,
		"error":     err.Error(),
		"token":     token,
	})
	if a.m != nil {
		a.m.TokenFallbacks.WithLabelValues(reason).Inc()
		a.m.TokensAllocated.Inc()
	}
	return token
}

// ParseToken interprets a stored token value. Only positive whole numbers
// that still have a successor count; everything else reports false so the
// sequence restarts.
func ParseToken(raw any) (int64, bool) {
	var n int64
	switch v := raw.(type) {
	case int:
		n = int64(v)
	case int32:
		n = int64(v)
	case int64:
		n = v
	case float64:
		if math.IsNaN(v) || math.IsInf(v, 0) || v != math.Trunc(v) || v > math.MaxInt64/2 {
			return 0, false
		}
		n = int64(v)
	case json.Number:
		i, err := v.Int64()
		if err != nil {
			return 0, false
		}
		n = i
	case string:
		i, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
		if err != nil {
			return 0, false
		}
		n = i
	default:
		return 0, false
	}
	if n <= 0 || n == math.MaxInt64 {
		return 0, false
	}
	return n, true
}
