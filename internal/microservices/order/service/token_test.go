package service

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"qr-ordering/internal/common/logger"
	"qr-ordering/internal/common/metrics"
	"qr-ordering/internal/microservices/order/repository"
)

func newAllocator(store TokenStore) (*TokenAllocator, *metrics.Metrics, *observer.ObservedLogs) {
	core, logs := observer.New(zapcore.DebugLevel)
	m := metrics.New()
	return NewTokenAllocator(store, logger.NewWithCore("order-service", core), m), m, logs
}

func TestNextTokenStartsAtOne(t *testing.T) {
	a, _, _ := newAllocator(repository.NewMemoryTokenStore())
	assert.Equal(t, int64(1), a.NextToken(context.Background(), "42"))
	assert.Equal(t, int64(2), a.NextToken(context.Background(), "42"))
	assert.Equal(t, int64(1), a.NextToken(context.Background(), "99"))
}

func TestNextTokenContinuesFromMax(t *testing.T) {
	store := repository.NewMemoryTokenStore()
	store.Set("42", int64(17))
	a, m, _ := newAllocator(store)

	assert.Equal(t, int64(18), a.NextToken(context.Background(), "42"))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.TokensAllocated))
}

func TestNextTokenRestartsOnUnreadableMax(t *testing.T) {
	for name, raw := range map[string]any{
		"word":     "abc",
		"nan":      math.NaN(),
		"fraction": 2.5,
		"zero":     int64(0),
		"object":   map[string]any{"n": 3},
	} {
		t.Run(name, func(t *testing.T) {
			store := repository.NewMemoryTokenStore()
			store.Set("42", raw)
			a, m, logs := newAllocator(store)

			assert.Equal(t, int64(1), a.NextToken(context.Background(), "42"))
			assert.Equal(t, 1, logs.FilterMessage("order_token_unreadable").Len())
			assert.Zero(t, testutil.ToFloat64(m.TokenFallbacks.WithLabelValues("lookup")))
		})
	}
}

func TestNextTokenFallsBackToClock(t *testing.T) {
	store := repository.NewMemoryTokenStore()
	store.Fail(errors.New("connection refused"))
	a, m, logs := newAllocator(store)
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	a.clock = func() time.Time { return now }

	got := a.NextToken(context.Background(), "42")

	assert.Equal(t, now.Unix(), got)
	entries := logs.FilterMessage("order_token_fallback").All()
	require.Len(t, entries, 1)
	assert.Equal(t, zapcore.WarnLevel, entries[0].Level)
	assert.Equal(t, "lookup", entries[0].ContextMap()["reason"])
	assert.Equal(t, 1.0, testutil.ToFloat64(m.TokenFallbacks.WithLabelValues("lookup")))
}

func TestNextTokenNeverWrapsNegative(t *testing.T) {
	store := repository.NewMemoryTokenStore()
	store.Set("42", int64(math.MaxInt64))
	a, _, logs := newAllocator(store)

	got := a.NextToken(context.Background(), "42")

	assert.Equal(t, int64(1), got)
	assert.Equal(t, 1, logs.FilterMessage("order_token_unreadable").Len())
	assert.Equal(t, int64(2), a.NextToken(context.Background(), "42"))
}

func TestNextTokenStaysAheadOfFallbackTokens(t *testing.T) {
	a, _, _ := newAllocator(readOnlyStore{max: int64(1_700_000_000)})
	assert.Equal(t, int64(1_700_000_001), a.NextToken(context.Background(), "42"))
}

type failingReserver struct{ *repository.MemoryTokenStore }

func (f *failingReserver) ReserveToken(context.Context, string, int64) (int64, error) {
	return 0, errors.New("counter table locked")
}

func TestNextTokenFallsBackWhenReservationFails(t *testing.T) {
	store := &failingReserver{repository.NewMemoryTokenStore()}
	store.Set("42", int64(3))
	a, m, _ := newAllocator(store)
	now := time.Unix(1_700_000_000, 0)
	a.clock = func() time.Time { return now }

	assert.Equal(t, now.Unix(), a.NextToken(context.Background(), "42"))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.TokenFallbacks.WithLabelValues("reserve")))
}

func TestConcurrentAllocationWithReservationIsUnique(t *testing.T) {
	a, _, _ := newAllocator(repository.NewMemoryTokenStore())

	const n = 64
	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		seen = make(map[int64]bool, n)
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			tok := a.NextToken(context.Background(), "42")
			mu.Lock()
			defer mu.Unlock()
			assert.False(t, seen[tok], "token %d handed out twice", tok)
			seen[tok] = true
		}()
	}
	wg.Wait()

	require.Len(t, seen, n)
	for i := int64(1); i <= n; i++ {
		assert.True(t, seen[i], "missing token %d", i)
	}
}

// readOnlyStore can only report the current maximum. The order is written
// later by the caller, so nothing stops two readers seeing the same value.
type readOnlyStore struct{ max any }

func (s readOnlyStore) LastToken(context.Context, string) (any, error) { return s.max, nil }

func TestAllocationWithoutReservationCanRepeat(t *testing.T) {
	a, _, _ := newAllocator(readOnlyStore{max: int64(5)})

	first := a.NextToken(context.Background(), "42")
	second := a.NextToken(context.Background(), "42")

	assert.Equal(t, int64(6), first)
	assert.Equal(t, first, second)
}

func TestParseToken(t *testing.T) {
	tests := []struct {
		name string
		raw  any
		want int64
		ok   bool
	}{
		{"nil", nil, 0, false},
		{"int", 4, 4, true},
		{"int32", int32(7), 7, true},
		{"int64", int64(9), 9, true},
		{"whole float", float64(12), 12, true},
		{"fraction", 1.5, 0, false},
		{"inf", math.Inf(1), 0, false},
		{"numeric string", " 15 ", 15, true},
		{"word", "fifteen", 0, false},
		{"json number", json.Number("21"), 21, true},
		{"negative", int64(-3), 0, false},
		{"no successor", int64(math.MaxInt64), 0, false},
		{"one below the limit", int64(math.MaxInt64 - 1), math.MaxInt64 - 1, true},
		{"bool", true, 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ParseToken(tt.raw)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}
