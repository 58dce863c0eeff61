package httpx

import (
	"bufio"
	"context"
	"errors"
	"net"
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"

	"qr-ordering/internal/common/logger"
)

type ctxKey int

const (
	requestIDKey ctxKey = iota
	tenantKey
)

func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey).(string)
	return id
}

// WithTenant records the resolved restaurant id for downstream handlers.
func WithTenant(ctx context.Context, tenantID string) context.Context {
	return context.WithValue(ctx, tenantKey, tenantID)
}

// Tenant returns the restaurant id resolved for the request. Without a
// resolver in the chain it falls back to the raw {restaurantId} path value.
func Tenant(r *http.Request) string {
	if id, ok := r.Context().Value(tenantKey).(string); ok && id != "" {
		return id
	}
	return r.PathValue("restaurantId")
}

type Middleware func(http.Handler) http.Handler

// Chain wraps h so that mw[0] runs first. Nil entries are skipped.
func Chain(h http.Handler, mw ...Middleware) http.Handler {
	for i := len(mw) - 1; i >= 0; i-- {
		if mw[i] != nil {
			h = mw[i](h)
		}
	}
	return h
}

// Guards are the per-route middlewares services mount their routes behind.
type Guards struct {
	Tenant Middleware // resolves {restaurantId}
	Owner  Middleware // admits only that restaurant's owner
}

func (g Guards) Public(h http.HandlerFunc) http.Handler { return Chain(h, g.Tenant) }

func (g Guards) Owned(h http.HandlerFunc) http.Handler { return Chain(h, g.Tenant, g.Owner) }

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

func (s *statusRecorder) Unwrap() http.ResponseWriter { return s.ResponseWriter }

// Hijack is needed by the websocket upgrader.
func (s *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hj, ok := s.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("response writer does not support hijacking")
	}
	s.status = http.StatusSwitchingProtocols
	return hj.Hijack()
}

// AccessLog tags each request with an id and logs it once finished.
func AccessLog(lg *logger.Logger) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := r.Header.Get("X-Request-ID")
			if id == "" {
				id = uuid.NewString()
			}
			w.Header().Set("X-Request-ID", id)
			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			start := time.Now()
			next.ServeHTTP(rec, r.WithContext(context.WithValue(r.Context(), requestIDKey, id)))
			lg.Debug("http_request", map[string]any{
				"request_id":  id,
				"method":      r.Method,
				"path":        r.URL.Path,
				"status":      rec.status,
				"duration_ms": time.Since(start).Milliseconds(),
			})
		})
	}
}

// Limit caps in-flight requests. Excess requests get 503 rather than queueing.
func Limit(maxConcurrent int64, onReject func()) Middleware {
	sem := semaphore.NewWeighted(maxConcurrent)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !sem.TryAcquire(1) {
				if onReject != nil {
					onReject()
				}
				WriteProblem(w, http.StatusServiceUnavailable, "overloaded", "too many concurrent requests")
				return
			}
			defer sem.Release(1)
			next.ServeHTTP(w, r)
		})
	}
}

// OriginAllowed reports whether origin may talk to the API. Requests without an
// Origin header (curl, mobile apps) are allowed.
func OriginAllowed(allowed []string, origin string) bool {
	if origin == "" {
		return true
	}
	return slices.Contains(allowed, origin)
}

// CORS answers preflights and echoes allowed origins with credentials enabled.
func CORS(allowed []string) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")
			if !OriginAllowed(allowed, origin) {
				WriteProblem(w, http.StatusForbidden, "cors", "origin not allowed")
				return
			}
			if origin != "" {
				h := w.Header()
				h.Set("Access-Control-Allow-Origin", origin)
				h.Set("Access-Control-Allow-Credentials", "true")
				h.Add("Vary", "Origin")
			}
			if r.Method == http.MethodOptions {
				h := w.Header()
				h.Set("Access-Control-Allow-Methods", strings.Join([]string{
					http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodPatch, http.MethodOptions,
				}, ", "))
				h.Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
				w.WriteHeader(http.StatusNoContent)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
