package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/sync/errgroup"

	"qr-ordering/internal/common/config"
	"qr-ordering/internal/common/httpx"
	"qr-ordering/internal/common/logger"
	"qr-ordering/internal/common/metrics"
	"qr-ordering/internal/connections/database"
	"qr-ordering/internal/connections/mongodb"
	"qr-ordering/internal/connections/rabbitmq"
	"qr-ordering/internal/microservices/auth"
	authhandlers "qr-ordering/internal/microservices/auth/handlers"
	authrepo "qr-ordering/internal/microservices/auth/repository"
	authservice "qr-ordering/internal/microservices/auth/service"
	"qr-ordering/internal/microservices/kitchen"
	kitchenhandlers "qr-ordering/internal/microservices/kitchen/handlers"
	kitchenrepo "qr-ordering/internal/microservices/kitchen/repository"
	kitchenservice "qr-ordering/internal/microservices/kitchen/service"
	"qr-ordering/internal/microservices/order"
	orderhandlers "qr-ordering/internal/microservices/order/handlers"
	orderrepo "qr-ordering/internal/microservices/order/repository"
	orderservice "qr-ordering/internal/microservices/order/service"
	"qr-ordering/internal/microservices/realtime/bridge"
	wshandler "qr-ordering/internal/microservices/realtime/handler"
	"qr-ordering/internal/microservices/realtime/hub"
	"qr-ordering/internal/microservices/tracker"
	trackerhandler "qr-ordering/internal/microservices/tracker/handler"
	trackerrepo "qr-ordering/internal/microservices/tracker/repository"
	trackerservice "qr-ordering/internal/microservices/tracker/service"
)

// Run serves the HTTP API and the kitchen socket until ctx is cancelled.
func Run(ctx context.Context, cfg config.App) error {
	lg := logger.New("api-server")
	m := metrics.New()

	pool, err := database.ConnectDB(ctx, cfg.Database)
	if err != nil {
		return err
	}
	defer pool.Close()

	relay := hub.New(logger.New("realtime"), m)
	var (
		pub hub.Publisher = relay
		br  *bridge.Bridge
	)
	if cfg.Rabbit.Enabled {
		rmq, err := rabbitmq.Dial(cfg.Rabbit)
		if err != nil {
			return fmt.Errorf("rabbitmq: %w", err)
		}
		defer rmq.Close()
		if err := rmq.DeclareFanout(cfg.Rabbit.Exchange); err != nil {
			return fmt.Errorf("declare exchange %s: %w", cfg.Rabbit.Exchange, err)
		}
		br = bridge.New(relay, rmq, cfg.Rabbit.Exchange, m)
		pub = br
		lg.Info("bridge_enabled", map[string]any{"exchange": cfg.Rabbit.Exchange, "instance": br.Instance()})
	}

	orders := orderrepo.New(pool)
	tokens, closeTokens, err := tokenStore(ctx, cfg, orders)
	if err != nil {
		return err
	}
	defer closeTokens()

	srv := httpx.New(cfg.Server.Addr, Routes(Deps{
		Config:    cfg,
		Metrics:   m,
		Pool:      pool,
		Orders:    orders,
		Tokens:    tokens,
		Hub:       relay,
		Publisher: pub,
	}))

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		lg.Info("service_started", map[string]any{
			"addr":           cfg.Server.Addr,
			"order_store":    cfg.OrderStore,
			"max_concurrent": cfg.Server.MaxConcurrent,
		})
		return srv.Run(gctx)
	})
	if br != nil {
		g.Go(func() error {
			err := br.Run(gctx)
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		})
	}
	return g.Wait()
}

// tokenStore picks where order tokens are counted. The returned func releases
// whatever connection the store holds.
func tokenStore(ctx context.Context, cfg config.App, orders *orderrepo.Repository) (orderservice.TokenStore, func(), error) {
	switch cfg.OrderStore {
	case config.StoreMongo:
		conn, err := mongodb.Connect(ctx, cfg.Mongo)
		if err != nil {
			return nil, nil, err
		}
		return orderrepo.NewMongoTokenStore(conn, orders.OrderRepo), func() {
			cctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = conn.Close(cctx)
		}, nil
	case config.StoreMemory:
		return orderrepo.NewMemoryTokenStore(), func() {}, nil
	default:
		return orders.OrderRepo, func() {}, nil
	}
}

type Deps struct {
	Config    config.App
	Metrics   *metrics.Metrics
	Pool      *pgxpool.Pool
	Orders    *orderrepo.Repository
	Tokens    orderservice.TokenStore
	Hub       *hub.Hub
	Publisher hub.Publisher
}

// Routes mounts every service on one handler. The socket endpoint sits outside
// the concurrency limit since its connections are long lived.
func Routes(d Deps) http.Handler {
	cfg := d.Config

	authRepo := authrepo.New(d.Pool)
	authSvc := authservice.New(authRepo, cfg.Auth)
	guards := httpx.Guards{
		Tenant: authhandlers.ResolveTenant(authRepo.AuthRepo),
		Owner:  authhandlers.RequireOwner(authSvc.AuthService),
	}

	api := http.NewServeMux()
	auth.Register(api, authhandlers.New(authSvc, cfg.Server.Production))
	order.Register(api, orderhandlers.New(orderservice.New(d.Orders, d.Tokens, d.Publisher, d.Metrics)), guards)
	kitchen.Register(api, kitchenhandlers.New(kitchenservice.New(kitchenrepo.New(d.Pool), d.Publisher), actor), guards)
	tracker.Register(api, trackerhandler.New(trackerservice.New(trackerrepo.NewTrackerRepo(d.Pool)).TrackerService), guards)

	var socketAuth wshandler.TenantAuthenticator
	if cfg.Realtime.RequireKitchenAuth {
		socketAuth = authSvc.AuthService
	}
	ws := wshandler.New(d.Hub, d.Publisher, socketAuth, cfg.Realtime, cfg.CORS.AllowedOrigins)

	root := http.NewServeMux()
	root.HandleFunc("GET /socket", ws.ServeWs)
	root.Handle("GET /metrics", d.Metrics.Handler())
	root.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		httpx.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	root.Handle("/", httpx.Chain(api, httpx.Limit(cfg.Server.MaxConcurrent, d.Metrics.RequestsRejected.Inc)))

	return httpx.Chain(root,
		httpx.AccessLog(logger.New("http")),
		httpx.CORS(cfg.CORS.AllowedOrigins),
	)
}

// actor names the owner behind a kitchen change in the status log.
func actor(r *http.Request) string {
	if c, ok := authhandlers.ClaimsFrom(r.Context()); ok && c.Email != "" {
		return c.Email
	}
	return "kitchen"
}
