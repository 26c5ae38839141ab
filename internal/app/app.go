package app

import (
	"context"
	"net/http"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/app"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/xenking/storefront/internal/admin"
	"github.com/xenking/storefront/internal/domain/catalog"
	"github.com/xenking/storefront/internal/domain/order"
	"github.com/xenking/storefront/internal/handler"
	"github.com/xenking/storefront/internal/storage/postgres"
	redisstore "github.com/xenking/storefront/internal/storage/redis"
	"github.com/xenking/storefront/pkg/health"
	"github.com/xenking/storefront/pkg/httpmiddleware"
)

// Run creates all dependencies, starts the API and admin servers, and handles
// graceful shutdown. It is the single wiring point for the application.
func Run(ctx context.Context, lg *zap.Logger, m *app.Telemetry, cfg *Config) error {
	lg.Info("Initializing",
		zap.String("addr", cfg.Addr),
		zap.String("admin_addr", cfg.AdminAddr),
	)

	// PostgreSQL pool + migrations.
	pool, err := postgres.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		return errors.Wrap(err, "create db pool")
	}
	defer pool.Close()

	if err := postgres.RunMigrations(pool, lg); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	// Health check service.
	healthSvc := health.New()
	healthSvc.Add(health.Liveness, "goroutines", health.GoroutineCount(10000))

	// Repositories, optionally behind the product cache.
	var products catalog.Repository = postgres.NewCatalogRepository(pool)
	var cache *redisstore.ProductCache
	var cachePing health.Pinger
	if cfg.Redis.Addr != "" {
		rdb, err := redisstore.NewClient(ctx, redisstore.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err != nil {
			return errors.Wrap(err, "connect redis")
		}
		defer func() { _ = rdb.Close() }()

		cache = redisstore.NewProductCache(products, rdb, cfg.Redis.TTL)
		products = cache
		cachePing = health.PingerFunc(func(ctx context.Context) error {
			return rdb.Ping(ctx).Err()
		})
		lg.Info("Product cache enabled", zap.String("redis", cfg.Redis.Addr), zap.Duration("ttl", cfg.Redis.TTL))
	}

	addStoreChecks(healthSvc, pool, cachePing)

	// Domain services.
	catalogSvc := catalog.NewService(products)
	orderSvc, err := order.NewService(
		postgres.NewOrderStore(pool),
		cfg.paymentPolicy(),
		m.TracerProvider(),
		m.MeterProvider(),
	)
	if err != nil {
		return errors.Wrap(err, "create order service")
	}

	// API mux: health endpoints + JSON API on one server.
	apiMux := http.NewServeMux()
	apiMux.HandleFunc("GET /livez", healthSvc.LiveEndpoint)
	apiMux.HandleFunc("GET /readyz", healthSvc.ReadyEndpoint)
	handler.NewHandler(catalogSvc, orderSvc).Register(apiMux)

	var throttle []httpmiddleware.Middleware
	if cfg.RateLimit.Requests > 0 {
		throttle = append(throttle, httpmiddleware.RateLimit(ctx, httpmiddleware.RateLimitConfig{
			Requests: cfg.RateLimit.Requests,
			Window:   cfg.RateLimit.Window,
			Skip:     isProbe,
		}))
	}
	servers := []*http.Server{newServer(ctx, cfg.Addr, "storefront-api", apiMux, m, throttle...)}

	if cfg.AdminAddr != "" {
		var opts []admin.Option
		if cache != nil {
			opts = append(opts, admin.WithWriteHook(invalidateProducts(cache)))
		}
		adminHandler, err := admin.NewHandler(postgres.NewAdminStore(pool), admin.Resources(), opts...)
		if err != nil {
			return errors.Wrap(err, "create admin handler")
		}
		adminMux := http.NewServeMux()
		adminHandler.Register(adminMux)
		servers = append(servers, newServer(ctx, cfg.AdminAddr, "storefront-admin", adminMux, m))
	}

	healthSvc.Start(ctx, 10*time.Second)
	healthSvc.SetReady(true)

	g, gctx := errgroup.WithContext(ctx)
	for _, srv := range servers {
		g.Go(func() error {
			lg.Info("Server listening", zap.String("addr", srv.Addr))
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return errors.Wrapf(err, "serve %s", srv.Addr)
			}
			return nil
		})
	}

	// Graceful shutdown: wait for cancellation or a failed server, drain,
	// then stop every server.
	g.Go(func() error {
		<-gctx.Done()
		healthSvc.SetReady(false)
		if ctx.Err() != nil {
			lg.Info("Readiness set to false, draining", zap.Duration("delay", cfg.Graceful.ReadinessDelay))
			time.Sleep(cfg.Graceful.ReadinessDelay)
		}

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Graceful.ShutdownTimeout)
		defer cancel()

		lg.Info("Shutting down servers", zap.Duration("timeout", cfg.Graceful.ShutdownTimeout))
		for _, srv := range servers {
			if err := srv.Shutdown(shutdownCtx); err != nil {
				lg.Error("Server shutdown error", zap.String("addr", srv.Addr), zap.Error(err))
			}
		}
		healthSvc.Stop()
		return nil
	})

	return g.Wait()
}

// newServer wraps mux with the shared middleware stack followed by extra.
func newServer(
	ctx context.Context,
	addr, service string,
	mux *http.ServeMux,
	m *app.Telemetry,
	extra ...httpmiddleware.Middleware,
) *http.Server {
	routeFinder := httpmiddleware.MakeRouteFinder(mux)
	middlewares := append([]httpmiddleware.Middleware{
		httpmiddleware.RequestID(),
		httpmiddleware.InjectLogger(zctx.From(ctx)),
		httpmiddleware.Recovery(),
		httpmiddleware.Instrument(service, routeFinder, m),
		httpmiddleware.LogRequests(routeFinder),
		httpmiddleware.Labeler(routeFinder),
	}, extra...)
	return &http.Server{
		ReadHeaderTimeout: time.Second,
		ReadTimeout:       5 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       120 * time.Second,
		MaxHeaderBytes:    1 << 20,
		Addr:              addr,
		Handler:           httpmiddleware.Wrap(mux, middlewares...),
	}
}

// addStoreChecks makes readiness depend on the database and, when the product
// cache is enabled, on redis.
func addStoreChecks(h *health.Health, db, cache health.Pinger) {
	h.Add(health.Readiness, "postgres", health.Ping(db), health.WithTimeout(5*time.Second))
	if cache != nil {
		h.Add(health.Readiness, "redis", health.Ping(cache))
	}
}

func isProbe(r *http.Request) bool {
	return r.URL.Path == "/livez" || r.URL.Path == "/readyz"
}

// invalidateProducts evicts cached products after admin writes that change
// what a cached product looks like.
func invalidateProducts(cache *redisstore.ProductCache) admin.WriteHook {
	return func(ctx context.Context, res *admin.Resource, id int64) {
		var err error
		switch res.Name {
		case "products":
			err = cache.Invalidate(ctx, id)
		case "categories", "characteristics", "product-characteristics":
			err = cache.Flush(ctx)
		default:
			return
		}
		if err != nil {
			zctx.From(ctx).Warn("Product cache invalidation failed",
				zap.String("resource", res.Name),
				zap.Int64("id", id),
				zap.Error(err),
			)
		}
	}
}
