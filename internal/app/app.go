// Package app wires the chat ordering service together.
package app

import (
	"context"
	"net/http"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/app"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/xenking/menuchat/db"
	"github.com/xenking/menuchat/internal/assistant"
	"github.com/xenking/menuchat/internal/domain/catalog"
	"github.com/xenking/menuchat/internal/handler"
	"github.com/xenking/menuchat/internal/search"
	"github.com/xenking/menuchat/internal/storage/menufile"
	"github.com/xenking/menuchat/internal/storage/postgres"
	"github.com/xenking/menuchat/pkg/health"
	"github.com/xenking/menuchat/pkg/httpmiddleware"
)

const serviceName = "menuchat"

// Run creates all dependencies, starts the HTTP server, and handles graceful
// shutdown. It is the single wiring point for the application.
func Run(ctx context.Context, lg *zap.Logger, m *app.Telemetry, cfg *Config) error {
	lg.Info("Initializing",
		zap.String("addr", cfg.Addr),
		zap.String("catalog_source", cfg.Catalog.Source),
	)

	svc, err := build(ctx, lg, cfg, m.TracerProvider(), m.MeterProvider())
	if err != nil {
		return err
	}
	defer svc.Close()

	server := &http.Server{
		ReadHeaderTimeout: time.Second,
		ReadTimeout:       5 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       120 * time.Second,
		MaxHeaderBytes:    1 << 20,
		Addr:              cfg.Addr,
		Handler:           svc.handler,
	}

	g, gCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		lg.Info("Server listening", zap.String("addr", cfg.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return errors.Wrap(err, "server")
		}
		return nil
	})
	g.Go(func() error {
		<-gCtx.Done()
		svc.health.SetReady(false)
		if ctx.Err() != nil {
			// Shutdown was requested: give load balancers time to observe
			// readiness=false before connections are drained.
			lg.Info("Readiness set to false, draining", zap.Duration("delay", cfg.Graceful.ReadinessDelay))
			time.Sleep(cfg.Graceful.ReadinessDelay)
		}

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Graceful.ShutdownTimeout)
		defer cancel()

		lg.Info("Shutting down server", zap.Duration("timeout", cfg.Graceful.ShutdownTimeout))
		if err := server.Shutdown(shutdownCtx); err != nil {
			return errors.Wrap(err, "shutdown")
		}
		return nil
	})

	svc.health.SetReady(true)
	return g.Wait()
}

// service is the assembled application minus the network listener.
type service struct {
	catalog *catalog.Catalog
	health  *health.Health
	handler http.Handler
	pool    *pgxpool.Pool
}

// Close releases the database pool, if any.
func (s *service) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

func build(
	ctx context.Context,
	lg *zap.Logger,
	cfg *Config,
	tp trace.TracerProvider,
	mp metric.MeterProvider,
) (_ *service, rerr error) {
	svc := &service{health: health.New()}
	defer func() {
		if rerr != nil {
			svc.Close()
		}
	}()

	src, err := svc.openSource(ctx, cfg)
	if err != nil {
		return nil, err
	}
	cat, err := catalog.Load(ctx, src)
	if err != nil {
		return nil, errors.Wrap(err, "load catalog")
	}
	svc.catalog = cat
	lg.Info("Catalog loaded",
		zap.Int("categories", len(cat.Categories())),
		zap.Int("items", cat.Len()),
	)

	svc.health.AddLivenessCheck("goroutines", time.Second, health.GoroutineCountCheck(10000))
	svc.health.AddReadinessCheck("catalog", time.Second, health.NonEmptyCheck("catalog", cat.Len))
	if svc.pool != nil {
		svc.health.AddReadinessCheck("postgres", 5*time.Second, health.PingCheck(svc.pool))
	}

	h, err := handler.New(assistant.New(search.New(cat)), cat, tp, mp)
	if err != nil {
		return nil, errors.Wrap(err, "create handler")
	}

	svc.handler = routes(ctx, lg, cfg, svc.health, h, tp, mp)
	return svc, nil
}

// openSource returns the configured catalog source. The postgres source
// opens a pool, kept on svc, and applies the schema.
func (s *service) openSource(ctx context.Context, cfg *Config) (catalog.Source, error) {
	switch cfg.Catalog.Source {
	case SourceFile:
		return menufile.NewFile(cfg.Catalog.File), nil
	case SourcePostgres:
		pool, err := postgres.NewPool(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, errors.Wrap(err, "create db pool")
		}
		s.pool = pool
		if err := postgres.RunMigrations(ctx, pool); err != nil {
			return nil, errors.Wrap(err, "run migrations")
		}
		return postgres.NewCatalogRepository(pool), nil
	default:
		return menufile.NewBytes(db.Menu), nil
	}
}

// routes mounts the probes and the API on one mux. Rate limiting applies to
// the API only, so probes are never throttled.
func routes(
	ctx context.Context,
	lg *zap.Logger,
	cfg *Config,
	hs *health.Health,
	h *handler.Handler,
	tp trace.TracerProvider,
	mp metric.MeterProvider,
) http.Handler {
	api := http.NewServeMux()
	h.Register(api)

	var apiHandler http.Handler = api
	if cfg.RateLimit.RPS > 0 {
		apiHandler = httpmiddleware.Wrap(api, httpmiddleware.RateLimit(ctx, httpmiddleware.RateLimitConfig{
			RPS:   cfg.RateLimit.RPS,
			Burst: cfg.RateLimit.Burst,
			TTL:   cfg.RateLimit.TTL,
		}))
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /livez", hs.LiveEndpoint)
	mux.HandleFunc("GET /readyz", hs.ReadyEndpoint)
	mux.Handle("/api/", apiHandler)

	return httpmiddleware.Wrap(mux,
		httpmiddleware.RequestID(),
		httpmiddleware.InjectLogger(lg),
		httpmiddleware.Recovery(),
		httpmiddleware.LogRequests(),
		httpmiddleware.Instrument(serviceName, tp, mp),
		httpmiddleware.CORS(httpmiddleware.CORSConfig{
			AllowOrigins:     cfg.CORS.Origins,
			AllowHeaders:     []string{"Content-Type", httpmiddleware.RequestIDHeader},
			AllowCredentials: cfg.CORS.AllowCredentials,
			MaxAge:           86400,
		}),
	)
}
