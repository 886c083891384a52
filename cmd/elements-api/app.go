package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"golang.org/x/sync/errgroup"

	"github.com/vantutran2k1/elements/internal/element"
	elementhttp "github.com/vantutran2k1/elements/internal/element/http"
	"github.com/vantutran2k1/elements/internal/element/memstore"
	"github.com/vantutran2k1/elements/internal/element/postgres"
	"github.com/vantutran2k1/elements/internal/element/sqlite"
	"github.com/vantutran2k1/elements/internal/events"
	"github.com/vantutran2k1/elements/pkg/logger"
	"github.com/vantutran2k1/elements/pkg/metrics"
	"github.com/vantutran2k1/elements/pkg/tracing"
)

const serviceName = "elements-api"

type app struct {
	config        Config
	logger        *slog.Logger
	httpServer    *http.Server
	metricsServer *http.Server
	store         io.Closer
	redisClient   *redis.Client
	nc            *nats.Conn
	tp            *sdktrace.TracerProvider
}

func newApp(ctx context.Context, cfg Config) (*app, error) {
	log := logger.Get()
	a := &app{config: cfg, logger: log}

	var err error
	a.tp, err = tracing.InitTracerProvider(ctx, serviceName, cfg.Tracing.Endpoint)
	if err != nil {
		return nil, fmt.Errorf("failed to init tracer: %w", err)
	}

	store, closer, err := openStore(ctx, cfg.Store)
	if err != nil {
		a.shutdown(ctx)
		return nil, err
	}
	a.store = closer
	log.Info("element store ready", "driver", cfg.Store.Driver)

	opts := []elementhttp.Option{
		elementhttp.WithLogger(log),
		elementhttp.WithReservedParam(cfg.API.QueryParam),
	}

	if cfg.Redis.Address != "" {
		a.redisClient = redis.NewClient(&redis.Options{
			Addr: cfg.Redis.Address,
		})
		if err := a.redisClient.Ping(ctx).Err(); err != nil {
			a.shutdown(ctx)
			return nil, fmt.Errorf("failed to connect to redis: %w", err)
		}
		log.Info("connected to redis", "address", cfg.Redis.Address)
		opts = append(opts, elementhttp.WithCache(elementhttp.NewRedisCache(a.redisClient, cfg.Redis.TTL)))
	}

	if cfg.NATS.URL != "" {
		a.nc, err = nats.Connect(cfg.NATS.URL, nats.Name(serviceName))
		if err != nil {
			a.shutdown(ctx)
			return nil, fmt.Errorf("failed to connect to nats: %w", err)
		}
		log.Info("connected to nats", "url", cfg.NATS.URL, "subject", cfg.NATS.Subject)
		opts = append(opts, elementhttp.WithPublisher(events.NewNATSPublisher(a.nc, cfg.NATS.Subject)))
	}

	repo := element.NewRepository(store,
		element.WithLogger(log),
		element.WithUniqueType(cfg.Store.UniqueType),
	)
	if !cfg.Store.UniqueType {
		log.Info("element types are not unique; set store.unique_type to enforce it")
	}
	apiHandler := elementhttp.NewAPIHandler(repo, opts...)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(log))
	r.Use(middleware.Recoverer)
	r.Use(metrics.Instrument(serviceName))
	r.Use(func(h http.Handler) http.Handler {
		return otelhttp.NewHandler(h, "elements-api-http")
	})

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	apiHandler.Mount(r)

	a.httpServer = &http.Server{
		Addr:              cfg.API.Port,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
	}

	if cfg.API.Metrics != "" {
		a.metricsServer = metrics.NewServer(cfg.API.Metrics, cfg.API.Pprof)
	}

	return a, nil
}

type closerFunc func() error

func (f closerFunc) Close() error { return f() }

func openStore(ctx context.Context, cfg StoreConfig) (element.Store, io.Closer, error) {
	switch cfg.Driver {
	case "postgres":
		pool, err := postgres.Connect(ctx, cfg.DSN)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to connect to postgres: %w", err)
		}
		s := postgres.NewStore(pool)
		if cfg.CreateSchema {
			if err := s.EnsureSchema(ctx, cfg.UniqueType); err != nil {
				s.Close()
				return nil, nil, err
			}
		}
		return s, s, nil

	case "sqlite":
		s, err := sqlite.Open(cfg.DSN)
		if err != nil {
			return nil, nil, err
		}
		if cfg.CreateSchema {
			if err := s.EnsureSchema(ctx, cfg.UniqueType); err != nil {
				s.Close()
				return nil, nil, err
			}
		}
		return s, s, nil

	case "memory":
		s := memstore.New()
		return s, closerFunc(s.Close), nil
	}
	return nil, nil, fmt.Errorf("unknown store driver %q", cfg.Driver)
}

func (a *app) run(_ context.Context) error {
	var g errgroup.Group

	g.Go(func() error {
		a.logger.Info("elements api starting", "addr", a.config.API.Port)
		return serve(a.httpServer)
	})

	if a.metricsServer != nil {
		g.Go(func() error {
			a.logger.Info("metrics server starting", "addr", a.metricsServer.Addr, "pprof", a.config.API.Pprof)
			return serve(a.metricsServer)
		})
	}

	return g.Wait()
}

func serve(srv *http.Server) error {
	if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("http server error on %s: %w", srv.Addr, err)
	}
	return nil
}

// shutdown releases whatever newApp managed to set up, so it is also used to
// unwind a partially built app.
func (a *app) shutdown(ctx context.Context) error {
	a.logger.Info("shutting down elements api...")

	for _, srv := range []*http.Server{a.httpServer, a.metricsServer} {
		if srv == nil {
			continue
		}
		if err := srv.Shutdown(ctx); err != nil {
			a.logger.Error("http server shutdown error", "addr", srv.Addr, "error", err)
		}
	}

	if a.nc != nil {
		if err := a.nc.Drain(); err != nil {
			a.logger.Error("nats drain error", "error", err)
		}
	}

	if a.redisClient != nil {
		if err := a.redisClient.Close(); err != nil {
			a.logger.Error("redis close error", "error", err)
		}
	}

	if a.store != nil {
		if err := a.store.Close(); err != nil {
			a.logger.Error("store close error", "error", err)
		}
	}

	if a.tp != nil {
		if err := a.tp.Shutdown(ctx); err != nil {
			a.logger.Error("tracer shutdown error", "error", err)
		}
	}

	a.logger.Info("elements api shut down gracefully")
	return nil
}

func requestLogger(log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()

			next.ServeHTTP(ww, r)

			logger.FromContext(r.Context(), log).Info("request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"bytes", ww.BytesWritten(),
				"duration", time.Since(start),
			)
		})
	}
}
