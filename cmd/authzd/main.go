package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/robfig/cron/v3"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/sync/errgroup"

	"github.com/ghxstship/atlvs-sub007/pkg/async"
	"github.com/ghxstship/atlvs-sub007/pkg/audit"
	"github.com/ghxstship/atlvs-sub007/pkg/authz"
	"github.com/ghxstship/atlvs-sub007/pkg/config"
	"github.com/ghxstship/atlvs-sub007/pkg/membership"
	"github.com/ghxstship/atlvs-sub007/pkg/middleware"
	"github.com/ghxstship/atlvs-sub007/pkg/notify"
	"github.com/ghxstship/atlvs-sub007/pkg/observability"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		observability.NewLogger(observability.InfoLevel, os.Stderr).WithError(err).Error("invalid configuration")
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg.Observability.LogLevel, os.Stdout)
	if err := run(cfg, logger); err != nil {
		logger.WithError(err).Error("service exited")
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger *observability.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := observability.InitTracing(ctx, observability.TracingConfig{
		Enabled:        cfg.Observability.OTelEnabled,
		Endpoint:       cfg.Observability.OTelEndpoint,
		ServiceName:    cfg.Observability.OTelServiceName,
		ServiceVersion: cfg.Observability.OTelServiceVersion,
		Insecure:       cfg.Observability.OTelInsecure,
		SampleRatio:    1.0,
	})
	if err != nil {
		return err
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(shutdownCtx); err != nil {
			logger.WithError(err).Warn("tracing shutdown failed")
		}
	}()

	db, err := membership.Open(cfg.Database)
	if err != nil {
		return err
	}
	defer db.Close()
	logger.Info("database connected")

	registry := prometheus.NewRegistry()
	observability.RegisterDBStats(registry, db)

	store := membership.NewPostgresStore(db)
	var auditLog audit.Logger = audit.NewLogLogger(logger)
	if cfg.Authz.AuditWebhookURL != "" {
		notifier := notify.NewNotifier(ctx, []notify.Endpoint{{
			URL:    cfg.Authz.AuditWebhookURL,
			Secret: cfg.Authz.AuditWebhookSecret,
		}}, logger)
		defer notifier.Shutdown(5 * time.Second)
		auditLog = audit.Fanout{auditLog, notifier}
		logger.WithField("url", cfg.Authz.AuditWebhookURL).Info("audit webhook enabled")
	}

	table, stopWatch, err := buildRoleTable(cfg.Authz, logger)
	if err != nil {
		return err
	}
	defer stopWatch()

	cache, err := buildCache(ctx, cfg, logger)
	if err != nil {
		return err
	}

	engineMetrics := authz.NewMetrics(registry)
	reader := membership.NewService(store, nil, logger, nil)
	resolver := authz.NewResolver(table, reader,
		authz.WithCache(cache),
		authz.WithCacheTTL(cfg.Authz.CacheTTL),
		authz.WithMetrics(engineMetrics),
		authz.WithLogger(logger),
	)
	authorizer := authz.NewAuthorizer(resolver, reader, authz.WithAuthorizerMetrics(engineMetrics))
	scoper := authz.NewScoper(resolver)
	members := membership.NewService(store, resolver, logger, auditLog)
	guard := authz.NewGuard(resolver, authorizer, auditLog)

	router := mux.NewRouter()
	router.Use(
		func(next http.Handler) http.Handler {
			return otelhttp.NewHandler(next, "authzd")
		},
		middleware.RequestID,
		middleware.Logging(logger),
		middleware.Recovery(logger),
	)

	api := router.PathPrefix("/api/v1").Subrouter()
	authz.NewHandlers(resolver, authorizer, scoper, auditLog, logger).RegisterRoutes(api)

	memberAPI := router.PathPrefix("/api/v1").Subrouter()
	memberAPI.Use(middleware.Identity, middleware.OrgContext, guard.RequireModuleAccess)
	membership.NewHandlers(members, logger).RegisterRoutes(memberAPI)

	httpMetrics := observability.NewHTTPMetrics(registry)
	var handler http.Handler = router
	if cfg.Observability.MetricsEnabled {
		handler = httpMetrics.Instrument("api", router)
	}

	health := observability.NewHealthChecker(5 * time.Second)
	health.Register("database", func(ctx context.Context) error {
		return db.PingContext(ctx)
	})

	healthRouter := mux.NewRouter()
	healthRouter.Handle("/healthz", health.LivenessHandler())
	healthRouter.Handle("/readyz", health.ReadinessHandler())
	if cfg.Observability.MetricsEnabled {
		healthRouter.Handle("/metrics", observability.MetricsHandler(registry))
	}

	apiServer := &http.Server{
		Addr:         cfg.Server.Host + ":" + cfg.Server.Port,
		Handler:      handler,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}
	healthServer := &http.Server{
		Addr:    cfg.Server.Host + ":" + cfg.Server.HealthPort,
		Handler: healthRouter,
	}

	janitor := startJanitor(ctx, cfg.Authz.FlushSchedule, resolver, logger)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.WithField("addr", apiServer.Addr).Info("starting api server")
		if err := apiServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		logger.WithField("addr", healthServer.Addr).Info("starting health server")
		if err := healthServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")
		if janitor != nil {
			janitor.Stop()
		}
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := apiServer.Shutdown(shutdownCtx); err != nil {
			logger.WithError(err).Warn("api server shutdown failed")
		}
		return healthServer.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

// buildRoleTable assembles the active role table. With an overrides file
// configured, the file is applied at startup and watched for changes; a bad
// edit logs and keeps the last good table.
func buildRoleTable(cfg config.AuthzConfig, logger *observability.Logger) (authz.Table, func(), error) {
	base := authz.DefaultRoleTable()
	if cfg.OverridesFile == "" {
		return base, func() {}, nil
	}

	rt := authz.NewReloadableTable(base)
	if err := rt.Reload(base, cfg.OverridesFile); err != nil {
		return nil, nil, err
	}
	logger.WithField("file", cfg.OverridesFile).Info("role table overrides applied")

	stop := make(chan struct{})
	async.SafeGo(context.Background(), 0, "overrides-watch", logger, func(context.Context) error {
		return rt.Watch(base, cfg.OverridesFile, stop, func(err error) {
			logger.WithError(err).Error("role table reload failed")
		})
	})
	return rt, func() { close(stop) }, nil
}

func buildCache(ctx context.Context, cfg *config.Config, logger *observability.Logger) (authz.Cache, error) {
	if !cfg.Redis.Enabled {
		return authz.NewMemoryCache(cfg.Authz.CacheSize, cfg.Authz.CacheTTL), nil
	}
	cache, err := authz.NewRedisCache(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		return nil, err
	}
	logger.WithField("addr", cfg.Redis.Addr).Info("redis cache connected")
	return cache, nil
}

// startJanitor schedules periodic full cache flushes, a backstop against any
// missed invalidation. Returns nil when no schedule is configured.
func startJanitor(ctx context.Context, schedule string, resolver *authz.Resolver, logger *observability.Logger) *cron.Cron {
	if schedule == "" {
		return nil
	}
	c := cron.New()
	if _, err := c.AddFunc(schedule, func() {
		resolver.Flush(ctx)
		logger.Debug("permission cache flushed")
	}); err != nil {
		logger.WithError(err).Error("invalid flush schedule, janitor disabled")
		return nil
	}
	c.Start()
	return c
}
