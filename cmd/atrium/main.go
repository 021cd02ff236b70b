package main

import (
	"context"
	"database/sql"
	"errors"
	"log"
	"net"
	"net/http"
	"os"

	"golang.org/x/sync/errgroup"

	"github.com/atriumhq/atrium/pkg/api"
	"github.com/atriumhq/atrium/pkg/audit"
	"github.com/atriumhq/atrium/pkg/authz"
	"github.com/atriumhq/atrium/pkg/config"
	"github.com/atriumhq/atrium/pkg/entities"
	"github.com/atriumhq/atrium/pkg/httputil"
	"github.com/atriumhq/atrium/pkg/identity"
	"github.com/atriumhq/atrium/pkg/middleware"
	"github.com/atriumhq/atrium/pkg/observability"
	"github.com/atriumhq/atrium/pkg/roles"
	"github.com/atriumhq/atrium/pkg/storage"
	"github.com/atriumhq/atrium/pkg/templates"
	"github.com/atriumhq/atrium/pkg/tenants"
	"github.com/atriumhq/atrium/pkg/workflows"

	"github.com/go-redis/redis/v8"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger := observability.NewLogger(cfg.Observability.LogLevel, os.Stdout)
	logger.Info("starting atrium")

	db, err := storage.Open(storage.Config{
		URL:             cfg.Database.URL,
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
	})
	if err != nil {
		logger.WithError(err).Fatal("failed to connect to postgres")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := runMigrations(ctx, db); err != nil {
		logger.WithError(err).Fatal("failed to run migrations")
	}
	logger.Info("database migrations applied")

	var redisClient *redis.Client
	if cfg.Redis.URL != "" {
		redisClient, err = storage.NewRedisClient(storage.RedisConfig{
			Addr:     cfg.Redis.URL,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			PoolSize: cfg.Redis.PoolSize,
		})
		if err != nil {
			logger.WithError(err).Fatal("failed to connect to redis")
		}
	}

	var metrics *observability.Metrics
	registry := prometheus.NewRegistry()
	if cfg.Observability.MetricsEnabled {
		registry.MustRegister(collectors.NewGoCollector())
		registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
		metrics = observability.NewMetrics(registry)
	}

	var auditLogger audit.Logger = audit.NopLogger{}
	var auditQuery *audit.DBLogger
	var retention *audit.Retention
	if cfg.Audit.Enabled {
		auditQuery = audit.NewDBLogger(db, logger, metrics)
		auditLogger = auditQuery

		retention = audit.NewRetention(db, logger, cfg.Audit.RetentionDays, cfg.Audit.RetentionSchedule)
		if err := retention.Start(); err != nil {
			logger.WithError(err).Fatal("failed to start audit retention")
		}
	}

	templateRegistry, err := templates.NewRegistry(cfg.Templates.Dir, cfg.Templates.CacheSize, logger, metrics)
	if err != nil {
		logger.WithError(err).Fatal("failed to load template registry")
	}

	tenantSvc := tenants.NewPostgresService(db)
	roleStore := roles.NewStore(db)
	entityStore := entities.NewStore(db)
	workflowStore := workflows.NewStore(db)
	provisioner := templates.NewProvisioner(db, templateRegistry, logger, metrics, auditLogger)

	authorizer := authz.NewAuthorizer(tenantSvc, logger)

	var rateLimit *middleware.RateLimitMiddleware
	if cfg.Redis.RateLimitEnabled && redisClient != nil {
		anonConfig := &middleware.RateLimitConfig{
			RequestsPerWindow: cfg.Redis.RateLimitRPS,
			WindowDuration:    middleware.DefaultRateLimitConfig().WindowDuration,
		}
		userConfig := &middleware.RateLimitConfig{
			RequestsPerWindow: cfg.Redis.RateLimitBurst,
			WindowDuration:    middleware.DefaultRateLimitConfig().WindowDuration,
		}
		rateLimit = middleware.NewRateLimitMiddleware(redisClient, userConfig, anonConfig, logger)
	}

	server := api.NewServer(api.Deps{
		Tenants:     tenantSvc,
		Roles:       roleStore,
		Entities:    entityStore,
		Workflows:   workflowStore,
		Registry:    templateRegistry,
		Provisioner: provisioner,
		Audit:       auditLogger,
		AuditQuery:  auditQuery,
		Identity:    identity.NewMiddleware(logger, false),
		Authz:       authz.NewMiddleware(authorizer, logger, metrics, auditLogger),
		RateLimit:   rateLimit,
		Logger:      logger,
		Metrics:     metrics,
	})

	var handler http.Handler = server
	if len(cfg.Server.CORSAllowedOrigins) > 0 {
		handler = httputil.CORSMiddleware(cfg.Server.CORSAllowedOrigins)(handler)
	}
	handler = http.MaxBytesHandler(handler, cfg.Server.MaxBodyBytes)

	httpServer := &http.Server{
		Addr:         net.JoinHostPort(cfg.Server.Host, cfg.Server.Port),
		Handler:      handler,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	healthMux := http.NewServeMux()
	observability.RegisterHealthRoutes(healthMux, observability.NewHealthChecker(db, redisClient))
	if cfg.Observability.MetricsEnabled {
		observability.RegisterMetricsEndpoint(healthMux, registry)
	}
	healthServer := &http.Server{
		Addr:    net.JoinHostPort(cfg.Server.Host, cfg.Server.HealthPort),
		Handler: healthMux,
	}

	g, gctx := errgroup.WithContext(ctx)
	if cfg.Templates.Watch {
		g.Go(func() error {
			return templateRegistry.Watch(gctx)
		})
	}

	shutdown := observability.NewShutdownManager(logger, httpServer, cfg.Server.ShutdownTimeout)
	shutdown.RegisterShutdownFunc(func(ctx context.Context) error {
		return healthServer.Shutdown(ctx)
	})
	shutdown.RegisterShutdownFunc(func(context.Context) error {
		cancel()
		return nil
	})
	if retention != nil {
		shutdown.RegisterShutdownFunc(func(context.Context) error {
			retention.Stop()
			return nil
		})
	}
	if redisClient != nil {
		shutdown.RegisterShutdownFunc(func(context.Context) error {
			return redisClient.Close()
		})
	}
	shutdown.RegisterShutdownFunc(func(context.Context) error {
		return db.Close()
	})

	go func() {
		logger.WithField("addr", healthServer.Addr).Info("health server listening")
		if err := healthServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithError(err).Error("health server failed")
		}
	}()

	go func() {
		logger.WithField("addr", httpServer.Addr).Info("api server listening")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithError(err).Fatal("api server failed")
		}
	}()

	if err := shutdown.WaitForShutdown(); err != nil {
		logger.WithError(err).Error("shutdown finished with errors")
	}
	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.WithError(err).Error("template watcher stopped with error")
	}
}

// runMigrations applies each package's migrations against its own
// tracking table. Order matters: entities and workflows reference
// tenants, audit is standalone.
func runMigrations(ctx context.Context, db *sql.DB) error {
	steps := []struct {
		table      string
		migrations []storage.Migration
	}{
		{tenants.MigrationsTable, tenants.GetMigrations()},
		{roles.MigrationsTable, roles.GetMigrations()},
		{entities.MigrationsTable, entities.GetMigrations()},
		{workflows.MigrationsTable, workflows.GetMigrations()},
		{audit.MigrationsTable, audit.GetMigrations()},
	}
	for _, step := range steps {
		if err := storage.RunMigrations(ctx, db, step.table, step.migrations); err != nil {
			return err
		}
	}
	return nil
}
