package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/stocksaas/stocksaas/internal/admin"
	"github.com/stocksaas/stocksaas/internal/app"
	"github.com/stocksaas/stocksaas/internal/audit"
	audithttp "github.com/stocksaas/stocksaas/internal/audit/http"
	"github.com/stocksaas/stocksaas/internal/auth"
	"github.com/stocksaas/stocksaas/internal/events"
	"github.com/stocksaas/stocksaas/internal/observability"
	"github.com/stocksaas/stocksaas/internal/platform/cache"
	"github.com/stocksaas/stocksaas/internal/platform/db"
	"github.com/stocksaas/stocksaas/internal/rbac"
	"github.com/stocksaas/stocksaas/internal/tenant"
	"github.com/stocksaas/stocksaas/internal/tenants"
	"github.com/stocksaas/stocksaas/internal/warehouses"
	"github.com/stocksaas/stocksaas/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping api startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}
	logger := app.NewLogger(cfg)
	tenant.SetLogger(logger)

	if err := run(ctx, stop, cfg, logger); err != nil {
		logger.Error("api stopped", slog.Any("error", err))
		os.Exit(1)
	}
}

func run(ctx context.Context, stop context.CancelFunc, cfg *app.Config, logger *slog.Logger) error {
	pool, err := db.New(ctx, cfg.PGDSN, db.Options{})
	if err != nil {
		return err
	}
	defer pool.Close()

	if cfg.DBAutoMigrate {
		if err := db.Migrate(ctx, pool, logger); err != nil {
			return err
		}
	}

	redisClient, err := cache.New(ctx, cfg.Redis())
	if err != nil {
		return err
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	queue := jobs.NewClient(cfg.Redis().QueueOpt())
	defer func() {
		if err := queue.Close(); err != nil {
			logger.Warn("queue close", slog.Any("error", err))
		}
	}()
	inspector := asynq.NewInspector(cfg.Redis().QueueOpt())
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()

	router, err := buildRouter(cfg, logger, pool, deps{
		revocations: auth.NewRedisRevocations(redisClient),
		publisher:   events.NewQueuePublisher(queue),
		inspector:   inspector,
	})
	if err != nil {
		return err
	}

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

// deps are the Redis-backed collaborators of the API.
type deps struct {
	revocations auth.RevocationStore
	publisher   events.Publisher
	inspector   jobs.QueueInspector
}

func buildRouter(cfg *app.Config, logger *slog.Logger, pool *pgxpool.Pool, d deps) (http.Handler, error) {
	metrics := observability.NewMetrics()
	recorder := audit.NewRecorder(audit.NewLogger(pool), logger)
	enforcer := tenant.NewEnforcer(logger, metrics, recorder)

	directory := tenants.NewDirectory(tenants.NewRepository(pool), cfg.TenantCacheSize, cfg.TenantCacheTTL)

	tokens, err := auth.NewTokenManager(cfg.JWTSecret, cfg.JWTIssuer, cfg.JWTTTL)
	if err != nil {
		return nil, err
	}
	rbacService := rbac.NewService(rbac.NewPgRepository(pool))
	authService := auth.NewService(directory, auth.NewUserStore(pool), rbacService, tokens, d.revocations, logger)
	guard := rbac.Middleware{Subject: auth.Subject, Logger: logger, Denials: metrics}

	warehouseRepo := tenant.NewRepository[*warehouses.Warehouse](warehouses.Entity, warehouses.NewTable(pool), enforcer,
		tenant.WithDirectory(directory), tenant.WithActor(auth.Actor))
	warehouseService := warehouses.NewService(warehouseRepo, d.publisher, logger)

	return app.NewRouter(app.RouterParams{
		Logger: logger,
		Config: cfg,
		AuthMiddleware: &auth.Middleware{
			Tokens:      tokens,
			Revocations: d.revocations,
			Tenants:     directory,
			Loader:      authService,
			Logger:      logger,
		},
		AuthHandler:      auth.NewHandler(logger, authService),
		CatalogHandler:   rbac.NewCatalogHandler(guard),
		AccessHandler:    rbac.NewAccessHandler(logger, rbacService, guard),
		WarehouseHandler: warehouses.NewHandler(logger, warehouseService, guard),
		AuditHandler:     audithttp.NewHandler(logger, audit.NewService(audit.NewPgRepository(pool)), guard),
		AdminHandler: admin.NewHandler(logger, tenants.NewRepository(pool), warehouseService, enforcer, guard,
			jobs.NewHandler(d.inspector, logger).MountRoutes),
		Metrics: metrics,
	}), nil
}
