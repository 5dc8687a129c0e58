package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/stocksaas/stocksaas/internal/app"
	"github.com/stocksaas/stocksaas/internal/audit"
	"github.com/stocksaas/stocksaas/internal/events"
	jobmetrics "github.com/stocksaas/stocksaas/internal/jobs"
	"github.com/stocksaas/stocksaas/internal/platform/db"
	"github.com/stocksaas/stocksaas/internal/tenant"
	"github.com/stocksaas/stocksaas/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping worker startup")
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

	pool, err := db.New(ctx, cfg.PGDSN, db.Options{})
	if err != nil {
		logger.Error("connect database", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts:   cfg.Redis().QueueOpt(),
		Logger:      logger,
		Concurrency: cfg.WorkerConcurrency,
		Metrics:     jobmetrics.NewMetrics(nil),
		Handlers:    handlers(audit.NewLogger(pool), logger),
	})
	if err != nil {
		logger.Error("init worker", slog.Any("error", err))
		os.Exit(1)
	}

	logger.Info("worker started", slog.Int("concurrency", cfg.WorkerConcurrency))
	if err := worker.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("worker stopped", slog.Any("error", err))
		os.Exit(1)
	}
}

// handlers registers the event dispatcher. Every event task runs bound to the tenant carried in
// its envelope; subscribers never see another tenant's events.
func handlers(writer audit.Writer, logger *slog.Logger) []jobs.TaskHandler {
	dispatcher := events.NewDispatcher(logger)
	dispatcher.Subscribe("", audit.NewRecorder(writer, logger))
	return []jobs.TaskHandler{
		{Type: jobs.TaskEventPublish, Handler: dispatcher, TenantScoped: true},
	}
}
