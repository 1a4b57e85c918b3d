package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"golang.org/x/text/language"

	"github.com/odyssey-erp/invoicedesk/internal/app"
	"github.com/odyssey-erp/invoicedesk/internal/counterparty"
	jobmetrics "github.com/odyssey-erp/invoicedesk/internal/jobs"
	"github.com/odyssey-erp/invoicedesk/internal/platform/cache"
	"github.com/odyssey-erp/invoicedesk/internal/platform/db"
	"github.com/odyssey-erp/invoicedesk/internal/preview"
	"github.com/odyssey-erp/invoicedesk/jobs"
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

	logger := app.NewLogger(cfg).With(slog.String("component", "worker"))

	pool, err := db.New(ctx, cfg.PGDSN, db.PoolOptions{MaxConns: 2})
	if err != nil {
		logger.Error("connect database", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	redisClient, err := cache.New(ctx, cache.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword, DB: cfg.RedisDB})
	if err != nil {
		logger.Error("connect redis", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	gotenberg := preview.NewGotenberg(cfg.GotenbergURL, cfg.PreviewWidth)
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	if err := gotenberg.Ping(pingCtx); err != nil {
		logger.Warn("gotenberg ping", slog.Any("error", err))
	}
	cancel()

	tag, err := language.Parse(cfg.PreviewLocale)
	if err != nil {
		logger.Warn("invalid preview locale, using en", slog.String("locale", cfg.PreviewLocale))
		tag = language.English
	}
	renderer, err := preview.NewRenderer(gotenberg, tag)
	if err != nil {
		logger.Error("init preview renderer", slog.Any("error", err))
		os.Exit(1)
	}

	metrics := jobmetrics.NewMetrics(nil)
	previewJob := preview.NewJob(renderer, preview.NewStore(redisClient, cfg.PreviewTTL), metrics, logger)
	counterparties := counterparty.NewService(
		counterparty.NewPGRepository(pool),
		cache.NewVersioned(redisClient, "counterparty", cfg.SettingsCacheTTL),
	)
	refreshJob := jobs.NewCounterpartyRefreshJob(counterparties, logger, metrics)

	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts:   asynq.RedisClientOpt{Addr: cfg.RedisAddr, Password: cfg.RedisPassword, DB: cfg.RedisDB},
		Logger:      logger,
		Concurrency: cfg.WorkerConcurrency,
		Handlers: []jobs.TaskHandler{
			{Type: jobs.TaskInvoicePreview, Handler: previewJob.Handle},
			{Type: jobs.TaskCounterpartyRefresh, Handler: refreshJob.Handle},
		},
		Cron: []jobs.CronRegistration{
			{Spec: cfg.CounterpartyRefreshCron, Task: jobs.NewCounterpartyRefreshTask(), Options: []asynq.Option{asynq.MaxRetry(1)}},
		},
	})
	if err != nil {
		logger.Error("init worker", slog.Any("error", err))
		os.Exit(1)
	}

	if err := worker.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("worker run", slog.Any("error", err))
		os.Exit(1)
	}
}
