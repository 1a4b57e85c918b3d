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

	"github.com/odyssey-erp/invoicedesk/internal/app"
	"github.com/odyssey-erp/invoicedesk/internal/counterparty"
	"github.com/odyssey-erp/invoicedesk/internal/editsession"
	editsessionhttp "github.com/odyssey-erp/invoicedesk/internal/editsession/http"
	"github.com/odyssey-erp/invoicedesk/internal/invoice"
	"github.com/odyssey-erp/invoicedesk/internal/observability"
	"github.com/odyssey-erp/invoicedesk/internal/platform/cache"
	"github.com/odyssey-erp/invoicedesk/internal/platform/db"
	"github.com/odyssey-erp/invoicedesk/internal/preview"
	"github.com/odyssey-erp/invoicedesk/internal/settings"
	settingshttp "github.com/odyssey-erp/invoicedesk/internal/settings/http"
	"github.com/odyssey-erp/invoicedesk/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping server startup")
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

	pool, err := db.New(ctx, cfg.PGDSN, db.PoolOptions{MaxConns: cfg.PGMaxConns, MaxConnIdleTime: 5 * time.Minute})
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

	redisOpts := asynq.RedisClientOpt{Addr: cfg.RedisAddr, Password: cfg.RedisPassword, DB: cfg.RedisDB}
	jobClient := jobs.NewClient(redisOpts, cfg.PreviewTTL)
	defer func() {
		if err := jobClient.Close(); err != nil {
			logger.Warn("asynq client close", slog.Any("error", err))
		}
	}()
	inspector := asynq.NewInspector(redisOpts)
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("asynq inspector close", slog.Any("error", err))
		}
	}()

	metrics := observability.NewMetrics()

	invoices := invoice.NewRepository(pool)
	settingsService := settings.NewService(
		settings.NewPGRepository(pool),
		cache.NewVersioned(redisClient, "settings", cfg.SettingsCacheTTL),
		logger,
	)
	counterpartyService := counterparty.NewService(
		counterparty.NewPGRepository(pool),
		cache.NewVersioned(redisClient, "counterparty", cfg.SettingsCacheTTL),
	)
	previewStore := preview.NewStore(redisClient, cfg.PreviewTTL)

	manager := editsession.NewManager(editsession.Deps{
		Records:  invoices,
		Settings: settingsService,
		Preview:  preview.NewEnqueuer(jobClient, previewStore),
		Logger:   logger,
		Metrics:  metrics.Autosave(),
	}, cfg.SessionIdleTTL,
		editsession.WithQuietWindow(cfg.AutosaveQuietWindow),
		editsession.WithCommitTimeout(cfg.AutosaveCommitTimeout),
		editsession.WithSerializedCommits(cfg.AutosaveSerializeCommits),
	)
	go manager.Run(ctx, time.Minute)

	router := app.NewRouter(app.RouterParams{
		Logger:             logger,
		Config:             cfg,
		EditSessionHandler: editsessionhttp.NewHandler(logger, manager, invoices, counterpartyService, previewStore),
		SettingsHandler:    settingshttp.NewHandler(logger, settingsService),
		JobHandler:         jobs.NewHandler(inspector, logger),
		Metrics:            metrics,
	})

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
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown", slog.Any("error", err))
	}
	if err := manager.CloseAll(shutdownCtx); err != nil {
		logger.Error("flush edit sessions", slog.Any("error", err))
	}
}
