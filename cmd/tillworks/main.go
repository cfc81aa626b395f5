package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"

	"github.com/tillworks/tillworks/internal/app"
	"github.com/tillworks/tillworks/internal/catalog"
	"github.com/tillworks/tillworks/internal/observability"
	"github.com/tillworks/tillworks/internal/orders"
	"github.com/tillworks/tillworks/internal/platform/cache"
	"github.com/tillworks/tillworks/internal/platform/db"
	"github.com/tillworks/tillworks/internal/realtime"
	"github.com/tillworks/tillworks/internal/sales"
	"github.com/tillworks/tillworks/internal/shared"
	"github.com/tillworks/tillworks/internal/shift"
	"github.com/tillworks/tillworks/internal/stock"
	"github.com/tillworks/tillworks/internal/zreport"
	"github.com/tillworks/tillworks/jobs"
	"github.com/tillworks/tillworks/report"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
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

	pool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Error("connect redis", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	metrics := observability.NewMetrics()
	publisher := realtime.NewPublisher(redisClient, logger)
	auditLogger := shared.NewAuditLogger(pool)
	idempotencyStore := shared.NewIdempotencyStore(pool)
	approverVerifier := shared.NewApproverVerifier(pool)

	jobClient, err := jobs.NewClient(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	if err != nil {
		logger.Error("init job client", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := jobClient.Close(); err != nil {
			logger.Warn("job client close", slog.Any("error", err))
		}
	}()

	stockRepo := stock.NewRepository(pool)
	stockService := stock.NewService(stockRepo, auditLogger, publisher, metrics)
	stockHandler := stock.NewHandler(logger, stockService)

	salesRepo := sales.NewRepository(pool)
	salesService := sales.NewService(salesRepo, auditLogger, publisher, jobClient, metrics, logger)
	salesHandler := sales.NewHandler(logger, salesService, approverVerifier)

	shiftRepo := shift.NewRepository(pool)
	shiftService := shift.NewService(shiftRepo, auditLogger, publisher, cfg.CashVarianceThreshold, logger)
	shiftHandler := shift.NewHandler(logger, shiftService, approverVerifier)

	zreportRepo := zreport.NewRepository(pool)
	zreportService := zreport.NewService(zreportRepo, auditLogger)
	zreportHandler := zreport.NewHandler(logger, zreportService)

	catalogRepo := catalog.NewRepository(pool)
	orderRepo := orders.NewRepository(pool)
	orderService := orders.NewService(orderRepo, catalogRepo, auditLogger, publisher, idempotencyStore, metrics, logger)
	orderHandler := orders.NewHandler(logger, orderService)

	inspector := asynq.NewInspector(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()
	jobHandler := jobs.NewHandler(inspector, logger)

	reportClient := report.NewClient(cfg.GotenbergURL)
	reportHandler := report.NewHandler(reportClient, zreportService, logger)

	router := app.NewRouter(app.RouterParams{
		Logger:         logger,
		Config:         cfg,
		Metrics:        metrics,
		StockHandler:   stockHandler,
		SalesHandler:   salesHandler,
		ShiftHandler:   shiftHandler,
		ZReportHandler: zreportHandler,
		OrderHandler:   orderHandler,
		JobHandler:     jobHandler,
		ReportHandler:  reportHandler,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
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
}
