package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"
	"github.com/shopspring/decimal"

	"github.com/snd-est/snd-rental/internal/app"
	"github.com/snd-est/snd-rental/internal/billing"
	"github.com/snd-est/snd-rental/internal/erpnext"
	"github.com/snd-est/snd-rental/internal/masterdata/customers"
	"github.com/snd-est/snd-rental/internal/platform/cache"
	"github.com/snd-est/snd-rental/internal/platform/db"
	"github.com/snd-est/snd-rental/internal/rental"
	"github.com/snd-est/snd-rental/jobs"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	pool, err := db.New(ctx, cfg.PGDSN, cfg.PGMaxConns)
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

	defaultVAT := decimal.NewFromFloat(cfg.VATRate)
	rentalRepo := rental.NewRepository(pool)

	var invoiceCreator billing.InvoiceCreator
	if err := cfg.ERPNext.Configured(); err != nil {
		logger.Warn("accounting integration disabled, billing runs will fail", slog.Any("error", err))
	} else {
		client, err := erpnext.NewClient(cfg.ERPNext, logger, redisClient)
		if err != nil {
			logger.Error("init accounting client", slog.Any("error", err))
			os.Exit(1)
		}
		customerService := customers.NewService(customers.NewRepository(pool), logger)
		invoiceCreator = erpnext.NewInvoiceAdapter(client, customerService, cfg.Currency, logger)
	}

	billingService := billing.NewService(rentalRepo, invoiceCreator, redisClient, logger, defaultVAT)

	billingTask, err := jobs.NewMonthlyBillingTask(jobs.MonthlyBillingPayload{})
	if err != nil {
		logger.Error("build billing task", slog.Any("error", err))
		os.Exit(1)
	}

	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts:   asynq.RedisClientOpt{Addr: cfg.RedisAddr},
		Logger:      logger,
		Concurrency: cfg.WorkerConcurrency,
		Handlers: []jobs.TaskHandler{
			{Type: jobs.TaskMonthlyBilling, Handler: jobs.NewMonthlyBillingHandler(billingService, logger)},
		},
		Cron: []jobs.CronRegistration{
			{Spec: cfg.BillingCron, Task: billingTask, Options: []asynq.Option{asynq.MaxRetry(3)}},
		},
	})
	if err != nil {
		logger.Error("init worker", slog.Any("error", err))
		os.Exit(1)
	}

	if err := worker.Run(ctx); err != nil && err != context.Canceled {
		logger.Error("worker run", slog.Any("error", err))
		os.Exit(1)
	}
}
