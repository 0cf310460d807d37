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
	"github.com/shopspring/decimal"

	"github.com/snd-est/snd-rental/internal/app"
	"github.com/snd-est/snd-rental/internal/billing"
	"github.com/snd-est/snd-rental/internal/erpnext"
	"github.com/snd-est/snd-rental/internal/finance"
	"github.com/snd-est/snd-rental/internal/masterdata/customers"
	"github.com/snd-est/snd-rental/internal/masterdata/employees"
	"github.com/snd-est/snd-rental/internal/masterdata/equipment"
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
		logger.Warn("redis unavailable, running without locks and caching", slog.Any("error", err))
		redisClient = nil
	} else {
		defer func() {
			if err := redisClient.Close(); err != nil {
				logger.Warn("redis close", slog.Any("error", err))
			}
		}()
	}

	defaultVAT := decimal.NewFromFloat(cfg.VATRate)

	rentalRepo := rental.NewRepository(pool)
	rentalService := rental.NewService(rentalRepo, logger, defaultVAT)
	rentalHandler := rental.NewHandler(rentalService, logger)

	customerRepo := customers.NewRepository(pool)
	customerService := customers.NewService(customerRepo, logger)
	customerHandler := customers.NewHandler(customerService, logger)

	equipmentRepo := equipment.NewRepository(pool)
	equipmentService := equipment.NewService(equipmentRepo, logger)
	equipmentHandler := equipment.NewHandler(equipmentService, logger)

	employeeRepo := employees.NewRepository(pool)
	employeeService := employees.NewService(employeeRepo, logger)
	employeeHandler := employees.NewHandler(employeeService, logger)

	var invoiceCreator billing.InvoiceCreator
	var invoiceSource finance.InvoiceSource
	if err := cfg.ERPNext.Configured(); err != nil {
		logger.Warn("accounting integration disabled", slog.Any("error", err))
	} else {
		client, err := erpnext.NewClient(cfg.ERPNext, logger, redisClient)
		if err != nil {
			logger.Error("init accounting client", slog.Any("error", err))
			os.Exit(1)
		}
		invoiceCreator = erpnext.NewInvoiceAdapter(client, customerService, cfg.Currency, logger)
		invoiceSource = client
	}

	billingService := billing.NewService(rentalRepo, invoiceCreator, redisClient, logger, defaultVAT)
	billingHandler := billing.NewHandler(billingService, logger)

	financeService := finance.NewService(invoiceSource, rentalRepo, logger)
	financeHandler := finance.NewHandler(financeService, logger)

	redisOpts := asynq.RedisClientOpt{Addr: cfg.RedisAddr}
	inspector := asynq.NewInspector(redisOpts)
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()
	jobClient, err := jobs.NewClient(redisOpts)
	if err != nil {
		logger.Error("init job client", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := jobClient.Close(); err != nil {
			logger.Warn("job client close", slog.Any("error", err))
		}
	}()
	jobHandler := jobs.NewHandler(inspector, jobClient, logger)

	router := app.NewRouter(app.RouterParams{
		Logger:           logger,
		Config:           cfg,
		RentalHandler:    rentalHandler,
		BillingHandler:   billingHandler,
		FinanceHandler:   financeHandler,
		CustomersHandler: customerHandler,
		EquipmentHandler: equipmentHandler,
		EmployeesHandler: employeeHandler,
		JobHandler:       jobHandler,
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
