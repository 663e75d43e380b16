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
	"github.com/redis/go-redis/v9"

	"github.com/meridian-dms/meridian-dms/internal/app"
	"github.com/meridian-dms/meridian-dms/internal/audit"
	"github.com/meridian-dms/meridian-dms/internal/ledger"
	"github.com/meridian-dms/meridian-dms/internal/masterdata/products"
	"github.com/meridian-dms/meridian-dms/internal/masterdata/shops"
	"github.com/meridian-dms/meridian-dms/internal/masterdata/users"
	"github.com/meridian-dms/meridian-dms/internal/notify"
	"github.com/meridian-dms/meridian-dms/internal/observability"
	"github.com/meridian-dms/meridian-dms/internal/orders"
	"github.com/meridian-dms/meridian-dms/internal/payments"
	"github.com/meridian-dms/meridian-dms/internal/returns"
	"github.com/meridian-dms/meridian-dms/internal/shared"
	"github.com/meridian-dms/meridian-dms/jobs"
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

	dbpool, err := pgxpool.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer dbpool.Close()

	redisClient := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	if err := redisClient.Ping(ctx).Err(); err != nil {
		logger.Warn("redis ping", slog.Any("error", err))
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	metrics := observability.NewMetrics()

	asynqOpts := asynq.RedisClientOpt{Addr: cfg.RedisAddr}
	jobsClient := jobs.NewClient(asynqOpts)
	defer func() {
		if err := jobsClient.Close(); err != nil {
			logger.Warn("jobs client close", slog.Any("error", err))
		}
	}()

	var gateway notify.GatewaySender
	if cfg.SMSEnabled() {
		gateway = notify.NewGateway(cfg.SMSGatewayURL, cfg.SMSGatewayToken, cfg.SMSSenderID)
	} else {
		logger.Info("sms gateway not configured, notifications disabled")
	}
	dispatcher := notify.NewDispatcher(gateway, jobsClient, metrics, cfg.SMSCountryCode, logger)

	recorder := audit.NewRecorder(dbpool, logger)
	idempotencyStore := shared.NewIdempotencyStore(dbpool)

	ordersRepo := orders.NewRepository(dbpool)
	ordersService := orders.NewService(ordersRepo, recorder, dispatcher, idempotencyStore, metrics, logger)
	ordersHandler := orders.NewHandler(logger, ordersService)

	paymentsRepo := payments.NewRepository(dbpool)
	paymentsService := payments.NewService(paymentsRepo, recorder, dispatcher, logger)
	paymentsHandler := payments.NewHandler(logger, paymentsService)

	returnsRepo := returns.NewRepository(dbpool)
	returnsService := returns.NewService(returnsRepo, recorder, dispatcher, logger)
	returnsHandler := returns.NewHandler(logger, returnsService)

	ledgerRepo := ledger.NewRepository(dbpool)
	ledgerService := ledger.NewService(ledgerRepo)
	ledgerHandler := ledger.NewHandler(ledgerService)

	shopsRepo := shops.NewRepository(dbpool)
	shopsService := shops.NewService(shopsRepo, recorder, cfg.SMSCountryCode, logger)
	shopsHandler := shops.NewHandler(logger, shopsService)

	productsCache := products.NewCache(redisClient, cfg.ProductCacheTTL)
	productsRepo := products.NewRepository(dbpool)
	productsService := products.NewService(productsRepo, productsCache, recorder, jobsClient, logger)
	productsHandler := products.NewHandler(logger, productsService)

	usersRepo := users.NewRepository(dbpool)
	usersService := users.NewService(usersRepo)
	usersHandler := users.NewHandler(logger, usersService)

	auditRepo := audit.NewRepository(dbpool)
	auditService := audit.NewService(auditRepo)
	auditHandler := audit.NewHandler(auditService)

	inspector := asynq.NewInspector(asynqOpts)
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("asynq inspector close", slog.Any("error", err))
		}
	}()
	jobsHandler := jobs.NewHandler(inspector, logger)

	router := app.NewRouter(app.RouterParams{
		Logger:          logger,
		Config:          cfg,
		Metrics:         metrics,
		OrdersHandler:   ordersHandler,
		PaymentsHandler: paymentsHandler,
		ReturnsHandler:  returnsHandler,
		LedgerHandler:   ledgerHandler,
		ShopsHandler:    shopsHandler,
		ProductsHandler: productsHandler,
		UsersHandler:    usersHandler,
		AuditHandler:    auditHandler,
		JobsHandler:     jobsHandler,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("http server listening", slog.String("addr", cfg.AppAddr))
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
		logger.Error("server shutdown", slog.Any("error", err))
	}
}
