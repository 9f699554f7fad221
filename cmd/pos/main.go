package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"bookstore-pos/internal/backend"
	"bookstore-pos/internal/config"
	"bookstore-pos/internal/db"
	"bookstore-pos/internal/events"
	"bookstore-pos/internal/httpserver"
	"bookstore-pos/internal/logging"
	"bookstore-pos/internal/migrate"
	"bookstore-pos/internal/recent"
	paymentrepo "bookstore-pos/internal/repository/payment"
	productrepo "bookstore-pos/internal/repository/product"
	"bookstore-pos/internal/service/catalog"
	"bookstore-pos/internal/service/checkout"
	"bookstore-pos/internal/service/customer"
	"bookstore-pos/internal/service/order"
	"bookstore-pos/internal/service/payment"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

func main() {
	// .env is optional; real environment variables win.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		panic("load config: " + err.Error())
	}
	logger, err := logging.New(cfg.LogLevel)
	if err != nil {
		panic("init logger: " + err.Error())
	}
	defer func() { _ = logger.Sync() }()
	logger = logger.With(zap.String("employee_code", cfg.EmployeeCode))

	ctx := context.Background()
	dbpool, err := db.Connect(ctx, cfg.DBConnString, db.PoolOptions{MaxConns: cfg.DBMaxConns})
	if err != nil {
		logger.Fatal("connect to db", zap.Error(err))
	}
	defer dbpool.Close()

	if cfg.AutoMigrate {
		if err := migrate.Apply(ctx, dbpool); err != nil {
			logger.Fatal("apply migrations", zap.Error(err))
		}
		logger.Info("migrations applied")
	}

	productRepo := productrepo.NewPostgres(dbpool, logger)
	paymentRepo := paymentrepo.NewPostgres(dbpool, logger)
	catalogService := catalog.New(productRepo)

	client := backend.New(backend.Options{
		BaseURL: cfg.BackendBaseURL,
		Token:   cfg.BackendToken,
		Timeout: cfg.BackendTimeout,
		Logger:  logger,
	})
	resolver := customer.NewResolver(client, cfg.GuestCustomerCode, logger)

	var recentStore recent.Store = recent.NewMemoryStore()
	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		defer rdb.Close()
		if err := rdb.Ping(ctx).Err(); err != nil {
			logger.Warn("redis unavailable, recent order kept in memory", zap.String("addr", cfg.RedisAddr), zap.Error(err))
		} else {
			recentStore = recent.NewRedisStore(rdb, cfg.EmployeeCode)
		}
	}

	var publisher events.Publisher = events.Nop{}
	if len(cfg.KafkaBrokers) > 0 {
		publisher = events.NewKafkaPublisher(cfg.KafkaTopic, cfg.KafkaBrokers...)
		logger.Info("publishing payment events", zap.Strings("brokers", cfg.KafkaBrokers), zap.String("topic", cfg.KafkaTopic))
	}

	submitter := order.NewSubmitter(client, cfg.EmployeeCode, logger)
	checkoutService := checkout.New(checkout.Deps{
		Catalog:      catalogService,
		Customers:    resolver,
		Orders:       submitter,
		Transfers:    client,
		Recent:       recentStore,
		Journal:      paymentRepo,
		Events:       publisher,
		EmployeeCode: cfg.EmployeeCode,
		Logger:       logger,
	}, payment.Options{
		PollInterval: cfg.QRPollInterval,
		Window:       cfg.QRPaymentWindow,
		QR: payment.QRConfig{
			BaseURL:     cfg.QRImageBaseURL,
			BankID:      cfg.BankID,
			Account:     cfg.BankAccount,
			AccountName: cfg.BankAccountName,
		},
		Logger: logger,
	})

	srv, err := httpserver.New(cfg.HTTPAddr, logger, dbpool, httpserver.Deps{
		Catalog:     catalogService,
		Checkout:    checkoutService,
		History:     paymentRepo,
		Backend:     client,
		CORSOrigins: cfg.CORSOrigins,
	})
	if err != nil {
		logger.Fatal("init server", zap.Error(err))
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("starting http server", zap.String("addr", cfg.HTTPAddr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	stopCh := make(chan os.Signal, 1)
	signal.Notify(stopCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-stopCh:
		logger.Info("received signal, shutting down", zap.String("signal", sig.String()))
	case err := <-serverErr:
		logger.Error("server error", zap.Error(err))
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Warn("graceful shutdown failed", zap.Error(err))
	} else {
		logger.Info("server stopped")
	}

	// Any payment still awaiting is ended so its outcome reaches the
	// journal before the pool and publisher close.
	checkoutService.Close()
	if err := publisher.Close(); err != nil {
		logger.Warn("close publisher", zap.Error(err))
	}
}
