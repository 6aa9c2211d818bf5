package main

import (
	"context"
	"database/sql"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/newrelic/go-agent/v3/newrelic"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"tripbroker/internal/app"
	"tripbroker/internal/config"
	"tripbroker/internal/handler"
	"tripbroker/internal/maps"
	internalRedis "tripbroker/internal/redis"
	"tripbroker/internal/repository/postgres"
	"tripbroker/internal/service"
	"tripbroker/pkg/logger"
)

func main() {
	cfg := config.Load()
	log := logger.New()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// Initialize New Relic first so the database driver can be instrumented.
	var nrApp *newrelic.Application
	var err error
	if cfg.NewRelic.Enabled && cfg.NewRelic.LicenseKey != "" {
		nrApp, err = newrelic.NewApplication(
			newrelic.ConfigAppName(cfg.NewRelic.AppName),
			newrelic.ConfigLicense(cfg.NewRelic.LicenseKey),
			newrelic.ConfigDistributedTracerEnabled(true),
			newrelic.ConfigAppLogForwardingEnabled(true),
		)
		if err != nil {
			log.WithError(err).Warn("failed to initialize New Relic")
		} else {
			log.WithField("app", cfg.NewRelic.AppName).Info("New Relic enabled")
		}
	}

	db, err := app.NewDatabase(ctx, cfg.Database, nrApp)
	if err != nil {
		log.WithError(err).Fatal("failed to connect to database")
	}
	defer db.Close()
	log.Info("connected to PostgreSQL")

	if err := postgres.ApplySchema(ctx, db); err != nil {
		log.WithError(err).Fatal("failed to apply database schema")
	}

	redisClient, err := app.NewRedisClient(ctx, cfg.Redis, nrApp)
	if err != nil {
		log.WithError(err).Fatal("failed to connect to redis")
	}
	defer redisClient.Close()
	log.Info("connected to Redis")

	server := wireServer(db, redisClient, nrApp, cfg, log)

	go func() {
		log.WithField("port", cfg.Server.Port).Info("starting server")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.WithError(err).Fatal("server error")
		}
	}()

	// Graceful shutdown.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("shutting down server")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Fatal("server forced to shutdown")
	}
	log.Info("server exited")
}

// wireServer wires all dependencies and returns the HTTP server.
func wireServer(db *sql.DB, redisClient *redis.Client, nrApp *newrelic.Application, cfg *config.Config, log *logrus.Logger) *http.Server {
	// Redis stores.
	locationStore := internalRedis.NewLocationStore(redisClient)
	lockStore := internalRedis.NewLockStore(redisClient)
	traceStore := internalRedis.NewTraceStore(redisClient)
	throttleStore := internalRedis.NewThrottleStore(redisClient)

	// Repositories.
	customerRepo := postgres.NewCustomerRepository(db)
	driverRepo := postgres.NewDriverRepository(db)
	tripRepo := postgres.NewTripRepository(db)
	ledgerRepo := postgres.NewLedgerRepository(db)

	// Distance estimation falls back to a local haversine computation when
	// no provider key is configured.
	var estimator maps.DistanceEstimator
	if cfg.Maps.APIKey != "" {
		var err error
		estimator, err = maps.NewGoogleEstimator(cfg.Maps.APIKey, cfg.Maps.Timeout)
		if err != nil {
			log.WithError(err).Fatal("failed to initialize distance provider")
		}
	} else {
		log.Warn("no maps API key configured, using local estimates only")
		estimator = maps.LocalEstimator{}
	}

	// Services.
	fareEngine := service.NewFareEngine(cfg.Rates)
	notifier := service.NewNotificationService(log)
	ledger := service.NewEarningsLedger(ledgerRepo, driverRepo, fareEngine, notifier, log)
	dispatchService := service.NewDispatchService(tripRepo, driverRepo, lockStore, locationStore, notifier, log)
	tripService := service.NewTripService(tripRepo, driverRepo, customerRepo, ledger, estimator, traceStore, fareEngine, notifier, log)
	driverService := service.NewDriverService(driverRepo, tripRepo, ledger, locationStore, traceStore, log)
	customerService := service.NewCustomerService(customerRepo, log)

	// Handlers.
	authHandler := handler.NewAuthHandler(cfg.Auth.JWTSecret, customerService, driverService)
	customerHandler := handler.NewCustomerHandler(customerService)
	driverHandler := handler.NewDriverHandler(driverService, dispatchService)
	tripHandler := handler.NewTripHandler(tripService, dispatchService)
	quoteHandler := handler.NewQuoteHandler(tripService)
	earningsHandler := handler.NewEarningsHandler(ledger)

	router := app.NewRouter(app.RouterDeps{
		AuthHandler:     authHandler,
		CustomerHandler: customerHandler,
		DriverHandler:   driverHandler,
		TripHandler:     tripHandler,
		QuoteHandler:    quoteHandler,
		EarningsHandler: earningsHandler,
		RedisClient:     redisClient,
		ThrottleStore:   throttleStore,
		NewRelicApp:     nrApp,
		JWTSecret:       cfg.Auth.JWTSecret,
	})

	return &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}
}
