package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/malwarebo/paybridge/api"
	"github.com/malwarebo/paybridge/apl"
	"github.com/malwarebo/paybridge/config"
	"github.com/malwarebo/paybridge/events"
	"github.com/malwarebo/paybridge/gateway"
	"github.com/malwarebo/paybridge/middleware"
	"github.com/malwarebo/paybridge/models"
	"github.com/malwarebo/paybridge/registration"
	"github.com/malwarebo/paybridge/security"
	"github.com/malwarebo/paybridge/settings"
	"github.com/malwarebo/paybridge/stores"
)

func newLogger(environment string) (*zap.SugaredLogger, error) {
	if environment == "production" {
		log, err := zap.NewProduction()
		if err != nil {
			return nil, err
		}
		return log.Sugar(), nil
	}
	log, err := zap.NewDevelopment()
	if err != nil {
		return nil, err
	}
	return log.Sugar(), nil
}

func buildBackend(cfg *config.Config) (apl.Backend, error) {
	switch cfg.APL.Backend {
	case config.BackendFile:
		return apl.NewFileBackend(cfg.APL.FilePath), nil
	case config.BackendDynamoDB:
		awsCfg, err := awsconfig.LoadDefaultConfig(context.Background(),
			awsconfig.WithRegion(cfg.APL.AWSRegion))
		if err != nil {
			return nil, err
		}
		return apl.NewDynamoBackend(dynamodb.NewFromConfig(awsCfg), cfg.APL.DynamoTable), nil
	case config.BackendRedis:
		return apl.NewRedisBackend(cfg.APL.RedisURL)
	case config.BackendMemory:
		return apl.NewMemoryBackend(), nil
	}
	// Load already validated the backend name.
	return nil, nil
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		zap.NewExample().Sugar().Fatalw("invalid configuration", "error", err)
	}

	log, err := newLogger(cfg.Environment)
	if err != nil {
		os.Exit(1)
	}
	defer log.Sync()

	backend, err := buildBackend(cfg)
	if err != nil {
		log.Fatalw("credential store init failed", "backend", cfg.APL.Backend, "error", err)
	}
	store := apl.NewNormalized(backend, cfg.App.ID)

	db, err := gorm.Open(postgres.Open(cfg.Database.DSN), &gorm.Config{})
	if err != nil {
		log.Fatalw("database connection failed", "error", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		log.Fatalw("database handle unavailable", "error", err)
	}
	defer sqlDB.Close()
	sqlDB.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.Database.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(cfg.Database.MaxLifetime)

	if err := db.AutoMigrate(&models.TransactionLogEntry{}); err != nil {
		log.Fatalw("database migration failed", "error", err)
	}

	encryption, err := security.NewEncryptionManager(cfg.Security.EncryptionKey)
	if err != nil {
		log.Fatalw("encryption init failed", "error", err)
	}

	settingsService := settings.NewService(backend, cfg.App.ID, encryption, log)
	txlog := stores.CreateTransactionLogStore(db, log)

	publisher, err := events.NewKafkaPublisher(cfg.Kafka.Brokers, cfg.Kafka.Topic, log)
	if err != nil {
		log.Warnw("kafka publisher disabled", "error", err)
	}
	var gatewayPublisher gateway.Publisher
	if publisher != nil {
		defer publisher.Close()
		gatewayPublisher = publisher
	}

	httpClient := &http.Client{Timeout: 10 * time.Second}
	registrationService := registration.NewService(store, httpClient, registration.Config{
		AllowedURLPatterns: cfg.Registration.AllowedURLPatterns,
		MinVersion:         cfg.Registration.MinVersion,
		MaxVersion:         cfg.Registration.MaxVersion,
	}, log)

	gatewayService := gateway.NewService(settingsService, txlog, gatewayPublisher, nil, log)

	manifest := registration.BuildManifest(cfg.App.ID, cfg.App.Name, cfg.App.Version, cfg.App.BaseURL)

	registerHandler := api.CreateRegisterHandler(registrationService, manifest, log)
	sessionHandler := api.CreateSessionHandler(store, gatewayService, log)
	settingsHandler := api.CreateSettingsHandler(store, settingsService, log)
	logsHandler := api.CreateLogsHandler(settingsHandler, txlog, log)
	webhookHandler := api.CreateWebhookHandler(gatewayService, log)
	healthHandler := api.CreateHealthHandler(map[string]api.ReadyChecker{
		"apl": store,
	})

	router := mux.NewRouter()
	router.Use(middleware.CorrelationMiddleware)
	router.Use(middleware.LoggingMiddleware(log))
	router.Use(middleware.RecoveryMiddleware(log))
	router.Use(middleware.MetricsMiddleware)
	router.Use(middleware.RateLimitMiddleware(cfg.Server.RateLimitRPS, cfg.Server.RateLimitBurst))

	registerHandler.RegisterRoutes(router)
	sessionHandler.RegisterRoutes(router)
	settingsHandler.RegisterRoutes(router)
	logsHandler.RegisterRoutes(router)
	webhookHandler.RegisterRoutes(router)
	healthHandler.RegisterRoutes(router)
	router.Handle("/metrics", promhttp.Handler()).Methods("GET")

	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	sweepCtx, stopSweep := context.WithCancel(context.Background())
	go func() {
		ticker := time.NewTicker(cfg.Retention.SweepInterval)
		defer ticker.Stop()
		for {
			select {
			case <-sweepCtx.Done():
				return
			case <-ticker.C:
				removed, err := txlog.CleanupOld(sweepCtx, cfg.Retention.TransactionLogMaxAge)
				if err != nil {
					log.Warnw("transaction log sweep failed", "error", err)
					continue
				}
				if removed > 0 {
					log.Infow("transaction log sweep", "removed", removed)
				}
			}
		}
	}()

	go func() {
		log.Infow("server starting", "port", cfg.Server.Port, "apl_backend", cfg.APL.Backend)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalw("server failed", "error", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down")
	stopSweep()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		log.Errorw("forced shutdown", "error", err)
		os.Exit(1)
	}
	log.Info("server stopped")
}
