package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"fulfillment-service/config"
	"fulfillment-service/internal/api"
	"fulfillment-service/internal/broker"
	"fulfillment-service/internal/redisclient"
	"fulfillment-service/internal/service"
	"fulfillment-service/internal/store"
	"fulfillment-service/internal/store/memstore"
	"fulfillment-service/internal/util"
	"fulfillment-service/internal/worker"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// backend is the storage implementation selected by STORE_DRIVER
type backend interface {
	service.Store
	api.Pinger
	Close() error
}

func main() {
	cfg := config.Load()

	if err := util.InitLogger(cfg.Server.Env, cfg.Observ.LogLevel); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer util.SyncLogger()

	logger := util.GetLogger()
	logger.Info("Starting fulfillment service",
		zap.String("env", cfg.Server.Env),
		zap.String("port", cfg.Server.Port),
		zap.String("store", cfg.Database.Driver))

	tp, err := util.InitTracer(util.TracerConfig{
		ServiceName:    "fulfillment-service",
		Environment:    cfg.Server.Env,
		JaegerEndpoint: cfg.Observ.JaegerEndpoint,
		SampleRatio:    cfg.Observ.TraceSampleRatio,
	})
	if err != nil {
		logger.Fatal("Failed to initialize tracer", zap.Error(err))
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tp.Shutdown(ctx); err != nil {
			logger.Error("Error shutting down tracer", zap.Error(err))
		}
	}()

	db, err := openStore(cfg.Database)
	if err != nil {
		logger.Fatal("Failed to open store", zap.Error(err))
	}
	defer db.Close()
	logger.Info("Store ready", zap.String("driver", cfg.Database.Driver))

	dependencies := map[string]api.Pinger{"store": db}

	var publisher service.EventPublisher
	var producer *broker.Producer
	if len(cfg.Kafka.Brokers) > 0 {
		producer = broker.NewProducer(cfg.Kafka.Brokers)
		defer producer.Close()
		publisher = broker.NewEventPublisher(producer, cfg.Kafka.TopicOrder, cfg.Kafka.TopicInventory)
		logger.Info("Kafka producer initialized", zap.Strings("brokers", cfg.Kafka.Brokers))
	} else {
		logger.Warn("KAFKA_BROKERS not set, domain events are not published")
	}

	var idempotency service.IdempotencyStore
	if cfg.Redis.Addr != "" {
		redisClient, err := redisclient.NewClient(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			logger.Fatal("Failed to connect to Redis", zap.Error(err))
		}
		defer redisClient.Close()
		idempotency = redisClient
		dependencies["redis"] = redisClient
		logger.Info("Redis connected")
	} else {
		logger.Warn("REDIS_ADDR not set, idempotency keys are ignored")
	}

	stockService := service.NewStockService(db, db)
	reservationService := service.NewReservationService(db, db, publisher)
	transactionService := service.NewTransactionService(db, stockService, publisher)

	orderOpts := []service.OrderOption{service.WithReservationTTL(cfg.Business.ReservationTTL)}
	if idempotency != nil {
		orderOpts = append(orderOpts, service.WithIdempotency(idempotency, cfg.Business.IdempotencyTTL))
	}
	orderService := service.NewOrderService(db, reservationService, transactionService, publisher, orderOpts...)
	sagaOrchestrator := service.NewSagaOrchestrator(orderService, idempotency, cfg.Business.IdempotencyTTL)

	workerCtx, workerCancel := context.WithCancel(context.Background())
	defer workerCancel()

	var paymentWorker *worker.PaymentWorker
	if len(cfg.Kafka.Brokers) > 0 {
		paymentConsumer := broker.NewConsumer(cfg.Kafka.Brokers, cfg.Kafka.TopicPayment, cfg.Kafka.ConsumerGroup)
		paymentWorker = worker.NewPaymentWorker(paymentConsumer, sagaOrchestrator)
		go func() {
			if err := paymentWorker.Start(workerCtx); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("Payment worker error", zap.Error(err))
			}
		}()
	}

	if cfg.Server.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	handler := api.NewHandler(stockService, reservationService, transactionService, orderService, dependencies)
	handler.SetupRoutes(router)

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.Server.Port),
		Handler: router,
	}

	go func() {
		logger.Info("Starting HTTP server", zap.String("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server forced to shutdown", zap.Error(err))
	}

	workerCancel()
	if paymentWorker != nil {
		if err := paymentWorker.Stop(); err != nil {
			logger.Error("Failed to stop payment worker", zap.Error(err))
		}
	}

	logger.Info("Server exited")
}

func openStore(cfg config.DatabaseConfig) (backend, error) {
	switch cfg.Driver {
	case config.StoreDriverPostgres:
		return store.NewStore(cfg.URL)
	case config.StoreDriverMemory:
		mem := memstore.New()
		for _, id := range cfg.SeedProducts {
			mem.AddProduct(id)
		}
		for _, id := range cfg.SeedWarehouses {
			mem.AddWarehouse(id)
		}
		return mem, nil
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.Driver)
	}
}
