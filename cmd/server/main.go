package main

import (
	"context"
	"errors"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"google.golang.org/grpc"

	"github.com/maiandreh/ecommerce-fullstack/internal/adapter/handler"
	"github.com/maiandreh/ecommerce-fullstack/internal/adapter/messaging"
	"github.com/maiandreh/ecommerce-fullstack/internal/adapter/storage"
	"github.com/maiandreh/ecommerce-fullstack/internal/config"
	"github.com/maiandreh/ecommerce-fullstack/internal/core/service"
	"github.com/maiandreh/ecommerce-fullstack/internal/observability"
	"github.com/maiandreh/ecommerce-fullstack/internal/port"
)

// store is the catalog and order store as the server wires it.
type store interface {
	port.TxManager
	port.CatalogRepository
	port.OrderRepository
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	logger, err := observability.NewLogger(cfg.LogLevel)
	if err != nil {
		log.Fatalf("failed to create logger: %v", err)
	}
	defer logger.Sync()

	if err := run(cfg, logger); err != nil {
		logger.Fatal("server exited with error", zap.Error(err))
	}
}

func run(cfg *config.Config, logger *zap.Logger) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	shutdownTracing, err := observability.SetupTracing(ctx, cfg.OtelEndpoint)
	if err != nil {
		logger.Error("failed to setup tracing, continuing without export", zap.Error(err))
		shutdownTracing = func(context.Context) error { return nil }
	}

	// Initialize store
	var db store
	switch cfg.StoreDriver {
	case config.DriverMySQL:
		sqlDB, err := storage.OpenMySQL(cfg.MySQLDSN)
		if err != nil {
			return err
		}
		defer sqlDB.Close()
		sqlDB.SetMaxOpenConns(cfg.MySQLMaxOpenConns)
		sqlDB.SetMaxIdleConns(cfg.MySQLMaxOpenConns / 2)
		sqlDB.SetConnMaxLifetime(5 * time.Minute)

		if err := sqlDB.PingContext(ctx); err != nil {
			return err
		}
		mysqlAdapter := storage.NewMySQLAdapter(sqlDB)
		if err := mysqlAdapter.Migrate(ctx); err != nil {
			return err
		}
		logger.Info("connected to mysql")
		db = mysqlAdapter
	default:
		db = storage.NewMemoryAdapter()
		logger.Info("using in-memory store")
	}

	// Initialize Redis
	var (
		idempotency port.IdempotencyRepository
		cache       port.CatalogCache
	)
	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			PoolSize: 100,
		})
		defer rdb.Close()
		if err := rdb.Ping(ctx).Err(); err != nil {
			return err
		}
		redisAdapter := storage.NewRedisAdapter(rdb, cfg.CatalogCacheTTL)
		idempotency, cache = redisAdapter, redisAdapter
		logger.Info("connected to redis", zap.String("addr", cfg.RedisAddr))
	}

	// Initialize Kafka
	var publisher port.EventPublisher
	if cfg.KafkaBroker != "" {
		kafkaPublisher := messaging.NewKafkaPublisher(cfg.KafkaBroker, cfg.KafkaOrderTopic)
		defer kafkaPublisher.Close()
		publisher = kafkaPublisher
		logger.Info("publishing order events",
			zap.String("broker", cfg.KafkaBroker),
			zap.String("topic", cfg.KafkaOrderTopic),
		)
	}

	// Initialize services
	catalogService := service.NewCatalogService(db, cache, logger)
	orderService := service.NewOrderService(service.NewReservationEngine(db), db, service.OrderServiceOptions{
		Idempotency:     idempotency,
		CatalogCache:    cache,
		Publisher:       publisher,
		ConflictRetries: cfg.ConflictRetries,
		Logger:          logger,
	})

	if cfg.SeedCatalog {
		if _, err := catalogService.Seed(ctx, service.DefaultCatalog()); err != nil {
			return err
		}
	}

	// Start gRPC server
	grpcServer := grpc.NewServer()
	handler.RegisterOrderServiceServer(grpcServer, handler.NewGRPCHandler(orderService, catalogService, logger))

	lis, err := net.Listen("tcp", cfg.GRPCAddr)
	if err != nil {
		return err
	}

	go func() {
		logger.Info("gRPC server listening", zap.String("addr", cfg.GRPCAddr))
		if err := grpcServer.Serve(lis); err != nil {
			logger.Error("gRPC server error", zap.Error(err))
		}
	}()

	// Start HTTP server
	httpServer := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           handler.NewHTTPHandler(orderService, catalogService, logger).Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("HTTP server listening", zap.String("addr", cfg.HTTPAddr))
		if err := httpServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			logger.Error("HTTP server error", zap.Error(err))
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP shutdown failed", zap.Error(err))
	}
	logger.Info("HTTP server stopped")

	grpcServer.GracefulStop()
	logger.Info("gRPC server stopped")

	if err := shutdownTracing(shutdownCtx); err != nil {
		logger.Error("tracing shutdown failed", zap.Error(err))
	}

	return nil
}
