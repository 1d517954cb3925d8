package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fjod/go_cart/teamcart-service/internal/config"
	api "github.com/fjod/go_cart/teamcart-service/internal/http"
	"github.com/fjod/go_cart/teamcart-service/internal/notifier"
	"github.com/fjod/go_cart/teamcart-service/internal/poller"
	"github.com/fjod/go_cart/teamcart-service/internal/repository"
	s "github.com/fjod/go_cart/teamcart-service/internal/service"
	"github.com/fjod/go_cart/teamcart-service/internal/store"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const requestTimeout = 5 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		log.Fatalf("Failed to build logger: %v", err)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	defer redisClient.Close()
	if err := redisClient.Ping(ctx).Err(); err != nil {
		logger.Fatal("Redis connection failed", zap.Error(err))
	}
	logger.Info("Redis ping succeeded", zap.String("addr", cfg.RedisAddr))

	n, closeNotifier := buildNotifier(cfg, redisClient, logger)
	defer closeNotifier()

	service := s.NewTeamCartService(
		store.NewRedisStore(redisClient, cfg.KeyPrefix, cfg.TTL),
		n,
		logger,
		s.Options{
			TTL:         cfg.TTL,
			MaxAttempts: cfg.MaxAttempts,
			JitterMin:   cfg.JitterMin,
			JitterMax:   cfg.JitterMax,
		},
	)

	if cfg.MongoURI != "" {
		mongoDB, err := repository.ConnectMongoDB(ctx, cfg.MongoURI, cfg.MongoDBName)
		if err != nil {
			logger.Fatal("Failed to connect to MongoDB", zap.Error(err))
		}
		defer mongoDB.Client().Disconnect(context.Background())

		repo := repository.NewMongoRepository(mongoDB)
		if err := repo.CreateIndexes(ctx); err != nil {
			logger.Fatal("Failed to create snapshot indexes", zap.Error(err))
		}
		service.WithArchive(repo)
		logger.Info("Archiving completed carts to MongoDB", zap.String("db", cfg.MongoDBName))
	}

	if len(cfg.KafkaBrokers) > 0 {
		p := poller.NewPoller(service, logger, cfg.CheckoutTopic, cfg.CheckoutGroupID, cfg.KafkaBrokers...)
		defer p.Close()
		go p.Run(ctx)
		logger.Info("Checkout poller started", zap.String("topic", cfg.CheckoutTopic))
	}

	handler := api.NewTeamCartHandler(service, requestTimeout, logger)
	srv := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      api.NewRouter(handler, logger),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("Team cart service listening", zap.String("port", cfg.HTTPPort))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server error", zap.Error(err))
		}
	}()

	<-ctx.Done()

	logger.Info("Shutting down team cart service...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", zap.Error(err))
	}
	logger.Info("Team cart service stopped")
}

func newLogger(level string) (*zap.Logger, error) {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, err
	}
	zc := zap.NewProductionConfig()
	zc.Level = zap.NewAtomicLevelAt(lvl)
	return zc.Build()
}

func buildNotifier(cfg *config.Config, client *redis.Client, logger *zap.Logger) (notifier.Notifier, func()) {
	switch cfg.NotifierBackend {
	case "kafka":
		k := notifier.NewKafkaNotifier(cfg.Channel, cfg.KafkaBrokers...)
		closeFn := func() {
			if err := k.Close(); err != nil {
				logger.Warn("error closing kafka writer", zap.Error(err))
			}
		}
		return notifier.NewBreakerNotifier(k, logger), closeFn
	case "none":
		return notifier.Nop{}, func() {}
	default:
		return notifier.NewBreakerNotifier(notifier.NewRedisNotifier(client, cfg.Channel), logger), func() {}
	}
}
