package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"portal/internal/audit"
	"portal/internal/auth"
	"portal/internal/config"
	"portal/internal/logging"
	"portal/internal/queue"
	"portal/internal/store"
	"portal/internal/worker"
)

// Worker consumes domain events and applies their side effects.
func main() {
	cfg := config.Load()

	logger, err := logging.New(cfg.Env, cfg.LogLevel)
	if err != nil {
		log.Fatalf("logger init failed: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.QueueBackend == "memory" {
		logger.Fatal("QUEUE_BACKEND=memory is consumed inside the api process; run the worker with the redis backend")
	}

	db, err := store.NewDB(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Fatal("db connect failed", zap.Error(err))
	}
	defer db.Close()

	redisClient := store.NewRedis(cfg.RedisAddr)
	defer redisClient.Close()
	if !redisClient.Healthy(ctx) {
		logger.Fatal("redis not reachable", zap.String("addr", cfg.RedisAddr))
	}

	h := worker.NewHandler(
		auth.NewSessions(redisClient.Client, cfg.SessionTTL),
		audit.NewLoginLogRepository(db.Client),
		logger,
	)
	if err := h.Run(ctx, queue.NewRedisQueue(redisClient.Client, queue.DefaultKey)); err != nil {
		logger.Fatal("worker failed", zap.Error(err))
	}
}
