package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"portal/internal/account"
	"portal/internal/admin"
	"portal/internal/api"
	"portal/internal/attendance"
	"portal/internal/audit"
	"portal/internal/auth"
	"portal/internal/config"
	"portal/internal/geo"
	"portal/internal/httpmiddleware"
	"portal/internal/logging"
	"portal/internal/metrics"
	"portal/internal/queue"
	"portal/internal/review"
	"portal/internal/store"
	"portal/internal/worker"
)

func main() {
	cfg := config.Load()

	logger, err := logging.New(cfg.Env, cfg.LogLevel)
	if err != nil {
		log.Fatalf("logger init failed: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	if err := runHTTP(cfg, logger); err != nil {
		logger.Fatal("http server failed", zap.Error(err))
	}
}

func runHTTP(cfg config.App, logger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.IsProduction() && cfg.SessionSecret == "dev-session-secret-change" {
		return errors.New("SESSION_SECRET must be set in production")
	}

	startCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	db, err := store.NewDB(startCtx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("db connect failed: %w", err)
	}
	defer db.Close()

	if cfg.MigrateOnStart {
		if err := store.Migrate(startCtx, db.Client); err != nil {
			return err
		}
	}

	redisClient := store.NewRedis(cfg.RedisAddr)
	defer redisClient.Close()
	if !redisClient.Healthy(startCtx) {
		logger.Warn("redis not reachable at startup", zap.String("addr", cfg.RedisAddr))
	}

	users := account.NewRepository(db.Client)
	if cfg.SeedFile != "" {
		accounts, err := account.LoadSeed(cfg.SeedFile)
		if err != nil {
			return err
		}
		if _, err := account.Seed(startCtx, users, auth.HashPassword, accounts, logger); err != nil {
			return err
		}
	}

	loginLogs := audit.NewLoginLogRepository(db.Client)
	actionLog := audit.NewAdminActionRepository(db.Client)
	tx := store.Transactor{DB: db.Client}

	sessions := auth.NewSessions(redisClient.Client, cfg.SessionTTL)
	authSvc, err := auth.NewService(users, sessions, auth.NewCookieSigner(cfg.SessionSecret, cfg.SessionIssuer), loginLogs)
	if err != nil {
		return err
	}

	var q queue.Queue
	if cfg.QueueBackend == "memory" {
		mem := queue.NewInMemory(64)
		q = mem
		// no separate worker process in this mode
		go func() {
			_ = worker.NewHandler(sessions, loginLogs, logger.Named("worker")).Run(ctx, mem)
		}()
	} else {
		q = queue.NewRedisQueue(redisClient.Client, queue.DefaultKey)
	}

	attSvc := attendance.NewService(attendance.NewRepository(db.Client), time.Local)
	adminSvc := admin.NewService(admin.Deps{
		Users:      users,
		Analytics:  admin.NewRepository(db.Client),
		Attendance: attSvc,
		Logins:     loginLogs,
		Actions:    actionLog,
		Tx:         tx,
		Events:     q,
		Sessions:   sessions,
		Location:   time.Local,
		Logger:     logger.Named("admin"),
	})

	apiLimiter, loginLimiter := limiters(cfg, redisClient)
	deps := api.Deps{
		Config:       cfg,
		Auth:         authSvc,
		Attendance:   attSvc,
		Reviews:      review.NewService(review.NewRepository(db.Client), tx, actionLog),
		Admin:        adminSvc,
		Logins:       loginLogs,
		Geo:          geo.New(cfg.GeoServiceURL, cfg.GeoSkip, logger.Named("geo")),
		Metrics:      metrics.New(),
		Logger:       logger,
		APILimiter:   apiLimiter,
		LoginLimiter: loginLimiter,
		Health:       map[string]api.HealthChecker{"db": db, "redis": redisClient},
		Location:     time.Local,
	}
	router := api.NewRouter(api.New(deps), deps)

	srv := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("starting server", zap.String("addr", srv.Addr), zap.String("env", cfg.Env))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	logger.Info("shutting down server")

	// Give outstanding requests 10 seconds to complete
	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelShutdown()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("server forced shutdown", zap.Error(err))
	}
	logger.Info("server exited")
	return nil
}

func limiters(cfg config.App, r *store.Redis) (httpmiddleware.Limiter, httpmiddleware.Limiter) {
	if cfg.RateLimitBackend == "redis" {
		return httpmiddleware.NewRedisLimiter(r.Client, cfg.RateLimitPerMin, time.Minute),
			httpmiddleware.NewRedisLimiter(r.Client, cfg.LoginRateLimitPerMin, time.Minute)
	}
	return httpmiddleware.NewSimpleTokenBucket(cfg.RateLimitPerMin, cfg.RateLimitPerMin),
		httpmiddleware.NewSimpleTokenBucket(cfg.LoginRateLimitPerMin, cfg.LoginRateLimitPerMin)
}
