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

	accountcmd "github.com/eaglebank/platform/account-service/internal/command"
	"github.com/eaglebank/platform/account-service/internal/handler"
	accountqry "github.com/eaglebank/platform/account-service/internal/query"
	"github.com/eaglebank/platform/account-service/internal/repository"
	"github.com/eaglebank/platform/shared/config"
	"github.com/eaglebank/platform/shared/database"
	"github.com/eaglebank/platform/shared/events"
	"github.com/eaglebank/platform/shared/logging"
	"github.com/eaglebank/platform/shared/middleware"
	sharedredis "github.com/eaglebank/platform/shared/redis"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load(".", "account-service")
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}
	logger := logging.New(cfg.LogLevel, cfg.LogFormat).With("service", cfg.ServiceName)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := database.Open(ctx, cfg.DatabaseURL, logger)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	// Redis connection (read model store + event streaming)
	redis, err := sharedredis.NewClient(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	if err != nil {
		logger.Error("failed to connect to redis", "error", err)
		os.Exit(1)
	}
	defer redis.Close()

	// --- CQRS wiring ---
	publisher := events.NewPublisher(redis.Client)

	writeRepo := repository.NewAccountWriteRepository(db)
	readRepo := repository.NewAccountReadRepository(db, redis.Client, cfg.CacheTTL)

	commandSvc := accountcmd.NewAccountCommandService(writeRepo, readRepo, publisher, logger)
	querySvc := accountqry.NewAccountQueryService(readRepo)

	accountHandler := handler.NewAccountHandler(commandSvc, querySvc)

	router := gin.New()
	router.Use(gin.Recovery(), middleware.LoggingMiddleware(logger))

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	v1 := router.Group("/v1/accounts", middleware.AuthMiddleware([]byte(cfg.JWTSecret)))
	{
		v1.POST("", accountHandler.CreateAccount)
		v1.GET("", accountHandler.ListAccounts)
		v1.GET("/:accountNumber", accountHandler.GetAccount)
		v1.PATCH("/:accountNumber", accountHandler.UpdateAccount)
		v1.DELETE("/:accountNumber", accountHandler.DeactivateAccount)
	}

	subscribe(ctx, logger, events.NewSubscriber(redis.Client, events.SubscriberConfig{
		Group:    "account-service-group",
		Consumer: "account-consumer-1",
		Stream:   events.TransactionEventsStream,
		Handler:  commandSvc.HandleTransactionEvent,
		Logger:   logger,
	}))
	subscribe(ctx, logger, events.NewSubscriber(redis.Client, events.SubscriberConfig{
		Group:    "account-service-group",
		Consumer: "account-consumer-1",
		Stream:   events.UserEventsStream,
		Handler:  commandSvc.HandleUserEvent,
		Logger:   logger,
	}))

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		logger.Info("account service starting", "port", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server failed", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", "error", err)
	}
}

func subscribe(ctx context.Context, logger *slog.Logger, s *events.Subscriber) {
	go func() {
		if err := s.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("subscriber stopped", "error", err)
		}
	}()
}
