package main

import (
	"context"
	"crypto/rsa"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/eaglebank/platform/shared/config"
	"github.com/eaglebank/platform/shared/crypto"
	"github.com/eaglebank/platform/shared/database"
	"github.com/eaglebank/platform/shared/events"
	"github.com/eaglebank/platform/shared/logging"
	"github.com/eaglebank/platform/shared/mail"
	"github.com/eaglebank/platform/shared/middleware"
	"github.com/eaglebank/platform/shared/models"
	"github.com/eaglebank/platform/shared/otp"
	sharedredis "github.com/eaglebank/platform/shared/redis"
	txcmd "github.com/eaglebank/platform/transaction-service/internal/command"
	"github.com/eaglebank/platform/transaction-service/internal/handler"
	"github.com/eaglebank/platform/transaction-service/internal/interbank"
	txqry "github.com/eaglebank/platform/transaction-service/internal/query"
	"github.com/eaglebank/platform/transaction-service/internal/repository"
	"github.com/eaglebank/platform/transaction-service/internal/sweeper"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load(".", "transaction-service")
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}
	logger := logging.New(cfg.LogLevel, cfg.LogFormat).With("service", cfg.ServiceName, "bank_code", cfg.BankCode)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := database.Open(ctx, cfg.DatabaseURL, logger)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	redis, err := sharedredis.NewClient(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	if err != nil {
		logger.Error("failed to connect to redis", "error", err)
		os.Exit(1)
	}
	defer redis.Close()

	privateKey := loadPrivateKey(cfg.BankPrivateKeyPath, logger)

	mailer, closeMailer := mail.New(cfg, logger)
	defer closeMailer()

	publisher := events.NewPublisher(redis.Client)
	gate := otp.NewGate(sharedredis.NewOTPStore(redis.Client), mailer, cfg.OTPTTL, logger)
	remote := interbank.NewClient(cfg.BankCode, privateKey, cfg.InterbankTimeout)
	fees := models.ZeroFeePolicy{}

	accountRepo := repository.NewAccountRepository(db, redis.Client, cfg.CacheTTL)
	bankRepo := repository.NewBankRepository(db, redis.Client, cfg.CacheTTL)
	ledger := repository.NewLedgerRepository(db)
	readRepo := repository.NewTransactionReadRepository(db, redis.Client, cfg.CacheTTL)
	reminderRepo := repository.NewDebtReminderRepository(db)

	transferSvc := txcmd.NewTransferCommandService(accountRepo, ledger, gate, fees, readRepo, publisher, logger)
	interbankSvc := txcmd.NewInterbankCommandService(
		txcmd.InterbankSettings{BankCode: cfg.BankCode, ReplayWindow: cfg.InterbankReplayWindow},
		accountRepo, bankRepo, ledger, gate, fees, remote, readRepo, publisher, logger,
	)
	reminderSvc := txcmd.NewDebtReminderCommandService(accountRepo, reminderRepo, transferSvc, mailer, logger)

	transactionQuerySvc := txqry.NewTransactionQueryService(accountRepo, readRepo)
	interbankQuerySvc := txqry.NewInterbankQueryService(cfg.BankCode, cfg.InterbankReplayWindow, accountRepo, bankRepo, remote, logger)
	reminderQuerySvc := txqry.NewDebtReminderQueryService(accountRepo, reminderRepo)

	transactionHandler := handler.NewTransactionHandler(transactionQuerySvc)
	transferHandler := handler.NewTransferHandler(transferSvc, interbankSvc, interbankQuerySvc, cfg.TransferOTPRequired)
	interbankHandler := handler.NewInterbankHandler(interbankSvc, interbankQuerySvc)
	reminderHandler := handler.NewDebtReminderHandler(reminderSvc, reminderQuerySvc)

	router := gin.New()
	router.Use(gin.Recovery(), middleware.LoggingMiddleware(logger))

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	// Counterpart banks authenticate with the interbank headers, not a JWT.
	router.POST(interbank.DepositPath, interbankHandler.ReceiveDeposit)
	router.GET(interbank.AccountLookupPath+":accountNumber", interbankHandler.DescribeAccount)

	v1 := router.Group("/v1", middleware.AuthMiddleware([]byte(cfg.JWTSecret)))
	{
		v1.GET("/accounts/:accountNumber/transactions", transactionHandler.ListTransactions)
		v1.GET("/accounts/:accountNumber/transactions/:transactionId", transactionHandler.GetTransaction)

		v1.POST("/otp", transferHandler.IssueOTP)
		v1.POST("/transfers", transferHandler.Transfer)
		v1.POST("/transfers/external", transferHandler.TransferExternal)
		v1.GET("/banks", transferHandler.ListBanks)
		v1.GET("/banks/:bankCode/accounts/:accountNumber", transferHandler.LookupExternalAccount)

		v1.POST("/debt-reminders", reminderHandler.Create)
		v1.GET("/debt-reminders", reminderHandler.List)
		v1.DELETE("/debt-reminders/:reminderId", reminderHandler.Cancel)
		v1.POST("/debt-reminders/:reminderId/pay", reminderHandler.Pay)
	}

	sweep := sweeper.New(ledger, cfg.PendingSweepSchedule, cfg.PendingSweepAge, logger)
	if err := sweep.Start(); err != nil {
		logger.Error("failed to schedule pending sweep", "schedule", cfg.PendingSweepSchedule, "error", err)
		os.Exit(1)
	}

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("transaction service starting", "port", cfg.Port)
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
	<-sweep.Stop().Done()
}

// loadPrivateKey returns nil when no key is configured. Outbound interbank
// transfers then fail with an internal error while everything else works.
func loadPrivateKey(path string, logger *slog.Logger) *rsa.PrivateKey {
	if path == "" {
		logger.Warn("BANK_PRIVATE_KEY_PATH not set, outbound interbank transfers are disabled")
		return nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		logger.Error("failed to read bank private key", "path", path, "error", err)
		os.Exit(1)
	}
	key, err := crypto.ParsePrivateKeyPEM(data)
	if err != nil {
		logger.Error("failed to parse bank private key", "path", path, "error", err)
		os.Exit(1)
	}
	return key
}
