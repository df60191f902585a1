// Package gateway is the public entry point of the bank: it terminates JWT
// authentication for customer routes and forwards everything to the owning
// service.
package gateway

import (
	"log/slog"
	"net/http"

	"github.com/eaglebank/platform/shared/middleware"
	"github.com/gin-gonic/gin"
)

// Upstreams are the base URLs of the backend services.
type Upstreams struct {
	Auth        string
	User        string
	Account     string
	Transaction string
}

// NewRouter builds the gateway routes. Interbank routes carry their own
// HMAC and RSA protection and are forwarded with headers untouched.
func NewRouter(upstreams Upstreams, jwtSecret []byte, client *http.Client, logger *slog.Logger) *gin.Engine {
	auth := middleware.AuthMiddleware(jwtSecret)
	authSvc := NewProxy(upstreams.Auth, client).Handle
	userSvc := NewProxy(upstreams.User, client).Handle
	accountSvc := NewProxy(upstreams.Account, client).Handle
	transactionSvc := NewProxy(upstreams.Transaction, client).Handle

	router := gin.New()
	router.Use(gin.Recovery(), middleware.LoggingMiddleware(logger))

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "service": "api-gateway"})
	})

	// Auth routes (no authentication required)
	router.POST("/v1/auth/login", authSvc)
	router.POST("/v1/auth/refresh", authSvc)

	// User routes
	router.POST("/v1/users", userSvc) // No auth for registration
	router.GET("/v1/users/:userId", auth, userSvc)
	router.PATCH("/v1/users/:userId", auth, userSvc)
	router.DELETE("/v1/users/:userId", auth, userSvc)

	// Account routes
	router.POST("/v1/accounts", auth, accountSvc)
	router.GET("/v1/accounts", auth, accountSvc)
	router.GET("/v1/accounts/:accountNumber", auth, accountSvc)
	router.PATCH("/v1/accounts/:accountNumber", auth, accountSvc)
	router.DELETE("/v1/accounts/:accountNumber", auth, accountSvc)

	// Transaction routes
	router.GET("/v1/accounts/:accountNumber/transactions", auth, transactionSvc)
	router.GET("/v1/accounts/:accountNumber/transactions/:transactionId", auth, transactionSvc)
	router.POST("/v1/otp", auth, transactionSvc)
	router.POST("/v1/transfers", auth, transactionSvc)
	router.POST("/v1/transfers/external", auth, transactionSvc)
	router.GET("/v1/banks", auth, transactionSvc)
	router.GET("/v1/banks/:bankCode/accounts/:accountNumber", auth, transactionSvc)

	// Debt reminders
	router.POST("/v1/debt-reminders", auth, transactionSvc)
	router.GET("/v1/debt-reminders", auth, transactionSvc)
	router.DELETE("/v1/debt-reminders/:reminderId", auth, transactionSvc)
	router.POST("/v1/debt-reminders/:reminderId/pay", auth, transactionSvc)

	// Interbank routes (partner banks authenticate per request)
	router.POST("/v1/interbank/deposits", transactionSvc)
	router.GET("/v1/interbank/accounts/:accountNumber", transactionSvc)

	return router
}
