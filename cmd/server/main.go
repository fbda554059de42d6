package main

import (
	"context" // context package is needed for Redis operations
	"log"     // log package is needed for logging

	"wagerhub/internal/api"        // Custom package for API handlers
	"wagerhub/internal/billing"    // Bill provider client
	"wagerhub/internal/config"     // Custom package for configuration
	"wagerhub/internal/metrics"    // Prometheus metrics/health sidecar
	"wagerhub/internal/middleware" // Custom package for middleware
	"wagerhub/internal/realtime"   // Notification fan-out

	"github.com/gin-gonic/gin"     // Gin web framework
	"github.com/redis/go-redis/v9" // Redis client
	"github.com/sirupsen/logrus"   // Logrus for structured logging
	"gorm.io/driver/mysql"         // MySQL driver for GORM
	"gorm.io/gorm"                 // GORM ORM library
)

// Main function to set up and run the server
func main() {
	cfg := config.LoadConfig() // Load configuration

	// Setup logger
	logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	// Setup Data Source Name (DSN) and connect to the database
	dsn := cfg.DBUser + ":" + cfg.DBPassword + "@tcp(" + cfg.DBHost + ":" + cfg.DBPort + ")/" + cfg.DBName + "?parseTime=true"
	db, err := gorm.Open(mysql.Open(dsn), &gorm.Config{})
	if err != nil {
		logrus.Fatalf("failed to connect to DB: %v", err) // Fatal error if DB connection fails
	}

	// Setup Redis client
	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr, // Redis server address
		Password: cfg.RedisPass, // Redis password
		DB:       cfg.RedisDB,   // Redis database number
	})

	// Test Redis connection
	_, err = redisClient.Ping(context.Background()).Result()
	if err != nil {
		logrus.Fatalf("failed to connect to Redis: %v", err)
	}

	// Shared services
	notifier := realtime.NewNotifier(db, redisClient)
	provider := billing.NewVTUClient(cfg.BillProviderURL, cfg.BillProviderKey)

	// Metrics and health endpoints live on their own port
	metrics.StartServer(cfg.MetricsPort, func(ctx context.Context) error {
		return redisClient.Ping(ctx).Err()
	})

	// Set Mode to Release if in production
	if cfg.IsProd {
		gin.SetMode(gin.ReleaseMode)
	}

	// Setup Gin
	r := gin.Default() // Gin router instance

	// Set trusted proxies for Gin
	if err := r.SetTrustedProxies([]string{"127.0.0.1"}); err != nil {
		logrus.Fatalf("failed to set trusted proxies: %v", err)
	}

	// Auth routes
	r.POST("/auth/register", api.RegisterHandler(db))            // Registration endpoint
	r.POST("/auth/login", api.LoginHandler(db, cfg.JWTSecret))   // Login endpoint

	// Webhooks authenticate with shared secrets, not JWTs
	r.POST("/wallet/deposits/webhook", api.DepositWebhookHandler(db, redisClient, notifier, cfg.GatewaySecret))
	r.POST("/bills/callback", api.BillCallbackHandler(db, redisClient, notifier, cfg.BillCallbackSecret))

	// Authenticated routes: JWT, suspension gate, then rate limiting
	authed := r.Group("")
	authed.Use(
		middleware.JWTAuthMiddleware(cfg.JWTSecret),
		middleware.ActiveUserMiddleware(db),
		middleware.RateLimitMiddleware(redisClient, cfg.RateLimitPerMinute),
	)

	// Wallet routes
	authed.GET("/wallet", api.GetWalletHandler(db, redisClient))                          // Wallet info endpoint
	authed.POST("/wallet/deposits", api.InitiateDepositHandler(db))                       // Start a gateway deposit
	authed.POST("/wallet/transfer", api.TransferHandler(db, redisClient, notifier))       // Transfer endpoint
	authed.POST("/wallet/withdrawals", api.WithdrawHandler(db, redisClient))              // Withdrawal request endpoint
	authed.GET("/wallet/transactions", api.GetTransactionHistoryHandler(db, redisClient)) // Transaction history endpoint
	authed.GET("/wallet/recipients", api.SearchRecipientsHandler(db))                     // Recipient search endpoint

	// Wager routes
	authed.POST("/wagers", api.CreateWagerHandler(db, redisClient, cfg.MinWagerAmount, cfg.DefaultFeePercent))
	authed.GET("/wagers", api.ListWagersHandler(db, redisClient))
	authed.GET("/wagers/:id", api.GetWagerHandler(db))
	authed.POST("/wagers/:id/join", api.JoinWagerHandler(db, redisClient))
	authed.POST("/wagers/:id/settle", api.SettleWagerHandler(db, redisClient, notifier))
	authed.POST("/wagers/:id/cancel", api.CancelWagerHandler(db, redisClient, notifier))

	// Quiz routes
	authed.POST("/quizzes", api.CreateQuizHandler(db, redisClient))
	authed.GET("/quizzes", api.ListQuizzesHandler(db))
	authed.GET("/quizzes/:id", api.GetQuizHandler(db))
	authed.POST("/quizzes/:id/join", api.JoinQuizHandler(db, redisClient))
	authed.POST("/quizzes/:id/answers", api.SubmitAnswersHandler(db))
	authed.POST("/quizzes/:id/settle", api.SettleQuizHandler(db, redisClient, notifier))

	// KYC routes
	authed.GET("/kyc", api.GetKYCHandler(db))
	authed.POST("/kyc", api.SubmitKYCHandler(db))

	// Bill routes
	authed.POST("/bills/airtime", api.PurchaseBillHandler(db, redisClient, provider, notifier, "airtime"))
	authed.POST("/bills/data", api.PurchaseBillHandler(db, redisClient, provider, notifier, "data"))
	authed.GET("/bills", api.ListBillPaymentsHandler(db))

	// Preference and notification routes
	authed.GET("/preferences", api.GetPreferencesHandler(db))
	authed.PATCH("/preferences", api.UpdatePreferencesHandler(db))
	authed.GET("/notifications", api.ListNotificationsHandler(db))
	authed.POST("/notifications/read", api.MarkNotificationsReadHandler(db))

	// Admin routes (protected, admin only)
	adminGroup := r.Group("/admin")
	adminGroup.Use(middleware.JWTAuthMiddleware(cfg.JWTSecret), middleware.AdminOnlyMiddleware(db))
	adminGroup.GET("/users", api.ListUsersHandler(db, redisClient))                                 // List users endpoint
	adminGroup.POST("/users/:id/suspend", api.SetSuspensionHandler(db, redisClient, true))          // Suspend endpoint
	adminGroup.POST("/users/:id/unsuspend", api.SetSuspensionHandler(db, redisClient, false))       // Unsuspend endpoint
	adminGroup.GET("/transactions", api.ListTransactionsHandler(db, redisClient))                   // List transactions endpoint
	adminGroup.GET("/kyc", api.ListKYCSubmissionsHandler(db))                                       // KYC review queue
	adminGroup.POST("/kyc/:id/review", api.ReviewKYCHandler(db, notifier))                          // KYC decision endpoint
	adminGroup.GET("/withdrawals", api.ListWithdrawalsHandler(db))                                  // Withdrawal review queue
	adminGroup.POST("/withdrawals/:id/review", api.ReviewWithdrawalHandler(db, redisClient, notifier)) // Withdrawal decision
	adminGroup.GET("/reports/summary", api.SummaryReportHandler(db, redisClient))                   // Dashboard totals

	log.Println("Server running on " + cfg.AppPort) // Log server start
	r.Run(":" + cfg.AppPort)                        // Start the server on port cfg.AppPort
}
