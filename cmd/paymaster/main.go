package main

import (
	"armora/api_payments/internal/handlers"
	"armora/api_payments/internal/stripe"
	"armora/api_payments/pkg/auth"
	"armora/api_payments/pkg/config"
	"armora/api_payments/pkg/database"
	"armora/api_payments/pkg/logging"
	"armora/api_payments/pkg/monitoring"
	"armora/api_payments/pkg/server"
	"armora/api_payments/pkg/version"
)

func main() {
	// Setup logger
	logger := logging.NewLoggerWithService("paymaster")

	// Load environment variables
	config.LoadEnv(logger)

	logger.Info("Starting Paymaster (Payments API)")

	dbURL := config.RequireEnv("DATABASE_URL")
	jwtSecret := config.RequireEnv("JWT_SECRET")
	stripeSecretKey := config.RequireEnv("STRIPE_SECRET_KEY")
	stripeWebhookSecret := config.GetEnv("STRIPE_WEBHOOK_SECRET", "")

	// Connect to database
	dbConfig := database.DefaultConfig()
	dbConfig.URL = dbURL
	db := database.MustConnect(dbConfig, logger)
	defer db.Close()

	// Apply the embedded schema on boot unless deploy tooling owns it
	if config.GetEnv("APPLY_SCHEMA", "true") == "true" {
		if err := database.ApplySchema(db, logger); err != nil {
			logger.WithError(err).Fatal("Failed to apply database schema")
		}
	}

	// Setup monitoring
	healthChecker := monitoring.NewHealthChecker("paymaster", version.Version)
	metricsCollector := monitoring.NewMetricsCollector("paymaster", version.Version, version.GitCommit)

	// Add health checks
	healthChecker.AddCheck("database", monitoring.DatabaseHealthCheck(db))
	healthChecker.AddCheck("stripe", monitoring.HTTPServiceHealthCheck("stripe", "https://status.stripe.com/current"))
	healthChecker.AddCheck("config", monitoring.ConfigurationHealthCheck(map[string]string{
		"DATABASE_URL":      dbURL,
		"JWT_SECRET":        jwtSecret,
		"STRIPE_SECRET_KEY": stripeSecretKey,
	}))

	// Create custom payments metrics
	metrics := &handlers.PaymasterMetrics{
		FeeCalculations:  metricsCollector.NewCounter("fee_calculations_total", "Fee calculations performed", []string{"status"}),
		PayoutOperations: metricsCollector.NewCounter("payout_operations_total", "Payout operations", []string{"status"}),
		Transfers:        metricsCollector.NewCounter("stripe_transfers_total", "Stripe transfers", []string{"status"}),
		WebhookEvents:    metricsCollector.NewCounter("webhook_events_total", "Stripe webhook events", []string{"status"}),
	}

	// Create database metrics
	metrics.DBQueries, metrics.DBDuration, metrics.DBConnections = metricsCollector.CreateDatabaseMetrics()

	// Stripe client
	stripeClient := stripe.NewClient(stripe.Config{
		SecretKey:     stripeSecretKey,
		WebhookSecret: stripeWebhookSecret,
		Logger:        logger,
	})

	// Initialize handlers
	handlers.Init(db, logger, stripeClient, metrics)

	// Setup router with unified monitoring
	router := server.SetupServiceRouter(logger, "paymaster", healthChecker, metricsCollector)

	// API routes (root level - nginx adds /api/payments/ prefix)
	{
		// Authentication required endpoints
		protected := router.Group("")
		protected.Use(auth.JWTAuthMiddleware([]byte(jwtSecret)))
		{
			protected.POST("/fees/calculate", handlers.CalculateFees)
			protected.POST("/earnings", handlers.GetEarnings)
			protected.POST("/payment-intents", handlers.CreatePaymentIntent)
			protected.GET("/payouts", handlers.ListPayouts)

			// Admin-only settlement and reconciliation surface
			adminAPI := protected.Group("")
			adminAPI.Use(auth.RequireRole(auth.RoleAdmin))
			{
				adminAPI.POST("/payouts/process", handlers.ProcessPayout)
				adminAPI.GET("/reconciliations", handlers.ListReconciliations)
				adminAPI.POST("/reconciliations/:id/resolve", handlers.ResolveReconciliation)
			}
		}

		// Webhook endpoints (signature-verified, no bearer auth)
		router.POST("/webhooks/stripe", handlers.HandleStripeWebhook)
	}

	// Start server with graceful shutdown
	serverConfig := server.DefaultConfig("paymaster", "18010")
	if err := server.Start(serverConfig, router, logger); err != nil {
		logger.WithError(err).Fatal("Server startup failed")
	}
}
