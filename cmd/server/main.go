package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"net/http"
	"os"

	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/dukerupert/saga/internal"
	"github.com/dukerupert/saga/internal/billing"
	"github.com/dukerupert/saga/internal/events"
	"github.com/dukerupert/saga/internal/handler"
	"github.com/dukerupert/saga/internal/handler/webhook"
	"github.com/dukerupert/saga/internal/middleware"
	"github.com/dukerupert/saga/internal/postgres"
	"github.com/dukerupert/saga/internal/router"
	"github.com/dukerupert/saga/internal/routes"
	"github.com/dukerupert/saga/internal/service"
	"github.com/dukerupert/saga/internal/telemetry"
)

func run() error {
	ctx := context.Background()

	// Load configuration
	cfg, err := internal.NewConfig()
	if err != nil {
		return fmt.Errorf("config initialization failed: %w", err)
	}

	// Configure logger
	logger := internal.NewLogger(os.Stdout, cfg.Env, cfg.LogLevel)

	// Initialize database/sql connection for migrations
	logger.Info("Connecting to database...")
	sqlDB, err := sql.Open("pgx", cfg.DatabaseUrl)
	if err != nil {
		return fmt.Errorf("database connection failed: %w", err)
	}
	defer sqlDB.Close()

	if err := sqlDB.Ping(); err != nil {
		return fmt.Errorf("database ping failed: %w", err)
	}
	logger.Info("Database connection established")

	// Run migrations
	logger.Info("Running database migrations...")
	if err := internal.RunMigrations(sqlDB); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}
	logger.Info("Database migrations completed successfully")

	// Initialize pgx connection pool for the application
	pool, err := pgxpool.New(ctx, cfg.DatabaseUrl)
	if err != nil {
		return fmt.Errorf("failed to create connection pool: %w", err)
	}
	defer pool.Close()

	// Initialize repository
	repo := postgres.NewStore(pool)

	// Initialize Stripe billing provider
	logger.Info("Initializing Stripe billing provider...")
	stripeConfig := billing.StripeConfig{
		APIKey:         cfg.Stripe.SecretKey,
		PublishableKey: cfg.Stripe.PublishableKey,
		WebhookSecret:  cfg.Stripe.WebhookSecret,
		MaxRetries:     3,
		TimeoutSeconds: 30,
	}
	billingProvider, err := billing.NewStripeProvider(stripeConfig)
	if err != nil {
		return fmt.Errorf("failed to initialize Stripe provider: %w", err)
	}
	logger.Info("Stripe billing provider initialized", "test_mode", stripeConfig.IsTestMode())

	// Initialize event publisher (NATS when configured, logs otherwise)
	var publisher events.Publisher
	if cfg.NATSUrl != "" {
		natsPublisher, err := events.NewNATSPublisher(cfg.NATSUrl, logger)
		if err != nil {
			return fmt.Errorf("failed to connect event publisher: %w", err)
		}
		publisher = natsPublisher
		logger.Info("NATS event publisher connected", "url", cfg.NATSUrl)
	} else {
		publisher = events.NewLogPublisher(logger)
		logger.Info("No NATS_URL configured, publishing events to log")
	}
	defer publisher.Close()

	// Initialize services
	userService := service.NewUserService(repo, logger)
	invoiceService := service.NewInvoiceService(repo, publisher, logger)
	paymentService := service.NewPaymentService(repo, billingProvider, publisher, logger)

	// Initialize metrics
	metrics := middleware.NewMetrics("saga")
	telemetry.InitBusinessMetrics("saga")

	// Initialize handlers
	userHandler := handler.NewUserHandler(userService, logger)
	invoiceHandler := handler.NewInvoiceHandler(invoiceService, paymentService, logger)
	paymentHandler := handler.NewPaymentHandler(paymentService, logger)
	healthHandler := handler.NewHealthHandler(pool)

	stripeWebhookHandler := webhook.NewStripeHandler(
		billingProvider,
		paymentService,
		webhook.StripeWebhookConfig{WebhookSecret: cfg.Stripe.WebhookSecret},
		logger,
	)

	// Create router and register routes
	r := router.New(
		router.Recovery(logger),
		router.CORS(cfg.AllowedOrigins),
		middleware.RequestID,
		metrics.Middleware,
		middleware.MaxBodySize(middleware.SmallMaxBodySize),
		middleware.Timeout(middleware.DefaultTimeout),
		router.Logger(logger),
		middleware.WithRequestLogger(logger),
	)

	// Metrics endpoint (protect via firewall in production)
	r.Get("/metrics", func(w http.ResponseWriter, req *http.Request) {
		metrics.Handler().ServeHTTP(w, req)
	})

	routes.RegisterAPIRoutes(r, routes.APIDeps{
		UserHandler:    userHandler,
		InvoiceHandler: invoiceHandler,
		PaymentHandler: paymentHandler,
		HealthHandler:  healthHandler,
	})
	routes.RegisterWebhookRoutes(r, routes.WebhookDeps{
		StripeHandler: stripeWebhookHandler.HandleWebhook,
	})

	// Start server
	addr := fmt.Sprintf(":%d", cfg.Port)
	logger.Info("Starting server", "address", addr, "env", cfg.Env)
	if err := http.ListenAndServe(addr, r); err != nil {
		return fmt.Errorf("server failed: %w", err)
	}

	return nil
}

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}
