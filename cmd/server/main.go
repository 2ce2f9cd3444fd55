package main

import (
	"context"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/spf13/viper"
	httpSwagger "github.com/swaggo/http-swagger"

	"github.com/soulseer/settlement/docs"
	"github.com/soulseer/settlement/internal/audit"
	"github.com/soulseer/settlement/internal/config"
	"github.com/soulseer/settlement/internal/database"
	"github.com/soulseer/settlement/internal/gateway"
	"github.com/soulseer/settlement/internal/handlers"
	mW "github.com/soulseer/settlement/internal/middleware"
	"github.com/soulseer/settlement/internal/services"
	"github.com/soulseer/settlement/internal/store"
	"github.com/soulseer/settlement/internal/worker"
)

// @title SoulSeer Settlement API
// @version 1.0
// @description Ledger, session billing, gifts, refunds and payouts
// @host localhost:8080
// @BasePath /api/v1
// @schemes http https
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

func main() {
	// Initialize config
	viper.SetConfigFile(".env") // explicitly point to .env file
	viper.AutomaticEnv()        // allow environment variables to override .env

	viper.BindEnv("database.host", "DATABASE_HOST")
	viper.BindEnv("database.port", "DATABASE_PORT")
	viper.BindEnv("database.user", "DATABASE_USER")
	viper.BindEnv("database.password", "DATABASE_PASSWORD")
	viper.BindEnv("database.name", "DATABASE_NAME")
	viper.BindEnv("database.ssl_mode", "DATABASE_SSL_MODE")
	viper.BindEnv("database.migrate", "DATABASE_MIGRATE")

	viper.BindEnv("redis.host", "REDIS_HOST")
	viper.BindEnv("redis.port", "REDIS_PORT")
	viper.BindEnv("redis.password", "REDIS_PASSWORD")
	viper.BindEnv("redis.db", "REDIS_DB")

	viper.BindEnv("jwt.secret_key", "JWT_SECRET_KEY")
	viper.BindEnv("server.port", "PORT")
	config.BindSettlementEnv()

	if err := viper.ReadInConfig(); err != nil {
		log.Printf("Config file not found, using defaults: %v", err)
	}
	viper.SetDefault("server.port", "8080")
	cfg := config.LoadSettlementConfig()
	if cfg.WebhookSecret == "" {
		log.Println("[CONFIG] GATEWAY_WEBHOOK_SECRET is empty; gateway webhooks will be rejected")
	}

	docs.SwaggerInfo.Host = "localhost:" + viper.GetString("server.port")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Initialize services
	db := database.InitDatabase(ctx)
	defer db.Close()

	redisClient := database.InitRedis(ctx)
	if redisClient != nil {
		defer redisClient.Close()
	}

	st := store.NewPostgresStore(db)
	auditLogger := audit.NewLogger()
	gw := gateway.NewHTTPClient(gateway.Config{
		BaseURL:        cfg.GatewayBaseURL,
		APIKey:         cfg.GatewayAPIKey,
		Timeout:        cfg.GatewayTimeout,
		DebtorName:     cfg.GatewayDebtorName,
		DebtorAgentBIC: cfg.GatewayDebtorAgentBIC,
	})

	splitter, err := services.NewSplitCalculator(cfg.FeeBps())
	if err != nil {
		log.Fatalf("Invalid fee configuration: %v", err)
	}

	ledger := services.NewLedgerService(st, services.NewBalanceCache(redisClient, cfg.BalanceCacheTTL),
		services.NewEventPublisher(redisClient), cfg)
	accountService := services.NewAccountService(ledger)
	if err := accountService.EnsurePlatformAccount(ctx); err != nil {
		log.Fatalf("Failed to create platform account: %v", err)
	}

	sessionService := services.NewSessionService(ledger, st, splitter, auditLogger)
	giftService := services.NewGiftService(ledger, st, splitter,
		services.NewIdempotencyCache(redisClient, cfg.IdempotencyCacheTTL), auditLogger)
	refundService := services.NewRefundService(ledger, auditLogger)
	payoutService := services.NewPayoutService(ledger, st, gw,
		services.NewRunLock(redisClient, cfg.PayoutRunLockTTL), auditLogger, cfg)
	depositService := services.NewDepositService(ledger, st, gw,
		services.NewQRService(cfg.DepositCheckoutBaseURL), auditLogger, cfg)
	auditor := services.NewBalanceAuditor(ledger, st, auditLogger)

	api := &handlers.API{
		Sessions: handlers.NewSessionHandler(sessionService, ledger),
		Gifts:    handlers.NewGiftHandler(giftService, ledger),
		Balance:  handlers.NewBalanceHandler(ledger, depositService, cfg.WebhookSecret, cfg.HistoryPageSize),
		Payouts:  handlers.NewPayoutHandler(payoutService, ledger, cfg.WebhookSecret),
		Refunds:  handlers.NewRefundHandler(refundService),
		Accounts: handlers.NewAccountHandler(accountService, auditor),
	}

	// Background jobs
	scheduler := worker.NewScheduler()
	scheduler.Daily(ctx, "payout-batch", cfg.PayoutHourUTC, func(ctx context.Context, runAt time.Time) error {
		_, err := payoutService.RunBatch(ctx, runAt)
		return err
	})
	scheduler.Every(ctx, "session-watchdog", cfg.WatchdogInterval, func(ctx context.Context) error {
		ended, err := sessionService.SweepExhausted(ctx)
		if ended > 0 {
			log.Printf("[WATCHDOG] Force-ended %d exhausted sessions", ended)
		}
		return err
	})
	scheduler.Every(ctx, "balance-auditor", cfg.AuditInterval, func(ctx context.Context) error {
		report, err := auditor.Reconcile(ctx)
		if err == nil && len(report.Violations) > 0 {
			log.Printf("[AUDITOR] %d of %d accounts failed reconciliation", len(report.Violations), report.Checked)
		}
		return err
	})

	// Setup router
	r := chi.NewRouter()

	// Middleware
	r.Use(mW.RequestID)
	r.Use(mW.SecurityHeaders)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)
	r.Use(middleware.Timeout(60 * time.Second))

	// CORS
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"https://*", "http://*"},
		AllowedMethods:   []string{"GET", "POST", "PATCH", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", mW.RequestIDHeader},
		ExposedHeaders:   []string{mW.RequestIDHeader},
		AllowCredentials: true,
		MaxAge:           86400,
	}))

	// Health check
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		status, code := "healthy", http.StatusOK
		if err := st.Ping(r.Context()); err != nil {
			status, code = "database unavailable", http.StatusServiceUnavailable
		}
		services.SendJSON(w, code, map[string]string{"status": status})
	})

	// Swagger documentation
	r.Get("/swagger/*", httpSwagger.Handler(
		httpSwagger.URL("/swagger/doc.json"),
	))

	// API routes
	r.Route("/api/v1", api.Mount)

	port := viper.GetString("server.port")
	server := &http.Server{
		Addr:         ":" + port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown
	go func() {
		log.Printf("Server starting on :%s", port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	<-ctx.Done()

	log.Println("Server shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server forced to shutdown: %v", err)
	}
	scheduler.Wait()

	log.Println("Server stopped")
}
