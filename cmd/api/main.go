// AngelaMos | 2026
// main.go

package main

import (
	"context"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/carterperez-dev/templates/checkout-backend/internal/admin"
	"github.com/carterperez-dev/templates/checkout-backend/internal/auth"
	"github.com/carterperez-dev/templates/checkout-backend/internal/config"
	"github.com/carterperez-dev/templates/checkout-backend/internal/core"
	"github.com/carterperez-dev/templates/checkout-backend/internal/entitlement"
	"github.com/carterperez-dev/templates/checkout-backend/internal/gateway"
	"github.com/carterperez-dev/templates/checkout-backend/internal/health"
	"github.com/carterperez-dev/templates/checkout-backend/internal/jobs/expiry"
	"github.com/carterperez-dev/templates/checkout-backend/internal/middleware"
	"github.com/carterperez-dev/templates/checkout-backend/internal/notify"
	"github.com/carterperez-dev/templates/checkout-backend/internal/product"
	"github.com/carterperez-dev/templates/checkout-backend/internal/purchase"
	"github.com/carterperez-dev/templates/checkout-backend/internal/server"
	"github.com/carterperez-dev/templates/checkout-backend/internal/user"
	"github.com/carterperez-dev/templates/checkout-backend/internal/webhook"
)

const (
	drainDelay = 5 * time.Second
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	flag.Parse()

	if err := run(*configPath); err != nil {
		slog.Error("application error", "error", err)
		os.Exit(1)
	}
}

//nolint:funlen // bootstrap code is inherently verbose
func run(configPath string) error {
	ctx, stop := signal.NotifyContext(
		context.Background(),
		syscall.SIGINT,
		syscall.SIGTERM,
	)
	defer stop()

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	logger := setupLogger(cfg.Log)
	slog.SetDefault(logger)

	logger.Info("starting application",
		"name", cfg.App.Name,
		"version", cfg.App.Version,
		"environment", cfg.App.Environment,
	)

	var telemetry *core.Telemetry
	if cfg.Otel.Enabled {
		tel, telErr := core.NewTelemetry(ctx, cfg.Otel, cfg.App)
		if telErr != nil {
			logger.Warn("failed to initialize telemetry", "error", telErr)
		} else if tel.Enabled() {
			telemetry = tel
			logger.Info("OpenTelemetry tracer initialized",
				"endpoint", cfg.Otel.Endpoint,
			)
		} else {
			logger.Warn("OTEL_ENDPOINT not set, spans are not exported")
		}
	}

	db, err := core.NewDatabase(ctx, cfg.Database)
	if err != nil {
		return err
	}
	logger.Info("database connected",
		"max_open_conns", cfg.Database.MaxOpenConns,
		"max_idle_conns", cfg.Database.MaxIdleConns,
	)

	redis, err := core.NewRedis(ctx, cfg.Redis)
	if err != nil {
		return err
	}
	logger.Info("redis connected",
		"pool_size", cfg.Redis.PoolSize,
	)

	verifier, err := auth.NewVerifier(cfg.JWT)
	if err != nil {
		return err
	}
	logger.Info("token verifier initialized",
		"algorithm", "ES256",
		"issuer", cfg.JWT.Issuer,
	)

	gw := newGateway(cfg, logger)
	receipts := newReceiptSender(cfg, logger)

	userSvc := user.NewService(user.NewRepository(db.DB))
	productSvc := product.NewService(product.NewRepository(db.DB), logger)

	purchaseSvc := purchase.NewService(purchase.Dependencies{
		Store:    purchase.NewStore(db.DB),
		Gateway:  gw,
		Receipts: receipts,
		Contacts: userSvc,
		Logger:   logger,
		Settings: purchase.Settings{
			Currency:            cfg.Gateway.Currency,
			PollInterval:        cfg.Checkout.PollInterval,
			ClientWatchdog:      cfg.Checkout.ClientWatchdog,
			UnpaidTTL:           cfg.Checkout.UnpaidTTL,
			ExpiryGrace:         cfg.Checkout.ExpiryGrace,
			ExpiryBatchSize:     cfg.Checkout.ExpiryBatchSize,
			ManualVerifyEnabled: cfg.ManualVerifyAllowed(),
		},
	})

	purchaseHandler := purchase.NewHandler(purchaseSvc)
	entitlementHandler := entitlement.NewHandler(entitlement.NewRepository(db.DB))

	webhookHandler := webhook.NewHandler(purchaseSvc, redis, webhook.Config{
		CallbackToken: cfg.Gateway.CallbackToken,
		EnforceToken:  cfg.EnforceCallbackToken(),
		DedupeTTL:     cfg.Webhook.DedupeTTL,
		MaxBodyBytes:  cfg.Webhook.MaxBodyBytes,
	}, logger)

	healthHandler := health.NewHandler(
		health.Check{Name: "database", Checker: db},
		health.Check{Name: "redis", Checker: redis},
	)

	adminHandler := admin.NewHandler(admin.HandlerConfig{
		DBStats:    db.Stats,
		RedisStats: redis.PoolStats,
		DBPing:     db.Ping,
		RedisPing:  redis.Ping,
		Catalog:    productSvc,
		Expirer:    purchaseSvc,
	})

	srv := server.New(server.Config{
		ServerConfig:  cfg.Server,
		HealthHandler: healthHandler,
		Logger:        logger,
	})

	router := srv.Router()

	router.Use(middleware.RequestID)
	router.Use(middleware.Logger(logger))
	router.Use(
		middleware.NewRateLimiter(redis.Client, middleware.RateLimitConfig{
			Limit: middleware.PerMinute(
				cfg.RateLimit.Requests,
				cfg.RateLimit.Burst,
			),
			FailOpen:   true,
			BypassFunc: isGatewayCallback,
		}).Handler,
	)
	router.Use(middleware.SecurityHeaders(cfg.IsProduction()))
	router.Use(middleware.CORS(cfg.CORS))

	healthHandler.RegisterRoutes(router)

	router.Get("/.well-known/jwks.json", verifier.JWKSHandler())

	authenticator := middleware.Authenticator(verifier)
	adminOnly := middleware.RequireAdmin

	pollLimiter := middleware.NewRateLimiter(redis.Client, middleware.RateLimitConfig{
		Limit: middleware.PerMinute(
			cfg.RateLimit.PollRequests,
			cfg.RateLimit.PollBurst,
		),
		KeyFunc:  middleware.KeyByUserAndEndpoint,
		FailOpen: true,
	}).Handler

	router.Route("/v1", func(r chi.Router) {
		webhookHandler.RegisterRoutes(r)
		purchaseHandler.RegisterRoutes(r, authenticator, pollLimiter)
		entitlementHandler.RegisterRoutes(r, authenticator)
		adminHandler.RegisterRoutes(r, authenticator, adminOnly)
	})

	jobCtx, stopJobs := context.WithCancel(ctx)
	defer stopJobs()

	var jobs sync.WaitGroup
	sweeper := expiry.New(purchaseSvc, cfg.Checkout.ExpirySweepInterval, logger)
	jobs.Add(1)
	go func() {
		defer jobs.Done()
		sweeper.Run(jobCtx)
	}()

	errChan := make(chan error, 1)
	go func() {
		errChan <- srv.Start()
	}()

	select {
	case err := <-errChan:
		stopJobs()
		jobs.Wait()
		return err
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(
		context.Background(),
		cfg.Server.ShutdownTimeout+drainDelay+5*time.Second,
	)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx, drainDelay); err != nil {
		logger.Error("server shutdown error", "error", err)
	}

	stopJobs()
	jobs.Wait()

	logger.Info("waiting for pending receipts")
	purchaseSvc.Wait()

	if telemetry != nil {
		if err := telemetry.Shutdown(shutdownCtx); err != nil {
			logger.Error("telemetry shutdown error", "error", err)
		}
	}

	if err := redis.Close(); err != nil {
		logger.Error("redis close error", "error", err)
	}

	if err := db.Close(); err != nil {
		logger.Error("database close error", "error", err)
	}

	logger.Info("application stopped")
	return nil
}

// isGatewayCallback keeps provider retries out of the per-IP budget; the
// callback route authenticates with its own token.
func isGatewayCallback(r *http.Request) bool {
	return r.Method == http.MethodPost &&
		strings.HasSuffix(r.URL.Path, webhook.CallbackPath)
}

func newGateway(cfg *config.Config, logger *slog.Logger) gateway.Gateway {
	if cfg.Gateway.Provider == config.GatewayXendit {
		logger.Info("payment gateway configured", "provider", config.GatewayXendit)
		return gateway.NewXenditClient(cfg.Gateway)
	}

	logger.Warn("using sandbox payment gateway, payments are simulated")
	return gateway.NewSandbox()
}

func newReceiptSender(cfg *config.Config, logger *slog.Logger) notify.Sender {
	if cfg.Notify.BrevoAPIKey == "" {
		logger.Warn("BREVO_API_KEY not set, receipts are logged only")
		return notify.NewLogSender(logger)
	}
	return notify.NewBrevoSender(cfg.Notify)
}

func setupLogger(cfg config.LogConfig) *slog.Logger {
	var handler slog.Handler

	level := slog.LevelInfo
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}

	opts := &slog.HandlerOptions{Level: level}

	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	return slog.New(handler)
}
