package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	cartapp "github.com/kiendrone/storefront/internal/application/cart"
	checkoutapp "github.com/kiendrone/storefront/internal/application/checkout"
	orderapp "github.com/kiendrone/storefront/internal/application/order"
	domaincheckout "github.com/kiendrone/storefront/internal/domain/checkout"
	"github.com/kiendrone/storefront/internal/domain/order"
	"github.com/kiendrone/storefront/internal/domain/payment"
	"github.com/kiendrone/storefront/internal/domain/shared/valueobject"
	"github.com/kiendrone/storefront/internal/infrastructure/auth"
	"github.com/kiendrone/storefront/internal/infrastructure/cache"
	"github.com/kiendrone/storefront/internal/infrastructure/config"
	"github.com/kiendrone/storefront/internal/infrastructure/event"
	"github.com/kiendrone/storefront/internal/infrastructure/logger"
	"github.com/kiendrone/storefront/internal/infrastructure/persistence"
	"github.com/kiendrone/storefront/internal/infrastructure/qr"
	"github.com/kiendrone/storefront/internal/infrastructure/telemetry"
	"github.com/kiendrone/storefront/internal/interfaces/http/handler"
	"github.com/kiendrone/storefront/internal/interfaces/http/middleware"
	"github.com/kiendrone/storefront/internal/interfaces/http/router"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// version is set at build time with -ldflags "-X main.version=..."
var version = "dev"

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}

	// Initialize logger
	baseLog, err := logger.New(&logger.Config{
		Level:      cfg.Log.Level,
		Format:     cfg.Log.Format,
		Output:     cfg.Log.Output,
		TimeFormat: cfg.Log.TimeFormat,
	})
	if err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}

	ctx := context.Background()

	collector := telemetry.Collector{
		Endpoint:       cfg.Telemetry.CollectorEndpoint,
		Insecure:       cfg.Telemetry.Insecure,
		ServiceName:    cfg.Telemetry.ServiceName,
		ServiceVersion: version,
	}

	// Export logs through OpenTelemetry when telemetry is on
	logProvider, err := telemetry.NewLoggerProvider(ctx, telemetry.LogsConfig{
		Enabled:   cfg.Telemetry.Enabled,
		Collector: collector,
	}, baseLog)
	if err != nil {
		baseLog.Fatal("Failed to initialize log exporter", zap.Error(err))
	}
	log := logProvider.Bridge(baseLog, zapcore.InfoLevel)
	defer func() {
		_ = log.Sync()
	}()

	log.Info("Starting storefront",
		zap.String("app", cfg.App.Name),
		zap.String("env", cfg.App.Env),
		zap.String("port", cfg.App.Port),
		zap.String("version", version),
	)

	tracerProvider, err := telemetry.NewTracerProvider(ctx, telemetry.Config{
		Enabled:       cfg.Telemetry.Enabled,
		Collector:     collector,
		SamplingRatio: cfg.Telemetry.SamplingRatio,
	}, log)
	if err != nil {
		log.Fatal("Failed to initialize tracer provider", zap.Error(err))
	}

	meterProvider, err := telemetry.NewMeterProvider(ctx, telemetry.MetricsConfig{
		Enabled:        cfg.Telemetry.Enabled,
		Collector:      collector,
		ExportInterval: cfg.Telemetry.MetricsInterval,
	}, log)
	if err != nil {
		log.Fatal("Failed to initialize meter provider", zap.Error(err))
	}
	meter := meterProvider.Meter("github.com/kiendrone/storefront")

	// Create GORM logger backed by zap
	gormLog := logger.NewSQLLogger(log, logger.SQLLoggerConfig{
		Level:             cfg.Log.Level,
		SlowThreshold:     cfg.Telemetry.DBSlowQueryThresh,
		LogRecordNotFound: cfg.Log.Level == "debug",
	})

	// Initialize database connection with custom logger
	db, err := persistence.NewDatabaseWithCustomLogger(&cfg.Database, gormLog)
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	log.Info("Database connected successfully")

	if cfg.Telemetry.Enabled && cfg.Telemetry.DBTraceEnabled {
		dbTracing := telemetry.DefaultDBTracingConfig()
		dbTracing.Enabled = true
		dbTracing.LogFullSQL = cfg.Telemetry.DBLogFullSQL && !cfg.IsProduction()
		dbTracing.SlowQueryThresh = cfg.Telemetry.DBSlowQueryThresh
		dbTracing.DBName = cfg.Database.DBName
		if err := telemetry.RegisterDBTracing(db.DB, dbTracing, log); err != nil {
			log.Fatal("Failed to register database tracing", zap.Error(err))
		}
	}

	sqlDB, err := db.DB.DB()
	if err != nil {
		log.Fatal("Failed to get underlying sql.DB", zap.Error(err))
	}
	poolMetrics, err := telemetry.RegisterDBPoolMetrics(meter, sqlDB)
	if err != nil {
		log.Fatal("Failed to register database pool metrics", zap.Error(err))
	}

	// Cart snapshots and submission claims live in Redis when configured
	stores, err := cache.NewStoreFactory(cfg.Redis, cfg.Checkout.CartTTL,
		cache.WithLogger(log),
		cache.WithInMemoryFallback(!cfg.IsProduction()),
	).Create(ctx)
	if err != nil {
		log.Fatal("Failed to initialize stores", zap.Error(err))
	}

	checkoutMetrics, err := telemetry.NewCheckoutMetrics(meter, log)
	if err != nil {
		log.Fatal("Failed to register checkout metrics", zap.Error(err))
	}

	// Domain events are dispatched in process; the once handler keeps a
	// redelivered OrderPlaced from being counted twice
	eventBus := event.NewInMemoryEventBus(log)
	eventBus.Subscribe(
		event.NewOnceHandler(checkoutMetrics, stores.Idempotency, 24*time.Hour, log),
		checkoutMetrics.EventTypes()...,
	)

	// Initialize repositories
	orderRepo := persistence.NewGormOrderRepository(db.DB)
	profileRepo := persistence.NewGormProfileRepository(db.DB)
	catalogRepo := persistence.NewGormCatalogRepository(db.DB)

	composer := domaincheckout.NewComposer(domaincheckout.ShippingPolicy{
		FreeAbove: valueobject.VNDFromInt(cfg.Checkout.ShippingThreshold),
		FlatFee:   valueobject.VNDFromInt(cfg.Checkout.ShippingFee),
	})

	sessions := checkoutapp.NewSessionManager(checkoutapp.SessionDeps{
		Snapshots: stores.Snapshots,
		Orders:    orderRepo,
		Codes:     order.NewRandomCodeSource(nil),
		Claims:    stores.Idempotency,
		Events:    eventBus,
		Notifier:  checkoutMetrics,
		Metrics:   checkoutMetrics,
		Logger:    log,
	}, checkoutapp.SessionConfig{
		IdleTTL:         cfg.Checkout.SessionIdleTTL,
		CleanupInterval: cfg.Checkout.SessionCleanup,
		PaymentWindow:   cfg.Checkout.PaymentWindow,
		Pipeline: checkoutapp.PipelineConfig{
			CodeAttempts:  cfg.Checkout.CodeAttempts,
			SubmitTimeout: cfg.Checkout.SubmitTimeout,
			ClaimTTL:      cfg.Checkout.ClaimTTL,
		},
		Recipient: payment.Recipient{
			StorePrefix:   cfg.Checkout.StorePrefix,
			BankCode:      cfg.Payment.BankCode,
			BankAccount:   cfg.Payment.BankAccount,
			AccountName:   cfg.Payment.AccountName,
			WalletAccount: cfg.Payment.MomoAccount,
		},
	})

	// Initialize application services
	cartService := cartapp.NewService(sessions)
	cartService.SetCatalog(catalogRepo)

	checkoutService := checkoutapp.NewService(sessions, composer, log)
	checkoutService.SetProfileRepository(profileRepo)
	checkoutService.SetQRRenderer(qr.NewRenderer(), cfg.Payment.QRSize)

	orderQuery := orderapp.NewQueryService(orderRepo)

	// Initialize handlers
	checks := map[string]handler.HealthCheck{
		"database": db.Ping,
	}
	if stores.Redis != nil {
		checks["redis"] = func(ctx context.Context) error {
			return stores.Redis.Ping(ctx).Err()
		}
	}
	handlers := router.Handlers{
		Cart:     handler.NewCartHandler(cartService),
		Checkout: handler.NewCheckoutHandler(checkoutService),
		Orders:   handler.NewOrderHandler(orderQuery),
		Health:   handler.NewHealthHandler(checks),
	}

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	middleware.SetupValidator()

	httpMetrics, err := middleware.HTTPMetrics(meter)
	if err != nil {
		log.Fatal("Failed to register HTTP metrics", zap.Error(err))
	}

	var submitLimiter *middleware.RateLimiter
	if cfg.Checkout.SubmitRateLimit > 0 {
		submitLimiter = middleware.NewRateLimiter(cfg.Checkout.SubmitRateLimit, cfg.Checkout.SubmitRatePeriod)
	}

	corsCfg := middleware.DefaultCORSConfig()
	corsCfg.AllowOrigins = cfg.HTTP.CORSAllowOrigins
	corsCfg.AllowMethods = cfg.HTTP.CORSAllowMethods
	corsCfg.AllowHeaders = cfg.HTTP.CORSAllowHeaders

	engine, err := router.New(router.Config{
		Logger:   log,
		Verifier: auth.NewTokenVerifier(cfg.Identity),
		Tracing: middleware.TracingConfig{
			ServiceName: cfg.Telemetry.ServiceName,
			Enabled:     tracerProvider.IsEnabled(),
		},
		CORS:           corsCfg,
		MaxBodySize:    cfg.HTTP.MaxBodySize,
		TrustedProxies: cfg.HTTP.TrustedProxies,
		HTTPMetrics:    httpMetrics,
		SubmitLimiter:  submitLimiter,
		APIVersion:     cfg.HTTP.APIVersion,
	}, handlers)
	if err != nil {
		log.Fatal("Failed to set up router", zap.Error(err))
	}

	// Create HTTP server with config
	srv := &http.Server{
		Addr:           ":" + cfg.App.Port,
		Handler:        engine,
		ReadTimeout:    cfg.HTTP.ReadTimeout,
		WriteTimeout:   cfg.HTTP.WriteTimeout,
		IdleTimeout:    cfg.HTTP.IdleTimeout,
		MaxHeaderBytes: cfg.HTTP.MaxHeaderBytes,
	}

	// Start server in goroutine
	go func() {
		log.Info("Server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", zap.Error(err))
	}

	if submitLimiter != nil {
		submitLimiter.Stop()
	}
	if err := sessions.Close(); err != nil {
		log.Error("Error closing checkout sessions", zap.Error(err))
	}
	if err := stores.Close(); err != nil {
		log.Error("Error closing stores", zap.Error(err))
	}
	if err := poolMetrics.Stop(); err != nil {
		log.Error("Error stopping database pool metrics", zap.Error(err))
	}
	if err := db.Close(); err != nil {
		log.Error("Error closing database", zap.Error(err))
	}
	if err := meterProvider.Shutdown(shutdownCtx); err != nil {
		log.Error("Error shutting down meter provider", zap.Error(err))
	}
	if err := tracerProvider.Shutdown(shutdownCtx); err != nil {
		log.Error("Error shutting down tracer provider", zap.Error(err))
	}

	log.Info("Server exited gracefully")
	if err := logProvider.Shutdown(shutdownCtx); err != nil {
		baseLog.Error("Error shutting down log exporter", zap.Error(err))
	}
}
