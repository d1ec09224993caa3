package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/benvon/focus-companion/internal/bootstrap"
	"github.com/benvon/focus-companion/internal/config"
	"github.com/benvon/focus-companion/internal/database"
	"github.com/benvon/focus-companion/internal/handlers"
	"github.com/benvon/focus-companion/internal/logger"
	"github.com/benvon/focus-companion/internal/maintenance"
	"github.com/benvon/focus-companion/internal/metrics"
	"github.com/benvon/focus-companion/internal/middleware"
	"github.com/benvon/focus-companion/internal/queue"
	"github.com/benvon/focus-companion/internal/services/ai"
	"github.com/benvon/focus-companion/internal/services/fallback"
	"github.com/benvon/focus-companion/internal/telemetry"
	"github.com/gorilla/mux"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gorilla/mux/otelmux"
	"go.uber.org/zap"
)

const serviceName = "focus-companion-api"

func main() {
	debugFlag := flag.Bool("debug", false, "Enable debug mode for LLM API logging")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	debugMode := cfg.ServerDebugMode || *debugFlag

	var zapLogger *zap.Logger
	if cfg.LogFile != "" {
		zapLogger, err = logger.NewFileLogger(debugMode, logger.FileOptions{Path: cfg.LogFile})
	} else {
		zapLogger, err = logger.NewProductionLogger(debugMode)
	}
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer func() {
		_ = logger.Sync(zapLogger)
	}()

	zapLogger.Info("starting_server",
		zap.Bool("debug_mode", debugMode),
		zap.String("server_port", cfg.ServerPort),
		zap.String("frontend_url", cfg.FrontendURL),
		zap.String("ai_provider", cfg.AIProvider),
		zap.String("ai_model", cfg.AIModel),
		zap.String("usage_store", cfg.UsageStore),
		zap.String("cache_backend", cfg.CacheBackend),
		zap.Bool("otel_enabled", cfg.OTELEnabled),
	)

	tracingEnabled := false
	if cfg.OTELEnabled {
		if cfg.OTELEndpoint == "" {
			zapLogger.Warn("otel_enabled_but_endpoint_not_configured")
		} else {
			tp, err := telemetry.InitTracer(context.Background(), telemetry.Config{
				ServiceName: serviceName,
				Endpoint:    cfg.OTELEndpoint,
				Insecure:    cfg.OTELInsecure,
				SampleRatio: cfg.OTELSampleRatio,
			})
			if err != nil {
				zapLogger.Warn("failed_to_initialize_otel_tracer", zap.Error(err))
			} else {
				tracingEnabled = true
				zapLogger.Info("otel_tracer_initialized", zap.String("endpoint", cfg.OTELEndpoint))
				defer func() {
					shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
					defer shutdownCancel()
					if err := telemetry.Shutdown(shutdownCtx, tp); err != nil {
						zapLogger.Error("failed_to_shutdown_otel_tracer", zap.Error(err))
					}
				}()
			}
		}
	}

	res, err := bootstrap.Open(context.Background(), cfg, true, zapLogger)
	if err != nil {
		zapLogger.Fatal("failed_to_open_connections", zap.Error(err))
	}
	defer func() {
		if err := res.Close(); err != nil {
			zapLogger.Warn("failed_to_close_connections", zap.Error(err))
		}
	}()

	limiter, err := res.NewLimiter(cfg)
	if err != nil {
		zapLogger.Fatal("failed_to_create_usage_limiter", zap.Error(err))
	}
	defer func() {
		if err := limiter.Close(); err != nil {
			zapLogger.Warn("failed_to_close_usage_store", zap.Error(err))
		}
	}()

	respCache, err := res.NewCache(cfg)
	if err != nil {
		zapLogger.Fatal("failed_to_create_response_cache", zap.Error(err))
	}
	defer func() {
		if err := respCache.Close(); err != nil {
			zapLogger.Warn("failed_to_close_response_cache", zap.Error(err))
		}
	}()

	var ledger *database.APIUsageRepository
	if res.DB != nil {
		ledger = database.NewAPIUsageRepository(res.DB)
	}

	// Usage events go to RabbitMQ when configured, otherwise straight to the
	// ledger table, otherwise to the log.
	var publisher ai.UsagePublisher
	var usageQueue *queue.RabbitMQQueue
	switch {
	case cfg.RabbitMQURL != "":
		usageQueue = connectRabbitMQ(cfg.RabbitMQURL, zapLogger)
		defer func() {
			if err := usageQueue.Close(); err != nil {
				zapLogger.Warn("failed_to_close_rabbitmq_connection", zap.Error(err))
			}
		}()
		publisher = usageQueue
	case ledger != nil:
		publisher = queue.NewDirectPublisher(ledger)
	default:
		publisher = queue.NewLogPublisher(zapLogger)
	}

	assistantOpts := []ai.AssistantOption{
		ai.WithPublisher(publisher),
		ai.WithCacheTTL(cfg.CacheTTL),
		ai.WithCallTimeout(cfg.AICallTimeout),
		ai.WithBreakerSettings(ai.DefaultBreakerSettings(zapLogger)),
		ai.WithAssistantLogger(zapLogger),
	}
	provider, err := createAIProvider(cfg, zapLogger, debugMode)
	if err != nil {
		zapLogger.Warn("ai_provider_unavailable_using_fallbacks", zap.Error(err))
	} else {
		assistantOpts = append(assistantOpts, ai.WithProvider(provider))
	}
	assistant := ai.NewAssistant(respCache, limiter, fallback.New(), assistantOpts...)

	healthChecker := handlers.NewHealthChecker()
	if res.DB != nil {
		healthChecker.AddCheck("database", res.DB.HealthCheck)
	}
	if res.Redis != nil {
		healthChecker.AddCheck("redis", func(ctx context.Context) error {
			return res.Redis.Ping(ctx).Err()
		})
	}
	if usageQueue != nil {
		healthChecker.AddCheck("rabbitmq", usageQueue.HealthCheck)
	}

	rateStore, err := middleware.NewRateLimitStore(res.Redis)
	if err != nil {
		zapLogger.Fatal("failed_to_create_rate_limit_store", zap.Error(err))
	}
	rateLimitMW, err := middleware.RateLimit(rateStore, cfg.RateLimit, zapLogger)
	if err != nil {
		zapLogger.Fatal("invalid_rate_limit", zap.String("rate", cfg.RateLimit), zap.Error(err))
	}

	if err := cfg.ValidateAuth(); err != nil {
		zapLogger.Fatal("auth_not_configured", zap.Error(err))
	}
	authMW := middleware.Auth(middleware.AuthConfig{
		Secret:        []byte(cfg.JWTSecret),
		Issuer:        cfg.JWTIssuer,
		AdminUserID:   cfg.AdminUserID,
		TrustHeader:   cfg.AuthTrustHeader,
		TrustedHeader: middleware.DefaultTrustedUserHeader,
	}, zapLogger)
	if cfg.JWTSecret == "" {
		zapLogger.Warn("jwt_secret_not_configured_trusting_user_header",
			zap.String("header", middleware.DefaultTrustedUserHeader),
		)
	}

	var ledgerReporter handlers.LedgerReporter
	if ledger != nil {
		ledgerReporter = ledger
	}
	aiHandler := handlers.NewAIHandler(assistant, zapLogger)
	usageHandler := handlers.NewUsageHandler(limiter, ledgerReporter, zapLogger)
	cacheHandler := handlers.NewCacheHandler(respCache, zapLogger)

	// gorilla/mux runs middleware in registration order, first registered outermost.
	r := mux.NewRouter()
	if tracingEnabled {
		r.Use(otelmux.Middleware(serviceName))
	}
	r.Use(middleware.RequestID)
	r.Use(middleware.SecurityHeaders(cfg.EnableHSTS))
	r.Use(middleware.CORS(cfg.FrontendURL))
	r.Use(middleware.ErrorHandler(zapLogger))
	r.Use(middleware.Logging(zapLogger))
	r.Use(middleware.MaxRequestSize(middleware.DefaultMaxRequestSize, zapLogger))
	r.Use(middleware.Timeout(middleware.DefaultRequestTimeout))

	r.HandleFunc("/healthz", healthChecker.HealthCheck).Methods("GET")
	r.Handle("/metrics", metrics.Handler()).Methods("GET")

	apiRouter := r.PathPrefix("/api/v1").Subrouter()
	apiRouter.Use(authMW)
	apiRouter.Use(rateLimitMW)
	apiRouter.Use(middleware.RequireJSON(zapLogger))
	aiHandler.RegisterRoutes(apiRouter)
	usageHandler.RegisterRoutes(apiRouter)
	cacheHandler.RegisterRoutes(apiRouter)

	adminRouter := apiRouter.PathPrefix("/admin").Subrouter()
	adminRouter.Use(middleware.RequireAdmin(zapLogger))
	usageHandler.RegisterAdminRoutes(adminRouter)
	cacheHandler.RegisterAdminRoutes(adminRouter)

	r.Methods("OPTIONS").HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	srv := &http.Server{
		Addr:           ":" + cfg.ServerPort,
		Handler:        r,
		ReadTimeout:    15 * time.Second,
		WriteTimeout:   cfg.AICallTimeout + 30*time.Second,
		IdleTimeout:    60 * time.Second,
		MaxHeaderBytes: 1 << 20,
	}

	bgCtx, bgCancel := context.WithCancel(context.Background())
	defer bgCancel()

	janitorCfg := maintenance.Config{
		Schedule:        cfg.MaintenanceSchedule,
		Cache:           respCache,
		Usage:           limiter,
		UsageKeepDays:   cfg.UsageKeepDays,
		LedgerRetention: cfg.LedgerRetention,
	}
	if ledger != nil {
		janitorCfg.Ledger = ledger
	}
	janitor, err := maintenance.New(janitorCfg, zapLogger)
	if err != nil {
		zapLogger.Fatal("failed_to_create_janitor", zap.Error(err))
	}
	janitor.Start()

	if res.DB != nil {
		reloader := maintenance.NewQuotaReloader(
			database.NewQuotaConfigRepository(res.DB),
			limiter,
			limiter.Limits(),
			cfg.QuotaReloadTTL,
			zapLogger,
		)
		go reloader.Start(bgCtx)
	}

	if usageQueue != nil {
		dlqGC := queue.NewGarbageCollector(usageQueue, cfg.DLQGCInterval, cfg.DLQRetention, zapLogger)
		go func() {
			if err := dlqGC.Start(bgCtx); err != nil && !errors.Is(err, context.Canceled) {
				zapLogger.Error("dlq_garbage_collector_stopped_with_error", zap.Error(err))
			}
		}()
	}

	go func() {
		zapLogger.Info("server_starting", zap.String("port", cfg.ServerPort))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zapLogger.Fatal("server_failed_to_start", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	zapLogger.Info("server_shutting_down")
	bgCancel()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		zapLogger.Error("server_forced_to_shutdown", zap.Error(err))
	}
	janitor.Stop(ctx)

	zapLogger.Info("server_exited")
}

// connectRabbitMQ retries with exponential backoff so the server can start alongside the broker
func connectRabbitMQ(url string, zapLogger *zap.Logger) *queue.RabbitMQQueue {
	const maxRetries = 10
	const initialDelay = 2 * time.Second

	var lastErr error
	for attempt := 0; attempt < maxRetries; attempt++ {
		q, err := queue.NewRabbitMQQueue(url, zapLogger)
		if err == nil {
			zapLogger.Info("connected_to_rabbitmq")
			return q
		}
		lastErr = err

		delay := initialDelay * time.Duration(1<<uint(attempt))
		if delay > 30*time.Second {
			delay = 30 * time.Second
		}
		zapLogger.Warn("failed_to_connect_to_rabbitmq_retrying",
			zap.Int("attempt", attempt+1),
			zap.Int("max_retries", maxRetries),
			zap.Duration("retry_delay", delay),
			zap.Error(err),
		)
		time.Sleep(delay)
	}

	zapLogger.Fatal("failed_to_connect_to_rabbitmq_after_retries",
		zap.Int("max_retries", maxRetries),
		zap.Error(lastErr),
	)
	return nil
}

// createAIProvider looks the configured provider up in the registry
func createAIProvider(cfg *config.Config, zapLogger *zap.Logger, debugMode bool) (ai.AIProvider, error) {
	if cfg.OpenAIKey == "" {
		return nil, fmt.Errorf("OpenAI API key not configured")
	}

	providerType := cfg.AIProvider
	if providerType == "" {
		providerType = "openai"
	}

	registry := ai.NewProviderRegistry()
	ai.RegisterOpenAI(registry, zapLogger, debugMode)

	return registry.GetProvider(providerType, map[string]string{
		"api_key":     cfg.OpenAIKey,
		"model":       cfg.AIModel,
		"base_url":    cfg.AIBaseURL,
		"max_retries": strconv.Itoa(cfg.AIMaxRetries),
	})
}
