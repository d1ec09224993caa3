package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/benvon/focus-companion/internal/models"
	"github.com/joho/godotenv"
)

// Storage backends for usage state and the response cache
const (
	BackendFile     = "file"
	BackendMemory   = "memory"
	BackendRedis    = "redis"
	BackendPostgres = "postgres"
)

// Config holds application configuration
type Config struct {
	DatabaseURL      string
	ServerPort       string
	FrontendURL      string
	OpenAIKey        string
	AIProvider       string
	AIModel          string
	AIBaseURL        string
	AIMaxRetries     int
	AICallTimeout    time.Duration
	EnableHSTS       bool
	RedisURL         string
	RabbitMQURL      string
	RabbitMQPrefetch int
	WorkerDebugMode  bool
	ServerDebugMode  bool
	OTELEnabled      bool
	OTELEndpoint     string
	OTELInsecure     bool
	OTELSampleRatio  float64
	LogFile          string

	// Auth
	JWTSecret       string
	JWTIssuer       string
	AdminUserID     string
	AuthTrustHeader bool

	// Usage limiter
	UsageStore     string
	UsageFile      string
	UsageTimezone  *time.Location
	UsageLimits    models.UsageLimits
	UsageKeepDays  int
	FeaturesFile   string
	QuotaReloadTTL time.Duration

	// Response cache
	CacheBackend    string
	CacheFile       string
	CacheTTL        time.Duration
	CacheMaxEntries int

	// Maintenance
	MaintenanceSchedule string
	LedgerRetention     time.Duration
	DLQRetention        time.Duration
	DLQGCInterval       time.Duration

	// HTTP rate limiting (ulule formatted rate, e.g. "60-M")
	RateLimit string
}

// Load loads configuration from environment variables. A .env file in the
// working directory is read first when present; real environment wins.
func Load() (*Config, error) {
	_ = godotenv.Load()

	defaults := models.DefaultUsageLimits()
	cfg := &Config{
		DatabaseURL:      getEnv("DATABASE_URL", ""),
		ServerPort:       getEnv("SERVER_PORT", "8080"),
		FrontendURL:      getEnv("FRONTEND_URL", "http://localhost:8501"),
		OpenAIKey:        getEnv("OPENAI_API_KEY", ""),
		AIProvider:       getEnv("AI_PROVIDER", "openai"),
		AIModel:          getEnv("AI_MODEL", ""),
		AIBaseURL:        getEnv("AI_BASE_URL", ""),
		AIMaxRetries:     getEnvInt("AI_MAX_RETRIES", 2),
		AICallTimeout:    getEnvDuration("AI_CALL_TIMEOUT", 45*time.Second),
		EnableHSTS:       getEnvBool("ENABLE_HSTS", false),
		RedisURL:         getEnv("REDIS_URL", ""),
		RabbitMQURL:      getEnv("RABBITMQ_URL", ""),
		RabbitMQPrefetch: getEnvInt("RABBITMQ_PREFETCH", 10),
		WorkerDebugMode:  getEnvBool("WORKER_DEBUG_MODE", false),
		ServerDebugMode:  getEnvBool("SERVER_DEBUG_MODE", false),
		OTELEnabled:      getEnvBool("OTEL_ENABLED", false),
		OTELEndpoint:     getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", ""),
		OTELInsecure:     getEnvBool("OTEL_EXPORTER_OTLP_INSECURE", true),
		OTELSampleRatio:  getEnvFloat("OTEL_TRACES_SAMPLER_ARG", 1),
		LogFile:          getEnv("LOG_FILE", ""),

		JWTSecret:       getEnv("JWT_SECRET", ""),
		JWTIssuer:       getEnv("JWT_ISSUER", ""),
		AdminUserID:     strings.ToLower(getEnv("ADMIN_USER_ID", "")),
		AuthTrustHeader: getEnvBool("AUTH_TRUST_HEADER", false),

		UsageStore: getEnv("USAGE_STORE", BackendFile),
		UsageFile:  getEnv("USAGE_FILE", "data/usage_tracking.json"),
		UsageLimits: models.UsageLimits{
			UserDaily:     getEnvInt("USAGE_USER_DAILY_LIMIT", defaults.UserDaily),
			UserMonthly:   getEnvInt("USAGE_USER_MONTHLY_LIMIT", defaults.UserMonthly),
			GlobalDaily:   getEnvInt("USAGE_GLOBAL_DAILY_LIMIT", defaults.GlobalDaily),
			GlobalMonthly: getEnvInt("USAGE_GLOBAL_MONTHLY_LIMIT", defaults.GlobalMonthly),
		},
		UsageKeepDays:  getEnvInt("USAGE_KEEP_DAYS", 30),
		FeaturesFile:   getEnv("FEATURES_FILE", ""),
		QuotaReloadTTL: getEnvDuration("QUOTA_RELOAD_INTERVAL", 5*time.Minute),

		CacheBackend:    getEnv("CACHE_BACKEND", BackendMemory),
		CacheFile:       getEnv("CACHE_FILE", "data/ai_cache.json"),
		CacheTTL:        getEnvDuration("CACHE_TTL", 24*time.Hour),
		CacheMaxEntries: getEnvInt("CACHE_MAX_ENTRIES", 1000),

		MaintenanceSchedule: getEnv("MAINTENANCE_SCHEDULE", "@every 1h"),
		LedgerRetention:     getEnvDuration("LEDGER_RETENTION", 90*24*time.Hour),
		DLQRetention:        getEnvDuration("DLQ_RETENTION", 7*24*time.Hour),
		DLQGCInterval:       getEnvDuration("DLQ_GC_INTERVAL", time.Hour),

		RateLimit: getEnv("RATE_LIMIT", "60-M"),
	}

	tz := getEnv("USAGE_TIMEZONE", "UTC")
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return nil, fmt.Errorf("invalid USAGE_TIMEZONE %q: %w", tz, err)
	}
	cfg.UsageTimezone = loc

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	for name, backend := range map[string]string{"USAGE_STORE": c.UsageStore, "CACHE_BACKEND": c.CacheBackend} {
		switch backend {
		case BackendFile, BackendMemory, BackendRedis, BackendPostgres:
		default:
			return fmt.Errorf("%s must be one of file, memory, redis, postgres (got %q)", name, backend)
		}
		if backend == BackendRedis && c.RedisURL == "" {
			return fmt.Errorf("REDIS_URL is required when %s=redis", name)
		}
		if backend == BackendPostgres && c.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL is required when %s=postgres", name)
		}
	}
	if c.UsageStore == BackendMemory {
		return fmt.Errorf("USAGE_STORE=memory is not supported; usage counts must be persisted")
	}
	if c.UsageKeepDays < 1 {
		return fmt.Errorf("USAGE_KEEP_DAYS must be at least 1")
	}
	return nil
}

// ValidateAuth reports whether the HTTP server can identify callers. Only the
// server calls it; the worker and focusctl do not authenticate requests.
func (c *Config) ValidateAuth() error {
	if c.JWTSecret == "" && !c.AuthTrustHeader {
		return fmt.Errorf("JWT_SECRET is required unless AUTH_TRUST_HEADER=true")
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return value == "true" || value == "1" || value == "yes"
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
