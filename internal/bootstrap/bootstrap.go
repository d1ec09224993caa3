// Package bootstrap builds the shared usage limiter and response cache from
// configuration for the server, the worker and focusctl.
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/benvon/focus-companion/internal/cache"
	"github.com/benvon/focus-companion/internal/config"
	"github.com/benvon/focus-companion/internal/database"
	"github.com/benvon/focus-companion/internal/usage"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Key names used in Redis
const (
	RedisUsageKey    = "focus:usage"
	RedisCachePrefix = "focus:cache:"
)

// Resources holds the connections opened from config. Either field may be nil.
type Resources struct {
	DB     *database.DB
	Redis  *redis.Client
	logger *zap.Logger
}

// Open connects to Postgres when DATABASE_URL is set and to Redis when
// REDIS_URL is set. With migrate, the schema is applied after connecting.
func Open(ctx context.Context, cfg *config.Config, migrate bool, logger *zap.Logger) (*Resources, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	res := &Resources{logger: logger}

	if cfg.DatabaseURL != "" {
		db, err := database.New(cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("connect to database: %w", err)
		}
		res.DB = db
		logger.Info("connected_to_database")
		if migrate {
			if err := db.Migrate(ctx); err != nil {
				_ = res.Close()
				return nil, fmt.Errorf("migrate database: %w", err)
			}
			logger.Info("database_schema_applied")
		}
	}

	if cfg.RedisURL != "" {
		client, err := OpenRedis(ctx, cfg.RedisURL)
		if err != nil {
			_ = res.Close()
			return nil, err
		}
		res.Redis = client
		logger.Info("connected_to_redis")
	}
	return res, nil
}

// OpenRedis parses a redis:// URL and pings the server.
func OpenRedis(ctx context.Context, redisURL string) (*redis.Client, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return client, nil
}

// Close releases every open connection.
func (r *Resources) Close() error {
	var errs []error
	if r.Redis != nil {
		if err := r.Redis.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close redis: %w", err))
		}
	}
	if r.DB != nil {
		if err := r.DB.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close database: %w", err))
		}
	}
	return errors.Join(errs...)
}

// UsageStore returns the store selected by USAGE_STORE.
func (r *Resources) UsageStore(cfg *config.Config) (usage.Store, error) {
	switch cfg.UsageStore {
	case config.BackendFile:
		store := usage.NewFileStore(cfg.UsageFile, r.logger)
		store.SetLocation(cfg.UsageTimezone)
		return store, nil
	case config.BackendRedis:
		if r.Redis == nil {
			return nil, fmt.Errorf("usage store redis: no redis connection")
		}
		store := usage.NewRedisStore(r.Redis, RedisUsageKey, r.logger)
		store.SetLocation(cfg.UsageTimezone)
		return store, nil
	case config.BackendPostgres:
		if r.DB == nil {
			return nil, fmt.Errorf("usage store postgres: no database connection")
		}
		repo := database.NewUsageStateRepository(r.DB, r.logger)
		repo.SetLocation(cfg.UsageTimezone)
		return repo, nil
	default:
		return nil, fmt.Errorf("unsupported usage store %q", cfg.UsageStore)
	}
}

// CacheBackend returns the backend selected by CACHE_BACKEND.
func (r *Resources) CacheBackend(cfg *config.Config) (cache.Backend, error) {
	switch cfg.CacheBackend {
	case config.BackendMemory:
		return cache.NewMemoryBackend(
			cache.WithMaxEntries(cfg.CacheMaxEntries),
			cache.WithMemoryLogger(r.logger),
		), nil
	case config.BackendFile:
		return cache.NewMemoryBackend(
			cache.WithMaxEntries(cfg.CacheMaxEntries),
			cache.WithPersistence(cfg.CacheFile),
			cache.WithMemoryLogger(r.logger),
		), nil
	case config.BackendRedis:
		if r.Redis == nil {
			return nil, fmt.Errorf("cache backend redis: no redis connection")
		}
		return cache.NewRedisBackend(r.Redis, RedisCachePrefix), nil
	case config.BackendPostgres:
		if r.DB == nil {
			return nil, fmt.Errorf("cache backend postgres: no database connection")
		}
		return database.NewResponseCacheRepository(r.DB), nil
	default:
		return nil, fmt.Errorf("unsupported cache backend %q", cfg.CacheBackend)
	}
}

// NewLimiter builds the usage limiter, applying FEATURES_FILE overrides when set.
// Caps in the feature file replace the environment caps.
func (r *Resources) NewLimiter(cfg *config.Config) (*usage.Limiter, error) {
	store, err := r.UsageStore(cfg)
	if err != nil {
		return nil, err
	}

	limits := cfg.UsageLimits
	opts := []usage.Option{
		usage.WithAdmin(cfg.AdminUserID),
		usage.WithLocation(cfg.UsageTimezone),
		usage.WithLogger(r.logger),
	}
	if cfg.FeaturesFile != "" {
		overrides, err := usage.LoadOverrides(cfg.FeaturesFile)
		if err != nil {
			_ = store.Close()
			return nil, err
		}
		opts = append(opts, usage.WithFeatureToggles(overrides.Features))
		if overrides.Limits != nil {
			limits = *overrides.Limits
		}
		r.logger.Info("feature_overrides_loaded", zap.String("path", cfg.FeaturesFile))
	}
	opts = append(opts, usage.WithLimits(limits))
	return usage.NewLimiter(store, opts...), nil
}

// NewCache builds the response cache on the configured backend.
func (r *Resources) NewCache(cfg *config.Config) (*cache.ResponseCache, error) {
	backend, err := r.CacheBackend(cfg)
	if err != nil {
		return nil, err
	}
	return cache.New(backend,
		cache.WithDefaultTTL(cfg.CacheTTL),
		cache.WithLogger(r.logger),
	), nil
}
