package bootstrap

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/benvon/focus-companion/internal/cache"
	"github.com/benvon/focus-companion/internal/config"
	"github.com/benvon/focus-companion/internal/models"
	"github.com/benvon/focus-companion/internal/usage"
	"go.uber.org/zap"
)

func baseConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()
	return &config.Config{
		UsageStore:      config.BackendFile,
		UsageFile:       filepath.Join(dir, "usage.json"),
		UsageTimezone:   time.UTC,
		UsageLimits:     models.DefaultUsageLimits(),
		UsageKeepDays:   30,
		CacheBackend:    config.BackendMemory,
		CacheFile:       filepath.Join(dir, "cache.json"),
		CacheTTL:        time.Hour,
		CacheMaxEntries: 10,
		AdminUserID:     "admin@example.com",
	}
}

func TestOpen_NoConnections(t *testing.T) {
	t.Parallel()
	res, err := Open(context.Background(), baseConfig(t), false, nil)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	if res.DB != nil || res.Redis != nil {
		t.Errorf("Expected no connections, got %+v", res)
	}
	if err := res.Close(); err != nil {
		t.Errorf("Close failed: %v", err)
	}
}

func TestOpen_Redis(t *testing.T) {
	t.Parallel()
	mr := miniredis.RunT(t)
	cfg := baseConfig(t)
	cfg.RedisURL = "redis://" + mr.Addr()

	res, err := Open(context.Background(), cfg, false, nil)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer res.Close()
	if res.Redis == nil {
		t.Fatal("Expected a redis client")
	}
}

func TestOpenRedis_BadURL(t *testing.T) {
	t.Parallel()
	if _, err := OpenRedis(context.Background(), "not a url"); err == nil {
		t.Error("Expected an error for a malformed url")
	}
}

func TestResources_UsageStore(t *testing.T) {
	t.Parallel()
	mr := miniredis.RunT(t)
	client, err := OpenRedis(context.Background(), "redis://"+mr.Addr())
	if err != nil {
		t.Fatalf("OpenRedis failed: %v", err)
	}
	defer client.Close()

	tests := []struct {
		name    string
		store   string
		res     *Resources
		wantErr bool
		check   func(t *testing.T, s usage.Store)
	}{
		{"file", config.BackendFile, &Resources{logger: zap.NewNop()}, false, func(t *testing.T, s usage.Store) {
			if _, ok := s.(*usage.FileStore); !ok {
				t.Errorf("Expected *usage.FileStore, got %T", s)
			}
		}},
		{"redis", config.BackendRedis, &Resources{Redis: client, logger: zap.NewNop()}, false, func(t *testing.T, s usage.Store) {
			if _, ok := s.(*usage.RedisStore); !ok {
				t.Errorf("Expected *usage.RedisStore, got %T", s)
			}
		}},
		{"redis without client", config.BackendRedis, &Resources{logger: zap.NewNop()}, true, nil},
		{"postgres without db", config.BackendPostgres, &Resources{logger: zap.NewNop()}, true, nil},
		{"memory rejected", config.BackendMemory, &Resources{logger: zap.NewNop()}, true, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			cfg := baseConfig(t)
			cfg.UsageStore = tt.store
			s, err := tt.res.UsageStore(cfg)
			if (err != nil) != tt.wantErr {
				t.Fatalf("UsageStore err = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.check != nil {
				tt.check(t, s)
			}
		})
	}
}

func TestResources_CacheBackend(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		backend string
		wantErr bool
	}{
		{"memory", config.BackendMemory, false},
		{"file", config.BackendFile, false},
		{"redis without client", config.BackendRedis, true},
		{"postgres without db", config.BackendPostgres, true},
		{"unknown", "s3", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			cfg := baseConfig(t)
			cfg.CacheBackend = tt.backend
			b, err := (&Resources{logger: zap.NewNop()}).CacheBackend(cfg)
			if (err != nil) != tt.wantErr {
				t.Fatalf("CacheBackend err = %v, wantErr %v", err, tt.wantErr)
			}
			if err == nil {
				if _, ok := b.(*cache.MemoryBackend); !ok {
					t.Errorf("Expected *cache.MemoryBackend, got %T", b)
				}
			}
		})
	}
}

func TestResources_NewLimiterAppliesOverrides(t *testing.T) {
	t.Parallel()
	cfg := baseConfig(t)
	cfg.FeaturesFile = filepath.Join(t.TempDir(), "features.yaml")
	data := []byte("features:\n  task_planning: false\nlimits:\n  user_daily: 3\n  user_monthly: 30\n  global_daily: 10\n  global_monthly: 100\n")
	if err := os.WriteFile(cfg.FeaturesFile, data, 0o600); err != nil {
		t.Fatalf("write features file: %v", err)
	}

	l, err := (&Resources{logger: zap.NewNop()}).NewLimiter(cfg)
	if err != nil {
		t.Fatalf("NewLimiter failed: %v", err)
	}
	defer l.Close()

	if got := l.Limits().UserDaily; got != 3 {
		t.Errorf("Expected user daily cap 3, got %d", got)
	}
	if l.IsFeatureEnabled(models.FeatureTaskPlanning) {
		t.Error("Expected task_planning to be disabled by the feature file")
	}
	if !l.IsExempt("admin@example.com") {
		t.Error("Expected the admin to be exempt")
	}
}

func TestResources_NewLimiterBadFeatureFile(t *testing.T) {
	t.Parallel()
	cfg := baseConfig(t)
	cfg.FeaturesFile = filepath.Join(t.TempDir(), "missing.yaml")
	if _, err := (&Resources{logger: zap.NewNop()}).NewLimiter(cfg); err == nil {
		t.Error("Expected an error for a missing feature file")
	}
}

func TestResources_NewCache(t *testing.T) {
	t.Parallel()
	c, err := (&Resources{logger: zap.NewNop()}).NewCache(baseConfig(t))
	if err != nil {
		t.Fatalf("NewCache failed: %v", err)
	}
	defer c.Close()
	if c.DefaultTTL() != time.Hour {
		t.Errorf("Expected default TTL 1h, got %v", c.DefaultTTL())
	}
}
