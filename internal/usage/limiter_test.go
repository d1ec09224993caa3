package usage

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/benvon/focus-companion/internal/models"
)

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock() *testClock {
	return &testClock{now: time.Date(2024, 3, 15, 10, 0, 0, 0, time.UTC)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

func newTestLimiter(t *testing.T, opts ...Option) (*Limiter, *FileStore, *testClock) {
	t.Helper()
	store := NewFileStore(filepath.Join(t.TempDir(), "usage.json"), nil)
	clock := newTestClock()
	store.now = clock.Now
	opts = append([]Option{WithClock(clock.Now)}, opts...)
	return NewLimiter(store, opts...), store, clock
}

// failingStore fails every operation.
type failingStore struct{}

func (failingStore) Load(context.Context) (*models.UsageRecord, error) {
	return nil, errors.New("disk on fire")
}

func (failingStore) Update(context.Context, func(*models.UsageRecord) error) error {
	return errors.New("disk on fire")
}

func (failingStore) Close() error { return nil }

func seed(t *testing.T, store Store, fn func(*models.UsageRecord)) {
	t.Helper()
	err := store.Update(context.Background(), func(r *models.UsageRecord) error {
		fn(r)
		return nil
	})
	if err != nil {
		t.Fatalf("seed: %v", err)
	}
}

func TestLimiter_CheckAllowed(t *testing.T) {
	t.Parallel()

	limits := models.UsageLimits{UserDaily: 2, UserMonthly: 5, GlobalDaily: 4, GlobalMonthly: 10}

	tests := []struct {
		name        string
		userID      string
		seed        func(r *models.UsageRecord)
		wantAllowed bool
		wantReason  string
	}{
		{
			name:        "fresh user allowed",
			userID:      "alice",
			seed:        func(r *models.UsageRecord) {},
			wantAllowed: true,
		},
		{
			name:   "user daily cap",
			userID: "alice",
			seed: func(r *models.UsageRecord) {
				r.UserUsage["alice"] = map[string]int{"2024-03-15": 2, "2024-03": 2}
			},
			wantReason: "Your daily limit reached (2 calls)",
		},
		{
			name:   "user monthly cap",
			userID: "alice",
			seed: func(r *models.UsageRecord) {
				r.UserUsage["alice"] = map[string]int{"2024-03-15": 0, "2024-03": 5}
			},
			wantReason: "Your monthly limit reached (5 calls)",
		},
		{
			name:   "global daily cap",
			userID: "alice",
			seed: func(r *models.UsageRecord) {
				r.DailyUsage["2024-03-15"] = 4
			},
			wantReason: "Daily API limit reached (4 calls)",
		},
		{
			name:   "global monthly cap",
			userID: "alice",
			seed: func(r *models.UsageRecord) {
				r.MonthlyUsage["2024-03"] = 10
			},
			wantReason: "Monthly API limit reached (10 calls)",
		},
		{
			name:   "user daily wins over global",
			userID: "alice",
			seed: func(r *models.UsageRecord) {
				r.UserUsage["alice"] = map[string]int{"2024-03-15": 2}
				r.DailyUsage["2024-03-15"] = 4
				r.MonthlyUsage["2024-03"] = 10
			},
			wantReason: "Your daily limit reached (2 calls)",
		},
		{
			name:   "other user's counts do not apply",
			userID: "bob",
			seed: func(r *models.UsageRecord) {
				r.UserUsage["alice"] = map[string]int{"2024-03-15": 2, "2024-03": 5}
			},
			wantAllowed: true,
		},
		{
			name:   "yesterday's usage does not count",
			userID: "alice",
			seed: func(r *models.UsageRecord) {
				r.UserUsage["alice"] = map[string]int{"2024-03-14": 2, "2024-03": 2}
				r.DailyUsage["2024-03-14"] = 4
			},
			wantAllowed: true,
		},
		{
			name:   "admin exempt from every cap",
			userID: "admin@example.com",
			seed: func(r *models.UsageRecord) {
				r.UserUsage["admin@example.com"] = map[string]int{"2024-03-15": 99, "2024-03": 99}
				r.DailyUsage["2024-03-15"] = 99
				r.MonthlyUsage["2024-03"] = 99
			},
			wantAllowed: true,
		},
		{
			name:       "missing user denied",
			userID:     "",
			seed:       func(r *models.UsageRecord) {},
			wantReason: ReasonMissingUser,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			l, store, _ := newTestLimiter(t, WithLimits(limits), WithAdmin("admin@example.com"))
			seed(t, store, tt.seed)

			allowed, reason := l.CheckAllowed(context.Background(), tt.userID)
			if allowed != tt.wantAllowed {
				t.Errorf("Expected allowed=%v, got %v (reason %q)", tt.wantAllowed, allowed, reason)
			}
			if reason != tt.wantReason {
				t.Errorf("Expected reason %q, got %q", tt.wantReason, reason)
			}
		})
	}
}

func TestLimiter_CheckAllowedDoesNotWrite(t *testing.T) {
	t.Parallel()
	l, store, _ := newTestLimiter(t)

	for i := 0; i < 3; i++ {
		l.CheckAllowed(context.Background(), "alice")
	}
	if _, err := os.Stat(store.Path()); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("Expected no usage file after checks only, stat err=%v", err)
	}
}

func TestLimiter_DisabledCap(t *testing.T) {
	t.Parallel()
	l, store, _ := newTestLimiter(t, WithLimits(models.UsageLimits{UserDaily: 0, UserMonthly: 0, GlobalDaily: 0, GlobalMonthly: 0}))
	seed(t, store, func(r *models.UsageRecord) {
		r.UserUsage["alice"] = map[string]int{"2024-03-15": 1000}
	})
	if allowed, reason := l.CheckAllowed(context.Background(), "alice"); !allowed {
		t.Errorf("Expected caps <= 0 to be ignored, got reason %q", reason)
	}
}

func TestLimiter_RecordUsage(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	l, store, _ := newTestLimiter(t)

	for i := 0; i < 2; i++ {
		if err := l.RecordUsage(ctx, "alice"); err != nil {
			t.Fatalf("RecordUsage: %v", err)
		}
	}
	if err := l.RecordUsage(ctx, "bob"); err != nil {
		t.Fatalf("RecordUsage: %v", err)
	}

	rec, err := store.Load(ctx)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	checks := map[string]struct{ got, want int }{
		"global daily":   {rec.DailyCount("2024-03-15"), 3},
		"global monthly": {rec.MonthlyCount("2024-03"), 3},
		"alice daily":    {rec.UserCount("alice", "2024-03-15"), 2},
		"alice monthly":  {rec.UserCount("alice", "2024-03"), 2},
		"bob daily":      {rec.UserCount("bob", "2024-03-15"), 1},
	}
	for name, c := range checks {
		if c.got != c.want {
			t.Errorf("%s: expected %d, got %d", name, c.want, c.got)
		}
	}
	if rec.LastReset[models.ResetDaily] != "2024-03-15" || rec.LastReset[models.ResetMonthly] != "2024-03" {
		t.Errorf("Unexpected last_reset: %v", rec.LastReset)
	}
}

func TestLimiter_RecordUsageRequiresUser(t *testing.T) {
	t.Parallel()
	l, _, _ := newTestLimiter(t)
	if err := l.RecordUsage(context.Background(), ""); err == nil {
		t.Error("Expected error for empty user id")
	}
}

func TestLimiter_ReachesCapAfterRecording(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	l, _, _ := newTestLimiter(t, WithLimits(models.UsageLimits{UserDaily: 3, UserMonthly: 100, GlobalDaily: 100, GlobalMonthly: 100}))

	for i := 0; i < 3; i++ {
		if allowed, _ := l.CheckAllowed(ctx, "alice"); !allowed {
			t.Fatalf("Expected call %d to be allowed", i+1)
		}
		if err := l.RecordUsage(ctx, "alice"); err != nil {
			t.Fatalf("RecordUsage: %v", err)
		}
	}
	allowed, reason := l.CheckAllowed(ctx, "alice")
	if allowed {
		t.Fatal("Expected fourth call to be denied")
	}
	if !strings.Contains(reason, "daily") {
		t.Errorf("Expected daily reason, got %q", reason)
	}
}

func TestLimiter_Rollover(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	l, _, clock := newTestLimiter(t, WithLimits(models.UsageLimits{UserDaily: 1, UserMonthly: 2, GlobalDaily: 100, GlobalMonthly: 100}))

	if err := l.RecordUsage(ctx, "alice"); err != nil {
		t.Fatalf("RecordUsage: %v", err)
	}
	if allowed, _ := l.CheckAllowed(ctx, "alice"); allowed {
		t.Fatal("Expected daily cap to apply on the same day")
	}

	clock.Set(time.Date(2024, 3, 16, 0, 0, 1, 0, time.UTC))
	if allowed, reason := l.CheckAllowed(ctx, "alice"); !allowed {
		t.Fatalf("Expected new day to reset daily count, got %q", reason)
	}
	if err := l.RecordUsage(ctx, "alice"); err != nil {
		t.Fatalf("RecordUsage: %v", err)
	}

	clock.Set(time.Date(2024, 3, 17, 9, 0, 0, 0, time.UTC))
	allowed, reason := l.CheckAllowed(ctx, "alice")
	if allowed || !strings.Contains(reason, "monthly") {
		t.Fatalf("Expected monthly cap to carry across days, got allowed=%v reason=%q", allowed, reason)
	}

	clock.Set(time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC))
	if allowed, reason := l.CheckAllowed(ctx, "alice"); !allowed {
		t.Errorf("Expected new month to reset monthly count, got %q", reason)
	}
}

func TestLimiter_Location(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	tokyo := time.FixedZone("JST", 9*60*60)
	l, store, clock := newTestLimiter(t, WithLocation(tokyo))
	// 20:00 UTC on the 15th is already the 16th in Tokyo
	clock.Set(time.Date(2024, 3, 15, 20, 0, 0, 0, time.UTC))

	if err := l.RecordUsage(ctx, "alice"); err != nil {
		t.Fatalf("RecordUsage: %v", err)
	}
	rec, _ := store.Load(ctx)
	if rec.DailyCount("2024-03-16") != 1 {
		t.Errorf("Expected count keyed by local date, got %v", rec.DailyUsage)
	}
}

func TestLimiter_CorruptStateStartsFresh(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	l, store, _ := newTestLimiter(t)

	if err := os.WriteFile(store.Path(), []byte("{\"daily_usage\": [oops"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	if allowed, reason := l.CheckAllowed(ctx, "alice"); !allowed {
		t.Errorf("Expected corrupt state to be treated as empty, got %q", reason)
	}
	if err := l.RecordUsage(ctx, "alice"); err != nil {
		t.Fatalf("Expected record to overwrite corrupt state: %v", err)
	}
	stats := l.GetUsageStats(ctx, "alice")
	if stats.TodayCount != 1 {
		t.Errorf("Expected 1 call after recovery, got %d", stats.TodayCount)
	}
}

func TestLimiter_StorageFailure(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	l := NewLimiter(failingStore{})

	if allowed, reason := l.CheckAllowed(ctx, "alice"); !allowed {
		t.Errorf("Expected unreadable state to degrade to allowed, got %q", reason)
	}
	err := l.RecordUsage(ctx, "alice")
	if !errors.Is(err, ErrStorageUnavailable) {
		t.Errorf("Expected ErrStorageUnavailable, got %v", err)
	}
	if _, err := l.Prune(ctx, 30); !errors.Is(err, ErrStorageUnavailable) {
		t.Errorf("Expected ErrStorageUnavailable from prune, got %v", err)
	}
}

func TestLimiter_GetUsageStats(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	l, _, _ := newTestLimiter(t, WithAdmin("root"))

	_ = l.RecordUsage(ctx, "alice")
	_ = l.RecordUsage(ctx, "alice")
	_ = l.RecordUsage(ctx, "bob")

	got := l.GetUsageStats(ctx, "alice")
	want := models.UsageStats{
		UserID:           "alice",
		Date:             "2024-03-15",
		Month:            "2024-03",
		TodayCount:       2,
		MonthCount:       2,
		TodayLimit:       20,
		MonthLimit:       400,
		GlobalTodayCount: 3,
		GlobalMonthCount: 3,
		GlobalTodayLimit: 100,
		GlobalMonthLimit: 2000,
	}
	if *got != want {
		t.Errorf("Expected %+v, got %+v", want, *got)
	}
	if !l.GetUsageStats(ctx, "root").Exempt {
		t.Error("Expected admin stats to be marked exempt")
	}
}

func TestLimiter_SetLimits(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	l, _, _ := newTestLimiter(t)

	_ = l.RecordUsage(ctx, "alice")
	l.SetLimits(models.UsageLimits{UserDaily: 1, UserMonthly: 10, GlobalDaily: 10, GlobalMonthly: 10})

	allowed, reason := l.CheckAllowed(ctx, "alice")
	if allowed {
		t.Fatal("Expected lowered cap to take effect")
	}
	if reason != "Your daily limit reached (1 calls)" {
		t.Errorf("Unexpected reason %q", reason)
	}
	if l.Limits().UserDaily != 1 {
		t.Errorf("Expected Limits to reflect update, got %+v", l.Limits())
	}
}

func TestLimiter_Prune(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	l, store, _ := newTestLimiter(t)

	seed(t, store, func(r *models.UsageRecord) {
		r.DailyUsage = map[string]int{"2024-01-10": 1, "2024-03-01": 1, "2024-03-15": 1}
		r.MonthlyUsage = map[string]int{"2024-01": 1, "2024-02": 1, "2024-03": 1}
		r.UserUsage["old"] = map[string]int{"2024-01-10": 1, "2024-01": 1}
		r.UserUsage["alice"] = map[string]int{"2024-03-15": 1, "2024-03": 1, "2024-02-20": 1}
	})

	// seven days back from 2024-03-15 keeps 2024-03-09 onward and month 2024-03
	removed, err := l.Prune(ctx, 7)
	if err != nil {
		t.Fatalf("Prune: %v", err)
	}
	if removed != 7 {
		t.Errorf("Expected 7 counters removed, got %d", removed)
	}

	rec, _ := store.Load(ctx)
	if _, ok := rec.UserUsage["old"]; ok {
		t.Error("Expected user with no remaining counters to be dropped")
	}
	if rec.UserCount("alice", "2024-03-15") != 1 || rec.UserCount("alice", "2024-03") != 1 {
		t.Errorf("Expected current counters kept, got %v", rec.UserUsage["alice"])
	}
	if rec.DailyCount("2024-03-15") != 1 || rec.MonthlyCount("2024-03") != 1 {
		t.Error("Expected current global counters kept")
	}
}

func TestLimiter_PruneRejectsZero(t *testing.T) {
	t.Parallel()
	l, _, _ := newTestLimiter(t)
	if _, err := l.Prune(context.Background(), 0); err == nil {
		t.Error("Expected error for zero retention")
	}
}

func TestLimiter_ConcurrentRecordUsage(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	l, _, _ := newTestLimiter(t)

	const calls = 40
	var wg sync.WaitGroup
	for i := 0; i < calls; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := l.RecordUsage(ctx, "alice"); err != nil {
				t.Errorf("RecordUsage: %v", err)
			}
		}()
	}
	wg.Wait()

	if got := l.GetUsageStats(ctx, "alice").TodayCount; got != calls {
		t.Errorf("Expected %d recorded calls, got %d", calls, got)
	}
}

func TestLimiter_FeatureToggles(t *testing.T) {
	t.Parallel()

	l := NewLimiter(failingStore{})
	tests := []struct {
		feature models.Feature
		want    bool
	}{
		{models.FeatureGreeting, true},
		{models.FeatureEncouragement, true},
		{models.FeatureProductivityTip, true},
		{models.FeatureWeeklySummary, true},
		{models.FeatureTaskPlanning, true},
		{models.FeatureMoodAnalysis, false},
		{models.FeatureFocusOptimization, false},
		{models.FeatureStressManagement, false},
		{models.Feature("horoscope"), false},
	}
	for _, tt := range tests {
		if got := l.IsFeatureEnabled(tt.feature); got != tt.want {
			t.Errorf("IsFeatureEnabled(%s) = %v, want %v", tt.feature, got, tt.want)
		}
	}

	custom := NewLimiter(failingStore{}, WithFeatureToggles(map[models.Feature]bool{models.FeatureMoodAnalysis: true}))
	if !custom.IsFeatureEnabled(models.FeatureMoodAnalysis) {
		t.Error("Expected override to enable mood analysis")
	}
	if custom.IsFeatureEnabled(models.FeatureGreeting) {
		t.Error("Expected toggles to be replaced, not merged")
	}

	features := custom.Features()
	features[models.FeatureGreeting] = true
	if custom.IsFeatureEnabled(models.FeatureGreeting) {
		t.Error("Expected Features to return a copy")
	}
}
