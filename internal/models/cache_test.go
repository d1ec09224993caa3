package models

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func TestCacheEntry_Expired(t *testing.T) {
	t.Parallel()

	created := time.Date(2024, 3, 15, 10, 0, 0, 0, time.UTC)

	tests := []struct {
		name string
		ttl  time.Duration
		now  time.Time
		want bool
	}{
		{"fresh", time.Hour, created.Add(time.Minute), false},
		{"just before ttl", time.Hour, created.Add(time.Hour - time.Nanosecond), false},
		{"exactly ttl", time.Hour, created.Add(time.Hour), true},
		{"past ttl", time.Hour, created.Add(2 * time.Hour), true},
		{"zero ttl", 0, created, true},
		{"negative ttl", -time.Second, created, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			e := &CacheEntry{CreatedAt: created, TTL: tt.ttl}
			if got := e.Expired(tt.now); got != tt.want {
				t.Errorf("Expired() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestFeature_IsValid(t *testing.T) {
	t.Parallel()

	if !FeatureGreeting.IsValid() {
		t.Error("Expected greeting to be valid")
	}
	if Feature("horoscope").IsValid() {
		t.Error("Expected unknown feature to be invalid")
	}
	toggles := DefaultFeatureToggles()
	if len(toggles) != len(AllFeatures) {
		t.Errorf("Expected a toggle for every feature, got %d of %d", len(toggles), len(AllFeatures))
	}
	if toggles[FeatureMoodAnalysis] {
		t.Error("Expected mood_analysis disabled by default")
	}
}

func TestEstimateCost(t *testing.T) {
	t.Parallel()

	tests := []struct {
		tokens int
		want   string
	}{
		{0, "0"},
		{-5, "0"},
		{1, "0.000002"},
		{150, "0.0003"},
	}
	for _, tt := range tests {
		got := EstimateCost(tt.tokens)
		if !got.Equal(decimal.RequireFromString(tt.want)) {
			t.Errorf("EstimateCost(%d) = %s, want %s", tt.tokens, got, tt.want)
		}
	}
}
