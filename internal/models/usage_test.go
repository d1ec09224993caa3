package models

import (
	"encoding/json"
	"testing"
	"time"
)

func TestNewUsageRecord(t *testing.T) {
	t.Parallel()

	now := time.Date(2024, 3, 15, 10, 0, 0, 0, time.UTC)
	r := NewUsageRecord(now)

	if r.LastReset[ResetDaily] != "2024-03-15" {
		t.Errorf("Expected daily reset '2024-03-15', got '%s'", r.LastReset[ResetDaily])
	}
	if r.LastReset[ResetMonthly] != "2024-03" {
		t.Errorf("Expected monthly reset '2024-03', got '%s'", r.LastReset[ResetMonthly])
	}
	if r.DailyCount("2024-03-15") != 0 {
		t.Errorf("Expected zero daily count on empty record")
	}
	if r.UserCount("alice", "2024-03") != 0 {
		t.Errorf("Expected zero user count on empty record")
	}
}

func TestUsageRecord_Increment(t *testing.T) {
	t.Parallel()

	r := NewUsageRecord(time.Now())
	r.Increment("alice", "2024-03-15", "2024-03")
	r.Increment("alice", "2024-03-15", "2024-03")
	r.Increment("bob", "2024-03-16", "2024-03")

	tests := []struct {
		name string
		got  int
		want int
	}{
		{"global daily 15th", r.DailyCount("2024-03-15"), 2},
		{"global daily 16th", r.DailyCount("2024-03-16"), 1},
		{"global monthly", r.MonthlyCount("2024-03"), 3},
		{"alice daily", r.UserCount("alice", "2024-03-15"), 2},
		{"alice monthly", r.UserCount("alice", "2024-03"), 2},
		{"bob daily 15th", r.UserCount("bob", "2024-03-15"), 0},
		{"bob monthly", r.UserCount("bob", "2024-03"), 1},
		{"unknown user", r.UserCount("carol", "2024-03"), 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if tt.got != tt.want {
				t.Errorf("got %d, want %d", tt.got, tt.want)
			}
		})
	}

	if r.LastReset[ResetDaily] != "2024-03-16" {
		t.Errorf("Expected last daily reset to track latest call, got '%s'", r.LastReset[ResetDaily])
	}
}

func TestUsageRecord_IncrementOnDecodedPartialDocument(t *testing.T) {
	t.Parallel()

	var r UsageRecord
	if err := json.Unmarshal([]byte(`{"daily_usage":{"2024-03-15":4}}`), &r); err != nil {
		t.Fatalf("Failed to unmarshal: %v", err)
	}
	r.Increment("alice", "2024-03-15", "2024-03")

	if r.DailyCount("2024-03-15") != 5 {
		t.Errorf("Expected 5, got %d", r.DailyCount("2024-03-15"))
	}
	if r.MonthlyCount("2024-03") != 1 {
		t.Errorf("Expected 1, got %d", r.MonthlyCount("2024-03"))
	}
}

func TestUsageRecord_JSONShape(t *testing.T) {
	t.Parallel()

	r := NewUsageRecord(time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC))
	r.Increment("alice", "2024-03-15", "2024-03")

	data, err := json.Marshal(r)
	if err != nil {
		t.Fatalf("Failed to marshal: %v", err)
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		t.Fatalf("Failed to unmarshal: %v", err)
	}
	for _, key := range []string{"daily_usage", "monthly_usage", "user_usage", "last_reset"} {
		if _, ok := raw[key]; !ok {
			t.Errorf("Expected key %q in persisted document", key)
		}
	}
}

func TestUsageRecord_Prune(t *testing.T) {
	t.Parallel()

	r := NewUsageRecord(time.Now())
	r.Increment("alice", "2024-01-10", "2024-01")
	r.Increment("alice", "2024-03-15", "2024-03")
	r.Increment("bob", "2024-01-20", "2024-01")

	removed := r.Prune("2024-03-01", "2024-03")

	// global: 2 daily + 1 monthly; alice: 1 daily + 1 monthly; bob: 1 daily + 1 monthly
	if removed != 7 {
		t.Errorf("Expected 7 keys removed, got %d", removed)
	}
	if r.DailyCount("2024-03-15") != 1 {
		t.Errorf("Expected current day kept")
	}
	if r.UserCount("alice", "2024-03") != 1 {
		t.Errorf("Expected current month kept for alice")
	}
	if _, ok := r.UserUsage["bob"]; ok {
		t.Errorf("Expected bob removed once empty")
	}
}
