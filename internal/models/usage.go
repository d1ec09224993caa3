package models

import (
	"strings"
	"time"
)

const (
	// DateLayout is the key format for daily counters (YYYY-MM-DD)
	DateLayout = "2006-01-02"
	// MonthLayout is the key format for monthly counters (YYYY-MM)
	MonthLayout = "2006-01"

	// ResetDaily and ResetMonthly are the keys of UsageRecord.LastReset
	ResetDaily   = "daily"
	ResetMonthly = "monthly"
)

// UsageRecord is the persisted state of the usage limiter.
// Counters are keyed by calendar period; a key that is absent counts as zero,
// so rollover happens lazily without ever resetting a map.
type UsageRecord struct {
	DailyUsage   map[string]int            `json:"daily_usage"`
	MonthlyUsage map[string]int            `json:"monthly_usage"`
	UserUsage    map[string]map[string]int `json:"user_usage"`
	LastReset    map[string]string         `json:"last_reset"`
}

// NewUsageRecord returns an empty record stamped with the periods of now.
func NewUsageRecord(now time.Time) *UsageRecord {
	return &UsageRecord{
		DailyUsage:   make(map[string]int),
		MonthlyUsage: make(map[string]int),
		UserUsage:    make(map[string]map[string]int),
		LastReset: map[string]string{
			ResetDaily:   now.Format(DateLayout),
			ResetMonthly: now.Format(MonthLayout),
		},
	}
}

// Normalize fills any nil maps left over from decoding a partial document.
func (r *UsageRecord) Normalize() {
	if r.DailyUsage == nil {
		r.DailyUsage = make(map[string]int)
	}
	if r.MonthlyUsage == nil {
		r.MonthlyUsage = make(map[string]int)
	}
	if r.UserUsage == nil {
		r.UserUsage = make(map[string]map[string]int)
	}
	if r.LastReset == nil {
		r.LastReset = make(map[string]string)
	}
}

// DailyCount returns the global count for date.
func (r *UsageRecord) DailyCount(date string) int {
	return r.DailyUsage[date]
}

// MonthlyCount returns the global count for month.
func (r *UsageRecord) MonthlyCount(month string) int {
	return r.MonthlyUsage[month]
}

// UserCount returns the count for userID under a date or month key.
func (r *UsageRecord) UserCount(userID, key string) int {
	return r.UserUsage[userID][key]
}

// Increment bumps the four counters touched by one call and stamps LastReset.
func (r *UsageRecord) Increment(userID, date, month string) {
	r.Normalize()
	r.DailyUsage[date]++
	r.MonthlyUsage[month]++

	perUser, ok := r.UserUsage[userID]
	if !ok {
		perUser = make(map[string]int)
		r.UserUsage[userID] = perUser
	}
	perUser[date]++
	perUser[month]++

	r.LastReset[ResetDaily] = date
	r.LastReset[ResetMonthly] = month
}

// Prune drops counters for periods strictly before cutoffDate/cutoffMonth and
// returns how many keys were removed. Users left with no counters are removed too.
func (r *UsageRecord) Prune(cutoffDate, cutoffMonth string) int {
	removed := 0
	for k := range r.DailyUsage {
		if k < cutoffDate {
			delete(r.DailyUsage, k)
			removed++
		}
	}
	for k := range r.MonthlyUsage {
		if k < cutoffMonth {
			delete(r.MonthlyUsage, k)
			removed++
		}
	}
	for user, counters := range r.UserUsage {
		for k := range counters {
			if isMonthKey(k) {
				if k < cutoffMonth {
					delete(counters, k)
					removed++
				}
				continue
			}
			if k < cutoffDate {
				delete(counters, k)
				removed++
			}
		}
		if len(counters) == 0 {
			delete(r.UserUsage, user)
		}
	}
	return removed
}

func isMonthKey(k string) bool {
	return len(k) == len(MonthLayout) && strings.Count(k, "-") == 1
}

// UsageStats reports a user's standing against their caps and the global caps.
type UsageStats struct {
	UserID           string `json:"user_id"`
	Date             string `json:"date"`
	Month            string `json:"month"`
	TodayCount       int    `json:"today_count"`
	MonthCount       int    `json:"month_count"`
	TodayLimit       int    `json:"today_limit"`
	MonthLimit       int    `json:"month_limit"`
	GlobalTodayCount int    `json:"global_today_count"`
	GlobalMonthCount int    `json:"global_month_count"`
	GlobalTodayLimit int    `json:"global_today_limit"`
	GlobalMonthLimit int    `json:"global_month_limit"`
	Exempt           bool   `json:"exempt"`
}

// UsageLimits are the four call caps. A cap <= 0 is not enforced.
type UsageLimits struct {
	UserDaily     int `json:"user_daily" yaml:"user_daily"`
	UserMonthly   int `json:"user_monthly" yaml:"user_monthly"`
	GlobalDaily   int `json:"global_daily" yaml:"global_daily"`
	GlobalMonthly int `json:"global_monthly" yaml:"global_monthly"`
}

// DefaultUsageLimits sizes the caps for a small closed beta (5 users).
func DefaultUsageLimits() UsageLimits {
	return UsageLimits{
		UserDaily:     20,
		UserMonthly:   400,
		GlobalDaily:   100,
		GlobalMonthly: 2000,
	}
}
