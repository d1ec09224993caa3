package models

import "time"

// CacheEntry is a stored AI response.
type CacheEntry struct {
	Key       string        `json:"key"`
	Feature   string        `json:"feature,omitempty"`
	UserID    string        `json:"user_id,omitempty"`
	Response  string        `json:"response"`
	CreatedAt time.Time     `json:"created_at"`
	TTL       time.Duration `json:"ttl"`
}

// ExpiresAt returns the instant the entry stops being served.
func (e *CacheEntry) ExpiresAt() time.Time {
	return e.CreatedAt.Add(e.TTL)
}

// Expired reports whether the entry is no longer live at now.
// An entry is live only while now - CreatedAt < TTL, so a zero TTL is never live.
func (e *CacheEntry) Expired(now time.Time) bool {
	if e.TTL <= 0 {
		return true
	}
	return now.Sub(e.CreatedAt) >= e.TTL
}

// CacheStats reports cache effectiveness.
type CacheStats struct {
	Hits      int64          `json:"hits"`
	Misses    int64          `json:"misses"`
	HitRate   float64        `json:"hit_rate"`
	Entries   int            `json:"entries"`
	ByFeature map[string]int `json:"by_feature,omitempty"`
}
