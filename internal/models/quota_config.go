package models

import "time"

// QuotaConfig is the database-stored override of the usage caps.
type QuotaConfig struct {
	ConfigKey string      `json:"config_key"`
	Limits    UsageLimits `json:"limits"`
	CreatedAt time.Time   `json:"created_at"`
	UpdatedAt time.Time   `json:"updated_at"`
}
