package models

import "time"

// Rate limit scopes. Each scope has its own row in ratelimit_config.
const (
	RatelimitScopeDefault = "default"
	RatelimitScopeAuth    = "auth"
	RatelimitScopeCoach   = "coach"
)

// RatelimitScopes lists the scopes the server applies
var RatelimitScopes = []string{RatelimitScopeDefault, RatelimitScopeAuth, RatelimitScopeCoach}

// RatelimitConfig holds rate limit configuration for one scope (e.g. "5-S", "100-M").
type RatelimitConfig struct {
	ConfigKey string    `json:"config_key"`
	Rate      string    `json:"rate"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
