// Package config loads runtime settings for the paperchat CLI.
package config

import "time"

// Config holds runtime settings for the paperchat client.
//
// Durations are time.Duration values; the JSON overlay accepts both "24h"
// strings and integer nanoseconds.
type Config struct {
	// ServerEndpointURL is the backend base URL (the /api prefix is added by
	// the API client).
	ServerEndpointURL string

	// DatabasePath is the local sqlite file backing the durable token
	// surface.
	DatabasePath string

	// CookiePath is the cookie file backing the cookie token surface.
	CookiePath string

	// CookieLifetime is the explicit cookie expiry horizon; it should match
	// the backend token lifetime.
	CookieLifetime time.Duration

	// RefreshWindow is how far before token expiry the proactive refresh
	// runs.
	RefreshWindow time.Duration

	// DebounceWindow drops auth re-checks started within this interval of
	// the previous one.
	DebounceWindow time.Duration

	// RequestTimeout bounds ordinary API calls, refresh included.
	RequestTimeout time.Duration

	// LoginTimeout bounds a single login/register attempt.
	LoginTimeout time.Duration

	// LoginAttempts is the total number of credential-exchange attempts for
	// network failures; rejected credentials are never retried.
	LoginAttempts int

	// LoginBackoff is the fixed pause between credential-exchange attempts.
	LoginBackoff time.Duration
}

// LoadDefaults populates c with sensible defaults.
func (c *Config) LoadDefaults() {
	c.ServerEndpointURL = "http://127.0.0.1:8000"
	c.DatabasePath = "paperchat.db"
	c.CookiePath = "cookies.json"
	c.CookieLifetime = 7 * 24 * time.Hour
	c.RefreshWindow = 24 * time.Hour
	c.DebounceWindow = 500 * time.Millisecond
	c.RequestTimeout = 10 * time.Second
	c.LoginTimeout = 20 * time.Second
	c.LoginAttempts = 2
	c.LoginBackoff = time.Second
}

// LoadConfig constructs a Config, applies defaults, then overlays values
// from JSON (if present) and command-line flags (if present). Later sources
// take precedence over earlier ones.
func LoadConfig() *Config {
	cfg := &Config{}
	cfg.LoadDefaults()
	parseJson(cfg)
	parseFlags(cfg)
	return cfg
}
