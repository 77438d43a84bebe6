package config

import (
	"encoding/json"
	"os"

	"github.com/dkomarov/paperchat/internal/flagx"
	"github.com/dkomarov/paperchat/internal/timex"
)

// JsonConfig is a DTO used exclusively for JSON unmarshalling. Duration
// fields accept either strings like "24h" or integer nanoseconds; zero
// values leave the runtime Config untouched.
type JsonConfig struct {
	ServerEndpointURL string         `json:"server_endpoint_url"`
	DatabasePath      string         `json:"database_path"`
	CookiePath        string         `json:"cookie_path"`
	CookieLifetime    timex.Duration `json:"cookie_lifetime"`
	RefreshWindow     timex.Duration `json:"refresh_window"`
	DebounceWindow    timex.Duration `json:"debounce_window"`
	RequestTimeout    timex.Duration `json:"request_timeout"`
	LoginTimeout      timex.Duration `json:"login_timeout"`
	LoginAttempts     int            `json:"login_attempts"`
	LoginBackoff      timex.Duration `json:"login_backoff"`
}

// parseJson overlays Config with values loaded from a JSON file whose path
// comes from the -c/-config flags. Missing file path means no overlay.
// Panics on read or unmarshal errors, matching the flag stage.
func parseJson(cfg *Config) {
	jsonConfigFile := flagx.JsonConfigFlags()
	if jsonConfigFile == "" {
		return
	}

	var jc JsonConfig

	data, err := os.ReadFile(jsonConfigFile)
	if err != nil {
		panic(err)
	}
	if err := json.Unmarshal(data, &jc); err != nil {
		panic(err)
	}

	if jc.ServerEndpointURL != "" {
		cfg.ServerEndpointURL = jc.ServerEndpointURL
	}
	if jc.DatabasePath != "" {
		cfg.DatabasePath = jc.DatabasePath
	}
	if jc.CookiePath != "" {
		cfg.CookiePath = jc.CookiePath
	}
	if jc.CookieLifetime.Duration != 0 {
		cfg.CookieLifetime = jc.CookieLifetime.Duration
	}
	if jc.RefreshWindow.Duration != 0 {
		cfg.RefreshWindow = jc.RefreshWindow.Duration
	}
	if jc.DebounceWindow.Duration != 0 {
		cfg.DebounceWindow = jc.DebounceWindow.Duration
	}
	if jc.RequestTimeout.Duration != 0 {
		cfg.RequestTimeout = jc.RequestTimeout.Duration
	}
	if jc.LoginTimeout.Duration != 0 {
		cfg.LoginTimeout = jc.LoginTimeout.Duration
	}
	if jc.LoginAttempts != 0 {
		cfg.LoginAttempts = jc.LoginAttempts
	}
	if jc.LoginBackoff.Duration != 0 {
		cfg.LoginBackoff = jc.LoginBackoff.Duration
	}
}
