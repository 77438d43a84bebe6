// Package common defines shared constants and sentinel errors used across
// the paperchat client layers. Callers should use errors.Is to match the
// sentinel values.
package common

import "time"

const (
	// SessionCookieName is the cookie entry holding the bearer token. Older
	// client versions suffixed this name, so teardown matches the prefix.
	SessionCookieName = "paperchat_session"

	// SessionMetadataKey is the key of the token envelope in the durable
	// (sqlite) surface of the token store.
	SessionMetadataKey = "session"

	// RequestIDHeaderName tags every outbound request for log correlation.
	RequestIDHeaderName = "X-Request-Id"
)

const (
	// DefaultCookieLifetime matches the backend's 7-day token lifetime.
	DefaultCookieLifetime = 7 * 24 * time.Hour

	// DefaultRefreshWindow is how far before expiry a proactive refresh runs.
	DefaultRefreshWindow = 24 * time.Hour

	// DefaultDebounceWindow drops auth re-checks started within this interval
	// of the previous check.
	DefaultDebounceWindow = 500 * time.Millisecond

	// DefaultRequestTimeout bounds ordinary API calls, including refresh.
	DefaultRequestTimeout = 10 * time.Second

	// DefaultLoginTimeout bounds a single login/register attempt. Login is
	// slower than other calls because of server-side password hashing.
	DefaultLoginTimeout = 20 * time.Second
)
