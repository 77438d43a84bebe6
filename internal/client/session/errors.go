package session

import (
	"errors"
	"fmt"

	"github.com/dkomarov/paperchat/internal/common"
)

// Kind classifies an auth flow failure so callers can pattern-match instead
// of probing fields on ad hoc error values.
type Kind string

const (
	// KindInvalidCredentials: the backend rejected the username/password.
	// Never retried, surfaced verbatim.
	KindInvalidCredentials Kind = "invalid_credentials"

	// KindSessionExpired: the stored token expired, or a 401 could not be
	// recovered by a refresh. The session has been torn down.
	KindSessionExpired Kind = "session_expired"

	// KindMalformedSession: the stored token is not decodable. The store
	// self-heals by clearing both surfaces.
	KindMalformedSession Kind = "malformed_session"

	// KindNetworkUnavailable: timeout or no response. Retried per policy;
	// never tears the session down on its own.
	KindNetworkUnavailable Kind = "network_unavailable"

	// KindPartialSuccess: a credential was obtained but the profile fetch
	// failed for network reasons. A soft warning, not a failure.
	KindPartialSuccess Kind = "partial_success"
)

// Error is the tagged auth error variant. RetainedToken tells the caller
// whether a usable token was nonetheless obtained or kept, so the UI can
// decide whether to proceed optimistically.
type Error struct {
	Kind          Kind
	Recoverable   bool
	RetainedToken bool
	Err           error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("auth: %s: %v", e.Kind, e.Err)
	}
	return fmt.Sprintf("auth: %s", e.Kind)
}

func (e *Error) Unwrap() error { return e.Err }

// Is maps each kind onto its sentinel in the common package, so callers can
// use errors.Is without importing the tagged type.
func (e *Error) Is(target error) bool {
	switch e.Kind {
	case KindInvalidCredentials:
		return target == common.ErrInvalidCredentials
	case KindSessionExpired:
		return target == common.ErrSessionExpired
	case KindMalformedSession:
		return target == common.ErrMalformedSession
	case KindNetworkUnavailable:
		return target == common.ErrServerUnreachable
	default:
		return false
	}
}

// KindOf extracts the Kind from err, or "" when err carries no tag.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}
