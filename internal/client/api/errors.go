package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"

	"github.com/dkomarov/paperchat/internal/client/session"
	"github.com/dkomarov/paperchat/internal/common"
)

// StatusError carries a non-2xx backend response with the detail message the
// backend returned.
type StatusError struct {
	Status int
	Detail string
}

func (e *StatusError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("server returned %d: %s", e.Status, e.Detail)
	}
	return fmt.Sprintf("server returned %d", e.Status)
}

func (e *StatusError) Is(target error) bool {
	switch e.Status {
	case http.StatusUnauthorized:
		return target == common.ErrorUnauthorized
	case http.StatusNotFound:
		return target == common.ErrorNotFound
	default:
		return false
	}
}

// normalizeTransportErr maps request errors into the client taxonomy.
// Timeouts and unreachable servers become NetworkUnavailable; an error the
// pipeline already tagged (an unrecovered 401) passes through unchanged.
func normalizeTransportErr(err error) error {
	var sessErr *session.Error
	if errors.As(err, &sessErr) {
		return sessErr
	}

	if errors.Is(err, context.Canceled) {
		// Caller abandoned interest; not a network condition.
		return err
	}

	var urlErr *url.Error
	var netErr net.Error
	switch {
	case errors.Is(err, context.DeadlineExceeded),
		errors.As(err, &netErr) && netErr.Timeout(),
		errors.As(err, &urlErr):
		return &session.Error{
			Kind:        session.KindNetworkUnavailable,
			Recoverable: true,
			Err:         err,
		}
	default:
		return err
	}
}
