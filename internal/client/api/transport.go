// Package api implements the HTTP client for the paperchat backend and the
// request pipeline that attaches the bearer credential, recovers 401s with a
// single refresh-and-replay, and normalizes transport failures.
package api

import (
	"context"
	"io"
	"net/http"

	"github.com/google/uuid"

	"github.com/dkomarov/paperchat/internal/client/metrics"
	"github.com/dkomarov/paperchat/internal/client/session"
	"github.com/dkomarov/paperchat/internal/common"
	"github.com/dkomarov/paperchat/internal/logging"
)

// SessionHooks is what the pipeline needs from the session manager:
// a synchronous refresh for 401 recovery and a teardown for when the refresh
// itself fails. The session.Manager satisfies it.
type SessionHooks interface {
	RefreshSession(ctx context.Context) error
	InvalidateSession(ctx context.Context)
}

type ctxKey int

const noRetryKey ctxKey = iota

// WithoutAuthRetry marks a request context so a 401 response propagates
// unchanged. The refresh call itself uses this to avoid recursing into the
// recovery path; callers that have already been replayed are guarded by the
// pipeline internally.
func WithoutAuthRetry(ctx context.Context) context.Context {
	return context.WithValue(ctx, noRetryKey, true)
}

func retryDisabled(ctx context.Context) bool {
	v, _ := ctx.Value(noRetryKey).(bool)
	return v
}

// AuthTransport is the outbound/inbound request pipeline. Outbound it tags
// every request with an id and attaches the cached bearer credential;
// requests issued with no credential proceed unauthenticated. Inbound, a 401
// triggers exactly one refresh-and-replay per request; an unrecoverable 401
// invalidates the session.
type AuthTransport struct {
	base  http.RoundTripper
	creds *session.Credential
	log   logging.Logger
	mtr   *metrics.Metrics

	hooks SessionHooks
}

func NewAuthTransport(base http.RoundTripper, creds *session.Credential, log logging.Logger, mtr *metrics.Metrics) *AuthTransport {
	if base == nil {
		base = http.DefaultTransport
	}
	return &AuthTransport{base: base, creds: creds, log: log, mtr: mtr}
}

// BindSession attaches the refresh/teardown hooks. Wiring is two-phase
// because the manager needs the API client, which needs this transport.
func (t *AuthTransport) BindSession(hooks SessionHooks) {
	t.hooks = hooks
}

func (t *AuthTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	out := req.Clone(req.Context())
	if out.Header.Get(common.RequestIDHeaderName) == "" {
		out.Header.Set(common.RequestIDHeaderName, uuid.NewString())
	}
	if tok := t.creds.Get(); tok != "" {
		out.Header.Set("Authorization", "Bearer "+tok)
	}

	resp, err := t.base.RoundTrip(out)
	if err != nil {
		// Transport-level failure: never a reason to tear the session down.
		return nil, err
	}
	if resp.StatusCode != http.StatusUnauthorized {
		return resp, nil
	}
	if t.hooks == nil || retryDisabled(req.Context()) {
		return resp, nil
	}

	replay, ok := t.cloneForReplay(req)
	if !ok {
		// The body cannot be rewound; propagate the 401 unchanged.
		return resp, nil
	}

	// The response body will be replaced by the replay's; release this one.
	_, _ = io.Copy(io.Discard, resp.Body)
	_ = resp.Body.Close()

	t.log.Info(req.Context(), "got 401, attempting token refresh",
		"request_id", out.Header.Get(common.RequestIDHeaderName), "url", req.URL.Path)

	if err := t.hooks.RefreshSession(req.Context()); err != nil {
		t.hooks.InvalidateSession(req.Context())
		return nil, &session.Error{
			Kind: session.KindSessionExpired,
			Err:  err,
		}
	}

	replay.Header.Set(common.RequestIDHeaderName, out.Header.Get(common.RequestIDHeaderName))
	if tok := t.creds.Get(); tok != "" {
		replay.Header.Set("Authorization", "Bearer "+tok)
	}
	t.mtr.IncRetriedRequest()

	// Exactly one replay; its result is returned as-is, 401 included.
	return t.base.RoundTrip(replay)
}

// cloneForReplay rebuilds the request for the single retry. Requests with a
// consumed, non-rewindable body cannot be replayed.
func (t *AuthTransport) cloneForReplay(req *http.Request) (*http.Request, bool) {
	replay := req.Clone(req.Context())
	if req.Body == nil {
		return replay, true
	}
	if req.GetBody == nil {
		return nil, false
	}
	body, err := req.GetBody()
	if err != nil {
		return nil, false
	}
	replay.Body = body
	return replay, true
}
