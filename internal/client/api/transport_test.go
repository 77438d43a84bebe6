package api

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dkomarov/paperchat/internal/client/session"
	"github.com/dkomarov/paperchat/internal/common"
	"github.com/dkomarov/paperchat/internal/logging"
)

// fakeHooks scripts the session manager side of the pipeline.
type fakeHooks struct {
	refreshErr  error
	onRefresh   func()
	refreshes   atomic.Int32
	invalidates atomic.Int32
}

func (h *fakeHooks) RefreshSession(context.Context) error {
	h.refreshes.Add(1)
	if h.onRefresh != nil {
		h.onRefresh()
	}
	return h.refreshErr
}

func (h *fakeHooks) InvalidateSession(context.Context) {
	h.invalidates.Add(1)
}

func newTestTransport(hooks SessionHooks) (*AuthTransport, *session.Credential, *http.Client) {
	cred := session.NewCredential()
	tr := NewAuthTransport(nil, cred, logging.NopLogger{}, nil)
	if hooks != nil {
		tr.BindSession(hooks)
	}
	return tr, cred, &http.Client{Transport: tr}
}

func TestAuthTransport_AttachesBearerAndRequestID(t *testing.T) {
	var gotAuth, gotID string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotID = r.Header.Get(common.RequestIDHeaderName)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	_, cred, hc := newTestTransport(&fakeHooks{})
	cred.Set("tok-1")

	resp, err := hc.Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, "Bearer tok-1", gotAuth)
	require.NotEmpty(t, gotID)
}

func TestAuthTransport_NoCredentialGoesUnauthenticated(t *testing.T) {
	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	_, _, hc := newTestTransport(&fakeHooks{})

	resp, err := hc.Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Empty(t, gotAuth)
}

func TestAuthTransport_Recovers401WithSingleReplay(t *testing.T) {
	var calls atomic.Int32
	var firstID, replayID, replayAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch calls.Add(1) {
		case 1:
			firstID = r.Header.Get(common.RequestIDHeaderName)
			w.WriteHeader(http.StatusUnauthorized)
		default:
			replayID = r.Header.Get(common.RequestIDHeaderName)
			replayAuth = r.Header.Get("Authorization")
			w.WriteHeader(http.StatusOK)
		}
	}))
	defer srv.Close()

	hooks := &fakeHooks{}
	_, cred, hc := newTestTransport(hooks)
	hooks.onRefresh = func() { cred.Set("tok-new") }
	cred.Set("tok-old")

	resp, err := hc.Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, int32(2), calls.Load())
	require.Equal(t, int32(1), hooks.refreshes.Load())
	require.Equal(t, int32(0), hooks.invalidates.Load())

	// The replay reuses the original request id and the refreshed credential.
	require.Equal(t, firstID, replayID)
	require.Equal(t, "Bearer tok-new", replayAuth)
}

func TestAuthTransport_ReplayNotRetriedTwice(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	hooks := &fakeHooks{}
	_, cred, hc := newTestTransport(hooks)
	cred.Set("tok")

	resp, err := hc.Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()

	// One original request, one replay, then the 401 surfaces as-is.
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	require.Equal(t, int32(2), calls.Load())
	require.Equal(t, int32(1), hooks.refreshes.Load())
}

func TestAuthTransport_RefreshFailureInvalidatesSession(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	hooks := &fakeHooks{refreshErr: fmt.Errorf("refresh rejected: %w", common.ErrorUnauthorized)}
	_, cred, hc := newTestTransport(hooks)
	cred.Set("tok")

	_, err := hc.Get(srv.URL)
	require.Error(t, err)
	require.ErrorIs(t, err, common.ErrSessionExpired)
	require.Equal(t, int32(1), hooks.invalidates.Load())
}

func TestAuthTransport_NoRetryContextPropagates401(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	hooks := &fakeHooks{}
	_, cred, hc := newTestTransport(hooks)
	cred.Set("tok")

	req, err := http.NewRequestWithContext(WithoutAuthRetry(context.Background()), http.MethodGet, srv.URL, nil)
	require.NoError(t, err)

	resp, err := hc.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	require.Equal(t, int32(1), calls.Load())
	require.Equal(t, int32(0), hooks.refreshes.Load())
}

func TestAuthTransport_ReplaysRequestBody(t *testing.T) {
	var calls atomic.Int32
	var replayBody string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch calls.Add(1) {
		case 1:
			w.WriteHeader(http.StatusUnauthorized)
		default:
			data, _ := io.ReadAll(r.Body)
			replayBody = string(data)
			w.WriteHeader(http.StatusOK)
		}
	}))
	defer srv.Close()

	hooks := &fakeHooks{}
	_, cred, hc := newTestTransport(hooks)
	cred.Set("tok")

	resp, err := hc.Post(srv.URL, "application/json", strings.NewReader(`{"title":"notes"}`))
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, `{"title":"notes"}`, replayBody)
}

type failingRoundTripper struct{}

func (failingRoundTripper) RoundTrip(*http.Request) (*http.Response, error) {
	return nil, errors.New("connection refused")
}

func TestAuthTransport_TransportErrorDoesNotTouchSession(t *testing.T) {
	hooks := &fakeHooks{}
	cred := session.NewCredential()
	cred.Set("tok")
	tr := NewAuthTransport(failingRoundTripper{}, cred, logging.NopLogger{}, nil)
	tr.BindSession(hooks)
	hc := &http.Client{Transport: tr}

	_, err := hc.Get("http://paperchat.invalid/")
	require.Error(t, err)
	require.Equal(t, int32(0), hooks.refreshes.Load())
	require.Equal(t, int32(0), hooks.invalidates.Load())
	require.Equal(t, "tok", cred.Get())
}
