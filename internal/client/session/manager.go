package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sethvargo/go-retry"
	"golang.org/x/sync/singleflight"

	"github.com/dkomarov/paperchat/internal/client/metrics"
	"github.com/dkomarov/paperchat/internal/client/models"
	"github.com/dkomarov/paperchat/internal/common"
	"github.com/dkomarov/paperchat/internal/logging"
)

// State is the authentication state exposed by the manager.
type State string

const (
	// StateUnknown: startup, no token examined yet.
	StateUnknown State = "unknown"
	// StateChecking: validation or profile fetch in flight.
	StateChecking State = "checking"
	// StateAuthenticated: a non-expired token is stored and a profile is cached.
	StateAuthenticated State = "authenticated"
	// StateUnauthenticated: the token store is empty.
	StateUnauthenticated State = "unauthenticated"
)

// API is the narrow backend surface the manager consumes. The HTTP client in
// the api package satisfies it; tests provide fakes.
//
// Refresh and Me are issued through the authenticated pipeline; Login and
// Register carry credentials in the body and need no token.
type API interface {
	Login(ctx context.Context, username, password string) (*Token, error)
	Register(ctx context.Context, username string, email *string, password string) (*Token, error)
	Refresh(ctx context.Context) (*Token, error)
	Me(ctx context.Context) (*models.User, error)
}

// AuthResult is the outcome of a login or register operation. Partial marks
// the case where the credential was obtained but the profile endpoint was
// unreachable: the profile is a synthesized minimal one and the caller should
// surface a soft warning, not an error.
type AuthResult struct {
	Profile *models.User
	Partial bool
}

// Manager is the auth state machine: it orchestrates startup validation,
// debounced re-checks, login/register with bounded retry, proactive refresh,
// and atomic session teardown. It is the single source of truth for whether
// a user is logged in.
//
// Concurrency: the mutex is never held across a network call. Cross-
// suspension invariants (single profile fetch per token, single refresh) are
// enforced with singleflight; the generation counter makes a teardown win
// over any refresh that completes after it.
type Manager struct {
	api   API
	store *Store
	cred  *Credential
	sched *Scheduler
	log   logging.Logger
	mtr   *metrics.Metrics
	clock func() time.Time

	debounce          time.Duration
	requestTimeout    time.Duration
	loginTimeout      time.Duration
	loginRetries      uint64
	loginBackoff      time.Duration
	profileRetryDelay time.Duration

	mu           sync.Mutex
	state        State
	profile      *models.User
	profileToken string
	lastCheck    time.Time
	generation   uint64

	flight singleflight.Group
}

type ManagerOption func(*Manager)

// WithClock injects the wall clock, for tests.
func WithClock(clock func() time.Time) ManagerOption {
	return func(m *Manager) { m.clock = clock }
}

// WithMetrics attaches auth flow instrumentation.
func WithMetrics(mtr *metrics.Metrics) ManagerOption {
	return func(m *Manager) { m.mtr = mtr }
}

// WithDebounceWindow overrides the re-check debounce interval.
func WithDebounceWindow(d time.Duration) ManagerOption {
	return func(m *Manager) { m.debounce = d }
}

// WithRequestTimeout bounds refresh and profile fetch calls.
func WithRequestTimeout(d time.Duration) ManagerOption {
	return func(m *Manager) { m.requestTimeout = d }
}

// WithLoginTimeout bounds a single login/register attempt.
func WithLoginTimeout(d time.Duration) ManagerOption {
	return func(m *Manager) { m.loginTimeout = d }
}

// WithLoginRetry sets the total number of credential-exchange attempts and
// the fixed backoff between them. Only network failures are retried.
func WithLoginRetry(attempts int, backoff time.Duration) ManagerOption {
	return func(m *Manager) {
		if attempts < 1 {
			attempts = 1
		}
		m.loginRetries = uint64(attempts - 1)
		m.loginBackoff = backoff
	}
}

// WithProfileRetryDelay sets the pause before the single extra profile fetch
// attempt after login.
func WithProfileRetryDelay(d time.Duration) ManagerOption {
	return func(m *Manager) { m.profileRetryDelay = d }
}

// NewManager wires the state machine to its collaborators. The scheduler is
// created internally so its timer callback cannot outlive the manager's
// refresh flow; schedOpts tune its window and clock.
func NewManager(api API, store *Store, cred *Credential, log logging.Logger, schedOpts []SchedulerOption, opts ...ManagerOption) *Manager {
	m := &Manager{
		api:               api,
		store:             store,
		cred:              cred,
		log:               log,
		clock:             time.Now,
		state:             StateUnknown,
		debounce:          common.DefaultDebounceWindow,
		requestTimeout:    common.DefaultRequestTimeout,
		loginTimeout:      common.DefaultLoginTimeout,
		loginRetries:      1,
		loginBackoff:      time.Second,
		profileRetryDelay: time.Second,
	}
	for _, opt := range opts {
		opt(m)
	}
	m.sched = NewScheduler(m.scheduledRefresh, log, schedOpts...)
	return m
}

// State returns the current authentication state.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Profile returns a copy of the cached profile, or nil when no user is
// authenticated.
func (m *Manager) Profile() *models.User {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.profile == nil {
		return nil
	}
	p := *m.profile
	return &p
}

// CheckAuth validates the stored session and settles the state machine.
// Re-entry within the debounce window returns the current state without
// doing any work. A valid token arms the pipeline and the refresh scheduler
// and fetches the profile (deduplicated per token); any validation or fetch
// failure tears the session down.
func (m *Manager) CheckAuth(ctx context.Context) (State, error) {
	m.mu.Lock()
	now := m.clock()
	if !m.lastCheck.IsZero() && now.Sub(m.lastCheck) < m.debounce {
		st := m.state
		m.mu.Unlock()
		m.log.Debug(ctx, "auth check debounced", "state", st)
		return st, nil
	}
	m.lastCheck = now
	m.state = StateChecking
	gen := m.generation
	m.mu.Unlock()

	tok, err := m.store.Read(ctx)
	if err != nil {
		m.teardown(ctx, "store_read_failed")
		return StateUnauthenticated, fmt.Errorf("read token store: %w", err)
	}
	if tok == nil {
		m.setState(StateUnauthenticated)
		return StateUnauthenticated, nil
	}

	claims, err := Decode(tok.AccessToken)
	if err != nil {
		// Undecodable stored tokens are cleared silently.
		m.log.Warn(ctx, "stored token is malformed, clearing session", "error", err)
		m.teardown(ctx, "malformed_token")
		return StateUnauthenticated, nil
	}
	if claims.Expired(m.clock()) {
		m.log.Info(ctx, "stored token expired, clearing session", "subject", claims.Subject)
		m.teardown(ctx, "expired_token")
		return StateUnauthenticated, nil
	}

	// Credential publication and timer arming stay inside generation-checked
	// critical sections so a concurrent teardown cannot be trailed by a stale
	// credential or a live timer for a session it already cleared.
	m.mu.Lock()
	if m.generation != gen {
		m.mu.Unlock()
		return StateUnauthenticated, nil
	}
	m.cred.Set(tok.AccessToken)

	// Cached profile fast path: skip the fetch while the same token is active.
	if m.profile != nil && !m.profile.Synthesized && m.profileToken == tok.AccessToken {
		m.state = StateAuthenticated
		m.sched.Arm(claims)
		m.mu.Unlock()
		return StateAuthenticated, nil
	}
	m.mu.Unlock()

	user, err := m.fetchProfile(ctx, tok.AccessToken)
	if err != nil {
		// An unreachable profile endpoint means an unverifiable session;
		// treat it the same as a rejected token.
		m.teardown(ctx, "profile_fetch_failed")
		return StateUnauthenticated, fmt.Errorf("validate session: %w", err)
	}

	m.mu.Lock()
	if m.generation != gen {
		// A logout raced the fetch; the teardown wins, and the credential
		// published above must not outlive it.
		m.cred.Clear()
		m.mu.Unlock()
		return StateUnauthenticated, nil
	}
	m.profile = user
	m.profileToken = tok.AccessToken
	m.state = StateAuthenticated
	m.sched.Arm(claims)
	m.mu.Unlock()

	m.log.Info(ctx, "session validated", "subject", claims.Subject)
	return StateAuthenticated, nil
}

// fetchProfile issues GET /users/me, deduplicated per token: concurrent
// callers share one in-flight request and its result.
func (m *Manager) fetchProfile(ctx context.Context, token string) (*models.User, error) {
	v, err, _ := m.flight.Do("profile:"+token, func() (any, error) {
		// The flight outcome is shared; one caller abandoning interest must
		// not cancel it for the rest.
		fctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), m.requestTimeout)
		defer cancel()

		start := time.Now()
		user, err := m.api.Me(fctx)
		m.mtr.ObserveProfileFetch(time.Since(start))
		if err != nil {
			return nil, err
		}
		return user, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*models.User), nil
}

// Login exchanges credentials for a token and settles the session.
func (m *Manager) Login(ctx context.Context, username, password string) (*AuthResult, error) {
	return m.exchange(ctx, "login", username, func(ctx context.Context) (*Token, error) {
		return m.api.Login(ctx, username, password)
	})
}

// Register creates an account and settles the session like Login does.
func (m *Manager) Register(ctx context.Context, username string, email *string, password string) (*AuthResult, error) {
	return m.exchange(ctx, "register", username, func(ctx context.Context) (*Token, error) {
		return m.api.Register(ctx, username, email, password)
	})
}

// exchange runs the credential call with bounded retry (network failures
// only), persists the token, and fetches the profile with one extra attempt.
// A token without a reachable profile endpoint is a partial success, never a
// discarded credential.
func (m *Manager) exchange(ctx context.Context, op, username string, call func(ctx context.Context) (*Token, error)) (*AuthResult, error) {
	var tok *Token
	backoff := retry.WithMaxRetries(m.loginRetries, retry.NewConstant(m.loginBackoff))
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		actx, cancel := context.WithTimeout(ctx, m.loginTimeout)
		defer cancel()

		t, err := call(actx)
		if err != nil {
			if errors.Is(err, common.ErrServerUnreachable) {
				return retry.RetryableError(err)
			}
			// Rejected credentials and other 4xx surface verbatim.
			return err
		}
		tok = t
		return nil
	})
	if err != nil {
		result := "network"
		if errors.Is(err, common.ErrInvalidCredentials) {
			result = "rejected"
		}
		m.mtr.IncLoginOutcome(op, result)
		return nil, err
	}

	claims, err := Decode(tok.AccessToken)
	if err != nil {
		m.mtr.IncLoginOutcome(op, "bad_token")
		return nil, fmt.Errorf("server returned undecodable token: %w", err)
	}
	if err := m.store.Write(ctx, tok); err != nil {
		m.mtr.IncLoginOutcome(op, "store_failed")
		return nil, fmt.Errorf("persist token: %w", err)
	}
	m.cred.Set(tok.AccessToken)
	m.sched.Arm(claims)

	user, ferr := m.fetchProfile(ctx, tok.AccessToken)
	if ferr != nil && errors.Is(ferr, common.ErrServerUnreachable) {
		select {
		case <-ctx.Done():
			ferr = ctx.Err()
		case <-time.After(m.profileRetryDelay):
			user, ferr = m.fetchProfile(ctx, tok.AccessToken)
		}
	}

	switch {
	case ferr == nil:
		m.mu.Lock()
		m.profile = user
		m.profileToken = tok.AccessToken
		m.state = StateAuthenticated
		m.mu.Unlock()
		m.mtr.IncLoginOutcome(op, "success")
		m.log.Info(ctx, "signed in", "operation", op, "subject", claims.Subject)
		return &AuthResult{Profile: user}, nil

	case errors.Is(ferr, common.ErrorUnauthorized) || KindOf(ferr) == KindSessionExpired:
		// The fresh token was rejected on /users/me: hard failure.
		m.teardown(ctx, "post_login_unauthorized")
		m.mtr.IncLoginOutcome(op, "unauthorized")
		return nil, &Error{Kind: KindSessionExpired, Err: ferr}

	default:
		// Unreachable server, timeout, or a server-side error: the credential
		// itself is valid, keep it and synthesize a minimal identity.
		minimal := models.MinimalUser(username)
		m.mu.Lock()
		m.profile = minimal
		m.profileToken = tok.AccessToken
		m.state = StateAuthenticated
		m.mu.Unlock()
		m.mtr.IncLoginOutcome(op, "partial")
		m.log.Warn(ctx, "signed in without profile", "operation", op, "subject", claims.Subject, "error", ferr)
		return &AuthResult{Profile: minimal, Partial: true}, nil
	}
}

// Refresh exchanges the current token for a fresh one. Safe to call
// concurrently: callers share a single in-flight refresh and its outcome.
func (m *Manager) Refresh(ctx context.Context) error {
	return m.refresh(ctx, "manual")
}

// RefreshSession is the request pipeline's refresh hook for 401 recovery.
func (m *Manager) RefreshSession(ctx context.Context) error {
	return m.refresh(ctx, "retry")
}

func (m *Manager) refresh(ctx context.Context, trigger string) error {
	_, err, _ := m.flight.Do("refresh", func() (any, error) {
		m.mu.Lock()
		gen := m.generation
		m.mu.Unlock()

		current := m.cred.Get()
		if current == "" {
			stored, err := m.store.Read(ctx)
			if err != nil || stored == nil {
				return nil, fmt.Errorf("refresh without a session: %w", common.ErrNoSession)
			}
			current = stored.AccessToken
			m.cred.Set(current)
		}

		rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), m.requestTimeout)
		defer cancel()

		tok, err := m.api.Refresh(rctx)
		if err != nil {
			// The old token stays untouched; the caller decides teardown.
			return nil, fmt.Errorf("refresh token: %w", err)
		}
		claims, err := Decode(tok.AccessToken)
		if err != nil {
			return nil, fmt.Errorf("server returned undecodable token: %w", err)
		}

		m.mu.Lock()
		defer m.mu.Unlock()
		if m.generation != gen {
			// A teardown happened after this refresh read the token; it must
			// not re-populate the store.
			return nil, fmt.Errorf("session torn down during refresh: %w", common.ErrSessionExpired)
		}
		if err := m.store.Write(rctx, tok); err != nil {
			return nil, fmt.Errorf("persist refreshed token: %w", err)
		}
		m.cred.Set(tok.AccessToken)
		m.profileToken = tok.AccessToken
		m.sched.Arm(claims)
		m.log.Info(rctx, "token refreshed", "subject", claims.Subject, "expires_at", claims.ExpiresAt)
		return nil, nil
	})

	if err != nil {
		m.mtr.IncRefreshOutcome(trigger, "failure")
		return err
	}
	m.mtr.IncRefreshOutcome(trigger, "success")
	return nil
}

// scheduledRefresh is the timer callback. Failures are logged only: the old
// token remains valid until its own expiry, and the next CheckAuth or 401
// settles the session.
func (m *Manager) scheduledRefresh() {
	ctx := context.Background()
	if err := m.refresh(ctx, "scheduled"); err != nil {
		m.log.Warn(ctx, "scheduled refresh failed", "error", err)
	}
}

// Logout tears the session down. Safe to call from any state, including a
// check in flight, and idempotent.
func (m *Manager) Logout(ctx context.Context) error {
	m.log.Info(ctx, "logging out")
	return m.teardown(ctx, "logout")
}

// InvalidateSession is the request pipeline's teardown hook, invoked when a
// 401 could not be recovered by a refresh.
func (m *Manager) InvalidateSession(ctx context.Context) {
	_ = m.teardown(ctx, "unrecovered_401")
}

// teardown atomically clears every storage surface and in-memory mirror:
// scheduler timer, both token store surfaces, cached profile, and the
// pipeline credential. Idempotent and order-independent across its callers.
func (m *Manager) teardown(ctx context.Context, cause string) error {
	m.mu.Lock()
	m.generation++
	m.profile = nil
	m.profileToken = ""
	m.state = StateUnauthenticated
	m.mu.Unlock()

	m.sched.Disarm()
	m.cred.Clear()

	// Clearing must proceed even if the triggering context is already gone.
	err := m.store.Clear(context.WithoutCancel(ctx))

	m.mtr.IncTeardown(cause)
	m.log.Info(ctx, "session torn down", "cause", cause)
	return err
}

func (m *Manager) setState(s State) {
	m.mu.Lock()
	m.state = s
	m.mu.Unlock()
}
