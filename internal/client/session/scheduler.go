package session

import (
	"context"
	"sync"
	"time"

	"github.com/dkomarov/paperchat/internal/common"
	"github.com/dkomarov/paperchat/internal/logging"
)

// Scheduler owns the single proactive-refresh timer. At most one timer is
// ever live: Arm replaces any pending timer, and a fired timer does not
// re-arm itself; re-arming happens when the manager observes the refreshed
// token and calls Arm again.
type Scheduler struct {
	mu    sync.Mutex
	timer *time.Timer

	window  time.Duration
	clock   func() time.Time
	refresh func()
	log     logging.Logger
}

type SchedulerOption func(*Scheduler)

// WithRefreshWindow overrides how far before expiry the refresh fires.
func WithRefreshWindow(d time.Duration) SchedulerOption {
	return func(s *Scheduler) { s.window = d }
}

// WithSchedulerClock injects the wall clock, for tests.
func WithSchedulerClock(clock func() time.Time) SchedulerOption {
	return func(s *Scheduler) { s.clock = clock }
}

// NewScheduler builds a scheduler that invokes refresh when a token enters
// its refresh window. The callback runs on its own goroutine and must be
// safe to call at any time.
func NewScheduler(refresh func(), log logging.Logger, opts ...SchedulerOption) *Scheduler {
	s := &Scheduler{
		window:  common.DefaultRefreshWindow,
		clock:   time.Now,
		refresh: refresh,
		log:     log,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Arm schedules a refresh for the given claims. Any pending timer is
// cancelled first. A token already inside the refresh window triggers an
// immediate fire-and-forget refresh instead of a timer with a negative
// delay.
func (s *Scheduler) Arm(claims *Claims) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.disarmLocked()

	timeToExpiry := claims.TimeToExpiry(s.clock())
	if timeToExpiry < s.window {
		s.log.Info(context.Background(), "token inside refresh window, refreshing now",
			"subject", claims.Subject, "time_to_expiry", timeToExpiry)
		go s.refresh()
		return
	}

	delay := timeToExpiry - s.window
	s.timer = time.AfterFunc(delay, s.fire)
	s.log.Debug(context.Background(), "refresh timer armed",
		"subject", claims.Subject, "fires_in", delay)
}

func (s *Scheduler) fire() {
	s.mu.Lock()
	s.timer = nil
	s.mu.Unlock()
	s.refresh()
}

// Disarm cancels any pending timer. Safe to call when none is pending.
func (s *Scheduler) Disarm() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.disarmLocked()
}

func (s *Scheduler) disarmLocked() {
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
}

// Armed reports whether a timer is currently pending.
func (s *Scheduler) Armed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.timer != nil
}
