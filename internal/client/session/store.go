package session

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/dkomarov/paperchat/internal/client/repositories/metadata"
	"github.com/dkomarov/paperchat/internal/common"
	"github.com/dkomarov/paperchat/internal/logging"
)

// Store persists the bearer token across two independent surfaces: the
// cookie file (with an explicit expiry matching the backend token lifetime)
// and the durable sqlite metadata repository. The two are always written and
// cleared together; reads prefer the cookie and fall back to the durable
// surface. A corrupted entry never resurrects: if neither surface parses,
// the store clears both and reports an empty session.
type Store struct {
	cookies  *CookieFile
	durable  metadata.Repository
	lifetime time.Duration
	clock    func() time.Time
	log      logging.Logger
}

type StoreOption func(*Store)

// WithStoreClock injects the wall clock, for tests.
func WithStoreClock(clock func() time.Time) StoreOption {
	return func(s *Store) { s.clock = clock }
}

// WithCookieLifetime overrides the cookie expiry horizon.
func WithCookieLifetime(d time.Duration) StoreOption {
	return func(s *Store) { s.lifetime = d }
}

func NewStore(cookies *CookieFile, durable metadata.Repository, log logging.Logger, opts ...StoreOption) *Store {
	s := &Store{
		cookies:  cookies,
		durable:  durable,
		lifetime: common.DefaultCookieLifetime,
		clock:    time.Now,
		log:      log,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Write persists the token to both surfaces. The cookie carries the raw
// access token with an explicit expiry; the durable surface carries the
// JSON-encoded envelope with no client-side expiry.
func (s *Store) Write(ctx context.Context, tok *Token) error {
	if tok == nil || tok.AccessToken == "" {
		return fmt.Errorf("refusing to store empty token: %w", common.ErrNoSession)
	}

	envelope, err := json.Marshal(tok)
	if err != nil {
		return fmt.Errorf("encode token envelope: %w", err)
	}

	expires := s.clock().Add(s.lifetime)
	if err := s.cookies.Set(common.SessionCookieName, tok.AccessToken, expires); err != nil {
		return fmt.Errorf("write cookie surface: %w", err)
	}
	if err := s.durable.Set(ctx, common.SessionMetadataKey, envelope); err != nil {
		return fmt.Errorf("write durable surface: %w", err)
	}
	return nil
}

// Read returns the stored token, or (nil, nil) when no session is persisted.
func (s *Store) Read(ctx context.Context) (*Token, error) {
	now := s.clock()

	value, ok, cookieErr := s.cookies.Get(common.SessionCookieName, now)
	if cookieErr == nil && ok {
		return &Token{AccessToken: value, TokenType: "bearer"}, nil
	}
	if cookieErr != nil {
		s.log.Warn(ctx, "cookie surface unreadable, falling back to durable store", "error", cookieErr)
	}

	envelope, err := s.durable.Get(ctx, common.SessionMetadataKey)
	if err != nil {
		return nil, fmt.Errorf("read durable surface: %w", err)
	}
	if envelope == nil {
		// Nothing stored. Self-heal only when the cookie side was corrupt.
		if cookieErr != nil {
			_ = s.Clear(ctx)
		}
		return nil, nil
	}

	var tok Token
	if err := json.Unmarshal(envelope, &tok); err != nil || tok.AccessToken == "" {
		s.log.Warn(ctx, "durable surface unparsable, clearing both surfaces", "error", err)
		if clearErr := s.Clear(ctx); clearErr != nil {
			return nil, fmt.Errorf("self-heal clear: %w", clearErr)
		}
		return nil, nil
	}
	return &tok, nil
}

// Clear removes the token from both surfaces, including any stale cookie
// variants matching the session key prefix. Idempotent: a second call finds
// nothing and changes nothing.
func (s *Store) Clear(ctx context.Context) error {
	cookieErr := s.cookies.DeletePrefix(common.SessionCookieName)
	durableErr := s.durable.Delete(ctx, common.SessionMetadataKey)

	if cookieErr != nil {
		return fmt.Errorf("clear cookie surface: %w", cookieErr)
	}
	if durableErr != nil {
		return fmt.Errorf("clear durable surface: %w", durableErr)
	}
	return nil
}
