// Package session owns the bearer token lifecycle for the paperchat client:
// durable persistence across two storage surfaces, unverified claim decoding,
// proactive refresh scheduling, and the authentication state machine that is
// the single source of truth for "is a user logged in".
package session

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/dkomarov/paperchat/internal/common"
)

// Token is the bearer credential envelope returned by the auth endpoints.
type Token struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
}

// Claims are the decoded, unverified token claims the client cares about.
type Claims struct {
	// Subject is the username the token was issued for.
	Subject string

	// ExpiresAt is the token expiry in UTC.
	ExpiresAt time.Time
}

// Expired reports whether the claims are expired at the given instant.
// The boundary is a closed lower bound: now == ExpiresAt counts as expired.
func (c *Claims) Expired(now time.Time) bool {
	return !now.Before(c.ExpiresAt)
}

// TimeToExpiry returns the remaining lifetime at the given instant.
// Negative for already-expired claims.
func (c *Claims) TimeToExpiry(now time.Time) time.Duration {
	return c.ExpiresAt.Sub(now)
}

// Decode extracts the subject and expiry from a bearer token without
// verifying its signature; verification is the server's job. A token that is
// not structurally a JWT, or that lacks a subject or expiry claim, yields
// common.ErrMalformedSession, distinct from a well-formed but expired token,
// which callers detect via Claims.Expired.
func Decode(raw string) (*Claims, error) {
	if raw == "" {
		return nil, common.ErrMalformedSession
	}

	var rc jwt.RegisteredClaims
	if _, _, err := jwt.NewParser().ParseUnverified(raw, &rc); err != nil {
		return nil, fmt.Errorf("%w: %w", common.ErrMalformedSession, err)
	}
	if rc.Subject == "" || rc.ExpiresAt == nil {
		return nil, fmt.Errorf("%w: missing sub or exp claim", common.ErrMalformedSession)
	}

	return &Claims{
		Subject:   rc.Subject,
		ExpiresAt: rc.ExpiresAt.Time.UTC(),
	}, nil
}
