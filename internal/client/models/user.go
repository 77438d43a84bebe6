// Package models defines client-side data models used by the paperchat CLI.
package models

import "time"

// User is the profile returned by the backend for the authenticated account.
type User struct {
	// ID is the server-assigned numeric identifier. Zero for synthesized
	// profiles; do not key on it until a full profile has been fetched.
	ID int64 `json:"id"`

	// Username is the login name, also the token subject.
	Username string `json:"username"`

	// Email is optional; the backend accepts accounts without one.
	Email *string `json:"email"`

	// IsActive mirrors the server-side account flag.
	IsActive bool `json:"is_active"`

	// HasProviderAPIKey reports whether a chat-provider API key is stored
	// for this account.
	HasProviderAPIKey bool `json:"has_openai_api_key"`

	// CreatedAt and UpdatedAt are server timestamps in UTC.
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt *time.Time `json:"updated_at"`

	// Synthesized marks a minimal profile built locally after a partial
	// login success (token obtained, profile fetch unreachable). Only
	// Username is populated in that case.
	Synthesized bool `json:"-"`
}

// MinimalUser builds the placeholder profile for a partial login success.
func MinimalUser(username string) *User {
	return &User{Username: username, IsActive: true, Synthesized: true}
}
