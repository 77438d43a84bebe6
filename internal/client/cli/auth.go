package cli

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dkomarov/paperchat/internal/client/session"
	"github.com/dkomarov/paperchat/internal/common"
)

// getSimpleText and getPassword are indirections used to facilitate testing.
// They point to interactive input helpers and can be swapped in tests.
var getSimpleText = GetSimpleText
var getPassword = GetPassword

// slowHintAfter is how long a credential exchange may run before the user
// sees a progress hint.
const slowHintAfter = 3 * time.Second

// Register prompts for a username, optional email, and password, and creates
// a new account. On success the session is established immediately.
func (a *App) Register(ctx context.Context) error {
	username, err := getSimpleText(a.reader, "Choose a username", a.out)
	if err != nil {
		return err
	}
	emailText, err := getSimpleText(a.reader, "Email (optional, Enter to skip)", a.out)
	if err != nil {
		return err
	}
	var email *string
	if emailText != "" {
		email = &emailText
	}
	password, err := getPassword(a.out)
	if err != nil {
		return err
	}

	result, err := a.withSlowHint(func() (*session.AuthResult, error) {
		return a.manager.Register(ctx, username, email, password)
	})
	return a.reportAuthOutcome(result, err)
}

// Login prompts for credentials and authenticates against the server.
func (a *App) Login(ctx context.Context) error {
	username, err := getSimpleText(a.reader, "Enter username", a.out)
	if err != nil {
		return err
	}
	password, err := getPassword(a.out)
	if err != nil {
		return err
	}

	result, err := a.withSlowHint(func() (*session.AuthResult, error) {
		return a.manager.Login(ctx, username, password)
	})
	return a.reportAuthOutcome(result, err)
}

// withSlowHint runs the exchange and prints a hint when it takes longer than
// expected, so a slow server does not look like a hang.
func (a *App) withSlowHint(exchange func() (*session.AuthResult, error)) (*session.AuthResult, error) {
	type outcome struct {
		result *session.AuthResult
		err    error
	}
	done := make(chan outcome, 1)
	go func() {
		r, err := exchange()
		done <- outcome{result: r, err: err}
	}()

	select {
	case o := <-done:
		return o.result, o.err
	case <-time.After(slowHintAfter):
		fmt.Fprintln(a.out, "Signing in is taking longer than expected, hang on...")
		o := <-done
		return o.result, o.err
	}
}

// reportAuthOutcome translates the tagged auth errors into the messages the
// user should see: wrong credentials, network problems, and the partial
// success case are all distinct.
func (a *App) reportAuthOutcome(result *session.AuthResult, err error) error {
	switch {
	case err == nil && result != nil && result.Partial:
		fmt.Fprintf(a.out, "Signed in as %s, but your profile could not be loaded (server unreachable). It will be retried automatically.\n", result.Profile.Username)
		return nil
	case err == nil:
		fmt.Fprintf(a.out, "Signed in as %s.\n", result.Profile.Username)
		return nil
	case errors.Is(err, common.ErrInvalidCredentials):
		fmt.Fprintln(a.out, "Wrong username or password.")
		return err
	case errors.Is(err, common.ErrServerUnreachable):
		fmt.Fprintln(a.out, "Could not reach the server. Check your connection and try again.")
		return err
	default:
		fmt.Fprintf(a.out, "Sign-in failed: %v\n", err)
		return err
	}
}

// Logout tears the session down; safe to run when not signed in.
func (a *App) Logout(ctx context.Context) error {
	if err := a.manager.Logout(ctx); err != nil {
		return err
	}
	fmt.Fprintln(a.out, "Signed out.")
	return nil
}

// Whoami prints the cached profile.
func (a *App) Whoami(ctx context.Context) error {
	p := a.manager.Profile()
	if p == nil {
		fmt.Fprintln(a.out, "Not signed in.")
		return nil
	}
	email := "-"
	if p.Email != nil {
		email = *p.Email
	}
	fmt.Fprintf(a.out, "Username: %s\nEmail: %s\nActive: %t\nProvider API key set: %t\n",
		p.Username, email, p.IsActive, p.HasProviderAPIKey)
	if p.Synthesized {
		fmt.Fprintln(a.out, "(profile not yet confirmed by the server)")
	}
	return nil
}

// SetAPIKey stores the chat-provider API key on the account.
func (a *App) SetAPIKey(ctx context.Context) error {
	key, err := getSimpleText(a.reader, "Enter the provider API key", a.out)
	if err != nil {
		return err
	}
	user, err := a.api.SetAPIKey(ctx, key)
	if err != nil {
		fmt.Fprintf(a.out, "Could not store the API key: %v\n", err)
		return err
	}
	fmt.Fprintf(a.out, "API key stored for %s.\n", user.Username)
	return nil
}
