// Package cli provides the interactive paperchat command-line client.
//
// It wires configuration, the local token store, the authenticated API
// client, and an interactive REPL. Typical flow: validate any persisted
// session at startup, then execute user commands.
//
// Key features:
//   - Register / Login / Logout with automatic token refresh
//   - Profile display and chat-provider API key management
//   - Conversation listing and housekeeping
//   - Uploaded document listing
//
// The REPL is started via App.Run(ctx), which blocks until the user exits.
package cli
