// Package store persists chat sessions and their message records in
// Postgres. The voice gateway writes finalised messages here; the sessions
// REST API reads them back.
//
// The store is optional infrastructure — when no Postgres DSN is configured
// the gateway runs with history-only memory and the sessions API is disabled.
package store

import (
	"context"
	"errors"
	"strings"
	"time"
)

// ErrNotFound is returned when a session ID does not exist.
var ErrNotFound = errors.New("store: session not found")

// DefaultTitle is the title of a freshly created session before auto-titling.
const DefaultTitle = "New Conversation"

// titleMaxLen is where auto-titles are truncated.
const titleMaxLen = 50

// Session is one persisted conversation.
type Session struct {
	ID        string
	Title     string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// SessionSummary is a Session plus its message count, as listed by the API.
type SessionSummary struct {
	Session
	MessageCount int
}

// Message is one persisted chat message.
type Message struct {
	Text      string
	IsUser    bool
	Timestamp time.Time
}

// Store is the persistence interface consumed by the gateway and the
// sessions REST API. Implementations must be safe for concurrent use.
type Store interface {
	// CreateSession creates a new session with a generated ID.
	CreateSession(ctx context.Context) (*Session, error)

	// EnsureSession returns the session with the given ID, creating it if it
	// does not exist. The gateway uses it to resolve client-supplied IDs.
	EnsureSession(ctx context.Context, id string) (*Session, error)

	// ListSessions returns all sessions, newest activity first.
	ListSessions(ctx context.Context) ([]SessionSummary, error)

	// Messages returns a session's messages in chronological order.
	// Returns ErrNotFound for an unknown session.
	Messages(ctx context.Context, sessionID string) ([]Message, error)

	// AddMessage appends a message and bumps the session's updated time.
	AddMessage(ctx context.Context, sessionID, text string, isUser bool) error

	// MessageCount returns the number of messages in a session.
	MessageCount(ctx context.Context, sessionID string) (int, error)

	// SetTitle replaces a session's title.
	SetTitle(ctx context.Context, sessionID, title string) error

	// DeleteSession removes a session and its messages.
	// Returns ErrNotFound for an unknown session.
	DeleteSession(ctx context.Context, sessionID string) error
}

// AutoTitle derives a session title from the first user message: the first
// 50 characters, with an ellipsis when truncated.
func AutoTitle(firstUserMessage string) string {
	r := []rune(strings.TrimSpace(firstUserMessage))
	if len(r) <= titleMaxLen {
		return string(r)
	}
	return strings.TrimSpace(string(r[:titleMaxLen])) + "..."
}
