package chat

import (
	"context"
	"time"
)

// Store is the persistence surface the chat core depends on. Implementations
// must keep the canonical-pair uniqueness constraint and the single-shot
// destroy transition.
type Store interface {
	// GetSessionByPair returns the session for a canonical (low, high) pair.
	// Returns ErrSessionNotFound when no session exists.
	GetSessionByPair(ctx context.Context, lowID, highID int64) (Session, error)

	// InsertSessionIfAbsent inserts a session row for the canonical pair,
	// doing nothing on conflict. Concurrent first-contact from both peers
	// resolves through the uniqueness constraint.
	InsertSessionIfAbsent(ctx context.Context, id string, lowID, highID int64, now time.Time) error

	// TouchSession bumps the session's last-activity timestamp.
	TouchSession(ctx context.Context, sessionID string, now time.Time) error

	// InsertMessage persists a message and returns its id.
	InsertMessage(ctx context.Context, m *Message) (int64, error)

	// GetMessage loads one message. Returns ErrMessageNotFound for unknown ids.
	GetMessage(ctx context.Context, id int64) (Message, error)

	// ListMessagesAfter returns messages in a session with id > afterID,
	// ordered by id ascending, up to limit.
	ListMessagesAfter(ctx context.Context, sessionID string, afterID int64, limit int) ([]Message, error)

	// MarkMessageRead sets the read flag and timestamp if the message is
	// unread. Returns whether this call performed the transition.
	MarkMessageRead(ctx context.Context, id int64, at time.Time) (bool, error)

	// DestroyMessage clears the payload and sets the destroy timestamp if
	// unset. Returns whether this call performed the transition; the guard
	// makes concurrent read-trigger and sweep-trigger destruction safe.
	DestroyMessage(ctx context.Context, id int64, at time.Time) (bool, error)

	// UnreadCount counts unread messages addressed to the identity across
	// all sessions.
	UnreadCount(ctx context.Context, userID int64) (int, error)

	// SessionUnreadCount counts unread messages addressed to the identity
	// within one session.
	SessionUnreadCount(ctx context.Context, sessionID string, userID int64) (int, error)

	// MarkAllRead marks every unread message addressed to the identity as
	// read and destroys burn-after-reading payloads, all in one transaction.
	// Returns the affected messages in their post-transition state, oldest
	// first.
	MarkAllRead(ctx context.Context, userID int64, at time.Time) ([]Message, error)

	// ListRecentSessions returns the identity's active sessions, most
	// recently updated first.
	ListRecentSessions(ctx context.Context, userID int64, limit int) ([]Session, error)

	// LastMessage returns the newest message of a session. Returns
	// ErrMessageNotFound for empty sessions.
	LastMessage(ctx context.Context, sessionID string) (Message, error)

	// ListDueScheduled returns messages whose scheduled-destroy time has
	// elapsed and whose destroy timestamp is unset.
	ListDueScheduled(ctx context.Context, now time.Time, limit int) ([]Message, error)
}
