package chat

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/hushwire/hushwire/internal/identity"
)

// Registry maps an unordered pair of identities to exactly one canonical
// session record.
type Registry struct {
	store     Store
	directory identity.Directory
	newID     func() string
	now       func() time.Time
}

// NewRegistry creates a session registry.
func NewRegistry(store Store, directory identity.Directory) *Registry {
	return &Registry{
		store:     store,
		directory: directory,
		newID:     uuid.NewString,
		now:       time.Now,
	}
}

// canonicalPair orders an identity pair so that low < high. The pair is
// unordered from the caller's perspective; storage order is fixed to
// guarantee uniqueness.
func canonicalPair(a, b int64) (int64, int64) {
	if a < b {
		return a, b
	}
	return b, a
}

func (r *Registry) validatePair(ctx context.Context, a, b int64) error {
	if a == b {
		return ErrSelfSession
	}
	if _, err := r.directory.Lookup(ctx, a); err != nil {
		return err
	}
	if _, err := r.directory.Lookup(ctx, b); err != nil {
		return err
	}
	return nil
}

// GetOrCreate returns the canonical session for the identity pair, creating
// it on first contact. Safe under concurrent first-contact from both peers:
// the insert is a no-op on conflict and the winner's row is re-read.
func (r *Registry) GetOrCreate(ctx context.Context, a, b int64) (Session, error) {
	if err := r.validatePair(ctx, a, b); err != nil {
		return Session{}, err
	}

	low, high := canonicalPair(a, b)

	session, err := r.store.GetSessionByPair(ctx, low, high)
	if err == nil {
		return session, nil
	}
	if !errors.Is(err, ErrSessionNotFound) {
		return Session{}, err
	}

	if err := r.store.InsertSessionIfAbsent(ctx, r.newID(), low, high, r.now()); err != nil {
		return Session{}, err
	}
	return r.store.GetSessionByPair(ctx, low, high)
}

// Find returns the canonical session for the identity pair without creating
// one. Returns ErrSessionNotFound when the pair has never talked.
func (r *Registry) Find(ctx context.Context, a, b int64) (Session, error) {
	if err := r.validatePair(ctx, a, b); err != nil {
		return Session{}, err
	}
	low, high := canonicalPair(a, b)
	return r.store.GetSessionByPair(ctx, low, high)
}
