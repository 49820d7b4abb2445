// Package store provides the persistence and live-sync backends behind the
// board. Every backend exposes the same contract: five mutating calls plus a
// single standing subscription that pushes a full-replacement snapshot of the
// note set (creation-descending) on every change, or a connection fault.
package store

import (
	"context"
	"sync"

	"github.com/glownotes/glownotes/internal/notes"
)

// Event is one message from a live subscription: a full-replacement snapshot,
// or a connection fault when Err is non-nil.
type Event struct {
	Snapshot []notes.Note
	Err      error
}

// Store is the persistence collaborator. All calls may fail asynchronously
// with an opaque backend error; callers treat every failure identically.
type Store interface {
	// CreateNote persists a new note with both flags unset. The backend
	// assigns the id and the creation instant.
	CreateNote(ctx context.Context, text string) (string, error)

	// UpdateNote applies a partial update; nil patch fields are untouched.
	UpdateNote(ctx context.Context, id string, patch notes.NotePatch) error

	// DeleteNote removes one note by id.
	DeleteNote(ctx context.Context, id string) error

	// BatchDeleteNotes removes the given notes in one atomic operation:
	// from the caller's perspective it either removes them all or none.
	BatchDeleteNotes(ctx context.Context, ids []string) error

	// SubscribeNotes opens the live snapshot feed. The first event carries
	// the current full set. Callers hold at most one subscription and close
	// it at shutdown.
	SubscribeNotes(ctx context.Context) (*Subscription, error)

	// Close releases backend resources.
	Close(ctx context.Context) error
}

// Subscription is a cancellable live snapshot feed.
type Subscription struct {
	events    chan Event
	cancel    func()
	closeOnce sync.Once
}

// NewSubscription wraps an event channel. Backends and test fakes build
// subscriptions with it; consumers only see Events and Close.
func NewSubscription(events chan Event, cancel func()) *Subscription {
	return &Subscription{events: events, cancel: cancel}
}

// Events returns the event channel. It is closed after Close, or after the
// backend reports an unrecoverable fault.
func (s *Subscription) Events() <-chan Event {
	return s.events
}

// Close tears the subscription down. Safe to call more than once, from any
// goroutine.
func (s *Subscription) Close() {
	s.closeOnce.Do(func() {
		if s.cancel != nil {
			s.cancel()
		}
	})
}
