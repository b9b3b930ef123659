package sales

import (
	"context"

	"github.com/google/uuid"
)

// SessionStore holds in-progress bills until they are finalized or cancelled.
// Entries idle for longer than the store's TTL are dropped.
type SessionStore interface {
	// Put stores a copy of the bill and refreshes its TTL
	Put(ctx context.Context, bill *Bill) error

	// Get returns a copy of the bill; ok is false when no session exists
	Get(ctx context.Context, id uuid.UUID) (bill *Bill, ok bool, err error)

	// Delete removes the session. Deleting a missing session is not an error.
	Delete(ctx context.Context, id uuid.UUID) error

	// List returns every live session
	List(ctx context.Context) ([]*Bill, error)
}
