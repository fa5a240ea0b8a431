package chat

import (
	"context"
	"time"
)

// MessageStore is the persistence contract consumed by the core. Backends
// wrap their own failures in ErrStoreUnavailable and report missing rows
// with ErrNotFound.
type MessageStore interface {
	// Insert persists a message and assigns its id. The caller fills every
	// other field.
	Insert(ctx context.Context, m *Message) (*Message, error)

	// Get returns the message with the given id, or ErrNotFound.
	Get(ctx context.Context, id string) (*Message, error)

	// QueryByPair returns every message between the two users, ascending by
	// create time. No messages is an empty slice, not an error.
	QueryByPair(ctx context.Context, userA, userB string) ([]*Message, error)

	// QueryAllForUser returns every message sent or received by the user,
	// descending by create time.
	QueryAllForUser(ctx context.Context, userID string) ([]*Message, error)

	// MarkRead sets the read flag of a message. It is idempotent: marking an
	// already-read message succeeds with changed=false and leaves the first
	// read time in place. Missing id is ErrNotFound.
	MarkRead(ctx context.Context, id string, readAt time.Time) (m *Message, changed bool, err error)
}

// UserDirectory resolves partner profiles for conversation summaries.
// Missing users are ErrNotFound.
type UserDirectory interface {
	GetUser(ctx context.Context, id string) (*User, error)
}

// Publisher receives every durably committed message, best effort. Publish
// failures never surface to the sender.
type Publisher interface {
	Publish(ctx context.Context, m *Message) error
}
