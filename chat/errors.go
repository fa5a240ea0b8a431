package chat

import "errors"

var (
	// ErrAuthenticationFailed rejects a connection whose credential the
	// identity provider refused. Terminal for the connection.
	ErrAuthenticationFailed = errors.New("authentication failed")

	// ErrInvalidRecipient rejects a send where sender and receiver are the
	// same user, or the receiver id is empty.
	ErrInvalidRecipient = errors.New("invalid recipient")

	// ErrInvalidKind rejects a send with an unknown content kind.
	ErrInvalidKind = errors.New("invalid content kind")

	// ErrEmptyContent rejects a send with no content.
	ErrEmptyContent = errors.New("empty content")

	// ErrStoreUnavailable reports that the durable store could not serve the
	// operation. No partial state exists: persistence happens before any
	// delivery.
	ErrStoreUnavailable = errors.New("store unavailable")

	// ErrNotAuthorized rejects a read-receipt attempt on a message that is
	// not addressed to the caller.
	ErrNotAuthorized = errors.New("not authorized")

	// ErrNotFound reports a reference to a nonexistent message or user.
	ErrNotFound = errors.New("not found")
)
