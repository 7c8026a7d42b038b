package store

import "errors"

// Sentinel errors for the store package.
var (
	// ErrNotFound is returned when a message has no metadata record.
	// After a purge this is the expected outcome of a fetch; callers
	// translate it to "gone" semantics.
	ErrNotFound = errors.New("store: not found")

	// ErrInvalidMailbox is returned when a mailbox address fails validation.
	ErrInvalidMailbox = errors.New("store: invalid mailbox address")

	// ErrInvalidID is returned when an invalid message ID is provided.
	ErrInvalidID = errors.New("store: invalid message id")

	// ErrBadMarker is returned when a persisted marker ordinal does not map
	// to a known marker. Unknown ordinals are a deserialization error, not
	// silently coerced to any marker.
	ErrBadMarker = errors.New("store: unknown marker")

	// ErrBadLabel is returned when a persisted label attribute cannot be parsed.
	ErrBadLabel = errors.New("store: malformed label attribute")

	// ErrReservedLabel is returned when renaming, deleting, or otherwise
	// structurally mutating a reserved label.
	ErrReservedLabel = errors.New("store: reserved label")

	// ErrLabelNotFound is returned when an operation names a label id that
	// does not exist in the mailbox.
	ErrLabelNotFound = errors.New("store: label not found")

	// ErrLabelExists is returned when a label name collides
	// (case-insensitively) with an existing label.
	ErrLabelExists = errors.New("store: label already exists")

	// ErrInvalidLabelName is returned for empty, oversized, or malformed
	// label names, including nested names whose top-level segment shadows a
	// reserved label.
	ErrInvalidLabelName = errors.New("store: invalid label name")

	// ErrLabelIDSpace is returned when random label id generation exhausts
	// its collision-retry budget.
	ErrLabelIDSpace = errors.New("store: no free label id")
)

// IsNotFound reports whether err is a missing-record condition.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
