package mailstore

import (
	"errors"
	"fmt"

	"github.com/inboxkit/mailstore/store"
)

// Sentinel errors for the mailstore package.
// Use errors.Is() to check for these errors.
//
// Errors wrap the corresponding store-level sentinels where one exists,
// so errors.Is(err, mailstore.ErrNotFound) matches both layers.
var (
	// ErrNotFound is returned when a message has no metadata record.
	// Wraps store.ErrNotFound for consistent error checking.
	ErrNotFound = fmt.Errorf("mailstore: %w", store.ErrNotFound)

	// ErrInvalidMailbox is returned when a mailbox address fails validation.
	// Wraps store.ErrInvalidMailbox for consistent error checking.
	ErrInvalidMailbox = fmt.Errorf("mailstore: %w", store.ErrInvalidMailbox)

	// ErrInvalidID is returned when a message id is not a valid UUID.
	// Wraps store.ErrInvalidID for consistent error checking.
	ErrInvalidID = fmt.Errorf("mailstore: %w", store.ErrInvalidID)

	// ErrColumnStoreRequired is returned when no column store is configured.
	ErrColumnStoreRequired = errors.New("mailstore: column store is required")

	// ErrNotConnected is returned when operations are attempted before Connect().
	ErrNotConnected = errors.New("mailstore: not connected")

	// ErrAlreadyConnected is returned when Connect() is called twice.
	ErrAlreadyConnected = errors.New("mailstore: already connected")

	// ErrOverQuota is returned when a write would exceed the mailbox quota.
	ErrOverQuota = errors.New("mailstore: over quota")

	// ErrAllMailsRequired is returned when a modification would remove the
	// all-mails label from a live message.
	ErrAllMailsRequired = errors.New("mailstore: cannot remove all-mails label")

	// ErrNoContent is returned by GetRaw for messages stored without raw
	// content.
	ErrNoContent = errors.New("mailstore: message has no raw content")
)

// QuotaError reports which limit a rejected write ran into.
type QuotaError struct {
	// Bytes is true when the byte quota was the binding limit, false when
	// the message-count quota was.
	Bytes bool
	// Used is the current usage against the binding limit.
	Used int64
	// Limit is the configured ceiling.
	Limit int64
}

func (e *QuotaError) Error() string {
	kind := "messages"
	if e.Bytes {
		kind = "bytes"
	}
	return fmt.Sprintf("mailstore: over quota: %d of %d %s used", e.Used, e.Limit, kind)
}

func (e *QuotaError) Is(target error) bool {
	return target == ErrOverQuota
}

// StorageError wraps a backing-store failure with the operation and row
// key it happened on.
type StorageError struct {
	Op  string
	Key string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("mailstore: %s %s: %s", e.Op, e.Key, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}
