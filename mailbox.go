package mailstore

import (
	"context"
	"fmt"
	"io"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/inboxkit/mailstore/store"
)

// Type aliases for commonly used store types. These let callers work with
// the root package without importing store directly.
type (
	Message       = store.Message
	Modification  = store.Modification
	Label         = store.Label
	LabelMap      = store.LabelMap
	LabelCounters = store.LabelCounters
	Marker        = store.Marker
	Quota         = store.Quota
)

// Re-exported marker constants.
const (
	MarkerSeen      = store.MarkerSeen
	MarkerReplied   = store.MarkerReplied
	MarkerForwarded = store.MarkerForwarded
)

// Re-exported reserved label ids.
const (
	LabelAllMails = store.LabelAllMails
	LabelInbox    = store.LabelInbox
	LabelDrafts   = store.LabelDrafts
	LabelSent     = store.LabelSent
	LabelTrash    = store.LabelTrash
	LabelSpam     = store.LabelSpam
)

// ListOptions controls a message listing.
type ListOptions struct {
	// Start anchors the page: listing begins at the first id past it.
	// Empty starts at the edge of the index.
	Start string
	// Count bounds the page size; zero uses the service default.
	Count int
	// Reverse lists newest-first.
	Reverse bool
	// IncludeBody populates plain and HTML bodies on returned messages.
	IncludeBody bool
}

// Entry pairs a storage id with its message.
type Entry struct {
	ID      string
	Message *store.Message
}

// MessageList is one page of a label listing.
type MessageList struct {
	// Messages holds the page in index order.
	Messages []Entry
	// Next is the cursor for the following page; empty when the listing
	// is exhausted.
	Next string
}

// ScrubReport holds recomputed per-label counters derived from metadata
// truth, keyed by label id.
type ScrubReport map[int]store.LabelCounters

// MessageReader provides single message retrieval.
type MessageReader interface {
	// Get returns a message with bodies populated.
	Get(ctx context.Context, id string) (*store.Message, error)
	// GetRaw streams the message's original raw content.
	GetRaw(ctx context.Context, id string) (io.ReadCloser, error)
}

// MessageLister provides paginated listing by label.
type MessageLister interface {
	List(ctx context.Context, labelID int, opts ListOptions) (*MessageList, error)
}

// MessageWriter provides message ingestion and mutation.
type MessageWriter interface {
	// Put stores a new message, returning its storage id. raw may be nil
	// for messages without retained content.
	Put(ctx context.Context, msg *store.Message, raw io.Reader) (string, error)
	// Modify applies label and marker changes to a set of messages.
	Modify(ctx context.Context, ids []string, mod store.Modification) error
	// Delete soft-deletes messages: they leave every label listing but
	// remain recoverable until purged.
	Delete(ctx context.Context, ids ...string) error
}

// Maintenance provides the background upkeep operations.
type Maintenance interface {
	// Purge physically removes soft-deleted messages older than cutoff.
	// A zero cutoff uses the configured purge age.
	Purge(ctx context.Context, cutoff time.Time) (int, error)
	// Scrub recomputes per-label counters from metadata truth without
	// committing them.
	Scrub(ctx context.Context) (ScrubReport, error)
	// RebuildIndexes re-derives every label index from metadata truth.
	RebuildIndexes(ctx context.Context) error
	// RepairCounters runs a scrub and commits the recomputed counters.
	RepairCounters(ctx context.Context) error
	// DeleteAccount removes every trace of the mailbox.
	DeleteAccount(ctx context.Context) error
}

// LabelManager provides label registry operations.
type LabelManager interface {
	// Labels returns the mailbox's labels, optionally with counters.
	Labels(ctx context.Context, withCounters bool) (store.LabelMap, error)
	// AddLabel creates a user label with a fresh random id.
	AddLabel(ctx context.Context, name string) (*store.Label, error)
	// RenameLabel changes a user label's display name.
	RenameLabel(ctx context.Context, id int, name string) error
	// DeleteLabel removes a user label, untagging its messages.
	DeleteLabel(ctx context.Context, id int) error
}

// QuotaManager provides quota reads and overrides.
type QuotaManager interface {
	// Quota returns the effective limits for this mailbox.
	Quota(ctx context.Context) (store.Quota, error)
	// SetQuota persists per-mailbox overrides.
	SetQuota(ctx context.Context, q store.Quota) error
	// Usage returns the mailbox's live usage (the all-mails counters).
	Usage(ctx context.Context) (store.LabelCounters, error)
}

// Mailbox is a client scoped to a single mailbox.
//
// Composed of:
//   - MessageReader: Get, GetRaw
//   - MessageLister: List
//   - MessageWriter: Put, Modify, Delete
//   - Maintenance: Purge, Scrub, RebuildIndexes, RepairCounters, DeleteAccount
//   - LabelManager: Labels, AddLabel, RenameLabel, DeleteLabel
//   - QuotaManager: Quota, SetQuota, Usage
type Mailbox interface {
	// Address returns the normalized mailbox address.
	Address() string

	MessageReader
	MessageLister
	MessageWriter
	Maintenance
	LabelManager
	QuotaManager
}

// mailboxClient is the default Mailbox implementation.
type mailboxClient struct {
	service *service
	mbox    store.Mailbox
	invalid error // non-nil when the address failed validation
}

var _ Mailbox = (*mailboxClient)(nil)

// Address returns the normalized mailbox address.
func (m *mailboxClient) Address() string {
	return m.mbox.ID()
}

// checkAccess gates every operation on a valid address and a connected
// service.
func (m *mailboxClient) checkAccess() error {
	if m.invalid != nil {
		return fmt.Errorf("%w: %w", ErrInvalidMailbox, m.invalid)
	}
	if atomic.LoadInt32(&m.service.state) != stateConnected {
		return ErrNotConnected
	}
	return nil
}

// NewMessageID returns a fresh time-ordered storage id. Version 7 UUIDs
// embed a millisecond timestamp in their high bits, so ids and label
// index rows sort by creation time.
func NewMessageID() (string, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return "", err
	}
	return id.String(), nil
}

// validateMessageID rejects ids that were not produced by NewMessageID.
func validateMessageID(id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return fmt.Errorf("%w: %q", ErrInvalidID, id)
	}
	return nil
}
