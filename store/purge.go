package store

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/inboxkit/mailstore/columns"
)

// PurgeIndex tracks soft-deleted messages awaiting physical purge. It
// shares the label index table under a reserved row qualifier; entries
// are named by zero-padded deletion timestamp so a time-bounded purge is
// an anchored slice read.
type PurgeIndex struct {
	cols columns.Store
}

// NewPurgeIndex creates a purge index over cols.
func NewPurgeIndex(cols columns.Store) *PurgeIndex {
	return &PurgeIndex{cols: cols}
}

// purgeEntryName orders entries by deletion time. The timestamp is padded
// to fixed width so byte order matches numeric order; the id suffix keeps
// names unique when deletions share a nanosecond.
func purgeEntryName(deletedAt time.Time, id string) string {
	return fmt.Sprintf("%020d%s%s", deletedAt.UnixNano(), keySeparator, id)
}

// purgeEntryID recovers the message id from an entry name.
func purgeEntryID(name string) (string, bool) {
	i := strings.Index(name, keySeparator)
	if i < 0 || i+1 == len(name) {
		return "", false
	}
	return name[i+1:], true
}

// Put queues purge entries for the given ids, stamped with deletedAt.
func (p *PurgeIndex) Put(batch *columns.Batch, mailbox Mailbox, deletedAt time.Time, ids []string) {
	cols := make([]columns.Column, len(ids))
	for i, id := range ids {
		cols[i] = columns.Column{Name: purgeEntryName(deletedAt, id), Value: []byte(id)}
	}
	batch.Insert(TableLabelIndex, purgeIndexKey(mailbox), cols...)
}

// Entry is one pending-purge record.
type Entry struct {
	// Name is the raw index entry name, used to remove the entry after
	// the purge completes.
	Name string
	// ID is the message's storage id.
	ID string
}

// Page returns up to count entries deleted strictly before olderThan, in
// deletion order, starting after the entry named start.
func (p *PurgeIndex) Page(ctx context.Context, mailbox Mailbox, olderThan time.Time, start string, count int) ([]Entry, error) {
	cols, err := p.cols.Slice(ctx, TableLabelIndex, purgeIndexKey(mailbox), start, count, false)
	if err != nil {
		return nil, err
	}
	cutoff := fmt.Sprintf("%020d", olderThan.UnixNano())
	entries := make([]Entry, 0, len(cols))
	for _, c := range cols {
		if c.Name >= cutoff {
			break
		}
		id, ok := purgeEntryID(c.Name)
		if !ok {
			continue
		}
		entries = append(entries, Entry{Name: c.Name, ID: id})
	}
	return entries, nil
}

// PendingIDs returns the id set of every entry in the purge index.
// Scrub uses it to exclude soft-deleted messages from recomputation.
func (p *PurgeIndex) PendingIDs(ctx context.Context, mailbox Mailbox) (map[string]struct{}, error) {
	out := make(map[string]struct{})
	start := ""
	const page = 1000
	for {
		cols, err := p.cols.Slice(ctx, TableLabelIndex, purgeIndexKey(mailbox), start, page, false)
		if err != nil {
			return nil, err
		}
		for _, c := range cols {
			if id, ok := purgeEntryID(c.Name); ok {
				out[id] = struct{}{}
			}
		}
		if len(cols) < page {
			return out, nil
		}
		start = cols[len(cols)-1].Name
	}
}

// Remove queues removal of processed entries.
func (p *PurgeIndex) Remove(batch *columns.Batch, mailbox Mailbox, entries []Entry) {
	names := make([]string, len(entries))
	for i, e := range entries {
		names[i] = e.Name
	}
	batch.Delete(TableLabelIndex, purgeIndexKey(mailbox), names...)
}

// DeleteIndex queues removal of the whole purge row.
func (p *PurgeIndex) DeleteIndex(batch *columns.Batch, mailbox Mailbox) {
	batch.DeleteRow(TableLabelIndex, purgeIndexKey(mailbox))
}
