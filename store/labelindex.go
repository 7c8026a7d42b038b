package store

import (
	"context"

	"github.com/inboxkit/mailstore/columns"
)

// LabelIndexStore maintains per-label membership indexes. Each (mailbox,
// label) pair owns one row whose column names are member message ids;
// values are empty. Because storage ids are time-ordered and columns sort
// by name, an index row is already a reverse-chronology-capable listing.
type LabelIndexStore struct {
	cols columns.Store
}

// NewLabelIndexStore creates a label index store over cols.
func NewLabelIndexStore(cols columns.Store) *LabelIndexStore {
	return &LabelIndexStore{cols: cols}
}

// Add queues index entries putting id under each label.
func (s *LabelIndexStore) Add(batch *columns.Batch, mailbox Mailbox, id string, labelIDs []int) {
	for _, labelID := range labelIDs {
		batch.Insert(TableLabelIndex, labelIndexKey(mailbox, labelID),
			columns.Column{Name: id})
	}
}

// Remove queues removal of id from each label's index.
func (s *LabelIndexStore) Remove(batch *columns.Batch, mailbox Mailbox, id string, labelIDs []int) {
	for _, labelID := range labelIDs {
		batch.Delete(TableLabelIndex, labelIndexKey(mailbox, labelID), id)
	}
}

// Get returns up to count member ids of a label in id order, starting
// after start ("" anchors at the beginning). With reverse set, iteration
// runs newest-first.
func (s *LabelIndexStore) Get(ctx context.Context, mailbox Mailbox, labelID int, start string, count int, reverse bool) ([]string, error) {
	cols, err := s.cols.Slice(ctx, TableLabelIndex, labelIndexKey(mailbox, labelID), start, count, reverse)
	if err != nil {
		return nil, err
	}
	ids := make([]string, len(cols))
	for i, c := range cols {
		ids[i] = c.Name
	}
	return ids, nil
}

// Contains reports which of the given ids are members of the label.
func (s *LabelIndexStore) Contains(ctx context.Context, mailbox Mailbox, labelID int, ids []string) (map[string]bool, error) {
	values, err := s.cols.Get(ctx, TableLabelIndex, labelIndexKey(mailbox, labelID), ids)
	if err != nil {
		return nil, err
	}
	out := make(map[string]bool, len(ids))
	for _, id := range ids {
		_, out[id] = values[id]
	}
	return out, nil
}

// DeleteIndex queues removal of a label's entire index row.
func (s *LabelIndexStore) DeleteIndex(batch *columns.Batch, mailbox Mailbox, labelID int) {
	batch.DeleteRow(TableLabelIndex, labelIndexKey(mailbox, labelID))
}
