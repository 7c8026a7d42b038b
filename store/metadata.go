package store

import (
	"context"

	"github.com/inboxkit/mailstore/columns"
)

// MetadataStore reads and writes per-message attribute records. One row
// per message, keyed by mailbox and storage id.
type MetadataStore struct {
	cols columns.Store
}

// NewMetadataStore creates a metadata store over cols.
func NewMetadataStore(cols columns.Store) *MetadataStore {
	return &MetadataStore{cols: cols}
}

// Persist queues the full attribute record of a message into batch.
func (s *MetadataStore) Persist(batch *columns.Batch, mailbox Mailbox, id string, m *Message) error {
	cols, err := marshalMessage(m)
	if err != nil {
		return err
	}
	batch.Insert(TableMetadata, metadataKey(mailbox, id), cols...)
	return nil
}

// PersistLabels queues presence columns adding the given labels.
func (s *MetadataStore) PersistLabels(batch *columns.Batch, mailbox Mailbox, id string, labelIDs []int) {
	cols := make([]columns.Column, len(labelIDs))
	for i, labelID := range labelIDs {
		cols[i] = columns.Column{Name: labelAttr(labelID)}
	}
	batch.Insert(TableMetadata, metadataKey(mailbox, id), cols...)
}

// DeleteLabels queues removal of the given label presence columns.
func (s *MetadataStore) DeleteLabels(batch *columns.Batch, mailbox Mailbox, id string, labelIDs []int) {
	names := make([]string, len(labelIDs))
	for i, labelID := range labelIDs {
		names[i] = labelAttr(labelID)
	}
	batch.Delete(TableMetadata, metadataKey(mailbox, id), names...)
}

// PersistMarkers queues presence columns adding the given markers.
func (s *MetadataStore) PersistMarkers(batch *columns.Batch, mailbox Mailbox, id string, markers []Marker) {
	cols := make([]columns.Column, len(markers))
	for i, marker := range markers {
		cols[i] = columns.Column{Name: markerAttr(marker)}
	}
	batch.Insert(TableMetadata, metadataKey(mailbox, id), cols...)
}

// DeleteMarkers queues removal of the given marker presence columns.
func (s *MetadataStore) DeleteMarkers(batch *columns.Batch, mailbox Mailbox, id string, markers []Marker) {
	names := make([]string, len(markers))
	for i, marker := range markers {
		names[i] = markerAttr(marker)
	}
	batch.Delete(TableMetadata, metadataKey(mailbox, id), names...)
}

// Fetch returns the attribute records for the given ids. Missing ids are
// absent from the result, not errors: concurrent deletes make missing
// rows routine.
func (s *MetadataStore) Fetch(ctx context.Context, mailbox Mailbox, ids []string, includeBody bool) (map[string]*Message, error) {
	out := make(map[string]*Message, len(ids))
	for _, id := range ids {
		cols, err := s.cols.Row(ctx, TableMetadata, metadataKey(mailbox, id))
		if err != nil {
			return nil, err
		}
		if len(cols) == 0 {
			continue
		}
		m, err := unmarshalMessage(cols, includeBody)
		if err != nil {
			return nil, err
		}
		out[id] = m
	}
	return out, nil
}

// Scan walks every metadata row of a mailbox in id order, invoking fn per
// message. fn returning a non-nil error stops the walk. pageSize bounds
// each key fetch.
func (s *MetadataStore) Scan(ctx context.Context, mailbox Mailbox, pageSize int, fn func(id string, m *Message) error) error {
	prefix := mailbox.ID() + keySeparator
	start := ""
	for {
		keys, err := s.cols.Keys(ctx, TableMetadata, prefix, start, pageSize)
		if err != nil {
			return err
		}
		for _, key := range keys {
			_, id, ok := splitMetadataKey(key)
			if !ok {
				continue
			}
			cols, err := s.cols.Row(ctx, TableMetadata, key)
			if err != nil {
				return err
			}
			if len(cols) == 0 {
				continue
			}
			m, err := unmarshalMessage(cols, false)
			if err != nil {
				return err
			}
			if err := fn(id, m); err != nil {
				return err
			}
		}
		if len(keys) < pageSize {
			return nil
		}
		start = keys[len(keys)-1]
	}
}

// DeleteMessages queues removal of whole attribute records.
func (s *MetadataStore) DeleteMessages(batch *columns.Batch, mailbox Mailbox, ids []string) {
	for _, id := range ids {
		batch.DeleteRow(TableMetadata, metadataKey(mailbox, id))
	}
}
