package mailstore

import (
	"context"
	"fmt"
	"io"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/inboxkit/mailstore/columns"
	"github.com/inboxkit/mailstore/retry"
	"github.com/inboxkit/mailstore/store"
)

// blobName builds the globally unique blob name for a message. The id
// comes first so one mailbox's blobs never cluster under one object
// store prefix by accident of addressing.
func blobName(id string, mbox store.Mailbox) string {
	return id + ":" + mbox.ID()
}

// Put stores a new message: quota check, blob write, then one batch for
// metadata, label indexes, and counters. The blob write happens first
// because a blob without metadata is an invisible orphan, while metadata
// pointing at a missing blob is a user-visible read failure.
func (m *mailboxClient) Put(ctx context.Context, msg *store.Message, raw io.Reader) (id string, err error) {
	if err := m.checkAccess(); err != nil {
		return "", err
	}
	if msg == nil {
		return "", fmt.Errorf("%w: nil message", ErrInvalidID)
	}

	s := m.service
	started := time.Now()
	ctx, end := s.otel.startSpan(ctx, "mailstore.put",
		attribute.String("mailbox", m.mbox.ID()))
	defer func() {
		end(err)
		s.otel.recordPut(ctx, time.Since(started), msg.Size, err)
	}()

	if err = s.putSem.Acquire(ctx, 1); err != nil {
		return "", err
	}
	defer s.putSem.Release(1)

	if err = m.checkQuota(ctx, msg.Size); err != nil {
		return "", err
	}

	id, err = NewMessageID()
	if err != nil {
		return "", err
	}

	// Every live message is enumerable through the all-mails index.
	msg.AddLabel(store.LabelAllMails)

	if raw != nil {
		uri, werr := s.blobs.Write(ctx, blobName(id, m.mbox), s.opts.writeProfile, raw, msg.Size)
		if werr != nil {
			err = &StorageError{Op: "put blob", Key: id, Err: werr}
			return "", err
		}
		msg.Location = uri
	}

	batch := columns.NewBatch()
	if err = s.metadata.Persist(batch, m.mbox, id, msg); err != nil {
		m.compensateBlob(ctx, msg)
		return "", err
	}
	s.index.Add(batch, m.mbox, id, msg.Labels())
	for _, labelID := range msg.Labels() {
		s.counters.Queue(batch, m.mbox, labelID, msg.Counters())
	}

	if aerr := s.cols.Apply(ctx, batch); aerr != nil {
		m.compensateBlob(ctx, msg)
		err = &StorageError{Op: "put", Key: id, Err: aerr}
		return "", err
	}

	if perr := s.events.MessageStored.Publish(ctx, MessageStoredEvent{
		Mailbox:   m.mbox.ID(),
		MessageID: id,
		Size:      msg.Size,
		Labels:    msg.Labels(),
		StoredAt:  time.Now().UTC(),
	}); perr != nil {
		s.logger.Warn("failed to publish MessageStored event", "error", perr)
	}

	s.logger.Debug("stored message", "mailbox", m.mbox.ID(), "id", id, "size", msg.Size)
	return id, nil
}

// compensateBlob removes an already-written blob after a failed metadata
// write. Best effort: an orphaned blob wastes space but is otherwise
// unreachable, so failure here is logged, not returned.
func (m *mailboxClient) compensateBlob(ctx context.Context, msg *store.Message) {
	if msg.Location == nil {
		return
	}
	uri := msg.Location
	msg.Location = nil
	err := retry.Do(ctx, retry.Policy{Attempts: 3}, func(ctx context.Context) error {
		return m.service.blobs.Delete(ctx, uri)
	})
	if err != nil {
		m.service.logger.Error("orphaned blob after failed put",
			"mailbox", m.mbox.ID(), "uri", uri.String(), "error", err)
	}
}

// checkQuota rejects the write when it would push usage past the
// effective limits. Per-account overrides win over service defaults;
// a zero limit means unlimited.
func (m *mailboxClient) checkQuota(ctx context.Context, size int64) error {
	s := m.service

	quota, err := s.accounts.Quota(ctx, m.mbox)
	if err != nil {
		return err
	}
	if quota.MaxBytes == 0 {
		quota.MaxBytes = s.opts.quotaBytes
	}
	if quota.MaxMessages == 0 {
		quota.MaxMessages = s.opts.quotaMessages
	}
	if quota.MaxBytes == 0 && quota.MaxMessages == 0 {
		return nil
	}

	usage, err := s.counters.Get(ctx, m.mbox, store.LabelAllMails)
	if err != nil {
		return err
	}
	if quota.MaxBytes > 0 && usage.Bytes+size > quota.MaxBytes {
		return &QuotaError{Bytes: true, Used: usage.Bytes, Limit: quota.MaxBytes}
	}
	if quota.MaxMessages > 0 && usage.Messages+1 > quota.MaxMessages {
		return &QuotaError{Used: usage.Messages, Limit: quota.MaxMessages}
	}
	return nil
}

// Get returns a message with bodies populated.
func (m *mailboxClient) Get(ctx context.Context, id string) (msg *store.Message, err error) {
	if err := m.checkAccess(); err != nil {
		return nil, err
	}
	if err := validateMessageID(id); err != nil {
		return nil, err
	}

	s := m.service
	started := time.Now()
	defer func() { s.otel.recordGet(ctx, time.Since(started), err) }()

	found, err := s.metadata.Fetch(ctx, m.mbox, []string{id}, true)
	if err != nil {
		return nil, err
	}
	msg, ok := found[id]
	if !ok {
		err = fmt.Errorf("%w: %s", ErrNotFound, id)
		return nil, err
	}
	return msg, nil
}

// GetRaw streams the message's original raw content.
func (m *mailboxClient) GetRaw(ctx context.Context, id string) (io.ReadCloser, error) {
	if err := m.checkAccess(); err != nil {
		return nil, err
	}
	if err := validateMessageID(id); err != nil {
		return nil, err
	}

	found, err := m.service.metadata.Fetch(ctx, m.mbox, []string{id}, false)
	if err != nil {
		return nil, err
	}
	msg, ok := found[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if msg.Location == nil {
		return nil, fmt.Errorf("%w: %s", ErrNoContent, id)
	}
	return m.service.blobs.Read(ctx, msg.Location)
}

// List returns one page of a label's messages in index order. Index
// entries whose metadata is gone (a concurrent delete) are skipped, not
// errors.
func (m *mailboxClient) List(ctx context.Context, labelID int, opts ListOptions) (list *MessageList, err error) {
	if err := m.checkAccess(); err != nil {
		return nil, err
	}
	if labelID < 0 {
		return nil, fmt.Errorf("%w: %d", store.ErrLabelNotFound, labelID)
	}

	s := m.service
	count := opts.Count
	if count <= 0 {
		count = s.opts.defaultListCount
	}
	if count > s.opts.maxListCount {
		count = s.opts.maxListCount
	}

	started := time.Now()
	resultCount := 0
	defer func() { s.otel.recordList(ctx, time.Since(started), labelID, resultCount, err) }()

	// One extra id decides whether another page exists.
	ids, err := s.index.Get(ctx, m.mbox, labelID, opts.Start, count+1, opts.Reverse)
	if err != nil {
		return nil, err
	}
	more := len(ids) > count
	if more {
		ids = ids[:count]
	}

	found, err := s.metadata.Fetch(ctx, m.mbox, ids, opts.IncludeBody)
	if err != nil {
		return nil, err
	}

	list = &MessageList{Messages: make([]Entry, 0, len(ids))}
	for _, id := range ids {
		if msg, ok := found[id]; ok {
			list.Messages = append(list.Messages, Entry{ID: id, Message: msg})
		}
	}
	if more && len(ids) > 0 {
		list.Next = ids[len(ids)-1]
	}
	resultCount = len(list.Messages)
	return list, nil
}

// Modify applies label and marker changes to a set of messages. Deltas
// are computed against each message's current state, so re-applying the
// same modification is a no-op for indexes and counters alike.
func (m *mailboxClient) Modify(ctx context.Context, ids []string, mod store.Modification) (err error) {
	if err := m.checkAccess(); err != nil {
		return err
	}
	if mod.IsZero() || len(ids) == 0 {
		return nil
	}
	for _, id := range ids {
		if err := validateMessageID(id); err != nil {
			return err
		}
	}
	for _, labelID := range mod.RemoveLabels {
		if labelID == store.LabelAllMails {
			return ErrAllMailsRequired
		}
	}
	for _, marker := range append(append([]store.Marker(nil), mod.AddMarkers...), mod.RemoveMarkers...) {
		if !marker.Valid() {
			return fmt.Errorf("%w: %d", store.ErrBadMarker, marker)
		}
	}

	s := m.service
	started := time.Now()
	ctx, end := s.otel.startSpan(ctx, "mailstore.modify",
		attribute.String("mailbox", m.mbox.ID()),
		attribute.Int("message_count", len(ids)))
	defer func() {
		end(err)
		s.otel.recordModify(ctx, time.Since(started), len(ids), err)
	}()

	// Labels being attached must exist in the registry; removal of a
	// label that was deleted concurrently is still fine.
	if len(mod.AddLabels) > 0 {
		labels, lerr := s.accounts.Labels(ctx, m.mbox)
		if lerr != nil {
			err = lerr
			return err
		}
		for _, labelID := range mod.AddLabels {
			if !labels.Contains(labelID) {
				err = fmt.Errorf("%w: %d", store.ErrLabelNotFound, labelID)
				return err
			}
		}
	}

	mut := s.newMutator()
	for chunk := range chunked(ids, mut.BatchSize()/5) {
		found, ferr := s.metadata.Fetch(ctx, m.mbox, chunk, false)
		if ferr != nil {
			err = ferr
			return err
		}
		for _, id := range chunk {
			msg, ok := found[id]
			if !ok {
				continue
			}
			m.applyModification(mut.Batch(), id, msg, mod)
			if err = mut.FlushIfFull(ctx); err != nil {
				return err
			}
		}
	}
	if err = mut.Flush(ctx); err != nil {
		return err
	}
	return nil
}

// applyModification queues the idempotent deltas for one message.
func (m *mailboxClient) applyModification(batch *columns.Batch, id string, msg *store.Message, mod store.Modification) {
	s := m.service

	var addLabels, removeLabels []int
	for _, labelID := range mod.AddLabels {
		if !msg.HasLabel(labelID) {
			addLabels = append(addLabels, labelID)
		}
	}
	for _, labelID := range mod.RemoveLabels {
		if msg.HasLabel(labelID) {
			removeLabels = append(removeLabels, labelID)
		}
	}

	var addMarkers, removeMarkers []store.Marker
	for _, marker := range mod.AddMarkers {
		if !msg.HasMarker(marker) {
			addMarkers = append(addMarkers, marker)
		}
	}
	for _, marker := range mod.RemoveMarkers {
		if msg.HasMarker(marker) {
			removeMarkers = append(removeMarkers, marker)
		}
	}

	oldUnread := msg.IsUnread()
	oldCounters := msg.Counters()

	// Project the post-modification state before computing counter
	// deltas; added labels must count the message as it will be, not as
	// it was.
	for _, marker := range addMarkers {
		msg.AddMarker(marker)
	}
	for _, marker := range removeMarkers {
		msg.RemoveMarker(marker)
	}
	newCounters := msg.Counters()
	unreadDelta := int64(0)
	if newUnread := msg.IsUnread(); newUnread != oldUnread {
		if newUnread {
			unreadDelta = 1
		} else {
			unreadDelta = -1
		}
	}

	if len(addLabels) > 0 {
		s.metadata.PersistLabels(batch, m.mbox, id, addLabels)
		s.index.Add(batch, m.mbox, id, addLabels)
		for _, labelID := range addLabels {
			s.counters.Queue(batch, m.mbox, labelID, newCounters)
		}
	}
	if len(removeLabels) > 0 {
		s.metadata.DeleteLabels(batch, m.mbox, id, removeLabels)
		s.index.Remove(batch, m.mbox, id, removeLabels)
		for _, labelID := range removeLabels {
			s.counters.Queue(batch, m.mbox, labelID, oldCounters.Neg())
		}
	}
	if len(addMarkers) > 0 {
		s.metadata.PersistMarkers(batch, m.mbox, id, addMarkers)
	}
	if len(removeMarkers) > 0 {
		s.metadata.DeleteMarkers(batch, m.mbox, id, removeMarkers)
	}
	if unreadDelta != 0 {
		// Labels the message keeps see only the unread flip. Added labels
		// already counted the new state, removed ones subtracted the old.
		for _, labelID := range msg.Labels() {
			if contains(removeLabels, labelID) {
				continue
			}
			s.counters.Queue(batch, m.mbox, labelID, store.LabelCounters{Unread: unreadDelta})
		}
	}

	for _, labelID := range addLabels {
		msg.AddLabel(labelID)
	}
	for _, labelID := range removeLabels {
		msg.RemoveLabel(labelID)
	}
}

// Delete soft-deletes messages. Their label attributes and index entries
// go away, counters shed their contribution, and a purge index entry
// records them for the next purge pass. Metadata and blobs stay put until
// then. Deleting an already deleted or unknown id is a no-op.
func (m *mailboxClient) Delete(ctx context.Context, ids ...string) (err error) {
	if err := m.checkAccess(); err != nil {
		return err
	}
	if len(ids) == 0 {
		return nil
	}
	for _, id := range ids {
		if err := validateMessageID(id); err != nil {
			return err
		}
	}

	s := m.service
	started := time.Now()
	ctx, end := s.otel.startSpan(ctx, "mailstore.delete",
		attribute.String("mailbox", m.mbox.ID()),
		attribute.Int("message_count", len(ids)))
	defer func() {
		end(err)
		s.otel.recordDelete(ctx, time.Since(started), len(ids), err)
	}()

	known, err := s.accounts.Labels(ctx, m.mbox)
	if err != nil {
		return err
	}
	knownIDs := known.IDs()

	now := time.Now().UTC()
	deleted := make([]string, 0, len(ids))
	mut := s.newMutator()
	for chunk := range chunked(ids, mut.BatchSize()/5) {
		found, ferr := s.metadata.Fetch(ctx, m.mbox, chunk, false)
		if ferr != nil {
			err = ferr
			return err
		}
		for _, id := range chunk {
			msg, ok := found[id]
			if !ok {
				// No metadata: the message is already gone, but a stale
				// index entry may still reference it.
				s.index.Remove(mut.Batch(), m.mbox, id, knownIDs)
				if err = mut.FlushIfFull(ctx); err != nil {
					return err
				}
				continue
			}
			labels := msg.Labels()
			if len(labels) == 0 {
				// Already soft-deleted; the existing purge entry covers it.
				continue
			}
			batch := mut.Batch()
			s.purge.Put(batch, m.mbox, now, []string{id})
			s.index.Remove(batch, m.mbox, id, labels)
			s.metadata.DeleteLabels(batch, m.mbox, id, labels)
			for _, labelID := range labels {
				s.counters.Queue(batch, m.mbox, labelID, msg.Counters().Neg())
			}
			deleted = append(deleted, id)
			if err = mut.FlushIfFull(ctx); err != nil {
				return err
			}
		}
	}
	if err = mut.Flush(ctx); err != nil {
		return err
	}

	if len(deleted) > 0 {
		if perr := s.events.MessagesDeleted.Publish(ctx, MessagesDeletedEvent{
			Mailbox:    m.mbox.ID(),
			MessageIDs: deleted,
			DeletedAt:  now,
		}); perr != nil {
			s.logger.Warn("failed to publish MessagesDeleted event", "error", perr)
		}
	}
	s.logger.Debug("soft-deleted messages", "mailbox", m.mbox.ID(), "count", len(deleted))
	return nil
}

// chunked yields ids in slices of at most size.
func chunked(ids []string, size int) func(func([]string) bool) {
	if size < 1 {
		size = 1
	}
	return func(yield func([]string) bool) {
		for start := 0; start < len(ids); start += size {
			stop := start + size
			if stop > len(ids) {
				stop = len(ids)
			}
			if !yield(ids[start:stop]) {
				return
			}
		}
	}
}

func contains(ids []int, id int) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}
