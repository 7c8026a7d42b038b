package mailstore

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/inboxkit/mailstore/columns"
	"github.com/inboxkit/mailstore/retry"
	"github.com/inboxkit/mailstore/store"
)

// Purge permanently removes soft-deleted messages whose deletion is
// older than cutoff. A zero cutoff uses the configured retention age.
// When a blob delete fails the purge entry stays behind, so the next
// pass retries it; running purge repeatedly is always safe.
func (m *mailboxClient) Purge(ctx context.Context, cutoff time.Time) (purged int, err error) {
	if err := m.checkAccess(); err != nil {
		return 0, err
	}
	if cutoff.IsZero() {
		cutoff = time.Now().Add(-m.service.opts.purgeAge)
	}

	s := m.service
	started := time.Now()
	ctx, end := s.otel.startSpan(ctx, "mailstore.purge",
		attribute.String("mailbox", m.mbox.ID()))
	defer func() {
		end(err)
		s.otel.recordPurge(ctx, time.Since(started), purged, err)
	}()

	pageSize := s.opts.batchSize / 2
	if pageSize < 1 {
		pageSize = 1
	}

	start := ""
	for {
		entries, perr := s.purge.Page(ctx, m.mbox, cutoff, start, pageSize)
		if perr != nil {
			err = perr
			return purged, err
		}
		if len(entries) == 0 {
			break
		}
		start = entries[len(entries)-1].Name

		ids := make([]string, len(entries))
		for i, e := range entries {
			ids[i] = e.ID
		}
		found, ferr := s.metadata.Fetch(ctx, m.mbox, ids, false)
		if ferr != nil {
			err = ferr
			return purged, err
		}

		batch := columns.NewBatch()
		var removable []store.Entry
		var removeIDs []string
		for _, e := range entries {
			if msg, ok := found[e.ID]; ok && msg.Location != nil {
				derr := retry.Do(ctx, retry.Policy{Attempts: 2}, func(ctx context.Context) error {
					return s.blobs.Delete(ctx, msg.Location)
				})
				if derr != nil {
					s.logger.Warn("blob delete failed, retaining purge entry",
						"mailbox", m.mbox.ID(), "id", e.ID, "error", derr)
					continue
				}
			}
			removable = append(removable, e)
			removeIDs = append(removeIDs, e.ID)
		}
		if len(removable) == 0 {
			if len(entries) < pageSize {
				break
			}
			continue
		}

		s.metadata.DeleteMessages(batch, m.mbox, removeIDs)
		s.purge.Remove(batch, m.mbox, removable)
		if aerr := s.cols.Apply(ctx, batch); aerr != nil {
			err = &StorageError{Op: "purge", Key: m.mbox.ID(), Err: aerr}
			return purged, err
		}
		purged += len(removable)

		if len(entries) < pageSize {
			break
		}
	}

	if purged > 0 {
		if perr := s.events.MessagesPurged.Publish(ctx, MessagesPurgedEvent{
			Mailbox:  m.mbox.ID(),
			Count:    purged,
			PurgedAt: time.Now().UTC(),
		}); perr != nil {
			s.logger.Warn("failed to publish MessagesPurged event", "error", perr)
		}
	}
	s.logger.Debug("purged messages", "mailbox", m.mbox.ID(), "count", purged)
	return purged, nil
}

// Scrub recomputes per-label counters from metadata alone. It walks
// every message row, so it is an offline repair tool, not a request
// path operation. Messages awaiting purge are excluded.
func (m *mailboxClient) Scrub(ctx context.Context) (report ScrubReport, err error) {
	if err := m.checkAccess(); err != nil {
		return nil, err
	}

	s := m.service
	started := time.Now()
	ctx, end := s.otel.startSpan(ctx, "mailstore.scrub",
		attribute.String("mailbox", m.mbox.ID()))
	defer func() {
		end(err)
		s.otel.recordScrub(ctx, time.Since(started), err)
	}()

	pending, err := s.purge.PendingIDs(ctx, m.mbox)
	if err != nil {
		return nil, err
	}

	report = ScrubReport{}
	err = s.metadata.Scan(ctx, m.mbox, s.opts.batchSize, func(id string, msg *store.Message) error {
		if _, deleted := pending[id]; deleted {
			return nil
		}
		contribution := msg.Counters()
		for _, labelID := range msg.Labels() {
			report[labelID] = report[labelID].Add(contribution)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return report, nil
}

// RebuildIndexes re-derives every label index from metadata truth,
// dropping stale entries and restoring missing ones. Listings against a
// label are incomplete while its index is being rewritten, so this is
// an offline repair tool like Scrub.
func (m *mailboxClient) RebuildIndexes(ctx context.Context) error {
	if err := m.checkAccess(); err != nil {
		return err
	}
	s := m.service

	labels, err := s.accounts.Labels(ctx, m.mbox)
	if err != nil {
		return err
	}
	pending, err := s.purge.PendingIDs(ctx, m.mbox)
	if err != nil {
		return err
	}

	membership := make(map[int][]string)
	err = s.metadata.Scan(ctx, m.mbox, s.opts.batchSize, func(id string, msg *store.Message) error {
		if _, deleted := pending[id]; deleted {
			return nil
		}
		for _, labelID := range msg.Labels() {
			membership[labelID] = append(membership[labelID], id)
		}
		return nil
	})
	if err != nil {
		return err
	}

	rebuild := labels.IDs()
	for labelID := range membership {
		if !labels.Contains(labelID) {
			rebuild = append(rebuild, labelID)
		}
	}

	mut := s.newMutator()
	for _, labelID := range rebuild {
		s.index.DeleteIndex(mut.Batch(), m.mbox, labelID)
		for _, id := range membership[labelID] {
			s.index.Add(mut.Batch(), m.mbox, id, []int{labelID})
			if err := mut.FlushIfFull(ctx); err != nil {
				return err
			}
		}
	}
	if err := mut.Flush(ctx); err != nil {
		return err
	}
	s.logger.Info("rebuilt label indexes", "mailbox", m.mbox.ID(), "labels", len(rebuild))
	return nil
}

// RepairCounters overwrites the stored counters with the values a Scrub
// computes. Counter rows for labels with no remaining messages are
// zeroed out rather than structurally deleted; the registry entry for
// the label may still exist.
func (m *mailboxClient) RepairCounters(ctx context.Context) error {
	report, err := m.Scrub(ctx)
	if err != nil {
		return err
	}

	s := m.service
	current, err := s.counters.GetAll(ctx, m.mbox)
	if err != nil {
		return err
	}

	for labelID, target := range report {
		if err := s.counters.Set(ctx, m.mbox, labelID, target); err != nil {
			return err
		}
	}
	for labelID := range current {
		if _, ok := report[labelID]; ok {
			continue
		}
		if err := s.counters.Set(ctx, m.mbox, labelID, store.LabelCounters{}); err != nil {
			return err
		}
	}
	s.logger.Info("repaired counters", "mailbox", m.mbox.ID(), "labels", len(report))
	return nil
}

// DeleteAccount removes every trace of the mailbox: messages, blobs,
// label indexes, the purge index, counters, and the account row. There
// is no undo.
func (m *mailboxClient) DeleteAccount(ctx context.Context) error {
	if err := m.checkAccess(); err != nil {
		return err
	}

	s := m.service

	// Label registry first, while the account row still exists.
	labels, err := s.accounts.Labels(ctx, m.mbox)
	if err != nil {
		return err
	}

	// Drop blobs for every remaining message, live or soft-deleted.
	mut := s.newMutator()
	var ids []string
	err = s.metadata.Scan(ctx, m.mbox, s.opts.batchSize, func(id string, msg *store.Message) error {
		if msg.Location != nil {
			if derr := s.blobs.Delete(ctx, msg.Location); derr != nil {
				s.logger.Warn("blob delete failed during account removal",
					"mailbox", m.mbox.ID(), "id", id, "error", derr)
			}
		}
		ids = append(ids, id)
		if len(ids) >= mut.BatchSize() {
			s.metadata.DeleteMessages(mut.Batch(), m.mbox, ids)
			ids = ids[:0]
			return mut.FlushIfFull(ctx)
		}
		return nil
	})
	if err != nil {
		return err
	}
	if len(ids) > 0 {
		s.metadata.DeleteMessages(mut.Batch(), m.mbox, ids)
	}

	batch := mut.Batch()
	for _, labelID := range labels.IDs() {
		s.index.DeleteIndex(batch, m.mbox, labelID)
	}
	s.purge.DeleteIndex(batch, m.mbox)
	if err := mut.Flush(ctx); err != nil {
		return err
	}

	if err := s.counters.DeleteAll(ctx, m.mbox); err != nil {
		return err
	}
	if err := s.accounts.Delete(ctx, m.mbox); err != nil {
		return err
	}
	s.logger.Info("deleted account", "mailbox", m.mbox.ID())
	return nil
}
