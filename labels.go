package mailstore

import (
	"context"
	"fmt"
	"math/rand/v2"
	"strings"

	"github.com/inboxkit/mailstore/store"
)

// Labels returns the mailbox's label map, reserved labels included.
// With withCounters set, each label also carries its live counters;
// labels with no counter row report zeros.
func (m *mailboxClient) Labels(ctx context.Context, withCounters bool) (store.LabelMap, error) {
	if err := m.checkAccess(); err != nil {
		return nil, err
	}

	labels, err := m.service.accounts.Labels(ctx, m.mbox)
	if err != nil {
		return nil, err
	}
	if !withCounters {
		return labels, nil
	}

	counts, err := m.service.counters.GetAll(ctx, m.mbox)
	if err != nil {
		return nil, err
	}
	for id, l := range labels {
		c := counts[id]
		l.Counters = &c
	}
	return labels, nil
}

// AddLabel registers a new user label under a randomly chosen free id.
func (m *mailboxClient) AddLabel(ctx context.Context, name string) (*store.Label, error) {
	if err := m.checkAccess(); err != nil {
		return nil, err
	}
	if err := store.ValidateLabelName(name); err != nil {
		return nil, err
	}

	s := m.service
	labels, err := s.accounts.Labels(ctx, m.mbox)
	if err != nil {
		return nil, err
	}
	if labels.ContainsName(name) {
		return nil, fmt.Errorf("%w: %q", store.ErrLabelExists, name)
	}

	id, err := freeLabelID(labels, s.opts.labelIDAttempts)
	if err != nil {
		return nil, err
	}

	l := &store.Label{ID: id, Name: name}
	if err := s.accounts.PutLabel(ctx, m.mbox, l); err != nil {
		return nil, err
	}
	s.logger.Debug("added label", "mailbox", m.mbox.ID(), "label", name, "id", id)
	return l, nil
}

// freeLabelID draws random ids from the user range until one is unused.
func freeLabelID(labels store.LabelMap, attempts int) (int, error) {
	span := store.MaxLabelID - store.LabelReservedMax
	for range attempts {
		id := store.LabelReservedMax + 1 + rand.IntN(span)
		if !labels.Contains(id) {
			return id, nil
		}
	}
	return 0, store.ErrLabelIDSpace
}

// RenameLabel changes a user label's display name. The id, and with it
// every index entry and counter row, stays the same.
func (m *mailboxClient) RenameLabel(ctx context.Context, id int, name string) error {
	if err := m.checkAccess(); err != nil {
		return err
	}
	if store.IsReservedLabel(id) {
		return fmt.Errorf("%w: %d", store.ErrReservedLabel, id)
	}
	if err := store.ValidateLabelName(name); err != nil {
		return err
	}

	s := m.service
	labels, err := s.accounts.Labels(ctx, m.mbox)
	if err != nil {
		return err
	}
	current := labels.Get(id)
	if current == nil {
		return fmt.Errorf("%w: %d", store.ErrLabelNotFound, id)
	}
	if labels.ContainsName(name) && !strings.EqualFold(current.Name, name) {
		return fmt.Errorf("%w: %q", store.ErrLabelExists, name)
	}

	current.Name = name
	return s.accounts.PutLabel(ctx, m.mbox, current)
}

// DeleteLabel removes a user label: its registry entry, its index, its
// counters, and the label attribute on every message that carries it.
// Messages themselves survive; they stay reachable through all-mails.
func (m *mailboxClient) DeleteLabel(ctx context.Context, id int) error {
	if err := m.checkAccess(); err != nil {
		return err
	}
	if store.IsReservedLabel(id) {
		return fmt.Errorf("%w: %d", store.ErrReservedLabel, id)
	}

	s := m.service
	labels, err := s.accounts.Labels(ctx, m.mbox)
	if err != nil {
		return err
	}
	if !labels.Contains(id) {
		return fmt.Errorf("%w: %d", store.ErrLabelNotFound, id)
	}

	// Strip the label attribute from member messages a page at a time.
	// The index is still intact while this runs, so a crash mid-way
	// leaves a shorter member list for the retry, nothing worse.
	mut := s.newMutator()
	remove := []int{id}
	start := ""
	pageSize := mut.BatchSize()
	for {
		ids, gerr := s.index.Get(ctx, m.mbox, id, start, pageSize, false)
		if gerr != nil {
			return gerr
		}
		if len(ids) == 0 {
			break
		}
		start = ids[len(ids)-1]
		for _, msgID := range ids {
			s.metadata.DeleteLabels(mut.Batch(), m.mbox, msgID, remove)
			if err := mut.FlushIfFull(ctx); err != nil {
				return err
			}
		}
		if len(ids) < pageSize {
			break
		}
	}
	s.index.DeleteIndex(mut.Batch(), m.mbox, id)
	if err := mut.Flush(ctx); err != nil {
		return err
	}

	if err := s.counters.Delete(ctx, m.mbox, id); err != nil {
		return err
	}
	if err := s.accounts.DeleteLabel(ctx, m.mbox, id); err != nil {
		return err
	}
	s.logger.Debug("deleted label", "mailbox", m.mbox.ID(), "id", id)
	return nil
}

// Quota returns the mailbox's effective limits: the per-account override
// where one is set, the service default otherwise.
func (m *mailboxClient) Quota(ctx context.Context) (store.Quota, error) {
	if err := m.checkAccess(); err != nil {
		return store.Quota{}, err
	}

	q, err := m.service.accounts.Quota(ctx, m.mbox)
	if err != nil {
		return store.Quota{}, err
	}
	if q.MaxBytes == 0 {
		q.MaxBytes = m.service.opts.quotaBytes
	}
	if q.MaxMessages == 0 {
		q.MaxMessages = m.service.opts.quotaMessages
	}
	return q, nil
}

// SetQuota stores per-account overrides. Zero fields fall back to the
// service defaults.
func (m *mailboxClient) SetQuota(ctx context.Context, q store.Quota) error {
	if err := m.checkAccess(); err != nil {
		return err
	}
	return m.service.accounts.SetQuota(ctx, m.mbox, q)
}

// Usage returns the mailbox's current totals from the all-mails counter.
func (m *mailboxClient) Usage(ctx context.Context) (store.LabelCounters, error) {
	if err := m.checkAccess(); err != nil {
		return store.LabelCounters{}, err
	}
	return m.service.counters.Get(ctx, m.mbox, store.LabelAllMails)
}
