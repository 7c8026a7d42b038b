package store

import (
	"context"
	"strconv"
	"strings"

	"github.com/inboxkit/mailstore/columns"
)

// Counter column suffixes within a mailbox's counter row. Each label owns
// three columns: "<labelID>:b", "<labelID>:m", "<labelID>:u".
const (
	counterBytesSuffix    = ":b"
	counterMessagesSuffix = ":m"
	counterUnreadSuffix   = ":u"
)

// CounterStore maintains the per-(mailbox, label) counter cache. Values
// are advisory: the label index rows are the truth, and Scrub recomputes
// counters from them.
type CounterStore struct {
	cols columns.Store
}

// NewCounterStore creates a counter store over cols.
func NewCounterStore(cols columns.Store) *CounterStore {
	return &CounterStore{cols: cols}
}

func counterDeltas(labelID int, c LabelCounters) map[string]int64 {
	prefix := strconv.Itoa(labelID)
	deltas := make(map[string]int64, 3)
	if c.Bytes != 0 {
		deltas[prefix+counterBytesSuffix] = c.Bytes
	}
	if c.Messages != 0 {
		deltas[prefix+counterMessagesSuffix] = c.Messages
	}
	if c.Unread != 0 {
		deltas[prefix+counterUnreadSuffix] = c.Unread
	}
	return deltas
}

// Queue adds a counter delta for one label to batch.
func (s *CounterStore) Queue(batch *columns.Batch, mailbox Mailbox, labelID int, delta LabelCounters) {
	if delta.IsZero() {
		return
	}
	batch.AddCounters(TableCounters, countersKey(mailbox), counterDeltas(labelID, delta))
}

// Add applies a counter delta immediately.
func (s *CounterStore) Add(ctx context.Context, mailbox Mailbox, labelID int, delta LabelCounters) error {
	if delta.IsZero() {
		return nil
	}
	return s.cols.AddCounters(ctx, TableCounters, countersKey(mailbox), counterDeltas(labelID, delta))
}

// Get returns one label's counters. Absent counters read as zero.
func (s *CounterStore) Get(ctx context.Context, mailbox Mailbox, labelID int) (LabelCounters, error) {
	prefix := strconv.Itoa(labelID)
	names := []string{
		prefix + counterBytesSuffix,
		prefix + counterMessagesSuffix,
		prefix + counterUnreadSuffix,
	}
	values, err := s.cols.GetCounters(ctx, TableCounters, countersKey(mailbox), names)
	if err != nil {
		return LabelCounters{}, err
	}
	return LabelCounters{
		Bytes:    values[names[0]],
		Messages: values[names[1]],
		Unread:   values[names[2]],
	}, nil
}

// GetAll returns the counters of every label with at least one counter
// column, keyed by label id.
func (s *CounterStore) GetAll(ctx context.Context, mailbox Mailbox) (map[int]LabelCounters, error) {
	values, err := s.cols.RowCounters(ctx, TableCounters, countersKey(mailbox))
	if err != nil {
		return nil, err
	}
	out := make(map[int]LabelCounters)
	for name, v := range values {
		i := strings.LastIndex(name, ":")
		if i < 0 {
			continue
		}
		labelID, err := strconv.Atoi(name[:i])
		if err != nil {
			continue
		}
		c := out[labelID]
		switch name[i:] {
		case counterBytesSuffix:
			c.Bytes = v
		case counterMessagesSuffix:
			c.Messages = v
		case counterUnreadSuffix:
			c.Unread = v
		default:
			continue
		}
		out[labelID] = c
	}
	return out, nil
}

// Set forces one label's counters to target by applying the difference
// against the current value. Used by counter repair; an increment racing
// the read-diff-write window can still skew the result, which the next
// repair pass absorbs.
func (s *CounterStore) Set(ctx context.Context, mailbox Mailbox, labelID int, target LabelCounters) error {
	current, err := s.Get(ctx, mailbox, labelID)
	if err != nil {
		return err
	}
	return s.Add(ctx, mailbox, labelID, target.Sub(current))
}

// Delete removes one label's counters. The current value is subtracted
// before the structural delete: a bare delete can be resurrected by a
// late increment from an in-flight writer, and a resurrected counter
// would then hold only that increment's delta. Subtract-first means a
// resurrection at least starts from zero.
func (s *CounterStore) Delete(ctx context.Context, mailbox Mailbox, labelID int) error {
	current, err := s.Get(ctx, mailbox, labelID)
	if err != nil {
		return err
	}
	if !current.IsZero() {
		if err := s.Add(ctx, mailbox, labelID, current.Neg()); err != nil {
			return err
		}
	}
	prefix := strconv.Itoa(labelID)
	return s.cols.DeleteCounters(ctx, TableCounters, countersKey(mailbox),
		prefix+counterBytesSuffix,
		prefix+counterMessagesSuffix,
		prefix+counterUnreadSuffix,
	)
}

// DeleteAll removes the whole counter row.
func (s *CounterStore) DeleteAll(ctx context.Context, mailbox Mailbox) error {
	return s.cols.DeleteCounters(ctx, TableCounters, countersKey(mailbox))
}
