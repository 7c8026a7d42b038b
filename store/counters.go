package store

import "fmt"

// LabelCounters is the additive counter triplet kept per (mailbox, label).
// Unread counts messages lacking the seen marker. Counters are a cache over
// index truth: transient skew against actual label membership is tolerated
// and repaired by scrub.
type LabelCounters struct {
	Bytes    int64
	Messages int64
	Unread   int64
}

// Add returns c + other, component-wise.
func (c LabelCounters) Add(other LabelCounters) LabelCounters {
	return LabelCounters{
		Bytes:    c.Bytes + other.Bytes,
		Messages: c.Messages + other.Messages,
		Unread:   c.Unread + other.Unread,
	}
}

// Sub returns c - other, component-wise.
func (c LabelCounters) Sub(other LabelCounters) LabelCounters {
	return c.Add(other.Neg())
}

// Neg returns the additive inverse.
func (c LabelCounters) Neg() LabelCounters {
	return LabelCounters{Bytes: -c.Bytes, Messages: -c.Messages, Unread: -c.Unread}
}

// IsZero reports whether all components are zero.
func (c LabelCounters) IsZero() bool {
	return c == LabelCounters{}
}

func (c LabelCounters) String() string {
	return fmt.Sprintf("{bytes:%d messages:%d unread:%d}", c.Bytes, c.Messages, c.Unread)
}
