// Package columns abstracts the wide-column backing store that holds all
// durable mailbox state. Implementations are in columns/memory,
// columns/redis, columns/mongo, and columns/postgres subpackages.
//
// # Data model
//
// A row is identified by (table, key). Within a row, columns are ordered by
// name using byte-wise comparison, which is what makes anchored slice reads
// (pagination, "messages after X") possible without a separate sort step.
// Counter columns live beside regular columns but are only reachable through
// the counter operations: they support atomic signed increments and are the
// only mutation the backing store must apply atomically per row.
//
// # Consistency
//
// The store offers per-row atomicity at best. A Batch groups mutations for a
// single submission, but mutations touching different rows are not atomic
// with respect to each other - callers own compensation and repair (see the
// root package's put/scrub paths). Retry policy belongs to the backing
// client, not to callers of this interface.
package columns

import "context"

// Column is a single named cell within a row. A zero-length Value is
// meaningful: presence attributes use empty values.
type Column struct {
	Name  string
	Value []byte
}

// Reader provides read access to rows. Counter columns are read through
// the Counters interface instead.
type Reader interface {
	// Get returns the named columns of a row. Absent columns are omitted
	// from the map; present columns with empty values keep their map entry
	// so presence attributes stay observable. A missing row yields an
	// empty map.
	Get(ctx context.Context, table, key string, names []string) (map[string][]byte, error)

	// Row returns every column of a row in name order.
	// A missing row yields an empty slice, not an error.
	Row(ctx context.Context, table, key string) ([]Column, error)

	// Slice returns up to count columns of a row in name order, starting at
	// the first name greater than start ("" anchors at the row edge).
	// With reverse set, iteration runs from the high end toward start.
	Slice(ctx context.Context, table, key, start string, count int, reverse bool) ([]Column, error)

	// Keys returns up to count row keys sharing prefix, in key order,
	// starting after start ("" anchors at the first key).
	Keys(ctx context.Context, table, prefix, start string, count int) ([]string, error)
}

// Writer applies batched mutations.
type Writer interface {
	// Apply submits every mutation in the batch to the backing store.
	// Atomicity is per row at best; a failure may leave a prefix of the
	// batch applied.
	Apply(ctx context.Context, b *Batch) error
}

// Counters provides access to additive counter columns.
//
// Counter deletes are not durable against late-arriving increments from
// in-flight writers; callers that need a counter gone should subtract its
// current value first (see store.CounterStore.Delete).
type Counters interface {
	// AddCounters atomically adds each delta to its counter column.
	// Deltas may be negative. Absent counters start at zero.
	AddCounters(ctx context.Context, table, key string, deltas map[string]int64) error

	// GetCounters returns the named counter values. Absent counters are
	// omitted from the result.
	GetCounters(ctx context.Context, table, key string, names []string) (map[string]int64, error)

	// RowCounters returns every counter column of a row.
	RowCounters(ctx context.Context, table, key string) (map[string]int64, error)

	// DeleteCounters structurally removes the named counter columns,
	// or the whole counter row when names is empty.
	DeleteCounters(ctx context.Context, table, key string, names ...string) error
}

// Store is the full backing-store contract. All operations are safe for
// concurrent use; every call is a fresh round-trip, nothing is cached here.
type Store interface {
	Connect(ctx context.Context) error
	Close(ctx context.Context) error

	Reader
	Writer
	Counters
}
