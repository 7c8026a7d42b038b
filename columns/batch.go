package columns

// Op identifies the kind of a queued mutation.
type Op int

const (
	// OpInsert writes columns into a row, overwriting same-named columns.
	OpInsert Op = iota
	// OpDeleteColumns removes named columns from a row.
	OpDeleteColumns
	// OpDeleteRow removes an entire row.
	OpDeleteRow
	// OpAddCounters applies signed counter deltas to a row.
	OpAddCounters
)

// Mutation is a single queued write against a (table, key) row.
type Mutation struct {
	Op      Op
	Table   string
	Key     string
	Columns []Column         // OpInsert
	Names   []string         // OpDeleteColumns
	Deltas  map[string]int64 // OpAddCounters
}

// Batch accumulates mutations for a single Apply call. The zero value is
// ready to use. Batch is not safe for concurrent use; each request path
// owns its own batch (or a Mutator wrapping one).
type Batch struct {
	muts []Mutation
}

// NewBatch returns an empty batch.
func NewBatch() *Batch {
	return &Batch{}
}

// Insert queues a column write.
func (b *Batch) Insert(table, key string, cols ...Column) *Batch {
	if len(cols) == 0 {
		return b
	}
	b.muts = append(b.muts, Mutation{Op: OpInsert, Table: table, Key: key, Columns: cols})
	return b
}

// Delete queues removal of named columns.
func (b *Batch) Delete(table, key string, names ...string) *Batch {
	if len(names) == 0 {
		return b
	}
	b.muts = append(b.muts, Mutation{Op: OpDeleteColumns, Table: table, Key: key, Names: names})
	return b
}

// DeleteRow queues removal of a whole row.
func (b *Batch) DeleteRow(table, key string) *Batch {
	b.muts = append(b.muts, Mutation{Op: OpDeleteRow, Table: table, Key: key})
	return b
}

// AddCounters queues signed counter deltas. Successive calls against the
// same row are folded into one mutation so a long modify loop does not grow
// the batch with per-message counter entries.
func (b *Batch) AddCounters(table, key string, deltas map[string]int64) *Batch {
	if len(deltas) == 0 {
		return b
	}
	if n := len(b.muts); n > 0 {
		last := &b.muts[n-1]
		if last.Op == OpAddCounters && last.Table == table && last.Key == key {
			for name, d := range deltas {
				last.Deltas[name] += d
			}
			return b
		}
	}
	copied := make(map[string]int64, len(deltas))
	for name, d := range deltas {
		copied[name] = d
	}
	b.muts = append(b.muts, Mutation{Op: OpAddCounters, Table: table, Key: key, Deltas: copied})
	return b
}

// Len returns the number of queued mutations.
func (b *Batch) Len() int {
	return len(b.muts)
}

// Mutations returns the queued mutations in insertion order.
// The slice is owned by the batch; backends must not retain it.
func (b *Batch) Mutations() []Mutation {
	return b.muts
}

// Reset discards all queued mutations, keeping allocated capacity.
func (b *Batch) Reset() {
	b.muts = b.muts[:0]
}
