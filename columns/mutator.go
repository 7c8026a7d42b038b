package columns

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/time/rate"
)

// Default Mutator configuration.
const (
	// DefaultBatchSize is the queued-mutation count that triggers a flush.
	DefaultBatchSize = 100
	// DefaultFlushInterval is the minimum spacing between flushes.
	DefaultFlushInterval = 500 * time.Millisecond
)

// Mutator accumulates a bounded batch of mutations and flushes it against
// the backing store at a capped rate. Every multi-record write path (bulk
// modify, soft-delete sweeps, purge, scrub rebuilds, account deletion) goes
// through a Mutator so that bulk operations cannot saturate the backing
// store.
//
// Rate limiting is a token bucket of one token per flush interval with a
// burst of one: the first flush proceeds immediately, and each subsequent
// flush waits out whatever remains of the interval after the previous flush
// finished. Callers performing bulk work should expect wall-clock time
// proportional to record count divided by the configured throughput.
//
// A Mutator is single-use per operation and not safe for concurrent use.
type Mutator struct {
	store   Store
	batch   *Batch
	size    int
	limiter *rate.Limiter
	logger  *slog.Logger

	flushes int
}

// MutatorOption configures a Mutator.
type MutatorOption func(*Mutator)

// WithBatchSize sets the flush threshold. Default is DefaultBatchSize.
func WithBatchSize(n int) MutatorOption {
	return func(m *Mutator) {
		if n > 0 {
			m.size = n
		}
	}
}

// WithFlushInterval sets the minimum spacing between flushes.
// Default is DefaultFlushInterval.
func WithFlushInterval(d time.Duration) MutatorOption {
	return func(m *Mutator) {
		if d > 0 {
			m.limiter = rate.NewLimiter(rate.Every(d), 1)
		}
	}
}

// WithMutatorLogger sets a custom logger.
func WithMutatorLogger(l *slog.Logger) MutatorOption {
	return func(m *Mutator) {
		if l != nil {
			m.logger = l
		}
	}
}

// NewMutator creates a throttled mutator over the given store.
func NewMutator(s Store, opts ...MutatorOption) *Mutator {
	m := &Mutator{
		store:   s,
		batch:   NewBatch(),
		size:    DefaultBatchSize,
		limiter: rate.NewLimiter(rate.Every(DefaultFlushInterval), 1),
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Batch exposes the pending batch for queueing. Callers queue through the
// component stores and then call FlushIfFull.
func (m *Mutator) Batch() *Batch {
	return m.batch
}

// BatchSize returns the configured flush threshold. Read loops size their
// fetch pages off this (e.g. a 1:5 read:write ratio for delete sweeps).
func (m *Mutator) BatchSize() int {
	return m.size
}

// FlushIfFull flushes once the queued mutation count reaches the batch size.
func (m *Mutator) FlushIfFull(ctx context.Context) error {
	if m.batch.Len() < m.size {
		return nil
	}
	return m.Flush(ctx)
}

// Flush force-flushes any pending mutations. Call at the end of every bulk
// loop. A flush waits on the rate limiter first, so back-to-back flushes
// are spaced by the configured interval minus the time the previous flush
// itself took.
func (m *Mutator) Flush(ctx context.Context) error {
	if m.batch.Len() == 0 {
		return nil
	}
	if err := m.limiter.Wait(ctx); err != nil {
		return err
	}
	n := m.batch.Len()
	start := time.Now()
	if err := m.store.Apply(ctx, m.batch); err != nil {
		return fmt.Errorf("apply batch of %d: %w", n, err)
	}
	m.batch.Reset()
	m.flushes++
	m.logger.Debug("flushed mutation batch",
		"mutations", n, "flush", m.flushes, "took", time.Since(start))
	return nil
}
