// Package inline stores small blobs directly in the wide-column store,
// split into fixed-size block columns under a single row per blob.
package inline

import (
	"bytes"
	"context"
	"fmt"
	"io"

	"github.com/inboxkit/mailstore/blob"
	"github.com/inboxkit/mailstore/columns"
)

// Table is the wide-column table holding inline blob blocks.
const Table = "MessageBlob"

// Defaults.
const (
	// DefaultBlockSize is the size of each block column.
	DefaultBlockSize = 256 << 10 // 256 KiB

	// DefaultMaxSize caps a single inline blob. Oversized writes fail
	// before any column mutation.
	DefaultMaxSize = 16 << 20 // 16 MiB
)

// Store keeps blobs in a columns.Store.
type Store struct {
	cols      columns.Store
	blockSize int64
	maxSize   int64
}

// Option configures the inline store.
type Option func(*Store)

// WithBlockSize sets the per-column block size.
func WithBlockSize(n int64) Option {
	return func(s *Store) {
		if n > 0 {
			s.blockSize = n
		}
	}
}

// WithMaxSize sets the inline blob size cap.
func WithMaxSize(n int64) Option {
	return func(s *Store) {
		if n > 0 {
			s.maxSize = n
		}
	}
}

// New creates an inline blob store over cols.
func New(cols columns.Store, opts ...Option) *Store {
	s := &Store{
		cols:      cols,
		blockSize: DefaultBlockSize,
		maxSize:   DefaultMaxSize,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// blockName pads block ordinals so column order matches block order.
func blockName(i int) string {
	return fmt.Sprintf("%08d", i)
}

// Put stores content as block columns under a single row.
func (s *Store) Put(ctx context.Context, name string, content io.Reader, size int64) error {
	if size > s.maxSize {
		return fmt.Errorf("%w: %d > %d", blob.ErrTooLarge, size, s.maxSize)
	}

	batch := columns.NewBatch()
	buf := make([]byte, s.blockSize)
	for i := 0; ; i++ {
		n, err := io.ReadFull(content, buf)
		if n > 0 {
			block := make([]byte, n)
			copy(block, buf[:n])
			batch.Insert(Table, name, columns.Column{Name: blockName(i), Value: block})
		}
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			break
		}
		if err != nil {
			return err
		}
	}
	if batch.Len() == 0 {
		// Zero-length blob still needs a row to exist.
		batch.Insert(Table, name, columns.Column{Name: blockName(0)})
	}
	return s.cols.Apply(ctx, batch)
}

// Get reassembles the blob from its block columns.
func (s *Store) Get(ctx context.Context, name string) (io.ReadCloser, error) {
	blocks, err := s.cols.Row(ctx, Table, name)
	if err != nil {
		return nil, err
	}
	if len(blocks) == 0 {
		return nil, fmt.Errorf("%w: %s", blob.ErrNotFound, name)
	}
	var body bytes.Buffer
	for _, b := range blocks {
		body.Write(b.Value)
	}
	return io.NopCloser(&body), nil
}

// Delete removes the blob row.
func (s *Store) Delete(ctx context.Context, name string) error {
	batch := columns.NewBatch()
	batch.DeleteRow(Table, name)
	return s.cols.Apply(ctx, batch)
}
