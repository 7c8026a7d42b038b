package blob

import (
	"bytes"
	"fmt"
	"io"
	"os"
)

// DefaultSpoolMemoryLimit is the in-memory buffer ceiling before a spool
// spills to a temporary file.
const DefaultSpoolMemoryLimit = 4 << 20 // 4 MiB

// spool buffers a stream of unknown length so its true size can be learned
// before dispatching to a backend (compressed output has no size hint).
// Small payloads stay in memory; anything beyond the limit spills to a
// temporary file that is removed on Close.
type spool struct {
	limit int64
	buf   bytes.Buffer
	file  *os.File
	size  int64
}

func newSpool(memoryLimit int64) *spool {
	if memoryLimit <= 0 {
		memoryLimit = DefaultSpoolMemoryLimit
	}
	return &spool{limit: memoryLimit}
}

// Write buffers p, spilling to disk once the memory limit is crossed.
func (s *spool) Write(p []byte) (int, error) {
	if s.file == nil && s.size+int64(len(p)) > s.limit {
		f, err := os.CreateTemp("", "mailstore-blob-*")
		if err != nil {
			return 0, fmt.Errorf("blob: spill to disk: %w", err)
		}
		if _, err := f.Write(s.buf.Bytes()); err != nil {
			f.Close()
			os.Remove(f.Name())
			return 0, fmt.Errorf("blob: spill to disk: %w", err)
		}
		s.buf.Reset()
		s.file = f
	}
	var n int
	var err error
	if s.file != nil {
		n, err = s.file.Write(p)
	} else {
		n, err = s.buf.Write(p)
	}
	s.size += int64(n)
	return n, err
}

// Size returns the number of bytes buffered so far.
func (s *spool) Size() int64 {
	return s.size
}

// Reader rewinds the spool and returns a reader over its full contents.
// Closing the reader releases the spool's resources.
func (s *spool) Reader() (io.ReadCloser, error) {
	if s.file != nil {
		if _, err := s.file.Seek(0, io.SeekStart); err != nil {
			return nil, fmt.Errorf("blob: rewind spool: %w", err)
		}
		return &spoolFileReader{file: s.file}, nil
	}
	return io.NopCloser(bytes.NewReader(s.buf.Bytes())), nil
}

// Close releases the spool without reading it (error paths).
func (s *spool) Close() error {
	if s.file != nil {
		name := s.file.Name()
		s.file.Close()
		s.file = nil
		return os.Remove(name)
	}
	s.buf.Reset()
	return nil
}

type spoolFileReader struct {
	file *os.File
}

func (r *spoolFileReader) Read(p []byte) (int, error) {
	return r.file.Read(p)
}

func (r *spoolFileReader) Close() error {
	name := r.file.Name()
	err := r.file.Close()
	if rmErr := os.Remove(name); err == nil {
		err = rmErr
	}
	return err
}
