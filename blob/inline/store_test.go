package inline

import (
	"bytes"
	"context"
	"errors"
	"io"
	"testing"

	"github.com/inboxkit/mailstore/blob"
	"github.com/inboxkit/mailstore/columns/memory"
)

func TestInlineStore(t *testing.T) {
	ctx := context.Background()
	cols := memory.New()
	s := New(cols, WithBlockSize(8), WithMaxSize(64))

	t.Run("round trip across blocks", func(t *testing.T) {
		payload := []byte("0123456789abcdefghij") // 3 blocks of 8
		if err := s.Put(ctx, "b1", bytes.NewReader(payload), int64(len(payload))); err != nil {
			t.Fatalf("put: %v", err)
		}
		rc, err := s.Get(ctx, "b1")
		if err != nil {
			t.Fatalf("get: %v", err)
		}
		defer rc.Close()
		got, err := io.ReadAll(rc)
		if err != nil {
			t.Fatalf("read: %v", err)
		}
		if !bytes.Equal(got, payload) {
			t.Errorf("got %q, want %q", got, payload)
		}
	})

	t.Run("zero length blob exists", func(t *testing.T) {
		if err := s.Put(ctx, "empty", bytes.NewReader(nil), 0); err != nil {
			t.Fatalf("put: %v", err)
		}
		rc, err := s.Get(ctx, "empty")
		if err != nil {
			t.Fatalf("get: %v", err)
		}
		defer rc.Close()
		got, _ := io.ReadAll(rc)
		if len(got) != 0 {
			t.Errorf("expected empty content, got %d bytes", len(got))
		}
	})

	t.Run("oversized rejected before write", func(t *testing.T) {
		err := s.Put(ctx, "big", bytes.NewReader(make([]byte, 65)), 65)
		if !errors.Is(err, blob.ErrTooLarge) {
			t.Fatalf("expected ErrTooLarge, got %v", err)
		}
		if _, err := s.Get(ctx, "big"); !errors.Is(err, blob.ErrNotFound) {
			t.Errorf("expected no partial blob, got %v", err)
		}
	})

	t.Run("delete then get", func(t *testing.T) {
		if err := s.Put(ctx, "gone", bytes.NewReader([]byte("x")), 1); err != nil {
			t.Fatalf("put: %v", err)
		}
		if err := s.Delete(ctx, "gone"); err != nil {
			t.Fatalf("delete: %v", err)
		}
		if _, err := s.Get(ctx, "gone"); !errors.Is(err, blob.ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
	})
}
