package fs

import (
	"bytes"
	"context"
	"errors"
	"io"
	"testing"

	"github.com/inboxkit/mailstore/blob"
)

func TestFSStore(t *testing.T) {
	ctx := context.Background()
	s, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("new: %v", err)
	}

	t.Run("round trip", func(t *testing.T) {
		payload := []byte("raw message bytes")
		if err := s.Put(ctx, "id:owner", bytes.NewReader(payload), int64(len(payload))); err != nil {
			t.Fatalf("put: %v", err)
		}
		rc, err := s.Get(ctx, "id:owner")
		if err != nil {
			t.Fatalf("get: %v", err)
		}
		defer rc.Close()
		got, err := io.ReadAll(rc)
		if err != nil {
			t.Fatalf("read: %v", err)
		}
		if !bytes.Equal(got, payload) {
			t.Errorf("got %q", got)
		}
	})

	t.Run("overwrite replaces content", func(t *testing.T) {
		if err := s.Put(ctx, "dup", bytes.NewReader([]byte("first")), 5); err != nil {
			t.Fatalf("put: %v", err)
		}
		if err := s.Put(ctx, "dup", bytes.NewReader([]byte("second")), 6); err != nil {
			t.Fatalf("put: %v", err)
		}
		rc, err := s.Get(ctx, "dup")
		if err != nil {
			t.Fatalf("get: %v", err)
		}
		defer rc.Close()
		got, _ := io.ReadAll(rc)
		if string(got) != "second" {
			t.Errorf("got %q", got)
		}
	})

	t.Run("missing blob", func(t *testing.T) {
		if _, err := s.Get(ctx, "missing"); !errors.Is(err, blob.ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("delete is idempotent", func(t *testing.T) {
		if err := s.Put(ctx, "gone", bytes.NewReader([]byte("x")), 1); err != nil {
			t.Fatalf("put: %v", err)
		}
		if err := s.Delete(ctx, "gone"); err != nil {
			t.Fatalf("delete: %v", err)
		}
		if err := s.Delete(ctx, "gone"); err != nil {
			t.Errorf("second delete: %v", err)
		}
		if _, err := s.Get(ctx, "gone"); !errors.Is(err, blob.ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
	})
}
