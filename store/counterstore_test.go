package store

import (
	"context"
	"testing"

	"github.com/inboxkit/mailstore/columns"
	"github.com/inboxkit/mailstore/columns/memory"
)

func TestCounterStore(t *testing.T) {
	ctx := context.Background()
	cols := memory.New()
	mbox := testMailbox(t)
	s := NewCounterStore(cols)

	t.Run("add and get", func(t *testing.T) {
		if err := s.Add(ctx, mbox, LabelInbox, LabelCounters{Bytes: 100, Messages: 1, Unread: 1}); err != nil {
			t.Fatalf("add: %v", err)
		}
		if err := s.Add(ctx, mbox, LabelInbox, LabelCounters{Bytes: 50, Messages: 1}); err != nil {
			t.Fatalf("add: %v", err)
		}
		got, err := s.Get(ctx, mbox, LabelInbox)
		if err != nil {
			t.Fatalf("get: %v", err)
		}
		want := LabelCounters{Bytes: 150, Messages: 2, Unread: 1}
		if got != want {
			t.Errorf("got %+v, want %+v", got, want)
		}
	})

	t.Run("absent label reads zero", func(t *testing.T) {
		got, err := s.Get(ctx, mbox, 9999)
		if err != nil {
			t.Fatalf("get: %v", err)
		}
		if !got.IsZero() {
			t.Errorf("expected zero, got %+v", got)
		}
	})

	t.Run("queued deltas fold into one row", func(t *testing.T) {
		batch := columns.NewBatch()
		s.Queue(batch, mbox, 42, LabelCounters{Bytes: 10, Messages: 1, Unread: 1})
		s.Queue(batch, mbox, 42, LabelCounters{Bytes: 20, Messages: 1})
		if err := cols.Apply(ctx, batch); err != nil {
			t.Fatalf("apply: %v", err)
		}
		got, err := s.Get(ctx, mbox, 42)
		if err != nil {
			t.Fatalf("get: %v", err)
		}
		want := LabelCounters{Bytes: 30, Messages: 2, Unread: 1}
		if got != want {
			t.Errorf("got %+v, want %+v", got, want)
		}
	})

	t.Run("get all parses label ids", func(t *testing.T) {
		all, err := s.GetAll(ctx, mbox)
		if err != nil {
			t.Fatalf("get all: %v", err)
		}
		if all[LabelInbox].Messages != 2 || all[42].Bytes != 30 {
			t.Errorf("unexpected aggregate: %v", all)
		}
	})

	t.Run("set forces the target value", func(t *testing.T) {
		target := LabelCounters{Bytes: 7, Messages: 1}
		if err := s.Set(ctx, mbox, 42, target); err != nil {
			t.Fatalf("set: %v", err)
		}
		got, err := s.Get(ctx, mbox, 42)
		if err != nil {
			t.Fatalf("get: %v", err)
		}
		if got != target {
			t.Errorf("got %+v, want %+v", got, target)
		}
	})

	t.Run("delete zeroes before removal", func(t *testing.T) {
		if err := s.Delete(ctx, mbox, 42); err != nil {
			t.Fatalf("delete: %v", err)
		}
		got, err := s.Get(ctx, mbox, 42)
		if err != nil {
			t.Fatalf("get: %v", err)
		}
		if !got.IsZero() {
			t.Errorf("expected zero after delete, got %+v", got)
		}
		all, err := s.GetAll(ctx, mbox)
		if err != nil {
			t.Fatalf("get all: %v", err)
		}
		if _, ok := all[42]; ok {
			t.Error("expected label 42 columns to be gone")
		}
	})

	t.Run("delete all clears the row", func(t *testing.T) {
		if err := s.DeleteAll(ctx, mbox); err != nil {
			t.Fatalf("delete all: %v", err)
		}
		all, err := s.GetAll(ctx, mbox)
		if err != nil {
			t.Fatalf("get all: %v", err)
		}
		if len(all) != 0 {
			t.Errorf("expected empty row, got %v", all)
		}
	})
}
