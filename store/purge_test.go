package store

import (
	"context"
	"testing"
	"time"

	"github.com/inboxkit/mailstore/columns"
	"github.com/inboxkit/mailstore/columns/memory"
)

func testMailbox(t *testing.T) Mailbox {
	t.Helper()
	mbox, err := NewMailbox("user@example.com")
	if err != nil {
		t.Fatalf("mailbox: %v", err)
	}
	return mbox
}

func apply(t *testing.T, cols columns.Store, batch *columns.Batch) {
	t.Helper()
	if err := cols.Apply(context.Background(), batch); err != nil {
		t.Fatalf("apply: %v", err)
	}
}

func TestPurgeIndex(t *testing.T) {
	ctx := context.Background()
	cols := memory.New()
	mbox := testMailbox(t)
	p := NewPurgeIndex(cols)

	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	batch := columns.NewBatch()
	p.Put(batch, mbox, base, []string{"old-a", "old-b"})
	p.Put(batch, mbox, base.Add(time.Hour), []string{"mid"})
	p.Put(batch, mbox, base.Add(48*time.Hour), []string{"new"})
	apply(t, cols, batch)

	t.Run("page honors cutoff", func(t *testing.T) {
		entries, err := p.Page(ctx, mbox, base.Add(2*time.Hour), "", 10)
		if err != nil {
			t.Fatalf("page: %v", err)
		}
		if len(entries) != 3 {
			t.Fatalf("expected 3 entries before cutoff, got %d", len(entries))
		}
		if entries[0].ID != "old-a" || entries[1].ID != "old-b" || entries[2].ID != "mid" {
			t.Errorf("unexpected order: %v", entries)
		}
	})

	t.Run("page start is exclusive", func(t *testing.T) {
		first, err := p.Page(ctx, mbox, base.Add(2*time.Hour), "", 1)
		if err != nil {
			t.Fatalf("page: %v", err)
		}
		rest, err := p.Page(ctx, mbox, base.Add(2*time.Hour), first[0].Name, 10)
		if err != nil {
			t.Fatalf("page: %v", err)
		}
		if len(rest) != 2 || rest[0].ID != "old-b" {
			t.Errorf("unexpected continuation: %v", rest)
		}
	})

	t.Run("pending ids cover every entry", func(t *testing.T) {
		pending, err := p.PendingIDs(ctx, mbox)
		if err != nil {
			t.Fatalf("pending: %v", err)
		}
		for _, id := range []string{"old-a", "old-b", "mid", "new"} {
			if _, ok := pending[id]; !ok {
				t.Errorf("missing pending id %s", id)
			}
		}
	})

	t.Run("remove processed entries", func(t *testing.T) {
		entries, err := p.Page(ctx, mbox, base.Add(2*time.Hour), "", 10)
		if err != nil {
			t.Fatalf("page: %v", err)
		}
		batch := columns.NewBatch()
		p.Remove(batch, mbox, entries)
		apply(t, cols, batch)

		pending, err := p.PendingIDs(ctx, mbox)
		if err != nil {
			t.Fatalf("pending: %v", err)
		}
		if len(pending) != 1 {
			t.Errorf("expected only the newest entry to remain, got %v", pending)
		}
		if _, ok := pending["new"]; !ok {
			t.Error("expected 'new' to survive")
		}
	})
}

func TestPurgeEntryName(t *testing.T) {
	early := purgeEntryName(time.Unix(100, 0), "z")
	late := purgeEntryName(time.Unix(101, 0), "a")
	if early >= late {
		t.Error("entry names must order by deletion time, not id")
	}

	id, ok := purgeEntryID(early)
	if !ok || id != "z" {
		t.Errorf("purgeEntryID(%q) = %q %v", early, id, ok)
	}
	if _, ok := purgeEntryID("malformed"); ok {
		t.Error("expected malformed name to be rejected")
	}
}
