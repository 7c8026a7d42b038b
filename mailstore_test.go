package mailstore

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"testing"
	"time"

	"github.com/inboxkit/mailstore/columns"
	"github.com/inboxkit/mailstore/columns/memory"
	"github.com/inboxkit/mailstore/store"
)

func newTestService(t *testing.T, opts ...Option) Service {
	t.Helper()
	base := []Option{
		WithColumnStore(memory.New()),
		WithFlushInterval(time.Millisecond),
	}
	svc, err := NewService(append(base, opts...)...)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	if err := svc.Connect(context.Background()); err != nil {
		t.Fatalf("connect: %v", err)
	}
	t.Cleanup(func() { _ = svc.Close(context.Background()) })
	return svc
}

func putMessage(t *testing.T, mb Mailbox, raw string, labels ...int) string {
	t.Helper()
	msg := store.NewMessage()
	msg.Size = int64(len(raw))
	msg.Subject = "test"
	for _, id := range labels {
		msg.AddLabel(id)
	}
	var body io.Reader
	if raw != "" {
		body = bytes.NewReader([]byte(raw))
	}
	id, err := mb.Put(context.Background(), msg, body)
	if err != nil {
		t.Fatalf("put: %v", err)
	}
	return id
}

func TestServiceLifecycle(t *testing.T) {
	ctx := context.Background()

	t.Run("requires a column store", func(t *testing.T) {
		if _, err := NewService(); !errors.Is(err, ErrColumnStoreRequired) {
			t.Errorf("expected ErrColumnStoreRequired, got %v", err)
		}
	})

	t.Run("double connect", func(t *testing.T) {
		svc, err := NewService(WithColumnStore(memory.New()))
		if err != nil {
			t.Fatalf("new service: %v", err)
		}
		if err := svc.Connect(ctx); err != nil {
			t.Fatalf("connect: %v", err)
		}
		defer svc.Close(ctx)
		if !svc.IsConnected() {
			t.Error("expected connected")
		}
		if err := svc.Connect(ctx); !errors.Is(err, ErrAlreadyConnected) {
			t.Errorf("expected ErrAlreadyConnected, got %v", err)
		}
	})

	t.Run("operations require connection", func(t *testing.T) {
		svc, err := NewService(WithColumnStore(memory.New()))
		if err != nil {
			t.Fatalf("new service: %v", err)
		}
		mb := svc.Mailbox("user@example.com")
		if _, err := mb.Get(ctx, "any"); !errors.Is(err, ErrNotConnected) {
			t.Errorf("expected ErrNotConnected, got %v", err)
		}
	})

	t.Run("invalid address surfaces on use", func(t *testing.T) {
		svc := newTestService(t)
		mb := svc.Mailbox("not-an-address")
		if _, err := mb.Labels(ctx, false); !errors.Is(err, ErrInvalidMailbox) {
			t.Errorf("expected ErrInvalidMailbox, got %v", err)
		}
	})

	t.Run("close is idempotent", func(t *testing.T) {
		svc, err := NewService(WithColumnStore(memory.New()))
		if err != nil {
			t.Fatalf("new service: %v", err)
		}
		if err := svc.Connect(ctx); err != nil {
			t.Fatalf("connect: %v", err)
		}
		if err := svc.Close(ctx); err != nil {
			t.Fatalf("close: %v", err)
		}
		if err := svc.Close(ctx); err != nil {
			t.Errorf("second close: %v", err)
		}
	})
}

func TestPutAndGet(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)
	mb := svc.Mailbox("user@example.com")

	t.Run("round trip", func(t *testing.T) {
		raw := "From: ann@example.com\r\n\r\nhello world"
		id := putMessage(t, mb, raw, LabelInbox)

		msg, err := mb.Get(ctx, id)
		if err != nil {
			t.Fatalf("get: %v", err)
		}
		if msg.Subject != "test" || msg.Size != int64(len(raw)) {
			t.Errorf("metadata mismatch: %+v", msg)
		}
		if !msg.HasLabel(LabelInbox) || !msg.HasLabel(LabelAllMails) {
			t.Errorf("expected inbox and all-mails labels, got %v", msg.Labels())
		}

		rc, err := mb.GetRaw(ctx, id)
		if err != nil {
			t.Fatalf("get raw: %v", err)
		}
		defer rc.Close()
		got, err := io.ReadAll(rc)
		if err != nil {
			t.Fatalf("read: %v", err)
		}
		if string(got) != raw {
			t.Errorf("raw mismatch: %q", got)
		}
	})

	t.Run("message without content", func(t *testing.T) {
		id := putMessage(t, mb, "", LabelDrafts)
		if _, err := mb.GetRaw(ctx, id); !errors.Is(err, ErrNoContent) {
			t.Errorf("expected ErrNoContent, got %v", err)
		}
	})

	t.Run("unknown id", func(t *testing.T) {
		missing, err := NewMessageID()
		if err != nil {
			t.Fatalf("id: %v", err)
		}
		if _, err := mb.Get(ctx, missing); !errors.Is(err, ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("malformed id", func(t *testing.T) {
		if _, err := mb.Get(ctx, "not-a-uuid"); !errors.Is(err, ErrInvalidID) {
			t.Errorf("expected ErrInvalidID, got %v", err)
		}
	})
}

func TestList(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)
	mb := svc.Mailbox("user@example.com")

	var ids []string
	for i := 0; i < 5; i++ {
		ids = append(ids, putMessage(t, mb, fmt.Sprintf("message %d", i), LabelInbox))
	}

	t.Run("pages through the label in order", func(t *testing.T) {
		var got []string
		cursor := ""
		for {
			page, err := mb.List(ctx, LabelInbox, ListOptions{Start: cursor, Count: 2})
			if err != nil {
				t.Fatalf("list: %v", err)
			}
			for _, e := range page.Messages {
				got = append(got, e.ID)
			}
			if page.Next == "" {
				break
			}
			cursor = page.Next
		}
		if len(got) != 5 {
			t.Fatalf("expected 5 messages, got %d", len(got))
		}
		// Version 7 ids sort by creation time, so listing preserves
		// insertion order.
		for i, id := range ids {
			if got[i] != id {
				t.Errorf("position %d: got %s, want %s", i, got[i], id)
			}
		}
	})

	t.Run("reverse lists newest first", func(t *testing.T) {
		page, err := mb.List(ctx, LabelInbox, ListOptions{Count: 2, Reverse: true})
		if err != nil {
			t.Fatalf("list: %v", err)
		}
		if len(page.Messages) != 2 || page.Messages[0].ID != ids[4] || page.Messages[1].ID != ids[3] {
			t.Errorf("unexpected reverse page: %v", page.Messages)
		}
	})

	t.Run("empty label", func(t *testing.T) {
		page, err := mb.List(ctx, LabelSpam, ListOptions{})
		if err != nil {
			t.Fatalf("list: %v", err)
		}
		if len(page.Messages) != 0 || page.Next != "" {
			t.Errorf("expected empty page, got %+v", page)
		}
	})

	t.Run("bodies only on request", func(t *testing.T) {
		msg := store.NewMessage()
		msg.Size = 4
		msg.PlainBody = "body"
		msg.AddLabel(LabelSent)
		if _, err := mb.Put(ctx, msg, nil); err != nil {
			t.Fatalf("put: %v", err)
		}

		page, err := mb.List(ctx, LabelSent, ListOptions{})
		if err != nil {
			t.Fatalf("list: %v", err)
		}
		if page.Messages[0].Message.PlainBody != "" {
			t.Error("expected body to be omitted")
		}
		page, err = mb.List(ctx, LabelSent, ListOptions{IncludeBody: true})
		if err != nil {
			t.Fatalf("list: %v", err)
		}
		if page.Messages[0].Message.PlainBody != "body" {
			t.Error("expected body to be included")
		}
	})
}

func TestModify(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)
	mb := svc.Mailbox("user@example.com")

	id := putMessage(t, mb, "hello", LabelInbox)
	work, err := mb.AddLabel(ctx, "work")
	if err != nil {
		t.Fatalf("add label: %v", err)
	}

	t.Run("add label and marker", func(t *testing.T) {
		mod := Modification{AddLabels: []int{work.ID}, AddMarkers: []Marker{MarkerSeen}}
		if err := mb.Modify(ctx, []string{id}, mod); err != nil {
			t.Fatalf("modify: %v", err)
		}

		msg, err := mb.Get(ctx, id)
		if err != nil {
			t.Fatalf("get: %v", err)
		}
		if !msg.HasLabel(work.ID) || !msg.HasMarker(MarkerSeen) {
			t.Errorf("modification not applied: labels %v markers %v", msg.Labels(), msg.Markers())
		}

		workCount, err := svc.(*service).counters.Get(ctx, mustMailbox(t, mb.Address()), work.ID)
		if err != nil {
			t.Fatalf("counters: %v", err)
		}
		if workCount.Messages != 1 || workCount.Unread != 0 {
			t.Errorf("work counters: %+v", workCount)
		}
		inbox, err := svc.(*service).counters.Get(ctx, mustMailbox(t, mb.Address()), LabelInbox)
		if err != nil {
			t.Fatalf("counters: %v", err)
		}
		if inbox.Unread != 0 || inbox.Messages != 1 {
			t.Errorf("inbox counters after seen: %+v", inbox)
		}
	})

	t.Run("idempotent", func(t *testing.T) {
		mod := Modification{AddLabels: []int{work.ID}, AddMarkers: []Marker{MarkerSeen}}
		if err := mb.Modify(ctx, []string{id}, mod); err != nil {
			t.Fatalf("modify: %v", err)
		}
		count, err := svc.(*service).counters.Get(ctx, mustMailbox(t, mb.Address()), work.ID)
		if err != nil {
			t.Fatalf("counters: %v", err)
		}
		if count.Messages != 1 {
			t.Errorf("expected repeat modify to be a no-op, got %+v", count)
		}
	})

	t.Run("remove label restores unread on remainder", func(t *testing.T) {
		mod := Modification{RemoveLabels: []int{work.ID}, RemoveMarkers: []Marker{MarkerSeen}}
		if err := mb.Modify(ctx, []string{id}, mod); err != nil {
			t.Fatalf("modify: %v", err)
		}
		msg, err := mb.Get(ctx, id)
		if err != nil {
			t.Fatalf("get: %v", err)
		}
		if msg.HasLabel(work.ID) || msg.HasMarker(MarkerSeen) {
			t.Errorf("expected removals applied: %v %v", msg.Labels(), msg.Markers())
		}
		workCount, err := svc.(*service).counters.Get(ctx, mustMailbox(t, mb.Address()), work.ID)
		if err != nil {
			t.Fatalf("counters: %v", err)
		}
		if !workCount.IsZero() {
			t.Errorf("expected zero work counters, got %+v", workCount)
		}
		inbox, err := svc.(*service).counters.Get(ctx, mustMailbox(t, mb.Address()), LabelInbox)
		if err != nil {
			t.Fatalf("counters: %v", err)
		}
		if inbox.Unread != 1 {
			t.Errorf("expected unread restored, got %+v", inbox)
		}
	})

	t.Run("all-mails removal rejected", func(t *testing.T) {
		err := mb.Modify(ctx, []string{id}, Modification{RemoveLabels: []int{LabelAllMails}})
		if !errors.Is(err, ErrAllMailsRequired) {
			t.Errorf("expected ErrAllMailsRequired, got %v", err)
		}
	})

	t.Run("unknown label rejected", func(t *testing.T) {
		err := mb.Modify(ctx, []string{id}, Modification{AddLabels: []int{987654}})
		if !errors.Is(err, store.ErrLabelNotFound) {
			t.Errorf("expected ErrLabelNotFound, got %v", err)
		}
	})

	t.Run("unknown marker rejected", func(t *testing.T) {
		err := mb.Modify(ctx, []string{id}, Modification{AddMarkers: []Marker{Marker(99)}})
		if !errors.Is(err, store.ErrBadMarker) {
			t.Errorf("expected ErrBadMarker, got %v", err)
		}
	})
}

func mustMailbox(t *testing.T, address string) store.Mailbox {
	t.Helper()
	mbox, err := store.NewMailbox(address)
	if err != nil {
		t.Fatalf("mailbox: %v", err)
	}
	return mbox
}

func TestQuota(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t, WithQuota(0, 0))
	mb := svc.Mailbox("user@example.com")

	if err := mb.SetQuota(ctx, Quota{MaxBytes: 100}); err != nil {
		t.Fatalf("set quota: %v", err)
	}

	t.Run("boundary is inclusive", func(t *testing.T) {
		putMessage(t, mb, string(bytes.Repeat([]byte("x"), 60)), LabelInbox)
		putMessage(t, mb, string(bytes.Repeat([]byte("x"), 40)), LabelInbox)

		usage, err := mb.Usage(ctx)
		if err != nil {
			t.Fatalf("usage: %v", err)
		}
		if usage.Bytes != 100 || usage.Messages != 2 {
			t.Errorf("usage: %+v", usage)
		}
	})

	t.Run("one byte over is rejected", func(t *testing.T) {
		msg := store.NewMessage()
		msg.Size = 1
		_, err := mb.Put(ctx, msg, bytes.NewReader([]byte("x")))
		if !errors.Is(err, ErrOverQuota) {
			t.Fatalf("expected ErrOverQuota, got %v", err)
		}
		var qe *QuotaError
		if !errors.As(err, &qe) || !qe.Bytes || qe.Limit != 100 {
			t.Errorf("unexpected quota error detail: %+v", qe)
		}
	})

	t.Run("message count quota", func(t *testing.T) {
		other := svc.Mailbox("count@example.com")
		if err := other.SetQuota(ctx, Quota{MaxMessages: 1}); err != nil {
			t.Fatalf("set quota: %v", err)
		}
		putMessage(t, other, "first", LabelInbox)
		msg := store.NewMessage()
		msg.Size = 5
		if _, err := other.Put(ctx, msg, bytes.NewReader([]byte("again"))); !errors.Is(err, ErrOverQuota) {
			t.Errorf("expected ErrOverQuota, got %v", err)
		}
	})

	t.Run("effective quota reads overrides", func(t *testing.T) {
		q, err := mb.Quota(ctx)
		if err != nil {
			t.Fatalf("quota: %v", err)
		}
		if q.MaxBytes != 100 {
			t.Errorf("expected override, got %+v", q)
		}
	})
}

func TestDeleteAndPurge(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)
	mb := svc.Mailbox("user@example.com")
	mbox := mustMailbox(t, mb.Address())

	keep := putMessage(t, mb, "keep me", LabelInbox)
	gone := putMessage(t, mb, "delete me", LabelInbox)

	t.Run("soft delete hides the message", func(t *testing.T) {
		if err := mb.Delete(ctx, gone); err != nil {
			t.Fatalf("delete: %v", err)
		}

		page, err := mb.List(ctx, LabelInbox, ListOptions{})
		if err != nil {
			t.Fatalf("list: %v", err)
		}
		if len(page.Messages) != 1 || page.Messages[0].ID != keep {
			t.Errorf("expected only %s, got %v", keep, page.Messages)
		}

		usage, err := mb.Usage(ctx)
		if err != nil {
			t.Fatalf("usage: %v", err)
		}
		if usage.Messages != 1 {
			t.Errorf("expected counters to drop, got %+v", usage)
		}
	})

	t.Run("double delete is a no-op", func(t *testing.T) {
		if err := mb.Delete(ctx, gone); err != nil {
			t.Fatalf("second delete: %v", err)
		}
		usage, err := mb.Usage(ctx)
		if err != nil {
			t.Fatalf("usage: %v", err)
		}
		if usage.Messages != 1 {
			t.Errorf("second delete changed counters: %+v", usage)
		}
	})

	t.Run("purge removes metadata and blob", func(t *testing.T) {
		// Entries stamped now are older than a future cutoff.
		purged, err := mb.Purge(ctx, time.Now().Add(time.Hour))
		if err != nil {
			t.Fatalf("purge: %v", err)
		}
		if purged != 1 {
			t.Errorf("expected 1 purged, got %d", purged)
		}
		if _, err := mb.Get(ctx, gone); !errors.Is(err, ErrNotFound) {
			t.Errorf("expected ErrNotFound after purge, got %v", err)
		}
		if _, err := mb.Get(ctx, keep); err != nil {
			t.Errorf("kept message must survive: %v", err)
		}
	})

	t.Run("purge is idempotent", func(t *testing.T) {
		purged, err := mb.Purge(ctx, time.Now().Add(time.Hour))
		if err != nil {
			t.Fatalf("purge: %v", err)
		}
		if purged != 0 {
			t.Errorf("expected nothing to purge, got %d", purged)
		}
	})

	t.Run("young deletions survive an aged purge", func(t *testing.T) {
		young := putMessage(t, mb, "fresh", LabelInbox)
		if err := mb.Delete(ctx, young); err != nil {
			t.Fatalf("delete: %v", err)
		}
		// Zero cutoff applies the retention age; a just-deleted message
		// is far too young.
		purged, err := mb.Purge(ctx, time.Time{})
		if err != nil {
			t.Fatalf("purge: %v", err)
		}
		if purged != 0 {
			t.Errorf("expected young deletion to survive, got %d purged", purged)
		}
		pending, err := svc.(*service).purge.PendingIDs(ctx, mbox)
		if err != nil {
			t.Fatalf("pending: %v", err)
		}
		if _, ok := pending[young]; !ok {
			t.Error("expected purge entry to remain")
		}
	})
}

func TestScrubAndRepair(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)
	mb := svc.Mailbox("user@example.com")
	mbox := mustMailbox(t, mb.Address())

	putMessage(t, mb, "one", LabelInbox)
	putMessage(t, mb, "two", LabelInbox)

	t.Run("scrub matches live counters", func(t *testing.T) {
		report, err := mb.Scrub(ctx)
		if err != nil {
			t.Fatalf("scrub: %v", err)
		}
		if report[LabelInbox].Messages != 2 || report[LabelAllMails].Messages != 2 {
			t.Errorf("unexpected report: %v", report)
		}
	})

	t.Run("repair converges skewed counters", func(t *testing.T) {
		// Skew the cache the way a crashed writer would.
		s := svc.(*service)
		if err := s.counters.Add(ctx, mbox, LabelInbox, LabelCounters{Messages: 5, Bytes: 999}); err != nil {
			t.Fatalf("skew: %v", err)
		}
		if err := s.counters.Add(ctx, mbox, 31337, LabelCounters{Messages: 9}); err != nil {
			t.Fatalf("skew: %v", err)
		}

		if err := mb.RepairCounters(ctx); err != nil {
			t.Fatalf("repair: %v", err)
		}

		inbox, err := s.counters.Get(ctx, mbox, LabelInbox)
		if err != nil {
			t.Fatalf("get: %v", err)
		}
		if inbox.Messages != 2 {
			t.Errorf("inbox not repaired: %+v", inbox)
		}
		stale, err := s.counters.Get(ctx, mbox, 31337)
		if err != nil {
			t.Fatalf("get: %v", err)
		}
		if !stale.IsZero() {
			t.Errorf("stale label not zeroed: %+v", stale)
		}
	})
}

func TestRebuildIndexes(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)
	mb := svc.Mailbox("user@example.com")
	mbox := mustMailbox(t, mb.Address())
	s := svc.(*service)

	one := putMessage(t, mb, "one", LabelInbox)
	two := putMessage(t, mb, "two", LabelInbox)

	// Damage the index the way a crashed writer would: drop a live entry
	// and plant a stale one.
	batch := columns.NewBatch()
	s.index.Remove(batch, mbox, one, []int{LabelInbox})
	s.index.Add(batch, mbox, "00000000-0000-7000-8000-000000000bad", []int{LabelInbox})
	if err := s.cols.Apply(ctx, batch); err != nil {
		t.Fatalf("damage index: %v", err)
	}

	if err := mb.RebuildIndexes(ctx); err != nil {
		t.Fatalf("rebuild: %v", err)
	}

	ids, err := s.index.Get(ctx, mbox, LabelInbox, "", 10, false)
	if err != nil {
		t.Fatalf("get index: %v", err)
	}
	if len(ids) != 2 || ids[0] != one || ids[1] != two {
		t.Errorf("index not rebuilt: %v", ids)
	}
}

func TestLabelManagement(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)
	mb := svc.Mailbox("user@example.com")

	t.Run("add and list", func(t *testing.T) {
		l, err := mb.AddLabel(ctx, "Projects")
		if err != nil {
			t.Fatalf("add: %v", err)
		}
		if l.ID <= store.LabelReservedMax {
			t.Errorf("user label got a reserved id %d", l.ID)
		}
		labels, err := mb.Labels(ctx, false)
		if err != nil {
			t.Fatalf("labels: %v", err)
		}
		if got := labels.Get(l.ID); got == nil || got.Name != "Projects" {
			t.Errorf("label missing from registry: %v", got)
		}
	})

	t.Run("case-insensitive collision", func(t *testing.T) {
		if _, err := mb.AddLabel(ctx, "projects"); !errors.Is(err, store.ErrLabelExists) {
			t.Errorf("expected ErrLabelExists, got %v", err)
		}
	})

	t.Run("invalid names", func(t *testing.T) {
		if _, err := mb.AddLabel(ctx, ""); !errors.Is(err, store.ErrInvalidLabelName) {
			t.Errorf("expected ErrInvalidLabelName, got %v", err)
		}
	})

	t.Run("rename", func(t *testing.T) {
		l, err := mb.AddLabel(ctx, "temp")
		if err != nil {
			t.Fatalf("add: %v", err)
		}
		if err := mb.RenameLabel(ctx, l.ID, "renamed"); err != nil {
			t.Fatalf("rename: %v", err)
		}
		labels, err := mb.Labels(ctx, false)
		if err != nil {
			t.Fatalf("labels: %v", err)
		}
		if labels.Get(l.ID).Name != "renamed" {
			t.Error("rename not persisted")
		}
		if err := mb.RenameLabel(ctx, l.ID, "Projects"); !errors.Is(err, store.ErrLabelExists) {
			t.Errorf("expected collision on rename, got %v", err)
		}
	})

	t.Run("reserved labels are immutable", func(t *testing.T) {
		if err := mb.RenameLabel(ctx, LabelInbox, "in"); !errors.Is(err, store.ErrReservedLabel) {
			t.Errorf("expected ErrReservedLabel, got %v", err)
		}
		if err := mb.DeleteLabel(ctx, LabelAllMails); !errors.Is(err, store.ErrReservedLabel) {
			t.Errorf("expected ErrReservedLabel, got %v", err)
		}
	})

	t.Run("delete untags member messages", func(t *testing.T) {
		l, err := mb.AddLabel(ctx, "doomed")
		if err != nil {
			t.Fatalf("add: %v", err)
		}
		id := putMessage(t, mb, "tagged", LabelInbox, l.ID)

		if err := mb.DeleteLabel(ctx, l.ID); err != nil {
			t.Fatalf("delete label: %v", err)
		}

		msg, err := mb.Get(ctx, id)
		if err != nil {
			t.Fatalf("get: %v", err)
		}
		if msg.HasLabel(l.ID) {
			t.Error("expected message to be untagged")
		}
		if !msg.HasLabel(LabelInbox) {
			t.Error("other labels must survive")
		}
		labels, err := mb.Labels(ctx, false)
		if err != nil {
			t.Fatalf("labels: %v", err)
		}
		if labels.Contains(l.ID) {
			t.Error("expected label to leave the registry")
		}
	})

	t.Run("labels with counters", func(t *testing.T) {
		labels, err := mb.Labels(ctx, true)
		if err != nil {
			t.Fatalf("labels: %v", err)
		}
		inbox := labels.Get(LabelInbox)
		if inbox.Counters == nil {
			t.Fatal("expected counters to be attached")
		}
		if inbox.Counters.Messages < 1 {
			t.Errorf("inbox counters: %+v", inbox.Counters)
		}
	})
}

func TestDeleteAccount(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)
	mb := svc.Mailbox("user@example.com")
	mbox := mustMailbox(t, mb.Address())

	if _, err := mb.AddLabel(ctx, "work"); err != nil {
		t.Fatalf("add label: %v", err)
	}
	id := putMessage(t, mb, "payload", LabelInbox)
	deleted := putMessage(t, mb, "soft deleted", LabelInbox)
	if err := mb.Delete(ctx, deleted); err != nil {
		t.Fatalf("delete: %v", err)
	}

	if err := mb.DeleteAccount(ctx); err != nil {
		t.Fatalf("delete account: %v", err)
	}

	if _, err := mb.Get(ctx, id); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
	page, err := mb.List(ctx, LabelInbox, ListOptions{})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(page.Messages) != 0 {
		t.Errorf("expected empty inbox, got %v", page.Messages)
	}
	usage, err := mb.Usage(ctx)
	if err != nil {
		t.Fatalf("usage: %v", err)
	}
	if !usage.IsZero() {
		t.Errorf("expected zero usage, got %+v", usage)
	}
	labels, err := mb.Labels(ctx, false)
	if err != nil {
		t.Fatalf("labels: %v", err)
	}
	if labels.ContainsName("work") {
		t.Error("expected custom labels to be gone")
	}
	s := svc.(*service)
	pending, err := s.purge.PendingIDs(ctx, mbox)
	if err != nil {
		t.Fatalf("pending: %v", err)
	}
	if len(pending) != 0 {
		t.Errorf("expected empty purge index, got %v", pending)
	}
}
