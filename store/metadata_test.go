package store

import (
	"context"
	"testing"

	"github.com/inboxkit/mailstore/columns"
	"github.com/inboxkit/mailstore/columns/memory"
)

func TestMetadataStore(t *testing.T) {
	ctx := context.Background()
	cols := memory.New()
	mbox := testMailbox(t)
	s := NewMetadataStore(cols)

	newMsg := func(size int64, labels ...int) *Message {
		m := NewMessage()
		m.Size = size
		for _, id := range labels {
			m.AddLabel(id)
		}
		return m
	}

	t.Run("persist and fetch", func(t *testing.T) {
		batch := columns.NewBatch()
		if err := s.Persist(batch, mbox, "id-1", newMsg(100, LabelInbox)); err != nil {
			t.Fatalf("persist: %v", err)
		}
		if err := s.Persist(batch, mbox, "id-2", newMsg(200, LabelSent)); err != nil {
			t.Fatalf("persist: %v", err)
		}
		apply(t, cols, batch)

		found, err := s.Fetch(ctx, mbox, []string{"id-1", "id-2", "missing"}, false)
		if err != nil {
			t.Fatalf("fetch: %v", err)
		}
		if len(found) != 2 {
			t.Fatalf("expected 2 messages, got %d", len(found))
		}
		if found["id-1"].Size != 100 || !found["id-1"].HasLabel(LabelInbox) {
			t.Errorf("id-1 mismatch: %+v", found["id-1"])
		}
		if _, ok := found["missing"]; ok {
			t.Error("missing id must be absent, not an error")
		}
	})

	t.Run("label presence columns", func(t *testing.T) {
		batch := columns.NewBatch()
		s.PersistLabels(batch, mbox, "id-1", []int{42})
		s.DeleteLabels(batch, mbox, "id-1", []int{LabelInbox})
		apply(t, cols, batch)

		found, err := s.Fetch(ctx, mbox, []string{"id-1"}, false)
		if err != nil {
			t.Fatalf("fetch: %v", err)
		}
		m := found["id-1"]
		if !m.HasLabel(42) || m.HasLabel(LabelInbox) {
			t.Errorf("labels mismatch: %v", m.Labels())
		}
	})

	t.Run("marker presence columns", func(t *testing.T) {
		batch := columns.NewBatch()
		s.PersistMarkers(batch, mbox, "id-2", []Marker{MarkerSeen})
		apply(t, cols, batch)

		found, err := s.Fetch(ctx, mbox, []string{"id-2"}, false)
		if err != nil {
			t.Fatalf("fetch: %v", err)
		}
		if found["id-2"].IsUnread() {
			t.Error("expected seen message to not be unread")
		}

		batch = columns.NewBatch()
		s.DeleteMarkers(batch, mbox, "id-2", []Marker{MarkerSeen})
		apply(t, cols, batch)

		found, err = s.Fetch(ctx, mbox, []string{"id-2"}, false)
		if err != nil {
			t.Fatalf("fetch: %v", err)
		}
		if !found["id-2"].IsUnread() {
			t.Error("expected message to be unread again")
		}
	})

	t.Run("scan visits every message", func(t *testing.T) {
		// A second mailbox must not leak into the scan.
		other, err := NewMailbox("other@example.com")
		if err != nil {
			t.Fatalf("mailbox: %v", err)
		}
		batch := columns.NewBatch()
		if err := s.Persist(batch, other, "foreign", newMsg(5)); err != nil {
			t.Fatalf("persist: %v", err)
		}
		apply(t, cols, batch)

		seen := map[string]int64{}
		err = s.Scan(ctx, mbox, 1, func(id string, m *Message) error {
			seen[id] = m.Size
			return nil
		})
		if err != nil {
			t.Fatalf("scan: %v", err)
		}
		if len(seen) != 2 || seen["id-1"] != 100 || seen["id-2"] != 200 {
			t.Errorf("unexpected scan result: %v", seen)
		}
	})

	t.Run("delete messages", func(t *testing.T) {
		batch := columns.NewBatch()
		s.DeleteMessages(batch, mbox, []string{"id-1", "id-2"})
		apply(t, cols, batch)

		found, err := s.Fetch(ctx, mbox, []string{"id-1", "id-2"}, false)
		if err != nil {
			t.Fatalf("fetch: %v", err)
		}
		if len(found) != 0 {
			t.Errorf("expected no messages, got %v", found)
		}
	})
}

func TestLabelIndexStore(t *testing.T) {
	ctx := context.Background()
	cols := memory.New()
	mbox := testMailbox(t)
	s := NewLabelIndexStore(cols)

	batch := columns.NewBatch()
	for _, id := range []string{"a", "b", "c", "d"} {
		s.Add(batch, mbox, id, []int{LabelInbox})
	}
	s.Add(batch, mbox, "b", []int{LabelStarred})
	apply(t, cols, batch)

	t.Run("forward paging", func(t *testing.T) {
		ids, err := s.Get(ctx, mbox, LabelInbox, "", 2, false)
		if err != nil {
			t.Fatalf("get: %v", err)
		}
		if len(ids) != 2 || ids[0] != "a" || ids[1] != "b" {
			t.Errorf("got %v", ids)
		}
		ids, err = s.Get(ctx, mbox, LabelInbox, "b", 10, false)
		if err != nil {
			t.Fatalf("get: %v", err)
		}
		if len(ids) != 2 || ids[0] != "c" {
			t.Errorf("got %v", ids)
		}
	})

	t.Run("reverse paging", func(t *testing.T) {
		ids, err := s.Get(ctx, mbox, LabelInbox, "", 2, true)
		if err != nil {
			t.Fatalf("get: %v", err)
		}
		if len(ids) != 2 || ids[0] != "d" || ids[1] != "c" {
			t.Errorf("got %v", ids)
		}
	})

	t.Run("contains", func(t *testing.T) {
		member, err := s.Contains(ctx, mbox, LabelStarred, []string{"a", "b"})
		if err != nil {
			t.Fatalf("contains: %v", err)
		}
		if member["a"] || !member["b"] {
			t.Errorf("got %v", member)
		}
	})

	t.Run("remove and delete index", func(t *testing.T) {
		batch := columns.NewBatch()
		s.Remove(batch, mbox, "a", []int{LabelInbox})
		apply(t, cols, batch)

		ids, err := s.Get(ctx, mbox, LabelInbox, "", 10, false)
		if err != nil {
			t.Fatalf("get: %v", err)
		}
		if len(ids) != 3 || ids[0] != "b" {
			t.Errorf("got %v", ids)
		}

		batch = columns.NewBatch()
		s.DeleteIndex(batch, mbox, LabelInbox)
		apply(t, cols, batch)
		ids, err = s.Get(ctx, mbox, LabelInbox, "", 10, false)
		if err != nil {
			t.Fatalf("get: %v", err)
		}
		if len(ids) != 0 {
			t.Errorf("expected empty index, got %v", ids)
		}
	})
}

func TestAccountStore(t *testing.T) {
	ctx := context.Background()
	cols := memory.New()
	mbox := testMailbox(t)
	s := NewAccountStore(cols)

	t.Run("labels start with reserved set", func(t *testing.T) {
		labels, err := s.Labels(ctx, mbox)
		if err != nil {
			t.Fatalf("labels: %v", err)
		}
		if !labels.Contains(LabelInbox) || labels.Contains(5000) {
			t.Errorf("unexpected labels: %v", labels.IDs())
		}
	})

	t.Run("custom label round trip", func(t *testing.T) {
		l := &Label{ID: 5000, Name: "Projects", Attributes: "order=1"}
		if err := s.PutLabel(ctx, mbox, l); err != nil {
			t.Fatalf("put: %v", err)
		}
		labels, err := s.Labels(ctx, mbox)
		if err != nil {
			t.Fatalf("labels: %v", err)
		}
		got := labels.Get(5000)
		if got == nil || got.Name != "Projects" || got.Attributes != "order=1" {
			t.Errorf("got %+v", got)
		}

		if err := s.DeleteLabel(ctx, mbox, 5000); err != nil {
			t.Fatalf("delete: %v", err)
		}
		labels, err = s.Labels(ctx, mbox)
		if err != nil {
			t.Fatalf("labels: %v", err)
		}
		if labels.Contains(5000) {
			t.Error("expected label to be gone")
		}
	})

	t.Run("quota overrides", func(t *testing.T) {
		q, err := s.Quota(ctx, mbox)
		if err != nil {
			t.Fatalf("quota: %v", err)
		}
		if q != (Quota{}) {
			t.Errorf("expected zero quota, got %+v", q)
		}

		if err := s.SetQuota(ctx, mbox, Quota{MaxBytes: 1024, MaxMessages: 10}); err != nil {
			t.Fatalf("set: %v", err)
		}
		q, err = s.Quota(ctx, mbox)
		if err != nil {
			t.Fatalf("quota: %v", err)
		}
		if q.MaxBytes != 1024 || q.MaxMessages != 10 {
			t.Errorf("got %+v", q)
		}

		// Zero fields clear the overrides.
		if err := s.SetQuota(ctx, mbox, Quota{MaxBytes: 2048}); err != nil {
			t.Fatalf("set: %v", err)
		}
		q, err = s.Quota(ctx, mbox)
		if err != nil {
			t.Fatalf("quota: %v", err)
		}
		if q.MaxBytes != 2048 || q.MaxMessages != 0 {
			t.Errorf("got %+v", q)
		}
	})
}
