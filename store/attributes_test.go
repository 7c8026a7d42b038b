package store

import (
	"testing"
	"time"

	"github.com/inboxkit/mailstore/blob"
	"github.com/inboxkit/mailstore/columns"
)

func TestMessageAttributes(t *testing.T) {
	t.Run("full message survives the codec", func(t *testing.T) {
		m := NewMessage()
		m.Size = 2048
		m.Date = time.Date(2026, 3, 14, 9, 26, 53, 589793238, time.UTC)
		m.Subject = "quarterly report"
		m.MessageID = "<abc@example.com>"
		m.From = []Address{{Name: "Ann", Email: "ann@example.com"}}
		m.To = []Address{{Email: "bob@example.com"}, {Email: "carol@example.com"}}
		m.PlainBody = "see attached"
		m.HTMLBody = "<p>see attached</p>"
		m.AddPart(&Part{PartID: "1", MIMEType: "text/plain", Size: 12})
		m.AddPart(&Part{PartID: "2", MIMEType: "image/png", ContentID: "img1", Size: 1800})
		m.Location = blob.NewURI("primary", "id:owner")
		m.AddLabel(LabelInbox)
		m.AddLabel(4711)
		m.AddMarker(MarkerSeen)
		m.AddMarker(MarkerReplied)

		cols, err := marshalMessage(m)
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		got, err := unmarshalMessage(cols, true)
		if err != nil {
			t.Fatalf("unmarshal: %v", err)
		}

		if got.Size != m.Size || !got.Date.Equal(m.Date) || got.Subject != m.Subject {
			t.Errorf("header mismatch: %+v", got)
		}
		if len(got.To) != 2 || got.To[1].Email != "carol@example.com" {
			t.Errorf("to mismatch: %v", got.To)
		}
		if got.PlainBody != m.PlainBody || got.HTMLBody != m.HTMLBody {
			t.Error("body mismatch")
		}
		if p := got.PartByContentID("img1"); p == nil || p.PartID != "2" {
			t.Errorf("content-id index not rebuilt: %v", p)
		}
		if got.Location == nil || got.Location.Name != "id:owner" {
			t.Errorf("location mismatch: %v", got.Location)
		}
		if !got.HasLabel(LabelInbox) || !got.HasLabel(4711) {
			t.Errorf("labels mismatch: %v", got.Labels())
		}
		if !got.HasMarker(MarkerSeen) || !got.HasMarker(MarkerReplied) {
			t.Errorf("markers mismatch: %v", got.Markers())
		}
	})

	t.Run("bodies skipped without includeBody", func(t *testing.T) {
		m := NewMessage()
		m.PlainBody = "secret"
		m.HTMLBody = "<p>secret</p>"
		cols, err := marshalMessage(m)
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		got, err := unmarshalMessage(cols, false)
		if err != nil {
			t.Fatalf("unmarshal: %v", err)
		}
		if got.PlainBody != "" || got.HTMLBody != "" {
			t.Error("expected bodies to be skipped")
		}
	})

	t.Run("unknown columns tolerated", func(t *testing.T) {
		cols := []columns.Column{
			{Name: "size", Value: []byte("10")},
			{Name: "futureAttribute", Value: []byte("whatever")},
			{Name: "l:notanumber"},
			{Name: "m:99"}, // unknown marker ordinal
		}
		got, err := unmarshalMessage(cols, false)
		if err != nil {
			t.Fatalf("unmarshal: %v", err)
		}
		if got.Size != 10 {
			t.Errorf("size mismatch: %d", got.Size)
		}
		if len(got.Labels()) != 0 || len(got.Markers()) != 0 {
			t.Errorf("expected malformed presence columns to be skipped: %v %v",
				got.Labels(), got.Markers())
		}
	})
}

func TestMetadataKeys(t *testing.T) {
	mbox, err := NewMailbox("user@example.com")
	if err != nil {
		t.Fatalf("mailbox: %v", err)
	}

	key := metadataKey(mbox, "0190-abc")
	owner, id, ok := splitMetadataKey(key)
	if !ok || owner != mbox.ID() || id != "0190-abc" {
		t.Errorf("split(%q) = %q %q %v", key, owner, id, ok)
	}

	if _, _, ok := splitMetadataKey("nodelimiter"); ok {
		t.Error("expected split to fail without separator")
	}

	if labelIndexKey(mbox, 7) == purgeIndexKey(mbox) {
		t.Error("purge key must not collide with label keys")
	}
}
