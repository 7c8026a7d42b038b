package store

import (
	"time"

	"github.com/inboxkit/mailstore/blob"
)

// Address is one entry of an address-list header, preserving order.
type Address struct {
	Name  string `json:"n,omitempty"`
	Email string `json:"a"`
}

// Part describes one MIME part of a message, keyed by part number.
// The message store only persists and retrieves these descriptors; parsing
// raw bytes into parts is the MIME parser's job.
type Part struct {
	PartID      string `json:"p"`
	MIMEType    string `json:"t,omitempty"`
	Filename    string `json:"f,omitempty"`
	Size        int64  `json:"s,omitempty"`
	ContentID   string `json:"cid,omitempty"`
	Disposition string `json:"d,omitempty"`
}

// Message is the in-memory projection of one stored email. It is a
// disposable view: the persisted attribute record is the source of truth,
// and instances are rebuilt from it on every fetch.
type Message struct {
	Size      int64
	Date      time.Time
	From      []Address
	To        []Address
	CC        []Address
	BCC       []Address
	ReplyTo   []Address
	Subject   string
	MessageID string // Message-ID header, not the storage id

	// Bodies are populated lazily: fetches skip them unless asked.
	PlainBody string
	HTMLBody  string

	// Parts maps part number to descriptor; contentIDs is the reverse
	// index from Content-ID to part number.
	Parts      map[string]*Part
	contentIDs map[string]string

	labels  map[int]struct{}
	markers map[Marker]struct{}

	// Location describes where the raw blob lives; nil for messages
	// stored without raw content.
	Location *blob.URI
}

// NewMessage returns an empty message.
func NewMessage() *Message {
	return &Message{
		labels:  make(map[int]struct{}),
		markers: make(map[Marker]struct{}),
	}
}

// AddPart registers a MIME part descriptor and indexes its Content-ID.
func (m *Message) AddPart(p *Part) {
	if p == nil || p.PartID == "" {
		return
	}
	if m.Parts == nil {
		m.Parts = make(map[string]*Part)
	}
	m.Parts[p.PartID] = p
	if p.ContentID != "" {
		if m.contentIDs == nil {
			m.contentIDs = make(map[string]string)
		}
		m.contentIDs[p.ContentID] = p.PartID
	}
}

// PartByContentID resolves a Content-ID to its part descriptor.
func (m *Message) PartByContentID(cid string) *Part {
	if pid, ok := m.contentIDs[cid]; ok {
		return m.Parts[pid]
	}
	return nil
}

// AddLabel tags the message with a label id.
func (m *Message) AddLabel(id int) {
	if m.labels == nil {
		m.labels = make(map[int]struct{})
	}
	m.labels[id] = struct{}{}
}

// RemoveLabel drops a label id from the message.
func (m *Message) RemoveLabel(id int) {
	delete(m.labels, id)
}

// HasLabel reports whether the message carries the label.
func (m *Message) HasLabel(id int) bool {
	_, ok := m.labels[id]
	return ok
}

// Labels returns the message's label ids in unspecified order.
func (m *Message) Labels() []int {
	ids := make([]int, 0, len(m.labels))
	for id := range m.labels {
		ids = append(ids, id)
	}
	return ids
}

// AddMarker sets a marker on the message.
func (m *Message) AddMarker(marker Marker) {
	if m.markers == nil {
		m.markers = make(map[Marker]struct{})
	}
	m.markers[marker] = struct{}{}
}

// RemoveMarker clears a marker.
func (m *Message) RemoveMarker(marker Marker) {
	delete(m.markers, marker)
}

// HasMarker reports whether the marker is set.
func (m *Message) HasMarker(marker Marker) bool {
	_, ok := m.markers[marker]
	return ok
}

// Markers returns the set markers in unspecified order.
func (m *Message) Markers() []Marker {
	out := make([]Marker, 0, len(m.markers))
	for marker := range m.markers {
		out = append(out, marker)
	}
	return out
}

// IsUnread reports whether the message counts toward unread counters.
func (m *Message) IsUnread() bool {
	return !m.HasMarker(MarkerSeen)
}

// Counters returns this message's contribution to a label's counters.
func (m *Message) Counters() LabelCounters {
	c := LabelCounters{Bytes: m.Size, Messages: 1}
	if m.IsUnread() {
		c.Unread = 1
	}
	return c
}

// Modification describes a batched label/marker change applied to a set of
// messages. Label removal of LabelAllMails is rejected by the message
// store: every live message must remain enumerable.
type Modification struct {
	AddLabels     []int
	RemoveLabels  []int
	AddMarkers    []Marker
	RemoveMarkers []Marker
}

// IsZero reports whether the modification changes nothing.
func (mod Modification) IsZero() bool {
	return len(mod.AddLabels) == 0 && len(mod.RemoveLabels) == 0 &&
		len(mod.AddMarkers) == 0 && len(mod.RemoveMarkers) == 0
}
