package store

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/inboxkit/mailstore/blob"
	"github.com/inboxkit/mailstore/columns"
)

// Wide-column table names.
const (
	// TableMetadata holds one row per message with its attribute columns.
	TableMetadata = "MessageMetadata"
	// TableLabelIndex holds one row per (mailbox, label) listing member
	// message ids, plus the purge row per mailbox.
	TableLabelIndex = "LabelIndex"
	// TableCounters holds one counter row per mailbox.
	TableCounters = "MessageCounters"
	// TableAccounts holds one row per mailbox with its label registry and
	// quota overrides.
	TableAccounts = "Accounts"
)

// Attribute column names. Presence attributes (labels, markers) are
// zero-length columns named by prefix so concurrent writers can add and
// remove them without read-modify-write conflicts.
const (
	attrSize      = "size"
	attrDate      = "date"
	attrSubject   = "subject"
	attrMessageID = "messageId"
	attrFrom      = "from"
	attrTo        = "to"
	attrCC        = "cc"
	attrBCC       = "bcc"
	attrReplyTo   = "replyTo"
	attrPlain     = "plain"
	attrHTML      = "html"
	attrParts     = "parts"
	attrLocation  = "location"

	labelAttrPrefix  = "l:"
	markerAttrPrefix = "m:"
)

// keySeparator joins mailbox ids with qualifiers in row keys. Mailbox ids
// never contain it; NewMailbox enforces that.
const keySeparator = ":"

// metadataKey is the row key of a message's attribute record.
func metadataKey(mailbox Mailbox, id string) string {
	return mailbox.ID() + keySeparator + id
}

// splitMetadataKey recovers the message id from a metadata row key.
func splitMetadataKey(key string) (mailbox, id string, ok bool) {
	i := strings.LastIndex(key, keySeparator)
	if i < 0 {
		return "", "", false
	}
	return key[:i], key[i+1:], true
}

// labelIndexKey is the row key of one label's membership index.
func labelIndexKey(mailbox Mailbox, labelID int) string {
	return mailbox.ID() + keySeparator + strconv.Itoa(labelID)
}

// purgeIndexKey is the row key of the mailbox's pending-purge index. The
// "purge" qualifier cannot collide with label index keys, which use
// numeric qualifiers only.
func purgeIndexKey(mailbox Mailbox) string {
	return mailbox.ID() + keySeparator + "purge"
}

// countersKey is the row key of the mailbox's counter row.
func countersKey(mailbox Mailbox) string {
	return mailbox.ID()
}

// accountKey is the row key of the mailbox's account row.
func accountKey(mailbox Mailbox) string {
	return mailbox.ID()
}

// labelAttr names the presence column for a label id.
func labelAttr(id int) string {
	return labelAttrPrefix + strconv.Itoa(id)
}

// markerAttr names the presence column for a marker.
func markerAttr(m Marker) string {
	return markerAttrPrefix + strconv.Itoa(int(m))
}

// marshalMessage flattens a message into attribute columns.
func marshalMessage(m *Message) ([]columns.Column, error) {
	cols := []columns.Column{
		{Name: attrSize, Value: []byte(strconv.FormatInt(m.Size, 10))},
	}
	if !m.Date.IsZero() {
		cols = append(cols, columns.Column{
			Name:  attrDate,
			Value: []byte(m.Date.UTC().Format(time.RFC3339Nano)),
		})
	}
	if m.Subject != "" {
		cols = append(cols, columns.Column{Name: attrSubject, Value: []byte(m.Subject)})
	}
	if m.MessageID != "" {
		cols = append(cols, columns.Column{Name: attrMessageID, Value: []byte(m.MessageID)})
	}
	for _, v := range []struct {
		name  string
		addrs []Address
	}{
		{attrFrom, m.From},
		{attrTo, m.To},
		{attrCC, m.CC},
		{attrBCC, m.BCC},
		{attrReplyTo, m.ReplyTo},
	} {
		if len(v.addrs) == 0 {
			continue
		}
		data, err := json.Marshal(v.addrs)
		if err != nil {
			return nil, fmt.Errorf("marshal %s: %w", v.name, err)
		}
		cols = append(cols, columns.Column{Name: v.name, Value: data})
	}
	if m.PlainBody != "" {
		cols = append(cols, columns.Column{Name: attrPlain, Value: []byte(m.PlainBody)})
	}
	if m.HTMLBody != "" {
		cols = append(cols, columns.Column{Name: attrHTML, Value: []byte(m.HTMLBody)})
	}
	if len(m.Parts) > 0 {
		data, err := json.Marshal(m.Parts)
		if err != nil {
			return nil, fmt.Errorf("marshal parts: %w", err)
		}
		cols = append(cols, columns.Column{Name: attrParts, Value: data})
	}
	if m.Location != nil {
		cols = append(cols, columns.Column{Name: attrLocation, Value: []byte(m.Location.String())})
	}
	for _, id := range m.Labels() {
		cols = append(cols, columns.Column{Name: labelAttr(id)})
	}
	for _, marker := range m.Markers() {
		cols = append(cols, columns.Column{Name: markerAttr(marker)})
	}
	return cols, nil
}

// unmarshalMessage rebuilds a message from its attribute columns. Bodies
// are skipped unless includeBody is set. Unknown attribute and marker
// columns are ignored so older readers tolerate newer writers.
func unmarshalMessage(cols []columns.Column, includeBody bool) (*Message, error) {
	m := NewMessage()
	for _, c := range cols {
		switch {
		case strings.HasPrefix(c.Name, labelAttrPrefix):
			id, err := strconv.Atoi(c.Name[len(labelAttrPrefix):])
			if err != nil {
				continue
			}
			m.AddLabel(id)
			continue
		case strings.HasPrefix(c.Name, markerAttrPrefix):
			ord, err := strconv.Atoi(c.Name[len(markerAttrPrefix):])
			if err != nil {
				continue
			}
			if marker := Marker(ord); marker.Valid() {
				m.AddMarker(marker)
			}
			continue
		}

		switch c.Name {
		case attrSize:
			size, err := strconv.ParseInt(string(c.Value), 10, 64)
			if err != nil {
				return nil, fmt.Errorf("bad size attribute: %w", err)
			}
			m.Size = size
		case attrDate:
			date, err := time.Parse(time.RFC3339Nano, string(c.Value))
			if err != nil {
				return nil, fmt.Errorf("bad date attribute: %w", err)
			}
			m.Date = date
		case attrSubject:
			m.Subject = string(c.Value)
		case attrMessageID:
			m.MessageID = string(c.Value)
		case attrFrom:
			if err := json.Unmarshal(c.Value, &m.From); err != nil {
				return nil, fmt.Errorf("bad from attribute: %w", err)
			}
		case attrTo:
			if err := json.Unmarshal(c.Value, &m.To); err != nil {
				return nil, fmt.Errorf("bad to attribute: %w", err)
			}
		case attrCC:
			if err := json.Unmarshal(c.Value, &m.CC); err != nil {
				return nil, fmt.Errorf("bad cc attribute: %w", err)
			}
		case attrBCC:
			if err := json.Unmarshal(c.Value, &m.BCC); err != nil {
				return nil, fmt.Errorf("bad bcc attribute: %w", err)
			}
		case attrReplyTo:
			if err := json.Unmarshal(c.Value, &m.ReplyTo); err != nil {
				return nil, fmt.Errorf("bad replyTo attribute: %w", err)
			}
		case attrPlain:
			if includeBody {
				m.PlainBody = string(c.Value)
			}
		case attrHTML:
			if includeBody {
				m.HTMLBody = string(c.Value)
			}
		case attrParts:
			var parts map[string]*Part
			if err := json.Unmarshal(c.Value, &parts); err != nil {
				return nil, fmt.Errorf("bad parts attribute: %w", err)
			}
			for _, p := range parts {
				m.AddPart(p)
			}
		case attrLocation:
			u, err := blob.ParseURI(string(c.Value))
			if err != nil {
				return nil, fmt.Errorf("bad location attribute: %w", err)
			}
			m.Location = u
		}
	}
	return m, nil
}
