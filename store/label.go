package store

import (
	"fmt"
	"sort"
	"strings"
)

// Reserved label ids. These labels exist implicitly for every mailbox and
// can be neither renamed nor deleted. User labels occupy ids above
// LabelReservedMax.
const (
	LabelAllMails = iota
	LabelInbox
	LabelDrafts
	LabelSent
	LabelTrash
	LabelSpam
	LabelStarred
	LabelImportant
	LabelNotifications
	LabelAttachments
	LabelPOP3

	// LabelReservedMax is the highest reserved label id.
	LabelReservedMax = LabelPOP3
)

// MaxLabelID bounds the randomly generated user label id space.
const MaxLabelID = 1<<31 - 1

// MaxLabelNameLength bounds label display names.
const MaxLabelNameLength = 250

// LabelSeparator nests label names ("clients/acme"). The top-level segment
// of a nested name must not shadow a reserved label name.
const LabelSeparator = "/"

// labelAttrSeparator splits name from attributes in the persisted account
// record; neither names nor attributes may contain it.
const labelAttrSeparator = "^"

// reservedLabelNames maps reserved ids to their fixed names.
var reservedLabelNames = map[int]string{
	LabelAllMails:      "all",
	LabelInbox:         "inbox",
	LabelDrafts:        "drafts",
	LabelSent:          "sent",
	LabelTrash:         "trash",
	LabelSpam:          "spam",
	LabelStarred:       "starred",
	LabelImportant:     "important",
	LabelNotifications: "notifications",
	LabelAttachments:   "attachments",
	LabelPOP3:          "pop3",
}

// IsReservedLabel reports whether id falls in the reserved range.
func IsReservedLabel(id int) bool {
	return id >= LabelAllMails && id <= LabelReservedMax
}

// ReservedLabelName returns the fixed name of a reserved label id,
// or "" when id is not reserved.
func ReservedLabelName(id int) string {
	return reservedLabelNames[id]
}

// ValidateLabelName rejects names the label store refuses to persist:
// empty or oversized names, names containing the attribute separator,
// names with empty nested segments, and nested names whose top-level
// segment equals a reserved label name.
func ValidateLabelName(name string) error {
	if name == "" {
		return fmt.Errorf("%w: empty name", ErrInvalidLabelName)
	}
	if len(name) > MaxLabelNameLength {
		return fmt.Errorf("%w: name exceeds %d characters", ErrInvalidLabelName, MaxLabelNameLength)
	}
	if strings.Contains(name, labelAttrSeparator) {
		return fmt.Errorf("%w: name contains reserved character %q", ErrInvalidLabelName, labelAttrSeparator)
	}
	segments := strings.Split(name, LabelSeparator)
	for _, seg := range segments {
		if seg == "" {
			return fmt.Errorf("%w: empty nested segment in %q", ErrInvalidLabelName, name)
		}
	}
	if len(segments) > 1 {
		top := strings.ToLower(segments[0])
		for _, reserved := range reservedLabelNames {
			if top == reserved {
				return fmt.Errorf("%w: %q nests under reserved label %q", ErrInvalidLabelName, name, reserved)
			}
		}
	}
	return nil
}

// Label is a tag applied to messages, identified by an integer id.
type Label struct {
	ID         int
	Name       string
	Attributes string // opaque client attributes (e.g. display order)
	Counters   *LabelCounters
}

// LabelMap holds a mailbox's labels keyed by id.
type LabelMap map[int]*Label

// NewLabelMap returns a map pre-populated with the reserved labels.
func NewLabelMap() LabelMap {
	m := make(LabelMap, len(reservedLabelNames))
	for id, name := range reservedLabelNames {
		m[id] = &Label{ID: id, Name: name}
	}
	return m
}

// Get returns the label with the given id, or nil.
func (m LabelMap) Get(id int) *Label {
	return m[id]
}

// Contains reports whether id exists in the map.
func (m LabelMap) Contains(id int) bool {
	_, ok := m[id]
	return ok
}

// ContainsName reports whether a label with the given name exists.
// Comparison is case-insensitive; name uniqueness within a mailbox is
// case-insensitive by contract.
func (m LabelMap) ContainsName(name string) bool {
	lower := strings.ToLower(name)
	for _, l := range m {
		if strings.ToLower(l.Name) == lower {
			return true
		}
	}
	return false
}

// IDs returns the label ids in ascending order.
func (m LabelMap) IDs() []int {
	ids := make([]int, 0, len(m))
	for id := range m {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}

// encodeLabelValue builds the persisted account-record value for a label.
func encodeLabelValue(name, attributes string) string {
	if attributes == "" {
		return name
	}
	return name + labelAttrSeparator + attributes
}

// decodeLabelValue splits a persisted account-record value.
func decodeLabelValue(v string) (name, attributes string) {
	if i := strings.Index(v, labelAttrSeparator); i >= 0 {
		return v[:i], v[i+1:]
	}
	return v, ""
}
