package store

import "fmt"

// Marker is a per-message boolean flag, at most one of each kind.
type Marker int

// Marker values. Ordinals are persisted in attribute names and must not be
// reordered.
const (
	MarkerSeen Marker = iota
	MarkerReplied
	MarkerForwarded
)

// markerNames maps markers to display names.
var markerNames = map[Marker]string{
	MarkerSeen:      "seen",
	MarkerReplied:   "replied",
	MarkerForwarded: "forwarded",
}

// String returns the marker's display name.
func (m Marker) String() string {
	if name, ok := markerNames[m]; ok {
		return name
	}
	return fmt.Sprintf("marker(%d)", int(m))
}

// Valid reports whether m is a known marker.
func (m Marker) Valid() bool {
	_, ok := markerNames[m]
	return ok
}

// MarkerFromInt maps a persisted ordinal back to a Marker.
// Unknown ordinals return ErrBadMarker rather than defaulting to any
// marker, so corrupted attributes surface instead of silently changing a
// message's flags.
func MarkerFromInt(v int) (Marker, error) {
	m := Marker(v)
	if !m.Valid() {
		return 0, fmt.Errorf("%w: ordinal %d", ErrBadMarker, v)
	}
	return m, nil
}
