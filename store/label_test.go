package store

import (
	"errors"
	"strings"
	"testing"
)

func TestValidateLabelName(t *testing.T) {
	valid := []string{
		"work",
		"clients/acme",
		"clients/acme/2026",
		"Mixed Case Name",
		strings.Repeat("x", MaxLabelNameLength),
	}
	for _, name := range valid {
		if err := ValidateLabelName(name); err != nil {
			t.Errorf("ValidateLabelName(%q): unexpected error %v", name, err)
		}
	}

	invalid := []string{
		"",
		strings.Repeat("x", MaxLabelNameLength+1),
		"bad^attr",
		"a//b",
		"/leading",
		"trailing/",
		"inbox/nested",
		"Trash/old", // reserved top-level segment, case-insensitive
	}
	for _, name := range invalid {
		if err := ValidateLabelName(name); !errors.Is(err, ErrInvalidLabelName) {
			t.Errorf("ValidateLabelName(%q): expected ErrInvalidLabelName, got %v", name, err)
		}
	}
}

func TestLabelMap(t *testing.T) {
	m := NewLabelMap()

	t.Run("reserved labels preloaded", func(t *testing.T) {
		for id := LabelAllMails; id <= LabelReservedMax; id++ {
			l := m.Get(id)
			if l == nil || l.Name == "" {
				t.Errorf("reserved label %d missing", id)
			}
		}
	})

	t.Run("name collision is case-insensitive", func(t *testing.T) {
		m[5000] = &Label{ID: 5000, Name: "Projects"}
		if !m.ContainsName("projects") || !m.ContainsName("PROJECTS") {
			t.Error("expected case-insensitive name match")
		}
		if m.ContainsName("other") {
			t.Error("unexpected match")
		}
	})

	t.Run("ids sorted", func(t *testing.T) {
		ids := m.IDs()
		for i := 1; i < len(ids); i++ {
			if ids[i-1] >= ids[i] {
				t.Fatalf("ids not ascending: %v", ids)
			}
		}
	})
}

func TestLabelValueCodec(t *testing.T) {
	name, attrs := decodeLabelValue(encodeLabelValue("work", "order=3"))
	if name != "work" || attrs != "order=3" {
		t.Errorf("got %q %q", name, attrs)
	}
	name, attrs = decodeLabelValue(encodeLabelValue("plain", ""))
	if name != "plain" || attrs != "" {
		t.Errorf("got %q %q", name, attrs)
	}
}

func TestIsReservedLabel(t *testing.T) {
	if !IsReservedLabel(LabelAllMails) || !IsReservedLabel(LabelReservedMax) {
		t.Error("expected reserved range to be inclusive")
	}
	if IsReservedLabel(LabelReservedMax + 1) {
		t.Error("first user id must not be reserved")
	}
}

func TestMarkerFromInt(t *testing.T) {
	for _, m := range []Marker{MarkerSeen, MarkerReplied, MarkerForwarded} {
		got, err := MarkerFromInt(int(m))
		if err != nil || got != m {
			t.Errorf("MarkerFromInt(%d) = %v, %v", int(m), got, err)
		}
	}
	if _, err := MarkerFromInt(99); !errors.Is(err, ErrBadMarker) {
		t.Errorf("expected ErrBadMarker, got %v", err)
	}
}

func TestNewMailbox(t *testing.T) {
	t.Run("normalizes case", func(t *testing.T) {
		mbox, err := NewMailbox("  User@Example.COM ")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if mbox.ID() != "user@example.com" {
			t.Errorf("got %q", mbox.ID())
		}
	})

	t.Run("rejects malformed addresses", func(t *testing.T) {
		for _, addr := range []string{
			"", "noat", "@domain", "local@", "two@@x", "a@b@c",
			"colon:in@example.com", "space in@example.com",
		} {
			if _, err := NewMailbox(addr); !errors.Is(err, ErrInvalidMailbox) {
				t.Errorf("NewMailbox(%q): expected ErrInvalidMailbox, got %v", addr, err)
			}
		}
	})
}
