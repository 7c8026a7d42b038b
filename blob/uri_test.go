package blob

import (
	"errors"
	"testing"
)

func TestURIRoundTrip(t *testing.T) {
	cases := []struct {
		name string
		uri  *URI
	}{
		{"plain inline", NewURI(ProfileInline, "0190-msg:user@example.com")},
		{"compressed", &URI{Profile: "primary", Name: "n", Compression: "dfl", BlockCount: 1}},
		{"encrypted", &URI{Profile: "primary", Name: "n", KeyAlias: "k1", BlockCount: 1}},
		{"compressed encrypted multiblock", &URI{
			Profile: "archive", Name: "id:owner", Compression: "dfl", KeyAlias: "k2", BlockCount: 3,
		}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			parsed, err := ParseURI(tc.uri.String())
			if err != nil {
				t.Fatalf("parse %q: %v", tc.uri.String(), err)
			}
			if *parsed != *tc.uri {
				t.Errorf("round trip mismatch: %+v != %+v", parsed, tc.uri)
			}
		})
	}
}

func TestParseURIErrors(t *testing.T) {
	cases := []string{
		"http://inline/name",
		"blob:///name",
		"blob://inline",
		"blob://inline/",
		"blob://inline/name?b=0",
		"blob://inline/name?b=x",
	}
	for _, s := range cases {
		if _, err := ParseURI(s); !errors.Is(err, ErrBadURI) {
			t.Errorf("ParseURI(%q): expected ErrBadURI, got %v", s, err)
		}
	}
}

func TestURICompressed(t *testing.T) {
	t.Run("explicit tag", func(t *testing.T) {
		u := &URI{Profile: "p", Name: "n", Compression: "dfl"}
		if !u.Compressed() {
			t.Error("expected compressed")
		}
	})
	t.Run("deprecated suffix", func(t *testing.T) {
		u := NewURI("p", "n.dfl")
		if !u.Compressed() {
			t.Error("expected legacy suffix to mark blob compressed")
		}
	})
	t.Run("plain", func(t *testing.T) {
		if NewURI("p", "n").Compressed() {
			t.Error("expected uncompressed")
		}
	})
}
