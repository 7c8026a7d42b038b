package store

import (
	"fmt"
	"strings"
)

// Mailbox is the partition and owner identity for all per-user mail data.
// It wraps a validated, lowercased email address and is immutable once
// constructed. The zero value is invalid; use NewMailbox.
type Mailbox struct {
	id string
}

// NewMailbox validates and normalizes an address.
// Addresses are lowercased so that lookups are case-insensitive.
func NewMailbox(address string) (Mailbox, error) {
	address = strings.TrimSpace(address)
	if !isValidAddress(address) {
		return Mailbox{}, fmt.Errorf("%w: %q", ErrInvalidMailbox, address)
	}
	return Mailbox{id: strings.ToLower(address)}, nil
}

// isValidAddress checks the minimal shape this layer depends on: a single
// "@" with non-empty local and domain parts, and no characters that would
// break composite row keys or cache keys.
func isValidAddress(address string) bool {
	if address == "" {
		return false
	}
	at := strings.IndexByte(address, '@')
	if at <= 0 || at == len(address)-1 {
		return false
	}
	if strings.IndexByte(address[at+1:], '@') >= 0 {
		return false
	}
	for _, c := range address {
		if c == ':' || c == '/' || c == '\\' || c == '*' ||
			c == ' ' || c == '\t' || c == '\n' || c == '\r' ||
			c < 32 || c == 127 {
			return false
		}
	}
	return true
}

// ID returns the normalized address used as the partition key.
func (m Mailbox) ID() string {
	return m.id
}

// String returns the normalized address.
func (m Mailbox) String() string {
	return m.id
}

// IsZero reports whether the mailbox was not constructed via NewMailbox.
func (m Mailbox) IsZero() bool {
	return m.id == ""
}
