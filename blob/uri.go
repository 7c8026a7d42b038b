// Package blob stores and retrieves raw message content. The Mediator
// routes writes between an inline backend (small blobs kept beside the
// metadata) and named external object-store profiles, applying optional
// compression and per-blob encryption on the way through. Backends live in
// the blob/inline, blob/fs, blob/memory, blob/s3, and blob/gcs subpackages.
package blob

import (
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
)

// Scheme is the URI scheme for stored blobs.
const Scheme = "blob"

// ProfileInline is the reserved profile literal meaning "stored inline in
// the metadata store" rather than in an external object store.
const ProfileInline = "inline"

// deprecatedCompressedSuffix marks compressed blobs written before the
// compression tag moved into the URI. Read still honors it.
const deprecatedCompressedSuffix = ".dfl"

// URI query parameter names.
const (
	paramCompression = "c"
	paramKeyAlias    = "e"
	paramBlockCount  = "b"
)

// ErrBadURI is returned when a blob URI cannot be parsed.
var ErrBadURI = errors.New("blob: malformed uri")

// URI describes where and how a blob is stored:
// blob://profile/name?c=<algo>&e=<keyalias>&b=<blockcount>.
type URI struct {
	// Profile is the logical store name the blob was written under.
	Profile string
	// Name is the object key, globally unique (message id plus an owner
	// discriminator).
	Name string
	// Compression is the compression algorithm tag, empty when the blob
	// is stored uncompressed.
	Compression string
	// KeyAlias names the encryption key used, empty when unencrypted.
	KeyAlias string
	// BlockCount is the number of stored blocks. Always 1 today; carried
	// for future multi-block blobs.
	BlockCount int
}

// NewURI returns a URI for an uncompressed, unencrypted single-block blob.
func NewURI(profile, name string) *URI {
	return &URI{Profile: profile, Name: name, BlockCount: 1}
}

// String serializes the URI to its compact text form.
func (u *URI) String() string {
	q := url.Values{}
	if u.Compression != "" {
		q.Set(paramCompression, u.Compression)
	}
	if u.KeyAlias != "" {
		q.Set(paramKeyAlias, u.KeyAlias)
	}
	if u.BlockCount > 1 {
		q.Set(paramBlockCount, strconv.Itoa(u.BlockCount))
	}
	out := url.URL{
		Scheme:   Scheme,
		Host:     u.Profile,
		Path:     "/" + u.Name,
		RawQuery: q.Encode(),
	}
	return out.String()
}

// ParseURI parses the compact text form back into a URI.
func ParseURI(s string) (*URI, error) {
	parsed, err := url.Parse(s)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadURI, err)
	}
	if parsed.Scheme != Scheme {
		return nil, fmt.Errorf("%w: scheme %q", ErrBadURI, parsed.Scheme)
	}
	if parsed.Host == "" {
		return nil, fmt.Errorf("%w: missing profile", ErrBadURI)
	}
	name := strings.TrimPrefix(parsed.Path, "/")
	if name == "" {
		return nil, fmt.Errorf("%w: missing name", ErrBadURI)
	}

	u := &URI{
		Profile:     parsed.Host,
		Name:        name,
		Compression: parsed.Query().Get(paramCompression),
		KeyAlias:    parsed.Query().Get(paramKeyAlias),
		BlockCount:  1,
	}
	if b := parsed.Query().Get(paramBlockCount); b != "" {
		n, err := strconv.Atoi(b)
		if err != nil || n < 1 {
			return nil, fmt.Errorf("%w: block count %q", ErrBadURI, b)
		}
		u.BlockCount = n
	}
	return u, nil
}

// Compressed reports whether the blob needs decompression on read, either
// via the explicit tag or the deprecated name-suffix convention.
func (u *URI) Compressed() bool {
	return u.Compression != "" || strings.HasSuffix(u.Name, deprecatedCompressedSuffix)
}

// Encrypted reports whether the blob was encrypted.
func (u *URI) Encrypted() bool {
	return u.KeyAlias != ""
}
