package blob

import (
	"crypto/cipher"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/klauspost/compress/flate"
	"golang.org/x/crypto/chacha20"
)

// Compressor is a pluggable compression strategy applied by the Mediator
// before dispatching a blob write. The algorithm tag is recorded in the
// blob's URI so reads can apply the inverse transform.
type Compressor interface {
	// Type returns the algorithm tag recorded in blob URIs.
	Type() string

	// Compress wraps w; bytes written to the returned WriteCloser are
	// compressed into w. Close flushes the compressor, not w.
	Compress(w io.Writer) (io.WriteCloser, error)

	// Decompress wraps r with the inverse transform.
	Decompress(r io.Reader) (io.ReadCloser, error)
}

// Encryptor is a pluggable encryption strategy. The initialization vector
// is supplied by the Mediator, derived deterministically from the blob
// name; that is acceptable because blob names are globally unique, not
// because the IV needs to be secret.
type Encryptor interface {
	// IVSize returns the initialization vector length in bytes.
	IVSize() int

	// Encrypt wraps r so that reads yield ciphertext.
	Encrypt(r io.Reader, key, iv []byte) (io.Reader, error)

	// Decrypt wraps r so that reads yield plaintext.
	Decrypt(r io.Reader, key, iv []byte) (io.Reader, error)
}

// Keychain resolves encryption key aliases. The alias recorded in a blob's
// URI must keep resolving for as long as the blob lives, so keys are
// referenced by name rather than embedded.
type Keychain interface {
	// CurrentAlias returns the alias new blobs are encrypted under.
	CurrentAlias() string

	// Key resolves an alias to key material.
	Key(alias string) ([]byte, error)
}

// DeriveIV derives a deterministic IV of the given size from a blob name
// by stretching a SHA-256 digest of it.
func DeriveIV(name string, size int) []byte {
	iv := make([]byte, 0, size)
	sum := sha256.Sum256([]byte(name))
	for len(iv) < size {
		iv = append(iv, sum[:]...)
		sum = sha256.Sum256(sum[:])
	}
	return iv[:size]
}

// deflate is the built-in Compressor.
type deflateCompressor struct{}

// Deflate returns the built-in DEFLATE compressor. Its algorithm tag
// ("dfl") matches the deprecated filename-suffix convention.
func Deflate() Compressor {
	return deflateCompressor{}
}

func (deflateCompressor) Type() string { return "dfl" }

func (deflateCompressor) Compress(w io.Writer) (io.WriteCloser, error) {
	fw, err := flate.NewWriter(w, flate.DefaultCompression)
	if err != nil {
		return nil, fmt.Errorf("blob: deflate writer: %w", err)
	}
	return fw, nil
}

func (deflateCompressor) Decompress(r io.Reader) (io.ReadCloser, error) {
	return flate.NewReader(r), nil
}

// chacha is the built-in Encryptor, an XChaCha20 stream cipher.
type chachaEncryptor struct{}

// ChaCha20 returns the built-in XChaCha20 stream-cipher encryptor.
// Keys must be 32 bytes.
func ChaCha20() Encryptor {
	return chachaEncryptor{}
}

func (chachaEncryptor) IVSize() int { return chacha20.NonceSizeX }

func (chachaEncryptor) Encrypt(r io.Reader, key, iv []byte) (io.Reader, error) {
	c, err := chacha20.NewUnauthenticatedCipher(key, iv)
	if err != nil {
		return nil, fmt.Errorf("blob: chacha20: %w", err)
	}
	return cipher.StreamReader{S: c, R: r}, nil
}

// Decrypt is identical to Encrypt: the stream cipher is its own inverse.
func (e chachaEncryptor) Decrypt(r io.Reader, key, iv []byte) (io.Reader, error) {
	return e.Encrypt(r, key, iv)
}

// ErrUnknownKeyAlias is returned when a keychain cannot resolve an alias.
var ErrUnknownKeyAlias = errors.New("blob: unknown key alias")

// StaticKeychain is a fixed in-memory Keychain. Safe for concurrent use.
type StaticKeychain struct {
	mu      sync.RWMutex
	current string
	keys    map[string][]byte
}

// NewStaticKeychain builds a keychain from alias -> key material.
// New blobs are encrypted under current.
func NewStaticKeychain(current string, keys map[string][]byte) *StaticKeychain {
	copied := make(map[string][]byte, len(keys))
	for alias, key := range keys {
		copied[alias] = append([]byte(nil), key...)
	}
	return &StaticKeychain{current: current, keys: copied}
}

// CurrentAlias returns the alias new blobs are encrypted under.
func (k *StaticKeychain) CurrentAlias() string {
	k.mu.RLock()
	defer k.mu.RUnlock()
	return k.current
}

// Key resolves an alias.
func (k *StaticKeychain) Key(alias string) ([]byte, error) {
	k.mu.RLock()
	defer k.mu.RUnlock()
	key, ok := k.keys[alias]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownKeyAlias, alias)
	}
	return key, nil
}

// Rotate adds a key and makes its alias current. Existing aliases keep
// resolving so previously written blobs stay readable.
func (k *StaticKeychain) Rotate(alias string, key []byte) {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.keys[alias] = append([]byte(nil), key...)
	k.current = alias
}
