package blob

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
)

// Store is the capability contract a blob backend implements. Backends are
// registered under profile names; selection is strictly table-driven off
// the profile, never inferred from content.
type Store interface {
	// Put stores content under the given name. size is the exact content
	// length; backends may use it to fail fast on caps.
	Put(ctx context.Context, name string, content io.Reader, size int64) error

	// Get returns a reader for the stored content.
	// Caller is responsible for closing the reader.
	Get(ctx context.Context, name string) (io.ReadCloser, error)

	// Delete removes the stored content.
	Delete(ctx context.Context, name string) error
}

// Sentinel errors.
var (
	// ErrUnknownProfile is returned when a URI names a profile with no
	// registered backend.
	ErrUnknownProfile = errors.New("blob: unknown profile")

	// ErrTooLarge is returned by size-capped backends (inline) before any
	// store round-trip.
	ErrTooLarge = errors.New("blob: content exceeds size cap")

	// ErrNotFound is returned when a blob does not exist.
	ErrNotFound = errors.New("blob: not found")
)

// Registry maps profile names to backends. It replaces the usual hidden
// global connection cache: the composition root constructs it, registers
// backends once, and injects it into the Mediator.
type Registry struct {
	mu     sync.RWMutex
	stores map[string]Store
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{stores: make(map[string]Store)}
}

// Register binds a backend to a profile name, replacing any previous
// binding.
func (r *Registry) Register(profile string, s Store) {
	r.mu.Lock()
	r.stores[profile] = s
	r.mu.Unlock()
}

// Lookup resolves a profile to its backend.
func (r *Registry) Lookup(profile string) (Store, error) {
	r.mu.RLock()
	s, ok := r.stores[profile]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownProfile, profile)
	}
	return s, nil
}

// Profiles returns the registered profile names.
func (r *Registry) Profiles() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.stores))
	for p := range r.stores {
		out = append(out, p)
	}
	return out
}

// Default Mediator thresholds.
const (
	// DefaultInlineThreshold routes blobs at or below this size to the
	// inline backend.
	DefaultInlineThreshold = 64 << 10 // 64 KiB

	// DefaultMinCompressSize skips compression for payloads unlikely to
	// benefit.
	DefaultMinCompressSize = 512
)

// Mediator routes blob writes between the inline backend and external
// object-store profiles, applying optional compression and per-blob
// encryption. Reads inspect the URI and apply the inverse transforms.
type Mediator struct {
	registry *Registry

	compressor      Compressor
	minCompressSize int64
	spoolLimit      int64

	encryptor Encryptor
	keychain  Keychain

	inlineThreshold int64
	logger          *slog.Logger
}

// MediatorOption configures a Mediator.
type MediatorOption func(*Mediator)

// WithCompressor enables compression for payloads above the minimum size.
func WithCompressor(c Compressor) MediatorOption {
	return func(m *Mediator) { m.compressor = c }
}

// WithMinCompressSize sets the smallest payload worth compressing.
func WithMinCompressSize(n int64) MediatorOption {
	return func(m *Mediator) {
		if n >= 0 {
			m.minCompressSize = n
		}
	}
}

// WithEncryption enables encryption of every stored blob under the
// keychain's current alias.
func WithEncryption(e Encryptor, k Keychain) MediatorOption {
	return func(m *Mediator) {
		m.encryptor = e
		m.keychain = k
	}
}

// WithInlineThreshold sets the size at or below which blobs are stored
// inline.
func WithInlineThreshold(n int64) MediatorOption {
	return func(m *Mediator) {
		if n >= 0 {
			m.inlineThreshold = n
		}
	}
}

// WithSpoolMemoryLimit sets the in-memory ceiling for compression
// buffering before spilling to disk.
func WithSpoolMemoryLimit(n int64) MediatorOption {
	return func(m *Mediator) {
		if n > 0 {
			m.spoolLimit = n
		}
	}
}

// WithMediatorLogger sets a custom logger.
func WithMediatorLogger(l *slog.Logger) MediatorOption {
	return func(m *Mediator) {
		if l != nil {
			m.logger = l
		}
	}
}

// NewMediator creates a mediator over the given registry.
func NewMediator(registry *Registry, opts ...MediatorOption) *Mediator {
	m := &Mediator{
		registry:        registry,
		minCompressSize: DefaultMinCompressSize,
		inlineThreshold: DefaultInlineThreshold,
		spoolLimit:      DefaultSpoolMemoryLimit,
		logger:          slog.Default(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Write stores a blob and returns its URI. Blobs at or below the inline
// threshold go to the inline profile; everything else goes to
// writeProfile. Compression (when configured and worthwhile) runs first,
// buffered through a spool to learn the true compressed length, then
// encryption, then dispatch.
func (m *Mediator) Write(ctx context.Context, name, writeProfile string, content io.Reader, sizeHint int64) (*URI, error) {
	uri := NewURI(writeProfile, name)
	if sizeHint <= m.inlineThreshold {
		uri.Profile = ProfileInline
	}

	size := sizeHint
	if m.compressor != nil && sizeHint > m.minCompressSize {
		s := newSpool(m.spoolLimit)
		cw, err := m.compressor.Compress(s)
		if err != nil {
			s.Close()
			return nil, err
		}
		if _, err := io.Copy(cw, content); err != nil {
			s.Close()
			return nil, fmt.Errorf("blob: compress %s: %w", name, err)
		}
		if err := cw.Close(); err != nil {
			s.Close()
			return nil, fmt.Errorf("blob: compress %s: %w", name, err)
		}
		rc, err := s.Reader()
		if err != nil {
			s.Close()
			return nil, err
		}
		defer rc.Close()
		content = rc
		size = s.Size()
		uri.Compression = m.compressor.Type()
	}

	if m.encryptor != nil && m.keychain != nil {
		alias := m.keychain.CurrentAlias()
		key, err := m.keychain.Key(alias)
		if err != nil {
			return nil, err
		}
		// Deterministic IV from the globally unique blob name: no IV
		// needs to be stored, and names never repeat across writes.
		enc, err := m.encryptor.Encrypt(content, key, DeriveIV(name, m.encryptor.IVSize()))
		if err != nil {
			return nil, err
		}
		content = enc
		uri.KeyAlias = alias
	}

	backend, err := m.registry.Lookup(uri.Profile)
	if err != nil {
		return nil, err
	}
	if err := backend.Put(ctx, name, content, size); err != nil {
		return nil, fmt.Errorf("blob: write %s to %q: %w", name, uri.Profile, err)
	}

	m.logger.Debug("stored blob",
		"name", name, "profile", uri.Profile, "size", size,
		"compressed", uri.Compression != "", "encrypted", uri.KeyAlias != "")
	return uri, nil
}

// Read returns the blob's plaintext content, applying the inverse
// transforms the URI records (decryption, then decompression).
func (m *Mediator) Read(ctx context.Context, u *URI) (io.ReadCloser, error) {
	backend, err := m.registry.Lookup(u.Profile)
	if err != nil {
		return nil, err
	}
	rc, err := backend.Get(ctx, u.Name)
	if err != nil {
		return nil, fmt.Errorf("blob: read %s from %q: %w", u.Name, u.Profile, err)
	}

	var body io.Reader = rc
	if u.Encrypted() {
		if m.encryptor == nil || m.keychain == nil {
			rc.Close()
			return nil, fmt.Errorf("blob: %s is encrypted but no encryptor is configured", u.Name)
		}
		key, err := m.keychain.Key(u.KeyAlias)
		if err != nil {
			rc.Close()
			return nil, err
		}
		body, err = m.encryptor.Decrypt(body, key, DeriveIV(u.Name, m.encryptor.IVSize()))
		if err != nil {
			rc.Close()
			return nil, err
		}
	}

	if u.Compressed() {
		if m.compressor == nil {
			rc.Close()
			return nil, fmt.Errorf("blob: %s is compressed but no compressor is configured", u.Name)
		}
		dec, err := m.compressor.Decompress(body)
		if err != nil {
			rc.Close()
			return nil, err
		}
		return &chainedCloser{Reader: dec, closers: []io.Closer{dec, rc}}, nil
	}

	return &chainedCloser{Reader: body, closers: []io.Closer{rc}}, nil
}

// Delete removes a blob, dispatching by the URI's profile.
// A nil URI is a no-op: messages stored without raw content have none.
func (m *Mediator) Delete(ctx context.Context, u *URI) error {
	if u == nil {
		return nil
	}
	backend, err := m.registry.Lookup(u.Profile)
	if err != nil {
		return err
	}
	if err := backend.Delete(ctx, u.Name); err != nil {
		return fmt.Errorf("blob: delete %s from %q: %w", u.Name, u.Profile, err)
	}
	return nil
}

// chainedCloser closes a stack of wrapped readers in order.
type chainedCloser struct {
	io.Reader
	closers []io.Closer
}

func (c *chainedCloser) Close() error {
	var errs []error
	for _, cl := range c.closers {
		if err := cl.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
