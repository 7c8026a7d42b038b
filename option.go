package mailstore

import (
	"log/slog"
	"time"

	"github.com/rbaliyan/event/v3/transport"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/inboxkit/mailstore/blob"
	"github.com/inboxkit/mailstore/columns"
)

// Default configuration values.
const (
	// DefaultQuotaBytes caps a mailbox's stored bytes unless the account
	// carries an override.
	DefaultQuotaBytes = int64(1) << 30 // 1 GiB

	// DefaultQuotaMessages caps a mailbox's live message count unless the
	// account carries an override.
	DefaultQuotaMessages = int64(100_000)

	// DefaultListCount is the page size when a list request leaves it
	// unset.
	DefaultListCount = 50

	// MaxListCount bounds a single list page.
	MaxListCount = 1000

	// DefaultPurgeAge is how long soft-deleted messages linger before a
	// default purge claims them.
	DefaultPurgeAge = 14 * 24 * time.Hour

	// DefaultMaxConcurrentPuts bounds concurrent content writes per
	// service.
	DefaultMaxConcurrentPuts = 16

	// DefaultShutdownTimeout is the graceful close deadline.
	DefaultShutdownTimeout = 30 * time.Second

	// DefaultWriteProfile is the blob profile for content above the
	// inline threshold.
	DefaultWriteProfile = "primary"

	// DefaultLabelIDAttempts bounds random user label id generation.
	DefaultLabelIDAttempts = 16
)

// options holds service configuration.
type options struct {
	columns columns.Store
	blobs   *blob.Mediator
	logger  *slog.Logger

	// Quota defaults; per-account overrides win.
	quotaBytes    int64
	quotaMessages int64

	// Blob routing
	writeProfile string

	// Batch mutation
	batchSize     int
	flushInterval time.Duration

	// Purge
	purgeAge time.Duration

	// Listing
	defaultListCount int
	maxListCount     int

	// Concurrency
	maxConcurrentPuts int
	shutdownTimeout   time.Duration

	// Label ids
	labelIDAttempts int

	// OpenTelemetry
	tracingEnabled bool
	metricsEnabled bool
	serviceName    string
	tracerProvider trace.TracerProvider
	meterProvider  metric.MeterProvider

	// Event handling
	eventTransport transport.Transport   // optional, noop when nil
	redisClient    redis.UniversalClient // Redis event transport (optional)
}

// newOptions creates options with defaults and applies provided options.
func newOptions(opts ...Option) *options {
	o := &options{
		logger:            slog.Default(),
		quotaBytes:        DefaultQuotaBytes,
		quotaMessages:     DefaultQuotaMessages,
		writeProfile:      DefaultWriteProfile,
		batchSize:         columns.DefaultBatchSize,
		flushInterval:     columns.DefaultFlushInterval,
		purgeAge:          DefaultPurgeAge,
		defaultListCount:  DefaultListCount,
		maxListCount:      MaxListCount,
		maxConcurrentPuts: DefaultMaxConcurrentPuts,
		shutdownTimeout:   DefaultShutdownTimeout,
		labelIDAttempts:   DefaultLabelIDAttempts,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Option configures the service.
type Option func(*options)

// WithColumnStore sets the wide-column backing store (required).
func WithColumnStore(s columns.Store) Option {
	return func(o *options) {
		o.columns = s
	}
}

// WithBlobMediator sets the blob mediator. When unset the service builds
// one with only the inline backend over the column store.
func WithBlobMediator(m *blob.Mediator) Option {
	return func(o *options) {
		o.blobs = m
	}
}

// WithWriteProfile sets the blob profile for content above the inline
// threshold.
func WithWriteProfile(profile string) Option {
	return func(o *options) {
		if profile != "" {
			o.writeProfile = profile
		}
	}
}

// WithQuota sets the default per-mailbox quota. Zero disables the
// corresponding limit.
func WithQuota(maxBytes, maxMessages int64) Option {
	return func(o *options) {
		o.quotaBytes = maxBytes
		o.quotaMessages = maxMessages
	}
}

// WithBatchSize sets the mutation batch size for bulk paths.
func WithBatchSize(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.batchSize = n
		}
	}
}

// WithFlushInterval sets the minimum spacing between bulk batch flushes.
func WithFlushInterval(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.flushInterval = d
		}
	}
}

// WithPurgeAge sets how long soft-deleted messages are retained before
// Purge with a zero cutoff claims them.
func WithPurgeAge(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.purgeAge = d
		}
	}
}

// WithListLimits sets the default and maximum list page sizes.
func WithListLimits(def, max int) Option {
	return func(o *options) {
		if def > 0 {
			o.defaultListCount = def
		}
		if max > 0 {
			o.maxListCount = max
		}
	}
}

// WithMaxConcurrentPuts bounds concurrent content writes.
func WithMaxConcurrentPuts(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.maxConcurrentPuts = n
		}
	}
}

// WithShutdownTimeout sets the graceful close deadline.
func WithShutdownTimeout(d time.Duration) Option {
	return func(o *options) {
		if d >= time.Second {
			o.shutdownTimeout = d
		}
	}
}

// WithLogger sets a custom logger.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithServiceName sets the name used for event bus and telemetry scoping.
func WithServiceName(name string) Option {
	return func(o *options) {
		o.serviceName = name
	}
}

// WithTracing enables OpenTelemetry tracing. A nil provider falls back
// to the global tracer provider.
func WithTracing(tp trace.TracerProvider) Option {
	return func(o *options) {
		o.tracingEnabled = true
		o.tracerProvider = tp
	}
}

// WithMetrics enables OpenTelemetry metrics. A nil provider falls back
// to the global meter provider.
func WithMetrics(mp metric.MeterProvider) Option {
	return func(o *options) {
		o.metricsEnabled = true
		o.meterProvider = mp
	}
}

// WithEventTransport sets a custom event transport.
func WithEventTransport(t transport.Transport) Option {
	return func(o *options) {
		o.eventTransport = t
	}
}

// WithRedisEvents publishes events over Redis.
func WithRedisEvents(client redis.UniversalClient) Option {
	return func(o *options) {
		o.redisClient = client
	}
}
