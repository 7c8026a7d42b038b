package mongo

import (
	"log/slog"
	"time"
)

// Defaults.
const (
	DefaultDatabase           = "mailstore"
	DefaultColumnsCollection  = "columns"
	DefaultCountersCollection = "counters"
	DefaultTimeout            = 10 * time.Second
)

// options holds MongoDB store configuration.
type options struct {
	database           string
	columnsCollection  string
	countersCollection string
	timeout            time.Duration
	logger             *slog.Logger
}

// Option configures the MongoDB store.
type Option func(*options)

func newOptions(opts ...Option) *options {
	o := &options{
		database:           DefaultDatabase,
		columnsCollection:  DefaultColumnsCollection,
		countersCollection: DefaultCountersCollection,
		timeout:            DefaultTimeout,
		logger:             slog.Default(),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// WithDatabase sets the database name.
func WithDatabase(name string) Option {
	return func(o *options) {
		if name != "" {
			o.database = name
		}
	}
}

// WithCollections sets the column and counter collection names.
func WithCollections(cols, counters string) Option {
	return func(o *options) {
		if cols != "" {
			o.columnsCollection = cols
		}
		if counters != "" {
			o.countersCollection = counters
		}
	}
}

// WithTimeout sets the connect timeout.
func WithTimeout(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.timeout = d
		}
	}
}

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}
