package mailstore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/rbaliyan/event/v3"
	"github.com/rbaliyan/event/v3/transport/noop"
	eventredis "github.com/rbaliyan/event/v3/transport/redis"
	"golang.org/x/sync/semaphore"

	"github.com/inboxkit/mailstore/blob"
	"github.com/inboxkit/mailstore/blob/inline"
	"github.com/inboxkit/mailstore/columns"
	"github.com/inboxkit/mailstore/store"
)

// ServiceHealth provides health and state information about the service.
type ServiceHealth interface {
	// IsConnected returns true if the service is connected and ready.
	IsConnected() bool
}

// Service owns the storage connections and creates per-mailbox clients.
//
// Composed of:
//   - ServiceHealth: Health and state queries (IsConnected)
type Service interface {
	ServiceHealth

	// Connect establishes connections to storage backends.
	Connect(ctx context.Context) error
	// Close closes all connections after in-flight writes drain.
	Close(ctx context.Context) error
	// Mailbox returns a client scoped to one mailbox. The client shares
	// the service's connections; address validity is checked on first use.
	Mailbox(address string) Mailbox
	// Events returns per-service event instances for subscribing and
	// publishing.
	Events() *ServiceEvents
}

// Connection states for the service.
const (
	stateDisconnected int32 = 0
	stateConnecting   int32 = 1
	stateConnected    int32 = 2
)

// service is the default implementation of Service.
type service struct {
	cols   columns.Store
	blobs  *blob.Mediator
	logger *slog.Logger
	opts   *options

	metadata *store.MetadataStore
	index    *store.LabelIndexStore
	counters *store.CounterStore
	purge    *store.PurgeIndex
	accounts *store.AccountStore

	state    int32               // stateDisconnected, stateConnecting, or stateConnected
	putSem   *semaphore.Weighted // bounds concurrent content writes
	otel     *otelInstrumentation
	eventBus *event.Bus
	events   *ServiceEvents
}

// NewService creates a message store service.
// Call Connect() to establish connections to backends.
func NewService(opts ...Option) (Service, error) {
	o := newOptions(opts...)

	if o.columns == nil {
		return nil, ErrColumnStoreRequired
	}

	blobs := o.blobs
	if blobs == nil {
		// Without an external object store everything lives inline. The
		// write profile maps to the same backend so oversized content
		// still has a home.
		registry := blob.NewRegistry()
		backend := inline.New(o.columns)
		registry.Register(blob.ProfileInline, backend)
		registry.Register(o.writeProfile, backend)
		blobs = blob.NewMediator(registry, blob.WithMediatorLogger(o.logger))
	}

	otelInstr, err := newOtelInstrumentation(o)
	if err != nil {
		return nil, fmt.Errorf("init otel: %w", err)
	}

	return &service{
		cols:     o.columns,
		blobs:    blobs,
		logger:   o.logger,
		opts:     o,
		metadata: store.NewMetadataStore(o.columns),
		index:    store.NewLabelIndexStore(o.columns),
		counters: store.NewCounterStore(o.columns),
		purge:    store.NewPurgeIndex(o.columns),
		accounts: store.NewAccountStore(o.columns),
		putSem:   semaphore.NewWeighted(int64(o.maxConcurrentPuts)),
		otel:     otelInstr,
	}, nil
}

// Events returns per-service event instances for subscribing and publishing.
func (s *service) Events() *ServiceEvents {
	return s.events
}

// IsConnected returns true if the service is connected and ready.
func (s *service) IsConnected() bool {
	return atomic.LoadInt32(&s.state) == stateConnected
}

// Connect establishes connections to storage backends.
func (s *service) Connect(ctx context.Context) error {
	// Three states keep Mailbox clients from observing a half-initialized
	// service: stateDisconnected -> stateConnecting -> stateConnected.
	if !atomic.CompareAndSwapInt32(&s.state, stateDisconnected, stateConnecting) {
		return ErrAlreadyConnected
	}

	success := false
	defer func() {
		if success {
			atomic.StoreInt32(&s.state, stateConnected)
		} else {
			atomic.StoreInt32(&s.state, stateDisconnected)
		}
	}()

	if err := s.cols.Connect(ctx); err != nil {
		return fmt.Errorf("connect column store: %w", err)
	}

	if err := s.initEventBus(ctx); err != nil {
		s.cols.Close(ctx)
		return fmt.Errorf("init event bus: %w", err)
	}

	success = true
	s.logger.Info("mailstore service connected")
	return nil
}

// busCounter generates unique suffixes for event bus names.
var busCounter int64

// initEventBus initializes the event bus for this service. Each service
// creates its own bus and its own event instances, so parallel services
// (and parallel tests) do not share routing.
func (s *service) initEventBus(ctx context.Context) error {
	serviceName := s.opts.serviceName
	if serviceName == "" {
		serviceName = "mailstore"
	}
	busName := fmt.Sprintf("%s-%d", serviceName, atomic.AddInt64(&busCounter, 1))

	var bus *event.Bus
	var err error

	switch {
	case s.opts.eventTransport != nil:
		s.logger.Info("initializing event bus with custom transport")
		bus, err = event.NewBus(busName, event.WithTransport(s.opts.eventTransport))
	case s.opts.redisClient != nil:
		s.logger.Info("initializing event bus with Redis transport")
		t, transportErr := eventredis.New(s.opts.redisClient)
		if transportErr != nil {
			return fmt.Errorf("create redis transport: %w", transportErr)
		}
		bus, err = event.NewBus(busName, event.WithTransport(t))
	default:
		s.logger.Debug("initializing event bus with noop transport")
		bus, err = event.NewBus(busName, event.WithTransport(noop.New()))
	}
	if err != nil {
		return fmt.Errorf("create event bus: %w", err)
	}
	s.eventBus = bus

	s.events = newServiceEvents(busName)
	if err := registerServiceEvents(ctx, bus, s.events); err != nil {
		bus.Close(ctx)
		return fmt.Errorf("register service events: %w", err)
	}
	return nil
}

// Close closes connections to storage backends.
func (s *service) Close(ctx context.Context) error {
	if !atomic.CompareAndSwapInt32(&s.state, stateConnected, stateDisconnected) {
		return nil
	}

	var errs []error

	// After the state flips no new writes can start; acquiring every
	// semaphore slot waits out the in-flight ones.
	shutdownCtx, cancel := context.WithTimeout(ctx, s.opts.shutdownTimeout)
	defer cancel()
	if err := s.putSem.Acquire(shutdownCtx, int64(s.opts.maxConcurrentPuts)); err != nil {
		s.logger.Warn("timeout waiting for in-flight writes, proceeding with shutdown", "error", err)
		errs = append(errs, fmt.Errorf("graceful shutdown timeout: %w", err))
	} else {
		s.putSem.Release(int64(s.opts.maxConcurrentPuts))
	}

	// Close the bus only when it holds a real transport. A noop bus owns
	// no resources.
	if s.eventBus != nil && (s.opts.eventTransport != nil || s.opts.redisClient != nil) {
		if err := s.eventBus.Close(ctx); err != nil {
			errs = append(errs, fmt.Errorf("close event bus: %w", err))
		}
	}

	if err := s.cols.Close(ctx); err != nil {
		errs = append(errs, fmt.Errorf("close column store: %w", err))
	}

	return errors.Join(errs...)
}

// Mailbox returns a client scoped to one mailbox.
func (s *service) Mailbox(address string) Mailbox {
	mbox, err := store.NewMailbox(address)
	return &mailboxClient{
		service: s,
		mbox:    mbox,
		invalid: err,
	}
}

// newMutator builds a throttled batch mutator with the service's bulk
// settings.
func (s *service) newMutator() *columns.Mutator {
	return columns.NewMutator(s.cols,
		columns.WithBatchSize(s.opts.batchSize),
		columns.WithFlushInterval(s.opts.flushInterval),
		columns.WithMutatorLogger(s.logger),
	)
}
