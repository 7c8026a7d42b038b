// Package mailstore provides a mailbox storage engine for Go.
//
// Messages are stored as column-level metadata plus an externalized raw
// blob, indexed per label for ordered listing, with per-label counters,
// quotas, soft delete with deferred purge, and offline counter repair.
// All functionality is exposed via interfaces, with pluggable column
// store backends (Redis, MongoDB, PostgreSQL, in-memory) and pluggable
// blob backends (inline columns, filesystem, S3, GCS, in-memory).
//
// # Basic Usage
//
//	// In-memory column store for testing
//	cols := memory.New()
//
//	svc, err := mailstore.NewService(
//	    mailstore.WithColumnStore(cols),
//	)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	if err := svc.Connect(ctx); err != nil {
//	    log.Fatal(err)
//	}
//	defer svc.Close(ctx)
//
//	mb := svc.Mailbox("user@example.com")
//
//	// Store a message
//	msg := &store.Message{Size: int64(len(raw)), Subject: "Hello"}
//	msg.AddLabel(store.LabelInbox)
//	id, err := mb.Put(ctx, msg, bytes.NewReader(raw))
//
//	// Read it back
//	msg, err = mb.Get(ctx, id)
//	rc, err := mb.GetRaw(ctx, id)
//
// # Mailbox Operations
//
//   - Put: store a message and its raw content
//   - Get/GetRaw: retrieve metadata or the original raw blob
//   - List: page through a label's messages in id order
//   - Modify: add/remove labels and markers in bulk
//   - Delete: soft delete; Purge later reclaims storage
//   - Scrub/RepairCounters: recompute counters from metadata
//   - Labels/AddLabel/RenameLabel/DeleteLabel: label registry
//   - Quota/SetQuota/Usage: per-account limits
//
// # Storage Backends
//
// The columns package defines the wide-column abstraction; backends live in:
//   - Redis (columns/redis) - accepts redis.UniversalClient
//   - MongoDB (columns/mongo) - accepts *mongo.Client
//   - PostgreSQL (columns/postgres) - accepts a DSN
//   - In-memory (columns/memory) - for testing
//
// Raw content routing is handled by the blob package's Mediator, which
// picks a profile by size, optionally compresses and encrypts, and
// records the outcome in a self-describing URI.
//
// # Events
//
// Typed events cover the message lifecycle. Events use the
// github.com/rbaliyan/event/v3 library which supports multiple
// transports (Redis Streams, NATS, Kafka, in-memory channel).
//
// To enable events, pass WithRedisEvents or WithEventTransport when
// creating the service:
//
//	svc, err := mailstore.NewService(
//	    mailstore.WithColumnStore(cols),
//	    mailstore.WithRedisEvents(redisClient),
//	)
//
// Events are registered during Connect(). Access per-service events via
// the Events() method:
//
//	events := svc.Events()
//	events.MessageStored.Subscribe(ctx, handler)
//	events.MessagesDeleted.Subscribe(ctx, handler)
//	events.MessagesPurged.Subscribe(ctx, handler)
package mailstore
