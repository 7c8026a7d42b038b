package mailstore

import (
	"context"
	"fmt"
	"time"

	"github.com/rbaliyan/event/v3"
)

// Event names for message store events.
const (
	EventNameMessageStored   = "mailstore.message.stored"
	EventNameMessagesDeleted = "mailstore.messages.deleted"
	EventNameMessagesPurged  = "mailstore.messages.purged"
)

// MessageStoredEvent is published after a message and its indexes are
// durably written.
type MessageStoredEvent struct {
	Mailbox   string    `json:"mailbox"`
	MessageID string    `json:"message_id"`
	Size      int64     `json:"size"`
	Labels    []int     `json:"labels"`
	StoredAt  time.Time `json:"stored_at"`
}

// MessagesDeletedEvent is published when messages are soft-deleted. The
// messages remain recoverable until purged.
type MessagesDeletedEvent struct {
	Mailbox    string    `json:"mailbox"`
	MessageIDs []string  `json:"message_ids"`
	DeletedAt  time.Time `json:"deleted_at"`
}

// MessagesPurgedEvent is published when a purge pass physically removes
// messages.
type MessagesPurgedEvent struct {
	Mailbox  string    `json:"mailbox"`
	Count    int       `json:"count"`
	PurgedAt time.Time `json:"purged_at"`
}

// ServiceEvents provides access to per-service event instances. Each
// service creates its own events bound to its own event bus, enabling
// independent event routing and parallel testing.
//
// Subscribe to events:
//
//	svc.Events().MessageStored.Subscribe(ctx, handler)
type ServiceEvents struct {
	// MessageStored is published after a successful put.
	MessageStored event.Event[MessageStoredEvent]

	// MessagesDeleted is published after a soft delete.
	MessagesDeleted event.Event[MessagesDeletedEvent]

	// MessagesPurged is published after a purge pass removes messages.
	MessagesPurged event.Event[MessagesPurgedEvent]
}

// newServiceEvents creates per-service event instances with a unique name prefix.
func newServiceEvents(namePrefix string) *ServiceEvents {
	return &ServiceEvents{
		MessageStored:   event.New[MessageStoredEvent](namePrefix + "." + EventNameMessageStored),
		MessagesDeleted: event.New[MessagesDeletedEvent](namePrefix + "." + EventNameMessagesDeleted),
		MessagesPurged:  event.New[MessagesPurgedEvent](namePrefix + "." + EventNameMessagesPurged),
	}
}

// registerServiceEvents registers per-service events with the given bus.
func registerServiceEvents(ctx context.Context, bus *event.Bus, events *ServiceEvents) error {
	if err := event.Register(ctx, bus, events.MessageStored); err != nil {
		return fmt.Errorf("register MessageStored: %w", err)
	}
	if err := event.Register(ctx, bus, events.MessagesDeleted); err != nil {
		return fmt.Errorf("register MessagesDeleted: %w", err)
	}
	if err := event.Register(ctx, bus, events.MessagesPurged); err != nil {
		return fmt.Errorf("register MessagesPurged: %w", err)
	}
	return nil
}
