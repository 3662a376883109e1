package ports

import "context"

const (
	// EventStreamReceived is emitted when a pass starts.
	EventStreamReceived = "stream.received"
	// EventStreamRejected is emitted when validation rejects a stream.
	EventStreamRejected = "stream.rejected"
	// EventStreamFinalized is emitted after the record was persisted.
	EventStreamFinalized = "stream.finalized"
	// EventHookFailed is emitted for every hook error, panic, or timeout.
	EventHookFailed = "hook.failed"
	// EventPluginUnavailable is emitted when a plugin fails to initialize.
	EventPluginUnavailable = "plugin.unavailable"
	// EventSettingsReloaded is emitted when a new settings snapshot is installed.
	EventSettingsReloaded = "settings.reloaded"
)

// DomainEvent represents a significant occurrence in the host. Events carry
// structured payloads that subscribers use for logging and metrics.
type DomainEvent interface {
	EventType() string
	Payload() map[string]any
}

// EventPublisher distributes events to subscribers. Publish is synchronous
// and must be thread-safe.
type EventPublisher interface {
	Publish(ctx context.Context, event DomainEvent) error
	Subscribe(eventType string, handler EventHandler) (Subscription, error)
}

// EventHandler processes an event. Failures are logged by the publisher and
// never stop delivery to remaining subscribers.
type EventHandler func(context.Context, DomainEvent) error

// Subscription represents a registered handler.
type Subscription interface {
	Unsubscribe()
}

// Event is the default DomainEvent implementation.
type Event struct {
	Type   string
	Fields map[string]any
}

// EventType implements DomainEvent.
func (e Event) EventType() string { return e.Type }

// Payload implements DomainEvent.
func (e Event) Payload() map[string]any { return e.Fields }
