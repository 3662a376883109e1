package events

import (
	"context"
	"sort"
	"sync"

	"github.com/OrbisWeb3/orbisdb-sub001/internal/logger"
	"github.com/OrbisWeb3/orbisdb-sub001/internal/ports"
)

// LoggingPublisher emits domain events using the structured logger and fans
// them out to subscribers.
type LoggingPublisher struct {
	logger *logger.Logger
	subs   map[string][]subscriptionEntry
	nextID int
	mu     sync.RWMutex
}

// NewLoggingPublisher creates an event publisher that writes each event as a structured log entry.
func NewLoggingPublisher(log *logger.Logger) *LoggingPublisher {
	return &LoggingPublisher{
		logger: log,
		subs:   make(map[string][]subscriptionEntry),
	}
}

// Publish renders the event as a structured log entry, then runs subscribers
// in subscription order.
func (p *LoggingPublisher) Publish(ctx context.Context, event ports.DomainEvent) error {
	if p == nil || event == nil {
		return nil
	}

	p.mu.RLock()
	handlers := append([]subscriptionEntry(nil), p.subs[event.EventType()]...)
	p.mu.RUnlock()

	fields := []any{"event_type", event.EventType()}
	if id := logger.CorrelationID(ctx); id != "" {
		fields = append(fields, "correlation_id", id)
	}
	payload := event.Payload()
	keys := make([]string, 0, len(payload))
	for key := range payload {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		fields = append(fields, key, payload[key])
	}

	entry := p.logger.With(fields...)
	if event.EventType() == ports.EventHookFailed || event.EventType() == ports.EventPluginUnavailable {
		entry.Warn("domain event")
	} else {
		entry.Debug("domain event")
	}

	for _, sub := range handlers {
		if sub.handler == nil {
			continue
		}
		if err := sub.handler(ctx, event); err != nil {
			p.logger.With("event_type", event.EventType()).Error(err, "event handler failed")
		}
	}

	return nil
}

// Subscribe registers a handler for the provided event type.
func (p *LoggingPublisher) Subscribe(eventType string, handler ports.EventHandler) (ports.Subscription, error) {
	if p == nil || handler == nil {
		return noopSubscription{}, nil
	}
	p.mu.Lock()
	p.nextID++
	id := p.nextID
	p.subs[eventType] = append(p.subs[eventType], subscriptionEntry{id: id, handler: handler})
	p.mu.Unlock()

	return subscription{
		cancel: func() {
			p.mu.Lock()
			defer p.mu.Unlock()
			handlers := p.subs[eventType]
			for i, entry := range handlers {
				if entry.id == id {
					p.subs[eventType] = append(handlers[:i:i], handlers[i+1:]...)
					break
				}
			}
		},
	}, nil
}

type noopSubscription struct{}

func (noopSubscription) Unsubscribe() {}

type subscription struct {
	cancel func()
}

func (s subscription) Unsubscribe() {
	if s.cancel != nil {
		s.cancel()
	}
}

type subscriptionEntry struct {
	id      int
	handler ports.EventHandler
}

var _ ports.EventPublisher = (*LoggingPublisher)(nil)
