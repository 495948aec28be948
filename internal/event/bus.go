// Package event provides the in-memory event bus the manager publishes
// device and entity lifecycle events on. Metrics and logging subscribe
// to it so the pipeline itself stays free of observability concerns.
package event

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Topics published by the manager.
const (
	TopicDeviceAdded       = "device.added"
	TopicDeviceRemoved     = "device.removed"
	TopicDeviceUnavailable = "device.unavailable"
	TopicDeviceRecovered   = "device.recovered"
	TopicPollFailed        = "poll.failed"
	TopicEntitiesChanged   = "entities.changed"
)

// Event is one lifecycle notification.
type Event struct {
	Topic     string
	DeviceID  string
	Timestamp time.Time
	Payload   any // type depends on topic
}

// EntitiesChangedPayload accompanies TopicEntitiesChanged.
type EntitiesChangedPayload struct {
	Category string
	Created  int
	Updated  int
	Removed  int
}

// PollFailedPayload accompanies TopicPollFailed.
type PollFailedPayload struct {
	Category string
	Kind     string
	Failures int
}

// Handler processes events from the bus.
type Handler func(ctx context.Context, ev Event)

type handlerEntry struct {
	id      uint64
	handler Handler
}

// Bus is an in-memory event bus. Publish is synchronous: handlers run
// in the caller's goroutine, so they must not block.
type Bus struct {
	mu       sync.RWMutex
	handlers map[string][]handlerEntry
	allSubs  []handlerEntry
	nextID   uint64
	logger   *zap.Logger
}

// NewBus creates an empty bus.
func NewBus(logger *zap.Logger) *Bus {
	return &Bus{
		handlers: make(map[string][]handlerEntry),
		logger:   logger.Named("event"),
	}
}

// Publish dispatches an event to all matching handlers.
func (b *Bus) Publish(ctx context.Context, ev Event) {
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now()
	}

	b.mu.RLock()
	topicHandlers := make([]handlerEntry, len(b.handlers[ev.Topic]))
	copy(topicHandlers, b.handlers[ev.Topic])
	allHandlers := make([]handlerEntry, len(b.allSubs))
	copy(allHandlers, b.allSubs)
	b.mu.RUnlock()

	for _, h := range topicHandlers {
		b.safeCall(ctx, h.handler, ev)
	}
	for _, h := range allHandlers {
		b.safeCall(ctx, h.handler, ev)
	}
}

// Subscribe registers a handler for one topic and returns an
// unsubscribe function.
func (b *Bus) Subscribe(topic string, handler Handler) (unsubscribe func()) {
	b.mu.Lock()
	id := b.nextID
	b.nextID++
	b.handlers[topic] = append(b.handlers[topic], handlerEntry{id: id, handler: handler})
	b.mu.Unlock()

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		entries := b.handlers[topic]
		for i, e := range entries {
			if e.id == id {
				b.handlers[topic] = append(entries[:i], entries[i+1:]...)
				return
			}
		}
	}
}

// SubscribeAll registers a handler for every topic and returns an
// unsubscribe function.
func (b *Bus) SubscribeAll(handler Handler) (unsubscribe func()) {
	b.mu.Lock()
	id := b.nextID
	b.nextID++
	b.allSubs = append(b.allSubs, handlerEntry{id: id, handler: handler})
	b.mu.Unlock()

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		for i, e := range b.allSubs {
			if e.id == id {
				b.allSubs = append(b.allSubs[:i], b.allSubs[i+1:]...)
				return
			}
		}
	}
}

func (b *Bus) safeCall(ctx context.Context, handler Handler, ev Event) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("event handler panicked",
				zap.String("topic", ev.Topic),
				zap.String("device", ev.DeviceID),
				zap.Any("panic", r),
			)
		}
	}()
	handler(ctx, ev)
}
