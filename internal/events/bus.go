package events

import (
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Handler receives a delivered Event. Handlers run on their own
// goroutine per delivery; a slow or panicking handler never blocks the
// publisher or other subscribers.
type Handler func(event *Event)

// Bus is a per-process, in-memory publish/subscribe broadcaster.
// Delivery is at-least-once and best-effort: Publish never blocks on a
// slow subscriber and persistence/publication are not atomic — consumers must tolerate rare duplicate or out-of-order
// deliveries across (store, product) pairs.
type Bus struct {
	mu   sync.RWMutex
	subs map[EventType][]Handler
	log  zerolog.Logger
}

// NewBus constructs an empty Bus.
func NewBus(log zerolog.Logger) *Bus {
	return &Bus{
		subs: make(map[EventType][]Handler),
		log:  log.With().Str("component", "events.Bus").Logger(),
	}
}

// Subscribe registers a handler invoked for every future event of the
// given type.
func (b *Bus) Subscribe(eventType EventType, handler Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subs[eventType] = append(b.subs[eventType], handler)
}

// Publish broadcasts data to every subscriber of its EventType,
// stamped with tenantID. Each handler runs in its own goroutine so one
// slow recipient cannot delay another or the caller.
func (b *Bus) Publish(tenantID string, data EventData) {
	event := &Event{
		Type:     data.EventType(),
		TenantID: tenantID,
		At:       time.Now().UTC(),
		Data:     data,
	}

	b.mu.RLock()
	handlers := append([]Handler(nil), b.subs[event.Type]...)
	b.mu.RUnlock()

	for _, h := range handlers {
		h := h
		go func() {
			defer func() {
				if r := recover(); r != nil {
					b.log.Error().Interface("panic", r).Str("event_type", string(event.Type)).Msg("event handler panicked")
				}
			}()
			h(event)
		}()
	}
}
