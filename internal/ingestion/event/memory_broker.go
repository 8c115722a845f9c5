package event

import (
	"context"
	"sync"
)

// InMemoryBroker is a deterministic, in-process Broker used by tests
// and by demo/sandbox tenants that have no real Kafka/Pub-Sub cluster
// to point at. Messages are held in per-topic slices; PollBatch never
// blocks since the full backlog is already resident.
type InMemoryBroker struct {
	mu      sync.Mutex
	topics  map[string][]Message
	nextOff map[string]int64
}

// NewInMemoryBroker constructs an empty broker.
func NewInMemoryBroker() *InMemoryBroker {
	return &InMemoryBroker{
		topics:  make(map[string][]Message),
		nextOff: make(map[string]int64),
	}
}

// Publish appends a raw payload to topic, used by tests and by the
// sandbox "replay a fixture" endpoint to seed events.
func (b *InMemoryBroker) Publish(topic string, value []byte) {
	b.mu.Lock()
	defer b.mu.Unlock()
	off := b.nextOff[topic]
	b.topics[topic] = append(b.topics[topic], Message{Offset: off, Topic: topic, Value: value})
	b.nextOff[topic] = off + 1
}

// PollBatch returns up to maxRecords unconsumed messages for topic.
func (b *InMemoryBroker) PollBatch(_ context.Context, topic string, maxRecords int) ([]Message, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	pending := b.topics[topic]
	if len(pending) > maxRecords {
		pending = pending[:maxRecords]
	}
	out := make([]Message, len(pending))
	copy(out, pending)
	return out, nil
}

// Commit drops acknowledged messages from the backlog so a later
// PollBatch call doesn't redeliver them.
func (b *InMemoryBroker) Commit(_ context.Context, topic string, offsets []int64) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	committed := make(map[int64]bool, len(offsets))
	for _, off := range offsets {
		committed[off] = true
	}
	remaining := b.topics[topic][:0]
	for _, msg := range b.topics[topic] {
		if !committed[msg.Offset] {
			remaining = append(remaining, msg)
		}
	}
	b.topics[topic] = remaining
	return nil
}
