package event

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/vmihailenco/msgpack/v5"
)

// Message is a single undecoded payload pulled from a broker, tagged
// with an offset the consumer acks after persistence (at-least-once
// delivery).
type Message struct {
	Offset int64
	Topic  string
	Value  []byte
}

// Broker abstracts the Kafka/Pub-Sub transport so the adapter logic
// is transport-agnostic (: "broker (Kafka/Pub-Sub
// abstraction)").
type Broker interface {
	// PollBatch returns up to maxRecords undelivered messages for
	// topic. It blocks until at least one message is available, the
	// context is cancelled, or the broker-specific poll timeout fires.
	PollBatch(ctx context.Context, topic string, maxRecords int) ([]Message, error)
	// Commit acknowledges messages as durably processed; the consumer
	// must only call this after the batch's canonical rows have been
	// persisted.
	Commit(ctx context.Context, topic string, offsets []int64) error
}

// Encoding selects how a Message's Value is deserialized into an
// event map. Some trading partners ship msgpack to cut bandwidth on
// high-frequency POS streams; most ship plain JSON.
type Encoding string

const (
	EncodingJSON    Encoding = "json"
	EncodingMsgpack Encoding = "msgpack"
)

// DecodeEvent deserializes a message payload into a generic event map
// per the configured encoding.
func DecodeEvent(value []byte, encoding Encoding) (map[string]any, error) {
	event := make(map[string]any)
	switch encoding {
	case EncodingMsgpack:
		if err := msgpack.Unmarshal(value, &event); err != nil {
			return nil, fmt.Errorf("decode msgpack event: %w", err)
		}
	case EncodingJSON, "":
		if err := json.Unmarshal(value, &event); err != nil {
			return nil, fmt.Errorf("decode json event: %w", err)
		}
	default:
		return nil, fmt.Errorf("unknown event encoding %q", encoding)
	}
	return event, nil
}
