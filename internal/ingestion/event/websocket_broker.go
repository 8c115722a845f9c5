package event

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"nhooyr.io/websocket"
)

const (
	wsDialTimeout  = 30 * time.Second
	wsWriteTimeout = 10 * time.Second
)

// wireMessage is the frame shape spoken by the event gateway: one JSON
// object per delivered message, {"topic", "offset", "payload"}.
type wireMessage struct {
	Topic   string          `json:"topic"`
	Offset  int64           `json:"offset"`
	Payload json.RawMessage `json:"payload"`
}

type ackFrame struct {
	Topic   string  `json:"topic"`
	Offsets []int64 `json:"offsets"`
}

// WebSocketBroker consumes events over a websocket bridge in front of
// the retailer's Kafka cluster or Google Pub/Sub subscription. Most
// enterprise retailers run such a gateway so browser and lightweight
// service consumers don't need a native Kafka client; ShelfOps
// connects to it the same way.
type WebSocketBroker struct {
	url        string
	httpClient *http.Client
	log        zerolog.Logger

	mu   sync.Mutex
	conn *websocket.Conn
	buf  map[string][]Message
}

// NewWebSocketBroker constructs a broker pointed at the gateway's
// websocket endpoint (e.g. "wss://gateway.internal/events").
func NewWebSocketBroker(url string, log zerolog.Logger) *WebSocketBroker {
	return &WebSocketBroker{
		url:        url,
		httpClient: &http.Client{Timeout: wsDialTimeout},
		log:        log.With().Str("component", "event.WebSocketBroker").Logger(),
		buf:        make(map[string][]Message),
	}
}

func (b *WebSocketBroker) ensureConnected(ctx context.Context) (*websocket.Conn, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.conn != nil {
		return b.conn, nil
	}

	dialCtx, cancel := context.WithTimeout(ctx, wsDialTimeout)
	defer cancel()
	conn, _, err := websocket.Dial(dialCtx, b.url, &websocket.DialOptions{HTTPClient: b.httpClient})
	if err != nil {
		return nil, fmt.Errorf("dial event gateway: %w", err)
	}
	b.conn = conn
	return conn, nil
}

// PollBatch subscribes to topic (idempotent, the gateway dedupes
// repeat subscribe frames) and reads until maxRecords messages for
// that topic are buffered or ctx is cancelled.
func (b *WebSocketBroker) PollBatch(ctx context.Context, topic string, maxRecords int) ([]Message, error) {
	conn, err := b.ensureConnected(ctx)
	if err != nil {
		return nil, err
	}

	b.mu.Lock()
	if len(b.buf[topic]) >= maxRecords {
		batch := b.buf[topic][:maxRecords]
		b.buf[topic] = b.buf[topic][maxRecords:]
		b.mu.Unlock()
		return batch, nil
	}
	b.mu.Unlock()

	subCtx, cancel := context.WithTimeout(ctx, wsWriteTimeout)
	sub, _ := json.Marshal(map[string]string{"subscribe": topic})
	err = conn.Write(subCtx, websocket.MessageText, sub)
	cancel()
	if err != nil {
		return nil, fmt.Errorf("subscribe to %s: %w", topic, err)
	}

	for {
		_, raw, err := conn.Read(ctx)
		if err != nil {
			return nil, fmt.Errorf("read event gateway: %w", err)
		}

		var msg wireMessage
		if err := json.Unmarshal(raw, &msg); err != nil {
			b.log.Warn().Err(err).Msg("discarding unparseable gateway frame")
			continue
		}

		b.mu.Lock()
		b.buf[msg.Topic] = append(b.buf[msg.Topic], Message{Offset: msg.Offset, Topic: msg.Topic, Value: msg.Payload})
		ready := len(b.buf[topic]) >= maxRecords
		var batch []Message
		if ready {
			batch = b.buf[topic][:maxRecords]
			b.buf[topic] = b.buf[topic][maxRecords:]
		}
		b.mu.Unlock()

		if ready {
			return batch, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
	}
}

// Commit sends an ack frame for the given offsets, matching the
// auto_offset_reset/enable_auto_commit semantics of the reference
// Kafka consumer: acks only fire after the caller has durably
// persisted the batch's normalized rows.
func (b *WebSocketBroker) Commit(ctx context.Context, topic string, offsets []int64) error {
	b.mu.Lock()
	conn := b.conn
	b.mu.Unlock()
	if conn == nil {
		return nil
	}

	writeCtx, cancel := context.WithTimeout(ctx, wsWriteTimeout)
	defer cancel()
	data, err := json.Marshal(ackFrame{Topic: topic, Offsets: offsets})
	if err != nil {
		return err
	}
	if err := conn.Write(writeCtx, websocket.MessageText, data); err != nil {
		return fmt.Errorf("ack offsets for %s: %w", topic, err)
	}
	return nil
}

// Close tears down the underlying connection.
func (b *WebSocketBroker) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.conn == nil {
		return nil
	}
	err := b.conn.Close(websocket.StatusNormalClosure, "")
	b.conn = nil
	return err
}
