package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Event is a domain event as recorded on the stream.
type Event struct {
	ID         string          `json:"id"`
	Topic      string          `json:"topic"`
	DealerID   string          `json:"dealerId"`
	Payload    json.RawMessage `json:"payload"`
	OccurredAt time.Time       `json:"occurredAt"`
}

// EventStore defines the persistence operations required by the event bus.
type EventStore interface {
	Append(ctx context.Context, event Event) error
}

// Notifier reacts to emitted events (e.g. email, metrics, etc.).
type Notifier interface {
	Notify(ctx context.Context, event Event) error
}

// StreamStore appends events to a capped Redis stream.
type StreamStore struct {
	R      *redis.Client
	Stream string
	MaxLen int64
}

const defaultStream = "dealer:events"

func (s *StreamStore) stream() string {
	if s.Stream == "" {
		return defaultStream
	}
	return s.Stream
}

// Append implements EventStore.
func (s *StreamStore) Append(ctx context.Context, event Event) error {
	if s == nil || s.R == nil {
		return errors.New("events: stream store not configured")
	}
	maxLen := s.MaxLen
	if maxLen <= 0 {
		maxLen = 10_000
	}
	return s.R.XAdd(ctx, &redis.XAddArgs{
		Stream: s.stream(),
		MaxLen: maxLen,
		Approx: true,
		Values: map[string]any{
			"id":          event.ID,
			"topic":       event.Topic,
			"dealer_id":   event.DealerID,
			"payload":     string(event.Payload),
			"occurred_at": strconv.FormatInt(event.OccurredAt.UnixMilli(), 10),
		},
	}).Err()
}

// Recent returns up to n of the most recently appended events, newest first.
func (s *StreamStore) Recent(ctx context.Context, n int64) ([]Event, error) {
	if s == nil || s.R == nil {
		return nil, errors.New("events: stream store not configured")
	}
	if n <= 0 {
		n = 50
	}
	msgs, err := s.R.XRevRangeN(ctx, s.stream(), "+", "-", n).Result()
	if err != nil {
		return nil, fmt.Errorf("events: read stream: %w", err)
	}
	out := make([]Event, 0, len(msgs))
	for _, msg := range msgs {
		out = append(out, decodeEntry(msg.Values))
	}
	return out, nil
}

func decodeEntry(values map[string]any) Event {
	ev := Event{
		ID:       stringField(values, "id"),
		Topic:    stringField(values, "topic"),
		DealerID: stringField(values, "dealer_id"),
	}
	if raw := stringField(values, "payload"); raw != "" {
		ev.Payload = json.RawMessage(raw)
	}
	if ms, err := strconv.ParseInt(stringField(values, "occurred_at"), 10, 64); err == nil {
		ev.OccurredAt = time.UnixMilli(ms).UTC()
	}
	return ev
}

func stringField(values map[string]any, key string) string {
	if v, ok := values[key].(string); ok {
		return v
	}
	return ""
}

// Bus persists domain events and fans them out to downstream handlers.
type Bus struct {
	Store     EventStore
	Notifiers []Notifier
	Now       func() time.Time
}

// Emit records the event and dispatches it to all configured notifiers.
func (b *Bus) Emit(ctx context.Context, topic, dealerID string, payload any) (Event, error) {
	if b == nil || b.Store == nil {
		return Event{}, errors.New("events: store not configured")
	}
	topic = strings.TrimSpace(topic)
	if topic == "" {
		return Event{}, errors.New("events: topic is required")
	}
	dealerID = strings.TrimSpace(dealerID)
	if dealerID == "" {
		return Event{}, errors.New("events: dealer id is required")
	}
	encoded, err := encodePayload(payload)
	if err != nil {
		return Event{}, fmt.Errorf("events: encode payload: %w", err)
	}
	now := time.Now
	if b.Now != nil {
		now = b.Now
	}
	ev := Event{
		ID:         uuid.NewString(),
		Topic:      topic,
		DealerID:   dealerID,
		Payload:    encoded,
		OccurredAt: now().UTC(),
	}
	if err := b.Store.Append(ctx, ev); err != nil {
		return Event{}, fmt.Errorf("events: persist event: %w", err)
	}
	var joined error
	for _, notifier := range b.Notifiers {
		if notifier == nil {
			continue
		}
		if notifyErr := notifier.Notify(ctx, ev); notifyErr != nil {
			joined = errors.Join(joined, fmt.Errorf("events: notifier: %w", notifyErr))
		}
	}
	return ev, joined
}

func encodePayload(payload any) ([]byte, error) {
	if payload == nil {
		return []byte("{}"), nil
	}
	switch v := payload.(type) {
	case []byte:
		if len(v) == 0 {
			return []byte("{}"), nil
		}
		if !json.Valid(v) {
			return nil, errors.New("payload is not valid json")
		}
		return append([]byte(nil), v...), nil
	case json.RawMessage:
		if len(v) == 0 {
			return []byte("{}"), nil
		}
		if !json.Valid(v) {
			return nil, errors.New("payload is not valid json")
		}
		return append([]byte(nil), v...), nil
	case string:
		if strings.TrimSpace(v) == "" {
			return []byte("{}"), nil
		}
		data := []byte(v)
		if !json.Valid(data) {
			return nil, errors.New("payload is not valid json")
		}
		return data, nil
	default:
		return json.Marshal(v)
	}
}
