package kafkax

import (
	"context"

	"github.com/segmentio/kafka-go"
)

// EventMeta is the metadata every booking event carries as message headers.
type EventMeta struct {
	EventID   string
	EventType string
}

// NewMessage builds a keyed message with event headers and the caller's trace context.
func NewMessage(ctx context.Context, topic, key string, meta EventMeta, payload []byte) kafka.Message {
	headers := []kafka.Header{
		{Key: "event_id", Value: []byte(meta.EventID)},
		{Key: "event_type", Value: []byte(meta.EventType)},
	}
	return kafka.Message{
		Topic:   topic,
		Key:     []byte(key),
		Value:   payload,
		Headers: InjectTraceHeaders(ctx, headers),
	}
}

func HeaderValue(headers []kafka.Header, key string) string {
	for _, h := range headers {
		if h.Key == key {
			return string(h.Value)
		}
	}
	return ""
}
