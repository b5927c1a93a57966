package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/md-rashed-zaman/agendafacil/libs/kafkax"
	"github.com/segmentio/kafka-go"
)

const DefaultTopicPrefix = "booking.appointment"

type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
}

// Kafka publishes one message per request on "<prefix>.<kind>.v1", keyed by
// appointment id so a single appointment's events stay ordered.
type Kafka struct {
	w      MessageWriter
	prefix string
}

func NewKafka(w MessageWriter, topicPrefix string) *Kafka {
	topicPrefix = strings.TrimSuffix(strings.TrimSpace(topicPrefix), ".")
	if topicPrefix == "" {
		topicPrefix = DefaultTopicPrefix
	}
	return &Kafka{w: w, prefix: topicPrefix}
}

func (k *Kafka) Topic(kind Kind) string { return k.prefix + "." + string(kind) + ".v1" }

func (k *Kafka) Notify(ctx context.Context, req Request) error {
	payload, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("encode notification: %w", err)
	}
	msg := kafkax.NewMessage(ctx, k.Topic(req.Kind), req.Appointment.ID, kafkax.EventMeta{
		EventID:   req.ID,
		EventType: "appointment." + string(req.Kind),
	}, payload)
	if err := k.w.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("publish %s: %w", msg.Topic, err)
	}
	return nil
}
