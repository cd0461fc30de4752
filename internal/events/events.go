package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
	log "github.com/sirupsen/logrus"
)

// Event types published on the consultation topic.
const (
	ConsultationCreated   = "consultation.created"
	ConsultationConfirmed = "consultation.confirmed"
	PaymentCompleted      = "payment.completed"
)

// ConsultationEvent is the message body for consultation lifecycle events.
type ConsultationEvent struct {
	Type           string    `json:"type"`
	ConsultationID uuid.UUID `json:"consultationId"`
	ClientID       uuid.UUID `json:"clientId"`
	LawyerID       uuid.UUID `json:"lawyerId"`
	DateTime       time.Time `json:"dateTime"`
	Mode           string    `json:"mode"`
	Status         string    `json:"status"`
	MeetingLink    string    `json:"meetingLink,omitempty"`
	OccurredAt     time.Time `json:"occurredAt"`
}

// Publisher delivers consultation events to downstream consumers.
type Publisher interface {
	Publish(ctx context.Context, ev ConsultationEvent) error
	Close() error
}

// messageWriter is the subset of *kafka.Writer used here.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaPublisher writes events as JSON keyed by consultation id.
type KafkaPublisher struct {
	writer messageWriter
	topic  string
}

func NewKafkaPublisher(brokers []string, topic string) *KafkaPublisher {
	w := &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireOne,
		AllowAutoTopicCreation: true,
		WriteTimeout:           5 * time.Second,
	}
	return &KafkaPublisher{writer: w, topic: topic}
}

func (p *KafkaPublisher) Publish(ctx context.Context, ev ConsultationEvent) error {
	if ev.OccurredAt.IsZero() {
		ev.OccurredAt = time.Now().UTC()
	}
	body, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}
	msg := kafka.Message{
		Key:   []byte(ev.ConsultationID.String()),
		Value: body,
		Headers: []kafka.Header{
			{Key: "type", Value: []byte(ev.Type)},
		},
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("failed to produce message: %w", err)
	}
	return nil
}

func (p *KafkaPublisher) Close() error { return p.writer.Close() }

// Nop discards events. Used when no brokers are configured.
type Nop struct{}

func (Nop) Publish(context.Context, ConsultationEvent) error { return nil }
func (Nop) Close() error                                     { return nil }

// New returns a Kafka publisher, or Nop when brokers is empty.
func New(brokers []string, topic string) Publisher {
	if len(brokers) == 0 {
		return Nop{}
	}
	return NewKafkaPublisher(brokers, topic)
}

// PublishBestEffort publishes ev and logs a failure instead of returning it.
func PublishBestEffort(ctx context.Context, p Publisher, logger log.FieldLogger, ev ConsultationEvent) {
	if p == nil {
		return
	}
	if err := p.Publish(ctx, ev); err != nil {
		logger.WithError(err).WithFields(log.Fields{
			"type":         ev.Type,
			"consultation": ev.ConsultationID,
		}).Warn("could not publish event")
	}
}
