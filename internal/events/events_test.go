package events

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
	log "github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeWriter struct {
	msgs []kafka.Message
	err  error
}

func (f *fakeWriter) WriteMessages(ctx context.Context, msgs ...kafka.Message) error {
	if f.err != nil {
		return f.err
	}
	f.msgs = append(f.msgs, msgs...)
	return nil
}

func (f *fakeWriter) Close() error { return nil }

func TestKafkaPublisherKeysByConsultation(t *testing.T) {
	w := &fakeWriter{}
	p := &KafkaPublisher{writer: w, topic: "consultation_events"}

	id := uuid.New()
	when := time.Date(2025, 1, 1, 10, 0, 0, 0, time.UTC)
	require.NoError(t, p.Publish(context.Background(), ConsultationEvent{
		Type:           ConsultationCreated,
		ConsultationID: id,
		DateTime:       when,
		Mode:           "video",
		Status:         "pending",
	}))

	require.Len(t, w.msgs, 1)
	assert.Equal(t, id.String(), string(w.msgs[0].Key))
	assert.Equal(t, "type", w.msgs[0].Headers[0].Key)

	var got ConsultationEvent
	require.NoError(t, json.Unmarshal(w.msgs[0].Value, &got))
	assert.Equal(t, ConsultationCreated, got.Type)
	assert.Equal(t, when, got.DateTime)
	assert.False(t, got.OccurredAt.IsZero())
}

func TestPublishBestEffortSwallowsErrors(t *testing.T) {
	l := log.New()
	l.SetOutput(io.Discard)
	p := &KafkaPublisher{writer: &fakeWriter{err: errors.New("broker down")}}

	assert.NotPanics(t, func() {
		PublishBestEffort(context.Background(), p, l, ConsultationEvent{Type: ConsultationConfirmed})
		PublishBestEffort(context.Background(), nil, l, ConsultationEvent{})
	})
}

func TestNewWithoutBrokersIsNop(t *testing.T) {
	p := New(nil, "t")
	assert.IsType(t, Nop{}, p)
	assert.NoError(t, p.Publish(context.Background(), ConsultationEvent{}))
	assert.NoError(t, p.Close())

	assert.IsType(t, &KafkaPublisher{}, New([]string{"localhost:9092"}, "t"))
}
