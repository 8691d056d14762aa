package events

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeWriter struct {
	messages []kafkago.Message
	err      error
	closed   bool
}

func (w *fakeWriter) WriteMessages(_ context.Context, msgs ...kafkago.Message) error {
	if w.err != nil {
		return w.err
	}
	w.messages = append(w.messages, msgs...)
	return nil
}

func (w *fakeWriter) Close() error {
	w.closed = true
	return nil
}

func TestKafkaPublisher_Publish(t *testing.T) {
	w := &fakeWriter{}
	p := &KafkaPublisher{writer: w}

	at := time.Date(2025, 1, 31, 10, 0, 0, 0, time.UTC)
	event := Event{
		Type:          TypePayrollPeriodFinalized,
		AggregateType: AggregatePayrollPeriod,
		AggregateID:   "period-1",
		OccurredAt:    at,
		Payload:       map[string]any{"month": 1, "year": 2025},
	}

	require.NoError(t, p.Publish(context.Background(), event))
	require.Len(t, w.messages, 1)

	msg := w.messages[0]
	assert.Equal(t, []byte("period-1"), msg.Key)
	assert.Equal(t, at, msg.Time)
	assert.Equal(t, "event_type", msg.Headers[0].Key)
	assert.Equal(t, []byte(TypePayrollPeriodFinalized), msg.Headers[0].Value)

	var body map[string]any
	require.NoError(t, json.Unmarshal(msg.Value, &body))
	assert.Equal(t, TypePayrollPeriodFinalized, body["type"])
	assert.Equal(t, "period-1", body["aggregate_id"])

	require.NoError(t, p.Close())
	assert.True(t, w.closed)
}

func TestKafkaPublisher_WriteError(t *testing.T) {
	p := &KafkaPublisher{writer: &fakeWriter{err: errors.New("broker down")}}

	err := p.Publish(context.Background(), NewEvent(TypeSalaryChangeRecorded, AggregateSalaryComponent, "c1", nil))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "broker down")
}

func TestKafkaPublisher_EncodeError(t *testing.T) {
	p := &KafkaPublisher{writer: &fakeWriter{}}

	err := p.Publish(context.Background(), NewEvent(TypeSalaryChangeRecorded, AggregateSalaryComponent, "c1", make(chan int)))
	require.Error(t, err)
}

func TestRecorder(t *testing.T) {
	r := &Recorder{}
	_ = r.Publish(context.Background(), NewEvent(TypeSalaryChangeRecorded, AggregateSalaryComponent, "c1", nil))
	_ = r.Publish(context.Background(), NewEvent(TypeBulkOperationCompleted, AggregateBulkOperation, "op", nil))

	assert.Len(t, r.Events(), 2)
	assert.Len(t, r.OfType(TypeBulkOperationCompleted), 1)
}
