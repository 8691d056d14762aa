package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

const (
	TypeSalaryChangeRecorded   = "salary.change.recorded"
	TypePayrollPeriodFinalized = "payroll.period.finalized"
	TypeBulkOperationCompleted = "bulk.operation.completed"
	AggregateSalaryComponent   = "salary_component"
	AggregatePayrollPeriod     = "payroll_period"
	AggregateBulkOperation     = "bulk_operation"
)

// Event is a domain event emitted after a state change has been committed.
type Event struct {
	Type          string
	AggregateType string
	AggregateID   string
	OccurredAt    time.Time
	Payload       any
}

// Publisher delivers committed domain events to downstream consumers.
// Publishing happens after commit, so a failure never rolls back the change.
type Publisher interface {
	Publish(ctx context.Context, event Event) error
	Close() error
}

// NewEvent stamps the event with the current time.
func NewEvent(eventType, aggregateType, aggregateID string, payload any) Event {
	return Event{
		Type:          eventType,
		AggregateType: aggregateType,
		AggregateID:   aggregateID,
		OccurredAt:    time.Now().UTC(),
		Payload:       payload,
	}
}

type envelope struct {
	Type          string    `json:"type"`
	AggregateType string    `json:"aggregate_type"`
	AggregateID   string    `json:"aggregate_id"`
	OccurredAt    time.Time `json:"occurred_at"`
	Payload       any       `json:"payload"`
}

func encode(event Event) ([]byte, error) {
	body, err := json.Marshal(envelope{
		Type:          event.Type,
		AggregateType: event.AggregateType,
		AggregateID:   event.AggregateID,
		OccurredAt:    event.OccurredAt,
		Payload:       event.Payload,
	})
	if err != nil {
		return nil, fmt.Errorf("encode event %s: %w", event.Type, err)
	}
	return body, nil
}

// NoopPublisher drops events. Used when no broker is configured.
type NoopPublisher struct{}

func (NoopPublisher) Publish(context.Context, Event) error { return nil }
func (NoopPublisher) Close() error                        { return nil }
