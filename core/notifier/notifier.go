/*
Package notifier publishes change events of backend resources.

Every successful create, update or delete of a resource is published as an Event.
With Kafka brokers configured, events are written to a Kafka topic, otherwise
they are only logged.
*/
package notifier

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/relabs-tech/workfit/core"
	"github.com/relabs-tech/workfit/core/logger"
)

// Event is a change event of a resource
type Event struct {
	Resource   string         `json:"resource"`
	Operation  core.Operation `json:"operation"`
	ResourceID uuid.UUID      `json:"resource_id"`
	Payload    interface{}    `json:"payload,omitempty"`
	RequestID  string         `json:"request_id,omitempty"`
	CreatedAt  time.Time      `json:"created_at"`
}

// Notifier publishes events
type Notifier interface {
	Notify(ctx context.Context, resource string, operation core.Operation, resourceID uuid.UUID, payload interface{}) error
	Close() error
}

func newEvent(ctx context.Context, resource string, operation core.Operation, resourceID uuid.UUID, payload interface{}) Event {
	return Event{
		Resource:   resource,
		Operation:  operation,
		ResourceID: resourceID,
		Payload:    payload,
		RequestID:  logger.RequestIDFromContext(ctx),
		CreatedAt:  time.Now().UTC(),
	}
}

// Log is a notifier which only logs the events
type Log struct{}

// Notify logs the event at debug level
func (Log) Notify(ctx context.Context, resource string, operation core.Operation, resourceID uuid.UUID, payload interface{}) error {
	logger.FromContext(ctx).Debugf("notification %s %s %s", operation, resource, resourceID)
	return nil
}

// Close does nothing
func (Log) Close() error { return nil }
