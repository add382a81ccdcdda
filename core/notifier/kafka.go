package notifier

import (
	"context"
	"fmt"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"

	"github.com/relabs-tech/workfit/core"
	"github.com/relabs-tech/workfit/core/logger"
)

// messageWriter is the part of kafka.Writer the notifier needs
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Kafka publishes events to a kafka topic. The message key is the resource ID,
// so all events of one resource land in the same partition.
type Kafka struct {
	writer messageWriter
}

// contextHeader carries the serialized logger context of the request which caused the event
const contextHeader = "logger-context"

// NewKafka creates a notifier writing to topic on the given brokers. Messages
// are written asynchronously, so requests never wait for the brokers. Failed
// writes are logged.
func NewKafka(brokers []string, topic string) (*Kafka, error) {
	if len(brokers) == 0 {
		return nil, fmt.Errorf("no kafka brokers configured")
	}
	if topic == "" {
		return nil, fmt.Errorf("no kafka topic configured")
	}
	logger.Default().Infoln("publishing notifications to kafka topic", topic)
	return &Kafka{writer: &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		BatchTimeout:           10 * time.Millisecond,
		AllowAutoTopicCreation: true,
		Async:                  true,
		Completion:             completion,
	}}, nil
}

// completion logs messages the writer failed to deliver
func completion(messages []kafka.Message, err error) {
	if err == nil {
		return
	}
	for _, msg := range messages {
		rlog := logger.Default().WithError(err)
		for _, h := range msg.Headers {
			switch h.Key {
			case "resource", "operation":
				rlog = rlog.WithField(h.Key, string(h.Value))
			case logger.RequestIDHeader:
				rlog = rlog.WithField("requestID", string(h.Value))
			}
		}
		rlog.Errorf("Error 4706: cannot publish event for %s", msg.Key)
	}
}

// Notify hands the event to the kafka writer
func (k *Kafka) Notify(ctx context.Context, resource string, operation core.Operation, resourceID uuid.UUID, payload interface{}) error {
	value, err := json.Marshal(newEvent(ctx, resource, operation, resourceID, payload))
	if err != nil {
		return fmt.Errorf("cannot marshal %s event: %w", resource, err)
	}
	msg := kafka.Message{
		Key:   []byte(resourceID.String()),
		Value: value,
		Headers: []kafka.Header{
			{Key: "resource", Value: []byte(resource)},
			{Key: "operation", Value: []byte(operation)},
			{Key: contextHeader, Value: logger.SerializeLoggerContext(ctx)},
		},
	}
	if requestID := logger.RequestIDFromContext(ctx); requestID != "" {
		msg.Headers = append(msg.Headers, kafka.Header{Key: logger.RequestIDHeader, Value: []byte(requestID)})
	}
	if err = k.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("cannot publish %s event: %w", resource, err)
	}
	return nil
}

// Close flushes pending messages and closes the writer
func (k *Kafka) Close() error {
	return k.writer.Close()
}
