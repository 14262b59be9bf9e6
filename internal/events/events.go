// Package events publishes payment and payout domain events.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"menupay/internal/logger"

	"github.com/IBM/sarama"
	"github.com/google/uuid"
)

// Event types
const (
	PaymentCreated   = "payment.created"
	PaymentSucceeded = "payment.succeeded"
	PaymentFailed    = "payment.failed"
	PaymentRefunded  = "payment.refunded"
	PayoutCreated    = "payout.created"
	PayoutPaid       = "payout.paid"
	PayoutFailed     = "payout.failed"
)

// Event is the envelope written to the stream.
type Event struct {
	ID         string      `json:"id"`
	Type       string      `json:"type"`
	BusinessID uint        `json:"business_id"`
	OccurredAt time.Time   `json:"occurred_at"`
	Data       interface{} `json:"data"`
}

// New stamps an event with a fresh id and the current time.
func New(eventType string, businessID uint, data interface{}) Event {
	return Event{
		ID:         uuid.NewString(),
		Type:       eventType,
		BusinessID: businessID,
		OccurredAt: time.Now().UTC(),
		Data:       data,
	}
}

// Publisher emits events after the state they describe has committed.
type Publisher interface {
	Publish(ctx context.Context, evt Event) error
	Close() error
}

// Emit publishes evt and logs instead of failing; committed state is never
// undone because the stream is unavailable.
func Emit(ctx context.Context, p Publisher, evt Event) {
	if p == nil {
		return
	}
	if err := p.Publish(ctx, evt); err != nil {
		logger.SW("event_type", evt.Type, "event_id", evt.ID, "business_id", evt.BusinessID, "error", err).
			Warn("failed to publish event")
	}
}

// KafkaPublisher writes one message per event to "<prefix><type>", keyed
// by business so a business's events stay ordered within a partition.
type KafkaPublisher struct {
	producer sarama.SyncProducer
	prefix   string
}

// NewKafkaConfig is the producer configuration used in production.
func NewKafkaConfig() *sarama.Config {
	cfg := sarama.NewConfig()
	cfg.ClientID = "menupay"
	cfg.Producer.Return.Successes = true
	cfg.Producer.RequiredAcks = sarama.WaitForAll
	cfg.Producer.Idempotent = true
	cfg.Producer.Retry.Max = 5
	cfg.Net.MaxOpenRequests = 1
	return cfg
}

func NewKafkaPublisher(brokers []string, prefix string) (*KafkaPublisher, error) {
	producer, err := sarama.NewSyncProducer(brokers, NewKafkaConfig())
	if err != nil {
		return nil, fmt.Errorf("failed to create kafka producer: %w", err)
	}
	return NewKafkaPublisherWithProducer(producer, prefix), nil
}

func NewKafkaPublisherWithProducer(producer sarama.SyncProducer, prefix string) *KafkaPublisher {
	return &KafkaPublisher{producer: producer, prefix: prefix}
}

func (p *KafkaPublisher) Publish(ctx context.Context, evt Event) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("failed to marshal %s event: %w", evt.Type, err)
	}

	msg := &sarama.ProducerMessage{
		Topic: p.prefix + evt.Type,
		Key:   sarama.StringEncoder(strconv.FormatUint(uint64(evt.BusinessID), 10)),
		Value: sarama.ByteEncoder(data),
		Headers: []sarama.RecordHeader{
			{Key: []byte("event_id"), Value: []byte(evt.ID)},
		},
	}
	partition, offset, err := p.producer.SendMessage(msg)
	if err != nil {
		return fmt.Errorf("failed to send %s event: %w", evt.Type, err)
	}

	logger.SW("topic", msg.Topic, "partition", partition, "offset", offset, "event_id", evt.ID).Debug("event published")
	return nil
}

func (p *KafkaPublisher) Close() error {
	return p.producer.Close()
}

// NoopPublisher drops every event. Used when no brokers are configured.
type NoopPublisher struct{}

func (NoopPublisher) Publish(context.Context, Event) error { return nil }
func (NoopPublisher) Close() error                         { return nil }
