// Package events publishes domain events about orders and event registrations.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Event types.
const (
	OrderCreated        = "order.created"
	OrderStatusChanged  = "order.status_changed"
	OrderPaymentUpdated = "order.payment_updated"
	EventRegistered     = "event.registered"
)

// Envelope is the wire format for every published event. Key groups related
// events onto one partition, usually the order or event id.
type Envelope struct {
	ID         uuid.UUID       `json:"id"`
	Type       string          `json:"type"`
	Key        string          `json:"key"`
	OccurredAt time.Time       `json:"occurred_at"`
	Data       json.RawMessage `json:"data"`
}

func NewEnvelope(eventType, key string, data any) (Envelope, error) {
	payload, err := json.Marshal(data)
	if err != nil {
		return Envelope{}, fmt.Errorf("failed to encode %s payload: %w", eventType, err)
	}
	return Envelope{
		ID:         uuid.New(),
		Type:       eventType,
		Key:        key,
		OccurredAt: time.Now().UTC(),
		Data:       payload,
	}, nil
}

type Publisher interface {
	Publish(ctx context.Context, envelopes ...Envelope) error
	Close() error
}

type Config struct {
	Provider string
	Brokers  []string
	Topic    string
}

func NewPublisher(config Config, logger *slog.Logger) (Publisher, error) {
	switch strings.ToLower(strings.TrimSpace(config.Provider)) {
	case "", "log":
		return NewLogPublisher(logger), nil
	case "kafka":
		if len(config.Brokers) == 0 {
			return nil, fmt.Errorf("KAFKA_BROKERS is required for the kafka events provider")
		}
		if config.Topic == "" {
			return nil, fmt.Errorf("KAFKA_TOPIC is required for the kafka events provider")
		}
		return NewKafkaPublisher(config.Brokers, config.Topic), nil
	default:
		return nil, fmt.Errorf("EVENTS_PROVIDER must be either 'log' or 'kafka'")
	}
}

// LogPublisher records events in the application log only.
type LogPublisher struct {
	logger *slog.Logger
}

func NewLogPublisher(logger *slog.Logger) *LogPublisher {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogPublisher{logger: logger}
}

func (p *LogPublisher) Publish(ctx context.Context, envelopes ...Envelope) error {
	for _, envelope := range envelopes {
		p.logger.InfoContext(ctx, "domain event", "type", envelope.Type, "key", envelope.Key, "event_id", envelope.ID)
	}
	return nil
}

func (p *LogPublisher) Close() error {
	return nil
}
