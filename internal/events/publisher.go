// Package events publishes captured leads for CRM follow-up.
package events

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/iwvelando/dealership-quote/internal/catalog"
	"github.com/iwvelando/dealership-quote/internal/config"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// EventType represents the type of lead event.
type EventType string

// EventTypeLeadCaptured is emitted once per accepted lead.
const EventTypeLeadCaptured EventType = "lead.captured"

const defaultWriteTimeout = 10 * time.Second

// LeadEvent is the JSON value written to the leads topic.
type LeadEvent struct {
	ID        string       `json:"id"`
	Type      EventType    `json:"type"`
	LeadID    string       `json:"lead_id"`
	Lead      catalog.Lead `json:"lead"`
	Timestamp time.Time    `json:"timestamp"`
}

// LeadPublisher announces accepted leads.
type LeadPublisher interface {
	PublishLeadCaptured(ctx context.Context, lead catalog.Lead) error
}

func newLeadEvent(lead catalog.Lead, now time.Time) LeadEvent {
	return LeadEvent{
		ID:        uuid.NewString(),
		Type:      EventTypeLeadCaptured,
		LeadID:    lead.ID.String(),
		Lead:      lead,
		Timestamp: now.UTC(),
	}
}

func leadMessage(event LeadEvent) (kafka.Message, error) {
	data, err := json.Marshal(event)
	if err != nil {
		return kafka.Message{}, err
	}
	return kafka.Message{
		Key:   []byte(event.LeadID),
		Value: data,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(event.Type)},
			{Key: "event_id", Value: []byte(event.ID)},
		},
	}, nil
}

// messageWriter is the part of *kafka.Writer the publisher uses.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaPublisher publishes lead events to Kafka.
type KafkaPublisher struct {
	writer messageWriter
	topic  string
	logger *zap.Logger
}

// NewKafkaPublisher creates a new Kafka-based lead publisher.
func NewKafkaPublisher(cfg config.KafkaConfig, logger *zap.Logger) *KafkaPublisher {
	timeout := cfg.WriteTimeout
	if timeout <= 0 {
		timeout = defaultWriteTimeout
	}
	writer := &kafka.Writer{
		Addr:                   kafka.TCP(cfg.Brokers...),
		Topic:                  cfg.LeadsTopic,
		Balancer:               &kafka.Hash{},
		WriteTimeout:           timeout,
		RequiredAcks:           kafka.RequireOne,
		AllowAutoTopicCreation: true,
	}
	return newKafkaPublisher(writer, cfg.LeadsTopic, logger)
}

func newKafkaPublisher(writer messageWriter, topic string, logger *zap.Logger) *KafkaPublisher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &KafkaPublisher{writer: writer, topic: topic, logger: logger}
}

// PublishLeadCaptured publishes a lead captured event keyed by the lead ID.
func (p *KafkaPublisher) PublishLeadCaptured(ctx context.Context, lead catalog.Lead) error {
	event := newLeadEvent(lead, time.Now())
	msg, err := leadMessage(event)
	if err != nil {
		return err
	}

	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		p.logger.Error("failed to publish event",
			zap.String("op", "events.PublishLeadCaptured"),
			zap.String("topic", p.topic),
			zap.String("event_id", event.ID),
			zap.String("lead_id", event.LeadID),
			zap.Error(err),
		)
		return err
	}

	p.logger.Info("event published",
		zap.String("op", "events.PublishLeadCaptured"),
		zap.String("topic", p.topic),
		zap.String("event_id", event.ID),
		zap.String("lead_id", event.LeadID),
	)
	return nil
}

// Close closes the Kafka writer.
func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}

// NopPublisher drops every event.
type NopPublisher struct{}

func (NopPublisher) PublishLeadCaptured(context.Context, catalog.Lead) error { return nil }

// RecordingPublisher keeps published leads in memory for tests and dry runs.
type RecordingPublisher struct {
	mu    sync.Mutex
	leads []catalog.Lead
	Err   error
}

func (r *RecordingPublisher) PublishLeadCaptured(_ context.Context, lead catalog.Lead) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Err != nil {
		return r.Err
	}
	r.leads = append(r.leads, lead)
	return nil
}

// Leads returns the leads published so far.
func (r *RecordingPublisher) Leads() []catalog.Lead {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]catalog.Lead, len(r.leads))
	copy(out, r.leads)
	return out
}
