// Package publisher writes worker and webhook events to Kafka as JSON.
package publisher

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"

	"github.com/rs/zerolog"

	"github.com/alexcraviotto/whatsappcloudapi-wrapper/internal/inbound"
	"github.com/alexcraviotto/whatsappcloudapi-wrapper/internal/models"
)

var errProducerNotInitialised = errors.New("kafka publisher: producer not initialised")

// SyncProducer captures the subset of producer behaviour required by the publishers.
type SyncProducer interface {
	PublishSync(topic string, key []byte, headers map[string][]byte, payload []byte) error
}

// ErrProducerNotInitialised exposes the sentinel error for callers and tests.
func ErrProducerNotInitialised() error {
	return errProducerNotInitialised
}

// jsonPublisher is the shared encoder behind every typed publisher.
type jsonPublisher struct {
	producer SyncProducer
	topic    string
	logger   zerolog.Logger
}

func newJSONPublisher(prod SyncProducer, topic string, logger zerolog.Logger) *jsonPublisher {
	if prod == nil {
		return nil
	}
	if reflect.ValueOf(logger).IsZero() {
		logger = zerolog.Nop()
	}
	return &jsonPublisher{producer: prod, topic: topic, logger: logger}
}

func (p *jsonPublisher) publish(what, key string, headers map[string][]byte, v any) error {
	if p == nil || p.producer == nil {
		return errProducerNotInitialised
	}

	payload, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("kafka publisher: marshal %s: %w", what, err)
	}

	h := map[string][]byte{"content-type": []byte("application/json")}
	for k, val := range headers {
		h[k] = val
	}

	if err := p.producer.PublishSync(p.topic, []byte(key), h, payload); err != nil {
		return fmt.Errorf("kafka publisher: publish %s: %w", what, err)
	}
	p.logger.Debug().Str("topic", p.topic).Str("key", key).Msgf("kafka publisher: %s published", what)
	return nil
}

func traceHeaders(traceID string) map[string][]byte {
	if traceID == "" {
		return nil
	}
	return map[string][]byte{"trace_id": []byte(traceID)}
}

// StatusPublisher emits status events keyed by message id.
type StatusPublisher struct {
	*jsonPublisher
}

// NewStatusPublisher returns nil when prod is nil.
func NewStatusPublisher(prod SyncProducer, topic string, logger zerolog.Logger) *StatusPublisher {
	p := newJSONPublisher(prod, topic, logger)
	if p == nil {
		return nil
	}
	return &StatusPublisher{p}
}

// PublishStatus writes the supplied status event to Kafka synchronously.
func (p *StatusPublisher) PublishStatus(_ context.Context, event models.StatusEvent) error {
	if p == nil {
		return errProducerNotInitialised
	}
	return p.publish("status event", event.MessageID, traceHeaders(event.TraceID), event)
}

// DLQPublisher writes DLQ records keyed by message id.
type DLQPublisher struct {
	*jsonPublisher
}

// NewDLQPublisher returns nil when prod is nil.
func NewDLQPublisher(prod SyncProducer, topic string, logger zerolog.Logger) *DLQPublisher {
	p := newJSONPublisher(prod, topic, logger)
	if p == nil {
		return nil
	}
	return &DLQPublisher{p}
}

// PublishDLQ writes the supplied DLQ record to Kafka synchronously.
func (p *DLQPublisher) PublishDLQ(_ context.Context, record models.DLQRecord) error {
	if p == nil {
		return errProducerNotInitialised
	}
	return p.publish("dlq record", record.MessageID, traceHeaders(record.TraceID), record)
}

// InboundPublisher forwards webhook events. Events are keyed by the
// customer's number, falling back to the recipient for status updates, so a
// conversation stays on one partition.
type InboundPublisher struct {
	*jsonPublisher
}

// NewInboundPublisher returns nil when prod is nil.
func NewInboundPublisher(prod SyncProducer, topic string, logger zerolog.Logger) *InboundPublisher {
	p := newJSONPublisher(prod, topic, logger)
	if p == nil {
		return nil
	}
	return &InboundPublisher{p}
}

// PublishEvent writes one normalized webhook event.
func (p *InboundPublisher) PublishEvent(_ context.Context, event inbound.Event) error {
	if p == nil {
		return errProducerNotInitialised
	}
	key := event.From
	if key == "" {
		key = event.RecipientID
	}
	headers := map[string][]byte{"event-type": []byte(event.Type)}
	return p.publish("inbound event", key, headers, event)
}
