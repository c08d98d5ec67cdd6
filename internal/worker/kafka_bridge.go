package worker

import (
	"context"

	"github.com/alexcraviotto/whatsappcloudapi-wrapper/internal/kafka/consumer"
)

// NewRecordFromConsumer converts a consumer record into a worker record bound
// to the supplied commit function.
func NewRecordFromConsumer(rec *consumer.Record, commit func(context.Context) error) *Record {
	if rec == nil {
		return nil
	}

	return &Record{
		Topic:     rec.Topic,
		Partition: rec.Partition,
		Offset:    rec.Offset,
		Key:       cloneBytes(rec.Key),
		Value:     cloneBytes(rec.Value),
		Timestamp: rec.Timestamp,
		Headers:   cloneHeaders(rec.Headers),
		commit:    commit,
	}
}
