package worker

import (
	"context"

	"github.com/alexcraviotto/whatsappcloudapi-wrapper/internal/kafka/consumer"
)

// OffsetCommitter is implemented by *consumer.Consumer.
type OffsetCommitter interface {
	Commit(ctx context.Context, record *consumer.Record) error
}

// KafkaHandler returns a consumer.Handler that hands every record to the
// engine. Offsets are committed through cons once the engine reaches a
// terminal outcome; a nil cons makes commits no-ops.
func KafkaHandler(engine *Engine, cons OffsetCommitter) consumer.Handler {
	return func(ctx context.Context, rec *consumer.Record) error {
		if engine == nil || rec == nil {
			return nil
		}

		var commitFn func(context.Context) error
		if cons != nil {
			commitFn = func(c context.Context) error {
				return cons.Commit(c, rec)
			}
		}

		engine.HandleRecord(ctx, NewRecordFromConsumer(rec, commitFn))
		return nil
	}
}
