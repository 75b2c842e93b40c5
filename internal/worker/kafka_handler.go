package worker

import (
	"context"

	"github.com/example/whatsapp-messaging/internal/kafka/consumer"
)

// KafkaHandler returns a consumer.Handler that converts consumer records into
// worker records and hands them to the dispatcher.
func KafkaHandler(dispatcher *Dispatcher, cons *consumer.Consumer) consumer.Handler {
	return func(ctx context.Context, rec *consumer.Record) error {
		if dispatcher == nil || rec == nil {
			return nil
		}

		var commit func(context.Context) error
		if cons != nil {
			commit = func(c context.Context) error {
				return cons.Commit(c, rec)
			}
		}

		wr := NewRecord(rec.Topic, rec.Partition, rec.Offset, rec.Key, rec.Value, commit)
		wr.Timestamp = rec.Timestamp
		wr.Headers = cloneHeaders(rec.Headers)
		return dispatcher.HandleRecord(ctx, wr)
	}
}
