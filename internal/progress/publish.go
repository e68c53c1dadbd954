package progress

import (
	"context"

	"dockerpilot/internal/pubsub"
)

// PublishFunc adapts a pubsub.PubSub into the publish hook NewRegistry
// accepts, so every stage transition is pushed onto the operation's
// progress topic in addition to being readable via Get/All.
func PublishFunc(ctx context.Context, ps pubsub.PubSub) func(Record) {
	return func(rec Record) {
		_ = ps.Publish(ctx, pubsub.ProgressTopic(rec.OperationKey), pubsub.ProgressEvent{
			OperationKey:    rec.OperationKey,
			Stage:           string(rec.Stage),
			Progress:        rec.Progress,
			Message:         rec.Message,
			Timestamp:       rec.Timestamp,
			CancelRequested: rec.CancelRequested,
		})
	}
}
