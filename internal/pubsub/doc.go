// Package pubsub provides the optional push channel for progress updates
// described in the progress registry's design: readers may poll a
// ProgressRecord, but an implementation may additionally publish every
// mutation on a per-operation topic for push-based consumers.
//
// # Usage
//
// Initialize the pub/sub client (in-memory, or Redis over a
// caller-supplied client; no configuration setting chooses between them):
//
//	ps := pubsub.NewMemoryPubSub()
//	// or: ps := pubsub.NewRedisPubSub(redis.NewClient(&redis.Options{Addr: "localhost:6379"}))
//
// Publish a progress event:
//
//	err := ps.Publish(ctx, pubsub.ProgressTopic(operationKey), &pubsub.ProgressEvent{
//		OperationKey: operationKey,
//		Stage:        "building",
//		Progress:     20,
//	})
//
// Subscribe:
//
//	ch, unsub := ps.Subscribe(ctx, pubsub.ProgressTopic(operationKey))
//	defer unsub()
//	for msg := range ch {
//		var event pubsub.ProgressEvent
//		json.Unmarshal(msg, &event)
//	}
package pubsub
