package pubsub

import (
	"context"

	"go.uber.org/zap"

	"dockerpilot/internal/logger"
)

// RecoverSubscription is a deferred function for subscription goroutines.
// It recovers from panics and logs them without crashing the server.
//
// Usage:
//
//	go func() {
//	    defer pubsub.RecoverSubscription("EngineHistory", unsub, historyCh)
//	    // ... subscription logic
//	}()
func RecoverSubscription[T any](name string, unsub func(), ch chan T) {
	if r := recover(); r != nil {
		logger.GetLogger(context.Background()).Error("subscription panic recovered",
			zap.String("subscription", name), zap.Any("panic", r))
	}
	close(ch)
	if unsub != nil {
		unsub()
	}
}

// RecoverWithCleanup is a more flexible panic recovery helper that
// accepts custom cleanup functions.
//
// Usage:
//
//	go func() {
//	    defer pubsub.RecoverWithCleanup("EngineHistory", func() {
//	        close(ch)
//	        unsub()
//	        // additional cleanup...
//	    })
//	    // ... subscription logic
//	}()
func RecoverWithCleanup(name string, cleanup func()) {
	if r := recover(); r != nil {
		logger.GetLogger(context.Background()).Error("subscription panic recovered",
			zap.String("subscription", name), zap.Any("panic", r))
	}
	if cleanup != nil {
		cleanup()
	}
}
