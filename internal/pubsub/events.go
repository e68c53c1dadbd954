package pubsub

import "time"

// ProgressEvent mirrors one mutation of a progress.Record, published on the
// operation's topic for push-based consumers. Kept as a plain struct here
// (rather than importing the progress package) to avoid a dependency cycle;
// internal/progress constructs one of these on every mutation.
type ProgressEvent struct {
	OperationKey    string    `json:"operation_key"`
	Stage           string    `json:"stage"`
	Progress        int       `json:"progress"`
	Message         string    `json:"message"`
	Timestamp       time.Time `json:"timestamp"`
	CancelRequested bool      `json:"cancel_requested"`
}
