package pubsub

import "fmt"

// Topic constants and helper functions for subscription topics.
// Topics follow a hierarchical naming convention: {resource}:{id}

const (
	prefixProgress  = "progress"
	prefixHistory   = "history"
	prefixMigration = "migration"
)

// ProgressTopic returns the topic for progress updates on one operation key.
// Subscribers receive ProgressEvent messages.
func ProgressTopic(operationKey string) string {
	return fmt.Sprintf("%s:%s", prefixProgress, operationKey)
}

// MigrationTopic returns a topic for migration progress updates on one
// operation key, in its own namespace. Migrations take their lease in the
// same progress registry as promotions, and progress.PublishFunc pushes
// their records on ProgressTopic, not on this topic.
func MigrationTopic(operationKey string) string {
	return fmt.Sprintf("%s:%s", prefixMigration, operationKey)
}

// HistoryTopic returns the topic for deployment history append notifications.
func HistoryTopic() string {
	return prefixHistory
}
