// Package engine is the deployment and migration driver: it ties the host
// registry, Docker client façade, progress registry, health-check
// resolver, and backup subsystem together into the promote and migrate
// operations, executing one of four deployment strategies as an explicit
// state machine per operation.
package engine

import "time"

// Strategy selects which state machine a promotion runs.
type Strategy string

const (
	StrategyQuick     Strategy = "quick"
	StrategyRolling   Strategy = "rolling"
	StrategyBlueGreen Strategy = "blue_green"
	StrategyCanary    Strategy = "canary"
)

// DeploymentHistoryEntry is one append-only journal record, written after
// every promotion or migration reaches a terminal stage.
type DeploymentHistoryEntry struct {
	Timestamp     time.Time `json:"timestamp"`
	Strategy      Strategy  `json:"strategy"`
	ImageTag      string    `json:"image_tag"`
	ContainerName string    `json:"container_name"`
	Status        string    `json:"status"` // "success" | "failed"
	DurationMS    int64     `json:"duration_ms"`
	Output        string    `json:"output,omitempty"`
}

// PromoteOptions carries the per-call knobs for PromoteOne/PromoteAll.
type PromoteOptions struct {
	Strategy       Strategy
	SkipBackup     bool
	NoCleanup      bool
	DockerfilePath string
	SessionID      string // looked up in the session store for an elevation secret
	HostID         string // host both source and target run on; defaults to "local"
}

// MigrateOptions carries Migrate's inputs, per spec §4.7.6.
type MigrateOptions struct {
	ContainerName string
	SourceHostID  string
	TargetHostID  string
	IncludeData   bool
	StopSource    bool
	SessionID     string
}

// dbConfigSubtrees maps a recognized database image family to a config
// path copied verbatim during blue-green data migration, per §4.7.4 step 4.
var dbConfigSubtrees = map[string]string{
	"influxdb":   "/etc/influxdb2/",
	"postgres":   "/var/lib/postgresql/data/",
	"mysql":      "/var/lib/mysql/",
	"mongodb":    "/data/db/",
	"db2":        "/database/config/",
	"elasticsearch": "/usr/share/elasticsearch/config/",
}
