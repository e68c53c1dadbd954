// Package descriptor normalizes a running container's configuration into
// a ContainerDescriptor, applies per-environment transforms to it, and
// serializes it losslessly to and from YAML.
package descriptor

// ContainerDescriptor is the normalized, environment-agnostic view of a
// deployable container. Every promotion and migration operates on one of
// these rather than on raw Docker API types.
// ContainerDescriptor itself has no yaml tags: the on-disk shape (§6.3)
// differs from this in-memory shape (port_mapping keys/values are
// inverted relative to PortBindings, and volumes are a map keyed by
// mount path rather than a list) — see wireDescriptor in yaml.go for the
// conversion.
type ContainerDescriptor struct {
	ContainerName string
	ImageTag      string

	Command    []string
	Entrypoint []string

	// PortBindings maps container_port (e.g. "8080/tcp") to host_port.
	PortBindings map[string]string

	// Environment is an ordered list of "K=V" pairs — a map would lose
	// the original declaration order, which the round-trip property
	// requires preserving.
	Environment []string

	Volumes  []MountSpec
	Networks []string

	RestartPolicy string
	CPULimit      string
	MemoryLimit   string
	Replicas      int

	Labels map[string]string

	// HealthcheckEndpoint is derived by the health-check resolver, not
	// read off the container; nil means "not yet resolved", a pointer
	// to "" means "explicitly disabled".
	HealthcheckEndpoint *string
	HealthcheckRetries  int
	HealthcheckTimeout  string
}

// MountSpec is a tagged union: exactly one of the named-volume fields or
// the bind-mount fields is populated, distinguished by VolumeName being
// non-empty.
type MountSpec struct {
	// Named volume case.
	VolumeName string

	// Bind mount case.
	HostPath string

	MountPath  string
	ReadOnly   bool
	Privileged bool
}

// IsBindMount reports whether m is the bind-mount case of the union.
func (m MountSpec) IsBindMount() bool {
	return m.VolumeName == "" && m.HostPath != ""
}

// systemBindPaths are bind-mount roots C6 marks not-backupable and skips.
var systemBindPaths = []string{
	"/var/lib/docker", "/root", "/etc", "/proc", "/sys", "/lib/modules", "/boot",
}

// IsSystemPath reports whether path is one of the system bind-mount roots
// (or a subpath of one) that backup must skip entirely.
func IsSystemPath(path string) bool {
	for _, root := range systemBindPaths {
		if path == root || hasPathPrefix(path, root) {
			return true
		}
	}
	return false
}

func hasPathPrefix(path, root string) bool {
	return len(path) > len(root) && path[:len(root)] == root && path[len(root)] == '/'
}

// EnvironmentProfile is the compile-time table of per-environment
// scaling/naming rules a promotion applies during Transform.
type EnvironmentProfile struct {
	Name     string
	Suffix   string // "" for prod: no suffix
	CPU      string
	Memory   string
	Replicas int
}

// Profiles is the fixed dev/staging/prod table from the data model.
var Profiles = map[string]EnvironmentProfile{
	"dev":     {Name: "dev", Suffix: "-dev", CPU: "0.5", Memory: "512Mi", Replicas: 1},
	"staging": {Name: "staging", Suffix: "-staging", CPU: "1.0", Memory: "1Gi", Replicas: 2},
	"prod":    {Name: "prod", Suffix: "", CPU: "2.0", Memory: "2Gi", Replicas: 3},
}

// knownSuffixes lists every profile suffix, used by Transform to strip
// whichever one is currently present before appending the target's.
func knownSuffixes() []string {
	suffixes := make([]string, 0, len(Profiles))
	for _, p := range Profiles {
		if p.Suffix != "" {
			suffixes = append(suffixes, p.Suffix)
		}
	}
	return suffixes
}
