// Package healthcheck resolves an image reference to a readiness probe
// spec through a layered, pure configuration lookup: per-deployment
// override, user overrides, built-in defaults, a non-HTTP allow-list, and
// a final fallback. None of this touches a running container; the engine
// calls the resolver, then executes the returned Probe itself.
package healthcheck

import "strings"

// Probe describes how the engine should judge a container ready.
type Probe struct {
	// Disabled means the deployment explicitly opted out of health
	// probing (per-deployment override of null).
	Disabled bool

	// HTTPPath is the endpoint to GET for an HTTP probe ("" when NonHTTP
	// is true).
	HTTPPath string

	// NonHTTP is true for images on the non-HTTP allow-list: no HTTP GET
	// is made, and the engine's probe treats the container as ready
	// without checking its state.
	NonHTTP bool
}

// defaultProbes is the built-in image-stem → endpoint table.
var defaultProbes = map[string]string{
	"qdrant":        "/healthz",
	"ollama":        "/api/version",
	"influxdb":      "/ready",
	"grafana":       "/api/health",
	"prometheus":    "/-/healthy",
	"nextcloud":     "/status.php",
	"elasticsearch": "/_cluster/health",
	"homeassistant": "/",
}

// nonHTTPStems skip HTTP probing entirely.
var nonHTTPStems = []string{
	"ssh", "redis", "mariadb", "mysql", "postgresql", "mongodb", "db2", "rabbitmq", "kafka",
}

const fallbackPath = "/health"

// Resolver maps an image reference to a Probe using a swappable set of
// user overrides layered on top of the built-in tables above. The zero
// value (no user overrides) is usable.
type Resolver struct {
	// UserOverrides is an image-name-substring → endpoint table, loaded
	// from health-checks-user.yml. Longest matching key wins.
	UserOverrides map[string]string

	// Defaults overrides the built-in table, loaded from
	// health-checks-defaults.json when the caller wants to reconfigure
	// it without a code change. Nil uses defaultProbes.
	Defaults map[string]string

	// NonHTTPStems overrides the built-in non-HTTP allow-list. Nil uses
	// nonHTTPStems.
	NonHTTPStems []string
}

// Resolve returns the probe for image, honoring deploymentOverride (the
// per-deployment healthcheck_endpoint field: nil pointer means "not set,
// fall through"; a pointer to "" or an explicit disable means Disabled).
func (r *Resolver) Resolve(image string, deploymentOverride *string, disabled bool) Probe {
	if disabled || (deploymentOverride != nil && *deploymentOverride == "") {
		return Probe{Disabled: true}
	}
	if deploymentOverride != nil {
		return Probe{HTTPPath: *deploymentOverride}
	}

	lower := strings.ToLower(image)

	if path, ok := matchLongest(lower, r.userOverrides()); ok {
		return Probe{HTTPPath: path}
	}
	if path, ok := matchLongest(lower, r.defaults()); ok {
		return Probe{HTTPPath: path}
	}
	if matchesAny(lower, r.nonHTTPStems()) {
		return Probe{NonHTTP: true}
	}
	return Probe{HTTPPath: fallbackPath}
}

func (r *Resolver) userOverrides() map[string]string {
	if r.UserOverrides != nil {
		return r.UserOverrides
	}
	return nil
}

func (r *Resolver) defaults() map[string]string {
	if r.Defaults != nil {
		return r.Defaults
	}
	return defaultProbes
}

func (r *Resolver) nonHTTPStems() []string {
	if r.NonHTTPStems != nil {
		return r.NonHTTPStems
	}
	return nonHTTPStems
}

// matchLongest returns the value for the longest key in table that
// appears as a substring of image, implementing the most-specific-wins
// rule (e.g. "grafana-oss" beats "grafana" for image "grafana-oss:9").
func matchLongest(image string, table map[string]string) (string, bool) {
	bestKey := ""
	bestVal := ""
	found := false
	for key, val := range table {
		if strings.Contains(image, strings.ToLower(key)) && len(key) > len(bestKey) {
			bestKey, bestVal, found = key, val, true
		}
	}
	return bestVal, found
}

func matchesAny(image string, stems []string) bool {
	for _, stem := range stems {
		if strings.Contains(image, stem) {
			return true
		}
	}
	return false
}
