package healthcheck

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestResolveBuiltinDefault(t *testing.T) {
	r := &Resolver{}
	p := r.Resolve("grafana/grafana:10.4.0", nil, false)
	assert.Equal(t, Probe{HTTPPath: "/api/health"}, p)
}

func TestResolveMostSpecificWins(t *testing.T) {
	r := &Resolver{Defaults: map[string]string{
		"grafana":     "/api/health",
		"grafana-oss": "/other-health",
	}}
	p := r.Resolve("grafana-oss:9", nil, false)
	assert.Equal(t, "/other-health", p.HTTPPath)
}

func TestResolveNonHTTPAllowList(t *testing.T) {
	r := &Resolver{}
	p := r.Resolve("ssh-jump:2.3", nil, false)
	assert.True(t, p.NonHTTP)
	assert.Empty(t, p.HTTPPath)
}

func TestResolveFallback(t *testing.T) {
	r := &Resolver{}
	p := r.Resolve("my-random-app:1.0", nil, false)
	assert.Equal(t, "/health", p.HTTPPath)
}

func TestResolveDisabledOverride(t *testing.T) {
	r := &Resolver{}
	p := r.Resolve("grafana/grafana:10.4.0", nil, true)
	assert.True(t, p.Disabled)
}

func TestResolvePerDeploymentOverrideWins(t *testing.T) {
	r := &Resolver{}
	custom := "/custom"
	p := r.Resolve("grafana/grafana:10.4.0", &custom, false)
	assert.Equal(t, "/custom", p.HTTPPath)
}

func TestResolveUserOverrideBeatsBuiltinDefault(t *testing.T) {
	r := &Resolver{UserOverrides: map[string]string{"grafana": "/custom-health"}}
	p := r.Resolve("grafana/grafana:10.4.0", nil, false)
	assert.Equal(t, "/custom-health", p.HTTPPath)
}

func TestResolveCaseInsensitive(t *testing.T) {
	r := &Resolver{}
	p := r.Resolve("GRAFANA/Grafana:LATEST", nil, false)
	assert.Equal(t, "/api/health", p.HTTPPath)
}
