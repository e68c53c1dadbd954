package engine

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"dockerpilot/internal/apierrors"
	"dockerpilot/internal/descriptor"
	"dockerpilot/internal/healthcheck"
)

// probe runs p against baseURL: up to 3 attempts, each an HTTP GET that
// must return 200 within 5s, with 2s between attempts. The descriptor's
// healthcheck_retries and healthcheck_timeout are not consulted here.
// Disabled and non-HTTP probes (per the resolver's allow-list) return nil
// at once; no container-state check (running time, restarts) is made for
// non-HTTP images, here or in the callers.
func probe(ctx context.Context, p healthcheck.Probe, baseURL string) error {
	if p.Disabled || p.NonHTTP {
		return nil
	}

	retries := 3
	timeout := 5 * time.Second
	client := &http.Client{Timeout: timeout}

	var lastErr error
	for attempt := 0; attempt < retries; attempt++ {
		reqCtx, cancel := context.WithTimeout(ctx, timeout)
		req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, baseURL+p.HTTPPath, nil)
		if err != nil {
			cancel()
			return apierrors.New("probe", apierrors.KindProbeFailed, err)
		}

		resp, err := client.Do(req)
		cancel()
		if err == nil {
			resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				return nil
			}
			lastErr = fmt.Errorf("probe returned status %d", resp.StatusCode)
		} else {
			lastErr = err
		}

		select {
		case <-ctx.Done():
			return apierrors.New("probe", apierrors.KindProbeTimeout, ctx.Err())
		case <-time.After(2 * time.Second):
		}
	}
	return apierrors.New("probe", apierrors.KindProbeFailed, lastErr)
}

// resolveProbe asks the health-check resolver for d's probe, honoring a
// per-deployment override.
func resolveProbe(resolver *healthcheck.Resolver, d descriptor.ContainerDescriptor) healthcheck.Probe {
	disabled := d.HealthcheckEndpoint != nil && *d.HealthcheckEndpoint == ""
	return resolver.Resolve(d.ImageTag, d.HealthcheckEndpoint, disabled)
}
