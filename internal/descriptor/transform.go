package descriptor

import (
	"fmt"
	"strings"

	"dockerpilot/internal/apierrors"
)

// Transform applies targetEnv's EnvironmentProfile to d, returning a new
// descriptor. It renames the container (stripping whichever known suffix
// is currently present, appending the target's), retags the image if it
// carries a ":x-ENV" tag form, scales cpu/memory limits, and sets
// replicas. Everything the profile does not touch is preserved unchanged.
func Transform(d ContainerDescriptor, targetEnv string) (ContainerDescriptor, error) {
	profile, ok := Profiles[targetEnv]
	if !ok {
		return ContainerDescriptor{}, apierrors.New("Transform", apierrors.KindInvalidDescriptor,
			fmt.Errorf("unknown environment %q", targetEnv))
	}

	out := d
	out.ContainerName = retarget(d.ContainerName, profile.Suffix)
	out.ImageTag = retagImage(d.ImageTag, targetEnv)
	out.CPULimit = profile.CPU
	out.MemoryLimit = profile.Memory
	out.Replicas = profile.Replicas

	return out, nil
}

// retarget strips any known environment suffix from name, then appends
// newSuffix (which may be empty, for prod).
func retarget(name, newSuffix string) string {
	base := name
	for _, suffix := range knownSuffixes() {
		if strings.HasSuffix(base, suffix) {
			base = strings.TrimSuffix(base, suffix)
			break
		}
	}
	return base + newSuffix
}

// retagImage rewrites a ":x-ENV"-form tag (e.g. "myapp:1.0-staging") to
// reference targetEnv, leaving any other tag form untouched.
func retagImage(imageTag, targetEnv string) string {
	idx := strings.LastIndex(imageTag, ":")
	if idx < 0 {
		return imageTag
	}
	repo, tag := imageTag[:idx], imageTag[idx+1:]

	for envName := range Profiles {
		if envName == targetEnv {
			continue
		}
		if strings.HasSuffix(tag, "-"+envName) {
			base := strings.TrimSuffix(tag, "-"+envName)
			return fmt.Sprintf("%s:%s-%s", repo, base, targetEnv)
		}
	}
	return imageTag
}
