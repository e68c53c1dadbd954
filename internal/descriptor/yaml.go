package descriptor

import (
	"fmt"
	"sort"

	"gopkg.in/yaml.v3"

	"dockerpilot/internal/apierrors"
)

// wireDocument is the top-level shape persisted to disk: a single
// "deployment:" key wrapping the descriptor (§6.3).
type wireDocument struct {
	Deployment wireDescriptor `yaml:"deployment"`
}

// wireDescriptor mirrors the on-disk field shapes exactly, which differ
// from ContainerDescriptor's in-memory shape: port_mapping is keyed by
// host port (value container port), and volumes is a map keyed by
// mount path rather than a list.
type wireDescriptor struct {
	ContainerName string                `yaml:"container_name"`
	ImageTag      string                `yaml:"image_tag"`
	Command       []string              `yaml:"command,omitempty"`
	Entrypoint    []string              `yaml:"entrypoint,omitempty"`
	PortMapping   map[string]string     `yaml:"port_mapping,omitempty"`
	Environment   []string              `yaml:"environment,omitempty"`
	Volumes       map[string]wireVolume `yaml:"volumes,omitempty"`
	Networks      []string              `yaml:"networks,omitempty"`

	RestartPolicy string `yaml:"restart_policy,omitempty"`
	CPULimit      string `yaml:"cpu_limit,omitempty"`
	MemoryLimit   string `yaml:"memory_limit,omitempty"`
	Replicas      int    `yaml:"replicas,omitempty"`

	Labels map[string]string `yaml:"labels,omitempty"`

	HealthcheckEndpoint *string `yaml:"health_check_endpoint,omitempty"`
	HealthcheckRetries  int     `yaml:"healthcheck_retries,omitempty"`
	HealthcheckTimeout  string  `yaml:"healthcheck_timeout,omitempty"`
}

// wireVolume is the value of a volumes map entry keyed by container mount
// path; it marshals as a bare string (named volume: the volume name) or
// as an object {bind, mode} (bind mount), per §6.3.
type wireVolume struct {
	VolumeContainerPath string // named-volume case: plain string value holding the volume name
	HostPath            string // bind-mount case: "bind"
	Mode                string // bind-mount case: "mode" — "ro" or "rw"
}

func (v wireVolume) MarshalYAML() (interface{}, error) {
	if v.HostPath == "" {
		return v.VolumeContainerPath, nil
	}
	return struct {
		Bind string `yaml:"bind"`
		Mode string `yaml:"mode"`
	}{Bind: v.HostPath, Mode: v.Mode}, nil
}

func (v *wireVolume) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.ScalarNode {
		return node.Decode(&v.VolumeContainerPath)
	}
	var obj struct {
		Bind string `yaml:"bind"`
		Mode string `yaml:"mode"`
	}
	if err := node.Decode(&obj); err != nil {
		return err
	}
	v.HostPath, v.Mode = obj.Bind, obj.Mode
	return nil
}

// ExportYAML serializes d losslessly under the "deployment:" top key.
// Import∘Export must be the identity on any descriptor this system can
// produce.
func ExportYAML(d ContainerDescriptor) ([]byte, error) {
	data, err := yaml.Marshal(wireDocument{Deployment: toWire(d)})
	if err != nil {
		return nil, apierrors.New("ExportYAML", apierrors.KindInvalidDescriptor, err)
	}
	return data, nil
}

// ImportYAML parses a previously exported (or externally authored)
// descriptor document.
func ImportYAML(data []byte) (ContainerDescriptor, error) {
	var doc wireDocument
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return ContainerDescriptor{}, apierrors.New("ImportYAML", apierrors.KindInvalidDescriptor, err)
	}
	if doc.Deployment.ContainerName == "" {
		return ContainerDescriptor{}, apierrors.New("ImportYAML", apierrors.KindMissingField,
			fmt.Errorf("container_name is required"))
	}
	return fromWire(doc.Deployment), nil
}

func toWire(d ContainerDescriptor) wireDescriptor {
	w := wireDescriptor{
		ContainerName:       d.ContainerName,
		ImageTag:            d.ImageTag,
		Command:             d.Command,
		Entrypoint:          d.Entrypoint,
		Environment:         d.Environment,
		Networks:            d.Networks,
		RestartPolicy:       d.RestartPolicy,
		CPULimit:            d.CPULimit,
		MemoryLimit:         d.MemoryLimit,
		Replicas:            d.Replicas,
		Labels:              d.Labels,
		HealthcheckEndpoint: d.HealthcheckEndpoint,
		HealthcheckRetries:  d.HealthcheckRetries,
		HealthcheckTimeout:  d.HealthcheckTimeout,
	}

	if len(d.PortBindings) > 0 {
		w.PortMapping = make(map[string]string, len(d.PortBindings))
		for containerPort, hostPort := range d.PortBindings {
			w.PortMapping[hostPort] = containerPort
		}
	}

	if len(d.Volumes) > 0 {
		w.Volumes = make(map[string]wireVolume, len(d.Volumes))
		for _, m := range d.Volumes {
			if m.IsBindMount() {
				mode := "rw"
				if m.ReadOnly {
					mode = "ro"
				}
				w.Volumes[m.MountPath] = wireVolume{HostPath: m.HostPath, Mode: mode}
			} else {
				w.Volumes[m.MountPath] = wireVolume{VolumeContainerPath: m.VolumeName}
			}
		}
	}

	return w
}

func fromWire(w wireDescriptor) ContainerDescriptor {
	d := ContainerDescriptor{
		ContainerName:       w.ContainerName,
		ImageTag:            w.ImageTag,
		Command:             w.Command,
		Entrypoint:          w.Entrypoint,
		Environment:         w.Environment,
		Networks:            w.Networks,
		RestartPolicy:       w.RestartPolicy,
		CPULimit:            w.CPULimit,
		MemoryLimit:         w.MemoryLimit,
		Replicas:            w.Replicas,
		Labels:              w.Labels,
		HealthcheckEndpoint: w.HealthcheckEndpoint,
		HealthcheckRetries:  w.HealthcheckRetries,
		HealthcheckTimeout:  w.HealthcheckTimeout,
	}

	if len(w.PortMapping) > 0 {
		d.PortBindings = make(map[string]string, len(w.PortMapping))
		for hostPort, containerPort := range w.PortMapping {
			d.PortBindings[containerPort] = hostPort
		}
	}

	if len(w.Volumes) > 0 {
		mountPaths := make([]string, 0, len(w.Volumes))
		for path := range w.Volumes {
			mountPaths = append(mountPaths, path)
		}
		sort.Strings(mountPaths)

		d.Volumes = make([]MountSpec, 0, len(w.Volumes))
		for _, path := range mountPaths {
			v := w.Volumes[path]
			if v.HostPath != "" {
				d.Volumes = append(d.Volumes, MountSpec{
					HostPath:   v.HostPath,
					MountPath:  path,
					ReadOnly:   v.Mode == "ro",
					Privileged: IsSystemPath(v.HostPath),
				})
			} else {
				d.Volumes = append(d.Volumes, MountSpec{
					VolumeName: v.VolumeContainerPath,
					MountPath:  path,
				})
			}
		}
	}

	return d
}
