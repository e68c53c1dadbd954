package healthcheck

import (
	"encoding/json"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// LoadResolver builds a Resolver from the on-disk defaults and user-override
// files. Either path may not exist yet, in which case that layer falls
// back to the package's built-in table (defaults) or is left empty (user
// overrides) — a fresh install has neither file.
func LoadResolver(defaultsPath, userOverridesPath string) (*Resolver, error) {
	r := &Resolver{}

	if defaultsPath != "" {
		if data, err := os.ReadFile(defaultsPath); err == nil {
			var table map[string]string
			if err := json.Unmarshal(data, &table); err != nil {
				return nil, fmt.Errorf("healthcheck: parse %s: %w", defaultsPath, err)
			}
			r.Defaults = table
		} else if !os.IsNotExist(err) {
			return nil, fmt.Errorf("healthcheck: read %s: %w", defaultsPath, err)
		}
	}

	if userOverridesPath != "" {
		if data, err := os.ReadFile(userOverridesPath); err == nil {
			var table map[string]string
			if err := yaml.Unmarshal(data, &table); err != nil {
				return nil, fmt.Errorf("healthcheck: parse %s: %w", userOverridesPath, err)
			}
			r.UserOverrides = table
		} else if !os.IsNotExist(err) {
			return nil, fmt.Errorf("healthcheck: read %s: %w", userOverridesPath, err)
		}
	}

	return r, nil
}
