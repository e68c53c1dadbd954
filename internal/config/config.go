// Package config resolves the single root directory DockerPilot persists
// all of its state under, and the small set of process-wide settings
// layered on top of it.
package config

import (
	"fmt"
	"os"
	"path/filepath"
)

const (
	// rootEnvVar overrides the default config root entirely.
	rootEnvVar = "DOCKERPILOT_CONFIG_ROOT"

	// xdgEnvVar is consulted when rootEnvVar is unset, per XDG Base
	// Directory convention.
	xdgEnvVar = "XDG_CONFIG_HOME"

	appDirName = "dockerpilot"
)

// Config is the resolved, validated set of paths and settings every
// component reads from. Construct via Load, not by hand.
type Config struct {
	// Root is the single directory servers.json, deployment_history.json,
	// configs/, backups/, and the health-check override files live under.
	Root string

	// ServersFile is Root/servers.json.
	ServersFile string

	// HistoryFile is Root/deployment_history.json.
	HistoryFile string

	// ConfigsDir is Root/configs.
	ConfigsDir string

	// BackupsDir is Root/backups.
	BackupsDir string

	// HealthChecksDefaultsFile is Root/health-checks-defaults.json.
	HealthChecksDefaultsFile string

	// HealthChecksUserFile is Root/health-checks-user.yml.
	HealthChecksUserFile string
}

// Load resolves the config root (DOCKERPILOT_CONFIG_ROOT, else
// $XDG_CONFIG_HOME/dockerpilot, else $HOME/.config/dockerpilot) and
// derives the fixed file layout under it. It does not create any
// directories; callers create them lazily on first write.
func Load() (*Config, error) {
	root, err := resolveRoot()
	if err != nil {
		return nil, fmt.Errorf("config: resolve root: %w", err)
	}
	return fromRoot(root), nil
}

// LoadFromRoot builds a Config rooted at an explicit directory, bypassing
// environment resolution — used by tests and by callers embedding
// DockerPilot with their own root-path policy.
func LoadFromRoot(root string) (*Config, error) {
	if root == "" {
		return nil, fmt.Errorf("config: root must not be empty")
	}
	return fromRoot(root), nil
}

func fromRoot(root string) *Config {
	return &Config{
		Root:                     root,
		ServersFile:              filepath.Join(root, "servers.json"),
		HistoryFile:              filepath.Join(root, "deployment_history.json"),
		ConfigsDir:               filepath.Join(root, "configs"),
		BackupsDir:               filepath.Join(root, "backups"),
		HealthChecksDefaultsFile: filepath.Join(root, "health-checks-defaults.json"),
		HealthChecksUserFile:     filepath.Join(root, "health-checks-user.yml"),
	}
}

func resolveRoot() (string, error) {
	if v := os.Getenv(rootEnvVar); v != "" {
		return v, nil
	}
	if v := os.Getenv(xdgEnvVar); v != "" {
		return filepath.Join(v, appDirName), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("determine home directory: %w", err)
	}
	return filepath.Join(home, ".config", appDirName), nil
}

// EnsureDirs creates Root, ConfigsDir, and BackupsDir if they do not
// already exist.
func (c *Config) EnsureDirs() error {
	for _, dir := range []string{c.Root, c.ConfigsDir, c.BackupsDir} {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return fmt.Errorf("config: create %s: %w", dir, err)
		}
	}
	return nil
}
