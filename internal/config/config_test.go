package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadFromRootDerivesLayout(t *testing.T) {
	cfg, err := LoadFromRoot("/tmp/dockerpilot-test")
	require.NoError(t, err)

	assert.Equal(t, "/tmp/dockerpilot-test", cfg.Root)
	assert.Equal(t, filepath.Join("/tmp/dockerpilot-test", "servers.json"), cfg.ServersFile)
	assert.Equal(t, filepath.Join("/tmp/dockerpilot-test", "deployment_history.json"), cfg.HistoryFile)
	assert.Equal(t, filepath.Join("/tmp/dockerpilot-test", "configs"), cfg.ConfigsDir)
	assert.Equal(t, filepath.Join("/tmp/dockerpilot-test", "backups"), cfg.BackupsDir)
	assert.Equal(t, filepath.Join("/tmp/dockerpilot-test", "health-checks-defaults.json"), cfg.HealthChecksDefaultsFile)
	assert.Equal(t, filepath.Join("/tmp/dockerpilot-test", "health-checks-user.yml"), cfg.HealthChecksUserFile)
}

func TestLoadFromRootRejectsEmpty(t *testing.T) {
	_, err := LoadFromRoot("")
	assert.Error(t, err)
}

func TestLoadHonorsConfigRootEnvVar(t *testing.T) {
	t.Setenv(rootEnvVar, "/tmp/dockerpilot-env-root")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "/tmp/dockerpilot-env-root", cfg.Root)
}

func TestLoadFallsBackToXDGConfigHome(t *testing.T) {
	t.Setenv(rootEnvVar, "")
	t.Setenv(xdgEnvVar, "/tmp/xdg-home")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join("/tmp/xdg-home", "dockerpilot"), cfg.Root)
}

func TestEnsureDirsCreatesTree(t *testing.T) {
	dir := t.TempDir()
	cfg, err := LoadFromRoot(filepath.Join(dir, "root"))
	require.NoError(t, err)

	require.NoError(t, cfg.EnsureDirs())

	for _, d := range []string{cfg.Root, cfg.ConfigsDir, cfg.BackupsDir} {
		info, err := os.Stat(d)
		require.NoError(t, err)
		assert.True(t, info.IsDir())
	}
}
