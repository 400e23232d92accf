package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestApplyEnvOverrides(t *testing.T) {
	t.Run("CHASE_SCHEDULER overrides the configured scheduler", func(t *testing.T) {
		t.Setenv("CHASE_SCHEDULER", "grd")

		cfg := DefaultConfig()
		cfg.applyEnvOverrides()

		assert.Equal(t, "grd", cfg.Chase.Scheduler)
	})

	t.Run("unset CHASE_SCHEDULER leaves the configured value alone", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.applyEnvOverrides()

		assert.Equal(t, "naive", cfg.Chase.Scheduler)
	})

	t.Run("CHASE_SQL_PATH switches the store backend to sqlite", func(t *testing.T) {
		t.Setenv("CHASE_SQL_PATH", "/tmp/chase.db")

		cfg := DefaultConfig()
		cfg.applyEnvOverrides()

		assert.Equal(t, "sqlite", cfg.Store.Backend)
		assert.Equal(t, "/tmp/chase.db", cfg.Store.SQLPath)
	})

	t.Run("CHASE_DEBUG=1 turns on debug logging", func(t *testing.T) {
		t.Setenv("CHASE_DEBUG", "1")

		cfg := DefaultConfig()
		cfg.applyEnvOverrides()

		assert.True(t, cfg.Logging.DebugMode)
		assert.Equal(t, "debug", cfg.Logging.Level)
	})

	t.Run("CHASE_DEBUG with any other value is ignored", func(t *testing.T) {
		t.Setenv("CHASE_DEBUG", "true")

		cfg := DefaultConfig()
		cfg.applyEnvOverrides()

		assert.False(t, cfg.Logging.DebugMode)
		assert.Equal(t, "info", cfg.Logging.Level)
	})
}

func TestLoadFallsBackToDefaultsWhenFileMissing(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "does-not-exist.yaml"))
	require.NoError(t, err)

	assert.Equal(t, "chasecore", cfg.Name)
	assert.Equal(t, "semi_naive", cfg.Chase.TriggerComputer)
}

func TestLoadParsesYAMLAndAppliesEnvOverrides(t *testing.T) {
	t.Setenv("CHASE_SCHEDULER", "by_predicate")

	path := filepath.Join(t.TempDir(), "chasecore.yaml")
	contents := "name: demo\nchase:\n  scheduler: naive\n  trigger_computer: restricted\n"
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "demo", cfg.Name)
	assert.Equal(t, "restricted", cfg.Chase.TriggerComputer)
	assert.Equal(t, "by_predicate", cfg.Chase.Scheduler, "env override must win over the file's own value")
}

func TestValidateRejectsUnknownPolicyNames(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())

	cfg.Chase.TriggerChecker = "nonexistent"
	assert.Error(t, cfg.Validate())
}

func TestValidateRequiresSQLPathForSQLiteBackend(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Store.Backend = "sqlite"
	assert.Error(t, cfg.Validate())

	cfg.Store.SQLPath = "/tmp/chase.db"
	assert.NoError(t, cfg.Validate())
}
