package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{"CELLSCRIPT_DB", "CELLSCRIPT_DRIVER", "CELLSCRIPT_PLOT_DIR", "CELLSCRIPT_STRATEGY"} {
		t.Setenv(key, "")
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, "cellscript", cfg.Name)
	assert.Equal(t, StrategyConservative, cfg.Engine.Strategy)
	assert.Equal(t, "sqlite3", cfg.Store.Driver)
	assert.Equal(t, 4096, cfg.Cache.Size)
	assert.NoError(t, cfg.Validate())
}

func TestConfig_SaveLoad(t *testing.T) {
	clearEnv(t)

	path := filepath.Join(t.TempDir(), ".cellscript", "config.yaml")

	cfg := DefaultConfig()
	cfg.Engine.Strategy = StrategyReplaySuffix
	cfg.Engine.MaxExecutionSteps = 50000
	cfg.Store.Driver = "sqlite"
	cfg.Logging.Categories = map[string]bool{"engine": true}

	require.NoError(t, cfg.Save(path))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, StrategyReplaySuffix, loaded.Engine.Strategy)
	assert.Equal(t, uint64(50000), loaded.Engine.MaxExecutionSteps)
	assert.Equal(t, "sqlite", loaded.Store.Driver)
	assert.True(t, loaded.Logging.Categories["engine"])
}

func TestLoad_MissingFileReturnsDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
}

func TestLoad_PartialFileKeepsDefaults(t *testing.T) {
	clearEnv(t)

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("plot:\n  width: 100\n"), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 100, cfg.Plot.Width)
	assert.Equal(t, 360, cfg.Plot.Height)
	assert.Equal(t, "sqlite3", cfg.Store.Driver)
}

func TestLoad_InvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("engine: [unclosed"), 0644))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestConfig_EnvOverrides(t *testing.T) {
	t.Setenv("CELLSCRIPT_DB", "/data/cells.db")
	t.Setenv("CELLSCRIPT_DRIVER", "sqlite")
	t.Setenv("CELLSCRIPT_PLOT_DIR", "/data/plots")
	t.Setenv("CELLSCRIPT_STRATEGY", StrategyReplaySuffix)

	cfg := DefaultConfig()
	cfg.applyEnvOverrides()

	assert.Equal(t, "/data/cells.db", cfg.Store.DatabasePath)
	assert.Equal(t, "sqlite", cfg.Store.Driver)
	assert.Equal(t, "/data/plots", cfg.Plot.ArtifactDir)
	assert.Equal(t, StrategyReplaySuffix, cfg.Engine.Strategy)
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"strategy", func(c *Config) { c.Engine.Strategy = "dataflow" }},
		{"driver", func(c *Config) { c.Store.Driver = "postgres" }},
		{"plot", func(c *Config) { c.Plot.Width = 0 }},
		{"cache", func(c *Config) { c.Cache.Size = -1 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestLoggingConfigConversion(t *testing.T) {
	lc := LoggingConfig{Level: "debug", Format: "json", DebugMode: true, Categories: map[string]bool{"store": false}}
	got := lc.ToLogging()
	assert.True(t, got.DebugMode)
	assert.Equal(t, "json", got.Format)
	assert.False(t, got.Categories["store"])
}
