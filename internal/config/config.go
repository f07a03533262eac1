package config

import (
	"fmt"
	"os"
	"path/filepath"

	"cellscript/internal/logging"

	"gopkg.in/yaml.v3"
)

// Config holds all cellscript configuration.
type Config struct {
	// Core settings
	Name    string `yaml:"name"`
	Version string `yaml:"version"`

	// Execution engine
	Engine EngineConfig `yaml:"engine"`

	// Source persistence
	Store StoreConfig `yaml:"store"`

	// Plot artifacts
	Plot PlotConfig `yaml:"plot"`

	// Lookup cache
	Cache CacheConfig `yaml:"cache"`

	// Logging
	Logging LoggingConfig `yaml:"logging"`
}

// Replay strategies for RunFrom when the changed unit is not the tail.
const (
	StrategyConservative = "conservative"  // full rebuild
	StrategyReplaySuffix = "replay_suffix" // restore snapshot, replay the suffix
)

// EngineConfig configures script execution.
type EngineConfig struct {
	Strategy string `yaml:"strategy"`

	// Upper bound on Starlark execution steps per fragment (0 = unlimited).
	MaxExecutionSteps uint64 `yaml:"max_execution_steps"`

	AllowRecursion bool `yaml:"allow_recursion"`
}

// StoreConfig configures the SQLite source store.
type StoreConfig struct {
	Driver       string `yaml:"driver"` // sqlite3 (mattn), sqlite (modernc)
	DatabasePath string `yaml:"database_path"`
}

// PlotConfig configures the plotting helper.
type PlotConfig struct {
	ArtifactDir string `yaml:"artifact_dir"`
	Width       int    `yaml:"width"`
	Height      int    `yaml:"height"`
}

// CacheConfig configures the lookup cache service.
type CacheConfig struct {
	Size int `yaml:"size"`
}

// LoggingConfig configures logging.
type LoggingConfig struct {
	Level      string          `yaml:"level"`      // debug, info, warn, error
	Format     string          `yaml:"format"`     // json, text
	DebugMode  bool            `yaml:"debug_mode"` // Master toggle - false = no logging (production)
	Categories map[string]bool `yaml:"categories"` // Per-category toggles
}

// ToLogging converts to the logging package's view of the section.
func (l LoggingConfig) ToLogging() logging.Config {
	return logging.Config{
		DebugMode:  l.DebugMode,
		Categories: l.Categories,
		Level:      l.Level,
		Format:     l.Format,
	}
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Name:    "cellscript",
		Version: "0.3.0",

		Engine: EngineConfig{
			Strategy:       StrategyConservative,
			AllowRecursion: true,
		},

		Store: StoreConfig{
			Driver:       "sqlite3",
			DatabasePath: ".cellscript/cells.db",
		},

		Plot: PlotConfig{
			ArtifactDir: ".cellscript/plots",
			Width:       640,
			Height:      360,
		},

		Cache: CacheConfig{
			Size: 4096,
		},

		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Path returns the conventional config location for a workspace.
func Path(workspace string) string {
	return filepath.Join(workspace, ".cellscript", "config.yaml")
}

// Load loads configuration from a YAML file.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		// Defaults if config file doesn't exist
	} else if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.applyEnvOverrides()

	return cfg, nil
}

// Save saves configuration to a YAML file.
func (c *Config) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// applyEnvOverrides applies environment variable overrides.
func (c *Config) applyEnvOverrides() {
	if path := os.Getenv("CELLSCRIPT_DB"); path != "" {
		c.Store.DatabasePath = path
	}
	if driver := os.Getenv("CELLSCRIPT_DRIVER"); driver != "" {
		c.Store.Driver = driver
	}
	if dir := os.Getenv("CELLSCRIPT_PLOT_DIR"); dir != "" {
		c.Plot.ArtifactDir = dir
	}
	if strategy := os.Getenv("CELLSCRIPT_STRATEGY"); strategy != "" {
		c.Engine.Strategy = strategy
	}
}

// ValidDrivers lists the registered database/sql driver names.
var ValidDrivers = []string{"sqlite3", "sqlite"}

// Validate validates the configuration.
func (c *Config) Validate() error {
	switch c.Engine.Strategy {
	case StrategyConservative, StrategyReplaySuffix:
	default:
		return fmt.Errorf("invalid engine strategy: %s (valid: %s, %s)",
			c.Engine.Strategy, StrategyConservative, StrategyReplaySuffix)
	}

	validDriver := false
	for _, d := range ValidDrivers {
		if c.Store.Driver == d {
			validDriver = true
			break
		}
	}
	if !validDriver {
		return fmt.Errorf("invalid store driver: %s (valid: %v)", c.Store.Driver, ValidDrivers)
	}

	if c.Plot.Width <= 0 || c.Plot.Height <= 0 {
		return fmt.Errorf("plot dimensions must be positive (got %dx%d)", c.Plot.Width, c.Plot.Height)
	}
	if c.Cache.Size <= 0 {
		return fmt.Errorf("cache size must be positive (got %d)", c.Cache.Size)
	}
	return nil
}
