package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// OutputFormat is the image format passed to the layout tool.
type OutputFormat string

const (
	FormatPNG OutputFormat = "png"
	FormatSVG OutputFormat = "svg"
	FormatPDF OutputFormat = "pdf"
)

// Config holds all configuration for pycfg
type Config struct {
	// InputPath is the Python file read when none is given on the command line
	InputPath string `yaml:"input_path" env:"PYCFG_INPUT_PATH"`

	// OutputPath is where the rendered image is written
	OutputPath string `yaml:"output_path" env:"PYCFG_OUTPUT_PATH"`

	// DotPath is the Graphviz layout executable
	DotPath string `yaml:"dot_path" env:"PYCFG_DOT_PATH"`

	// OutputFormat is the image format (png, svg or pdf)
	OutputFormat OutputFormat `yaml:"output_format" env:"PYCFG_OUTPUT_FORMAT"`

	// StrictTests rejects if/while tests that are not comparisons
	StrictTests bool `yaml:"strict_tests" env:"PYCFG_STRICT_TESTS"`

	// SurfaceLoopExits reports a trailing loop's exit node as its tail
	SurfaceLoopExits bool `yaml:"surface_loop_exits" env:"PYCFG_SURFACE_LOOP_EXITS"`

	// Snapshot cache
	CacheDir  string `yaml:"cache_dir" env:"PYCFG_CACHE_DIR"`
	CacheSize int    `yaml:"cache_size" env:"PYCFG_CACHE_SIZE"`

	// Logging
	LogLevel string `yaml:"log_level" env:"PYCFG_LOG_LEVEL"`
	LogJSON  bool   `yaml:"log_json" env:"PYCFG_LOG_JSON"`
	Verbose  bool   `yaml:"verbose" env:"PYCFG_VERBOSE"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		InputPath:        "examples/simple.py",
		OutputPath:       "graph.png",
		DotPath:          "dot",
		OutputFormat:     FormatPNG,
		StrictTests:      true,
		SurfaceLoopExits: false,
		CacheDir:         defaultCacheDir(),
		CacheSize:        256,
		LogLevel:         "info",
		LogJSON:          false,
		Verbose:          false,
	}
}

func defaultCacheDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".pycfg", "cache")
	}
	return filepath.Join(home, ".pycfg", "cache")
}

// GlobalConfigFilePath returns the global config file path (~/.pycfg/config.yaml)
func GlobalConfigFilePath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".pycfg/config.yaml"
	}
	return filepath.Join(home, ".pycfg", "config.yaml")
}

// ProjectConfigFilePath returns the project-level config file path (./.pycfg/config.yaml)
func ProjectConfigFilePath() string {
	return ".pycfg/config.yaml"
}

// Load reads configuration with the following priority (highest to lowest):
// 1. Environment variables (a ./.env file is loaded first and never
// overrides variables already set)
// 2. Project-level config (./.pycfg/config.yaml)
// 3. Global config (~/.pycfg/config.yaml)
// 4. Defaults
func Load() (*Config, error) {
	cfg := DefaultConfig()

	for _, path := range []string{GlobalConfigFilePath(), ProjectConfigFilePath()} {
		if err := mergeFile(cfg, path); err != nil {
			return nil, err
		}
	}

	_ = godotenv.Load()
	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// LoadFromFile reads configuration from a specific YAML file path
func LoadFromFile(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// mergeFile overlays the YAML file at path onto cfg. A missing file is
// skipped.
func mergeFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}

// Save writes the configuration to the specified YAML file path.
// It creates parent directories if they don't exist.
func (c *Config) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", dir, err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config to YAML: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file %s: %w", path, err)
	}

	return nil
}

// applyEnvOverrides applies environment variable overrides to the config
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("PYCFG_INPUT_PATH"); v != "" {
		cfg.InputPath = v
	}
	if v := os.Getenv("PYCFG_OUTPUT_PATH"); v != "" {
		cfg.OutputPath = v
	}
	if v := os.Getenv("PYCFG_DOT_PATH"); v != "" {
		cfg.DotPath = v
	}
	if v := os.Getenv("PYCFG_OUTPUT_FORMAT"); v != "" {
		cfg.OutputFormat = OutputFormat(strings.ToLower(v))
	}
	if v := os.Getenv("PYCFG_STRICT_TESTS"); v != "" {
		cfg.StrictTests = parseBool(v)
	}
	if v := os.Getenv("PYCFG_SURFACE_LOOP_EXITS"); v != "" {
		cfg.SurfaceLoopExits = parseBool(v)
	}
	if v := os.Getenv("PYCFG_CACHE_DIR"); v != "" {
		cfg.CacheDir = v
	}
	if v := os.Getenv("PYCFG_CACHE_SIZE"); v != "" {
		if i := parseInt(v); i > 0 {
			cfg.CacheSize = i
		}
	}
	if v := os.Getenv("PYCFG_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv("PYCFG_LOG_JSON"); v != "" {
		cfg.LogJSON = parseBool(v)
	}
	if v := os.Getenv("PYCFG_VERBOSE"); v != "" {
		cfg.Verbose = parseBool(v)
	}
}

// Validate checks that the configuration has valid required fields
func (c *Config) Validate() error {
	switch c.OutputFormat {
	case FormatPNG, FormatSVG, FormatPDF:
	default:
		return fmt.Errorf("invalid output_format: %s (must be 'png', 'svg' or 'pdf')", c.OutputFormat)
	}

	if c.DotPath == "" {
		return fmt.Errorf("dot_path is required")
	}
	if c.OutputPath == "" {
		return fmt.Errorf("output_path is required")
	}
	if c.CacheSize <= 0 {
		return fmt.Errorf("cache_size must be positive")
	}

	switch strings.ToLower(c.LogLevel) {
	case "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("invalid log_level: %s", c.LogLevel)
	}

	return nil
}

// CacheFile returns the path of the persisted snapshot cache.
func (c *Config) CacheFile() string {
	return filepath.Join(c.CacheDir, "snapshots.msgpack")
}

func parseBool(s string) bool {
	s = strings.ToLower(s)
	return s == "true" || s == "1" || s == "yes"
}

// parseInt attempts to parse a string as int
func parseInt(s string) int {
	var i int
	if _, err := fmt.Sscanf(s, "%d", &i); err != nil {
		return 0
	}
	return i
}
