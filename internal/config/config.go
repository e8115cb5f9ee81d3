package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"

	"github.com/user/tsunami_accuracy_go/internal/analysis"
	"github.com/user/tsunami_accuracy_go/internal/parser"
	"gopkg.in/yaml.v3"
)

// LoggingConfig configures logging.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // console, json
}

// Config holds the run settings shared by every subcommand. Grid geometry is
// not part of it; it lives in the zone descriptor named by Zones.
type Config struct {
	Zones              string        `yaml:"zones"`
	Region             string        `yaml:"region"`
	ChunkSize          int           `yaml:"chunk_size"`
	Workers            int           `yaml:"workers"`
	BasisPattern       string        `yaml:"basis_pattern"`
	StrictBasisIndices bool          `yaml:"strict_basis_indices"`
	OutputDir          string        `yaml:"output_dir"`
	Thresholds         []float64     `yaml:"thresholds"`
	Logging            LoggingConfig `yaml:"logging"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Zones:        filepath.Join("config", "zones.json"),
		Region:       parser.SubductionZone,
		ChunkSize:    analysis.DefaultChunkSize,
		Workers:      1,
		BasisPattern: parser.DefaultBasisPattern,
		OutputDir:    "output",
		Thresholds:   append([]float64(nil), analysis.DefaultThresholds...),
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

// Load loads configuration from a YAML file.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			// Return defaults if config file doesn't exist
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Save saves configuration to a YAML file.
func (c *Config) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
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

// Validate rejects settings no run could use.
func (c *Config) Validate() error {
	if c.ChunkSize <= 0 {
		return fmt.Errorf("%w: chunk_size must be positive, got %d", parser.ErrConfig, c.ChunkSize)
	}
	if c.Workers <= 0 {
		return fmt.Errorf("%w: workers must be positive, got %d", parser.ErrConfig, c.Workers)
	}
	if c.Region == "" {
		return fmt.Errorf("%w: region must be set", parser.ErrConfig)
	}
	re, err := regexp.Compile(c.BasisPattern)
	if err != nil {
		return fmt.Errorf("%w: basis_pattern: %v", parser.ErrConfig, err)
	}
	if re.NumSubexp() < 1 {
		return fmt.Errorf("%w: basis_pattern %q has no capture group", parser.ErrConfig, c.BasisPattern)
	}
	return nil
}

// BasisOptions returns the basis loader settings.
func (c *Config) BasisOptions() parser.BasisOptions {
	return parser.BasisOptions{Pattern: c.BasisPattern, Strict: c.StrictBasisIndices}
}

// AnalysisOptions returns the engine settings.
func (c *Config) AnalysisOptions() analysis.Options {
	return analysis.Options{ChunkSize: c.ChunkSize, Workers: c.Workers}
}
