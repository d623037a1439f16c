package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/cognicore/forestbleu/pkg/forestbleu/internalerr"
	"github.com/cognicore/forestbleu/pkg/forestbleu/ngram"
	"github.com/cognicore/forestbleu/pkg/forestbleu/vocab"
)

// Config represents the rescoring configuration
type Config struct {
	Order      int                `yaml:"order"`
	BleuWeight float64            `yaml:"bleu_weight"`
	Boundary   []string           `yaml:"boundary"`
	References []string           `yaml:"references"`
	Background []float64          `yaml:"background"`
	Weights    map[string]float64 `yaml:"weights"`
	Workers    int                `yaml:"workers"`
	Store      string             `yaml:"store"`
	Metric     string             `yaml:"metric"`
}

// Default returns the configuration used when a field is left unset
func Default() *Config {
	return &Config{
		Order:      ngram.DefaultOrder,
		BleuWeight: 1.0,
		Boundary:   append([]string(nil), vocab.DefaultBoundary...),
		Weights:    map[string]float64{},
		Workers:    1,
		Metric:     "BLEU",
	}
}

// Load reads a YAML config file on top of Default. Relative reference and
// store paths are resolved against the config file's directory.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %v: %w", path, err, internalerr.ErrInvalidConfig)
	}

	dir := filepath.Dir(path)
	for i, ref := range cfg.References {
		cfg.References[i] = resolve(dir, ref)
	}
	if cfg.Store != "" && cfg.Store != ":memory:" {
		cfg.Store = resolve(dir, cfg.Store)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func resolve(dir, path string) string {
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(dir, path)
}

// Validate checks ranges and sizes
func (c *Config) Validate() error {
	if err := ngram.ValidateOrder(c.Order); err != nil {
		return fmt.Errorf("%v: %w", err, internalerr.ErrInvalidConfig)
	}
	if c.Background != nil && len(c.Background) != 2*c.Order+1 {
		return fmt.Errorf("background has %d values, want %d: %w", len(c.Background), 2*c.Order+1, internalerr.ErrInvalidConfig)
	}
	if c.Workers < 1 {
		return fmt.Errorf("workers must be at least 1, got %d: %w", c.Workers, internalerr.ErrInvalidConfig)
	}
	if len(c.Boundary) == 0 {
		return fmt.Errorf("at least one boundary token is required: %w", internalerr.ErrInvalidConfig)
	}
	return nil
}
