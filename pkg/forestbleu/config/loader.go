package config

import (
	"context"
	"fmt"

	"github.com/cognicore/forestbleu/pkg/forestbleu/bleu"
	"github.com/cognicore/forestbleu/pkg/forestbleu/hypergraph"
	"github.com/cognicore/forestbleu/pkg/forestbleu/internalerr"
	"github.com/cognicore/forestbleu/pkg/forestbleu/metric"
	"github.com/cognicore/forestbleu/pkg/forestbleu/reference"
	"github.com/cognicore/forestbleu/pkg/forestbleu/search"
	"github.com/cognicore/forestbleu/pkg/forestbleu/vocab"
)

// Loader loads the configuration file and constructs components
type Loader struct {
	ConfigPath string
	// Override is applied to the loaded config before validation of the
	// final values, e.g. for command line flags.
	Override func(*Config)
}

// Components holds all loaded configuration components
type Components struct {
	Config     *Config
	Vocab      *vocab.Vocab
	References *reference.Set
	Metric     metric.Scorer
	Weights    hypergraph.FeatureVector
}

// Load reads the config and references. The returned Vocab is still in its
// insert phase so that forests can be interned; call Freeze before scoring.
func (l *Loader) Load(ctx context.Context) (*Components, error) {
	cfg := Default()
	if l.ConfigPath != "" {
		loaded, err := Load(l.ConfigPath)
		if err != nil {
			return nil, fmt.Errorf("load config: %w", err)
		}
		cfg = loaded
	}
	if l.Override != nil {
		l.Override(cfg)
		if err := cfg.Validate(); err != nil {
			return nil, fmt.Errorf("load config: %w", err)
		}
	}
	if len(cfg.References) == 0 {
		return nil, fmt.Errorf("load config: no reference files: %w", internalerr.ErrInvalidConfig)
	}

	comp := &Components{
		Config:  cfg,
		Vocab:   vocab.New(cfg.Boundary...),
		Weights: hypergraph.FeatureVector(cfg.Weights).Clone(),
	}

	comp.References = reference.New(cfg.Order)
	if err := comp.References.Load(ctx, cfg.References, comp.Vocab); err != nil {
		return nil, fmt.Errorf("load references: %w", err)
	}

	m, err := metric.New(cfg.Metric, cfg.Order)
	if err != nil {
		return nil, fmt.Errorf("load metric: %w", err)
	}
	comp.Metric = m

	return comp, nil
}

// SearchOptions converts the config into search options
func (c *Config) SearchOptions() search.Options {
	opts := search.Options{
		BleuWeight: c.BleuWeight,
		Order:      c.Order,
	}
	if c.Background != nil {
		opts.Background = bleu.Stats(c.Background).Clone()
	}
	return opts
}
