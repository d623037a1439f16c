package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cognicore/forestbleu/pkg/forestbleu/bleu"
	"github.com/cognicore/forestbleu/pkg/forestbleu/internalerr"
	"github.com/cognicore/forestbleu/pkg/forestbleu/vocab"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadConfig(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "forestbleu.yaml", `
order: 3
bleu_weight: 2.5
references:
  - refs/ref.0
  - /abs/ref.1
weights:
  lm: 0.5
  tm: -1
workers: 4
store: out/results.db
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 3, cfg.Order)
	assert.Equal(t, 2.5, cfg.BleuWeight)
	assert.Equal(t, []string{filepath.Join(dir, "refs/ref.0"), "/abs/ref.1"}, cfg.References)
	assert.Equal(t, map[string]float64{"lm": 0.5, "tm": -1}, cfg.Weights)
	assert.Equal(t, 4, cfg.Workers)
	assert.Equal(t, filepath.Join(dir, "out/results.db"), cfg.Store)
	assert.Equal(t, vocab.DefaultBoundary, cfg.Boundary, "defaults survive")
	assert.Equal(t, "BLEU", cfg.Metric)
}

func TestLoadConfigMemoryStore(t *testing.T) {
	path := writeFile(t, t.TempDir(), "c.yaml", "store: \":memory:\"\n")
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, ":memory:", cfg.Store)
}

func TestLoadConfigErrors(t *testing.T) {
	dir := t.TempDir()

	_, err := Load(filepath.Join(dir, "missing.yaml"))
	assert.ErrorIs(t, err, os.ErrNotExist)

	_, err = Load(writeFile(t, dir, "bad.yaml", "order: [1,2\n"))
	assert.ErrorIs(t, err, internalerr.ErrInvalidConfig)

	_, err = Load(writeFile(t, dir, "order.yaml", "order: 9\n"))
	assert.ErrorIs(t, err, internalerr.ErrInvalidConfig)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		ok     bool
	}{
		{"defaults", func(*Config) {}, true},
		{"background size", func(c *Config) { c.Background = []float64{1, 1, 1} }, false},
		{"background ok", func(c *Config) { c.Background = make([]float64, 9) }, true},
		{"workers", func(c *Config) { c.Workers = 0 }, false},
		{"boundary", func(c *Config) { c.Boundary = nil }, false},
		{"order", func(c *Config) { c.Order = 0 }, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.ok {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, internalerr.ErrInvalidConfig)
		})
	}
}

func TestSearchOptions(t *testing.T) {
	cfg := Default()
	cfg.BleuWeight = 3
	cfg.Order = 2
	opts := cfg.SearchOptions()
	assert.Equal(t, 3.0, opts.BleuWeight)
	assert.Equal(t, 2, opts.Order)
	assert.Nil(t, opts.Background)

	cfg.Background = []float64{1, 2, 3, 4, 5}
	opts = cfg.SearchOptions()
	assert.Equal(t, bleu.Stats{1, 2, 3, 4, 5}, opts.Background)
	cfg.Background[0] = 9
	assert.Equal(t, 1.0, opts.Background[0])
}

func TestLoaderBuildsComponents(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "ref.0", "the cat sat\n")
	writeFile(t, dir, "ref.1", "a cat sat down\n")
	path := writeFile(t, dir, "forestbleu.yaml", `
references: [ref.0, ref.1]
weights: {lm: 1}
`)

	l := &Loader{ConfigPath: path, Override: func(c *Config) { c.BleuWeight = 0 }}
	comp, err := l.Load(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 0.0, comp.Config.BleuWeight)
	assert.Equal(t, 1, comp.References.Len())
	n, ok := comp.References.Length(0)
	require.True(t, ok)
	assert.Equal(t, 3, n)
	assert.Equal(t, "BLEU", comp.Metric.Name())
	assert.Equal(t, 1.0, comp.Weights["lm"])
	assert.False(t, comp.Vocab.Frozen())
	_, ok = comp.Vocab.Find("down")
	assert.True(t, ok)
}

func TestLoaderErrors(t *testing.T) {
	_, err := (&Loader{}).Load(context.Background())
	assert.ErrorIs(t, err, internalerr.ErrInvalidConfig, "no references")

	l := &Loader{Override: func(c *Config) {
		c.References = []string{"x"}
		c.Workers = -1
	}}
	_, err = l.Load(context.Background())
	assert.ErrorIs(t, err, internalerr.ErrInvalidConfig)

	l = &Loader{Override: func(c *Config) {
		c.References = []string{filepath.Join(t.TempDir(), "missing")}
	}}
	_, err = l.Load(context.Background())
	assert.ErrorIs(t, err, internalerr.ErrLoad)

	dir := t.TempDir()
	ref := writeFile(t, dir, "ref", "a\n")
	l = &Loader{Override: func(c *Config) {
		c.References = []string{ref}
		c.Metric = "chrF"
	}}
	_, err = l.Load(context.Background())
	assert.ErrorIs(t, err, internalerr.ErrUnknownMetric)
}
