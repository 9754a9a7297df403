package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	require.Equal(t, 1000, cfg.Sampler.NParticles)
	require.Equal(t, 0.95, cfg.Sampler.TemperingTargetFraction)
	require.Equal(t, 0.5, cfg.Sampler.ResamplingThreshold)
	require.Equal(t, 0.9, cfg.Sampler.MixingAlpha)
	require.NotEmpty(t, cfg.Sampler.FixedSchedule)
	require.Equal(t, 1.0, cfg.Sampler.FixedSchedule[len(cfg.Sampler.FixedSchedule)-1])
	require.Len(t, cfg.Model.Mean, 2)
}

func TestLoad_OverlaysDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "tempest.yaml")
	data := `
sampler:
  n_particles: 250
  seed: 7
model:
  mean: [2.0]
  stddev: [0.5]
  prior_stddev: 3.0
`
	require.NoError(t, os.WriteFile(path, []byte(data), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	require.Equal(t, 250, cfg.Sampler.NParticles)
	require.Equal(t, uint64(7), cfg.Sampler.Seed)
	// Untouched keys keep their defaults.
	require.Equal(t, 0.95, cfg.Sampler.TemperingTargetFraction)
	require.Equal(t, 0.9, cfg.Sampler.MixingAlpha)
	require.Equal(t, []float64{2.0}, cfg.Model.Mean)
}

func TestLoad_EmptyPathReturnsDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	require.Equal(t, DefaultConfig().Sampler.NParticles, cfg.Sampler.NParticles)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}

func TestEngineMapping(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Sampler.NParticles = 123
	cfg.Sampler.InitialScaleC = 0.4
	cfg.Sampler.TargetAcceptanceRate = 0.3

	engine := cfg.Sampler.Engine()
	require.Equal(t, 123, engine.NParticles)
	require.Equal(t, 0.4, engine.InitialScale)
	require.Equal(t, 0.3, engine.TargetAcceptRate)
	require.Equal(t, cfg.Sampler.FixedSchedule, engine.FixedSchedule)
}

func TestModelBuild(t *testing.T) {
	cfg := DefaultConfig()
	g, err := cfg.Model.Build()
	require.NoError(t, err)
	require.Equal(t, 2, g.NumParams())

	bad := ModelConfig{Mean: []float64{1, 2}, Stddev: []float64{1}, PriorStddev: 1}
	_, err = bad.Build()
	require.Error(t, err)

	bad = ModelConfig{Mean: []float64{1}, Stddev: []float64{-1}, PriorStddev: 1}
	_, err = bad.Build()
	require.Error(t, err)

	bad = ModelConfig{Mean: nil, Stddev: nil, PriorStddev: 1}
	_, err = bad.Build()
	require.Error(t, err)
}
