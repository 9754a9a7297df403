// Package config holds the YAML-facing run configuration: sampler tuning
// knobs plus the demo model description consumed by the CLI.
package config

import (
	"fmt"
	"os"

	"gonum.org/v1/gonum/mat"
	"gopkg.in/yaml.v3"

	"github.com/adalundhe/tempest/core/model"
	"github.com/adalundhe/tempest/core/smc"
)

type Config struct {
	Sampler SamplerConfig `yaml:"sampler"`
	Model   ModelConfig   `yaml:"model"`
}

// SamplerConfig mirrors smc.Config with YAML keys. Omitted keys keep the
// defaults from DefaultConfig, since loading overlays the file onto them.
type SamplerConfig struct {
	NParticles              int       `yaml:"n_particles"`
	NBlocks                 int       `yaml:"n_blocks"`
	TemperingTargetFraction float64   `yaml:"tempering_target_fraction"`
	ResamplingThreshold     float64   `yaml:"resampling_threshold"`
	FixedSchedule           []float64 `yaml:"fixed_schedule"`
	MixingAlpha             float64   `yaml:"mixing_alpha"`
	InitialScaleC           float64   `yaml:"initial_scale_c"`
	TargetAcceptanceRate    float64   `yaml:"target_acceptance_rate"`
	RootFinderMaxIter       int       `yaml:"root_finder_max_iter"`
	EigenFloor              float64   `yaml:"eigen_floor"`
	Workers                 int       `yaml:"workers"`
	Seed                    uint64    `yaml:"seed"`
}

// ModelConfig describes the built-in analytic Gaussian demo target: a
// likelihood with the given mean and per-dimension standard deviations
// (diagonal covariance) under independent N(0, prior_stddev^2) priors.
type ModelConfig struct {
	Mean        []float64 `yaml:"mean"`
	Stddev      []float64 `yaml:"stddev"`
	PriorStddev float64   `yaml:"prior_stddev"`
}

// DefaultConfig returns the sampler defaults plus a two-dimensional demo
// target.
func DefaultConfig() *Config {
	engine := smc.DefaultConfig()
	return &Config{
		Sampler: SamplerConfig{
			NParticles:              engine.NParticles,
			NBlocks:                 engine.NBlocks,
			TemperingTargetFraction: engine.TemperingTargetFraction,
			ResamplingThreshold:     engine.ResamplingThreshold,
			FixedSchedule:           engine.FixedSchedule,
			MixingAlpha:             engine.MixingAlpha,
			InitialScaleC:           engine.InitialScale,
			TargetAcceptanceRate:    engine.TargetAcceptRate,
			RootFinderMaxIter:       engine.RootFinderMaxIter,
			EigenFloor:              engine.EigenFloor,
			Workers:                 engine.Workers,
		},
		Model: ModelConfig{
			Mean:        []float64{1.0, -0.5},
			Stddev:      []float64{1.0, 0.5},
			PriorStddev: 5.0,
		},
	}
}

// Load reads a YAML file over the defaults. An empty path returns the
// defaults untouched.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}
	return cfg, nil
}

// Engine converts the YAML view into the engine configuration.
func (s *SamplerConfig) Engine() smc.Config {
	return smc.Config{
		NParticles:              s.NParticles,
		NBlocks:                 s.NBlocks,
		TemperingTargetFraction: s.TemperingTargetFraction,
		ResamplingThreshold:     s.ResamplingThreshold,
		FixedSchedule:           s.FixedSchedule,
		MixingAlpha:             s.MixingAlpha,
		InitialScale:            s.InitialScaleC,
		TargetAcceptRate:        s.TargetAcceptanceRate,
		RootFinderMaxIter:       s.RootFinderMaxIter,
		EigenFloor:              s.EigenFloor,
		Workers:                 s.Workers,
		Seed:                    s.Seed,
	}
}

// Build assembles the demo Gaussian target from the model section.
func (m *ModelConfig) Build() (*model.Gaussian, error) {
	if len(m.Mean) == 0 {
		return nil, fmt.Errorf("model mean must not be empty")
	}
	if len(m.Stddev) != len(m.Mean) {
		return nil, fmt.Errorf("model stddev length %d does not match mean length %d", len(m.Stddev), len(m.Mean))
	}
	sigma := mat.NewSymDense(len(m.Mean), nil)
	for i, sd := range m.Stddev {
		if sd <= 0 {
			return nil, fmt.Errorf("model stddev[%d] = %g must be positive", i, sd)
		}
		sigma.SetSym(i, i, sd*sd)
	}
	return model.NewGaussian(m.Mean, sigma, m.PriorStddev)
}
