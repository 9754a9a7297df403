package smc

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"math/rand/v2"
	"runtime"
	"time"

	"github.com/google/uuid"
	"github.com/sourcegraph/conc/pool"
	"github.com/viterin/vek"
)

// Config holds every tuning knob of the sampler. Zero values are replaced
// by the DefaultConfig derivations inside New.
type Config struct {
	// NParticles is the population size, constant for the sampler's
	// lifetime.
	NParticles int

	// NBlocks is the number of randomized parameter blocks per mutation
	// sweep. Must not exceed the model's free-parameter count.
	NBlocks int

	// TemperingTargetFraction sets the per-stage ESS decay target: each
	// stage aims for this fraction of the previous stage's ESS (or of N
	// right after a resample).
	TemperingTargetFraction float64

	// ResamplingThreshold triggers resampling when ESS < threshold * N.
	ResamplingThreshold float64

	// FixedSchedule is the strictly increasing candidate schedule ending
	// at 1, used as an upper bound on the adaptive exponents.
	FixedSchedule []float64

	// MixingAlpha is the weight of the full-covariance local component in
	// the three-part mixture proposal. Must lie in [0, 1].
	MixingAlpha float64

	// InitialScale is the starting proposal scale factor c.
	InitialScale float64

	// TargetAcceptRate is the block acceptance rate the scale adaptation
	// steers toward.
	TargetAcceptRate float64

	// RootFinderMaxIter caps the bisection iterations of the schedule
	// solver.
	RootFinderMaxIter int

	// EigenFloor is the smallest eigenvalue kept by covariance
	// regularization. Defaults to DefaultEigenFloor.
	EigenFloor float64

	// Workers bounds the mutation worker pool. Defaults to NumCPU.
	Workers int

	// Seed makes runs reproducible. 0 derives a seed from the clock.
	Seed uint64
}

// DefaultConfig returns the sampler defaults: a quadratic 100-stage fallback
// schedule, 95% ESS decay target, resampling at half the population, and a
// mixture dominated by the full-covariance local component.
func DefaultConfig() Config {
	return Config{
		NParticles:              1000,
		NBlocks:                 1,
		TemperingTargetFraction: 0.95,
		ResamplingThreshold:     0.5,
		FixedSchedule:           QuadraticSchedule(100),
		MixingAlpha:             0.9,
		InitialScale:            0.5,
		TargetAcceptRate:        0.25,
		RootFinderMaxIter:       100,
		EigenFloor:              DefaultEigenFloor,
		Workers:                 runtime.NumCPU(),
	}
}

// QuadraticSchedule returns the candidate schedule phi_j = (j/n)^2 for
// j = 1..n. Quadratic spacing concentrates stages near the prior, where the
// bridge distributions change fastest.
func QuadraticSchedule(n int) []float64 {
	out := make([]float64, n)
	for j := 1; j <= n; j++ {
		r := float64(j) / float64(n)
		out[j-1] = r * r
	}
	return out
}

// Validate checks the configuration against the model it will sample.
func (c *Config) Validate(model Model) error {
	if c.NParticles <= 0 {
		return ErrNoParticles
	}
	if c.MixingAlpha < 0 || c.MixingAlpha > 1 {
		return fmt.Errorf("mixing_alpha %g: %w", c.MixingAlpha, ErrInvalidMixing)
	}
	nFree := len(model.FreeIndices())
	if c.NBlocks < 1 || c.NBlocks > nFree {
		return fmt.Errorf("n_blocks %d with %d free parameters: %w", c.NBlocks, nFree, ErrTooManyBlocks)
	}
	if len(c.FixedSchedule) == 0 || c.FixedSchedule[len(c.FixedSchedule)-1] != 1 {
		return ErrBadSchedule
	}
	prev := 0.0
	for _, phi := range c.FixedSchedule {
		if phi <= prev || phi > 1 {
			return fmt.Errorf("candidate %g after %g: %w", phi, prev, ErrBadSchedule)
		}
		prev = phi
	}
	if c.TemperingTargetFraction <= 0 || c.TemperingTargetFraction > 1 {
		return fmt.Errorf("tempering_target_fraction %g out of (0, 1]", c.TemperingTargetFraction)
	}
	if c.ResamplingThreshold < 0 || c.ResamplingThreshold > 1 {
		return fmt.Errorf("resampling_threshold %g out of [0, 1]", c.ResamplingThreshold)
	}
	if c.InitialScale <= 0 {
		return fmt.Errorf("initial_scale_c %g must be positive", c.InitialScale)
	}
	return nil
}

// Diagnostics summarizes a completed run.
type Diagnostics struct {
	RunID       string
	Stages      int
	Schedule    []float64
	ESS         []float64
	AcceptRates []float64
	Resampled   []bool
	LogMDD      float64
	FinalScale  float64
	Elapsed     time.Duration
}

// Sampler drives the tempered SMC stage loop: correction, selection,
// mutation. The stage loop itself is single-threaded; only particle
// initialization and mutation fan out to workers.
type Sampler struct {
	cfg    Config
	model  Model
	cloud  *Cloud
	solver *scheduleSolver
	logger *slog.Logger

	rng   *rand.Rand
	seed  uint64
	scale float64
	runID string
}

// New validates the configuration and prepares a sampler. A nil logger
// falls back to slog.Default.
func New(model Model, cfg Config, logger *slog.Logger) (*Sampler, error) {
	if cfg.RootFinderMaxIter <= 0 {
		cfg.RootFinderMaxIter = 100
	}
	if cfg.EigenFloor <= 0 {
		cfg.EigenFloor = DefaultEigenFloor
	}
	if cfg.Workers <= 0 {
		cfg.Workers = runtime.NumCPU()
	}
	if err := cfg.Validate(model); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}
	seed := cfg.Seed
	if seed == 0 {
		seed = uint64(time.Now().UnixNano())
	}
	return &Sampler{
		cfg:    cfg,
		model:  model,
		solver: newScheduleSolver(cfg.FixedSchedule, cfg.TemperingTargetFraction, cfg.RootFinderMaxIter),
		logger: logger,
		rng:    rand.New(rand.NewPCG(seed, 0xda3e39cb94b95bdb)),
		seed:   seed,
		scale:  cfg.InitialScale,
		runID:  uuid.New().String(),
	}, nil
}

// initialize draws the starting population from the prior and evaluates
// every particle, in parallel.
func (s *Sampler) initialize(ctx context.Context) error {
	s.cloud = NewCloud(s.cfg.NParticles)

	workers := pool.New().WithMaxGoroutines(s.cfg.Workers)
	for i := range s.cloud.Particles {
		workers.Go(func() {
			select {
			case <-ctx.Done():
				return
			default:
			}
			rng := rand.New(rand.NewPCG(s.seed, particleStream(0, i)))
			theta := s.model.PriorSample(rng)
			p := &s.cloud.Particles[i]
			p.Theta = theta
			p.LogLik = s.model.LogLikelihood(theta)
			p.LogPrior = s.model.LogPrior(theta)
		})
	}
	workers.Wait()
	return ctx.Err()
}

// reweight applies the incremental tempered-likelihood weights for the move
// from phiPrev to phi, stores the normalized weights back into the cloud,
// and returns the post-correction ESS together with the log marginal data
// density increment (the log weighted mean of the incremental weights).
func (s *Sampler) reweight(phi, phiPrev float64, loglh []float64) (ess, logMDDIncr float64, err error) {
	logIncr := incrementalLogWeights(nil, loglh, nil, phi, phiPrev)

	prev := s.cloud.NormalizedWeights()
	maxLog := math.Inf(-1)
	for _, v := range logIncr {
		if v > maxLog {
			maxLog = v
		}
	}
	var mean float64
	for i, w := range prev {
		mean += w * math.Exp(logIncr[i]-maxLog)
	}
	if mean <= 0 || math.IsNaN(mean) {
		return 0, 0, ErrDegenerateWeights
	}
	logMDDIncr = maxLog + math.Log(mean)

	w := s.cloud.Weights(nil)
	if err := normalizedReweight(w, logIncr); err != nil {
		return 0, 0, err
	}
	for i := range s.cloud.Particles {
		s.cloud.Particles[i].Weight = w[i]
	}
	return 1 / vek.Dot(w, w), logMDDIncr, nil
}

// Run executes the full stage loop until the tempering exponent reaches 1
// and the terminal mutation sweep completes. The returned cloud is the
// posterior particle approximation.
func (s *Sampler) Run(ctx context.Context) (*Cloud, Diagnostics, error) {
	start := time.Now()
	s.logger.Info("starting run",
		"run_id", s.runID,
		"particles", s.cfg.NParticles,
		"blocks", s.cfg.NBlocks,
		"seed", s.seed)

	if err := s.initialize(ctx); err != nil {
		return nil, Diagnostics{}, err
	}

	phiPrev := 0.0
	prevESS := float64(s.cfg.NParticles)
	resampledLast := false
	stage := 0

	for phiPrev < 1 {
		stage++
		if err := ctx.Err(); err != nil {
			return nil, Diagnostics{}, err
		}

		loglh := s.cloud.LogLiks(nil)
		weights := s.cloud.Weights(nil)

		// Correction: the exponent and the reweighted population are
		// chosen jointly, since the solver targets the post-correction
		// ESS.
		phi, err := s.solver.next(loglh, weights, phiPrev, prevESS, resampledLast)
		if err != nil {
			return nil, Diagnostics{}, fmt.Errorf("stage %d: %w", stage, err)
		}
		ess, logMDDIncr, err := s.reweight(phi, phiPrev, loglh)
		if err != nil {
			return nil, Diagnostics{}, fmt.Errorf("stage %d: %w", stage, err)
		}
		s.cloud.Schedule = append(s.cloud.Schedule, phi)
		s.cloud.ESS = append(s.cloud.ESS, ess)
		s.cloud.LogMDD = append(s.cloud.LogMDD, logMDDIncr)

		// Selection.
		resampledLast = ess < s.cfg.ResamplingThreshold*float64(s.cfg.NParticles)
		if resampledLast {
			s.cloud.systematicResample(s.rng)
		}
		s.cloud.Resampled = append(s.cloud.Resampled, resampledLast)

		// Mutation.
		rate, err := s.mutate(ctx, phi, stage)
		if err != nil {
			return nil, Diagnostics{}, fmt.Errorf("stage %d: %w", stage, err)
		}
		s.cloud.AcceptRates = append(s.cloud.AcceptRates, rate)
		s.scale = adaptScale(s.scale, rate, s.cfg.TargetAcceptRate)

		s.logger.Info("stage complete",
			"stage", stage,
			"phi", phi,
			"ess", ess,
			"accept_rate", rate,
			"scale", s.scale,
			"resampled", resampledLast)

		phiPrev = phi
		prevESS = ess
	}

	diag := Diagnostics{
		RunID:       s.runID,
		Stages:      stage,
		Schedule:    append([]float64(nil), s.cloud.Schedule...),
		ESS:         append([]float64(nil), s.cloud.ESS...),
		AcceptRates: append([]float64(nil), s.cloud.AcceptRates...),
		Resampled:   append([]bool(nil), s.cloud.Resampled...),
		LogMDD:      s.cloud.LogMarginalDataDensity(),
		FinalScale:  s.scale,
		Elapsed:     time.Since(start),
	}
	s.logger.Info("run finalized",
		"run_id", s.runID,
		"stages", stage,
		"log_mdd", diag.LogMDD,
		"elapsed", diag.Elapsed)
	return s.cloud, diag, nil
}
