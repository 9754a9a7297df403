package smc

import (
	"context"
	"math"
	"math/rand/v2"

	"github.com/sourcegraph/conc/pool"
)

// sweepContext holds the stage-immutable inputs to one blocked MH sweep:
// the tempering exponent, the randomized block partition, and one mixture
// proposal per block. Workers only read it.
type sweepContext struct {
	phi       float64
	allBlocks [][]int
	proposals []*mixtureProposal
}

// buildSweep estimates the weighted mean and covariance of the free
// parameters from the pre-mutation cloud, regularizes the covariance, draws
// a fresh block partition, and builds one mixture proposal per block.
func (s *Sampler) buildSweep(phi float64) (*sweepContext, error) {
	free := s.model.FreeIndices()
	mean := s.cloud.WeightedMean(free)
	sigma := regularizeCovariance(s.cloud.WeightedCovariance(free), s.cfg.EigenFloor)

	freeBlocks := generateFreeBlocks(s.rng, len(free), s.cfg.NBlocks)

	proposals := make([]*mixtureProposal, len(freeBlocks))
	for b, block := range freeBlocks {
		blockMean := make([]float64, len(block))
		for j, idx := range block {
			blockMean[j] = mean[idx]
		}
		p, err := newMixtureProposal(s.cfg.MixingAlpha, s.scale, blockSubmatrix(sigma, block), blockMean)
		if err != nil {
			return nil, err
		}
		proposals[b] = p
	}

	return &sweepContext{
		phi:       phi,
		allBlocks: remapBlocks(freeBlocks, free),
		proposals: proposals,
	}, nil
}

// mutateParticle runs one blocked MH sweep over a single particle. Blocks
// are visited sequentially and later blocks condition on this sweep's
// already-accepted updates to earlier blocks, giving a true blocked-Gibbs
// style pass rather than a chunked joint update. Returns the number of
// accepted block moves.
func (s *Sampler) mutateParticle(p *Particle, sweep *sweepContext, rng *rand.Rand) int {
	cand := make([]float64, len(p.Theta))
	accepted := 0

	for b, inds := range sweep.allBlocks {
		old := make([]float64, len(inds))
		for j, idx := range inds {
			old[j] = p.Theta[idx]
		}

		proposed, logFwd, logBwd := sweep.proposals[b].Draw(rng, old)

		copy(cand, p.Theta)
		for j, idx := range inds {
			cand[idx] = proposed[j]
		}

		logPrior := s.model.LogPrior(cand)
		if math.IsInf(logPrior, -1) {
			continue
		}
		logLik := s.model.LogLikelihood(cand)

		logRatio := sweep.phi*(logLik-p.LogLik) + (logPrior - p.LogPrior) + (logBwd - logFwd)
		if logRatio >= 0 || math.Log(rng.Float64()) < logRatio {
			copy(p.Theta, cand)
			p.LogLik = logLik
			p.LogPrior = logPrior
			accepted++
		}
	}
	return accepted
}

// mutate runs the blocked MH sweep over every particle in parallel and
// returns the observed block acceptance rate. Each particle gets its own
// deterministic PCG stream so runs are reproducible regardless of worker
// scheduling.
func (s *Sampler) mutate(ctx context.Context, phi float64, stage int) (float64, error) {
	sweep, err := s.buildSweep(phi)
	if err != nil {
		return 0, err
	}

	n := s.cloud.Len()
	accepted := make([]int, n)

	workers := pool.New().WithMaxGoroutines(s.cfg.Workers)
	for i := 0; i < n; i++ {
		workers.Go(func() {
			select {
			case <-ctx.Done():
				return
			default:
			}
			rng := rand.New(rand.NewPCG(s.seed, particleStream(stage, i)))
			accepted[i] = s.mutateParticle(&s.cloud.Particles[i], sweep, rng)
		})
	}
	workers.Wait()

	if err := ctx.Err(); err != nil {
		return 0, err
	}

	total := 0
	for _, a := range accepted {
		total += a
	}
	return float64(total) / float64(n*len(sweep.allBlocks)), nil
}

// particleStream derives a unique PCG stream identifier from the stage and
// particle indices.
func particleStream(stage, particle int) uint64 {
	return uint64(stage)<<32 | uint64(particle)<<1 | 1
}

// adaptScale nudges the proposal scale toward the target acceptance rate
// with a logistic response: roughly +5% when acceptance is far above target
// and -5% when far below.
func adaptScale(scale, rate, target float64) float64 {
	e := math.Exp(16 * (rate - target))
	return scale * (0.95 + 0.10*e/(1+e))
}
