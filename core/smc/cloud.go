// Package smc implements an adaptive tempered Sequential Monte Carlo
// sampler: a weighted particle cloud is propagated through a sequence of
// bridge distributions from the prior (phi=0) to the posterior (phi=1),
// with the tempering schedule chosen stage by stage from an effective
// sample size target, ESS-triggered systematic resampling, and a blocked
// Metropolis-Hastings mutation kernel with a three-component mixture
// proposal.
package smc

import (
	"math"

	"github.com/viterin/vek"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// Particle is a single weighted parameter draw. Theta always holds the full
// parameter vector in canonical order, fixed entries included.
type Particle struct {
	Theta    []float64
	LogLik   float64
	LogPrior float64
	Weight   float64
}

// Clone returns a deep copy of the particle.
func (p *Particle) Clone() Particle {
	theta := make([]float64, len(p.Theta))
	copy(theta, p.Theta)
	return Particle{
		Theta:    theta,
		LogLik:   p.LogLik,
		LogPrior: p.LogPrior,
		Weight:   p.Weight,
	}
}

// Cloud is the particle population together with its per-stage scalar
// history. The history slices are parallel: entry k describes stage k+1
// (stage 0 is the prior draw at phi=0). Only the driver appends to them.
type Cloud struct {
	Particles []Particle

	// Schedule holds the realized tempering exponents, starting at 0 and
	// ending at 1 once the run has finalized.
	Schedule    []float64
	ESS         []float64
	LogMDD      []float64
	AcceptRates []float64
	Resampled   []bool
}

// NewCloud allocates a cloud of n particles with uniform weights and no
// history beyond the initial phi=0 entry. Particle parameter vectors are
// left nil; the driver fills them from the prior.
func NewCloud(n int) *Cloud {
	c := &Cloud{
		Particles: make([]Particle, n),
		Schedule:  []float64{0},
	}
	w := 1.0 / float64(n)
	for i := range c.Particles {
		c.Particles[i].Weight = w
	}
	return c
}

// Len returns the particle count.
func (c *Cloud) Len() int { return len(c.Particles) }

// LogLiks copies the per-particle log-likelihoods into dst, allocating when
// dst is too short.
func (c *Cloud) LogLiks(dst []float64) []float64 {
	if cap(dst) < len(c.Particles) {
		dst = make([]float64, len(c.Particles))
	}
	dst = dst[:len(c.Particles)]
	for i := range c.Particles {
		dst[i] = c.Particles[i].LogLik
	}
	return dst
}

// Weights copies the per-particle importance weights into dst.
func (c *Cloud) Weights(dst []float64) []float64 {
	if cap(dst) < len(c.Particles) {
		dst = make([]float64, len(c.Particles))
	}
	dst = dst[:len(c.Particles)]
	for i := range c.Particles {
		dst[i] = c.Particles[i].Weight
	}
	return dst
}

// NormalizedWeights returns the weights scaled to sum to one. The cloud's
// stored weights are left untouched; normalization is lazy.
func (c *Cloud) NormalizedWeights() []float64 {
	w := c.Weights(nil)
	total := vek.Sum(w)
	if total > 0 {
		vek.MulNumber_Inplace(w, 1/total)
	}
	return w
}

// setUniformWeights resets every particle weight to 1/N.
func (c *Cloud) setUniformWeights() {
	w := 1.0 / float64(len(c.Particles))
	for i := range c.Particles {
		c.Particles[i].Weight = w
	}
}

// subMatrix assembles the N x len(inds) matrix of particle values at the
// given full-vector indices.
func (c *Cloud) subMatrix(inds []int) *mat.Dense {
	m := mat.NewDense(len(c.Particles), len(inds), nil)
	for i := range c.Particles {
		for j, idx := range inds {
			m.Set(i, j, c.Particles[i].Theta[idx])
		}
	}
	return m
}

// WeightedMean returns the weighted mean of the particle values at the given
// full-vector indices.
func (c *Cloud) WeightedMean(inds []int) []float64 {
	w := c.NormalizedWeights()
	mean := make([]float64, len(inds))
	for j, idx := range inds {
		var s float64
		for i := range c.Particles {
			s += w[i] * c.Particles[i].Theta[idx]
		}
		mean[j] = s
	}
	return mean
}

// WeightedCovariance returns the weighted sample covariance of the particle
// values at the given full-vector indices. Weights are rescaled to sum to N
// so the estimator's sum(w)-1 denominator reduces to the usual N-1 in the
// uniform case.
func (c *Cloud) WeightedCovariance(inds []int) *mat.SymDense {
	w := c.NormalizedWeights()
	vek.MulNumber_Inplace(w, float64(len(c.Particles)))
	cov := mat.NewSymDense(len(inds), nil)
	stat.CovarianceMatrix(cov, c.subMatrix(inds), w)
	return cov
}

// LogMarginalDataDensity returns the cumulative log marginal data density
// accumulated so far across stages.
func (c *Cloud) LogMarginalDataDensity() float64 {
	var s float64
	for _, v := range c.LogMDD {
		s += v
	}
	return s
}

// CurrentESS returns the effective sample size implied by the cloud's
// present weights, without any retempering.
func (c *Cloud) CurrentESS() float64 {
	p := c.NormalizedWeights()
	d := vek.Dot(p, p)
	if d == 0 || math.IsNaN(d) {
		return 0
	}
	return 1 / d
}
