// Package model provides target-distribution implementations for the
// sampler in core/smc. The engine only sees the smc.Model interface.
package model

import (
	"errors"
	"fmt"
	"math/rand/v2"
	"sort"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/distmv"
	"gonum.org/v1/gonum/stat/distuv"
)

var (
	ErrNotPositiveDefinite = errors.New("likelihood covariance is not positive definite")
	ErrBadPrior            = errors.New("prior standard deviation must be positive")
	ErrIndexOutOfRange     = errors.New("parameter index out of range")
)

// Gaussian is an analytically tractable target: the likelihood is a
// multivariate normal density in the parameter vector itself,
// N(theta; mean, sigma), and the prior puts independent N(0, priorStd^2)
// densities on the free parameters. The posterior is Gaussian in closed
// form, which makes this the reference model for end-to-end checks and the
// CLI demo.
type Gaussian struct {
	mean     []float64
	lik      *distmv.Normal
	priorStd float64
	free     []int
	fixed    map[int]float64
}

// NewGaussian builds the model. sigma must be positive definite and
// priorStd positive. All parameters start free; use Fix to pin entries.
func NewGaussian(mean []float64, sigma *mat.SymDense, priorStd float64) (*Gaussian, error) {
	if priorStd <= 0 {
		return nil, ErrBadPrior
	}
	if sigma.SymmetricDim() != len(mean) {
		return nil, fmt.Errorf("mean length %d vs covariance dim %d", len(mean), sigma.SymmetricDim())
	}
	lik, ok := distmv.NewNormal(mean, sigma, nil)
	if !ok {
		return nil, ErrNotPositiveDefinite
	}
	free := make([]int, len(mean))
	for i := range free {
		free[i] = i
	}
	return &Gaussian{
		mean:     append([]float64(nil), mean...),
		lik:      lik,
		priorStd: priorStd,
		free:     free,
		fixed:    make(map[int]float64),
	}, nil
}

// Fix pins parameter index at value, removing it from the free set. Must be
// called before sampling begins.
func (g *Gaussian) Fix(index int, value float64) error {
	if index < 0 || index >= len(g.mean) {
		return ErrIndexOutOfRange
	}
	g.fixed[index] = value
	g.free = g.free[:0]
	for i := range g.mean {
		if _, ok := g.fixed[i]; !ok {
			g.free = append(g.free, i)
		}
	}
	sort.Ints(g.free)
	return nil
}

// NumParams returns the full parameter count, fixed entries included.
func (g *Gaussian) NumParams() int { return len(g.mean) }

// FreeIndices returns the free-parameter positions in canonical order.
func (g *Gaussian) FreeIndices() []int { return g.free }

// LogLikelihood evaluates log N(theta; mean, sigma).
func (g *Gaussian) LogLikelihood(theta []float64) float64 {
	return g.lik.LogProb(theta)
}

// LogPrior sums the independent normal log densities over free entries.
// Fixed entries carry no prior mass of their own.
func (g *Gaussian) LogPrior(theta []float64) float64 {
	prior := distuv.Normal{Mu: 0, Sigma: g.priorStd}
	var s float64
	for _, i := range g.free {
		s += prior.LogProb(theta[i])
	}
	return s
}

// PriorSample draws free entries from N(0, priorStd^2) and sets fixed
// entries to their pinned values.
func (g *Gaussian) PriorSample(rng *rand.Rand) []float64 {
	prior := distuv.Normal{Mu: 0, Sigma: g.priorStd, Src: rng}
	theta := make([]float64, len(g.mean))
	for i := range theta {
		if v, ok := g.fixed[i]; ok {
			theta[i] = v
		} else {
			theta[i] = prior.Rand()
		}
	}
	return theta
}

// PosteriorMoments returns the closed-form posterior mean and covariance.
// Only valid while every parameter is free: posterior precision is
// sigma^-1 + I/priorStd^2 by conjugacy.
func (g *Gaussian) PosteriorMoments() ([]float64, *mat.SymDense, error) {
	if len(g.fixed) > 0 {
		return nil, nil, errors.New("closed-form posterior requires all parameters free")
	}
	d := len(g.mean)

	var sigmaCov mat.SymDense
	g.lik.CovarianceMatrix(&sigmaCov)
	var sigmaInv mat.Dense
	if err := sigmaInv.Inverse(&sigmaCov); err != nil {
		return nil, nil, err
	}

	prec := mat.NewDense(d, d, nil)
	prec.CloneFrom(&sigmaInv)
	tau2 := g.priorStd * g.priorStd
	for i := 0; i < d; i++ {
		prec.Set(i, i, prec.At(i, i)+1/tau2)
	}

	var cov mat.Dense
	if err := cov.Inverse(prec); err != nil {
		return nil, nil, err
	}

	// mean = cov * sigma^-1 * likelihood mean
	mu := mat.NewVecDense(d, nil)
	tmp := mat.NewVecDense(d, nil)
	tmp.MulVec(&sigmaInv, mat.NewVecDense(d, append([]float64(nil), g.mean...)))
	mu.MulVec(&cov, tmp)

	out := mat.NewSymDense(d, nil)
	for i := 0; i < d; i++ {
		for j := i; j < d; j++ {
			out.SetSym(i, j, (cov.At(i, j)+cov.At(j, i))/2)
		}
	}
	return mu.RawVector().Data, out, nil
}
