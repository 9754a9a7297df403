package smc

import (
	"math"
	"math/rand/v2"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/distmv"
)

// mixtureProposal is a three-component Gaussian mixture used to propose a
// joint update to one block of parameters:
//
//	alpha       N(center, c^2*Sigma)        full covariance, local move
//	(1-alpha)/2 N(center, c^2*diag(Sigma))  axis-aligned escape move
//	(1-alpha)/2 N(refMean, c^2*Sigma)       global move toward the cloud mean
//
// The mixture is rebuilt symmetrically around the proposed point to obtain
// the backward density required by the asymmetric-proposal MH correction.
// It is valid for a single mutation sweep; the reference mean and covariance
// are immutable once built.
type mixtureProposal struct {
	alpha    float64
	refMean  []float64
	cholFull mat.Cholesky
	cholDiag mat.Cholesky
}

// newMixtureProposal builds the proposal context for one block. sigma is
// the regularized block covariance, scale is the adaptive factor c, and
// refMean is the weighted mean of the block entries across the cloud.
func newMixtureProposal(alpha, scale float64, sigma *mat.SymDense, refMean []float64) (*mixtureProposal, error) {
	if alpha < 0 || alpha > 1 {
		return nil, ErrInvalidMixing
	}
	d := sigma.SymmetricDim()
	c2 := scale * scale

	scaled := mat.NewSymDense(d, nil)
	diag := mat.NewSymDense(d, nil)
	for i := 0; i < d; i++ {
		for j := i; j < d; j++ {
			scaled.SetSym(i, j, c2*sigma.At(i, j))
		}
		v := c2 * sigma.At(i, i)
		if v <= 0 {
			v = c2 * DefaultEigenFloor
		}
		diag.SetSym(i, i, v)
	}

	m := &mixtureProposal{alpha: alpha, refMean: refMean}
	if ok := m.cholFull.Factorize(scaled); !ok {
		// Regularization upstream makes this rare, but roundoff in the
		// scaled copy can still spoil the factorization.
		if ok := m.cholFull.Factorize(regularizeCovariance(scaled, 0)); !ok {
			if ok := m.cholFull.Factorize(diag); !ok {
				return nil, ErrCovariance
			}
		}
	}
	if ok := m.cholDiag.Factorize(diag); !ok {
		return nil, ErrCovariance
	}
	return m, nil
}

// Draw samples a new block value from the mixture centered at thetaOld and
// returns the forward and backward mixture log densities.
func (m *mixtureProposal) Draw(rng *rand.Rand, thetaOld []float64) (thetaNew []float64, logFwd, logBwd float64) {
	half := (1 - m.alpha) / 2

	u := rng.Float64()
	var dist *distmv.Normal
	switch {
	case u < m.alpha:
		dist = distmv.NewNormalChol(thetaOld, &m.cholFull, rng)
	case u < m.alpha+half:
		dist = distmv.NewNormalChol(thetaOld, &m.cholDiag, rng)
	default:
		dist = distmv.NewNormalChol(m.refMean, &m.cholFull, rng)
	}
	thetaNew = dist.Rand(nil)

	logFwd = m.logDensity(thetaOld, thetaNew)
	logBwd = m.logDensity(thetaNew, thetaOld)
	return thetaNew, logFwd, logBwd
}

// logDensity evaluates the log density of x under the mixture centered at
// center. Zero-weight components contribute log(0) = -Inf terms, which
// LogSumExp absorbs, so the alpha=1 and alpha=0 edge cases need no special
// handling.
func (m *mixtureProposal) logDensity(center, x []float64) float64 {
	half := (1 - m.alpha) / 2

	terms := make([]float64, 0, 3)
	if m.alpha > 0 {
		full := distmv.NewNormalChol(center, &m.cholFull, nil)
		terms = append(terms, math.Log(m.alpha)+full.LogProb(x))
	}
	if half > 0 {
		diag := distmv.NewNormalChol(center, &m.cholDiag, nil)
		ref := distmv.NewNormalChol(m.refMean, &m.cholFull, nil)
		terms = append(terms, math.Log(half)+diag.LogProb(x))
		terms = append(terms, math.Log(half)+ref.LogProb(x))
	}
	return floats.LogSumExp(terms)
}
