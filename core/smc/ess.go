package smc

import (
	"math"

	"github.com/viterin/vek"
)

// incrementalLogWeights fills dst with the per-particle log incremental
// weights for moving the tempering exponent from phiOld to phiNew:
//
//	(phiOld - phiNew)*oldLoglh[i] + (phiNew - phiOld)*loglh[i]
//
// oldLoglh may be nil, in which case it is treated as zeros (the usual
// adjacent-stage case where the previous tempered term is already folded
// into the weights).
func incrementalLogWeights(dst, loglh, oldLoglh []float64, phiNew, phiOld float64) []float64 {
	if cap(dst) < len(loglh) {
		dst = make([]float64, len(loglh))
	}
	dst = dst[:len(loglh)]
	d := phiNew - phiOld
	for i, ll := range loglh {
		dst[i] = d * ll
		if oldLoglh != nil {
			dst[i] -= d * oldLoglh[i]
		}
	}
	return dst
}

// normalizedReweight multiplies weights by exp(logIncr) in a max-shifted,
// overflow-safe way and normalizes the result to sum to one in place.
// Returns ErrDegenerateWeights when every product underflows to zero.
func normalizedReweight(weights, logIncr []float64) error {
	if len(weights) != len(logIncr) {
		return ErrDimensionMismatch
	}
	maxLog := math.Inf(-1)
	for _, v := range logIncr {
		if v > maxLog {
			maxLog = v
		}
	}
	if math.IsInf(maxLog, -1) {
		return ErrDegenerateWeights
	}
	for i := range weights {
		weights[i] *= math.Exp(logIncr[i] - maxLog)
	}
	total := vek.Sum(weights)
	if total <= 0 || math.IsNaN(total) || math.IsInf(total, 0) {
		return ErrDegenerateWeights
	}
	vek.MulNumber_Inplace(weights, 1/total)
	return nil
}

// ComputeESS returns the effective sample size that would result from
// retempering the population from phiOld to phiNew. loglh and weights are
// read-only inputs; oldLoglh may be nil (zeros) for adjacent-stage
// evaluation. The result lies in [1, N] for non-degenerate input and equals
// exactly N when all incremental weights agree.
func ComputeESS(loglh, weights []float64, phiNew, phiOld float64, oldLoglh []float64) (float64, error) {
	if len(loglh) != len(weights) {
		return 0, ErrDimensionMismatch
	}
	logIncr := incrementalLogWeights(nil, loglh, oldLoglh, phiNew, phiOld)
	w := make([]float64, len(weights))
	copy(w, weights)
	if err := normalizedReweight(w, logIncr); err != nil {
		return 0, err
	}
	return 1 / vek.Dot(w, w), nil
}
