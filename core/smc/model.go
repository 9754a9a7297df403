package smc

import "math/rand/v2"

// Model supplies the target distribution. Implementations must be safe for
// concurrent calls: the mutation kernel evaluates particles in parallel.
type Model interface {
	// NumParams returns the full parameter vector length, fixed entries
	// included.
	NumParams() int

	// FreeIndices returns the positions of the free parameters within the
	// full vector, in canonical order.
	FreeIndices() []int

	// LogLikelihood evaluates the log-likelihood at a full parameter
	// vector. Return -Inf for points outside the likelihood's support.
	LogLikelihood(theta []float64) float64

	// LogPrior evaluates the log prior density at a full parameter vector.
	// Return -Inf outside the prior's support.
	LogPrior(theta []float64) float64

	// PriorSample draws a full parameter vector from the prior, with fixed
	// entries set to their fixed values.
	PriorSample(rng *rand.Rand) []float64
}
