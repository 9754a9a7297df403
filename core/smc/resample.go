package smc

import (
	"math/rand/v2"
)

// systematicResample replaces the population with N draws (with
// replacement) from the categorical distribution over normalized weights,
// using a single uniform offset and evenly spaced points. Systematic
// resampling is unbiased and has lower variance than multinomial.
// All weights are reset to 1/N afterward.
func (c *Cloud) systematicResample(rng *rand.Rand) {
	n := len(c.Particles)
	p := c.NormalizedWeights()

	indices := make([]int, n)
	u := rng.Float64() / float64(n)
	var cum float64
	j := 0
	for i := 0; i < n; i++ {
		point := u + float64(i)/float64(n)
		for cum+p[j] < point && j < n-1 {
			cum += p[j]
			j++
		}
		indices[i] = j
	}

	resampled := make([]Particle, n)
	for i, idx := range indices {
		resampled[i] = c.Particles[idx].Clone()
	}
	c.Particles = resampled
	c.setUniformWeights()
}
