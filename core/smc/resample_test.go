package smc

import (
	"math"
	"math/rand/v2"
	"testing"
)

func newTestCloud(thetas [][]float64, weights []float64) *Cloud {
	c := NewCloud(len(thetas))
	for i := range thetas {
		c.Particles[i].Theta = thetas[i]
		c.Particles[i].Weight = weights[i]
	}
	return c
}

func TestSystematicResample_ResetsWeights(t *testing.T) {
	n := 100
	thetas := make([][]float64, n)
	weights := make([]float64, n)
	rng := rand.New(rand.NewPCG(8, 16))
	for i := range thetas {
		thetas[i] = []float64{float64(i)}
		weights[i] = rng.Float64()
	}
	c := newTestCloud(thetas, weights)

	c.systematicResample(rng)

	want := 1.0 / float64(n)
	for i, p := range c.Particles {
		if p.Weight != want {
			t.Errorf("particle %d weight = %v, want %v", i, p.Weight, want)
		}
	}
	if c.Len() != n {
		t.Errorf("population size changed: %d, want %d", c.Len(), n)
	}
}

func TestSystematicResample_DrawsFromOriginalSupport(t *testing.T) {
	thetas := [][]float64{{1}, {2}, {3}, {4}}
	weights := []float64{0.25, 0.25, 0.25, 0.25}
	c := newTestCloud(thetas, weights)

	rng := rand.New(rand.NewPCG(4, 44))
	c.systematicResample(rng)

	valid := map[float64]bool{1: true, 2: true, 3: true, 4: true}
	for i, p := range c.Particles {
		if !valid[p.Theta[0]] {
			t.Errorf("particle %d value %v not in original support", i, p.Theta[0])
		}
	}
}

func TestSystematicResample_DominantParticleWins(t *testing.T) {
	n := 200
	thetas := make([][]float64, n)
	weights := make([]float64, n)
	for i := range thetas {
		thetas[i] = []float64{float64(i)}
		weights[i] = 1e-12
	}
	weights[42] = 1.0
	c := newTestCloud(thetas, weights)

	rng := rand.New(rand.NewPCG(1, 2))
	c.systematicResample(rng)

	copies := 0
	for _, p := range c.Particles {
		if p.Theta[0] == 42 {
			copies++
		}
	}
	if copies < n-1 {
		t.Errorf("dominant particle copied %d times, want at least %d", copies, n-1)
	}
}

func TestSystematicResample_ProportionalRepresentation(t *testing.T) {
	// Systematic resampling guarantees each index appears either
	// floor(N*w) or ceil(N*w) times.
	thetas := [][]float64{{0}, {1}, {2}, {3}}
	weights := []float64{0.4, 0.3, 0.2, 0.1}
	n := 1000

	counts := make(map[float64]int)
	c := NewCloud(n)
	// Build an n-particle cloud replicating the four-point distribution.
	for i := range c.Particles {
		c.Particles[i].Theta = thetas[i%4]
		c.Particles[i].Weight = weights[i%4]
	}

	rng := rand.New(rand.NewPCG(77, 99))
	c.systematicResample(rng)
	for _, p := range c.Particles {
		counts[p.Theta[0]]++
	}

	total := 0.0
	for _, w := range weights {
		total += w * float64(n/4)
	}
	for v, w := range map[float64]float64{0: 0.4, 1: 0.3, 2: 0.2, 3: 0.1} {
		expected := w * float64(n/4) / total * float64(n)
		got := float64(counts[v])
		if math.Abs(got-expected) > expected*0.05+2 {
			t.Errorf("value %v resampled %v times, want near %v", v, got, expected)
		}
	}
}

func TestSystematicResample_DeepCopies(t *testing.T) {
	thetas := [][]float64{{1}, {1}}
	weights := []float64{1, 0}
	c := newTestCloud(thetas, weights)

	rng := rand.New(rand.NewPCG(6, 6))
	c.systematicResample(rng)

	// Both slots now hold copies of particle 0; mutating one must not
	// affect the other.
	c.Particles[0].Theta[0] = 99
	if c.Particles[1].Theta[0] == 99 {
		t.Error("resampled particles share parameter storage")
	}
}
