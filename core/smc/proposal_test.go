package smc

import (
	"errors"
	"math"
	"math/rand/v2"
	"testing"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/distmv"
)

func TestNewMixtureProposal_InvalidMixing(t *testing.T) {
	sigma := mat.NewSymDense(2, []float64{1, 0, 0, 1})

	for _, alpha := range []float64{-0.1, 1.1, 2} {
		_, err := newMixtureProposal(alpha, 0.5, sigma, []float64{0, 0})
		if !errors.Is(err, ErrInvalidMixing) {
			t.Errorf("alpha=%v: error = %v, want ErrInvalidMixing", alpha, err)
		}
	}

	for _, alpha := range []float64{0, 0.5, 1} {
		if _, err := newMixtureProposal(alpha, 0.5, sigma, []float64{0, 0}); err != nil {
			t.Errorf("alpha=%v: unexpected error %v", alpha, err)
		}
	}
}

func TestMixtureProposal_AlphaOneDegeneratesToSingleGaussian(t *testing.T) {
	scale := 0.7
	sigma := mat.NewSymDense(2, []float64{2, 0.3, 0.3, 1})
	refMean := []float64{10, -10} // far away; must not matter at alpha=1
	thetaOld := []float64{0.5, -0.2}

	m, err := newMixtureProposal(1, scale, sigma, refMean)
	if err != nil {
		t.Fatalf("newMixtureProposal() error = %v", err)
	}

	rng := rand.New(rand.NewPCG(11, 13))
	thetaNew, logFwd, logBwd := m.Draw(rng, thetaOld)

	// Reference density: a single Gaussian centered at thetaOld with
	// covariance c^2*Sigma.
	scaled := mat.NewSymDense(2, nil)
	for i := 0; i < 2; i++ {
		for j := i; j < 2; j++ {
			scaled.SetSym(i, j, scale*scale*sigma.At(i, j))
		}
	}
	single, ok := distmv.NewNormal(thetaOld, scaled, nil)
	if !ok {
		t.Fatal("reference normal not positive definite")
	}

	if math.Abs(logFwd-single.LogProb(thetaNew)) > 1e-10 {
		t.Errorf("forward density = %v, want %v", logFwd, single.LogProb(thetaNew))
	}

	// With a single symmetric component the forward and backward densities
	// coincide.
	if math.Abs(logFwd-logBwd) > 1e-10 {
		t.Errorf("forward %v != backward %v for symmetric proposal", logFwd, logBwd)
	}
}

func TestMixtureProposal_DensitiesFinite(t *testing.T) {
	sigma := mat.NewSymDense(3, []float64{1, 0.1, 0, 0.1, 2, 0.2, 0, 0.2, 1.5})
	refMean := []float64{0.2, 0.1, -0.3}
	thetaOld := []float64{1, -1, 0.5}

	for _, alpha := range []float64{0, 0.3, 0.9, 1} {
		m, err := newMixtureProposal(alpha, 0.4, sigma, refMean)
		if err != nil {
			t.Fatalf("alpha=%v: newMixtureProposal() error = %v", alpha, err)
		}

		rng := rand.New(rand.NewPCG(2, 3))
		for trial := 0; trial < 50; trial++ {
			thetaNew, logFwd, logBwd := m.Draw(rng, thetaOld)
			if len(thetaNew) != 3 {
				t.Fatalf("alpha=%v: draw dimension %d", alpha, len(thetaNew))
			}
			if math.IsNaN(logFwd) || math.IsInf(logFwd, 0) {
				t.Fatalf("alpha=%v: forward density %v", alpha, logFwd)
			}
			if math.IsNaN(logBwd) || math.IsInf(logBwd, 0) {
				t.Fatalf("alpha=%v: backward density %v", alpha, logBwd)
			}
		}
	}
}

func TestMixtureProposal_GlobalComponentPullsTowardReference(t *testing.T) {
	// With alpha=0 half the draws come from the component centered at the
	// reference mean, so the sample mean of many draws should sit between
	// thetaOld and refMean.
	sigma := mat.NewSymDense(1, []float64{0.01})
	refMean := []float64{5}
	thetaOld := []float64{0}

	m, err := newMixtureProposal(0, 1, sigma, refMean)
	if err != nil {
		t.Fatalf("newMixtureProposal() error = %v", err)
	}

	rng := rand.New(rand.NewPCG(21, 42))
	var sum float64
	const draws = 4000
	for i := 0; i < draws; i++ {
		thetaNew, _, _ := m.Draw(rng, thetaOld)
		sum += thetaNew[0]
	}
	mean := sum / draws

	// Expected mean is (0 + 5)/2 = 2.5.
	if math.Abs(mean-2.5) > 0.2 {
		t.Errorf("draw mean = %v, want near 2.5", mean)
	}
}
