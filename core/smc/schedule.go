package smc

import (
	"fmt"
)

// scheduleSolver chooses the next tempering exponent for each stage. It
// walks a fixed candidate schedule as an upper bound and root-finds the
// exponent whose post-reweighting ESS hits the stage target.
type scheduleSolver struct {
	fixed          []float64
	cursor         int
	targetFraction float64
	maxIter        int
}

func newScheduleSolver(fixed []float64, targetFraction float64, maxIter int) *scheduleSolver {
	return &scheduleSolver{
		fixed:          fixed,
		targetFraction: targetFraction,
		maxIter:        maxIter,
	}
}

// target returns the ESS level the next exponent should achieve. After a
// resampling step the target re-anchors to the full population size;
// otherwise it decays geometrically from the previous stage's ESS.
func (s *scheduleSolver) target(prevESS float64, resampled bool, n int) float64 {
	if resampled {
		return s.targetFraction * float64(n)
	}
	return s.targetFraction * prevESS
}

// next selects the tempering exponent for the upcoming stage. loglh and
// weights describe the cloud before reweighting; phiPrev is the last
// realized exponent. The chosen exponent is strictly greater than phiPrev,
// never exceeds the first unconsumed fixed-schedule candidate, and is
// exactly 1 on the terminal stage.
func (s *scheduleSolver) next(loglh, weights []float64, phiPrev, prevESS float64, resampled bool) (float64, error) {
	target := s.target(prevESS, resampled, len(weights))

	f := func(phi float64) (float64, error) {
		ess, err := ComputeESS(loglh, weights, phi, phiPrev, nil)
		if err != nil {
			return 0, err
		}
		return ess - target, nil
	}

	// Advance through the fixed schedule while its candidates keep the ESS
	// at or above target. The first candidate that undershoots becomes the
	// upper bracket for root-finding; it stays unconsumed so the next stage
	// sees it again.
	phiProp := 1.0
	fProp := 0.0
	for s.cursor < len(s.fixed) {
		phiProp = s.fixed[s.cursor]
		v, err := f(phiProp)
		if err != nil {
			return 0, fmt.Errorf("evaluating fixed candidate %g: %w", phiProp, err)
		}
		fProp = v
		if v < 0 {
			break
		}
		s.cursor++
	}

	if phiProp == 1 && fProp >= 0 {
		return 1, nil
	}

	phi, err := bisect(f, phiPrev, phiProp, s.maxIter)
	if err != nil {
		return 0, err
	}
	return phi, nil
}

// bisect finds the root of f in [a, b] by bisection, converging until the
// bracket collapses to machine precision. Exceeding maxIter before collapse
// is an error, as is a bracket without a sign change.
func bisect(f func(float64) (float64, error), a, b float64, maxIter int) (float64, error) {
	fa, err := f(a)
	if err != nil {
		return 0, err
	}
	fb, err := f(b)
	if err != nil {
		return 0, err
	}
	if fa == 0 {
		return a, nil
	}
	if fb == 0 {
		return b, nil
	}
	if (fa > 0) == (fb > 0) {
		return 0, fmt.Errorf("bracket [%g, %g] with f=(%g, %g): %w", a, b, fa, fb, ErrInvalidBracket)
	}

	for i := 0; i < maxIter; i++ {
		m := a + (b-a)/2
		if m <= a || m >= b {
			// Bracket has collapsed to adjacent floats.
			return m, nil
		}
		fm, err := f(m)
		if err != nil {
			return 0, err
		}
		if fm == 0 {
			return m, nil
		}
		if (fm > 0) == (fa > 0) {
			a, fa = m, fm
		} else {
			b = m
		}
	}
	return 0, fmt.Errorf("bracket [%g, %g] after %d iterations: %w", a, b, maxIter, ErrRootNotConverged)
}
