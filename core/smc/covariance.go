package smc

import (
	"gonum.org/v1/gonum/mat"
)

// DefaultEigenFloor is the smallest eigenvalue allowed to survive
// regularization. Particle covariance estimates on small blocks are
// frequently indefinite; clipping at a positive floor keeps every proposal
// covariance usable for a Cholesky factorization.
const DefaultEigenFloor = 1e-10

// regularizeCovariance maps sigma to the nearest symmetric positive
// definite matrix by eigenvalue clipping: eigenvalues below floor are
// raised to floor and the matrix is rebuilt from the clipped spectrum.
// A matrix that is already positive definite is reproduced up to
// floating-point roundoff.
func regularizeCovariance(sigma *mat.SymDense, floor float64) *mat.SymDense {
	d := sigma.SymmetricDim()
	if floor <= 0 {
		floor = DefaultEigenFloor
	}

	var eig mat.EigenSym
	if ok := eig.Factorize(sigma, true); !ok {
		// Factorization failure leaves no usable spectrum; fall back to a
		// diagonal matrix with floored variances.
		out := mat.NewSymDense(d, nil)
		for i := 0; i < d; i++ {
			v := sigma.At(i, i)
			if v < floor {
				v = floor
			}
			out.SetSym(i, i, v)
		}
		return out
	}

	vals := eig.Values(nil)
	clipped := false
	for i, v := range vals {
		if v < floor {
			vals[i] = floor
			clipped = true
		}
	}
	if !clipped {
		return sigma
	}

	var vecs mat.Dense
	eig.VectorsTo(&vecs)

	var scaled, full mat.Dense
	scaled.Mul(&vecs, mat.NewDiagDense(d, vals))
	full.Mul(&scaled, vecs.T())

	// Rebuild as an exactly symmetric matrix; the product above can carry
	// asymmetric roundoff.
	out := mat.NewSymDense(d, nil)
	for i := 0; i < d; i++ {
		for j := i; j < d; j++ {
			out.SetSym(i, j, (full.At(i, j)+full.At(j, i))/2)
		}
	}
	return out
}

// blockSubmatrix extracts the principal submatrix of sigma over the given
// index set.
func blockSubmatrix(sigma *mat.SymDense, inds []int) *mat.SymDense {
	out := mat.NewSymDense(len(inds), nil)
	for i, ri := range inds {
		for j := i; j < len(inds); j++ {
			out.SetSym(i, j, sigma.At(ri, inds[j]))
		}
	}
	return out
}
