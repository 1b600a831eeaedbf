// Package vectors holds the vector level building blocks: inner products,
// handles that load and save vectors, and the in-memory engine computing
// inner product matrices and linear combinations.
package vectors

import (
	"fmt"
	"math"

	"github.com/hammal/modred"
	"github.com/hammal/modred/gonumExtensions"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// symmetryTolerance is the relative tolerance used when checking that full
// weights are symmetric.
const symmetryTolerance = 1e-12

// InnerProduct computes the inner product of two vectors. It returns an
// error wrapping modred.ErrShape when the vector lengths don't match.
type InnerProduct func(a, b mat.Vector) (float64, error)

// Euclidean returns the unweighted inner product
// a^T b
func Euclidean() InnerProduct {
	return func(a, b mat.Vector) (float64, error) {
		if err := sameLength(a, b, a.Len()); err != nil {
			return 0, err
		}
		return mat.Dot(a, b), nil
	}
}

// DiagonalWeights returns the inner product
// a^T diag(w) b
// The weights must be positive and finite.
func DiagonalWeights(w []float64) (InnerProduct, error) {
	if len(w) == 0 {
		return nil, modred.ErrEmpty
	}
	if floats.HasNaN(w) || floats.Min(w) <= 0 || math.IsInf(floats.Max(w), 1) {
		return nil, fmt.Errorf("%w: diagonal weights must be positive and finite", modred.ErrWeights)
	}
	weights := append([]float64(nil), w...)
	return func(a, b mat.Vector) (float64, error) {
		if err := sameLength(a, b, len(weights)); err != nil {
			return 0, err
		}
		var sum float64
		for i, wi := range weights {
			sum += a.AtVec(i) * wi * b.AtVec(i)
		}
		return sum, nil
	}, nil
}

// FullWeights returns the inner product
// a^T W b
// for a symmetric positive definite weight matrix W. Asymmetric weights are
// rejected with modred.ErrAsymmetricWeights, indefinite ones with
// modred.ErrWeights.
func FullWeights(w mat.Matrix) (InnerProduct, error) {
	m, n := w.Dims()
	if m != n {
		return nil, modred.ShapeErrorf("weights are %dx%d, need a square matrix", m, n)
	}
	if m == 0 {
		return nil, modred.ErrEmpty
	}
	if !gonumExtensions.IsSymmetric(w, symmetryTolerance) {
		return nil, modred.ErrAsymmetricWeights
	}
	if gonumExtensions.NANORINF(w) {
		return nil, fmt.Errorf("%w: weights contain NaN or Inf", modred.ErrWeights)
	}
	weights := mat.NewSymDense(m, nil)
	for i := 0; i < m; i++ {
		for j := i; j < m; j++ {
			weights.SetSym(i, j, w.At(i, j))
		}
	}
	var chol mat.Cholesky
	if ok := chol.Factorize(weights); !ok {
		return nil, fmt.Errorf("%w: weights are not positive definite", modred.ErrWeights)
	}
	return func(a, b mat.Vector) (float64, error) {
		if err := sameLength(a, b, m); err != nil {
			return 0, err
		}
		return mat.Inner(a, weights, b), nil
	}, nil
}

// Weighted picks the inner product matching the given weights: Euclidean
// for nil, diagonal for a vector and full for any other matrix.
func Weighted(weights mat.Matrix) (InnerProduct, error) {
	switch w := weights.(type) {
	case nil:
		return Euclidean(), nil
	case mat.Vector:
		return DiagonalWeights(mat.Col(nil, 0, w))
	default:
		return FullWeights(w)
	}
}

func sameLength(a, b mat.Vector, n int) error {
	if a.Len() != n || b.Len() != n {
		return modred.ShapeErrorf("vector lengths %d and %d, inner product needs %d", a.Len(), b.Len(), n)
	}
	return nil
}
