package ssm

import (
	"fmt"

	"github.com/hammal/modred"
	"github.com/hammal/modred/gonumExtensions"
	"gonum.org/v1/gonum/mat"
)

// weightMatrix expands inner product weights into an n by n matrix. nil
// means the identity and a vector the diagonal.
func weightMatrix(weights mat.Matrix, n int) (*mat.Dense, error) {
	switch w := weights.(type) {
	case nil:
		return gonumExtensions.Eye(n), nil
	case mat.Vector:
		if w.Len() != n {
			return nil, modred.ShapeErrorf("%d weights for %d states", w.Len(), n)
		}
		return gonumExtensions.Diag(mat.Col(nil, 0, w)), nil
	}
	r, c := weights.Dims()
	if r != n || c != n {
		return nil, modred.ShapeErrorf("%dx%d weights for %d states", r, c, n)
	}
	if !gonumExtensions.IsSymmetric(weights, 1e-12) {
		return nil, modred.ErrAsymmetricWeights
	}
	return mat.DenseCopyOf(weights), nil
}

// adjoint returns W^-1 A^T W, W^-1 C^T and B^T W.
func adjoint(A, B, C mat.Matrix, weights mat.Matrix) (aAdj, bAdj, cAdj *mat.Dense, err error) {
	n, _ := A.Dims()
	W, err := weightMatrix(weights, n)
	if err != nil {
		return nil, nil, nil, err
	}
	var lu mat.LU
	lu.Factorize(W)

	var atw mat.Dense
	atw.Mul(A.T(), W)
	aAdj, bAdj, cAdj = &mat.Dense{}, &mat.Dense{}, &mat.Dense{}
	if err := lu.SolveTo(aAdj, false, &atw); err != nil {
		return nil, nil, nil, fmt.Errorf("ssm: inner product weights: %w", err)
	}
	if err := lu.SolveTo(bAdj, false, C.T()); err != nil {
		return nil, nil, nil, err
	}
	cAdj.Mul(B.T(), W)
	return aAdj, bAdj, cAdj, nil
}

// OutputVectors returns W^-1 C^T, the input matrix of the adjoint. Its
// columns c_i give the outputs as inner products, (C x)_i = <c_i, x>.
func OutputVectors(C, weights mat.Matrix) (*mat.Dense, error) {
	_, n := C.Dims()
	W, err := weightMatrix(weights, n)
	if err != nil {
		return nil, err
	}
	var lu mat.LU
	lu.Factorize(W)
	var res mat.Dense
	if err := lu.SolveTo(&res, false, C.T()); err != nil {
		return nil, fmt.Errorf("ssm: inner product weights: %w", err)
	}
	return &res, nil
}
