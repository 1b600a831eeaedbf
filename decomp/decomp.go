// Package decomp holds the truncated factorizations behind POD and BPOD: the
// singular value decomposition of a Hankel matrix and the eigendecomposition
// of a symmetric correlation matrix.
//
// Values are returned in descending order. A value s is kept when
// s > Atol and s > Rtol*s[0], and the truncation only ever drops a tail, so the
// order of the kept values is never changed. When nothing survives, or the
// input has zero size, the result is empty rather than an error.
package decomp

import (
	"errors"
	"fmt"
	"math"

	"github.com/hammal/modred"
	"github.com/hammal/modred/gonumExtensions"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// ErrNotConverged is returned when the underlying LAPACK routine fails.
var ErrNotConverged = errors.New("decomp: factorization did not converge")

// Tolerance holds the truncation thresholds.
type Tolerance struct {
	Atol float64
	Rtol float64
}

// DefaultTolerance drops values at machine precision and keeps the rest.
func DefaultTolerance() Tolerance {
	return Tolerance{Atol: modred.DefaultAtol, Rtol: modred.DefaultRtol}
}

// Validate checks that Atol >= 0 and 0 <= Rtol <= 1.
func (t Tolerance) Validate() error {
	return modred.CheckTolerance(t.Atol, t.Rtol)
}

// keep returns the length of the prefix of the descending values that
// passes both thresholds.
func (t Tolerance) keep(values []float64) int {
	for k, v := range values {
		if !(v > t.Atol && v > t.Rtol*values[0]) {
			return k
		}
	}
	return len(values)
}

// SVDResult is a truncated singular value decomposition
// A ~ Left diag(Values) Right^T
// Left and Right are nil when the result is empty.
type SVDResult struct {
	Left   *mat.Dense
	Values []float64
	Right  *mat.Dense
}

// Len returns the number of kept singular values.
func (r SVDResult) Len() int { return len(r.Values) }

// SVD factorizes a and truncates the singular values with tol.
func SVD(a mat.Matrix, tol Tolerance) (SVDResult, error) {
	if err := tol.Validate(); err != nil {
		return SVDResult{}, err
	}
	rows, cols := a.Dims()
	if rows == 0 || cols == 0 {
		return SVDResult{}, nil
	}
	if gonumExtensions.NANORINF(a) {
		return SVDResult{}, fmt.Errorf("%w: %dx%d matrix", modred.ErrNotFinite, rows, cols)
	}

	var svd mat.SVD
	if ok := svd.Factorize(a, mat.SVDThin); !ok {
		return SVDResult{}, fmt.Errorf("%w: SVD of %dx%d matrix", ErrNotConverged, rows, cols)
	}
	values := svd.Values(nil)
	k := tol.keep(values)
	if k == 0 {
		return SVDResult{}, nil
	}
	var u, v mat.Dense
	svd.UTo(&u)
	svd.VTo(&v)
	return SVDResult{
		Left:   mat.DenseCopyOf(u.Slice(0, rows, 0, k)),
		Values: values[:k:k],
		Right:  mat.DenseCopyOf(v.Slice(0, cols, 0, k)),
	}, nil
}

// EigResult is a truncated eigendecomposition of a symmetric matrix
// A ~ Vectors diag(Values) Vectors^T
// Vectors is nil when the result is empty.
type EigResult struct {
	Values  []float64
	Vectors *mat.Dense
}

// Len returns the number of kept eigenvalues.
func (r EigResult) Len() int { return len(r.Values) }

// EigSym factorizes the symmetric matrix a and truncates the eigenvalues
// with tol. Eigenvalues at or below Atol, including negative round-off of a
// positive semidefinite matrix, are dropped.
func EigSym(a mat.Symmetric, tol Tolerance) (EigResult, error) {
	if err := tol.Validate(); err != nil {
		return EigResult{}, err
	}
	n := a.SymmetricDim()
	if n == 0 {
		return EigResult{}, nil
	}
	if gonumExtensions.NANORINF(a) {
		return EigResult{}, fmt.Errorf("%w: %dx%d matrix", modred.ErrNotFinite, n, n)
	}

	var es mat.EigenSym
	if ok := es.Factorize(a, true); !ok {
		return EigResult{}, fmt.Errorf("%w: eigendecomposition of %dx%d matrix", ErrNotConverged, n, n)
	}
	// EigenSym sorts ascending.
	values := es.Values(nil)
	floats.Reverse(values)
	k := tol.keep(values)
	if k == 0 {
		return EigResult{}, nil
	}
	var vecs mat.Dense
	es.VectorsTo(&vecs)
	res := mat.NewDense(n, k, nil)
	col := make([]float64, n)
	for j := 0; j < k; j++ {
		res.SetCol(j, mat.Col(col, n-1-j, &vecs))
	}
	return EigResult{Values: values[:k:k], Vectors: res}, nil
}

// ModeCoefficients returns the matrix whose column j is
// vecs[:, indices[j]] / sqrt(values[indices[j]])
// Column j depends only on indices[j]. The indices must be valid.
func ModeCoefficients(vecs mat.Matrix, values []float64, indices []int) *mat.Dense {
	rows, _ := vecs.Dims()
	res := mat.NewDense(rows, len(indices), nil)
	for j, idx := range indices {
		scale := 1 / math.Sqrt(values[idx])
		for i := 0; i < rows; i++ {
			res.Set(i, j, vecs.At(i, idx)*scale)
		}
	}
	return res
}

// Project returns
// diag(values^-1/2) vecs^T m
// the coefficients of the columns of m on the modes built from vecs and
// values.
func Project(vecs mat.Matrix, values []float64, m mat.Matrix) *mat.Dense {
	var res mat.Dense
	res.Mul(vecs.T(), m)
	_, cols := res.Dims()
	row := make([]float64, cols)
	for k, v := range values {
		floats.Scale(1/math.Sqrt(v), mat.Row(row, k, &res))
		res.SetRow(k, row)
	}
	return &res
}

// Indices converts mode numbers counted from indexFrom into positions in a
// decomposition with n modes. Every number is checked before any is used.
func Indices(numbers []int, indexFrom, n int) ([]int, error) {
	res := make([]int, len(numbers))
	for i, num := range numbers {
		idx := num - indexFrom
		if idx < 0 || idx >= n {
			return nil, modred.IndexErrorf("mode %d is outside [%d, %d)", num, indexFrom, indexFrom+n)
		}
		res[i] = idx
	}
	return res, nil
}
