package vectors

import (
	"fmt"

	"github.com/hammal/modred"
	"gonum.org/v1/gonum/mat"
)

// InnerProductMatrix returns the matrix M with
// M[i, j] = ip(rows[i], cols[j])
func InnerProductMatrix(rows, cols []mat.Vector, ip InnerProduct) (*mat.Dense, error) {
	if len(rows) == 0 || len(cols) == 0 {
		return nil, modred.ErrEmpty
	}
	res := mat.NewDense(len(rows), len(cols), nil)
	if err := InnerProductBlock(res, rows, cols, ip); err != nil {
		return nil, err
	}
	return res, nil
}

// InnerProductBlock fills dst (len(rows) by len(cols)) with the pairwise
// inner products of rows and cols.
func InnerProductBlock(dst *mat.Dense, rows, cols []mat.Vector, ip InnerProduct) error {
	r, c := dst.Dims()
	if r != len(rows) || c != len(cols) {
		return modred.ShapeErrorf("block is %dx%d for %d rows and %d columns", r, c, len(rows), len(cols))
	}
	for i, u := range rows {
		for j, v := range cols {
			val, err := ip(u, v)
			if err != nil {
				return fmt.Errorf("inner product (%d, %d): %w", i, j, err)
			}
			dst.Set(i, j, val)
		}
	}
	return nil
}

// LinearCombinations returns one vector per column k of coeffs,
// sum_i coeffs[i, k] basis[i]
// The terms are added in increasing i, so every column's result is
// independent of the other columns.
func LinearCombinations(basis []mat.Vector, coeffs mat.Matrix) ([]*mat.VecDense, error) {
	if len(basis) == 0 {
		return nil, modred.ErrEmpty
	}
	r, c := coeffs.Dims()
	if r != len(basis) {
		return nil, modred.ShapeErrorf("coefficients have %d rows for %d basis vectors", r, len(basis))
	}
	n := basis[0].Len()
	res := make([]*mat.VecDense, c)
	for k := range res {
		res[k] = mat.NewVecDense(n, nil)
	}
	if err := Accumulate(res, basis, coeffs); err != nil {
		return nil, err
	}
	return res, nil
}

// Accumulate adds coeffs[i, k] basis[i] to sums[k] for every basis vector
// in order.
func Accumulate(sums []*mat.VecDense, basis []mat.Vector, coeffs mat.Matrix) error {
	r, c := coeffs.Dims()
	if r != len(basis) || c != len(sums) {
		return modred.ShapeErrorf("coefficients are %dx%d for %d basis vectors and %d sums", r, c, len(basis), len(sums))
	}
	for i, b := range basis {
		for k, sum := range sums {
			if b.Len() != sum.Len() {
				return modred.ShapeErrorf("basis vector %d has length %d, sum has %d", i, b.Len(), sum.Len())
			}
			sum.AddScaledVec(sum, coeffs.At(i, k), b)
		}
	}
	return nil
}
