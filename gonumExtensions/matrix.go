package gonumExtensions

import (
	"math"

	"gonum.org/v1/gonum/mat"
)

// Eye returns the (n by n) identity matrix.
func Eye(n int) *mat.Dense {
	res := mat.NewDense(n, n, nil)
	for i := 0; i < n; i++ {
		res.Set(i, i, 1.)
	}
	return res
}

// Diag returns the square matrix with values on its diagonal.
func Diag(values []float64) *mat.Dense {
	n := len(values)
	res := mat.NewDense(n, n, nil)
	for i, v := range values {
		res.Set(i, i, v)
	}
	return res
}

// NANORINF checks if there are any NAN or INF in matrix
func NANORINF(matrix mat.Matrix) bool {
	m, n := matrix.Dims()
	for row := 0; row < m; row++ {
		for col := 0; col < n; col++ {
			if math.IsNaN(matrix.At(row, col)) || math.IsInf(matrix.At(row, col), 0) {
				return true
			}
		}
	}
	return false
}

// AllClose reports whether a and b have the same shape and every pair of
// entries satisfies
// |a - b| <= atol + rtol * |b|
func AllClose(a, b mat.Matrix, rtol, atol float64) bool {
	ma, na := a.Dims()
	mb, nb := b.Dims()
	if ma != mb || na != nb {
		return false
	}
	for row := 0; row < ma; row++ {
		for col := 0; col < na; col++ {
			x, y := a.At(row, col), b.At(row, col)
			if math.Abs(x-y) > atol+rtol*math.Abs(y) {
				return false
			}
		}
	}
	return true
}

// IsSymmetric reports whether the square matrix m equals its transpose
// within tol, relative to the largest entry.
func IsSymmetric(m mat.Matrix, tol float64) bool {
	r, c := m.Dims()
	if r != c {
		return false
	}
	scale := mat.Norm(m, math.Inf(1))
	for row := 0; row < r; row++ {
		for col := row + 1; col < c; col++ {
			if math.Abs(m.At(row, col)-m.At(col, row)) > tol*scale {
				return false
			}
		}
	}
	return true
}

// Columns returns copies of the columns of m.
func Columns(m mat.Matrix) []*mat.VecDense {
	r, n := m.Dims()
	res := make([]*mat.VecDense, n)
	for col := range res {
		res[col] = mat.NewVecDense(r, mat.Col(nil, col, m))
	}
	return res
}

// ColumnMatrix returns the matrix whose columns are vecs. All vectors must
// have the same length.
func ColumnMatrix(vecs []mat.Vector) *mat.Dense {
	if len(vecs) == 0 {
		return &mat.Dense{}
	}
	m := vecs[0].Len()
	res := mat.NewDense(m, len(vecs), nil)
	for col, v := range vecs {
		if v.Len() != m {
			panic(mat.ErrShape)
		}
		for row := 0; row < m; row++ {
			res.Set(row, col, v.AtVec(row))
		}
	}
	return res
}

// Flatten returns the entries of m in row-major order.
func Flatten(m mat.Matrix) []float64 {
	r, c := m.Dims()
	res := make([]float64, 0, r*c)
	for row := 0; row < r; row++ {
		for col := 0; col < c; col++ {
			res = append(res, m.At(row, col))
		}
	}
	return res
}
