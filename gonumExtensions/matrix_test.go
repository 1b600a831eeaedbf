package gonumExtensions

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"gonum.org/v1/gonum/mat"
)

func TestEyeAndDiag(t *testing.T) {
	assert.True(t, mat.Equal(Eye(3), Diag([]float64{1, 1, 1})))
	d := Diag([]float64{1, 2})
	assert.Equal(t, 2., d.At(1, 1))
	assert.Equal(t, 0., d.At(0, 1))
}

func TestNANORINF(t *testing.T) {
	m := mat.NewDense(2, 2, []float64{1, 2, 3, 4})
	assert.False(t, NANORINF(m))
	m.Set(1, 0, math.Inf(-1))
	assert.True(t, NANORINF(m))
	m.Set(1, 0, math.NaN())
	assert.True(t, NANORINF(m))
}

func TestAllClose(t *testing.T) {
	a := mat.NewDense(1, 3, []float64{1, 2, 3})
	b := mat.NewDense(1, 3, []float64{1, 2, 3 + 1e-9})
	assert.True(t, AllClose(a, b, 1e-8, 0))
	assert.False(t, AllClose(a, b, 0, 1e-12))
	assert.False(t, AllClose(a, mat.NewDense(3, 1, []float64{1, 2, 3}), 1, 1))
}

func TestIsSymmetric(t *testing.T) {
	s := mat.NewDense(3, 3, []float64{
		2, 0.02, 0,
		0.02, 1, 0,
		0, 0, 1,
	})
	assert.True(t, IsSymmetric(s, 1e-12))
	s.Set(0, 2, 0.5)
	assert.False(t, IsSymmetric(s, 1e-12))
	assert.False(t, IsSymmetric(mat.NewDense(2, 3, nil), 1))
}

func TestColumnsRoundTrip(t *testing.T) {
	m := mat.NewDense(2, 3, []float64{1, 2, 3, 4, 5, 6})
	cols := Columns(m)
	assert.Len(t, cols, 3)
	assert.Equal(t, []float64{2, 5}, cols[1].RawVector().Data)

	vecs := make([]mat.Vector, len(cols))
	for i, c := range cols {
		vecs[i] = c
	}
	assert.True(t, mat.Equal(m, ColumnMatrix(vecs)))
	assert.True(t, ColumnMatrix(nil).IsEmpty())
}

func TestFlatten(t *testing.T) {
	m := mat.NewDense(2, 3, []float64{1, 2, 3, 4, 5, 6})
	assert.Equal(t, []float64{1, 2, 3, 4, 5, 6}, Flatten(m))
	assert.Equal(t, []float64{1, 4, 2, 5, 3, 6}, Flatten(m.T()))
}
