package decomp

import (
	"math"
	"math/rand/v2"
	"testing"

	"github.com/hammal/modred"
	"github.com/hammal/modred/gonumExtensions"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

func randomMatrix(rng *rand.Rand, r, c int) *mat.Dense {
	data := make([]float64, r*c)
	for i := range data {
		data[i] = rng.NormFloat64()
	}
	return mat.NewDense(r, c, data)
}

func TestTolerance(t *testing.T) {
	for _, tc := range []struct {
		tol Tolerance
		ok  bool
	}{
		{DefaultTolerance(), true},
		{Tolerance{0, 0}, true},
		{Tolerance{1, 1}, true},
		{Tolerance{-1, 0}, false},
		{Tolerance{0, 1.5}, false},
		{Tolerance{math.NaN(), 0}, false},
	} {
		err := tc.tol.Validate()
		if tc.ok {
			assert.NoError(t, err, "%+v", tc.tol)
		} else {
			assert.ErrorIs(t, err, modred.ErrTolerance, "%+v", tc.tol)
		}
	}

	values := []float64{10, 5, 1, 1e-3, 0}
	assert.Equal(t, 4, Tolerance{0, 0}.keep(values))
	assert.Equal(t, 3, Tolerance{1e-2, 0}.keep(values))
	assert.Equal(t, 2, Tolerance{0, 0.1}.keep(values))
	assert.Equal(t, 2, Tolerance{1, 0}.keep(values))
	assert.Equal(t, 0, Tolerance{100, 0}.keep(values))
}

func TestSVDIdentities(t *testing.T) {
	rng := rand.New(rand.NewPCG(1, 1))
	h := randomMatrix(rng, 8, 12)
	res, err := SVD(h, DefaultTolerance())
	require.NoError(t, err)
	require.Equal(t, 8, res.Len())
	assert.True(t, sortedDescending(res.Values))

	s2 := make([]float64, res.Len())
	floats.MulTo(s2, res.Values, res.Values)

	// H H^T L = L diag(s^2)
	var hht, lhs, rhs mat.Dense
	hht.Mul(h, h.T())
	lhs.Mul(&hht, res.Left)
	rhs.Mul(res.Left, gonumExtensions.Diag(s2))
	assert.True(t, gonumExtensions.AllClose(&lhs, &rhs, 1e-8, 1e-8))

	// H^T H R = R diag(s^2)
	var hth mat.Dense
	hth.Mul(h.T(), h)
	lhs.Reset()
	rhs.Reset()
	lhs.Mul(&hth, res.Right)
	rhs.Mul(res.Right, gonumExtensions.Diag(s2))
	assert.True(t, gonumExtensions.AllClose(&lhs, &rhs, 1e-8, 1e-8))

	// L diag(s) R^T = H
	var ls, back mat.Dense
	ls.Mul(res.Left, gonumExtensions.Diag(res.Values))
	back.Mul(&ls, res.Right.T())
	assert.True(t, gonumExtensions.AllClose(&back, h, 1e-10, 1e-10))
}

func TestSVDTruncation(t *testing.T) {
	rng := rand.New(rand.NewPCG(2, 2))
	// Rank 3.
	var h mat.Dense
	h.Mul(randomMatrix(rng, 10, 3), randomMatrix(rng, 3, 7))

	res, err := SVD(&h, Tolerance{Atol: 1e-10})
	require.NoError(t, err)
	assert.Equal(t, 3, res.Len())
	r, c := res.Left.Dims()
	assert.Equal(t, []int{10, 3}, []int{r, c})
	r, c = res.Right.Dims()
	assert.Equal(t, []int{7, 3}, []int{r, c})

	res, err = SVD(&h, Tolerance{Atol: 1e6})
	require.NoError(t, err)
	assert.Zero(t, res.Len())
	assert.Nil(t, res.Left)
	assert.Nil(t, res.Right)

	res, err = SVD(&mat.Dense{}, DefaultTolerance())
	require.NoError(t, err)
	assert.Zero(t, res.Len())

	_, err = SVD(&h, Tolerance{Atol: -1})
	assert.ErrorIs(t, err, modred.ErrTolerance)

	h.Set(0, 0, math.NaN())
	_, err = SVD(&h, DefaultTolerance())
	assert.ErrorIs(t, err, modred.ErrNotFinite)
}

func TestEigSym(t *testing.T) {
	rng := rand.New(rand.NewPCG(3, 3))
	x := randomMatrix(rng, 9, 5)
	var corr mat.SymDense
	corr.SymOuterK(1, x.T())

	res, err := EigSym(&corr, Tolerance{Atol: 1e-10})
	require.NoError(t, err)
	require.Equal(t, 5, res.Len())
	assert.True(t, sortedDescending(res.Values))

	// Corr V = V diag(e)
	var lhs, rhs mat.Dense
	lhs.Mul(&corr, res.Vectors)
	rhs.Mul(res.Vectors, gonumExtensions.Diag(res.Values))
	assert.True(t, gonumExtensions.AllClose(&lhs, &rhs, 1e-8, 1e-8))

	// V^T V = I
	var vtv mat.Dense
	vtv.Mul(res.Vectors.T(), res.Vectors)
	assert.True(t, gonumExtensions.AllClose(&vtv, gonumExtensions.Eye(5), 1e-10, 1e-10))
}

func TestEigSymDropsNegativeNoise(t *testing.T) {
	a := mat.NewSymDense(3, []float64{
		2, 0, 0,
		0, -1e-15, 0,
		0, 0, 1,
	})
	res, err := EigSym(a, DefaultTolerance())
	require.NoError(t, err)
	assert.InDeltaSlice(t, []float64{2, 1}, res.Values, 1e-14)
	assert.InDelta(t, 1, math.Abs(res.Vectors.At(0, 0)), 1e-15)
	assert.InDelta(t, 1, math.Abs(res.Vectors.At(2, 1)), 1e-15)

	res, err = EigSym(a, Tolerance{Atol: 10})
	require.NoError(t, err)
	assert.Zero(t, res.Len())
	assert.Nil(t, res.Vectors)
}

func TestModeCoefficients(t *testing.T) {
	vecs := mat.NewDense(2, 3, []float64{
		1, 2, 3,
		4, 5, 6,
	})
	values := []float64{4, 1, 9}
	got := ModeCoefficients(vecs, values, []int{2, 0})
	want := mat.NewDense(2, 2, []float64{
		1, 0.5,
		2, 2,
	})
	assert.True(t, mat.Equal(want, got))

	all := ModeCoefficients(vecs, values, []int{0, 1, 2})
	assert.Equal(t, mat.Col(nil, 2, all), mat.Col(nil, 0, got))
}

func TestProject(t *testing.T) {
	vecs := mat.NewDense(2, 2, []float64{
		1, 0,
		0, 1,
	})
	m := mat.NewDense(2, 3, []float64{
		2, 4, 6,
		3, 6, 9,
	})
	got := Project(vecs, []float64{4, 9}, m)
	want := mat.NewDense(2, 3, []float64{
		1, 2, 3,
		1, 2, 3,
	})
	assert.True(t, mat.Equal(want, got))
}

func sortedDescending(values []float64) bool {
	for i := 1; i < len(values); i++ {
		if values[i] > values[i-1] || values[i] < 0 {
			return false
		}
	}
	return true
}

func TestIndices(t *testing.T) {
	got, err := Indices([]int{3, 2, 5}, 2, 4)
	require.NoError(t, err)
	assert.Equal(t, []int{1, 0, 3}, got)

	_, err = Indices([]int{2, 6}, 2, 4)
	assert.ErrorIs(t, err, modred.ErrIndex)
	_, err = Indices([]int{1}, 2, 4)
	assert.ErrorIs(t, err, modred.ErrIndex)
	_, err = Indices([]int{5}, 0, 0)
	assert.ErrorIs(t, err, modred.ErrIndex)

	got, err = Indices(nil, 0, 0)
	require.NoError(t, err)
	assert.Empty(t, got)
}
