package vectors

import (
	"math"
	"math/rand"
	"path/filepath"
	"testing"

	"github.com/hammal/modred"
	"github.com/hammal/modred/gonumExtensions"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

func randomMatrix(rng *rand.Rand, r, c int) *mat.Dense {
	data := make([]float64, r*c)
	for i := range data {
		data[i] = rng.Float64()
	}
	return mat.NewDense(r, c, data)
}

func asVectors(m mat.Matrix) []mat.Vector {
	cols := gonumExtensions.Columns(m)
	res := make([]mat.Vector, len(cols))
	for i, c := range cols {
		res[i] = c
	}
	return res
}

func TestInnerProductsMatchMatrixProducts(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	const n = 6
	a := randomMatrix(rng, n, 4)
	b := randomMatrix(rng, n, 3)

	diag := make([]float64, n)
	for i := range diag {
		diag[i] = 1 + 0.02*rng.Float64()
	}
	full := gonumExtensions.Eye(n)
	full.Set(0, 0, 1.01)
	full.Set(2, 1, 0.02)
	full.Set(1, 2, 0.02)

	diagIP, err := DiagonalWeights(diag)
	require.NoError(t, err)
	fullIP, err := FullWeights(full)
	require.NoError(t, err)

	for _, tc := range []struct {
		name    string
		ip      InnerProduct
		weights mat.Matrix
	}{
		{"euclidean", Euclidean(), gonumExtensions.Eye(n)},
		{"diagonal", diagIP, gonumExtensions.Diag(diag)},
		{"full", fullIP, full},
	} {
		t.Run(tc.name, func(t *testing.T) {
			var tmp, want mat.Dense
			tmp.Mul(tc.weights, b)
			want.Mul(a.T(), &tmp)

			got, err := InnerProductMatrix(asVectors(a), asVectors(b), tc.ip)
			require.NoError(t, err)
			assert.True(t, gonumExtensions.AllClose(got, &want, 1e-12, 1e-14))
		})
	}
}

func TestWeighted(t *testing.T) {
	ip, err := Weighted(nil)
	require.NoError(t, err)
	v, err := ip(mat.NewVecDense(2, []float64{1, 2}), mat.NewVecDense(2, []float64{3, 4}))
	require.NoError(t, err)
	assert.Equal(t, 11., v)

	ip, err = Weighted(mat.NewVecDense(2, []float64{2, 3}))
	require.NoError(t, err)
	v, err = ip(mat.NewVecDense(2, []float64{1, 2}), mat.NewVecDense(2, []float64{3, 4}))
	require.NoError(t, err)
	assert.Equal(t, 30., v)
}

func TestWeightValidation(t *testing.T) {
	_, err := FullWeights(mat.NewDense(2, 2, []float64{1, 0.5, 0, 1}))
	assert.ErrorIs(t, err, modred.ErrAsymmetricWeights)

	_, err = FullWeights(mat.NewDense(2, 3, nil))
	assert.ErrorIs(t, err, modred.ErrShape)

	_, err = DiagonalWeights([]float64{1, -1})
	assert.ErrorIs(t, err, modred.ErrWeights)

	_, err = DiagonalWeights([]float64{1, math.Inf(1)})
	assert.ErrorIs(t, err, modred.ErrWeights)

	// Symmetric but indefinite.
	_, err = FullWeights(mat.NewDense(2, 2, []float64{1, 2, 2, 1}))
	assert.ErrorIs(t, err, modred.ErrWeights)
	assert.NotErrorIs(t, err, modred.ErrAsymmetricWeights)

	_, err = FullWeights(mat.NewDense(2, 2, []float64{1, 0, 0, math.NaN()}))
	assert.ErrorIs(t, err, modred.ErrWeights)

	_, err = DiagonalWeights(nil)
	assert.ErrorIs(t, err, modred.ErrEmpty)
}

func TestInnerProductDimensionMismatch(t *testing.T) {
	short := mat.NewVecDense(2, nil)
	long := mat.NewVecDense(3, nil)
	_, err := Euclidean()(short, long)
	assert.ErrorIs(t, err, modred.ErrShape)

	ip, err := DiagonalWeights([]float64{1, 1, 1})
	require.NoError(t, err)
	_, err = ip(short, short)
	assert.ErrorIs(t, err, modred.ErrShape)

	_, err = InnerProductMatrix([]mat.Vector{short}, []mat.Vector{long}, Euclidean())
	assert.ErrorIs(t, err, modred.ErrShape)

	_, err = InnerProductMatrix(nil, []mat.Vector{long}, Euclidean())
	assert.ErrorIs(t, err, modred.ErrEmpty)
}

func TestLinearCombinations(t *testing.T) {
	rng := rand.New(rand.NewSource(2))
	basis := randomMatrix(rng, 5, 4)
	coeffs := randomMatrix(rng, 4, 3)

	got, err := LinearCombinations(asVectors(basis), coeffs)
	require.NoError(t, err)
	require.Len(t, got, 3)

	var want mat.Dense
	want.Mul(basis, coeffs)
	vecs := make([]mat.Vector, len(got))
	for i, v := range got {
		vecs[i] = v
	}
	assert.True(t, gonumExtensions.AllClose(gonumExtensions.ColumnMatrix(vecs), &want, 1e-12, 1e-14))

	// Each column is computed on its own.
	single, err := LinearCombinations(asVectors(basis), coeffs.Slice(0, 4, 2, 3))
	require.NoError(t, err)
	assert.Equal(t, got[2].RawVector().Data, single[0].RawVector().Data)

	_, err = LinearCombinations(asVectors(basis), randomMatrix(rng, 3, 3))
	assert.ErrorIs(t, err, modred.ErrShape)
	_, err = LinearCombinations(nil, coeffs)
	assert.ErrorIs(t, err, modred.ErrEmpty)
}

func TestArrayTextRoundTrip(t *testing.T) {
	rng := rand.New(rand.NewSource(3))
	m := randomMatrix(rng, 4, 3)
	m.Set(0, 0, -1e-300)
	m.Set(1, 1, 12345.678901234567)
	path := filepath.Join(t.TempDir(), "m.txt")

	require.NoError(t, SaveArrayText(m, path))
	got, err := LoadArrayText(path)
	require.NoError(t, err)
	assert.True(t, mat.Equal(m, got))
}

func TestArrayTextHandles(t *testing.T) {
	dir := t.TempDir()
	handles := ArrayTextHandles(filepath.Join(dir, "vec_%03d.txt"), Range(2, 3))
	require.Len(t, handles, 3)
	assert.Equal(t, filepath.Join(dir, "vec_002.txt"), handles[0].(ArrayTextHandle).Path)

	v := mat.NewVecDense(3, []float64{1.5, -2, 1e-12})
	require.NoError(t, handles[1].Put(v))
	got, err := handles[1].Get()
	require.NoError(t, err)
	assert.True(t, mat.Equal(v, got))

	_, err = handles[2].Get()
	assert.Error(t, err)
}

func TestMemoryHandles(t *testing.T) {
	m := mat.NewDense(2, 3, []float64{1, 2, 3, 4, 5, 6})
	handles := ColumnHandles(m)
	got, err := Matrix(handles)
	require.NoError(t, err)
	assert.True(t, mat.Equal(m, got))

	mixed := []Handle{NewMemoryHandle(mat.NewVecDense(2, nil)), NewMemoryHandle(mat.NewVecDense(3, nil))}
	_, err = Matrix(mixed)
	assert.ErrorIs(t, err, modred.ErrShape)

	empty := EmptyHandles(1)
	_, err = empty[0].Get()
	assert.ErrorIs(t, err, ErrUnset)

	v := mat.NewVecDense(2, []float64{1, 2})
	require.NoError(t, empty[0].Put(v))
	v.SetVec(0, 100)
	stored, err := empty[0].Get()
	require.NoError(t, err)
	assert.Equal(t, 1., stored.AtVec(0))
}
