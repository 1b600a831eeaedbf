package rom

import (
	"math/rand/v2"
	"path/filepath"
	"sync"
	"testing"

	"github.com/hammal/modred"
	"github.com/hammal/modred/gonumExtensions"
	"github.com/hammal/modred/ode"
	"github.com/hammal/modred/parallel"
	"github.com/hammal/modred/sqlitestore"
	"github.com/hammal/modred/ssm"
	"github.com/hammal/modred/vectors"
	"github.com/hammal/modred/vectorspace"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

const (
	numStates       = 30
	numDirectModes  = 10
	numAdjointModes = 8
	numROMModes     = 7
	numInputs       = 2
	numOutputs      = 2
	decimal         = 1e-8
)

func random(rng *rand.Rand, r, c int) *mat.Dense {
	data := make([]float64, r*c)
	for i := range data {
		data[i] = rng.Float64()
	}
	return mat.NewDense(r, c, data)
}

type bases struct {
	direct, adjoint, derivs, inputs, outputs *mat.Dense
}

func newBases(seed uint64) bases {
	rng := rand.New(rand.NewPCG(seed, seed))
	return bases{
		direct:  random(rng, numStates, numDirectModes),
		adjoint: random(rng, numStates, numAdjointModes),
		derivs:  random(rng, numStates, numDirectModes),
		inputs:  random(rng, numStates, numInputs),
		outputs: random(rng, numStates, numOutputs),
	}
}

func newFormer(t *testing.T, cfg vectorspace.Config) *Former {
	t.Helper()
	if cfg.MaxVecsPerNode == 0 {
		cfg.MaxVecsPerNode = 5
	}
	space, err := vectorspace.New(cfg)
	require.NoError(t, err)
	f, err := New(Config{Space: space})
	require.NoError(t, err)
	return f
}

// firstColumns returns the first k columns of m.
func firstColumns(m *mat.Dense, k int) mat.Matrix {
	r, _ := m.Dims()
	return m.Slice(0, r, 0, k)
}

func TestForm(t *testing.T) {
	x := newBases(1)
	f := newFormer(t, vectorspace.Config{})
	rom, err := f.Form(
		vectors.ColumnHandles(x.adjoint),
		vectors.ColumnHandles(x.direct),
		Dynamics{Derivs: vectors.ColumnHandles(x.derivs)},
		vectors.ColumnHandles(x.inputs),
		vectors.ColumnHandles(x.outputs),
		numROMModes,
	)
	require.NoError(t, err)

	adj := firstColumns(x.adjoint, numROMModes)
	var a, b, c mat.Dense
	a.Mul(adj.T(), firstColumns(x.derivs, numROMModes))
	b.Mul(adj.T(), x.inputs)
	c.Mul(x.outputs.T(), firstColumns(x.direct, numROMModes))

	assert.True(t, gonumExtensions.AllClose(rom.A, &a, 0, decimal))
	assert.True(t, gonumExtensions.AllClose(rom.B, &b, 0, decimal))
	assert.True(t, gonumExtensions.AllClose(rom.C, &c, 0, decimal))

	ra, ca := rom.A.Dims()
	assert.Equal(t, [2]int{numROMModes, numROMModes}, [2]int{ra, ca})
	rb, cb := rom.B.Dims()
	assert.Equal(t, [2]int{numROMModes, numInputs}, [2]int{rb, cb})
	rc, cc := rom.C.Dims()
	assert.Equal(t, [2]int{numOutputs, numROMModes}, [2]int{rc, cc})
}

func TestFormWeighted(t *testing.T) {
	x := newBases(2)
	rng := rand.New(rand.NewPCG(3, 3))
	w := make([]float64, numStates)
	for i := range w {
		w[i] = rng.Float64() + 0.5
	}
	ip, err := vectors.DiagonalWeights(w)
	require.NoError(t, err)
	f := newFormer(t, vectorspace.Config{InnerProduct: ip})

	c, err := f.FormC(vectors.ColumnHandles(x.outputs), vectors.ColumnHandles(x.direct), numROMModes)
	require.NoError(t, err)

	var wd, want mat.Dense
	wd.Mul(gonumExtensions.Diag(w), firstColumns(x.direct, numROMModes))
	want.Mul(x.outputs.T(), &wd)
	assert.True(t, gonumExtensions.AllClose(c, &want, 0, decimal))
}

func TestFormAFiniteDifference(t *testing.T) {
	rng := rand.New(rand.NewPCG(4, 4))
	A := random(rng, numStates, numStates)
	A.Scale(0.1, A)
	for i := 0; i < numStates; i++ {
		A.Set(i, i, A.At(i, i)-1)
	}
	model, err := ssm.NewLinearStateSpaceModel(A, random(rng, numStates, numInputs), random(rng, numOutputs, numStates))
	require.NoError(t, err)

	direct := random(rng, numStates, numDirectModes)
	adjoint := random(rng, numStates, numAdjointModes)
	const dt = 1e-3
	advanced, err := model.Advance(ode.NewRK4(), direct, dt, 4)
	require.NoError(t, err)

	f := newFormer(t, vectorspace.Config{})
	fd, err := f.FormA(vectors.ColumnHandles(adjoint), Dynamics{
		Modes:  vectors.ColumnHandles(direct),
		Derivs: vectors.ColumnHandles(advanced),
		Dt:     dt,
	}, numROMModes)
	require.NoError(t, err)

	adj := firstColumns(adjoint, numROMModes)
	var diff, want mat.Dense
	diff.Sub(advanced, direct)
	diff.Scale(1/dt, &diff)
	want.Mul(adj.T(), firstColumns(&diff, numROMModes))
	assert.True(t, gonumExtensions.AllClose(fd, &want, 1e-8, 1e-8))

	// Derivatives stored first give the same matrix.
	derivs := vectors.EmptyHandles(numDirectModes)
	require.NoError(t, f.ComputeDerivatives(vectors.ColumnHandles(direct), vectors.ColumnHandles(advanced), derivs, dt))
	stored, err := f.FormA(vectors.ColumnHandles(adjoint), Dynamics{Derivs: derivs}, numROMModes)
	require.NoError(t, err)
	assert.True(t, gonumExtensions.AllClose(stored, fd, 1e-8, 1e-8))

	// Close to the projection of the exact derivative.
	var ad, exact, errMat mat.Dense
	ad.Mul(A, direct)
	exact.Mul(adj.T(), firstColumns(&ad, numROMModes))
	errMat.Sub(fd, &exact)
	assert.Less(t, mat.Norm(&errMat, 2)/mat.Norm(&exact, 2), 1e-2)
}

func TestComputeDerivatives(t *testing.T) {
	x := newBases(5)
	f := newFormer(t, vectorspace.Config{MaxVecsPerNode: 3})
	derivs := vectors.EmptyHandles(numDirectModes)
	const dt = 0.25
	require.NoError(t, f.ComputeDerivatives(vectors.ColumnHandles(x.direct), vectors.ColumnHandles(x.derivs), derivs, dt))

	got, err := vectors.Matrix(derivs)
	require.NoError(t, err)
	var want mat.Dense
	want.Sub(x.derivs, x.direct)
	want.Scale(1/dt, &want)
	assert.True(t, gonumExtensions.AllClose(got, &want, 1e-12, 1e-12))
}

// With adjoint modes biorthogonal to a complete set of direct modes the
// reduced model is a similarity transform of the full one.
func TestFormSimilarityTransform(t *testing.T) {
	const n = 6
	rng := rand.New(rand.NewPCG(6, 6))
	sys, err := ssm.NewRandomStableSystem(n, numInputs, numOutputs, rng)
	require.NoError(t, err)

	phi := random(rng, n, n)
	for i := 0; i < n; i++ {
		phi.Set(i, i, phi.At(i, i)+n)
	}
	var inv mat.Dense
	require.NoError(t, inv.Inverse(phi))
	psi := mat.DenseCopyOf(inv.T())
	var aPhi mat.Dense
	aPhi.Mul(sys.A, phi)

	outputs := mat.DenseCopyOf(sys.C.T())
	f := newFormer(t, vectorspace.Config{})
	rom, err := f.Form(
		vectors.ColumnHandles(psi),
		vectors.ColumnHandles(phi),
		Dynamics{Derivs: vectors.ColumnHandles(&aPhi)},
		vectors.ColumnHandles(sys.B),
		vectors.ColumnHandles(outputs),
		n,
	)
	require.NoError(t, err)

	markov := func(a, b, c mat.Matrix, k int) *mat.Dense {
		var x mat.Dense
		x.CloneFrom(b)
		for i := 0; i < k; i++ {
			var next mat.Dense
			next.Mul(a, &x)
			x.CloneFrom(&next)
		}
		var y mat.Dense
		y.Mul(c, &x)
		return &y
	}
	for k := 0; k < 5; k++ {
		assert.True(t, gonumExtensions.AllClose(markov(rom.A, rom.B, rom.C, k), markov(sys.A, sys.B, sys.C, k), 1e-8, 1e-8), "k = %d", k)
	}
}

func TestFormErrors(t *testing.T) {
	x := newBases(7)
	f := newFormer(t, vectorspace.Config{})
	adjoint := vectors.ColumnHandles(x.adjoint)
	derivs := vectors.ColumnHandles(x.derivs)

	_, err := f.FormA(adjoint, Dynamics{Derivs: derivs}, numAdjointModes+1)
	assert.ErrorIs(t, err, modred.ErrShape)
	_, err = f.FormA(adjoint, Dynamics{Derivs: derivs}, 0)
	assert.ErrorIs(t, err, modred.ErrShape)
	_, err = f.FormA(adjoint, Dynamics{Derivs: derivs, Dt: 0.1}, numROMModes)
	assert.ErrorIs(t, err, modred.ErrShape, "finite differences need the direct modes")
	_, err = f.FormA(adjoint, Dynamics{Derivs: derivs, Dt: -1}, numROMModes)
	assert.ErrorIs(t, err, modred.ErrTimestep)

	_, err = f.FormB(adjoint, nil, numROMModes)
	assert.ErrorIs(t, err, modred.ErrEmpty)
	_, err = f.FormC(vectors.ColumnHandles(x.outputs), vectors.ColumnHandles(x.direct), numDirectModes+1)
	assert.ErrorIs(t, err, modred.ErrShape)

	direct := vectors.ColumnHandles(x.direct)
	assert.ErrorIs(t, f.ComputeDerivatives(direct, derivs, vectors.EmptyHandles(1), 0.1), modred.ErrShape)
	assert.ErrorIs(t, f.ComputeDerivatives(direct, derivs, vectors.EmptyHandles(numDirectModes), 0), modred.ErrTimestep)
	assert.ErrorIs(t, f.ComputeDerivatives(nil, nil, nil, 0.1), modred.ErrEmpty)
}

func TestPut(t *testing.T) {
	x := newBases(8)
	dir := t.TempDir()
	f := newFormer(t, vectorspace.Config{})
	rom, err := f.Form(vectors.ColumnHandles(x.adjoint), vectors.ColumnHandles(x.direct),
		Dynamics{Derivs: vectors.ColumnHandles(x.derivs)},
		vectors.ColumnHandles(x.inputs), vectors.ColumnHandles(x.outputs), numROMModes)
	require.NoError(t, err)

	paths := []string{filepath.Join(dir, "A.txt"), filepath.Join(dir, "B.txt"), filepath.Join(dir, "C.txt")}
	require.NoError(t, f.Put(rom, paths[0], paths[1], paths[2]))
	for i, want := range []*mat.Dense{rom.A, rom.B, rom.C} {
		got, err := vectors.LoadArrayText(paths[i])
		require.NoError(t, err)
		assert.True(t, gonumExtensions.AllClose(got, want, 1e-14, 1e-14))
	}

	store, err := sqlitestore.NewSQLite(filepath.Join(dir, "rom.db"))
	require.NoError(t, err)
	defer store.Close()
	space, err := vectorspace.New(vectorspace.Config{})
	require.NoError(t, err)
	fs, err := New(Config{Space: space, Save: store.Put})
	require.NoError(t, err)
	require.NoError(t, fs.Put(rom, "A", "B", "C"))
	got, err := store.Get("B")
	require.NoError(t, err)
	assert.True(t, mat.Equal(got, rom.B))
}

func TestFormParallel(t *testing.T) {
	x := newBases(9)
	serial := newFormer(t, vectorspace.Config{})
	want, err := serial.Form(vectors.ColumnHandles(x.adjoint), vectors.ColumnHandles(x.direct),
		Dynamics{Derivs: vectors.ColumnHandles(x.derivs)},
		vectors.ColumnHandles(x.inputs), vectors.ColumnHandles(x.outputs), numROMModes)
	require.NoError(t, err)

	for _, numProcs := range []int{2, 3} {
		g, err := parallel.NewGroup(numProcs, 1)
		require.NoError(t, err)
		var mu sync.Mutex
		var roms []*ROM
		err = g.Run(func(c parallel.Comm) error {
			space, err := vectorspace.New(vectorspace.Config{Comm: c, MaxVecsPerNode: 2 * numProcs})
			if err != nil {
				return err
			}
			f, err := New(Config{Space: space})
			if err != nil {
				return err
			}
			rom, err := f.Form(vectors.ColumnHandles(x.adjoint), vectors.ColumnHandles(x.direct),
				Dynamics{Derivs: vectors.ColumnHandles(x.derivs)},
				vectors.ColumnHandles(x.inputs), vectors.ColumnHandles(x.outputs), numROMModes)
			if err != nil {
				return err
			}
			mu.Lock()
			roms = append(roms, rom)
			mu.Unlock()
			return nil
		})
		require.NoError(t, err)
		require.Len(t, roms, numProcs)
		for _, rom := range roms {
			assert.True(t, gonumExtensions.AllClose(rom.A, want.A, 1e-12, 1e-12))
			assert.True(t, gonumExtensions.AllClose(rom.B, want.B, 1e-12, 1e-12))
			assert.True(t, gonumExtensions.AllClose(rom.C, want.C, 1e-12, 1e-12))
		}
	}
}
