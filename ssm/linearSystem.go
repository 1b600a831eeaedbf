package ssm

import (
	"fmt"
	"math/rand/v2"

	"github.com/hammal/modred"
	"github.com/hammal/modred/gonumExtensions"
	"gonum.org/v1/gonum/mat"
)

// LinearSystem is the discrete time system
//
// x[k+1] = A x[k] + B u[k]
//
// y[k] = C x[k]
type LinearSystem struct {
	A mat.Matrix
	B mat.Matrix
	C mat.Matrix
}

// NewLinearSystem checks that the system matrices fit together.
func NewLinearSystem(A, B, C mat.Matrix) (LinearSystem, error) {
	if err := checkDims(A, B, C); err != nil {
		return LinearSystem{}, err
	}
	return LinearSystem{A, B, C}, nil
}

func checkDims(A, B, C mat.Matrix) error {
	m, n := A.Dims()
	mB, _ := B.Dims()
	_, nC := C.Dims()
	if m != n || mB != m || nC != m {
		return modred.ShapeErrorf("A is %dx%d, B has %d rows, C has %d columns", m, n, mB, nC)
	}
	return nil
}

// NewRandomStableSystem returns a system with eigenvalues drawn uniformly
// from [0.8, 0.85], random eigenvectors, and B and C uniform in [-1, 1].
func NewRandomStableSystem(numStates, numInputs, numOutputs int, rng *rand.Rand) (LinearSystem, error) {
	A, B, C, err := randomSystem(numStates, numInputs, numOutputs, 0.8, 0.85, rng)
	if err != nil {
		return LinearSystem{}, err
	}
	return LinearSystem{A: A, B: B, C: C}, nil
}

// randomSystem draws A = V^-1 diag(e) V with e uniform in [lo, hi].
func randomSystem(numStates, numInputs, numOutputs int, lo, hi float64, rng *rand.Rand) (A, B, C *mat.Dense, err error) {
	if numStates < 1 || numInputs < 1 || numOutputs < 1 {
		return nil, nil, nil, modred.ShapeErrorf("%d states, %d inputs, %d outputs", numStates, numInputs, numOutputs)
	}
	eigVals := make([]float64, numStates)
	for i := range eigVals {
		eigVals[i] = (hi-lo)*rng.Float64() + lo
	}
	eigVecs := uniform(rng, numStates, numStates)

	var inv, tmp mat.Dense
	if err := inv.Inverse(eigVecs); err != nil {
		return nil, nil, nil, fmt.Errorf("ssm: eigenvectors: %w", err)
	}
	tmp.Mul(&inv, gonumExtensions.Diag(eigVals))
	A = mat.NewDense(numStates, numStates, nil)
	A.Mul(&tmp, eigVecs)
	return A, uniform(rng, numStates, numInputs), uniform(rng, numOutputs, numStates), nil
}

func uniform(rng *rand.Rand, r, c int) *mat.Dense {
	data := make([]float64, r*c)
	for i := range data {
		data[i] = 2*rng.Float64() - 1
	}
	return mat.NewDense(r, c, data)
}

// Matrices returns A, B and C.
func (sys LinearSystem) Matrices() (A, B, C mat.Matrix) { return sys.A, sys.B, sys.C }

// Snapshots returns the direct and adjoint impulse responses over numSteps
// steps.
func (sys LinearSystem) Snapshots(numSteps int, weights mat.Matrix) (direct, adjoint *mat.Dense, err error) {
	adjoint, err = sys.AdjointImpulseResponse(numSteps, weights)
	if err != nil {
		return nil, nil, err
	}
	return sys.DirectImpulseResponse(numSteps), adjoint, nil
}

// Observe returns C x.
func (sys LinearSystem) Observe(x mat.Matrix) *mat.Dense {
	var y mat.Dense
	y.Mul(sys.C, x)
	return &y
}

func (sys LinearSystem) InputSpaceOrder() int {
	_, N := sys.B.Dims()
	return N
}

func (sys LinearSystem) OutputSpaceOrder() int {
	M, _ := sys.C.Dims()
	return M
}

func (sys LinearSystem) StateSpaceOrder() int {
	M, _ := sys.A.Dims()
	return M
}

// DirectImpulseResponse returns [B, AB, A^2B, ...] with numSteps blocks of
// InputSpaceOrder columns.
func (sys LinearSystem) DirectImpulseResponse(numSteps int) *mat.Dense {
	n, numInputs := sys.StateSpaceOrder(), sys.InputSpaceOrder()
	res := mat.NewDense(n, numSteps*numInputs, nil)
	block := mat.DenseCopyOf(sys.B)
	for step := 0; step < numSteps; step++ {
		res.Slice(0, n, step*numInputs, (step+1)*numInputs).(*mat.Dense).Copy(block)
		var next mat.Dense
		next.Mul(sys.A, block)
		block = &next
	}
	return res
}

// Adjoint returns the adjoint system for the inner product with the given
// weights. nil weights give the Euclidean inner product, a vector diagonal
// weights.
func (sys LinearSystem) Adjoint(weights mat.Matrix) (LinearSystem, error) {
	aAdj, bAdj, cAdj, err := adjoint(sys.A, sys.B, sys.C, weights)
	if err != nil {
		return LinearSystem{}, err
	}
	return LinearSystem{A: aAdj, B: bAdj, C: cAdj}, nil
}

// AdjointImpulseResponse returns the direct impulse response of the adjoint,
// [B_adj, A_adj B_adj, ...] with B_adj = W^-1 C^T, in numSteps blocks of
// OutputSpaceOrder columns.
func (sys LinearSystem) AdjointImpulseResponse(numSteps int, weights mat.Matrix) (*mat.Dense, error) {
	adj, err := sys.Adjoint(weights)
	if err != nil {
		return nil, err
	}
	return adj.DirectImpulseResponse(numSteps), nil
}
