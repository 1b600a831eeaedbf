package ssm

import (
	"fmt"
	"math"
	"math/rand/v2"
	"sync"

	"github.com/hammal/modred"
	"github.com/hammal/modred/ode"
	"gonum.org/v1/gonum/mat"
)

// LinearStateSpaceModel struct represent the system
//
// x'(t) = A x(t) + B u(t)
//
// y(t) = C x(t)
//
// An impulse on input i starts the unforced system from column i of B.
type LinearStateSpaceModel struct {
	// State Dynamics
	A mat.Matrix
	// Input matrix
	B mat.Matrix
	// Observation matrix
	C mat.Matrix
}

// NewIntegratorChain returns a linear state space model of an integrator chain
// of size N driven at the first stage and observed as the sum of all stages.
func NewIntegratorChain(N int, stageGain float64) *LinearStateSpaceModel {
	a := make([]float64, N*N)
	c := make([]float64, N)
	stride := N
	for row := 0; row < N; row++ {
		c[row] = 1
		for column := 0; column < N; column++ {
			if row == (column + 1) {
				a[row*stride+column] = stageGain
			}
		}
	}
	b := make([]float64, N)
	b[0] = 1
	return &LinearStateSpaceModel{
		A: mat.NewDense(N, N, a),
		B: mat.NewDense(N, 1, b),
		C: mat.NewDense(1, N, c),
	}
}

// NewLinearStateSpaceModel creates a new Linear state space model
func NewLinearStateSpaceModel(A, B, C mat.Matrix) (*LinearStateSpaceModel, error) {
	if err := checkDims(A, B, C); err != nil {
		return nil, err
	}
	return &LinearStateSpaceModel{A, B, C}, nil
}

// NewRandomStableModel returns a model with real eigenvalues drawn uniformly
// from [-1.5, -0.5], random eigenvectors, and B and C uniform in [-1, 1].
func NewRandomStableModel(numStates, numInputs, numOutputs int, rng *rand.Rand) (*LinearStateSpaceModel, error) {
	A, B, C, err := randomSystem(numStates, numInputs, numOutputs, -1.5, -0.5, rng)
	if err != nil {
		return nil, err
	}
	return &LinearStateSpaceModel{A, B, C}, nil
}

// Derivative returns the unforced state derivative
// x'(t) = Ax(t)
// where state = x(t) at an arbitrary time t.
func (model LinearStateSpaceModel) Derivative(t float64, state mat.Vector) mat.Vector {
	var res mat.VecDense
	res.MulVec(model.A, state)
	return &res
}

// Observation returns the observed state
// y(t) = C x(t)
// where
// state = x(t) and t is an arbitrary time.
func (model LinearStateSpaceModel) Observation(t float64, state mat.Vector) mat.Vector {
	var res mat.VecDense
	res.MulVec(model.C, state)
	return &res
}

// computeStateTransistion computes the e^(At) where A is a square matrix and
// t is a scalar.
func computeStateTransistion(t float64, A mat.Matrix) *mat.Dense {
	var scaled, res mat.Dense
	scaled.Scale(t, A)
	res.Exp(&scaled)
	return &res
}

// ImpulseResponse returns the states e^(At) B, one n by InputSpaceOrder
// block per time.
func (model LinearStateSpaceModel) ImpulseResponse(t []float64) []*mat.Dense {
	return impulseResponse(model.A, model.B, t)
}

func impulseResponse(A, B mat.Matrix, t []float64) []*mat.Dense {
	var wg sync.WaitGroup
	res := make([]*mat.Dense, len(t))
	wg.Add(len(t))
	for index, time := range t {
		// Compute the different impulses as a go routine
		go func(i int, t float64) {
			defer wg.Done()
			// e^(A t) B
			var block mat.Dense
			block.Mul(computeStateTransistion(t, A), B)
			res[i] = &block
		}(index, time)
	}
	wg.Wait()
	return res
}

// DirectSnapshots returns the impulse response blocks side by side.
func (model LinearStateSpaceModel) DirectSnapshots(t []float64) *mat.Dense {
	return concat(model.ImpulseResponse(t))
}

// AdjointSnapshots returns the impulse response blocks of the adjoint model
// for the inner product with the given weights.
func (model LinearStateSpaceModel) AdjointSnapshots(t []float64, weights mat.Matrix) (*mat.Dense, error) {
	aAdj, bAdj, _, err := adjoint(model.A, model.B, model.C, weights)
	if err != nil {
		return nil, err
	}
	return concat(impulseResponse(aAdj, bAdj, t)), nil
}

func concat(blocks []*mat.Dense) *mat.Dense {
	if len(blocks) == 0 {
		return &mat.Dense{}
	}
	n, c := blocks[0].Dims()
	res := mat.NewDense(n, len(blocks)*c, nil)
	for i, b := range blocks {
		res.Slice(0, n, i*c, (i+1)*c).(*mat.Dense).Copy(b)
	}
	return res
}

func checkStep(dt float64) error {
	if dt <= 0 || math.IsNaN(dt) || math.IsInf(dt, 0) {
		return fmt.Errorf("%w: dt = %v", modred.ErrTimestep, dt)
	}
	return nil
}

// Advance integrates every column of states over dt with numSteps steps of
// rk.
func (model LinearStateSpaceModel) Advance(rk *ode.RungeKutta, states mat.Matrix, dt float64, numSteps int) (*mat.Dense, error) {
	if err := checkStep(dt); err != nil {
		return nil, err
	}
	return rk.Integrate(0, dt, numSteps, states, model)
}

// AdvanceAdaptive integrates every column of states over dt with the
// adaptive Runge-Kutta-Fehlberg method, keeping the local error of every
// step below tol.
func (model LinearStateSpaceModel) AdvanceAdaptive(states mat.Matrix, dt, tol float64) (*mat.Dense, error) {
	if err := checkStep(dt); err != nil {
		return nil, err
	}
	rk := ode.NewFehlberg45()
	m, n := states.Dims()
	res := mat.NewDense(m, n, nil)
	for k := 0; k < n; k++ {
		v := mat.NewVecDense(m, mat.Col(nil, k, states))
		if err := rk.AdaptiveCompute(0, dt, tol, v, model); err != nil {
			return nil, fmt.Errorf("column %d: %w", k, err)
		}
		res.SetCol(k, v.RawVector().Data)
	}
	return res, nil
}

// AdvanceExact returns e^(A dt) states.
func (model LinearStateSpaceModel) AdvanceExact(states mat.Matrix, dt float64) (*mat.Dense, error) {
	if err := checkStep(dt); err != nil {
		return nil, err
	}
	var res mat.Dense
	res.Mul(model.Discretize(dt).A, states)
	return &res, nil
}

// Discretize returns the discrete system sampled every dt, whose impulse
// response equals the continuous one at t = 0, dt, 2dt, ...
func (model LinearStateSpaceModel) Discretize(dt float64) LinearSystem {
	return LinearSystem{A: computeStateTransistion(dt, model.A), B: model.B, C: model.C}
}

// Sample returns the model sampled every dt.
func (model *LinearStateSpaceModel) Sample(dt float64) (SampledModel, error) {
	if err := checkStep(dt); err != nil {
		return SampledModel{}, err
	}
	return SampledModel{LinearStateSpaceModel: model, Dt: dt}, nil
}

// SampledModel is a continuous model whose impulse responses are taken at
// t = 0, Dt, 2Dt, ...
type SampledModel struct {
	*LinearStateSpaceModel
	Dt float64
}

// Times returns the first numSteps sample times.
func (s SampledModel) Times(numSteps int) []float64 {
	t := make([]float64, numSteps)
	for k := range t {
		t[k] = float64(k) * s.Dt
	}
	return t
}

// Matrices returns the continuous A, B and C.
func (s SampledModel) Matrices() (A, B, C mat.Matrix) { return s.A, s.B, s.C }

// Snapshots returns e^(A t) B and e^(A_adj t) B_adj at the first numSteps
// sample times.
func (s SampledModel) Snapshots(numSteps int, weights mat.Matrix) (direct, adjoint *mat.Dense, err error) {
	t := s.Times(numSteps)
	adjoint, err = s.AdjointSnapshots(t, weights)
	if err != nil {
		return nil, nil, err
	}
	return s.DirectSnapshots(t), adjoint, nil
}

// Observe returns C x, column by column.
func (s SampledModel) Observe(x mat.Matrix) *mat.Dense {
	m, n := x.Dims()
	y := mat.NewDense(s.OutputSpaceOrder(), n, nil)
	for k := 0; k < n; k++ {
		obs := s.Observation(0, mat.NewVecDense(m, mat.Col(nil, k, x)))
		y.SetCol(k, mat.Col(nil, 0, obs))
	}
	return y
}

func (ssm LinearStateSpaceModel) StateSpaceOrder() int {
	m, _ := ssm.A.Dims()
	return m
}

func (ssm LinearStateSpaceModel) OutputSpaceOrder() int {
	m, _ := ssm.C.Dims()
	return m
}

func (ssm LinearStateSpaceModel) InputSpaceOrder() int {
	_, n := ssm.B.Dims()
	return n
}
