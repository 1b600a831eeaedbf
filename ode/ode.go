// Package ode is a ordinary differential equation library that implements the
// Runge-Kutta methods https://en.wikipedia.org/wiki/Runge–Kutta_methods.
// The system is anything with a Derivative, such as the continuous state space
// models of package ssm.
package ode

import (
	"errors"
	"fmt"
	"sync"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// ErrNoConvergence is returned when the adaptive step size can't meet the
// error tolerance.
var ErrNoConvergence = errors.New("ode: adaptive Runge-Kutta doesn't converge")

// DifferentiableSystem returns the state derivative at time t.
type DifferentiableSystem interface {
	Derivative(t float64, state mat.Vector) mat.Vector
}

// RungeKutta holds the butcherTableau which describes the Runge Kutta method.
type RungeKutta struct {
	Description butcherTableau
}

// Stages returns the number of derivative evaluations per step.
func (rk RungeKutta) Stages() int { return rk.Description.stages }

// Compute takes a single step from t = from to t = to and overwrites value
// with the result. For tableaus with an embedded method the local error
// estimate is returned, otherwise nil.
func (rk RungeKutta) Compute(from, to float64, value *mat.VecDense, system DifferentiableSystem) *mat.VecDense {
	M := value.Len()
	// The precomputed derivative points
	K := make([]mat.Vector, rk.Description.stages)
	// Step length
	h := to - from
	tempV := mat.NewVecDense(M, nil)
	for index := range K {
		// Combine the previous derivative points according to the Butcher
		// Tableau.
		tempV.CopyVec(value)
		for index2, a := range rk.Description.rungeKuttaMatrix[index] {
			if a != 0 {
				tempV.AddScaledVec(tempV, h*a, K[index2])
			}
		}
		K[index] = mat.VecDenseCopyOf(system.Derivative(from+h*rk.Description.nodes[index], tempV))
	}

	var errVec *mat.VecDense
	if len(rk.Description.weights) == 2 {
		errVec = mat.NewVecDense(M, nil)
	}
	tempV.CopyVec(value)
	// Sum up the different contributions with relevant weights.
	for index, k := range K {
		tempV.AddScaledVec(tempV, h*rk.Description.weights[0][index], k)
		if errVec != nil {
			errVec.AddScaledVec(errVec, h*(rk.Description.weights[1][index]-rk.Description.weights[0][index]), k)
		}
	}
	value.CopyVec(tempV)
	return errVec
}

// ComputeMatrix steps every column of value from t = from to t = to, each
// column in its own go routine.
func (rk RungeKutta) ComputeMatrix(from, to float64, value mat.Matrix, system DifferentiableSystem) *mat.Dense {
	M, N := value.Dims()
	res := mat.NewDense(M, N, nil)

	var wg sync.WaitGroup
	wg.Add(N)
	for column := 0; column < N; column++ {
		go func(column int) {
			defer wg.Done()
			v := mat.NewVecDense(M, mat.Col(nil, column, value))
			rk.Compute(from, to, v, system)
			res.SetCol(column, v.RawVector().Data)
		}(column)
	}
	wg.Wait()
	return res
}

// AdaptiveCompute implements an adaptive version which for a
// given error tolerance err. Makes recursive steps such that the local error
// never exceeds the error tolerance. The tableau needs an embedded
// method.
func (rk RungeKutta) AdaptiveCompute(from, to, err float64, value *mat.VecDense, system DifferentiableSystem) error {
	if len(rk.Description.weights) != 2 {
		return errors.New("ode: tableau has no error estimate")
	}
	// Set max number of iterations
	const maxNumberOfIterations int = 10000

	M := value.Len()
	tmpState1 := mat.VecDenseCopyOf(value)
	tmpState2 := mat.NewVecDense(M, nil)

	count := 0
	tnow := from
	// Repeat until time to is reached
	for tnow < to {
		tnext := to
		// Repeat until target error is reached
		for {
			tmpState2.CopyVec(tmpState1)
			currentErrorVector := rk.Compute(tnow, tnext, tmpState2, system)
			if floats.Norm(currentErrorVector.RawVector().Data, 1) < err {
				break
			}
			// Half the next integration interval and try again
			tnext = (tnext-tnow)/2. + tnow

			count++
			if count >= maxNumberOfIterations {
				return fmt.Errorf("%w: %d step reductions at t = %v", ErrNoConvergence, count, tnow)
			}
		}
		tmpState1.CopyVec(tmpState2)
		tnow = tnext
	}
	value.CopyVec(tmpState1)
	return nil
}

// NewRK4 function returns a forth order Runge-Kutta object
func NewRK4() *RungeKutta {
	var temp butcherTableau
	temp.stages = 4
	temp.nodes = []float64{0, 1. / 2., 1. / 2., 1}
	temp.weights = [][]float64{{1. / 6., 1. / 3., 1. / 3., 1. / 6.}}
	temp.rungeKuttaMatrix = [][]float64{
		nil,
		{1. / 2.},
		{0, 1. / 2.},
		{0, 0, 1.},
	}
	rk := RungeKutta{temp}
	return &rk
}

// NewEulerMethod returns a pointer to a Runge-Kutta that does the Euler method.
func NewEulerMethod() *RungeKutta {
	var temp butcherTableau
	temp.stages = 1
	temp.nodes = []float64{0}
	temp.weights = [][]float64{{1}}
	temp.rungeKuttaMatrix = [][]float64{nil}
	rk := RungeKutta{temp}
	return &rk
}

// butcherTableau which describes the approximate solution, see https://en.wikipedia.org/wiki/Runge–Kutta_methods.
type butcherTableau struct {
	stages           int
	weights          [][]float64
	nodes            []float64
	rungeKuttaMatrix [][]float64
}

// NewFehlberg45 implements https://en.wikipedia.org/wiki/Runge%E2%80%93Kutta%E2%80%93Fehlberg_method
func NewFehlberg45() *RungeKutta {
	var temp butcherTableau
	temp.stages = 6
	temp.nodes = []float64{0, 1. / 4., 3. / 8., 12. / 13., 1., 1. / 2.}
	temp.weights = [][]float64{
		{16. / 135., 0, 6656. / 12825., 28561. / 56430., -9. / 50., 2. / 55.},
		{25. / 216., 0, 1408. / 2565., 2197. / 4104., -1. / 5., 0},
	}
	temp.rungeKuttaMatrix = [][]float64{
		nil,
		{1. / 4.},
		{3. / 32., 9. / 32.},
		{1932. / 2197., -7200. / 2197., 7296. / 2197.},
		{439. / 216., -8., 3680. / 513., -845. / 4104.},
		{-8. / 27., 2, -3544. / 2565., 1859. / 4104., -11. / 40.},
	}
	rk := RungeKutta{temp}
	return &rk
}
