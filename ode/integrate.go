package ode

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
)

// Integrate advances every column of value from t = from to t = to in
// numSteps equal steps.
func (rk RungeKutta) Integrate(from, to float64, numSteps int, value mat.Matrix, system DifferentiableSystem) (*mat.Dense, error) {
	if numSteps < 1 {
		return nil, fmt.Errorf("ode: %d integration steps", numSteps)
	}
	h := (to - from) / float64(numSteps)
	res := mat.DenseCopyOf(value)
	for step := 0; step < numSteps; step++ {
		t := from + float64(step)*h
		res = rk.ComputeMatrix(t, t+h, res, system)
	}
	return res, nil
}
