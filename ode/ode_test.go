package ode

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

// linear is x' = A x.
type linear struct{ A mat.Matrix }

func (l linear) Derivative(t float64, state mat.Vector) mat.Vector {
	var res mat.VecDense
	res.MulVec(l.A, state)
	return &res
}

func TestRk4(t *testing.T) {
	assert.Equal(t, 4, NewRK4().Stages())
	assert.Equal(t, 1, NewEulerMethod().Stages())
	assert.Equal(t, 6, NewFehlberg45().Stages())
}

func TestEuler(t *testing.T) {
	sys := linear{mat.NewDense(1, 1, []float64{-2})}
	x := mat.NewVecDense(1, []float64{1})
	errVec := NewEulerMethod().Compute(0, 0.1, x, sys)
	assert.Nil(t, errVec)
	assert.InDelta(t, 0.8, x.AtVec(0), 1e-15)
}

func TestCompute(t *testing.T) {
	// Rotation, the exact solution is e^(At) x0.
	A := mat.NewDense(2, 2, []float64{0, -1, 1, 0})
	sys := linear{A}
	x0 := mat.NewDense(2, 2, []float64{1, 0, 0, 1})

	got, err := NewRK4().Integrate(0, 1, 100, x0, sys)
	require.NoError(t, err)

	var want mat.Dense
	want.Scale(1, A)
	want.Exp(&want)
	assert.True(t, mat.EqualApprox(got, &want, 1e-9))

	_, err = NewRK4().Integrate(0, 1, 0, x0, sys)
	assert.Error(t, err)
}

func TestAdaptiveCompute(t *testing.T) {
	sys := linear{mat.NewDense(1, 1, []float64{-1})}
	x := mat.NewVecDense(1, []float64{1})
	require.NoError(t, NewFehlberg45().AdaptiveCompute(0, 2, 1e-10, x, sys))
	assert.InDelta(t, math.Exp(-2), x.AtVec(0), 1e-7)

	assert.Error(t, NewRK4().AdaptiveCompute(0, 1, 1e-10, x, sys))
}
