package ssm

import (
	"math"

	"github.com/hammal/modred"
	"gonum.org/v1/gonum/mat"
)

// Gramians returns the controllability and observability gramians of the
// model over [0, t]
//
// Wc = int_0^t e^(As) B B^T e^(A^T s) ds
//
// Wo = int_0^t e^(A^T s) C^T C e^(As) ds
//
// The empirical gramians X X^T and Y Y^T of sampled direct and adjoint
// snapshots approximate these, so they serve as a reference for BPOD.
func (model LinearStateSpaceModel) Gramians(t float64) (wc, wo *mat.Dense, err error) {
	if t < 0 || math.IsNaN(t) || math.IsInf(t, 0) {
		return nil, nil, modred.ErrTimestep
	}
	var bbt, ctc mat.Dense
	bbt.Mul(model.B, model.B.T())
	ctc.Mul(model.C.T(), model.C)
	return gramian(model.A, &bbt, t), gramian(model.A.T(), &ctc, t), nil
}

// gramian computes int_0^t e^(As) Q e^(A^T s) ds from the block exponential
//
// exp([-A, Q; 0, A^T] t) = [F11, F12; 0, F22]
//
// as F22^T F12.
func gramian(A, Q mat.Matrix, t float64) *mat.Dense {
	n, _ := A.Dims()
	var negA mat.Dense
	negA.Scale(-1, A)
	// [-A Q]
	top := mat.NewDense(n, 2*n, nil)
	top.Augment(&negA, Q)
	// [0 A^T]
	bottom := mat.NewDense(n, 2*n, nil)
	bottom.Augment(mat.NewDense(n, n, nil), A.T())
	psi := mat.NewDense(2*n, 2*n, nil)
	psi.Stack(top, bottom)

	phi := computeStateTransistion(t, psi)
	f12 := phi.Slice(0, n, n, 2*n)
	f22 := phi.Slice(n, 2*n, n, 2*n)
	res := mat.NewDense(n, n, nil)
	res.Mul(f22.T(), f12)
	return res
}
