// Package ssm holds the linear time invariant systems whose impulse responses
// are reduced: discrete systems x[k+1] = A x[k] + B u[k], y[k] = C x[k] and
// continuous systems x'(t) = A x(t) + B u(t), y(t) = C x(t).
//
// The adjoint of a system is taken with respect to the inner product
// <u, v> = u^T W v
// which gives A_adj = W^-1 A^T W, B_adj = W^-1 C^T and C_adj = B^T W. Its
// impulse response pairs with the direct one into a Hankel matrix whose
// blocks depend only on the sum of the block indices.
package ssm

import (
	"gonum.org/v1/gonum/mat"
)

// System is a system whose impulse responses are sampled at equally spaced
// steps. LinearSystem samples every step of a discrete system, SampledModel
// a continuous model every Dt.
type System interface {
	// Matrices returns A, B and C.
	Matrices() (A, B, C mat.Matrix)
	// Snapshots returns the direct and adjoint impulse responses at the
	// first numSteps samples, in step major order. The adjoint is taken
	// under the inner product with the given weights.
	Snapshots(numSteps int, weights mat.Matrix) (direct, adjoint *mat.Dense, err error)
	// Observe returns the outputs C x of the states in the columns of x.
	Observe(x mat.Matrix) *mat.Dense

	StateSpaceOrder() int
	InputSpaceOrder() int
	OutputSpaceOrder() int
}
