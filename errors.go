// Package modred holds the pieces shared by every model reduction package:
// the error taxonomy, the run configuration and logger construction.
//
// The numerical work lives in the sub packages. vectorspace computes
// inner product matrices and linear combinations of (possibly stored)
// vectors, pod and bpod build the correlation and Hankel matrices and their
// modes, and rom projects a system onto a pair of mode bases.
package modred

import (
	"errors"
	"fmt"
)

// Every message is prefixed with "modred:". Callers match with errors.Is,
// context is added with fmt.Errorf("...: %w", ErrX).
var (
	// ErrShape is returned when vector lengths, matrix dimensions or list
	// lengths don't agree.
	ErrShape = errors.New("modred: shape mismatch")

	// ErrEmpty is returned when an operation receives an empty collection of
	// vectors. It is a shape error.
	ErrEmpty = fmt.Errorf("%w: empty vector collection", ErrShape)

	// ErrTolerance is returned for negative or NaN truncation tolerances and
	// for a relative tolerance above one.
	ErrTolerance = errors.New("modred: invalid truncation tolerance")

	// ErrIndex is returned when a requested mode or vector index is outside
	// the valid range.
	ErrIndex = errors.New("modred: index out of range")

	// ErrBudget is returned when the memory budget can't hold the vectors a
	// single step of a computation needs.
	ErrBudget = errors.New("modred: memory budget too small")

	// ErrWeights is returned for inner product weights that don't define an
	// inner product: non-positive, non-finite or indefinite weights.
	ErrWeights = errors.New("modred: invalid inner product weights")

	// ErrAsymmetricWeights is returned when a full inner product weight
	// matrix isn't symmetric. It is an ErrWeights.
	ErrAsymmetricWeights = fmt.Errorf("%w: not symmetric", ErrWeights)

	// ErrTimestep is returned for a negative or non finite finite-difference
	// timestep.
	ErrTimestep = errors.New("modred: invalid timestep")

	// ErrNoDecomposition is returned when modes or projections are requested
	// before a decomposition was computed or loaded.
	ErrNoDecomposition = errors.New("modred: no decomposition available")

	// ErrNotFinite is returned when a matrix to be decomposed holds NaN or
	// Inf entries.
	ErrNotFinite = errors.New("modred: matrix is not finite")
)

// ShapeErrorf returns an error wrapping ErrShape with a formatted description
// of the mismatched shapes.
func ShapeErrorf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrShape, fmt.Sprintf(format, args...))
}

// IndexErrorf returns an error wrapping ErrIndex.
func IndexErrorf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrIndex, fmt.Sprintf(format, args...))
}
