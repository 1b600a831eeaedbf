package bpod

import (
	"fmt"

	"github.com/hammal/modred"
	"github.com/hammal/modred/vectors"
	"gonum.org/v1/gonum/mat"
)

// ComputeHankelMatrix returns H[i, j] = <adjoint[i], direct[j]>.
//
// For impulse responses the numOutputs by numInputs block (i, j) depends
// only on i+j. Only the first block column and the last block row are
// computed, which hold every block index sum once, and every other block
// is copied from the computed block with the same sum. The numbers of
// direct and adjoint steps may differ.
func (b *BPOD) ComputeHankelMatrix(direct, adjoint []vectors.Handle, numInputs, numOutputs int) (*mat.Dense, error) {
	if len(direct) == 0 || len(adjoint) == 0 {
		return nil, modred.ErrEmpty
	}
	if numInputs < 1 || numOutputs < 1 {
		return nil, modred.ShapeErrorf("%d inputs and %d outputs", numInputs, numOutputs)
	}
	if len(direct)%numInputs != 0 {
		return nil, modred.ShapeErrorf("%d direct vectors are not a whole number of steps with %d inputs", len(direct), numInputs)
	}
	if len(adjoint)%numOutputs != 0 {
		return nil, modred.ShapeErrorf("%d adjoint vectors are not a whole number of steps with %d outputs", len(adjoint), numOutputs)
	}
	numDirectSteps := len(direct) / numInputs
	numAdjointSteps := len(adjoint) / numOutputs
	b.logger.Debug("computing Hankel matrix",
		"directSteps", numDirectSteps, "adjointSteps", numAdjointSteps,
		"inputs", numInputs, "outputs", numOutputs)

	firstCol, err := b.space.ComputeInnerProductMatrix(adjoint, direct[:numInputs])
	if err != nil {
		return nil, fmt.Errorf("first block column: %w", err)
	}
	lastRowStart := (numAdjointSteps - 1) * numOutputs
	var lastRow *mat.Dense
	if numDirectSteps > 1 {
		lastRow, err = b.space.ComputeInnerProductMatrix(adjoint[lastRowStart:], direct[numInputs:])
		if err != nil {
			return nil, fmt.Errorf("last block row: %w", err)
		}
	}

	h := mat.NewDense(len(adjoint), len(direct), nil)
	for i := 0; i < numAdjointSteps; i++ {
		for j := 0; j < numDirectSteps; j++ {
			var src mat.Matrix
			if sum := i + j; sum < numAdjointSteps {
				src = firstCol.Slice(sum*numOutputs, (sum+1)*numOutputs, 0, numInputs)
			} else {
				col := sum - numAdjointSteps
				src = lastRow.Slice(0, numOutputs, col*numInputs, (col+1)*numInputs)
			}
			h.Slice(i*numOutputs, (i+1)*numOutputs, j*numInputs, (j+1)*numInputs).(*mat.Dense).Copy(src)
		}
	}
	return h, nil
}
