package bpod

import (
	"github.com/hammal/modred/parallel"
	"github.com/hammal/modred/vectors"
	"gonum.org/v1/gonum/mat"
)

// Matrices holds the results of ComputeMatrices.
type Matrices struct {
	DirectModes  *mat.Dense
	AdjointModes *mat.Dense
	SingVals     []float64
	Left         *mat.Dense
	Right        *mat.Dense
	Hankel       *mat.Dense
}

// ComputeMatrices runs the decomposition on the columns of direct and
// adjoint and returns the requested modes as matrix columns.
func (b *BPOD) ComputeMatrices(direct, adjoint mat.Matrix, directModeNums, adjointModeNums []int,
	numInputs, numOutputs int) (Matrices, error) {
	svd, err := b.ComputeDecomp(vectors.ColumnHandles(direct), vectors.ColumnHandles(adjoint), numInputs, numOutputs)
	if err != nil {
		return Matrices{}, err
	}
	// Every rank fills its own share of the same handles.
	modes, err := parallel.CallAndBroadcast(b.comm, func() ([2][]vectors.Handle, error) {
		return [2][]vectors.Handle{
			vectors.EmptyHandles(len(directModeNums)),
			vectors.EmptyHandles(len(adjointModeNums)),
		}, nil
	})
	if err != nil {
		return Matrices{}, err
	}
	if err := b.ComputeDirectModes(directModeNums, modes[0], nil); err != nil {
		return Matrices{}, err
	}
	if err := b.ComputeAdjointModes(adjointModeNums, modes[1], nil); err != nil {
		return Matrices{}, err
	}
	res := Matrices{SingVals: svd.Values, Left: svd.Left, Right: svd.Right, Hankel: b.hankel}
	if res.DirectModes, err = vectors.Matrix(modes[0]); err != nil {
		return Matrices{}, err
	}
	if res.AdjointModes, err = vectors.Matrix(modes[1]); err != nil {
		return Matrices{}, err
	}
	return res, nil
}
