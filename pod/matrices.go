package pod

import (
	"github.com/hammal/modred/parallel"
	"github.com/hammal/modred/vectors"
	"gonum.org/v1/gonum/mat"
)

// Matrices holds the results of ComputeMatrices.
type Matrices struct {
	Modes       *mat.Dense
	EigVals     []float64
	EigVecs     *mat.Dense
	Correlation *mat.Dense
}

// ComputeMatrices runs the decomposition on the columns of vecs and
// returns the requested modes as the columns of Modes.
func (p *POD) ComputeMatrices(vecs mat.Matrix, modeNums []int) (Matrices, error) {
	eig, err := p.ComputeDecomp(vectors.ColumnHandles(vecs))
	if err != nil {
		return Matrices{}, err
	}
	// Every rank fills its own share of the same handles.
	modes, err := parallel.CallAndBroadcast(p.comm, func() ([]vectors.Handle, error) {
		return vectors.EmptyHandles(len(modeNums)), nil
	})
	if err != nil {
		return Matrices{}, err
	}
	if err := p.ComputeModes(modeNums, modes, nil); err != nil {
		return Matrices{}, err
	}
	modeMat, err := vectors.Matrix(modes)
	if err != nil {
		return Matrices{}, err
	}
	return Matrices{
		Modes:       modeMat,
		EigVals:     eig.Values,
		EigVecs:     eig.Vectors,
		Correlation: p.correlation,
	}, nil
}
