package pod

import (
	"fmt"

	"github.com/hammal/modred"
	"github.com/hammal/modred/decomp"
	"github.com/hammal/modred/gonumExtensions"
	"github.com/hammal/modred/parallel"
	"gonum.org/v1/gonum/mat"
)

// PutDecomp saves the eigenvalues as a column and the eigenvectors as a
// matrix. Only rank zero writes and every rank returns once the files exist.
func (p *POD) PutDecomp(valsPath, vecsPath string) error {
	if !p.hasDecomp {
		return modred.ErrNoDecomposition
	}
	if p.eig.Len() == 0 {
		return fmt.Errorf("%w: decomposition has no modes", modred.ErrNoDecomposition)
	}
	return parallel.CallFromRankZero(p.comm, func() error {
		if err := p.save(mat.NewDense(p.eig.Len(), 1, p.eig.Values), valsPath); err != nil {
			return err
		}
		return p.save(p.eig.Vectors, vecsPath)
	})
}

// GetDecomp loads a decomposition saved by PutDecomp. The correlation
// matrix and the vectors are unknown afterwards.
func (p *POD) GetDecomp(valsPath, vecsPath string) error {
	eig, err := parallel.CallAndBroadcast(p.comm, func() (decomp.EigResult, error) {
		vals, err := p.load(valsPath)
		if err != nil {
			return decomp.EigResult{}, err
		}
		vecs, err := p.load(vecsPath)
		if err != nil {
			return decomp.EigResult{}, err
		}
		return decomp.EigResult{Values: gonumExtensions.Flatten(vals), Vectors: vecs}, nil
	})
	if err != nil {
		return err
	}
	if r, c := eig.Vectors.Dims(); c != eig.Len() {
		return modred.ShapeErrorf("%dx%d eigenvectors for %d eigenvalues", r, c, eig.Len())
	}
	p.vecs, p.correlation, p.eig, p.hasDecomp = nil, nil, eig, true
	return nil
}

// PutCorrelationMatrix saves the correlation matrix from rank zero.
func (p *POD) PutCorrelationMatrix(path string) error {
	if p.correlation == nil {
		return fmt.Errorf("%w: correlation matrix unknown", modred.ErrNoDecomposition)
	}
	return parallel.CallFromRankZero(p.comm, func() error {
		return p.save(p.correlation, path)
	})
}
