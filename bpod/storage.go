package bpod

import (
	"fmt"

	"github.com/hammal/modred"
	"github.com/hammal/modred/decomp"
	"github.com/hammal/modred/gonumExtensions"
	"github.com/hammal/modred/parallel"
	"gonum.org/v1/gonum/mat"
)

// PutDecomp saves the singular values as a column and the left and right
// singular vectors as matrices. Only rank zero writes and every rank returns
// once the files exist.
func (b *BPOD) PutDecomp(valsPath, leftPath, rightPath string) error {
	if !b.hasDecomp {
		return modred.ErrNoDecomposition
	}
	if b.svd.Len() == 0 {
		return fmt.Errorf("%w: decomposition has no modes", modred.ErrNoDecomposition)
	}
	return parallel.CallFromRankZero(b.comm, func() error {
		if err := b.save(mat.NewDense(b.svd.Len(), 1, b.svd.Values), valsPath); err != nil {
			return err
		}
		if err := b.save(b.svd.Left, leftPath); err != nil {
			return err
		}
		return b.save(b.svd.Right, rightPath)
	})
}

// GetDecomp loads a decomposition saved by PutDecomp. The Hankel matrix and
// the impulse responses are unknown afterwards.
func (b *BPOD) GetDecomp(valsPath, leftPath, rightPath string) error {
	svd, err := parallel.CallAndBroadcast(b.comm, func() (decomp.SVDResult, error) {
		vals, err := b.load(valsPath)
		if err != nil {
			return decomp.SVDResult{}, err
		}
		left, err := b.load(leftPath)
		if err != nil {
			return decomp.SVDResult{}, err
		}
		right, err := b.load(rightPath)
		if err != nil {
			return decomp.SVDResult{}, err
		}
		return decomp.SVDResult{Left: left, Values: gonumExtensions.Flatten(vals), Right: right}, nil
	})
	if err != nil {
		return err
	}
	if r, c := svd.Left.Dims(); c != svd.Len() {
		return modred.ShapeErrorf("%dx%d left singular vectors for %d singular values", r, c, svd.Len())
	}
	if r, c := svd.Right.Dims(); c != svd.Len() {
		return modred.ShapeErrorf("%dx%d right singular vectors for %d singular values", r, c, svd.Len())
	}
	b.direct, b.adjoint, b.hankel, b.svd, b.hasDecomp = nil, nil, nil, svd, true
	return nil
}

// PutHankelMatrix saves the Hankel matrix from rank zero.
func (b *BPOD) PutHankelMatrix(path string) error {
	if b.hankel == nil {
		return fmt.Errorf("%w: Hankel matrix unknown", modred.ErrNoDecomposition)
	}
	return parallel.CallFromRankZero(b.comm, func() error {
		return b.save(b.hankel, path)
	})
}
