package vectorspace

import (
	"fmt"

	"github.com/hammal/modred"
	"github.com/hammal/modred/parallel"
	"github.com/hammal/modred/vectors"
	"gonum.org/v1/gonum/mat"
)

// ComputeLinearCombinations stores
// sum_i coeffs[i, k] basis[i]
// in sums[k]. Every rank computes a contiguous range of sums and the call
// returns once all sums are stored. The terms of a sum are always added in
// increasing i, so computing a subset of the sums gives exactly the same
// vectors as computing all of them.
func (vs *VectorSpace) ComputeLinearCombinations(sums, basis []vectors.Handle, coeffs mat.Matrix) error {
	if len(basis) == 0 {
		return modred.ErrEmpty
	}
	r, c := coeffs.Dims()
	if r != len(basis) || c != len(sums) {
		return modred.ShapeErrorf("coefficients are %dx%d for %d basis vectors and %d sums",
			r, c, len(basis), len(sums))
	}
	if len(sums) == 0 {
		return nil
	}
	start, end := parallel.MyTasks(vs.comm, len(sums))
	err := vs.agree(vs.linearCombinations(sums, basis, mat.DenseCopyOf(coeffs), start, end))
	if err != nil {
		return err
	}
	vs.comm.Barrier()
	return nil
}

// linearCombinations computes sums [start, end). Sums are held in chunks
// while the basis vectors stream past them.
func (vs *VectorSpace) linearCombinations(sums, basis []vectors.Handle, coeffs *mat.Dense, start, end int) error {
	if start == end {
		return nil
	}
	sumChunk := min(end-start, vs.maxVecsPerProc-1)
	basisChunk := vs.maxVecsPerProc - sumChunk
	vs.logger.Debug("computing linear combinations",
		"rank", vs.comm.Rank(), "sums", fmt.Sprintf("[%d, %d)", start, end), "basis", len(basis),
		"sumChunk", sumChunk, "basisChunk", basisChunk)

	for ss := start; ss < end; ss += sumChunk {
		se := min(ss+sumChunk, end)
		vs.budget.acquire(se - ss)
		acc := make([]*mat.VecDense, se-ss)
		err := vs.accumulate(acc, basis, coeffs, ss, basisChunk)
		for k := 0; err == nil && k < len(acc); k++ {
			if err = sums[ss+k].Put(acc[k]); err != nil {
				err = fmt.Errorf("storing sum %d: %w", ss+k, err)
			}
		}
		vs.budget.release(se - ss)
		if err != nil {
			return err
		}
	}
	return nil
}

// accumulate adds every basis vector to acc, whose first entry is sum
// number first.
func (vs *VectorSpace) accumulate(acc []*mat.VecDense, basis []vectors.Handle, coeffs *mat.Dense, first, basisChunk int) error {
	for bs := 0; bs < len(basis); bs += basisChunk {
		be := min(bs+basisChunk, len(basis))
		vecs, err := vs.load(basis[bs:be])
		if err != nil {
			return fmt.Errorf("loading basis [%d, %d): %w", bs, be, err)
		}
		if acc[0] == nil {
			for k := range acc {
				acc[k] = mat.NewVecDense(vecs[0].Len(), nil)
			}
		}
		err = vs.forEach(len(acc), func(lo, hi int) error {
			return vectors.Accumulate(acc[lo:hi], vecs, coeffs.Slice(bs, be, first+lo, first+hi))
		})
		vs.budget.release(len(vecs))
		if err != nil {
			return fmt.Errorf("basis [%d, %d): %w", bs, be, err)
		}
	}
	return nil
}
