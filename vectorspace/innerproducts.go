package vectorspace

import (
	"fmt"

	"github.com/hammal/modred"
	"github.com/hammal/modred/parallel"
	"github.com/hammal/modred/vectors"
	"gonum.org/v1/gonum/mat"
)

// ComputeInnerProductMatrix returns the matrix M with
// M[i, j] = <rows[i], cols[j]>
// Every rank computes a contiguous range of rows and all ranks return the
// full matrix.
func (vs *VectorSpace) ComputeInnerProductMatrix(rows, cols []vectors.Handle) (*mat.Dense, error) {
	if len(rows) == 0 || len(cols) == 0 {
		return nil, modred.ErrEmpty
	}
	assignments := parallel.Assignments(len(rows), vs.comm.NumProcs())
	mine := assignments[vs.comm.Rank()]
	block, err := vs.innerProductRows(rows, cols, mine[0], mine[1], false)
	return vs.gatherRows(block, err, assignments, len(cols))
}

// ComputeSymmetricInnerProductMatrix returns the matrix M with
// M[i, j] = <vecs[i], vecs[j]>
// computing only the upper triangle. The result is exactly symmetric.
func (vs *VectorSpace) ComputeSymmetricInnerProductMatrix(vecs []vectors.Handle) (*mat.Dense, error) {
	n := len(vecs)
	if n == 0 {
		return nil, modred.ErrEmpty
	}
	assignments := triangularAssignments(n, vs.comm.NumProcs())
	mine := assignments[vs.comm.Rank()]
	block, err := vs.innerProductRows(vecs, vecs, mine[0], mine[1], true)
	res, err := vs.gatherRows(block, err, assignments, n)
	if err != nil {
		return nil, err
	}
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			res.Set(j, i, res.At(i, j))
		}
	}
	return res, nil
}

// innerProductRows computes rows [start, end) of the inner product matrix.
// Row vectors are held in chunks while the column vectors stream past them.
// With upper set only entries with j >= i are computed.
func (vs *VectorSpace) innerProductRows(rows, cols []vectors.Handle, start, end int, upper bool) (*mat.Dense, error) {
	if start == end {
		return nil, nil
	}
	numCols := len(cols)
	rowChunk := min(end-start, vs.maxVecsPerProc-1)
	colChunk := vs.maxVecsPerProc - rowChunk
	vs.logger.Debug("computing inner products",
		"rank", vs.comm.Rank(), "rows", fmt.Sprintf("[%d, %d)", start, end), "cols", numCols,
		"rowChunk", rowChunk, "colChunk", colChunk)

	res := mat.NewDense(end-start, numCols, nil)
	for rs := start; rs < end; rs += rowChunk {
		re := min(rs+rowChunk, end)
		rowVecs, err := vs.load(rows[rs:re])
		if err != nil {
			return nil, fmt.Errorf("loading rows [%d, %d): %w", rs, re, err)
		}
		first := 0
		if upper {
			first = rs
		}
		for cs := first; cs < numCols; cs += colChunk {
			ce := min(cs+colChunk, numCols)
			colVecs, err := vs.load(cols[cs:ce])
			if err != nil {
				vs.budget.release(len(rowVecs))
				return nil, fmt.Errorf("loading columns [%d, %d): %w", cs, ce, err)
			}
			err = vs.forEach(len(rowVecs), func(lo, hi int) error {
				for i := lo; i < hi; i++ {
					for j, v := range colVecs {
						gi, gj := rs+i, cs+j
						if upper && gj < gi {
							continue
						}
						val, err := vs.ip(rowVecs[i], v)
						if err != nil {
							return fmt.Errorf("inner product (%d, %d): %w", gi, gj, err)
						}
						res.Set(gi-start, gj, val)
					}
				}
				return nil
			})
			vs.budget.release(len(colVecs))
			if err != nil {
				vs.budget.release(len(rowVecs))
				return nil, err
			}
		}
		vs.budget.release(len(rowVecs))
	}
	return res, nil
}

type rowBlock struct {
	rows *mat.Dense
	err  error
}

// gatherRows assembles the row blocks of all ranks on every rank.
func (vs *VectorSpace) gatherRows(block *mat.Dense, err error, assignments [][2]int, numCols int) (*mat.Dense, error) {
	numRows := assignments[len(assignments)-1][1]
	res := mat.NewDense(numRows, numCols, nil)
	var first error
	for rank, a := range assignments {
		b := parallel.Broadcast(vs.comm, rowBlock{block, err}, rank)
		if b.err != nil {
			if first == nil {
				first = b.err
			}
			continue
		}
		if a[0] < a[1] {
			res.Slice(a[0], a[1], 0, numCols).(*mat.Dense).Copy(b.rows)
		}
	}
	if first != nil {
		return nil, first
	}
	return res, nil
}

// triangularAssignments splits the rows of an n by n upper triangle into
// contiguous ranges holding about the same number of entries.
func triangularAssignments(n, numProcs int) [][2]int {
	total := n * (n + 1) / 2
	res := make([][2]int, numProcs)
	start, done := 0, 0
	for rank := range res {
		end := start
		if rank == numProcs-1 {
			end = n
		} else {
			target := total * (rank + 1) / numProcs
			for end < n && done+(n-end) <= target {
				done += n - end
				end++
			}
		}
		res[rank] = [2]int{start, end}
		start = end
	}
	return res
}
