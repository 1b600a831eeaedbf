package vectorspace

import (
	"fmt"

	"github.com/hammal/modred"
	"github.com/hammal/modred/parallel"
	"github.com/hammal/modred/vectors"
	"gonum.org/v1/gonum/mat"
)

// MapFunc maps the vectors in the columns of its argument to the same number
// of columns.
type MapFunc func(vecs mat.Matrix) (*mat.Dense, error)

// MapVectors stores column k of fn applied to src in dst[k]. Every rank maps
// a contiguous range of the vectors, in chunks that fit the budget together
// with their images, so fn must act on every column independently.
func (vs *VectorSpace) MapVectors(dst, src []vectors.Handle, fn MapFunc) error {
	if len(src) == 0 {
		return modred.ErrEmpty
	}
	if len(dst) != len(src) {
		return modred.ShapeErrorf("%d destinations for %d vectors", len(dst), len(src))
	}
	start, end := parallel.MyTasks(vs.comm, len(src))
	if err := vs.agree(vs.mapVectors(dst, src, fn, start, end)); err != nil {
		return err
	}
	vs.comm.Barrier()
	return nil
}

func (vs *VectorSpace) mapVectors(dst, src []vectors.Handle, fn MapFunc, start, end int) error {
	chunk := vs.maxVecsPerProc / 2
	for cs := start; cs < end; cs += chunk {
		ce := min(cs+chunk, end)
		if err := vs.mapChunk(dst[cs:ce], src[cs:ce], fn); err != nil {
			return fmt.Errorf("vectors [%d, %d): %w", cs, ce, err)
		}
	}
	return nil
}

func (vs *VectorSpace) mapChunk(dst, src []vectors.Handle, fn MapFunc) error {
	vecs, err := vs.load(src)
	if err != nil {
		return err
	}
	defer vs.budget.release(len(src))
	n := vecs[0].Len()
	in := mat.NewDense(n, len(vecs), nil)
	for k, v := range vecs {
		if v.Len() != n {
			return modred.ShapeErrorf("vector %d has length %d, vector 0 has %d", k, v.Len(), n)
		}
		in.SetCol(k, mat.Col(nil, 0, v))
	}
	out, err := fn(in)
	if err != nil {
		return err
	}
	r, c := out.Dims()
	if c != len(dst) {
		return modred.ShapeErrorf("map returned %d vectors for %d", c, len(dst))
	}
	vs.budget.acquire(c)
	defer vs.budget.release(c)
	for k, h := range dst {
		if err := h.Put(mat.NewVecDense(r, mat.Col(nil, k, out))); err != nil {
			return err
		}
	}
	return nil
}
