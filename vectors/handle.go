package vectors

import (
	"errors"

	"github.com/hammal/modred"
	"github.com/hammal/modred/gonumExtensions"
	"gonum.org/v1/gonum/mat"
)

// Handle refers to a vector that is loaded on Get and stored on Put. The
// vector returned by Get must not be modified by the caller.
type Handle interface {
	Get() (*mat.VecDense, error)
	Put(v mat.Vector) error
}

// ErrUnset is returned by Get on a MemoryHandle that was never Put.
var ErrUnset = errors.New("vectors: handle holds no vector")

// MemoryHandle keeps its vector in memory.
type MemoryHandle struct {
	vec *mat.VecDense
}

// NewMemoryHandle returns a handle holding a copy of v. A nil v gives an
// empty handle to be filled by Put.
func NewMemoryHandle(v mat.Vector) *MemoryHandle {
	h := &MemoryHandle{}
	if v != nil {
		h.vec = mat.VecDenseCopyOf(v)
	}
	return h
}

// Get returns the stored vector.
func (h *MemoryHandle) Get() (*mat.VecDense, error) {
	if h.vec == nil {
		return nil, ErrUnset
	}
	return h.vec, nil
}

// Put stores a copy of v.
func (h *MemoryHandle) Put(v mat.Vector) error {
	h.vec = mat.VecDenseCopyOf(v)
	return nil
}

// ColumnHandles returns one memory handle per column of m.
func ColumnHandles(m mat.Matrix) []Handle {
	cols := gonumExtensions.Columns(m)
	res := make([]Handle, len(cols))
	for i, c := range cols {
		res[i] = &MemoryHandle{vec: c}
	}
	return res
}

// EmptyHandles returns n empty memory handles.
func EmptyHandles(n int) []Handle {
	res := make([]Handle, n)
	for i := range res {
		res[i] = &MemoryHandle{}
	}
	return res
}

// Matrix loads every handle and returns the vectors as the columns of a
// matrix.
func Matrix(handles []Handle) (*mat.Dense, error) {
	vecs := make([]mat.Vector, len(handles))
	for i, h := range handles {
		v, err := h.Get()
		if err != nil {
			return nil, err
		}
		if i > 0 && v.Len() != vecs[0].Len() {
			return nil, modred.ShapeErrorf("handle %d has length %d, handle 0 has %d", i, v.Len(), vecs[0].Len())
		}
		vecs[i] = v
	}
	return gonumExtensions.ColumnMatrix(vecs), nil
}
