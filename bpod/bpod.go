// Package bpod computes Balanced POD modes from direct and adjoint impulse
// responses.
//
// The Hankel matrix H[i, j] = <adjoint[i], direct[j]> is factored as
// H = L diag(s) R^T and the modes are
// direct_k  = sum_i direct[i] R[i, k] / sqrt(s[k])
// adjoint_k = sum_i adjoint[i] L[i, k] / sqrt(s[k])
// The two mode sets are biorthogonal and balance the empirical gramians.
package bpod

import (
	"fmt"

	"github.com/charmbracelet/log"
	"github.com/hammal/modred"
	"github.com/hammal/modred/decomp"
	"github.com/hammal/modred/parallel"
	"github.com/hammal/modred/vectors"
	"github.com/hammal/modred/vectorspace"
	"gonum.org/v1/gonum/mat"
)

// Config configures a BPOD.
type Config struct {
	// Space defaults to a serial space with the Euclidean inner product.
	Space *vectorspace.VectorSpace
	// Tolerance defaults to decomp.DefaultTolerance.
	Tolerance *decomp.Tolerance
	// IndexFrom is the number of the first mode.
	IndexFrom int
	// Save and Load store the decomposition and the Hankel matrix. They
	// default to the array text codec.
	Save vectors.MatrixSaver
	Load vectors.MatrixLoader
	// Logger defaults to the logger of Space.
	Logger *log.Logger
}

// BPOD holds a decomposition and the impulse responses it was computed from.
type BPOD struct {
	space     *vectorspace.VectorSpace
	comm      parallel.Comm
	tol       decomp.Tolerance
	indexFrom int
	save      vectors.MatrixSaver
	load      vectors.MatrixLoader
	logger    *log.Logger

	direct    []vectors.Handle
	adjoint   []vectors.Handle
	hankel    *mat.Dense
	svd       decomp.SVDResult
	hasDecomp bool
}

// New returns a BPOD without a decomposition.
func New(cfg Config) (*BPOD, error) {
	b := &BPOD{
		space:     cfg.Space,
		tol:       decomp.DefaultTolerance(),
		indexFrom: cfg.IndexFrom,
		save:      cfg.Save,
		load:      cfg.Load,
	}
	if b.space == nil {
		space, err := vectorspace.New(vectorspace.Config{Logger: cfg.Logger})
		if err != nil {
			return nil, err
		}
		b.space = space
	}
	if cfg.Tolerance != nil {
		b.tol = *cfg.Tolerance
	}
	if err := b.tol.Validate(); err != nil {
		return nil, err
	}
	if b.save == nil {
		b.save = vectors.SaveArrayText
	}
	if b.load == nil {
		b.load = vectors.LoadArrayText
	}
	b.logger = cfg.Logger
	if b.logger == nil {
		b.logger = b.space.Logger()
	}
	b.comm = b.space.Comm()
	return b, nil
}

// ComputeDecomp builds the Hankel matrix of the impulse responses and its
// truncated SVD. direct holds one block of numInputs vectors per time step
// and adjoint one block of numOutputs vectors per time step. The impulse
// responses are kept for the mode computations.
func (b *BPOD) ComputeDecomp(direct, adjoint []vectors.Handle, numInputs, numOutputs int) (decomp.SVDResult, error) {
	h, err := b.ComputeHankelMatrix(direct, adjoint, numInputs, numOutputs)
	if err != nil {
		return decomp.SVDResult{}, err
	}
	return b.SetHankelMatrix(h, direct, adjoint)
}

// SetHankelMatrix decomposes a Hankel matrix computed elsewhere. direct and
// adjoint may be nil if the modes are computed with explicit vectors later.
func (b *BPOD) SetHankelMatrix(h *mat.Dense, direct, adjoint []vectors.Handle) (decomp.SVDResult, error) {
	r, c := h.Dims()
	if direct != nil && len(direct) != c {
		return decomp.SVDResult{}, modred.ShapeErrorf("Hankel matrix has %d columns for %d direct vectors", c, len(direct))
	}
	if adjoint != nil && len(adjoint) != r {
		return decomp.SVDResult{}, modred.ShapeErrorf("Hankel matrix has %d rows for %d adjoint vectors", r, len(adjoint))
	}
	svd, err := decomp.SVD(h, b.tol)
	if err != nil {
		return decomp.SVDResult{}, err
	}
	b.direct, b.adjoint, b.hankel, b.svd, b.hasDecomp = direct, adjoint, h, svd, true
	b.logger.Debug("computed BPOD decomposition", "rows", r, "cols", c, "modes", svd.Len())
	return svd, nil
}

// HankelMatrix returns the Hankel matrix, nil if the decomposition was
// loaded.
func (b *BPOD) HankelMatrix() *mat.Dense { return b.hankel }

// Decomp returns the current decomposition.
func (b *BPOD) Decomp() decomp.SVDResult { return b.svd }

// NumModes returns the number of modes of the current decomposition.
func (b *BPOD) NumModes() int { return b.svd.Len() }

// ComputeDirectModes stores direct mode number modeNums[k] in modes[k].
// direct may be nil to use the vectors passed to ComputeDecomp.
func (b *BPOD) ComputeDirectModes(modeNums []int, modes, direct []vectors.Handle) error {
	if direct == nil {
		direct = b.direct
	}
	return b.computeModes("direct", modeNums, modes, direct, b.svd.Right)
}

// ComputeAdjointModes stores adjoint mode number modeNums[k] in modes[k].
// adjoint may be nil to use the vectors passed to ComputeDecomp.
func (b *BPOD) ComputeAdjointModes(modeNums []int, modes, adjoint []vectors.Handle) error {
	if adjoint == nil {
		adjoint = b.adjoint
	}
	return b.computeModes("adjoint", modeNums, modes, adjoint, b.svd.Left)
}

func (b *BPOD) computeModes(kind string, modeNums []int, modes, vecs []vectors.Handle, singVecs *mat.Dense) error {
	if !b.hasDecomp {
		return modred.ErrNoDecomposition
	}
	if len(modeNums) != len(modes) {
		return modred.ShapeErrorf("%d mode numbers for %d mode handles", len(modeNums), len(modes))
	}
	indices, err := decomp.Indices(modeNums, b.indexFrom, b.svd.Len())
	if err != nil {
		return err
	}
	if len(indices) == 0 {
		return nil
	}
	if numVecs, _ := singVecs.Dims(); len(vecs) != numVecs {
		return modred.ShapeErrorf("decomposition of %d %s vectors used with %d vectors", numVecs, kind, len(vecs))
	}
	coeffs := decomp.ModeCoefficients(singVecs, b.svd.Values, indices)
	if err := b.space.ComputeLinearCombinations(modes, vecs, coeffs); err != nil {
		return fmt.Errorf("%s modes: %w", kind, err)
	}
	b.logger.Debug("computed BPOD modes", "kind", kind, "modes", len(indices))
	return nil
}

// ComputeProjCoeffs returns the coefficients of the direct vectors on the
// direct modes, found by projecting with the adjoint modes,
// diag(s^-1/2) L^T H
func (b *BPOD) ComputeProjCoeffs() (*mat.Dense, error) {
	return b.project(b.svd.Left, func() mat.Matrix { return b.hankel })
}

// ComputeAdjointProjCoeffs returns the coefficients of the adjoint vectors
// on the adjoint modes, found by projecting with the direct modes,
// diag(s^-1/2) R^T H^T
func (b *BPOD) ComputeAdjointProjCoeffs() (*mat.Dense, error) {
	return b.project(b.svd.Right, func() mat.Matrix { return b.hankel.T() })
}

func (b *BPOD) project(singVecs *mat.Dense, hankel func() mat.Matrix) (*mat.Dense, error) {
	if !b.hasDecomp || b.hankel == nil {
		return nil, fmt.Errorf("%w: Hankel matrix unknown", modred.ErrNoDecomposition)
	}
	if b.svd.Len() == 0 {
		return &mat.Dense{}, nil
	}
	return decomp.Project(singVecs, b.svd.Values, hankel()), nil
}
