// Package pod computes Proper Orthogonal Decomposition modes of a collection
// of vectors.
//
// The correlation matrix C[i, j] = <vecs[i], vecs[j]> is factored as
// C = V diag(e) V^T and mode k is
// sum_i vecs[i] V[i, k] / sqrt(e[k])
// The modes are orthonormal in the inner product of the vector space.
package pod

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

// Config configures a POD.
type Config struct {
	// Space defaults to a serial space with the Euclidean inner product.
	Space *vectorspace.VectorSpace
	// Tolerance defaults to decomp.DefaultTolerance.
	Tolerance *decomp.Tolerance
	// IndexFrom is the number of the first mode.
	IndexFrom int
	// Save and Load store the decomposition and the correlation matrix.
	// They default to the array text codec.
	Save vectors.MatrixSaver
	Load vectors.MatrixLoader
	// Logger defaults to the logger of Space.
	Logger *log.Logger
}

// POD holds a decomposition and the vectors it was computed from.
type POD struct {
	space     *vectorspace.VectorSpace
	comm      parallel.Comm
	tol       decomp.Tolerance
	indexFrom int
	save      vectors.MatrixSaver
	load      vectors.MatrixLoader
	logger    *log.Logger

	vecs        []vectors.Handle
	correlation *mat.Dense
	eig         decomp.EigResult
	hasDecomp   bool
}

// New returns a POD without a decomposition.
func New(cfg Config) (*POD, error) {
	p := &POD{
		space:     cfg.Space,
		tol:       decomp.DefaultTolerance(),
		indexFrom: cfg.IndexFrom,
		save:      cfg.Save,
		load:      cfg.Load,
	}
	if p.space == nil {
		space, err := vectorspace.New(vectorspace.Config{Logger: cfg.Logger})
		if err != nil {
			return nil, err
		}
		p.space = space
	}
	if cfg.Tolerance != nil {
		p.tol = *cfg.Tolerance
	}
	if err := p.tol.Validate(); err != nil {
		return nil, err
	}
	if p.save == nil {
		p.save = vectors.SaveArrayText
	}
	if p.load == nil {
		p.load = vectors.LoadArrayText
	}
	p.logger = cfg.Logger
	if p.logger == nil {
		p.logger = p.space.Logger()
	}
	p.comm = p.space.Comm()
	return p, nil
}

// ComputeDecomp computes the correlation matrix of vecs and its truncated
// eigendecomposition. The vectors are kept for ComputeModes.
func (p *POD) ComputeDecomp(vecs []vectors.Handle) (decomp.EigResult, error) {
	corr, err := p.space.ComputeSymmetricInnerProductMatrix(vecs)
	if err != nil {
		return decomp.EigResult{}, fmt.Errorf("correlation matrix: %w", err)
	}
	return p.SetCorrelationMatrix(corr, vecs)
}

// SetCorrelationMatrix decomposes a correlation matrix computed elsewhere.
// vecs may be nil if the modes are computed with explicit vectors later.
func (p *POD) SetCorrelationMatrix(corr *mat.Dense, vecs []vectors.Handle) (decomp.EigResult, error) {
	n, c := corr.Dims()
	if n != c {
		return decomp.EigResult{}, modred.ShapeErrorf("correlation matrix is %dx%d", n, c)
	}
	if vecs != nil && len(vecs) != n {
		return decomp.EigResult{}, modred.ShapeErrorf("correlation matrix is %dx%d for %d vectors", n, n, len(vecs))
	}
	sym := mat.NewSymDense(n, nil)
	for i := 0; i < n; i++ {
		for j := i; j < n; j++ {
			sym.SetSym(i, j, corr.At(i, j))
		}
	}
	eig, err := decomp.EigSym(sym, p.tol)
	if err != nil {
		return decomp.EigResult{}, err
	}
	p.vecs, p.correlation, p.eig, p.hasDecomp = vecs, corr, eig, true
	p.logger.Debug("computed POD decomposition", "vecs", n, "modes", eig.Len())
	return eig, nil
}

// CorrelationMatrix returns the correlation matrix, nil if the
// decomposition was loaded.
func (p *POD) CorrelationMatrix() *mat.Dense { return p.correlation }

// Decomp returns the current decomposition.
func (p *POD) Decomp() decomp.EigResult { return p.eig }

// NumModes returns the number of modes of the current decomposition.
func (p *POD) NumModes() int { return p.eig.Len() }

// ComputeModes stores mode number modeNums[k] in modes[k]. vecs may be nil
// to use the vectors passed to ComputeDecomp. All mode numbers are checked
// before any mode is computed.
func (p *POD) ComputeModes(modeNums []int, modes, vecs []vectors.Handle) error {
	if !p.hasDecomp {
		return modred.ErrNoDecomposition
	}
	if len(modeNums) != len(modes) {
		return modred.ShapeErrorf("%d mode numbers for %d mode handles", len(modeNums), len(modes))
	}
	indices, err := decomp.Indices(modeNums, p.indexFrom, p.eig.Len())
	if err != nil {
		return err
	}
	if len(indices) == 0 {
		return nil
	}
	if vecs == nil {
		vecs = p.vecs
	}
	if numVecs, _ := p.eig.Vectors.Dims(); len(vecs) != numVecs {
		return modred.ShapeErrorf("decomposition of %d vectors used with %d vectors", numVecs, len(vecs))
	}
	coeffs := decomp.ModeCoefficients(p.eig.Vectors, p.eig.Values, indices)
	if err := p.space.ComputeLinearCombinations(modes, vecs, coeffs); err != nil {
		return fmt.Errorf("modes: %w", err)
	}
	p.logger.Debug("computed POD modes", "modes", len(indices))
	return nil
}

// ComputeProjCoeffs returns the coefficients of the vectors on the modes,
// diag(e^-1/2) V^T C
// Column j holds the coefficients of vector j.
func (p *POD) ComputeProjCoeffs() (*mat.Dense, error) {
	if !p.hasDecomp || p.correlation == nil {
		return nil, fmt.Errorf("%w: correlation matrix unknown", modred.ErrNoDecomposition)
	}
	if p.eig.Len() == 0 {
		return &mat.Dense{}, nil
	}
	return decomp.Project(p.eig.Vectors, p.eig.Values, p.correlation), nil
}
