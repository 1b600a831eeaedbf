// Package rom forms reduced order models by projecting a system onto a pair
// of mode bases,
//
// A = <adjoint modes, time derivatives of the direct modes>
// B = <adjoint modes, input vectors>
// C = <output vectors, direct modes>
//
// using the inner product of the vector space, which should be the one the
// modes were computed with.
package rom

import (
	"fmt"
	"math"

	"github.com/charmbracelet/log"
	"github.com/hammal/modred"
	"github.com/hammal/modred/parallel"
	"github.com/hammal/modred/vectors"
	"github.com/hammal/modred/vectorspace"
	"gonum.org/v1/gonum/mat"
)

// Config configures a Former.
type Config struct {
	// Space defaults to a serial space with the Euclidean inner product.
	Space *vectorspace.VectorSpace
	// Save stores the reduced matrices. It defaults to the array text codec.
	Save vectors.MatrixSaver
	// Logger defaults to the logger of Space.
	Logger *log.Logger
}

// Former computes reduced order models.
type Former struct {
	space  *vectorspace.VectorSpace
	comm   parallel.Comm
	save   vectors.MatrixSaver
	logger *log.Logger
}

// ROM is a reduced order model
// x[k+1] = A x[k] + B u[k] or x'(t) = A x(t) + B u(t), y = C x
type ROM struct {
	A *mat.Dense
	B *mat.Dense
	C *mat.Dense
}

// Dynamics describes how the direct modes evolve. With Dt zero, Derivs holds
// the time derivative (or, for a discrete system, the one step advance) of
// every direct mode. With Dt > 0, Derivs holds the modes advanced by Dt and
// the derivatives are approximated by (Derivs[k] - Modes[k]) / Dt.
type Dynamics struct {
	Modes  []vectors.Handle
	Derivs []vectors.Handle
	Dt     float64
}

// New returns a Former.
func New(cfg Config) (*Former, error) {
	f := &Former{space: cfg.Space, save: cfg.Save}
	if f.space == nil {
		space, err := vectorspace.New(vectorspace.Config{Logger: cfg.Logger})
		if err != nil {
			return nil, err
		}
		f.space = space
	}
	if f.save == nil {
		f.save = vectors.SaveArrayText
	}
	f.logger = cfg.Logger
	if f.logger == nil {
		f.logger = f.space.Logger()
	}
	f.comm = f.space.Comm()
	return f, nil
}

func checkTimestep(dt float64) error {
	if dt < 0 || math.IsNaN(dt) || math.IsInf(dt, 0) {
		return fmt.Errorf("%w: dt = %v", modred.ErrTimestep, dt)
	}
	return nil
}

// checkModes checks that every list holds at least numModes vectors.
func checkModes(numModes int, lists map[string][]vectors.Handle) error {
	if numModes < 1 {
		return modred.ShapeErrorf("%d modes requested", numModes)
	}
	for name, l := range lists {
		if len(l) < numModes {
			return modred.ShapeErrorf("%d modes requested, %d %s", numModes, len(l), name)
		}
	}
	return nil
}

// FormA returns the numModes by numModes matrix
// A[i, j] = <adjointModes[i], d/dt directModes[j]>
func (f *Former) FormA(adjointModes []vectors.Handle, dyn Dynamics, numModes int) (*mat.Dense, error) {
	if err := checkTimestep(dyn.Dt); err != nil {
		return nil, err
	}
	lists := map[string][]vectors.Handle{"adjoint modes": adjointModes, "derivative modes": dyn.Derivs}
	if dyn.Dt > 0 {
		lists["direct modes"] = dyn.Modes
	}
	if err := checkModes(numModes, lists); err != nil {
		return nil, err
	}
	adjoint := adjointModes[:numModes]
	a, err := f.space.ComputeInnerProductMatrix(adjoint, dyn.Derivs[:numModes])
	if err != nil {
		return nil, fmt.Errorf("A: %w", err)
	}
	if dyn.Dt > 0 {
		// <adj, (advanced - modes) / dt>
		now, err := f.space.ComputeInnerProductMatrix(adjoint, dyn.Modes[:numModes])
		if err != nil {
			return nil, fmt.Errorf("A: %w", err)
		}
		a.Sub(a, now)
		a.Scale(1/dyn.Dt, a)
	}
	f.logger.Debug("formed A", "modes", numModes, "dt", dyn.Dt)
	return a, nil
}

// FormB returns the numModes by len(inputs) matrix
// B[i, j] = <adjointModes[i], inputs[j]>
// where inputs are the columns of the full input matrix.
func (f *Former) FormB(adjointModes, inputs []vectors.Handle, numModes int) (*mat.Dense, error) {
	if err := checkModes(numModes, map[string][]vectors.Handle{"adjoint modes": adjointModes}); err != nil {
		return nil, err
	}
	b, err := f.space.ComputeInnerProductMatrix(adjointModes[:numModes], inputs)
	if err != nil {
		return nil, fmt.Errorf("B: %w", err)
	}
	f.logger.Debug("formed B", "modes", numModes, "inputs", len(inputs))
	return b, nil
}

// FormC returns the len(outputs) by numModes matrix
// C[i, j] = <outputs[i], directModes[j]>
// For the outputs of the full system y = C x this takes the columns of
// W^-1 C^T, which are the rows of C for the Euclidean inner product.
func (f *Former) FormC(outputs, directModes []vectors.Handle, numModes int) (*mat.Dense, error) {
	if err := checkModes(numModes, map[string][]vectors.Handle{"direct modes": directModes}); err != nil {
		return nil, err
	}
	c, err := f.space.ComputeInnerProductMatrix(outputs, directModes[:numModes])
	if err != nil {
		return nil, fmt.Errorf("C: %w", err)
	}
	f.logger.Debug("formed C", "modes", numModes, "outputs", len(outputs))
	return c, nil
}

// Form returns the reduced model with numModes states. The direct modes of
// dyn default to directModes.
func (f *Former) Form(adjointModes, directModes []vectors.Handle, dyn Dynamics, inputs, outputs []vectors.Handle, numModes int) (*ROM, error) {
	if dyn.Modes == nil {
		dyn.Modes = directModes
	}
	a, err := f.FormA(adjointModes, dyn, numModes)
	if err != nil {
		return nil, err
	}
	b, err := f.FormB(adjointModes, inputs, numModes)
	if err != nil {
		return nil, err
	}
	c, err := f.FormC(outputs, directModes, numModes)
	if err != nil {
		return nil, err
	}
	return &ROM{A: a, B: b, C: c}, nil
}

// Put saves the reduced matrices from rank zero.
func (f *Former) Put(rom *ROM, aPath, bPath, cPath string) error {
	return parallel.CallFromRankZero(f.comm, func() error {
		for _, m := range []struct {
			m    *mat.Dense
			path string
		}{{rom.A, aPath}, {rom.B, bPath}, {rom.C, cPath}} {
			if err := f.save(m.m, m.path); err != nil {
				return err
			}
		}
		return nil
	})
}

// ComputeDerivatives stores (advanced[k] - vecs[k]) / dt in derivs[k].
func (f *Former) ComputeDerivatives(vecs, advanced, derivs []vectors.Handle, dt float64) error {
	if err := checkTimestep(dt); err != nil {
		return err
	}
	if dt == 0 {
		return fmt.Errorf("%w: dt = 0", modred.ErrTimestep)
	}
	n := len(vecs)
	if len(advanced) != n || len(derivs) != n {
		return modred.ShapeErrorf("%d vectors, %d advanced vectors, %d derivatives", n, len(advanced), len(derivs))
	}
	if n == 0 {
		return modred.ErrEmpty
	}
	basis := make([]vectors.Handle, 0, 2*n)
	basis = append(append(basis, vecs...), advanced...)
	coeffs := mat.NewDense(2*n, n, nil)
	for k := 0; k < n; k++ {
		coeffs.Set(k, k, -1/dt)
		coeffs.Set(n+k, k, 1/dt)
	}
	return f.space.ComputeLinearCombinations(derivs, basis, coeffs)
}
