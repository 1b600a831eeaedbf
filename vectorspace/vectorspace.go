// Package vectorspace computes inner product matrices and linear
// combinations of vectors that are loaded through handles, keeping at most a
// configured number of vectors in memory at once.
//
// The work is split between the ranks of a parallel.Comm. Every entry of an
// inner product matrix and every linear combination is computed by exactly
// one rank with a fixed order of operations, so results don't depend on the
// number of ranks or workers.
package vectorspace

import (
	"fmt"
	"runtime"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/hammal/modred"
	"github.com/hammal/modred/parallel"
	"github.com/hammal/modred/vectors"
	"gonum.org/v1/gonum/mat"
)

// Config configures a VectorSpace. Zero fields take their defaults.
type Config struct {
	// InnerProduct defaults to vectors.Euclidean.
	InnerProduct vectors.InnerProduct
	// MaxVecsPerNode is the number of vectors a node may hold in memory,
	// shared evenly by the ranks on the node. Defaults to
	// modred.DefaultMaxVecsPerNode.
	MaxVecsPerNode int
	// Comm defaults to parallel.Serial.
	Comm parallel.Comm
	// Workers is the number of goroutines per rank. Defaults to GOMAXPROCS.
	Workers int
	// Logger defaults to a discarding logger.
	Logger *log.Logger
}

// VectorSpace holds the configuration of one rank.
type VectorSpace struct {
	ip             vectors.InnerProduct
	comm           parallel.Comm
	maxVecsPerNode int
	maxVecsPerProc int
	workers        int
	logger         *log.Logger
	budget         budget
}

// New returns a VectorSpace. It fails with modred.ErrBudget when a rank's
// share of MaxVecsPerNode is less than two vectors.
func New(cfg Config) (*VectorSpace, error) {
	vs := &VectorSpace{
		ip:             cfg.InnerProduct,
		comm:           cfg.Comm,
		maxVecsPerNode: cfg.MaxVecsPerNode,
		workers:        cfg.Workers,
		logger:         modred.Logger(cfg.Logger),
	}
	if vs.ip == nil {
		vs.ip = vectors.Euclidean()
	}
	if vs.comm == nil {
		vs.comm = parallel.Serial()
	}
	if vs.maxVecsPerNode == 0 {
		vs.maxVecsPerNode = modred.DefaultMaxVecsPerNode
	}
	if vs.workers <= 0 {
		vs.workers = runtime.GOMAXPROCS(0)
	}
	vs.maxVecsPerProc = vs.maxVecsPerNode * vs.comm.NumNodes() / vs.comm.NumProcs()
	if vs.maxVecsPerProc < 2 {
		return nil, fmt.Errorf("%w: %d vectors per node give %d per rank, need at least 2",
			modred.ErrBudget, vs.maxVecsPerNode, vs.maxVecsPerProc)
	}
	vs.budget.limit = vs.maxVecsPerProc
	return vs, nil
}

// Comm returns the execution context.
func (vs *VectorSpace) Comm() parallel.Comm { return vs.comm }

// InnerProduct returns the inner product in use.
func (vs *VectorSpace) InnerProduct() vectors.InnerProduct { return vs.ip }

// MaxVecsPerProc returns the number of vectors this rank may hold.
func (vs *VectorSpace) MaxVecsPerProc() int { return vs.maxVecsPerProc }

// Logger returns the logger.
func (vs *VectorSpace) Logger() *log.Logger { return vs.logger }

// load gets the vectors behind handles and books them against the budget.
func (vs *VectorSpace) load(handles []vectors.Handle) ([]mat.Vector, error) {
	vs.budget.acquire(len(handles))
	res := make([]mat.Vector, len(handles))
	for i, h := range handles {
		v, err := h.Get()
		if err != nil {
			vs.budget.release(len(handles))
			return nil, err
		}
		res[i] = v
	}
	return res, nil
}

// forEach splits [0, n) into one contiguous range per worker and runs fn on
// every range concurrently.
func (vs *VectorSpace) forEach(n int, fn func(lo, hi int) error) error {
	if n == 0 {
		return nil
	}
	numWorkers := min(vs.workers, n)
	ranges := parallel.Assignments(n, numWorkers)
	errs := make([]error, numWorkers)

	var wg sync.WaitGroup
	wg.Add(numWorkers)
	for worker, r := range ranges {
		go func(worker, lo, hi int) {
			defer wg.Done()
			errs[worker] = fn(lo, hi)
		}(worker, r[0], r[1])
	}
	wg.Wait()

	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}

// agree hands every rank the first error of any rank, so all ranks abort
// the operation together.
func (vs *VectorSpace) agree(err error) error {
	var first error
	for rank := 0; rank < vs.comm.NumProcs(); rank++ {
		e := parallel.Broadcast(vs.comm, errBox{err}, rank).err
		if e != nil && first == nil {
			first = e
		}
	}
	return first
}

type errBox struct{ err error }

// budget counts the vectors a rank holds.
type budget struct {
	limit    int
	resident int
	peak     int
}

func (b *budget) acquire(n int) {
	b.resident += n
	if b.resident > b.limit {
		panic(fmt.Sprintf("vectorspace: %d vectors resident, budget is %d", b.resident, b.limit))
	}
	b.peak = max(b.peak, b.resident)
}

func (b *budget) release(n int) {
	b.resident -= n
}
