package main

import (
	"fmt"

	"github.com/charmbracelet/log"
	"github.com/hammal/modred"
	"github.com/hammal/modred/decomp"
	"github.com/hammal/modred/gonumExtensions"
	"github.com/hammal/modred/parallel"
	"github.com/hammal/modred/sqlitestore"
	"github.com/hammal/modred/vectors"
	"github.com/hammal/modred/vectorspace"
	"gonum.org/v1/gonum/mat"
)

// storage reads and writes vectors and matrices through the configured
// backend. Templates and paths are file paths for text storage and keys for
// SQLite.
type storage struct {
	handles func(template string, indices []int) []vectors.Handle
	save    vectors.MatrixSaver
	load    vectors.MatrixLoader
	close   func() error
}

func openStorage(sc modred.StorageConfig) (*storage, error) {
	switch sc.Backend {
	case modred.StorageSQLite:
		store, err := sqlitestore.NewSQLite(sc.Path)
		if err != nil {
			return nil, err
		}
		return &storage{
			handles: store.Handles,
			save:    store.Put,
			load:    store.Get,
			close:   store.Close,
		}, nil
	default:
		return &storage{
			handles: vectors.ArrayTextHandles,
			save:    vectors.SaveArrayText,
			load:    vectors.LoadArrayText,
			close:   func() error { return nil },
		}, nil
	}
}

// weights loads the configured inner product weights, nil for none.
func (s *storage) weights(ic modred.InnerProductConfig) (mat.Matrix, error) {
	switch ic.Weights {
	case modred.WeightsDiagonal:
		w, err := s.load(ic.WeightsPath)
		if err != nil {
			return nil, fmt.Errorf("loading weights: %w", err)
		}
		flat := gonumExtensions.Flatten(w)
		return mat.NewVecDense(len(flat), flat), nil
	case modred.WeightsFull:
		w, err := s.load(ic.WeightsPath)
		if err != nil {
			return nil, fmt.Errorf("loading weights: %w", err)
		}
		return w, nil
	default:
		return nil, nil
	}
}

// rank is what a command needs on one rank.
type rank struct {
	space   *vectorspace.VectorSpace
	store   *storage
	tol     decomp.Tolerance
	weights mat.Matrix
	logger  *log.Logger
}

// run executes fn on every rank, serially for a single rank and in an
// in-process group otherwise.
func run(fn func(r rank) error) error {
	store, err := openStorage(cfg.Storage)
	if err != nil {
		return err
	}
	defer store.close()

	weights, err := store.weights(cfg.InnerProduct)
	if err != nil {
		return err
	}
	ip, err := vectors.Weighted(weights)
	if err != nil {
		return err
	}
	tol := decomp.Tolerance{Atol: cfg.Tolerance.Atol, Rtol: cfg.Tolerance.Rtol}

	onRank := func(c parallel.Comm) error {
		l := logger
		if !c.IsRankZero() {
			l = modred.Logger(nil)
		}
		space, err := vectorspace.New(vectorspace.Config{
			InnerProduct:   ip,
			MaxVecsPerNode: cfg.MaxVecsPerNode,
			Comm:           c,
			Workers:        cfg.Workers,
			Logger:         l,
		})
		if err != nil {
			return err
		}
		return fn(rank{space: space, store: store, tol: tol, weights: weights, logger: l})
	}
	if numProcs == 1 {
		return onRank(parallel.Serial())
	}
	g, err := parallel.NewGroup(numProcs, 1)
	if err != nil {
		return err
	}
	return g.Run(onRank)
}

// modeNumbers returns nums, or count numbers starting at indexFrom when
// nums is empty.
func modeNumbers(nums []int, indexFrom, count int) []int {
	if len(nums) > 0 {
		return nums
	}
	return vectors.Range(indexFrom, count)
}
