package parallel

import (
	"errors"
	"fmt"
	"sync"
)

// errAborted is raised inside ranks waiting at a collective when another
// rank has failed.
var errAborted = errors.New("parallel: aborted by a failing rank")

// Group runs numProcs ranks as goroutines sharing one process. The ranks
// must all reach the same sequence of collective calls.
type Group struct {
	numProcs int
	numNodes int

	mu         sync.Mutex
	cond       *sync.Cond
	arrived    int
	generation uint64
	aborted    bool
	slot       any
}

// NewGroup returns a group of numProcs ranks spread over numNodes nodes.
func NewGroup(numProcs, numNodes int) (*Group, error) {
	if numProcs < 1 || numNodes < 1 || numNodes > numProcs {
		return nil, fmt.Errorf("parallel: bad group size, %d procs on %d nodes", numProcs, numNodes)
	}
	g := &Group{numProcs: numProcs, numNodes: numNodes}
	g.cond = sync.NewCond(&g.mu)
	return g, nil
}

// Run executes fn once per rank and waits for all of them. The first rank
// to fail aborts the others at their next collective call, and Run returns
// the errors of the failing ranks.
func (g *Group) Run(fn func(c Comm) error) error {
	g.mu.Lock()
	g.arrived, g.aborted, g.slot = 0, false, nil
	g.mu.Unlock()

	errs := make([]error, g.numProcs)
	var wg sync.WaitGroup
	wg.Add(g.numProcs)
	for rank := 0; rank < g.numProcs; rank++ {
		go func(rank int) {
			defer wg.Done()
			defer func() {
				if p := recover(); p != nil {
					if p == errAborted {
						return
					}
					errs[rank] = fmt.Errorf("parallel: rank %d panicked: %v", rank, p)
					g.abort()
				}
			}()
			if err := fn(&member{group: g, rank: rank}); err != nil {
				errs[rank] = fmt.Errorf("rank %d: %w", rank, err)
				g.abort()
			}
		}(rank)
	}
	wg.Wait()
	return errors.Join(errs...)
}

func (g *Group) abort() {
	g.mu.Lock()
	g.aborted = true
	g.cond.Broadcast()
	g.mu.Unlock()
}

func (g *Group) barrier() {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.aborted {
		panic(errAborted)
	}
	gen := g.generation
	g.arrived++
	if g.arrived == g.numProcs {
		g.arrived = 0
		g.generation++
		g.cond.Broadcast()
		return
	}
	for gen == g.generation {
		if g.aborted {
			panic(errAborted)
		}
		g.cond.Wait()
	}
}

// member is the Comm of a single rank of a Group.
type member struct {
	group *Group
	rank  int
}

func (m *member) Rank() int        { return m.rank }
func (m *member) NumProcs() int    { return m.group.numProcs }
func (m *member) NumNodes() int    { return m.group.numNodes }
func (m *member) IsRankZero() bool { return m.rank == 0 }
func (m *member) Barrier()         { m.group.barrier() }

func (m *member) Bcast(value any, root int) any {
	g := m.group
	if m.rank == root {
		g.mu.Lock()
		g.slot = value
		g.mu.Unlock()
	}
	// The slot is read between the two barriers, so the root can't
	// overwrite it before every rank has its copy.
	g.barrier()
	g.mu.Lock()
	res := g.slot
	g.mu.Unlock()
	g.barrier()
	return res
}
