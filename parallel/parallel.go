// Package parallel holds the execution context shared by the workers of a
// computation. Every worker runs the same program with a different rank and
// the workers meet only at collective calls: Barrier and Bcast.
//
// Serial returns the context of a single worker, where the collectives are
// no-ops. Group runs several ranks as goroutines of one process.
package parallel

// Comm is the execution context handed to every component.
type Comm interface {
	// Rank is the index of this worker, 0 <= Rank < NumProcs.
	Rank() int
	// NumProcs is the number of workers.
	NumProcs() int
	// NumNodes is the number of machines the workers share. It is used to
	// split a per node memory budget between workers.
	NumNodes() int
	// IsRankZero reports whether this worker is rank zero.
	IsRankZero() bool
	// Barrier blocks until every worker has called it.
	Barrier()
	// Bcast returns the value passed by the worker with rank root on every
	// worker.
	Bcast(value any, root int) any
}

// Broadcast is a typed wrapper around Comm.Bcast.
func Broadcast[T any](c Comm, value T, root int) T {
	v := c.Bcast(value, root)
	if v == nil {
		var zero T
		return zero
	}
	return v.(T)
}

// CallFromRankZero runs fn on rank zero only and returns its error on all
// ranks once every rank has reached the call.
func CallFromRankZero(c Comm, fn func() error) error {
	var err error
	if c.IsRankZero() {
		err = fn()
	}
	err = Broadcast(c, errorBox{err}, 0).err
	c.Barrier()
	return err
}

// CallAndBroadcast runs fn on rank zero and hands its result to every rank.
func CallAndBroadcast[T any](c Comm, fn func() (T, error)) (T, error) {
	var res result[T]
	if c.IsRankZero() {
		res.value, res.err = fn()
	}
	res = Broadcast(c, res, 0)
	return res.value, res.err
}

type errorBox struct{ err error }

type result[T any] struct {
	value T
	err   error
}

// Assignments splits the tasks 0..numTasks-1 into numProcs contiguous
// ranges and returns the [start, end) range of every rank. The first
// numTasks%numProcs ranks get one extra task.
func Assignments(numTasks, numProcs int) [][2]int {
	res := make([][2]int, numProcs)
	base := numTasks / numProcs
	extra := numTasks % numProcs
	start := 0
	for rank := range res {
		n := base
		if rank < extra {
			n++
		}
		res[rank] = [2]int{start, start + n}
		start += n
	}
	return res
}

// MyTasks returns the [start, end) range of tasks assigned to this rank.
func MyTasks(c Comm, numTasks int) (start, end int) {
	r := Assignments(numTasks, c.NumProcs())[c.Rank()]
	return r[0], r[1]
}

type serial struct{}

// Serial returns the context of a computation with a single worker.
func Serial() Comm { return serial{} }

func (serial) Rank() int                     { return 0 }
func (serial) NumProcs() int                 { return 1 }
func (serial) NumNodes() int                 { return 1 }
func (serial) IsRankZero() bool              { return true }
func (serial) Barrier()                      {}
func (serial) Bcast(value any, root int) any { return value }
