package runner

import (
	"github.com/ahrtr/gocontainer/queue/priorityqueue"
	"github.com/edwingeng/deque"
)

// consoleCapacity is the well-known "console" pool's fixed capacity
// (spec.md §4.6, §9): only one console-pool step may run at a time so
// its output can be shown live without interleaving.
const consoleCapacity = 1

// unlimitedPool is the implicit "" pool name: it has no capacity cap.
const unlimitedPool = ""

// submission is one queued Invoke call waiting for its pool to have
// room.
type submission struct {
	seq     int64
	command string
	onDone  Callback
}

// seqComparator orders submissions FIFO by sequence number, giving the
// per-pool priorityqueue.Interface (github.com/ahrtr/gocontainer, the
// teacher's own choice in ninja-go/build_plan.go's Plan.ready_) the
// same submission-order semantics spec.md §4.6 requires ("within a
// pool, delayed commands are dispatched in submission order").
type seqComparator struct{}

func (seqComparator) Compare(a, b interface{}) (int, error) {
	sa, sb := a.(*submission).seq, b.(*submission).seq
	switch {
	case sa < sb:
		return -1, nil
	case sa > sb:
		return 1, nil
	default:
		return 0, nil
	}
}

type poolState struct {
	capacity int // 0 means unlimited
	inFlight int
	waiting  priorityqueue.Interface
}

func newPoolState(capacity int) *poolState {
	return &poolState{capacity: capacity, waiting: priorityqueue.New().WithComparator(seqComparator{})}
}

func (p *poolState) hasRoom() bool {
	return p.capacity <= 0 || p.inFlight < p.capacity
}

// PooledCommandRunner is the outermost layer of the command-runner
// stack (spec.md §4.6): it admits a submission straight to inner when
// its pool has room, or queues it. On each completion it forwards the
// next waiting submission for that pool, FIFO.
//
// dispatch is a deque of submissions newly freed by a completion but
// not yet handed to inner, grounded in the teacher's
// Subprocess.finished_ / Plan.finished_ deque usage
// (subprocess.go, ninja-go/build.go): draining it from RunCommands
// rather than calling inner.Invoke directly inside a completion
// callback keeps a long cascade of same-pool completions from growing
// the call stack.
type PooledCommandRunner struct {
	inner CommandRunner
	pools map[string]*poolState
	nextSeq int64

	dispatch deque.Deque
}

// NewPooledCommandRunner wraps inner. Pool capacities are set through
// RegisterPool; a pool first seen by Invoke without having been
// registered is unlimited. The "console" pool is always capacity 1
// regardless of what a manifest declares, and "" is always unlimited.
func NewPooledCommandRunner(inner CommandRunner) *PooledCommandRunner {
	return &PooledCommandRunner{
		inner:    inner,
		pools:    make(map[string]*poolState),
		dispatch: deque.NewDeque(),
	}
}

// RegisterPool sets pool's capacity ahead of any Invoke call. Calling
// it more than once for the same pool is a no-op after the first.
func (r *PooledCommandRunner) RegisterPool(name string, capacity int) {
	if name == "console" {
		capacity = consoleCapacity
	}
	if _, ok := r.pools[name]; !ok {
		r.pools[name] = newPoolState(capacity)
	}
}

func (r *PooledCommandRunner) poolFor(name string) *poolState {
	if p, ok := r.pools[name]; ok {
		return p
	}
	capacity := 0
	if name == "console" {
		capacity = consoleCapacity
	}
	p := newPoolState(capacity)
	r.pools[name] = p
	return p
}

func (r *PooledCommandRunner) Invoke(command string, poolName string, onDone Callback) error {
	pool := r.poolFor(poolName)
	r.nextSeq++
	sub := &submission{seq: r.nextSeq, command: command, onDone: onDone}

	if pool.hasRoom() {
		return r.admit(poolName, pool, sub)
	}
	pool.waiting.Add(sub)
	return nil
}

func (r *PooledCommandRunner) admit(poolName string, pool *poolState, sub *submission) error {
	pool.inFlight++
	wrapped := func(res Result) {
		pool.inFlight--
		sub.onDone(res)
		if !pool.waiting.IsEmpty() && pool.hasRoom() {
			next := pool.waiting.Poll().(*submission)
			r.dispatch.PushBack(dispatchEntry{poolName: poolName, sub: next})
		}
	}
	return r.inner.Invoke(sub.command, poolName, wrapped)
}

type dispatchEntry struct {
	poolName string
	sub      *submission
}

func (r *PooledCommandRunner) Size() int {
	total := r.inner.Size()
	for _, p := range r.pools {
		total += p.waiting.Size()
	}
	return total
}

func (r *PooledCommandRunner) Empty() bool { return r.Size() == 0 }

func (r *PooledCommandRunner) CanRunMore() bool { return r.inner.CanRunMore() }

func (r *PooledCommandRunner) RunCommands() (bool, error) {
	interrupted, err := r.inner.RunCommands()
	if err != nil {
		return interrupted, err
	}
	for !r.dispatch.Empty() {
		entry := r.dispatch.Front().(dispatchEntry)
		r.dispatch.PopFront()
		pool := r.pools[entry.poolName]
		if err := r.admit(entry.poolName, pool, entry.sub); err != nil {
			return interrupted, err
		}
	}
	return interrupted, nil
}
