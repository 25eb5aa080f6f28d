// Package scheduler implements the build coordinator (spec.md §4.7):
// a single-threaded state machine that walks the dirty subgraph in
// dependency order, submits ready steps to a runner.CommandRunner,
// and on completion re-fingerprints outputs, records an invocation-log
// entry, and unblocks dependents.
package scheduler

import (
	"shuriken/internal/buildgraph"
	"shuriken/internal/dirty"
	"shuriken/internal/fingerprint"
	"shuriken/internal/fsx"
	"shuriken/internal/hashx"
	"shuriken/internal/invocation"
	"shuriken/internal/pathid"
	"shuriken/internal/runner"
	"shuriken/internal/shkerr"
	"shuriken/internal/statusline"

	"github.com/tevino/abool/v2"
)

// InfiniteFailures is the -k value meaning "never stop on failure"
// (spec.md §4.7: "N<=0 means infinity").
const InfiniteFailures = 0

// Outcome summarizes how a Run call ended.
type Outcome struct {
	NoWork      bool
	Interrupted bool
	Failed      int
}

// Scheduler owns the coordinator state machine for a single build.
type Scheduler struct {
	graph       *buildgraph.Graph
	interner    *pathid.Interner
	fs          fsx.FileSystem
	invocations *invocation.Invocations
	appender    *invocation.Appender
	run         runner.CommandRunner
	status      *statusline.Printer
	interrupted *abool.AtomicBool
	now         func() int64

	failuresAllowed int // <= 0 means InfiniteFailures
	remaining       int

	pending  map[int]int    // step -> unmet dirty-producer count
	blocked  map[int]bool
	ready    []int
	inFlight map[int]bool
	skipped  map[int]bool // restat-cleared: never actually run
	failed   int
}

// New constructs a Scheduler. now supplies wall-clock seconds for
// fingerprint capture times (injected so tests can control time
// deterministically, per spec.md §8's same-second race scenario).
func New(
	g *buildgraph.Graph,
	interner *pathid.Interner,
	fs fsx.FileSystem,
	invocations *invocation.Invocations,
	appender *invocation.Appender,
	cr runner.CommandRunner,
	status *statusline.Printer,
	interrupted *abool.AtomicBool,
	now func() int64,
	failuresAllowed int,
) *Scheduler {
	return &Scheduler{
		graph:           g,
		interner:        interner,
		fs:              fs,
		invocations:     invocations,
		appender:        appender,
		run:             cr,
		status:          status,
		interrupted:     interrupted,
		now:             now,
		failuresAllowed: failuresAllowed,
		remaining:       failuresAllowed,
		pending:         make(map[int]int),
		blocked:         make(map[int]bool),
		inFlight:        make(map[int]bool),
		skipped:         make(map[int]bool),
	}
}

// Run drives the dirty steps in dirtyResult to completion (spec.md
// §4.7 main loop).
func (s *Scheduler) Run(dirtyResult dirty.Result) (outcome Outcome, err error) {
	if len(dirtyResult.Dirty) == 0 {
		s.status.NoWork()
		return Outcome{NoWork: true}, nil
	}
	s.seed(dirtyResult)

	// A log-append failure after a successful command is fatal (spec.md
	// §7): the in-memory state would diverge from durable state. It
	// surfaces from deep inside a runner completion callback with no
	// error return of its own, so recordSuccess panics and this defer
	// turns that back into a normal error return.
	defer func() {
		if r := recover(); r != nil {
			if logErr, ok := r.(error); ok {
				err = logErr
				return
			}
			panic(r)
		}
	}()

	for {
		for len(s.ready) > 0 && s.run.CanRunMore() && !s.ShouldStop() {
			step := s.ready[0]
			s.ready = s.ready[1:]
			if err := s.submit(step, dirtyResult); err != nil {
				return Outcome{}, err
			}
		}

		nothingLeft := len(s.ready) == 0 && len(s.blocked) == 0
		if len(s.inFlight) == 0 && (nothingLeft || s.ShouldStop()) {
			break
		}

		interrupted, err := s.run.RunCommands()
		if err != nil {
			return Outcome{}, err
		}
		if interrupted {
			return s.drain()
		}
	}

	s.status.Summary(s.failed)
	return Outcome{Failed: s.failed}, nil
}

// seed computes each dirty step's unmet-prerequisite count and splits
// the initial ready/blocked sets.
func (s *Scheduler) seed(dr dirty.Result) {
	for step := range dr.Dirty {
		count := 0
		seen := make(map[int]bool)
		for _, in := range s.graph.Steps[step].Inputs {
			producer := s.graph.Nodes[in].ProducingStep
			if producer == buildgraph.NoStep || seen[producer] {
				continue
			}
			seen[producer] = true
			if dr.Dirty[producer] {
				count++
			}
		}
		s.pending[step] = count
		if count == 0 {
			s.ready = append(s.ready, step)
		} else {
			s.blocked[step] = true
		}
	}
}

func (s *Scheduler) submit(step int, dr dirty.Result) error {
	s.inFlight[step] = true
	st := s.graph.Steps[step]
	poolName := ""
	if st.Pool != nil {
		poolName = st.Pool.Name
	}
	s.status.Started(st.Command)
	return s.run.Invoke(st.Command, poolName, func(res runner.Result) {
		s.onStepDone(step, res, dr)
	})
}

func (s *Scheduler) onStepDone(step int, res runner.Result, dr dirty.Result) {
	delete(s.inFlight, step)
	st := s.graph.Steps[step]

	if res.Interrupted {
		return
	}
	if !res.Success {
		s.failed++
		s.status.Failed(st.Command, res.Output)
		if s.failuresAllowed > InfiniteFailures {
			s.remaining--
		}
		// Dependents of a failed step are never scheduled (spec.md §4.7).
		return
	}
	s.status.Succeeded(st.Command)

	entry, unchanged, err := s.recordSuccess(step, res)
	if err != nil {
		// Fatal per spec.md §7: a log-append failure after a successful
		// command would let in-memory state diverge from durable state.
		panic(shkerr.Wrap(shkerr.Io, "", err))
	}
	_ = entry

	if st.Restat && unchanged {
		s.reevaluateDependents(step, dr)
	}

	s.completeAndUnblock(step, dr)
}

// recordSuccess re-fingerprints step's declared and observed paths and
// appends an Invocation record (spec.md §4.7 "on success"). It reports
// whether every declared output's content hash is unchanged from the
// prior recorded entry, the condition restat handling needs.
func (s *Scheduler) recordSuccess(step int, res runner.Result) (*invocation.Entry, bool, error) {
	st := s.graph.Steps[step]
	now := s.now()

	prevHash := hashx.CommandDigest(st.Command, nil)
	prev, hadPrev := s.invocations.Lookup(prevHash)

	outputs, err := s.fingerprintAll(now, st.Outputs, res.Observed.Written)
	if err != nil {
		return nil, false, err
	}
	inputs, err := s.fingerprintAll(now, st.Inputs, res.Observed.Read)
	if err != nil {
		return nil, false, err
	}

	unchanged := hadPrev && sameContent(prev.Outputs, outputs)

	entry := &invocation.Entry{CommandHash: prevHash, Outputs: outputs, Inputs: inputs}
	s.invocations.Entries[entry.CommandHash] = entry
	if err := s.appender.RecordRanCommand(entry); err != nil {
		return nil, false, err
	}
	return entry, unchanged, nil
}

func (s *Scheduler) fingerprintAll(now int64, nodeIndices []int, observed []string) ([]invocation.PathFingerprint, error) {
	seen := make(map[pathid.ID]bool)
	var out []invocation.PathFingerprint

	add := func(id pathid.ID) error {
		if seen[id] {
			return nil
		}
		seen[id] = true
		fp, err := fingerprint.Take(s.fs, now, s.interner.Path(id))
		if err != nil {
			return err
		}
		out = append(out, invocation.PathFingerprint{Path: id, FP: fp})
		return nil
	}

	for _, n := range nodeIndices {
		if err := add(s.graph.Nodes[n].Path); err != nil {
			return nil, err
		}
	}
	for _, p := range observed {
		if err := add(s.interner.Intern(p)); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func sameContent(a, b []invocation.PathFingerprint) bool {
	if len(a) != len(b) {
		return false
	}
	byPath := make(map[pathid.ID]hashx.Hash, len(a))
	for _, pf := range a {
		byPath[pf.Path] = pf.FP.Hash
	}
	for _, pf := range b {
		h, ok := byPath[pf.Path]
		if !ok || h != pf.FP.Hash {
			return false
		}
	}
	return true
}

// reevaluateDependents implements the restat short-circuit (spec.md
// §4.7(b)): a step's direct dependents that were only preemptively
// dirty because this producer was dirty get re-checked against their
// own recorded fingerprints, and are marked clean (skipped) if nothing
// else about them changed. When a skipped dependent is itself a restat
// step, the same check cascades to its own dependents.
func (s *Scheduler) reevaluateDependents(producer int, dr dirty.Result) {
	st := s.graph.Steps[producer]
	var dependents []int
	seenDep := make(map[int]bool)
	for _, out := range st.Outputs {
		for _, dep := range s.graph.Nodes[out].Steps {
			if seenDep[dep] || s.skipped[dep] {
				continue
			}
			seenDep[dep] = true
			dependents = append(dependents, dep)
		}
	}

	for _, dep := range dependents {
		if !s.blocked[dep] && !contains(s.ready, dep) {
			continue // already in flight or done: too late to skip
		}
		stillDirty, _, err := dirty.OwnDirty(s.graph, s.interner, s.fs, s.invocations, dep, dr.Explanations)
		if err != nil || stillDirty {
			continue
		}
		s.skipStep(dep, dr)
	}
}

func contains(xs []int, v int) bool {
	for _, x := range xs {
		if x == v {
			return true
		}
	}
	return false
}

// skipStep marks dep as satisfied without running it, and cascades the
// same restat short-circuit check to its own dependents.
func (s *Scheduler) skipStep(dep int, dr dirty.Result) {
	s.skipped[dep] = true
	delete(s.blocked, dep)
	for i, r := range s.ready {
		if r == dep {
			s.ready = append(s.ready[:i], s.ready[i+1:]...)
			break
		}
	}
	s.unblockDependents(dep)
	if s.graph.Steps[dep].Restat {
		s.reevaluateDependents(dep, dr)
	}
}

func (s *Scheduler) completeAndUnblock(step int, dr dirty.Result) {
	s.unblockDependents(step)
}

func (s *Scheduler) unblockDependents(step int) {
	st := s.graph.Steps[step]
	seen := make(map[int]bool)
	for _, out := range st.Outputs {
		for _, dep := range s.graph.Nodes[out].Steps {
			if seen[dep] || !s.blocked[dep] {
				continue
			}
			seen[dep] = true
			s.pending[dep]--
			if s.pending[dep] <= 0 {
				delete(s.blocked, dep)
				s.ready = append(s.ready, dep)
			}
		}
	}
}

// drain stops submitting new work and waits for in-flight steps to
// finish, per spec.md §4.7 step 4 (interrupt handling, exit code 2).
func (s *Scheduler) drain() (Outcome, error) {
	for len(s.inFlight) > 0 {
		if _, err := s.run.RunCommands(); err != nil {
			return Outcome{}, err
		}
	}
	s.status.Interrupted()
	return Outcome{Interrupted: true, Failed: s.failed}, nil
}

// ShouldStop reports whether the failure budget is exhausted, per
// spec.md §4.7 ("If zero, stop submitting and drain").
func (s *Scheduler) ShouldStop() bool {
	return s.failuresAllowed > InfiniteFailures && s.remaining <= 0
}
