// Package dirty implements the dirty analyser (spec.md §4.5): given a
// build graph, the loaded invocation log, and a set of requested
// targets, it decides which steps need to run.
package dirty

import (
	"shuriken/internal/buildgraph"
	"shuriken/internal/fingerprint"
	"shuriken/internal/fsx"
	"shuriken/internal/hashx"
	"shuriken/internal/invocation"
	"shuriken/internal/pathid"
	"shuriken/internal/shkerr"
)

// Result is the outcome of analysing one build: which steps must run,
// and the command hash each dirty step should be recorded under once
// it succeeds.
type Result struct {
	Dirty        map[int]bool
	CommandHash  map[int]hashx.Hash
	Explanations *shkerr.Explanations
}

// Analyze computes the dirty set for every step needed to build the
// roots (typically the producing steps of the requested targets),
// walking the graph in topological order so a step's producers are
// always decided before the step itself (spec.md §4.5 step 4:
// dirtiness is monotonic upwards in the DAG).
//
// It enables fs's stat cache for the duration of the pass and disables
// it before returning, so a restat step run immediately afterward
// observes fresh stat data (spec.md §4.5, §9).
func Analyze(
	g *buildgraph.Graph,
	interner *pathid.Interner,
	fs fsx.FileSystem,
	invocations *invocation.Invocations,
	now int64,
	roots []int,
) (Result, error) {
	order, err := g.TopoOrder(roots)
	if err != nil {
		return Result{}, shkerr.New(shkerr.Build, err)
	}

	fs.EnableStatCache()
	defer fs.DisableStatCache()

	res := Result{
		Dirty:        make(map[int]bool),
		CommandHash:  make(map[int]hashx.Hash),
		Explanations: shkerr.NewExplanations(),
	}

	for _, step := range order {
		dirty, hash, err := analyzeStep(g, interner, fs, invocations, now, step, res.Dirty, res.Explanations)
		if err != nil {
			return Result{}, err
		}
		res.CommandHash[step] = hash
		if dirty {
			res.Dirty[step] = true
		}
	}
	return res, nil
}

func analyzeStep(
	g *buildgraph.Graph,
	interner *pathid.Interner,
	fs fsx.FileSystem,
	invocations *invocation.Invocations,
	now int64,
	stepIdx int,
	dirty map[int]bool,
	explain *shkerr.Explanations,
) (bool, hashx.Hash, error) {
	step := g.Steps[stepIdx]

	// 4. Any transitive input step is dirty.
	for _, in := range step.Inputs {
		producer := g.Nodes[in].ProducingStep
		if producer != buildgraph.NoStep && dirty[producer] {
			explain.Record(g.Nodes[in].Path, "input produced by dirty step %d", producer)
			hash := hashx.CommandDigest(step.Command, nil)
			return true, hash, nil
		}
	}

	return OwnDirty(g, interner, fs, invocations, stepIdx, explain)
}

// OwnDirty decides dirtiness from rules 1-3 only (spec.md §4.5),
// ignoring whether any producer of this step's inputs is itself dirty.
// The scheduler uses this in isolation to re-evaluate a restat step's
// dependents once the restat step's actual output content is known
// (spec.md §4.7(b)): a dependent scheduled only because its producer
// was preemptively dirty may turn out not to need rebuilding after
// all.
func OwnDirty(
	g *buildgraph.Graph,
	interner *pathid.Interner,
	fs fsx.FileSystem,
	invocations *invocation.Invocations,
	stepIdx int,
	explain *shkerr.Explanations,
) (bool, hashx.Hash, error) {
	step := g.Steps[stepIdx]
	hash := hashx.CommandDigest(step.Command, nil)

	entry, ok := invocations.Lookup(hash)
	if !ok {
		// 1. No invocation entry exists for the step's command hash.
		return true, hash, nil
	}

	// 2. Any recorded output's fingerprint no longer matches.
	for _, pf := range entry.Outputs {
		if d, err := matchChanged(fs, interner, pf, explain, "output"); err != nil {
			return false, hash, err
		} else if d {
			return true, hash, nil
		}
	}

	// 3. Any recorded input's fingerprint no longer matches.
	for _, pf := range entry.Inputs {
		if d, err := matchChanged(fs, interner, pf, explain, "input"); err != nil {
			return false, hash, err
		} else if d {
			return true, hash, nil
		}
	}

	return false, hash, nil
}

func matchChanged(
	fs fsx.FileSystem,
	interner *pathid.Interner,
	pf invocation.PathFingerprint,
	explain *shkerr.Explanations,
	role string,
) (bool, error) {
	path := interner.Path(pf.Path)
	res, err := fingerprint.Match(fs, path, pf.FP)
	if err != nil {
		return false, shkerr.Wrap(shkerr.Io, path, err)
	}
	if !res.Clean {
		explain.Record(pf.Path, "%s %s no longer matches recorded fingerprint", role, path)
		return true, nil
	}
	return false, nil
}

// RootsForTargets returns, for each requested target node, the index
// of its producing step, skipping targets with no producer (a plain
// source file requested directly is never dirty on its own).
func RootsForTargets(g *buildgraph.Graph, targets []int) []int {
	seen := make(map[int]bool)
	var roots []int
	for _, t := range targets {
		producer := g.Nodes[t].ProducingStep
		if producer == buildgraph.NoStep || seen[producer] {
			continue
		}
		seen[producer] = true
		roots = append(roots, producer)
	}
	return roots
}
