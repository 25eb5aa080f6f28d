// Command shuriken is the wiring entrypoint that exercises the whole
// engine end-to-end with the minimal JSON manifest format
// (internal/manifest), since real Ninja manifest parsing, the full CLI
// tool surface, and shk-trace are out of scope (spec.md §1).
package main

import (
	"os"
	"strconv"
	"time"

	"git.sr.ht/~sircmpwn/getopt"
	"github.com/tevino/abool/v2"

	"shuriken/internal/buildgraph"
	"shuriken/internal/dirty"
	"shuriken/internal/fsx"
	"shuriken/internal/invocation"
	"shuriken/internal/loadavg"
	"shuriken/internal/manifest"
	"shuriken/internal/pathid"
	"shuriken/internal/runner"
	"shuriken/internal/scheduler"
	"shuriken/internal/shkerr"
	"shuriken/internal/statusline"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	logger := shkerr.Default()

	buildDir := "."
	parallelism := 1
	failuresAllowed := 1
	maxLoad := -1.0

	opts, optind, err := getopt.Getopts(args, "C:j:k:l:")
	if err != nil {
		logger.Printf("%v", err)
		return 1
	}
	for _, o := range opts {
		switch o.Option {
		case 'C':
			buildDir = o.Value
		case 'j':
			v, err := strconv.Atoi(o.Value)
			if err != nil || v < 0 {
				logger.Printf("invalid -j parameter")
				return 1
			}
			parallelism = v
		case 'k':
			v, err := strconv.Atoi(o.Value)
			if err != nil {
				logger.Printf("invalid -k parameter")
				return 1
			}
			failuresAllowed = v
		case 'l':
			v, err := strconv.ParseFloat(o.Value, 64)
			if err != nil {
				logger.Printf("invalid -l parameter")
				return 1
			}
			maxLoad = v
		}
	}
	rest := args[optind:]
	if len(rest) == 0 {
		logger.Printf("usage: shuriken [-C dir] [-j N] [-k N] [-l LOAD] <manifest.json>")
		return 1
	}
	manifestPath := rest[0]

	return build(logger, buildDir, manifestPath, parallelism, failuresAllowed, maxLoad)
}

// build drives spec.md §9's manifest self-rebuild pattern: each cycle
// re-parses the manifest from scratch, and if it declares a dirty
// self-rebuild step, runs only that step and reloads again rather than
// trusting a graph built from a manifest that may have just changed
// underneath it. scheduler.SelfRebuildLoop owns the cycle cap; cycle
// itself supplies the manifest-specific mechanics through closures
// since internal/scheduler has no reason to know about
// internal/manifest.
func build(logger *shkerr.Logger, buildDir, manifestPath string, parallelism, failuresAllowed int, maxLoad float64) int {
	var cyc buildCycle
	defer cyc.close()

	outcome, err := scheduler.SelfRebuildLoop(
		func() (bool, error) { return cyc.reload(logger, buildDir, manifestPath) },
		func() (scheduler.Outcome, error) { return cyc.runSelfRebuildStep(parallelism, maxLoad, failuresAllowed) },
		func() (scheduler.Outcome, error) { return cyc.runFullBuild(parallelism, maxLoad, failuresAllowed) },
	)
	if err != nil {
		logger.Printf("%v", err)
		return 1
	}

	switch {
	case outcome.Interrupted:
		return 2
	case outcome.Failed > 0:
		return 1
	default:
		return 0
	}
}

// buildCycle holds the state a single self-rebuild cycle reloads from
// scratch: a fresh interner, graph, file system view and invocation
// log, all discarded and rebuilt by the next reload.
type buildCycle struct {
	interner    *pathid.Interner
	graph       *buildgraph.Graph
	spec        manifest.Spec
	fs          fsx.FileSystem
	invocations *invocation.Invocations
	appender    *invocation.Appender
	interrupted *abool.AtomicBool
	now         func() int64
}

// selfRebuildStep is the index manifest.Build always prepends the
// self-rebuild step at, when the manifest declares one.
const selfRebuildStep = 0

func (c *buildCycle) reload(logger *shkerr.Logger, buildDir, manifestPath string) (bool, error) {
	c.close()

	interner := pathid.New()
	spec, err := manifest.Load(manifestPath)
	if err != nil {
		return false, err
	}
	g, err := manifest.Build(interner, spec)
	if err != nil {
		return false, err
	}

	var fs fsx.FileSystem = fsx.NewRealFileSystem()
	if os.Getenv("SHK_STATCACHE") == "1" {
		fs.EnableStatCache()
	}

	logPath := buildDir + "/.shk_log"
	parseResult, err := invocation.ParseFile(interner, logPath)
	if err != nil {
		return false, err
	}
	if parseResult.Warning != "" {
		logger.Printf("%s", parseResult.Warning)
	}

	appender, err := invocation.Open(interner, logPath, parseResult)
	if err != nil {
		return false, err
	}

	c.interner = interner
	c.graph = g
	c.spec = spec
	c.fs = fs
	c.invocations = parseResult.Invocations
	c.appender = appender
	if c.interrupted == nil {
		c.interrupted = abool.New()
	}
	c.now = func() int64 { return time.Now().Unix() }

	if spec.SelfRebuild == nil {
		return false, nil
	}
	dirtyResult, err := dirty.Analyze(g, interner, fs, c.invocations, c.now(), []int{selfRebuildStep})
	if err != nil {
		return false, err
	}
	return dirtyResult.Dirty[selfRebuildStep], nil
}

func (c *buildCycle) runSelfRebuildStep(parallelism int, maxLoad float64, failuresAllowed int) (scheduler.Outcome, error) {
	dirtyResult, err := dirty.Analyze(c.graph, c.interner, c.fs, c.invocations, c.now(), []int{selfRebuildStep})
	if err != nil {
		return scheduler.Outcome{}, err
	}
	cr := buildRunnerStack(c.graph, parallelism, maxLoad, c.interrupted)
	status := statusline.New(1)
	sched := scheduler.New(c.graph, c.interner, c.fs, c.invocations, c.appender, cr, status, c.interrupted, c.now, failuresAllowed)
	return sched.Run(dirtyResult)
}

func (c *buildCycle) runFullBuild(parallelism int, maxLoad float64, failuresAllowed int) (scheduler.Outcome, error) {
	allTargets := make([]int, len(c.graph.Nodes))
	for i := range c.graph.Nodes {
		allTargets[i] = i
	}
	roots := dirty.RootsForTargets(c.graph, allTargets)

	dirtyResult, err := dirty.Analyze(c.graph, c.interner, c.fs, c.invocations, c.now(), roots)
	if err != nil {
		return scheduler.Outcome{}, err
	}

	cr := buildRunnerStack(c.graph, parallelism, maxLoad, c.interrupted)
	status := statusline.New(len(dirtyResult.Dirty))
	sched := scheduler.New(c.graph, c.interner, c.fs, c.invocations, c.appender, cr, status, c.interrupted, c.now, failuresAllowed)
	return sched.Run(dirtyResult)
}

func (c *buildCycle) close() {
	if c.appender != nil {
		c.appender.Close()
		c.appender = nil
	}
}

func buildRunnerStack(g *buildgraph.Graph, parallelism int, maxLoad float64, interrupted *abool.AtomicBool) runner.CommandRunner {
	tracer := runner.NoopTracer{}
	leaf := runner.NewRealCommandRunner(tracer, interrupted)

	limited := runner.NewLimitedCommandRunner(leaf, parallelism)
	if maxLoad >= 0 {
		limited = limited.WithLoadCeiling(loadavg.System{}, maxLoad)
	}

	pooled := runner.NewPooledCommandRunner(limited)
	for _, pool := range g.Pools {
		pooled.RegisterPool(pool.Name, pool.Capacity)
	}
	return pooled
}
