// Package runner implements the command-runner stack: a chain of
// decorators over a leaf runner that actually executes processes
// (spec.md §4.6) — pooled admission control, then a global parallelism
// and load-average ceiling, then the process itself.
package runner

// Result is what a completed invocation reports back to the
// scheduler: exit status, captured output, and the paths a tracer
// observed being read or written, independent of what the step
// declared (spec.md §4.6).
type Result struct {
	Success     bool
	Interrupted bool
	Output      string
	Observed    ObservedPaths
}

// ObservedPaths is the set of paths a Tracer saw a command touch,
// split by access mode. A real syscall tracer (shk-trace) is out of
// scope; runner.Tracer is the narrow interface such a subsystem would
// implement (spec.md §1).
type ObservedPaths struct {
	Read    []string
	Written []string
}

// Callback is invoked exactly once when a submitted command finishes.
type Callback func(Result)

// CommandRunner is the capability every layer of the stack implements
// (spec.md §4.6): invoke, size, empty, can_run_more, run_commands.
type CommandRunner interface {
	// Invoke submits command to run under the named pool ("" is the
	// implicit unlimited pool, "console" is capacity 1). onDone is
	// called exactly once, from within a later RunCommands call, never
	// re-entrantly from Invoke.
	Invoke(command string, pool string, onDone Callback) error

	// Size returns the number of submitted-but-not-completed commands.
	Size() int

	// Empty is a convenience for Size() == 0.
	Empty() bool

	// CanRunMore is the admission predicate the scheduler polls before
	// submitting another step.
	CanRunMore() bool

	// RunCommands drains one batch of completions, invoking their
	// callbacks, and returns true iff the user requested interruption
	// (the caller should stop submitting further work).
	RunCommands() (interrupted bool, err error)
}
