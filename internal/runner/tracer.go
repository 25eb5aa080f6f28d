package runner

import "context"

// Tracer observes which paths a command's process actually touched,
// beyond what the manifest declared. The real implementation is
// shk-trace, a syscall-level observer that is out of scope for this
// module (spec.md §1); NoopTracer stands in for it in demos and tests.
type Tracer interface {
	// Trace runs command exactly the way a leaf runner would, and
	// reports both its outcome and the paths it observed. It must
	// respect ctx: cancelling ctx should terminate the underlying
	// process rather than let it run to completion.
	Trace(ctx context.Context, command string) (Result, error)
}

// NoopTracer runs commands with os/exec and reports declared as the
// observed set, since it does no actual syscall interposition.
type NoopTracer struct {
	Declared func(command string) ObservedPaths
}

// Trace implements Tracer by delegating to runCommand and attaching
// whatever Declared reports for this command line, if set.
func (t NoopTracer) Trace(ctx context.Context, command string) (Result, error) {
	res, err := runCommand(ctx, command)
	if t.Declared != nil {
		res.Observed = t.Declared(command)
	}
	return res, err
}
