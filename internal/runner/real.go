package runner

import (
	"bytes"
	"context"
	"errors"
	"os/exec"
	"time"

	"github.com/tevino/abool/v2"
)

// interruptPollInterval bounds how long an in-flight command can
// outlive the interrupted flag being set while RunCommands is blocked
// waiting for a completion: cancelling only happens from inside
// RunCommands' wait loop, so this is the polling granularity for
// noticing the flag flipped underneath it.
const interruptPollInterval = 10 * time.Millisecond

// commandWaitDelay bounds how long runCommand waits for a command's
// output pipe to close once its context is cancelled or its shell has
// exited.
const commandWaitDelay = 100 * time.Millisecond

// RealCommandRunner is the leaf of the stack: it actually spawns
// processes, genuinely concurrently — each Invoke starts its command
// immediately in its own goroutine via exec.Cmd.Start, rather than
// queueing it for a later serial pass, so several children are in
// flight at once (spec.md §1's bounded parallelism, §8 scenario 4). It
// has no admission control of its own — CanRunMore always reports true
// — since that is the job of the layers wrapping it (spec.md §4.6).
type RealCommandRunner struct {
	tracer Tracer
	// interrupted is the single shared cancellation flag consulted by
	// RunCommands, grounded in the teacher's use of
	// github.com/tevino/abool/v2 for a shared running-flag in
	// ninja-rbe/clean_expired.go, repurposed here for the spec's §5
	// "single atomic flag" cancellation contract.
	interrupted *abool.AtomicBool

	// cancel stops every process currently in flight; called once the
	// interrupted flag is observed set, so a command that has already
	// started can still be killed rather than only skipping ones that
	// have not (spec.md §5).
	ctx    context.Context
	cancel context.CancelFunc

	inFlight int
	done     chan completion

	// skippedBeforeStart holds callbacks for commands submitted after
	// interrupted was already set: they never spawn a process, but per
	// the CommandRunner contract onDone must still only ever fire from
	// within RunCommands, never re-entrantly from Invoke.
	skippedBeforeStart []Callback
}

type completion struct {
	onDone Callback
	result Result
}

// NewRealCommandRunner returns a leaf runner using tracer to observe
// command executions and interrupted as the shared cancellation flag.
func NewRealCommandRunner(tracer Tracer, interrupted *abool.AtomicBool) *RealCommandRunner {
	ctx, cancel := context.WithCancel(context.Background())
	return &RealCommandRunner{
		tracer:      tracer,
		interrupted: interrupted,
		ctx:         ctx,
		cancel:      cancel,
		done:        make(chan completion),
	}
}

// Invoke starts command's process immediately, unless the interrupted
// flag is already set, in which case it is recorded as skipped and
// reported the next time RunCommands runs.
func (r *RealCommandRunner) Invoke(command string, pool string, onDone Callback) error {
	if r.interrupted != nil && r.interrupted.IsSet() {
		r.skippedBeforeStart = append(r.skippedBeforeStart, onDone)
		return nil
	}

	r.inFlight++
	go func() {
		res, _ := r.tracer.Trace(r.ctx, command)
		r.done <- completion{onDone: onDone, result: res}
	}()
	return nil
}

func (r *RealCommandRunner) Size() int { return r.inFlight + len(r.skippedBeforeStart) }

func (r *RealCommandRunner) Empty() bool { return r.Size() == 0 }

func (r *RealCommandRunner) CanRunMore() bool { return true }

// RunCommands is the suspension point spec.md §5 describes: it blocks
// until at least one in-flight process completes, then opportunistically
// drains any further completions that are already available without
// blocking again, before returning. If the interrupted flag is set by
// the time it returns, it cancels every process still running so a
// command that has already started can be killed mid-execution, not
// just skipped before it starts.
func (r *RealCommandRunner) RunCommands() (bool, error) {
	for _, onDone := range r.skippedBeforeStart {
		onDone(Result{Success: false, Interrupted: true})
	}
	r.skippedBeforeStart = nil

	if r.inFlight > 0 {
		first := r.waitForOne()
		r.inFlight--
		first.onDone(first.result)

	drain:
		for r.inFlight > 0 {
			select {
			case c := <-r.done:
				r.inFlight--
				c.onDone(c.result)
			default:
				break drain
			}
		}
	}

	interrupted := r.interrupted != nil && r.interrupted.IsSet()
	if interrupted {
		r.cancel()
	}
	return interrupted, nil
}

// waitForOne blocks until at least one in-flight command completes. If
// interrupted is set while it waits, it cancels every process still
// running instead of only reacting to the flag once the current wait
// unblocks on its own — otherwise a long-running command already in
// flight could never be interrupted mid-execution.
func (r *RealCommandRunner) waitForOne() completion {
	if r.interrupted == nil {
		return <-r.done
	}
	ticker := time.NewTicker(interruptPollInterval)
	defer ticker.Stop()
	for {
		select {
		case c := <-r.done:
			return c
		case <-ticker.C:
			if r.interrupted.IsSet() {
				r.cancel()
			}
		}
	}
}

// runCommand executes command through the platform shell and captures
// combined stdout/stderr, the way the teacher's Subprocess does
// (subprocess.go's buf_ field). It spawns via cmd.Start rather than the
// combined cmd.Run so callers running it from a goroutine can overlap
// with other in-flight commands, and ctx.Done kills the shell process
// rather than letting it run to completion. Processes the shell itself
// started are not signalled; WaitDelay keeps one of them that still
// holds the output pipe from keeping Wait blocked until it exits.
func runCommand(ctx context.Context, command string) (Result, error) {
	cmd := exec.CommandContext(ctx, "/bin/sh", "-c", command)
	cmd.WaitDelay = commandWaitDelay
	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out

	if err := cmd.Start(); err != nil {
		return Result{Success: false, Output: out.String()}, nil
	}
	err := cmd.Wait()
	// ErrWaitDelay means the shell exited successfully but a process it
	// left behind still held the output pipe when WaitDelay expired.
	success := err == nil || errors.Is(err, exec.ErrWaitDelay)
	return Result{Success: success, Interrupted: ctx.Err() != nil, Output: out.String()}, nil
}
