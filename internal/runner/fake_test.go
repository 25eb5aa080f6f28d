package runner

// fakePending is a queued-but-not-yet-completed invocation, local to
// this fake so it carries no dependency on the real leaf's internals.
type fakePending struct {
	command string
	onDone  Callback
}

// fakeRunner is a trivial inner CommandRunner for exercising the
// decorators above it: every pending invocation "completes"
// successfully the moment RunCommands is called.
type fakeRunner struct {
	pending    []fakePending
	canRunMore bool
}

func newFakeRunner() *fakeRunner {
	return &fakeRunner{canRunMore: true}
}

func (f *fakeRunner) Invoke(command string, pool string, onDone Callback) error {
	f.pending = append(f.pending, fakePending{command: command, onDone: onDone})
	return nil
}

func (f *fakeRunner) Size() int { return len(f.pending) }

func (f *fakeRunner) Empty() bool { return len(f.pending) == 0 }

func (f *fakeRunner) CanRunMore() bool { return f.canRunMore }

func (f *fakeRunner) RunCommands() (bool, error) {
	batch := f.pending
	f.pending = nil
	for _, pc := range batch {
		pc.onDone(Result{Success: true})
	}
	return false, nil
}
