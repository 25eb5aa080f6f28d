package runner

import "shuriken/internal/loadavg"

// LimitedCommandRunner wraps inner with a global parallelism bound and
// an optional load-average ceiling (spec.md §4.6). It does not queue:
// combined with PooledCommandRunner above it, queuing lives in the
// pool layer.
type LimitedCommandRunner struct {
	inner CommandRunner

	maxParallel int
	inFlight    int

	sampler   loadavg.Sampler
	maxLoad   float64
	hasLoadCap bool
}

// NewLimitedCommandRunner bounds inner to at most maxParallel
// concurrent commands. maxParallel <= 0 means unbounded.
func NewLimitedCommandRunner(inner CommandRunner, maxParallel int) *LimitedCommandRunner {
	return &LimitedCommandRunner{inner: inner, maxParallel: maxParallel}
}

// WithLoadCeiling adds a load-average admission ceiling sampled
// through sampler: CanRunMore additionally requires sampler.Sample()
// <= maxLoad (spec.md §4.6).
func (r *LimitedCommandRunner) WithLoadCeiling(sampler loadavg.Sampler, maxLoad float64) *LimitedCommandRunner {
	r.sampler = sampler
	r.maxLoad = maxLoad
	r.hasLoadCap = true
	return r
}

func (r *LimitedCommandRunner) Invoke(command string, pool string, onDone Callback) error {
	r.inFlight++
	wrapped := func(res Result) {
		r.inFlight--
		onDone(res)
	}
	return r.inner.Invoke(command, pool, wrapped)
}

func (r *LimitedCommandRunner) Size() int { return r.inner.Size() }

func (r *LimitedCommandRunner) Empty() bool { return r.inner.Empty() }

func (r *LimitedCommandRunner) CanRunMore() bool {
	if !r.inner.CanRunMore() {
		return false
	}
	if r.maxParallel > 0 && r.inFlight >= r.maxParallel {
		return false
	}
	if r.hasLoadCap {
		load, err := r.sampler.Sample()
		if err == nil && load > r.maxLoad {
			return false
		}
	}
	return true
}

func (r *LimitedCommandRunner) RunCommands() (bool, error) {
	return r.inner.RunCommands()
}
