package scheduler

import (
	"fmt"

	"shuriken/internal/shkerr"
)

// MaxSelfRebuildCycles bounds the manifest self-rebuild restart loop
// (spec.md §4.7, §9): a manifest generator whose output never
// stabilizes must not spin the build forever. 100 matches the cap the
// spec's own Open Question resolution settles on.
const MaxSelfRebuildCycles = 100

// SelfRebuildLoop drives the restart pattern spec.md §9 describes: if
// the manifest declares a self-rebuild step and that step is itself
// dirty, only that step runs, and the whole manifest is reloaded from
// scratch afterwards rather than trusting the in-memory graph computed
// from the stale manifest. Once a reload reports the self-rebuild step
// clean (or the manifest declares none), the real build runs.
//
// reload is called once per cycle. It must fully discard any state
// left over from a previous cycle — re-parse the manifest, rebuild the
// graph on a fresh path-id space, and re-open the invocation log — and
// report whether the manifest's self-rebuild step came back dirty.
// runSelf and runBuild are called against the state reload just
// produced, and must reflect exactly what reload set up.
//
// The loop gives up after MaxSelfRebuildCycles reloads without the
// manifest settling, since that non-convergence can otherwise hang a
// build indefinitely on a broken generator.
func SelfRebuildLoop(
	reload func() (selfRebuildDirty bool, err error),
	runSelf func() (Outcome, error),
	runBuild func() (Outcome, error),
) (Outcome, error) {
	for cycle := 0; cycle < MaxSelfRebuildCycles; cycle++ {
		dirty, err := reload()
		if err != nil {
			return Outcome{}, err
		}
		if !dirty {
			return runBuild()
		}

		outcome, err := runSelf()
		if err != nil {
			return Outcome{}, err
		}
		if outcome.Failed > 0 || outcome.Interrupted {
			return outcome, nil
		}
		// Self-rebuild step ran and succeeded: the manifest it produced
		// may differ, so the next iteration reloads before doing anything
		// else with the graph built from the old one.
	}
	return Outcome{}, shkerr.New(shkerr.Build, fmt.Errorf("manifest self-rebuild did not converge after %d cycles", MaxSelfRebuildCycles))
}
