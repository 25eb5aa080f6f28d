package scheduler

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSelfRebuildLoopRunsBuildWhenNotDirty(t *testing.T) {
	reloadCalls, selfCalls, buildCalls := 0, 0, 0
	reload := func() (bool, error) {
		reloadCalls++
		return false, nil
	}
	runSelf := func() (Outcome, error) {
		selfCalls++
		return Outcome{}, nil
	}
	runBuild := func() (Outcome, error) {
		buildCalls++
		return Outcome{Failed: 0}, nil
	}

	outcome, err := SelfRebuildLoop(reload, runSelf, runBuild)
	require.NoError(t, err)
	assert.Equal(t, 1, reloadCalls)
	assert.Equal(t, 0, selfCalls)
	assert.Equal(t, 1, buildCalls)
	assert.Equal(t, 0, outcome.Failed)
}

func TestSelfRebuildLoopReloadsAgainAfterSuccessfulSelfRebuild(t *testing.T) {
	reloadCalls := 0
	reload := func() (bool, error) {
		reloadCalls++
		// Dirty exactly once, then clean.
		return reloadCalls == 1, nil
	}
	runSelf := func() (Outcome, error) {
		return Outcome{}, nil
	}
	buildCalls := 0
	runBuild := func() (Outcome, error) {
		buildCalls++
		return Outcome{}, nil
	}

	outcome, err := SelfRebuildLoop(reload, runSelf, runBuild)
	require.NoError(t, err)
	assert.Equal(t, 2, reloadCalls)
	assert.Equal(t, 1, buildCalls)
	assert.Equal(t, 0, outcome.Failed)
}

func TestSelfRebuildLoopStopsWhenSelfRebuildStepFails(t *testing.T) {
	reload := func() (bool, error) { return true, nil }
	runSelf := func() (Outcome, error) { return Outcome{Failed: 1}, nil }
	buildCalls := 0
	runBuild := func() (Outcome, error) {
		buildCalls++
		return Outcome{}, nil
	}

	outcome, err := SelfRebuildLoop(reload, runSelf, runBuild)
	require.NoError(t, err)
	assert.Equal(t, 1, outcome.Failed)
	assert.Equal(t, 0, buildCalls)
}

func TestSelfRebuildLoopStopsWhenInterrupted(t *testing.T) {
	reload := func() (bool, error) { return true, nil }
	runSelf := func() (Outcome, error) { return Outcome{Interrupted: true}, nil }
	runBuild := func() (Outcome, error) { return Outcome{}, nil }

	outcome, err := SelfRebuildLoop(reload, runSelf, runBuild)
	require.NoError(t, err)
	assert.True(t, outcome.Interrupted)
}

func TestSelfRebuildLoopGivesUpAfterMaxCycles(t *testing.T) {
	reload := func() (bool, error) { return true, nil }
	runSelf := func() (Outcome, error) { return Outcome{}, nil }
	runBuild := func() (Outcome, error) {
		t.Fatal("runBuild should never be called if the manifest never settles")
		return Outcome{}, nil
	}

	_, err := SelfRebuildLoop(reload, runSelf, runBuild)
	require.Error(t, err)
}

func TestSelfRebuildLoopPropagatesReloadError(t *testing.T) {
	boom := errors.New("boom")
	reload := func() (bool, error) { return false, boom }
	runSelf := func() (Outcome, error) { return Outcome{}, nil }
	runBuild := func() (Outcome, error) { return Outcome{}, nil }

	_, err := SelfRebuildLoop(reload, runSelf, runBuild)
	require.Error(t, err)
}
