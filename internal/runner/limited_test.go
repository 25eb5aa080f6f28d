package runner

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"shuriken/internal/loadavg"
)

func TestLimitedCommandRunnerCapsParallelism(t *testing.T) {
	inner := newFakeRunner()
	limited := NewLimitedCommandRunner(inner, 2)

	require.NoError(t, limited.Invoke("a", "", func(Result) {}))
	require.NoError(t, limited.Invoke("b", "", func(Result) {}))
	assert.False(t, limited.CanRunMore())

	_, err := limited.RunCommands()
	require.NoError(t, err)
	assert.True(t, limited.CanRunMore())
}

func TestLimitedCommandRunnerRespectsLoadCeiling(t *testing.T) {
	inner := newFakeRunner()
	limited := NewLimitedCommandRunner(inner, 0).WithLoadCeiling(loadavg.Fixed(9.0), 4.0)

	assert.False(t, limited.CanRunMore())
}

func TestLimitedCommandRunnerAllowsUnderLoadCeiling(t *testing.T) {
	inner := newFakeRunner()
	limited := NewLimitedCommandRunner(inner, 0).WithLoadCeiling(loadavg.Fixed(1.0), 4.0)

	assert.True(t, limited.CanRunMore())
}

func TestLimitedCommandRunnerDefersToInnerCanRunMore(t *testing.T) {
	inner := newFakeRunner()
	inner.canRunMore = false
	limited := NewLimitedCommandRunner(inner, 10)

	assert.False(t, limited.CanRunMore())
}
