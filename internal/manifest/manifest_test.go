package manifest

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"shuriken/internal/pathid"
)

func TestLoadParsesJSONManifest(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "build.json")
	spec := Spec{Steps: []StepSpec{{Command: "cc -c a.c -o a.o", ExplicitInputs: []string{"a.c"}, ExplicitOutputs: []string{"a.o"}}}}
	data, err := json.Marshal(spec)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, data, 0o644))

	loaded, err := Load(path)
	require.NoError(t, err)
	require.Len(t, loaded.Steps, 1)
	assert.Equal(t, "cc -c a.c -o a.o", loaded.Steps[0].Command)
}

func TestLoadRejectsMalformedJSON(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "build.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestBuildRejectsStepWithNoOutputs(t *testing.T) {
	in := pathid.New()
	spec := Spec{Steps: []StepSpec{{Command: "echo hi"}}}
	_, err := Build(in, spec)
	assert.Error(t, err)
}

func TestBuildWiresInputsAndOutputsAndSharedNodes(t *testing.T) {
	in := pathid.New()
	spec := Spec{Steps: []StepSpec{
		{Command: "cc -c a.c -o a.o", ExplicitInputs: []string{"a.c"}, ExplicitOutputs: []string{"a.o"}},
		{Command: "cc a.o -o a.out", ExplicitInputs: []string{"a.o"}, ExplicitOutputs: []string{"a.out"}},
	}}

	g, err := Build(in, spec)
	require.NoError(t, err)
	require.Len(t, g.Steps, 2)

	order, err := g.TopoOrder([]int{1})
	require.NoError(t, err)
	assert.Equal(t, []int{0, 1}, order)
}

func TestBuildPrependsSelfRebuildStep(t *testing.T) {
	in := pathid.New()
	spec := Spec{
		SelfRebuild: &StepSpec{Command: "regen", ExplicitInputs: []string{"build.json.in"}, ExplicitOutputs: []string{"build.json"}},
		Steps:       []StepSpec{{Command: "cc -c a.c -o a.o", ExplicitInputs: []string{"a.c"}, ExplicitOutputs: []string{"a.o"}}},
	}

	g, err := Build(in, spec)
	require.NoError(t, err)
	require.Len(t, g.Steps, 2)
	assert.Equal(t, "regen", g.Steps[0].Command)
}

func TestBuildAppliesPoolCapacityAndConsoleOverride(t *testing.T) {
	in := pathid.New()
	spec := Spec{Steps: []StepSpec{
		{Command: "link", ExplicitInputs: []string{"a.o"}, ExplicitOutputs: []string{"a.out"}, Pool: "console", PoolCapacity: 8},
	}}

	g, err := Build(in, spec)
	require.NoError(t, err)
	require.NotNil(t, g.Steps[0].Pool)
	assert.Equal(t, 1, g.Steps[0].Pool.Capacity)
}
