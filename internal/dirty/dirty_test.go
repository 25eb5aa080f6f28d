package dirty

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"shuriken/internal/buildgraph"
	"shuriken/internal/fingerprint"
	"shuriken/internal/fsx"
	"shuriken/internal/hashx"
	"shuriken/internal/invocation"
	"shuriken/internal/pathid"
	"shuriken/internal/shkerr"
)

func buildOneStepGraph(t *testing.T, in *pathid.Interner) (*buildgraph.Graph, int, int) {
	t.Helper()
	g := buildgraph.New()
	src := g.AddNode(in.Intern("a.c"))
	obj := g.AddNode(in.Intern("a.o"))
	step := g.AddStep(&buildgraph.Step{Inputs: []int{src}, Outputs: []int{obj}, Command: "cc -c a.c -o a.o"})
	return g, step, obj
}

func TestAnalyzeDirtyWhenNoInvocationEntry(t *testing.T) {
	in := pathid.New()
	fs := fsx.NewInMemoryFileSystem()
	fs.WriteFile("a.c", []byte("src"))
	g, step, _ := buildOneStepGraph(t, in)

	res, err := Analyze(g, in, fs, invocation.New(), 100, []int{step})
	require.NoError(t, err)
	assert.True(t, res.Dirty[step])
}

func TestAnalyzeCleanWhenFingerprintsMatch(t *testing.T) {
	in := pathid.New()
	fs := fsx.NewInMemoryFileSystem()
	fs.SetClock(func() int64 { return 100 })
	fs.WriteFile("a.c", []byte("src"))
	fs.WriteFile("a.o", []byte("obj"))
	g, step, _ := buildOneStepGraph(t, in)

	inFP, err := fingerprint.Take(fs, 100, "a.c")
	require.NoError(t, err)
	outFP, err := fingerprint.Take(fs, 100, "a.o")
	require.NoError(t, err)

	invocations := invocation.New()
	hash := hashx.CommandDigest("cc -c a.c -o a.o", nil)
	invocations.Entries[hash] = &invocation.Entry{
		CommandHash: hash,
		Outputs:     []invocation.PathFingerprint{{Path: in.Intern("a.o"), FP: outFP}},
		Inputs:      []invocation.PathFingerprint{{Path: in.Intern("a.c"), FP: inFP}},
	}

	fs.SetClock(func() int64 { return 500 })
	res, err := Analyze(g, in, fs, invocations, 500, []int{step})
	require.NoError(t, err)
	assert.False(t, res.Dirty[step])
}

func TestAnalyzeDirtyWhenInputChanged(t *testing.T) {
	in := pathid.New()
	fs := fsx.NewInMemoryFileSystem()
	fs.SetClock(func() int64 { return 100 })
	fs.WriteFile("a.c", []byte("src"))
	fs.WriteFile("a.o", []byte("obj"))
	g, step, _ := buildOneStepGraph(t, in)

	inFP, err := fingerprint.Take(fs, 100, "a.c")
	require.NoError(t, err)
	outFP, err := fingerprint.Take(fs, 100, "a.o")
	require.NoError(t, err)

	invocations := invocation.New()
	hash := hashx.CommandDigest("cc -c a.c -o a.o", nil)
	invocations.Entries[hash] = &invocation.Entry{
		CommandHash: hash,
		Outputs:     []invocation.PathFingerprint{{Path: in.Intern("a.o"), FP: outFP}},
		Inputs:      []invocation.PathFingerprint{{Path: in.Intern("a.c"), FP: inFP}},
	}

	fs.SetClock(func() int64 { return 500 })
	fs.WriteFile("a.c", []byte("a rather different source now"))

	res, err := Analyze(g, in, fs, invocations, 500, []int{step})
	require.NoError(t, err)
	assert.True(t, res.Dirty[step])
}

func TestAnalyzePropagatesDirtinessToDependents(t *testing.T) {
	in := pathid.New()
	fs := fsx.NewInMemoryFileSystem()
	fs.WriteFile("a.c", []byte("src"))

	g := buildgraph.New()
	src := g.AddNode(in.Intern("a.c"))
	obj := g.AddNode(in.Intern("a.o"))
	bin := g.AddNode(in.Intern("a.out"))
	compile := g.AddStep(&buildgraph.Step{Inputs: []int{src}, Outputs: []int{obj}, Command: "cc -c a.c -o a.o"})
	link := g.AddStep(&buildgraph.Step{Inputs: []int{obj}, Outputs: []int{bin}, Command: "cc a.o -o a.out"})

	res, err := Analyze(g, in, fs, invocation.New(), 100, []int{link})
	require.NoError(t, err)
	assert.True(t, res.Dirty[compile])
	assert.True(t, res.Dirty[link])

	explanations := res.Explanations.LookupAndAppend(in.Intern("a.o"), nil)
	assert.NotEmpty(t, explanations)
}

func TestOwnDirtyIgnoresProducerDirtiness(t *testing.T) {
	in := pathid.New()
	fs := fsx.NewInMemoryFileSystem()
	fs.SetClock(func() int64 { return 100 })
	fs.WriteFile("a.o", []byte("obj"))

	g := buildgraph.New()
	src := g.AddNode(in.Intern("a.c"))
	obj := g.AddNode(in.Intern("a.o"))
	bin := g.AddNode(in.Intern("a.out"))
	fs.SetClock(func() int64 { return 100 })
	fs.WriteFile("a.out", []byte("bin"))
	// a.o's producer has no recorded invocation, so it is dirty.
	g.AddStep(&buildgraph.Step{Inputs: []int{src}, Outputs: []int{obj}, Command: "cc -c a.c -o a.o"})
	link := g.AddStep(&buildgraph.Step{Inputs: []int{obj}, Outputs: []int{bin}, Command: "cc a.o -o a.out"})

	outFP, err := fingerprint.Take(fs, 100, "a.out")
	require.NoError(t, err)
	inFP, err := fingerprint.Take(fs, 100, "a.o")
	require.NoError(t, err)

	invocations := invocation.New()
	hash := hashx.CommandDigest("cc a.o -o a.out", nil)
	invocations.Entries[hash] = &invocation.Entry{
		CommandHash: hash,
		Outputs:     []invocation.PathFingerprint{{Path: in.Intern("a.out"), FP: outFP}},
		Inputs:      []invocation.PathFingerprint{{Path: in.Intern("a.o"), FP: inFP}},
	}

	fs.SetClock(func() int64 { return 500 })
	explain := shkerr.NewExplanations()
	dirty, _, err := OwnDirty(g, in, fs, invocations, link, explain)
	require.NoError(t, err)
	assert.False(t, dirty)

	// Analyze, by contrast, propagates the producer's dirtiness (rule 4).
	res, err := Analyze(g, in, fs, invocations, 500, []int{link})
	require.NoError(t, err)
	assert.True(t, res.Dirty[link])
}

func TestRootsForTargetsSkipsSourceFiles(t *testing.T) {
	in := pathid.New()
	g, step, obj := buildOneStepGraph(t, in)
	src := g.Nodes[0].Path
	_ = src

	roots := RootsForTargets(g, []int{obj})
	assert.Equal(t, []int{step}, roots)

	// A plain source node has no producer and contributes no root.
	srcNode := g.AddNode(in.Intern("standalone.h"))
	roots = RootsForTargets(g, []int{srcNode})
	assert.Empty(t, roots)
}
