// Package manifest is a minimal JSON build-manifest format used only
// by cmd/shuriken's demo entrypoint and by tests: real Ninja manifest
// parsing is out of scope (spec.md §1 Non-goals). It exists so the
// engine is runnable and testable end-to-end without a real Ninja
// front-end.
package manifest

import (
	"encoding/json"
	"fmt"
	"os"

	"shuriken/internal/buildgraph"
	"shuriken/internal/pathid"
	"shuriken/internal/shkerr"
)

// StepSpec is one JSON-encoded step.
type StepSpec struct {
	Command         string   `json:"command"`
	ExplicitInputs  []string `json:"inputs,omitempty"`
	ImplicitInputs  []string `json:"implicit_inputs,omitempty"`
	OrderOnlyInputs []string `json:"order_only_inputs,omitempty"`
	ExplicitOutputs []string `json:"outputs"`
	ImplicitOutputs []string `json:"implicit_outputs,omitempty"`
	Pool            string   `json:"pool,omitempty"`
	PoolCapacity    int      `json:"pool_capacity,omitempty"`
	Restat          bool     `json:"restat,omitempty"`
}

// Spec is the top-level JSON document: a self-rebuild rule (if any)
// plus the ordinary build steps (spec.md §4.7 "manifest self-rebuild").
type Spec struct {
	SelfRebuild *StepSpec  `json:"self_rebuild,omitempty"`
	Steps       []StepSpec `json:"steps"`
}

// Load reads and parses the manifest at path.
func Load(path string) (Spec, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Spec{}, shkerr.Wrap(shkerr.Io, path, err)
	}
	var spec Spec
	if err := json.Unmarshal(data, &spec); err != nil {
		return Spec{}, shkerr.Wrap(shkerr.Parse, path, err)
	}
	return spec, nil
}

// Build turns spec into a buildgraph.Graph, interning every path it
// mentions through interner.
func Build(interner *pathid.Interner, spec Spec) (*buildgraph.Graph, error) {
	g := buildgraph.New()
	nodeFor := make(map[string]int)

	node := func(path string) int {
		if idx, ok := nodeFor[path]; ok {
			return idx
		}
		idx := g.AddNode(interner.Intern(path))
		nodeFor[path] = idx
		return idx
	}

	steps := spec.Steps
	if spec.SelfRebuild != nil {
		steps = append([]StepSpec{*spec.SelfRebuild}, steps...)
	}

	for _, ss := range steps {
		if len(ss.ExplicitOutputs) == 0 {
			return nil, shkerr.New(shkerr.Parse, fmt.Errorf("step %q declares no outputs", ss.Command))
		}

		var inputs []int
		for _, p := range ss.ExplicitInputs {
			inputs = append(inputs, node(p))
		}
		for _, p := range ss.ImplicitInputs {
			inputs = append(inputs, node(p))
		}
		for _, p := range ss.OrderOnlyInputs {
			inputs = append(inputs, node(p))
		}

		var outputs []int
		for _, p := range ss.ExplicitOutputs {
			outputs = append(outputs, node(p))
		}
		for _, p := range ss.ImplicitOutputs {
			outputs = append(outputs, node(p))
		}

		var pool *buildgraph.Pool
		if ss.Pool != "" {
			pool = g.Pool(ss.Pool, ss.PoolCapacity)
		}

		g.AddStep(&buildgraph.Step{
			Inputs:          inputs,
			Outputs:         outputs,
			ImplicitInputs:  len(ss.ImplicitInputs),
			OrderOnlyInputs: len(ss.OrderOnlyInputs),
			ImplicitOutputs: len(ss.ImplicitOutputs),
			Command:         ss.Command,
			Pool:            pool,
			Restat:          ss.Restat,
		})
	}

	return g, nil
}
