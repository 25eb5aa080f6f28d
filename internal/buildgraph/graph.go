// Package buildgraph is the in-memory build graph: the nodes (paths)
// and steps (commands) a manifest loader produces, and the dirty
// analyser and scheduler consume (spec.md §9 Design Notes).
//
// Nodes and steps reference each other by index rather than pointer,
// mirroring the teacher's Node/Edge pair in state.go/graph.go, renamed
// to this spec's vocabulary (Edge -> Step) and flattened from pointer
// chasing to slice indices so the graph is trivially copyable and
// cheap to walk without pinning allocations.
package buildgraph

import "shuriken/internal/pathid"

// NoStep marks a Node with no producing step (a source file).
const NoStep = -1

// Node is one path participating in the graph.
type Node struct {
	Path pathid.ID

	// ProducingStep is the index into Graph.Steps of the step that
	// produces this node, or NoStep if the node is a plain input with
	// no producer (spec.md §9).
	ProducingStep int

	// Steps lists the indices of every step that consumes this node as
	// an input, in no particular order.
	Steps []int
}

// Pool bounds how many steps that reference it may run concurrently
// (spec.md §4.6). The well-known pool named "console" is recognized by
// internal/runner as capacity 1; the absence of a pool (nil) means
// unlimited.
type Pool struct {
	Name     string
	Capacity int
}

// Step is one command: a set of input nodes, a set of output nodes,
// and the command line that turns the former into the latter.
//
// Inputs is ordered explicit, then implicit, then order-only, matching
// the teacher's Edge.inputs_ layout (graph_h.go) so ImplicitInputs and
// OrderOnlyInputs can be plain counts instead of separate slices.
// Outputs is ordered explicit, then implicit, likewise using
// ImplicitOutputs as a count.
type Step struct {
	Inputs  []int
	Outputs []int

	ImplicitInputs   int
	OrderOnlyInputs  int
	ImplicitOutputs  int

	Command string
	Pool    *Pool

	// Restat marks a step whose outputs should be re-stat'd after it
	// runs so that a command which rewrites its output with identical
	// content does not dirty the step's dependents (spec.md §4.7(b),
	// supplemented from original_source).
	Restat bool
}

// Graph is the whole build: every node and step a manifest produced,
// plus the named pools they may reference.
type Graph struct {
	Nodes []*Node
	Steps []*Step
	Pools map[string]*Pool
}

// New returns an empty Graph.
func New() *Graph {
	return &Graph{Pools: make(map[string]*Pool)}
}

// AddNode appends a fresh, producer-less Node for path and returns its
// index.
func (g *Graph) AddNode(path pathid.ID) int {
	g.Nodes = append(g.Nodes, &Node{Path: path, ProducingStep: NoStep})
	return len(g.Nodes) - 1
}

// AddStep appends step, wiring up the back-references on every node it
// touches (each output's ProducingStep, each input's Steps), and
// returns the step's index.
func (g *Graph) AddStep(step *Step) int {
	idx := len(g.Steps)
	g.Steps = append(g.Steps, step)
	for _, out := range step.Outputs {
		g.Nodes[out].ProducingStep = idx
	}
	for _, in := range step.Inputs {
		g.Nodes[in].Steps = append(g.Nodes[in].Steps, idx)
	}
	return idx
}

// Pool returns the named pool, creating it with capacity if it does
// not yet exist, and interning the well-known "console" pool at
// capacity 1 regardless of the capacity argument (spec.md §4.6,
// §9 "console pool == capacity 1").
func (g *Graph) Pool(name string, capacity int) *Pool {
	if p, ok := g.Pools[name]; ok {
		return p
	}
	if name == "console" {
		capacity = 1
	}
	p := &Pool{Name: name, Capacity: capacity}
	g.Pools[name] = p
	return p
}

// ExplicitInputs returns the leading slice of step.Inputs that are
// explicit dependencies ($in on the command line).
func (s *Step) ExplicitInputs() []int {
	n := len(s.Inputs) - s.ImplicitInputs - s.OrderOnlyInputs
	return s.Inputs[:n]
}

// ExplicitOutputs returns the leading slice of step.Outputs that are
// explicit outputs ($out on the command line).
func (s *Step) ExplicitOutputs() []int {
	n := len(s.Outputs) - s.ImplicitOutputs
	return s.Outputs[:n]
}
