package buildgraph

import "fmt"

// visitMark mirrors the teacher's VisitMark (graph_h.go): a three-state
// color used for cycle detection during the depth-first walk.
type visitMark int8

const (
	visitNone visitMark = iota
	visitInStack
	visitDone
)

// TopoOrder returns the indices of every step reachable from roots, in
// an order where a step always appears after every step producing one
// of its inputs. roots is typically the set of steps that produce the
// requested output nodes.
//
// It returns an error naming the offending step if the graph contains
// a dependency cycle, matching the teacher's own cycle detection via
// VisitInStack in graph.go's DependencyScan.
func (g *Graph) TopoOrder(roots []int) ([]int, error) {
	marks := make([]visitMark, len(g.Steps))
	var order []int

	var visit func(step int) error
	visit = func(step int) error {
		switch marks[step] {
		case visitDone:
			return nil
		case visitInStack:
			return fmt.Errorf("dependency cycle detected at step %d", step)
		}
		marks[step] = visitInStack
		for _, in := range g.Steps[step].Inputs {
			producer := g.Nodes[in].ProducingStep
			if producer == NoStep {
				continue
			}
			if err := visit(producer); err != nil {
				return err
			}
		}
		marks[step] = visitDone
		order = append(order, step)
		return nil
	}

	for _, root := range roots {
		if err := visit(root); err != nil {
			return nil, err
		}
	}
	return order, nil
}
