package compiler

import (
	"fmt"
	"sort"
	"strings"

	"github.com/crewdeck/crewdeck/pkg/models"
)

// Compile translates a workflow's ordered step list into the engine
// graph. It is pure and deterministic: no I/O, no randomness, and the
// same input always yields the same output. Missing or partial step
// configuration degrades to safe default nodes; Compile never fails.
//
// The first step always becomes the single trigger node regardless of
// its declared type; any later trigger-typed steps are dropped. All
// other steps emit one node each, except human-assigned action steps
// which emit a review-request/wait pair. Connections are strictly
// sequential.
func Compile(workflow *models.Workflow, baseCallbackURL string) *Graph {
	graph := &Graph{
		Name:        workflow.Name,
		Nodes:       []Node{},
		Connections: map[string][]string{},
		Settings:    defaultSettings(),
		Active:      false,
	}

	steps := orderedSteps(workflow.Steps)
	if len(steps) == 0 {
		return graph
	}

	baseCallbackURL = strings.TrimRight(baseCallbackURL, "/")
	names := newNameSet()

	var previous string

	for i, step := range steps {
		var nodes []Node

		if i == 0 {
			nodes = []Node{emitTrigger(step, names)}
		} else if step.Type == models.StepTypeTrigger {
			// One trigger anchors the sequence; first wins.
			continue
		} else {
			nodes = emitStep(step, baseCallbackURL, names)
		}

		for _, node := range nodes {
			node.Position = PositionOf(len(graph.Nodes), len(steps))

			if previous != "" {
				graph.Connections[previous] = append(graph.Connections[previous], node.Name)
			}

			graph.Nodes = append(graph.Nodes, node)
			previous = node.Name
		}
	}

	return graph
}

// orderedSteps sorts steps ascending by Order without mutating the
// input. Ties keep their insertion order.
func orderedSteps(steps []*models.WorkflowStep) []*models.WorkflowStep {
	sorted := make([]*models.WorkflowStep, len(steps))
	copy(sorted, steps)

	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Order < sorted[j].Order
	})

	return sorted
}

// nameSet hands out unique node names. Duplicate labels get a numeric
// suffix so connection keys stay unambiguous.
type nameSet struct {
	taken map[string]int
}

func newNameSet() *nameSet {
	return &nameSet{taken: make(map[string]int)}
}

func (n *nameSet) claim(label, fallback string) string {
	name := strings.TrimSpace(label)
	if name == "" {
		name = fallback
	}

	n.taken[name]++
	if n.taken[name] == 1 {
		return name
	}

	// The suffixed candidate may itself match a later label, so keep
	// bumping until the name is genuinely free.
	candidate := fmt.Sprintf("%s %d", name, n.taken[name])
	for n.taken[candidate] > 0 {
		n.taken[name]++
		candidate = fmt.Sprintf("%s %d", name, n.taken[name])
	}

	n.taken[candidate]++

	return candidate
}
