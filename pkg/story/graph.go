package story

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/jwebster45206/papal-schism/pkg/state"
)

var (
	// ErrInvalidContent wraps every load-time integrity failure.
	ErrInvalidContent = errors.New("invalid story content")
	// ErrNodeNotFound is returned when a node id has no node.
	ErrNodeNotFound = errors.New("story node not found")
)

// ValidationError collects every integrity problem found in a story.
type ValidationError struct {
	Problems []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s:\n  - %s", ErrInvalidContent, strings.Join(e.Problems, "\n  - "))
}

func (e *ValidationError) Unwrap() error {
	return ErrInvalidContent
}

func (e *ValidationError) addf(format string, args ...any) {
	e.Problems = append(e.Problems, fmt.Sprintf(format, args...))
}

// Graph is an immutable, validated catalog of story nodes.
// Nodes refer to each other by id only.
type Graph struct {
	name        string
	description string
	nodes       map[string]Node
	order       []string
}

// NewGraph validates s and builds a Graph from it. Every integrity
// violation is reported in a single *ValidationError.
func NewGraph(s *Story) (*Graph, error) {
	if s == nil {
		return nil, fmt.Errorf("%w: story is nil", ErrInvalidContent)
	}

	g := &Graph{
		name:        s.Name,
		description: s.Description,
		nodes:       make(map[string]Node, len(s.Nodes)),
		order:       make([]string, 0, len(s.Nodes)),
	}

	verr := &ValidationError{}
	for _, n := range s.Nodes {
		if n.ID == "" {
			verr.addf("node with empty id (dialogue %q)", firstLine(n))
			continue
		}
		if _, dup := g.nodes[n.ID]; dup {
			verr.addf("duplicate node id %q", n.ID)
			continue
		}
		g.nodes[n.ID] = n.Clone()
		g.order = append(g.order, n.ID)
	}

	if _, ok := g.nodes[state.StartNodeID]; !ok {
		verr.addf("start node %q is missing", state.StartNodeID)
	}

	for _, id := range g.order {
		g.validateNode(g.nodes[id], verr)
	}

	if len(verr.Problems) > 0 {
		return nil, verr
	}
	return g, nil
}

func (g *Graph) validateNode(n Node, verr *ValidationError) {
	if len(n.Dialogue) == 0 {
		verr.addf("node %q has no dialogue", n.ID)
	}

	if !n.IsEnding && len(n.Choices) == 0 {
		verr.addf("node %q is not an ending and has no choices", n.ID)
	}

	seen := make(map[string]bool, len(n.Choices))
	for i, c := range n.Choices {
		where := fmt.Sprintf("node %q choice %d (%q)", n.ID, i, c.ID)
		if c.ID == "" {
			verr.addf("%s has empty id", where)
		} else if seen[c.ID] {
			verr.addf("%s duplicates a choice id", where)
		}
		seen[c.ID] = true

		if c.NextNodeID == "" {
			verr.addf("%s has no nextNodeId", where)
		} else if _, ok := g.nodes[c.NextNodeID]; !ok {
			verr.addf("%s points at unknown node %q", where, c.NextNodeID)
		}

		for _, name := range sortedKeys(c.StatDeltas) {
			if !state.IsStatName(name) {
				verr.addf("%s has unknown stat %q", where, name)
			}
		}
		for _, name := range sortedKeys(c.RelationshipDeltas) {
			if !state.IsRelationshipName(name) {
				verr.addf("%s has unknown relationship %q", where, name)
			}
		}
	}

	if td := n.TimedDecision; td != nil {
		if td.TimeLimitSeconds <= 0 {
			verr.addf("node %q timed decision has non-positive time limit %d", n.ID, td.TimeLimitSeconds)
		}
		if td.DefaultChoiceIndex < 0 || td.DefaultChoiceIndex >= len(n.Choices) {
			verr.addf("node %q timed decision default index %d is out of range (%d choices)",
				n.ID, td.DefaultChoiceIndex, len(n.Choices))
		}
	}
}

// Name returns the story's display name.
func (g *Graph) Name() string {
	return g.name
}

// Description returns the story's blurb.
func (g *Graph) Description() string {
	return g.description
}

// Node returns a copy of the node with the given id.
func (g *Graph) Node(id string) (Node, bool) {
	n, ok := g.nodes[id]
	if !ok {
		return Node{}, false
	}
	return n.Clone(), true
}

// MustNode returns the node with the given id or an error wrapping ErrNodeNotFound.
func (g *Graph) MustNode(id string) (Node, error) {
	n, ok := g.nodes[id]
	if !ok {
		return Node{}, fmt.Errorf("%w: %q", ErrNodeNotFound, id)
	}
	return n.Clone(), nil
}

// Start returns a copy of the start node.
func (g *Graph) Start() Node {
	return g.nodes[state.StartNodeID].Clone()
}

// Len returns the number of nodes.
func (g *Graph) Len() int {
	return len(g.nodes)
}

// IDs returns node ids in authored order.
func (g *Graph) IDs() []string {
	return append([]string(nil), g.order...)
}

// Unreachable lists nodes that no path from the start node reaches,
// in authored order. Flag gates are ignored.
func (g *Graph) Unreachable() []string {
	seen := map[string]bool{state.StartNodeID: true}
	queue := []string{state.StartNodeID}
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		for _, c := range g.nodes[id].Choices {
			if !seen[c.NextNodeID] {
				seen[c.NextNodeID] = true
				queue = append(queue, c.NextNodeID)
			}
		}
	}

	var out []string
	for _, id := range g.order {
		if !seen[id] {
			out = append(out, id)
		}
	}
	return out
}

// Endings lists the ids of terminal nodes in authored order.
func (g *Graph) Endings() []string {
	var out []string
	for _, id := range g.order {
		if g.nodes[id].IsEnding {
			out = append(out, id)
		}
	}
	return out
}

func firstLine(n Node) string {
	if len(n.Dialogue) == 0 {
		return ""
	}
	return n.Dialogue[0]
}

func sortedKeys(m map[string]int) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
