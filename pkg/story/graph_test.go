package story

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func minimalStory() *Story {
	return &Story{
		Name: "Test",
		Nodes: []Node{
			{
				ID:       "opening",
				Dialogue: []string{"line one", "line two"},
				Choices: []Choice{
					{ID: "a", Text: "Go on", NextNodeID: "end", StatDeltas: map[string]int{"piety": 10}},
					{ID: "b", Text: "Secret", NextNodeID: "end", RequiresFlags: []string{"key"}},
				},
				TimedDecision: &TimedDecision{TimeLimitSeconds: 5, DefaultChoiceIndex: 0},
			},
			{ID: "end", Dialogue: []string{"fin"}, IsEnding: true},
		},
	}
}

func TestNewGraph_Valid(t *testing.T) {
	g, err := NewGraph(minimalStory())
	require.NoError(t, err)

	assert.Equal(t, "Test", g.Name())
	assert.Equal(t, 2, g.Len())
	assert.Equal(t, []string{"opening", "end"}, g.IDs())
	assert.Equal(t, "opening", g.Start().ID)
	assert.Empty(t, g.Unreachable())
	assert.Equal(t, []string{"end"}, g.Endings())

	n, ok := g.Node("end")
	require.True(t, ok)
	assert.True(t, n.IsEnding)

	_, ok = g.Node("nowhere")
	assert.False(t, ok)
	_, err = g.MustNode("nowhere")
	assert.ErrorIs(t, err, ErrNodeNotFound)
}

func TestNewGraph_Violations(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(s *Story)
		problem string
	}{
		{
			name:    "missing start node",
			mutate:  func(s *Story) { s.Nodes[0].ID = "prologue" },
			problem: `start node "opening" is missing`,
		},
		{
			name:    "duplicate node id",
			mutate:  func(s *Story) { s.Nodes = append(s.Nodes, Node{ID: "end", Dialogue: []string{"x"}, IsEnding: true}) },
			problem: `duplicate node id "end"`,
		},
		{
			name:    "empty node id",
			mutate:  func(s *Story) { s.Nodes = append(s.Nodes, Node{Dialogue: []string{"x"}, IsEnding: true}) },
			problem: "node with empty id",
		},
		{
			name:    "empty dialogue",
			mutate:  func(s *Story) { s.Nodes[1].Dialogue = nil },
			problem: `node "end" has no dialogue`,
		},
		{
			name:    "non-ending without choices",
			mutate:  func(s *Story) { s.Nodes[1].IsEnding = false },
			problem: `node "end" is not an ending and has no choices`,
		},
		{
			name:    "dangling next node",
			mutate:  func(s *Story) { s.Nodes[0].Choices[0].NextNodeID = "nowhere" },
			problem: `points at unknown node "nowhere"`,
		},
		{
			name:    "missing next node",
			mutate:  func(s *Story) { s.Nodes[0].Choices[0].NextNodeID = "" },
			problem: "has no nextNodeId",
		},
		{
			name:    "duplicate choice id",
			mutate:  func(s *Story) { s.Nodes[0].Choices[1].ID = "a" },
			problem: "duplicates a choice id",
		},
		{
			name:    "empty choice id",
			mutate:  func(s *Story) { s.Nodes[0].Choices[1].ID = "" },
			problem: "has empty id",
		},
		{
			name:    "unknown stat",
			mutate:  func(s *Story) { s.Nodes[0].Choices[0].StatDeltas = map[string]int{"charisma": 1} },
			problem: `unknown stat "charisma"`,
		},
		{
			name:    "unknown relationship",
			mutate:  func(s *Story) { s.Nodes[0].Choices[0].RelationshipDeltas = map[string]int{"venice": 1} },
			problem: `unknown relationship "venice"`,
		},
		{
			name:    "default index out of range",
			mutate:  func(s *Story) { s.Nodes[0].TimedDecision.DefaultChoiceIndex = 2 },
			problem: "default index 2 is out of range",
		},
		{
			name:    "negative default index",
			mutate:  func(s *Story) { s.Nodes[0].TimedDecision.DefaultChoiceIndex = -1 },
			problem: "default index -1 is out of range",
		},
		{
			name:    "zero time limit",
			mutate:  func(s *Story) { s.Nodes[0].TimedDecision.TimeLimitSeconds = 0 },
			problem: "non-positive time limit 0",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := minimalStory()
			tt.mutate(s)

			g, err := NewGraph(s)
			require.Error(t, err)
			assert.Nil(t, g)
			assert.ErrorIs(t, err, ErrInvalidContent)

			var verr *ValidationError
			require.ErrorAs(t, err, &verr)
			assert.NotEmpty(t, verr.Problems)
			assert.Contains(t, err.Error(), tt.problem)
		})
	}
}

func TestNewGraph_CollectsAllProblems(t *testing.T) {
	s := minimalStory()
	s.Nodes[0].Choices[0].NextNodeID = "nowhere"
	s.Nodes[1].Dialogue = nil

	_, err := NewGraph(s)
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Len(t, verr.Problems, 2)
}

func TestNewGraph_Nil(t *testing.T) {
	_, err := NewGraph(nil)
	assert.ErrorIs(t, err, ErrInvalidContent)
}

func TestGraph_Unreachable(t *testing.T) {
	s := minimalStory()
	s.Nodes = append(s.Nodes, Node{ID: "orphan", Dialogue: []string{"nobody comes here"}, IsEnding: true})

	g, err := NewGraph(s)
	require.NoError(t, err)
	assert.Equal(t, []string{"orphan"}, g.Unreachable())
}

func TestGraph_NodesAreCopies(t *testing.T) {
	s := minimalStory()
	g, err := NewGraph(s)
	require.NoError(t, err)

	// Edits to the source story after construction do not leak in.
	s.Nodes[0].Dialogue[0] = "rewritten"
	s.Nodes[0].Choices[0].StatDeltas["piety"] = -99

	n, ok := g.Node("opening")
	require.True(t, ok)
	n.Dialogue[0] = "edited"
	n.Choices[0].NextNodeID = "nowhere"
	n.Choices[0].StatDeltas["piety"] = 1000
	n.Choices[1].RequiresFlags[0] = "other"
	n.TimedDecision.DefaultChoiceIndex = 1

	start := g.Start()
	start.Choices = append(start.Choices[:0], Choice{ID: "injected"})

	again, err := g.MustNode("opening")
	require.NoError(t, err)
	assert.Equal(t, "line one", again.Dialogue[0])
	assert.Equal(t, "end", again.Choices[0].NextNodeID)
	assert.Equal(t, 10, again.Choices[0].StatDeltas["piety"])
	assert.Equal(t, []string{"key"}, again.Choices[1].RequiresFlags)
	assert.Equal(t, 0, again.TimedDecision.DefaultChoiceIndex)
	assert.Len(t, again.Choices, 2)
	assert.Equal(t, "a", again.Choices[0].ID)
}
