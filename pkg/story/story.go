package story

import (
	"maps"
	"slices"

	"github.com/jwebster45206/papal-schism/pkg/conditionals"
	"github.com/jwebster45206/papal-schism/pkg/state"
)

// Scene is a presentation hint for the backdrop of a node.
type Scene string

const (
	SceneCoronation Scene = "coronation"
	SceneCouncil    Scene = "council"
	SceneWar        Scene = "war"
	SceneFamine     Scene = "famine"
	SceneScandal    Scene = "scandal"
	SceneSchism     Scene = "schism"
	SceneJudgment   Scene = "judgment"
)

// Story is the document form of a story file.
type Story struct {
	Name        string `json:"name" yaml:"name"`
	Description string `json:"description,omitempty" yaml:"description,omitempty"`
	Nodes       []Node `json:"nodes" yaml:"nodes"`
}

// Node is one narrative beat: dialogue revealed line by line, then choices.
type Node struct {
	ID            string         `json:"id" yaml:"id"`
	Scene         Scene          `json:"scene,omitempty" yaml:"scene,omitempty"`
	Title         string         `json:"title,omitempty" yaml:"title,omitempty"`
	Dialogue      []string       `json:"dialogue" yaml:"dialogue"`
	Choices       []Choice       `json:"choices,omitempty" yaml:"choices,omitempty"`
	TimedDecision *TimedDecision `json:"timedDecision,omitempty" yaml:"timedDecision,omitempty"`
	IsEnding      bool           `json:"isEnding,omitempty" yaml:"isEnding,omitempty"`
}

// TimedDecision makes a node's choice list expire, applying a default choice.
type TimedDecision struct {
	TimeLimitSeconds   int `json:"timeLimitSeconds" yaml:"timeLimitSeconds"`
	DefaultChoiceIndex int `json:"defaultChoiceIndex" yaml:"defaultChoiceIndex"`
	// TimeLimit is the older spelling of TimeLimitSeconds. Decode folds it in.
	TimeLimit int `json:"timeLimit,omitempty" yaml:"timeLimit,omitempty"`
}

func (td *TimedDecision) normalize() {
	if td.TimeLimitSeconds == 0 {
		td.TimeLimitSeconds = td.TimeLimit
	}
	td.TimeLimit = 0
}

// Choice is a player-selectable edge out of a node.
type Choice struct {
	ID                 string         `json:"id" yaml:"id"`
	Text               string         `json:"text" yaml:"text"`
	StatDeltas         map[string]int `json:"statDeltas,omitempty" yaml:"statDeltas,omitempty"`
	RelationshipDeltas map[string]int `json:"relationshipDeltas,omitempty" yaml:"relationshipDeltas,omitempty"`
	AddFlags           []string       `json:"addFlags,omitempty" yaml:"addFlags,omitempty"`
	RemoveFlags        []string       `json:"removeFlags,omitempty" yaml:"removeFlags,omitempty"`
	NextNodeID         string         `json:"nextNodeId" yaml:"nextNodeId"`
	RequiresFlags      []string       `json:"requiresFlags,omitempty" yaml:"requiresFlags,omitempty"`
	ExcludesFlags      []string       `json:"excludesFlags,omitempty" yaml:"excludesFlags,omitempty"`
	Consequence        string         `json:"consequence,omitempty" yaml:"consequence,omitempty"`
}

// Delta returns the state changes the choice carries.
func (c Choice) Delta() *state.GameStateDelta {
	return &state.GameStateDelta{
		StatDeltas:         c.StatDeltas,
		RelationshipDeltas: c.RelationshipDeltas,
		AddFlags:           c.AddFlags,
		RemoveFlags:        c.RemoveFlags,
	}
}

// Gate returns the flag predicate controlling the choice's visibility.
func (c Choice) Gate() conditionals.When {
	return conditionals.When{RequiresFlags: c.RequiresFlags, ExcludesFlags: c.ExcludesFlags}
}

// IsVisible reports whether the choice is offered given the current flags.
func (c Choice) IsVisible(flags conditionals.FlagSet) bool {
	return c.Gate().Matches(flags, nil)
}

// Clone returns a deep copy of the choice.
func (c Choice) Clone() Choice {
	c.StatDeltas = maps.Clone(c.StatDeltas)
	c.RelationshipDeltas = maps.Clone(c.RelationshipDeltas)
	c.AddFlags = slices.Clone(c.AddFlags)
	c.RemoveFlags = slices.Clone(c.RemoveFlags)
	c.RequiresFlags = slices.Clone(c.RequiresFlags)
	c.ExcludesFlags = slices.Clone(c.ExcludesFlags)
	return c
}

// Clone returns a deep copy of the node that shares nothing with n.
func (n Node) Clone() Node {
	n.Dialogue = slices.Clone(n.Dialogue)
	if n.Choices != nil {
		choices := make([]Choice, len(n.Choices))
		for i, c := range n.Choices {
			choices[i] = c.Clone()
		}
		n.Choices = choices
	}
	if n.TimedDecision != nil {
		td := *n.TimedDecision
		n.TimedDecision = &td
	}
	return n
}

// HasChoices reports whether the node declares any choices.
func (n Node) HasChoices() bool {
	return len(n.Choices) > 0
}

// AtChoices reports whether the choice list should be shown at the given
// dialogue position: the node has choices and its dialogue is fully revealed.
func (n Node) AtChoices(dialogueIndex int) bool {
	return n.HasChoices() && dialogueIndex == len(n.Dialogue)-1
}

// VisibleChoices returns the choices whose flag gate passes, in authored order.
func (n Node) VisibleChoices(flags conditionals.FlagSet) []Choice {
	visible := make([]Choice, 0, len(n.Choices))
	for _, c := range n.Choices {
		if c.IsVisible(flags) {
			visible = append(visible, c)
		}
	}
	return visible
}

// Choice returns the choice with the given id.
func (n Node) Choice(id string) (Choice, bool) {
	for _, c := range n.Choices {
		if c.ID == id {
			return c, true
		}
	}
	return Choice{}, false
}

// DefaultChoice returns the choice a timed decision falls back to.
func (n Node) DefaultChoice() (Choice, bool) {
	if n.TimedDecision == nil {
		return Choice{}, false
	}
	i := n.TimedDecision.DefaultChoiceIndex
	if i < 0 || i >= len(n.Choices) {
		return Choice{}, false
	}
	return n.Choices[i], true
}
