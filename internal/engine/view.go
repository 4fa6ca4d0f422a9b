package engine

import (
	"github.com/jwebster45206/papal-schism/pkg/ending"
	"github.com/jwebster45206/papal-schism/pkg/state"
	"github.com/jwebster45206/papal-schism/pkg/story"
)

// View is everything a presentation needs after a mutation. It is a
// snapshot; changing it does not affect the store.
type View struct {
	State          *state.GameState `json:"state"`
	Node           story.Node       `json:"node"`
	AtChoices      bool             `json:"atChoices"`
	VisibleChoices []story.Choice   `json:"visibleChoices"`
	// Consequence is shown once, until dismissed or replaced by the next choice.
	Consequence     string         `json:"consequence,omitempty"`
	LastStatChanges map[string]int `json:"lastStatChanges,omitempty"`
	// Stalled is set when the choice list is due but every choice is hidden.
	Stalled bool           `json:"stalled,omitempty"`
	Ending  *ending.Ending `json:"ending,omitempty"`
	HasSave bool           `json:"hasSave"`
	// Turn changes every time a node is entered, including re-entry on restart.
	Turn    uint64 `json:"turn"`
	Version uint64 `json:"version"`
}

// Timed reports whether a countdown applies to this view.
func (v View) Timed() bool {
	return v.AtChoices && v.Node.TimedDecision != nil && v.State != nil && !v.State.IsComplete
}

// Listener is called after every mutation, in mutation order. Listeners
// run on the mutating goroutine and must not call back into the Store.
type Listener func(View)
