package state

// StartNodeID is the node every new game begins at.
const StartNodeID = "opening"

// GameState is the player's progress through a story, and the unit of persistence.
type GameState struct {
	CurrentNodeID string        `json:"currentNodeId"`
	DialogueIndex int           `json:"dialogueIndex"` // Position within the current node's dialogue
	Stats         Stats         `json:"stats"`
	Relationships Relationships `json:"relationships"`
	Flags         Flags         `json:"flags"`
	HasStarted    bool          `json:"hasStarted"`
	IsComplete    bool          `json:"isComplete"`
}

// NewGameState returns the documented initial state: at the start node,
// stats at 50, relationships at 0, no flags, not started.
func NewGameState() *GameState {
	return &GameState{
		CurrentNodeID: StartNodeID,
		DialogueIndex: 0,
		Stats:         InitialStats(),
		Relationships: InitialRelationships(),
		Flags:         Flags{},
	}
}

// Clone returns a deep copy.
func (gs *GameState) Clone() *GameState {
	if gs == nil {
		return nil
	}
	out := *gs
	out.Flags = gs.Flags.Clone()
	return &out
}

// HasFlag implements conditionals.FlagSet.
func (gs *GameState) HasFlag(name string) bool {
	return gs.Flags.HasFlag(name)
}

// StatValue implements conditionals.StatSource.
func (gs *GameState) StatValue(name string) (int, bool) {
	return gs.Stats.StatValue(name)
}

// HasSave reports whether the state is a game worth resuming.
func (gs *GameState) HasSave() bool {
	return gs.HasStarted && !gs.IsComplete
}
