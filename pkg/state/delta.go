package state

// GameStateDelta is the set of state changes carried by one choice.
// Deltas are partial: names that are absent leave the value untouched.
type GameStateDelta struct {
	StatDeltas         map[string]int `json:"statDeltas,omitempty"`
	RelationshipDeltas map[string]int `json:"relationshipDeltas,omitempty"`
	AddFlags           []string       `json:"addFlags,omitempty"`
	RemoveFlags        []string       `json:"removeFlags,omitempty"`
}

// IsEmpty checks if the GameStateDelta changes nothing
func (gsd *GameStateDelta) IsEmpty() bool {
	return gsd == nil || (len(gsd.StatDeltas) == 0 &&
		len(gsd.RelationshipDeltas) == 0 &&
		len(gsd.AddFlags) == 0 &&
		len(gsd.RemoveFlags) == 0)
}

// ApplyDelta applies stat deltas, then relationship deltas, then adds
// flags, then removes flags. A flag named in both AddFlags and RemoveFlags
// therefore ends up absent.
// It returns the delta names that matched no stat or relationship.
func (gs *GameState) ApplyDelta(d *GameStateDelta) []string {
	if d.IsEmpty() {
		return nil
	}

	var unknown []string
	var skipped []string

	gs.Stats, skipped = gs.Stats.Apply(d.StatDeltas)
	unknown = append(unknown, skipped...)

	gs.Relationships, skipped = gs.Relationships.Apply(d.RelationshipDeltas)
	unknown = append(unknown, skipped...)

	gs.Flags.Add(d.AddFlags...)
	gs.Flags.Remove(d.RemoveFlags...)

	return unknown
}
