package state

// Bounds is an inclusive numeric range that a tracked value is clamped to.
type Bounds struct {
	Min int
	Max int
}

// Clamp returns v limited to [b.Min, b.Max].
func (b Bounds) Clamp(v int) int {
	if v < b.Min {
		return b.Min
	}
	if v > b.Max {
		return b.Max
	}
	return v
}

var (
	StatBounds         = Bounds{Min: 0, Max: 100}
	RelationshipBounds = Bounds{Min: -100, Max: 100}
)

const (
	InitialStat         = 50
	InitialRelationship = 0
)

// Stat names, as used in story content and save files.
const (
	StatLegitimacy = "legitimacy"
	StatGold       = "gold"
	StatPiety      = "piety"
	StatStability  = "stability"
	StatCuria      = "curia"
)

// Relationship names, one per faction.
const (
	RelFrance          = "france"
	RelEngland         = "england"
	RelHolyRomanEmpire = "holyRomanEmpire"
	RelCastile         = "castile"
)

// StatNames lists every stat in display order.
var StatNames = []string{StatLegitimacy, StatGold, StatPiety, StatStability, StatCuria}

// RelationshipNames lists every faction in display order.
var RelationshipNames = []string{RelFrance, RelEngland, RelHolyRomanEmpire, RelCastile}

// track is a container of named bounded integers.
type track interface {
	get(name string) (int, bool)
	set(name string, v int) bool
}

// clampAll forces every named value of t into b.
func clampAll(t track, names []string, b Bounds) {
	for _, name := range names {
		if v, ok := t.get(name); ok {
			t.set(name, b.Clamp(v))
		}
	}
}

// applyDeltas adds each delta to the named value of t and clamps the result.
// Unknown names are skipped and returned.
func applyDeltas(t track, deltas map[string]int, b Bounds) []string {
	var unknown []string
	for name, delta := range deltas {
		cur, ok := t.get(name)
		if !ok {
			unknown = append(unknown, name)
			continue
		}
		t.set(name, b.Clamp(cur+delta))
	}
	return unknown
}

// Stats are the five papal resources, each clamped to [0, 100].
type Stats struct {
	Legitimacy int `json:"legitimacy"`
	Gold       int `json:"gold"`
	Piety      int `json:"piety"`
	Stability  int `json:"stability"`
	Curia      int `json:"curia"`
}

// InitialStats returns every stat at its starting value.
func InitialStats() Stats {
	return Stats{
		Legitimacy: InitialStat,
		Gold:       InitialStat,
		Piety:      InitialStat,
		Stability:  InitialStat,
		Curia:      InitialStat,
	}
}

func (s *Stats) get(name string) (int, bool) {
	switch name {
	case StatLegitimacy:
		return s.Legitimacy, true
	case StatGold:
		return s.Gold, true
	case StatPiety:
		return s.Piety, true
	case StatStability:
		return s.Stability, true
	case StatCuria:
		return s.Curia, true
	}
	return 0, false
}

func (s *Stats) set(name string, v int) bool {
	switch name {
	case StatLegitimacy:
		s.Legitimacy = v
	case StatGold:
		s.Gold = v
	case StatPiety:
		s.Piety = v
	case StatStability:
		s.Stability = v
	case StatCuria:
		s.Curia = v
	default:
		return false
	}
	return true
}

// StatValue implements conditionals.StatSource.
func (s Stats) StatValue(name string) (int, bool) {
	return s.get(name)
}

// Apply returns a copy of s with deltas added and clamped to StatBounds,
// plus any delta names that are not stats.
func (s Stats) Apply(deltas map[string]int) (Stats, []string) {
	out := s
	unknown := applyDeltas(&out, deltas, StatBounds)
	return out, unknown
}

// Clamped returns s with every stat forced into StatBounds.
func (s Stats) Clamped() Stats {
	clampAll(&s, StatNames, StatBounds)
	return s
}

// Relationships are per-faction standings, each clamped to [-100, 100].
type Relationships struct {
	France          int `json:"france"`
	England         int `json:"england"`
	HolyRomanEmpire int `json:"holyRomanEmpire"`
	Castile         int `json:"castile"`
}

// InitialRelationships returns every faction at its starting standing.
func InitialRelationships() Relationships {
	return Relationships{
		France:          InitialRelationship,
		England:         InitialRelationship,
		HolyRomanEmpire: InitialRelationship,
		Castile:         InitialRelationship,
	}
}

func (r *Relationships) get(name string) (int, bool) {
	switch name {
	case RelFrance:
		return r.France, true
	case RelEngland:
		return r.England, true
	case RelHolyRomanEmpire:
		return r.HolyRomanEmpire, true
	case RelCastile:
		return r.Castile, true
	}
	return 0, false
}

func (r *Relationships) set(name string, v int) bool {
	switch name {
	case RelFrance:
		r.France = v
	case RelEngland:
		r.England = v
	case RelHolyRomanEmpire:
		r.HolyRomanEmpire = v
	case RelCastile:
		r.Castile = v
	default:
		return false
	}
	return true
}

// Value returns the named relationship.
func (r Relationships) Value(name string) (int, bool) {
	return r.get(name)
}

// Apply returns a copy of r with deltas added and clamped to RelationshipBounds,
// plus any delta names that are not factions.
func (r Relationships) Apply(deltas map[string]int) (Relationships, []string) {
	out := r
	unknown := applyDeltas(&out, deltas, RelationshipBounds)
	return out, unknown
}

// Clamped returns r with every standing forced into RelationshipBounds.
func (r Relationships) Clamped() Relationships {
	clampAll(&r, RelationshipNames, RelationshipBounds)
	return r
}

// IsStatName reports whether name is a known stat.
func IsStatName(name string) bool {
	var s Stats
	_, ok := s.get(name)
	return ok
}

// IsRelationshipName reports whether name is a known faction.
func IsRelationshipName(name string) bool {
	var r Relationships
	_, ok := r.get(name)
	return ok
}
