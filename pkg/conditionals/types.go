package conditionals

// FlagSet is the minimal view of narrative flags needed to evaluate a When clause.
type FlagSet interface {
	HasFlag(name string) bool
}

// StatSource is the minimal view of numeric stats needed to evaluate a When clause.
// This avoids an import cycle with the state package
type StatSource interface {
	StatValue(name string) (int, bool)
}

// When defines the conditions that must all hold for a predicate to match.
// Flag clauses gate choices; stat and average clauses are used by ending conditions.
type When struct {
	RequiresFlags []string       `json:"requiresFlags,omitempty" yaml:"requiresFlags,omitempty"` // All must be present
	ExcludesFlags []string       `json:"excludesFlags,omitempty" yaml:"excludesFlags,omitempty"` // None may be present
	StatAbove     map[string]int `json:"statAbove,omitempty" yaml:"statAbove,omitempty"`         // stat > value
	StatBelow     map[string]int `json:"statBelow,omitempty" yaml:"statBelow,omitempty"`         // stat < value

	// AverageOf names the stats averaged for AverageAbove / AverageBelow.
	AverageOf    []string `json:"averageOf,omitempty" yaml:"averageOf,omitempty"`
	AverageAbove *float64 `json:"averageAbove,omitempty" yaml:"averageAbove,omitempty"`
	AverageBelow *float64 `json:"averageBelow,omitempty" yaml:"averageBelow,omitempty"`
}

// IsEmpty reports whether the clause carries no condition at all.
func (w When) IsEmpty() bool {
	return len(w.RequiresFlags) == 0 &&
		len(w.ExcludesFlags) == 0 &&
		len(w.StatAbove) == 0 &&
		len(w.StatBelow) == 0 &&
		w.AverageAbove == nil &&
		w.AverageBelow == nil
}

// HasStatClauses reports whether evaluating the clause needs a StatSource.
func (w When) HasStatClauses() bool {
	return len(w.StatAbove) > 0 || len(w.StatBelow) > 0 || w.AverageAbove != nil || w.AverageBelow != nil
}

// Matches checks every clause of w. An empty clause always matches.
// stats may be nil when w has no stat clauses; a stat clause evaluated
// against a nil source or an unknown stat name does not match.
func (w When) Matches(flags FlagSet, stats StatSource) bool {
	if !MatchesFlags(w.RequiresFlags, w.ExcludesFlags, flags) {
		return false
	}

	if !w.HasStatClauses() {
		return true
	}
	if stats == nil {
		return false
	}

	for name, threshold := range w.StatAbove {
		v, ok := stats.StatValue(name)
		if !ok || v <= threshold {
			return false
		}
	}

	for name, threshold := range w.StatBelow {
		v, ok := stats.StatValue(name)
		if !ok || v >= threshold {
			return false
		}
	}

	if w.AverageAbove != nil || w.AverageBelow != nil {
		avg, ok := Average(stats, w.AverageOf)
		if !ok {
			return false
		}
		if w.AverageAbove != nil && avg <= *w.AverageAbove {
			return false
		}
		if w.AverageBelow != nil && avg >= *w.AverageBelow {
			return false
		}
	}

	return true
}

// MatchesFlags implements the flag gate: every required flag is present
// and no excluded flag is present. A nil FlagSet holds no flags.
func MatchesFlags(requires, excludes []string, flags FlagSet) bool {
	for _, f := range requires {
		if flags == nil || !flags.HasFlag(f) {
			return false
		}
	}
	if flags == nil {
		return true
	}
	for _, f := range excludes {
		if flags.HasFlag(f) {
			return false
		}
	}
	return true
}

// Average returns the arithmetic mean of the named stats.
// It fails when names is empty or any name is unknown to the source.
func Average(stats StatSource, names []string) (float64, bool) {
	if len(names) == 0 {
		return 0, false
	}
	sum := 0
	for _, name := range names {
		v, ok := stats.StatValue(name)
		if !ok {
			return 0, false
		}
		sum += v
	}
	return float64(sum) / float64(len(names)), true
}

// Float returns a pointer to f, for building When clauses in code.
func Float(f float64) *float64 {
	return &f
}
