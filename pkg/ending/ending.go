// Package ending decides which ending a finished game receives.
package ending

import (
	"github.com/jwebster45206/papal-schism/pkg/conditionals"
	"github.com/jwebster45206/papal-schism/pkg/state"
)

// Ending is the outcome shown once a game is complete. It is derived
// from the final state and never stored.
type Ending struct {
	Title string `json:"title"`
	Text  string `json:"text"`
}

// Condition pairs a predicate with the ending it selects.
type Condition struct {
	Name   string            `json:"name" yaml:"name"`
	When   conditionals.When `json:"when" yaml:"when"`
	Ending Ending            `json:"ending" yaml:"ending"`
}

// Resolver evaluates conditions in order; the first match wins.
type Resolver struct {
	conditions []Condition
	fallback   Ending
}

// NewResolver returns a Resolver over conds, falling back to fallback
// when nothing matches.
func NewResolver(conds []Condition, fallback Ending) *Resolver {
	return &Resolver{
		conditions: append([]Condition(nil), conds...),
		fallback:   fallback,
	}
}

// Default returns the resolver for the shipped story.
func Default() *Resolver {
	return NewResolver(DefaultConditions(), Forgotten)
}

// Resolve picks the ending for the given final stats and flags.
// It has no side effects.
func (r *Resolver) Resolve(stats state.Stats, flags state.Flags) Ending {
	_, e := r.Match(stats, flags)
	return e
}

// Match is Resolve that also names the condition that fired.
// The name is empty when the fallback was used.
func (r *Resolver) Match(stats state.Stats, flags state.Flags) (string, Ending) {
	for _, c := range r.conditions {
		if c.When.Matches(flags, stats) {
			return c.Name, c.Ending
		}
	}
	return "", r.fallback
}

// Conditions returns the ordered condition list.
func (r *Resolver) Conditions() []Condition {
	return append([]Condition(nil), r.conditions...)
}

// Resolve uses the default resolver.
func Resolve(stats state.Stats, flags state.Flags) Ending {
	return Default().Resolve(stats, flags)
}
