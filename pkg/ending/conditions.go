package ending

import (
	"github.com/jwebster45206/papal-schism/pkg/conditionals"
	"github.com/jwebster45206/papal-schism/pkg/state"
)

// averaged are the stats that make up the overall score. Gold is not one of them.
var averaged = []string{state.StatLegitimacy, state.StatPiety, state.StatStability, state.StatCuria}

var (
	MartyrPope = Ending{
		Title: "The Martyr Pope",
		Text:  "You stood when others fled. Whether Rome falls or not, your name becomes legend. Generations will speak of the Pope who faced death with faith unshaken. Your sacrifice inspires the faithful for centuries to come.",
	}
	Exile = Ending{
		Title: "The Exile",
		Text:  "You fled, and Rome burned. The antipope took your throne. History judges you harshly—a coward who abandoned his flock. Yet in exile, you preserved what you could. The true Church survived, if diminished.",
	}
	CorruptThrone = Ending{
		Title: "The Corrupt Throne",
		Text:  "Your papacy became synonymous with everything wrong with the Church. You covered sins, sold salvation, and traded souls for gold. Reformers will speak your name as a curse for generations. The seeds of schism grow deep.",
	}
	Reformer = Ending{
		Title: "The Reformer",
		Text:  "Against all odds, you cleaned house. The corrupt feared you. The faithful praised you. Your reforms came at a cost—allies turned enemies, stability sacrificed for righteousness. But the Church emerges stronger.",
	}
	Puppetmaster = Ending{
		Title: "The Puppetmaster",
		Text:  "You learned the game and played it better than anyone. Every cardinal dances on your strings. The Church is stable, if hollow. You have power, but at what cost to your soul?",
	}
	Pragmatist = Ending{
		Title: "The Pragmatist",
		Text:  "You saved Rome through surrender. The people live, even if they live under occupation. History will debate whether you were wise or weak. But children grow up in homes that would have burned. Perhaps that is enough.",
	}
	SteadyHand = Ending{
		Title: "The Steady Hand",
		Text:  "You navigated impossible choices with reasonable competence. The Church survives. Europe still burns, but no more than when you arrived. In these dark times, that may be the best anyone could achieve.",
	}
	FailedPapacy = Ending{
		Title: "The Failed Papacy",
		Text:  "Everything crumbled under your reign. Wars worsened. Famine spread. The schism deepened. Whether through incompetence or malice, your papacy accelerated the Church's decline. Your name becomes a cautionary tale.",
	}
	Forgotten = Ending{
		Title: "The Forgotten Pope",
		Text:  "Your papacy was neither triumph nor disaster. You made choices, some good, some terrible. In time, your name fades from memory, just another Pope in an endless succession. Perhaps that is mercy.",
	}
)

// DefaultConditions returns the ordered ending conditions of the shipped story.
// Thresholds are strict inequalities.
func DefaultConditions() []Condition {
	return []Condition{
		{
			Name: "martyr",
			When: conditionals.When{
				RequiresFlags: []string{"stood_ground"},
				StatAbove:     map[string]int{state.StatPiety: 60, state.StatLegitimacy: 50},
			},
			Ending: MartyrPope,
		},
		{
			Name: "exile",
			When: conditionals.When{
				RequiresFlags: []string{"fled_rome"},
				StatBelow:     map[string]int{state.StatStability: 30},
			},
			Ending: Exile,
		},
		{
			Name: "corrupt",
			When: conditionals.When{
				RequiresFlags: []string{"covered_atrocities", "sold_indulgences"},
			},
			Ending: CorruptThrone,
		},
		{
			Name: "reformer",
			When: conditionals.When{
				RequiresFlags: []string{"purged_corruption"},
				StatAbove:     map[string]int{state.StatPiety: 70},
			},
			Ending: Reformer,
		},
		{
			Name: "puppetmaster",
			When: conditionals.When{
				RequiresFlags: []string{"blackmailed_orsini"},
				StatAbove:     map[string]int{state.StatCuria: 70},
			},
			Ending: Puppetmaster,
		},
		{
			Name: "pragmatist",
			When: conditionals.When{
				RequiresFlags: []string{"surrendered"},
				StatAbove:     map[string]int{state.StatStability: 60},
			},
			Ending: Pragmatist,
		},
		{
			Name: "steady_hand",
			When: conditionals.When{
				AverageOf:    averaged,
				AverageAbove: conditionals.Float(60),
			},
			Ending: SteadyHand,
		},
		{
			Name: "failed",
			When: conditionals.When{
				AverageOf:    averaged,
				AverageBelow: conditionals.Float(30),
			},
			Ending: FailedPapacy,
		},
	}
}
