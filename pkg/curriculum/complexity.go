// Package curriculum estimates how hard a task is and biases retrieval
// toward worked examples ("exemplars") of matching difficulty.
package curriculum

import "regexp"

// Level is an ordinal difficulty from MinLevel to MaxLevel
type Level int

const (
	MinLevel Level = 1
	MaxLevel Level = 5
)

// Valid reports whether l is within MinLevel..MaxLevel
func (l Level) Valid() bool {
	return l >= MinLevel && l <= MaxLevel
}

type signalSet struct {
	level    Level
	weight   float64
	patterns []*regexp.Regexp
}

var signals = []signalSet{
	{
		// direct lookups and identifiers
		level:  1,
		weight: 1.0,
		patterns: compile(
			`(?i)\bwhat (is|are)\b`,
			`(?i)\b(show|get|find|list|describe|retrieve)\b`,
			`(?i)\blook ?up\b`,
			`\b[A-Z][0-9][A-Z0-9]{3}[0-9]\b`,
			`(?i)\b[a-z]+:[0-9]{4,}\b`,
			`(?i)\bEC ?[0-9]+\.[0-9]+`,
		),
	},
	{
		// cross references
		level:  2,
		weight: 2.0,
		patterns: compile(
			`(?i)\bannotations? (for|of)\b`,
			`(?i)\b(related|linked|connected) to\b`,
			`(?i)\bcross[- ]?ref(erence)?s?\b`,
			`(?i)\bxrefs?\b`,
			`(?i)\bmapped to\b`,
			`(?i)\bassociated with\b`,
		),
	},
	{
		// filters and constraints
		level:  3,
		weight: 1.5,
		patterns: compile(
			`(?i)\bfilter(s|ed|ing)?\b`,
			`(?i)\bwhere\b`,
			`(?i)\bonly\b`,
			`(?i)\b(reviewed|curated|swiss-?prot)\b`,
			`(?i)\b(greater|less|more|fewer) than\b`,
			`(?i)\bbetween [0-9]+ and [0-9]+\b`,
			`[<>]=? ?[0-9]+`,
		),
	},
	{
		// hierarchies and paths
		level:  4,
		weight: 2.0,
		patterns: compile(
			`(?i)\btransitive(ly)?\b`,
			`(?i)\ball (descendants|ancestors|subclasses|superclasses)\b`,
			`(?i)\bpath (from|to|between)\b`,
			`(?i)\blineage\b`,
			`(?i)\bhierarch(y|ies|ical)\b`,
			`(?i)\bsub-?class(es)? of\b`,
			`(?i)\bpart of\b`,
		),
	},
	{
		// aggregation
		level:  5,
		weight: 2.5,
		patterns: compile(
			`(?i)\bhow many\b`,
			`(?i)\bcount(s|ing)?\b`,
			`(?i)\bnumber of\b`,
			`(?i)\b(average|mean|sum|total)\b`,
			`(?i)\bgroup(ed)? by\b`,
			`(?i)\bmost (common|frequent)\b`,
			`(?i)\btop [0-9]+\b`,
		),
	},
}

func compile(exprs ...string) []*regexp.Regexp {
	out := make([]*regexp.Regexp, len(exprs))
	for i, e := range exprs {
		out[i] = regexp.MustCompile(e)
	}
	return out
}

// Estimation is the outcome of EstimateDetailed
type Estimation struct {
	Level Level `json:"level"`
	// Scores holds the summed signal weight per level
	Scores map[Level]float64 `json:"scores"`
}

// Estimate classifies text into a curriculum level. Every level is scored by
// the summed weight of its matching signals; the highest score wins, ties go
// to the higher level and text with no signal is level 1.
func Estimate(text string) Level {
	return EstimateDetailed(text).Level
}

// EstimateDetailed is Estimate with the per-level scores
func EstimateDetailed(text string) Estimation {
	est := Estimation{Level: MinLevel, Scores: make(map[Level]float64, len(signals))}

	best := 0.0
	for _, set := range signals {
		score := 0.0
		for _, p := range set.patterns {
			if p.MatchString(text) {
				score += set.weight
			}
		}
		est.Scores[set.level] = score
		if score > 0 && score >= best {
			best = score
			est.Level = set.level
		}
	}
	return est
}
