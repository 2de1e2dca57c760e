// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package synthesis

import "strings"

// Effort is the reasoning-effort tier passed to the model as a hint. It has
// no effect on this package's own control flow.
type Effort string

const (
	EffortLow    Effort = "low"
	EffortMedium Effort = "medium"
	EffortHigh   Effort = "high"
)

// analyticalKeywords mark questions that need cross-source reasoning.
var analyticalKeywords = []string{
	"compare", "contrast", "versus", " vs ", "evaluate", "analyze",
	"analyse", "trade-off", "tradeoff", "pros and cons", "why",
}

// lookupKeywords mark simple definitional or enumerative questions.
var lookupKeywords = []string{
	"what is", "what are", "who is", "define ", "definition of",
	"meaning of", "list of", "when did", "when was",
}

// Word-count thresholds used when no keyword matches.
const (
	longQueryWords  = 40
	shortQueryWords = 5
)

// ReasoningEffort picks an effort tier from the query text alone.
// Analytical keywords win over lookup keywords; with neither present the
// tier is driven by query length.
func ReasoningEffort(query string) Effort {
	lowered := strings.ToLower(query)

	for _, kw := range analyticalKeywords {
		if strings.Contains(lowered, kw) {
			return EffortHigh
		}
	}
	for _, kw := range lookupKeywords {
		if strings.Contains(lowered, kw) {
			return EffortLow
		}
	}

	words := len(strings.Fields(query))
	switch {
	case words >= longQueryWords:
		return EffortHigh
	case words <= shortQueryWords:
		return EffortLow
	default:
		return EffortMedium
	}
}
