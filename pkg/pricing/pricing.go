// Package pricing computes the USD cost of a single LLM invocation from its
// token counts, using a compile-time table of per-model per-million-token
// rates.
package pricing

import (
	"math"
	"strings"
)

// Rate holds the per-million-token price for a model, in USD.
type Rate struct {
	InputPerMillion  float64
	OutputPerMillion float64
}

// table is the compile-time pricing table. Keys are matched against a
// normalized model name (lowercase, trimmed) first exactly, then by longest
// prefix, falling back to "default".
var table = map[string]Rate{
	// OpenAI
	"gpt-4":             {30.0, 60.0},
	"gpt-4-turbo":        {10.0, 30.0},
	"gpt-4o":             {5.0, 15.0},
	"gpt-4o-mini":        {0.15, 0.60},
	"gpt-3.5-turbo":      {0.50, 1.50},
	"gpt-3.5-turbo-16k":  {3.0, 4.0},

	// Anthropic
	"claude-3-opus":     {15.0, 75.0},
	"claude-3-sonnet":   {3.0, 15.0},
	"claude-3-haiku":    {0.25, 1.25},
	"claude-3-5-sonnet": {3.0, 15.0},
	"claude-3-5-haiku":  {1.0, 5.0},

	// Google
	"gemini-pro":        {0.50, 1.50},
	"gemini-pro-vision": {0.50, 1.50},
	"gemini-1.5-pro":    {3.5, 10.5},
	"gemini-1.5-flash":  {0.35, 1.05},

	// Mistral
	"mistral-small":  {1.0, 3.0},
	"mistral-medium": {2.7, 8.1},
	"mistral-large":  {4.0, 12.0},

	// Cohere
	"command":         {1.0, 2.0},
	"command-light":   {0.30, 0.60},
	"command-r":       {0.50, 1.50},
	"command-r-plus":  {3.0, 15.0},

	"default": {1.0, 2.0},
}

// Resolve normalizes model and finds its Rate: exact match, else the
// longest table key that is a prefix of model, else the default row.
func Resolve(model string) Rate {
	return table[ResolveKey(model)]
}

// ResolveKey normalizes model and returns the table key it resolves to —
// an exact match, else the longest table key that is a prefix of the
// normalized name, else "default". Exposed separately from Resolve so
// callers that need to record which table entry was billed (rather than
// just its rate) don't have to re-derive it.
func ResolveKey(model string) string {
	normalized := strings.ToLower(strings.TrimSpace(model))

	if _, ok := table[normalized]; ok {
		return normalized
	}

	best := ""
	for key := range table {
		if key == "default" {
			continue
		}
		if strings.HasPrefix(normalized, key) && len(key) > len(best) {
			best = key
		}
	}
	if best != "" {
		return best
	}

	return "default"
}

// Cost computes the USD cost of an invocation from precise input/output
// token counts, rounded to 6 decimal places.
func Cost(model string, inputTokens, outputTokens int64) float64 {
	r := Resolve(model)
	cost := float64(inputTokens)/1e6*r.InputPerMillion + float64(outputTokens)/1e6*r.OutputPerMillion
	return round6(cost)
}

// CostFromTotal estimates cost from a total token count alone, splitting
// 70/30 input/output per the standard estimation ratio.
func CostFromTotal(model string, totalTokens int64) float64 {
	estimatedInput := int64(float64(totalTokens) * 0.7)
	estimatedOutput := int64(float64(totalTokens) * 0.3)
	return Cost(model, estimatedInput, estimatedOutput)
}

func round6(v float64) float64 {
	return math.Round(v*1e6) / 1e6
}
