// Package pricing maps model identifiers and token counts to estimated
// USD cost. A static per-model rate table is consulted first; models
// missing from it fall back to a dynamically fetched remote catalog.
// Models absent from both resolve to nil, never zero.
package pricing

import "strings"

// Rate holds USD prices per million tokens for one model.
type Rate struct {
	InputPerMillion      float64 `json:"inputPerMillion"`
	OutputPerMillion     float64 `json:"outputPerMillion"`
	CacheReadPerMillion  float64 `json:"cacheReadPerMillion"`
	CacheWritePerMillion float64 `json:"cacheWritePerMillion"`
}

// staticRates is the built-in metadata table. Keys are unprefixed model
// ids; lookups strip the provider prefix and fall back to the longest
// matching key prefix so dated variants resolve to their family rate.
var staticRates = map[string]Rate{
	"claude-opus-4":     {InputPerMillion: 15, OutputPerMillion: 75, CacheReadPerMillion: 1.5, CacheWritePerMillion: 18.75},
	"claude-sonnet-4":   {InputPerMillion: 3, OutputPerMillion: 15, CacheReadPerMillion: 0.3, CacheWritePerMillion: 3.75},
	"claude-3-7-sonnet": {InputPerMillion: 3, OutputPerMillion: 15, CacheReadPerMillion: 0.3, CacheWritePerMillion: 3.75},
	"claude-3-5-haiku":  {InputPerMillion: 0.8, OutputPerMillion: 4, CacheReadPerMillion: 0.08, CacheWritePerMillion: 1},
	"gpt-4o-mini":       {InputPerMillion: 0.15, OutputPerMillion: 0.6, CacheReadPerMillion: 0.075},
	"gpt-4o":            {InputPerMillion: 2.5, OutputPerMillion: 10, CacheReadPerMillion: 1.25},
	"gpt-4.1-mini":      {InputPerMillion: 0.4, OutputPerMillion: 1.6, CacheReadPerMillion: 0.1},
	"gpt-4.1":           {InputPerMillion: 2, OutputPerMillion: 8, CacheReadPerMillion: 0.5},
	"o3-mini":           {InputPerMillion: 1.1, OutputPerMillion: 4.4, CacheReadPerMillion: 0.55},
	"o3":                {InputPerMillion: 2, OutputPerMillion: 8, CacheReadPerMillion: 0.5},
	"gemini-2.5-pro":    {InputPerMillion: 1.25, OutputPerMillion: 10, CacheReadPerMillion: 0.31},
	"gemini-2.5-flash":  {InputPerMillion: 0.3, OutputPerMillion: 2.5, CacheReadPerMillion: 0.075},
	"gemini-2.0-flash":  {InputPerMillion: 0.1, OutputPerMillion: 0.4, CacheReadPerMillion: 0.025},
}

// lookupStatic resolves a rate from the built-in table. Resolution order:
// exact full id, exact short id, then longest key prefix of the short id.
func lookupStatic(fullModel string) (Rate, bool) {
	if rate, ok := staticRates[fullModel]; ok {
		return rate, true
	}

	short := shortModel(fullModel)
	if rate, ok := staticRates[short]; ok {
		return rate, true
	}

	var (
		best    Rate
		bestLen int
		found   bool
	)
	for key, rate := range staticRates {
		if strings.HasPrefix(short, key) && len(key) > bestLen {
			best = rate
			bestLen = len(key)
			found = true
		}
	}
	return best, found
}

// shortModel strips a provider qualifier ("anthropic/claude-opus-4" →
// "claude-opus-4").
func shortModel(fullModel string) string {
	if idx := strings.LastIndex(fullModel, "/"); idx >= 0 {
		return fullModel[idx+1:]
	}
	return fullModel
}
