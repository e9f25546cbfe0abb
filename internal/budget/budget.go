// Package budget estimates prompt sizes against model context windows.
package budget

import (
	"math"
	"strings"
)

// ReservedForDays is the completion room kept free for a structured
// itinerary answer on large models. Day JSON with segments runs long.
const ReservedForDays = 8192

// ReserveFor is the answer room to keep for model: ReservedForDays, capped
// at a quarter of the context window so small or unknown models still
// leave space for the prompt.
func ReserveFor(model string) int {
	return min(ReservedForDays, ModelContextTokens(model)/4)
}

// EstimateTokens uses the common four-characters-per-token rule.
func EstimateTokens(s string) int {
	if len(s) == 0 {
		return 0
	}
	return int(math.Ceil(float64(len(s)) / 4.0))
}

// EstimatePromptTokens sums the estimates for a system and user message.
func EstimatePromptTokens(system, user string) int {
	return EstimateTokens(system) + EstimateTokens(user)
}

// ModelContextTokens returns the context window for a model name. Unknown
// names fall back to size hints in the name, then to 8192.
func ModelContextTokens(model string) int {
	name := strings.ToLower(strings.TrimSpace(model))
	if v, ok := knownModels[name]; ok {
		return v
	}
	switch {
	case name == "":
		return 8192
	case strings.HasPrefix(name, "gemini-"):
		return 1_000_000
	case strings.HasSuffix(name, "1m"):
		return 1_000_000
	case strings.HasSuffix(name, "200k"):
		return 200_000
	case strings.HasSuffix(name, "128k"), strings.Contains(name, "-mini"):
		return 128_000
	}
	return 8192
}

// Remaining is the context left after the prompt and the reserved output.
// It never goes below zero.
func Remaining(model string, reserved, promptTokens int) int {
	if reserved < 0 {
		reserved = 0
	}
	if r := ModelContextTokens(model) - reserved - promptTokens; r > 0 {
		return r
	}
	return 0
}

// Fits reports whether a prompt leaves any room once reserved is set aside.
func Fits(model string, reserved, promptTokens int) bool {
	return Remaining(model, reserved, promptTokens) > 0
}

var knownModels = map[string]int{
	"gpt-4o":           128_000,
	"gpt-4o-mini":      128_000,
	"gpt-4-turbo":      128_000,
	"gpt-3.5-turbo":    16_384,
	"gemini-1.5-pro":   2_000_000,
	"gemini-1.5-flash": 1_000_000,
	"llama-3":          8_192,
	"llama-3.1":        128_000,
	"gpt-oss-20b":      4_096,
}
