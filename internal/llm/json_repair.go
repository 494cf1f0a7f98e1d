// Package llm holds helpers for post-processing raw model output before
// it is trusted as structured data.
package llm

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/kaptinlin/jsonrepair"
)

// RepairStats tracks what a repair pass had to do to the payload.
type RepairStats struct {
	OriginalBytes int           `json:"original_bytes"`
	RepairedBytes int           `json:"repaired_bytes"`
	Strategies    []string      `json:"strategies"`
	RepairTime    time.Duration `json:"repair_time"`
	WasRepaired   bool          `json:"was_repaired"`
}

// RepairJSON normalizes a model's JSON answer. Models routinely wrap JSON
// in markdown fences, prepend prose, or emit trailing commas; this strips
// the wrapping, extracts the outermost JSON value, and falls back to the
// jsonrepair library for anything structural.
func RepairJSON(raw string) (string, RepairStats, error) {
	startTime := time.Now()
	stats := RepairStats{OriginalBytes: len(raw)}

	candidate := strings.TrimSpace(raw)

	// Valid as-is: nothing to do.
	if json.Valid([]byte(candidate)) && isStructured(candidate) {
		stats.RepairedBytes = len(candidate)
		stats.RepairTime = time.Since(startTime)
		return candidate, stats, nil
	}
	stats.WasRepaired = true

	if stripped := stripCodeFences(candidate); stripped != candidate {
		candidate = stripped
		stats.Strategies = append(stats.Strategies, "code_fences")
	}

	if extracted := extractJSONValue(candidate); extracted != candidate {
		candidate = extracted
		stats.Strategies = append(stats.Strategies, "extract_value")
	}

	if !json.Valid([]byte(candidate)) {
		repaired, err := jsonrepair.JSONRepair(candidate)
		if err != nil {
			stats.RepairTime = time.Since(startTime)
			return "", stats, fmt.Errorf("failed to repair JSON: %w", err)
		}
		candidate = repaired
		stats.Strategies = append(stats.Strategies, "jsonrepair_library")
	}

	// The repair library turns bare prose into a valid JSON string, which
	// is useless to callers decoding structures. Only objects and arrays
	// count as repaired.
	if !json.Valid([]byte(candidate)) || !isStructured(candidate) {
		stats.RepairTime = time.Since(startTime)
		return "", stats, fmt.Errorf("response is not a JSON object or array after repair")
	}

	stats.RepairedBytes = len(candidate)
	stats.RepairTime = time.Since(startTime)
	return candidate, stats, nil
}

// isStructured reports whether the payload is a JSON object or array.
func isStructured(s string) bool {
	trimmed := strings.TrimSpace(s)
	return strings.HasPrefix(trimmed, "{") || strings.HasPrefix(trimmed, "[")
}

// DecodeRepaired repairs the payload and unmarshals it into target.
func DecodeRepaired(raw string, target interface{}) (RepairStats, error) {
	repaired, stats, err := RepairJSON(raw)
	if err != nil {
		return stats, err
	}
	if err := json.Unmarshal([]byte(repaired), target); err != nil {
		return stats, fmt.Errorf("failed to decode repaired JSON: %w", err)
	}
	return stats, nil
}

// stripCodeFences removes a surrounding ``` or ```json fence.
func stripCodeFences(s string) string {
	trimmed := strings.TrimSpace(s)
	if !strings.HasPrefix(trimmed, "```") {
		return s
	}

	trimmed = strings.TrimPrefix(trimmed, "```")
	if idx := strings.Index(trimmed, "\n"); idx >= 0 {
		// Drop the language tag line ("json", "JSON", ...).
		trimmed = trimmed[idx+1:]
	}
	if idx := strings.LastIndex(trimmed, "```"); idx >= 0 {
		trimmed = trimmed[:idx]
	}
	return strings.TrimSpace(trimmed)
}

// extractJSONValue slices out the outermost {...} or [...] region, which
// drops prose a model wrote before or after the payload.
func extractJSONValue(s string) string {
	objStart := strings.Index(s, "{")
	arrStart := strings.Index(s, "[")

	start := objStart
	endChar := "}"
	if start == -1 || (arrStart != -1 && arrStart < start) {
		start = arrStart
		endChar = "]"
	}
	if start == -1 {
		return s
	}

	end := strings.LastIndex(s, endChar)
	if end <= start {
		return s
	}
	return s[start : end+1]
}
