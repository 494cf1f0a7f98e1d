package analysis

import (
	"fmt"
	"sort"
	"strings"

	"github.com/summit-agent/summit/pkg/models"
)

// buildSummary renders the human-readable report: repository counts, a
// per-file breakdown with per-type chunk averages, and the agent's
// repository trend paragraph. Files and chunk types are emitted in sorted
// order so the summary is stable for a given set of verdicts.
func buildSummary(overallScore float64, fileAnalyses map[string]models.FileAnalysis, trend string) string {
	var b strings.Builder

	perfect := 0
	problem := 0
	for _, fa := range fileAnalyses {
		if fa.LintScore >= 9.5 {
			perfect++
		}
		if fa.LintScore < 7.0 {
			problem++
		}
	}

	fmt.Fprintf(&b, "Analysis of %d recently modified source files:\n", len(fileAnalyses))
	fmt.Fprintf(&b, "- Overall code quality score: %.1f/10\n", overallScore)
	fmt.Fprintf(&b, "- %d files have excellent quality (score >= 9.5)\n", perfect)
	fmt.Fprintf(&b, "- %d files need attention (score < 7.0)\n", problem)

	paths := make([]string, 0, len(fileAnalyses))
	for p := range fileAnalyses {
		paths = append(paths, p)
	}
	sort.Strings(paths)

	for _, p := range paths {
		fa := fileAnalyses[p]
		fmt.Fprintf(&b, "\n%s:\n", p)
		fmt.Fprintf(&b, "- Overall file score: %.1f/10\n", fa.LintScore)

		for _, line := range chunkTypeAverages(fa.Chunks) {
			b.WriteString(line)
		}

		if fa.Insights != "" {
			fmt.Fprintf(&b, "  Key insight: %s.\n", firstSentence(fa.Insights))
		}
		if fa.Suggestions != "" {
			fmt.Fprintf(&b, "  Main suggestion: %s.\n", firstSentence(fa.Suggestions))
		}
	}

	fmt.Fprintf(&b, "\nRecent Development Analysis:\n%s\n", trend)

	return b.String()
}

func chunkTypeAverages(chunks map[string]models.ChunkAnalysis) []string {
	counts := make(map[string]int)
	sums := make(map[string]float64)
	for _, c := range chunks {
		counts[c.ContentType]++
		sums[c.ContentType] += c.QualityScore
	}

	types := make([]string, 0, len(counts))
	for t := range counts {
		types = append(types, t)
	}
	sort.Strings(types)

	lines := make([]string, 0, len(types))
	for _, t := range types {
		label := strings.ReplaceAll(t, "_", " ")
		label = strings.ToUpper(label[:1]) + label[1:]
		lines = append(lines, fmt.Sprintf("  %s: %d analyzed, avg score %.1f/10\n",
			label, counts[t], sums[t]/float64(counts[t])))
	}
	return lines
}

func firstSentence(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.Index(s, "."); i >= 0 {
		return s[:i]
	}
	return s
}
