// Package analysis delegates repository code-quality assessment to the AI
// agent. It fetches recently relevant source files through the GitHub
// client, splits them into chunks the agent can reason about, and
// aggregates the agent's per-chunk verdicts into a repository-level report.
package analysis

import (
	"fmt"
	"strings"
)

// Chunk content types.
const (
	ChunkFunction    = "function"
	ChunkType        = "type"
	ChunkModuleLevel = "module_level"
)

// Chunk is a contiguous slice of a source file. Lines are 1-based and
// inclusive, so the id is stable across runs for unchanged content.
type Chunk struct {
	Content     string
	StartLine   int
	EndLine     int
	ContentType string
}

// ID returns the stable chunk identifier used as the map key in analysis
// responses.
func (c Chunk) ID() string {
	return fmt.Sprintf("%s_%d_%d", c.ContentType, c.StartLine, c.EndLine)
}

// ChunkSource splits source code into blank-line-delimited blocks and
// greedily packs consecutive blocks into chunks of at most maxLines lines.
// A single oversized block stays intact rather than being split mid-block.
// Splitting is purely textual so it behaves the same for any language.
func ChunkSource(source string, maxLines int) []Chunk {
	if maxLines <= 0 {
		maxLines = 120
	}

	lines := strings.Split(source, "\n")
	blocks := splitBlocks(lines)
	if len(blocks) == 0 {
		return nil
	}

	var chunks []Chunk
	current := blocks[0]
	for _, b := range blocks[1:] {
		merged := b.end - current.start + 1
		if merged <= maxLines {
			current.end = b.end
			continue
		}
		chunks = append(chunks, buildChunk(lines, current))
		current = b
	}
	chunks = append(chunks, buildChunk(lines, current))

	return chunks
}

type block struct {
	start, end int // 1-based, inclusive
}

// splitBlocks finds maximal runs of non-blank lines.
func splitBlocks(lines []string) []block {
	var blocks []block
	start := -1
	for i, line := range lines {
		blank := strings.TrimSpace(line) == ""
		switch {
		case !blank && start < 0:
			start = i
		case blank && start >= 0:
			blocks = append(blocks, block{start: start + 1, end: i})
			start = -1
		}
	}
	if start >= 0 {
		blocks = append(blocks, block{start: start + 1, end: len(lines)})
	}
	return blocks
}

func buildChunk(lines []string, b block) Chunk {
	content := strings.Join(lines[b.start-1:b.end], "\n")
	return Chunk{
		Content:     content,
		StartLine:   b.start,
		EndLine:     b.end,
		ContentType: classifyChunk(content),
	}
}

// classifyChunk guesses what kind of code a chunk holds from the leading
// keywords of its lines. The labels feed chunk ids and prompts only, so a
// coarse heuristic covering the common C-family and scripting spellings is
// enough.
func classifyChunk(content string) string {
	for _, line := range strings.Split(content, "\n") {
		trimmed := strings.TrimSpace(line)
		switch {
		case hasAnyPrefix(trimmed, "func ", "def ", "function ", "fn ", "public ", "private ", "protected ", "static "):
			return ChunkFunction
		case hasAnyPrefix(trimmed, "type ", "class ", "struct ", "interface ", "enum ", "trait "):
			return ChunkType
		}
	}
	return ChunkModuleLevel
}

func hasAnyPrefix(s string, prefixes ...string) bool {
	for _, p := range prefixes {
		if strings.HasPrefix(s, p) {
			return true
		}
	}
	return false
}

// DescribeChunk renders the short context line included in per-chunk
// prompts.
func DescribeChunk(c Chunk) string {
	n := c.EndLine - c.StartLine + 1
	label := strings.ReplaceAll(c.ContentType, "_", " ")
	if label != "" {
		label = strings.ToUpper(label[:1]) + label[1:]
	}
	return fmt.Sprintf("%s with %d lines (lines %d-%d)", label, n, c.StartLine, c.EndLine)
}
