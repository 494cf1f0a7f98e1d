package analysis

import (
	"context"
	"fmt"
	"path"
	"sort"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/summit-agent/summit/internal/agent"
	"github.com/summit-agent/summit/internal/httperr"
	"github.com/summit-agent/summit/internal/llm"
	"github.com/summit-agent/summit/internal/providers/github"
	"github.com/summit-agent/summit/pkg/models"
)

// Options bounds how much of a repository one analysis run touches.
type Options struct {
	MaxFiles   int // source files analyzed per run
	ChunkLines int // max lines per chunk
	MaxDepth   int // directory recursion depth
}

// DefaultOptions returns the bounds used when the config leaves them
// unset.
func DefaultOptions() Options {
	return Options{MaxFiles: 5, ChunkLines: 120, MaxDepth: 3}
}

// Delegator runs code-quality analysis by fetching repository files and
// asking the agent for verdicts. It performs no scoring of its own; every
// score in the response comes from the agent, clamped and aggregated here.
type Delegator struct {
	github *github.Client
	agent  agent.Agent
	opts   Options
}

func NewDelegator(gh *github.Client, ag agent.Agent, opts Options) *Delegator {
	if opts.MaxFiles <= 0 {
		opts.MaxFiles = 5
	}
	if opts.ChunkLines <= 0 {
		opts.ChunkLines = 120
	}
	if opts.MaxDepth <= 0 {
		opts.MaxDepth = 3
	}
	return &Delegator{github: gh, agent: ag, opts: opts}
}

// chunkVerdict is the JSON shape the per-chunk prompt asks for. Agent
// output goes through llm.DecodeRepaired first since models wrap JSON in
// fences and leave trailing commas.
type chunkVerdict struct {
	QualityScore float64 `json:"quality_score"`
	Insights     string  `json:"insights"`
	Suggestions  string  `json:"suggestions"`
}

type fileVerdict struct {
	RecentChanges string `json:"recent_changes"`
	Insights      string `json:"insights"`
	Suggestions   string `json:"suggestions"`
	RepoContext   string `json:"repo_context"`
}

// Analyze assesses the code quality of a repository. Files that fail to
// fetch or analyze are dropped from the report and logged; the call only
// fails when no file produces a result.
func (d *Delegator) Analyze(ctx context.Context, token, repository string) (*models.CodeQualityResponse, error) {
	repo, err := d.github.ResolveRepository(ctx, token, repository)
	if err != nil {
		return nil, err
	}

	files, err := d.collectSourceFiles(ctx, token, repo.FullName)
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, httperr.Analysis(fmt.Sprintf("no analyzable source files found in %s", repo.FullName), nil)
	}

	fileAnalyses := make(map[string]models.FileAnalysis)
	for _, filePath := range files {
		fa, err := d.analyzeFile(ctx, token, repo.FullName, filePath)
		if err != nil {
			log.Warn().
				Err(err).
				Str("repository", repo.FullName).
				Str("path", filePath).
				Msg("Dropping file from analysis")
			continue
		}
		fileAnalyses[filePath] = *fa
	}
	if len(fileAnalyses) == 0 {
		return nil, httperr.Analysis(fmt.Sprintf("analysis failed for every file in %s", repo.FullName), nil)
	}

	var total float64
	for _, fa := range fileAnalyses {
		total += fa.LintScore
	}
	overall := total / float64(len(fileAnalyses))

	trend := d.repositoryTrend(ctx, repo.FullName, len(fileAnalyses))

	return &models.CodeQualityResponse{
		OverallScore: overall,
		FileAnalyses: fileAnalyses,
		Summary:      buildSummary(overall, fileAnalyses, trend),
	}, nil
}

// analyzeFile fetches one file, chunks it, and asks the agent for a
// verdict per chunk plus a file-level summary.
func (d *Delegator) analyzeFile(ctx context.Context, token, fullName, filePath string) (*models.FileAnalysis, error) {
	file, err := d.github.GetFile(ctx, token, fullName, filePath, "")
	if err != nil {
		return nil, fmt.Errorf("fetching %s: %w", filePath, err)
	}

	chunks := ChunkSource(file.Content, d.opts.ChunkLines)
	if len(chunks) == 0 {
		return nil, fmt.Errorf("file %s has no analyzable content", filePath)
	}

	chunkAnalyses := make(map[string]models.ChunkAnalysis, len(chunks))
	var scoreSum float64
	for _, chunk := range chunks {
		ca := d.analyzeChunk(ctx, fullName, filePath, chunk)
		chunkAnalyses[chunk.ID()] = ca
		scoreSum += ca.QualityScore
	}
	lintScore := scoreSum / float64(len(chunkAnalyses))

	fv, err := d.fileSummary(ctx, fullName, filePath, chunks)
	if err != nil {
		return nil, fmt.Errorf("summarizing %s: %w", filePath, err)
	}

	return &models.FileAnalysis{
		LintScore:     lintScore,
		Chunks:        chunkAnalyses,
		RecentChanges: fv.RecentChanges,
		Insights:      fv.Insights,
		Suggestions:   fv.Suggestions,
		RepoContext:   fv.RepoContext,
	}, nil
}

// analyzeChunk never fails the run: a chunk whose verdict cannot be
// obtained gets the neutral score with the error recorded as its insight.
func (d *Delegator) analyzeChunk(ctx context.Context, fullName, filePath string, chunk Chunk) models.ChunkAnalysis {
	chunkContext := DescribeChunk(chunk)
	analysis := models.ChunkAnalysis{
		ContentType:  chunk.ContentType,
		Context:      chunkContext,
		QualityScore: 5.0,
	}

	prompt := fmt.Sprintf(`Analyze this %s from %s in %s:

Context: %s

Code:
%s

Respond with a single JSON object, no prose, in exactly this shape:
{"quality_score": <number 0-10>, "insights": "<key insights, max 100 words>", "suggestions": "<specific improvements, max 100 words>"}`,
		chunk.ContentType, filePath, fullName, chunkContext, chunk.Content)

	raw, err := d.agent.Ask(ctx, prompt)
	if err != nil {
		log.Warn().
			Err(err).
			Str("path", filePath).
			Str("chunk", chunk.ID()).
			Msg("Chunk analysis failed, using neutral score")
		analysis.Insights = fmt.Sprintf("Analysis failed: %v", err)
		analysis.Suggestions = "Try analyzing again later."
		return analysis
	}

	var verdict chunkVerdict
	if _, err := llm.DecodeRepaired(raw, &verdict); err != nil {
		log.Warn().
			Err(err).
			Str("chunk", chunk.ID()).
			Msg("Could not decode chunk verdict, using neutral score")
		analysis.Insights = "No insights provided."
		analysis.Suggestions = "No suggestions provided."
		return analysis
	}

	analysis.QualityScore = clampScore(verdict.QualityScore)
	analysis.Insights = orDefault(verdict.Insights, "No insights provided.")
	analysis.Suggestions = orDefault(verdict.Suggestions, "No suggestions provided.")
	return analysis
}

func (d *Delegator) fileSummary(ctx context.Context, fullName, filePath string, chunks []Chunk) (*fileVerdict, error) {
	parts := make([]string, len(chunks))
	for i, c := range chunks {
		parts[i] = fmt.Sprintf("%s (lines %d-%d)", c.ContentType, c.StartLine, c.EndLine)
	}

	prompt := fmt.Sprintf(`Summarize the overall quality of %s in %s based on its components.

%d chunks analyzed: %s

Respond with a single JSON object, no prose, in exactly this shape:
{"recent_changes": "<recent changes and their impact>", "insights": "<overall code insights>", "suggestions": "<high-level improvements>", "repo_context": "<how this file fits in the repository>"}
Keep every field under 60 words.`,
		filePath, fullName, len(chunks), strings.Join(parts, ", "))

	raw, err := d.agent.Ask(ctx, prompt)
	if err != nil {
		return nil, fmt.Errorf("file summary call: %w", err)
	}

	var verdict fileVerdict
	if _, err := llm.DecodeRepaired(raw, &verdict); err != nil {
		return nil, fmt.Errorf("decoding file summary: %w", err)
	}

	verdict.RecentChanges = orDefault(verdict.RecentChanges, "No recent changes noted.")
	verdict.Insights = orDefault(verdict.Insights, "No insights provided.")
	verdict.Suggestions = orDefault(verdict.Suggestions, "No suggestions provided.")
	verdict.RepoContext = orDefault(verdict.RepoContext, "No context provided.")
	return &verdict, nil
}

// repositoryTrend asks for the closing repository-level paragraph. A
// failure here does not discard the per-file work already done.
func (d *Delegator) repositoryTrend(ctx context.Context, fullName string, fileCount int) string {
	prompt := fmt.Sprintf(`Summarize the recent development of %s, focusing on its %d most relevant source files.
Keep your response under 200 words and include:
1. Key trends in recent changes
2. Overall code quality direction
3. Main areas for improvement`, fullName, fileCount)

	trend, err := d.agent.Ask(ctx, prompt)
	if err != nil {
		log.Warn().Err(err).Str("repository", fullName).Msg("Repository trend call failed")
		return "No repository-level analysis available."
	}
	return strings.TrimSpace(trend)
}

// analyzableExtensions is the allowlist of file types worth sending to
// the agent.
var analyzableExtensions = map[string]bool{
	".go":    true,
	".py":    true,
	".js":    true,
	".jsx":   true,
	".ts":    true,
	".tsx":   true,
	".rb":    true,
	".java":  true,
	".rs":    true,
	".c":     true,
	".h":     true,
	".cpp":   true,
	".cs":    true,
	".kt":    true,
	".swift": true,
	".php":   true,
	".scala": true,
}

var skippedDirs = map[string]bool{
	"node_modules": true,
	"vendor":       true,
	"dist":         true,
	"build":        true,
	".git":         true,
	".github":      true,
}

// collectSourceFiles walks the repository tree breadth-first up to
// MaxDepth and returns the first MaxFiles source file paths in
// deterministic listing order.
func (d *Delegator) collectSourceFiles(ctx context.Context, token, fullName string) ([]string, error) {
	var files []string
	dirs := []string{""}

	for depth := 0; depth <= d.opts.MaxDepth && len(dirs) > 0 && len(files) < d.opts.MaxFiles; depth++ {
		var next []string
		for _, dir := range dirs {
			entries, err := d.github.ListContents(ctx, token, fullName, dir, "")
			if err != nil {
				if dir == "" {
					return nil, err
				}
				log.Warn().
					Err(err).
					Str("repository", fullName).
					Str("path", dir).
					Msg("Skipping unreadable directory")
				continue
			}
			sort.Slice(entries, func(i, j int) bool { return entries[i].Path < entries[j].Path })

			for _, e := range entries {
				switch e.Type {
				case "file":
					if analyzableExtensions[strings.ToLower(path.Ext(e.Name))] {
						files = append(files, e.Path)
						if len(files) >= d.opts.MaxFiles {
							return files, nil
						}
					}
				case "dir":
					if !skippedDirs[e.Name] {
						next = append(next, e.Path)
					}
				}
			}
		}
		dirs = next
	}

	return files, nil
}

func clampScore(s float64) float64 {
	if s < 0 {
		return 0
	}
	if s > 10 {
		return 10
	}
	return s
}

func orDefault(s, def string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return def
	}
	return s
}
