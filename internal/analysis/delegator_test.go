package analysis

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/summit-agent/summit/internal/httperr"
	"github.com/summit-agent/summit/internal/providers/github"
)

// scriptedAgent routes prompts to canned responses by matching on the
// prompt's distinctive phrases.
type scriptedAgent struct {
	chunkResponse string
	fileResponse  string
	trendResponse string
	chunkErr      error
	fileErr       error
}

func (s *scriptedAgent) Ask(ctx context.Context, prompt string) (string, error) {
	switch {
	case strings.Contains(prompt, `"quality_score"`):
		if s.chunkErr != nil {
			return "", s.chunkErr
		}
		return s.chunkResponse, nil
	case strings.Contains(prompt, `"recent_changes"`):
		if s.fileErr != nil {
			return "", s.fileErr
		}
		return s.fileResponse, nil
	case strings.Contains(prompt, "Key trends"):
		return s.trendResponse, nil
	}
	return "", fmt.Errorf("unexpected prompt: %s", prompt)
}

func defaultScript() *scriptedAgent {
	return &scriptedAgent{
		chunkResponse: `{"quality_score": 8, "insights": "Clear structure.", "suggestions": "Add tests."}`,
		fileResponse:  `{"recent_changes": "Refactored handlers.", "insights": "Cohesive file.", "suggestions": "Split helpers.", "repo_context": "Entry point."}`,
		trendResponse: "Quality is trending upward.",
	}
}

type fakeRepo struct {
	entries map[string][]map[string]string // dir path -> contents listing
	files   map[string]string              // file path -> source
}

func newFakeGitHub(t *testing.T, repo fakeRepo) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()

	mux.HandleFunc("/user/repos", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode([]map[string]string{
			{"name": "demo", "full_name": "owner/demo", "default_branch": "main", "updated_at": "2026-08-01T00:00:00Z"},
		})
	})
	mux.HandleFunc("/repos/owner/demo/branches", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode([]map[string]string{{"name": "main"}})
	})
	mux.HandleFunc("/repos/owner/demo/contents/", func(w http.ResponseWriter, r *http.Request) {
		p := strings.TrimPrefix(r.URL.Path, "/repos/owner/demo/contents/")
		if src, ok := repo.files[p]; ok {
			json.NewEncoder(w).Encode(map[string]string{
				"type":     "file",
				"encoding": "base64",
				"content":  base64.StdEncoding.EncodeToString([]byte(src)),
			})
			return
		}
		if entries, ok := repo.entries[p]; ok {
			json.NewEncoder(w).Encode(entries)
			return
		}
		w.WriteHeader(http.StatusNotFound)
		json.NewEncoder(w).Encode(map[string]string{"message": "Not Found"})
	})
	mux.HandleFunc("/repos/owner/demo/contents", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(repo.entries[""])
	})

	return httptest.NewServer(mux)
}

func newTestDelegator(srvURL string, ag *scriptedAgent, opts Options) *Delegator {
	return NewDelegator(github.NewClient(srvURL, 1000), ag, opts)
}

func TestAnalyzeHappyPath(t *testing.T) {
	srv := newFakeGitHub(t, fakeRepo{
		entries: map[string][]map[string]string{
			"": {
				{"name": "main.go", "path": "main.go", "type": "file"},
				{"name": "README.md", "path": "README.md", "type": "file"},
			},
		},
		files: map[string]string{
			"main.go": "package main\n\nfunc main() {\n\tprintln(\"hi\")\n}",
		},
	})
	defer srv.Close()

	d := newTestDelegator(srv.URL, defaultScript(), DefaultOptions())

	resp, err := d.Analyze(context.Background(), "tok", "demo")
	require.NoError(t, err)

	assert.InDelta(t, 8.0, resp.OverallScore, 0.001)
	require.Contains(t, resp.FileAnalyses, "main.go")

	fa := resp.FileAnalyses["main.go"]
	assert.InDelta(t, 8.0, fa.LintScore, 0.001)
	assert.Equal(t, "Refactored handlers.", fa.RecentChanges)
	assert.Equal(t, "Entry point.", fa.RepoContext)
	require.NotEmpty(t, fa.Chunks)
	for id, ca := range fa.Chunks {
		assert.Contains(t, id, ca.ContentType)
		assert.InDelta(t, 8.0, ca.QualityScore, 0.001)
		assert.Equal(t, "Clear structure.", ca.Insights)
	}

	assert.Contains(t, resp.Summary, "Analysis of 1 recently modified source files")
	assert.Contains(t, resp.Summary, "main.go:")
	assert.Contains(t, resp.Summary, "Quality is trending upward.")
}

func TestAnalyzeRepairsFencedVerdicts(t *testing.T) {
	srv := newFakeGitHub(t, fakeRepo{
		entries: map[string][]map[string]string{
			"": {{"name": "app.py", "path": "app.py", "type": "file"}},
		},
		files: map[string]string{"app.py": "def run():\n    pass"},
	})
	defer srv.Close()

	script := defaultScript()
	script.chunkResponse = "```json\n{\"quality_score\": 7, \"insights\": \"Fine.\", \"suggestions\": \"None.\",}\n```"
	d := newTestDelegator(srv.URL, script, DefaultOptions())

	resp, err := d.Analyze(context.Background(), "tok", "demo")
	require.NoError(t, err)
	assert.InDelta(t, 7.0, resp.OverallScore, 0.001)
}

func TestAnalyzeClampsScores(t *testing.T) {
	srv := newFakeGitHub(t, fakeRepo{
		entries: map[string][]map[string]string{
			"": {{"name": "a.go", "path": "a.go", "type": "file"}},
		},
		files: map[string]string{"a.go": "package a"},
	})
	defer srv.Close()

	script := defaultScript()
	script.chunkResponse = `{"quality_score": 42, "insights": "x", "suggestions": "y"}`
	d := newTestDelegator(srv.URL, script, DefaultOptions())

	resp, err := d.Analyze(context.Background(), "tok", "demo")
	require.NoError(t, err)
	assert.InDelta(t, 10.0, resp.OverallScore, 0.001)
}

func TestAnalyzeChunkFailureUsesNeutralScore(t *testing.T) {
	srv := newFakeGitHub(t, fakeRepo{
		entries: map[string][]map[string]string{
			"": {{"name": "a.go", "path": "a.go", "type": "file"}},
		},
		files: map[string]string{"a.go": "package a"},
	})
	defer srv.Close()

	script := defaultScript()
	script.chunkErr = fmt.Errorf("model overloaded")
	d := newTestDelegator(srv.URL, script, DefaultOptions())

	resp, err := d.Analyze(context.Background(), "tok", "demo")
	require.NoError(t, err)
	assert.InDelta(t, 5.0, resp.OverallScore, 0.001)

	fa := resp.FileAnalyses["a.go"]
	for _, ca := range fa.Chunks {
		assert.Contains(t, ca.Insights, "Analysis failed")
	}
}

func TestAnalyzeAllFilesFailing(t *testing.T) {
	srv := newFakeGitHub(t, fakeRepo{
		entries: map[string][]map[string]string{
			"": {{"name": "a.go", "path": "a.go", "type": "file"}},
		},
		files: map[string]string{"a.go": "package a"},
	})
	defer srv.Close()

	// The file-level summary is required; failing it drops the file, and
	// with a single file the whole run fails.
	script := defaultScript()
	script.fileErr = fmt.Errorf("model overloaded")
	d := newTestDelegator(srv.URL, script, DefaultOptions())

	_, err := d.Analyze(context.Background(), "tok", "demo")
	require.Error(t, err)
	assert.True(t, httperr.IsAnalysis(err))
}

func TestAnalyzeNoSourceFiles(t *testing.T) {
	srv := newFakeGitHub(t, fakeRepo{
		entries: map[string][]map[string]string{
			"": {
				{"name": "README.md", "path": "README.md", "type": "file"},
				{"name": "LICENSE", "path": "LICENSE", "type": "file"},
			},
		},
	})
	defer srv.Close()

	d := newTestDelegator(srv.URL, defaultScript(), DefaultOptions())

	_, err := d.Analyze(context.Background(), "tok", "demo")
	require.Error(t, err)
	assert.True(t, httperr.IsAnalysis(err))
}

func TestAnalyzeUnknownRepository(t *testing.T) {
	srv := newFakeGitHub(t, fakeRepo{})
	defer srv.Close()

	d := newTestDelegator(srv.URL, defaultScript(), DefaultOptions())

	_, err := d.Analyze(context.Background(), "tok", "nope")
	require.Error(t, err)
	assert.True(t, httperr.IsNotFound(err))
}

func TestAnalyzeRespectsMaxFiles(t *testing.T) {
	srv := newFakeGitHub(t, fakeRepo{
		entries: map[string][]map[string]string{
			"": {
				{"name": "a.go", "path": "a.go", "type": "file"},
				{"name": "b.go", "path": "b.go", "type": "file"},
				{"name": "c.go", "path": "c.go", "type": "file"},
			},
		},
		files: map[string]string{
			"a.go": "package a",
			"b.go": "package b",
			"c.go": "package c",
		},
	})
	defer srv.Close()

	opts := DefaultOptions()
	opts.MaxFiles = 2
	d := newTestDelegator(srv.URL, defaultScript(), opts)

	resp, err := d.Analyze(context.Background(), "tok", "demo")
	require.NoError(t, err)
	assert.Len(t, resp.FileAnalyses, 2)
	assert.Contains(t, resp.FileAnalyses, "a.go")
	assert.Contains(t, resp.FileAnalyses, "b.go")
}

func TestAnalyzeDescendsIntoDirectories(t *testing.T) {
	srv := newFakeGitHub(t, fakeRepo{
		entries: map[string][]map[string]string{
			"": {
				{"name": "docs", "path": "docs", "type": "dir"},
				{"name": "src", "path": "src", "type": "dir"},
			},
			"docs": {{"name": "guide.md", "path": "docs/guide.md", "type": "file"}},
			"src":  {{"name": "app.go", "path": "src/app.go", "type": "file"}},
		},
		files: map[string]string{"src/app.go": "package app"},
	})
	defer srv.Close()

	d := newTestDelegator(srv.URL, defaultScript(), DefaultOptions())

	resp, err := d.Analyze(context.Background(), "tok", "demo")
	require.NoError(t, err)
	assert.Contains(t, resp.FileAnalyses, "src/app.go")
}
