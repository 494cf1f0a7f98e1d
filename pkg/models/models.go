package models

// Wire-level types shared between the HTTP surface and the service layer.

// Repository describes a GitHub repository as shown in the dashboard
// sidebar. Fetched on demand, never persisted.
type Repository struct {
	Name          string   `json:"name"`
	FullName      string   `json:"full_name"`
	Description   string   `json:"description,omitempty"`
	DefaultBranch string   `json:"default_branch"`
	Branches      []string `json:"branches"`
	LastActive    string   `json:"last_active,omitempty"`
}

// ContentEntry is one row of a repository directory listing.
type ContentEntry struct {
	Name string `json:"name"`
	Path string `json:"path"`
	Type string `json:"type"` // "file" or "dir"
}

// FileContent holds a decoded repository file.
type FileContent struct {
	Content  string `json:"content"`
	Encoding string `json:"encoding"`
}

// User is the minimal GitHub identity returned for auth confirmation.
type User struct {
	Login     string `json:"login"`
	Name      string `json:"name,omitempty"`
	AvatarURL string `json:"avatar_url,omitempty"`
}

// ChatMessage is the advisory message shape clients may send alongside a
// chat request. The store keeps its own authoritative history; these are
// prompt context only.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatRequest is the body of POST /api/chat.
type ChatRequest struct {
	Question       string        `json:"question"`
	Repository     string        `json:"repository"`
	Messages       []ChatMessage `json:"messages"`
	ConversationID string        `json:"conversation_id,omitempty"`
}

// ChatResponse is the reply to POST /api/chat.
type ChatResponse struct {
	Response       string `json:"response"`
	ConversationID string `json:"conversation_id"`
}

// AuthRequest is the body of POST /api/auth/github.
type AuthRequest struct {
	GitHubToken string `json:"github_token"`
}

// AuthResponse confirms the token and seeds the sidebar in one round trip.
type AuthResponse struct {
	User         *User        `json:"user"`
	Repositories []Repository `json:"repositories"`
}

// AnalyzeRequest is the body of POST /api/analyze.
type AnalyzeRequest struct {
	Repository string `json:"repository"`
}

// ChunkAnalysis is the agent's verdict on one code chunk.
type ChunkAnalysis struct {
	ContentType  string  `json:"content_type"` // function | type | module_level
	Context      string  `json:"context"`
	QualityScore float64 `json:"quality_score"`
	Insights     string  `json:"insights"`
	Suggestions  string  `json:"suggestions"`
}

// FileAnalysis aggregates chunk verdicts plus file-level commentary.
type FileAnalysis struct {
	LintScore     float64                  `json:"lint_score"`
	Chunks        map[string]ChunkAnalysis `json:"chunks"`
	RecentChanges string                   `json:"recent_changes"`
	Insights      string                   `json:"insights"`
	Suggestions   string                   `json:"suggestions"`
	RepoContext   string                   `json:"repo_context"`
}

// CodeQualityResponse is the analytics panel payload.
type CodeQualityResponse struct {
	OverallScore float64                 `json:"overall_score"`
	FileAnalyses map[string]FileAnalysis `json:"file_analyses"`
	Summary      string                  `json:"summary"`
}

// Typed response envelopes. Historical clients accepted both a bare array
// and a wrapped object for repositories; the wrapped shape is the single
// canonical one here.

type RepositoriesResponse struct {
	Repositories []Repository `json:"repositories"`
}

type BranchesResponse struct {
	Branches []string `json:"branches"`
}

type ContentsResponse struct {
	Contents []ContentEntry `json:"contents"`
}

// ErrorResponse is the uniform error payload.
type ErrorResponse struct {
	Error string `json:"error"`
}
