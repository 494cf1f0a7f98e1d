// Package github translates internal requests into authenticated GitHub
// REST calls and normalizes responses. The client is stateless per call:
// the token always arrives as an argument, never as stored session state.
package github

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"github.com/summit-agent/summit/internal/httperr"
	"github.com/summit-agent/summit/pkg/models"
)

const defaultBaseURL = "https://api.github.com"

// Client issues authenticated requests against the GitHub REST API.
type Client struct {
	baseURL string
	http    *http.Client
	limiter *rate.Limiter
}

// NewClient creates a client against baseURL (empty means api.github.com)
// pacing requests at requestsPerSecond to stay clear of secondary rate
// limits when branch fan-out multiplies calls.
func NewClient(baseURL string, requestsPerSecond float64) *Client {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	if requestsPerSecond <= 0 {
		requestsPerSecond = 8
	}

	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 30 * time.Second},
		limiter: rate.NewLimiter(rate.Limit(requestsPerSecond), int(requestsPerSecond)+1),
	}
}

// get performs one authenticated GET and decodes the JSON body into out.
func (c *Client) get(ctx context.Context, token, path string, query url.Values, out interface{}) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limiter wait: %w", err)
	}

	endpoint := c.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Authorization", "token "+token)
	req.Header.Set("Accept", "application/vnd.github.v3+json")

	resp, err := c.http.Do(req)
	if err != nil {
		return httperr.Upstream("github unreachable", err)
	}
	defer resp.Body.Close()

	if err := classifyStatus(resp, path); err != nil {
		return err
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return httperr.Upstream("github returned a malformed response", err)
	}
	return nil
}

// classifyStatus maps upstream status codes onto the error taxonomy.
func classifyStatus(resp *http.Response, path string) error {
	switch {
	case resp.StatusCode == http.StatusOK:
		return nil
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return httperr.Auth("invalid GitHub token", fmt.Errorf("github responded %s for %s", resp.Status, path))
	case resp.StatusCode == http.StatusNotFound:
		return httperr.NotFound(fmt.Sprintf("github resource %s not found", path))
	default:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		log.Warn().
			Int("status", resp.StatusCode).
			Str("path", path).
			Str("body", string(body)).
			Msg("Unexpected GitHub response")
		return httperr.Upstream("github request failed", fmt.Errorf("github responded %s for %s", resp.Status, path))
	}
}

// GetUser returns the token owner's identity; used to confirm a token is
// valid during authentication.
func (c *Client) GetUser(ctx context.Context, token string) (*models.User, error) {
	var raw struct {
		Login     string `json:"login"`
		Name      string `json:"name"`
		AvatarURL string `json:"avatar_url"`
	}
	if err := c.get(ctx, token, "/user", nil, &raw); err != nil {
		return nil, err
	}

	return &models.User{Login: raw.Login, Name: raw.Name, AvatarURL: raw.AvatarURL}, nil
}

// ListRepositories returns the authenticated user's repositories, each
// with its branch names resolved.
func (c *Client) ListRepositories(ctx context.Context, token string) ([]models.Repository, error) {
	var raw []struct {
		Name          string `json:"name"`
		FullName      string `json:"full_name"`
		Description   string `json:"description"`
		DefaultBranch string `json:"default_branch"`
		UpdatedAt     string `json:"updated_at"`
	}

	query := url.Values{"sort": {"updated"}, "per_page": {"50"}}
	if err := c.get(ctx, token, "/user/repos", query, &raw); err != nil {
		return nil, err
	}

	repos := make([]models.Repository, 0, len(raw))
	for _, r := range raw {
		branches, err := c.ListBranches(ctx, token, r.FullName)
		if err != nil {
			// A repo with unreadable branches still belongs in the list.
			log.Warn().Err(err).Str("repository", r.FullName).Msg("Failed to list branches")
			branches = []string{}
		}

		defaultBranch := r.DefaultBranch
		if defaultBranch == "" {
			defaultBranch = "main"
		}

		repos = append(repos, models.Repository{
			Name:          r.Name,
			FullName:      r.FullName,
			Description:   r.Description,
			DefaultBranch: defaultBranch,
			Branches:      branches,
			LastActive:    r.UpdatedAt,
		})
	}

	return repos, nil
}

// ListBranches returns the branch names of a repository, in API order.
func (c *Client) ListBranches(ctx context.Context, token, fullName string) ([]string, error) {
	var raw []struct {
		Name string `json:"name"`
	}
	if err := c.get(ctx, token, "/repos/"+fullName+"/branches", nil, &raw); err != nil {
		return nil, err
	}

	branches := make([]string, 0, len(raw))
	for _, b := range raw {
		branches = append(branches, b.Name)
	}
	return branches, nil
}

// ListContents lists a directory of the repository. path may be empty for
// the root; ref may be empty for the default branch.
func (c *Client) ListContents(ctx context.Context, token, fullName, path, ref string) ([]models.ContentEntry, error) {
	query := url.Values{}
	if ref != "" {
		query.Set("ref", ref)
	}

	var raw []struct {
		Name string `json:"name"`
		Path string `json:"path"`
		Type string `json:"type"`
	}
	if err := c.get(ctx, token, contentsPath(fullName, path), query, &raw); err != nil {
		return nil, err
	}

	entries := make([]models.ContentEntry, 0, len(raw))
	for _, e := range raw {
		entries = append(entries, models.ContentEntry{Name: e.Name, Path: e.Path, Type: e.Type})
	}
	return entries, nil
}

// GetFile fetches one file and decodes GitHub's base64 payload.
func (c *Client) GetFile(ctx context.Context, token, fullName, path, ref string) (*models.FileContent, error) {
	query := url.Values{}
	if ref != "" {
		query.Set("ref", ref)
	}

	var raw struct {
		Type     string `json:"type"`
		Content  string `json:"content"`
		Encoding string `json:"encoding"`
	}
	if err := c.get(ctx, token, contentsPath(fullName, path), query, &raw); err != nil {
		return nil, err
	}

	if raw.Type != "file" {
		return nil, httperr.NotFound(fmt.Sprintf("%s is not a file", path))
	}

	if raw.Encoding != "base64" {
		return nil, httperr.Upstream("github returned an unexpected file encoding",
			fmt.Errorf("encoding %q for %s", raw.Encoding, path))
	}

	// GitHub wraps base64 content with newlines.
	decoded, err := base64.StdEncoding.DecodeString(strings.ReplaceAll(raw.Content, "\n", ""))
	if err != nil {
		return nil, httperr.Upstream("failed to decode file content", err)
	}

	return &models.FileContent{Content: string(decoded), Encoding: "utf-8"}, nil
}

// ResolveRepository maps a short repository name to the user's matching
// repository. The dashboard addresses repos by short name; GitHub wants
// owner/name.
func (c *Client) ResolveRepository(ctx context.Context, token, shortName string) (*models.Repository, error) {
	// Already fully qualified.
	if strings.Contains(shortName, "/") {
		repos, err := c.ListRepositories(ctx, token)
		if err != nil {
			return nil, err
		}
		for i := range repos {
			if repos[i].FullName == shortName {
				return &repos[i], nil
			}
		}
		return nil, httperr.NotFound(fmt.Sprintf("repository %s not found", shortName))
	}

	repos, err := c.ListRepositories(ctx, token)
	if err != nil {
		return nil, err
	}
	for i := range repos {
		if repos[i].Name == shortName {
			return &repos[i], nil
		}
	}
	return nil, httperr.NotFound(fmt.Sprintf("repository %s not found", shortName))
}

func contentsPath(fullName, path string) string {
	p := "/repos/" + fullName + "/contents"
	if path != "" {
		p += "/" + strings.TrimLeft(path, "/")
	}
	return p
}
