package api

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog/log"

	"github.com/summit-agent/summit/internal/httperr"
	"github.com/summit-agent/summit/pkg/models"
)

// authGitHub validates a personal access token and returns the identity
// plus the repository list, so the dashboard paints its sidebar in one
// round trip.
func (s *Server) authGitHub(c echo.Context) error {
	var req models.AuthRequest
	if err := c.Bind(&req); err != nil {
		return respondError(c, httperr.Validation("invalid request body"))
	}

	token := strings.TrimSpace(req.GitHubToken)
	if token == "" {
		return respondError(c, httperr.Validation("github token not provided"))
	}

	ctx := c.Request().Context()

	user, err := s.github.GetUser(ctx, token)
	if err != nil {
		return respondError(c, err)
	}

	repos, err := s.github.ListRepositories(ctx, token)
	if err != nil {
		return respondError(c, err)
	}

	log.Debug().Str("login", user.Login).Int("repositories", len(repos)).Msg("GitHub token validated")

	return c.JSON(http.StatusOK, models.AuthResponse{User: user, Repositories: repos})
}
