package api

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog/log"

	"github.com/summit-agent/summit/internal/httperr"
	"github.com/summit-agent/summit/pkg/models"
)

// analyze delegates a repository quality assessment to the agent. Slow by
// nature; the request context carries the client's patience.
func (s *Server) analyze(c echo.Context) error {
	token, err := bearerToken(c)
	if err != nil {
		return respondError(c, err)
	}

	var req models.AnalyzeRequest
	if err := c.Bind(&req); err != nil {
		return respondError(c, httperr.Validation("invalid request body"))
	}

	repository := strings.TrimSpace(req.Repository)
	if repository == "" {
		return respondError(c, httperr.Validation("repository must not be empty"))
	}

	log.Info().Str("repository", repository).Msg("Starting repository analysis")

	resp, err := s.delegator.Analyze(c.Request().Context(), token, repository)
	if err != nil {
		return respondError(c, err)
	}

	log.Info().
		Str("repository", repository).
		Float64("overall_score", resp.OverallScore).
		Int("files", len(resp.FileAnalyses)).
		Msg("Repository analysis completed")

	return c.JSON(http.StatusOK, resp)
}
