package api

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/summit-agent/summit/internal/httperr"
	"github.com/summit-agent/summit/pkg/models"
)

func (s *Server) listRepositories(c echo.Context) error {
	token, err := bearerToken(c)
	if err != nil {
		return respondError(c, err)
	}

	repos, err := s.github.ListRepositories(c.Request().Context(), token)
	if err != nil {
		return respondError(c, err)
	}

	return c.JSON(http.StatusOK, models.RepositoriesResponse{Repositories: repos})
}

func (s *Server) listBranches(c echo.Context) error {
	token, err := bearerToken(c)
	if err != nil {
		return respondError(c, err)
	}

	ctx := c.Request().Context()
	repo, err := s.github.ResolveRepository(ctx, token, c.Param("repo"))
	if err != nil {
		return respondError(c, err)
	}

	branches, err := s.github.ListBranches(ctx, token, repo.FullName)
	if err != nil {
		return respondError(c, err)
	}

	return c.JSON(http.StatusOK, models.BranchesResponse{Branches: branches})
}

func (s *Server) listContents(c echo.Context) error {
	token, err := bearerToken(c)
	if err != nil {
		return respondError(c, err)
	}

	ctx := c.Request().Context()
	repo, err := s.github.ResolveRepository(ctx, token, c.Param("repo"))
	if err != nil {
		return respondError(c, err)
	}

	entries, err := s.github.ListContents(ctx, token, repo.FullName,
		c.QueryParam("path"), c.QueryParam("branch"))
	if err != nil {
		return respondError(c, err)
	}

	return c.JSON(http.StatusOK, models.ContentsResponse{Contents: entries})
}

func (s *Server) getFile(c echo.Context) error {
	token, err := bearerToken(c)
	if err != nil {
		return respondError(c, err)
	}

	path := c.QueryParam("path")
	if path == "" {
		return respondError(c, httperr.Validation("path query parameter is required"))
	}

	ctx := c.Request().Context()
	repo, err := s.github.ResolveRepository(ctx, token, c.Param("repo"))
	if err != nil {
		return respondError(c, err)
	}

	file, err := s.github.GetFile(ctx, token, repo.FullName, path, c.QueryParam("branch"))
	if err != nil {
		return respondError(c, err)
	}

	return c.JSON(http.StatusOK, file)
}
