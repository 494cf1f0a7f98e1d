package api

import (
	"errors"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog/log"

	"github.com/summit-agent/summit/internal/httperr"
	"github.com/summit-agent/summit/pkg/models"
)

// bearerToken extracts the caller's GitHub token. The canonical transport
// is "Authorization: Bearer <token>"; a bare token in the header is
// accepted for older dashboard builds.
func bearerToken(c echo.Context) (string, error) {
	header := strings.TrimSpace(c.Request().Header.Get("Authorization"))
	if header == "" {
		return "", httperr.Validation("github token not provided")
	}

	if token, ok := strings.CutPrefix(header, "Bearer "); ok {
		token = strings.TrimSpace(token)
		if token == "" {
			return "", httperr.Validation("github token not provided")
		}
		return token, nil
	}

	return header, nil
}

// respondError maps service errors onto the uniform error payload. The
// cause stays in the log; clients get the sanitized message.
func respondError(c echo.Context, err error) error {
	status := http.StatusInternalServerError
	message := "internal server error"

	var herr *httperr.Error
	if errors.As(err, &herr) {
		status = herr.StatusCode()
		message = herr.Message
	}

	if status >= http.StatusInternalServerError {
		log.Error().Err(err).Str("path", c.Path()).Msg("Request failed")
	} else {
		log.Debug().Err(err).Str("path", c.Path()).Int("status", status).Msg("Request rejected")
	}

	return c.JSON(status, models.ErrorResponse{Error: message})
}
