package api

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/summit-agent/summit/internal/chat"
	"github.com/summit-agent/summit/internal/conversation"
	"github.com/summit-agent/summit/internal/httperr"
	"github.com/summit-agent/summit/pkg/models"
)

func (s *Server) postChat(c echo.Context) error {
	var req models.ChatRequest
	if err := c.Bind(&req); err != nil {
		return respondError(c, httperr.Validation("invalid request body"))
	}

	if strings.TrimSpace(req.Repository) == "" {
		return respondError(c, httperr.Validation("repository must not be empty"))
	}

	result, err := s.orchestrator.Chat(c.Request().Context(), chat.Request{
		Question:       req.Question,
		Repository:     req.Repository,
		Prior:          req.Messages,
		ConversationID: req.ConversationID,
	})
	if err != nil {
		return respondError(c, err)
	}

	return c.JSON(http.StatusOK, models.ChatResponse{
		Response:       result.Answer,
		ConversationID: result.ConversationID,
	})
}

// chatHistory lists conversation summaries for one repository, oldest
// first.
func (s *Server) chatHistory(c echo.Context) error {
	convs, err := s.store.ListByRepository(c.Request().Context(), c.Param("repo"))
	if err != nil {
		return respondError(c, err)
	}

	summaries := make([]conversation.Summary, 0, len(convs))
	for _, conv := range convs {
		summaries = append(summaries, conversation.Summarize(conv))
	}

	return c.JSON(http.StatusOK, map[string][]conversation.Summary{
		"conversations": summaries,
	})
}

func (s *Server) getConversation(c echo.Context) error {
	conv, err := s.store.Get(c.Request().Context(), c.Param("conversation_id"))
	if err != nil {
		return respondError(c, err)
	}

	return c.JSON(http.StatusOK, conv)
}
