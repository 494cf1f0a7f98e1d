// Package api exposes the dashboard's HTTP surface: GitHub proxy routes,
// chat, conversation history, and repository analysis. Handlers stay thin;
// they parse, delegate, and translate service errors into status codes.
package api

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog/log"

	"github.com/summit-agent/summit/internal/analysis"
	"github.com/summit-agent/summit/internal/chat"
	"github.com/summit-agent/summit/internal/conversation"
	"github.com/summit-agent/summit/internal/providers/github"
)

// Options carries everything a Server needs. All dependencies are
// injected so tests can stand up an isolated server per case.
type Options struct {
	Port           int
	AllowedOrigins []string
	Store          conversation.Store
	Orchestrator   *chat.Orchestrator
	Delegator      *analysis.Delegator
	GitHub         *github.Client
}

// Server is the API server.
type Server struct {
	echo         *echo.Echo
	port         int
	store        conversation.Store
	orchestrator *chat.Orchestrator
	delegator    *analysis.Delegator
	github       *github.Client
}

// NewServer builds the server and registers all routes.
func NewServer(opts Options) *Server {
	e := echo.New()
	e.HideBanner = true

	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	if len(opts.AllowedOrigins) > 0 {
		e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
			AllowOrigins: opts.AllowedOrigins,
		}))
	} else {
		e.Use(middleware.CORS())
	}

	server := &Server{
		echo:         e,
		port:         opts.Port,
		store:        opts.Store,
		orchestrator: opts.Orchestrator,
		delegator:    opts.Delegator,
		github:       opts.GitHub,
	}

	server.setupRoutes()

	return server
}

func (s *Server) setupRoutes() {
	api := s.echo.Group("/api")

	api.GET("/health", s.health)

	api.POST("/auth/github", s.authGitHub)

	api.GET("/repositories", s.listRepositories)
	api.GET("/repositories/:repo/branches", s.listBranches)
	api.GET("/repositories/:repo/contents", s.listContents)
	api.GET("/repositories/:repo/file", s.getFile)

	api.POST("/chat", s.postChat)
	api.GET("/chat/history/:repo", s.chatHistory)
	api.GET("/chat/:conversation_id", s.getConversation)

	api.POST("/analyze", s.analyze)
}

// Handler exposes the underlying handler for httptest servers.
func (s *Server) Handler() http.Handler {
	return s.echo
}

// Start runs the server until an interrupt arrives, then shuts down
// gracefully.
func (s *Server) Start() error {
	go func() {
		if err := s.echo.Start(fmt.Sprintf(":%d", s.port)); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Shutting down the server")
		}
	}()

	log.Info().Int("port", s.port).Msg("Summit API server started")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	return s.echo.Shutdown(ctx)
}

func (s *Server) health(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{
		"status": "healthy",
	})
}
