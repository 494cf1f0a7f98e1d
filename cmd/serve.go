package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/summit-agent/summit/internal/agent"
	"github.com/summit-agent/summit/internal/analysis"
	"github.com/summit-agent/summit/internal/api"
	"github.com/summit-agent/summit/internal/chat"
	"github.com/summit-agent/summit/internal/config"
	"github.com/summit-agent/summit/internal/conversation"
	"github.com/summit-agent/summit/internal/logging"
	"github.com/summit-agent/summit/internal/providers/github"
)

// ServeCommand returns the CLI command for starting the API server
func ServeCommand() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Start the Summit API server",
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:    "port",
				Aliases: []string{"p"},
				Usage:   "Port for the API server",
			},
		},
		Action: runServe,
	}
}

func runServe(c *cli.Context) error {
	cfg, err := config.LoadConfig(c.String("config"))
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if err := config.Validate(cfg); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	logging.Setup(cfg.Log.Level, cfg.Log.Pretty)

	if c.IsSet("port") {
		cfg.Server.Port = c.Int("port")
	}

	ctx := context.Background()

	store, cleanup, err := buildStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer cleanup()

	connector, err := agent.NewConnector(ctx, agent.Options{
		Provider:    agent.Provider(cfg.AI.Provider),
		APIKey:      cfg.AI.APIKey,
		BaseURL:     cfg.AI.BaseURL,
		Model:       cfg.AI.Model,
		Temperature: cfg.AI.Temperature,
		MaxTokens:   cfg.AI.MaxTokens,
	})
	if err != nil {
		return fmt.Errorf("failed to create AI connector: %w", err)
	}

	gh := github.NewClient(cfg.GitHub.BaseURL, cfg.GitHub.RequestsPerSecond)

	orchestrator := chat.NewOrchestrator(store, connector,
		time.Duration(cfg.AI.TimeoutSecs)*time.Second)
	delegator := analysis.NewDelegator(gh, connector, analysis.Options{
		MaxFiles:   cfg.Analysis.MaxFiles,
		ChunkLines: cfg.Analysis.ChunkLines,
		MaxDepth:   cfg.Analysis.MaxDepth,
	})

	server := api.NewServer(api.Options{
		Port:           cfg.Server.Port,
		AllowedOrigins: cfg.Server.AllowedOrigins,
		Store:          store,
		Orchestrator:   orchestrator,
		Delegator:      delegator,
		GitHub:         gh,
	})

	fmt.Printf("Starting Summit API server on port %d...\n", cfg.Server.Port)
	return server.Start()
}

func buildStore(ctx context.Context, cfg *config.Config) (conversation.Store, func(), error) {
	switch cfg.Store.Driver {
	case "postgres":
		store, err := conversation.NewPostgresStore(ctx, cfg.Store.DatabaseURL)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to connect to postgres: %w", err)
		}
		if err := store.EnsureSchema(ctx); err != nil {
			store.Close()
			return nil, nil, fmt.Errorf("failed to prepare schema: %w", err)
		}
		return store, store.Close, nil
	default:
		store, err := conversation.NewMemoryStore(cfg.Store.Capacity)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create conversation store: %w", err)
		}
		return store, func() {}, nil
	}
}
