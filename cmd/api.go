package cmd

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v2"

	"github.com/chatlings/internal/api"
	"github.com/chatlings/internal/jobqueue"
)

// ServeCommand returns the CLI command for starting the API server
func ServeCommand() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Start the Chatlings API server",
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:    "port",
				Aliases: []string{"p"},
				Usage:   "Port for the API server (overrides server.port)",
			},
			&cli.BoolFlag{
				Name:  "worker",
				Usage: "Also run the background job workers in this process",
			},
		},
		Action: func(c *cli.Context) error {
			cfg, err := loadConfig(c)
			if err != nil {
				return err
			}
			port := cfg.Server.Port
			if c.IsSet("port") {
				port = c.Int("port")
			}

			ctx := context.Background()
			a, err := newApp(ctx, cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			deps := api.Deps{
				Chatrooms:       a.chatrooms,
				Personalization: a.personalization,
				Conversations:   a.conversations,
			}

			batch, err := a.batchGenerator(ctx)
			if err != nil {
				log.Warn().Err(err).Msg("Text provider unavailable, conversation batches disabled")
			} else {
				jq, err := jobqueue.NewJobQueue(ctx, cfg.Database.URL, cfg.Queue, a.tasks(batch))
				if err != nil {
					return fmt.Errorf("failed to create job queue: %w", err)
				}
				deps.Batches = jq
				if c.Bool("worker") {
					if err := jq.Start(ctx); err != nil {
						return fmt.Errorf("failed to start job queue: %w", err)
					}
					defer jq.Stop(context.Background())
				}
			}

			fmt.Printf("Starting Chatlings API server on port %d...\n", port)
			server := api.NewServer(port, deps, cfg.Server.CORSOrigins)
			return server.Start()
		},
	}
}
