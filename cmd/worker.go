package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v2"

	"github.com/chatlings/internal/jobqueue"
)

// WorkerCommand runs the River workers and periodic jobs until interrupted
func WorkerCommand() *cli.Command {
	return &cli.Command{
		Name:  "worker",
		Usage: "Run background jobs: schedules, ticker, conversation batches, cleanup",
		Action: func(c *cli.Context) error {
			cfg, err := loadConfig(c)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			a, err := newApp(ctx, cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			batch, err := a.batchGenerator(ctx)
			if err != nil {
				return err
			}
			jq, err := jobqueue.NewJobQueue(ctx, cfg.Database.URL, cfg.Queue, a.tasks(batch))
			if err != nil {
				return fmt.Errorf("failed to create job queue: %w", err)
			}
			if err := jq.Start(ctx); err != nil {
				return fmt.Errorf("failed to start job queue: %w", err)
			}
			log.Info().Int("max_workers", cfg.Queue.MaxWorkers).Msg("Worker started")

			<-ctx.Done()

			shutdown, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()
			log.Info().Msg("Worker stopping")
			return jq.Stop(shutdown)
		},
	}
}
