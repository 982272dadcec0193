package cmd

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/chatlings/internal/database"
	"github.com/chatlings/internal/jobqueue"
)

// DBCommand manages the database schema
func DBCommand() *cli.Command {
	return &cli.Command{
		Name:  "db",
		Usage: "Manage the database",
		Subcommands: []*cli.Command{
			{
				Name:   "init",
				Usage:  "Apply the Chatlings schema and the job queue migrations",
				Action: runDBInit,
			},
			{
				Name:  "schema",
				Usage: "Print the Chatlings schema",
				Action: func(c *cli.Context) error {
					fmt.Println(database.Schema())
					return nil
				},
			},
		},
	}
}

func runDBInit(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	if cfg.Database.URL == "" {
		return fmt.Errorf("database url is not configured")
	}

	ctx := context.Background()
	db, err := database.Open(cfg.Database.URL)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := database.ApplySchema(ctx, db); err != nil {
		return err
	}
	fmt.Println("✓ Chatlings schema applied")

	if err := jobqueue.Migrate(ctx, cfg.Database.URL); err != nil {
		return err
	}
	fmt.Println("✓ Job queue migrations applied")
	return nil
}
