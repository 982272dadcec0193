package cmd

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/chatlings/internal/conversation"
	"github.com/chatlings/pkg/models"
)

// GenerateCommand runs conversation generation in the foreground
func GenerateCommand() *cli.Command {
	return &cli.Command{
		Name:  "generate",
		Usage: "Generate base conversations for pending content, or for one item",
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:    "limit",
				Aliases: []string{"n"},
				Usage:   "Maximum pending items to process (overrides batch.limit)",
			},
			&cli.StringFlag{
				Name:  "video-id",
				Usage: "Generate for a single content item instead of the pending list",
			},
			&cli.StringFlag{
				Name:  "title",
				Usage: "Title of the single content item",
			},
			&cli.StringFlag{
				Name:  "description",
				Usage: "Description of the single content item",
			},
			&cli.StringFlag{
				Name:  "category",
				Usage: "Category of the single content item",
			},
		},
		Action: runGenerate,
	}
}

func runGenerate(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	ctx := context.Background()
	a, err := newApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	batch, err := a.batchGenerator(ctx)
	if err != nil {
		return err
	}

	var summary *conversation.BatchSummary
	switch {
	case c.String("video-id") != "":
		if c.String("title") == "" {
			return fmt.Errorf("--title is required with --video-id")
		}
		summary, err = batch.Run(ctx, []models.ContentMetadata{{
			ExternalID:  c.String("video-id"),
			Title:       c.String("title"),
			Description: c.String("description"),
			Category:    c.String("category"),
		}})
	case c.IsSet("limit"):
		summary, err = batch.RunPendingLimit(ctx, c.Int("limit"))
	default:
		summary, err = batch.RunPending(ctx)
	}
	if err != nil {
		return err
	}

	printSummary(summary)
	return nil
}

func printSummary(s *conversation.BatchSummary) {
	fmt.Println("=== Generation Summary ===")
	fmt.Printf("Items:      %d\n", s.Total)
	fmt.Printf("Successful: %d\n", s.Successful)
	fmt.Printf("Skipped:    %d\n", s.Skipped)
	fmt.Printf("Failed:     %d\n", s.Failed)
	fmt.Printf("Comments:   %d\n", s.TotalComments)
	fmt.Printf("Cost:       %.4f (avg %.4f)\n", s.TotalCost, s.AvgCost())
	fmt.Printf("Duration:   %dms\n", s.TotalDurationMs)
	for _, e := range s.Errors {
		fmt.Printf("  ✗ %s (%s): %s\n", e.ContentID, e.Title, e.Error)
	}
}
