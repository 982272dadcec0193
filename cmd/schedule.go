package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/urfave/cli/v2"
)

// ScheduleCommand groups one-off schedule maintenance tasks
func ScheduleCommand() *cli.Command {
	return &cli.Command{
		Name:  "schedule",
		Usage: "Generate, advance and clean up chatroom schedules",
		Subcommands: []*cli.Command{
			{
				Name:  "generate",
				Usage: "Generate the chatroom windows for a day",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "date",
						Usage: "Day to generate in YYYY-MM-DD (defaults to today)",
					},
				},
				Action: runScheduleGenerate,
			},
			{
				Name:   "tick",
				Usage:  "Run one pass over due notifications, reminders, opens and closes",
				Action: runScheduleTick,
			},
			{
				Name:  "cleanup",
				Usage: "Delete schedules older than the retention window",
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:  "keep-days",
						Usage: "Days of schedules to keep (overrides queue.keep_days)",
					},
				},
				Action: runScheduleCleanup,
			},
		},
	}
}

func runScheduleGenerate(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	loc, err := time.LoadLocation(cfg.Schedule.Location)
	if err != nil {
		return fmt.Errorf("invalid schedule location: %w", err)
	}
	date := time.Now().In(loc)
	if s := c.String("date"); s != "" {
		if date, err = time.ParseInLocation("2006-01-02", s, loc); err != nil {
			return fmt.Errorf("invalid --date %q: %w", s, err)
		}
	}

	ctx := context.Background()
	a, err := newApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	windows, err := a.schedules.GenerateDailySchedule(ctx, date)
	if err != nil {
		return err
	}
	fmt.Printf("Generated %d chatroom window(s) for %s\n", len(windows), date.Format("2006-01-02"))
	for _, w := range windows {
		fmt.Printf("  #%d  %s - %s\n", w.ID, w.OpenTime.In(loc).Format("15:04"), w.CloseTime.In(loc).Format("15:04"))
	}
	return nil
}

func runScheduleTick(c *cli.Context) error {
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

	report, err := a.ticker.Tick(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("Notified %d, reminded %d, opened %d, closed %d\n",
		report.Notified, report.Reminded, report.Opened, report.Closed)
	return nil
}

func runScheduleCleanup(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	keep := cfg.Queue.KeepDays
	if c.IsSet("keep-days") {
		keep = c.Int("keep-days")
	}

	ctx := context.Background()
	a, err := newApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	n, err := a.schedules.CleanupOldSchedules(ctx, keep)
	if err != nil {
		return err
	}
	fmt.Printf("Deleted %d schedule(s) older than %d day(s)\n", n, keep)
	return nil
}
