/*
Package jobqueue runs the periodic background work on River: daily chatroom
schedules, the schedule status ticker, the daily conversation batch and
schedule cleanup.

For configuration options, retry policies, and tuning parameters, see queue_config.go.
*/
package jobqueue

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/riverqueue/river"
	"github.com/riverqueue/river/riverdriver/riverpgxv5"
	"github.com/riverqueue/river/rivermigrate"
	"github.com/rs/zerolog/log"

	"github.com/chatlings/internal/conversation"
	"github.com/chatlings/internal/schedule"
	"github.com/chatlings/pkg/models"
)

const dateLayout = "2006-01-02"

// Tasks are the services the workers drive
type Tasks struct {
	Schedules *schedule.Service
	Ticker    *schedule.Ticker
	Batch     *conversation.BatchGenerator
	// Source feeds content into new windows; nil leaves windows without content
	Source conversation.ContentSource
}

// ScheduleGenerateArgs represents a daily schedule generation job
type ScheduleGenerateArgs struct {
	Date string `json:"date"`
}

// Kind returns the job kind for River
func (ScheduleGenerateArgs) Kind() string { return "schedule_generate" }

// ScheduleTickArgs represents one lifecycle poll
type ScheduleTickArgs struct{}

func (ScheduleTickArgs) Kind() string { return "schedule_tick" }

// ConversationBatchArgs represents a conversation generation batch
type ConversationBatchArgs struct {
	Limit int `json:"limit,omitempty"`
}

func (ConversationBatchArgs) Kind() string { return "conversation_batch" }

// ScheduleCleanupArgs represents a cleanup of old windows
type ScheduleCleanupArgs struct {
	KeepDays int `json:"keep_days"`
}

func (ScheduleCleanupArgs) Kind() string { return "schedule_cleanup" }

// ScheduleGenerateWorker draws the day's windows and attaches pending content
type ScheduleGenerateWorker struct {
	river.WorkerDefaults[ScheduleGenerateArgs]
	tasks Tasks
}

func (w *ScheduleGenerateWorker) Work(ctx context.Context, job *river.Job[ScheduleGenerateArgs]) error {
	date := w.tasks.Schedules.Now()
	if job.Args.Date != "" {
		d, err := time.ParseInLocation(dateLayout, job.Args.Date, date.Location())
		if err != nil {
			return river.JobCancel(fmt.Errorf("invalid date %q: %w", job.Args.Date, err))
		}
		date = d
	}

	// A re-run of this job after a crash finds the day already drawn
	windows, err := w.tasks.Schedules.GetByDate(ctx, date)
	if err != nil {
		return err
	}
	if len(windows) > 0 {
		log.Info().Str("date", date.Format(dateLayout)).Int("windows", len(windows)).Msg("Chatroom schedule already exists for date")
	} else if windows, err = w.tasks.Schedules.GenerateDailySchedule(ctx, date); err != nil {
		return err
	}

	empty := make([]*models.ChatroomSchedule, 0, len(windows))
	for _, win := range windows {
		if win.ContentID == "" {
			empty = append(empty, win)
		}
	}
	if w.tasks.Source == nil || len(empty) == 0 {
		return nil
	}

	content, err := w.tasks.Source.PendingContent(ctx, len(empty))
	if err != nil {
		log.Warn().Err(err).Msg("Could not load content for new chatroom windows")
		return nil
	}
	for i, meta := range content {
		if _, err := w.tasks.Schedules.AssignContent(ctx, empty[i].ID, meta); err != nil {
			log.Warn().Err(err).Int64("schedule_id", empty[i].ID).Str("video_id", meta.ExternalID).Msg("Failed to assign content to chatroom window")
		}
	}
	log.Info().
		Str("date", date.Format(dateLayout)).
		Int("windows", len(windows)).
		Int("with_content", len(content)).
		Msg("Daily chatroom schedule generated")
	return nil
}

// ScheduleTickWorker runs one Ticker pass
type ScheduleTickWorker struct {
	river.WorkerDefaults[ScheduleTickArgs]
	tasks Tasks
}

func (w *ScheduleTickWorker) Work(ctx context.Context, job *river.Job[ScheduleTickArgs]) error {
	_, err := w.tasks.Ticker.Tick(ctx)
	return err
}

// ConversationBatchWorker generates conversations for pending content
type ConversationBatchWorker struct {
	river.WorkerDefaults[ConversationBatchArgs]
	tasks   Tasks
	timeout time.Duration
}

func (w *ConversationBatchWorker) Timeout(*river.Job[ConversationBatchArgs]) time.Duration {
	return w.timeout
}

func (w *ConversationBatchWorker) Work(ctx context.Context, job *river.Job[ConversationBatchArgs]) error {
	var summary *conversation.BatchSummary
	var err error
	if job.Args.Limit > 0 {
		summary, err = w.tasks.Batch.RunPendingLimit(ctx, job.Args.Limit)
	} else {
		summary, err = w.tasks.Batch.RunPending(ctx)
	}
	if err != nil {
		return err
	}
	log.Info().
		Int("total", summary.Total).
		Int("successful", summary.Successful).
		Int("skipped", summary.Skipped).
		Int("failed", summary.Failed).
		Float64("cost", summary.TotalCost).
		Msg("Conversation batch finished")
	return nil
}

// ScheduleCleanupWorker deletes old windows
type ScheduleCleanupWorker struct {
	river.WorkerDefaults[ScheduleCleanupArgs]
	tasks Tasks
}

func (w *ScheduleCleanupWorker) Work(ctx context.Context, job *river.Job[ScheduleCleanupArgs]) error {
	_, err := w.tasks.Schedules.CleanupOldSchedules(ctx, job.Args.KeepDays)
	return err
}

// NewWorkers registers every worker the queue knows about
func NewWorkers(tasks Tasks, cfg QueueConfig) *river.Workers {
	workers := river.NewWorkers()
	river.AddWorker(workers, &ScheduleGenerateWorker{tasks: tasks})
	river.AddWorker(workers, &ScheduleTickWorker{tasks: tasks})
	river.AddWorker(workers, &ConversationBatchWorker{tasks: tasks, timeout: cfg.JobTimeout})
	river.AddWorker(workers, &ScheduleCleanupWorker{tasks: tasks})
	return workers
}

// PeriodicJobs builds the recurring job set. The generate job is unique by
// date so restarts do not draw a second schedule for the same day.
func PeriodicJobs(cfg QueueConfig) ([]*river.PeriodicJob, error) {
	loc, err := cfg.location()
	if err != nil {
		return nil, err
	}
	at := func(s string) (dailyAt, error) {
		c, err := parseClock(s)
		return dailyAt{at: c, loc: loc}, err
	}
	generateAt, err := at(cfg.ScheduleAt)
	if err != nil {
		return nil, err
	}
	batchAt, err := at(cfg.BatchAt)
	if err != nil {
		return nil, err
	}
	cleanupAt, err := at(cfg.CleanupAt)
	if err != nil {
		return nil, err
	}

	return []*river.PeriodicJob{
		river.NewPeriodicJob(generateAt, func() (river.JobArgs, *river.InsertOpts) {
			return ScheduleGenerateArgs{Date: time.Now().In(loc).Format(dateLayout)},
				&river.InsertOpts{UniqueOpts: river.UniqueOpts{ByArgs: true}}
		}, &river.PeriodicJobOpts{RunOnStart: true}),
		river.NewPeriodicJob(river.PeriodicInterval(cfg.TickInterval), func() (river.JobArgs, *river.InsertOpts) {
			return ScheduleTickArgs{}, &river.InsertOpts{MaxAttempts: 1}
		}, &river.PeriodicJobOpts{RunOnStart: true}),
		river.NewPeriodicJob(batchAt, func() (river.JobArgs, *river.InsertOpts) {
			return ConversationBatchArgs{}, nil
		}, nil),
		river.NewPeriodicJob(cleanupAt, func() (river.JobArgs, *river.InsertOpts) {
			return ScheduleCleanupArgs{KeepDays: cfg.KeepDays}, nil
		}, nil),
	}, nil
}

// JobQueue manages the River job queue
type JobQueue struct {
	client *river.Client[pgx.Tx]
	pool   *pgxpool.Pool
	config QueueConfig
}

// NewJobQueue creates a job queue on its own pgx pool
func NewJobQueue(ctx context.Context, databaseURL string, cfg QueueConfig, tasks Tasks) (*JobQueue, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid queue config: %w", err)
	}
	periodic, err := PeriodicJobs(cfg)
	if err != nil {
		return nil, err
	}

	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	client, err := river.NewClient(riverpgxv5.New(pool), &river.Config{
		Queues:       cfg.RiverQueueConfig(),
		Workers:      NewWorkers(tasks, cfg),
		PeriodicJobs: periodic,
		MaxAttempts:  cfg.MaxAttempts,
		RetryPolicy:  cfg.RetryPolicy,
	})
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to create River client: %w", err)
	}

	return &JobQueue{client: client, pool: pool, config: cfg}, nil
}

// Migrate applies River's own schema
func Migrate(ctx context.Context, databaseURL string) error {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return fmt.Errorf("failed to create connection pool: %w", err)
	}
	defer pool.Close()

	migrator, err := rivermigrate.New(riverpgxv5.New(pool), nil)
	if err != nil {
		return fmt.Errorf("failed to create River migrator: %w", err)
	}
	res, err := migrator.Migrate(ctx, rivermigrate.DirectionUp, nil)
	if err != nil {
		return fmt.Errorf("failed to migrate River schema: %w", err)
	}
	log.Info().Int("versions", len(res.Versions)).Msg("River schema up to date")
	return nil
}

// Start starts the job queue workers
func (jq *JobQueue) Start(ctx context.Context) error {
	return jq.client.Start(ctx)
}

// Stop stops the job queue workers and closes the pool
func (jq *JobQueue) Stop(ctx context.Context) error {
	defer jq.pool.Close()
	return jq.client.Stop(ctx)
}

// QueueConversationBatch queues an out-of-schedule batch run
func (jq *JobQueue) QueueConversationBatch(ctx context.Context, limit int) error {
	if _, err := jq.client.Insert(ctx, ConversationBatchArgs{Limit: limit}, nil); err != nil {
		return fmt.Errorf("failed to queue conversation batch: %w", err)
	}
	return nil
}

// QueueScheduleGeneration queues schedule generation for date
func (jq *JobQueue) QueueScheduleGeneration(ctx context.Context, date time.Time) error {
	args := ScheduleGenerateArgs{Date: date.Format(dateLayout)}
	if _, err := jq.client.Insert(ctx, args, &river.InsertOpts{UniqueOpts: river.UniqueOpts{ByArgs: true}}); err != nil {
		return fmt.Errorf("failed to queue schedule generation: %w", err)
	}
	return nil
}
