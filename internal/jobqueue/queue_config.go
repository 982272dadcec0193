/*
Package jobqueue configuration - tunable parameters for the River job queue.

# Periodic jobs

  - schedule_generate: draws the day's chatroom windows and attaches pending
    content to them (default 00:05).
  - schedule_tick: advances windows through scheduled -> notified -> open ->
    closed (default every minute).
  - conversation_batch: generates base conversations for pending content
    (default 03:00).
  - schedule_cleanup: drops windows older than KeepDays (default 04:00).

Daily times are "HH:MM" in Location. Failed jobs are retried by River using
RetryPolicy, up to MaxAttempts.

## Database Requirements:
  - PostgreSQL with River schema migrations applied (see Migrate)
  - Connection pool sized for MaxWorkers
*/
package jobqueue

import (
	"fmt"
	"math"
	"time"

	"github.com/riverqueue/river"
	"github.com/riverqueue/river/rivertype"
)

// QueueConfig holds all configurable parameters for the job queue
type QueueConfig struct {
	MaxWorkers  int           `koanf:"max_workers"`
	MaxAttempts int           `koanf:"max_attempts"`
	RetryPolicy RetryPolicy   `koanf:"retry"`
	JobTimeout  time.Duration `koanf:"job_timeout"`

	ScheduleAt   string        `koanf:"schedule_at"`
	TickInterval time.Duration `koanf:"tick_interval"`
	BatchAt      string        `koanf:"batch_at"`
	CleanupAt    string        `koanf:"cleanup_at"`
	KeepDays     int           `koanf:"keep_days"`
	Location     string        `koanf:"location"`
}

// RetryPolicy defines how failed jobs are retried
type RetryPolicy struct {
	// InitialInterval is the time to wait before the first retry
	InitialInterval time.Duration `koanf:"initial_interval"`

	// MaxInterval caps the wait between retries
	MaxInterval time.Duration `koanf:"max_interval"`

	// Multiplier is the factor by which the interval grows per attempt
	Multiplier float64 `koanf:"multiplier"`
}

// DefaultQueueConfig returns the default configuration
func DefaultQueueConfig() QueueConfig {
	return QueueConfig{
		MaxWorkers:  4,
		MaxAttempts: 5,
		RetryPolicy: RetryPolicy{
			InitialInterval: 30 * time.Second,
			MaxInterval:     30 * time.Minute,
			Multiplier:      2.0,
		},
		// a batch of ten items with a one second pause fits easily
		JobTimeout: 30 * time.Minute,

		ScheduleAt:   "00:05",
		TickInterval: time.Minute,
		BatchAt:      "03:00",
		CleanupAt:    "04:00",
		KeepDays:     30,
		Location:     "UTC",
	}
}

// Validate checks times, location and bounds
func (c QueueConfig) Validate() error {
	if c.MaxWorkers < 1 {
		return fmt.Errorf("max_workers must be at least 1")
	}
	if c.MaxAttempts < 1 {
		return fmt.Errorf("max_attempts must be at least 1")
	}
	if c.TickInterval <= 0 {
		return fmt.Errorf("tick_interval must be positive")
	}
	if c.KeepDays < 1 {
		return fmt.Errorf("keep_days must be at least 1")
	}
	if _, err := c.location(); err != nil {
		return err
	}
	for name, v := range map[string]string{"schedule_at": c.ScheduleAt, "batch_at": c.BatchAt, "cleanup_at": c.CleanupAt} {
		if _, err := parseClock(v); err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
	}
	return nil
}

func (c QueueConfig) location() (*time.Location, error) {
	if c.Location == "" {
		return time.UTC, nil
	}
	loc, err := time.LoadLocation(c.Location)
	if err != nil {
		return nil, fmt.Errorf("invalid location %q: %w", c.Location, err)
	}
	return loc, nil
}

// RiverQueueConfig converts our config to River's queue configuration format
func (c QueueConfig) RiverQueueConfig() map[string]river.QueueConfig {
	return map[string]river.QueueConfig{
		river.QueueDefault: {
			MaxWorkers: c.MaxWorkers,
		},
	}
}

// NextRetry implements river.ClientRetryPolicy with capped exponential backoff
func (p RetryPolicy) NextRetry(job *rivertype.JobRow) time.Time {
	return time.Now().Add(p.Backoff(job.Attempt))
}

// Backoff is the wait after the given (1-based) failed attempt
func (p RetryPolicy) Backoff(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	mult := p.Multiplier
	if mult < 1 {
		mult = 1
	}
	d := float64(p.InitialInterval) * math.Pow(mult, float64(attempt-1))
	if p.MaxInterval > 0 && d > float64(p.MaxInterval) {
		return p.MaxInterval
	}
	return time.Duration(d)
}

// clock is a time of day
type clock struct {
	hour, minute int
}

func parseClock(s string) (clock, error) {
	t, err := time.Parse("15:04", s)
	if err != nil {
		return clock{}, fmt.Errorf("time of day must be HH:MM, got %q", s)
	}
	return clock{hour: t.Hour(), minute: t.Minute()}, nil
}

// dailyAt is a river.PeriodicSchedule firing once a day at a fixed time
type dailyAt struct {
	at  clock
	loc *time.Location
}

func (d dailyAt) Next(current time.Time) time.Time {
	local := current.In(d.loc)
	y, m, day := local.Date()
	next := time.Date(y, m, day, d.at.hour, d.at.minute, 0, 0, d.loc)
	if !next.After(local) {
		next = time.Date(y, m, day+1, d.at.hour, d.at.minute, 0, 0, d.loc)
	}
	return next
}
