package conversation

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/chatlings/internal/logging"
	"github.com/chatlings/internal/retry"
	"github.com/chatlings/pkg/models"
)

// BatchConfig bounds a batch run
type BatchConfig struct {
	Concurrency int               `koanf:"concurrency"`
	Interval    time.Duration     `koanf:"interval"` // minimum gap between item starts
	Limit       int               `koanf:"limit"`    // items taken from a ContentSource per run
	Retry       retry.RetryConfig `koanf:"retry"`
	// RetryPreset, when set, replaces Retry with a named retry.Preset
	RetryPreset string `koanf:"retry_preset"`
	LogDir      string            `koanf:"log_dir"`
}

func DefaultBatchConfig() BatchConfig {
	return BatchConfig{
		Concurrency: 1,
		Interval:    time.Second,
		Limit:       10,
		Retry:       retry.NoRetryConfig(),
	}
}

// ItemError is one failed item of a batch
type ItemError struct {
	ContentID string `json:"content_id"`
	Title     string `json:"title"`
	Error     string `json:"error"`
}

// BatchSummary aggregates a batch run; failures never abort the batch
type BatchSummary struct {
	Total           int         `json:"total"`
	Successful      int         `json:"successful"`
	Skipped         int         `json:"skipped"`
	Failed          int         `json:"failed"`
	TotalComments   int         `json:"total_comments"`
	TotalCost       float64     `json:"total_cost"`
	TotalDurationMs int64       `json:"total_duration_ms"`
	Errors          []ItemError `json:"errors"`
}

// AvgCost is the mean cost per successful item
func (s *BatchSummary) AvgCost() float64 {
	if s.Successful == 0 {
		return 0
	}
	return s.TotalCost / float64(s.Successful)
}

// BatchGenerator generates and stores conversations for many content items
type BatchGenerator struct {
	gen    *Generator
	store  Store
	source ContentSource
	cfg    BatchConfig
}

// NewBatchGenerator wires a batch run; source may be nil when only Run is used
func NewBatchGenerator(gen *Generator, store Store, source ContentSource, cfg BatchConfig) *BatchGenerator {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 1
	}
	return &BatchGenerator{gen: gen, store: store, source: source, cfg: cfg}
}

// RunPending pulls up to the configured limit of pending content and runs it
func (b *BatchGenerator) RunPending(ctx context.Context) (*BatchSummary, error) {
	return b.RunPendingLimit(ctx, b.cfg.Limit)
}

// RunPendingLimit is RunPending with an explicit item limit
func (b *BatchGenerator) RunPendingLimit(ctx context.Context, limit int) (*BatchSummary, error) {
	if b.source == nil {
		return nil, errors.New("no content source configured")
	}
	items, err := b.source.PendingContent(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("load pending content: %w", err)
	}
	return b.Run(ctx, items)
}

// Run generates every item that has no stored conversation yet. The returned
// error is only non-nil when ctx is cancelled.
func (b *BatchGenerator) Run(ctx context.Context, items []models.ContentMetadata) (*BatchSummary, error) {
	summary := &BatchSummary{Total: len(items), Errors: make([]ItemError, 0)}
	if len(items) == 0 {
		log.Info().Msg("No new content to process")
		return summary, nil
	}

	runLog, err := logging.StartRun("batch", uuid.NewString(), b.cfg.LogDir)
	if err != nil {
		runLog, _ = logging.StartRun("batch", uuid.NewString(), "")
	}
	defer runLog.Close()
	runLog.Log("Generating conversations for %d items", len(items))

	limit := rate.Inf
	if b.cfg.Interval > 0 {
		limit = rate.Every(b.cfg.Interval)
	}
	limiter := rate.NewLimiter(limit, 1)

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(b.cfg.Concurrency)

	for i, item := range items {
		if err := limiter.Wait(gctx); err != nil {
			// cancelled before starting: the rest count as failed so the summary adds up
			mu.Lock()
			for _, rest := range items[i:] {
				summary.Failed++
				summary.Errors = append(summary.Errors, ItemError{ContentID: rest.ExternalID, Title: rest.Title, Error: err.Error()})
			}
			mu.Unlock()
			break
		}
		i, item := i, item
		g.Go(func() error {
			runLog.Log("[%d/%d] Processing: %s", i+1, len(items), item.Title)
			res, skipped, err := b.processItem(gctx, item, runLog)

			mu.Lock()
			defer mu.Unlock()
			switch {
			case skipped:
				summary.Skipped++
			case err != nil:
				summary.Failed++
				summary.Errors = append(summary.Errors, ItemError{ContentID: item.ExternalID, Title: item.Title, Error: err.Error()})
				runLog.LogError(item.ExternalID, err)
			default:
				summary.Successful++
				summary.TotalComments += res.TotalComments
				summary.TotalCost += res.Cost
				summary.TotalDurationMs += res.DurationMs
			}
			return nil
		})
	}
	_ = g.Wait()

	runLog.Log("Batch complete: %d/%d successful, %d skipped, %d failed, %d comments, cost %.4f",
		summary.Successful, summary.Total, summary.Skipped, summary.Failed, summary.TotalComments, summary.TotalCost)

	if err := ctx.Err(); err != nil {
		return summary, err
	}
	return summary, nil
}

func (b *BatchGenerator) processItem(ctx context.Context, item models.ContentMetadata, runLog *logging.RunLogger) (*Result, bool, error) {
	if _, err := b.store.GetByContentID(ctx, item.ExternalID); err == nil {
		runLog.Log("Conversation already exists for %s, skipping", item.ExternalID)
		return nil, true, nil
	} else if !errors.Is(err, ErrNotFound) {
		return nil, false, fmt.Errorf("check existing: %w", err)
	}

	var res *Result
	outcome := retry.Do(ctx, b.cfg.Retry, func(ctx context.Context) error {
		r, err := b.gen.Generate(ctx, item)
		if err != nil {
			return err
		}
		res = r
		return nil
	}, runLog)
	if !outcome.Success {
		return nil, false, outcome.LastError
	}

	if err := b.store.Create(ctx, res.BaseConversation()); err != nil {
		if errors.Is(err, ErrDuplicate) {
			return nil, true, nil
		}
		return nil, false, fmt.Errorf("store conversation: %w", err)
	}
	if b.source != nil {
		if err := b.source.MarkGenerated(ctx, item.ExternalID); err != nil {
			log.Warn().Err(err).Str("content_id", item.ExternalID).Msg("Failed to mark content as generated")
		}
	}
	return res, false, nil
}
