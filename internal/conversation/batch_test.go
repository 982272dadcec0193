package conversation

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chatlings/internal/aiconnectors"
	"github.com/chatlings/internal/retry"
	"github.com/chatlings/pkg/models"
)

// flakyProvider fails every initial call whose prompt mentions failTitle, and
// the first `transient` initial calls overall
type flakyProvider struct {
	scriptedProvider
	failTitle string
	transient int32
	seen      int32
}

func (p *flakyProvider) Complete(ctx context.Context, req aiconnectors.CompletionRequest) (*aiconnectors.CompletionResponse, error) {
	if passOf(req) == "initial" {
		if p.failTitle != "" && strings.Contains(req.Messages[1].Content, p.failTitle) {
			return nil, errors.New("content policy rejection")
		}
		if atomic.AddInt32(&p.seen, 1) <= p.transient {
			return nil, errors.New("429 too many requests")
		}
	}
	return p.scriptedProvider.Complete(ctx, req)
}

func newFlaky() *flakyProvider {
	return &flakyProvider{scriptedProvider: scriptedProvider{
		initial: tagged("positive", "Love it", "negative", "Hate it"),
		replies: tagged("neutral", "Same"),
		nested:  tagged("neutral", "ok"),
	}}
}

func fastBatchConfig() BatchConfig {
	cfg := DefaultBatchConfig()
	cfg.Interval = 0
	cfg.Concurrency = 2
	return cfg
}

func TestBatchRunCollectsPerItemResults(t *testing.T) {
	ctx := context.Background()
	p := newFlaky()
	p.failTitle = "Broken"
	store := NewInMemoryStore()
	require.NoError(t, store.Create(ctx, &models.BaseConversation{ContentID: "done", ContentTitle: "Already there"}))

	items := []models.ContentMetadata{
		{ExternalID: "a", Title: "First"},
		{ExternalID: "done", Title: "Already there"},
		{ExternalID: "b", Title: "Broken one"},
		{ExternalID: "c", Title: "Third"},
	}
	b := NewBatchGenerator(NewGenerator(p, DefaultConfig()), store, nil, fastBatchConfig())

	summary, err := b.Run(ctx, items)
	require.NoError(t, err)

	assert.Equal(t, 4, summary.Total)
	assert.Equal(t, 2, summary.Successful)
	assert.Equal(t, 1, summary.Skipped)
	assert.Equal(t, 1, summary.Failed)
	require.Len(t, summary.Errors, 1)
	assert.Equal(t, "b", summary.Errors[0].ContentID)
	assert.Equal(t, "Broken one", summary.Errors[0].Title)
	assert.Contains(t, summary.Errors[0].Error, "content policy rejection")

	// two top-level, one reply each, one nested under each reply
	assert.Equal(t, 2*6, summary.TotalComments)
	assert.Greater(t, summary.TotalCost, 0.0)
	assert.InDelta(t, summary.TotalCost/2, summary.AvgCost(), 1e-12)

	for _, id := range []string{"a", "c"} {
		conv, err := store.GetByContentID(ctx, id)
		require.NoError(t, err, id)
		assert.Equal(t, 6, conv.TotalCommentCount)
	}
	_, err = store.GetByContentID(ctx, "b")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestBatchRetriesTransientFailures(t *testing.T) {
	p := newFlaky()
	p.transient = 1
	cfg := fastBatchConfig()
	cfg.Concurrency = 1
	cfg.Retry = retry.RetryConfig{MaxRetries: 2, BaseDelay: time.Millisecond, MaxDelay: time.Millisecond, Multiplier: 1}

	b := NewBatchGenerator(NewGenerator(p, DefaultConfig()), NewInMemoryStore(), nil, cfg)
	summary, err := b.Run(context.Background(), []models.ContentMetadata{{ExternalID: "a", Title: "First"}})
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Successful)
	assert.Equal(t, 0, summary.Failed)
}

func TestBatchDefaultDoesNotRetry(t *testing.T) {
	p := newFlaky()
	p.transient = 1
	b := NewBatchGenerator(NewGenerator(p, DefaultConfig()), NewInMemoryStore(), nil, fastBatchConfig())

	summary, err := b.Run(context.Background(), []models.ContentMetadata{{ExternalID: "a", Title: "First"}})
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Failed)
	assert.Equal(t, int32(1), atomic.LoadInt32(&p.seen))
}

func TestBatchCancelledCountsEveryItem(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	items := []models.ContentMetadata{
		{ExternalID: "a", Title: "First"},
		{ExternalID: "b", Title: "Second"},
		{ExternalID: "c", Title: "Third"},
	}
	b := NewBatchGenerator(NewGenerator(newFlaky(), DefaultConfig()), NewInMemoryStore(), nil, fastBatchConfig())

	summary, err := b.Run(ctx, items)
	assert.ErrorIs(t, err, context.Canceled)
	require.NotNil(t, summary)
	assert.Equal(t, 3, summary.Total)
	assert.Equal(t, summary.Total, summary.Successful+summary.Skipped+summary.Failed)
	assert.Equal(t, 3, summary.Failed)
	require.Len(t, summary.Errors, 3)
	assert.Equal(t, "a", summary.Errors[0].ContentID)
	assert.Contains(t, summary.Errors[0].Error, context.Canceled.Error())
}

func TestBatchRunPendingMarksSource(t *testing.T) {
	ctx := context.Background()
	source := NewInMemorySource(
		models.ContentMetadata{ExternalID: "old", Title: "Old"},
		models.ContentMetadata{ExternalID: "new", Title: "New"},
	)
	store := NewInMemoryStore()
	b := NewBatchGenerator(NewGenerator(newFlaky(), DefaultConfig()), store, source, fastBatchConfig())

	summary, err := b.RunPending(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, summary.Successful)

	pending, err := source.PendingContent(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, pending)

	stats, err := store.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.TotalConversations)
	assert.Equal(t, 12, stats.TotalComments)
	require.NotNil(t, stats.LastGeneratedAt)
}

func TestBatchEmptyInput(t *testing.T) {
	b := NewBatchGenerator(NewGenerator(newFlaky(), DefaultConfig()), NewInMemoryStore(), nil, fastBatchConfig())
	summary, err := b.Run(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, 0, summary.Total)
	assert.NotNil(t, summary.Errors)

	_, err = b.RunPending(context.Background())
	assert.Error(t, err)
}

func TestInMemorySourceNewestFirst(t *testing.T) {
	source := NewInMemorySource(
		models.ContentMetadata{ExternalID: "1"},
		models.ContentMetadata{ExternalID: "2"},
		models.ContentMetadata{ExternalID: "3"},
	)
	got, err := source.PendingContent(context.Background(), 2)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "3", got[0].ExternalID)
	assert.Equal(t, "2", got[1].ExternalID)
}
