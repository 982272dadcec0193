// Package conversation generates base comment forests for a piece of content
// with three sequential passes against a text provider, and stores them.
package conversation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/chatlings/internal/aiconnectors"
	"github.com/chatlings/internal/apperr"
	"github.com/chatlings/internal/logging"
	"github.com/chatlings/pkg/models"
)

var ErrNoComments = errors.New("provider response contained no parseable comments")

// TextProvider is the chat-completion dependency of the generator
type TextProvider interface {
	Complete(ctx context.Context, req aiconnectors.CompletionRequest) (*aiconnectors.CompletionResponse, error)
}

// SentimentMix is a per-sentiment count
type SentimentMix struct {
	Positive int `koanf:"positive"`
	Neutral  int `koanf:"neutral"`
	Negative int `koanf:"negative"`
}

// PassSettings holds sampling parameters for one pass
type PassSettings struct {
	Temperature float64 `koanf:"temperature"`
	MaxTokens   int     `koanf:"max_tokens"`
}

// TokenEstimate is the fixed per-call accounting used where usage is not read
type TokenEstimate struct {
	Input  int `koanf:"input"`
	Output int `koanf:"output"`
}

// Config controls prompting, selection and cost accounting
type Config struct {
	Model           string        `koanf:"model"`
	InputCostPer1K  float64       `koanf:"input_cost_per_1k"`
	OutputCostPer1K float64       `koanf:"output_cost_per_1k"`
	Mix             SentimentMix  `koanf:"mix"`
	ReplyQuota      SentimentMix  `koanf:"reply_quota"`
	MaxReplyTargets int           `koanf:"max_reply_targets"`
	NestedTargets   int           `koanf:"nested_targets"`
	Initial         PassSettings  `koanf:"initial"`
	Replies         PassSettings  `koanf:"replies"`
	Nested          PassSettings  `koanf:"nested"`
	ReplyEstimate   TokenEstimate `koanf:"reply_estimate"`
	NestedEstimate  TokenEstimate `koanf:"nested_estimate"`
	LogDir          string        `koanf:"log_dir"`
}

func DefaultConfig() Config {
	return Config{
		Model:           "gpt-3.5-turbo",
		InputCostPer1K:  0.0005,
		OutputCostPer1K: 0.0015,
		Mix:             SentimentMix{Positive: 6, Neutral: 8, Negative: 6},
		ReplyQuota:      SentimentMix{Positive: 3, Neutral: 3, Negative: 2},
		MaxReplyTargets: 8,
		NestedTargets:   3,
		Initial:         PassSettings{Temperature: 0.9, MaxTokens: 2000},
		Replies:         PassSettings{Temperature: 0.85, MaxTokens: 500},
		Nested:          PassSettings{Temperature: 0.8, MaxTokens: 200},
		ReplyEstimate:   TokenEstimate{Input: 150, Output: 100},
		NestedEstimate:  TokenEstimate{Input: 100, Output: 50},
	}
}

// Result is a generated forest plus its accounting
type Result struct {
	Content       models.ContentMetadata `json:"content"`
	Forest        []*models.CommentNode  `json:"forest"`
	TotalComments int                    `json:"total_comments"`
	InputTokens   int                    `json:"input_tokens"`
	OutputTokens  int                    `json:"output_tokens"`
	Cost          float64                `json:"cost"`
	DurationMs    int64                  `json:"duration_ms"`
	Model         string                 `json:"model"`
	GeneratedAt   time.Time              `json:"generated_at"`
}

// BaseConversation converts the result into its stored form
func (r *Result) BaseConversation() *models.BaseConversation {
	return &models.BaseConversation{
		ContentID:            r.Content.ExternalID,
		ContentTitle:         r.Content.Title,
		ContentCategory:      r.Content.Category,
		Forest:               r.Forest,
		TotalCommentCount:    r.TotalComments,
		ModelIdentifier:      r.Model,
		InputTokens:          r.InputTokens,
		OutputTokens:         r.OutputTokens,
		GenerationCostUnits:  r.Cost,
		GenerationDurationMs: r.DurationMs,
		GeneratedAt:          r.GeneratedAt,
	}
}

// Generator runs the three-pass generation. It never retries; callers that
// want retries wrap Generate.
type Generator struct {
	provider TextProvider
	cfg      Config
	newID    func() string
	now      func() time.Time
}

func NewGenerator(provider TextProvider, cfg Config) *Generator {
	return &Generator{
		provider: provider,
		cfg:      cfg,
		newID:    uuid.NewString,
		now:      time.Now,
	}
}

// Config returns the generator's settings
func (g *Generator) Config() Config { return g.cfg }

// Generate builds the forest for meta. Any provider failure aborts the whole
// generation and nothing partial is returned.
func (g *Generator) Generate(ctx context.Context, meta models.ContentMetadata) (*Result, error) {
	if meta.ExternalID == "" || meta.Title == "" {
		return nil, apperr.Validation(apperr.CodeMissingField, "content id and title are required")
	}
	start := g.now()

	runLog, err := logging.StartRun("generation", meta.ExternalID, g.cfg.LogDir)
	if err != nil {
		log.Warn().Err(err).Msg("Run log unavailable, continuing without file copy")
		runLog, _ = logging.StartRun("generation", meta.ExternalID, "")
	}
	defer runLog.Close()
	runLog.Log("Generating conversation for %q", meta.Title)

	// Pass 1
	initial, err := g.call(ctx, runLog, "initial", g.cfg.Initial, initialSystemPrompt, buildInitialPrompt(meta, g.cfg))
	if err != nil {
		return nil, apperr.Provider(fmt.Errorf("initial comments: %w", err))
	}
	parsed := ParseComments(initial.Text)
	if len(parsed) == 0 {
		runLog.LogError("initial comments", ErrNoComments)
		return nil, apperr.Provider(ErrNoComments)
	}
	forest := make([]*models.CommentNode, 0, len(parsed))
	for _, p := range parsed {
		forest = append(forest, models.NewCommentNode(g.newID(), p.Text, p.Sentiment))
	}
	inputTokens := initial.Usage.InputTokens
	outputTokens := initial.Usage.OutputTokens
	runLog.Log("Pass 1 produced %d comments", len(forest))

	// Pass 2
	targets := SelectForReplies(forest, g.cfg.ReplyQuota, g.cfg.MaxReplyTargets)
	for _, parent := range targets {
		resp, err := g.call(ctx, runLog, "replies", g.cfg.Replies, repliesSystemPrompt, buildRepliesPrompt(meta, parent))
		if err != nil {
			return nil, apperr.Provider(fmt.Errorf("replies to %s: %w", parent.ID, err))
		}
		parent.Children = append(parent.Children, g.nodes(ParseComments(resp.Text))...)
	}
	inputTokens += len(targets) * g.cfg.ReplyEstimate.Input
	outputTokens += len(targets) * g.cfg.ReplyEstimate.Output
	runLog.Log("Pass 2 replied to %d comments", len(targets))

	// Pass 3
	nestedCalls := 0
	for _, parent := range targets {
		if nestedCalls >= g.cfg.NestedTargets {
			break
		}
		if len(parent.Children) == 0 {
			continue
		}
		reply := parent.Children[0]
		resp, err := g.call(ctx, runLog, "nested", g.cfg.Nested, nestedSystemPrompt, buildNestedPrompt(meta, parent, reply))
		if err != nil {
			return nil, apperr.Provider(fmt.Errorf("nested replies to %s: %w", reply.ID, err))
		}
		reply.Children = append(reply.Children, g.nodes(ParseComments(resp.Text))...)
		nestedCalls++
	}
	inputTokens += nestedCalls * g.cfg.NestedEstimate.Input
	outputTokens += nestedCalls * g.cfg.NestedEstimate.Output
	runLog.Log("Pass 3 extended %d threads", nestedCalls)

	end := g.now()
	res := &Result{
		Content:       meta,
		Forest:        forest,
		TotalComments: models.CountComments(forest),
		InputTokens:   inputTokens,
		OutputTokens:  outputTokens,
		Cost:          g.cost(inputTokens, outputTokens),
		DurationMs:    end.Sub(start).Milliseconds(),
		Model:         g.cfg.Model,
		GeneratedAt:   end,
	}
	runLog.Log("Generated %d comments, %d/%d tokens, cost %.6f", res.TotalComments, inputTokens, outputTokens, res.Cost)
	return res, nil
}

// cost applies per-1K pricing
func (g *Generator) cost(in, out int) float64 {
	return float64(in)*g.cfg.InputCostPer1K/1000 + float64(out)*g.cfg.OutputCostPer1K/1000
}

func (g *Generator) call(ctx context.Context, runLog *logging.RunLogger, pass string, ps PassSettings, system, prompt string) (*aiconnectors.CompletionResponse, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	runLog.LogRequest(pass, g.cfg.Model, len(prompt))
	resp, err := g.provider.Complete(ctx, aiconnectors.CompletionRequest{
		Model: g.cfg.Model,
		Messages: []aiconnectors.Message{
			{Role: aiconnectors.RoleSystem, Content: system},
			{Role: aiconnectors.RoleUser, Content: prompt},
		},
		Temperature: ps.Temperature,
		MaxTokens:   ps.MaxTokens,
	})
	if err != nil {
		runLog.LogError(pass, err)
		return nil, err
	}
	if resp == nil {
		return nil, aiconnectors.ErrEmptyResponse
	}
	runLog.LogResponse(pass, len(resp.Text), resp.Usage.InputTokens, resp.Usage.OutputTokens)
	return resp, nil
}

func (g *Generator) nodes(parsed []ParsedComment) []*models.CommentNode {
	out := make([]*models.CommentNode, 0, len(parsed))
	for _, p := range parsed {
		out = append(out, models.NewCommentNode(g.newID(), p.Text, p.Sentiment))
	}
	return out
}

// SelectForReplies picks reply targets: the first quota.Positive positive
// nodes, then neutral, then negative, capped at max. Order within each
// sentiment follows the forest.
func SelectForReplies(forest []*models.CommentNode, quota SentimentMix, max int) []*models.CommentNode {
	pick := func(s models.Sentiment, n int) []*models.CommentNode {
		out := make([]*models.CommentNode, 0, n)
		for _, node := range forest {
			if len(out) >= n {
				break
			}
			if node.Sentiment == s {
				out = append(out, node)
			}
		}
		return out
	}

	selected := make([]*models.CommentNode, 0, max)
	selected = append(selected, pick(models.SentimentPositive, quota.Positive)...)
	selected = append(selected, pick(models.SentimentNeutral, quota.Neutral)...)
	selected = append(selected, pick(models.SentimentNegative, quota.Negative)...)
	if max >= 0 && len(selected) > max {
		selected = selected[:max]
	}
	return selected
}
