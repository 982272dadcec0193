package conversation

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chatlings/internal/aiconnectors"
	"github.com/chatlings/internal/apperr"
	"github.com/chatlings/pkg/models"
)

// scriptedProvider answers by pass, identified from the system prompt
type scriptedProvider struct {
	mu       sync.Mutex
	initial  string
	replies  string
	nested   string
	usage    aiconnectors.Usage
	failOn   string
	requests []aiconnectors.CompletionRequest
}

func (p *scriptedProvider) Complete(ctx context.Context, req aiconnectors.CompletionRequest) (*aiconnectors.CompletionResponse, error) {
	p.mu.Lock()
	p.requests = append(p.requests, req)
	p.mu.Unlock()

	pass := passOf(req)
	if pass == p.failOn {
		return nil, errors.New("503 service unavailable")
	}
	switch pass {
	case "initial":
		return &aiconnectors.CompletionResponse{Text: p.initial, Usage: p.usage}, nil
	case "replies":
		return &aiconnectors.CompletionResponse{Text: p.replies}, nil
	default:
		return &aiconnectors.CompletionResponse{Text: p.nested}, nil
	}
}

func (p *scriptedProvider) calls(pass string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := 0
	for _, r := range p.requests {
		if passOf(r) == pass {
			n++
		}
	}
	return n
}

func passOf(req aiconnectors.CompletionRequest) string {
	switch req.Messages[0].Content {
	case initialSystemPrompt:
		return "initial"
	case repliesSystemPrompt:
		return "replies"
	default:
		return "nested"
	}
}

func tagged(pairs ...string) string {
	var b strings.Builder
	for i := 0; i+1 < len(pairs); i += 2 {
		fmt.Fprintf(&b, "[SENTIMENT: %s]\n%s\n\n", pairs[i], pairs[i+1])
	}
	return b.String()
}

func sequentialIDs(g *Generator) {
	n := 0
	g.newID = func() string {
		n++
		return fmt.Sprintf("c%d", n)
	}
}

var testMeta = models.ContentMetadata{ExternalID: "vid-1", Title: "Cat piano", Category: "Music"}

func TestGenerateBuildsThreeLevelTree(t *testing.T) {
	p := &scriptedProvider{
		initial: tagged("positive", "Love it"),
		replies: tagged("neutral", "Same"),
		nested:  tagged("negative", "ok"),
	}
	g := NewGenerator(p, DefaultConfig())
	sequentialIDs(g)

	res, err := g.Generate(context.Background(), testMeta)
	require.NoError(t, err)

	want := []*models.CommentNode{{
		ID: "c1", Text: "Love it", Sentiment: models.SentimentPositive,
		Children: []*models.CommentNode{{
			ID: "c2", Text: "Same", Sentiment: models.SentimentNeutral,
			Children: []*models.CommentNode{{
				ID: "c3", Text: "ok", Sentiment: models.SentimentNegative, Children: []*models.CommentNode{},
			}},
		}},
	}}
	if diff := cmp.Diff(want, res.Forest); diff != "" {
		t.Errorf("forest mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, 3, res.TotalComments)
	assert.Equal(t, "gpt-3.5-turbo", res.Model)
}

func TestGenerateSelectionAndAccounting(t *testing.T) {
	p := &scriptedProvider{
		initial: tagged(
			"positive", "p1", "neutral", "n1", "negative", "g1",
			"positive", "p2", "neutral", "n2", "negative", "g2",
			"positive", "p3", "neutral", "n3", "negative", "g3",
			"positive", "p4", "neutral", "n4",
		),
		replies: tagged("positive", "Agreed", "negative", "Nope"),
		nested:  tagged("neutral", "fair"),
		usage:   aiconnectors.Usage{InputTokens: 1000, OutputTokens: 500},
	}
	g := NewGenerator(p, DefaultConfig())

	res, err := g.Generate(context.Background(), testMeta)
	require.NoError(t, err)

	assert.Equal(t, 1, p.calls("initial"))
	assert.Equal(t, 8, p.calls("replies"))
	assert.Equal(t, 3, p.calls("nested"))

	require.Len(t, res.Forest, 11)
	texts := make([]string, 0, len(res.Forest))
	for _, n := range res.Forest {
		texts = append(texts, n.Text)
	}
	assert.Equal(t, []string{"p1", "n1", "g1", "p2", "n2", "g2", "p3", "n3", "g3", "p4", "n4"}, texts)

	replied := map[string]int{}
	for _, n := range res.Forest {
		replied[n.Text] = len(n.Children)
	}
	for _, text := range []string{"p1", "p2", "p3", "n1", "n2", "n3", "g1", "g2"} {
		assert.Equal(t, 2, replied[text], text)
	}
	for _, text := range []string{"p4", "n4", "g3"} {
		assert.Equal(t, 0, replied[text], text)
		assert.NotNil(t, res.Forest[indexOf(texts, text)].Children)
	}

	// nested replies land on the first reply of the first three targets
	for _, text := range []string{"p1", "p2", "p3"} {
		node := res.Forest[indexOf(texts, text)]
		assert.Len(t, node.Children[0].Children, 1, text)
		assert.Empty(t, node.Children[1].Children, text)
	}
	assert.Empty(t, res.Forest[indexOf(texts, "n1")].Children[0].Children)

	assert.Equal(t, 11+16+3, res.TotalComments)
	assert.Equal(t, 1000+8*150+3*100, res.InputTokens)
	assert.Equal(t, 500+8*100+3*50, res.OutputTokens)
	assert.InDelta(t, 0.003425, res.Cost, 1e-9)
	assert.GreaterOrEqual(t, res.DurationMs, int64(0))
}

func TestGenerateUsesPassSettings(t *testing.T) {
	p := &scriptedProvider{
		initial: tagged("positive", "Love it"),
		replies: tagged("neutral", "Same"),
		nested:  tagged("negative", "ok"),
	}
	_, err := NewGenerator(p, DefaultConfig()).Generate(context.Background(), testMeta)
	require.NoError(t, err)

	require.Len(t, p.requests, 3)
	assert.Equal(t, 0.9, p.requests[0].Temperature)
	assert.Equal(t, 2000, p.requests[0].MaxTokens)
	assert.Contains(t, p.requests[0].Messages[1].Content, "Generate 20 diverse comments")
	assert.Contains(t, p.requests[0].Messages[1].Content, `Title: "Cat piano"`)
	assert.Equal(t, 0.85, p.requests[1].Temperature)
	assert.Equal(t, 500, p.requests[1].MaxTokens)
	assert.Equal(t, 0.8, p.requests[2].Temperature)
	assert.Equal(t, 200, p.requests[2].MaxTokens)
}

func TestGenerateFailures(t *testing.T) {
	t.Run("missing title", func(t *testing.T) {
		_, err := NewGenerator(&scriptedProvider{}, DefaultConfig()).Generate(context.Background(), models.ContentMetadata{ExternalID: "x"})
		assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
	})

	t.Run("no parseable comments", func(t *testing.T) {
		res, err := NewGenerator(&scriptedProvider{initial: "nothing useful"}, DefaultConfig()).Generate(context.Background(), testMeta)
		assert.Nil(t, res)
		assert.Equal(t, apperr.KindProvider, apperr.KindOf(err))
		assert.ErrorIs(t, err, ErrNoComments)
	})

	for _, pass := range []string{"initial", "replies", "nested"} {
		t.Run("provider fails on "+pass, func(t *testing.T) {
			p := &scriptedProvider{
				initial: tagged("positive", "Love it"),
				replies: tagged("neutral", "Same"),
				nested:  tagged("negative", "ok"),
				failOn:  pass,
			}
			res, err := NewGenerator(p, DefaultConfig()).Generate(context.Background(), testMeta)
			assert.Nil(t, res)
			assert.Equal(t, apperr.KindProvider, apperr.KindOf(err))
		})
	}
}

func TestSelectForReplies(t *testing.T) {
	mk := func(s models.Sentiment, id string) *models.CommentNode { return models.NewCommentNode(id, id, s) }
	forest := []*models.CommentNode{
		mk(models.SentimentNegative, "g1"),
		mk(models.SentimentPositive, "p1"),
		mk(models.SentimentNeutral, "n1"),
		mk(models.SentimentPositive, "p2"),
	}

	ids := func(nodes []*models.CommentNode) []string {
		out := []string{}
		for _, n := range nodes {
			out = append(out, n.ID)
		}
		return out
	}

	quota := SentimentMix{Positive: 3, Neutral: 3, Negative: 2}
	assert.Equal(t, []string{"p1", "p2", "n1", "g1"}, ids(SelectForReplies(forest, quota, 8)))
	assert.Equal(t, []string{"p1", "p2"}, ids(SelectForReplies(forest, quota, 2)))
	assert.Empty(t, SelectForReplies(nil, quota, 8))
}

func indexOf(list []string, s string) int {
	for i, v := range list {
		if v == s {
			return i
		}
	}
	return -1
}
