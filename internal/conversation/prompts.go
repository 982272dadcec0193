package conversation

import (
	"fmt"
	"strings"

	"github.com/chatlings/pkg/models"
)

const (
	initialSystemPrompt = "You are a comment generator that creates realistic video comments. Generate diverse perspectives ranging from highly positive to critical. Include different personality types: enthusiastic fans, critics, humorists, and balanced viewers. Make comments feel natural and varied in length and style."
	repliesSystemPrompt = "You are generating replies to a video comment. Create 2-3 realistic replies that continue the conversation. Replies should have different perspectives: some agreeing, some disagreeing, some adding humor or extra insight."
	nestedSystemPrompt  = "You are generating a nested reply in a video comment thread. Create 1-2 short replies that continue this specific conversation thread."

	promptDescriptionLimit = 200
)

const formatBlock = `Format each comment as:
[SENTIMENT: positive/neutral/negative]
Comment text here`

func buildInitialPrompt(meta models.ContentMetadata, cfg Config) string {
	category := meta.Category
	if category == "" {
		category = "General"
	}
	desc := "N/A"
	if meta.Description != "" {
		desc = truncateRunes(meta.Description, promptDescriptionLimit)
	}
	total := cfg.Mix.Positive + cfg.Mix.Neutral + cfg.Mix.Negative

	var b strings.Builder
	fmt.Fprintf(&b, "Generate %d diverse comments about this video:\n\n", total)
	fmt.Fprintf(&b, "Title: %q\nCategory: %s\nDescription: %s\n\n", meta.Title, category, desc)
	b.WriteString("Requirements:\n")
	fmt.Fprintf(&b, "- Create %d comments with varied perspectives\n", total)
	fmt.Fprintf(&b, "- Include positive (%d comments), neutral (%d comments), and negative (%d comments) sentiments\n", cfg.Mix.Positive, cfg.Mix.Neutral, cfg.Mix.Negative)
	b.WriteString("- Vary comment length from short (1 line) to longer (3-4 lines)\n")
	b.WriteString("- Include enthusiastic fans, critical analysts, jokers and balanced viewers\n")
	b.WriteString("- Use casual comment-section language\n\n")
	b.WriteString(formatBlock)
	b.WriteString("\n\nExample:\n[SENTIMENT: positive]\nThis is exactly what I needed! Great explanation!\n\n[SENTIMENT: negative]\nMeh, nothing new here. Pretty disappointed tbh.\n\n")
	fmt.Fprintf(&b, "Generate all %d comments now:", total)
	return b.String()
}

func buildRepliesPrompt(meta models.ContentMetadata, parent *models.CommentNode) string {
	var b strings.Builder
	b.WriteString("Generate 2-3 replies to this comment:\n\n")
	fmt.Fprintf(&b, "Video: %q\n\nOriginal Comment:\n%q\n(Sentiment: %s)\n\n", meta.Title, parent.Text, parent.Sentiment)
	b.WriteString("Requirements:\n")
	b.WriteString("- Generate 2-3 realistic replies\n")
	b.WriteString("- Some agree, some disagree, some add humor\n")
	b.WriteString("- Keep replies shorter than the original comment\n")
	b.WriteString("- Vary sentiment across replies\n\n")
	b.WriteString(formatBlock)
	return b.String()
}

func buildNestedPrompt(meta models.ContentMetadata, parent, reply *models.CommentNode) string {
	var b strings.Builder
	b.WriteString("Generate 1-2 short nested replies to continue this comment thread:\n\n")
	fmt.Fprintf(&b, "Video: %q\n\nOriginal Comment: %q\n-> Reply: %q\n\n", meta.Title, parent.Text, reply.Text)
	b.WriteString("Keep them brief and natural.\n\n")
	b.WriteString(formatBlock)
	return b.String()
}

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
