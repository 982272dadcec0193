package conversation

import (
	"encoding/json"
	"regexp"
	"strings"

	"github.com/kaptinlin/jsonrepair"

	"github.com/chatlings/pkg/models"
)

// ParsedComment is one comment recovered from a provider response
type ParsedComment struct {
	Text      string           `json:"text"`
	Sentiment models.Sentiment `json:"sentiment"`
}

var (
	sentimentTag = regexp.MustCompile(`(?i)\[SENTIMENT:\s*(positive|neutral|negative)\]`)
	anyTag       = regexp.MustCompile(`(?i)\[SENTIMENT:[^\]]*\]`)
	codeFence    = regexp.MustCompile("(?s)^\\s*```[a-zA-Z]*\\s*(.*?)\\s*```\\s*$")
)

// ParseComments reads the tagged format first and falls back to a JSON
// array when the response carries no tags at all.
func ParseComments(text string) []ParsedComment {
	if anyTag.MatchString(text) {
		return ParseTaggedComments(text)
	}
	return parseJSONComments(text)
}

// ParseTaggedComments splits a response on inline sentiment tags. Text on
// the tag line and on following non-blank lines is joined with spaces. A tag
// with an unknown label closes the current comment and its body is dropped.
func ParseTaggedComments(text string) []ParsedComment {
	out := make([]ParsedComment, 0)
	var current models.Sentiment
	var buf []string

	flush := func() {
		body := strings.TrimSpace(strings.Join(buf, " "))
		if current != "" && body != "" {
			out = append(out, ParsedComment{Text: body, Sentiment: current})
		}
		buf = buf[:0]
	}

	for _, line := range strings.Split(text, "\n") {
		if loc := anyTag.FindStringIndex(line); loc != nil {
			flush()
			current = ""
			if m := sentimentTag.FindStringSubmatch(line[loc[0]:loc[1]]); m != nil {
				current, _ = models.ParseSentiment(m[1])
			}
			rest := strings.TrimSpace(line[:loc[0]] + line[loc[1]:])
			if rest != "" {
				buf = append(buf, rest)
			}
			continue
		}
		if t := strings.TrimSpace(line); t != "" && current != "" {
			buf = append(buf, t)
		}
	}
	flush()
	return out
}

type jsonComment struct {
	Sentiment string `json:"sentiment"`
	Text      string `json:"text"`
	Comment   string `json:"comment"`
}

func parseJSONComments(text string) []ParsedComment {
	raw := strings.TrimSpace(text)
	if m := codeFence.FindStringSubmatch(raw); m != nil {
		raw = m[1]
	}
	start := strings.IndexAny(raw, "[{")
	if start < 0 {
		return []ParsedComment{}
	}
	raw = raw[start:]

	repaired, err := jsonrepair.JSONRepair(raw)
	if err != nil {
		return []ParsedComment{}
	}

	var items []jsonComment
	if err := json.Unmarshal([]byte(repaired), &items); err != nil {
		var wrapped struct {
			Comments []jsonComment `json:"comments"`
			Replies  []jsonComment `json:"replies"`
		}
		if err := json.Unmarshal([]byte(repaired), &wrapped); err != nil {
			return []ParsedComment{}
		}
		items = append(wrapped.Comments, wrapped.Replies...)
	}

	out := make([]ParsedComment, 0, len(items))
	for _, it := range items {
		s, ok := models.ParseSentiment(it.Sentiment)
		body := strings.TrimSpace(it.Text)
		if body == "" {
			body = strings.TrimSpace(it.Comment)
		}
		if !ok || body == "" {
			continue
		}
		out = append(out, ParsedComment{Text: body, Sentiment: s})
	}
	return out
}
