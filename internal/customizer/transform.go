package customizer

import (
	"math"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/chatlings/pkg/models"
)

// Rand is the randomness used by the skeptical and humorous rewrites.
// *math/rand.Rand satisfies it.
type Rand interface {
	Intn(n int) int
	Float64() float64
}

var (
	harshWords   = regexp.MustCompile(`(?i)\b(terrible|awful|bad|worst)\b`)
	praiseWords  = regexp.MustCompile(`(?i)\b(good|great|nice)\b`)
	lukewarm     = regexp.MustCompile(`(?i)\b(not good|meh|okay)\b`)
	trailingMark = regexp.MustCompile(`[.!]$`)

	hedges         = []string{", but...", ", though...", "I guess...", "Maybe, but..."}
	laughMarkers   = []string{"lol", "lmao", "haha"}
	amplifications = map[string]string{"good": "AMAZING", "great": "INCREDIBLE", "nice": "AWESOME"}
)

// DeriveArchetype picks the dominant tone. A dimension at 8 or above wins in
// enthusiasm, criticism, humor order; a flat profile is balanced; otherwise
// the highest dimension wins with the same tie order.
func DeriveArchetype(a models.AttitudeProfile) models.Archetype {
	switch {
	case a.Enthusiasm >= 8:
		return models.ArchetypeEnthusiastic
	case a.Criticism >= 8:
		return models.ArchetypeSkeptical
	case a.Humor >= 8:
		return models.ArchetypeHumorous
	}

	mean := float64(a.Enthusiasm+a.Criticism+a.Humor) / 3
	spread := math.Max(math.Abs(float64(a.Enthusiasm)-mean),
		math.Max(math.Abs(float64(a.Criticism)-mean), math.Abs(float64(a.Humor)-mean)))
	if spread <= 2 {
		return models.ArchetypeBalanced
	}

	top := max(a.Enthusiasm, a.Criticism, a.Humor)
	switch top {
	case a.Enthusiasm:
		return models.ArchetypeEnthusiastic
	case a.Criticism:
		return models.ArchetypeSkeptical
	default:
		return models.ArchetypeHumorous
	}
}

// levelFor is the attitude dimension that drives an archetype's rewrite
func levelFor(archetype models.Archetype, a models.AttitudeProfile) int {
	switch archetype {
	case models.ArchetypeEnthusiastic:
		return a.Enthusiasm
	case models.ArchetypeSkeptical:
		return a.Criticism
	case models.ArchetypeHumorous:
		return a.Humor
	}
	return 0
}

// Transform rewrites one comment for an archetype at the given level
func Transform(text string, sentiment models.Sentiment, archetype models.Archetype, level int, rng Rand) string {
	switch archetype {
	case models.ArchetypeEnthusiastic:
		return enthusiastic(text, sentiment, level)
	case models.ArchetypeSkeptical:
		return skeptical(text, sentiment, level, rng)
	case models.ArchetypeHumorous:
		return humorous(text, level, rng)
	}
	return text
}

func enthusiastic(text string, sentiment models.Sentiment, level int) string {
	switch sentiment {
	case models.SentimentNegative:
		switch {
		case level >= 9:
			return harshWords.ReplaceAllString(text, "not perfect")
		case level >= 7:
			return harshWords.ReplaceAllString(text, "could be better")
		}
	case models.SentimentPositive:
		if level < 9 {
			return text
		}
		text = praiseWords.ReplaceAllStringFunc(text, func(m string) string {
			return amplifications[strings.ToLower(m)]
		})
		if !strings.HasSuffix(text, "!") {
			if level >= 10 {
				text += "!!"
			} else {
				text += "!"
			}
		}
	}
	return text
}

func skeptical(text string, sentiment models.Sentiment, level int, rng Rand) string {
	switch sentiment {
	case models.SentimentPositive:
		if level < 9 {
			return text
		}
		hedge := hedges[rng.Intn(len(hedges))]
		if rng.Float64() > 0.5 {
			return "I guess " + lowerFirst(text)
		}
		return trailingMark.ReplaceAllString(text, hedge)
	case models.SentimentNegative:
		if level < 8 {
			return text
		}
		replacement := "not great"
		if level >= 10 {
			replacement = "pretty disappointing"
		}
		return lukewarm.ReplaceAllString(text, replacement)
	}
	return text
}

func humorous(text string, level int, rng Rand) string {
	if level < 9 {
		return text
	}
	marker := laughMarkers[rng.Intn(len(laughMarkers))]
	lower := strings.ToLower(text)
	if strings.Contains(lower, "lol") || strings.Contains(lower, "lmao") {
		return text
	}
	if rng.Float64() > 0.5 {
		return text + " " + marker
	}
	return marker + " " + lowerFirst(text)
}

func lowerFirst(s string) string {
	r, size := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError {
		return s
	}
	return string(unicode.ToLower(r)) + s[size:]
}
