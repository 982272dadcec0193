// Package customizer turns a shared base conversation into one user's
// version: roster members are assigned to comments, text is rewritten for
// the user's attitude, and the passive glow reward is summed.
package customizer

import (
	"math/rand"
	"sync"
	"time"

	"github.com/chatlings/internal/apperr"
	"github.com/chatlings/pkg/models"
)

// MaxRoster is the number of active team members that take part
const MaxRoster = 10

// Sentiment rewards for passive viewing; the sum is not clamped
var sentimentReward = map[models.Sentiment]int{
	models.SentimentPositive: 2,
	models.SentimentNeutral:  1,
	models.SentimentNegative: -1,
}

// RewardFor is the glow delta of one comment
func RewardFor(s models.Sentiment) int { return sentimentReward[s] }

type Customizer struct {
	mu  sync.Mutex
	rng Rand
	now func() time.Time
}

func New() *Customizer {
	return NewWithRand(rand.New(rand.NewSource(time.Now().UnixNano())))
}

// NewWithRand uses rng for the randomised rewrites
func NewWithRand(rng Rand) *Customizer {
	return &Customizer{rng: rng, now: time.Now}
}

// Personalize builds userID's version of base. It does not check for an
// existing personalization; callers deduplicate.
func (c *Customizer) Personalize(base *models.BaseConversation, roster []models.RosterMember, userID string, attitude models.AttitudeProfile) (*models.PersonalizedConversation, error) {
	if err := attitude.Validate(); err != nil {
		return nil, apperr.WrapValidation(apperr.CodeInvalidAttitude, err)
	}
	if len(roster) == 0 {
		return nil, apperr.Validation(apperr.CodeNoRoster, "user has no active chatlings")
	}
	if base == nil {
		return nil, apperr.Validation(apperr.CodeMissingField, "base conversation is required")
	}
	if len(roster) > MaxRoster {
		roster = roster[:MaxRoster]
	}

	archetype := DeriveArchetype(attitude)
	level := levelFor(archetype, attitude)

	c.mu.Lock()
	counter := 0
	forest := c.personalizeNodes(base.Forest, roster, &counter, archetype, level)
	c.mu.Unlock()

	impact := Impact(forest)
	ids := make([]string, 0, len(roster))
	for _, m := range roster {
		ids = append(ids, m.ID)
	}

	return &models.PersonalizedConversation{
		BaseConversationID: base.ID,
		UserID:             userID,
		AssignedRosterIDs:  ids,
		Attitude:           attitude,
		Archetype:          archetype,
		CustomizedForest:   forest,
		Impact:             impact,
		TotalRewardDelta:   impact.TotalRewardDelta,
		ViewedAt:           c.now(),
	}, nil
}

// personalizeNodes walks in document order; counter is shared by the whole
// traversal so assignment never restarts at a new level or branch
func (c *Customizer) personalizeNodes(nodes []*models.CommentNode, roster []models.RosterMember, counter *int, archetype models.Archetype, level int) []*models.PersonalizedNode {
	out := make([]*models.PersonalizedNode, 0, len(nodes))
	for _, n := range nodes {
		if n == nil {
			continue
		}
		member := roster[*counter%len(roster)]
		*counter++

		pn := &models.PersonalizedNode{
			ID:             n.ID,
			OriginalText:   n.Text,
			Text:           Transform(n.Text, n.Sentiment, archetype, level, c.rng),
			Sentiment:      n.Sentiment,
			RosterMemberID: member.ID,
			RosterName:     member.Name,
			RewardDelta:    RewardFor(n.Sentiment),
		}
		pn.Children = c.personalizeNodes(n.Children, roster, counter, archetype, level)
		out = append(out, pn)
	}
	return out
}
