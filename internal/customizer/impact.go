package customizer

import "github.com/chatlings/pkg/models"

const breakdownTextLimit = 50

// Impact sums glow over every node at every depth
func Impact(forest []*models.PersonalizedNode) models.ConversationImpact {
	impact := models.ConversationImpact{
		BySentiment: map[models.Sentiment]models.SentimentImpact{
			models.SentimentPositive: {},
			models.SentimentNeutral:  {},
			models.SentimentNegative: {},
		},
		ByRosterMember: make(map[string]models.RosterImpact),
		Breakdown:      make([]models.ImpactEntry, 0),
	}
	accumulate(forest, &impact)
	return impact
}

func accumulate(nodes []*models.PersonalizedNode, impact *models.ConversationImpact) {
	for _, n := range nodes {
		delta := n.RewardDelta
		impact.TotalRewardDelta += delta

		s := impact.BySentiment[n.Sentiment]
		s.Count++
		s.Reward += delta
		impact.BySentiment[n.Sentiment] = s

		r := impact.ByRosterMember[n.RosterMemberID]
		r.Name = n.RosterName
		r.TotalReward += delta
		r.Comments++
		impact.ByRosterMember[n.RosterMemberID] = r

		impact.Breakdown = append(impact.Breakdown, models.ImpactEntry{
			NodeID:         n.ID,
			RosterMemberID: n.RosterMemberID,
			RosterName:     n.RosterName,
			Sentiment:      n.Sentiment,
			Delta:          delta,
			Text:           preview(n.Text),
		})

		accumulate(n.Children, impact)
	}
}

func preview(s string) string {
	r := []rune(s)
	if len(r) <= breakdownTextLimit {
		return s
	}
	return string(r[:breakdownTextLimit]) + "..."
}
