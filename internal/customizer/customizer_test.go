package customizer

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chatlings/internal/apperr"
	"github.com/chatlings/pkg/models"
)

type stubRand struct {
	n int
	f float64
}

func (s stubRand) Intn(int) int { return s.n }
func (s stubRand) Float64() float64 { return s.f }

func att(e, c, h int) models.AttitudeProfile {
	return models.AttitudeProfile{Enthusiasm: e, Criticism: c, Humor: h}
}

func TestDeriveArchetype(t *testing.T) {
	tests := []struct {
		in   models.AttitudeProfile
		want models.Archetype
	}{
		{att(8, 9, 9), models.ArchetypeEnthusiastic},
		{att(5, 9, 9), models.ArchetypeSkeptical},
		{att(5, 5, 8), models.ArchetypeHumorous},
		{att(5, 5, 5), models.ArchetypeBalanced},
		{att(4, 6, 2), models.ArchetypeBalanced},
		{att(7, 2, 2), models.ArchetypeEnthusiastic},
		{att(2, 7, 2), models.ArchetypeSkeptical},
		{att(1, 1, 7), models.ArchetypeHumorous},
		{att(7, 7, 1), models.ArchetypeEnthusiastic},
		{att(1, 7, 7), models.ArchetypeSkeptical},
	}
	for _, tt := range tests {
		t.Run(tt.in.Key(), func(t *testing.T) {
			assert.Equal(t, tt.want, DeriveArchetype(tt.in))
		})
	}
}

func TestTransformEnthusiastic(t *testing.T) {
	e := models.ArchetypeEnthusiastic
	r := stubRand{}
	assert.Equal(t, "This is not perfect and the not perfect", Transform("This is terrible and the worst", models.SentimentNegative, e, 9, r))
	assert.Equal(t, "could be better take", Transform("Bad take", models.SentimentNegative, e, 7, r))
	assert.Equal(t, "Bad take", Transform("Bad take", models.SentimentNegative, e, 6, r))
	assert.Equal(t, "badge is not perfect", Transform("badge is bad", models.SentimentNegative, e, 9, r))

	assert.Equal(t, "AMAZING stuff, AWESOME!", Transform("Good stuff, nice", models.SentimentPositive, e, 9, r))
	assert.Equal(t, "INCREDIBLE!!", Transform("great", models.SentimentPositive, e, 10, r))
	assert.Equal(t, "INCREDIBLE!", Transform("Great!", models.SentimentPositive, e, 10, r))
	assert.Equal(t, "Good stuff", Transform("Good stuff", models.SentimentPositive, e, 8, r))
	assert.Equal(t, "It was bad", Transform("It was bad", models.SentimentNeutral, e, 10, r))
}

func TestTransformSkeptical(t *testing.T) {
	s := models.ArchetypeSkeptical
	assert.Equal(t, "I guess this rocks.", Transform("This rocks.", models.SentimentPositive, s, 9, stubRand{f: 0.9}))
	assert.Equal(t, "This rocks, but...", Transform("This rocks.", models.SentimentPositive, s, 9, stubRand{n: 0, f: 0.2}))
	assert.Equal(t, "This rocksMaybe, but...", Transform("This rocks!", models.SentimentPositive, s, 9, stubRand{n: 3, f: 0.2}))
	assert.Equal(t, "This rocks", Transform("This rocks", models.SentimentPositive, s, 9, stubRand{f: 0.2}))
	assert.Equal(t, "This rocks.", Transform("This rocks.", models.SentimentPositive, s, 8, stubRand{f: 0.9}))

	assert.Equal(t, "not great, it was not great", Transform("Meh, it was okay", models.SentimentNegative, s, 8, stubRand{}))
	assert.Equal(t, "pretty disappointing", Transform("not good", models.SentimentNegative, s, 10, stubRand{}))
	assert.Equal(t, "meh", Transform("meh", models.SentimentNegative, s, 7, stubRand{}))
}

func TestTransformHumorous(t *testing.T) {
	h := models.ArchetypeHumorous
	assert.Equal(t, "Nice one haha", Transform("Nice one", models.SentimentPositive, h, 9, stubRand{n: 2, f: 0.9}))
	assert.Equal(t, "lol nice one", Transform("Nice one", models.SentimentNeutral, h, 9, stubRand{n: 0, f: 0.1}))
	assert.Equal(t, "Nice one LOL", Transform("Nice one LOL", models.SentimentNegative, h, 10, stubRand{n: 1, f: 0.9}))
	assert.Equal(t, "Nice one", Transform("Nice one", models.SentimentPositive, h, 8, stubRand{f: 0.9}))
}

func TestTransformBalancedIsIdentity(t *testing.T) {
	assert.Equal(t, "This is terrible", Transform("This is terrible", models.SentimentNegative, models.ArchetypeBalanced, 10, stubRand{}))
}

func sampleBase() *models.BaseConversation {
	a := models.NewCommentNode("A", "Love this", models.SentimentPositive)
	b := models.NewCommentNode("B", "Fair point", models.SentimentNeutral)
	c := models.NewCommentNode("C", "This is bad", models.SentimentNegative)
	d := models.NewCommentNode("D", "Good stuff", models.SentimentPositive)
	e := models.NewCommentNode("E", "Worst video", models.SentimentNegative)
	b.Children = append(b.Children, c)
	a.Children = append(a.Children, b, d)
	return &models.BaseConversation{ID: 7, ContentID: "v1", Forest: []*models.CommentNode{a, e}}
}

func twoRoster() []models.RosterMember {
	return []models.RosterMember{{ID: "r1", Name: "Blip"}, {ID: "r2", Name: "Zorp"}}
}

func TestPersonalizeAssignsInDocumentOrder(t *testing.T) {
	pc, err := NewWithRand(stubRand{}).Personalize(sampleBase(), twoRoster(), "u1", att(5, 5, 5))
	require.NoError(t, err)

	var got []string
	var walk func([]*models.PersonalizedNode)
	walk = func(nodes []*models.PersonalizedNode) {
		for _, n := range nodes {
			got = append(got, n.ID+":"+n.RosterMemberID)
			walk(n.Children)
		}
	}
	walk(pc.CustomizedForest)
	assert.Equal(t, []string{"A:r1", "B:r2", "C:r1", "D:r2", "E:r1"}, got)

	assert.Equal(t, int64(7), pc.BaseConversationID)
	assert.Equal(t, "u1", pc.UserID)
	assert.Equal(t, []string{"r1", "r2"}, pc.AssignedRosterIDs)
	assert.Equal(t, models.ArchetypeBalanced, pc.Archetype)
	assert.Equal(t, "Love this", pc.CustomizedForest[0].Text)
	assert.NotNil(t, pc.CustomizedForest[1].Children)
}

func TestPersonalizeImpact(t *testing.T) {
	pc, err := NewWithRand(stubRand{}).Personalize(sampleBase(), twoRoster(), "u1", att(5, 5, 5))
	require.NoError(t, err)

	assert.Equal(t, 3, pc.TotalRewardDelta)
	assert.Equal(t, 3, pc.Impact.TotalRewardDelta)
	assert.Equal(t, models.SentimentImpact{Count: 2, Reward: 4}, pc.Impact.BySentiment[models.SentimentPositive])
	assert.Equal(t, models.SentimentImpact{Count: 1, Reward: 1}, pc.Impact.BySentiment[models.SentimentNeutral])
	assert.Equal(t, models.SentimentImpact{Count: 2, Reward: -2}, pc.Impact.BySentiment[models.SentimentNegative])
	assert.Equal(t, models.RosterImpact{Name: "Blip", TotalReward: 0, Comments: 3}, pc.Impact.ByRosterMember["r1"])
	assert.Equal(t, models.RosterImpact{Name: "Zorp", TotalReward: 3, Comments: 2}, pc.Impact.ByRosterMember["r2"])

	require.Len(t, pc.Impact.Breakdown, 5)
	assert.Equal(t, models.ImpactEntry{NodeID: "C", RosterMemberID: "r1", RosterName: "Blip", Sentiment: models.SentimentNegative, Delta: -1, Text: "This is bad"}, pc.Impact.Breakdown[2])
}

func TestPersonalizeRewardIsNotClamped(t *testing.T) {
	forest := make([]*models.CommentNode, 0, 20)
	for i := 0; i < 20; i++ {
		forest = append(forest, models.NewCommentNode(fmt.Sprint(i), "yay", models.SentimentPositive))
	}
	pc, err := NewWithRand(stubRand{}).Personalize(&models.BaseConversation{Forest: forest}, twoRoster(), "u1", att(5, 5, 5))
	require.NoError(t, err)
	assert.Equal(t, 40, pc.TotalRewardDelta)
}

func TestPersonalizeRewritesFromOriginalText(t *testing.T) {
	base := sampleBase()
	pc, err := NewWithRand(stubRand{}).Personalize(base, twoRoster(), "u1", att(10, 1, 1))
	require.NoError(t, err)

	d := pc.CustomizedForest[0].Children[1]
	assert.Equal(t, "Good stuff", d.OriginalText)
	assert.Equal(t, "AMAZING stuff!!", d.Text)
	e := pc.CustomizedForest[1]
	assert.Equal(t, "not perfect video", e.Text)

	assert.Equal(t, "Good stuff", base.Forest[0].Children[1].Text)

	again, err := NewWithRand(stubRand{}).Personalize(base, twoRoster(), "u1", att(10, 1, 1))
	require.NoError(t, err)
	assert.Equal(t, d.Text, again.CustomizedForest[0].Children[1].Text)
}

func TestPersonalizeBreakdownTruncatesText(t *testing.T) {
	long := strings.Repeat("x", 60)
	base := &models.BaseConversation{Forest: []*models.CommentNode{models.NewCommentNode("1", long, models.SentimentNeutral)}}
	pc, err := NewWithRand(stubRand{}).Personalize(base, twoRoster(), "u1", att(5, 5, 5))
	require.NoError(t, err)
	assert.Equal(t, strings.Repeat("x", 50)+"...", pc.Impact.Breakdown[0].Text)
	assert.Equal(t, long, pc.CustomizedForest[0].Text)
}

func TestPersonalizeCapsRoster(t *testing.T) {
	roster := make([]models.RosterMember, 12)
	for i := range roster {
		roster[i] = models.RosterMember{ID: fmt.Sprintf("r%d", i)}
	}
	pc, err := NewWithRand(stubRand{}).Personalize(sampleBase(), roster, "u1", att(5, 5, 5))
	require.NoError(t, err)
	assert.Len(t, pc.AssignedRosterIDs, MaxRoster)
}

func TestPersonalizeRejectsBadInput(t *testing.T) {
	c := NewWithRand(stubRand{})

	_, err := c.Personalize(sampleBase(), twoRoster(), "u1", att(0, 5, 5))
	assert.Equal(t, apperr.CodeInvalidAttitude, apperr.CodeOf(err))
	assert.ErrorIs(t, err, models.ErrInvalidAttitude)

	_, err = c.Personalize(sampleBase(), nil, "u1", att(5, 5, 5))
	assert.Equal(t, apperr.CodeNoRoster, apperr.CodeOf(err))
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
}
