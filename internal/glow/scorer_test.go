package glow

import (
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chatlings/internal/apperr"
	"github.com/chatlings/pkg/models"
)

func att(e, c, h int) models.AttitudeProfile {
	return models.AttitudeProfile{Enthusiasm: e, Criticism: c, Humor: h}
}

func TestProfileWeightsSumToOne(t *testing.T) {
	for name, p := range profiles {
		sum := p.Enthusiasm.Weight + p.Criticism.Weight + p.Humor.Weight
		assert.InDelta(t, 1.0, sum, 1e-9, name)
	}
}

func TestScoreAllInRange(t *testing.T) {
	res, err := Score(att(9, 2, 8), models.ContentContext{Category: CategoryMusic}, nil)
	require.NoError(t, err)

	assert.Equal(t, 6.0, res.Breakdown.MatchBonus)
	assert.Equal(t, 0.0, res.Breakdown.ExtremismPenalty)
	assert.Equal(t, 0.0, res.Breakdown.VarietyBonus)
	assert.Equal(t, 8, res.Reward)
	assert.Equal(t, res.Reward, res.Breakdown.Total)
}

func TestScoreRejectsOutOfRange(t *testing.T) {
	for _, a := range []models.AttitudeProfile{att(0, 5, 5), att(5, 11, 5), att(5, 5, 0)} {
		_, err := Score(a, models.ContentContext{Category: CategoryMusic}, nil)
		require.Error(t, err)
		assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
		assert.Equal(t, apperr.CodeInvalidAttitude, apperr.CodeOf(err))
	}
}

func TestScoreDistantAttitude(t *testing.T) {
	// MUSIC: E 1 vs [7,10] -> 0, C 10 vs [1,4] -> 0, H 1 vs [5,10] -> 3.6
	res, err := Score(att(1, 10, 1), models.ContentContext{Category: CategoryMusic}, nil)
	require.NoError(t, err)

	assert.Equal(t, 0.9, res.Breakdown.MatchBonus)
	assert.Equal(t, 0.0, res.Breakdown.ExtremismPenalty)
	assert.Equal(t, 3, res.Reward)
}

func TestSubcategoryTakesPrecedence(t *testing.T) {
	ctx := models.ContentContext{Category: CategoryMusic, Subcategory: SubcategoryReview}
	res, err := Score(att(5, 8, 3), ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, 6.0, res.Breakdown.MatchBonus)
	assert.Equal(t, 8, res.Reward)

	res, err = Score(att(5, 8, 3), models.ContentContext{Category: CategoryMusic}, nil)
	require.NoError(t, err)
	assert.Equal(t, 4.5, res.Breakdown.MatchBonus)
	assert.Equal(t, 7, res.Reward)
}

func TestUnknownCategoryFallsBackToGeneral(t *testing.T) {
	ctx := models.ContentContext{Category: "UNKNOWN", Subcategory: "NOPE"}
	assert.Equal(t, profiles[CategoryGeneral], Profile(ctx))

	res, err := Score(att(5, 5, 5), ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, 6.0, res.Breakdown.MatchBonus)
	assert.Equal(t, 2.0, res.Breakdown.ExtremismPenalty)
	assert.Equal(t, 6, res.Reward)
}

func TestExtremismPenalty(t *testing.T) {
	tests := []struct {
		name string
		a    models.AttitudeProfile
		want float64
	}{
		{"flat middle", att(5, 5, 5), 2},
		{"flat max still low variance", att(10, 10, 10), 2},
		{"clustered low", att(1, 2, 3), 2},
		{"clustered high", att(8, 8, 10), 2},
		{"spread", att(9, 2, 8), 0},
		{"moderate spread", att(3, 6, 9), 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ExtremismPenalty(tt.a))
		})
	}
}

func TestVarietyBonus(t *testing.T) {
	same := []models.AttitudeProfile{att(5, 5, 5), att(5, 5, 5), att(5, 5, 5), att(5, 5, 5), att(5, 5, 5)}
	assert.Equal(t, -1.0, VarietyBonus(same))

	varied := []models.AttitudeProfile{att(1, 2, 3), att(4, 5, 6), att(7, 8, 9), att(2, 2, 2), att(1, 2, 3)}
	assert.Equal(t, 1.0, VarietyBonus(varied))

	assert.Equal(t, 0.0, VarietyBonus([]models.AttitudeProfile{att(1, 1, 1), att(2, 2, 2)}))
	assert.Equal(t, 0.0, VarietyBonus(nil))

	two := []models.AttitudeProfile{att(1, 1, 1), att(2, 2, 2), att(1, 1, 1)}
	assert.Equal(t, 0.0, VarietyBonus(two))

	// only the last five count
	older := append([]models.AttitudeProfile{att(9, 9, 9)}, same...)
	assert.Equal(t, -1.0, VarietyBonus(older))
}

func TestVarietyAffectsReward(t *testing.T) {
	same := []models.AttitudeProfile{att(9, 2, 8), att(9, 2, 8), att(9, 2, 8)}
	res, err := Score(att(9, 2, 8), models.ContentContext{Category: CategoryMusic}, same)
	require.NoError(t, err)
	assert.Equal(t, -1.0, res.Breakdown.VarietyBonus)
	assert.Equal(t, 7, res.Reward)
}

func TestRoundingAndClamp(t *testing.T) {
	assert.Equal(t, 3, roundHalfUp(2.5))
	assert.Equal(t, -2, roundHalfUp(-2.5))
	assert.Equal(t, 9, roundHalfUp(8.9))
	assert.Equal(t, 10, clamp(14, MinReward, MaxReward))
	assert.Equal(t, -5, clamp(-9, MinReward, MaxReward))
	assert.Equal(t, 4.5, roundTenth(4.464))
	assert.Equal(t, 0.9, roundTenth(0.864))
}

func TestRewardAlwaysInBounds(t *testing.T) {
	contexts := []models.ContentContext{
		{Category: CategoryMusic},
		{Category: CategoryNewsPolitics, Subcategory: SubcategoryDrama},
		{Category: "whatever"},
	}
	for _, ctx := range contexts {
		for e := 1; e <= 10; e++ {
			for c := 1; c <= 10; c++ {
				for h := 1; h <= 10; h++ {
					res, err := Score(att(e, c, h), ctx, nil)
					require.NoError(t, err)
					assert.GreaterOrEqual(t, res.Reward, MinReward)
					assert.LessOrEqual(t, res.Reward, MaxReward)
					assert.GreaterOrEqual(t, res.Breakdown.MatchBonus, 0.0)
					assert.LessOrEqual(t, res.Breakdown.MatchBonus, MaxMatch)
					assert.Equal(t, res.Breakdown.MatchBonus, math.Round(res.Breakdown.MatchBonus*10)/10)
				}
			}
		}
	}
}

func TestOptimalRangesAndHint(t *testing.T) {
	r := OptimalRanges(models.ContentContext{Category: CategoryComedy})
	assert.Equal(t, models.OptimalRanges{
		EnthusiasmMin: 6, EnthusiasmMax: 10,
		CriticismMin: 1, CriticismMax: 5,
		HumorMin: 8, HumorMax: 10,
	}, r)

	assert.Equal(t, "Critical analysis works well here", Hint(models.ContentContext{Category: CategoryGaming, Subcategory: SubcategoryReview}))
	assert.Equal(t, "Enthusiastic and playful works great", Hint(models.ContentContext{Category: CategoryGaming}))
	assert.Equal(t, "Adapt your approach to the content", Hint(models.ContentContext{Category: CategoryEntertainment}))
}

func TestPresetsAreValid(t *testing.T) {
	presets := Presets()
	require.Len(t, presets, 6)
	for _, p := range presets {
		assert.NoError(t, p.Attitude.Validate(), p.Name)
		assert.False(t, strings.TrimSpace(p.BestFor) == "", p.Name)
	}
}
