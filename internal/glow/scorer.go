// Package glow scores a user's attitude settings against the optimal profile
// for a piece of content. Everything here is pure and safe for concurrent use.
package glow

import (
	"math"

	"github.com/chatlings/internal/apperr"
	"github.com/chatlings/pkg/models"
)

const (
	BaseReward   = 2.0
	MaxMatch     = 6.0
	MinReward    = -5
	MaxReward    = 10
	varietyFloor = 3
	varietyLook  = 5
)

// Result is the outcome of one scoring call
type Result struct {
	Reward    int                    `json:"glow"`
	Breakdown models.RewardBreakdown `json:"breakdown"`
}

// Score maps attitude, content context and prior attitudes (oldest first) to
// a clamped integer reward. Out-of-range attitudes are rejected.
func Score(attitude models.AttitudeProfile, ctx models.ContentContext, history []models.AttitudeProfile) (Result, error) {
	if err := attitude.Validate(); err != nil {
		return Result{}, apperr.WrapValidation(apperr.CodeInvalidAttitude, err)
	}

	b := models.RewardBreakdown{Base: BaseReward}
	b.MatchBonus = MatchBonus(attitude, Profile(ctx))
	b.ExtremismPenalty = ExtremismPenalty(attitude)
	b.VarietyBonus = VarietyBonus(history)

	raw := b.Base + b.MatchBonus - b.ExtremismPenalty + b.VarietyBonus
	b.Total = clamp(roundHalfUp(raw), MinReward, MaxReward)

	return Result{Reward: b.Total, Breakdown: b}, nil
}

// MatchBonus is the weighted closeness to profile, scaled to [0,6] and
// rounded to one decimal
func MatchBonus(a models.AttitudeProfile, p models.OptimalProfile) float64 {
	ranges := [3]models.DimensionRange{p.Enthusiasm, p.Criticism, p.Humor}
	values := a.Values()

	var got, possible float64
	for i, r := range ranges {
		got += dimensionScore(values[i], r) * r.Weight
		possible += 10 * r.Weight
	}
	if possible == 0 {
		return 0
	}
	return roundTenth(got / possible * MaxMatch)
}

func dimensionScore(v int, r models.DimensionRange) float64 {
	var d int
	switch {
	case v < r.Min:
		d = r.Min - v
	case v > r.Max:
		d = v - r.Max
	default:
		return 10
	}
	return math.Max(0, 10-float64(d*d)*0.4)
}

// ExtremismPenalty penalises flat profiles (2) and uniformly extreme ones (3).
// The low-variance check runs first, so {10,10,10} gets 2, not 3.
func ExtremismPenalty(a models.AttitudeProfile) float64 {
	v := a.Values()
	if variance(v) < 2 {
		return 2
	}
	allHigh := v[0] >= 8 && v[1] >= 8 && v[2] >= 8
	allLow := v[0] <= 3 && v[1] <= 3 && v[2] <= 3
	if allHigh || allLow {
		return 3
	}
	return 0
}

// VarietyBonus looks at the last five entries of an oldest-first history
func VarietyBonus(history []models.AttitudeProfile) float64 {
	if len(history) < varietyFloor {
		return 0
	}
	recent := history
	if len(recent) > varietyLook {
		recent = recent[len(recent)-varietyLook:]
	}
	distinct := make(map[string]struct{}, len(recent))
	for _, h := range recent {
		distinct[h.Key()] = struct{}{}
	}
	switch {
	case len(distinct) >= 4:
		return 1
	case len(distinct) == 1:
		return -1
	}
	return 0
}

// population variance
func variance(v [3]int) float64 {
	mean := float64(v[0]+v[1]+v[2]) / 3
	var sum float64
	for _, x := range v {
		d := float64(x) - mean
		sum += d * d
	}
	return sum / 3
}

func roundTenth(x float64) float64 {
	return math.Floor(x*10+0.5) / 10
}

// roundHalfUp rounds .5 toward +Inf, so -2.5 becomes -2
func roundHalfUp(x float64) int {
	return int(math.Floor(x + 0.5))
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
