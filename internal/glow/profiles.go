package glow

import "github.com/chatlings/pkg/models"

// Category identifiers. Subcategories share the namespace and take
// precedence over the platform category when a profile exists for them.
const (
	CategoryMusic         = "MUSIC"
	CategoryComedy        = "COMEDY"
	CategoryGaming        = "GAMING"
	CategoryEntertainment = "ENTERTAINMENT"
	CategoryEducation     = "EDUCATION"
	CategoryScienceTech   = "SCIENCE_TECH"
	CategoryHowToStyle    = "HOWTO_STYLE"
	CategoryNewsPolitics  = "NEWS_POLITICS"
	CategoryPeopleBlogs   = "PEOPLE_BLOGS"
	CategorySports        = "SPORTS"
	CategoryTravelEvents  = "TRAVEL_EVENTS"
	CategoryPetsAnimals   = "PETS_ANIMALS"
	CategoryGeneral       = "GENERAL"

	SubcategoryReview        = "REVIEW"
	SubcategoryTutorial      = "TUTORIAL"
	SubcategoryDrama         = "DRAMA"
	SubcategoryInspirational = "INSPIRATIONAL"
)

func dim(min, max int, weight float64) models.DimensionRange {
	return models.DimensionRange{Min: min, Max: max, Weight: weight}
}

// profiles is static configuration; weights of every entry sum to 1.0
var profiles = map[string]models.OptimalProfile{
	CategoryMusic:            {Enthusiasm: dim(7, 10, 0.4), Criticism: dim(1, 4, 0.2), Humor: dim(5, 10, 0.4)},
	CategoryComedy:           {Enthusiasm: dim(6, 10, 0.3), Criticism: dim(1, 5, 0.2), Humor: dim(8, 10, 0.5)},
	CategoryGaming:           {Enthusiasm: dim(6, 10, 0.35), Criticism: dim(2, 6, 0.25), Humor: dim(5, 9, 0.4)},
	CategoryEntertainment:    {Enthusiasm: dim(7, 10, 0.4), Criticism: dim(2, 5, 0.2), Humor: dim(6, 10, 0.4)},
	SubcategoryReview:        {Enthusiasm: dim(3, 7, 0.2), Criticism: dim(6, 10, 0.5), Humor: dim(2, 5, 0.3)},
	CategoryEducation:        {Enthusiasm: dim(5, 8, 0.3), Criticism: dim(4, 7, 0.4), Humor: dim(3, 6, 0.3)},
	CategoryScienceTech:      {Enthusiasm: dim(5, 8, 0.3), Criticism: dim(5, 9, 0.4), Humor: dim(2, 5, 0.3)},
	CategoryHowToStyle:       {Enthusiasm: dim(6, 9, 0.35), Criticism: dim(4, 7, 0.35), Humor: dim(3, 6, 0.3)},
	CategoryNewsPolitics:     {Enthusiasm: dim(4, 7, 0.3), Criticism: dim(6, 9, 0.4), Humor: dim(2, 5, 0.3)},
	CategoryPeopleBlogs:      {Enthusiasm: dim(6, 9, 0.35), Criticism: dim(3, 6, 0.3), Humor: dim(5, 8, 0.35)},
	SubcategoryDrama:         {Enthusiasm: dim(2, 6, 0.25), Criticism: dim(7, 10, 0.45), Humor: dim(4, 8, 0.3)},
	SubcategoryInspirational: {Enthusiasm: dim(8, 10, 0.5), Criticism: dim(1, 3, 0.2), Humor: dim(3, 7, 0.3)},
	SubcategoryTutorial:      {Enthusiasm: dim(5, 8, 0.3), Criticism: dim(5, 8, 0.4), Humor: dim(2, 5, 0.3)},
	CategorySports:           {Enthusiasm: dim(7, 10, 0.4), Criticism: dim(5, 9, 0.35), Humor: dim(4, 8, 0.25)},
	CategoryTravelEvents:     {Enthusiasm: dim(7, 10, 0.4), Criticism: dim(2, 5, 0.25), Humor: dim(5, 8, 0.35)},
	CategoryPetsAnimals:      {Enthusiasm: dim(8, 10, 0.45), Criticism: dim(1, 4, 0.2), Humor: dim(6, 10, 0.35)},
	CategoryGeneral:          {Enthusiasm: dim(5, 8, 0.33), Criticism: dim(4, 7, 0.33), Humor: dim(4, 7, 0.34)},
}

var hints = map[string]string{
	SubcategoryReview:        "Critical analysis works well here",
	CategoryComedy:           "Humor and enthusiasm shine in comedy",
	CategoryMusic:            "Let your enthusiasm flow!",
	CategoryEducation:        "Balanced, thoughtful approach recommended",
	SubcategoryDrama:         "Strong opinions and criticism valued",
	SubcategoryInspirational: "Positivity and enthusiasm excel",
	SubcategoryTutorial:      "Constructive criticism is appreciated",
	CategorySports:           "Passion and debate encouraged",
	CategoryGaming:           "Enthusiastic and playful works great",
	CategoryScienceTech:      "Analytical thinking appreciated",
	CategoryNewsPolitics:     "Balanced perspective valued",
	CategoryPetsAnimals:      "Enthusiasm for cute content!",
	CategoryGeneral:          "Adapt your approach to the content",
}

// profileKey resolves subcategory, then category, then GENERAL
func profileKey(ctx models.ContentContext) string {
	if ctx.Subcategory != "" {
		if _, ok := profiles[ctx.Subcategory]; ok {
			return ctx.Subcategory
		}
	}
	if _, ok := profiles[ctx.Category]; ok {
		return ctx.Category
	}
	return CategoryGeneral
}

// Profile returns the optimal profile that applies to ctx
func Profile(ctx models.ContentContext) models.OptimalProfile {
	return profiles[profileKey(ctx)]
}

// OptimalRanges returns the display ranges that apply to ctx
func OptimalRanges(ctx models.ContentContext) models.OptimalRanges {
	p := Profile(ctx)
	return models.OptimalRanges{
		EnthusiasmMin: p.Enthusiasm.Min,
		EnthusiasmMax: p.Enthusiasm.Max,
		CriticismMin:  p.Criticism.Min,
		CriticismMax:  p.Criticism.Max,
		HumorMin:      p.Humor.Min,
		HumorMax:      p.Humor.Max,
	}
}

// Hint returns a short tip for ctx, using the same lookup order as Profile
func Hint(ctx models.ContentContext) string {
	if h, ok := hints[profileKey(ctx)]; ok {
		return h
	}
	return hints[CategoryGeneral]
}

// Preset is a named attitude users can start from
type Preset struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description"`
	Attitude    models.AttitudeProfile `json:"attitude"`
	BestFor     string                 `json:"best_for"`
}

// Presets returns the built-in attitude presets
func Presets() []Preset {
	return []Preset{
		{"Optimistic Fan", "Always excited and supportive", models.AttitudeProfile{Enthusiasm: 9, Criticism: 2, Humor: 7}, "Music, Comedy, Inspirational"},
		{"Critical Analyst", "Thoughtful and analytical", models.AttitudeProfile{Enthusiasm: 5, Criticism: 8, Humor: 3}, "Reviews, Tech, Educational"},
		{"Class Clown", "Here for the laughs", models.AttitudeProfile{Enthusiasm: 7, Criticism: 2, Humor: 10}, "Comedy, Entertainment, Gaming"},
		{"Balanced Observer", "Fair and measured", models.AttitudeProfile{Enthusiasm: 6, Criticism: 6, Humor: 5}, "General content, Mixed topics"},
		{"Passionate Debater", "Strong opinions, loves discussion", models.AttitudeProfile{Enthusiasm: 8, Criticism: 7, Humor: 5}, "Sports, Drama, News"},
		{"Skeptical Viewer", "Questions everything", models.AttitudeProfile{Enthusiasm: 4, Criticism: 9, Humor: 4}, "Reviews, Controversy, Analysis"},
	}
}
