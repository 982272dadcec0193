package glow

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/chatlings/pkg/models"
)

const descriptionLimit = 200

var subcategoryPatterns = []struct {
	name string
	re   *regexp.Regexp
}{
	{SubcategoryReview, regexp.MustCompile(`(?i)(review|unboxing|comparison|vs|tested|first look)`)},
	{SubcategoryTutorial, regexp.MustCompile(`(?i)(tutorial|how to|guide|learn|tips|step by step)`)},
	{SubcategoryDrama, regexp.MustCompile(`(?i)(drama|exposed|shocking|controversy|scandal|beef)`)},
	{SubcategoryInspirational, regexp.MustCompile(`(?i)(inspiring|motivational|success|journey|story|overcome)`)},
}

var platformCategories = map[int]string{
	10: CategoryMusic,
	15: CategoryPetsAnimals,
	17: CategorySports,
	19: CategoryTravelEvents,
	20: CategoryGaming,
	22: CategoryPeopleBlogs,
	23: CategoryComedy,
	24: CategoryEntertainment,
	25: CategoryNewsPolitics,
	26: CategoryHowToStyle,
	27: CategoryEducation,
	28: CategoryScienceTech,
}

// DetectSubcategory returns the first matching keyword family, or ""
func DetectSubcategory(title, description string) string {
	text := title + " " + description
	for _, p := range subcategoryPatterns {
		if p.re.MatchString(text) {
			return p.name
		}
	}
	return ""
}

// MapCategoryID maps a platform numeric category id to a category name
func MapCategoryID(id string) string {
	n, err := strconv.Atoi(strings.TrimSpace(id))
	if err != nil {
		return CategoryGeneral
	}
	if c, ok := platformCategories[n]; ok {
		return c
	}
	return CategoryGeneral
}

// AnalyzeContent derives the scoring context for a content item. An explicit
// category wins over the numeric platform id.
func AnalyzeContent(meta models.ContentMetadata) models.ContentContext {
	category := strings.ToUpper(strings.TrimSpace(meta.Category))
	if _, ok := profiles[category]; !ok || category == "" {
		category = MapCategoryID(meta.CategoryID)
	}

	desc := meta.Description
	if r := []rune(desc); len(r) > descriptionLimit {
		desc = string(r[:descriptionLimit])
	}

	return models.ContentContext{
		Category:    category,
		Subcategory: DetectSubcategory(meta.Title, meta.Description),
		Title:       meta.Title,
		Description: desc,
	}
}
