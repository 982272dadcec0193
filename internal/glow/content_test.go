package glow

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/chatlings/pkg/models"
)

func TestDetectSubcategory(t *testing.T) {
	tests := []struct {
		title, desc, want string
	}{
		{"iPhone 15 Pro Review", "", SubcategoryReview},
		{"Unboxing the new console", "", SubcategoryReview},
		{"How to bake sourdough", "", SubcategoryTutorial},
		{"Celebrity drama EXPOSED", "", SubcategoryDrama},
		{"My journey to the summit", "", SubcategoryInspirational},
		{"Review of the drama", "", SubcategoryReview},
		{"Cat compilation", "cute cats", ""},
		{"Weekly recap", "step by step breakdown", SubcategoryTutorial},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, DetectSubcategory(tt.title, tt.desc), tt.title)
	}
}

func TestMapCategoryID(t *testing.T) {
	assert.Equal(t, CategoryMusic, MapCategoryID("10"))
	assert.Equal(t, CategoryComedy, MapCategoryID("23"))
	assert.Equal(t, CategoryScienceTech, MapCategoryID(" 28 "))
	assert.Equal(t, CategoryGeneral, MapCategoryID("999"))
	assert.Equal(t, CategoryGeneral, MapCategoryID("music"))
	assert.Equal(t, CategoryGeneral, MapCategoryID(""))
}

func TestAnalyzeContent(t *testing.T) {
	long := strings.Repeat("a", 250)
	ctx := AnalyzeContent(models.ContentMetadata{
		Title:       "Speedrun tips",
		Description: long,
		CategoryID:  "20",
	})
	assert.Equal(t, CategoryGaming, ctx.Category)
	assert.Equal(t, SubcategoryTutorial, ctx.Subcategory)
	assert.Len(t, ctx.Description, descriptionLimit)

	ctx = AnalyzeContent(models.ContentMetadata{Title: "Live set", Category: "music", CategoryID: "20"})
	assert.Equal(t, CategoryMusic, ctx.Category)
	assert.Equal(t, "", ctx.Subcategory)
}
