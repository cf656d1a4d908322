package progress

import (
	"testing"

	"github.com/debemdeboas/the-pantry/internal/model"
)

func completeBasicInfo() model.BasicInfo {
	return model.BasicInfo{
		Title:       "Soup",
		CuisineType: "French",
		CourseType:  "Starter",
		PrepTime:    10,
		CookTime:    30,
		Servings:    4,
	}
}

func TestCompute(t *testing.T) {
	testCases := []struct {
		name     string
		content  model.RecipeContent
		expected model.ProgressFlags
	}{
		{
			name:     "Empty content",
			content:  model.RecipeContent{},
			expected: model.ProgressFlags{},
		},
		{
			name:     "Title alone is not enough",
			content:  model.RecipeContent{BasicInfo: model.BasicInfo{Title: "Soup"}},
			expected: model.ProgressFlags{},
		},
		{
			name:     "All six basic fields",
			content:  model.RecipeContent{BasicInfo: completeBasicInfo()},
			expected: model.ProgressFlags{BasicInfo: true},
		},
		{
			name: "Whitespace title does not count",
			content: func() model.RecipeContent {
				b := completeBasicInfo()
				b.Title = "   "
				return model.RecipeContent{BasicInfo: b}
			}(),
			expected: model.ProgressFlags{},
		},
		{
			name: "Zero servings does not count",
			content: func() model.RecipeContent {
				b := completeBasicInfo()
				b.Servings = 0
				return model.RecipeContent{BasicInfo: b}
			}(),
			expected: model.ProgressFlags{},
		},
		{
			name:     "One ingredient",
			content:  model.RecipeContent{Ingredients: []model.Ingredient{{Name: "Leek"}}},
			expected: model.ProgressFlags{Ingredients: true},
		},
		{
			name:     "Empty ingredient slice",
			content:  model.RecipeContent{Ingredients: []model.Ingredient{}},
			expected: model.ProgressFlags{},
		},
		{
			name:     "One instruction",
			content:  model.RecipeContent{Instructions: []model.InstructionStep{{Text: "Chop"}}},
			expected: model.ProgressFlags{Instructions: true},
		},
		{
			name:     "Additional images without main image",
			content:  model.RecipeContent{Media: model.Media{AdditionalImages: []string{"a.jpg"}}},
			expected: model.ProgressFlags{},
		},
		{
			name:     "Main image",
			content:  model.RecipeContent{Media: model.Media{MainImage: "main.jpg"}},
			expected: model.ProgressFlags{Media: true},
		},
		{
			name:     "Tag satisfies additional info",
			content:  model.RecipeContent{Tags: []string{"vegan"}},
			expected: model.ProgressFlags{AdditionalInfo: true},
		},
		{
			name:     "Cooking tip satisfies additional info",
			content:  model.RecipeContent{AdditionalInfo: model.AdditionalInfo{CookingTips: []string{"Use stock"}}},
			expected: model.ProgressFlags{AdditionalInfo: true},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got := Compute(tc.content)
			if got != tc.expected {
				t.Errorf("Expected %+v, got %+v", tc.expected, got)
			}
		})
	}
}

func TestPercentageIsTwentyPerFlag(t *testing.T) {
	// Every combination of the five flags.
	for mask := 0; mask < 32; mask++ {
		flags := model.ProgressFlags{
			BasicInfo:      mask&1 != 0,
			Ingredients:    mask&2 != 0,
			Instructions:   mask&4 != 0,
			Media:          mask&8 != 0,
			AdditionalInfo: mask&16 != 0,
		}

		got := Percentage(flags)
		if got != 20*flags.Count() {
			t.Errorf("mask %05b: expected %d, got %d", mask, 20*flags.Count(), got)
		}
		if got%20 != 0 || got < 0 || got > 100 {
			t.Errorf("mask %05b: percentage %d out of range", mask, got)
		}
	}
}

func TestApply(t *testing.T) {
	doc := model.NewDraft("cook")
	doc.Content.BasicInfo.Title = "Soup"
	Apply(&doc)
	if doc.CompletionPercentage != 0 {
		t.Fatalf("Expected 0%% with only a title, got %d", doc.CompletionPercentage)
	}

	doc.Content.BasicInfo = completeBasicInfo()
	Apply(&doc)
	if doc.CompletionPercentage != 20 {
		t.Fatalf("Expected 20%% with basic info, got %d", doc.CompletionPercentage)
	}

	doc.Content.Ingredients = []model.Ingredient{{Name: "Leek"}}
	doc.Content.Instructions = []model.InstructionStep{{Text: "Simmer"}}
	doc.Content.Media.MainImage = "soup.jpg"
	doc.Content.Tags = []string{"winter"}
	Apply(&doc)
	if doc.CompletionPercentage != 100 {
		t.Errorf("Expected 100%%, got %d", doc.CompletionPercentage)
	}
	if !doc.Progress.Media || !doc.Progress.AdditionalInfo {
		t.Errorf("Expected all flags set, got %+v", doc.Progress)
	}
}
