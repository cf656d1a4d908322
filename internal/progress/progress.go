// Package progress computes how complete a recipe draft is.
package progress

import (
	"math"
	"strings"

	"github.com/debemdeboas/the-pantry/internal/model"
)

const sections = 5

func Compute(content model.RecipeContent) model.ProgressFlags {
	return model.ProgressFlags{
		BasicInfo:      basicInfoComplete(content.BasicInfo),
		Ingredients:    len(content.Ingredients) > 0,
		Instructions:   len(content.Instructions) > 0,
		Media:          present(content.Media.MainImage),
		AdditionalInfo: len(content.AdditionalInfo.CookingTips) > 0 || len(content.Tags) > 0,
	}
}

// Percentage is always a multiple of 100/sections.
func Percentage(flags model.ProgressFlags) int {
	return int(math.Round(100 * float64(flags.Count()) / sections))
}

// Apply refreshes the derived progress fields of doc from its content.
func Apply(doc *model.DraftDocument) {
	doc.Progress = Compute(doc.Content)
	doc.CompletionPercentage = Percentage(doc.Progress)
}

func basicInfoComplete(b model.BasicInfo) bool {
	return present(b.Title) &&
		present(b.CuisineType) &&
		present(b.CourseType) &&
		b.PrepTime > 0 &&
		b.CookTime > 0 &&
		b.Servings > 0
}

func present(s string) bool {
	return strings.TrimSpace(s) != ""
}
