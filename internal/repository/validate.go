package repository

import (
	"fmt"
	"unicode/utf8"

	"github.com/debemdeboas/the-pantry/internal/model"
)

const (
	MaxTitleLength  = 200
	MaxIngredients  = 200
	MaxInstructions = 100
	MaxTags         = 50
)

// Validate rejects content the store will not accept. Violations wrap ErrValidation.
func Validate(content model.RecipeContent) error {
	b := content.BasicInfo
	switch {
	case utf8.RuneCountInString(b.Title) > MaxTitleLength:
		return fmt.Errorf("%w: title longer than %d characters", ErrValidation, MaxTitleLength)
	case b.PrepTime < 0 || b.CookTime < 0:
		return fmt.Errorf("%w: negative preparation or cooking time", ErrValidation)
	case b.Servings < 0:
		return fmt.Errorf("%w: negative servings", ErrValidation)
	case len(content.Ingredients) > MaxIngredients:
		return fmt.Errorf("%w: more than %d ingredients", ErrValidation, MaxIngredients)
	case len(content.Instructions) > MaxInstructions:
		return fmt.Errorf("%w: more than %d instruction steps", ErrValidation, MaxInstructions)
	case len(content.Tags) > MaxTags:
		return fmt.Errorf("%w: more than %d tags", ErrValidation, MaxTags)
	}

	for i, step := range content.Instructions {
		if step.DurationMinutes < 0 {
			return fmt.Errorf("%w: step %d has a negative duration", ErrValidation, i+1)
		}
	}
	return nil
}
