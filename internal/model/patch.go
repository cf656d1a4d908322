package model

import "slices"

// BasicInfoPatch updates individual basic-info fields. Nil fields are left untouched.
type BasicInfoPatch struct {
	Title          *string   `json:"title,omitempty"`
	Description    *string   `json:"description,omitempty"`
	CuisineType    *string   `json:"cuisineType,omitempty"`
	CourseType     *string   `json:"courseType,omitempty"`
	Difficulty     *string   `json:"difficulty,omitempty"`
	PrepTime       *int      `json:"prepTime,omitempty"`
	CookTime       *int      `json:"cookTime,omitempty"`
	Servings       *int      `json:"servings,omitempty"`
	DietCategories *[]string `json:"dietCategories,omitempty"`
}

// ContentPatch is a partial update to RecipeContent.
// Ordered sequences are replaced as a whole when present.
type ContentPatch struct {
	BasicInfo      *BasicInfoPatch    `json:"basicInfo,omitempty"`
	Ingredients    *[]Ingredient      `json:"ingredients,omitempty"`
	Instructions   *[]InstructionStep `json:"instructions,omitempty"`
	Media          *Media             `json:"media,omitempty"`
	Tags           *[]string          `json:"tags,omitempty"`
	AdditionalInfo *AdditionalInfo    `json:"additionalInfo,omitempty"`
}

func (p ContentPatch) IsEmpty() bool {
	return p.BasicInfo == nil && p.Ingredients == nil && p.Instructions == nil &&
		p.Media == nil && p.Tags == nil && p.AdditionalInfo == nil
}

// Apply merges the patch into a copy of c.
func (c RecipeContent) Apply(p ContentPatch) RecipeContent {
	out := c.Clone()

	if b := p.BasicInfo; b != nil {
		setIf(&out.BasicInfo.Title, b.Title)
		setIf(&out.BasicInfo.Description, b.Description)
		setIf(&out.BasicInfo.CuisineType, b.CuisineType)
		setIf(&out.BasicInfo.CourseType, b.CourseType)
		setIf(&out.BasicInfo.Difficulty, b.Difficulty)
		setIf(&out.BasicInfo.PrepTime, b.PrepTime)
		setIf(&out.BasicInfo.CookTime, b.CookTime)
		setIf(&out.BasicInfo.Servings, b.Servings)
		if b.DietCategories != nil {
			out.BasicInfo.DietCategories = slices.Clone(*b.DietCategories)
		}
	}
	if p.Ingredients != nil {
		out.Ingredients = slices.Clone(*p.Ingredients)
	}
	if p.Instructions != nil {
		out.Instructions = RecipeContent{Instructions: *p.Instructions}.Clone().Instructions
	}
	if p.Media != nil {
		out.Media = *p.Media
		out.Media.AdditionalImages = slices.Clone(p.Media.AdditionalImages)
	}
	if p.Tags != nil {
		out.Tags = slices.Clone(*p.Tags)
	}
	if p.AdditionalInfo != nil {
		out.AdditionalInfo.CookingTips = slices.Clone(p.AdditionalInfo.CookingTips)
	}

	return out
}

func setIf[T any](dst *T, src *T) {
	if src != nil {
		*dst = *src
	}
}
