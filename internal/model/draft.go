// Package model defines core data structures and types for recipe drafts.
package model

import (
	"slices"
	"time"

	"github.com/google/uuid"
)

type DraftID string

type UserID string

type Status string

const (
	StatusSaving  Status = "saving"
	StatusSaved   Status = "saved"
	StatusError   Status = "error"
	StatusOffline Status = "offline"
)

func (s Status) Valid() bool {
	switch s {
	case StatusSaving, StatusSaved, StatusError, StatusOffline:
		return true
	}
	return false
}

type BasicInfo struct {
	Title          string   `json:"title"`
	Description    string   `json:"description,omitempty"`
	CuisineType    string   `json:"cuisineType"`
	CourseType     string   `json:"courseType"`
	Difficulty     string   `json:"difficulty,omitempty"`
	PrepTime       int      `json:"prepTime"` // minutes
	CookTime       int      `json:"cookTime"` // minutes
	Servings       int      `json:"servings"`
	DietCategories []string `json:"dietCategories,omitempty"`
}

type Ingredient struct {
	Name     string `json:"name"`
	Quantity string `json:"quantity,omitempty"`
	Unit     string `json:"unit,omitempty"`
	Notes    string `json:"notes,omitempty"`
}

type InstructionStep struct {
	Text            string   `json:"text"`
	DurationMinutes int      `json:"durationMinutes,omitempty"`
	MediaRefs       []string `json:"mediaRefs,omitempty"`
}

type Media struct {
	MainImage        string   `json:"mainImage"`
	AdditionalImages []string `json:"additionalImages,omitempty"`
	Video            string   `json:"video,omitempty"`
}

type AdditionalInfo struct {
	CookingTips []string `json:"cookingTips,omitempty"`
}

// RecipeContent is the user-authored payload of a draft.
type RecipeContent struct {
	BasicInfo      BasicInfo         `json:"basicInfo"`
	Ingredients    []Ingredient      `json:"ingredients"`
	Instructions   []InstructionStep `json:"instructions"`
	Media          Media             `json:"media"`
	Tags           []string          `json:"tags"`
	AdditionalInfo AdditionalInfo    `json:"additionalInfo"`
}

func (c RecipeContent) Clone() RecipeContent {
	out := c
	out.BasicInfo.DietCategories = slices.Clone(c.BasicInfo.DietCategories)
	out.Ingredients = slices.Clone(c.Ingredients)
	if c.Instructions != nil {
		out.Instructions = make([]InstructionStep, len(c.Instructions))
		for i, step := range c.Instructions {
			step.MediaRefs = slices.Clone(step.MediaRefs)
			out.Instructions[i] = step
		}
	}
	out.Media.AdditionalImages = slices.Clone(c.Media.AdditionalImages)
	out.Tags = slices.Clone(c.Tags)
	out.AdditionalInfo.CookingTips = slices.Clone(c.AdditionalInfo.CookingTips)
	return out
}

// IsZero reports whether nothing has been entered yet.
func (c RecipeContent) IsZero() bool {
	b := c.BasicInfo
	return b.Title == "" && b.Description == "" && b.CuisineType == "" && b.CourseType == "" &&
		b.Difficulty == "" && b.PrepTime == 0 && b.CookTime == 0 && b.Servings == 0 &&
		len(b.DietCategories) == 0 &&
		len(c.Ingredients) == 0 && len(c.Instructions) == 0 &&
		c.Media.MainImage == "" && len(c.Media.AdditionalImages) == 0 && c.Media.Video == "" &&
		len(c.Tags) == 0 && len(c.AdditionalInfo.CookingTips) == 0
}

type ProgressFlags struct {
	BasicInfo      bool `json:"basicInfo"`
	Ingredients    bool `json:"ingredients"`
	Instructions   bool `json:"instructions"`
	Media          bool `json:"media"`
	AdditionalInfo bool `json:"additionalInfo"`
}

// Count returns the number of completed sections.
func (p ProgressFlags) Count() int {
	n := 0
	for _, ok := range []bool{p.BasicInfo, p.Ingredients, p.Instructions, p.Media, p.AdditionalInfo} {
		if ok {
			n++
		}
	}
	return n
}

// DraftDocument is the authoritative in-memory representation of one recipe in progress.
type DraftDocument struct {
	ID            DraftID `json:"id,omitempty"`
	ProvisionalID string  `json:"provisionalId"`
	Owner         UserID  `json:"owner,omitempty"`

	Content RecipeContent `json:"content"`

	// Derived from Content, never set directly.
	Progress             ProgressFlags `json:"progress"`
	CompletionPercentage int           `json:"completionPercentage"`

	Status Status `json:"status,omitempty"`

	CreatedAt  time.Time `json:"createdAt"`
	ModifiedAt time.Time `json:"modifiedAt"`

	// Version counts in-memory edits. It is local to a session and never sent remotely.
	Version uint64 `json:"version,omitempty"`
}

func NewDraft(owner UserID) DraftDocument {
	return DraftDocument{
		ProvisionalID: uuid.New().String(),
		Owner:         owner,
	}
}

// BackupKey is the key of the local snapshot slot for this draft.
func (d *DraftDocument) BackupKey() string {
	if d.ID != "" {
		return string(d.ID)
	}
	return d.ProvisionalID
}

func (d DraftDocument) Clone() DraftDocument {
	out := d
	out.Content = d.Content.Clone()
	return out
}

func (d *DraftDocument) Summary() DraftSummary {
	return DraftSummary{
		ID:                   d.ID,
		Title:                d.Content.BasicInfo.Title,
		CompletionPercentage: d.CompletionPercentage,
		Owner:                d.Owner,
		CreatedAt:            d.CreatedAt,
		ModifiedAt:           d.ModifiedAt,
	}
}

type DraftSummary struct {
	ID                   DraftID   `json:"id"`
	Title                string    `json:"title"`
	CompletionPercentage int       `json:"completionPercentage"`
	Owner                UserID    `json:"owner,omitempty"`
	CreatedAt            time.Time `json:"createdAt"`
	ModifiedAt           time.Time `json:"modifiedAt"`
}
