// Package repository stores recipe drafts and serves them over HTTP.
package repository

import (
	"context"
	"time"

	"github.com/debemdeboas/the-pantry/internal/model"
	"github.com/debemdeboas/the-pantry/internal/util/compression"
	"github.com/rs/zerolog"
)

var repoLogger = zerolog.Nop()

func SetLogger(l zerolog.Logger) {
	repoLogger = l
}

// CreateResult is what the store assigns to a newly created draft.
type CreateResult struct {
	ID         model.DraftID `json:"id"`
	CreatedAt  time.Time     `json:"createdAt"`
	ModifiedAt time.Time     `json:"modifiedAt"`
}

type DraftRepository interface {
	Create(ctx context.Context, owner model.UserID, content model.RecipeContent) (CreateResult, error)

	// Update replaces the content of an existing draft and returns its modification time.
	Update(ctx context.Context, id model.DraftID, content model.RecipeContent) (time.Time, error)

	Get(ctx context.Context, id model.DraftID) (*model.DraftDocument, error)

	// List returns the drafts of owner, most recently modified first.
	// An empty owner lists every draft.
	List(ctx context.Context, owner model.UserID) ([]model.DraftSummary, error)

	Delete(ctx context.Context, id model.DraftID) error
}

// Compressed is implemented by stores that compress draft content.
type Compressed interface {
	SetCompressor(c compression.Compressor)
}

// Importer stores a complete draft as-is, keeping its id and timestamps.
// An existing draft with the same id is replaced.
type Importer interface {
	Import(ctx context.Context, doc model.DraftDocument) error
}
