package repository

import (
	"encoding/json"
	"fmt"
	"slices"
	"time"

	"github.com/debemdeboas/the-pantry/internal/model"
	"github.com/debemdeboas/the-pantry/internal/progress"
	"github.com/debemdeboas/the-pantry/internal/util"
	"github.com/debemdeboas/the-pantry/internal/util/compression"
)

// record is the stored form of a draft.
type record struct {
	ID          model.DraftID       `json:"id"`
	Owner       model.UserID        `json:"owner"`
	Content     model.RecipeContent `json:"content"`
	ContentHash string              `json:"contentHash"`
	CreatedAt   time.Time           `json:"createdAt"`
	ModifiedAt  time.Time           `json:"modifiedAt"`
}

func (r *record) document() *model.DraftDocument {
	doc := &model.DraftDocument{
		ID:         r.ID,
		Owner:      r.Owner,
		Content:    r.Content.Clone(),
		Status:     model.StatusSaved,
		CreatedAt:  r.CreatedAt,
		ModifiedAt: r.ModifiedAt,
	}
	progress.Apply(doc)
	return doc
}

func (r *record) summary() model.DraftSummary {
	return model.DraftSummary{
		ID:                   r.ID,
		Title:                r.Content.BasicInfo.Title,
		CompletionPercentage: progress.Percentage(progress.Compute(r.Content)),
		Owner:                r.Owner,
		CreatedAt:            r.CreatedAt,
		ModifiedAt:           r.ModifiedAt,
	}
}

// encodeContent returns the compressed JSON of content and the hash of the
// uncompressed JSON.
func encodeContent(c compression.Compressor, content model.RecipeContent) ([]byte, string, error) {
	data, err := json.Marshal(content)
	if err != nil {
		return nil, "", fmt.Errorf("error encoding content: %w", err)
	}
	compressed, err := c.Compress(data)
	if err != nil {
		return nil, "", fmt.Errorf("error compressing content: %w", err)
	}
	return compressed, util.ContentHash(data), nil
}

func decodeContent(c compression.Compressor, compressed []byte) (model.RecipeContent, error) {
	var content model.RecipeContent
	data, err := c.Decompress(compressed)
	if err != nil {
		return content, fmt.Errorf("error decompressing content: %w", err)
	}
	if err := json.Unmarshal(data, &content); err != nil {
		return content, fmt.Errorf("error decoding content: %w", err)
	}
	return content, nil
}

// sortSummaries orders by modification time, newest first.
func sortSummaries(s []model.DraftSummary) {
	slices.SortStableFunc(s, func(a, b model.DraftSummary) int {
		return -a.ModifiedAt.Compare(b.ModifiedAt)
	})
}

func now() time.Time {
	return time.Now().UTC()
}

// importedRecord is the stored form of a complete draft brought in from
// another store.
func importedRecord(doc model.DraftDocument) (*record, error) {
	if doc.ID == "" {
		return nil, fmt.Errorf("%w: draft has no id", ErrValidation)
	}
	if err := Validate(doc.Content); err != nil {
		return nil, err
	}
	hash, err := util.JSONHash(doc.Content)
	if err != nil {
		return nil, err
	}

	rec := &record{
		ID:          doc.ID,
		Owner:       doc.Owner,
		Content:     doc.Content.Clone(),
		ContentHash: hash,
		CreatedAt:   doc.CreatedAt.UTC(),
		ModifiedAt:  doc.ModifiedAt.UTC(),
	}
	if rec.ModifiedAt.IsZero() {
		rec.ModifiedAt = now()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = rec.ModifiedAt
	}
	return rec, nil
}
