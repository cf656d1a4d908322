package repository

import (
	"context"
	"sync"
	"time"

	"github.com/debemdeboas/the-pantry/internal/model"
	"github.com/debemdeboas/the-pantry/internal/util"
	"github.com/google/uuid"
)

type MemoryDraftRepository struct { // implements DraftRepository
	drafts sync.Map // model.DraftID -> *record

	// Serializes read-modify-write updates. Stored records are never mutated.
	mu sync.Mutex
}

func NewMemoryDraftRepository() *MemoryDraftRepository {
	return &MemoryDraftRepository{}
}

func (m *MemoryDraftRepository) Create(_ context.Context, owner model.UserID, content model.RecipeContent) (CreateResult, error) {
	if err := Validate(content); err != nil {
		return CreateResult{}, err
	}
	hash, err := util.JSONHash(content)
	if err != nil {
		return CreateResult{}, err
	}

	ts := now()
	rec := &record{
		ID:          model.DraftID(uuid.New().String()),
		Owner:       owner,
		Content:     content.Clone(),
		ContentHash: hash,
		CreatedAt:   ts,
		ModifiedAt:  ts,
	}
	m.drafts.Store(rec.ID, rec)

	repoLogger.Debug().Str("draft_id", string(rec.ID)).Msg("Draft created")
	return CreateResult{ID: rec.ID, CreatedAt: ts, ModifiedAt: ts}, nil
}

func (m *MemoryDraftRepository) Update(_ context.Context, id model.DraftID, content model.RecipeContent) (time.Time, error) {
	if err := Validate(content); err != nil {
		return time.Time{}, err
	}
	hash, err := util.JSONHash(content)
	if err != nil {
		return time.Time{}, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	existing, ok := m.load(id)
	if !ok {
		return time.Time{}, ErrNotFound
	}
	if existing.ContentHash == hash {
		return existing.ModifiedAt, nil
	}

	updated := *existing
	updated.Content = content.Clone()
	updated.ContentHash = hash
	updated.ModifiedAt = now()
	m.drafts.Store(id, &updated)

	return updated.ModifiedAt, nil
}

func (m *MemoryDraftRepository) Get(_ context.Context, id model.DraftID) (*model.DraftDocument, error) {
	rec, ok := m.load(id)
	if !ok {
		return nil, ErrNotFound
	}
	return rec.document(), nil
}

func (m *MemoryDraftRepository) List(_ context.Context, owner model.UserID) ([]model.DraftSummary, error) {
	summaries := make([]model.DraftSummary, 0)
	m.drafts.Range(func(_, value any) bool {
		rec := value.(*record)
		if owner == "" || rec.Owner == owner {
			summaries = append(summaries, rec.summary())
		}
		return true
	})
	sortSummaries(summaries)
	return summaries, nil
}

func (m *MemoryDraftRepository) Delete(_ context.Context, id model.DraftID) error {
	if _, loaded := m.drafts.LoadAndDelete(id); !loaded {
		return ErrNotFound
	}
	return nil
}

func (m *MemoryDraftRepository) load(id model.DraftID) (*record, bool) {
	value, ok := m.drafts.Load(id)
	if !ok {
		return nil, false
	}
	return value.(*record), true
}

func (m *MemoryDraftRepository) Import(_ context.Context, doc model.DraftDocument) error {
	rec, err := importedRecord(doc)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.drafts.Store(rec.ID, rec)
	return nil
}
