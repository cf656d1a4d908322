package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/debemdeboas/the-pantry/internal/cache"
	"github.com/debemdeboas/the-pantry/internal/db"
	"github.com/debemdeboas/the-pantry/internal/model"
	"github.com/debemdeboas/the-pantry/internal/progress"
	"github.com/debemdeboas/the-pantry/internal/util/compression"
	"github.com/google/uuid"
)

type DBDraftRepository struct { // implements DraftRepository
	summaries *cache.Cache[model.DraftID, model.DraftSummary]
	warmOnce  sync.Once
	warmErr   error

	db         db.DB
	compressor compression.Compressor
}

func NewDBDraftRepository(db db.DB) *DBDraftRepository {
	return &DBDraftRepository{
		summaries: cache.NewCache[model.DraftID, model.DraftSummary](),

		db: db,

		compressor: compression.Detecting{Compressor: compression.ZstdCompressor{}},
	}
}

// Init loads the draft summaries into the cache.
func (r *DBDraftRepository) Init(ctx context.Context) error {
	r.warmOnce.Do(func() {
		r.warmErr = r.loadSummaries(ctx)
	})
	return r.warmErr
}

func (r *DBDraftRepository) loadSummaries(ctx context.Context) error {
	rows, err := r.db.Query(ctx, `SELECT id, owner, title, completion, created_at, modified_at FROM drafts`)
	if err != nil {
		return fmt.Errorf("error querying drafts: %w", err)
	}
	defer rows.Close()

	items := make(map[model.DraftID]model.DraftSummary)
	for rows.Next() {
		var s model.DraftSummary
		if err := rows.Scan(&s.ID, &s.Owner, &s.Title, &s.CompletionPercentage, &s.CreatedAt, &s.ModifiedAt); err != nil {
			return fmt.Errorf("error scanning draft: %w", err)
		}
		items[s.ID] = s
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("error reading drafts: %w", err)
	}

	r.summaries.SetTo(items)
	repoLogger.Info().Int("drafts", len(items)).Msg("Draft summaries loaded")
	return nil
}

func (r *DBDraftRepository) Create(ctx context.Context, owner model.UserID, content model.RecipeContent) (CreateResult, error) {
	if err := Validate(content); err != nil {
		return CreateResult{}, err
	}
	compressed, hash, err := encodeContent(r.compressor, content)
	if err != nil {
		return CreateResult{}, err
	}

	ts := now()
	rec := record{
		ID:          model.DraftID(uuid.New().String()),
		Owner:       owner,
		Content:     content,
		ContentHash: hash,
		CreatedAt:   ts,
		ModifiedAt:  ts,
	}
	summary := rec.summary()

	_, err = r.db.Exec(ctx,
		`INSERT INTO drafts (id, owner, title, completion, content, content_hash, created_at, modified_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.Owner, summary.Title, summary.CompletionPercentage, compressed, hash, ts, ts,
	)
	if err != nil {
		return CreateResult{}, fmt.Errorf("error saving draft: %w", err)
	}

	r.summaries.Set(rec.ID, summary)
	repoLogger.Debug().Str("draft_id", string(rec.ID)).Msg("Draft created")

	return CreateResult{ID: rec.ID, CreatedAt: ts, ModifiedAt: ts}, nil
}

func (r *DBDraftRepository) Update(ctx context.Context, id model.DraftID, content model.RecipeContent) (time.Time, error) {
	if err := Validate(content); err != nil {
		return time.Time{}, err
	}
	compressed, hash, err := encodeContent(r.compressor, content)
	if err != nil {
		return time.Time{}, err
	}

	var (
		storedHash sql.NullString
		modified   time.Time
		owner      model.UserID
		created    time.Time
	)
	err = r.db.QueryRow(ctx, `SELECT owner, content_hash, created_at, modified_at FROM drafts WHERE id = ?`, id).
		Scan(&owner, &storedHash, &created, &modified)
	if errors.Is(err, sql.ErrNoRows) {
		return time.Time{}, ErrNotFound
	}
	if err != nil {
		return time.Time{}, fmt.Errorf("error reading draft: %w", err)
	}

	if storedHash.Valid && storedHash.String == hash {
		repoLogger.Debug().Str("draft_id", string(id)).Msg("Draft content unchanged, skipping write")
		return modified, nil
	}

	flags := progress.Compute(content)
	ts := now()
	res, err := r.db.Exec(ctx,
		`UPDATE drafts SET title = ?, completion = ?, content = ?, content_hash = ?, modified_at = ? WHERE id = ?`,
		content.BasicInfo.Title, progress.Percentage(flags), compressed, hash, ts, id,
	)
	if err != nil {
		return time.Time{}, fmt.Errorf("error saving draft: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return time.Time{}, ErrNotFound
	}

	r.summaries.Set(id, model.DraftSummary{
		ID:                   id,
		Title:                content.BasicInfo.Title,
		CompletionPercentage: progress.Percentage(flags),
		Owner:                owner,
		CreatedAt:            created,
		ModifiedAt:           ts,
	})
	repoLogger.Debug().Str("draft_id", string(id)).Msg("Draft updated")

	return ts, nil
}

func (r *DBDraftRepository) Get(ctx context.Context, id model.DraftID) (*model.DraftDocument, error) {
	rec := record{ID: id}
	var compressed []byte

	err := r.db.QueryRow(ctx, `SELECT owner, content, created_at, modified_at FROM drafts WHERE id = ?`, id).
		Scan(&rec.Owner, &compressed, &rec.CreatedAt, &rec.ModifiedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("error reading draft: %w", err)
	}

	rec.Content, err = decodeContent(r.compressor, compressed)
	if err != nil {
		return nil, err
	}
	return rec.document(), nil
}

func (r *DBDraftRepository) List(ctx context.Context, owner model.UserID) ([]model.DraftSummary, error) {
	if err := r.Init(ctx); err != nil {
		return nil, err
	}

	summaries := make([]model.DraftSummary, 0)
	for _, s := range r.summaries.Values() {
		if owner == "" || s.Owner == owner {
			summaries = append(summaries, s)
		}
	}
	sortSummaries(summaries)
	return summaries, nil
}

func (r *DBDraftRepository) Delete(ctx context.Context, id model.DraftID) error {
	res, err := r.db.Exec(ctx, `DELETE FROM drafts WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("error deleting draft: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}

	r.summaries.Delete(id)
	repoLogger.Debug().Str("draft_id", string(id)).Msg("Draft deleted")
	return nil
}

// SetCompressor sets the codec for content written from now on. Content
// written with any other known codec stays readable.
func (r *DBDraftRepository) SetCompressor(c compression.Compressor) {
	r.compressor = compression.Detecting{Compressor: c}
}

func (r *DBDraftRepository) Import(ctx context.Context, doc model.DraftDocument) error {
	rec, err := importedRecord(doc)
	if err != nil {
		return err
	}
	compressed, hash, err := encodeContent(r.compressor, rec.Content)
	if err != nil {
		return err
	}
	summary := rec.summary()

	_, err = r.db.Exec(ctx,
		`INSERT OR REPLACE INTO drafts (id, owner, title, completion, content, content_hash, created_at, modified_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.Owner, summary.Title, summary.CompletionPercentage, compressed, hash, rec.CreatedAt, rec.ModifiedAt,
	)
	if err != nil {
		return fmt.Errorf("error importing draft: %w", err)
	}
	r.summaries.Set(rec.ID, summary)
	return nil
}
