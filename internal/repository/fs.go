package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/debemdeboas/the-pantry/internal/model"
	"github.com/debemdeboas/the-pantry/internal/util"
	"github.com/debemdeboas/the-pantry/internal/util/compression"
	"github.com/google/uuid"
)

const draftFileExt = ".json.zst"

// FSDraftRepository keeps one compressed JSON file per draft in a directory.
type FSDraftRepository struct { // implements DraftRepository
	draftsPath string
	compressor compression.Compressor

	mu sync.RWMutex
}

func NewFSDraftRepository(draftsPath string) (*FSDraftRepository, error) {
	if err := os.MkdirAll(draftsPath, 0o755); err != nil {
		return nil, fmt.Errorf("error creating drafts directory: %w", err)
	}
	return &FSDraftRepository{
		draftsPath: draftsPath,
		compressor: compression.Detecting{Compressor: compression.ZstdCompressor{}},
	}, nil
}

func (r *FSDraftRepository) Create(_ context.Context, owner model.UserID, content model.RecipeContent) (CreateResult, error) {
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
		Content:     content,
		ContentHash: hash,
		CreatedAt:   ts,
		ModifiedAt:  ts,
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.write(rec); err != nil {
		return CreateResult{}, err
	}

	repoLogger.Debug().Str("draft_id", string(rec.ID)).Msg("Draft created")
	return CreateResult{ID: rec.ID, CreatedAt: ts, ModifiedAt: ts}, nil
}

func (r *FSDraftRepository) Update(_ context.Context, id model.DraftID, content model.RecipeContent) (time.Time, error) {
	if err := Validate(content); err != nil {
		return time.Time{}, err
	}
	hash, err := util.JSONHash(content)
	if err != nil {
		return time.Time{}, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	rec, err := r.read(id)
	if err != nil {
		return time.Time{}, err
	}
	if rec.ContentHash == hash {
		return rec.ModifiedAt, nil
	}

	rec.Content = content
	rec.ContentHash = hash
	rec.ModifiedAt = now()
	if err := r.write(rec); err != nil {
		return time.Time{}, err
	}
	return rec.ModifiedAt, nil
}

func (r *FSDraftRepository) Get(_ context.Context, id model.DraftID) (*model.DraftDocument, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rec, err := r.read(id)
	if err != nil {
		return nil, err
	}
	return rec.document(), nil
}

func (r *FSDraftRepository) List(_ context.Context, owner model.UserID) ([]model.DraftSummary, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	entries, err := os.ReadDir(r.draftsPath)
	if err != nil {
		return nil, err
	}

	summaries := make([]model.DraftSummary, 0)
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), draftFileExt) {
			continue
		}

		rec, err := r.read(model.DraftID(strings.TrimSuffix(entry.Name(), draftFileExt)))
		if err != nil {
			repoLogger.Warn().Err(err).Str("file", entry.Name()).Msg("Skipping unreadable draft file")
			continue
		}
		if owner == "" || rec.Owner == owner {
			summaries = append(summaries, rec.summary())
		}
	}

	sortSummaries(summaries)
	return summaries, nil
}

func (r *FSDraftRepository) Delete(_ context.Context, id model.DraftID) error {
	path, err := r.path(id)
	if err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if err := os.Remove(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return ErrNotFound
		}
		return fmt.Errorf("error deleting draft: %w", err)
	}
	return nil
}

func (r *FSDraftRepository) path(id model.DraftID) (string, error) {
	if id == "" || strings.ContainsAny(string(id), `/\`) || strings.HasPrefix(string(id), ".") {
		return "", ErrNotFound
	}
	return filepath.Join(r.draftsPath, string(id)+draftFileExt), nil
}

func (r *FSDraftRepository) read(id model.DraftID) (*record, error) {
	path, err := r.path(id)
	if err != nil {
		return nil, err
	}

	compressed, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("error reading draft: %w", err)
	}

	data, err := r.compressor.Decompress(compressed)
	if err != nil {
		return nil, fmt.Errorf("error decompressing draft: %w", err)
	}

	var rec record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("error decoding draft: %w", err)
	}
	return &rec, nil
}

// write replaces the draft file atomically.
func (r *FSDraftRepository) write(rec *record) error {
	path, err := r.path(rec.ID)
	if err != nil {
		return err
	}

	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("error encoding draft: %w", err)
	}
	compressed, err := r.compressor.Compress(data)
	if err != nil {
		return fmt.Errorf("error compressing draft: %w", err)
	}
	return util.WriteFileAtomic(path, compressed)
}

// SetCompressor sets the codec for content written from now on. Content
// written with any other known codec stays readable.
func (r *FSDraftRepository) SetCompressor(c compression.Compressor) {
	r.compressor = compression.Detecting{Compressor: c}
}

func (r *FSDraftRepository) Import(_ context.Context, doc model.DraftDocument) error {
	rec, err := importedRecord(doc)
	if err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.write(rec)
}
