package repository

import (
	"context"
	"fmt"

	"github.com/debemdeboas/the-pantry/internal/config"
	"github.com/debemdeboas/the-pantry/internal/db"
	"github.com/debemdeboas/the-pantry/internal/util/compression"
)

// Open builds the draft store selected by cfg. The returned function releases
// the store and is never nil.
func Open(ctx context.Context, cfg config.StorageConfig) (DraftRepository, func() error, error) {
	closeFn := func() error { return nil }

	var repo DraftRepository
	switch cfg.Backend {
	case "sqlite":
		database := db.NewSQLite(cfg.SQLitePath)
		if err := database.InitDB(); err != nil {
			return nil, closeFn, fmt.Errorf("error initializing database: %w", err)
		}
		dbRepo := NewDBDraftRepository(database)
		if err := dbRepo.Init(ctx); err != nil {
			database.Close()
			return nil, closeFn, err
		}
		repo, closeFn = dbRepo, database.Close
	case "fs":
		fsRepo, err := NewFSDraftRepository(cfg.FSDir)
		if err != nil {
			return nil, closeFn, err
		}
		repo = fsRepo
	case "s3":
		s3Repo, err := NewS3DraftRepository(ctx, S3Options{
			Bucket:          cfg.S3.Bucket,
			Prefix:          cfg.S3.Prefix,
			Endpoint:        cfg.S3.Endpoint,
			Region:          cfg.S3.Region,
			AccessKeyID:     cfg.S3.AccessKeyID,
			AccessKeySecret: cfg.S3.AccessKeySecret,
		})
		if err != nil {
			return nil, closeFn, err
		}
		repo = s3Repo
	case "memory":
		repo = NewMemoryDraftRepository()
	default:
		return nil, closeFn, fmt.Errorf("%w: storage backend %q", config.ErrInvalidConfig, cfg.Backend)
	}

	if c, ok := repo.(Compressed); ok {
		codec, err := compression.ByName(cfg.Compression)
		if err != nil {
			closeFn()
			return nil, func() error { return nil }, fmt.Errorf("%w: %v", config.ErrInvalidConfig, err)
		}
		c.SetCompressor(codec)
	}

	repoLogger.Info().Str("backend", cfg.Backend).Msg("Draft store ready")
	return repo, closeFn, nil
}
