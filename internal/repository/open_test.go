package repository

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/debemdeboas/the-pantry/internal/config"
)

func TestOpen(t *testing.T) {
	dir := t.TempDir()
	tests := []struct {
		name    string
		cfg     config.StorageConfig
		want    string
		wantErr bool
	}{
		{"sqlite", config.StorageConfig{Backend: "sqlite", SQLitePath: filepath.Join(dir, "drafts.db"), Compression: "zstd"}, "*repository.DBDraftRepository", false},
		{"fs", config.StorageConfig{Backend: "fs", FSDir: filepath.Join(dir, "drafts"), Compression: "gzip"}, "*repository.FSDraftRepository", false},
		{"memory", config.StorageConfig{Backend: "memory"}, "*repository.MemoryDraftRepository", false},
		{"unknown backend", config.StorageConfig{Backend: "redis"}, "", true},
		{"unknown compression", config.StorageConfig{Backend: "fs", FSDir: filepath.Join(dir, "other"), Compression: "lz4"}, "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo, closeFn, err := Open(context.Background(), tt.cfg)
			defer closeFn()
			if tt.wantErr {
				if !errors.Is(err, config.ErrInvalidConfig) {
					t.Errorf("Expected ErrInvalidConfig, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Open failed: %v", err)
			}
			if got := typeName(repo); got != tt.want {
				t.Errorf("Expected %s, got %s", tt.want, got)
			}

			res, err := repo.Create(context.Background(), "cook", soup())
			if err != nil {
				t.Fatalf("Create failed: %v", err)
			}
			if _, err := repo.Get(context.Background(), res.ID); err != nil {
				t.Errorf("Get failed: %v", err)
			}
		})
	}
}

func typeName(v any) string {
	return fmt.Sprintf("%T", v)
}
