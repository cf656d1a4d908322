package backup

import (
	"errors"
	"testing"

	"github.com/debemdeboas/the-pantry/internal/config"
)

func TestOpen(t *testing.T) {
	store, err := Open(config.BackupConfig{Backend: "fs", Dir: t.TempDir()})
	if err != nil {
		t.Fatalf("Open fs failed: %v", err)
	}
	if _, ok := store.(*FSStore); !ok {
		t.Errorf("Expected *FSStore, got %T", store)
	}

	store, err = Open(config.BackupConfig{Backend: "memory"})
	if err != nil {
		t.Fatalf("Open memory failed: %v", err)
	}
	if _, ok := store.(*MemoryStore); !ok {
		t.Errorf("Expected *MemoryStore, got %T", store)
	}

	if _, err := Open(config.BackupConfig{Backend: "redis"}); !errors.Is(err, config.ErrInvalidConfig) {
		t.Errorf("Expected ErrInvalidConfig, got %v", err)
	}
}
