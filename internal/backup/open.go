package backup

import (
	"fmt"

	"github.com/debemdeboas/the-pantry/internal/config"
)

// Open builds the local backup store selected by cfg.
func Open(cfg config.BackupConfig) (Store, error) {
	switch cfg.Backend {
	case "fs":
		return NewFSStore(cfg.Dir)
	case "memory":
		return NewMemoryStore(), nil
	}
	return nil, fmt.Errorf("%w: backup backend %q", config.ErrInvalidConfig, cfg.Backend)
}
