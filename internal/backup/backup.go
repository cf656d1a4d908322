// Package backup keeps local snapshots of drafts so unsaved work survives
// remote failures and restarts.
package backup

import (
	"errors"
	"strings"

	"github.com/debemdeboas/the-pantry/internal/model"
)

var ErrInvalidKey = errors.New("invalid backup key")

// Store holds at most one snapshot per key.
type Store interface {
	Put(key string, doc model.DraftDocument) error

	// Get returns nil, nil when no snapshot exists for key.
	Get(key string) (*model.DraftDocument, error)

	// Delete is a no-op for absent keys.
	Delete(key string) error

	Keys() ([]string, error)
}

func validKey(key string) error {
	if key == "" || key == "." || key == ".." || strings.ContainsAny(key, `/\`) || strings.HasPrefix(key, ".") {
		return ErrInvalidKey
	}
	return nil
}
