package backup

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/debemdeboas/the-pantry/internal/model"
	"github.com/debemdeboas/the-pantry/internal/util"
	"github.com/debemdeboas/the-pantry/internal/util/compression"
)

const snapshotExt = ".json.zst"

// FSStore writes each snapshot to <dir>/<key>.json.zst.
type FSStore struct { // implements Store
	dir        string
	compressor compression.Compressor
}

func NewFSStore(dir string) (*FSStore, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("error creating backup directory: %w", err)
	}
	return &FSStore{dir: dir, compressor: compression.ZstdCompressor{}}, nil
}

func (s *FSStore) Put(key string, doc model.DraftDocument) error {
	if err := validKey(key); err != nil {
		return err
	}

	data, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("error encoding snapshot: %w", err)
	}
	compressed, err := s.compressor.Compress(data)
	if err != nil {
		return fmt.Errorf("error compressing snapshot: %w", err)
	}
	return util.WriteFileAtomic(s.path(key), compressed)
}

func (s *FSStore) Get(key string) (*model.DraftDocument, error) {
	if err := validKey(key); err != nil {
		return nil, err
	}

	compressed, err := os.ReadFile(s.path(key))
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("error reading snapshot: %w", err)
	}

	data, err := s.compressor.Decompress(compressed)
	if err != nil {
		return nil, fmt.Errorf("error decompressing snapshot %s: %w", key, err)
	}
	var doc model.DraftDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("error decoding snapshot %s: %w", key, err)
	}
	return &doc, nil
}

func (s *FSStore) Delete(key string) error {
	if err := validKey(key); err != nil {
		return err
	}
	if err := os.Remove(s.path(key)); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("error deleting snapshot: %w", err)
	}
	return nil
}

func (s *FSStore) Keys() ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, err
	}

	keys := make([]string, 0, len(entries))
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || strings.HasPrefix(name, ".") || !strings.HasSuffix(name, snapshotExt) {
			continue
		}
		keys = append(keys, strings.TrimSuffix(name, snapshotExt))
	}
	slices.Sort(keys)
	return keys, nil
}

func (s *FSStore) path(key string) string {
	return filepath.Join(s.dir, key+snapshotExt)
}
