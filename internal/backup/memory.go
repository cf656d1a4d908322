package backup

import (
	"slices"
	"sync"

	"github.com/debemdeboas/the-pantry/internal/model"
)

type MemoryStore struct { // implements Store
	docs sync.Map // string -> model.DraftDocument
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (m *MemoryStore) Put(key string, doc model.DraftDocument) error {
	if err := validKey(key); err != nil {
		return err
	}
	m.docs.Store(key, doc.Clone())
	return nil
}

func (m *MemoryStore) Get(key string) (*model.DraftDocument, error) {
	value, ok := m.docs.Load(key)
	if !ok {
		return nil, nil
	}
	doc := value.(model.DraftDocument).Clone()
	return &doc, nil
}

func (m *MemoryStore) Delete(key string) error {
	m.docs.Delete(key)
	return nil
}

func (m *MemoryStore) Keys() ([]string, error) {
	keys := make([]string, 0)
	m.docs.Range(func(key, _ any) bool {
		keys = append(keys, key.(string))
		return true
	})
	slices.Sort(keys)
	return keys, nil
}
