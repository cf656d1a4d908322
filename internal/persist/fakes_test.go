package persist

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/debemdeboas/the-pantry/internal/backup"
	"github.com/debemdeboas/the-pantry/internal/model"
	"github.com/debemdeboas/the-pantry/internal/repository"
)

// fakeRemote wraps the memory repository, failing queued calls and counting writes.
type fakeRemote struct {
	*repository.MemoryDraftRepository

	mu       sync.Mutex
	failures []error
	writes   int
	zeroTime bool
}

func newFakeRemote(failures ...error) *fakeRemote {
	return &fakeRemote{MemoryDraftRepository: repository.NewMemoryDraftRepository(), failures: failures}
}

func (f *fakeRemote) next() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.writes++
	if len(f.failures) == 0 {
		return nil
	}
	err := f.failures[0]
	f.failures = f.failures[1:]
	return err
}

func (f *fakeRemote) Writes() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.writes
}

func (f *fakeRemote) Create(ctx context.Context, owner model.UserID, content model.RecipeContent) (repository.CreateResult, error) {
	if err := f.next(); err != nil {
		return repository.CreateResult{}, err
	}
	res, err := f.MemoryDraftRepository.Create(ctx, owner, content)
	if f.zeroTime {
		res.CreatedAt, res.ModifiedAt = time.Time{}, time.Time{}
	}
	return res, err
}

func (f *fakeRemote) Update(ctx context.Context, id model.DraftID, content model.RecipeContent) (time.Time, error) {
	if err := f.next(); err != nil {
		return time.Time{}, err
	}
	modified, err := f.MemoryDraftRepository.Update(ctx, id, content)
	if f.zeroTime {
		modified = time.Time{}
	}
	return modified, err
}

// countingStore counts Put calls on top of a memory store.
type countingStore struct {
	*backup.MemoryStore

	mu   sync.Mutex
	puts int
	fail bool
}

func newCountingStore() *countingStore {
	return &countingStore{MemoryStore: backup.NewMemoryStore()}
}

func (s *countingStore) Put(key string, doc model.DraftDocument) error {
	s.mu.Lock()
	s.puts++
	fail := s.fail
	s.mu.Unlock()
	if fail {
		return errors.New("quota exceeded")
	}
	return s.MemoryStore.Put(key, doc)
}

func (s *countingStore) Puts() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.puts
}
