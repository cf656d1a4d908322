package autosave

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/debemdeboas/the-pantry/internal/backup"
	"github.com/debemdeboas/the-pantry/internal/cache"
	"github.com/debemdeboas/the-pantry/internal/connectivity"
	"github.com/debemdeboas/the-pantry/internal/model"
	"github.com/debemdeboas/the-pantry/internal/persist"
	"github.com/debemdeboas/the-pantry/internal/repository"
	"github.com/rs/zerolog"
)

var ErrSessionNotFound = errors.New("no open session for draft")

// RemoteFor returns the draft store used on behalf of owner.
type RemoteFor func(owner model.UserID) repository.DraftRepository

// Registry holds the open sessions, keyed by the backup key the session was
// opened with. Sessions of provisional drafts are also reachable by their
// server id once the first commit assigned one.
type Registry struct {
	ctx       context.Context
	remoteFor RemoteFor
	local     backup.Store
	monitor   connectivity.Monitor
	cfg       Config
	log       zerolog.Logger

	sessions *cache.Cache[string, *Session]
	aliases  *cache.Cache[model.DraftID, string]

	openMu sync.Mutex

	notifyMu sync.RWMutex
	notifier func(Event)
}

// NewRegistry creates a registry whose sessions run until ctx is done or they
// are removed.
func NewRegistry(ctx context.Context, remoteFor RemoteFor, local backup.Store, monitor connectivity.Monitor, cfg Config, log zerolog.Logger) *Registry {
	return &Registry{
		ctx:       ctx,
		remoteFor: remoteFor,
		local:     local,
		monitor:   monitor,
		cfg:       cfg,
		log:       log,
		sessions:  cache.NewCache[string, *Session](),
		aliases:   cache.NewCache[model.DraftID, string](),
	}
}

// SetNotifier receives the events of every session in the registry.
func (r *Registry) SetNotifier(fn func(Event)) {
	r.notifyMu.Lock()
	defer r.notifyMu.Unlock()
	r.notifier = fn
}

func (r *Registry) notify(ev Event) {
	if ev.DraftID != "" && string(ev.DraftID) != ev.Key {
		r.aliases.Set(ev.DraftID, ev.Key)
	}

	r.notifyMu.RLock()
	fn := r.notifier
	r.notifyMu.RUnlock()
	if fn != nil {
		fn(ev)
	}
}

// Open returns the session of the draft identified by key, opening it when
// needed. An empty key starts a fresh draft. A key is either the provisional id
// of a draft that only exists in the local backup, or a server id.
func (r *Registry) Open(ctx context.Context, owner model.UserID, key string) (*Session, error) {
	if key != "" {
		if s, err := r.Get(owner, key); err == nil {
			return s, nil
		}
	}

	r.openMu.Lock()
	defer r.openMu.Unlock()

	adapter := persist.New(r.remoteFor(owner), r.local, r.monitor, r.cfg.Persist(), r.log)

	var doc model.DraftDocument
	switch key {
	case "":
		doc = model.NewDraft(owner)
	default:
		if s, err := r.Get(owner, key); err == nil {
			return s, nil
		}

		var err error
		doc, err = adapter.LoadProvisional(key)
		if errors.Is(err, persist.ErrNoBackup) {
			doc, err = adapter.Load(ctx, model.DraftID(key))
		}
		if err != nil {
			return nil, fmt.Errorf("opening draft %s: %w", key, err)
		}
		if doc.Owner != "" && doc.Owner != owner {
			return nil, fmt.Errorf("opening draft %s: %w", key, repository.ErrNotFound)
		}
		doc.Owner = owner
	}

	s := NewSession(doc, adapter, r.monitor, r.cfg, r.log)
	s.SetNotifier(r.notify)
	if existing, loaded := r.sessions.GetOrSet(s.Key(), s); loaded {
		return existing, nil
	}
	if doc.ID != "" && string(doc.ID) != s.Key() {
		r.aliases.Set(doc.ID, s.Key())
	}

	s.Start(r.ctx)
	r.log.Info().Str("draft_key", s.Key()).Str("draft_id", string(doc.ID)).Msg("Opened draft session")
	return s, nil
}

// Get returns an open session by backup key or server id. Sessions of other
// owners are reported as not found.
func (r *Registry) Get(owner model.UserID, key string) (*Session, error) {
	s, ok := r.sessions.Get(key)
	if !ok {
		if alias, found := r.aliases.Get(model.DraftID(key)); found {
			s, ok = r.sessions.Get(alias)
		}
	}
	if !ok || s.Owner() != owner {
		return nil, ErrSessionNotFound
	}
	return s, nil
}

// Remove closes the session without committing pending edits.
func (r *Registry) Remove(owner model.UserID, key string) error {
	s, err := r.Get(owner, key)
	if err != nil {
		return err
	}
	r.forget(s)
	s.Close()
	return nil
}

// Delete deletes the draft and closes its session.
func (r *Registry) Delete(ctx context.Context, owner model.UserID, key string) error {
	s, err := r.Get(owner, key)
	if err != nil {
		return err
	}
	if err := s.Delete(ctx); err != nil {
		return err
	}
	r.forget(s)
	return nil
}

func (r *Registry) forget(s *Session) {
	r.sessions.Delete(s.Key())
	if id := s.Document().ID; id != "" {
		r.aliases.Delete(id)
	}
}

// Len is the number of open sessions.
func (r *Registry) Len() int {
	return r.sessions.Len()
}

// FlushAll flushes every open session and reports every failure.
func (r *Registry) FlushAll(ctx context.Context) error {
	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		errs []error
	)
	for _, s := range r.sessions.Values() {
		wg.Add(1)
		go func(s *Session) {
			defer wg.Done()
			status, err := s.Flush(ctx)
			if err != nil && !errors.Is(err, ErrClosed) {
				mu.Lock()
				errs = append(errs, fmt.Errorf("flushing draft %s: %w", s.Key(), err))
				mu.Unlock()
				return
			}
			r.log.Debug().Str("draft_key", s.Key()).Str("status", string(status)).Msg("Flushed draft")
		}(s)
	}
	wg.Wait()
	return errors.Join(errs...)
}

// Close stops every session.
func (r *Registry) Close() {
	for _, s := range r.sessions.Values() {
		s.Close()
	}
	r.sessions.Clear()
	r.aliases.Clear()
}
