// Package persist commits draft documents to the remote store, keeping a
// local backup of every attempt.
package persist

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/debemdeboas/the-pantry/internal/backup"
	"github.com/debemdeboas/the-pantry/internal/connectivity"
	"github.com/debemdeboas/the-pantry/internal/model"
	"github.com/debemdeboas/the-pantry/internal/progress"
	"github.com/debemdeboas/the-pantry/internal/repository"
	"github.com/debemdeboas/the-pantry/internal/util"
	"github.com/rs/zerolog"
)

type Config struct {
	MaxRetries    int
	BackupToLocal bool
	BaseBackoff   time.Duration
	MaxBackoff    time.Duration
}

func DefaultConfig() Config {
	return Config{
		MaxRetries:    3,
		BackupToLocal: true,
		BaseBackoff:   time.Second,
		MaxBackoff:    30 * time.Second,
	}
}

// Adapter persists one draft. It is not meant to be shared between drafts.
type Adapter struct {
	remote  repository.DraftRepository
	local   backup.Store
	monitor connectivity.Monitor
	cfg     Config
	log     zerolog.Logger

	clock func() time.Time

	mu        sync.Mutex
	attempts  int
	savedHash string
}

func New(remote repository.DraftRepository, local backup.Store, monitor connectivity.Monitor, cfg Config, log zerolog.Logger) *Adapter {
	if cfg.MaxRetries < 1 {
		cfg.MaxRetries = 1
	}
	return &Adapter{
		remote:  remote,
		local:   local,
		monitor: monitor,
		cfg:     cfg,
		log:     log,
		clock:   time.Now,
	}
}

// Commit makes one attempt to persist doc and returns the updated document.
// Failures are always returned as *Error.
func (a *Adapter) Commit(ctx context.Context, doc model.DraftDocument) (model.DraftDocument, error) {
	hash, err := util.JSONHash(doc.Content)
	if err != nil {
		doc.Status = model.StatusError
		return doc, &Error{Kind: KindPermanent, Err: err}
	}

	if doc.ID != "" && hash == a.SavedHash() {
		a.log.Debug().Str("draft_id", string(doc.ID)).Msg("Draft content unchanged, skipping commit")
		a.ResetRetries()
		doc.Status = model.StatusSaved
		return doc, nil
	}

	if a.cfg.BackupToLocal {
		a.writeBackup(doc)
	}

	if !a.monitor.Online() {
		doc.Status = model.StatusOffline
		return doc, &Error{Kind: KindOffline, Err: ErrOffline}
	}

	attempt := a.Attempts() + 1
	log := a.log.With().Str("draft_key", doc.BackupKey()).Int("attempt", attempt).Logger()

	created := false
	var modified time.Time
	if doc.ID == "" {
		modified, err = a.create(ctx, &doc)
		created = err == nil
	} else {
		modified, err = a.remote.Update(ctx, doc.ID, doc.Content)
		if errors.Is(err, repository.ErrNotFound) {
			log.Warn().Str("draft_id", string(doc.ID)).Msg("Draft missing from remote store, creating it again")
			modified, err = a.create(ctx, &doc)
		}
	}
	if err != nil {
		return a.fail(log, doc, err)
	}

	if modified.IsZero() {
		modified = a.clock().UTC()
	}
	doc.ModifiedAt = modified
	if doc.CreatedAt.IsZero() {
		doc.CreatedAt = modified
	}
	doc.Status = model.StatusSaved

	a.mu.Lock()
	a.attempts = 0
	a.savedHash = hash
	a.mu.Unlock()

	if created && doc.ProvisionalID != "" {
		a.evict(doc.ProvisionalID)
	}

	log.Debug().Str("draft_id", string(doc.ID)).Time("modified_at", modified).Msg("Draft committed")
	return doc, nil
}

func (a *Adapter) create(ctx context.Context, doc *model.DraftDocument) (time.Time, error) {
	res, err := a.remote.Create(ctx, doc.Owner, doc.Content)
	if err != nil {
		return time.Time{}, err
	}
	doc.ID = res.ID
	doc.CreatedAt = res.CreatedAt
	return res.ModifiedAt, nil
}

func (a *Adapter) fail(log zerolog.Logger, doc model.DraftDocument, err error) (model.DraftDocument, error) {
	kind := Classify(err)

	a.mu.Lock()
	if kind == KindTransient {
		a.attempts++
		if a.attempts >= a.cfg.MaxRetries {
			kind = KindExhausted
		}
	}
	attempt := a.attempts
	a.mu.Unlock()

	pe := &Error{Kind: kind, Attempt: attempt, Err: err}
	if kind == KindTransient {
		pe.RetryAfter = Backoff(attempt, a.cfg.BaseBackoff, a.cfg.MaxBackoff)
		log.Info().Err(err).Dur("retry_after", pe.RetryAfter).Msg("Commit failed, will retry")
	} else {
		log.Error().Err(err).Str("kind", kind.String()).Msg("Commit failed")
	}

	doc.Status = pe.Status(doc.Status)
	return doc, pe
}

// Attempts is the number of consecutive transient failures.
func (a *Adapter) Attempts() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.attempts
}

func (a *Adapter) ResetRetries() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.attempts = 0
}

// SavedHash is the content hash of the last content known to be in the remote store.
func (a *Adapter) SavedHash() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.savedHash
}

// Dirty reports whether doc has content the remote store has not acknowledged.
func (a *Adapter) Dirty(doc model.DraftDocument) bool {
	hash, err := util.JSONHash(doc.Content)
	return err != nil || hash != a.SavedHash()
}

// Load resumes a saved draft. A local backup that is at least as new as the
// remote copy and holds different content wins, as does any local backup when
// the remote store cannot be reached.
func (a *Adapter) Load(ctx context.Context, id model.DraftID) (model.DraftDocument, error) {
	local, err := a.local.Get(string(id))
	if err != nil {
		a.log.Warn().Err(err).Str("draft_id", string(id)).Msg("Ignoring unreadable local backup")
		local = nil
	}

	var remote *model.DraftDocument
	if a.monitor.Online() {
		remote, err = a.remote.Get(ctx, id)
	} else {
		err = ErrOffline
	}

	if err != nil {
		kind := Classify(err)
		if local != nil && (kind == KindTransient || kind == KindOffline) && !errors.Is(err, repository.ErrNotFound) {
			a.log.Info().Err(err).Str("draft_id", string(id)).Msg("Remote store unavailable, resuming from local backup")
			doc := local.Clone()
			doc.ID = id
			doc.Status = model.StatusOffline
			progress.Apply(&doc)
			return doc, nil
		}
		if errors.Is(err, repository.ErrNotFound) {
			return model.DraftDocument{}, err
		}
		return model.DraftDocument{}, &Error{Kind: kind, Err: err}
	}

	doc := remote.Clone()
	doc.Status = model.StatusSaved
	if hash, err := util.JSONHash(doc.Content); err == nil {
		a.mu.Lock()
		a.savedHash = hash
		a.mu.Unlock()
	}

	if local != nil && !local.ModifiedAt.Before(remote.ModifiedAt) && a.Dirty(*local) {
		a.log.Info().Str("draft_id", string(id)).Msg("Local backup holds unsaved edits, resuming from it")
		doc.Content = local.Content.Clone()
		doc.ProvisionalID = local.ProvisionalID
	}
	progress.Apply(&doc)
	return doc, nil
}

// LoadProvisional resumes a draft that was never saved remotely.
func (a *Adapter) LoadProvisional(key string) (model.DraftDocument, error) {
	local, err := a.local.Get(key)
	if err != nil {
		return model.DraftDocument{}, err
	}
	if local == nil || local.ID != "" {
		return model.DraftDocument{}, ErrNoBackup
	}

	doc := local.Clone()
	if doc.ProvisionalID == "" {
		doc.ProvisionalID = key
	}
	progress.Apply(&doc)
	return doc, nil
}

// Delete removes the draft remotely and evicts its local backups.
// A draft already missing from the remote store is not an error.
func (a *Adapter) Delete(ctx context.Context, doc model.DraftDocument) error {
	if doc.ID != "" {
		if !a.monitor.Online() {
			return &Error{Kind: KindOffline, Err: ErrOffline}
		}
		if err := a.remote.Delete(ctx, doc.ID); err != nil && !errors.Is(err, repository.ErrNotFound) {
			return &Error{Kind: Classify(err), Err: err}
		}
		a.evict(string(doc.ID))
	}
	if doc.ProvisionalID != "" {
		a.evict(doc.ProvisionalID)
	}

	a.mu.Lock()
	a.savedHash = ""
	a.attempts = 0
	a.mu.Unlock()
	return nil
}

// Local backup failures never fail a commit.
func (a *Adapter) writeBackup(doc model.DraftDocument) {
	if err := a.local.Put(doc.BackupKey(), doc); err != nil {
		a.log.Warn().Err(err).Str("draft_key", doc.BackupKey()).Msg("Local backup failed")
	}
}

func (a *Adapter) evict(key string) {
	if err := a.local.Delete(key); err != nil {
		a.log.Warn().Err(err).Str("draft_key", key).Msg("Failed to evict local backup")
	}
}
