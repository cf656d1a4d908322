package autosave

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/debemdeboas/the-pantry/internal/connectivity"
	"github.com/debemdeboas/the-pantry/internal/model"
	"github.com/debemdeboas/the-pantry/internal/persist"
	"github.com/debemdeboas/the-pantry/internal/util"
)

// fakeCommitter plays back queued failures and records every commit it sees.
type fakeCommitter struct {
	monitor connectivity.Monitor

	mu          sync.Mutex
	failures    []*persist.Error
	commits     []model.DraftDocument
	inflight    int
	maxInflight int
	resets      int
	deletes     int
	deleteErr   error
	savedHash   string
	nextID      int

	// When set, every commit waits for a value before returning.
	gate chan struct{}
}

func newFakeCommitter(monitor connectivity.Monitor, failures ...*persist.Error) *fakeCommitter {
	return &fakeCommitter{monitor: monitor, failures: failures}
}

func (f *fakeCommitter) Commit(ctx context.Context, doc model.DraftDocument) (model.DraftDocument, error) {
	f.mu.Lock()
	f.inflight++
	if f.inflight > f.maxInflight {
		f.maxInflight = f.inflight
	}
	f.commits = append(f.commits, doc.Clone())
	gate := f.gate
	f.mu.Unlock()

	defer func() {
		f.mu.Lock()
		f.inflight--
		f.mu.Unlock()
	}()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return doc, &persist.Error{Kind: persist.KindTransient, Err: ctx.Err()}
		}
	}

	if f.monitor != nil && !f.monitor.Online() {
		doc.Status = model.StatusOffline
		return doc, &persist.Error{Kind: persist.KindOffline, Err: persist.ErrOffline}
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if len(f.failures) > 0 {
		pe := f.failures[0]
		f.failures = f.failures[1:]
		doc.Status = pe.Status(doc.Status)
		return doc, pe
	}

	if doc.ID == "" {
		f.nextID++
		doc.ID = model.DraftID(fmt.Sprintf("draft-%d", f.nextID))
		doc.CreatedAt = time.Now().UTC()
	}
	doc.ModifiedAt = time.Now().UTC()
	doc.Status = model.StatusSaved
	f.savedHash, _ = util.JSONHash(doc.Content)
	return doc, nil
}

func (f *fakeCommitter) ResetRetries() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.resets++
}

func (f *fakeCommitter) Dirty(doc model.DraftDocument) bool {
	hash, _ := util.JSONHash(doc.Content)
	f.mu.Lock()
	defer f.mu.Unlock()
	return hash != f.savedHash
}

func (f *fakeCommitter) Delete(ctx context.Context, doc model.DraftDocument) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.deleteErr != nil {
		return f.deleteErr
	}
	f.deletes++
	return nil
}

func (f *fakeCommitter) Commits() []model.DraftDocument {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]model.DraftDocument, len(f.commits))
	copy(out, f.commits)
	return out
}

func (f *fakeCommitter) CommitCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.commits)
}

func (f *fakeCommitter) MaxInflight() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.maxInflight
}

func (f *fakeCommitter) Resets() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.resets
}

func (f *fakeCommitter) Deletes() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.deletes
}

func transient(retryAfter time.Duration) *persist.Error {
	return &persist.Error{Kind: persist.KindTransient, RetryAfter: retryAfter, Err: fmt.Errorf("503 from store")}
}

func exhausted() *persist.Error {
	return &persist.Error{Kind: persist.KindExhausted, Err: fmt.Errorf("503 from store")}
}

func permanent() *persist.Error {
	return &persist.Error{Kind: persist.KindPermanent, Err: fmt.Errorf("422 from store")}
}

func testConfig() Config {
	return Config{
		Debounce:      20 * time.Millisecond,
		MaxRetries:    3,
		BackupToLocal: true,
		BaseBackoff:   10 * time.Millisecond,
		MaxBackoff:    40 * time.Millisecond,
		CommitTimeout: 2 * time.Second,
	}
}

func title(s string) model.ContentPatch {
	return model.ContentPatch{BasicInfo: &model.BasicInfoPatch{Title: &s}}
}

// waitFor polls cond until it holds or the deadline passes.
func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("Timed out waiting for %s", what)
}

// eventLog records notifier events.
type eventLog struct {
	mu     sync.Mutex
	events []Event
}

func (l *eventLog) record(ev Event) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, ev)
}

func (l *eventLog) States() []State {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]State, 0, len(l.events))
	for _, ev := range l.events {
		out = append(out, ev.State)
	}
	return out
}

func (l *eventLog) All() []Event {
	l.mu.Lock()
	defer l.mu.Unlock()
	return slices.Clone(l.events)
}

func (l *eventLog) Last() (Event, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.events) == 0 {
		return Event{}, false
	}
	return l.events[len(l.events)-1], true
}
