// Package autosave decides when an open draft is committed while it is being
// edited.
package autosave

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/debemdeboas/the-pantry/internal/connectivity"
	"github.com/debemdeboas/the-pantry/internal/model"
	"github.com/debemdeboas/the-pantry/internal/persist"
	"github.com/debemdeboas/the-pantry/internal/progress"
	"github.com/rs/zerolog"
)

var ErrClosed = errors.New("autosave session is closed")

// Committer persists the draft of one session. *persist.Adapter implements it.
type Committer interface {
	Commit(ctx context.Context, doc model.DraftDocument) (model.DraftDocument, error)
	ResetRetries()
	Dirty(doc model.DraftDocument) bool
	Delete(ctx context.Context, doc model.DraftDocument) error
}

type flushResult struct {
	status model.Status
	err    error
}

type deleteRequest struct {
	ctx  context.Context
	done chan error
}

type commitResult struct {
	doc model.DraftDocument
	err error
}

// Session owns one draft while it is open for editing. A single goroutine
// runs the state machine; at most one commit is in flight at any time.
type Session struct {
	key       string
	committer Committer
	monitor   connectivity.Monitor
	cfg       Config
	log       zerolog.Logger

	mu       sync.RWMutex
	doc      model.DraftDocument
	state    State
	lastErr  error
	notifier func(Event)

	editCh   chan struct{}
	flushCh  chan chan flushResult
	retryCh  chan chan error
	deleteCh chan deleteRequest
	commitCh chan commitResult

	lifecycle sync.Mutex
	started   bool
	cancel    context.CancelFunc
	done      chan struct{}
	closeOnce sync.Once

	// Owned by the loop goroutine.
	loop loopState
}

type loopState struct {
	inflight        bool
	inflightVersion uint64

	lastEditAt       time.Time
	firstUnsavedAt   time.Time
	lastAttemptStart time.Time
	backoffUntil     time.Time

	flushWaiters  []chan flushResult
	pendingDelete *deleteRequest

	timer  *time.Timer
	timerC <-chan time.Time

	lastStatus  model.Status
	lastState   State
	lastPercent int
}

func NewSession(doc model.DraftDocument, committer Committer, monitor connectivity.Monitor, cfg Config, log zerolog.Logger) *Session {
	progress.Apply(&doc)

	timer := time.NewTimer(time.Hour)
	timer.Stop()

	key := doc.BackupKey()
	return &Session{
		key:       key,
		committer: committer,
		monitor:   monitor,
		cfg:       cfg,
		log:       log.With().Str("draft_key", key).Logger(),

		doc:   doc,
		state: StateIdle,

		editCh:   make(chan struct{}, 1),
		flushCh:  make(chan chan flushResult),
		retryCh:  make(chan chan error),
		deleteCh: make(chan deleteRequest),
		commitCh: make(chan commitResult, 1),

		done: make(chan struct{}),

		loop: loopState{
			timer:       timer,
			lastState:   StateIdle,
			lastStatus:  doc.Status,
			lastPercent: doc.CompletionPercentage,
		},
	}
}

// Start runs the session until ctx is done or Close is called.
// A resumed draft with unsaved content is committed after the debounce delay.
func (s *Session) Start(ctx context.Context) {
	s.lifecycle.Lock()
	defer s.lifecycle.Unlock()
	if s.started || s.isClosed() {
		return
	}
	s.started = true

	ctx, s.cancel = context.WithCancel(ctx)
	online, unsubscribe := s.monitor.Subscribe()

	s.mu.Lock()
	unsaved := (s.doc.ID != "" || !s.doc.Content.IsZero()) && s.committer.Dirty(s.doc)
	if unsaved {
		now := time.Now()
		s.loop.lastEditAt = now
		s.loop.firstUnsavedAt = now
		s.state = StatePendingDebounce
	}
	s.mu.Unlock()

	go s.run(ctx, online, unsubscribe)
}

// Close stops the session without committing pending edits.
func (s *Session) Close() {
	s.lifecycle.Lock()
	defer s.lifecycle.Unlock()
	s.closeOnce.Do(func() {
		if s.started {
			s.cancel()
			<-s.done
			return
		}
		close(s.done)
	})
}

// Done is closed when the session has stopped.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

func (s *Session) isClosed() bool {
	select {
	case <-s.done:
		return true
	default:
		return false
	}
}

func (s *Session) Key() string {
	return s.key
}

func (s *Session) Owner() model.UserID {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.doc.Owner
}

func (s *Session) Status() model.Status {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.doc.Status
}

func (s *Session) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

func (s *Session) Progress() Progress {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Progress{Flags: s.doc.Progress, Percentage: s.doc.CompletionPercentage}
}

// Document returns a copy of the current draft.
func (s *Session) Document() model.DraftDocument {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.doc.Clone()
}

// LastError is the failure that put the session in the terminal error state.
func (s *Session) LastError() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastErr
}

// SetNotifier sets the function called on every status or state change.
// It runs on the session goroutine and must not block.
func (s *Session) SetNotifier(fn func(Event)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.notifier = fn
}

// Edit merges patch into the draft. Progress is recomputed before Edit returns.
func (s *Session) Edit(patch model.ContentPatch) error {
	if s.isClosed() {
		return ErrClosed
	}
	if patch.IsEmpty() {
		return nil
	}

	s.mu.Lock()
	s.doc.Content = s.doc.Content.Apply(patch)
	progress.Apply(&s.doc)
	s.doc.Version++
	s.mu.Unlock()

	select {
	case s.editCh <- struct{}{}:
	default:
	}
	return nil
}

// Flush commits pending edits now and waits until they are persisted, the
// store is found offline, or the commit fails terminally.
func (s *Session) Flush(ctx context.Context) (model.Status, error) {
	reply := make(chan flushResult, 1)
	select {
	case s.flushCh <- reply:
	case <-s.done:
		return s.Status(), ErrClosed
	case <-ctx.Done():
		return s.Status(), ctx.Err()
	}

	select {
	case r := <-reply:
		return r.status, r.err
	case <-ctx.Done():
		return s.Status(), ctx.Err()
	}
}

// RetryNow commits immediately from the terminal error, backoff or offline
// states, with the retry counter reset. In other states it does nothing.
func (s *Session) RetryNow() error {
	ack := make(chan error, 1)
	select {
	case s.retryCh <- ack:
	case <-s.done:
		return ErrClosed
	}
	return <-ack
}

// Delete removes the draft remotely and locally, after any in-flight commit
// has returned. The session is closed when Delete succeeds.
func (s *Session) Delete(ctx context.Context) error {
	req := deleteRequest{ctx: ctx, done: make(chan error, 1)}
	select {
	case s.deleteCh <- req:
	case <-s.done:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case err := <-req.done:
		if err == nil {
			<-s.done
		}
		return err
	case <-s.done:
		select {
		case err := <-req.done:
			return err
		default:
			return ErrClosed
		}
	}
}

func (s *Session) run(ctx context.Context, online <-chan bool, unsubscribe func()) {
	defer close(s.done)
	defer unsubscribe()
	defer s.loop.timer.Stop()

	s.evaluate(ctx)

	for {
		select {
		case <-ctx.Done():
			s.shutdown()
			return
		case <-s.editCh:
			s.onEdit()
		case reply := <-s.flushCh:
			s.onFlush(reply)
		case ack := <-s.retryCh:
			s.onRetry(ctx)
			ack <- nil
		case req := <-s.deleteCh:
			if s.onDelete(req) {
				return
			}
		case res := <-s.commitCh:
			if s.onCommitDone(res) {
				return
			}
		case up := <-online:
			s.onConnectivity(up)
		case <-s.loop.timerC:
			s.loop.timerC = nil
		}
		s.evaluate(ctx)
	}
}

// evaluate starts a commit when the current state allows one, or arms the
// timer for the earliest moment it will.
func (s *Session) evaluate(ctx context.Context) {
	l := &s.loop
	if l.inflight || l.pendingDelete != nil {
		return
	}

	now := time.Now()
	switch s.State() {
	case StatePendingDebounce:
		due := l.lastEditAt.Add(s.cfg.Debounce)
		if s.cfg.MinSaveInterval > 0 && !l.firstUnsavedAt.IsZero() {
			// Sustained editing never postpones a commit beyond this.
			if forced := l.firstUnsavedAt.Add(s.cfg.Debounce + s.cfg.MinSaveInterval); forced.Before(due) {
				due = forced
			}
		}
		if !l.lastAttemptStart.IsZero() {
			if floor := l.lastAttemptStart.Add(s.cfg.MinSaveInterval); floor.After(due) {
				due = floor
			}
		}
		if len(l.flushWaiters) > 0 || !now.Before(due) {
			s.startCommit(ctx, now)
			return
		}
		s.arm(due.Sub(now))
	case StateBackoff:
		if !now.Before(l.backoffUntil) {
			s.startCommit(ctx, now)
			return
		}
		s.arm(l.backoffUntil.Sub(now))
	case StateOffline:
		if len(l.flushWaiters) > 0 || s.monitor.Online() {
			s.startCommit(ctx, now)
			return
		}
		s.disarm()
	default:
		s.disarm()
	}
}

func (s *Session) startCommit(ctx context.Context, now time.Time) {
	l := &s.loop
	s.disarm()

	s.mu.Lock()
	if s.monitor.Online() {
		s.doc.Status = model.StatusSaving
	}
	snapshot := s.doc.Clone()
	s.state = StateCommitting
	s.mu.Unlock()

	l.inflight = true
	l.inflightVersion = snapshot.Version
	l.lastAttemptStart = now
	l.firstUnsavedAt = time.Time{}
	s.emit()

	go func() {
		commitCtx, cancel := ctx, context.CancelFunc(func() {})
		if s.cfg.CommitTimeout > 0 {
			commitCtx, cancel = context.WithTimeout(ctx, s.cfg.CommitTimeout)
		}
		defer cancel()

		doc, err := s.committer.Commit(commitCtx, snapshot)
		s.commitCh <- commitResult{doc: doc, err: err}
	}()
}

// onCommitDone applies a commit outcome to the current document, which may
// have been edited while the commit was in flight.
func (s *Session) onCommitDone(res commitResult) (stopped bool) {
	l := &s.loop
	l.inflight = false
	now := time.Now()

	var pe *persist.Error
	if res.err != nil && !errors.As(res.err, &pe) {
		pe = &persist.Error{Kind: persist.Classify(res.err), Err: res.err}
	}

	s.mu.Lock()
	if res.doc.ID != "" {
		s.doc.ID = res.doc.ID
	}
	if !res.doc.ModifiedAt.IsZero() {
		s.doc.CreatedAt = res.doc.CreatedAt
		s.doc.ModifiedAt = res.doc.ModifiedAt
	}
	if res.doc.Status != "" {
		s.doc.Status = res.doc.Status
	}
	edited := s.doc.Version > l.inflightVersion

	switch {
	case res.err == nil:
		s.lastErr = nil
		if edited {
			s.state = StatePendingDebounce
		} else {
			s.state = StateIdle
		}
	case pe.Kind == persist.KindTransient:
		s.state = StateBackoff
		l.backoffUntil = now.Add(pe.RetryAfter)
	case pe.Kind == persist.KindOffline:
		s.state = StateOffline
	default:
		s.lastErr = res.err
		s.doc.Status = model.StatusError
		if edited {
			// New content is a new chance to succeed.
			s.committer.ResetRetries()
			s.state = StatePendingDebounce
		} else {
			s.state = StateTerminalError
		}
	}
	state, status := s.state, s.doc.Status
	s.mu.Unlock()

	ev := s.log.Debug()
	if res.err != nil {
		ev = s.log.Warn().Err(res.err)
	}
	ev.Str("state", state.String()).Str("status", string(status)).Msg("Commit finished")
	s.emit()

	if l.pendingDelete != nil {
		return s.finishDelete()
	}
	s.resolveFlush()
	return false
}

func (s *Session) onEdit() {
	l := &s.loop
	now := time.Now()
	l.lastEditAt = now
	if l.firstUnsavedAt.IsZero() {
		l.firstUnsavedAt = now
	}

	s.mu.Lock()
	if s.state == StateTerminalError {
		s.committer.ResetRetries()
		s.lastErr = nil
	}
	s.state = StatePendingDebounce
	s.mu.Unlock()

	s.emit()
}

// drainEdits processes an edit signal that raced with another request, so
// requests always observe edits made before them.
func (s *Session) drainEdits() {
	select {
	case <-s.editCh:
		s.onEdit()
	default:
	}
}

func (s *Session) onFlush(reply chan flushResult) {
	s.drainEdits()

	s.mu.RLock()
	state, status, lastErr := s.state, s.doc.Status, s.lastErr
	s.mu.RUnlock()

	switch state {
	case StateIdle:
		reply <- flushResult{status: status}
	case StateTerminalError:
		reply <- flushResult{status: status, err: lastErr}
	default:
		s.loop.flushWaiters = append(s.loop.flushWaiters, reply)
		if state == StateBackoff {
			s.loop.backoffUntil = time.Time{}
		}
	}
}

func (s *Session) resolveFlush() {
	l := &s.loop
	if len(l.flushWaiters) == 0 {
		return
	}

	s.mu.RLock()
	state, status, lastErr := s.state, s.doc.Status, s.lastErr
	s.mu.RUnlock()

	var res flushResult
	switch state {
	case StateIdle, StateOffline:
		res = flushResult{status: status}
	case StateTerminalError:
		res = flushResult{status: status, err: lastErr}
	default:
		// Still pending: edits arrived during the commit, or a retry is due.
		return
	}

	for _, w := range l.flushWaiters {
		w <- res
	}
	l.flushWaiters = nil
}

func (s *Session) onRetry(ctx context.Context) {
	s.drainEdits()

	switch s.State() {
	case StateTerminalError, StateBackoff, StateOffline:
		s.committer.ResetRetries()
		s.mu.Lock()
		s.lastErr = nil
		s.mu.Unlock()
		if !s.loop.inflight {
			s.log.Info().Msg("Manual retry")
			s.startCommit(ctx, time.Now())
		}
	}
}

func (s *Session) onConnectivity(online bool) {
	if online && s.State() == StateOffline {
		s.log.Info().Msg("Connectivity restored, committing")
	}
}

func (s *Session) onDelete(req deleteRequest) (stopped bool) {
	s.drainEdits()
	s.disarm()
	s.loop.pendingDelete = &req
	if s.loop.inflight {
		return false
	}
	return s.finishDelete()
}

func (s *Session) finishDelete() (stopped bool) {
	req := s.loop.pendingDelete
	s.loop.pendingDelete = nil

	if err := s.committer.Delete(req.ctx, s.Document()); err != nil {
		s.log.Error().Err(err).Msg("Failed to delete draft")
		req.done <- err
		s.resolveFlush()
		return false
	}

	s.log.Info().Msg("Draft deleted")
	s.setClosed()
	req.done <- nil
	return true
}

func (s *Session) shutdown() {
	if req := s.loop.pendingDelete; req != nil {
		req.done <- ErrClosed
		s.loop.pendingDelete = nil
	}
	s.setClosed()
}

func (s *Session) setClosed() {
	s.mu.Lock()
	s.state = StateClosed
	s.mu.Unlock()
	s.emit()

	for _, w := range s.loop.flushWaiters {
		w <- flushResult{status: s.Status(), err: ErrClosed}
	}
	s.loop.flushWaiters = nil
}

// emit notifies the observer when the status, state or completion changed
// since the last event.
func (s *Session) emit() {
	s.mu.RLock()
	ev := Event{
		Key:      s.key,
		DraftID:  s.doc.ID,
		Status:   s.doc.Status,
		State:    s.state,
		Progress: Progress{Flags: s.doc.Progress, Percentage: s.doc.CompletionPercentage},
	}
	if s.lastErr != nil {
		ev.Error = s.lastErr.Error()
	}
	notifier := s.notifier
	s.mu.RUnlock()

	l := &s.loop
	if ev.Status == l.lastStatus && ev.State == l.lastState && ev.Progress.Percentage == l.lastPercent {
		return
	}
	l.lastStatus, l.lastState, l.lastPercent = ev.Status, ev.State, ev.Progress.Percentage

	if notifier != nil {
		notifier(ev)
	}
}

func (s *Session) arm(d time.Duration) {
	s.disarm()
	s.loop.timer.Reset(d)
	s.loop.timerC = s.loop.timer.C
}

func (s *Session) disarm() {
	if !s.loop.timer.Stop() {
		select {
		case <-s.loop.timer.C:
		default:
		}
	}
	s.loop.timerC = nil
}
