// Package editor exposes autosave sessions to the browser editor over HTTP.
package editor

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/debemdeboas/the-pantry/internal/auth"
	"github.com/debemdeboas/the-pantry/internal/autosave"
	"github.com/debemdeboas/the-pantry/internal/config"
	"github.com/debemdeboas/the-pantry/internal/model"
	"github.com/debemdeboas/the-pantry/internal/persist"
	"github.com/debemdeboas/the-pantry/internal/repository"
	"github.com/debemdeboas/the-pantry/internal/routes"
	"github.com/debemdeboas/the-pantry/internal/sse"
	"github.com/rs/zerolog"
)

const (
	maxPatchBytes = 1 << 20

	// flushTimeout bounds a flush request, retries included.
	flushTimeout = 2 * time.Minute
)

type Handler struct {
	registry *autosave.Registry
	clients  *sse.SSEClients
	log      zerolog.Logger
}

// NewHandler serves the sessions of registry and forwards their events to
// the SSE clients.
func NewHandler(registry *autosave.Registry, clients *sse.SSEClients, log zerolog.Logger) *Handler {
	h := &Handler{
		registry: registry,
		clients:  clients,
		log:      log,
	}
	registry.SetNotifier(h.broadcast)
	return h
}

type keyResponse struct {
	Key string `json:"key"`
}

type sessionView struct {
	Key      string               `json:"key"`
	DraftID  model.DraftID        `json:"draftId,omitempty"`
	Status   model.Status         `json:"status"`
	State    autosave.State       `json:"state"`
	Progress autosave.Progress    `json:"progress"`
	Error    string               `json:"error,omitempty"`
	Document *model.DraftDocument `json:"document,omitempty"`
}

func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc(routes.EditorDrafts, h.serveNew)
	mux.HandleFunc(routes.EditorDraft, h.serveDraft)
	mux.HandleFunc(routes.EditorDraftOpen, h.serveOpen)
	mux.HandleFunc(routes.EditorDraftFlush, h.serveFlush)
	mux.HandleFunc(routes.EditorDraftRetry, h.serveRetry)
	mux.HandleFunc(routes.SSEPath, h.serveEvents)
}

func (h *Handler) serveNew(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, config.HTTPErrMethodNotAllowed, http.StatusMethodNotAllowed)
		return
	}

	owner, _ := auth.UserIDFromContext(r.Context())
	s, err := h.registry.Open(r.Context(), owner, "")
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, keyResponse{Key: s.Key()})
}

// serveOpen resumes a draft by provisional key or server id.
func (h *Handler) serveOpen(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, config.HTTPErrMethodNotAllowed, http.StatusMethodNotAllowed)
		return
	}

	owner, _ := auth.UserIDFromContext(r.Context())
	s, err := h.registry.Open(r.Context(), owner, r.PathValue("key"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view(s, true))
}

func (h *Handler) serveDraft(w http.ResponseWriter, r *http.Request) {
	owner, _ := auth.UserIDFromContext(r.Context())
	key := r.PathValue("key")

	switch r.Method {
	case http.MethodGet:
		s, err := h.registry.Get(owner, key)
		if err != nil {
			h.writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, view(s, true))
	case http.MethodPatch:
		var patch model.ContentPatch
		if !decodeBody(w, r, &patch) {
			return
		}
		s, err := h.registry.Get(owner, key)
		if err != nil {
			h.writeError(w, err)
			return
		}
		if err := s.Edit(patch); err != nil {
			h.writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, view(s, false))
	case http.MethodDelete:
		if err := h.registry.Delete(r.Context(), owner, key); err != nil {
			h.writeError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	default:
		http.Error(w, config.HTTPErrMethodNotAllowed, http.StatusMethodNotAllowed)
	}
}

// serveFlush answers once the pending edits are saved, the store was found
// offline, or the commit failed for good. A failed commit is reported in the
// body, not in the response code.
func (h *Handler) serveFlush(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, config.HTTPErrMethodNotAllowed, http.StatusMethodNotAllowed)
		return
	}

	owner, _ := auth.UserIDFromContext(r.Context())
	s, err := h.registry.Get(owner, r.PathValue("key"))
	if err != nil {
		h.writeError(w, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), flushTimeout)
	defer cancel()

	_, err = s.Flush(ctx)
	if err != nil && (errors.Is(err, autosave.ErrClosed) || ctx.Err() != nil) {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view(s, false))
}

func (h *Handler) serveRetry(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, config.HTTPErrMethodNotAllowed, http.StatusMethodNotAllowed)
		return
	}

	owner, _ := auth.UserIDFromContext(r.Context())
	s, err := h.registry.Get(owner, r.PathValue("key"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	if err := s.RetryNow(); err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, view(s, false))
}

func (h *Handler) serveEvents(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, config.HTTPErrMethodNotAllowed, http.StatusMethodNotAllowed)
		return
	}

	key := r.URL.Query().Get("draft")
	if key == "" {
		http.Error(w, "Draft parameter required", http.StatusBadRequest)
		return
	}
	owner, _ := auth.UserIDFromContext(r.Context())
	if _, err := h.registry.Get(owner, key); err != nil {
		h.writeError(w, err)
		return
	}

	h.log.Debug().Str("draft_key", key).Msg("New SSE client connected")
	defer h.log.Debug().Str("draft_key", key).Msg("SSE client disconnected")

	if err := h.clients.Serve(w, r, sse.NewClient(key)); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

// broadcast runs on the session goroutines and must not block.
func (h *Handler) broadcast(ev autosave.Event) {
	data, err := json.Marshal(ev)
	if err != nil {
		h.log.Error().Err(err).Msg("Error encoding draft event")
		return
	}
	h.clients.Broadcast(sse.Message{Event: "status", Data: string(data)}, ev.Key, string(ev.DraftID))
}

func view(s *autosave.Session, withDocument bool) sessionView {
	doc := s.Document()
	v := sessionView{
		Key:      s.Key(),
		DraftID:  doc.ID,
		Status:   doc.Status,
		State:    s.State(),
		Progress: autosave.Progress{Flags: doc.Progress, Percentage: doc.CompletionPercentage},
	}
	if err := s.LastError(); err != nil {
		v.Error = err.Error()
	}
	if withDocument {
		v.Document = &doc
	}
	return v
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxPatchBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			http.Error(w, "Request body too large", http.StatusRequestEntityTooLarge)
			return false
		}
		http.Error(w, "Invalid JSON body", http.StatusBadRequest)
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set(config.HCType, config.CTypeJSON)
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	code := statusCode(err)
	if code >= http.StatusInternalServerError {
		h.log.Error().Err(err).Msg("Editor request failed")
		http.Error(w, http.StatusText(code), code)
		return
	}
	http.Error(w, err.Error(), code)
}

func statusCode(err error) int {
	switch {
	case errors.Is(err, autosave.ErrSessionNotFound):
		return http.StatusNotFound
	case errors.Is(err, autosave.ErrClosed):
		return http.StatusGone
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.Is(err, persist.ErrOffline):
		return http.StatusServiceUnavailable
	}
	var pe *persist.Error
	if errors.As(err, &pe) && pe.Kind == persist.KindOffline {
		return http.StatusServiceUnavailable
	}
	return repository.StatusCode(err)
}
