package repository

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/debemdeboas/the-pantry/internal/auth"
	"github.com/debemdeboas/the-pantry/internal/config"
	"github.com/debemdeboas/the-pantry/internal/model"
	"github.com/debemdeboas/the-pantry/internal/routes"
)

// maxBodyBytes bounds a draft request body.
const maxBodyBytes = 1 << 20

// Handler serves a DraftRepository as the remote draft store API.
type Handler struct {
	repo DraftRepository
}

func NewHandler(repo DraftRepository) *Handler {
	return &Handler{repo: repo}
}

type updateResponse struct {
	ModifiedAt time.Time `json:"modifiedAt"`
}

func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc(routes.HealthPath, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	mux.HandleFunc(routes.APIDrafts, h.serveDrafts)
	mux.HandleFunc(routes.APIDraft, h.serveDraft)
}

func (h *Handler) serveDrafts(w http.ResponseWriter, r *http.Request) {
	owner, _ := auth.UserIDFromContext(r.Context())

	switch r.Method {
	case http.MethodGet:
		if owner == "" {
			http.Error(w, "Missing user", http.StatusUnauthorized)
			return
		}
		summaries, err := h.repo.List(r.Context(), owner)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, summaries)
	case http.MethodPost:
		var content model.RecipeContent
		if !decodeBody(w, r, &content) {
			return
		}
		res, err := h.repo.Create(r.Context(), owner, content)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, res)
	default:
		http.Error(w, config.HTTPErrMethodNotAllowed, http.StatusMethodNotAllowed)
	}
}

func (h *Handler) serveDraft(w http.ResponseWriter, r *http.Request) {
	id := model.DraftID(r.PathValue("id"))

	switch r.Method {
	case http.MethodGet:
		doc, err := h.owned(r, id)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, doc)
	case http.MethodPut:
		var content model.RecipeContent
		if !decodeBody(w, r, &content) {
			return
		}
		if _, err := h.owned(r, id); err != nil {
			writeError(w, err)
			return
		}
		modified, err := h.repo.Update(r.Context(), id, content)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, updateResponse{ModifiedAt: modified})
	case http.MethodDelete:
		if _, err := h.owned(r, id); err != nil {
			writeError(w, err)
			return
		}
		if err := h.repo.Delete(r.Context(), id); err != nil {
			writeError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	default:
		http.Error(w, config.HTTPErrMethodNotAllowed, http.StatusMethodNotAllowed)
	}
}

// owned loads a draft and hides drafts that belong to someone else.
func (h *Handler) owned(r *http.Request, id model.DraftID) (*model.DraftDocument, error) {
	doc, err := h.repo.Get(r.Context(), id)
	if err != nil {
		return nil, err
	}
	if owner, ok := auth.UserIDFromContext(r.Context()); ok && doc.Owner != "" && doc.Owner != owner {
		return nil, ErrNotFound
	}
	return doc, nil
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
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
	if err := json.NewEncoder(w).Encode(v); err != nil {
		repoLogger.Error().Err(err).Msg("Error writing response")
	}
}

func writeError(w http.ResponseWriter, err error) {
	code := StatusCode(err)
	if code >= http.StatusInternalServerError {
		repoLogger.Error().Err(err).Msg("Draft store request failed")
		http.Error(w, http.StatusText(code), code)
		return
	}
	http.Error(w, err.Error(), code)
}
