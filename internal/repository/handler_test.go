package repository

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/debemdeboas/the-pantry/internal/auth"
	"github.com/debemdeboas/the-pantry/internal/model"
)

func newTestServer(t *testing.T) (*MemoryDraftRepository, http.Handler) {
	t.Helper()
	repo := NewMemoryDraftRepository()
	mux := http.NewServeMux()
	NewHandler(repo).Register(mux)
	return repo, auth.WithUserHeader(mux)
}

func doRequest(h http.Handler, method, path, user string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	if user != "" {
		req.Header.Set("X-User-ID", user)
	}
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func TestHandlerHealth(t *testing.T) {
	_, h := newTestServer(t)
	rr := doRequest(h, http.MethodGet, "/healthz", "", nil)
	if rr.Code != http.StatusNoContent {
		t.Errorf("Expected 204, got %d", rr.Code)
	}
}

func TestHandlerLifecycle(t *testing.T) {
	repo, h := newTestServer(t)

	rr := doRequest(h, http.MethodPost, "/api/drafts", "cook", soup())
	if rr.Code != http.StatusCreated {
		t.Fatalf("Expected 201, got %d: %s", rr.Code, rr.Body.String())
	}
	var created CreateResult
	if err := json.NewDecoder(rr.Body).Decode(&created); err != nil {
		t.Fatalf("Failed to decode create response: %v", err)
	}
	if created.ID == "" {
		t.Fatal("Expected a draft id")
	}

	content := soup()
	content.Tags = []string{"winter"}
	rr = doRequest(h, http.MethodPut, "/api/drafts/"+string(created.ID), "cook", content)
	if rr.Code != http.StatusOK {
		t.Fatalf("Expected 200 on update, got %d: %s", rr.Code, rr.Body.String())
	}

	rr = doRequest(h, http.MethodGet, "/api/drafts/"+string(created.ID), "cook", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("Expected 200 on get, got %d", rr.Code)
	}
	var doc model.DraftDocument
	json.NewDecoder(rr.Body).Decode(&doc)
	if len(doc.Content.Tags) != 1 || doc.CompletionPercentage != 60 {
		t.Errorf("Unexpected document: %+v", doc)
	}

	rr = doRequest(h, http.MethodGet, "/api/drafts", "cook", nil)
	var summaries []model.DraftSummary
	json.NewDecoder(rr.Body).Decode(&summaries)
	if len(summaries) != 1 || summaries[0].ID != created.ID {
		t.Errorf("Unexpected list: %+v", summaries)
	}

	rr = doRequest(h, http.MethodDelete, "/api/drafts/"+string(created.ID), "cook", nil)
	if rr.Code != http.StatusNoContent {
		t.Errorf("Expected 204 on delete, got %d", rr.Code)
	}
	if _, err := repo.Get(context.Background(), created.ID); err == nil {
		t.Error("Expected draft to be deleted")
	}
}

func TestHandlerErrors(t *testing.T) {
	repo, h := newTestServer(t)
	res, _ := repo.Create(context.Background(), "cook", soup())

	bad := soup()
	bad.BasicInfo.Servings = -1

	testCases := []struct {
		name     string
		method   string
		path     string
		user     string
		body     any
		expected int
	}{
		{"Invalid content", http.MethodPost, "/api/drafts", "cook", bad, http.StatusUnprocessableEntity},
		{"Invalid update", http.MethodPut, "/api/drafts/" + string(res.ID), "cook", bad, http.StatusUnprocessableEntity},
		{"Unknown draft", http.MethodGet, "/api/drafts/missing", "cook", nil, http.StatusNotFound},
		{"Update unknown draft", http.MethodPut, "/api/drafts/missing", "cook", soup(), http.StatusNotFound},
		{"Other owner", http.MethodGet, "/api/drafts/" + string(res.ID), "baker", nil, http.StatusNotFound},
		{"Other owner delete", http.MethodDelete, "/api/drafts/" + string(res.ID), "baker", nil, http.StatusNotFound},
		{"List without user", http.MethodGet, "/api/drafts", "", nil, http.StatusUnauthorized},
		{"Method not allowed", http.MethodPatch, "/api/drafts/" + string(res.ID), "cook", nil, http.StatusMethodNotAllowed},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			rr := doRequest(h, tc.method, tc.path, tc.user, tc.body)
			if rr.Code != tc.expected {
				t.Errorf("Expected %d, got %d: %s", tc.expected, rr.Code, rr.Body.String())
			}
		})
	}
}

func TestHandlerMalformedBody(t *testing.T) {
	_, h := newTestServer(t)

	req := httptest.NewRequest(http.MethodPost, "/api/drafts", strings.NewReader("{not json"))
	req.Header.Set("X-User-ID", "cook")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Errorf("Expected 400, got %d", rr.Code)
	}
}
