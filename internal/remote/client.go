// Package remote talks to a draft store over its HTTP API.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/debemdeboas/the-pantry/internal/config"
	"github.com/debemdeboas/the-pantry/internal/model"
	"github.com/debemdeboas/the-pantry/internal/repository"
	"github.com/debemdeboas/the-pantry/internal/routes"
)

// maxErrorBody bounds how much of an error response is kept as its message.
const maxErrorBody = 4 << 10

// Client is a repository.DraftRepository backed by a remote draft store.
type Client struct { // implements repository.DraftRepository
	baseURL string
	owner   model.UserID
	http    *http.Client
}

// NewClient returns a client acting on behalf of owner.
func NewClient(baseURL string, owner model.UserID, timeout time.Duration) *Client {
	return NewClientWithHTTP(baseURL, owner, &http.Client{Timeout: timeout})
}

func NewClientWithHTTP(baseURL string, owner model.UserID, hc *http.Client) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		owner:   owner,
		http:    hc,
	}
}

// ForOwner returns a client sharing the transport but acting for another owner.
func (c *Client) ForOwner(owner model.UserID) *Client {
	return &Client{baseURL: c.baseURL, owner: owner, http: c.http}
}

func (c *Client) Create(ctx context.Context, owner model.UserID, content model.RecipeContent) (repository.CreateResult, error) {
	var res repository.CreateResult
	err := c.ForOwner(owner).do(ctx, http.MethodPost, routes.APIDrafts, content, &res)
	return res, err
}

func (c *Client) Update(ctx context.Context, id model.DraftID, content model.RecipeContent) (time.Time, error) {
	var res struct {
		ModifiedAt time.Time `json:"modifiedAt"`
	}
	err := c.do(ctx, http.MethodPut, draftPath(id), content, &res)
	return res.ModifiedAt, err
}

func (c *Client) Get(ctx context.Context, id model.DraftID) (*model.DraftDocument, error) {
	var doc model.DraftDocument
	if err := c.do(ctx, http.MethodGet, draftPath(id), nil, &doc); err != nil {
		return nil, err
	}
	return &doc, nil
}

func (c *Client) List(ctx context.Context, owner model.UserID) ([]model.DraftSummary, error) {
	var summaries []model.DraftSummary
	if err := c.ForOwner(owner).do(ctx, http.MethodGet, routes.APIDrafts, nil, &summaries); err != nil {
		return nil, err
	}
	return summaries, nil
}

func (c *Client) Delete(ctx context.Context, id model.DraftID) error {
	return c.do(ctx, http.MethodDelete, draftPath(id), nil, nil)
}

// Ping checks that the store answers its health endpoint.
func (c *Client) Ping(ctx context.Context) error {
	return c.do(ctx, http.MethodGet, routes.HealthPath, nil, nil)
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("error encoding request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return err
	}
	if in != nil {
		req.Header.Set(config.HCType, config.CTypeJSON)
	}
	if c.owner != "" {
		req.Header.Set(config.HUserID, string(c.owner))
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return &repository.StatusError{Code: resp.StatusCode, Message: strings.TrimSpace(string(msg))}
	}

	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("error decoding %s %s response: %w", method, path, err)
	}
	return nil
}

func draftPath(id model.DraftID) string {
	return routes.APIDrafts + "/" + url.PathEscape(string(id))
}
