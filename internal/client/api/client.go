// Package api is the REST client of the remote order service.
//
// Collections live under the base URL by resource name (POST /clientes,
// PUT /clientes/{id}, ...). Creates carry the local id both in the body and
// in the Idempotency-Key header so a retried create cannot duplicate a
// record. Failures map onto the sentinels in internal/common.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/dmitrijs2005/ordersync/internal/common"
)

const (
	defaultTimeout = 15 * time.Second
	maxErrorBody   = 512
)

type Client struct {
	baseURL string
	http    *http.Client
	token   func() string
}

type Option func(*Client)

// WithHTTPClient replaces the default client (15s timeout).
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithToken sets the bearer token source; an empty token sends no header.
func WithToken(token func() string) Option {
	return func(c *Client) { c.token = token }
}

func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: defaultTimeout},
		token:   func() string { return "" },
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

func (c *Client) do(ctx context.Context, method, path string, body any, header http.Header) ([]byte, error) {
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to encode request body: %w", err)
		}
		reader = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if t := c.token(); t != "" {
		req.Header.Set(common.AuthorizationHeaderName, "Bearer "+t)
	}
	for k, vs := range header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}

	resp, err := c.http.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil && errors.Is(err, ctxErr) {
			return nil, err
		}
		return nil, fmt.Errorf("%s %s: %w: %v", method, path, common.ErrTransientNetwork, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w: reading body: %v", method, path, common.ErrTransientNetwork, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg := strings.TrimSpace(string(data))
		if len(msg) > maxErrorBody {
			msg = msg[:maxErrorBody]
		}
		return nil, &StatusError{Method: method, Path: path, Code: resp.StatusCode, Body: msg}
	}
	return data, nil
}

func itemPath(resource string, serverID int64) string {
	return "/" + resource + "/" + strconv.FormatInt(serverID, 10)
}

// Create posts body to the resource collection and returns the id the
// remote assigned.
func (c *Client) Create(ctx context.Context, resource, localID string, body any) (int64, error) {
	h := http.Header{}
	h.Set(common.IdempotencyKeyHeaderName, localID)

	data, err := c.do(ctx, http.MethodPost, "/"+resource, body, h)
	if err != nil {
		return 0, err
	}

	var created struct {
		ID   int64 `json:"id"`
		Data *struct {
			ID int64 `json:"id"`
		} `json:"data"`
	}
	if err := json.Unmarshal(data, &created); err != nil {
		return 0, fmt.Errorf("POST /%s: %w: bad response: %v", resource, common.ErrRemoteRejected, err)
	}
	id := created.ID
	if id == 0 && created.Data != nil {
		id = created.Data.ID
	}
	if id == 0 {
		return 0, fmt.Errorf("POST /%s: %w: response without id", resource, common.ErrRemoteRejected)
	}
	return id, nil
}

// Update replaces the remote record (last write wins).
func (c *Client) Update(ctx context.Context, resource string, serverID int64, body any) error {
	_, err := c.do(ctx, http.MethodPut, itemPath(resource, serverID), body, nil)
	return err
}

// Delete removes the remote record. A record that is already gone counts as
// deleted.
func (c *Client) Delete(ctx context.Context, resource string, serverID int64) error {
	_, err := c.do(ctx, http.MethodDelete, itemPath(resource, serverID), nil, nil)
	if errors.Is(err, common.ErrRemoteNotFound) {
		return nil
	}
	return err
}

// List returns the raw records of a collection. Both a bare JSON array and
// a {"data": [...]} envelope are accepted.
func (c *Client) List(ctx context.Context, resource string) ([]json.RawMessage, error) {
	data, err := c.do(ctx, http.MethodGet, "/"+resource, nil, nil)
	if err != nil {
		return nil, err
	}

	var items []json.RawMessage
	if err := json.Unmarshal(data, &items); err == nil {
		return items, nil
	}
	var envelope struct {
		Data []json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(data, &envelope); err != nil {
		return nil, fmt.Errorf("GET /%s: %w: bad response: %v", resource, common.ErrRemoteRejected, err)
	}
	return envelope.Data, nil
}

// Health checks that the remote answers.
func (c *Client) Health(ctx context.Context) error {
	_, err := c.do(ctx, http.MethodGet, "/health", nil, nil)
	return err
}
