// Package rest implements the table store contract against a remote
// sheets-style HTTP service. It is the backend that actually exhibits the
// 429/404/403 status semantics the accessor is built around.
package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"researchdash/pkg/domain"
)

var (
	_ domain.Opener     = (*Client)(nil)
	_ domain.Connection = (*connection)(nil)
	_ domain.Worksheet  = (*worksheet)(nil)
)

// Config holds explicit construction parameters (mostly for tests). For prod
// we rely primarily on environment variables.
type Config struct {
	BaseURL    string
	Token      string        // bearer token, optional
	Timeout    time.Duration // default 30s
	HTTPClient *http.Client  // optional override
}

// Client talks to the remote service. One client serves any number of
// spreadsheet keys.
type Client struct {
	base  *url.URL
	token string
	http  *http.Client
}

// New creates a REST table store client from Config.
func New(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("rest base url required")
	}
	base, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout == 0 {
			timeout = 30 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	return &Client{base: base, token: cfg.Token, http: httpClient}, nil
}

// OpenFromEnv constructs a client from process environment.
//
//	RESEARCHDASH_REST_URL: service base URL (required)
//	RESEARCHDASH_REST_TOKEN: bearer token (optional)
func OpenFromEnv() (*Client, error) {
	baseURL := os.Getenv("RESEARCHDASH_REST_URL")
	if baseURL == "" {
		return nil, fmt.Errorf("RESEARCHDASH_REST_URL required for rest driver")
	}
	return New(Config{BaseURL: baseURL, Token: os.Getenv("RESEARCHDASH_REST_TOKEN")})
}

type errorBody struct {
	Error string `json:"error"`
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var payload io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		payload = bytes.NewReader(encoded)
	}
	u := *c.base
	u.Path = strings.TrimSuffix(u.Path, "/") + path
	req, err := http.NewRequestWithContext(ctx, method, u.String(), payload)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var remote errorBody
		_ = json.NewDecoder(resp.Body).Decode(&remote)
		return domain.APIError{Status: resp.StatusCode, Message: remote.Error}
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// OpenByKey verifies the spreadsheet is reachable and returns its handle.
func (c *Client) OpenByKey(ctx context.Context, key string) (domain.Connection, error) {
	if err := c.do(ctx, http.MethodGet, "/v1/spreadsheets/"+url.PathEscape(key), nil, nil); err != nil {
		return nil, err
	}
	return &connection{client: c, key: key}, nil
}

type connection struct {
	client *Client
	key    string
}

func (c *connection) path(suffix string) string {
	return "/v1/spreadsheets/" + url.PathEscape(c.key) + suffix
}

func (c *connection) Worksheets(ctx context.Context) ([]string, error) {
	var out struct {
		Worksheets []string `json:"worksheets"`
	}
	if err := c.client.do(ctx, http.MethodGet, c.path("/worksheets"), nil, &out); err != nil {
		return nil, err
	}
	return out.Worksheets, nil
}

func (c *connection) Worksheet(ctx context.Context, name string) (domain.Worksheet, error) {
	err := c.client.do(ctx, http.MethodGet, c.path("/worksheets/"+url.PathEscape(name)), nil, nil)
	if domain.NotFound(err) {
		// The spreadsheet itself resolved at open time, so a 404 here
		// means the worksheet is missing.
		return nil, fmt.Errorf("%s: %w", name, domain.ErrWorksheetNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &worksheet{conn: c, name: name}, nil
}

func (c *connection) AddWorksheet(ctx context.Context, name string, rows, cols int) (domain.Worksheet, error) {
	body := map[string]any{"name": name, "rows": rows, "cols": cols}
	if err := c.client.do(ctx, http.MethodPost, c.path("/worksheets"), body, nil); err != nil {
		return nil, err
	}
	return &worksheet{conn: c, name: name}, nil
}

type worksheet struct {
	conn *connection
	name string
}

func (w *worksheet) Name() string { return w.name }

func (w *worksheet) path() string {
	return w.conn.path("/worksheets/" + url.PathEscape(w.name) + "/values")
}

func (w *worksheet) ReadAll(ctx context.Context) ([][]string, error) {
	var out struct {
		Values [][]string `json:"values"`
	}
	if err := w.conn.client.do(ctx, http.MethodGet, w.path(), nil, &out); err != nil {
		return nil, err
	}
	return out.Values, nil
}

func (w *worksheet) WriteAll(ctx context.Context, grid [][]string) error {
	body := map[string]any{"values": grid}
	return w.conn.client.do(ctx, http.MethodPut, w.path(), body, nil)
}
