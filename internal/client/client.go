// Package client talks to a running typetrace daemon over its HTTP API.
package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/fakeyudi/typetrace/internal/change"
	"github.com/fakeyudi/typetrace/internal/history"
	"github.com/fakeyudi/typetrace/internal/server"
)

// ErrUnavailable is returned by Start when the daemon cannot reach the
// document host.
var ErrUnavailable = errors.New("document host unavailable")

// APIError is a non-2xx answer from the daemon.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("daemon returned %d: %s", e.Status, e.Message)
}

// Client is an API client bound to one daemon.
type Client struct {
	base *url.URL
	http *http.Client
}

// New returns a client for the daemon at baseURL (e.g. http://127.0.0.1:7331).
func New(baseURL string, hc *http.Client) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("invalid daemon address %q: %w", baseURL, err)
	}
	if hc == nil {
		hc = &http.Client{Timeout: 10 * time.Second}
	}
	return &Client{base: u, http: hc}, nil
}

func (c *Client) Status(ctx context.Context) (server.Status, error) {
	var st server.Status
	return st, c.do(ctx, http.MethodGet, "/api/status", nil, &st)
}

// Start begins logging on the daemon. A daemon without a readable document
// yields an error wrapping ErrUnavailable.
func (c *Client) Start(ctx context.Context) (server.Status, error) {
	var st server.Status
	err := c.do(ctx, http.MethodPost, "/api/start", nil, &st)
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.Status == http.StatusServiceUnavailable {
		return st, fmt.Errorf("%w: %s", ErrUnavailable, apiErr.Message)
	}
	return st, err
}

func (c *Client) Stop(ctx context.Context) (server.Status, error) {
	var st server.Status
	return st, c.do(ctx, http.MethodPost, "/api/stop", nil, &st)
}

func (c *Client) Clear(ctx context.Context) (server.Status, error) {
	var st server.Status
	return st, c.do(ctx, http.MethodPost, "/api/clear", nil, &st)
}

func (c *Client) Stats(ctx context.Context) (history.Stats, error) {
	var s history.Stats
	return s, c.do(ctx, http.MethodGet, "/api/stats", nil, &s)
}

// Changes returns the last n changes, or all of them when n is negative.
func (c *Client) Changes(ctx context.Context, n int) ([]change.Record, error) {
	q := url.Values{}
	if n >= 0 {
		q.Set("last", strconv.Itoa(n))
	}
	var recs []change.Record
	return recs, c.do(ctx, http.MethodGet, "/api/changes", q, &recs)
}

func (c *Client) CPSHistory(ctx context.Context, n int) ([]history.CPSSample, error) {
	q := url.Values{"last": {strconv.Itoa(n)}}
	var samples []history.CPSSample
	return samples, c.do(ctx, http.MethodGet, "/api/cps", q, &samples)
}

// Export returns the rendered export in format ("json" or "markdown").
func (c *Client) Export(ctx context.Context, format string) ([]byte, error) {
	resp, err := c.send(ctx, http.MethodGet, "/api/export", url.Values{"format": {format}}, nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	return io.ReadAll(resp.Body)
}

// PushDocument sends the current document text to the daemon.
func (c *Client) PushDocument(ctx context.Context, text string) error {
	resp, err := c.send(ctx, http.MethodPut, "/api/document", nil, strings.NewReader(text))
	if err != nil {
		return err
	}
	resp.Body.Close()
	return nil
}

func (c *Client) do(ctx context.Context, method, path string, q url.Values, out any) error {
	resp, err := c.send(ctx, method, path, q, nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s response: %w", path, err)
	}
	return nil
}

// send performs the request and turns non-2xx answers into *APIError.
func (c *Client) send(ctx context.Context, method, path string, q url.Values, body io.Reader) (*http.Response, error) {
	u := c.base.JoinPath(path)
	if len(q) > 0 {
		u.RawQuery = q.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, method, u.String(), body)
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "text/plain; charset=utf-8")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("contacting daemon: %w", err)
	}
	if resp.StatusCode/100 != 2 {
		defer resp.Body.Close()
		var eb struct {
			Error string `json:"error"`
		}
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
		msg := strings.TrimSpace(string(raw))
		if json.Unmarshal(raw, &eb) == nil && eb.Error != "" {
			msg = eb.Error
		}
		return nil, &APIError{Status: resp.StatusCode, Message: msg}
	}
	return resp, nil
}
