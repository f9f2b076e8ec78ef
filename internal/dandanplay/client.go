// Package dandanplay resolves media to remote comment tracks and downloads
// their comments.
package dandanplay

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"danmakuflow/internal/danmaku"
)

const (
	DefaultBaseURL   = "https://api.dandanplay.net"
	DefaultSearchURL = "https://api.so.360kan.com"

	maxBody = 64 << 20
)

// Client talks to the comment API and the search index.
type Client struct {
	baseURL   string
	searchURL string
	http      *http.Client
}

// Option configures a Client.
type Option func(*Client)

// WithBaseURL points the client at another comment API.
func WithBaseURL(u string) Option {
	return func(c *Client) { c.baseURL = strings.TrimRight(u, "/") }
}

// WithSearchURL points the client at another search index.
func WithSearchURL(u string) Option {
	return func(c *Client) { c.searchURL = strings.TrimRight(u, "/") }
}

// WithHTTPClient replaces the HTTP client, e.g. to set a timeout.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.http = h }
}

// NewClient returns a client for the public endpoints unless overridden.
func NewClient(opts ...Option) *Client {
	c := &Client{
		baseURL:   DefaultBaseURL,
		searchURL: DefaultSearchURL,
		http:      &http.Client{Timeout: 30 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) getJSON(ctx context.Context, url string, dest any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("%w: %v", danmaku.ErrNetwork, err)
	}
	req.Header.Set("Accept", "application/json")
	return c.do(req, dest)
}

func (c *Client) postJSON(ctx context.Context, url string, body, dest any) error {
	b, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(b))
	if err != nil {
		return fmt.Errorf("%w: %v", danmaku.ErrNetwork, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	return c.do(req, dest)
}

func (c *Client) do(req *http.Request, dest any) error {
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", danmaku.ErrNetwork, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		return fmt.Errorf("%w: %v", danmaku.ErrNetwork, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("%w: %s %s: %s", danmaku.ErrNetwork, req.Method, req.URL.Path, resp.Status)
	}
	if err := json.Unmarshal(body, dest); err != nil {
		return fmt.Errorf("%w: %s: %v", danmaku.ErrResponseParse, req.URL.Path, err)
	}
	return nil
}
