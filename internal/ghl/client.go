// Package ghl is a thin client for the GoHighLevel (LeadConnector) API used
// to pull source records into the staging store.
package ghl

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/lherron/ghl2hs/internal/domain"
)

const (
	DefaultBaseURL = "https://services.leadconnectorhq.com"
	APIVersion     = "2021-07-28"
	DefaultDelay   = 300 * time.Millisecond
	PageSize       = 100
)

// APIError is returned for any non-2xx response
type APIError struct {
	Path       string
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	msg := e.Message
	if msg == "" {
		msg = http.StatusText(e.StatusCode)
	}
	return fmt.Sprintf("ghl %s: %d: %s", e.Path, e.StatusCode, msg)
}

// Client calls the source API for one location
type Client struct {
	baseURL    string
	token      string
	locationID string
	http       *http.Client
	delay      time.Duration
}

// Option configures a Client
type Option func(*Client)

// WithBaseURL points the client at another host, typically a test server
func WithBaseURL(u string) Option {
	return func(c *Client) {
		if u != "" {
			c.baseURL = u
		}
	}
}

// WithHTTPClient replaces the HTTP client
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) {
		if h != nil {
			c.http = h
		}
	}
}

// WithDelay sets the pause after every call
func WithDelay(d time.Duration) Option {
	return func(c *Client) {
		c.delay = d
	}
}

// New creates a client for a location
func New(token, locationID string, opts ...Option) *Client {
	c := &Client{
		baseURL:    DefaultBaseURL,
		token:      token,
		locationID: locationID,
		http:       &http.Client{Timeout: 30 * time.Second},
		delay:      DefaultDelay,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// LocationID returns the location the client reads from
func (c *Client) LocationID() string {
	return c.locationID
}

// get fetches path and decodes the JSON response with numbers preserved
func (c *Client) get(ctx context.Context, path string, query url.Values, out interface{}) error {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return fmt.Errorf("ghl %s: build request: %w", path, err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Version", APIVersion)
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		c.pause(ctx)
		return fmt.Errorf("ghl %s: %w", path, err)
	}
	defer resp.Body.Close()
	defer c.pause(ctx)

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("ghl %s: read response: %w", path, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := &APIError{Path: path, StatusCode: resp.StatusCode}
		var eb struct {
			Message interface{} `json:"message"`
		}
		if json.Unmarshal(payload, &eb) == nil && eb.Message != nil {
			apiErr.Message = domain.Stringify(eb.Message)
		}
		return apiErr
	}

	dec := json.NewDecoder(bytes.NewReader(payload))
	dec.UseNumber()
	if err := dec.Decode(out); err != nil {
		return fmt.Errorf("ghl %s: decode response: %w", path, err)
	}
	return nil
}

// pause waits out the fixed inter-call delay unless ctx ends first
func (c *Client) pause(ctx context.Context) {
	if c.delay <= 0 {
		return
	}
	t := time.NewTimer(c.delay)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}

// documents converts decoded items into documents, dropping non-objects
func documents(items []interface{}) []domain.Document {
	out := make([]domain.Document, 0, len(items))
	for _, item := range items {
		if m, ok := item.(map[string]interface{}); ok {
			out = append(out, domain.NewDocument(m))
		}
	}
	return out
}
