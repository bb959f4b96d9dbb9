// Package hubspot is a thin REST client for the destination CRM.
package hubspot

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const (
	DefaultBaseURL = "https://api.hubapi.com"
	DefaultDelay   = 300 * time.Millisecond

	defaultTimeout = 30 * time.Second
)

// APIError is returned for any non-2xx response
type APIError struct {
	Operation  string
	StatusCode int
	Category   string
	Message    string
}

func (e *APIError) Error() string {
	msg := e.Message
	if msg == "" {
		msg = http.StatusText(e.StatusCode)
	}
	if e.Category != "" {
		return fmt.Sprintf("hubspot %s: %d %s: %s", e.Operation, e.StatusCode, e.Category, msg)
	}
	return fmt.Sprintf("hubspot %s: %d: %s", e.Operation, e.StatusCode, msg)
}

// StatusCode returns the HTTP status carried by err, or 0
func StatusCode(err error) int {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode
	}
	return 0
}

// IsNotFound reports a 404: the thing looked up is absent
func IsNotFound(err error) bool {
	return StatusCode(err) == http.StatusNotFound
}

// IsConflict reports a 409: the thing created already exists
func IsConflict(err error) bool {
	return StatusCode(err) == http.StatusConflict
}

// Observer is told about every completed call
type Observer func(operation string, statusCode int)

// Client talks to the destination REST API. Calls are strictly sequential
// and each one is followed by a fixed delay.
type Client struct {
	baseURL  string
	token    string
	http     *http.Client
	delay    time.Duration
	observer Observer
}

// Option configures a Client
type Option func(*Client)

// WithBaseURL overrides the API root
func WithBaseURL(u string) Option {
	return func(c *Client) {
		if u != "" {
			c.baseURL = strings.TrimRight(u, "/")
		}
	}
}

// WithHTTPClient overrides the underlying HTTP client
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) {
		if h != nil {
			c.http = h
		}
	}
}

// WithDelay sets the pause inserted after every call
func WithDelay(d time.Duration) Option {
	return func(c *Client) {
		if d >= 0 {
			c.delay = d
		}
	}
}

// WithObserver registers a callback invoked after every call
func WithObserver(o Observer) Option {
	return func(c *Client) {
		c.observer = o
	}
}

// New creates a client authenticated with a private app token
func New(token string, opts ...Option) *Client {
	c := &Client{
		baseURL: DefaultBaseURL,
		token:   token,
		http:    &http.Client{Timeout: defaultTimeout},
		delay:   DefaultDelay,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type errorBody struct {
	Message  string `json:"message"`
	Category string `json:"category"`
}

// do performs one call. A nil out discards the response body.
func (c *Client) do(ctx context.Context, operation, method, path string, in, out interface{}) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("hubspot %s: encode request: %w", operation, err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("hubspot %s: build request: %w", operation, err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		c.observe(operation, 0)
		c.pause(ctx)
		return fmt.Errorf("hubspot %s: %w", operation, err)
	}
	defer resp.Body.Close()
	defer c.pause(ctx)
	c.observe(operation, resp.StatusCode)

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("hubspot %s: read response: %w", operation, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := &APIError{Operation: operation, StatusCode: resp.StatusCode}
		var eb errorBody
		if json.Unmarshal(payload, &eb) == nil {
			apiErr.Message = eb.Message
			apiErr.Category = eb.Category
		}
		return apiErr
	}

	if out == nil || len(payload) == 0 {
		return nil
	}
	if err := json.Unmarshal(payload, out); err != nil {
		return fmt.Errorf("hubspot %s: decode response: %w", operation, err)
	}
	return nil
}

func (c *Client) observe(operation string, status int) {
	if c.observer != nil {
		c.observer(operation, status)
	}
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
