// Package firestorm is an HTTP client for Firestorm, the gateway that
// discovers Pixelblaze lighting controllers and relays commands to them.
//
// The broker always supplies target ids explicitly; the client keeps no
// record of previous discoveries.
package firestorm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const (
	discoverPath = "/discover"
	commandPath  = "/command"

	// maxErrorBody caps how much of an error response is read.
	maxErrorBody = 4 << 10
)

// Client talks to one Firestorm instance.
type Client struct {
	baseURL string
	http    *http.Client
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

// WithTimeout sets the per-request timeout of the default HTTP client.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.http = &http.Client{Timeout: d}
	}
}

// New creates a client for baseURL, e.g. "http://localhost:3000".
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 5 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// BaseURL returns the gateway address.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Discover asks Firestorm for every controller it currently knows.
func (c *Client) Discover(ctx context.Context) ([]Controller, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+discoverPath, nil)
	if err != nil {
		return nil, fmt.Errorf("building discover request: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("discover request: %w", err)
	}
	defer resp.Body.Close()

	if err := checkStatus(resp, discoverPath); err != nil {
		return nil, err
	}

	var controllers []Controller
	if err := json.NewDecoder(resp.Body).Decode(&controllers); err != nil {
		return nil, fmt.Errorf("decoding discover response: %w", err)
	}
	if controllers == nil {
		controllers = []Controller{}
	}
	return controllers, nil
}

// SetVariables sends {"setVars": vars} to the controllers in ids.
func (c *Client) SetVariables(ctx context.Context, vars map[string]any, ids []int64) error {
	return c.Send(ctx, map[string]any{"setVars": vars}, ids)
}

// SetProgramName switches the controllers in ids to the named program.
func (c *Client) SetProgramName(ctx context.Context, name string, ids []int64) error {
	return c.Send(ctx, map[string]any{"programName": name}, ids)
}

// Send posts a raw Pixelblaze command to the controllers in ids. A nil ids
// is sent as an empty list.
func (c *Client) Send(ctx context.Context, command map[string]any, ids []int64) error {
	if ids == nil {
		ids = []int64{}
	}
	body, err := json.Marshal(Command{Command: command, IDs: ids})
	if err != nil {
		return fmt.Errorf("encoding command: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+commandPath, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("building command request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("command request: %w", err)
	}
	defer resp.Body.Close()

	if err := checkStatus(resp, commandPath); err != nil {
		return err
	}
	_, _ = io.Copy(io.Discard, resp.Body) //nolint:errcheck // Drain for connection reuse
	return nil
}

func checkStatus(resp *http.Response, path string) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxErrorBody)) //nolint:errcheck // Best effort drain
	return &StatusError{Path: path, StatusCode: resp.StatusCode, Status: resp.Status}
}
