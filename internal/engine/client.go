// Package engine wraps the workflow-automation engine's HTTP API. The
// wrapped vendor is an implementation detail: nothing returned from this
// package names it, and handlers re-expose the data under neutral fields.
package engine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"flowdeck.io/internal/auth"
)

// ErrUnavailable indicates the engine could not be reached or answered
// with a server error.
var ErrUnavailable = errors.New("engine: unavailable")

// Execution is one workflow run as seen by the control plane.
type Execution struct {
	ID         string     `json:"id"`
	WorkflowID string     `json:"workflow_id"`
	Status     string     `json:"status"`
	StartedAt  time.Time  `json:"started_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
}

// Client talks to the engine with a service credential. Per-request actor
// identity travels in headers so the engine's own audit trail stays useful.
type Client struct {
	baseURL string
	token   string
	httpc   *http.Client
}

// Option configures the Client.
type Option func(*Client)

// WithHTTPClient overrides the underlying HTTP client (tests, custom timeouts).
func WithHTTPClient(httpc *http.Client) Option {
	return func(c *Client) {
		if httpc != nil {
			c.httpc = httpc
		}
	}
}

// NewClient constructs a Client for the given base URL.
func NewClient(baseURL, token string, opts ...Option) (*Client, error) {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		return nil, errors.New("engine: base url is required")
	}
	c := &Client{
		baseURL: baseURL,
		token:   token,
		httpc:   &http.Client{Timeout: 10 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// ListExecutions returns recent workflow executions for one tenant.
func (c *Client) ListExecutions(ctx context.Context, tenantID string, limit int) ([]Execution, error) {
	tenantID = strings.TrimSpace(tenantID)
	if tenantID == "" {
		return nil, errors.New("engine: tenant id is required")
	}
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	q := url.Values{}
	q.Set("tenant", tenantID)
	q.Set("limit", strconv.Itoa(limit))

	var payload struct {
		Items []Execution `json:"items"`
	}
	if err := c.get(ctx, "/api/v1/executions?"+q.Encode(), &payload); err != nil {
		return nil, err
	}
	return payload.Items, nil
}

// CountExecutions returns execution totals by status for one tenant.
func (c *Client) CountExecutions(ctx context.Context, tenantID string) (map[string]int, error) {
	tenantID = strings.TrimSpace(tenantID)
	if tenantID == "" {
		return nil, errors.New("engine: tenant id is required")
	}
	var payload struct {
		Counts map[string]int `json:"counts"`
	}
	if err := c.get(ctx, "/api/v1/executions/stats?tenant="+url.QueryEscape(tenantID), &payload); err != nil {
		return nil, err
	}
	return payload.Counts, nil
}

// Health pings the engine.
func (c *Client) Health(ctx context.Context) error {
	return c.get(ctx, "/healthz", nil)
}

func (c *Client) get(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return err
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	if identity, ok := auth.IdentityFromContext(ctx); ok {
		req.Header.Set("X-Actor-Id", identity.ID)
		req.Header.Set("X-Actor-Role", string(identity.Role))
	}

	resp, err := c.httpc.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 500 {
		return fmt.Errorf("%w: status %d", ErrUnavailable, resp.StatusCode)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("engine: unexpected status %d", resp.StatusCode)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("engine: decode response: %w", err)
	}
	return nil
}
