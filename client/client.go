// Package client provides a Go client for a remote execq gateway.
//
// Usage:
//
//	c := client.New("http://localhost:8080")
//
//	// Submit a command.
//	j, err := c.Submit(ctx, "echo hello")
//
//	// Poll until it finishes.
//	j, err = c.Get(ctx, j.ID)
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/execq/execq"
	"github.com/execq/execq/api"
	"github.com/execq/execq/id"
	"github.com/execq/execq/job"
)

// Client talks to an execq gateway over HTTP.
type Client struct {
	base string
	http *http.Client
}

// New creates a Client for the gateway at baseURL.
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		base: strings.TrimRight(baseURL, "/"),
		http: &http.Client{Timeout: 30 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Submit enqueues a shell command and returns the pending job record.
func (c *Client) Submit(ctx context.Context, command string) (*job.Job, error) {
	var j job.Job
	err := c.do(ctx, http.MethodPost, "/v1/jobs",
		api.SubmitJobRequest{Command: command}, &j)
	if err != nil {
		return nil, err
	}
	return &j, nil
}

// Get returns the job record for the given id. Unknown ids return
// execq.ErrJobNotFound.
func (c *Client) Get(ctx context.Context, jobID id.JobID) (*job.Job, error) {
	var j job.Job
	err := c.do(ctx, http.MethodGet, "/v1/jobs/"+jobID.String(), nil, &j)
	if err != nil {
		return nil, err
	}
	return &j, nil
}

// Cancel requests cancellation and reports what actually happened. All
// outcomes, including not_found, are values rather than errors.
func (c *Client) Cancel(ctx context.Context, jobID id.JobID) (job.CancelOutcome, error) {
	var out api.CancelJobResponse
	err := c.do(ctx, http.MethodPost, "/v1/jobs/"+jobID.String()+"/cancel", nil, &out)
	if err != nil {
		return "", err
	}
	return out.Outcome, nil
}

// List returns jobs in the given status.
func (c *Client) List(ctx context.Context, status job.Status) ([]*job.Job, error) {
	var jobs []*job.Job
	err := c.do(ctx, http.MethodGet, "/v1/jobs?status="+string(status), nil, &jobs)
	if err != nil {
		return nil, err
	}
	return jobs, nil
}

// Counts returns record counts grouped by status plus the queue length.
func (c *Client) Counts(ctx context.Context) (*api.JobCountsResponse, error) {
	var counts api.JobCountsResponse
	if err := c.do(ctx, http.MethodGet, "/v1/jobs/counts", nil, &counts); err != nil {
		return nil, err
	}
	return &counts, nil
}

// Healthy reports whether the gateway answers its health check.
func (c *Client) Healthy(ctx context.Context) error {
	return c.do(ctx, http.MethodGet, "/healthz", nil, nil)
}

// do sends one request and decodes the JSON response into out.
func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return fmt.Errorf("execq/client: encode request: %w", err)
		}
	}

	req, err := http.NewRequestWithContext(ctx, method, c.base+path, &buf)
	if err != nil {
		return fmt.Errorf("execq/client: build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("execq/client: %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("execq/client: read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return c.asError(resp.StatusCode, data, out)
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("execq/client: decode response: %w", err)
	}
	return nil
}

// asError maps a non-2xx response to an error, preferring the known
// sentinels so callers can use errors.Is. Cancel responses carry an
// outcome body even on 404; those decode into out and are not errors.
func (c *Client) asError(status int, data []byte, out any) error {
	var apiErr struct {
		Error string `json:"error"`
	}
	if json.Unmarshal(data, &apiErr) == nil && apiErr.Error != "" {
		if status == http.StatusNotFound {
			return fmt.Errorf("execq/client: %s: %w", apiErr.Error, execq.ErrJobNotFound)
		}
		return fmt.Errorf("execq/client: %s (status %d)", apiErr.Error, status)
	}

	if out != nil && json.Unmarshal(data, out) == nil {
		return nil
	}
	return fmt.Errorf("execq/client: gateway returned status %d", status)
}
