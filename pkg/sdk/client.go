package sdk

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/osbench/osbench/pkg/classify"
)

// Run mirrors the server's run response shape.
type Run struct {
	ID            string           `json:"id"`
	TargetOS      string           `json:"target_os"`
	Image         string           `json:"image"`
	ContainerID   string           `json:"container_id,omitempty"`
	Status        string           `json:"status"`
	CreatedAt     string           `json:"created_at"`
	StartedAt     *string          `json:"started_at,omitempty"`
	EndedAt       *string          `json:"ended_at,omitempty"`
	ExitCode      *int             `json:"exit_code,omitempty"`
	Result        *classify.Result `json:"result,omitempty"`
	FailureReason string           `json:"failure_reason,omitempty"`
}

// SubmitRequest is the body for submitting a run.
type SubmitRequest struct {
	Script     string `json:"script"`
	ScriptType string `json:"script_type,omitempty"`
	TargetOS   string `json:"target_os"`
	Image      string `json:"image,omitempty"`
}

// Client is a minimal typed client for the osbench API.
type Client struct {
	baseURL string
	http    *http.Client
}

// NewClient creates a client against the given base URL.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: 30 * time.Second},
	}
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encoding request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		data, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("%s %s: %s: %s", method, path, resp.Status, bytes.TrimSpace(data))
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decoding response: %w", err)
		}
	}
	return nil
}

// Submit submits a run and returns its pending record.
func (c *Client) Submit(ctx context.Context, req SubmitRequest) (*Run, error) {
	var run Run
	if err := c.do(ctx, http.MethodPost, "/api/runs", req, &run); err != nil {
		return nil, err
	}
	return &run, nil
}

// ListRuns returns all runs, newest first.
func (c *Client) ListRuns(ctx context.Context) ([]Run, error) {
	var out struct {
		Runs []Run `json:"runs"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/runs", nil, &out); err != nil {
		return nil, err
	}
	return out.Runs, nil
}

// GetRun returns one run's record.
func (c *Client) GetRun(ctx context.Context, id string) (*Run, error) {
	var run Run
	if err := c.do(ctx, http.MethodGet, "/api/runs/"+id, nil, &run); err != nil {
		return nil, err
	}
	return &run, nil
}

// GetLogs returns one run's captured output.
func (c *Client) GetLogs(ctx context.Context, id string) (string, error) {
	var out struct {
		Logs string `json:"logs"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/runs/"+id+"/logs", nil, &out); err != nil {
		return "", err
	}
	return out.Logs, nil
}

// PurgeRun removes a terminal run.
func (c *Client) PurgeRun(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/api/runs/"+id, nil, nil)
}
