// Package n8n implements the workflow backend collaborator against the n8n
// public REST API.
package n8n

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/user/n8nops/internal/engine"
)

const (
	defaultBaseURL    = "http://127.0.0.1:5678"
	defaultMaxRetries = 2
	retryBaseDelay    = 250 * time.Millisecond
)

type Options struct {
	BaseURL      string
	APIKey       string
	WorkflowsDir string
	HTTPClient   *http.Client

	// MaxRetries bounds retry-with-backoff for transient failures
	// (network errors and 5xx responses). Retries live here, in the
	// collaborator, never in the dispatcher.
	MaxRetries int
}

type Client struct {
	baseURL      string
	apiKey       string
	workflowsDir string
	httpClient   *http.Client
	maxRetries   int
}

func NewClient(opts Options) *Client {
	base := strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/")
	if base == "" {
		base = defaultBaseURL
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	retries := opts.MaxRetries
	if retries < 0 {
		retries = 0
	} else if retries == 0 {
		retries = defaultMaxRetries
	}
	return &Client{
		baseURL:      base,
		apiKey:       strings.TrimSpace(opts.APIKey),
		workflowsDir: opts.WorkflowsDir,
		httpClient:   httpClient,
		maxRetries:   retries,
	}
}

type wireWorkflow struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	Active    bool            `json:"active"`
	Nodes     json.RawMessage `json:"nodes,omitempty"`
	UpdatedAt time.Time       `json:"updatedAt"`
}

type wireWorkflowList struct {
	Data []wireWorkflow `json:"data"`
}

type wireExecution struct {
	ID         string    `json:"id"`
	WorkflowID string    `json:"workflowId"`
	Status     string    `json:"status"`
	StartedAt  time.Time `json:"startedAt"`
	StoppedAt  time.Time `json:"stoppedAt"`
}

func (c *Client) GetWorkflow(ctx context.Context, id string) (*engine.Workflow, error) {
	if strings.TrimSpace(id) == "" {
		return nil, fmt.Errorf("workflow id is required")
	}
	var out wireWorkflow
	if err := c.doJSON(ctx, http.MethodGet, "/api/v1/workflows/"+url.PathEscape(id), nil, nil, &out); err != nil {
		return nil, err
	}
	wf := toWorkflow(out)
	return &wf, nil
}

func (c *Client) ListWorkflows(ctx context.Context) ([]engine.Workflow, error) {
	var out wireWorkflowList
	if err := c.doJSON(ctx, http.MethodGet, "/api/v1/workflows", nil, nil, &out); err != nil {
		return nil, err
	}
	workflows := make([]engine.Workflow, 0, len(out.Data))
	for _, item := range out.Data {
		workflows = append(workflows, toWorkflow(item))
	}
	return workflows, nil
}

func (c *Client) CreateWorkflow(ctx context.Context, spec engine.WorkflowSpec) (*engine.Workflow, error) {
	body, err := specBody(spec)
	if err != nil {
		return nil, err
	}
	var out wireWorkflow
	if err := c.doJSON(ctx, http.MethodPost, "/api/v1/workflows", nil, body, &out); err != nil {
		return nil, err
	}
	wf := toWorkflow(out)
	return &wf, nil
}

func (c *Client) UpdateWorkflow(ctx context.Context, id string, spec engine.WorkflowSpec) (*engine.Workflow, error) {
	if strings.TrimSpace(id) == "" {
		return nil, fmt.Errorf("workflow id is required")
	}
	body, err := specBody(spec)
	if err != nil {
		return nil, err
	}
	var out wireWorkflow
	if err := c.doJSON(ctx, http.MethodPut, "/api/v1/workflows/"+url.PathEscape(id), nil, body, &out); err != nil {
		return nil, err
	}
	wf := toWorkflow(out)
	return &wf, nil
}

// ExportAll downloads every workflow and writes one JSON file per workflow
// into the configured workflows directory.
func (c *Client) ExportAll(ctx context.Context) (*engine.ExportResult, error) {
	if strings.TrimSpace(c.workflowsDir) == "" {
		return nil, fmt.Errorf("workflows directory is not configured")
	}
	var out wireWorkflowList
	if err := c.doJSON(ctx, http.MethodGet, "/api/v1/workflows", nil, nil, &out); err != nil {
		return nil, err
	}
	if err := os.MkdirAll(c.workflowsDir, 0o755); err != nil {
		return nil, fmt.Errorf("create workflows dir: %w", err)
	}
	files := make([]string, 0, len(out.Data))
	for _, wf := range out.Data {
		name := sanitizeFileName(wf.Name)
		if name == "" {
			name = wf.ID
		}
		path := filepath.Join(c.workflowsDir, name+".json")
		data, err := json.MarshalIndent(wf, "", "  ")
		if err != nil {
			return nil, fmt.Errorf("marshal workflow %q: %w", wf.ID, err)
		}
		if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
			return nil, fmt.Errorf("write workflow file %q: %w", path, err)
		}
		files = append(files, filepath.Base(path))
	}
	return &engine.ExportResult{Count: len(files), Dir: c.workflowsDir, Files: files}, nil
}

// ImportWorkflow reads a local workflow JSON file and creates it on the
// backend.
func (c *Client) ImportWorkflow(ctx context.Context, path string) (*engine.Workflow, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read workflow file: %w", err)
	}
	var payload map[string]any
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, fmt.Errorf("parse workflow file %q: %w", path, err)
	}
	// The create endpoint rejects read-only fields exported by the API.
	delete(payload, "id")
	delete(payload, "active")
	delete(payload, "createdAt")
	delete(payload, "updatedAt")
	var out wireWorkflow
	if err := c.doJSON(ctx, http.MethodPost, "/api/v1/workflows", nil, payload, &out); err != nil {
		return nil, err
	}
	wf := toWorkflow(out)
	return &wf, nil
}

func (c *Client) ExecuteWorkflow(ctx context.Context, id string, input map[string]any) (*engine.ExecutionRef, error) {
	if strings.TrimSpace(id) == "" {
		return nil, fmt.Errorf("workflow id is required")
	}
	var out struct {
		ExecutionID string `json:"executionId"`
	}
	body := map[string]any{}
	if len(input) > 0 {
		body["data"] = input
	}
	if err := c.doJSON(ctx, http.MethodPost, "/api/v1/workflows/"+url.PathEscape(id)+"/execute", nil, body, &out); err != nil {
		return nil, err
	}
	return &engine.ExecutionRef{WorkflowID: id, ExecutionID: out.ExecutionID}, nil
}

func (c *Client) GetExecution(ctx context.Context, id string) (*engine.Execution, error) {
	if strings.TrimSpace(id) == "" {
		return nil, fmt.Errorf("execution id is required")
	}
	var out wireExecution
	if err := c.doJSON(ctx, http.MethodGet, "/api/v1/executions/"+url.PathEscape(id), nil, nil, &out); err != nil {
		return nil, err
	}
	return &engine.Execution{
		ID:         out.ID,
		WorkflowID: out.WorkflowID,
		Status:     out.Status,
		StartedAt:  out.StartedAt,
		FinishedAt: out.StoppedAt,
	}, nil
}

func (c *Client) doJSON(ctx context.Context, method string, path string, query url.Values, reqBody any, out any) error {
	u, err := url.Parse(c.baseURL + path)
	if err != nil {
		return fmt.Errorf("invalid url: %w", err)
	}
	if len(query) > 0 {
		u.RawQuery = query.Encode()
	}

	var payload []byte
	if reqBody != nil {
		payload, err = json.Marshal(reqBody)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
	}

	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			delay := retryBaseDelay << (attempt - 1)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
		}

		var body io.Reader
		if payload != nil {
			body = bytes.NewReader(payload)
		}
		req, err := http.NewRequestWithContext(ctx, method, u.String(), body)
		if err != nil {
			return err
		}
		if payload != nil {
			req.Header.Set("Content-Type", "application/json")
		}
		if c.apiKey != "" {
			req.Header.Set("X-N8N-API-KEY", c.apiKey)
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			lastErr = err
			continue
		}

		if resp.StatusCode >= 500 {
			b, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
			resp.Body.Close()
			lastErr = fmt.Errorf("n8n api %s %s failed: status=%d body=%s", method, path, resp.StatusCode, strings.TrimSpace(string(b)))
			continue
		}
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			b, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
			resp.Body.Close()
			return fmt.Errorf("n8n api %s %s failed: status=%d body=%s", method, path, resp.StatusCode, strings.TrimSpace(string(b)))
		}
		if out == nil || resp.StatusCode == http.StatusNoContent {
			resp.Body.Close()
			return nil
		}
		err = json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(out)
		resp.Body.Close()
		if err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
		return nil
	}
	return fmt.Errorf("n8n api %s %s failed after %d attempts: %w", method, path, c.maxRetries+1, lastErr)
}

func toWorkflow(w wireWorkflow) engine.Workflow {
	nodeCount := 0
	if len(w.Nodes) > 0 {
		var nodes []json.RawMessage
		if err := json.Unmarshal(w.Nodes, &nodes); err == nil {
			nodeCount = len(nodes)
		}
	}
	return engine.Workflow{
		ID:        w.ID,
		Name:      w.Name,
		Active:    w.Active,
		NodeCount: nodeCount,
		UpdatedAt: w.UpdatedAt,
	}
}

func specBody(spec engine.WorkflowSpec) (any, error) {
	if len(spec.Definition) > 0 {
		var payload map[string]any
		if err := json.Unmarshal(spec.Definition, &payload); err != nil {
			return nil, fmt.Errorf("parse workflow definition: %w", err)
		}
		if spec.Name != "" {
			payload["name"] = spec.Name
		}
		return payload, nil
	}
	if strings.TrimSpace(spec.Name) == "" {
		return nil, fmt.Errorf("workflow name is required")
	}
	return map[string]any{
		"name":        spec.Name,
		"nodes":       []any{},
		"connections": map[string]any{},
		"settings":    map[string]any{},
	}, nil
}

var fileNameSanitizer = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

func sanitizeFileName(name string) string {
	name = strings.TrimSpace(name)
	name = fileNameSanitizer.ReplaceAllString(name, "_")
	return strings.Trim(name, "._")
}
