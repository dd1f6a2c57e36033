// Package engine provides the HTTP client for the external workflow
// execution engine.
package engine

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

	"github.com/crewdeck/crewdeck/pkg/compiler"
)

const defaultTimeoutSeconds = 30

const apiKeyHeader = "X-N8N-API-KEY"

var ErrEngineUnavailable = errors.New("execution engine request failed")

// Client talks to the engine's REST API. All requests carry the API key
// header and honor the configured timeout.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

func NewClient(baseURL, apiKey string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = defaultTimeoutSeconds * time.Second
	}

	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// BaseURL returns the engine base URL the client was built with.
func (c *Client) BaseURL() string {
	return c.baseURL
}

type createWorkflowResponse struct {
	ID string `json:"id"`
}

// CreateWorkflow uploads a compiled graph and returns the engine-side
// workflow ID.
func (c *Client) CreateWorkflow(ctx context.Context, graph *compiler.Graph) (string, error) {
	body, status, err := c.do(ctx, http.MethodPost, c.baseURL+"/api/v1/workflows", graph)
	if err != nil {
		return "", err
	}

	if status < 200 || status >= 300 {
		return "", fmt.Errorf("create workflow returned status %d: %w", status, ErrEngineUnavailable)
	}

	var created createWorkflowResponse
	if err := json.Unmarshal(body, &created); err != nil {
		return "", fmt.Errorf("decode create workflow response: %w", err)
	}

	if created.ID == "" {
		return "", errors.New("engine returned empty workflow id")
	}

	return created.ID, nil
}

// ActivateWorkflow enables an engine-side workflow so its trigger starts
// accepting events.
func (c *Client) ActivateWorkflow(ctx context.Context, engineID string) error {
	_, status, err := c.do(ctx, http.MethodPost, c.baseURL+"/api/v1/workflows/"+engineID+"/activate", nil)
	if err != nil {
		return err
	}

	if status < 200 || status >= 300 {
		return fmt.Errorf("activate workflow returned status %d: %w", status, ErrEngineUnavailable)
	}

	return nil
}

// PostJSON posts a JSON payload to an absolute URL, such as a resume
// webhook captured from a paused execution. The API key header is sent
// so engine-hosted webhooks accept the call.
func (c *Client) PostJSON(ctx context.Context, url string, payload any) error {
	_, status, err := c.do(ctx, http.MethodPost, url, payload)
	if err != nil {
		return err
	}

	if status < 200 || status >= 300 {
		return fmt.Errorf("post to %s returned status %d: %w", url, status, ErrEngineUnavailable)
	}

	return nil
}

func (c *Client) do(ctx context.Context, method, url string, payload any) ([]byte, int, error) {
	var reqBody io.Reader

	if payload != nil {
		encoded, err := json.Marshal(payload)
		if err != nil {
			return nil, 0, fmt.Errorf("encode request body: %w", err)
		}

		reqBody = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reqBody)
	if err != nil {
		return nil, 0, fmt.Errorf("build request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")

	if c.apiKey != "" {
		req.Header.Set(apiKeyHeader, c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("%w: %w", ErrEngineUnavailable, err)
	}

	defer func() {
		_ = resp.Body.Close()
	}()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, fmt.Errorf("read response body: %w", err)
	}

	return body, resp.StatusCode, nil
}
