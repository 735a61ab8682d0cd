// Package client talks to the remote workflow-creation service.
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

	"github.com/langdag/dagbuilder/pkg/types"
)

// Client is the workflow-creation service client.
type Client struct {
	baseURL    string
	httpClient *http.Client
	apiKey     string
}

// Option is a function that configures the Client.
type Option func(*Client)

// NewClient creates a new client. Requests have no timeout unless
// WithTimeout is given.
func NewClient(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		httpClient: &http.Client{},
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// WithAPIKey sets the API key for authentication.
func WithAPIKey(key string) Option {
	return func(c *Client) {
		c.apiKey = key
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		c.httpClient = client
	}
}

// WithTimeout sets the HTTP client timeout.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		c.httpClient.Timeout = timeout
	}
}

// BaseURL returns the service address the client targets.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// CreateWorkflow submits a workflow definition.
func (c *Client) CreateWorkflow(ctx context.Context, req *types.CreateWorkflowRequest) (*types.CreateWorkflowResponse, error) {
	var resp types.CreateWorkflowResponse
	if err := c.doRequest(ctx, http.MethodPost, "/workflows", req, &resp); err != nil {
		return nil, err
	}
	if resp.WorkflowID == "" {
		return nil, fmt.Errorf("dagbuilder: workflow service returned no workflowId")
	}
	return &resp, nil
}

// doRequest performs an HTTP request and decodes the JSON response.
func (c *Client) doRequest(ctx context.Context, method, path string, body, result any) error {
	var bodyReader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("dagbuilder: failed to marshal request body: %w", err)
		}
		bodyReader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
	if err != nil {
		return fmt.Errorf("dagbuilder: failed to create request: %w", err)
	}

	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("X-API-Key", c.apiKey)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &ConnectionError{Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return parseError(resp)
	}

	if result != nil {
		if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
			return fmt.Errorf("dagbuilder: failed to decode response: %w", err)
		}
	}

	return nil
}

// parseError parses an error response from the service.
func parseError(resp *http.Response) error {
	var errResp struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}

	body, _ := io.ReadAll(resp.Body)
	msg := ""
	if err := json.Unmarshal(body, &errResp); err == nil {
		msg = errResp.Error
		if msg == "" {
			msg = errResp.Message
		}
	} else {
		msg = strings.TrimSpace(string(body))
	}
	if msg == "" {
		msg = resp.Status
	}

	return &APIError{
		StatusCode: resp.StatusCode,
		Message:    msg,
	}
}
