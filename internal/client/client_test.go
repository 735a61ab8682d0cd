package client

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/langdag/dagbuilder/pkg/types"
)

func TestNewClient(t *testing.T) {
	c := NewClient("http://localhost:8080/")
	assert.Equal(t, "http://localhost:8080", c.BaseURL())
	assert.Zero(t, c.httpClient.Timeout)

	c = NewClient("http://localhost:8080", WithTimeout(5*time.Second), WithAPIKey("k"))
	assert.Equal(t, 5*time.Second, c.httpClient.Timeout)
	assert.Equal(t, "k", c.apiKey)
}

func TestCreateWorkflow(t *testing.T) {
	var got types.CreateWorkflowRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/workflows", r.URL.Path)
		assert.Equal(t, "secret", r.Header.Get("X-API-Key"))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(map[string]any{
			"workflowId": "wf-42",
			"name":       got.Name,
			"createdAt":  "2026-01-01T00:00:00Z",
		})
	}))
	defer server.Close()

	c := NewClient(server.URL, WithAPIKey("secret"))
	resp, err := c.CreateWorkflow(context.Background(), &types.CreateWorkflowRequest{
		Name: "demo",
		Spec: types.WorkflowSpec{
			Version: 1,
			Nodes: []types.WorkflowSpecNode{
				{ID: "n1", Type: "http", Input: map[string]any{}, DependsOn: []string{}},
			},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, "wf-42", resp.WorkflowID)
	assert.Equal(t, "demo", resp.Name)
	assert.Equal(t, time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC), resp.CreatedAt.UTC())

	assert.Equal(t, "demo", got.Name)
	assert.Equal(t, 1, got.Spec.Version)
	require.Len(t, got.Spec.Nodes, 1)
	assert.Equal(t, []string{}, got.Spec.Nodes[0].DependsOn)
}

func TestCreateWorkflowAPIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"error": "name already taken"}`))
	}))
	defer server.Close()

	_, err := NewClient(server.URL).CreateWorkflow(context.Background(), &types.CreateWorkflowRequest{Name: "demo"})
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.True(t, apiErr.IsBadRequest())
	assert.Equal(t, "name already taken", apiErr.Message)
	assert.True(t, IsServiceError(err))
}

func TestCreateWorkflowPlainTextError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "upstream down", http.StatusBadGateway)
	}))
	defer server.Close()

	_, err := NewClient(server.URL).CreateWorkflow(context.Background(), &types.CreateWorkflowRequest{Name: "demo"})
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusBadGateway, apiErr.StatusCode)
	assert.Equal(t, "upstream down", apiErr.Message)
}

func TestCreateWorkflowMissingID(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"name": "demo"}`))
	}))
	defer server.Close()

	_, err := NewClient(server.URL).CreateWorkflow(context.Background(), &types.CreateWorkflowRequest{Name: "demo"})
	require.Error(t, err)
	assert.False(t, IsServiceError(err))
}

func TestCreateWorkflowConnectionError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := server.URL
	server.Close()

	_, err := NewClient(url).CreateWorkflow(context.Background(), &types.CreateWorkflowRequest{Name: "demo"})
	var connErr *ConnectionError
	require.ErrorAs(t, err, &connErr)
	assert.True(t, IsServiceError(err))
	assert.NotNil(t, errors.Unwrap(err))
}
