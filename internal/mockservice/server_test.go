package mockservice

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/langdag/dagbuilder/internal/client"
	"github.com/langdag/dagbuilder/pkg/types"
)

func request() *types.CreateWorkflowRequest {
	return &types.CreateWorkflowRequest{
		Name: "demo",
		Spec: types.WorkflowSpec{
			Version: 1,
			Nodes:   []types.WorkflowSpecNode{{ID: "n1", Type: "http", Input: map[string]any{}, DependsOn: []string{}}},
		},
	}
}

func TestCreateWorkflow(t *testing.T) {
	s := NewServer(&Config{Mode: "ok"})
	ts := httptest.NewServer(s.Handler())
	defer ts.Close()

	resp, err := client.NewClient(ts.URL).CreateWorkflow(context.Background(), request())
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(resp.WorkflowID, "wf_"))
	assert.Equal(t, "demo", resp.Name)

	reqs := s.Requests()
	require.Len(t, reqs, 1)
	assert.Equal(t, "n1", reqs[0].Spec.Nodes[0].ID)
}

func TestErrorMode(t *testing.T) {
	s := NewServer(&Config{Mode: "error", ErrorCode: http.StatusServiceUnavailable, ErrorMessage: "down for maintenance"})
	ts := httptest.NewServer(s.Handler())
	defer ts.Close()

	_, err := client.NewClient(ts.URL).CreateWorkflow(context.Background(), request())
	var apiErr *client.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusServiceUnavailable, apiErr.StatusCode)
	assert.Equal(t, "down for maintenance", apiErr.Message)
	assert.Empty(t, s.Requests())
}

func TestRejectsEmptyWorkflow(t *testing.T) {
	ts := httptest.NewServer(NewServer(&Config{}).Handler())
	defer ts.Close()

	_, err := client.NewClient(ts.URL).CreateWorkflow(context.Background(), &types.CreateWorkflowRequest{Name: "demo"})
	var apiErr *client.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.True(t, apiErr.IsBadRequest())
}
