package engine

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/crewdeck/crewdeck/pkg/compiler"
)

func TestClientCreateWorkflow(t *testing.T) {
	var gotPath, gotAPIKey string

	var gotGraph compiler.Graph

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAPIKey = r.Header.Get("X-N8N-API-KEY")

		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotGraph))

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"id":"wf-engine-123"}`))
	}))
	defer server.Close()

	client := NewClient(server.URL, "secret-key", 5*time.Second)

	graph := &compiler.Graph{
		Name: "Invoice Review",
		Nodes: []compiler.Node{
			{Name: "Start", Type: "n8n-nodes-base.manualTrigger"},
		},
	}

	engineID, err := client.CreateWorkflow(context.Background(), graph)
	require.NoError(t, err)

	assert.Equal(t, "wf-engine-123", engineID)
	assert.Equal(t, "/api/v1/workflows", gotPath)
	assert.Equal(t, "secret-key", gotAPIKey)
	assert.Equal(t, "Invoice Review", gotGraph.Name)
	assert.Len(t, gotGraph.Nodes, 1)
}

func TestClientCreateWorkflowServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	client := NewClient(server.URL, "secret-key", 5*time.Second)

	_, err := client.CreateWorkflow(context.Background(), &compiler.Graph{})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrEngineUnavailable)
}

func TestClientCreateWorkflowEmptyID(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{}`))
	}))
	defer server.Close()

	client := NewClient(server.URL, "", 5*time.Second)

	_, err := client.CreateWorkflow(context.Background(), &compiler.Graph{})
	require.Error(t, err)
}

func TestClientActivateWorkflow(t *testing.T) {
	var gotPath, gotMethod string

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotMethod = r.Method
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client := NewClient(server.URL, "secret-key", 5*time.Second)

	require.NoError(t, client.ActivateWorkflow(context.Background(), "wf-engine-123"))
	assert.Equal(t, "/api/v1/workflows/wf-engine-123/activate", gotPath)
	assert.Equal(t, http.MethodPost, gotMethod)
}

func TestClientPostJSON(t *testing.T) {
	var gotBody map[string]any

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client := NewClient(server.URL, "secret-key", 5*time.Second)

	err := client.PostJSON(context.Background(), server.URL+"/webhook/review-s2", map[string]any{
		"approved": true,
		"reviewId": "rev-1",
	})
	require.NoError(t, err)

	assert.Equal(t, true, gotBody["approved"])
	assert.Equal(t, "rev-1", gotBody["reviewId"])
}

func TestClientPostJSONNetworkFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(_ http.ResponseWriter, _ *http.Request) {}))
	server.Close()

	client := NewClient(server.URL, "", time.Second)

	err := client.PostJSON(context.Background(), server.URL+"/webhook/review-s2", map[string]any{})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrEngineUnavailable)
}
