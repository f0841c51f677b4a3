package agents

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func TestLoadCatalog(t *testing.T) {
	catalog, err := LoadCatalog()
	require.NoError(t, err)
	for _, role := range []string{RolePlanner, RoleSearcher, RoleAnalyzer, RoleCritique, RoleReporter} {
		r, ok := catalog[role]
		require.True(t, ok, "catalog missing %s", role)
		assert.NotEmpty(t, r.Instruction)
		assert.NotEmpty(t, r.Schema)
	}
}

func TestClient_Invoke(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/agent/planner", r.URL.Path)
		assert.Equal(t, http.MethodPost, r.Method)

		var req Request
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Contains(t, req.Instruction, "research planning")
		assert.Equal(t, "what is RLHF?", req.Input)
		assert.Equal(t, "research_plan", req.Schema)

		json.NewEncoder(w).Encode(Response{
			Message:      `{"research_approach": "focused_deep_dive"}`,
			Model:        "claude-sonnet",
			OutputTokens: 42,
		})
	}))
	defer srv.Close()

	catalog, err := LoadCatalog()
	require.NoError(t, err)
	c := NewClient(srv.URL, catalog, zaptest.NewLogger(t))

	resp, err := c.Invoke(context.Background(), RolePlanner, "what is RLHF?", nil)
	require.NoError(t, err)
	assert.Contains(t, resp.Message, "focused_deep_dive")
	assert.Equal(t, 42, resp.OutputTokens)
}

func TestClient_InvokeUnknownRole(t *testing.T) {
	catalog, err := LoadCatalog()
	require.NoError(t, err)
	c := NewClient("http://localhost:0", catalog, zaptest.NewLogger(t))

	_, err = c.Invoke(context.Background(), "chef", "input", nil)
	assert.Error(t, err)
}

func TestClient_InvokeServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "model overloaded", http.StatusBadGateway)
	}))
	defer srv.Close()

	catalog, err := LoadCatalog()
	require.NoError(t, err)
	c := NewClient(srv.URL, catalog, zaptest.NewLogger(t))

	_, err = c.Invoke(context.Background(), RoleSearcher, "input", nil)
	assert.Error(t, err)
}

func TestClient_InvokeEmptyMessage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		json.NewEncoder(w).Encode(Response{Message: ""})
	}))
	defer srv.Close()

	catalog, err := LoadCatalog()
	require.NoError(t, err)
	c := NewClient(srv.URL, catalog, zaptest.NewLogger(t))

	_, err = c.Invoke(context.Background(), RoleCritique, "input", nil)
	assert.Error(t, err)
}

func TestClient_InvokeTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		time.Sleep(200 * time.Millisecond)
		json.NewEncoder(w).Encode(Response{Message: "late"})
	}))
	defer srv.Close()

	catalog, err := LoadCatalog()
	require.NoError(t, err)
	c := NewClient(srv.URL, catalog, zaptest.NewLogger(t), WithTimeout(20*time.Millisecond))

	_, err = c.Invoke(context.Background(), RoleReporter, "input", nil)
	assert.Error(t, err)
}
