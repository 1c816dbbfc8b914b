package braintrust

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestListProjectsOrgFilter(t *testing.T) {
	client := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/v1/project", r.URL.Path)
		assert.Equal(t, "acme", r.URL.Query().Get("org_name"))
		assert.Equal(t, "10", r.URL.Query().Get("limit"))
		_ = json.NewEncoder(w).Encode(map[string]any{
			"objects": []Project{{ID: "proj-1", Name: "evals"}},
		})
	}))

	projects, err := client.ListProjects(context.Background(), "acme", 10)
	require.NoError(t, err)
	require.Len(t, projects, 1)
	assert.Equal(t, "evals", projects[0].Name)
}

func TestCreateProject(t *testing.T) {
	var received map[string]any
	client := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v1/project", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&received))
		_ = json.NewEncoder(w).Encode(Project{ID: "proj-7", Name: "evals"})
	}))

	project, err := client.CreateProject(context.Background(), "evals", "acme",
		[]string{"nightly"})
	require.NoError(t, err)
	assert.Equal(t, "proj-7", project.ID)

	assert.Equal(t, "evals", received["name"])
	assert.Equal(t, "acme", received["org_name"])
	assert.Equal(t, []any{"nightly"}, received["tags"])
}

func TestCreateProjectOmitsUnsetFields(t *testing.T) {
	var received map[string]any
	client := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&received))
		_ = json.NewEncoder(w).Encode(Project{ID: "proj-7"})
	}))

	_, err := client.CreateProject(context.Background(), "evals", "", nil)
	require.NoError(t, err)
	assert.NotContains(t, received, "org_name")
	assert.NotContains(t, received, "tags")
}

func TestUpdateProject(t *testing.T) {
	var received map[string]any
	client := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPatch, r.Method)
		assert.Equal(t, "/v1/project/proj-1", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&received))
		_ = json.NewEncoder(w).Encode(Project{ID: "proj-1", Name: "renamed"})
	}))

	project, err := client.UpdateProject(context.Background(), "proj-1", "renamed", nil)
	require.NoError(t, err)
	assert.Equal(t, "renamed", project.Name)
	assert.NotContains(t, received, "tags")
}

func TestUpdateProjectClearsTags(t *testing.T) {
	var received map[string]any
	client := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&received))
		_ = json.NewEncoder(w).Encode(Project{ID: "proj-1"})
	}))

	// An empty slice clears the tags; nil would leave them unchanged.
	_, err := client.UpdateProject(context.Background(), "proj-1", "", []string{})
	require.NoError(t, err)
	assert.Equal(t, []any{}, received["tags"])
}

func TestDeleteProject(t *testing.T) {
	client := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodDelete, r.Method)
		assert.Equal(t, "/v1/project/proj-1", r.URL.Path)
		w.WriteHeader(http.StatusOK)
	}))

	require.NoError(t, client.DeleteProject(context.Background(), "proj-1"))
}
