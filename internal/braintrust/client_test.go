package braintrust

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pkgerrors "github.com/evaldeck/evaldeck/pkg/errors"
)

func testClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return New("test-key", WithBaseURL(server.URL))
}

func TestGetDataset(t *testing.T) {
	client := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/dataset/ds-1", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		_ = json.NewEncoder(w).Encode(Dataset{ID: "ds-1", Name: "golden set", ProjectID: "proj-1"})
	}))

	dataset, err := client.GetDataset(context.Background(), "ds-1")
	require.NoError(t, err)
	assert.Equal(t, "golden set", dataset.Name)
	assert.Equal(t, "proj-1", dataset.ProjectID)
}

func TestGetDatasetNotFound(t *testing.T) {
	client := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, `{"error":"not found"}`, http.StatusNotFound)
	}))

	_, err := client.GetDataset(context.Background(), "missing")
	require.Error(t, err)
	assert.True(t, errors.Is(err, pkgerrors.ErrNotFound))

	var apiErr *pkgerrors.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusNotFound, apiErr.StatusCode)
}

func TestFetchDatasetEventsPagination(t *testing.T) {
	calls := 0
	client := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v1/dataset/ds-1/fetch", r.URL.Path)

		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))

		calls++
		switch calls {
		case 1:
			assert.Nil(t, body["cursor"])
			_ = json.NewEncoder(w).Encode(fetchPage{
				Events: []Event{{"id": "a"}, {"id": "b"}},
				Cursor: "next-page",
			})
		case 2:
			assert.Equal(t, "next-page", body["cursor"])
			_ = json.NewEncoder(w).Encode(fetchPage{
				Events: []Event{{"id": "c"}},
			})
		default:
			t.Fatalf("unexpected call %d", calls)
		}
	}))

	events, err := client.FetchDatasetEvents(context.Background(), "ds-1")
	require.NoError(t, err)
	require.Len(t, events, 3)
	assert.Equal(t, "c", events[2]["id"])
	assert.Equal(t, 2, calls)
}

func TestListDatasets(t *testing.T) {
	client := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/dataset", r.URL.Path)
		assert.Equal(t, "proj-1", r.URL.Query().Get("project_id"))
		assert.Equal(t, "25", r.URL.Query().Get("limit"))
		_ = json.NewEncoder(w).Encode(map[string]any{
			"objects": []Dataset{{ID: "ds-1"}, {ID: "ds-2"}},
		})
	}))

	datasets, err := client.ListDatasets(context.Background(), "proj-1", 25)
	require.NoError(t, err)
	assert.Len(t, datasets, 2)
}

func TestInsertEvents(t *testing.T) {
	var received map[string][]Event
	client := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/dataset/ds-1/insert", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&received))
		_ = json.NewEncoder(w).Encode(map[string]any{"row_ids": []string{"rec-1"}})
	}))

	err := client.InsertEvents(context.Background(), "ds-1", []Event{
		{"id": "rec-1", "input": "q", "expected": "a"},
	})
	require.NoError(t, err)
	require.Len(t, received["events"], 1)
	assert.Equal(t, "rec-1", received["events"][0]["id"])
}

func TestUpsertShape(t *testing.T) {
	var received map[string][]Event
	client := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&received))
		w.WriteHeader(http.StatusOK)
	}))

	identity := map[string]any{"question": "2+2?"}
	err := client.Upsert(context.Background(), "ds-1", "rec-9", identity, "4")
	require.NoError(t, err)

	require.Len(t, received["events"], 1)
	event := received["events"][0]
	assert.Equal(t, "rec-9", event["id"])
	assert.Equal(t, map[string]any{"question": "2+2?"}, event["input"])
	assert.Equal(t, "4", event["expected"])
}

func TestFetchFallsBackToIDWhenMetadataUnavailable(t *testing.T) {
	client := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/v1/dataset/ds-1" {
			http.Error(w, "nope", http.StatusInternalServerError)
			return
		}
		_ = json.NewEncoder(w).Encode(fetchPage{Events: []Event{{"id": "a"}}})
	}))

	data, err := client.Fetch(context.Background(), "ds-1")
	require.NoError(t, err)
	assert.Equal(t, "ds-1", data.Name)
	assert.Len(t, data.Records, 1)
}

func TestNewFromEnv(t *testing.T) {
	t.Run("missing key", func(t *testing.T) {
		t.Setenv(APIKeyEnvVar, "")
		_, err := NewFromEnv()
		require.Error(t, err)
		assert.True(t, errors.Is(err, pkgerrors.ErrAPIKeyRequired))
	})

	t.Run("key present", func(t *testing.T) {
		t.Setenv(APIKeyEnvVar, "secret")
		client, err := NewFromEnv()
		require.NoError(t, err)
		assert.NotNil(t, client)
	})
}

func TestEndpointEscapesPathArgs(t *testing.T) {
	client := New("k", WithBaseURL("https://api.example.com"))
	assert.Equal(t,
		"https://api.example.com/v1/dataset/a%2Fb",
		client.endpoint("/v1/dataset/%s", "a/b"),
	)
}
