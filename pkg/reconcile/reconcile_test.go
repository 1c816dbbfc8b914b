package reconcile_test

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pkgerrors "github.com/evaldeck/evaldeck/pkg/errors"
	"github.com/evaldeck/evaldeck/pkg/reconcile"
)

// fakeReplicas is an in-memory replica store implementing both Fetcher
// and Upserter, so a Syncer round-trip can be tested end to end.
type fakeReplicas struct {
	data        map[string][]map[string]any
	unreachable map[string]bool
	upserts     int
}

func newFakeReplicas() *fakeReplicas {
	return &fakeReplicas{
		data:        make(map[string][]map[string]any),
		unreachable: make(map[string]bool),
	}
}

func (f *fakeReplicas) add(replicaID, recordID string, input any, expected any, created string) {
	f.data[replicaID] = append(f.data[replicaID], map[string]any{
		"id":       recordID,
		"input":    input,
		"expected": expected,
		"created":  created,
	})
}

func (f *fakeReplicas) Fetch(_ context.Context, replicaID string) (reconcile.ReplicaData, error) {
	if f.unreachable[replicaID] {
		return reconcile.ReplicaData{}, fmt.Errorf("connect %s: connection refused", replicaID)
	}
	return reconcile.ReplicaData{Name: "name-" + replicaID, Records: f.data[replicaID]}, nil
}

func (f *fakeReplicas) Upsert(_ context.Context, replicaID, recordID string, identity, payload any) error {
	f.upserts++
	for _, raw := range f.data[replicaID] {
		if raw["id"] == recordID {
			raw["input"] = identity
			raw["expected"] = payload
			return nil
		}
	}
	// New record ID: append, mirroring the insert-as-upsert API.
	f.data[replicaID] = append(f.data[replicaID], map[string]any{
		"id": recordID, "input": identity, "expected": payload,
	})
	return nil
}

func TestSyncerDryRun(t *testing.T) {
	store := newFakeReplicas()
	store.add("r1", "a", "q1", "old answer", "2024-01-01T00:00:00Z")
	store.add("r2", "b", "q1", "new answer", "2024-06-01T00:00:00Z")

	syncer := reconcile.NewSyncer(store, store)
	plan, result, err := syncer.Run(context.Background(), []string{"r1", "r2"})
	require.NoError(t, err)
	assert.Nil(t, result)

	assert.Equal(t, 1, plan.UniqueKeys)
	assert.Equal(t, 1, plan.MultiReplicaKeys)
	assert.Equal(t, 1, plan.DivergentKeys)
	assert.Equal(t, 1, plan.TotalUpdates())
	assert.False(t, plan.InSync())

	require.Len(t, plan.Updates["r1"], 1)
	assert.Equal(t, "new answer", plan.Updates["r1"][0].NewPayload)
	assert.Equal(t, "r2", plan.Updates["r1"][0].SourceReplicaID)
	assert.Empty(t, plan.Updates["r2"])

	require.Len(t, plan.Replicas, 2)
	assert.Equal(t, "name-r1", plan.Replicas[0].Name)
	assert.NotEmpty(t, plan.RunID)

	// Dry-run must not touch the store.
	assert.Equal(t, 0, store.upserts)
}

func TestSyncerApplyThenIdempotent(t *testing.T) {
	store := newFakeReplicas()
	store.add("r1", "a", "q1", "A", "2024-01-01T00:00:00Z")
	store.add("r2", "b", "q1", "B", "2024-06-01T00:00:00Z")
	store.add("r3", "c", "q1", "C", "2023-12-01T00:00:00Z")
	store.add("r1", "d", "q2", "same", "2024-01-01T00:00:00Z")
	store.add("r2", "e", "q2", "same", "2024-02-01T00:00:00Z")

	syncer := reconcile.NewSyncer(store, store, reconcile.WithApply(true))
	plan, result, err := syncer.Run(context.Background(), []string{"r1", "r2", "r3"})
	require.NoError(t, err)
	require.NotNil(t, result)

	assert.Equal(t, 2, plan.TotalUpdates())
	assert.Equal(t, 2, result.Succeeded)
	assert.Equal(t, 0, result.Failed)

	// A second pass over the same replicas finds nothing to do.
	plan2, result2, err := syncer.Run(context.Background(), []string{"r1", "r2", "r3"})
	require.NoError(t, err)
	assert.True(t, plan2.InSync())
	assert.Nil(t, result2)
}

func TestSyncerRequiresTwoReplicas(t *testing.T) {
	store := newFakeReplicas()
	syncer := reconcile.NewSyncer(store, store)

	_, _, err := syncer.Run(context.Background(), []string{"r1"})
	require.Error(t, err)
	assert.True(t, pkgerrors.IsValidationError(err))
}

func TestSyncerApplyWithoutUpserter(t *testing.T) {
	store := newFakeReplicas()
	syncer := reconcile.NewSyncer(store, nil, reconcile.WithApply(true))

	_, _, err := syncer.Run(context.Background(), []string{"r1", "r2"})
	require.Error(t, err)

	var configErr *pkgerrors.ConfigError
	assert.ErrorAs(t, err, &configErr)
}

func TestSyncerFetchErrorPolicies(t *testing.T) {
	t.Run("skip degrades to empty replica", func(t *testing.T) {
		store := newFakeReplicas()
		store.add("r1", "a", "q1", "A", "2024-01-01T00:00:00Z")
		store.unreachable["r2"] = true

		syncer := reconcile.NewSyncer(store, store)
		plan, _, err := syncer.Run(context.Background(), []string{"r1", "r2"})
		require.NoError(t, err)

		require.Len(t, plan.Replicas, 2)
		assert.NotEmpty(t, plan.Replicas[1].FetchError)
		assert.Equal(t, 0, plan.Replicas[1].RecordCount)
		assert.True(t, plan.InSync())
	})

	t.Run("abort fails the run", func(t *testing.T) {
		store := newFakeReplicas()
		store.add("r1", "a", "q1", "A", "2024-01-01T00:00:00Z")
		store.unreachable["r2"] = true

		syncer := reconcile.NewSyncer(store, store,
			reconcile.WithFetchErrorPolicy(reconcile.AbortOnFetchError))
		_, _, err := syncer.Run(context.Background(), []string{"r1", "r2"})
		require.Error(t, err)

		var syncErr *pkgerrors.SyncError
		require.ErrorAs(t, err, &syncErr)
		assert.Equal(t, "r2", syncErr.Replica)
	})
}

func TestSyncerSkipsMalformedRecords(t *testing.T) {
	store := newFakeReplicas()
	store.add("r1", "a", "q1", "A", "2024-01-01T00:00:00Z")
	store.data["r1"] = append(store.data["r1"], map[string]any{"id": "broken"})
	store.add("r2", "b", "q1", "A", "2024-06-01T00:00:00Z")

	syncer := reconcile.NewSyncer(store, store)
	plan, _, err := syncer.Run(context.Background(), []string{"r1", "r2"})
	require.NoError(t, err)

	assert.Equal(t, 1, plan.Replicas[0].Skipped)
	assert.Equal(t, 2, plan.Replicas[0].RecordCount)
	assert.True(t, plan.InSync())
}
