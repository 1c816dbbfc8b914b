package reconcile_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/evaldeck/evaldeck/pkg/reconcile"
)

func record(id, key, created string, payload any) reconcile.Record {
	return reconcile.Record{
		ID:        id,
		Key:       key,
		Identity:  key,
		Payload:   payload,
		CreatedAt: created,
	}
}

func TestBuildKeyIndex(t *testing.T) {
	t.Run("newest duplicate wins", func(t *testing.T) {
		index, collapsed := reconcile.BuildKeyIndex([]reconcile.Record{
			record("old", "k1", "2024-01-01T00:00:00Z", "stale"),
			record("new", "k1", "2024-06-01T00:00:00Z", "fresh"),
			record("other", "k2", "2024-03-01T00:00:00Z", "b"),
		})
		assert.Equal(t, 1, collapsed)
		require.Len(t, index, 2)
		assert.Equal(t, "new", index["k1"].ID)
		assert.Equal(t, "fresh", index["k1"].Payload)
	})

	t.Run("fetch order does not matter for the winner", func(t *testing.T) {
		index, _ := reconcile.BuildKeyIndex([]reconcile.Record{
			record("new", "k1", "2024-06-01T00:00:00Z", "fresh"),
			record("old", "k1", "2024-01-01T00:00:00Z", "stale"),
		})
		assert.Equal(t, "new", index["k1"].ID)
	})

	t.Run("equal timestamps keep the first seen", func(t *testing.T) {
		index, collapsed := reconcile.BuildKeyIndex([]reconcile.Record{
			record("first", "k1", "2024-01-01T00:00:00Z", "a"),
			record("second", "k1", "2024-01-01T00:00:00Z", "b"),
		})
		assert.Equal(t, 1, collapsed)
		assert.Equal(t, "first", index["k1"].ID)
	})

	t.Run("no duplicates", func(t *testing.T) {
		index, collapsed := reconcile.BuildKeyIndex([]reconcile.Record{
			record("a", "k1", "t1", nil),
			record("b", "k2", "t2", nil),
		})
		assert.Equal(t, 0, collapsed)
		assert.Len(t, index, 2)
	})
}

func TestBuildGlobalIndex(t *testing.T) {
	r1, _ := reconcile.BuildKeyIndex([]reconcile.Record{
		record("a1", "shared", "t1", "x"),
		record("a2", "only-r1", "t1", "y"),
	})
	r2, _ := reconcile.BuildKeyIndex([]reconcile.Record{
		record("b1", "shared", "t2", "z"),
	})

	global := reconcile.BuildGlobalIndex([]reconcile.IndexedReplica{
		{ReplicaID: "r1", Index: r1},
		{ReplicaID: "r2", Index: r2},
	})

	assert.Equal(t, []string{"r1", "r2"}, global.ReplicaOrder())
	assert.Equal(t, 2, global.Len())

	entries := global.Entries("shared")
	require.Len(t, entries, 2)
	assert.Equal(t, "r1", entries[0].ReplicaID)
	assert.Equal(t, "r2", entries[1].ReplicaID)

	assert.Equal(t, []string{"shared"}, global.MultiKeys())
}

func TestGlobalIndexNoSharedKeys(t *testing.T) {
	r1, _ := reconcile.BuildKeyIndex([]reconcile.Record{record("a", "k1", "t", nil)})
	r2, _ := reconcile.BuildKeyIndex([]reconcile.Record{record("b", "k2", "t", nil)})

	global := reconcile.BuildGlobalIndex([]reconcile.IndexedReplica{
		{ReplicaID: "r1", Index: r1},
		{ReplicaID: "r2", Index: r2},
	})

	assert.Equal(t, 2, global.Len())
	assert.Empty(t, global.MultiKeys())
}
