package reconcile

import "sort"

// KeyIndex maps identity keys to the most recent Record observed for that
// key within a single replica.
type KeyIndex map[string]Record

// BuildKeyIndex collapses a replica's records into a KeyIndex. When the
// same key appears more than once, the record with the greatest CreatedAt
// wins; ties keep the first-seen record so the collapse is stable with
// respect to fetch order. The second return value counts collapsed
// duplicates, an observability signal rather than an error.
func BuildKeyIndex(records []Record) (KeyIndex, int) {
	index := make(KeyIndex, len(records))
	collapsed := 0
	for _, rec := range records {
		existing, ok := index[rec.Key]
		if !ok {
			index[rec.Key] = rec
			continue
		}
		collapsed++
		if rec.CreatedAt > existing.CreatedAt {
			index[rec.Key] = rec
		}
	}
	return index, collapsed
}

// Entry pairs a record with the replica that holds it.
type Entry struct {
	ReplicaID string
	Record    Record
}

// GlobalIndex merges per-replica key indices. For each key it holds one
// Entry per replica that has the key, in replica iteration order, which
// makes authoritative-record tie-breaks deterministic.
type GlobalIndex struct {
	replicaOrder []string
	entries      map[string][]Entry
}

// IndexedReplica is one replica's collapsed key index plus its identity.
type IndexedReplica struct {
	ReplicaID string
	Index     KeyIndex
}

// BuildGlobalIndex merges per-replica indices. Replica order is the order
// of the replicas argument; entries for a key appear in that order.
func BuildGlobalIndex(replicas []IndexedReplica) *GlobalIndex {
	g := &GlobalIndex{
		replicaOrder: make([]string, 0, len(replicas)),
		entries:      make(map[string][]Entry),
	}
	for _, rep := range replicas {
		g.replicaOrder = append(g.replicaOrder, rep.ReplicaID)
	}

	// Iterate keys per replica in a deterministic order so two runs over
	// the same input build byte-identical plans.
	for _, rep := range replicas {
		for _, rec := range rep.Index.sortedRecords() {
			g.entries[rec.Key] = append(g.entries[rec.Key], Entry{
				ReplicaID: rep.ReplicaID,
				Record:    rec,
			})
		}
	}
	return g
}

// ReplicaOrder returns the replica IDs in index construction order.
func (g *GlobalIndex) ReplicaOrder() []string {
	return g.replicaOrder
}

// Len returns the number of unique identity keys across all replicas.
func (g *GlobalIndex) Len() int {
	return len(g.entries)
}

// Entries returns the entries for one key, in replica order.
func (g *GlobalIndex) Entries(key string) []Entry {
	return g.entries[key]
}

// MultiKeys returns the keys held by two or more replicas, sorted. These
// are the only keys the divergence detector examines; a key present in a
// single replica cannot diverge.
func (g *GlobalIndex) MultiKeys() []string {
	keys := make([]string, 0, len(g.entries))
	for key, entries := range g.entries {
		if len(entries) >= 2 {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)
	return keys
}

// sortedRecords returns the index's records ordered by key.
func (idx KeyIndex) sortedRecords() []Record {
	keys := make([]string, 0, len(idx))
	for k := range idx {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	records := make([]Record, 0, len(keys))
	for _, k := range keys {
		records = append(records, idx[k])
	}
	return records
}
