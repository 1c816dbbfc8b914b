package reconcile

import (
	"encoding/json"
	"fmt"
)

// PendingUpdate is a planned, not-yet-applied mutation bringing one
// replica's record in line with the authoritative payload for its key.
// It carries enough information to be human-auditable before any write.
type PendingUpdate struct {
	ReplicaID       string `json:"replica_id"`
	RecordID        string `json:"record_id"`
	Key             string `json:"key"`
	Identity        any    `json:"identity"`
	OldPayload      any    `json:"old_payload"`
	NewPayload      any    `json:"new_payload"`
	SourceReplicaID string `json:"source_replica_id"`
}

// Detect examines every multi-replica key in the global index and emits
// pending updates for replicas whose payload differs from the
// authoritative record's payload.
//
// The authoritative record for a key is the entry with the greatest
// CreatedAt; on equal timestamps the first entry in replica order wins.
// This first-seen tie-break is a deliberate policy, not an attempt at a
// semantic merge of concurrent edits.
//
// Every replica in the index appears in the result, with an empty slice
// when it needs no updates, so reports can show "already in sync".
func Detect(g *GlobalIndex) map[string][]PendingUpdate {
	updates := make(map[string][]PendingUpdate, len(g.ReplicaOrder()))
	for _, replicaID := range g.ReplicaOrder() {
		updates[replicaID] = []PendingUpdate{}
	}

	for _, key := range g.MultiKeys() {
		entries := g.Entries(key)
		authoritative := entries[0]
		for _, entry := range entries[1:] {
			if entry.Record.CreatedAt > authoritative.Record.CreatedAt {
				authoritative = entry
			}
		}

		for _, entry := range entries {
			if entry.ReplicaID == authoritative.ReplicaID {
				continue
			}
			if PayloadsEqual(entry.Record.Payload, authoritative.Record.Payload) {
				continue
			}
			updates[entry.ReplicaID] = append(updates[entry.ReplicaID], PendingUpdate{
				ReplicaID:       entry.ReplicaID,
				RecordID:        entry.Record.ID,
				Key:             key,
				Identity:        entry.Record.Identity,
				OldPayload:      entry.Record.Payload,
				NewPayload:      authoritative.Record.Payload,
				SourceReplicaID: authoritative.ReplicaID,
			})
		}
	}
	return updates
}

// PayloadsEqual compares two payloads under null normalization: a nil
// payload is treated as an empty mapping, so "never set" and "explicitly
// set empty" are not reported as divergence.
func PayloadsEqual(a, b any) bool {
	return canonicalPayload(a) == canonicalPayload(b)
}

// canonicalPayload serializes a payload to canonical JSON for comparison.
// Map keys are sorted by encoding/json, so structurally-equal payloads
// serialize identically.
func canonicalPayload(v any) string {
	if v == nil {
		v = map[string]any{}
	}
	b, err := json.Marshal(v)
	if err != nil {
		// Unmarshalable payloads cannot come from a JSON API; fall back
		// to the Go representation rather than panicking.
		return fmt.Sprintf("%#v", v)
	}
	return string(b)
}
