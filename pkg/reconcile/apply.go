package reconcile

import (
	"context"
	"sort"
)

// Upserter writes one record back to its owning replica. Upsert must be
// idempotent: issuing the same arguments twice leaves the replica in the
// same state as issuing them once.
type Upserter interface {
	Upsert(ctx context.Context, replicaID, recordID string, identity, payload any) error
}

// Failure records one upsert that did not complete.
type Failure struct {
	ReplicaID string `json:"replica_id"`
	RecordID  string `json:"record_id"`
	Key       string `json:"key"`
	Err       string `json:"error"`
}

// Result aggregates the outcome of an apply phase.
type Result struct {
	Succeeded int       `json:"succeeded"`
	Failed    int       `json:"failed"`
	Failures  []Failure `json:"failures,omitempty"`
}

// Apply issues every pending update in the plan against its owning
// replica. Updates are independent: one failure neither blocks nor rolls
// back the others; failures are counted and reported, not retried.
//
// Replicas are processed in sorted ID order so apply order is
// reproducible. If ctx is cancelled mid-apply, already-issued updates
// remain applied and the counts reflect only what completed.
func Apply(ctx context.Context, up Upserter, updates map[string][]PendingUpdate) Result {
	replicaIDs := make([]string, 0, len(updates))
	for id := range updates {
		replicaIDs = append(replicaIDs, id)
	}
	sort.Strings(replicaIDs)

	var result Result
	for _, replicaID := range replicaIDs {
		for _, u := range updates[replicaID] {
			if ctx.Err() != nil {
				return result
			}
			if err := up.Upsert(ctx, u.ReplicaID, u.RecordID, u.Identity, u.NewPayload); err != nil {
				result.Failed++
				result.Failures = append(result.Failures, Failure{
					ReplicaID: u.ReplicaID,
					RecordID:  u.RecordID,
					Key:       u.Key,
					Err:       err.Error(),
				})
				continue
			}
			result.Succeeded++
		}
	}
	return result
}
