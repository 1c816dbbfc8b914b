package reconcile

import (
	"github.com/agentstation/utc"
	"github.com/google/uuid"
)

// ReplicaSummary describes one replica's contribution to a run.
type ReplicaSummary struct {
	ReplicaID   string `json:"replica_id"`
	Name        string `json:"name"`
	RecordCount int    `json:"record_count"`
	Skipped     int    `json:"skipped"`
	Collapsed   int    `json:"collapsed"`
	FetchError  string `json:"fetch_error,omitempty"`
}

// Plan is the dry-run artifact of a reconciliation pass: a full,
// human-auditable description of the updates the pass would issue. The
// same structure is produced whether or not the apply phase runs, so
// dry-run and real runs are diff-able.
type Plan struct {
	RunID            string                     `json:"run_id"`
	GeneratedAt      utc.Time                   `json:"generated_at"`
	Replicas         []ReplicaSummary           `json:"replicas"`
	UniqueKeys       int                        `json:"unique_keys"`
	MultiReplicaKeys int                        `json:"multi_replica_keys"`
	DivergentKeys    int                        `json:"divergent_keys"`
	Updates          map[string][]PendingUpdate `json:"updates"`
}

// BuildPlan assembles the dry-run artifact from the detector's output.
// DivergentKeys counts distinct keys with at least one pending update.
func BuildPlan(replicas []ReplicaSummary, g *GlobalIndex, updates map[string][]PendingUpdate) *Plan {
	divergent := make(map[string]struct{})
	for _, list := range updates {
		for _, u := range list {
			divergent[u.Key] = struct{}{}
		}
	}

	return &Plan{
		RunID:            uuid.NewString(),
		GeneratedAt:      utc.Now(),
		Replicas:         replicas,
		UniqueKeys:       g.Len(),
		MultiReplicaKeys: len(g.MultiKeys()),
		DivergentKeys:    len(divergent),
		Updates:          updates,
	}
}

// TotalUpdates returns the number of pending updates across all replicas.
func (p *Plan) TotalUpdates() int {
	total := 0
	for _, list := range p.Updates {
		total += len(list)
	}
	return total
}

// InSync reports whether the plan contains no pending updates.
func (p *Plan) InSync() bool {
	return p.TotalUpdates() == 0
}
