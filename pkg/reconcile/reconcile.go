package reconcile

import (
	"context"

	"github.com/evaldeck/evaldeck/pkg/errors"
	"github.com/evaldeck/evaldeck/pkg/logging"
)

// ReplicaData is one replica's raw contents as returned by a Fetcher.
type ReplicaData struct {
	Name    string
	Records []map[string]any
}

// Fetcher retrieves the full record set of one replica. Pagination,
// retries, and auth are the fetcher's responsibility and invisible here.
type Fetcher interface {
	Fetch(ctx context.Context, replicaID string) (ReplicaData, error)
}

// FetchErrorPolicy decides what happens when one replica is unreachable.
type FetchErrorPolicy string

const (
	// SkipUnreachable degrades an unreachable replica to an empty record
	// set and proceeds with the rest. Updates proposed from a partial
	// replica set may lose edits only visible in the missing replica.
	SkipUnreachable FetchErrorPolicy = "skip"

	// AbortOnFetchError aborts the whole run on the first fetch failure.
	AbortOnFetchError FetchErrorPolicy = "abort"
)

// Syncer orchestrates one reconciliation pass: fetch each replica, build
// indices, detect divergence, and report or apply. Every run recomputes
// from scratch; there is no resumable state.
type Syncer struct {
	fetcher  Fetcher
	upserter Upserter
	schema   Schema
	policy   FetchErrorPolicy
	apply    bool
}

// Option configures a Syncer.
type Option func(*Syncer)

// WithApply enables the apply phase. The default is a dry-run that stops
// after the plan is built.
func WithApply(apply bool) Option {
	return func(s *Syncer) { s.apply = apply }
}

// WithSchema overrides the field mapping used to normalize raw records.
func WithSchema(schema Schema) Option {
	return func(s *Syncer) { s.schema = schema }
}

// WithFetchErrorPolicy sets the unreachable-replica policy.
func WithFetchErrorPolicy(policy FetchErrorPolicy) Option {
	return func(s *Syncer) { s.policy = policy }
}

// NewSyncer creates a Syncer. The upserter may be nil for dry-run-only use.
func NewSyncer(fetcher Fetcher, upserter Upserter, opts ...Option) *Syncer {
	s := &Syncer{
		fetcher:  fetcher,
		upserter: upserter,
		schema:   DefaultSchema(),
		policy:   SkipUnreachable,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Run executes one reconciliation pass over the given replicas, in the
// given order. It returns the plan and, when the apply phase ran, the
// apply result. Per-record and per-update problems are accumulated into
// the plan and result; only setup and (under AbortOnFetchError) fetch
// errors are returned.
func (s *Syncer) Run(ctx context.Context, replicaIDs []string) (*Plan, *Result, error) {
	if len(replicaIDs) < 2 {
		return nil, nil, errors.NewValidationError("replicas", len(replicaIDs),
			"at least two replica IDs are required")
	}
	if s.apply && s.upserter == nil {
		return nil, nil, errors.NewConfigError("syncer", "apply requested without an upserter", nil)
	}

	log := logging.FromContext(ctx)

	summaries := make([]ReplicaSummary, 0, len(replicaIDs))
	indexed := make([]IndexedReplica, 0, len(replicaIDs))

	for _, replicaID := range replicaIDs {
		data, err := s.fetcher.Fetch(ctx, replicaID)
		if err != nil {
			if s.policy == AbortOnFetchError {
				return nil, nil, errors.NewSyncError(replicaID, nil, err)
			}
			log.Warn().
				Str("replica_id", replicaID).
				Err(err).
				Msg("Replica unreachable, proceeding with empty record set")
			summaries = append(summaries, ReplicaSummary{
				ReplicaID:  replicaID,
				Name:       replicaID,
				FetchError: err.Error(),
			})
			indexed = append(indexed, IndexedReplica{ReplicaID: replicaID, Index: KeyIndex{}})
			continue
		}

		records, skipped := s.schema.NormalizeAll(data.Records)
		index, collapsed := BuildKeyIndex(records)

		log.Debug().
			Str("replica_id", replicaID).
			Int("records", len(data.Records)).
			Int("skipped", skipped).
			Int("collapsed", collapsed).
			Msg("Indexed replica")

		summaries = append(summaries, ReplicaSummary{
			ReplicaID:   replicaID,
			Name:        data.Name,
			RecordCount: len(data.Records),
			Skipped:     skipped,
			Collapsed:   collapsed,
		})
		indexed = append(indexed, IndexedReplica{ReplicaID: replicaID, Index: index})
	}

	global := BuildGlobalIndex(indexed)
	updates := Detect(global)
	plan := BuildPlan(summaries, global, updates)

	if !s.apply || plan.InSync() {
		return plan, nil, nil
	}

	result := Apply(ctx, s.upserter, plan.Updates)
	log.Info().
		Int("succeeded", result.Succeeded).
		Int("failed", result.Failed).
		Msg("Applied pending updates")
	return plan, &result, nil
}
