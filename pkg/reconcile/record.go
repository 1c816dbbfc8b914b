// Package reconcile implements multi-replica dataset reconciliation.
// It detects divergence between independently-editable copies of a keyed
// record set and resolves it with a last-write-wins policy keyed by content
// identity rather than by replica-local record IDs.
//
// The pipeline is: normalize raw records into canonical form, build a
// per-replica key index (intra-replica dedup), merge the indices into a
// global index, detect divergent payloads against the newest record for
// each key, and either report the resulting plan (dry-run) or apply it.
package reconcile

import (
	"encoding/json"
	"fmt"
)

// Record is the normalized, immutable unit of reconciliation.
// Key identifies "the same logical record" across replicas; ID addresses
// this particular copy within its owning replica.
type Record struct {
	// ID is the replica-local stable identifier used for upserts.
	ID string

	// Key is the canonical serialization of the identity value. Two
	// records with structurally-equal identity values share a Key
	// regardless of field order.
	Key string

	// Identity is the original identity value, preserved so upserts can
	// round-trip it unchanged.
	Identity any

	// Payload is the mutable comparison target that reconciliation
	// equalizes across replicas.
	Payload any

	// CreatedAt is a lexically-sortable timestamp (RFC3339 in practice)
	// used purely as a recency signal.
	CreatedAt string

	// Metadata is opaque pass-through data, never compared.
	Metadata map[string]any
}

// Schema maps raw record fields onto the normalized Record shape.
type Schema struct {
	IdentityField string
	PayloadField  string
	TimeField     string
	IDField       string
}

// DefaultSchema matches Braintrust dataset events.
func DefaultSchema() Schema {
	return Schema{
		IdentityField: "input",
		PayloadField:  "expected",
		TimeField:     "created",
		IDField:       "id",
	}
}

// MalformedRecordError indicates a raw record that cannot participate in
// reconciliation because its identity field is missing. Such records are
// skipped and counted, never fatal to the run.
type MalformedRecordError struct {
	Field string
	ID    string
}

// Error implements the error interface.
func (e *MalformedRecordError) Error() string {
	if e.ID != "" {
		return fmt.Sprintf("record %s: missing identity field %q", e.ID, e.Field)
	}
	return fmt.Sprintf("record missing identity field %q", e.Field)
}

// Normalize converts a raw fetched record into a Record. It returns a
// *MalformedRecordError when the identity field is absent. An explicit
// null identity is kept: it serializes to the key "null", so null-input
// records across replicas reconcile as one group.
func (s Schema) Normalize(raw map[string]any) (Record, error) {
	id, _ := raw[s.IDField].(string)

	identity, ok := raw[s.IdentityField]
	if !ok {
		return Record{}, &MalformedRecordError{Field: s.IdentityField, ID: id}
	}

	key, err := CanonicalKey(identity)
	if err != nil {
		return Record{}, fmt.Errorf("serializing identity for record %s: %w", id, err)
	}

	createdAt, _ := raw[s.TimeField].(string)
	metadata, _ := raw["metadata"].(map[string]any)

	return Record{
		ID:        id,
		Key:       key,
		Identity:  identity,
		Payload:   raw[s.PayloadField],
		CreatedAt: createdAt,
		Metadata:  metadata,
	}, nil
}

// NormalizeAll normalizes a batch of raw records, dropping malformed ones.
// It returns the normalized records in input order and the count of
// records skipped for a missing identity field.
func (s Schema) NormalizeAll(raw []map[string]any) ([]Record, int) {
	records := make([]Record, 0, len(raw))
	skipped := 0
	for _, r := range raw {
		rec, err := s.Normalize(r)
		if err != nil {
			skipped++
			continue
		}
		records = append(records, rec)
	}
	return records, skipped
}

// CanonicalKey serializes an identity value to a canonical string key.
// encoding/json sorts map keys during marshaling, so structurally-equal
// values produce identical keys regardless of field order.
func CanonicalKey(v any) (string, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(b), nil
}
