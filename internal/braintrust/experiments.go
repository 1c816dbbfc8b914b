package braintrust

import (
	"context"
	"net/url"
	"strconv"

	"github.com/evaldeck/evaldeck/internal/transport"
	"github.com/evaldeck/evaldeck/pkg/logging"
)

// Experiment is Braintrust experiment metadata.
type Experiment struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	ProjectID   string `json:"project_id,omitempty"`
	DatasetID   string `json:"dataset_id,omitempty"`
	Created     string `json:"created,omitempty"`
}

// GetExperiment fetches an experiment's metadata.
func (c *Client) GetExperiment(ctx context.Context, experimentID string) (*Experiment, error) {
	resp, err := c.http.Get(ctx, c.endpoint("/v1/experiment/%s", experimentID))
	if err != nil {
		return nil, err
	}
	var experiment Experiment
	if err := transport.DecodeResponse(resp, &experiment); err != nil {
		return nil, err
	}
	return &experiment, nil
}

// ListExperiments lists experiments, optionally filtered by project.
func (c *Client) ListExperiments(ctx context.Context, projectID string, limit int) ([]Experiment, error) {
	resp, err := c.http.Get(ctx, c.endpoint("/v1/experiment")+listQuery(projectID, limit))
	if err != nil {
		return nil, err
	}
	var page struct {
		Objects []Experiment `json:"objects"`
	}
	if err := transport.DecodeResponse(resp, &page); err != nil {
		return nil, err
	}
	return page.Objects, nil
}

// CreateExperiment creates an experiment in a project, optionally linked
// to the dataset it runs against.
func (c *Client) CreateExperiment(ctx context.Context, name, projectID, description, datasetID string) (*Experiment, error) {
	body := map[string]any{
		"name":       name,
		"project_id": projectID,
	}
	if description != "" {
		body["description"] = description
	}
	if datasetID != "" {
		body["dataset_id"] = datasetID
	}

	resp, err := c.http.Post(ctx, c.endpoint("/v1/experiment"), body)
	if err != nil {
		return nil, err
	}
	var experiment Experiment
	if err := transport.DecodeResponse(resp, &experiment); err != nil {
		return nil, err
	}
	return &experiment, nil
}

// UpdateExperiment updates an experiment's name and/or description. Empty
// fields are left unchanged.
func (c *Client) UpdateExperiment(ctx context.Context, experimentID, name, description string) (*Experiment, error) {
	body := map[string]any{}
	if name != "" {
		body["name"] = name
	}
	if description != "" {
		body["description"] = description
	}

	resp, err := c.http.Patch(ctx, c.endpoint("/v1/experiment/%s", experimentID), body)
	if err != nil {
		return nil, err
	}
	var experiment Experiment
	if err := transport.DecodeResponse(resp, &experiment); err != nil {
		return nil, err
	}
	return &experiment, nil
}

// DeleteExperiment deletes an experiment.
func (c *Client) DeleteExperiment(ctx context.Context, experimentID string) error {
	resp, err := c.http.Delete(ctx, c.endpoint("/v1/experiment/%s", experimentID))
	if err != nil {
		return err
	}
	return transport.DecodeResponse(resp, nil)
}

// InsertExperimentEvents inserts events into an experiment. Unlike the
// dataset insert, the experiment insert endpoint takes the experiment ID
// in the request body.
func (c *Client) InsertExperimentEvents(ctx context.Context, experimentID string, events []Event) error {
	resp, err := c.http.Post(ctx, c.endpoint("/v1/experiment-insert"), map[string]any{
		"experiment_id": experimentID,
		"events":        events,
	})
	if err != nil {
		return err
	}
	return transport.DecodeResponse(resp, nil)
}

// SummarizeExperiment asks the API for an experiment summary. The summary
// shape varies with the experiment's scorers, so it stays a free-form map.
func (c *Client) SummarizeExperiment(ctx context.Context, experimentID string, summarizeScores bool) (map[string]any, error) {
	resp, err := c.http.Post(ctx, c.endpoint("/v1/experiment-summarize"), map[string]any{
		"experiment_id":    experimentID,
		"summarize_scores": summarizeScores,
	})
	if err != nil {
		return nil, err
	}
	var summary map[string]any
	if err := transport.DecodeResponse(resp, &summary); err != nil {
		return nil, err
	}
	return summary, nil
}

// Origin links an experiment result back to the dataset record it was
// evaluated against.
type Origin struct {
	DatasetID       string `json:"dataset_id"`
	DatasetRecordID string `json:"dataset_record_id"`
}

// Result is one flattened experiment datapoint: the root eval span with
// its scores joined in and, when the datapoint came from a dataset, the
// origin linkage needed to push edits back.
type Result struct {
	RootSpanID string             `json:"root_span_id"`
	Input      any                `json:"input"`
	Output     any                `json:"output"`
	Expected   any                `json:"expected"`
	Metadata   map[string]any     `json:"metadata"`
	Scores     map[string]float64 `json:"scores"`
	Origin     *Origin            `json:"origin"`
	Edited     bool               `json:"edited,omitempty"`
}

// ResultFilter controls which flattened results are returned.
type ResultFilter struct {
	// EditedOnly keeps only results whose expected value was manually
	// edited after the run, per the event audit trail.
	EditedOnly bool

	// MaxResults caps the number of returned results; zero is unlimited.
	MaxResults int
}

// FetchExperimentEvents fetches every raw event from an experiment,
// following the fetch cursor. pageSize of zero uses the API maximum.
func (c *Client) FetchExperimentEvents(ctx context.Context, experimentID string, pageSize int) ([]Event, error) {
	if pageSize <= 0 {
		pageSize = fetchPageSize
	}
	endpoint := c.endpoint("/v1/experiment/%s/fetch", experimentID)

	var all []Event
	cursor := ""
	for {
		query := url.Values{"limit": []string{strconv.Itoa(pageSize)}}
		if cursor != "" {
			query.Set("cursor", cursor)
		}

		resp, err := c.http.Get(ctx, endpoint+"?"+query.Encode())
		if err != nil {
			return nil, err
		}
		var page fetchPage
		if err := transport.DecodeResponse(resp, &page); err != nil {
			return nil, err
		}

		all = append(all, page.Events...)
		if page.Cursor == "" {
			break
		}
		cursor = page.Cursor
	}

	logging.FromContext(ctx).Debug().
		Str("experiment_id", experimentID).
		Int("events", len(all)).
		Msg("Fetched experiment events")
	return all, nil
}

// FlattenResults reduces raw experiment events to one Result per root
// eval span. Score events are joined onto their root span; audit data is
// inspected to flag manually-edited expected values.
func FlattenResults(events []Event, filter ResultFilter) []Result {
	// Score spans arrive as separate events keyed by root_span_id.
	scores := make(map[string]map[string]float64)
	for _, event := range events {
		if spanType(event) != "score" {
			continue
		}
		rootID, _ := event["root_span_id"].(string)
		if rootID == "" {
			continue
		}
		if scores[rootID] == nil {
			scores[rootID] = make(map[string]float64)
		}
		if eventScores, ok := event["scores"].(map[string]any); ok {
			for name, value := range eventScores {
				if f, ok := value.(float64); ok {
					scores[rootID][name] = f
				}
			}
		}
	}

	var results []Result
	for _, event := range events {
		isRoot, _ := event["is_root"].(bool)
		spanID, _ := event["span_id"].(string)
		rootID, _ := event["root_span_id"].(string)
		if !isRoot || spanID != rootID {
			continue
		}

		edited := expectedEdited(event)
		if filter.EditedOnly && !edited {
			continue
		}

		metadata, _ := event["metadata"].(map[string]any)
		result := Result{
			RootSpanID: rootID,
			Input:      event["input"],
			Output:     event["output"],
			Expected:   event["expected"],
			Metadata:   metadata,
			Scores:     scores[rootID],
			Origin:     datasetOrigin(event),
			Edited:     edited,
		}
		results = append(results, result)

		if filter.MaxResults > 0 && len(results) >= filter.MaxResults {
			break
		}
	}
	return results
}

// PrepareDatasetEvents converts edited experiment results into dataset
// upsert events keyed by the origin record ID. Results without a dataset
// origin cannot be pushed back and are skipped, with their count returned.
func PrepareDatasetEvents(results []Result) ([]Event, int) {
	events := make([]Event, 0, len(results))
	skipped := 0
	for _, r := range results {
		if r.Origin == nil || r.Origin.DatasetRecordID == "" {
			skipped++
			continue
		}
		event := Event{
			"id":       r.Origin.DatasetRecordID,
			"input":    r.Input,
			"expected": r.Expected,
		}
		if len(r.Metadata) > 0 {
			event["metadata"] = r.Metadata
		}
		events = append(events, event)
	}
	return events, skipped
}

// spanType extracts the span type from an event's span attributes.
func spanType(event Event) string {
	attrs, _ := event["span_attributes"].(map[string]any)
	t, _ := attrs["type"].(string)
	return t
}

// datasetOrigin extracts dataset linkage from an event, if present.
func datasetOrigin(event Event) *Origin {
	origin, _ := event["origin"].(map[string]any)
	if origin == nil {
		return nil
	}
	if objectType, _ := origin["object_type"].(string); objectType != "dataset" {
		return nil
	}
	datasetID, _ := origin["object_id"].(string)
	recordID, _ := origin["id"].(string)
	return &Origin{DatasetID: datasetID, DatasetRecordID: recordID}
}

// expectedEdited reports whether the event's audit trail shows a merge
// into the expected field, which is how manual UI edits appear.
func expectedEdited(event Event) bool {
	auditEntries, _ := event["audit_data"].([]any)
	for _, entry := range auditEntries {
		entryMap, _ := entry.(map[string]any)
		auditInfo, _ := entryMap["audit_data"].(map[string]any)
		if auditInfo == nil {
			continue
		}
		path, _ := auditInfo["path"].([]any)
		if len(path) == 0 {
			continue
		}
		if first, _ := path[0].(string); first != "expected" {
			continue
		}
		if action, _ := auditInfo["action"].(string); action == "merge" {
			return true
		}
	}
	return false
}
