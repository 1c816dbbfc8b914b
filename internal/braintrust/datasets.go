package braintrust

import (
	"context"

	"github.com/evaldeck/evaldeck/internal/transport"
	"github.com/evaldeck/evaldeck/pkg/logging"
	"github.com/evaldeck/evaldeck/pkg/reconcile"
)

// Dataset is Braintrust dataset metadata.
type Dataset struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	ProjectID   string `json:"project_id,omitempty"`
	Created     string `json:"created,omitempty"`
}

// Event is a raw dataset or experiment event. Input, expected, and
// metadata are arbitrary JSON shapes, so events stay as maps.
type Event = map[string]any

// fetchPage is one page of a cursor-paginated fetch response.
type fetchPage struct {
	Events []Event `json:"events"`
	Cursor string  `json:"cursor"`
}

// fetchPageSize is the Braintrust API's maximum page size.
const fetchPageSize = 1000

// GetDataset fetches a dataset's metadata.
func (c *Client) GetDataset(ctx context.Context, datasetID string) (*Dataset, error) {
	resp, err := c.http.Get(ctx, c.endpoint("/v1/dataset/%s", datasetID))
	if err != nil {
		return nil, err
	}
	var dataset Dataset
	if err := transport.DecodeResponse(resp, &dataset); err != nil {
		return nil, err
	}
	return &dataset, nil
}

// ListDatasets lists datasets, optionally filtered by project.
func (c *Client) ListDatasets(ctx context.Context, projectID string, limit int) ([]Dataset, error) {
	endpoint := c.endpoint("/v1/dataset") + listQuery(projectID, limit)
	resp, err := c.http.Get(ctx, endpoint)
	if err != nil {
		return nil, err
	}
	var page struct {
		Objects []Dataset `json:"objects"`
	}
	if err := transport.DecodeResponse(resp, &page); err != nil {
		return nil, err
	}
	return page.Objects, nil
}

// CreateDataset creates a new dataset in a project.
func (c *Client) CreateDataset(ctx context.Context, name, projectID, description string) (*Dataset, error) {
	body := map[string]any{
		"name":       name,
		"project_id": projectID,
	}
	if description != "" {
		body["description"] = description
	}

	resp, err := c.http.Post(ctx, c.endpoint("/v1/dataset"), body)
	if err != nil {
		return nil, err
	}
	var dataset Dataset
	if err := transport.DecodeResponse(resp, &dataset); err != nil {
		return nil, err
	}
	return &dataset, nil
}

// UpdateDataset updates a dataset's name and/or description. Empty fields
// are left unchanged.
func (c *Client) UpdateDataset(ctx context.Context, datasetID, name, description string) (*Dataset, error) {
	body := map[string]any{}
	if name != "" {
		body["name"] = name
	}
	if description != "" {
		body["description"] = description
	}

	resp, err := c.http.Patch(ctx, c.endpoint("/v1/dataset/%s", datasetID), body)
	if err != nil {
		return nil, err
	}
	var dataset Dataset
	if err := transport.DecodeResponse(resp, &dataset); err != nil {
		return nil, err
	}
	return &dataset, nil
}

// DeleteDataset deletes a dataset.
func (c *Client) DeleteDataset(ctx context.Context, datasetID string) error {
	resp, err := c.http.Delete(ctx, c.endpoint("/v1/dataset/%s", datasetID))
	if err != nil {
		return err
	}
	return transport.DecodeResponse(resp, nil)
}

// FetchDatasetEvents fetches every event in a dataset, following the
// fetch cursor until the dataset is exhausted.
func (c *Client) FetchDatasetEvents(ctx context.Context, datasetID string) ([]Event, error) {
	endpoint := c.endpoint("/v1/dataset/%s/fetch", datasetID)

	var all []Event
	cursor := ""
	for {
		body := map[string]any{"limit": fetchPageSize}
		if cursor != "" {
			body["cursor"] = cursor
		}

		resp, err := c.http.Post(ctx, endpoint, body)
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
		Str("dataset_id", datasetID).
		Int("events", len(all)).
		Msg("Fetched dataset events")
	return all, nil
}

// InsertEvents inserts (upserts) events into a dataset. Events carrying
// an existing id replace that record.
func (c *Client) InsertEvents(ctx context.Context, datasetID string, events []Event) error {
	resp, err := c.http.Post(ctx, c.endpoint("/v1/dataset/%s/insert", datasetID),
		map[string]any{"events": events})
	if err != nil {
		return err
	}
	return transport.DecodeResponse(resp, nil)
}

// Fetch implements reconcile.Fetcher: a dataset is one sync replica. The
// display name falls back to the dataset ID when metadata is unavailable.
func (c *Client) Fetch(ctx context.Context, replicaID string) (reconcile.ReplicaData, error) {
	name := replicaID
	if meta, err := c.GetDataset(ctx, replicaID); err == nil && meta.Name != "" {
		name = meta.Name
	}

	events, err := c.FetchDatasetEvents(ctx, replicaID)
	if err != nil {
		return reconcile.ReplicaData{}, err
	}
	return reconcile.ReplicaData{Name: name, Records: events}, nil
}

// Upsert implements reconcile.Upserter by re-inserting the record with
// its original ID and identity value and the new payload.
func (c *Client) Upsert(ctx context.Context, replicaID, recordID string, identity, payload any) error {
	return c.InsertEvents(ctx, replicaID, []Event{{
		"id":       recordID,
		"input":    identity,
		"expected": payload,
	}})
}
