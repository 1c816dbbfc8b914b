package braintrust

import (
	"context"

	"github.com/evaldeck/evaldeck/internal/transport"
)

// LogsPage is one page of project log events plus the cursor for the
// next page. An empty cursor means the page is the last one.
type LogsPage struct {
	Events []Event `json:"events"`
	Cursor string  `json:"cursor,omitempty"`
}

// FetchLogs fetches one page of a project's logs. Pass the cursor from
// the previous page to continue, and an optional filter document which
// the API applies server side.
func (c *Client) FetchLogs(ctx context.Context, projectID string, limit int, cursor string, filters any) (*LogsPage, error) {
	body := map[string]any{
		"project_id": projectID,
		"limit":      limit,
	}
	if cursor != "" {
		body["cursor"] = cursor
	}
	if filters != nil {
		body["filters"] = filters
	}

	resp, err := c.http.Post(ctx, c.endpoint("/v1/project-logs-fetch"), body)
	if err != nil {
		return nil, err
	}
	var page LogsPage
	if err := transport.DecodeResponse(resp, &page); err != nil {
		return nil, err
	}
	return &page, nil
}

// InsertLogEvents inserts log events into a project.
func (c *Client) InsertLogEvents(ctx context.Context, projectID string, events []Event) error {
	body := map[string]any{
		"project_id": projectID,
		"events":     events,
	}
	resp, err := c.http.Post(ctx, c.endpoint("/v1/project-logs-insert"), body)
	if err != nil {
		return err
	}
	return transport.DecodeResponse(resp, nil)
}

// AddLogFeedback attaches a feedback document to a project log entry.
func (c *Client) AddLogFeedback(ctx context.Context, projectID, logID string, feedback any) error {
	body := map[string]any{
		"project_id": projectID,
		"log_id":     logID,
		"feedback":   feedback,
	}
	resp, err := c.http.Post(ctx, c.endpoint("/v1/project-logs-feedback"), body)
	if err != nil {
		return err
	}
	return transport.DecodeResponse(resp, nil)
}
