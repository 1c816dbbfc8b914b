package braintrust

import (
	"context"
	"fmt"
	"net/url"
	"strconv"

	"github.com/evaldeck/evaldeck/internal/transport"
)

// Project is Braintrust project metadata.
type Project struct {
	ID      string   `json:"id"`
	Name    string   `json:"name"`
	OrgID   string   `json:"org_id,omitempty"`
	Tags    []string `json:"tags,omitempty"`
	Created string   `json:"created,omitempty"`
}

// GetProject fetches a project's metadata.
func (c *Client) GetProject(ctx context.Context, projectID string) (*Project, error) {
	resp, err := c.http.Get(ctx, c.endpoint("/v1/project/%s", projectID))
	if err != nil {
		return nil, err
	}
	var project Project
	if err := transport.DecodeResponse(resp, &project); err != nil {
		return nil, err
	}
	return &project, nil
}

// ListProjects lists projects visible to the API key, optionally
// filtered by organization name.
func (c *Client) ListProjects(ctx context.Context, orgName string, limit int) ([]Project, error) {
	query := url.Values{}
	if orgName != "" {
		query.Set("org_name", orgName)
	}
	if limit > 0 {
		query.Set("limit", strconv.Itoa(limit))
	}
	endpoint := c.endpoint("/v1/project")
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	resp, err := c.http.Get(ctx, endpoint)
	if err != nil {
		return nil, err
	}
	var page struct {
		Objects []Project `json:"objects"`
	}
	if err := transport.DecodeResponse(resp, &page); err != nil {
		return nil, err
	}
	return page.Objects, nil
}

// CreateProject creates a project, optionally scoped to an organization.
func (c *Client) CreateProject(ctx context.Context, name, orgName string, tags []string) (*Project, error) {
	body := map[string]any{"name": name}
	if orgName != "" {
		body["org_name"] = orgName
	}
	if tags != nil {
		body["tags"] = tags
	}

	resp, err := c.http.Post(ctx, c.endpoint("/v1/project"), body)
	if err != nil {
		return nil, err
	}
	var project Project
	if err := transport.DecodeResponse(resp, &project); err != nil {
		return nil, err
	}
	return &project, nil
}

// UpdateProject updates a project's name and/or tags. An empty name is
// left unchanged; a nil tags slice is left unchanged, an empty one clears.
func (c *Client) UpdateProject(ctx context.Context, projectID, name string, tags []string) (*Project, error) {
	body := map[string]any{}
	if name != "" {
		body["name"] = name
	}
	if tags != nil {
		body["tags"] = tags
	}

	resp, err := c.http.Patch(ctx, c.endpoint("/v1/project/%s", projectID), body)
	if err != nil {
		return nil, err
	}
	var project Project
	if err := transport.DecodeResponse(resp, &project); err != nil {
		return nil, err
	}
	return &project, nil
}

// DeleteProject deletes a project.
func (c *Client) DeleteProject(ctx context.Context, projectID string) error {
	resp, err := c.http.Delete(ctx, c.endpoint("/v1/project/%s", projectID))
	if err != nil {
		return err
	}
	return transport.DecodeResponse(resp, nil)
}

// DatasetURL builds the web UI URL for a dataset, resolving the project
// name when the dataset carries a project ID.
func (c *Client) DatasetURL(ctx context.Context, orgName string, dataset *Dataset) string {
	projectName := dataset.ProjectID
	if dataset.ProjectID != "" {
		if project, err := c.GetProject(ctx, dataset.ProjectID); err == nil && project.Name != "" {
			projectName = project.Name
		}
	}

	return fmt.Sprintf("%s/app/%s/p/%s/datasets/%s",
		c.appURL,
		url.PathEscape(orgName),
		url.PathEscape(projectName),
		url.PathEscape(dataset.Name),
	)
}

// listQuery builds the query string shared by the list endpoints.
func listQuery(projectID string, limit int) string {
	query := url.Values{}
	if projectID != "" {
		query.Set("project_id", projectID)
	}
	if limit > 0 {
		query.Set("limit", strconv.Itoa(limit))
	}
	if len(query) == 0 {
		return ""
	}
	return "?" + query.Encode()
}
