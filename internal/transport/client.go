// Package transport provides authenticated HTTP client functionality for
// the remote service APIs evaldeck talks to.
package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/evaldeck/evaldeck/pkg/errors"
)

// DefaultHTTPTimeout bounds every request issued through the client.
var DefaultHTTPTimeout = 30 * time.Second

// Client provides HTTP client functionality with authentication.
type Client struct {
	http   *http.Client
	auth   Authenticator
	apiKey string
}

// New creates a new transport client with the specified authenticator and
// API key. A nil authenticator disables authentication.
func New(auth Authenticator, apiKey string) *Client {
	if auth == nil {
		auth = &NoAuth{}
	}
	return &Client{
		http:   &http.Client{Timeout: DefaultHTTPTimeout},
		auth:   auth,
		apiKey: apiKey,
	}
}

// Do performs an HTTP request with authentication and common headers applied.
func (c *Client) Do(req *http.Request) (*http.Response, error) {
	if c.apiKey != "" {
		c.auth.Apply(req, c.apiKey)
	}

	req.Header.Set("Accept", "application/json")
	if req.Method == http.MethodPost || req.Method == http.MethodPut || req.Method == http.MethodPatch {
		req.Header.Set("Content-Type", "application/json")
	}

	return c.http.Do(req)
}

// Get performs a GET request.
func (c *Client) Get(ctx context.Context, url string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	return c.Do(req)
}

// Post performs a POST request with a JSON body. A nil body sends "{}".
func (c *Client) Post(ctx context.Context, url string, body any) (*http.Response, error) {
	return c.send(ctx, http.MethodPost, url, body)
}

// Patch performs a PATCH request with a JSON body.
func (c *Client) Patch(ctx context.Context, url string, body any) (*http.Response, error) {
	return c.send(ctx, http.MethodPatch, url, body)
}

// Delete performs a DELETE request.
func (c *Client) Delete(ctx context.Context, url string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, url, nil)
	if err != nil {
		return nil, err
	}
	return c.Do(req)
}

func (c *Client) send(ctx context.Context, method, url string, body any) (*http.Response, error) {
	if body == nil {
		body = map[string]any{}
	}
	encoded, err := json.Marshal(body)
	if err != nil {
		return nil, errors.WrapParse("json", "request body", err)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, bytes.NewReader(encoded))
	if err != nil {
		return nil, err
	}
	return c.Do(req)
}

// DecodeResponse decodes a JSON response into the target structure. Any
// non-2xx status is returned as an *errors.APIError carrying the response
// body. A nil target discards the body after the status check.
func DecodeResponse(resp *http.Response, target any) error {
	defer resp.Body.Close() //nolint:errcheck // best-effort close

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return errors.WrapParse("json", "response body", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &errors.APIError{
			Endpoint:   resp.Request.URL.Path,
			StatusCode: resp.StatusCode,
			Message:    string(body),
		}
	}

	if target == nil || len(body) == 0 {
		return nil
	}

	if err := json.Unmarshal(body, target); err != nil {
		return errors.WrapParse("json", "response", err)
	}

	return nil
}
