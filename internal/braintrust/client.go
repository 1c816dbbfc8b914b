// Package braintrust implements a client for the Braintrust REST API:
// dataset CRUD and event fetch/insert, experiment result retrieval, and
// project lookup. It also adapts datasets to the reconcile package's
// Fetcher and Upserter contracts so datasets can act as sync replicas.
package braintrust

import (
	"fmt"
	"net/url"
	"os"

	"github.com/evaldeck/evaldeck/internal/transport"
	"github.com/evaldeck/evaldeck/pkg/errors"
)

const (
	// DefaultAPIURL is the Braintrust REST API base URL.
	DefaultAPIURL = "https://api.braintrust.dev"

	// DefaultAppURL is the Braintrust web UI base URL.
	DefaultAppURL = "https://www.braintrust.dev"

	// APIKeyEnvVar names the environment variable holding the API key.
	APIKeyEnvVar = "BRAINTRUST_API_KEY"
)

// Client talks to the Braintrust REST API.
type Client struct {
	baseURL string
	appURL  string
	http    *transport.Client
}

// Option configures a Client.
type Option func(*Client)

// WithBaseURL overrides the API base URL, primarily for tests.
func WithBaseURL(baseURL string) Option {
	return func(c *Client) { c.baseURL = baseURL }
}

// WithAppURL overrides the web UI base URL used for dataset links.
func WithAppURL(appURL string) Option {
	return func(c *Client) { c.appURL = appURL }
}

// New creates a Client authenticated with the given API key.
func New(apiKey string, opts ...Option) *Client {
	c := &Client{
		baseURL: DefaultAPIURL,
		appURL:  DefaultAppURL,
		http:    transport.New(&transport.BearerAuth{}, apiKey),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// NewFromEnv creates a Client using the BRAINTRUST_API_KEY environment
// variable. It returns an AuthenticationError when the key is unset.
func NewFromEnv(opts ...Option) (*Client, error) {
	apiKey := os.Getenv(APIKeyEnvVar)
	if apiKey == "" {
		return nil, errors.NewAuthenticationError("braintrust", "api_key",
			APIKeyEnvVar+" environment variable not set", errors.ErrAPIKeyRequired)
	}
	return New(apiKey, opts...), nil
}

// endpoint joins the base URL with a formatted path. Path arguments are
// escaped so IDs cannot alter the request path.
func (c *Client) endpoint(format string, args ...string) string {
	escaped := make([]any, len(args))
	for i, a := range args {
		escaped[i] = url.PathEscape(a)
	}
	return c.baseURL + fmt.Sprintf(format, escaped...)
}
