package marketapi

import (
	"net/http"
	"net/url"
)

// HTTPClient describes an HTTP client.
//
//go:generate mockgen -package=marketapi_test -destination=mock_http_client_test.go -source=client.go HTTPClient
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// Paths names the gjson paths used to pull fields out of a quote payload.
// Only Price is required; empty paths are skipped.
type Paths struct {
	Price         string
	Change        string
	ChangePercent string
	PreviousClose string
	Currency      string
	Name          string
	Timestamp     string
}

// DefaultPaths matches a flat payload such as
// {"price": 101.5, "change": 1.5, "currency": "USD", "timestamp": 1718409600}.
var DefaultPaths = Paths{
	Price:         "price",
	Change:        "change",
	ChangePercent: "change_percent",
	PreviousClose: "previous_close",
	Currency:      "currency",
	Name:          "name",
	Timestamp:     "timestamp",
}

// Client is a client for a JSON quote API.
type Client struct {
	// baseURL is the base URL for the API.
	baseURL string
	// httpClient is the HTTP client.
	httpClient HTTPClient
	// header contains additional headers to be sent with each request.
	header http.Header
	// query contains additional query parameters to be sent with each request.
	query url.Values
	// paths locates quote fields in the response body.
	paths Paths
}

// ClientOption is a configuration option for the client.
type ClientOption func(*Client)

// WithBaseURL sets the base URL for the API.
func WithBaseURL(baseURL string) ClientOption {
	return func(c *Client) {
		c.baseURL = baseURL
	}
}

// WithHTTPClient sets the HTTP client for the API.
func WithHTTPClient(httpClient HTTPClient) ClientOption {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// WithHeader sets additional headers to be sent with each request.
func WithHeader(header http.Header) ClientOption {
	return func(c *Client) {
		for key, values := range header {
			for _, value := range values {
				c.header.Add(key, value)
			}
		}
	}
}

// WithPaths overrides the response field paths. Empty fields keep their
// defaults.
func WithPaths(p Paths) ClientOption {
	return func(c *Client) {
		if p.Price != "" {
			c.paths.Price = p.Price
		}
		if p.Change != "" {
			c.paths.Change = p.Change
		}
		if p.ChangePercent != "" {
			c.paths.ChangePercent = p.ChangePercent
		}
		if p.PreviousClose != "" {
			c.paths.PreviousClose = p.PreviousClose
		}
		if p.Currency != "" {
			c.paths.Currency = p.Currency
		}
		if p.Name != "" {
			c.paths.Name = p.Name
		}
		if p.Timestamp != "" {
			c.paths.Timestamp = p.Timestamp
		}
	}
}

// NewClient creates a new quote API client. A non-empty key is sent as the
// api_key query parameter.
func NewClient(key string, options ...ClientOption) (*Client, error) {
	var client = &Client{
		httpClient: http.DefaultClient,
		header:     http.Header{},
		query:      url.Values{},
		paths:      DefaultPaths,
	}
	if key != "" {
		client.query.Add("api_key", key)
	}
	for _, option := range options {
		option(client)
	}
	return client, nil
}
