package client

import (
	"net/http"
	"net/url"

	"github.com/agsys-platform/svclink/internal/rate"
	"github.com/agsys-platform/svclink/pkg/secrets"
)

// Option customizes client construction.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client. The supplied client's
// Timeout wins over Config.Timeout.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithSecretsProvider substitutes the secret store backend. Without this
// option the client talks to AWS Secrets Manager in Config.Region.
func WithSecretsProvider(p secrets.Provider) Option {
	return func(c *Client) { c.provider = p }
}

// WithThrottle enables client-side throttling of outbound calls, one token
// bucket per target service.
func WithThrottle(requestsPerSecond, burst int) Option {
	return func(c *Client) {
		c.rateMgr = rate.NewManager(rate.Config{
			RequestsPerSecond: requestsPerSecond,
			Burst:             burst,
		})
	}
}

// RequestOption customizes a single request.
type RequestOption func(*requestOptions)

type requestOptions struct {
	headers map[string]string
	query   url.Values
}

// WithHeader adds a header to the request. The credential header cannot be
// overridden this way.
func WithHeader(key, value string) RequestOption {
	return func(ro *requestOptions) {
		if ro.headers == nil {
			ro.headers = make(map[string]string)
		}
		ro.headers[key] = value
	}
}

// WithQuery adds a query string parameter to the request.
func WithQuery(key, value string) RequestOption {
	return func(ro *requestOptions) {
		if ro.query == nil {
			ro.query = url.Values{}
		}
		ro.query.Add(key, value)
	}
}
