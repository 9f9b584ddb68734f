package endpoint

import (
	"fmt"
	"net/url"
	"strings"
)

// ConfigurationError indicates the routing configuration is unusable. It is
// raised at construction time, before any request is attempted, and should
// be treated as fatal.
type ConfigurationError struct {
	Field  string
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("invalid configuration: %s %s", e.Field, e.Reason)
}

// Resolver maps logical service names to gateway URLs. It is a pure
// function of its configuration and performs no I/O; an unusable gateway
// URL is rejected by New, never at request time.
type Resolver struct {
	gatewayURL string
}

// New validates gatewayURL and returns a resolver for it. Trailing slashes
// are trimmed once here so every composed URL has the same shape.
func New(gatewayURL string) (*Resolver, error) {
	trimmed := strings.TrimRight(strings.TrimSpace(gatewayURL), "/")
	if trimmed == "" {
		return nil, &ConfigurationError{Field: "gateway_url", Reason: "must not be empty"}
	}
	u, err := url.Parse(trimmed)
	if err != nil {
		return nil, &ConfigurationError{Field: "gateway_url", Reason: fmt.Sprintf("is not a valid URL: %v", err)}
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, &ConfigurationError{Field: "gateway_url", Reason: fmt.Sprintf("has unsupported scheme %q", u.Scheme)}
	}
	if u.Host == "" {
		return nil, &ConfigurationError{Field: "gateway_url", Reason: "has no host"}
	}
	return &Resolver{gatewayURL: trimmed}, nil
}

// GatewayURL returns the normalized gateway base URL.
func (r *Resolver) GatewayURL() string {
	return r.gatewayURL
}

// ServiceURL returns the base URL for a target service behind the gateway,
// e.g. "https://gw.example.com/dev" + "runner" -> "https://gw.example.com/dev/runner".
func (r *Resolver) ServiceURL(service string) string {
	return r.gatewayURL + "/" + service
}

// RequestURL composes the full URL for a request path on a target service.
// Leading slashes on path are normalized, so "health" and "/health" address
// the same resource.
func (r *Resolver) RequestURL(service, path string) string {
	base := r.ServiceURL(service)
	p := strings.TrimLeft(path, "/")
	if p == "" {
		return base
	}
	return base + "/" + p
}
