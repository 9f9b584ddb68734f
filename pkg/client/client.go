package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/agsys-platform/svclink/internal/metrics"
	"github.com/agsys-platform/svclink/internal/rate"
	"github.com/agsys-platform/svclink/pkg/credentials"
	"github.com/agsys-platform/svclink/pkg/endpoint"
	"github.com/agsys-platform/svclink/pkg/secrets"
)

const defaultTimeout = 30 * time.Second

// Config carries the identity and routing configuration for a Client.
type Config struct {
	// ServiceName is the identity of the calling service. Its own API key
	// is resolved from the secret store and attached to every outbound
	// request.
	ServiceName string
	Project     string
	Environment string
	GatewayURL  string
	// Region selects the AWS region for the default secret store backend.
	// Ignored when WithSecretsProvider is used.
	Region string
	// Timeout bounds each request. Zero means 30 seconds.
	Timeout time.Duration
	// CacheTTL bounds how long a fetched credential is reused. Zero or
	// negative means until invalidation or process restart.
	CacheTTL time.Duration
}

// Client sends authenticated requests to sibling services through the API
// gateway. It resolves and caches the calling service's API key, injects it
// as the x-api-key header, and renders every completed exchange as either a
// Response or a classified error. It never retries on its own. A Client is
// safe for concurrent use.
type Client struct {
	logger    *zap.Logger
	cfg       Config
	http      *http.Client
	provider  secrets.Provider
	creds     *credentials.Resolver
	endpoints *endpoint.Resolver
	rateMgr   *rate.Manager
	closed    atomic.Bool
}

// New validates cfg and constructs a Client. Configuration problems are
// reported here, before any request is attempted.
func New(logger *zap.Logger, cfg Config, opts ...Option) (*Client, error) {
	if strings.TrimSpace(cfg.ServiceName) == "" {
		return nil, &endpoint.ConfigurationError{Field: "service_name", Reason: "must not be empty"}
	}
	if strings.TrimSpace(cfg.Project) == "" {
		return nil, &endpoint.ConfigurationError{Field: "project", Reason: "must not be empty"}
	}
	if strings.TrimSpace(cfg.Environment) == "" {
		return nil, &endpoint.ConfigurationError{Field: "environment", Reason: "must not be empty"}
	}
	endpoints, err := endpoint.New(cfg.GatewayURL)
	if err != nil {
		return nil, err
	}

	c := &Client{
		logger:    logger,
		cfg:       cfg,
		endpoints: endpoints,
	}
	for _, opt := range opts {
		opt(c)
	}

	if c.http == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = defaultTimeout
		}
		c.http = &http.Client{Timeout: timeout}
	}
	if c.provider == nil {
		if strings.TrimSpace(cfg.Region) == "" {
			return nil, &endpoint.ConfigurationError{Field: "region", Reason: "must not be empty"}
		}
		p, err := secrets.NewAWSProvider(cfg.Region)
		if err != nil {
			return nil, fmt.Errorf("init secret store: %w", err)
		}
		c.provider = p
	}
	c.creds = credentials.NewResolver(logger, cfg.Project, cfg.Environment, c.provider, credentials.NewCache[string](cfg.CacheTTL))

	return c, nil
}

// Close marks the client closed and releases idle connections. It is
// idempotent. Requests made after Close return ErrClientClosed without any
// network or store I/O.
func (c *Client) Close() {
	if c.closed.Swap(true) {
		return
	}
	c.http.CloseIdleConnections()
	c.logger.Info("gateway.client_closed", zap.String("service", c.cfg.ServiceName))
}

// ServiceName returns the identity this client authenticates as.
func (c *Client) ServiceName() string { return c.cfg.ServiceName }

// ServiceURL returns the gateway base URL for a target service.
func (c *Client) ServiceURL(service string) string { return c.endpoints.ServiceURL(service) }

// RequestURL returns the full gateway URL for a path on a target service.
func (c *Client) RequestURL(service, path string) string {
	return c.endpoints.RequestURL(service, path)
}

// InvalidateCredential drops this service's cached API key. The next
// request resolves a fresh one from the secret store.
func (c *Client) InvalidateCredential() {
	c.creds.Invalidate(c.cfg.ServiceName)
}

// CachedCredentials reports how many credentials are currently cached.
func (c *Client) CachedCredentials() int { return c.creds.CachedCredentials() }

// StartCacheCleaner evicts expired cached credentials every interval until
// stop is closed. Call in a goroutine; harmless when CacheTTL is zero.
func (c *Client) StartCacheCleaner(interval time.Duration, stop chan struct{}) {
	c.creds.StartCacheCleaner(interval, stop)
}

// DiscoverTargets lists the services with credentials provisioned in this
// project and environment.
func (c *Client) DiscoverTargets(ctx context.Context) ([]string, error) {
	if c.closed.Load() {
		return nil, ErrClientClosed
	}
	return c.creds.DiscoverServices(ctx)
}

// Get performs an authenticated GET request against a target service.
func (c *Client) Get(ctx context.Context, service, path string, opts ...RequestOption) (*Response, error) {
	return c.Do(ctx, http.MethodGet, service, path, nil, opts...)
}

// Delete performs an authenticated DELETE request against a target service.
func (c *Client) Delete(ctx context.Context, service, path string, opts ...RequestOption) (*Response, error) {
	return c.Do(ctx, http.MethodDelete, service, path, nil, opts...)
}

// Post performs an authenticated POST request. body is JSON-encoded unless
// it is nil, a []byte or a json.RawMessage.
func (c *Client) Post(ctx context.Context, service, path string, body any, opts ...RequestOption) (*Response, error) {
	payload, err := encodeBody(body)
	if err != nil {
		return nil, fmt.Errorf("encode request body: %w", err)
	}
	return c.Do(ctx, http.MethodPost, service, path, payload, opts...)
}

// Put performs an authenticated PUT request. body is JSON-encoded unless it
// is nil, a []byte or a json.RawMessage.
func (c *Client) Put(ctx context.Context, service, path string, body any, opts ...RequestOption) (*Response, error) {
	payload, err := encodeBody(body)
	if err != nil {
		return nil, fmt.Errorf("encode request body: %w", err)
	}
	return c.Do(ctx, http.MethodPut, service, path, payload, opts...)
}

// Do performs a single authenticated request and renders the exchange. Any
// status the target answers with comes back as a Response; 403 and 429 are
// the exceptions, surfacing as AuthenticationError and QuotaError. A 403
// invalidates the cached credential but is never retried here.
func (c *Client) Do(ctx context.Context, method, service, path string, body []byte, opts ...RequestOption) (*Response, error) {
	if c.closed.Load() {
		return nil, ErrClientClosed
	}

	apiKey, err := c.creds.Resolve(ctx, c.cfg.ServiceName)
	if err != nil {
		metrics.IncError("client", "credential_resolve")
		return nil, err
	}

	if c.rateMgr != nil {
		if err := c.rateMgr.Wait(ctx, service); err != nil {
			if errors.Is(err, context.DeadlineExceeded) {
				return nil, &TimeoutError{Service: service, Err: err}
			}
			return nil, fmt.Errorf("throttle wait: %w", err)
		}
	}

	var reader io.Reader
	if len(body) > 0 {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.endpoints.RequestURL(service, path), reader)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}

	ro := &requestOptions{}
	for _, opt := range opts {
		opt(ro)
	}
	if len(ro.query) > 0 {
		if req.URL.RawQuery != "" {
			req.URL.RawQuery += "&" + ro.query.Encode()
		} else {
			req.URL.RawQuery = ro.query.Encode()
		}
	}
	setHeaders(req, ro, apiKey, len(body) > 0)

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		outErr := c.classifyTransportError(service, err)
		c.observe(service, method, Outcome(outErr), start)
		c.logger.Warn("gateway.http_failed",
			zap.String("method", method),
			zap.String("url", req.URL.String()),
			zap.String("outcome", Outcome(outErr)),
			zap.Error(err))
		return nil, outErr
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		c.observe(service, method, OutcomeNetworkError, start)
		c.logger.Warn("gateway.body_read_failed",
			zap.String("url", req.URL.String()),
			zap.Error(err))
		return nil, &NetworkError{Service: service, Err: err}
	}
	elapsed := time.Since(start)

	switch resp.StatusCode {
	case http.StatusForbidden:
		// The gateway rejected our key. Drop it so the next request
		// resolves a fresh one; retrying is the caller's call.
		c.creds.Invalidate(c.cfg.ServiceName)
		c.observe(service, method, OutcomeAuthFailed, start)
		c.logger.Warn("gateway.authentication_failed",
			zap.String("service", service),
			zap.String("url", req.URL.String()),
			zap.Duration("latency", elapsed))
		return nil, &AuthenticationError{Service: service, Status: resp.StatusCode}

	case http.StatusTooManyRequests:
		// Quota rejection says nothing about key validity. Leave the cache
		// alone.
		c.observe(service, method, OutcomeQuotaExceeded, start)
		c.logger.Warn("gateway.quota_exceeded",
			zap.String("service", service),
			zap.String("url", req.URL.String()),
			zap.Duration("retry_after", retryAfter(resp)))
		return nil, &QuotaError{Service: service, RetryAfter: retryAfter(resp)}
	}

	c.observe(service, method, OutcomeSuccess, start)
	c.logger.Debug("gateway.http_success",
		zap.String("method", method),
		zap.String("url", req.URL.String()),
		zap.Int("status", resp.StatusCode),
		zap.Duration("elapsed", elapsed))

	return &Response{Status: resp.StatusCode, Headers: resp.Header, Body: respBody}, nil
}

func (c *Client) observe(service, method, outcome string, start time.Time) {
	metrics.IncGatewayRequest(service, method, outcome)
	metrics.ObserveDuration(metrics.GatewayRequestDuration, start, service, method)
}

func (c *Client) classifyTransportError(service string, err error) error {
	var nerr net.Error
	if errors.As(err, &nerr) && nerr.Timeout() {
		return &TimeoutError{Service: service, Err: err}
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return &TimeoutError{Service: service, Err: err}
	}
	if errors.Is(err, context.Canceled) {
		return err
	}
	return &NetworkError{Service: service, Err: err}
}

// setHeaders attaches standard headers, caller extras, and the API key.
// The key is assigned into the header map directly: Header.Set would
// rewrite the name as X-Api-Key, and the wire form must stay x-api-key.
// It goes in last so request options cannot override it.
func setHeaders(req *http.Request, ro *requestOptions, apiKey string, hasBody bool) {
	req.Header.Set("Accept", "application/json")
	if hasBody {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range ro.headers {
		req.Header.Set(k, v)
	}
	// Del removes any canonicalized X-Api-Key a request option smuggled in.
	req.Header.Del("x-api-key")
	req.Header["x-api-key"] = []string{apiKey}
}

func encodeBody(body any) ([]byte, error) {
	switch b := body.(type) {
	case nil:
		return nil, nil
	case []byte:
		return b, nil
	case json.RawMessage:
		return b, nil
	default:
		return json.Marshal(body)
	}
}

// retryAfter parses a Retry-After header given in whole seconds.
func retryAfter(resp *http.Response) time.Duration {
	v := resp.Header.Get("Retry-After")
	if v == "" {
		return 0
	}
	secs, err := strconv.Atoi(v)
	if err != nil || secs < 0 {
		return 0
	}
	return time.Duration(secs) * time.Second
}
