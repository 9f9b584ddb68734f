package credentials

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/agsys-platform/svclink/internal/metrics"
	"github.com/agsys-platform/svclink/pkg/secrets"
	"go.uber.org/zap"
)

// Resolver resolves the calling service's own API key from the secret store,
// caching results locally to reduce store calls. Concurrent lookups for the
// same service share a single store fetch.
//
// Secret naming convention: {project}/{environment}/{service}/api-key
type Resolver struct {
	logger      *zap.Logger
	project     string
	environment string
	provider    secrets.Provider
	cache       *Cache[string]
}

// NewResolver constructs a credential resolver backed by provider and cache.
func NewResolver(
	logger *zap.Logger,
	project string,
	environment string,
	provider secrets.Provider,
	cache *Cache[string],
) *Resolver {
	return &Resolver{
		logger:      logger,
		project:     project,
		environment: environment,
		provider:    provider,
		cache:       cache,
	}
}

// cacheKey builds the in-memory cache key for a service.
func (r *Resolver) cacheKey(service string) string {
	return strings.ToLower(fmt.Sprintf("%s|%s|%s", r.project, r.environment, service))
}

// SecretPath builds the secret store key for a service.
// Pattern: {project}/{environment}/{service}/api-key
func (r *Resolver) SecretPath(service string) string {
	return strings.ToLower(fmt.Sprintf("%s/%s/%s/api-key", r.project, r.environment, service))
}

// Resolve returns the API key for the given service identity, fetching it
// from the secret store on a cache miss. The key value itself is never
// logged.
func (r *Resolver) Resolve(ctx context.Context, service string) (string, error) {
	var fetched bool
	apiKey, err := r.cache.GetOrFetch(ctx, r.cacheKey(service), func(ctx context.Context) (string, error) {
		fetched = true
		path := r.SecretPath(service)
		value, err := r.provider.GetSecret(ctx, path)
		if err != nil {
			metrics.IncCredentialFetch("error")
			r.logger.Warn("credentials.fetch_failed",
				zap.String("path", path),
				zap.Error(err))
			return "", fmt.Errorf("resolve credential for %q: %w", service, err)
		}
		metrics.IncCredentialFetch("success")
		r.logger.Info("credentials.resolved",
			zap.String("service", service),
			zap.String("path", path))
		return value, nil
	})
	if err != nil {
		return "", err
	}
	if fetched {
		metrics.IncCacheHit("miss")
	} else {
		metrics.IncCacheHit("hit")
	}
	return apiKey, nil
}

// Invalidate drops the cached credential for a service. The next Resolve
// call goes back to the secret store; a fetch already in flight when the
// invalidation happens can no longer populate the cache.
func (r *Resolver) Invalidate(service string) {
	r.cache.Bust(r.cacheKey(service))
	r.logger.Info("credentials.invalidated",
		zap.String("service", service),
		zap.String("project", r.project),
		zap.String("environment", r.environment))
}

// CachedCredentials reports how many credentials are currently cached.
func (r *Resolver) CachedCredentials() int {
	return r.cache.Len()
}

// StartCacheCleaner evicts expired credentials every interval until stop is
// closed. Call in a goroutine.
func (r *Resolver) StartCacheCleaner(interval time.Duration, stop chan struct{}) {
	r.cache.StartCleaner(interval, stop)
}

// DiscoverServices lists all service identities that have an api-key secret
// configured under this project and environment. It searches for secrets
// matching the prefix "{project}/{environment}/" and ending with "/api-key",
// then extracts service names from the middle segment.
func (r *Resolver) DiscoverServices(ctx context.Context) ([]string, error) {
	prefix := strings.ToLower(fmt.Sprintf("%s/%s/", r.project, r.environment))
	suffix := "/api-key"

	names, err := r.provider.ListSecrets(ctx, prefix)
	if err != nil {
		return nil, fmt.Errorf("discover services: %w", err)
	}

	var services []string
	for _, name := range names {
		lower := strings.ToLower(name)
		if !strings.HasSuffix(lower, suffix) {
			continue
		}
		trimmed := strings.TrimPrefix(lower, prefix)
		trimmed = strings.TrimSuffix(trimmed, suffix)
		if trimmed != "" && !strings.Contains(trimmed, "/") {
			services = append(services, trimmed)
		}
	}

	r.logger.Info("credentials.services_discovered",
		zap.Int("count", len(services)),
		zap.Strings("services", services))
	return services, nil
}
