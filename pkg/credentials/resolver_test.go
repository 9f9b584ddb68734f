package credentials

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/agsys-platform/svclink/pkg/secrets"
)

type mockProvider struct {
	mu      sync.Mutex
	secrets map[string]string
	err     error
	calls   int
}

func (m *mockProvider) GetSecret(_ context.Context, path string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if m.err != nil {
		return "", m.err
	}
	v, ok := m.secrets[path]
	if !ok {
		return "", &secrets.NotFoundError{Path: path}
	}
	return v, nil
}

func (m *mockProvider) ListSecrets(_ context.Context, prefix string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	var out []string
	for k := range m.secrets {
		if strings.HasPrefix(k, prefix) {
			out = append(out, k)
		}
	}
	return out, nil
}

func (m *mockProvider) getCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

func newTestResolver(p secrets.Provider) *Resolver {
	return NewResolver(zap.NewNop(), "agsys", "dev", p, NewCache[string](time.Minute))
}

func TestResolverResolvesOwnCredential(t *testing.T) {
	provider := &mockProvider{secrets: map[string]string{
		"agsys/dev/svc-a/api-key": "KEY1",
	}}
	r := newTestResolver(provider)

	apiKey, err := r.Resolve(context.Background(), "svc-a")
	require.NoError(t, err)
	assert.Equal(t, "KEY1", apiKey)

	// Second resolve is served from the cache.
	apiKey, err = r.Resolve(context.Background(), "svc-a")
	require.NoError(t, err)
	assert.Equal(t, "KEY1", apiKey)
	assert.Equal(t, 1, provider.getCalls())
	assert.Equal(t, 1, r.CachedCredentials())
}

func TestResolverLowercasesSecretPath(t *testing.T) {
	provider := &mockProvider{secrets: map[string]string{
		"agsys/dev/svc-a/api-key": "KEY1",
	}}
	r := newTestResolver(provider)

	apiKey, err := r.Resolve(context.Background(), "SVC-A")
	require.NoError(t, err)
	assert.Equal(t, "KEY1", apiKey)
	assert.Equal(t, "agsys/dev/svc-a/api-key", r.SecretPath("SVC-A"))
}

func TestResolverMissingCredential(t *testing.T) {
	provider := &mockProvider{secrets: map[string]string{}}
	r := newTestResolver(provider)

	_, err := r.Resolve(context.Background(), "svc-missing")
	require.Error(t, err)
	assert.True(t, secrets.IsNotFound(err))
}

func TestResolverDoesNotCacheFailures(t *testing.T) {
	provider := &mockProvider{secrets: map[string]string{}}
	r := newTestResolver(provider)

	_, err := r.Resolve(context.Background(), "svc-a")
	require.Error(t, err)

	// Provision the credential and resolve again: the earlier failure must
	// not be served from the cache.
	provider.mu.Lock()
	provider.secrets["agsys/dev/svc-a/api-key"] = "KEY1"
	provider.mu.Unlock()

	apiKey, err := r.Resolve(context.Background(), "svc-a")
	require.NoError(t, err)
	assert.Equal(t, "KEY1", apiKey)
	assert.Equal(t, 2, provider.getCalls())
}

func TestResolverInvalidateForcesRefetch(t *testing.T) {
	provider := &mockProvider{secrets: map[string]string{
		"agsys/dev/svc-a/api-key": "KEY1",
	}}
	r := newTestResolver(provider)

	_, err := r.Resolve(context.Background(), "svc-a")
	require.NoError(t, err)

	provider.mu.Lock()
	provider.secrets["agsys/dev/svc-a/api-key"] = "KEY2"
	provider.mu.Unlock()

	// Without invalidation the rotated key is not picked up.
	apiKey, err := r.Resolve(context.Background(), "svc-a")
	require.NoError(t, err)
	assert.Equal(t, "KEY1", apiKey)

	r.Invalidate("svc-a")

	apiKey, err = r.Resolve(context.Background(), "svc-a")
	require.NoError(t, err)
	assert.Equal(t, "KEY2", apiKey)
	assert.Equal(t, 2, provider.getCalls())
}

func TestResolverDiscoverServices(t *testing.T) {
	provider := &mockProvider{secrets: map[string]string{
		"agsys/dev/svc-a/api-key":    "KEY1",
		"agsys/dev/svc-b/api-key":    "KEY2",
		"agsys/dev/svc-c/db-dsn":     "postgres://x",
		"agsys/prod/svc-d/api-key":   "KEY4",
		"agsys/dev/team/svc/api-key": "KEY5",
	}}
	r := newTestResolver(provider)

	services, err := r.DiscoverServices(context.Background())
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"svc-a", "svc-b"}, services)
}

func TestResolverDiscoverServicesStoreFailure(t *testing.T) {
	provider := &mockProvider{err: &secrets.UnavailableError{Path: "agsys/dev/", Err: context.DeadlineExceeded}}
	r := newTestResolver(provider)

	_, err := r.DiscoverServices(context.Background())
	require.Error(t, err)
	assert.True(t, secrets.IsUnavailable(err))
}
