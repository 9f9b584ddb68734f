//go:build integration

package client

import (
	"context"
	"os"
	"testing"
	"time"

	"go.uber.org/zap"
)

// newIntegrationClient returns a Client wired to the real gateway and secret
// store. It skips the test if API_GATEWAY_URL is not set.
func newIntegrationClient(t *testing.T) *Client {
	t.Helper()

	gatewayURL := os.Getenv("API_GATEWAY_URL")
	if gatewayURL == "" {
		t.Skip("API_GATEWAY_URL must be set for integration tests")
	}

	project := os.Getenv("PROJECT_NAME")
	if project == "" {
		project = "agsys"
	}
	env := os.Getenv("ENV")
	if env == "" {
		env = "dev"
	}
	region := os.Getenv("AWS_REGION")
	if region == "" {
		region = "us-east-1"
	}

	cli, err := New(zap.NewNop(), Config{
		ServiceName: "svclink-integration",
		Project:     project,
		Environment: env,
		GatewayURL:  gatewayURL,
		Region:      region,
	})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	t.Cleanup(cli.Close)
	return cli
}

func integrationTarget() string {
	if tgt := os.Getenv("TARGET_SERVICE"); tgt != "" {
		return tgt
	}
	return "runner"
}

func TestIntegration_GetHealth(t *testing.T) {
	cli := newIntegrationClient(t)
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	target := integrationTarget()
	start := time.Now()
	resp, err := cli.Get(ctx, target, "/health")
	if err != nil {
		t.Fatalf("Get %s /health failed: %v (outcome=%s)", target, err, Outcome(err))
	}

	if !resp.IsSuccess() {
		t.Errorf("expected 2xx from %s /health, got %d", target, resp.Status)
	}

	t.Logf("Health check: target=%s status=%d latency=%s body=%s",
		target, resp.Status, time.Since(start), resp.Body)
}

func TestIntegration_CredentialReuse(t *testing.T) {
	cli := newIntegrationClient(t)
	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	target := integrationTarget()
	if _, err := cli.Get(ctx, target, "/health"); err != nil {
		t.Fatalf("first request failed: %v", err)
	}
	if got := cli.CachedCredentials(); got != 1 {
		t.Errorf("expected 1 cached credential after first request, got %d", got)
	}

	// The second request must reuse the cached key, not refetch.
	if _, err := cli.Get(ctx, target, "/health"); err != nil {
		t.Fatalf("second request failed: %v", err)
	}
	if got := cli.CachedCredentials(); got != 1 {
		t.Errorf("expected 1 cached credential after second request, got %d", got)
	}

	t.Logf("Credential cached and reused across %s requests", target)
}

func TestIntegration_UnknownPath(t *testing.T) {
	cli := newIntegrationClient(t)
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	resp, err := cli.Get(ctx, integrationTarget(), "/no-such-path-zz")
	if err != nil {
		t.Fatalf("expected a rendered response for unknown path, got error: %v", err)
	}
	if resp.IsSuccess() {
		t.Errorf("expected non-2xx for unknown path, got %d", resp.Status)
	}

	t.Logf("Unknown path rendered: status=%d", resp.Status)
}

func TestIntegration_DiscoverTargets(t *testing.T) {
	cli := newIntegrationClient(t)
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	targets, err := cli.DiscoverTargets(ctx)
	if err != nil {
		// Listing may be denied by IAM policy; resolution alone is enough
		// for the client to work.
		t.Logf("DiscoverTargets returned error (likely missing ListSecrets permission): %v", err)
		return
	}

	t.Logf("Discovered %d targets: %v", len(targets), targets)
}
