package secrets

import "context"

// Provider defines a generic secrets backend interface.
// Concrete implementations (AWS, GCP, etc.) can satisfy this.
type Provider interface {
	// GetSecret retrieves the raw credential value stored at path.
	GetSecret(ctx context.Context, path string) (string, error)

	// ListSecrets returns the names of all secrets whose name matches the given prefix.
	ListSecrets(ctx context.Context, prefix string) ([]string, error)
}
