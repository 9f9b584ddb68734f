package api

import (
	"context"
	"strings"
)

// DiscoveryValidator implements TargetValidator by checking the target
// against the services the relay can reach. A discovery failure reports
// the target as unknown.
type DiscoveryValidator struct {
	service RelayService
}

// NewDiscoveryValidator creates a TargetValidator backed by the relay
// service's target list.
func NewDiscoveryValidator(service RelayService) *DiscoveryValidator {
	return &DiscoveryValidator{service: service}
}

// IsKnownTarget returns true if the target has a provisioned credential or
// appears in the configured target list.
func (v *DiscoveryValidator) IsKnownTarget(ctx context.Context, target string) bool {
	targets, err := v.service.Targets(ctx)
	if err != nil {
		return false
	}
	target = strings.ToLower(strings.TrimSpace(target))
	for _, t := range targets {
		if t == target {
			return true
		}
	}
	return false
}
