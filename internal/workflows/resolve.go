package workflows

import (
	"context"
	"fmt"

	"github.com/hearth-sh/hearth/internal/configs"
	"github.com/hearth-sh/hearth/internal/luks"
)

// resolveDevice maps identifier to the physical encrypted device using
// the configured alias table.
func resolveDevice(ctx context.Context, r luks.Runner, identifier string) (string, error) {
	config, err := configs.LoadApplianceConfig()
	if err != nil {
		return "", fmt.Errorf("loading appliance config: %w", err)
	}

	resolver := luks.NewResolver(r, config.Aliases)
	device, err := resolver.Physical(ctx, identifier)
	if err != nil {
		return "", fmt.Errorf("resolving device %q: %w", identifier, err)
	}

	return device, nil
}

// runner returns r, defaulting to the real tool when unset.
func runner(r luks.Runner) luks.Runner {
	if r == nil {
		return luks.ExecRunner{}
	}
	return r
}
