package workflows

import (
	"context"
	"fmt"

	"github.com/hearth-sh/hearth/internal/luks"
)

// StatusOptions configures the status workflow.
type StatusOptions struct {
	// Device is the user-supplied identifier: path, label, alias, or
	// mapped view.
	Device string

	// Runner overrides the command runner; nil uses the real tool.
	Runner luks.Runner
}

// StatusResult contains the outcome of a status operation.
type StatusResult struct {
	// Device is the identifier as given.
	Device string

	// PhysicalDevice is the resolved physical device path.
	PhysicalDevice string

	// Inventory is the probed slot inventory. IsEncrypted is false when
	// the device carries no encryption header.
	Inventory *luks.SlotInventory
}

// Status resolves the device and probes its key-slot inventory. A
// device without an encryption header is a normal result, not an error.
func Status(ctx context.Context, opts StatusOptions) (*StatusResult, error) {
	r := runner(opts.Runner)

	device, err := resolveDevice(ctx, r, opts.Device)
	if err != nil {
		return nil, err
	}

	inv, err := luks.Probe(ctx, r, device)
	if err != nil {
		return nil, fmt.Errorf("probing %s: %w", device, err)
	}

	return &StatusResult{
		Device:         opts.Device,
		PhysicalDevice: device,
		Inventory:      inv,
	}, nil
}
