package workflows

import (
	"context"
	"fmt"

	"github.com/hearth-sh/hearth/internal/audit"
	herrors "github.com/hearth-sh/hearth/internal/errors"
	"github.com/hearth-sh/hearth/internal/luks"
)

// UnlockOptions configures the unlock workflow.
type UnlockOptions struct {
	// Device is the user-supplied identifier.
	Device string

	// Passphrase is tested against the occupied slots.
	Passphrase string

	// Activate opens the volume under MapperName after a slot matches.
	// Without it the workflow only verifies the passphrase.
	Activate bool

	// MapperName is the device-mapper name used when Activate is set.
	MapperName string

	// Runner overrides the command runner; nil uses the real tool.
	Runner luks.Runner
}

// UnlockWorkflowResult contains the outcome of an unlock operation.
type UnlockWorkflowResult struct {
	// PhysicalDevice is the resolved physical device path.
	PhysicalDevice string

	// Unlocked is true when the passphrase opened a slot.
	Unlocked bool

	// Slot is the slot that authenticated, -1 otherwise.
	Slot int

	// Attempted lists the slots tried, in order.
	Attempted []int

	// Activated is true when the volume was mapped.
	Activated bool

	// MapperName is the mapper name used for activation.
	MapperName string
}

// Unlock tests the passphrase against the occupied slots of the device,
// optionally activating the volume on success. The slot list comes from
// a fresh probe, so unoccupied slots are never tried.
func Unlock(ctx context.Context, opts UnlockOptions) (*UnlockWorkflowResult, error) {
	r := runner(opts.Runner)

	device, err := resolveDevice(ctx, r, opts.Device)
	if err != nil {
		return nil, err
	}

	release, err := acquireDevice(device)
	if err != nil {
		return nil, err
	}
	defer release()

	inv, err := luks.Probe(ctx, r, device)
	if err != nil {
		return nil, fmt.Errorf("probing %s: %w", device, err)
	}
	if !inv.IsEncrypted {
		return nil, fmt.Errorf("%s: %w", device, herrors.ErrNotEncrypted)
	}
	if len(inv.Used) == 0 {
		return nil, fmt.Errorf("%s has no occupied key slots", device)
	}

	if opts.Activate && opts.MapperName == "" {
		return nil, fmt.Errorf("activation requires a mapper name")
	}

	entry := audit.LogOperation("unlock", device)
	entry.Slots = inv.Used

	var result *luks.UnlockResult
	if opts.Activate {
		result, err = luks.Activate(ctx, r, device, opts.MapperName, opts.Passphrase, inv.Used)
	} else {
		result, err = luks.SmartUnlock(ctx, r, device, opts.Passphrase, inv.Used)
	}
	if err != nil {
		entry.Outcome = "error"
		audit.Log(entry)
		return nil, err
	}

	if result.Unlocked {
		entry.Slot = result.Slot
		entry.Outcome = "ok"
	} else {
		entry.Outcome = "failed"
	}
	audit.Log(entry)

	return &UnlockWorkflowResult{
		PhysicalDevice: device,
		Unlocked:       result.Unlocked,
		Slot:           result.Slot,
		Attempted:      result.Attempted,
		Activated:      opts.Activate && result.Unlocked,
		MapperName:     opts.MapperName,
	}, nil
}
