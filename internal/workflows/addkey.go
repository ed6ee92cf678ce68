package workflows

import (
	"context"
	"fmt"

	"github.com/hearth-sh/hearth/internal/audit"
	herrors "github.com/hearth-sh/hearth/internal/errors"
	"github.com/hearth-sh/hearth/internal/luks"
)

// AddKeyOptions configures the add-key workflow.
type AddKeyOptions struct {
	// Device is the user-supplied identifier.
	Device string

	// New is the passphrase to install.
	New string

	// Existing authenticates the addition. Empty is only valid on a
	// freshly formatted volume with no keys yet.
	Existing string

	// Slot, when set, requests a specific empty slot instead of the
	// lowest available one.
	Slot *int

	// Strategy, when set, evicts an occupied slot if the volume is full.
	// Without one, a full volume is an error.
	Strategy luks.EvictionStrategy

	// Runner overrides the command runner; nil uses the real tool.
	Runner luks.Runner
}

// AddKeyResult contains the outcome of an add-key operation.
type AddKeyResult struct {
	// PhysicalDevice is the resolved physical device path.
	PhysicalDevice string

	// Slot now holds the new passphrase.
	Slot int

	// EvictedSlot is the slot sacrificed to make room, -1 otherwise.
	EvictedSlot int

	// FreshVolume is true when this was the first key on the volume.
	FreshVolume bool
}

// AddKey installs a new passphrase on the device.
//
// On a volume with no keys yet, the passphrase goes into slot 0 with no
// authentication. Otherwise the new key lands in the requested slot, or
// the lowest available one, or (when a Strategy is given and the volume
// is full) in a freshly evicted slot.
func AddKey(ctx context.Context, opts AddKeyOptions) (*AddKeyResult, error) {
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

	entry := audit.LogOperation("add-key", device)
	if opts.Strategy != nil {
		entry.Strategy = opts.Strategy.Name()
	}

	result, err := addKey(ctx, r, device, inv, opts)
	if err != nil {
		entry.Outcome = "error"
		audit.Log(entry)
		return nil, err
	}

	entry.Slot = result.Slot
	entry.Outcome = "ok"
	audit.Log(entry)
	return result, nil
}

func addKey(ctx context.Context, r luks.Runner, device string, inv *luks.SlotInventory, opts AddKeyOptions) (*AddKeyResult, error) {
	// First key on a fresh volume: slot 0, nothing to authenticate with.
	if len(inv.Used) == 0 {
		if opts.Existing != "" {
			return nil, fmt.Errorf("%s has no keys yet; an existing passphrase cannot apply", device)
		}
		if err := luks.AddKey(ctx, r, device, 0, opts.New, ""); err != nil {
			return nil, err
		}
		return &AddKeyResult{PhysicalDevice: device, Slot: 0, EvictedSlot: -1, FreshVolume: true}, nil
	}

	if opts.Existing == "" {
		return nil, fmt.Errorf("%s already holds keys; the existing passphrase is required", device)
	}

	// Caller asked for a specific slot.
	if opts.Slot != nil {
		slot := *opts.Slot
		if slot < 0 || slot >= inv.Capacity {
			return nil, fmt.Errorf("slot %d is out of range for a %d-slot volume", slot, inv.Capacity)
		}
		if inv.Occupied(slot) {
			return nil, fmt.Errorf("slot %d on %s already holds a key", slot, device)
		}
		if err := luks.AddKey(ctx, r, device, slot, opts.New, opts.Existing); err != nil {
			return nil, err
		}
		return &AddKeyResult{PhysicalDevice: device, Slot: slot, EvictedSlot: -1}, nil
	}

	rotation, err := luks.Rotate(ctx, r, device, luks.FlexibleAddition{
		Existing: opts.Existing,
		New:      opts.New,
		Strategy: opts.Strategy,
	})
	if err != nil {
		return nil, err
	}

	return &AddKeyResult{PhysicalDevice: device, Slot: rotation.Slot, EvictedSlot: rotation.EvictedSlot}, nil
}
