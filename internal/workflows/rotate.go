package workflows

import (
	"context"

	"github.com/hearth-sh/hearth/internal/audit"
	"github.com/hearth-sh/hearth/internal/luks"
)

// RotateOptions configures the rotate workflow.
type RotateOptions struct {
	// Device is the user-supplied identifier.
	Device string

	// Existing is the current passphrase.
	Existing string

	// New is the replacement passphrase.
	New string

	// Primary selects full primary replacement: the new passphrase ends
	// up alone in slot 0 and every other slot is purged. The default
	// rotates the secondary slot and never touches slot 0.
	Primary bool

	// Runner overrides the command runner; nil uses the real tool.
	Runner luks.Runner
}

// RotateResult contains the outcome of a rotate operation.
type RotateResult struct {
	// PhysicalDevice is the resolved physical device path.
	PhysicalDevice string

	// Protocol is the rotation protocol that ran.
	Protocol string

	// State is the furthest protocol state completed.
	State luks.RotationState

	// Slot now holds the new passphrase.
	Slot int

	// TempSlotRetained is true when a primary replacement finished but
	// could not clean up its staging slot; both slots 0 and 1 hold the
	// new passphrase.
	TempSlotRetained bool
}

// Rotate replaces a passphrase on the device, either safely in the
// secondary slot or as a full primary replacement.
//
// A failed rotation never leaves the volume without a working
// passphrase: the returned *luks.RotationError names the passphrase and
// slot that still open it.
func Rotate(ctx context.Context, opts RotateOptions) (*RotateResult, error) {
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

	var request luks.RotationRequest
	if opts.Primary {
		request = luks.ReplacePrimary{Existing: opts.Existing, New: opts.New}
	} else {
		request = luks.SafeRotation{Existing: opts.Existing, New: opts.New}
	}

	entry := audit.LogOperation("rotate", device)
	entry.Operation = "rotate/" + request.Name()

	result, err := luks.Rotate(ctx, r, device, request)
	if err != nil {
		entry.Outcome = "error"
		if rerr, ok := err.(*luks.RotationError); ok {
			entry.State = rerr.State.String()
		}
		audit.Log(entry)
		return nil, err
	}

	entry.Slot = result.Slot
	entry.State = result.State.String()
	entry.Outcome = "ok"
	if result.TempSlotRetained {
		entry.Outcome = "ok-temp-slot-retained"
	}
	audit.Log(entry)

	return &RotateResult{
		PhysicalDevice:   device,
		Protocol:         request.Name(),
		State:            result.State,
		Slot:             result.Slot,
		TempSlotRetained: result.TempSlotRetained,
	}, nil
}
