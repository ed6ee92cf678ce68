package luks

import (
	"context"
	"fmt"
	"strconv"

	herrors "github.com/hearth-sh/hearth/internal/errors"
)

// UnlockResult reports a smart-unlock attempt.
type UnlockResult struct {
	// Unlocked is true when the passphrase opened a slot.
	Unlocked bool

	// Slot is the slot that authenticated, -1 otherwise.
	Slot int

	// Attempted lists the slots tried, in order.
	Attempted []int

	// LastErr is the most recent per-slot failure when Unlocked is false.
	LastErr error
}

// SmartUnlock tests passphrase against each of knownSlots in order,
// stopping at the first success. Restricting attempts to slots known to
// be occupied avoids burning the tool's failed-attempt penalties on
// slots that cannot possibly match. Performs no mutation.
//
// A passphrase that fails everywhere is a soft outcome: the result
// carries Unlocked=false and the last per-slot error, with a nil error
// return. The error return is reserved for infrastructure failures.
func SmartUnlock(ctx context.Context, r Runner, device, passphrase string, knownSlots []int) (*UnlockResult, error) {
	if len(knownSlots) == 0 {
		return nil, fmt.Errorf("no known-occupied slots supplied for %s", device)
	}

	result := &UnlockResult{Slot: -1}
	for _, slot := range knownSlots {
		argv := []string{cryptsetupBin, "open", "--test-passphrase", "--key-slot", strconv.Itoa(slot), device}
		res, err := r.Run(ctx, argv, []byte(passphrase+"\n"), unlockTimeout)
		if err != nil {
			return nil, fmt.Errorf("testing passphrase against slot %d on %s: %w", slot, device, err)
		}

		result.Attempted = append(result.Attempted, slot)
		if res.ExitCode == 0 {
			result.Unlocked = true
			result.Slot = slot
			return result, nil
		}
		result.LastErr = classifySlotError(res)
	}

	if result.LastErr == nil {
		result.LastErr = herrors.ErrUnlockFailed
	}
	return result, nil
}

// Activate opens device under the given mapper name after locating the
// matching slot with SmartUnlock. The activation targets the found slot
// explicitly so the tool does not rescan.
func Activate(ctx context.Context, r Runner, device, name, passphrase string, knownSlots []int) (*UnlockResult, error) {
	result, err := SmartUnlock(ctx, r, device, passphrase, knownSlots)
	if err != nil || !result.Unlocked {
		return result, err
	}

	argv := []string{cryptsetupBin, "open", "--key-slot", strconv.Itoa(result.Slot), device, name}
	res, err := r.Run(ctx, argv, []byte(passphrase+"\n"), unlockTimeout)
	if err != nil {
		return result, fmt.Errorf("activating %s as %s: %w", device, name, err)
	}
	if res.ExitCode != 0 {
		return result, fmt.Errorf("activating %s as %s: %w", device, name, classifySlotError(res))
	}

	return result, nil
}
