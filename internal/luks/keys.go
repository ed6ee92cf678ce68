package luks

import (
	"bytes"
	"context"
	"fmt"
	"strconv"
	"strings"

	herrors "github.com/hearth-sh/hearth/internal/errors"
)

// AddKey installs newPassphrase into the given empty slot of device.
//
// existingPassphrase authenticates the addition and is required unless the
// volume header holds no keys yet (a freshly formatted volume). The slot
// is always explicit: callers without a preference probe the inventory and
// pass the lowest available index.
//
// Passphrase order on stdin is: existing (when present), new, then the new
// passphrase again as confirmation.
func AddKey(ctx context.Context, r Runner, device string, slot int, newPassphrase, existingPassphrase string) error {
	if slot < 0 {
		return fmt.Errorf("invalid key slot %d", slot)
	}
	if newPassphrase == "" {
		return fmt.Errorf("new passphrase must not be empty")
	}

	argv := []string{cryptsetupBin, "luksAddKey", "--batch-mode", "--key-slot", strconv.Itoa(slot), device}

	var stdin bytes.Buffer
	if existingPassphrase != "" {
		stdin.WriteString(existingPassphrase)
		stdin.WriteByte('\n')
	}
	stdin.WriteString(newPassphrase)
	stdin.WriteByte('\n')
	stdin.WriteString(newPassphrase)
	stdin.WriteByte('\n')

	res, err := r.Run(ctx, argv, stdin.Bytes(), mutationTimeout)
	if err != nil {
		return fmt.Errorf("adding key to slot %d on %s: %w", slot, device, err)
	}
	if res.ExitCode != 0 {
		return fmt.Errorf("adding key to slot %d on %s: %w", slot, device, classifySlotError(res))
	}

	return nil
}

// DestroyKey wipes the key in the given occupied slot of device.
//
// authPassphrase may be the passphrase of any currently occupied slot, not
// necessarily the one being destroyed. Returns ErrAuthenticationFailed if
// no slot accepts it, ErrSlotNotOccupied if the slot holds no key.
func DestroyKey(ctx context.Context, r Runner, device string, slot int, authPassphrase string) error {
	if slot < 0 {
		return fmt.Errorf("invalid key slot %d", slot)
	}

	argv := []string{cryptsetupBin, "luksKillSlot", "--batch-mode", device, strconv.Itoa(slot)}
	stdin := []byte(authPassphrase + "\n")

	res, err := r.Run(ctx, argv, stdin, mutationTimeout)
	if err != nil {
		return fmt.Errorf("destroying key slot %d on %s: %w", slot, device, err)
	}
	if res.ExitCode != 0 {
		return fmt.Errorf("destroying key slot %d on %s: %w", slot, device, classifySlotError(res))
	}

	return nil
}

// classifySlotError maps the tool's stderr to a sentinel where one
// applies, falling back to the raw tool error.
func classifySlotError(res *CommandResult) error {
	stderr := string(res.Stderr)
	switch {
	case strings.Contains(stderr, "No key available with this passphrase"):
		return herrors.ErrAuthenticationFailed
	case strings.Contains(stderr, "is not active"), strings.Contains(stderr, "not in use"):
		return herrors.ErrSlotNotOccupied
	}
	return toolError(res)
}
