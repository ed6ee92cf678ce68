package luks

import (
	"context"
	"fmt"
	"sort"

	herrors "github.com/hearth-sh/hearth/internal/errors"
)

// Slot roles in the rotation protocols. Slot 0 is the conventional
// primary; slot 1 is the staging slot for primary replacement.
const (
	primarySlot = 0
	tempSlot    = 1
)

// RotationState names how far a primary-slot replacement progressed.
// There is no atomic way to overwrite slot 0, so the protocol stages the
// new key in slot 1 first and the state tells a caller what a failed run
// left behind.
type RotationState int

const (
	StateStart RotationState = iota
	StateTempSlotCleared
	StateTempKeyStaged
	StateOtherSlotsPurged
	StatePrimaryKeyWritten
	StateTempSlotRemoved
)

func (s RotationState) String() string {
	switch s {
	case StateStart:
		return "Start"
	case StateTempSlotCleared:
		return "TempSlotCleared"
	case StateTempKeyStaged:
		return "TempKeyStaged"
	case StateOtherSlotsPurged:
		return "OtherSlotsPurged"
	case StatePrimaryKeyWritten:
		return "PrimaryKeyWritten"
	case StateTempSlotRemoved:
		return "TempSlotRemoved"
	}
	return fmt.Sprintf("RotationState(%d)", int(s))
}

// Authenticator identifies which of a rotation's two passphrases is known
// to still open the volume at a given point.
type Authenticator int

const (
	OldPassphrase Authenticator = iota
	NewPassphrase
)

func (a Authenticator) String() string {
	if a == NewPassphrase {
		return "new"
	}
	return "old"
}

// RotationRequest selects a rotation protocol. The union is closed:
// adding a protocol means adding a case to Rotate.
type RotationRequest interface {
	rotationRequest()
	// Name is the protocol identifier used in audit entries.
	Name() string
}

// ReplacePrimary swaps the passphrase in slot 0 and purges every other
// slot, leaving the volume with exactly one key.
type ReplacePrimary struct {
	Existing string
	New      string
}

func (ReplacePrimary) rotationRequest() {}
func (ReplacePrimary) Name() string     { return "replace-primary" }

// SafeRotation rotates the secondary slot 1 and never touches slot 0, so
// the existing passphrase keeps working whatever happens.
type SafeRotation struct {
	Existing string
	New      string
}

func (SafeRotation) rotationRequest() {}
func (SafeRotation) Name() string     { return "safe-rotation" }

// FlexibleAddition installs a new passphrase wherever room can be found:
// the lowest empty slot when one exists, otherwise by evicting an
// occupied slot chosen by Strategy.
type FlexibleAddition struct {
	Existing string
	New      string
	Strategy EvictionStrategy
}

func (FlexibleAddition) rotationRequest() {}
func (FlexibleAddition) Name() string     { return "flexible-addition" }

// RotationResult reports a completed rotation.
type RotationResult struct {
	// State is the furthest protocol state completed. Meaningful for
	// ReplacePrimary and SafeRotation; FlexibleAddition reports StateStart.
	State RotationState

	// Slot now holds the new passphrase.
	Slot int

	// EvictedSlot is the slot sacrificed by a FlexibleAddition, -1 when
	// nothing was evicted.
	EvictedSlot int

	// TempSlotRetained is set when the final cleanup of a ReplacePrimary
	// failed: slots 0 and 1 both hold the new passphrase. The volume is
	// fully usable; the duplicate can be destroyed at leisure.
	TempSlotRetained bool
}

// RotationError reports a rotation that stopped partway. State tells the
// caller which steps completed; ValidWith and ValidSlot name a passphrase
// and slot that still open the volume, so no failure here is a lockout.
// Retrying is the caller's decision and requires a fresh probe.
type RotationError struct {
	State     RotationState
	ValidWith Authenticator
	ValidSlot int
	Err       error
}

func (e *RotationError) Error() string {
	return fmt.Sprintf("rotation failed after %s (volume still opens with the %s passphrase via slot %d): %v",
		e.State, e.ValidWith, e.ValidSlot, e.Err)
}

func (e *RotationError) Unwrap() error { return e.Err }

// Rotate executes the requested rotation protocol against device, which
// must be the physical encrypted device. Requests on the same device must
// be serialized by the caller; no step is retried automatically.
func Rotate(ctx context.Context, r Runner, device string, req RotationRequest) (*RotationResult, error) {
	switch req := req.(type) {
	case ReplacePrimary:
		return replacePrimary(ctx, r, device, req)
	case SafeRotation:
		return safeRotation(ctx, r, device, req)
	case FlexibleAddition:
		return flexibleAddition(ctx, r, device, req)
	}
	return nil, fmt.Errorf("unsupported rotation request %T", req)
}

// replacePrimary is the six-step primary replacement protocol. The
// invariant held throughout: once the new key is staged in slot 1, at
// least one of slots 0 and 1 opens with a passphrase the caller knows.
//
//  1. probe inventory
//  2. clear the staging slot (slot 1) if occupied
//  3. stage the new key in slot 1, authenticated by the old passphrase
//  4. purge every other occupied slot, slot 0 last; once slot 0 is gone
//     the only authenticator left is the new key in slot 1
//  5. write the new key into slot 0
//  6. remove the staging copy from slot 1
func replacePrimary(ctx context.Context, r Runner, device string, req ReplacePrimary) (*RotationResult, error) {
	inv, err := probeEncrypted(ctx, r, device)
	if err != nil {
		return nil, err
	}

	// Working occupancy set, scoped to this invocation only.
	occupied := make(map[int]bool, len(inv.Used))
	for _, s := range inv.Used {
		occupied[s] = true
	}

	state := StateStart

	// Step 2: make room in the staging slot.
	if occupied[tempSlot] {
		if len(occupied) == 1 {
			// Slot 1 is the only key on the volume. Destroying it before
			// staging would leave zero valid passphrases.
			return nil, &RotationError{State: state, ValidWith: OldPassphrase, ValidSlot: tempSlot, Err: herrors.ErrInvariantViolation}
		}
		if err := DestroyKey(ctx, r, device, tempSlot, req.Existing); err != nil {
			return nil, &RotationError{State: state, ValidWith: OldPassphrase, ValidSlot: primarySlot, Err: err}
		}
		delete(occupied, tempSlot)
	}
	state = StateTempSlotCleared

	// Step 3: stage the new key. From here on slot 1 opens with the new
	// passphrase no matter what else fails.
	if err := AddKey(ctx, r, device, tempSlot, req.New, req.Existing); err != nil {
		return nil, &RotationError{State: state, ValidWith: OldPassphrase, ValidSlot: primarySlot, Err: err}
	}
	occupied[tempSlot] = true
	state = StateTempKeyStaged

	// Step 4: purge everything but the staging slot, primary strictly
	// last. Purges authenticate with the old passphrase while slot 0
	// still holds it; once slot 0 is destroyed the staged new key is the
	// only authenticator, so any later purge would have to use it.
	var targets []int
	for s := range occupied {
		if s != tempSlot && s != primarySlot {
			targets = append(targets, s)
		}
	}
	sort.Ints(targets)
	if occupied[primarySlot] {
		targets = append(targets, primarySlot)
	}

	auth := req.Existing
	validWith, validSlot := OldPassphrase, primarySlot
	for _, slot := range targets {
		if len(occupied) <= 1 {
			return nil, &RotationError{State: state, ValidWith: validWith, ValidSlot: validSlot, Err: herrors.ErrInvariantViolation}
		}
		if err := DestroyKey(ctx, r, device, slot, auth); err != nil {
			return nil, &RotationError{State: state, ValidWith: validWith, ValidSlot: validSlot, Err: err}
		}
		delete(occupied, slot)
		if slot == primarySlot {
			auth = req.New
			validWith, validSlot = NewPassphrase, tempSlot
		}
	}
	state = StateOtherSlotsPurged
	validWith, validSlot = NewPassphrase, tempSlot

	// Step 5: write the new primary, authenticated by the staged copy.
	if err := AddKey(ctx, r, device, primarySlot, req.New, req.New); err != nil {
		return nil, &RotationError{State: state, ValidWith: validWith, ValidSlot: validSlot, Err: err}
	}
	state = StatePrimaryKeyWritten

	// Step 6: drop the staging copy. Failure leaves the new passphrase in
	// both slots, which is correct if untidy; report success with the
	// retained slot flagged rather than a lockout-shaped error.
	if err := DestroyKey(ctx, r, device, tempSlot, req.New); err != nil {
		return &RotationResult{State: state, Slot: primarySlot, EvictedSlot: -1, TempSlotRetained: true}, nil
	}
	state = StateTempSlotRemoved

	return &RotationResult{State: state, Slot: primarySlot, EvictedSlot: -1}, nil
}

// safeRotation replaces the key in slot 1, leaving slot 0 untouched so the
// existing passphrase keeps working at every point.
func safeRotation(ctx context.Context, r Runner, device string, req SafeRotation) (*RotationResult, error) {
	inv, err := probeEncrypted(ctx, r, device)
	if err != nil {
		return nil, err
	}

	state := StateStart
	if inv.Occupied(tempSlot) {
		if len(inv.Used) == 1 {
			// Slot 1 holds the only key; clearing it would leave nothing.
			return nil, &RotationError{State: state, ValidWith: OldPassphrase, ValidSlot: tempSlot, Err: herrors.ErrInvariantViolation}
		}
		if err := DestroyKey(ctx, r, device, tempSlot, req.Existing); err != nil {
			return nil, &RotationError{State: state, ValidWith: OldPassphrase, ValidSlot: primarySlot, Err: err}
		}
	}
	state = StateTempSlotCleared

	if err := AddKey(ctx, r, device, tempSlot, req.New, req.Existing); err != nil {
		return nil, &RotationError{State: state, ValidWith: OldPassphrase, ValidSlot: primarySlot, Err: err}
	}
	state = StateTempKeyStaged

	return &RotationResult{State: state, Slot: tempSlot, EvictedSlot: -1}, nil
}

// flexibleAddition installs the new passphrase in the lowest empty slot,
// or evicts a strategy-chosen slot when the volume is full.
func flexibleAddition(ctx context.Context, r Runner, device string, req FlexibleAddition) (*RotationResult, error) {
	inv, err := probeEncrypted(ctx, r, device)
	if err != nil {
		return nil, err
	}

	if slot, err := inv.LowestAvailable(); err == nil {
		if err := AddKey(ctx, r, device, slot, req.New, req.Existing); err != nil {
			return nil, err
		}
		return &RotationResult{Slot: slot, EvictedSlot: -1}, nil
	}

	if req.Strategy == nil {
		return nil, fmt.Errorf("volume %s is full and no eviction strategy was given: %w", device, herrors.ErrNoAvailableSlots)
	}

	slot, err := req.Strategy.Pick(inv)
	if err != nil {
		return nil, err
	}
	if slot == primarySlot || !inv.Occupied(slot) {
		// Strategies enforce this themselves; guard against new ones that
		// don't.
		return nil, fmt.Errorf("eviction strategy chose slot %d: %w", slot, herrors.ErrInvariantViolation)
	}

	if err := DestroyKey(ctx, r, device, slot, req.Existing); err != nil {
		return nil, err
	}
	if err := AddKey(ctx, r, device, slot, req.New, req.Existing); err != nil {
		return nil, fmt.Errorf("slot %d was evicted but writing the new key failed (volume still opens with the existing passphrase): %w", slot, err)
	}

	return &RotationResult{Slot: slot, EvictedSlot: slot}, nil
}

// probeEncrypted probes device and insists on an encryption header.
func probeEncrypted(ctx context.Context, r Runner, device string) (*SlotInventory, error) {
	inv, err := Probe(ctx, r, device)
	if err != nil {
		return nil, fmt.Errorf("probing %s: %w", device, err)
	}
	if !inv.IsEncrypted {
		return nil, fmt.Errorf("%s: %w", device, herrors.ErrNotEncrypted)
	}
	return inv, nil
}
