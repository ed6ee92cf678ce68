package luks_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	herrors "github.com/hearth-sh/hearth/internal/errors"
	"github.com/hearth-sh/hearth/internal/luks"
	"github.com/hearth-sh/hearth/internal/luks/luksfake"
)

const testDevice = "/dev/sdb1"

func slots(t *testing.T, fake *luksfake.Cryptsetup, device string) map[int]string {
	t.Helper()
	vol, ok := fake.Volumes[device]
	if !ok {
		t.Fatalf("No volume registered for %s", device)
	}
	return vol.Slots
}

func TestReplacePrimary_SingleSlot(t *testing.T) {
	fake := luksfake.New()
	fake.AddVolume(testDevice, 2, map[int]string{0: "old-pass"})

	result, err := luks.Rotate(context.Background(), fake, testDevice, luks.ReplacePrimary{
		Existing: "old-pass",
		New:      "new-pass",
	})
	if err != nil {
		t.Fatalf("Expected rotation to succeed, got: %v", err)
	}
	if result.State != luks.StateTempSlotRemoved {
		t.Errorf("Expected final state TempSlotRemoved, got: %s", result.State)
	}
	if result.Slot != 0 {
		t.Errorf("Expected new key in slot 0, got: %d", result.Slot)
	}
	if result.TempSlotRetained {
		t.Error("Expected the staging slot to be cleaned up")
	}

	final := slots(t, fake, testDevice)
	if len(final) != 1 {
		t.Fatalf("Expected exactly one occupied slot, got: %v", final)
	}
	if final[0] != "new-pass" {
		t.Errorf("Expected slot 0 to hold the new passphrase, got: %q", final[0])
	}
}

func TestReplacePrimary_PurgesAllOtherSlots(t *testing.T) {
	fake := luksfake.New()
	fake.AddVolume(testDevice, 2, map[int]string{
		0: "old-pass",
		1: "stale-temp",
		3: "other-a",
		7: "other-b",
	})

	result, err := luks.Rotate(context.Background(), fake, testDevice, luks.ReplacePrimary{
		Existing: "old-pass",
		New:      "new-pass",
	})
	if err != nil {
		t.Fatalf("Expected rotation to succeed, got: %v", err)
	}
	if result.State != luks.StateTempSlotRemoved {
		t.Errorf("Expected final state TempSlotRemoved, got: %s", result.State)
	}

	final := slots(t, fake, testDevice)
	if len(final) != 1 || final[0] != "new-pass" {
		t.Errorf("Expected only slot 0 with the new passphrase, got: %v", final)
	}
}

func TestReplacePrimary_WrongExistingPassphrase(t *testing.T) {
	fake := luksfake.New()
	fake.AddVolume(testDevice, 2, map[int]string{0: "old-pass"})

	_, err := luks.Rotate(context.Background(), fake, testDevice, luks.ReplacePrimary{
		Existing: "wrong",
		New:      "new-pass",
	})
	if err == nil {
		t.Fatal("Expected an error")
	}
	var rerr *luks.RotationError
	if !errors.As(err, &rerr) {
		t.Fatalf("Expected a *RotationError, got: %T", err)
	}
	if !errors.Is(err, herrors.ErrAuthenticationFailed) {
		t.Errorf("Expected ErrAuthenticationFailed, got: %v", err)
	}
	if rerr.ValidWith != luks.OldPassphrase {
		t.Errorf("Expected old passphrase to remain valid, got: %s", rerr.ValidWith)
	}

	// Nothing was mutated.
	final := slots(t, fake, testDevice)
	if len(final) != 1 || final[0] != "old-pass" {
		t.Errorf("Expected volume untouched, got: %v", final)
	}
}

func TestReplacePrimary_FailureAfterPurge(t *testing.T) {
	fake := luksfake.New()
	fake.AddVolume(testDevice, 2, map[int]string{0: "old-pass", 4: "other"})

	// Fail the write of the new primary key (step 5), after the purge has
	// destroyed slot 0.
	fake.Intercept = func(call luksfake.Call) *luks.CommandResult {
		if call.Argv[1] == "luksAddKey" && hasArgPair(call.Argv, "--key-slot", "0") {
			return &luks.CommandResult{ExitCode: 1, Stderr: []byte("write error\n")}
		}
		return nil
	}

	_, err := luks.Rotate(context.Background(), fake, testDevice, luks.ReplacePrimary{
		Existing: "old-pass",
		New:      "new-pass",
	})
	var rerr *luks.RotationError
	if !errors.As(err, &rerr) {
		t.Fatalf("Expected a *RotationError, got: %v", err)
	}
	if rerr.State != luks.StateOtherSlotsPurged {
		t.Errorf("Expected furthest state OtherSlotsPurged, got: %s", rerr.State)
	}
	if rerr.ValidWith != luks.NewPassphrase || rerr.ValidSlot != 1 {
		t.Errorf("Expected the new passphrase in slot 1 to remain valid, got: %s slot %d", rerr.ValidWith, rerr.ValidSlot)
	}

	// The volume is recoverable: slot 1 holds the new key, slot 0 is empty.
	final := slots(t, fake, testDevice)
	if _, ok := final[0]; ok {
		t.Error("Expected slot 0 to be empty")
	}
	if final[1] != "new-pass" {
		t.Errorf("Expected slot 1 to hold the new passphrase, got: %v", final)
	}

	unlock, uerr := luks.SmartUnlock(context.Background(), fake, testDevice, "new-pass", []int{1})
	if uerr != nil || !unlock.Unlocked {
		t.Errorf("Expected the new passphrase to unlock via slot 1, got: %+v %v", unlock, uerr)
	}
}

func TestReplacePrimary_StagingFailureLeavesOldKeyValid(t *testing.T) {
	fake := luksfake.New()
	fake.AddVolume(testDevice, 2, map[int]string{0: "old-pass"})

	fake.Intercept = func(call luksfake.Call) *luks.CommandResult {
		if call.Argv[1] == "luksAddKey" && hasArgPair(call.Argv, "--key-slot", "1") {
			return &luks.CommandResult{ExitCode: 1, Stderr: []byte("write error\n")}
		}
		return nil
	}

	_, err := luks.Rotate(context.Background(), fake, testDevice, luks.ReplacePrimary{
		Existing: "old-pass",
		New:      "new-pass",
	})
	var rerr *luks.RotationError
	if !errors.As(err, &rerr) {
		t.Fatalf("Expected a *RotationError, got: %v", err)
	}
	if rerr.State != luks.StateTempSlotCleared {
		t.Errorf("Expected furthest state TempSlotCleared, got: %s", rerr.State)
	}
	if rerr.ValidWith != luks.OldPassphrase || rerr.ValidSlot != 0 {
		t.Errorf("Expected the old passphrase in slot 0 to remain valid, got: %s slot %d", rerr.ValidWith, rerr.ValidSlot)
	}
	if slots(t, fake, testDevice)[0] != "old-pass" {
		t.Error("Expected slot 0 untouched")
	}
}

func TestReplacePrimary_TempSlotRemovalFailure(t *testing.T) {
	fake := luksfake.New()
	fake.AddVolume(testDevice, 2, map[int]string{0: "old-pass"})

	// Fail only the final cleanup kill of the staging slot. The earlier
	// purge never targets slot 1 here because it starts empty.
	fake.Intercept = func(call luksfake.Call) *luks.CommandResult {
		if call.Argv[1] == "luksKillSlot" && call.Argv[len(call.Argv)-1] == "1" {
			return &luks.CommandResult{ExitCode: 1, Stderr: []byte("device busy\n")}
		}
		return nil
	}

	result, err := luks.Rotate(context.Background(), fake, testDevice, luks.ReplacePrimary{
		Existing: "old-pass",
		New:      "new-pass",
	})
	if err != nil {
		t.Fatalf("Step-6 failure must not be an error, got: %v", err)
	}
	if !result.TempSlotRetained {
		t.Error("Expected TempSlotRetained to be set")
	}
	if result.State != luks.StatePrimaryKeyWritten {
		t.Errorf("Expected state PrimaryKeyWritten, got: %s", result.State)
	}

	// Both slots hold the new passphrase.
	final := slots(t, fake, testDevice)
	if final[0] != "new-pass" || final[1] != "new-pass" {
		t.Errorf("Expected the new passphrase in slots 0 and 1, got: %v", final)
	}
}

func TestReplacePrimary_RefusesWhenTempSlotIsOnlyKey(t *testing.T) {
	fake := luksfake.New()
	fake.AddVolume(testDevice, 2, map[int]string{1: "only-pass"})

	_, err := luks.Rotate(context.Background(), fake, testDevice, luks.ReplacePrimary{
		Existing: "only-pass",
		New:      "new-pass",
	})
	if !errors.Is(err, herrors.ErrInvariantViolation) {
		t.Fatalf("Expected ErrInvariantViolation, got: %v", err)
	}
	for _, call := range fake.Calls {
		if call.Argv[1] == "luksKillSlot" || call.Argv[1] == "luksAddKey" {
			t.Fatalf("Expected no mutation, saw: %v", call.Argv)
		}
	}
}

func TestReplacePrimary_NotEncrypted(t *testing.T) {
	fake := luksfake.New()

	_, err := luks.Rotate(context.Background(), fake, "/dev/sda1", luks.ReplacePrimary{
		Existing: "a", New: "b",
	})
	if !errors.Is(err, herrors.ErrNotEncrypted) {
		t.Fatalf("Expected ErrNotEncrypted, got: %v", err)
	}
}

func TestSafeRotation_NeverTouchesPrimary(t *testing.T) {
	fake := luksfake.New()
	fake.AddVolume(testDevice, 2, map[int]string{0: "old-pass", 1: "stale"})

	result, err := luks.Rotate(context.Background(), fake, testDevice, luks.SafeRotation{
		Existing: "old-pass",
		New:      "new-pass",
	})
	if err != nil {
		t.Fatalf("Expected rotation to succeed, got: %v", err)
	}
	if result.Slot != 1 {
		t.Errorf("Expected new key in slot 1, got: %d", result.Slot)
	}
	if result.State != luks.StateTempKeyStaged {
		t.Errorf("Expected state TempKeyStaged, got: %s", result.State)
	}

	final := slots(t, fake, testDevice)
	if final[0] != "old-pass" {
		t.Error("Expected slot 0 untouched")
	}
	if final[1] != "new-pass" {
		t.Errorf("Expected slot 1 rotated, got: %v", final)
	}

	for _, call := range fake.Calls {
		if call.Argv[1] == "luksKillSlot" && call.Argv[len(call.Argv)-1] == "0" {
			t.Fatal("SafeRotation must never destroy slot 0")
		}
	}
}

func TestSafeRotation_RefusesWhenSecondaryIsOnlyKey(t *testing.T) {
	fake := luksfake.New()
	fake.AddVolume(testDevice, 2, map[int]string{1: "only-pass"})

	_, err := luks.Rotate(context.Background(), fake, testDevice, luks.SafeRotation{
		Existing: "only-pass",
		New:      "new-pass",
	})
	if !errors.Is(err, herrors.ErrInvariantViolation) {
		t.Fatalf("Expected ErrInvariantViolation, got: %v", err)
	}
	if slots(t, fake, testDevice)[1] != "only-pass" {
		t.Error("Expected volume untouched")
	}
}

func TestFlexibleAddition_LowestAvailable(t *testing.T) {
	fake := luksfake.New()
	fake.AddVolume(testDevice, 2, map[int]string{0: "old-pass", 1: "other"})

	result, err := luks.Rotate(context.Background(), fake, testDevice, luks.FlexibleAddition{
		Existing: "old-pass",
		New:      "new-pass",
	})
	if err != nil {
		t.Fatalf("Expected addition to succeed, got: %v", err)
	}
	if result.Slot != 2 {
		t.Errorf("Expected the new key in slot 2, got: %d", result.Slot)
	}
	if result.EvictedSlot != -1 {
		t.Errorf("Expected no eviction, got: %d", result.EvictedSlot)
	}
	if slots(t, fake, testDevice)[2] != "new-pass" {
		t.Error("Expected slot 2 to hold the new passphrase")
	}
}

func TestFlexibleAddition_FullVolumeNoStrategy(t *testing.T) {
	fake := luksfake.New()
	full := make(map[int]string)
	for s := 0; s < luks.FormatV1Capacity; s++ {
		full[s] = "pass"
	}
	fake.AddVolume(testDevice, 1, full)

	_, err := luks.Rotate(context.Background(), fake, testDevice, luks.FlexibleAddition{
		Existing: "pass",
		New:      "new-pass",
	})
	if !errors.Is(err, herrors.ErrNoAvailableSlots) {
		t.Fatalf("Expected ErrNoAvailableSlots, got: %v", err)
	}
}

func TestFlexibleAddition_RandomEvictionOnFullVolume(t *testing.T) {
	fake := luksfake.New()
	full := make(map[int]string)
	for s := 0; s < luks.FormatV2Capacity; s++ {
		full[s] = "pass"
	}
	full[0] = "primary-pass"
	fake.AddVolume(testDevice, 2, full)

	result, err := luks.Rotate(context.Background(), fake, testDevice, luks.FlexibleAddition{
		Existing: "pass",
		New:      "new-pass",
		Strategy: luks.RandomEviction{},
	})
	if err != nil {
		t.Fatalf("Expected addition to succeed, got: %v", err)
	}
	if result.EvictedSlot == 0 {
		t.Fatal("Slot 0 must never be evicted")
	}
	if result.Slot != result.EvictedSlot {
		t.Errorf("Expected the new key in the evicted slot, got: slot %d evicted %d", result.Slot, result.EvictedSlot)
	}

	final := slots(t, fake, testDevice)
	if len(final) != luks.FormatV2Capacity {
		t.Errorf("Expected the volume to stay full, got %d slots", len(final))
	}
	if final[0] != "primary-pass" {
		t.Error("Expected slot 0 untouched")
	}
	if final[result.Slot] != "new-pass" {
		t.Errorf("Expected slot %d to hold the new passphrase", result.Slot)
	}
}

func TestFlexibleAddition_ManualEviction(t *testing.T) {
	fake := luksfake.New()
	full := make(map[int]string)
	for s := 0; s < luks.FormatV1Capacity; s++ {
		full[s] = "pass"
	}
	fake.AddVolume(testDevice, 1, full)

	result, err := luks.Rotate(context.Background(), fake, testDevice, luks.FlexibleAddition{
		Existing: "pass",
		New:      "new-pass",
		Strategy: luks.ManualEviction{Slot: 5},
	})
	if err != nil {
		t.Fatalf("Expected addition to succeed, got: %v", err)
	}
	if result.Slot != 5 || result.EvictedSlot != 5 {
		t.Errorf("Expected slot 5 evicted and reused, got: %+v", result)
	}
}

func TestFlexibleAddition_ManualEvictionOfPrimaryRejected(t *testing.T) {
	fake := luksfake.New()
	full := make(map[int]string)
	for s := 0; s < luks.FormatV1Capacity; s++ {
		full[s] = "pass"
	}
	fake.AddVolume(testDevice, 1, full)

	_, err := luks.Rotate(context.Background(), fake, testDevice, luks.FlexibleAddition{
		Existing: "pass",
		New:      "new-pass",
		Strategy: luks.ManualEviction{Slot: 0},
	})
	if !errors.Is(err, herrors.ErrInvariantViolation) {
		t.Fatalf("Expected ErrInvariantViolation, got: %v", err)
	}

	// The rejection happens before any mutation.
	for _, call := range fake.Calls {
		if call.Argv[1] == "luksKillSlot" || call.Argv[1] == "luksAddKey" {
			t.Fatalf("Expected no mutation, saw: %v", call.Argv)
		}
	}
}

func TestRotationError_Message(t *testing.T) {
	err := &luks.RotationError{
		State:     luks.StateOtherSlotsPurged,
		ValidWith: luks.NewPassphrase,
		ValidSlot: 1,
		Err:       herrors.ErrAuthenticationFailed,
	}
	msg := err.Error()
	if !strings.Contains(msg, "OtherSlotsPurged") || !strings.Contains(msg, "new passphrase") || !strings.Contains(msg, "slot 1") {
		t.Errorf("Unexpected message: %s", msg)
	}
	if !errors.Is(err, herrors.ErrAuthenticationFailed) {
		t.Error("Expected Unwrap to expose the cause")
	}
}

func hasArgPair(argv []string, flag, value string) bool {
	for i, a := range argv {
		if a == flag && i+1 < len(argv) && argv[i+1] == value {
			return true
		}
	}
	return false
}
