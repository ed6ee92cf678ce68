package workflows

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/hearth-sh/hearth/internal/audit"
	"github.com/hearth-sh/hearth/internal/configs"
	herrors "github.com/hearth-sh/hearth/internal/errors"
	"github.com/hearth-sh/hearth/internal/luks"
	"github.com/hearth-sh/hearth/internal/luks/luksfake"
)

const testDevice = "/dev/sdb1"

// withTempAppliance points the appliance directories at temp dirs so
// config and audit writes never touch the real system.
func withTempAppliance(t *testing.T) {
	t.Helper()
	t.Setenv("HEARTH_CONFIG_DIR", t.TempDir())
	t.Setenv("HEARTH_DATA_DIR", t.TempDir())
	configs.ResetSettings()
	t.Cleanup(configs.ResetSettings)
}

func TestStatus_EncryptedVolume(t *testing.T) {
	withTempAppliance(t)
	fake := luksfake.New()
	fake.AddVolume(testDevice, 2, map[int]string{0: "pass", 3: "other"})

	result, err := Status(context.Background(), StatusOptions{Device: testDevice, Runner: fake})
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if result.PhysicalDevice != testDevice {
		t.Errorf("Expected %s, got: %s", testDevice, result.PhysicalDevice)
	}
	if !result.Inventory.IsEncrypted {
		t.Fatal("Expected an encrypted volume")
	}
	if len(result.Inventory.Used) != 2 {
		t.Errorf("Expected 2 occupied slots, got: %v", result.Inventory.Used)
	}
}

func TestStatus_NotEncrypted(t *testing.T) {
	withTempAppliance(t)

	result, err := Status(context.Background(), StatusOptions{Device: "/dev/sda2", Runner: luksfake.New()})
	if err != nil {
		t.Fatalf("A plain device is not an error, got: %v", err)
	}
	if result.Inventory.IsEncrypted {
		t.Error("Expected IsEncrypted=false")
	}
}

func TestStatus_ResolvesConfiguredAlias(t *testing.T) {
	withTempAppliance(t)
	config, err := configs.LoadApplianceConfig()
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}
	config.Aliases["media"] = testDevice
	if err := configs.SaveApplianceConfig(config); err != nil {
		t.Fatalf("Failed to save config: %v", err)
	}

	fake := luksfake.New()
	fake.AddVolume(testDevice, 2, map[int]string{0: "pass"})

	result, err := Status(context.Background(), StatusOptions{Device: "media", Runner: fake})
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if result.PhysicalDevice != testDevice {
		t.Errorf("Expected alias resolved to %s, got: %s", testDevice, result.PhysicalDevice)
	}
}

func TestAddKey_FreshVolume(t *testing.T) {
	withTempAppliance(t)
	fake := luksfake.New()
	fake.AddVolume(testDevice, 2, nil)

	result, err := AddKey(context.Background(), AddKeyOptions{
		Device: testDevice,
		New:    "first-pass",
		Runner: fake,
	})
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if !result.FreshVolume || result.Slot != 0 {
		t.Errorf("Expected first key in slot 0, got: %+v", result)
	}
	if fake.Volumes[testDevice].Slots[0] != "first-pass" {
		t.Error("Expected slot 0 to hold the passphrase")
	}
}

func TestAddKey_FreshVolumeRejectsExisting(t *testing.T) {
	withTempAppliance(t)
	fake := luksfake.New()
	fake.AddVolume(testDevice, 2, nil)

	_, err := AddKey(context.Background(), AddKeyOptions{
		Device:   testDevice,
		New:      "first-pass",
		Existing: "stray",
		Runner:   fake,
	})
	if err == nil {
		t.Fatal("Expected an error")
	}
}

func TestAddKey_LowestAvailable(t *testing.T) {
	withTempAppliance(t)
	fake := luksfake.New()
	fake.AddVolume(testDevice, 2, map[int]string{0: "pass"})

	result, err := AddKey(context.Background(), AddKeyOptions{
		Device:   testDevice,
		New:      "new-pass",
		Existing: "pass",
		Runner:   fake,
	})
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if result.Slot != 1 || result.EvictedSlot != -1 {
		t.Errorf("Expected slot 1 without eviction, got: %+v", result)
	}
}

func TestAddKey_ExplicitSlot(t *testing.T) {
	withTempAppliance(t)
	fake := luksfake.New()
	fake.AddVolume(testDevice, 2, map[int]string{0: "pass"})

	slot := 5
	result, err := AddKey(context.Background(), AddKeyOptions{
		Device:   testDevice,
		New:      "new-pass",
		Existing: "pass",
		Slot:     &slot,
		Runner:   fake,
	})
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if result.Slot != 5 {
		t.Errorf("Expected slot 5, got: %d", result.Slot)
	}
}

func TestAddKey_ExplicitOccupiedSlotRejected(t *testing.T) {
	withTempAppliance(t)
	fake := luksfake.New()
	fake.AddVolume(testDevice, 2, map[int]string{0: "pass", 5: "other"})

	slot := 5
	_, err := AddKey(context.Background(), AddKeyOptions{
		Device:   testDevice,
		New:      "new-pass",
		Existing: "pass",
		Slot:     &slot,
		Runner:   fake,
	})
	if err == nil {
		t.Fatal("Expected an error for an occupied slot")
	}
	if fake.Volumes[testDevice].Slots[5] != "other" {
		t.Error("Expected slot 5 untouched")
	}
}

func TestAddKey_FullVolumeWithStrategy(t *testing.T) {
	withTempAppliance(t)
	fake := luksfake.New()
	full := make(map[int]string)
	for s := 0; s < luks.FormatV1Capacity; s++ {
		full[s] = "pass"
	}
	fake.AddVolume(testDevice, 1, full)

	result, err := AddKey(context.Background(), AddKeyOptions{
		Device:   testDevice,
		New:      "new-pass",
		Existing: "pass",
		Strategy: luks.ManualEviction{Slot: 6},
		Runner:   fake,
	})
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if result.Slot != 6 || result.EvictedSlot != 6 {
		t.Errorf("Expected slot 6 evicted and reused, got: %+v", result)
	}
}

func TestAddKey_FullVolumeWithoutStrategy(t *testing.T) {
	withTempAppliance(t)
	fake := luksfake.New()
	full := make(map[int]string)
	for s := 0; s < luks.FormatV1Capacity; s++ {
		full[s] = "pass"
	}
	fake.AddVolume(testDevice, 1, full)

	_, err := AddKey(context.Background(), AddKeyOptions{
		Device:   testDevice,
		New:      "new-pass",
		Existing: "pass",
		Runner:   fake,
	})
	if !errors.Is(err, herrors.ErrNoAvailableSlots) {
		t.Fatalf("Expected ErrNoAvailableSlots, got: %v", err)
	}
}

func TestRotate_Safe(t *testing.T) {
	withTempAppliance(t)
	fake := luksfake.New()
	fake.AddVolume(testDevice, 2, map[int]string{0: "old-pass"})

	result, err := Rotate(context.Background(), RotateOptions{
		Device:   testDevice,
		Existing: "old-pass",
		New:      "new-pass",
		Runner:   fake,
	})
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if result.Protocol != "safe-rotation" || result.Slot != 1 {
		t.Errorf("Unexpected result: %+v", result)
	}
	if fake.Volumes[testDevice].Slots[0] != "old-pass" {
		t.Error("Safe rotation must not touch slot 0")
	}
}

func TestRotate_Primary(t *testing.T) {
	withTempAppliance(t)
	fake := luksfake.New()
	fake.AddVolume(testDevice, 2, map[int]string{0: "old-pass", 4: "other"})

	result, err := Rotate(context.Background(), RotateOptions{
		Device:   testDevice,
		Existing: "old-pass",
		New:      "new-pass",
		Primary:  true,
		Runner:   fake,
	})
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if result.State != luks.StateTempSlotRemoved || result.Slot != 0 {
		t.Errorf("Unexpected result: %+v", result)
	}

	final := fake.Volumes[testDevice].Slots
	if len(final) != 1 || final[0] != "new-pass" {
		t.Errorf("Expected only slot 0 with the new passphrase, got: %v", final)
	}
}

func TestRotate_WritesAuditEntry(t *testing.T) {
	withTempAppliance(t)
	fake := luksfake.New()
	fake.AddVolume(testDevice, 2, map[int]string{0: "old-pass"})

	_, err := Rotate(context.Background(), RotateOptions{
		Device:   testDevice,
		Existing: "old-pass",
		New:      "new-pass",
		Primary:  true,
		Runner:   fake,
	})
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	entries, err := audit.ReadEntries()
	if err != nil {
		t.Fatalf("Failed to read audit log: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("Expected one audit entry, got: %d", len(entries))
	}
	entry := entries[0]
	if entry.Operation != "rotate/replace-primary" {
		t.Errorf("Unexpected operation: %s", entry.Operation)
	}
	if entry.Device != testDevice || entry.State != "TempSlotRemoved" || entry.Outcome != "ok" {
		t.Errorf("Unexpected entry: %+v", entry)
	}
	// Slot indices only; the log must never carry passphrase material.
	raw, err := filepath.Glob(filepath.Join(configs.HearthSettings.DataPath, "*.jsonl"))
	if err != nil || len(raw) != 1 {
		t.Fatalf("Expected the audit log file, got: %v %v", raw, err)
	}
}

func TestUnlock_VerifyOnly(t *testing.T) {
	withTempAppliance(t)
	fake := luksfake.New()
	fake.AddVolume(testDevice, 2, map[int]string{0: "other", 3: "my-pass"})

	result, err := Unlock(context.Background(), UnlockOptions{
		Device:     testDevice,
		Passphrase: "my-pass",
		Runner:     fake,
	})
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if !result.Unlocked || result.Slot != 3 {
		t.Errorf("Expected unlock via slot 3, got: %+v", result)
	}
	if result.Activated {
		t.Error("Expected no activation")
	}
	if len(fake.Activated) != 0 {
		t.Error("Verify-only unlock must not map the volume")
	}
}

func TestUnlock_Activate(t *testing.T) {
	withTempAppliance(t)
	fake := luksfake.New()
	fake.AddVolume(testDevice, 2, map[int]string{0: "my-pass"})

	result, err := Unlock(context.Background(), UnlockOptions{
		Device:     testDevice,
		Passphrase: "my-pass",
		Activate:   true,
		MapperName: "media",
		Runner:     fake,
	})
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if !result.Activated || result.MapperName != "media" {
		t.Errorf("Expected activation as media, got: %+v", result)
	}
	if fake.Activated["media"] != testDevice {
		t.Errorf("Expected mapping recorded, got: %v", fake.Activated)
	}
}

func TestUnlock_WrongPassphraseSoftFailure(t *testing.T) {
	withTempAppliance(t)
	fake := luksfake.New()
	fake.AddVolume(testDevice, 2, map[int]string{0: "a", 5: "b"})

	result, err := Unlock(context.Background(), UnlockOptions{
		Device:     testDevice,
		Passphrase: "wrong",
		Runner:     fake,
	})
	if err != nil {
		t.Fatalf("Exhaustion must be a soft outcome, got: %v", err)
	}
	if result.Unlocked {
		t.Error("Expected Unlocked=false")
	}
	if len(result.Attempted) != 2 {
		t.Errorf("Expected both occupied slots attempted, got: %v", result.Attempted)
	}
}

func TestUnlock_NotEncrypted(t *testing.T) {
	withTempAppliance(t)

	_, err := Unlock(context.Background(), UnlockOptions{
		Device:     "/dev/sda2",
		Passphrase: "x",
		Runner:     luksfake.New(),
	})
	if !errors.Is(err, herrors.ErrNotEncrypted) {
		t.Fatalf("Expected ErrNotEncrypted, got: %v", err)
	}
}

func TestAcquireDevice_SerializesPerDevice(t *testing.T) {
	release, err := acquireDevice("/dev/sdz1")
	if err != nil {
		t.Fatalf("Expected first acquire to succeed, got: %v", err)
	}

	if _, err := acquireDevice("/dev/sdz1"); !errors.Is(err, herrors.ErrOperationInFlight) {
		t.Fatalf("Expected ErrOperationInFlight, got: %v", err)
	}

	// A different device is unaffected.
	other, err := acquireDevice("/dev/sdz2")
	if err != nil {
		t.Fatalf("Expected independent device to acquire, got: %v", err)
	}
	other()

	release()
	again, err := acquireDevice("/dev/sdz1")
	if err != nil {
		t.Fatalf("Expected re-acquire after release, got: %v", err)
	}
	again()
}
