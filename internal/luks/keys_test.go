package luks_test

import (
	"context"
	"errors"
	"reflect"
	"testing"

	herrors "github.com/hearth-sh/hearth/internal/errors"
	"github.com/hearth-sh/hearth/internal/luks"
	"github.com/hearth-sh/hearth/internal/luks/luksfake"
)

func TestAddKey_ArgvAndStdinOrder(t *testing.T) {
	fake := luksfake.New()
	fake.AddVolume(testDevice, 2, map[int]string{0: "existing-pass"})

	err := luks.AddKey(context.Background(), fake, testDevice, 3, "new-pass", "existing-pass")
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	if len(fake.Calls) != 1 {
		t.Fatalf("Expected one call, got: %d", len(fake.Calls))
	}
	call := fake.Calls[0]
	wantArgv := []string{"cryptsetup", "luksAddKey", "--batch-mode", "--key-slot", "3", testDevice}
	if !reflect.DeepEqual(call.Argv, wantArgv) {
		t.Errorf("Expected argv %v, got: %v", wantArgv, call.Argv)
	}
	// Existing passphrase first, then the new one twice.
	if call.Stdin != "existing-pass\nnew-pass\nnew-pass\n" {
		t.Errorf("Unexpected stdin order: %q", call.Stdin)
	}

	if slots(t, fake, testDevice)[3] != "new-pass" {
		t.Error("Expected slot 3 to hold the new passphrase")
	}
}

func TestAddKey_FreshVolumeOmitsExisting(t *testing.T) {
	fake := luksfake.New()
	fake.AddVolume(testDevice, 2, nil)

	err := luks.AddKey(context.Background(), fake, testDevice, 0, "first-pass", "")
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if fake.Calls[0].Stdin != "first-pass\nfirst-pass\n" {
		t.Errorf("Unexpected stdin: %q", fake.Calls[0].Stdin)
	}
	if slots(t, fake, testDevice)[0] != "first-pass" {
		t.Error("Expected slot 0 to hold the first passphrase")
	}
}

func TestAddKey_WrongPassphrase(t *testing.T) {
	fake := luksfake.New()
	fake.AddVolume(testDevice, 2, map[int]string{0: "existing-pass"})

	err := luks.AddKey(context.Background(), fake, testDevice, 3, "new-pass", "wrong")
	if !errors.Is(err, herrors.ErrAuthenticationFailed) {
		t.Fatalf("Expected ErrAuthenticationFailed, got: %v", err)
	}
}

func TestAddKey_RejectsEmptyPassphrase(t *testing.T) {
	fake := luksfake.New()
	if err := luks.AddKey(context.Background(), fake, testDevice, 0, "", ""); err == nil {
		t.Fatal("Expected an error for an empty passphrase")
	}
	if len(fake.Calls) != 0 {
		t.Error("Expected no command to run")
	}
}

func TestDestroyKey_ArgvAndAuth(t *testing.T) {
	fake := luksfake.New()
	fake.AddVolume(testDevice, 2, map[int]string{0: "primary-pass", 4: "doomed"})

	// Auth with a passphrase from a different slot than the one destroyed.
	err := luks.DestroyKey(context.Background(), fake, testDevice, 4, "primary-pass")
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	call := fake.Calls[0]
	wantArgv := []string{"cryptsetup", "luksKillSlot", "--batch-mode", testDevice, "4"}
	if !reflect.DeepEqual(call.Argv, wantArgv) {
		t.Errorf("Expected argv %v, got: %v", wantArgv, call.Argv)
	}
	if call.Stdin != "primary-pass\n" {
		t.Errorf("Unexpected stdin: %q", call.Stdin)
	}

	if _, ok := slots(t, fake, testDevice)[4]; ok {
		t.Error("Expected slot 4 to be destroyed")
	}
}

func TestDestroyKey_SlotNotOccupied(t *testing.T) {
	fake := luksfake.New()
	fake.AddVolume(testDevice, 2, map[int]string{0: "pass"})

	err := luks.DestroyKey(context.Background(), fake, testDevice, 5, "pass")
	if !errors.Is(err, herrors.ErrSlotNotOccupied) {
		t.Fatalf("Expected ErrSlotNotOccupied, got: %v", err)
	}
}

func TestDestroyKey_WrongPassphrase(t *testing.T) {
	fake := luksfake.New()
	fake.AddVolume(testDevice, 2, map[int]string{0: "pass", 2: "other"})

	err := luks.DestroyKey(context.Background(), fake, testDevice, 2, "wrong")
	if !errors.Is(err, herrors.ErrAuthenticationFailed) {
		t.Fatalf("Expected ErrAuthenticationFailed, got: %v", err)
	}
	if _, ok := slots(t, fake, testDevice)[2]; !ok {
		t.Error("Expected slot 2 untouched")
	}
}
