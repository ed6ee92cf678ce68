package errors

import "errors"

// Probe errors indicate the volume header could not be read or understood.
var (
	// ErrNotEncrypted indicates the device carries no recognized encryption header.
	// Callers that merely ask the question receive a soft answer instead (see
	// luks.SlotInventory.IsEncrypted); this sentinel is for operations that
	// require an encrypted volume to proceed.
	ErrNotEncrypted = errors.New("device is not an encrypted volume")

	// ErrSlotProbeFailed indicates the header dump could not be obtained or parsed.
	ErrSlotProbeFailed = errors.New("failed to probe key slots")

	// ErrUnknownFormatVersion indicates the header reports a version this tool
	// does not know how to probe.
	ErrUnknownFormatVersion = errors.New("unknown volume format version")
)

// Key slot errors indicate a mutation primitive was rejected.
var (
	// ErrAuthenticationFailed indicates no occupied slot accepted the passphrase.
	ErrAuthenticationFailed = errors.New("passphrase did not match any key slot")

	// ErrSlotNotOccupied indicates the targeted slot holds no key.
	ErrSlotNotOccupied = errors.New("key slot is not occupied")

	// ErrNoAvailableSlots indicates every slot is occupied and no eviction
	// strategy was supplied.
	ErrNoAvailableSlots = errors.New("no key slots available")

	// ErrNoEvictableSlots indicates eviction was requested but the only
	// occupied slot is the primary slot, which is never evicted.
	ErrNoEvictableSlots = errors.New("no evictable key slots")

	// ErrInvariantViolation indicates an operation would have destroyed the
	// last remaining occupied slot. This is a defensive guard; it is not
	// reachable through correct protocol execution.
	ErrInvariantViolation = errors.New("operation would leave volume without any valid passphrase")
)

// Device errors indicate the target device could not be determined.
var (
	// ErrDeviceNotFound indicates no block device matched the identifier.
	ErrDeviceNotFound = errors.New("device not found")

	// ErrUnderlyingDeviceResolution indicates a mapped volume's backing
	// physical device could not be determined.
	ErrUnderlyingDeviceResolution = errors.New("cannot resolve underlying physical device")
)

// Operation errors indicate appliance-level coordination problems.
var (
	// ErrOperationInFlight indicates another key-lifecycle operation is
	// already running against the same physical device.
	ErrOperationInFlight = errors.New("another operation is in flight for this device")

	// ErrKeystoreUninitialized indicates the appliance keystore has not been
	// set up, so no managed passphrase can be exported.
	ErrKeystoreUninitialized = errors.New("appliance keystore is not initialized")

	// ErrUnlockFailed indicates the passphrase failed on every known slot.
	ErrUnlockFailed = errors.New("passphrase rejected by all known slots")
)
