// Package luks manages the key-slot lifecycle of encrypted volumes by
// driving the cryptsetup tool as an external process.
//
// The package never touches the encryption itself; it composes the two
// irreducible primitives the tool offers (add a key to an empty slot,
// destroy the key in an occupied slot) into safe higher-level protocols.
// The governing invariant: a volume must never be left with zero valid
// passphrases. There is no atomic replace for slot 0, so ReplacePrimary
// stages the new key in slot 1 before touching anything else, and every
// destroy is guarded against removing the last occupied slot.
//
// # Components
//
//   - Runner / ExecRunner: external command execution. Passphrases are
//     piped to stdin only, never placed in argv.
//   - Resolver: identifier (path, label, alias, mapped view) to the
//     physical encrypted device.
//   - Probe / SlotInventory: header dump parsing for format v1 and v2.
//   - AddKey / DestroyKey: the mutation primitives.
//   - Rotate with RotationRequest: SafeRotation, ReplacePrimary, and
//     FlexibleAddition with Manual or Random eviction.
//   - SmartUnlock / Activate: authentication restricted to slots known
//     to be occupied.
//
// # Failure Reporting
//
// Primitive errors map to the sentinels in internal/errors where
// possible, with *ExternalToolError as the fallback. Protocol failures
// are reported as *RotationError carrying the furthest state completed
// and which passphrase still opens the volume, so callers can decide
// whether and how to retry; nothing is retried automatically.
//
// # Concurrency
//
// Operations are synchronous and must run at most once per device at a
// time; serialization is the caller's job (see internal/workflows). No
// state is shared between invocations, and inventory values are scoped
// to a single operation.
package luks
