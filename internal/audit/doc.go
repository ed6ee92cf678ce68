// Package audit provides audit trail logging for Hearth operations.
//
// Every key-lifecycle operation (add, rotate, evict, unlock) and service
// action is recorded in an appliance-level audit log. This provides
// accountability for mutations of encrypted-volume headers, which are
// otherwise invisible after the fact.
//
// # Log Format
//
// The audit log is stored as JSON Lines (one JSON object per line) at the
// path configured in HearthSettings (by default /var/lib/hearth/audit.jsonl).
//
// Each entry contains:
//   - Timestamp (RFC3339 with microseconds, UTC)
//   - Appliance UUID
//   - Operation name
//   - Operation-specific details (device, slot, rotation state, outcome)
//
// Entries never contain passphrase material.
//
// # Usage
//
// Create an entry with the appliance UUID pre-populated:
//
//	entry := audit.LogOperation("rotate", device)
//	entry.State = result.State.String()
//	audit.Log(entry)
//
// # Failure Handling
//
// Audit logging is best-effort. If logging fails (permissions, disk full,
// etc.), the operation continues without error.
//
// # Reading Logs
//
// Use ReadEntries() to parse the audit log for display or analysis.
// Malformed entries are silently skipped to handle partial writes.
package audit
