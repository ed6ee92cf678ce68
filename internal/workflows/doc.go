// Package workflows contains the high-level operations behind the hearth
// commands. Each workflow takes an Options struct and returns a Result
// struct, keeping the cmd layer free of device logic.
//
// Workflows resolve user-supplied device identifiers (paths, labels,
// configured aliases, mapped views) to the physical encrypted device,
// serialize concurrent operations per device, and record mutations in
// the audit trail. Key-slot semantics live in the luks package; this
// package only orchestrates.
package workflows
