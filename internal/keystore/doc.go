// Package keystore holds the appliance's managed long-term passphrase.
//
// The managed passphrase is the appliance's own credential on every
// encrypted volume it administers: it occupies a key slot alongside any
// user-chosen passphrases, so the appliance can unlock storage at boot
// without a console session. CLI commands take it via the --managed flag
// instead of prompting.
//
// # Storage Format
//
// The keystore directory contains two files, both 0600:
//
//	machine.key        32-byte random key
//	passphrase.sealed  NaCl secretbox ciphertext, 24-byte nonce prepended
//
// The passphrase itself is 32 bytes of entropy, base64url-encoded.
//
// # Lifecycle
//
// Init() generates and seals a fresh passphrase; it refuses to overwrite
// an existing keystore without force, because the old passphrase may still
// occupy key slots. Export() returns the passphrase, or
// ErrKeystoreUninitialized before the first Init().
//
// The passphrase is never cached in process memory between calls; each
// Export() unseals from disk on demand.
package keystore
