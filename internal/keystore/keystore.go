package keystore

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"io"
	"os"
	"path/filepath"

	herrors "github.com/hearth-sh/hearth/internal/errors"
	"golang.org/x/crypto/nacl/secretbox"
)

const (
	machineKeyFile = "machine.key"
	sealedFile     = "passphrase.sealed"

	// passphraseBytes is the entropy of a generated managed passphrase.
	// Encoded with base64url it yields a 43-character passphrase.
	passphraseBytes = 32
)

// Store holds the appliance's long-term managed passphrase, sealed on disk.
// The passphrase is what the appliance itself uses to hold a key slot on
// every managed volume, so headless reboots can unlock storage without a
// human at the console.
type Store struct {
	// Dir is the keystore directory (HearthSettings.KeystorePath in
	// production, a temp dir in tests).
	Dir string
}

// New returns a Store rooted at dir.
func New(dir string) *Store {
	return &Store{Dir: dir}
}

// Initialized reports whether the keystore holds a managed passphrase.
func (s *Store) Initialized() bool {
	if _, err := os.Stat(filepath.Join(s.Dir, machineKeyFile)); err != nil {
		return false
	}
	_, err := os.Stat(filepath.Join(s.Dir, sealedFile))
	return err == nil
}

// Init generates a fresh managed passphrase and seals it under a new
// machine key. It refuses to overwrite an existing keystore unless force
// is set: regenerating the passphrase orphans any key slot still holding
// the old one.
func (s *Store) Init(force bool) error {
	if s.Initialized() && !force {
		return fmt.Errorf("keystore already initialized at %s", s.Dir)
	}

	if err := os.MkdirAll(s.Dir, 0700); err != nil {
		return fmt.Errorf("creating keystore directory: %w", err)
	}

	var key [32]byte
	if _, err := io.ReadFull(rand.Reader, key[:]); err != nil {
		return fmt.Errorf("generating machine key: %w", err)
	}

	raw := make([]byte, passphraseBytes)
	if _, err := io.ReadFull(rand.Reader, raw); err != nil {
		return fmt.Errorf("generating passphrase: %w", err)
	}
	passphrase := base64.RawURLEncoding.EncodeToString(raw)

	var nonce [24]byte
	if _, err := io.ReadFull(rand.Reader, nonce[:]); err != nil {
		return fmt.Errorf("generating nonce: %w", err)
	}
	sealed := secretbox.Seal(nonce[:], []byte(passphrase), &nonce, &key)

	if err := os.WriteFile(filepath.Join(s.Dir, machineKeyFile), key[:], 0600); err != nil {
		return fmt.Errorf("writing machine key: %w", err)
	}
	if err := os.WriteFile(filepath.Join(s.Dir, sealedFile), sealed, 0600); err != nil {
		return fmt.Errorf("writing sealed passphrase: %w", err)
	}

	return nil
}

// Export returns the managed passphrase.
// Returns ErrKeystoreUninitialized if Init has never run.
func (s *Store) Export() (string, error) {
	if !s.Initialized() {
		return "", herrors.ErrKeystoreUninitialized
	}

	keyData, err := os.ReadFile(filepath.Join(s.Dir, machineKeyFile))
	if err != nil {
		return "", fmt.Errorf("reading machine key: %w", err)
	}
	if len(keyData) != 32 {
		return "", fmt.Errorf("machine key is %d bytes, expected 32", len(keyData))
	}
	var key [32]byte
	copy(key[:], keyData)

	sealed, err := os.ReadFile(filepath.Join(s.Dir, sealedFile))
	if err != nil {
		return "", fmt.Errorf("reading sealed passphrase: %w", err)
	}
	if len(sealed) < 24 {
		return "", fmt.Errorf("sealed passphrase is truncated")
	}

	// Extract the nonce from the beginning of the ciphertext.
	var nonce [24]byte
	copy(nonce[:], sealed[:24])

	passphrase, ok := secretbox.Open(nil, sealed[24:], &nonce, &key)
	if !ok {
		return "", fmt.Errorf("failed to unseal managed passphrase")
	}

	return string(passphrase), nil
}
