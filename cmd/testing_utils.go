// Package cmd testing utilities shared between command tests. Provides
// helpers for pointing the appliance directories at temp dirs, feeding
// passphrases through stdin, and capturing command output.
package cmd

import (
	"bytes"
	"io"
	"os"
	"strings"
	"testing"

	"github.com/hearth-sh/hearth/internal/configs"
	logger "github.com/hearth-sh/hearth/internal/logging"
	"github.com/hearth-sh/hearth/internal/luks"
)

// setupTestEnvironment points the appliance config and data directories
// at temp dirs and installs the fake runner, restoring everything on
// cleanup.
func setupTestEnvironment(t *testing.T, runner luks.Runner) {
	t.Helper()

	t.Setenv("HEARTH_CONFIG_DIR", t.TempDir())
	t.Setenv("HEARTH_DATA_DIR", t.TempDir())
	configs.ResetSettings()

	ResetGlobalState()
	SetRunner(runner)
	SetLogger(logger.Logger{})

	t.Cleanup(func() {
		ResetGlobalState()
		configs.ResetSettings()
	})
}

// feedStdin replaces os.Stdin with a pipe carrying the given lines, the
// way passphrases arrive when piped into the binary.
func feedStdin(t *testing.T, lines ...string) {
	t.Helper()

	r, w, err := os.Pipe()
	if err != nil {
		t.Fatalf("Failed to create stdin pipe: %v", err)
	}
	if _, err := w.WriteString(strings.Join(lines, "\n") + "\n"); err != nil {
		t.Fatalf("Failed to write stdin: %v", err)
	}
	w.Close()

	original := os.Stdin
	os.Stdin = r
	t.Cleanup(func() {
		os.Stdin = original
		r.Close()
	})
}

// captureOutput captures both stdout and stderr during function execution.
func captureOutput(t *testing.T, fn func() error) (string, error) {
	t.Helper()

	originalStdout := os.Stdout
	originalStderr := os.Stderr

	stdoutReader, stdoutWriter, err := os.Pipe()
	if err != nil {
		t.Fatalf("Failed to create stdout pipe: %v", err)
	}
	stderrReader, stderrWriter, err := os.Pipe()
	if err != nil {
		t.Fatalf("Failed to create stderr pipe: %v", err)
	}

	os.Stdout = stdoutWriter
	os.Stderr = stderrWriter

	fnErr := fn()

	stdoutWriter.Close()
	stderrWriter.Close()
	os.Stdout = originalStdout
	os.Stderr = originalStderr

	var out bytes.Buffer
	if _, err := io.Copy(&out, stdoutReader); err != nil {
		t.Fatalf("Failed to read captured stdout: %v", err)
	}
	if _, err := io.Copy(&out, stderrReader); err != nil {
		t.Fatalf("Failed to read captured stderr: %v", err)
	}

	return out.String(), fnErr
}
