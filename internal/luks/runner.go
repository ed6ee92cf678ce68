package luks

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"
)

// cryptsetupBin is the disk-encryption tool every slot operation shells
// out to. It is a plain name so PATH resolution applies.
const cryptsetupBin = "cryptsetup"

// Command timeouts. Key additions run the tool's KDF benchmark, so
// mutations get the long bound.
const (
	probeTimeout    = 15 * time.Second
	unlockTimeout   = 60 * time.Second
	mutationTimeout = 2 * time.Minute
)

// CommandResult captures the outcome of one external command invocation.
type CommandResult struct {
	ExitCode int
	Stdout   []byte
	Stderr   []byte
}

// Runner executes an external program. Passphrase material is only ever
// delivered through stdin, never through argv, so it cannot leak into
// process listings or logs.
//
// A non-zero exit status is a successful Run with a non-zero ExitCode;
// the error return is reserved for failures to execute at all (binary
// missing, timeout, context canceled).
type Runner interface {
	Run(ctx context.Context, argv []string, stdin []byte, timeout time.Duration) (*CommandResult, error)
}

// ExecRunner runs commands with os/exec.
type ExecRunner struct{}

func (ExecRunner) Run(ctx context.Context, argv []string, stdin []byte, timeout time.Duration) (*CommandResult, error) {
	if len(argv) == 0 {
		return nil, fmt.Errorf("empty command")
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	// #nosec G204 -- argv is built from fixed verbs plus validated device
	// paths; passphrases never appear here.
	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	if stdin != nil {
		cmd.Stdin = bytes.NewReader(stdin)
	}

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	if ctx.Err() != nil {
		return nil, fmt.Errorf("command %s timed out after %s: %w", argv[0], timeout, ctx.Err())
	}
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return &CommandResult{
				ExitCode: exitErr.ExitCode(),
				Stdout:   stdout.Bytes(),
				Stderr:   stderr.Bytes(),
			}, nil
		}
		return nil, fmt.Errorf("failed to run %s: %w", argv[0], err)
	}

	return &CommandResult{ExitCode: 0, Stdout: stdout.Bytes(), Stderr: stderr.Bytes()}, nil
}

// ExternalToolError reports a command that ran but was rejected, for
// failures that don't map to a more specific sentinel.
type ExternalToolError struct {
	Tool     string
	ExitCode int
	Stderr   string
}

func (e *ExternalToolError) Error() string {
	stderr := strings.TrimSpace(e.Stderr)
	if stderr == "" {
		return fmt.Sprintf("%s exited with status %d", e.Tool, e.ExitCode)
	}
	return fmt.Sprintf("%s exited with status %d: %s", e.Tool, e.ExitCode, stderr)
}

func toolError(res *CommandResult) *ExternalToolError {
	return &ExternalToolError{
		Tool:     cryptsetupBin,
		ExitCode: res.ExitCode,
		Stderr:   string(res.Stderr),
	}
}
