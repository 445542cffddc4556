// Package nix drives the external nix tool as a subprocess and translates
// its textual failure modes into a typed error taxonomy. Every invocation
// is scoped to one physical store root via the --store flag; the tool's own
// on-disk database is never touched directly.
package nix

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
)

// Result holds the captured output of one tool invocation.
type Result struct {
	Stdout   string
	Stderr   string
	ExitCode int
}

// Runner executes the nix binary against a specific store root.
type Runner interface {
	Run(ctx context.Context, storeRoot string, args ...string) (*Result, error)
}

// ExecRunner runs the tool as a synchronous subprocess. No shell is
// involved; arguments are passed verbatim and both output streams are
// captured as text. A non-zero exit is reported through Result.ExitCode,
// not as an error — errors are reserved for failures to run the binary
// at all.
type ExecRunner struct {
	binary string
}

// NewExecRunner creates a runner for the given nix binary name or path.
func NewExecRunner(binary string) *ExecRunner {
	if binary == "" {
		binary = "nix"
	}
	return &ExecRunner{binary: binary}
}

func (r *ExecRunner) Run(ctx context.Context, storeRoot string, args ...string) (*Result, error) {
	argv := make([]string, 0, len(args)+2)
	argv = append(argv, args...)
	argv = append(argv, "--store", storeRoot)

	cmd := exec.CommandContext(ctx, r.binary, argv...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	result := &Result{Stdout: stdout.String(), Stderr: stderr.String()}
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			result.ExitCode = exitErr.ExitCode()
			return result, nil
		}
		return nil, fmt.Errorf("run %s: %w", r.binary, err)
	}
	return result, nil
}
