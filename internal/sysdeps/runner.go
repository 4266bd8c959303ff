package sysdeps

import (
	"bytes"
	"context"
	"errors"
	"os/exec"
	"strings"

	apperrors "github.com/envboot/envboot/internal/errors"
	"github.com/envboot/envboot/internal/logging"
)

// Runner abstracts external process execution so install recipes can be
// tested without touching the host.
type Runner interface {
	// Run executes the command and returns a CommandError carrying the
	// captured combined output and the command's exit code on failure.
	// operation names the logical step for error context.
	Run(ctx context.Context, operation string, name string, args ...string) error

	// LookPath reports the absolute path of an executable, or an error if
	// it is not on PATH.
	LookPath(name string) (string, error)
}

// execRunner is the production Runner backed by os/exec.
type execRunner struct {
	log logging.Logger
}

// NewRunner creates a Runner that executes real processes and logs each
// invocation.
//
// Parameters:
//   - log: The logger for command tracing.
//
// Returns:
//   - Runner: The constructed runner.
func NewRunner(log logging.Logger) Runner {
	return &execRunner{log: log}
}

// Run executes the command with combined output capture. A nonzero exit is
// converted into a CommandError so the top-level handler can report the
// failing command and terminate with its exit code.
func (r *execRunner) Run(ctx context.Context, operation string, name string, args ...string) error {
	cmdLine := name
	if len(args) > 0 {
		cmdLine += " " + strings.Join(args, " ")
	}
	r.log.Debug("running command", logging.String("operation", operation), logging.String("command", cmdLine))

	var output bytes.Buffer
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdout = &output
	cmd.Stderr = &output

	err := cmd.Run()
	if err == nil {
		return nil
	}

	exitCode := -1
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		exitCode = exitErr.ExitCode()
	}
	return apperrors.CommandError{
		Operation: operation,
		Command:   cmdLine,
		ExitCode:  exitCode,
		Output:    output.String(),
		Cause:     err,
	}
}

// LookPath delegates to exec.LookPath.
func (r *execRunner) LookPath(name string) (string, error) {
	return exec.LookPath(name)
}
