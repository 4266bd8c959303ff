package apperrors

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Application exit codes define the standard exit statuses for the application.
// These codes are used to signal the outcome of the program execution to the OS.
const (
	ExitSuccess       = 0   // Indicates successful execution (or help display).
	ExitErrorGeneric  = 1   // Indicates a generic error: validation, fetch or install failure.
	ExitErrorCanceled = 130 // Indicates the operation was canceled (e.g., SIGINT).
)

// ConfigError represents a user configuration error, such as invalid flags or
// values. It indicates that the application cannot proceed due to incorrect user input.
type ConfigError struct {
	// Message explains the specific configuration error.
	Message string
}

// Error returns the error message for a ConfigError.
//
// Returns:
//   - string: The error message string.
func (e ConfigError) Error() string { return e.Message }

// NewConfigError creates a new ConfigError with a formatted message.
// It allows for the creation of configuration-specific errors with dynamic
// content.
//
// Parameters:
//   - format: A format string (see fmt.Sprintf).
//   - a: Arguments to be formatted into the string.
//
// Returns:
//   - error: A new ConfigError instance containing the formatted message.
func NewConfigError(format string, a ...any) error {
	return ConfigError{Message: fmt.Sprintf(format, a...)}
}

// PlatformError represents an unsupported host platform. It is reported
// before any side effect takes place.
type PlatformError struct {
	// OS is the detected operating system (GOOS).
	OS string
	// Arch is the detected architecture (GOARCH).
	Arch string
}

// Error returns a formatted message describing the unsupported platform.
//
// Returns:
//   - string: The error message string.
func (e PlatformError) Error() string {
	return fmt.Sprintf("unsupported platform %s/%s", e.OS, e.Arch)
}

// CommandError encapsulates the failure of an external command (package
// manager, pip, driver installer) while preserving the original cause and the
// command's own exit code. It is the structured replacement for a shell error
// trap: the top-level handler logs the operation chain and the process exits
// with the command's code.
type CommandError struct {
	// Operation is the logical step that invoked the command (e.g., "install ffmpeg").
	Operation string
	// Command is the full command line that failed.
	Command string
	// ExitCode is the exit code returned by the command.
	ExitCode int
	// Output is the captured combined output of the command, if any.
	Output string
	// Cause is the underlying error returned by the process runner.
	Cause error
}

// Error returns a formatted message describing the command failure.
//
// Returns:
//   - string: The error message string.
func (e CommandError) Error() string {
	msg := fmt.Sprintf("%s: command %q failed with exit code %d", e.Operation, e.Command, e.ExitCode)
	if out := strings.TrimSpace(e.Output); out != "" {
		msg += ": " + out
	}
	return msg
}

// Unwrap returns the original wrapped error, allowing for error chain
// inspection (e.g., using errors.Is or errors.As).
//
// Returns:
//   - error: The underlying cause of the CommandError.
func (e CommandError) Unwrap() error { return e.Cause }

// FetchError represents a download that exhausted its retry budget. It carries
// the task name and attempt count so the join phase can report which resources
// failed.
type FetchError struct {
	// Task is the name of the fetch task that failed.
	Task string
	// Attempts is the number of attempts made before giving up.
	Attempts int
	// Cause is the error from the final attempt.
	Cause error
}

// Error returns a formatted message describing the fetch failure.
//
// Returns:
//   - string: The error message string.
func (e FetchError) Error() string {
	return fmt.Sprintf("fetch %q failed after %d attempts: %v", e.Task, e.Attempts, e.Cause)
}

// Unwrap returns the error from the final fetch attempt.
//
// Returns:
//   - error: The underlying cause of the FetchError.
func (e FetchError) Unwrap() error { return e.Cause }

// WrapError wraps an error with additional context using fmt.Errorf and %w.
// This allows the wrapped error to be unwrapped with errors.Unwrap() and
// checked with errors.Is() and errors.As().
//
// Parameters:
//   - err: The error to wrap.
//   - format: A format string for the context message.
//   - args: Arguments for the format string.
//
// Returns:
//   - error: The wrapped error, or nil if err is nil.
func WrapError(err error, format string, args ...any) error {
	if err == nil {
		return nil
	}
	message := fmt.Sprintf(format, args...)
	return fmt.Errorf("%s: %w", message, err)
}

// IsContextError checks if the error is a context cancellation or deadline exceeded error.
//
// Parameters:
//   - err: The error to check.
//
// Returns:
//   - bool: true if the error is a context error.
func IsContextError(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

// ExitCodeFor maps an error to the process exit code the application should
// terminate with. Command failures propagate the failing command's own exit
// code; cancellation maps to the conventional 130; everything else is the
// generic failure code.
//
// Parameters:
//   - err: The error to map. May be nil.
//
// Returns:
//   - int: The exit code to terminate with.
func ExitCodeFor(err error) int {
	if err == nil {
		return ExitSuccess
	}
	var cmdErr CommandError
	if errors.As(err, &cmdErr) && cmdErr.ExitCode > 0 {
		return cmdErr.ExitCode
	}
	if IsContextError(err) {
		return ExitErrorCanceled
	}
	return ExitErrorGeneric
}
