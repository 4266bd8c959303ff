// Package platform detects the host operating system and architecture and
// decides whether the bootstrap supports it. Detection happens before any
// side effect so unsupported hosts fail cleanly.
package platform

import (
	"runtime"

	apperrors "github.com/envboot/envboot/internal/errors"
)

// Info describes the host the bootstrap is running on.
type Info struct {
	// OS is the operating system (GOOS).
	OS string
	// Arch is the CPU architecture (GOARCH).
	Arch string
	// NumCPU is the number of logical processors.
	NumCPU int
}

// supported enumerates the OS/arch pairs the install recipes cover.
var supported = map[string]map[string]bool{
	"linux":  {"amd64": true, "arm64": true},
	"darwin": {"amd64": true, "arm64": true},
}

// Detect returns the host platform information.
func Detect() Info {
	return Info{
		OS:     runtime.GOOS,
		Arch:   runtime.GOARCH,
		NumCPU: runtime.NumCPU(),
	}
}

// Validate returns a PlatformError when the host is not covered by the
// install recipes.
//
// Parameters:
//   - info: The detected platform information.
//
// Returns:
//   - error: A PlatformError for unsupported hosts, nil otherwise.
func Validate(info Info) error {
	if archs, ok := supported[info.OS]; ok && archs[info.Arch] {
		return nil
	}
	return apperrors.PlatformError{OS: info.OS, Arch: info.Arch}
}

// String returns the conventional os/arch rendering.
func (i Info) String() string {
	return i.OS + "/" + i.Arch
}
