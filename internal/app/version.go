package app

import (
	"fmt"
	"io"
	"runtime"
)

// Version is the application version, overridable at build time via
// -ldflags "-X github.com/envboot/envboot/internal/app.Version=...".
var Version = "dev"

// HasVersionFlag checks whether the argument list requests the version.
//
// Parameters:
//   - args: The command-line arguments (without the program name).
//
// Returns:
//   - bool: true when --version or -version is present.
func HasVersionFlag(args []string) bool {
	for _, arg := range args {
		if arg == "--version" || arg == "-version" {
			return true
		}
	}
	return false
}

// PrintVersion writes the version line.
func PrintVersion(out io.Writer) {
	fmt.Fprintf(out, "envboot %s (%s, %s/%s)\n", Version, runtime.Version(), runtime.GOOS, runtime.GOARCH)
}
