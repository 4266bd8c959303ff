// Package sysdeps installs system packages (compiler toolchain, media
// libraries, Python) and accelerator drivers through the host's package
// manager. Package-manager semantics are opaque: the package only knows how
// to invoke an install and how to surface a failure.
package sysdeps
