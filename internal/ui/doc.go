// Package ui provides terminal color themes shared by the CLI output and the
// TUI fetch dashboard, with NO_COLOR support.
package ui
