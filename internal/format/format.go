package format

import (
	"fmt"
	"time"
)

// FormatExecutionDuration formats a time.Duration for display.
// It shows microseconds for durations less than a millisecond, milliseconds for
// durations less than a second, and the default string representation otherwise.
// This approach provides a more human-readable output for short durations.
//
// Parameters:
//   - d: The duration to format.
//
// Returns:
//   - string: A formatted string representing the duration.
func FormatExecutionDuration(d time.Duration) string {
	if d < time.Millisecond {
		return fmt.Sprintf("%dµs", d.Microseconds())
	} else if d < time.Second {
		return fmt.Sprintf("%dms", d.Milliseconds())
	}
	return d.Round(10 * time.Millisecond).String()
}

// FormatBytes formats a byte count using binary units (KiB, MiB, GiB).
//
// Parameters:
//   - b: The number of bytes.
//
// Returns:
//   - string: A formatted string such as "1.5 GiB".
func FormatBytes(b uint64) string {
	const unit = 1024
	if b < unit {
		return fmt.Sprintf("%d B", b)
	}
	div, exp := uint64(unit), 0
	for n := b / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(b)/float64(div), "KMGTPE"[exp])
}

// FormatTransferRate formats a transfer rate from bytes and elapsed time.
// Returns "-" when the elapsed time is zero to avoid a division by zero.
//
// Parameters:
//   - bytes: The number of bytes transferred.
//   - elapsed: The time the transfer took.
//
// Returns:
//   - string: A formatted string such as "12.3 MiB/s".
func FormatTransferRate(bytes uint64, elapsed time.Duration) string {
	if elapsed <= 0 {
		return "-"
	}
	perSecond := float64(bytes) / elapsed.Seconds()
	return FormatBytes(uint64(perSecond)) + "/s"
}
