package cli

import (
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/briandowns/spinner"

	"github.com/envboot/envboot/internal/fetch"
)

// SpinnerReporter shows fetch progress as a single spinner line with live
// counters. It implements fetch.ProgressReporter and is safe for concurrent
// use by the fetch workers.
type SpinnerReporter struct {
	mu      sync.Mutex
	sp      *spinner.Spinner
	total   int
	done    int
	skipped int
	failed  int
}

// NewSpinnerReporter creates and starts a spinner reporter.
//
// Parameters:
//   - out: Terminal writer the spinner animates on.
//   - total: Number of tasks in the run.
//
// Returns:
//   - *SpinnerReporter: The running reporter. Call Stop when the fetch
//     phase is over.
func NewSpinnerReporter(out io.Writer, total int) *SpinnerReporter {
	sp := spinner.New(spinner.CharSets[14], 100*time.Millisecond, spinner.WithWriter(out))
	r := &SpinnerReporter{sp: sp, total: total}
	r.refresh()
	sp.Start()
	return r
}

// FetchStarted implements fetch.ProgressReporter.
func (r *SpinnerReporter) FetchStarted(string) {}

// FetchFinished implements fetch.ProgressReporter.
func (r *SpinnerReporter) FetchFinished(res fetch.Result) {
	r.mu.Lock()
	defer r.mu.Unlock()
	switch {
	case res.Skipped:
		r.skipped++
	case res.Err != nil:
		r.failed++
	default:
		r.done++
	}
	r.refresh()
}

// Stop halts the spinner animation.
func (r *SpinnerReporter) Stop() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sp.Stop()
}

// refresh rebuilds the spinner suffix. Caller holds the lock except during
// construction.
func (r *SpinnerReporter) refresh() {
	suffix := fmt.Sprintf(" fetching resources: %d/%d done", r.done+r.skipped+r.failed, r.total)
	if r.skipped > 0 {
		suffix += fmt.Sprintf(", %d present", r.skipped)
	}
	if r.failed > 0 {
		suffix += fmt.Sprintf(", %d failed", r.failed)
	}
	r.sp.Suffix = suffix
}
