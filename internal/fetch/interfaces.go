package fetch

import "context"

// Fetcher downloads a single task's payload.
//
// Implementations own their retry policy: the returned attempt count is the
// number of attempts actually made, and the error (if any) is terminal.
type Fetcher interface {
	// Fetch downloads the task payload into task.Dest.
	//
	// Parameters:
	//   - ctx: Controls cancellation of the download.
	//   - task: The task to download.
	//
	// Returns:
	//   - int64: Payload bytes written.
	//   - int: Attempts made.
	//   - error: The terminal error, nil on success.
	Fetch(ctx context.Context, task Task) (int64, int, error)
}

// ProgressReporter receives task lifecycle events. Implementations must be
// safe for concurrent use: events for different tasks arrive from different
// goroutines.
type ProgressReporter interface {
	// FetchStarted is called when a task begins downloading. Skipped tasks
	// never start.
	FetchStarted(name string)
	// FetchFinished is called with the final result of every task,
	// including skipped ones.
	FetchFinished(result Result)
}

// NullProgressReporter discards all events.
type NullProgressReporter struct{}

func (NullProgressReporter) FetchStarted(string)  {}
func (NullProgressReporter) FetchFinished(Result) {}
