package fetch

import (
	"sync"
	"sync/atomic"
	"time"
)

// Task is one unit of download work: a named archive to retrieve from a
// resolved URL into a destination file.
type Task struct {
	// Name identifies the task in logs, metrics and failure lists.
	Name string
	// URL is the fully resolved download URL.
	URL string
	// Dest is the archive file the download is written to.
	Dest string
	// Present, when non-nil, reports whether the task's payload is already
	// installed. A present task is skipped without touching the network.
	Present func() bool
}

// Result captures the outcome of a single task.
type Result struct {
	// Name mirrors the task name.
	Name string
	// Skipped is true when the presence check short-circuited the fetch.
	Skipped bool
	// Bytes is the number of payload bytes written to Dest.
	Bytes int64
	// Attempts is the number of download attempts made.
	Attempts int
	// Duration is the wall-clock time spent on the task.
	Duration time.Duration
	// Err is the terminal error, nil on success or skip.
	Err error
}

// OK reports whether the task ended without error.
func (r Result) OK() bool {
	return r.Err == nil
}

// RunState is the failure marker shared by all concurrent fetches. The
// marker is one-way: once any task fails the run is failed, and no later
// success can clear it. Peers keep running to completion regardless, the
// marker only decides what happens after the join.
type RunState struct {
	failed atomic.Bool

	mu    sync.Mutex
	names []string
}

// MarkFailed records a failed task. Safe for concurrent use.
func (s *RunState) MarkFailed(name string) {
	s.failed.Store(true)
	s.mu.Lock()
	s.names = append(s.names, name)
	s.mu.Unlock()
}

// Failed reports whether any task has failed so far.
func (s *RunState) Failed() bool {
	return s.failed.Load()
}

// FailedTasks returns a copy of the failed task names, in the order the
// failures were recorded.
func (s *RunState) FailedTasks() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.names))
	copy(out, s.names)
	return out
}
