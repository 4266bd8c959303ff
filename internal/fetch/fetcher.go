package fetch

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	apperrors "github.com/envboot/envboot/internal/errors"
	"github.com/envboot/envboot/internal/logging"
	"github.com/envboot/envboot/internal/metrics"
)

// HTTPFetcher downloads task payloads over HTTP with a bounded retry budget
// and a fixed wait between attempts. Each attempt gets its own deadline so a
// stalled transfer cannot hold a worker forever.
type HTTPFetcher struct {
	client         *http.Client
	log            logging.Logger
	retries        int
	retryWait      time.Duration
	attemptTimeout time.Duration
}

// NewHTTPFetcher creates an HTTP fetcher.
//
// Parameters:
//   - log: Destination for per-attempt diagnostics.
//   - retries: Maximum number of attempts per task (minimum 1).
//   - retryWait: Fixed wait between consecutive attempts.
//   - attemptTimeout: Deadline applied to each individual attempt.
//
// Returns:
//   - *HTTPFetcher: The configured fetcher.
func NewHTTPFetcher(log logging.Logger, retries int, retryWait, attemptTimeout time.Duration) *HTTPFetcher {
	if retries < 1 {
		retries = 1
	}
	return &HTTPFetcher{
		client:         &http.Client{},
		log:            log,
		retries:        retries,
		retryWait:      retryWait,
		attemptTimeout: attemptTimeout,
	}
}

// Fetch downloads the task payload, retrying transient failures until the
// budget is exhausted. Cancellation is terminal: once ctx is done no further
// attempts are made.
func (f *HTTPFetcher) Fetch(ctx context.Context, task Task) (int64, int, error) {
	var lastErr error
	for attempt := 1; attempt <= f.retries; attempt++ {
		metrics.FetchAttempts.WithLabelValues(task.Name).Inc()

		n, err := f.attempt(ctx, task)
		if err == nil {
			return n, attempt, nil
		}
		lastErr = err

		// Only the caller's cancellation is terminal. A per-attempt deadline
		// also surfaces as a context error, and that one is retryable.
		if ctx.Err() != nil {
			return 0, attempt, err
		}
		if attempt < f.retries {
			f.log.Warn("download attempt failed, retrying",
				logging.String("task", task.Name),
				logging.Int("attempt", attempt),
				logging.Err(err))
			select {
			case <-ctx.Done():
				return 0, attempt, ctx.Err()
			case <-time.After(f.retryWait):
			}
		}
	}

	metrics.FetchFailures.WithLabelValues(task.Name).Inc()
	return 0, f.retries, apperrors.FetchError{Task: task.Name, Attempts: f.retries, Cause: lastErr}
}

// attempt performs one download try: GET the URL, stream the body into a
// temporary file next to the destination, then rename. The rename keeps a
// half-written archive from ever sitting at the destination path.
func (f *HTTPFetcher) attempt(ctx context.Context, task Task) (int64, error) {
	attemptCtx := ctx
	if f.attemptTimeout > 0 {
		var cancel context.CancelFunc
		attemptCtx, cancel = context.WithTimeout(ctx, f.attemptTimeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(attemptCtx, http.MethodGet, task.URL, nil)
	if err != nil {
		return 0, apperrors.WrapError(err, "building request for %q", task.URL)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("unexpected status %s for %q", resp.Status, task.URL)
	}

	if err := os.MkdirAll(filepath.Dir(task.Dest), 0o755); err != nil {
		return 0, apperrors.WrapError(err, "creating download directory")
	}

	part := task.Dest + ".part"
	out, err := os.Create(part)
	if err != nil {
		return 0, apperrors.WrapError(err, "creating %q", part)
	}

	n, copyErr := io.Copy(out, resp.Body)
	closeErr := out.Close()
	if copyErr != nil || closeErr != nil {
		os.Remove(part)
		if copyErr != nil {
			return 0, apperrors.WrapError(copyErr, "downloading %q", task.Name)
		}
		return 0, apperrors.WrapError(closeErr, "finalizing %q", part)
	}

	if err := os.Rename(part, task.Dest); err != nil {
		os.Remove(part)
		return 0, apperrors.WrapError(err, "moving %q into place", task.Dest)
	}

	metrics.FetchBytes.WithLabelValues(task.Name).Add(float64(n))
	return n, nil
}
