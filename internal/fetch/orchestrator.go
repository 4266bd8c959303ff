package fetch

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/envboot/envboot/internal/logging"
	"github.com/envboot/envboot/internal/metrics"
)

// Outcome is the aggregate result of a fetch run, available only after every
// task has finished.
type Outcome struct {
	// Results holds one entry per task, in task order.
	Results []Result
	// Failed lists the names of tasks that ended in error, in the order the
	// failures were observed.
	Failed []string
}

// OK reports whether every task either succeeded or was skipped.
func (o Outcome) OK() bool {
	return len(o.Failed) == 0
}

// Skipped counts the tasks short-circuited by their presence check.
func (o Outcome) Skipped() int {
	n := 0
	for _, r := range o.Results {
		if r.Skipped {
			n++
		}
	}
	return n
}

// Orchestrator fans tasks out to concurrent fetch workers, joins on all of
// them, and reports the aggregate outcome. A task failure never interrupts
// its peers: in-flight and queued downloads run to completion so a re-run
// has as little left to do as possible.
type Orchestrator struct {
	fetcher     Fetcher
	log         logging.Logger
	reporter    ProgressReporter
	concurrency int
}

// NewOrchestrator creates an orchestrator.
//
// Parameters:
//   - fetcher: Downloads individual tasks.
//   - log: Destination for run diagnostics.
//   - reporter: Receives task lifecycle events. Pass NullProgressReporter{}
//     to discard them.
//   - concurrency: Maximum simultaneous downloads. Zero or negative means
//     unbounded.
//
// Returns:
//   - *Orchestrator: The configured orchestrator.
func NewOrchestrator(fetcher Fetcher, log logging.Logger, reporter ProgressReporter, concurrency int) *Orchestrator {
	return &Orchestrator{
		fetcher:     fetcher,
		log:         log,
		reporter:    reporter,
		concurrency: concurrency,
	}
}

// Run executes all tasks and blocks until every one of them has finished.
//
// Tasks whose presence check passes are skipped without starting a worker.
// The rest are fetched concurrently; each failure flips the shared run
// marker, and the marker decides Outcome.OK after the join.
func (o *Orchestrator) Run(ctx context.Context, tasks []Task) Outcome {
	results := make([]Result, len(tasks))
	state := &RunState{}

	g := &errgroup.Group{}
	if o.concurrency > 0 {
		g.SetLimit(o.concurrency)
	}

	for i, task := range tasks {
		if task.Present != nil && task.Present() {
			o.log.Info("resource already present, skipping",
				logging.String("task", task.Name))
			metrics.FetchSkips.Inc()
			results[i] = Result{Name: task.Name, Skipped: true}
			o.reporter.FetchFinished(results[i])
			continue
		}

		g.Go(func() error {
			results[i] = o.runTask(ctx, task, state)
			o.reporter.FetchFinished(results[i])
			// Errors are recorded in the result slice and the run marker;
			// returning nil keeps the group from cancelling peers.
			return nil
		})
	}

	// Join barrier: nothing below runs until every worker has finished.
	_ = g.Wait()

	return Outcome{Results: results, Failed: state.FailedTasks()}
}

func (o *Orchestrator) runTask(ctx context.Context, task Task, state *RunState) Result {
	o.reporter.FetchStarted(task.Name)
	o.log.Info("fetching resource",
		logging.String("task", task.Name),
		logging.String("url", task.URL))

	metrics.ActiveFetches.Inc()
	start := time.Now()
	bytes, attempts, err := o.fetcher.Fetch(ctx, task)
	elapsed := time.Since(start)
	metrics.ActiveFetches.Dec()

	if err != nil {
		state.MarkFailed(task.Name)
		o.log.Error("fetch failed", err,
			logging.String("task", task.Name),
			logging.Int("attempts", attempts))
	} else {
		o.log.Info("fetch complete",
			logging.String("task", task.Name),
			logging.Int("attempts", attempts),
			logging.Uint64("bytes", uint64(bytes)))
	}

	return Result{
		Name:     task.Name,
		Bytes:    bytes,
		Attempts: attempts,
		Duration: elapsed,
		Err:      err,
	}
}
