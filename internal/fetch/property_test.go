package fetch

import (
	"context"
	"fmt"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

// TestOrchestratorProperties checks the run invariants over randomly
// generated task mixes of successes, presence skips and failures.
func TestOrchestratorProperties(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 60
	properties := gopter.NewProperties(parameters)

	const (
		kindSuccess = iota
		kindPresent
		kindFailing
	)

	properties.Property("one result per task, marker set iff a task failed", prop.ForAll(
		func(kinds []int) bool {
			tasks := make([]Task, len(kinds))
			failing := map[string]bool{}
			presentNames := map[string]bool{}
			failCount := 0

			for i, k := range kinds {
				name := fmt.Sprintf("res-%d", i)
				tasks[i] = taskNamed(name)
				switch k {
				case kindPresent:
					tasks[i].Present = func() bool { return true }
					presentNames[name] = true
				case kindFailing:
					failing[name] = true
					failCount++
				}
			}

			fetcher := &fakeFetcher{failing: failing}
			o := NewOrchestrator(fetcher, testLogger(), NullProgressReporter{}, 3)
			outcome := o.Run(context.Background(), tasks)

			if len(outcome.Results) != len(tasks) {
				return false
			}
			for i, r := range outcome.Results {
				if r.Name != tasks[i].Name {
					return false
				}
				if presentNames[r.Name] != r.Skipped {
					return false
				}
			}
			if outcome.Skipped() != len(presentNames) {
				return false
			}
			if len(outcome.Failed) != failCount {
				return false
			}
			if outcome.OK() != (failCount == 0) {
				return false
			}
			// Presence skips must never reach the network.
			for _, name := range fetcher.fetched {
				if presentNames[name] {
					return false
				}
			}
			return true
		},
		gen.SliceOf(gen.IntRange(kindSuccess, kindFailing)),
	))

	properties.TestingRun(t)
}
