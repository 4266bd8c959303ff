package app

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/envboot/envboot/internal/cli"
	apperrors "github.com/envboot/envboot/internal/errors"
	"github.com/envboot/envboot/internal/fetch"
	"github.com/envboot/envboot/internal/format"
	"github.com/envboot/envboot/internal/logging"
	"github.com/envboot/envboot/internal/mlruntime"
	"github.com/envboot/envboot/internal/platform"
	"github.com/envboot/envboot/internal/resources"
	"github.com/envboot/envboot/internal/sysdeps"
	"github.com/envboot/envboot/internal/sysmon"
	"github.com/envboot/envboot/internal/tui"
	"github.com/envboot/envboot/internal/unpack"
)

// tracerName identifies the bootstrap's spans. Without a configured SDK the
// tracer is a no-op, so instrumentation costs nothing when nobody listens.
const tracerName = "github.com/envboot/envboot"

// runBootstrap executes the five phases in order: preflight, system
// packages, fetch, unpack, runtime. The fetch phase is the only concurrent
// one; everything around it is deliberately sequential.
func (a *Application) runBootstrap(ctx context.Context, out io.Writer) error {
	tracer := otel.Tracer(tracerName)
	runID := uuid.NewString()
	log := a.Log

	ctx, span := tracer.Start(ctx, "bootstrap",
		trace.WithAttributes(attribute.String("run_id", runID)))
	defer span.End()

	log.Info("starting bootstrap",
		logging.String("run_id", runID),
		logging.String("hardware", string(a.Config.Hardware)),
		logging.String("mirror", string(a.Config.Mirror)))

	selected := resources.Catalog(a.Config.WithCorpus)

	plat, err := a.preflight(ctx, tracer, selected)
	if err != nil {
		return err
	}
	if !a.Config.Quiet {
		cli.PrintBanner(out, &a.Config, plat)
	}

	if err := a.installSystemPackages(ctx, tracer); err != nil {
		return err
	}

	outcome, err := a.fetchResources(ctx, tracer, out, selected)
	if err != nil {
		return err
	}

	if err := a.unpackArchives(ctx, tracer, outcome, selected); err != nil {
		return err
	}

	return a.installRuntime(ctx, tracer)
}

// preflight validates the host and checks the disk-space floor before any
// side effect takes place.
func (a *Application) preflight(ctx context.Context, tracer trace.Tracer, selected []resources.Resource) (platform.Info, error) {
	_, span := tracer.Start(ctx, "preflight")
	defer span.End()

	plat := platform.Detect()
	if err := platform.Validate(plat); err != nil {
		return plat, err
	}

	if err := os.MkdirAll(a.Config.WorkDir, 0o755); err != nil {
		return plat, apperrors.WrapError(err, "creating work directory %q", a.Config.WorkDir)
	}

	// Only resources that still need fetching count against the floor; a
	// resumed run over a mostly-installed tree needs far less room.
	var remaining []resources.Resource
	for _, res := range selected {
		if !resources.DirPresent(res.DestPath(a.Config.WorkDir)) {
			remaining = append(remaining, res)
		}
	}
	needed := resources.TotalApproxBytes(remaining)
	free := sysmon.DiskFree(a.Config.WorkDir)
	switch {
	case free == 0:
		a.Log.Warn("could not determine free disk space",
			logging.String("workdir", a.Config.WorkDir))
	case free < needed:
		err := fmt.Errorf("insufficient disk space in %q: %s free, about %s needed",
			a.Config.WorkDir, format.FormatBytes(free), format.FormatBytes(needed))
		if !a.Config.DryRun {
			return plat, err
		}
		a.Log.Warn("dry-run: continuing despite disk-space floor", logging.Err(err))
	}

	stats := sysmon.Sample()
	a.Log.Info("preflight complete",
		logging.String("platform", plat.String()),
		logging.Uint64("disk_free", free),
		logging.Float64("cpu_percent", stats.CPUPercent),
		logging.Float64("mem_percent", stats.MemPercent))
	return plat, nil
}

// installSystemPackages installs the base package sets and, outside workflow
// mode, the hardware drivers.
func (a *Application) installSystemPackages(ctx context.Context, tracer trace.Tracer) error {
	ctx, span := tracer.Start(ctx, "system-packages")
	defer span.End()

	installer := sysdeps.NewInstaller(a.Runner, a.Log, a.Config.DryRun)
	if err := installer.InstallBase(ctx); err != nil {
		return err
	}

	if a.Config.WorkflowMode {
		a.Log.Info("workflow mode: skipping hardware drivers")
		return nil
	}
	return installer.InstallDrivers(ctx, a.Config.Hardware)
}

// fetchResources runs the concurrent fetch phase and returns its outcome.
// A failed outcome is an error: nothing may be unpacked after a partial
// fetch.
func (a *Application) fetchResources(ctx context.Context, tracer trace.Tracer, out io.Writer, selected []resources.Resource) (fetch.Outcome, error) {
	ctx, span := tracer.Start(ctx, "fetch",
		trace.WithAttributes(attribute.Int("resources", len(selected))))
	defer span.End()

	base, err := resources.BaseURL(a.Config.Mirror)
	if err != nil {
		return fetch.Outcome{}, err
	}

	tasks := make([]fetch.Task, len(selected))
	for i, res := range selected {
		dest := res.DestPath(a.Config.WorkDir)
		tasks[i] = fetch.Task{
			Name:    res.Name,
			URL:     res.URL(base),
			Dest:    res.ArchivePath(a.Config.WorkDir),
			Present: func() bool { return resources.DirPresent(dest) },
		}
	}

	if a.Config.DryRun {
		for _, task := range tasks {
			a.Log.Info("dry-run: would fetch",
				logging.String("task", task.Name),
				logging.String("url", task.URL))
		}
		return fetch.Outcome{Results: make([]fetch.Result, len(tasks))}, nil
	}

	fetcher := a.Fetcher
	if fetcher == nil {
		fetcher = fetch.NewHTTPFetcher(a.Log, a.Config.Retries, a.Config.RetryWait, a.Config.FetchTimeout)
	}
	runFetch := func(reporter fetch.ProgressReporter) fetch.Outcome {
		return fetch.NewOrchestrator(fetcher, a.Log, reporter, a.Config.Concurrency).Run(ctx, tasks)
	}

	var outcome fetch.Outcome
	switch {
	case a.Config.TUI:
		names := make([]string, len(tasks))
		for i, task := range tasks {
			names[i] = task.Name
		}
		outcome, err = tui.Run(out, names, runFetch)
		if err != nil {
			a.Log.Warn("dashboard ended with an error", logging.Err(err))
		}
	case a.Config.Quiet:
		outcome = runFetch(fetch.NullProgressReporter{})
	default:
		reporter := cli.NewSpinnerReporter(out, len(tasks))
		outcome = runFetch(reporter)
		reporter.Stop()
	}

	if !a.Config.Quiet {
		cli.PrintFetchSummary(out, outcome)
	}
	if !outcome.OK() {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return outcome, ctxErr
		}
		return outcome, fmt.Errorf("fetch phase failed for %d resource(s): %v", len(outcome.Failed), outcome.Failed)
	}
	return outcome, nil
}

// unpackArchives extracts every freshly fetched archive, strictly one at a
// time. Skipped resources are already unpacked from an earlier run.
func (a *Application) unpackArchives(ctx context.Context, tracer trace.Tracer, outcome fetch.Outcome, selected []resources.Resource) error {
	ctx, span := tracer.Start(ctx, "unpack")
	defer span.End()

	byName := make(map[string]resources.Resource, len(selected))
	for _, res := range selected {
		byName[res.Name] = res
	}

	var items []unpack.Item
	for _, r := range outcome.Results {
		if r.Skipped || r.Name == "" {
			continue
		}
		res := byName[r.Name]
		items = append(items, unpack.Item{
			Name:    res.Name,
			Archive: res.ArchivePath(a.Config.WorkDir),
			Dest:    res.DestPath(a.Config.WorkDir),
		})
	}

	return unpack.NewUnpacker(a.Log, a.Config.DryRun).UnpackAll(ctx, items)
}

// installRuntime installs the deep-learning runtime and Python dependencies,
// unless workflow mode excludes them.
func (a *Application) installRuntime(ctx context.Context, tracer trace.Tracer) error {
	ctx, span := tracer.Start(ctx, "runtime")
	defer span.End()

	if a.Config.WorkflowMode {
		a.Log.Info("workflow mode: skipping deep-learning runtime")
		return nil
	}
	return mlruntime.NewInstaller(a.Runner, a.Log, a.Config.DryRun).Install(ctx, a.Config.Hardware)
}
