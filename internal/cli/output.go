// Package cli renders the bootstrap's plain-terminal output: the startup
// banner, the per-resource fetch summary and the final verdict.
package cli

import (
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/envboot/envboot/internal/config"
	"github.com/envboot/envboot/internal/fetch"
	"github.com/envboot/envboot/internal/format"
	"github.com/envboot/envboot/internal/platform"
	"github.com/envboot/envboot/internal/ui"
)

// PrintBanner writes the run configuration header.
//
// Parameters:
//   - w: Destination writer.
//   - cfg: The validated run configuration.
//   - plat: The detected host platform.
func PrintBanner(w io.Writer, cfg *config.AppConfig, plat platform.Info) {
	theme := ui.GetCurrentTheme()
	fmt.Fprintf(w, "%s%senvboot - environment bootstrap%s\n", theme.Bold, theme.Primary, theme.Reset)

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "  Platform:\t%s (%d CPUs)\n", plat.String(), plat.NumCPU)
	fmt.Fprintf(tw, "  Hardware:\t%s\n", cfg.Hardware)
	fmt.Fprintf(tw, "  Mirror:\t%s\n", cfg.Mirror)
	fmt.Fprintf(tw, "  Work dir:\t%s\n", cfg.WorkDir)
	if cfg.WithCorpus {
		fmt.Fprintf(tw, "  Extras:\tevaluation corpus\n")
	}
	if cfg.WorkflowMode {
		fmt.Fprintf(tw, "  Mode:\tworkflow (drivers and runtime skipped)\n")
	}
	if cfg.DryRun {
		fmt.Fprintf(tw, "  Mode:\tdry-run\n")
	}
	tw.Flush()
	fmt.Fprintln(w)
}

// PrintFetchSummary writes a per-resource table for the completed fetch
// phase.
//
// Parameters:
//   - w: Destination writer.
//   - outcome: The aggregate fetch outcome.
func PrintFetchSummary(w io.Writer, outcome fetch.Outcome) {
	theme := ui.GetCurrentTheme()

	fmt.Fprintf(w, "%sFetch summary%s\n", theme.Underline, theme.Reset)
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "  RESOURCE\tSTATUS\tSIZE\tRATE\tATTEMPTS\n")
	for _, r := range outcome.Results {
		status := theme.Success + "fetched" + theme.Reset
		size, rate, attempts := format.FormatBytes(uint64(r.Bytes)), format.FormatTransferRate(uint64(r.Bytes), r.Duration), fmt.Sprint(r.Attempts)
		switch {
		case r.Skipped:
			status = theme.Secondary + "present" + theme.Reset
			size, rate, attempts = "-", "-", "-"
		case r.Err != nil:
			status = theme.Error + "failed" + theme.Reset
			size, rate = "-", "-"
		}
		fmt.Fprintf(tw, "  %s\t%s\t%s\t%s\t%s\n", r.Name, status, size, rate, attempts)
	}
	tw.Flush()

	if !outcome.OK() {
		fmt.Fprintf(w, "\n%sFailed resources:%s", theme.Error, theme.Reset)
		for _, name := range outcome.Failed {
			fmt.Fprintf(w, " %s", name)
		}
		fmt.Fprintln(w)
	}
	fmt.Fprintln(w)
}

// PrintRunResult writes the final verdict line.
//
// Parameters:
//   - w: Destination writer.
//   - ok: Whether the bootstrap completed successfully.
//   - elapsed: Total wall-clock time of the run.
func PrintRunResult(w io.Writer, ok bool, elapsed time.Duration) {
	theme := ui.GetCurrentTheme()
	if ok {
		fmt.Fprintf(w, "%sBootstrap complete%s in %s\n",
			theme.Success, theme.Reset, format.FormatExecutionDuration(elapsed))
		return
	}
	fmt.Fprintf(w, "%sBootstrap failed%s after %s\n",
		theme.Error, theme.Reset, format.FormatExecutionDuration(elapsed))
}
